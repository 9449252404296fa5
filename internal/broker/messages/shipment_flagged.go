package messages

import "time"

// ShipmentFlagged is published whenever a poll leaves an ops flag on a
// shipment. Downstream ops tooling consumes it; nothing in this
// service does.
type ShipmentFlagged struct {
	AWB       string    `json:"awb"`
	OrderID   int64     `json:"order_id"`
	Flag      string    `json:"flag"`
	Status    string    `json:"status"`
	NDRReason *string   `json:"ndr_reason,omitempty"`
	FlaggedAt time.Time `json:"flagged_at"`
}
