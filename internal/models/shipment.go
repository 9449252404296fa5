package models

import "time"

// Courier sources a shipment can be booked through.
const (
	CourierBlueDart   = "bluedart"
	CourierShiprocket = "shiprocket"
)

// Normalized status types derived from carrier free-text statuses.
const (
	StatusTypeDelivered      = "DL"
	StatusTypeReturnToOrigin = "RT"
	StatusTypeOutForDelivery = "OF"
	StatusTypeUnknown        = "UNKNOWN"
)

// Ops flags raised by the classifier.
const (
	OpsFlagSLABreach = "SLA_BREACH"
	OpsFlagStuck     = "STUCK_IN_TRANSIT"
	OpsFlagEscalate  = "ESCALATE"
)

type Shipment struct {
	AWB             string     `json:"awb"`
	OrderID         int64      `json:"order_id"`
	CourierSource   string     `json:"courier_source"`
	Courier         *string    `json:"courier,omitempty"`
	LastKnownStatus string     `json:"last_known_status"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
	NextCheckAt     time.Time  `json:"next_check_at"`
	OpsFlag         *string    `json:"ops_flag,omitempty"`
	NDRReason       *string    `json:"ndr_reason,omitempty"`
	LastCheckedAt   *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TrackingSnapshot is the normalized output of a carrier adapter.
// It is transient: the persistence layer folds it into the shipment row.
type TrackingSnapshot struct {
	Source        string      `json:"source"`
	Status        string      `json:"status"`
	Delivered     bool        `json:"delivered"`
	NDRReason     *string     `json:"ndr_reason,omitempty"`
	ActualCourier *string     `json:"actual_courier,omitempty"`
	Scans         []ScanEvent `json:"scans,omitempty"`
}

type ScanEvent struct {
	Date        time.Time `json:"date"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
}
