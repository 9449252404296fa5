package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                  int64           `json:"id"`
	OrderNumber         int64           `json:"order_number"`
	FinancialStatus     string          `json:"financial_status"`
	FulfillmentStatus   string          `json:"fulfillment_status"`
	TotalPrice          decimal.Decimal `json:"total_price"`
	PaymentGatewayNames []string        `json:"payment_gateway_names"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}
