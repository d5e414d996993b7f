package allocation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vialshare/vialshare-backend/pkg/db/models"
)

// PlaceOrderInput is the validated request for a new order.
type PlaceOrderInput struct {
	BatchID         uuid.UUID
	CustomerName    string
	CustomerContact string
	Items           []OrderItemInput
}

// OrderItemInput requests a quantity of one product's allocation.
type OrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// OrderConfirmation is returned after a committed order.
type OrderConfirmation struct {
	OrderID     uuid.UUID       `json:"orderId"`
	Code        string          `json:"code"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// CapacityDetails travels on CAPACITY_EXCEEDED errors. Remaining is read from
// the ledger after the conditional update refused the delta; the client's own
// view of remaining capacity is never consulted.
type CapacityDetails struct {
	ProductID uuid.UUID `json:"productId"`
	Requested int       `json:"requested"`
	Remaining int       `json:"remaining"`
}

// OrderPage is one page of a batch's order list.
type OrderPage struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"nextCursor,omitempty"`
}
