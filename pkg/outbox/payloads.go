package outbox

import (
	"time"

	"github.com/google/uuid"
)

// ProgressUpdatedEvent carries a committed counter change for one product
// allocation. NewValue is the post-commit current_vials, never a client-side
// estimate.
type ProgressUpdatedEvent struct {
	BatchID     uuid.UUID  `json:"batchId"`
	ProductID   *uuid.UUID `json:"productId,omitempty"`
	NewValue    int        `json:"newValue"`
	TargetVials int        `json:"targetVials"`
}

// BatchStatusChangedEvent announces a lifecycle transition.
type BatchStatusChangedEvent struct {
	BatchID   uuid.UUID `json:"batchId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changedAt"`
}

// OrderCreatedEvent announces a committed order.
type OrderCreatedEvent struct {
	BatchID   uuid.UUID `json:"batchId"`
	OrderID   uuid.UUID `json:"orderId"`
	OrderCode string    `json:"orderCode"`
}

// OrderCancelledEvent announces a business-level cancellation.
type OrderCancelledEvent struct {
	BatchID   uuid.UUID `json:"batchId"`
	OrderID   uuid.UUID `json:"orderId"`
	OrderCode string    `json:"orderCode"`
}
