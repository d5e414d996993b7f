package enums

import "fmt"

// BatchStatus tracks the lifecycle of a group-buy batch.
type BatchStatus string

const (
	BatchStatusDraft             BatchStatus = "draft"
	BatchStatusActive            BatchStatus = "active"
	BatchStatusPaymentCollection BatchStatus = "payment_collection"
	BatchStatusOrdering          BatchStatus = "ordering"
	BatchStatusProcessing        BatchStatus = "processing"
	BatchStatusShipped           BatchStatus = "shipped"
	BatchStatusDelivered         BatchStatus = "delivered"
	BatchStatusCompleted         BatchStatus = "completed"
	BatchStatusCancelled         BatchStatus = "cancelled"
)

var validBatchStatuses = []BatchStatus{
	BatchStatusDraft,
	BatchStatusActive,
	BatchStatusPaymentCollection,
	BatchStatusOrdering,
	BatchStatusProcessing,
	BatchStatusShipped,
	BatchStatusDelivered,
	BatchStatusCompleted,
	BatchStatusCancelled,
}

// String implements fmt.Stringer.
func (b BatchStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BatchStatus.
func (b BatchStatus) IsValid() bool {
	for _, candidate := range validBatchStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// AcceptsOrders reports whether new orders may be placed against a batch in
// this status.
func (b BatchStatus) AcceptsOrders() bool {
	return b == BatchStatusActive
}

// IsTerminal reports whether the status admits no further transitions.
func (b BatchStatus) IsTerminal() bool {
	return b == BatchStatusCompleted || b == BatchStatusCancelled
}

// ParseBatchStatus converts raw input into a BatchStatus.
func ParseBatchStatus(value string) (BatchStatus, error) {
	for _, candidate := range validBatchStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid batch status %q", value)
}
