package enums

// OutboxEventType identifies the kind of domain event queued in the outbox.
type OutboxEventType string

const (
	EventProgressUpdated    OutboxEventType = "progress.updated"
	EventBatchStatusChanged OutboxEventType = "batch.status_changed"
	EventOrderCreated       OutboxEventType = "order.created"
	EventOrderCancelled     OutboxEventType = "order.cancelled"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateBatch OutboxAggregateType = "batch"
)
