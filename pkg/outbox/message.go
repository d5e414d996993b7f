package outbox

import (
	"github.com/google/uuid"

	"github.com/vialshare/vialshare-backend/pkg/enums"
)

// Message is the frame the publisher puts on the change-feed: the stored
// envelope plus enough routing metadata for subscribers to dispatch on
// without unpacking Data.
type Message struct {
	EventType     enums.OutboxEventType     `json:"eventType"`
	AggregateType enums.OutboxAggregateType `json:"aggregateType"`
	AggregateID   uuid.UUID                 `json:"aggregateId"`
	Payload       PayloadEnvelope           `json:"payload"`
}
