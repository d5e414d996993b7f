package batches

import (
	"time"

	"github.com/google/uuid"

	"github.com/vialshare/vialshare-backend/pkg/enums"
)

// CreateBatchInput describes a new sales round and its per-product targets.
type CreateBatchInput struct {
	Scope    enums.BatchScope
	HostID   *uuid.UUID
	StartsAt *time.Time
	EndsAt   *time.Time
	Items    []BatchItemInput
}

// BatchItemInput sets the vial target for one product. The unit price is
// snapshotted from the catalog at creation time, not at order time.
type BatchItemInput struct {
	ProductID   uuid.UUID
	TargetVials int
}
