package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vialshare/vialshare-backend/pkg/enums"
)

// Batch is a time-boxed group-buy sales round. TargetVials and CurrentVials
// are aggregates derived from the batch's allocations; the binding capacity
// invariant lives on ProductAllocation.
type Batch struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Scope        enums.BatchScope    `gorm:"column:scope;type:batch_scope;not null;default:'group_buy'"`
	HostID       *uuid.UUID          `gorm:"column:host_id;type:uuid"`
	Status       enums.BatchStatus   `gorm:"column:status;type:batch_status;not null;default:'draft'"`
	TargetVials  int                 `gorm:"column:target_vials;not null;default:0"`
	CurrentVials int                 `gorm:"column:current_vials;not null;default:0"`
	StartsAt     *time.Time          `gorm:"column:starts_at"`
	EndsAt       *time.Time          `gorm:"column:ends_at"`
	ActivatedAt  *time.Time          `gorm:"column:activated_at"`
	Allocations  []ProductAllocation `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// ScopeKey returns the exclusivity key: one active batch is allowed per key.
func (b Batch) ScopeKey() string {
	if b.Scope == enums.BatchScopeSubGroup && b.HostID != nil {
		return "host:" + b.HostID.String()
	}
	return "global"
}
