package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductAllocation is the shared pool sold for one product inside one batch.
// CurrentVials is mutated only through the conditional increment and the
// reconciliation job; 0 <= CurrentVials <= TargetVials holds at all times.
type ProductAllocation struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	BatchID      uuid.UUID       `gorm:"column:batch_id;type:uuid;not null;uniqueIndex:ux_allocations_batch_product"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_allocations_batch_product"`
	TargetVials  int             `gorm:"column:target_vials;not null"`
	CurrentVials int             `gorm:"column:current_vials;not null;default:0"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Remaining returns the headroom still available for sale.
func (a ProductAllocation) Remaining() int {
	remaining := a.TargetVials - a.CurrentVials
	if remaining < 0 {
		return 0
	}
	return remaining
}
