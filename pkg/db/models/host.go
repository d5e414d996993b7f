package models

import (
	"time"

	"github.com/google/uuid"
)

// Host is the owner of a sub-group scope. Hosts run their own batches for a
// closed circle of customers.
type Host struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Contact   string    `gorm:"column:contact;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
