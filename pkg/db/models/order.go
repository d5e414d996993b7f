package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vialshare/vialshare-backend/pkg/enums"
)

// Order is a customer's claim on batch capacity. Rows are created only by the
// allocation service; items are immutable after creation while status and
// payment_status stay staff-mutable.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Code            string              `gorm:"column:code;not null;uniqueIndex:ux_orders_code"`
	BatchID         uuid.UUID           `gorm:"column:batch_id;type:uuid;not null;index"`
	CustomerName    string              `gorm:"column:customer_name;not null"`
	CustomerContact string              `gorm:"column:customer_contact;not null"`
	Status          enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	TotalAmount     decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
