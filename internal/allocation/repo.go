package allocation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vialshare/vialshare-backend/pkg/db/models"
	"github.com/vialshare/vialshare-backend/pkg/enums"
	pkgerrors "github.com/vialshare/vialshare-backend/pkg/errors"
	"github.com/vialshare/vialshare-backend/pkg/pagination"
)

// Repository covers the ledger reads and writes the allocation service needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error)
	FindAllocation(ctx context.Context, batchID, productID uuid.UUID) (*models.ProductAllocation, error)
	IncrementAllocation(ctx context.Context, batchID, productID uuid.UUID, delta int) (*models.ProductAllocation, error)
	AddBatchVials(ctx context.Context, batchID uuid.UUID, delta int) error
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderByCode(ctx context.Context, code string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	ListOrders(ctx context.Context, batchID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an allocation repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	var batch models.Batch
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) FindAllocation(ctx context.Context, batchID, productID uuid.UUID) (*models.ProductAllocation, error) {
	var alloc models.ProductAllocation
	err := r.db.WithContext(ctx).
		Where("batch_id = ? AND product_id = ?", batchID, productID).
		First(&alloc).Error
	if err != nil {
		return nil, err
	}
	return &alloc, nil
}

// IncrementAllocation applies delta to current_vials in a single conditional
// UPDATE, so two concurrent orders can never both claim the last vials: the
// row only changes when the result stays within [0, target_vials]. Negative
// deltas clamp at zero instead of failing; a cancellation must succeed even
// when the counter already drifted low.
func (r *repository) IncrementAllocation(ctx context.Context, batchID, productID uuid.UUID, delta int) (*models.ProductAllocation, error) {
	query := r.db.WithContext(ctx).
		Model(&models.ProductAllocation{}).
		Where("batch_id = ? AND product_id = ?", batchID, productID)

	var result *gorm.DB
	if delta >= 0 {
		result = query.
			Where("current_vials + ? BETWEEN 0 AND target_vials", delta).
			UpdateColumns(map[string]any{
				"current_vials": gorm.Expr("current_vials + ?", delta),
				"updated_at":    time.Now(),
			})
	} else {
		result = query.UpdateColumns(map[string]any{
			"current_vials": gorm.Expr("CASE WHEN current_vials + ? < 0 THEN 0 ELSE current_vials + ? END", delta, delta),
			"updated_at":    time.Now(),
		})
	}
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		alloc, err := r.FindAllocation(ctx, batchID, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product allocation not found")
			}
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeCapacity, "requested quantity exceeds remaining capacity").
			WithDetails(CapacityDetails{
				ProductID: productID,
				Requested: delta,
				Remaining: alloc.Remaining(),
			})
	}

	return r.FindAllocation(ctx, batchID, productID)
}

// AddBatchVials keeps the batch-level aggregate in step with the allocation
// rows. The binding bound lives on the allocations; this counter clamps at
// zero and is repaired by reconciliation if it drifts.
func (r *repository) AddBatchVials(ctx context.Context, batchID uuid.UUID, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Batch{}).
		Where("id = ?", batchID).
		UpdateColumns(map[string]any{
			"current_vials": gorm.Expr("CASE WHEN current_vials + ? < 0 THEN 0 ELSE current_vials + ? END", delta, delta),
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderByCode(ctx context.Context, code string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("code = ?", code).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status}).Error
}

func (r *repository) ListOrders(ctx context.Context, batchID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("batch_id = ?", batchID)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var orders []models.Order
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
