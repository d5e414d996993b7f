package batches

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vialshare/vialshare-backend/pkg/db/models"
	"github.com/vialshare/vialshare-backend/pkg/enums"
)

// Repository covers the batch lifecycle reads and writes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error)
	FindBatchWithAllocations(ctx context.Context, id uuid.UUID) (*models.Batch, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	CreateBatch(ctx context.Context, batch *models.Batch) error
	CreateAllocations(ctx context.Context, allocations []models.ProductAllocation) error
	ListBatches(ctx context.Context, status *enums.BatchStatus) ([]models.Batch, error)
	ListActiveInScope(ctx context.Context, scope enums.BatchScope, hostID *uuid.UUID, excludeID uuid.UUID) ([]models.Batch, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.BatchStatus) (bool, error)
	SetActivatedAt(ctx context.Context, id uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a batch repository bound to the provided DB.
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

func (r *repository) FindBatchWithAllocations(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	var batch models.Batch
	err := r.db.WithContext(ctx).
		Preload("Allocations").
		Where("id = ?", id).
		First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&products).Error
	return products, err
}

func (r *repository) CreateBatch(ctx context.Context, batch *models.Batch) error {
	return r.db.WithContext(ctx).Omit("Allocations").Create(batch).Error
}

func (r *repository) CreateAllocations(ctx context.Context, allocations []models.ProductAllocation) error {
	if len(allocations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&allocations).Error
}

func (r *repository) ListBatches(ctx context.Context, status *enums.BatchStatus) ([]models.Batch, error) {
	query := r.db.WithContext(ctx)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var batches []models.Batch
	err := query.Order("created_at DESC").Find(&batches).Error
	return batches, err
}

// ListActiveInScope returns every active batch sharing the exclusivity key:
// global for group buys, the host for sub-groups.
func (r *repository) ListActiveInScope(ctx context.Context, scope enums.BatchScope, hostID *uuid.UUID, excludeID uuid.UUID) ([]models.Batch, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", enums.BatchStatusActive).
		Where("id <> ?", excludeID)
	if scope == enums.BatchScopeSubGroup && hostID != nil {
		query = query.Where("scope = ? AND host_id = ?", scope, *hostID)
	} else {
		query = query.Where("scope = ? AND host_id IS NULL", enums.BatchScopeGroupBuy)
	}
	var batches []models.Batch
	err := query.Find(&batches).Error
	return batches, err
}

// UpdateStatus is a compare-and-swap on status; zero rows means another
// writer moved the batch first.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.BatchStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Batch{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SetActivatedAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Batch{}).
		Where("id = ?", id).
		Updates(map[string]any{"activated_at": at}).Error
}
