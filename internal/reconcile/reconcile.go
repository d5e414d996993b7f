package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/vialshare/vialshare-backend/pkg/db/models"
	"github.com/vialshare/vialshare-backend/pkg/enums"
	pkgerrors "github.com/vialshare/vialshare-backend/pkg/errors"
	"github.com/vialshare/vialshare-backend/pkg/logger"
	"github.com/vialshare/vialshare-backend/pkg/outbox"
)

// ProductDrift reports one repaired counter: what the allocation row said and
// what the order ledger actually adds up to.
type ProductDrift struct {
	ProductID uuid.UUID `json:"productId"`
	Previous  int       `json:"previous"`
	Computed  int       `json:"computed"`
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Reconciler recomputes allocation counters from the order ledger. The order
// items are the source of truth; current_vials is only ever a cache of them.
type Reconciler struct {
	logg   *logger.Logger
	outbox outboxPublisher
}

// NewReconciler builds a reconciler.
func NewReconciler(logg *logger.Logger, publisher outboxPublisher) (*Reconciler, error) {
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if publisher == nil {
		return nil, errors.New("outbox publisher is required")
	}
	return &Reconciler{logg: logg, outbox: publisher}, nil
}

// Run reconciles every allocation of the batch inside the caller's
// transaction, then refreshes the batch aggregates from the same pass. It is
// idempotent: with no intervening ledger writes a second run reports no
// drift. Per-product failures are folded with multierr so one bad row does
// not hide the rest of the report.
func (r *Reconciler) Run(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) ([]ProductDrift, error) {
	var allocations []models.ProductAllocation
	if err := tx.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("product_id ASC").
		Find(&allocations).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading allocations")
	}

	now := time.Now().UTC()
	drifts := []ProductDrift{}
	var errs error
	targetSum := 0
	currentSum := 0

	for _, alloc := range allocations {
		targetSum += alloc.TargetVials

		computed, err := r.committedQuantity(ctx, tx, batchID, alloc.ProductID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %s: computing ledger sum: %w", alloc.ProductID, err))
			currentSum += alloc.CurrentVials
			continue
		}

		if computed == alloc.CurrentVials {
			currentSum += computed
			continue
		}

		if err := tx.WithContext(ctx).
			Model(&models.ProductAllocation{}).
			Where("id = ?", alloc.ID).
			UpdateColumns(map[string]any{
				"current_vials": computed,
				"updated_at":    now,
			}).Error; err != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %s: repairing counter: %w", alloc.ProductID, err))
			currentSum += alloc.CurrentVials
			continue
		}
		currentSum += computed
		drifts = append(drifts, ProductDrift{
			ProductID: alloc.ProductID,
			Previous:  alloc.CurrentVials,
			Computed:  computed,
		})

		productID := alloc.ProductID
		if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProgressUpdated,
			AggregateType: enums.AggregateBatch,
			AggregateID:   batchID,
			Data: outbox.ProgressUpdatedEvent{
				BatchID:     batchID,
				ProductID:   &productID,
				NewValue:    computed,
				TargetVials: alloc.TargetVials,
			},
			Version:    1,
			OccurredAt: now,
		}); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %s: queueing progress event: %w", alloc.ProductID, err))
		}
	}

	// Both aggregates derive from the same allocation pass; they are never
	// reconciled independently of each other.
	if err := tx.WithContext(ctx).
		Model(&models.Batch{}).
		Where("id = ?", batchID).
		UpdateColumns(map[string]any{
			"target_vials":  targetSum,
			"current_vials": currentSum,
			"updated_at":    now,
		}).Error; err != nil {
		errs = multierr.Append(errs, fmt.Errorf("refreshing batch aggregates: %w", err))
	}

	return drifts, errs
}

func (r *Reconciler) committedQuantity(ctx context.Context, tx *gorm.DB, batchID, productID uuid.UUID) (int, error) {
	var computed int
	err := tx.WithContext(ctx).
		Model(&models.OrderItem{}).
		Select("COALESCE(SUM(order_items.quantity), 0)").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.batch_id = ?", batchID).
		Where("order_items.product_id = ?", productID).
		Where("orders.status <> ?", enums.OrderStatusCancelled).
		Scan(&computed).Error
	return computed, err
}
