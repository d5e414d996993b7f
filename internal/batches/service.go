package batches

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vialshare/vialshare-backend/internal/reconcile"
	"github.com/vialshare/vialshare-backend/pkg/db/models"
	"github.com/vialshare/vialshare-backend/pkg/enums"
	pkgerrors "github.com/vialshare/vialshare-backend/pkg/errors"
	"github.com/vialshare/vialshare-backend/pkg/logger"
	"github.com/vialshare/vialshare-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns the batch lifecycle: creation, the transition table, and the
// one-active-batch-per-scope rule.
type Service interface {
	CreateBatch(ctx context.Context, input CreateBatchInput) (*models.Batch, error)
	GetBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error)
	ListBatches(ctx context.Context, status *enums.BatchStatus) ([]models.Batch, error)
	Transition(ctx context.Context, batchID uuid.UUID, to enums.BatchStatus) (*models.Batch, error)
	Activate(ctx context.Context, batchID uuid.UUID) (*models.Batch, error)
}

// ServiceParams configure the batch lifecycle service.
type ServiceParams struct {
	Logger     *logger.Logger
	Repo       Repository
	TxRunner   txRunner
	Outbox     outboxPublisher
	Reconciler *reconcile.Reconciler
	Now        func() time.Time
}

type service struct {
	logg *logger.Logger
	repo Repository
	tx   txRunner
	out  outboxPublisher
	rec  *reconcile.Reconciler
	now  func() time.Time
}

// NewService builds the batch lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repo == nil {
		return nil, errors.New("repository is required")
	}
	if params.TxRunner == nil {
		return nil, errors.New("transaction runner is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox publisher is required")
	}
	if params.Reconciler == nil {
		return nil, errors.New("reconciler is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		logg: params.Logger,
		repo: params.Repo,
		tx:   params.TxRunner,
		out:  params.Outbox,
		rec:  params.Reconciler,
		now:  now,
	}, nil
}

// CreateBatch persists a draft batch with one allocation per product, each
// carrying a price snapshot from the catalog.
func (s *service) CreateBatch(ctx context.Context, input CreateBatchInput) (*models.Batch, error) {
	if err := validateCreateBatch(input); err != nil {
		return nil, err
	}

	productIDs := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	var created *models.Batch
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		products, err := repo.FindProducts(ctx, productIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading products")
		}
		priceByProduct := make(map[uuid.UUID]models.Product, len(products))
		for _, product := range products {
			priceByProduct[product.ID] = product
		}

		batch := &models.Batch{
			ID:       uuid.New(),
			Scope:    input.Scope,
			HostID:   input.HostID,
			Status:   enums.BatchStatusDraft,
			StartsAt: input.StartsAt,
			EndsAt:   input.EndsAt,
		}

		allocations := make([]models.ProductAllocation, 0, len(input.Items))
		targetSum := 0
		for _, item := range input.Items {
			product, ok := priceByProduct[item.ProductID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"productId": item.ProductID})
			}
			allocations = append(allocations, models.ProductAllocation{
				ID:          uuid.New(),
				BatchID:     batch.ID,
				ProductID:   item.ProductID,
				TargetVials: item.TargetVials,
				UnitPrice:   product.UnitPrice,
			})
			targetSum += item.TargetVials
		}
		batch.TargetVials = targetSum

		if err := repo.CreateBatch(ctx, batch); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting batch")
		}
		if err := repo.CreateAllocations(ctx, allocations); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting allocations")
		}
		batch.Allocations = allocations
		created = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithBatchID(ctx, created.ID.String())
	logCtx = s.logg.WithField(logCtx, "scope", created.Scope)
	s.logg.Info(logCtx, "batch created")
	return created, nil
}

func (s *service) GetBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	batch, err := s.repo.FindBatchWithAllocations(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "batch not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading batch")
	}
	return batch, nil
}

func (s *service) ListBatches(ctx context.Context, status *enums.BatchStatus) ([]models.Batch, error) {
	batches, err := s.repo.ListBatches(ctx, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing batches")
	}
	return batches, nil
}

// Transition moves a batch along the lifecycle table. Activation has its own
// path because it also enforces scope exclusivity.
func (s *service) Transition(ctx context.Context, batchID uuid.UUID, to enums.BatchStatus) (*models.Batch, error) {
	if to == enums.BatchStatusActive {
		return s.Activate(ctx, batchID)
	}

	var updated *models.Batch
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		batch, err := repo.FindBatch(ctx, batchID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "batch not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading batch")
		}
		if err := ValidateTransition(batch.Status, to); err != nil {
			return err
		}

		ok, err := repo.UpdateStatus(ctx, batch.ID, batch.Status, to)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating batch status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "batch status changed concurrently")
		}

		if err := s.emitStatusChange(ctx, tx, batch.ID, batch.Status, to); err != nil {
			return err
		}

		batch.Status = to
		updated = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logTransition(ctx, updated.ID, updated.Status)
	return updated, nil
}

// Activate makes the batch the only active one in its scope. Demotions and
// the activation commit or roll back together; a reactivated batch is
// reconciled against the ledger before it accepts orders again.
func (s *service) Activate(ctx context.Context, batchID uuid.UUID) (*models.Batch, error) {
	var updated *models.Batch
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		batch, err := repo.FindBatch(ctx, batchID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "batch not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading batch")
		}
		if err := ValidateTransition(batch.Status, enums.BatchStatusActive); err != nil {
			return err
		}

		others, err := repo.ListActiveInScope(ctx, batch.Scope, batch.HostID, batch.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing active batches")
		}
		for _, other := range others {
			ok, err := repo.UpdateStatus(ctx, other.ID, enums.BatchStatusActive, enums.BatchStatusDraft)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "demoting active batch")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "batch status changed concurrently")
			}
			if err := s.emitStatusChange(ctx, tx, other.ID, enums.BatchStatusActive, enums.BatchStatusDraft); err != nil {
				return err
			}
		}

		wasActivatedBefore := batch.ActivatedAt != nil

		ok, err := repo.UpdateStatus(ctx, batch.ID, batch.Status, enums.BatchStatusActive)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activating batch")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "batch status changed concurrently")
		}

		// Counters can drift while a batch is paused (orders cancelled
		// during payment collection); repair them before reopening.
		if wasActivatedBefore {
			drifts, err := s.rec.Run(ctx, tx, batch.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconciling on reactivation")
			}
			logCtx := s.logg.WithBatchID(ctx, batch.ID.String())
			logCtx = s.logg.WithField(logCtx, "drift_count", len(drifts))
			s.logg.Info(logCtx, "reactivation reconcile complete")
		}

		now := s.now().UTC()
		if err := repo.SetActivatedAt(ctx, batch.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamping activation time")
		}

		if err := s.emitStatusChange(ctx, tx, batch.ID, batch.Status, enums.BatchStatusActive); err != nil {
			return err
		}

		batch.Status = enums.BatchStatusActive
		batch.ActivatedAt = &now
		updated = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logTransition(ctx, updated.ID, updated.Status)
	return updated, nil
}

func (s *service) emitStatusChange(ctx context.Context, tx *gorm.DB, batchID uuid.UUID, from, to enums.BatchStatus) error {
	now := s.now().UTC()
	err := s.out.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventBatchStatusChanged,
		AggregateType: enums.AggregateBatch,
		AggregateID:   batchID,
		Data: outbox.BatchStatusChangedEvent{
			BatchID:   batchID,
			From:      string(from),
			To:        string(to),
			ChangedAt: now,
		},
		Version:    1,
		OccurredAt: now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queueing status event")
	}
	return nil
}

func (s *service) logTransition(ctx context.Context, batchID uuid.UUID, to enums.BatchStatus) {
	logCtx := s.logg.WithBatchID(ctx, batchID.String())
	logCtx = s.logg.WithField(logCtx, "status", to)
	s.logg.Info(logCtx, "batch transitioned")
}

func validateCreateBatch(input CreateBatchInput) error {
	if !input.Scope.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown batch scope")
	}
	if input.Scope == enums.BatchScopeSubGroup && input.HostID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "sub-group batches need a host")
	}
	if input.Scope == enums.BatchScopeGroupBuy && input.HostID != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "group-buy batches cannot have a host")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "batch needs at least one product")
	}
	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if item.TargetVials <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "target vials must be greater than zero").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
		if _, dup := seen[item.ProductID]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in batch").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
		seen[item.ProductID] = struct{}{}
	}
	if input.StartsAt != nil && input.EndsAt != nil && !input.EndsAt.After(*input.StartsAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "batch must end after it starts")
	}
	return nil
}
