package reconcile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vialshare/vialshare-backend/pkg/db/models"
	"github.com/vialshare/vialshare-backend/pkg/enums"
	pkgerrors "github.com/vialshare/vialshare-backend/pkg/errors"
	"github.com/vialshare/vialshare-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes reconciliation as a standalone operation: the operator
// endpoint and the cron sweep both go through here, each run in its own
// transaction.
type Service struct {
	logg *logger.Logger
	tx   txRunner
	rec  *Reconciler
}

// ServiceParams configure the reconcile service.
type ServiceParams struct {
	Logger     *logger.Logger
	TxRunner   txRunner
	Reconciler *Reconciler
}

// NewService builds the reconcile service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.TxRunner == nil {
		return nil, errors.New("transaction runner is required")
	}
	if params.Reconciler == nil {
		return nil, errors.New("reconciler is required")
	}
	return &Service{
		logg: params.Logger,
		tx:   params.TxRunner,
		rec:  params.Reconciler,
	}, nil
}

// Reconcile repairs one batch's counters from the ledger.
func (s *Service) Reconcile(ctx context.Context, batchID uuid.UUID) ([]ProductDrift, error) {
	var drifts []ProductDrift
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var batch models.Batch
		if err := tx.WithContext(ctx).Where("id = ?", batchID).First(&batch).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "batch not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading batch")
		}
		var runErr error
		drifts, runErr = s.rec.Run(ctx, tx, batchID)
		return runErr
	})
	if err != nil {
		return drifts, err
	}

	logCtx := s.logg.WithBatchID(ctx, batchID.String())
	logCtx = s.logg.WithField(logCtx, "drift_count", len(drifts))
	s.logg.Info(logCtx, "batch reconciled")
	return drifts, nil
}

// ListActiveBatchIDs returns the batches the periodic sweep should visit.
func (s *Service) ListActiveBatchIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.WithContext(ctx).
			Model(&models.Batch{}).
			Where("status = ?", enums.BatchStatusActive).
			Order("created_at ASC").
			Pluck("id", &ids).Error
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing active batches")
	}
	return ids, nil
}
