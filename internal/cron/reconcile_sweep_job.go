package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/vialshare/vialshare-backend/internal/reconcile"
	"github.com/vialshare/vialshare-backend/pkg/logger"
)

const reconcileSweepJobName = "reconcile_sweep"

type batchReconciler interface {
	ListActiveBatchIDs(ctx context.Context) ([]uuid.UUID, error)
	Reconcile(ctx context.Context, batchID uuid.UUID) ([]reconcile.ProductDrift, error)
}

// ReconcileSweepJobParams configure the periodic counter sweep.
type ReconcileSweepJobParams struct {
	Logger     *logger.Logger
	Reconciler batchReconciler
}

type reconcileSweepJob struct {
	logg       *logger.Logger
	reconciler batchReconciler
}

// NewReconcileSweepJob builds the cron job that reconciles every active
// batch, catching drift that reactivation-triggered repairs miss.
func NewReconcileSweepJob(params ReconcileSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	return &reconcileSweepJob{
		logg:       params.Logger,
		reconciler: params.Reconciler,
	}, nil
}

func (j *reconcileSweepJob) Name() string {
	return reconcileSweepJobName
}

// Run visits every active batch. One batch failing does not stop the sweep;
// failures are folded and reported together.
func (j *reconcileSweepJob) Run(ctx context.Context) error {
	batchIDs, err := j.reconciler.ListActiveBatchIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing active batches: %w", err)
	}

	var errs error
	repaired := 0
	for _, batchID := range batchIDs {
		drifts, err := j.reconciler.Reconcile(ctx, batchID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("batch %s: %w", batchID, err))
			continue
		}
		repaired += len(drifts)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"batches_swept":     len(batchIDs),
		"counters_repaired": repaired,
	})
	j.logg.Info(logCtx, "reconcile sweep complete")
	return errs
}
