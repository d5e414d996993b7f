package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialshare/vialshare-backend/internal/reconcile"
	"github.com/vialshare/vialshare-backend/pkg/logger"
)

type fakeReconciler struct {
	active     []uuid.UUID
	failFor    map[uuid.UUID]error
	reconciled []uuid.UUID
}

func (f *fakeReconciler) ListActiveBatchIDs(context.Context) ([]uuid.UUID, error) {
	return f.active, nil
}

func (f *fakeReconciler) Reconcile(_ context.Context, batchID uuid.UUID) ([]reconcile.ProductDrift, error) {
	if err := f.failFor[batchID]; err != nil {
		return nil, err
	}
	f.reconciled = append(f.reconciled, batchID)
	return []reconcile.ProductDrift{{ProductID: uuid.New(), Previous: 2, Computed: 1}}, nil
}

func TestReconcileSweepVisitsEveryActiveBatch(t *testing.T) {
	batchA, batchB := uuid.New(), uuid.New()
	rec := &fakeReconciler{active: []uuid.UUID{batchA, batchB}}

	job, err := NewReconcileSweepJob(ReconcileSweepJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Reconciler: rec,
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []uuid.UUID{batchA, batchB}, rec.reconciled)
}

func TestReconcileSweepContinuesPastFailures(t *testing.T) {
	batchA, batchB := uuid.New(), uuid.New()
	rec := &fakeReconciler{
		active:  []uuid.UUID{batchA, batchB},
		failFor: map[uuid.UUID]error{batchA: errors.New("boom")},
	}

	job, err := NewReconcileSweepJob(ReconcileSweepJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Reconciler: rec,
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []uuid.UUID{batchB}, rec.reconciled)
}
