package allocation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vialshare/vialshare-backend/pkg/db/models"
	"github.com/vialshare/vialshare-backend/pkg/enums"
	pkgerrors "github.com/vialshare/vialshare-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:allocation_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Batch{},
		&models.ProductAllocation{},
		&models.Order{},
		&models.OrderItem{},
		&models.OutboxEvent{},
	))
	return db
}

func seedActiveBatch(t *testing.T, db *gorm.DB, target int, price string) (*models.Batch, *models.ProductAllocation) {
	t.Helper()
	batch := &models.Batch{
		ID:          uuid.New(),
		Scope:       enums.BatchScopeGroupBuy,
		Status:      enums.BatchStatusActive,
		TargetVials: target,
	}
	require.NoError(t, db.Create(batch).Error)

	alloc := &models.ProductAllocation{
		ID:          uuid.New(),
		BatchID:     batch.ID,
		ProductID:   uuid.New(),
		TargetVials: target,
		UnitPrice:   decimal.RequireFromString(price),
	}
	require.NoError(t, db.Create(alloc).Error)
	return batch, alloc
}

func TestIncrementAllocationClaimsCapacity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	batch, alloc := seedActiveBatch(t, db, 10, "25.50")

	updated, err := repo.IncrementAllocation(ctx, batch.ID, alloc.ProductID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.CurrentVials)
	assert.Equal(t, 6, updated.Remaining())
}

func TestIncrementAllocationRefusesOverCapacity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	batch, alloc := seedActiveBatch(t, db, 5, "10.00")

	_, err := repo.IncrementAllocation(ctx, batch.ID, alloc.ProductID, 3)
	require.NoError(t, err)

	_, err = repo.IncrementAllocation(ctx, batch.ID, alloc.ProductID, 3)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeCapacity, typed.Code())
	details, ok := typed.Details().(CapacityDetails)
	require.True(t, ok)
	assert.Equal(t, 3, details.Requested)
	assert.Equal(t, 2, details.Remaining)

	// The refused delta must leave the row untouched.
	current, err := repo.FindAllocation(ctx, batch.ID, alloc.ProductID)
	require.NoError(t, err)
	assert.Equal(t, 3, current.CurrentVials)
}

func TestIncrementAllocationNegativeDeltaClampsAtZero(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	batch, alloc := seedActiveBatch(t, db, 5, "10.00")

	_, err := repo.IncrementAllocation(ctx, batch.ID, alloc.ProductID, 2)
	require.NoError(t, err)

	// A drifted counter must not block a release; it clamps at zero.
	updated, err := repo.IncrementAllocation(ctx, batch.ID, alloc.ProductID, -4)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.CurrentVials)
}

func TestIncrementAllocationUnknownProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	batch, _ := seedActiveBatch(t, db, 5, "10.00")

	_, err := repo.IncrementAllocation(ctx, batch.ID, uuid.New(), 1)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestAddBatchVialsClampsAtZero(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	batch, _ := seedActiveBatch(t, db, 5, "10.00")

	require.NoError(t, repo.AddBatchVials(ctx, batch.ID, 3))
	require.NoError(t, repo.AddBatchVials(ctx, batch.ID, -5))

	var reloaded models.Batch
	require.NoError(t, db.First(&reloaded, "id = ?", batch.ID).Error)
	assert.Equal(t, 0, reloaded.CurrentVials)
}
