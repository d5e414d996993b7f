package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vialshare/vialshare-backend/internal/allocation"
	"github.com/vialshare/vialshare-backend/internal/batches"
	"github.com/vialshare/vialshare-backend/internal/progress"
	"github.com/vialshare/vialshare-backend/internal/reconcile"
	"github.com/vialshare/vialshare-backend/pkg/config"
	"github.com/vialshare/vialshare-backend/pkg/db/models"
	"github.com/vialshare/vialshare-backend/pkg/enums"
	"github.com/vialshare/vialshare-backend/pkg/logger"
	"github.com/vialshare/vialshare-backend/pkg/outbox"
	"github.com/vialshare/vialshare-backend/pkg/types"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type noopBroker struct{}

func (noopBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (noopBroker) ProgressChannel(batchID string) string {
	return "vs:progress:" + batchID
}

func newTestRouter(t *testing.T) (http.Handler, *gorm.DB) {
	t.Helper()

	dsn := "file:routes_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Host{},
		&models.Product{},
		&models.Batch{},
		&models.ProductAllocation{},
		&models.Order{},
		&models.OrderItem{},
		&models.OutboxEvent{},
	))

	logg := logger.New(logger.Options{ServiceName: "routes-test"})
	publisher := outbox.NewService(outbox.NewRepository(db), logg)
	runner := gormTxRunner{db: db}

	reconciler, err := reconcile.NewReconciler(logg, publisher)
	require.NoError(t, err)
	reconcileSvc, err := reconcile.NewService(reconcile.ServiceParams{
		Logger:     logg,
		TxRunner:   runner,
		Reconciler: reconciler,
	})
	require.NoError(t, err)

	batchesSvc, err := batches.NewService(batches.ServiceParams{
		Logger:     logg,
		Repo:       batches.NewRepository(db),
		TxRunner:   runner,
		Outbox:     publisher,
		Reconciler: reconciler,
	})
	require.NoError(t, err)

	allocationSvc, err := allocation.NewService(allocation.ServiceParams{
		Logger:   logg,
		Repo:     allocation.NewRepository(db),
		TxRunner: runner,
		Outbox:   publisher,
	})
	require.NoError(t, err)

	progressSvc, err := progress.NewService(progress.ServiceParams{
		Logger:  logg,
		Batches: batches.NewRepository(db),
		Broker:  noopBroker{},
	})
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.App.CORSOrigins = []string{"http://localhost:3000"}

	router := NewRouter(RouterParams{
		Config:     cfg,
		Logger:     logg,
		DB:         okPinger{},
		Redis:      okPinger{},
		Batches:    batchesSvc,
		Allocation: allocationSvc,
		Progress:   progressSvc,
		Reconcile:  reconcileSvc,
	})
	return router, db
}

func seedProduct(t *testing.T, db *gorm.DB, price string) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:        uuid.New(),
		Name:      "BPC-157 5mg",
		UnitPrice: decimal.RequireFromString(price),
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func decodeData(t *testing.T, res *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope types.SuccessEnvelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&envelope))
	raw, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dest))
}

func TestHealthLive(t *testing.T) {
	router, _ := newTestRouter(t)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "test", res.Header().Get("X-VialShare-Env"))
}

func TestHealthReady(t *testing.T) {
	router, _ := newTestRouter(t)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, res.Code)
}

func TestBatchLifecycleAndOrderFlow(t *testing.T) {
	router, db := newTestRouter(t)
	product := seedProduct(t, db, "25.50")

	createBody := fmt.Sprintf(`{"scope":"group_buy","items":[{"productId":"%s","targetVials":10}]}`, product.ID)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewBufferString(createBody)))
	require.Equal(t, http.StatusCreated, res.Code)

	var batch models.Batch
	decodeData(t, res, &batch)
	require.Equal(t, enums.BatchStatusDraft, batch.Status)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/v1/batches/"+batch.ID.String()+"/activate", nil))
	require.Equal(t, http.StatusOK, res.Code)

	orderBody := fmt.Sprintf(`{"batchId":"%s","customerName":"Dana","items":[{"productId":"%s","quantity":3}]}`, batch.ID, product.ID)
	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString(orderBody)))
	require.Equal(t, http.StatusCreated, res.Code)

	var confirmation allocation.OrderConfirmation
	decodeData(t, res, &confirmation)
	require.NotEmpty(t, confirmation.Code)
	require.True(t, confirmation.TotalAmount.Equal(decimal.RequireFromString("76.50")))

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/v1/orders/code/"+confirmation.Code, nil))
	require.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+batch.ID.String()+"/progress", nil))
	require.Equal(t, http.StatusOK, res.Code)

	var snapshot progress.Snapshot
	decodeData(t, res, &snapshot)
	require.Equal(t, 3, snapshot.CurrentVials)
	require.Equal(t, 10, snapshot.TargetVials)
}

func TestCapacityExceededSurfacesDetails(t *testing.T) {
	router, db := newTestRouter(t)
	product := seedProduct(t, db, "10.00")

	createBody := fmt.Sprintf(`{"scope":"group_buy","items":[{"productId":"%s","targetVials":2}]}`, product.ID)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewBufferString(createBody)))
	require.Equal(t, http.StatusCreated, res.Code)
	var batch models.Batch
	decodeData(t, res, &batch)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/v1/batches/"+batch.ID.String()+"/activate", nil))
	require.Equal(t, http.StatusOK, res.Code)

	orderBody := fmt.Sprintf(`{"batchId":"%s","customerName":"Lee","items":[{"productId":"%s","quantity":5}]}`, batch.ID, product.ID)
	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString(orderBody)))
	require.Equal(t, http.StatusConflict, res.Code)

	var envelope types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&envelope))
	require.Equal(t, "CAPACITY_EXCEEDED", envelope.Error.Code)
	require.NotNil(t, envelope.Error.Details)
}

func TestInvalidTransitionReturnsUnprocessable(t *testing.T) {
	router, db := newTestRouter(t)
	product := seedProduct(t, db, "10.00")

	createBody := fmt.Sprintf(`{"scope":"group_buy","items":[{"productId":"%s","targetVials":2}]}`, product.ID)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewBufferString(createBody)))
	require.Equal(t, http.StatusCreated, res.Code)
	var batch models.Batch
	decodeData(t, res, &batch)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/v1/batches/"+batch.ID.String()+"/transition",
		bytes.NewBufferString(`{"status":"shipped"}`)))
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
}

func TestUnknownBatchReturnsNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestMalformedBatchIDRejected(t *testing.T) {
	router, _ := newTestRouter(t)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/v1/batches/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, res.Code)
}
