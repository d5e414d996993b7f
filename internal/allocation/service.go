package allocation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vialshare/vialshare-backend/pkg/db"
	"github.com/vialshare/vialshare-backend/pkg/db/models"
	"github.com/vialshare/vialshare-backend/pkg/enums"
	pkgerrors "github.com/vialshare/vialshare-backend/pkg/errors"
	"github.com/vialshare/vialshare-backend/pkg/logger"
	"github.com/vialshare/vialshare-backend/pkg/metrics"
	"github.com/vialshare/vialshare-backend/pkg/outbox"
	"github.com/vialshare/vialshare-backend/pkg/pagination"
)

const (
	defaultCodeMaxAttempts = 5
	orderCodeSavepoint     = "order_code"
)

// txRunner abstracts the transactional boundary every ledger write runs in.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// outboxPublisher queues domain events in the caller's transaction so they
// become visible to the publisher only after the ledger write commits.
type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns order placement and cancellation against batch allocations.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderConfirmation, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID) error
	GetOrderByCode(ctx context.Context, code string) (*models.Order, error)
	ListOrders(ctx context.Context, batchID uuid.UUID, params pagination.Params) (*OrderPage, error)
}

// ServiceParams configure the allocation service.
type ServiceParams struct {
	Logger          *logger.Logger
	Repo            Repository
	TxRunner        txRunner
	Outbox          outboxPublisher
	Metrics         *metrics.AllocationMetrics
	CodeMaxAttempts int
	Now             func() time.Time
}

type service struct {
	logg            *logger.Logger
	repo            Repository
	tx              txRunner
	outbox          outboxPublisher
	metrics         *metrics.AllocationMetrics
	codeMaxAttempts int
	now             func() time.Time
}

// NewService builds the allocation service.
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
	attempts := params.CodeMaxAttempts
	if attempts <= 0 {
		attempts = defaultCodeMaxAttempts
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		logg:            params.Logger,
		repo:            params.Repo,
		tx:              params.TxRunner,
		outbox:          params.Outbox,
		metrics:         params.Metrics,
		codeMaxAttempts: attempts,
		now:             now,
	}, nil
}

// PlaceOrder claims capacity for every requested item inside one transaction.
// Each item goes through the conditional increment, so a full allocation
// rejects the order no matter what remaining count the client last saw; any
// failure rolls the whole order back.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderConfirmation, error) {
	if err := validatePlaceOrder(input); err != nil {
		s.recordRejection(err)
		return nil, err
	}

	var (
		confirmation *OrderConfirmation
		scope        enums.BatchScope
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		batch, err := repo.FindBatch(ctx, input.BatchID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "batch not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading batch")
		}
		scope = batch.Scope
		if !batch.Status.AcceptsOrders() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "batch is not accepting orders").
				WithDetails(map[string]any{"batchStatus": batch.Status})
		}

		now := s.now().UTC()
		order := &models.Order{
			ID:              uuid.New(),
			BatchID:         batch.ID,
			CustomerName:    input.CustomerName,
			CustomerContact: input.CustomerContact,
			Status:          enums.OrderStatusPending,
			PaymentStatus:   enums.PaymentStatusPending,
		}

		total := decimal.Zero
		totalQty := 0
		items := make([]models.OrderItem, 0, len(input.Items))
		progressEvents := make([]outbox.ProgressUpdatedEvent, 0, len(input.Items))
		for _, item := range input.Items {
			alloc, err := repo.IncrementAllocation(ctx, batch.ID, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			lineTotal := alloc.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
			items = append(items, models.OrderItem{
				ID:        uuid.New(),
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: alloc.UnitPrice,
				LineTotal: lineTotal,
			})
			total = total.Add(lineTotal)
			totalQty += item.Quantity

			productID := item.ProductID
			progressEvents = append(progressEvents, outbox.ProgressUpdatedEvent{
				BatchID:     batch.ID,
				ProductID:   &productID,
				NewValue:    alloc.CurrentVials,
				TargetVials: alloc.TargetVials,
			})
		}

		if err := repo.AddBatchVials(ctx, batch.ID, totalQty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating batch counters")
		}

		order.TotalAmount = total
		if err := s.createOrderWithCode(ctx, tx, repo, order, batch.Scope, now); err != nil {
			return err
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting order items")
		}

		for _, event := range progressEvents {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventProgressUpdated,
				AggregateType: enums.AggregateBatch,
				AggregateID:   batch.ID,
				Data:          event,
				Version:       1,
				OccurredAt:    now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queueing progress event")
			}
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateBatch,
			AggregateID:   batch.ID,
			Data: outbox.OrderCreatedEvent{
				BatchID:   batch.ID,
				OrderID:   order.ID,
				OrderCode: order.Code,
			},
			Version:    1,
			OccurredAt: now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queueing order event")
		}

		confirmation = &OrderConfirmation{
			OrderID:     order.ID,
			Code:        order.Code,
			TotalAmount: total,
		}
		return nil
	})
	if err != nil {
		s.recordRejection(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncAccepted(string(scope))
	}
	logCtx := s.logg.WithOrderCode(ctx, confirmation.Code)
	logCtx = s.logg.WithBatchID(logCtx, input.BatchID.String())
	s.logg.Info(logCtx, "order placed")
	return confirmation, nil
}

// createOrderWithCode inserts the order, regenerating the code on a unique
// violation. The insert runs under a savepoint so a collision does not poison
// the surrounding transaction.
func (s *service) createOrderWithCode(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, scope enums.BatchScope, now time.Time) error {
	var lastErr error
	for attempt := 0; attempt < s.codeMaxAttempts; attempt++ {
		code, err := newOrderCode(scope, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeCodeGeneration, err, "generating order code")
		}
		order.Code = code

		if err := tx.SavePoint(orderCodeSavepoint).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating savepoint")
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "ux_orders_code") {
				if rbErr := tx.RollbackTo(orderCodeSavepoint).Error; rbErr != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, rbErr, "rolling back to savepoint")
				}
				lastErr = err
				continue
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting order")
		}
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeCodeGeneration, lastErr, "exhausted order code attempts")
}

// CancelOrder releases the order's claimed capacity. Already-cancelled orders
// are a no-op so retries and double-clicks stay safe.
func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order")
		}
		if order.Status == enums.OrderStatusCancelled {
			return nil
		}

		if err := repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating order status")
		}

		now := s.now().UTC()
		totalQty := 0
		for _, item := range order.Items {
			alloc, err := repo.IncrementAllocation(ctx, order.BatchID, item.ProductID, -item.Quantity)
			if err != nil {
				return err
			}
			totalQty += item.Quantity

			productID := item.ProductID
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventProgressUpdated,
				AggregateType: enums.AggregateBatch,
				AggregateID:   order.BatchID,
				Data: outbox.ProgressUpdatedEvent{
					BatchID:     order.BatchID,
					ProductID:   &productID,
					NewValue:    alloc.CurrentVials,
					TargetVials: alloc.TargetVials,
				},
				Version:    1,
				OccurredAt: now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queueing progress event")
			}
		}

		if err := repo.AddBatchVials(ctx, order.BatchID, -totalQty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating batch counters")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateBatch,
			AggregateID:   order.BatchID,
			Data: outbox.OrderCancelledEvent{
				BatchID:   order.BatchID,
				OrderID:   order.ID,
				OrderCode: order.Code,
			},
			Version:    1,
			OccurredAt: now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queueing order event")
		}

		logCtx := s.logg.WithOrderCode(ctx, order.Code)
		s.logg.Info(logCtx, "order cancelled")
		return nil
	})
	return err
}

func (s *service) GetOrderByCode(ctx context.Context, code string) (*models.Order, error) {
	order, err := s.repo.FindOrderByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order")
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, batchID uuid.UUID, params pagination.Params) (*OrderPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	orders, err := s.repo.ListOrders(ctx, batchID, limit+1, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing orders")
	}

	page := &OrderPage{Orders: orders}
	if len(orders) > limit {
		page.Orders = orders[:limit]
		last := page.Orders[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

func validatePlaceOrder(input PlaceOrderInput) error {
	if input.BatchID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "batch id is required")
	}
	if input.CustomerName == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer name is required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order needs at least one item")
	}
	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
		if _, dup := seen[item.ProductID]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in order").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

func (s *service) recordRejection(err error) {
	if s.metrics == nil {
		return
	}
	reason := string(pkgerrors.CodeInternal)
	if typed := pkgerrors.As(err); typed != nil {
		reason = string(typed.Code())
	}
	s.metrics.IncRejected(reason)
}
