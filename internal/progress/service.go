package progress

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vialshare/vialshare-backend/pkg/db/models"
	"github.com/vialshare/vialshare-backend/pkg/enums"
	pkgerrors "github.com/vialshare/vialshare-backend/pkg/errors"
	"github.com/vialshare/vialshare-backend/pkg/logger"
	"github.com/vialshare/vialshare-backend/pkg/outbox"
)

const defaultSnapshotTTL = 30 * time.Second

// Event is one decoded change-feed frame. Events are hints: at-least-once,
// possibly lossy for slow consumers. Clients re-fetch a snapshot to get
// authoritative numbers.
type Event struct {
	Type       enums.OutboxEventType `json:"type"`
	BatchID    uuid.UUID             `json:"batchId"`
	OccurredAt time.Time             `json:"occurredAt"`
	Data       json.RawMessage       `json:"data"`
}

// ProductProgress is one allocation's counters at snapshot time.
type ProductProgress struct {
	ProductID    uuid.UUID       `json:"productId"`
	TargetVials  int             `json:"targetVials"`
	CurrentVials int             `json:"currentVials"`
	Remaining    int             `json:"remaining"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
}

// Snapshot is the authoritative per-product progress read from the ledger.
type Snapshot struct {
	BatchID      uuid.UUID         `json:"batchId"`
	Status       enums.BatchStatus `json:"status"`
	TargetVials  int               `json:"targetVials"`
	CurrentVials int               `json:"currentVials"`
	Products     []ProductProgress `json:"products"`
	TakenAt      time.Time         `json:"takenAt"`
}

type batchSource interface {
	FindBatchWithAllocations(ctx context.Context, id uuid.UUID) (*models.Batch, error)
}

type broker interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	ProgressChannel(batchID string) string
}

type snapshotCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SnapshotKey(batchID string) string
}

// Service reads authoritative progress and relays change-feed events.
type Service struct {
	logg        *logger.Logger
	batches     batchSource
	broker      broker
	cache       snapshotCache
	snapshotTTL time.Duration
	now         func() time.Time
}

// ServiceParams configure the progress service. Cache is optional; without
// it every snapshot hits the ledger.
type ServiceParams struct {
	Logger      *logger.Logger
	Batches     batchSource
	Broker      broker
	Cache       snapshotCache
	SnapshotTTL time.Duration
	Now         func() time.Time
}

// NewService builds the progress service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Batches == nil {
		return nil, errors.New("batch source is required")
	}
	if params.Broker == nil {
		return nil, errors.New("broker is required")
	}
	ttl := params.SnapshotTTL
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:        params.Logger,
		batches:     params.Batches,
		broker:      params.Broker,
		cache:       params.Cache,
		snapshotTTL: ttl,
		now:         now,
	}, nil
}

// Snapshot returns the batch's counters straight from the ledger, with a
// short-TTL cache in front. Cache failures degrade to a ledger read, never
// to an error.
func (s *Service) Snapshot(ctx context.Context, batchID uuid.UUID) (*Snapshot, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, s.cache.SnapshotKey(batchID.String())); err == nil && cached != "" {
			var snapshot Snapshot
			if err := json.Unmarshal([]byte(cached), &snapshot); err == nil {
				return &snapshot, nil
			}
		}
	}

	batch, err := s.batches.FindBatchWithAllocations(ctx, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "batch not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading batch")
	}

	snapshot := &Snapshot{
		BatchID:      batch.ID,
		Status:       batch.Status,
		TargetVials:  batch.TargetVials,
		CurrentVials: batch.CurrentVials,
		Products:     make([]ProductProgress, 0, len(batch.Allocations)),
		TakenAt:      s.now().UTC(),
	}
	for _, alloc := range batch.Allocations {
		snapshot.Products = append(snapshot.Products, ProductProgress{
			ProductID:    alloc.ProductID,
			TargetVials:  alloc.TargetVials,
			CurrentVials: alloc.CurrentVials,
			Remaining:    alloc.Remaining(),
			UnitPrice:    alloc.UnitPrice,
		})
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(snapshot); err == nil {
			if err := s.cache.Set(ctx, s.cache.SnapshotKey(batchID.String()), string(encoded), s.snapshotTTL); err != nil {
				s.logg.Warn(s.logg.WithBatchID(ctx, batchID.String()), "snapshot cache write failed")
			}
		}
	}
	return snapshot, nil
}

// Subscribe opens the batch's change-feed and returns decoded events until
// ctx is done. Frames that fail to decode are dropped with a warning.
func (s *Service) Subscribe(ctx context.Context, batchID uuid.UUID) (<-chan Event, error) {
	raw, err := s.broker.Subscribe(ctx, s.broker.ProgressChannel(batchID.String()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribing to change-feed")
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-raw:
				if !ok {
					return
				}
				var msg outbox.Message
				if err := json.Unmarshal(frame, &msg); err != nil {
					s.logg.Warn(s.logg.WithBatchID(ctx, batchID.String()), "dropping undecodable feed frame")
					continue
				}
				event := Event{
					Type:       msg.EventType,
					BatchID:    msg.AggregateID,
					OccurredAt: msg.Payload.OccurredAt,
					Data:       msg.Payload.Data,
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
