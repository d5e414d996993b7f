package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vialshare/vialshare-backend/api/responses"
	"github.com/vialshare/vialshare-backend/api/validators"
	"github.com/vialshare/vialshare-backend/internal/allocation"
	"github.com/vialshare/vialshare-backend/internal/batches"
	"github.com/vialshare/vialshare-backend/internal/reconcile"
	"github.com/vialshare/vialshare-backend/pkg/enums"
	pkgerrors "github.com/vialshare/vialshare-backend/pkg/errors"
	"github.com/vialshare/vialshare-backend/pkg/logger"
	"github.com/vialshare/vialshare-backend/pkg/pagination"
)

// BatchesController exposes lifecycle and order-listing routes for batches.
type BatchesController struct {
	logg       *logger.Logger
	batches    batches.Service
	allocation allocation.Service
	reconcile  *reconcile.Service
}

func NewBatchesController(logg *logger.Logger, batchesSvc batches.Service, allocationSvc allocation.Service, reconcileSvc *reconcile.Service) *BatchesController {
	return &BatchesController{
		logg:       logg,
		batches:    batchesSvc,
		allocation: allocationSvc,
		reconcile:  reconcileSvc,
	}
}

type createBatchItemRequest struct {
	ProductID   uuid.UUID `json:"productId" validate:"required"`
	TargetVials int       `json:"targetVials" validate:"required,gt=0"`
}

type createBatchRequest struct {
	Scope    string                   `json:"scope" validate:"required,oneof=group_buy sub_group"`
	HostID   *uuid.UUID               `json:"hostId"`
	StartsAt *time.Time               `json:"startsAt"`
	EndsAt   *time.Time               `json:"endsAt"`
	Items    []createBatchItemRequest `json:"items" validate:"required,min=1,dive"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
}

func (c *BatchesController) Create(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	input := batches.CreateBatchInput{
		Scope:    enums.BatchScope(req.Scope),
		HostID:   req.HostID,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, batches.BatchItemInput{
			ProductID:   item.ProductID,
			TargetVials: item.TargetVials,
		})
	}

	batch, err := c.batches.CreateBatch(r.Context(), input)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccessStatus(w, http.StatusCreated, batch)
}

func (c *BatchesController) Get(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathUUID(r, "batchID")
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	batch, err := c.batches.GetBatch(r.Context(), batchID)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, batch)
}

func (c *BatchesController) List(w http.ResponseWriter, r *http.Request) {
	var status *enums.BatchStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		candidate := enums.BatchStatus(raw)
		if !candidate.IsValid() {
			responses.WriteError(r.Context(), c.logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown batch status").
					WithDetails(map[string]any{"status": raw}))
			return
		}
		status = &candidate
	}

	list, err := c.batches.ListBatches(r.Context(), status)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, list)
}

func (c *BatchesController) Activate(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathUUID(r, "batchID")
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	batch, err := c.batches.Activate(r.Context(), batchID)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, batch)
}

func (c *BatchesController) Transition(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathUUID(r, "batchID")
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	var req transitionRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	batch, err := c.batches.Transition(r.Context(), batchID, enums.BatchStatus(req.Status))
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, batch)
}

func (c *BatchesController) Reconcile(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathUUID(r, "batchID")
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	drifts, err := c.reconcile.Reconcile(r.Context(), batchID)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	if drifts == nil {
		drifts = []reconcile.ProductDrift{}
	}
	responses.WriteSuccess(w, map[string]any{"repaired": drifts})
}

func (c *BatchesController) ListOrders(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathUUID(r, "batchID")
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	page, err := c.allocation.ListOrders(r.Context(), batchID, pagination.Params{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, page)
}
