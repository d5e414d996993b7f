package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vialshare/vialshare-backend/api/responses"
	"github.com/vialshare/vialshare-backend/api/validators"
	"github.com/vialshare/vialshare-backend/internal/allocation"
	pkgerrors "github.com/vialshare/vialshare-backend/pkg/errors"
	"github.com/vialshare/vialshare-backend/pkg/logger"
)

// OrdersController exposes order placement, cancellation and code lookup.
type OrdersController struct {
	logg       *logger.Logger
	allocation allocation.Service
}

func NewOrdersController(logg *logger.Logger, allocationSvc allocation.Service) *OrdersController {
	return &OrdersController{logg: logg, allocation: allocationSvc}
}

type orderItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

type placeOrderRequest struct {
	BatchID         uuid.UUID          `json:"batchId" validate:"required"`
	CustomerName    string             `json:"customerName" validate:"required,max=200"`
	CustomerContact string             `json:"customerContact" validate:"max=200"`
	Items           []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (c *OrdersController) Place(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	input := allocation.PlaceOrderInput{
		BatchID:         req.BatchID,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerContact: strings.TrimSpace(req.CustomerContact),
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, allocation.OrderItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	confirmation, err := c.allocation.PlaceOrder(r.Context(), input)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccessStatus(w, http.StatusCreated, confirmation)
}

func (c *OrdersController) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathUUID(r, "orderID")
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	if err := c.allocation.CancelOrder(r.Context(), orderID); err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
}

func (c *OrdersController) GetByCode(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		responses.WriteError(r.Context(), c.logg, w,
			pkgerrors.New(pkgerrors.CodeValidation, "order code is required"))
		return
	}

	order, err := c.allocation.GetOrderByCode(r.Context(), code)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, order)
}
