package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vialshare/vialshare-backend/api/controllers"
	"github.com/vialshare/vialshare-backend/api/middleware"
	"github.com/vialshare/vialshare-backend/internal/allocation"
	"github.com/vialshare/vialshare-backend/internal/batches"
	"github.com/vialshare/vialshare-backend/internal/progress"
	"github.com/vialshare/vialshare-backend/internal/reconcile"
	"github.com/vialshare/vialshare-backend/pkg/config"
	"github.com/vialshare/vialshare-backend/pkg/logger"
)

// RouterParams carry everything the HTTP surface needs.
type RouterParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         controllers.Pinger
	Redis      controllers.Pinger
	Batches    batches.Service
	Allocation allocation.Service
	Progress   *progress.Service
	Reconcile  *reconcile.Service
}

// NewRouter wires middleware, health checks, metrics and the v1 API.
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer(p.Logger))
	r.Use(middleware.RequestID(p.Logger))
	r.Use(middleware.Logging(p.Logger))
	r.Use(middleware.CORS(p.Config.App.CORSOrigins))

	r.Get("/health/live", controllers.HealthLive(p.Config))
	r.Get("/health/ready", controllers.HealthReady(p.Config, p.Logger, p.DB, p.Redis))
	r.Handle("/metrics", promhttp.Handler())

	batchesCtrl := controllers.NewBatchesController(p.Logger, p.Batches, p.Allocation, p.Reconcile)
	ordersCtrl := controllers.NewOrdersController(p.Logger, p.Allocation)
	progressCtrl := controllers.NewProgressController(p.Logger, p.Progress)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/batches", func(r chi.Router) {
			r.Post("/", batchesCtrl.Create)
			r.Get("/", batchesCtrl.List)
			r.Route("/{batchID}", func(r chi.Router) {
				r.Get("/", batchesCtrl.Get)
				r.Post("/activate", batchesCtrl.Activate)
				r.Post("/transition", batchesCtrl.Transition)
				r.Post("/reconcile", batchesCtrl.Reconcile)
				r.Get("/orders", batchesCtrl.ListOrders)
				r.Get("/progress", progressCtrl.Snapshot)
				r.Get("/progress/stream", progressCtrl.Stream)
			})
		})
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordersCtrl.Place)
			r.Post("/{orderID}/cancel", ordersCtrl.Cancel)
			r.Get("/code/{code}", ordersCtrl.GetByCode)
		})
	})

	return r
}
