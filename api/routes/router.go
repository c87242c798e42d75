package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cartavio/imagesync-backend/api/controllers"
	"github.com/cartavio/imagesync-backend/api/middleware"
	"github.com/cartavio/imagesync-backend/pkg/config"
	"github.com/cartavio/imagesync-backend/pkg/logger"
)

// Services bundles the domain surfaces the router exposes.
type Services struct {
	Sync       controllers.SyncService
	Runner     controllers.BatchRunner
	Batches    controllers.BatchReader
	Gallery    controllers.GalleryService
	Reconciler controllers.Reconciler
	URLRepair  controllers.URLRepairer
	ImportUndo controllers.ImportUndoer
}

// NewRouter assembles the HTTP surface. Every /api/v1 route is tenant
// scoped through the X-User-ID header set by the gateway.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	services Services,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	r.Get("/healthz", controllers.HealthLive(cfg))

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Tenant(logg))

		r.Route("/products/{productID}", func(r chi.Router) {
			r.Post("/sync", controllers.SyncProduct(services.Sync, logg))
			r.Post("/requeue", controllers.RequeueProduct(services.Sync, logg))

			r.Route("/gallery", func(r chi.Router) {
				r.Get("/", controllers.ListGallery(services.Gallery, services.Sync, logg))
				r.Post("/", controllers.AddGalleryImage(services.Gallery, services.Sync, logg))
				r.Put("/order", controllers.ReorderGallery(services.Gallery, services.Sync, logg))
				r.Post("/{imageID}/cover", controllers.SetGalleryCover(services.Gallery, services.Sync, logg))
				r.Delete("/{imageID}", controllers.DeleteGalleryImage(services.Gallery, services.Sync, logg))
			})
		})

		r.Route("/sync", func(r chi.Router) {
			r.Post("/run", controllers.RunSyncBatch(services.Runner, logg))
			r.Get("/batches/{batchID}", controllers.GetSyncBatch(services.Batches, logg))
		})

		r.Route("/maintenance", func(r chi.Router) {
			r.Get("/reconcile", controllers.ReconcileReport(services.Reconciler, logg))
			r.Post("/reconcile", controllers.ReconcileApply(services.Reconciler, logg))
			r.Post("/repair-urls", controllers.RepairURLs(services.URLRepair, logg))
			r.Post("/import-undo", controllers.ImportUndo(services.ImportUndo, logg))
		})
	})

	return r
}
