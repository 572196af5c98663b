package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/PettaPuang/nozzle.website-sub003/internal/audit"
	"github.com/PettaPuang/nozzle.website-sub003/internal/auth"
	"github.com/PettaPuang/nozzle.website-sub003/internal/ledger"
	"github.com/PettaPuang/nozzle.website-sub003/internal/observability"
	"github.com/PettaPuang/nozzle.website-sub003/internal/purchases"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shifts"
	"github.com/PettaPuang/nozzle.website-sub003/internal/stations"
	"github.com/PettaPuang/nozzle.website-sub003/internal/tanks"
	"github.com/PettaPuang/nozzle.website-sub003/internal/uploads"
	"github.com/PettaPuang/nozzle.website-sub003/internal/users"
	"github.com/PettaPuang/nozzle.website-sub003/internal/view"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	StationsHandler  *stations.Handler
	PurchasesHandler *purchases.Handler
	TanksHandler     *tanks.Handler
	ShiftsHandler    *shifts.Handler
	LedgerHandler    *ledger.Handler
	ViewHandler      *view.Handler
	UploadsHandler   *uploads.Handler
	AuditHandler     *audit.Handler
	UploadsDir       string
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.UploadsDir != "" {
		fileServer := http.StripPrefix("/files/", http.FileServer(http.Dir(params.UploadsDir)))
		r.Get("/files/*", fileServer.ServeHTTP)
	}

	r.Route("/api", func(api chi.Router) {
		params.AuthHandler.MountRoutes(api)
		params.UsersHandler.MountRoutes(api)
		params.StationsHandler.MountRoutes(api)
		params.PurchasesHandler.MountRoutes(api)
		params.TanksHandler.MountRoutes(api)
		params.ShiftsHandler.MountRoutes(api)
		params.LedgerHandler.MountRoutes(api)
		params.ViewHandler.MountRoutes(api)
		params.UploadsHandler.MountRoutes(api)
		params.AuditHandler.MountRoutes(api)
	})

	return r
}
