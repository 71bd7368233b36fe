package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/campassistant/campassistant/internal/accounts"
	"github.com/campassistant/campassistant/internal/attendance"
	"github.com/campassistant/campassistant/internal/observability"
	"github.com/campassistant/campassistant/internal/packinglist"
	"github.com/campassistant/campassistant/internal/roles"
	"github.com/campassistant/campassistant/internal/supervision"
	"github.com/campassistant/campassistant/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Accounts           *accounts.Service
	RolesHandler       *roles.Handler
	AccountsHandler    *accounts.Handler
	SupervisionHandler *supervision.Handler
	AttendanceHandler  *attendance.Handler
	PackingListHandler *packinglist.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with roster defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Accounts: params.Accounts,
		Metrics:  params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.RolesHandler != nil {
		r.Route("/api/roles", params.RolesHandler.MountRoutes)
	}
	if params.AccountsHandler != nil {
		r.Route("/api/users", params.AccountsHandler.MountRoutes)
	}
	if params.SupervisionHandler != nil {
		r.Route("/api/supervision", params.SupervisionHandler.MountRoutes)
	}
	if params.AttendanceHandler != nil {
		r.Route("/api/meetings", params.AttendanceHandler.MountMeetingRoutes)
		r.Route("/api/attendance", params.AttendanceHandler.MountRecordRoutes)
	}
	if params.PackingListHandler != nil {
		r.Route("/api/packing-list", params.PackingListHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
