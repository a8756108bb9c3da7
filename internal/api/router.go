package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hackgods/staff-queue-scheduling/internal/scheduling"
)

// SchedulingService is the engine surface the HTTP layer drives.
type SchedulingService interface {
	ListWaiting(ctx context.Context, ownerID uuid.UUID) ([]scheduling.Appointment, error)
	AssignFromQueue(ctx context.Context, ownerID, staffID uuid.UUID) (*scheduling.Appointment, error)
	Book(ctx context.Context, ownerID uuid.UUID, req scheduling.BookRequest) (*scheduling.BookResult, error)
	Cancel(ctx context.Context, ownerID, id uuid.UUID) (*scheduling.Appointment, error)
	Complete(ctx context.Context, ownerID, id uuid.UUID) (*scheduling.Appointment, error)
	CheckEligibility(ctx context.Context, ownerID, staffID, appointmentID uuid.UUID) error
	StaffLoad(ctx context.Context, ownerID uuid.UUID, day time.Time) ([]scheduling.StaffLoad, error)
	DaySummary(ctx context.Context, ownerID uuid.UUID, day time.Time) (*scheduling.DaySummary, error)
	RecentEvents(ctx context.Context, ownerID uuid.UUID, limit int) ([]scheduling.EventLog, error)
}

type RouterConfig struct {
	Service SchedulingService
	Health  *HealthHandler
	Logger  *slog.Logger
	// Location resolves the ?date= parameter of the load and day summaries.
	Location *time.Location
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	h := &handlers{svc: cfg.Service, logger: cfg.Logger, loc: cfg.Location}

	r.Route("/owners/{ownerID}", func(r chi.Router) {
		r.Get("/queue", h.listQueue)
		r.Post("/queue/assign", h.assignFromQueue)

		r.Post("/appointments", h.bookAppointment)
		r.Post("/appointments/{id}/cancel", h.cancelAppointment)
		r.Post("/appointments/{id}/complete", h.completeAppointment)

		r.Get("/summary", h.daySummary)
		r.Get("/events", h.recentEvents)

		r.Get("/staff/load", h.staffLoad)
		r.Get("/staff/{staffID}/eligibility/{appointmentID}", h.checkEligibility)
	})

	return otelhttp.NewHandler(r, "api-server")
}
