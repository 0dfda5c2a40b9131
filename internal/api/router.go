package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/medconnect/internal/account"
	"github.com/hackgods/medconnect/internal/appointment"
)

type RouterConfig struct {
	Ledger   *appointment.Ledger
	Registry *account.Registry
	PgPool   *pgxpool.Pool // optional
	Redis    *redis.Client // optional
	Logger   *zap.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Accounts
	r.Post("/users", registerHandler(cfg.Registry))
	r.Post("/sessions", loginHandler(cfg.Registry))
	r.Delete("/sessions", logoutHandler(cfg.Registry))

	// Routing and inventory, open to everyone
	r.Get("/symptoms", listSymptomsHandler())
	r.Post("/diagnoses", diagnoseHandler())
	r.Get("/hospitals", listHospitalsHandler(cfg.Ledger))
	r.Get("/hospitals/{name}/beds", availableBedsHandler(cfg.Ledger))

	r.Group(func(r chi.Router) {
		r.Use(RequireRole(cfg.Registry, account.RolePatient))
		r.Post("/appointments", createAppointmentHandler(cfg.Ledger))
		r.Get("/me/appointments", myAppointmentsHandler(cfg.Ledger))
		r.Get("/me/reports", myReportsHandler(cfg.Ledger))
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireRole(cfg.Registry, account.RoleDoctor))
		r.Get("/appointments", listAppointmentsHandler(cfg.Ledger))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Ledger))
		r.Get("/appointments/{id}/events", appointmentEventsHandler(cfg.Ledger))
		r.Post("/appointments/{id}/accept", acceptAppointmentHandler(cfg.Ledger))
		r.Post("/appointments/{id}/decline", declineAppointmentHandler(cfg.Ledger))
		r.Put("/appointments/{id}/report", attachReportHandler(cfg.Ledger))
		r.Post("/appointments/{id}/bed", allocateBedHandler(cfg.Ledger))
		r.Delete("/appointments/{id}/bed", dischargeBedHandler(cfg.Ledger))
	})

	return r
}
