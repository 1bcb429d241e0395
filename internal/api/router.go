package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/citaflow/citaflow/internal/booking"
	"github.com/citaflow/citaflow/internal/whatsapp"
)

type RouterConfig struct {
	Service *booking.Service
	Webhook *whatsapp.WebhookHandler
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  *zap.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/api", func(r chi.Router) {
		r.Post("/businesses", registerBusinessHandler(cfg.Service))
		r.Put("/businesses/{id}/hours", replaceHoursHandler(cfg.Service))

		r.Route("/public/{slug}", func(r chi.Router) {
			r.Get("/services", listServicesHandler(cfg.Service))
			r.Get("/availability", availabilityHandler(cfg.Service))
			r.Post("/book", bookAppointmentHandler(cfg.Service))
		})

		r.Route("/appointments/{id}", func(r chi.Router) {
			r.Get("/", getAppointmentHandler(cfg.Service))
			r.Post("/confirm", transitionHandler(func(req *http.Request, id uuid.UUID) (*booking.Appointment, error) {
				return cfg.Service.Confirm(req.Context(), id)
			}))
			r.Post("/cancel", transitionHandler(func(req *http.Request, id uuid.UUID) (*booking.Appointment, error) {
				return cfg.Service.Cancel(req.Context(), id)
			}))
			r.Post("/complete", transitionHandler(func(req *http.Request, id uuid.UUID) (*booking.Appointment, error) {
				return cfg.Service.Complete(req.Context(), id)
			}))
			r.Post("/no-show", transitionHandler(func(req *http.Request, id uuid.UUID) (*booking.Appointment, error) {
				return cfg.Service.NoShow(req.Context(), id)
			}))
		})
	})

	if cfg.Webhook != nil {
		r.Get("/webhooks/whatsapp", cfg.Webhook.HandleVerification)
		r.Post("/webhooks/whatsapp", cfg.Webhook.HandleInbound)
	}

	return r
}
