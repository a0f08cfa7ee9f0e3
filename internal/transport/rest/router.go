package rest

import (
	"database/sql"
	"log/slog"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/rentpay/internal/auth"
	"github.com/frahmantamala/rentpay/internal/payment"
	"github.com/frahmantamala/rentpay/internal/transport/middleware"
)

// RegisterAllRoutes wires the HTTP surface. The webhook route is
// public: the gateway authenticates with its body signature, not a
// bearer token. Everything else under /payments requires auth.
func RegisterAllRoutes(router *chi.Mux, db *sql.DB, gatewayPinger GatewayPinger, paymentHandler *payment.Handler, webhookHandler *payment.WebhookHandler, tokenValidator *auth.TokenValidator, allowedOrigins string, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, gatewayPinger)

	router.Use(middleware.CORS(allowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if webhookHandler != nil {
			r.Post("/webhook/gateway", webhookHandler.HandleGatewayWebhook)
		}

		if paymentHandler != nil {
			r.Route("/payments", func(sr chi.Router) {
				sr.Use(tokenValidator.Middleware)
				sr.Post("/initiate", paymentHandler.Initiate)
				sr.Get("/{id}/status", paymentHandler.GetStatus)
			})
		}
	})
}
