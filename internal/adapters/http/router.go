package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/brightcast/ppv-access-service/internal/application"
	"github.com/brightcast/ppv-access-service/internal/ports"
)

type Handler struct {
	service  *application.Service
	identity ports.IdentityVerifier
}

func NewHandler(service *application.Service, identity ports.IdentityVerifier) *Handler {
	return &Handler{service: service, identity: identity}
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok", nil) })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ready", nil) })
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// The payment processor authenticates with a signed payload, not a bearer token.
		r.Post("/webhooks/payments", handler.processorWebhook)

		r.Get("/events", handler.listEvents)
		r.Get("/events/{event_id}", handler.getEvent)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/checkout", handler.initiateCheckout)
			r.Get("/events/{event_id}/access", handler.checkAccess)
			r.Get("/events/{event_id}/stream", handler.streamURL)
			r.Get("/user/purchases", handler.listUserPurchases)
		})
	})
	return r
}
