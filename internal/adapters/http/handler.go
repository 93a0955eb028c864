package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/brightcast/ppv-access-service/internal/application"
	"github.com/brightcast/ppv-access-service/internal/contracts"
	"github.com/brightcast/ppv-access-service/internal/domain"
)

// maxWebhookBody bounds the processor notification payload read.
const maxWebhookBody = 1 << 20

func (h *Handler) initiateCheckout(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	var req contracts.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	out, err := h.service.InitiateCheckout(r.Context(), identity, application.CheckoutInput{EventID: req.EventID})
	if err != nil {
		status, code := mapDomainError(err)
		logHTTPOperationError(r.Context(), "initiate_checkout", status, code, err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusCreated, "", contracts.CheckoutResponse{
		SessionID:   out.SessionID,
		RedirectURL: out.RedirectURL,
	})
}

func (h *Handler) processorWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "unreadable payload", requestIDFromContext(r.Context()))
		return
	}
	signature := r.Header.Get("Processor-Signature")
	if err := h.service.HandleNotification(r.Context(), payload, signature); err != nil {
		status, code := mapDomainError(err)
		logHTTPOperationError(r.Context(), "processor_webhook", status, code, err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]bool{"received": true})
}

func (h *Handler) checkAccess(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	eventID := chi.URLParam(r, "event_id")
	decision := h.service.EvaluateAccess(r.Context(), identity, eventID)
	writeSuccess(w, http.StatusOK, "", contracts.AccessResponse{
		HasAccess: decision.HasAccess,
		EventID:   decision.EventID,
	})
}

func (h *Handler) streamURL(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	eventID := chi.URLParam(r, "event_id")
	auth, err := h.service.AuthorizeStream(r.Context(), identity, eventID)
	if err != nil {
		status, code := mapDomainError(err)
		logHTTPOperationError(r.Context(), "stream_url", status, code, err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", contracts.StreamURLResponse{
		StreamURL: auth.StreamURL,
		EventID:   auth.EventID,
	})
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event_id")
	event, err := h.service.GetEvent(r.Context(), eventID)
	if err != nil {
		status, code := mapDomainError(err)
		logHTTPOperationError(r.Context(), "get_event", status, code, err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", toEventDTO(event))
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ListEvents(r.Context())
	if err != nil {
		status, code := mapDomainError(err)
		logHTTPOperationError(r.Context(), "list_events", status, code, err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	out := make([]contracts.EventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, toEventDTO(event))
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{"events": out})
}

func (h *Handler) listUserPurchases(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	limit := parseIntOrDefault(r.URL.Query().Get("limit"), 20)
	offset := parseIntOrDefault(r.URL.Query().Get("offset"), 0)
	records, total, err := h.service.ListUserPurchases(r.Context(), identity, limit, offset)
	if err != nil {
		status, code := mapDomainError(err)
		logHTTPOperationError(r.Context(), "list_user_purchases", status, code, err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	out := make([]contracts.PurchaseDTO, 0, len(records))
	for _, record := range records {
		out = append(out, toPurchaseDTO(record))
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"purchases": out,
		"pagination": contracts.Pagination{
			Limit:  limit,
			Offset: offset,
			Total:  total,
		},
	})
}

func toEventDTO(event domain.Event) contracts.EventDTO {
	return contracts.EventDTO{
		EventID:          event.EventID,
		Title:            event.Title,
		ShortDescription: event.ShortDescription,
		Price:            event.Price,
		Currency:         event.Currency,
		IsPPV:            event.IsPPV,
		StreamStatus:     string(event.StreamStatus),
		StartsAt:         event.StartsAt,
	}
}

func toPurchaseDTO(record domain.PurchaseRecord) contracts.PurchaseDTO {
	return contracts.PurchaseDTO{
		PurchaseID:  record.PurchaseID,
		EventID:     record.EventID,
		Status:      string(record.Status),
		Amount:      record.Amount,
		Currency:    record.Currency,
		CreatedAt:   record.CreatedAt,
		CompletedAt: record.CompletedAt,
	}
}

func parseIntOrDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
