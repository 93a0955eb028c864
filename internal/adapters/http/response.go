package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/brightcast/ppv-access-service/internal/contracts"
	"github.com/brightcast/ppv-access-service/internal/domain"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	writeJSON(w, statusCode, contracts.SuccessResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message, requestID string) {
	writeJSON(w, statusCode, contracts.ErrorResponse{
		Status: "error",
		Error: contracts.ErrorPayload{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}

func mapDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden, "access_denied"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrNotPurchasable):
		return http.StatusBadRequest, "not_purchasable"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid_signature"
	case errors.Is(err, domain.ErrEventEnded):
		return http.StatusConflict, "event_ended"
	case errors.Is(err, domain.ErrAlreadyOwned):
		return http.StatusConflict, "already_owned"
	case errors.Is(err, domain.ErrStreamNotLive):
		return http.StatusConflict, "stream_not_live"
	case errors.Is(err, domain.ErrProcessorUnavailable):
		return http.StatusBadGateway, "processor_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
