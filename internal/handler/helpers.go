package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error  string         `json:"error"`
	Banner *domain.Banner `json:"banner,omitempty"`
}

type bannerResponse struct {
	Banner *domain.Banner `json:"banner"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Banner: domain.ErrorBanner(msg)})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads the body into v, answering 400 on malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	writeServiceError(w, err, nil, logger)
}

// writeServiceError is handleServiceError with the banner the flow already
// chose. A nil banner is derived from err.
func writeServiceError(w http.ResponseWriter, err error, banner *domain.Banner, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var validation *domain.ErrValidation
	var forbidden *domain.ErrForbidden
	var unauthorized *domain.ErrUnauthorized
	var conflict *domain.ErrConflict
	var external *domain.ErrExternalService

	status := http.StatusInternalServerError
	msg := service.UserMessage(err)

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		status = http.StatusBadRequest
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		status = http.StatusUnauthorized
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		status = http.StatusForbidden
		msg = "You do not have access to this page."
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		status = http.StatusNotFound
		msg = err.Error()
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		status = http.StatusConflict
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		status = http.StatusServiceUnavailable
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		status = http.StatusGatewayTimeout
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(err))
		status = http.StatusBadGateway
	default:
		logger.Error("unhandled error", zap.Error(err))
		msg = "internal server error"
	}

	if banner == nil {
		banner = domain.ErrorBanner(msg)
	}
	writeJSON(w, status, errorResponse{Error: msg, Banner: banner})
}

func isValidation(err error) bool {
	var v *domain.ErrValidation
	return errors.As(err, &v)
}
