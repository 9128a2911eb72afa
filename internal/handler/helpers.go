package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/boddenberg/travel-crm-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// missingFieldsResponse is the 422 body of a blocked forward transition.
type missingFieldsResponse struct {
	Error         string            `json:"error"`
	Code          string            `json:"code"`
	MissingFields []string          `json:"missing_fields"`
	From          domain.LeadStatus `json:"from"`
	To            domain.LeadStatus `json:"to"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

func parseLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// normalizeNumbers turns json.Number values of a decoded patch into float64.
func normalizeNumbers(patch map[string]any) {
	for k, v := range patch {
		if n, ok := v.(json.Number); ok {
			if f, err := n.Float64(); err == nil {
				patch[k] = f
			}
		}
	}
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var missing *domain.ErrMissingFields
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var invalidTransition *domain.ErrInvalidTransition
	var circuitOpen *domain.ErrCircuitOpen
	var persistence *domain.ErrPersistence
	var external *domain.ErrExternalService
	var unauthorized *domain.ErrUnauthorized
	var suspended *domain.ErrAccountSuspended
	var pending *domain.ErrPendingApproval
	var forbidden *domain.ErrForbidden
	var conflict *domain.ErrConflict

	switch {
	case errors.As(err, &missing):
		logger.Debug("transition blocked", zap.Strings("missing", missing.MissingFields))
		writeJSON(w, http.StatusUnprocessableEntity, missingFieldsResponse{
			Error:         "missing required fields",
			Code:          "missing_fields",
			MissingFields: missing.MissingFields,
			From:          missing.From,
			To:            missing.To,
		})
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &invalidTransition):
		logger.Debug("invalid transition", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &persistence):
		logger.Error("save failed", zap.String("operation", persistence.Operation), zap.Error(persistence.Err))
		writeErrorCode(w, http.StatusBadGateway, "save_failed", "save failed, retry")
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(external.Err))
		writeError(w, http.StatusBadGateway, "upstream service error")
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &suspended):
		logger.Warn("suspended account", zap.String("profile_id", suspended.ProfileID))
		writeErrorCode(w, http.StatusUnauthorized, "account_suspended", err.Error())
	case errors.As(err, &pending):
		logger.Debug("pending approval", zap.String("profile_id", pending.ProfileID))
		writeErrorCode(w, http.StatusForbidden, "pending_approval", err.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
