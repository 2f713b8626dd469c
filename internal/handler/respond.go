// Package handler exposes the ledger over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/middleware"
	"github.com/simonkvalheim/fjord-ledger/internal/model"
)

// statusByKind maps domain error kinds to HTTP statuses
var statusByKind = map[model.ErrorKind]int{
	model.KindNotFound:          http.StatusNotFound,
	model.KindInsufficientFunds: http.StatusUnprocessableEntity,
	model.KindUnauthorized:      http.StatusForbidden,
	model.KindInvalidDateFilter: http.StatusBadRequest,
	model.KindNoRecords:         http.StatusNotFound,
	model.KindValidation:        http.StatusBadRequest,
	model.KindConflict:          http.StatusConflict,
	model.KindInternal:          http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for an error returned by the core
func StatusFor(err error) int {
	// Bad credentials are an authentication failure, not a permission one
	if errors.Is(err, model.ErrInvalidCredentials) || errors.Is(err, model.ErrInvalidToken) {
		return http.StatusUnauthorized
	}
	if status, ok := statusByKind[model.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeDomainError writes err with its mapped status. Internal errors are
// logged and never shown to the caller.
func writeDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		writeError(w, status, "internal server error")
		return
	}

	var de *model.Error
	if errors.As(err, &de) {
		writeJSON(w, status, map[string]string{"error": de.Message, "kind": string(de.Kind)})
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads the request body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// principal returns the authenticated caller, writing 401 when there is none
func principal(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok || p.UserID == uuid.Nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return model.Principal{}, false
	}
	return p, true
}

// uuidParam parses a path or query value as a UUID, writing 400 on failure
func uuidParam(w http.ResponseWriter, value, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+what+" format")
		return uuid.Nil, false
	}
	return id, true
}

// emptyIfNil keeps list endpoints from returning null
func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
