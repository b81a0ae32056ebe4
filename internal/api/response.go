// Package api contains the HTTP layer: routing, session resolution, request
// binding, and response formatting.
package api

import (
	"encoding/json"
	"net/http"
)

// ─── Response envelope ────────────────────────────────────────────────────────

// envelope is the standard wrapper for all API responses.
// Success responses set `error` to nil; error responses set `data` to nil.
type envelope struct {
	Data  any       `json:"data,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ─── Response helpers ─────────────────────────────────────────────────────────

// writeJSON serialises v into the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; nothing left to do for the client.
		_ = err
	}
}

// ok writes a 200 response with the payload wrapped in the standard envelope.
func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

// created writes a 201 response.
func created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Data: data})
}

// accepted writes a 202 response; used when a transaction is held for
// step-up rather than committed.
func accepted(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusAccepted, envelope{Data: data})
}

// badRequest writes a 400 error response.
func badRequest(w http.ResponseWriter, code, message string) {
	writeJSON(w, http.StatusBadRequest, envelope{Error: &apiError{Code: code, Message: message}})
}

// unauthorized writes a 401 error response; used for challenge mismatches.
func unauthorized(w http.ResponseWriter, code, message string) {
	writeJSON(w, http.StatusUnauthorized, envelope{Error: &apiError{Code: code, Message: message}})
}

// conflict writes a 409 error response.
func conflict(w http.ResponseWriter, code, message string) {
	writeJSON(w, http.StatusConflict, envelope{Error: &apiError{Code: code, Message: message}})
}

// badGateway writes a 502 error response; used when challenge delivery to
// the external channel fails.
func badGateway(w http.ResponseWriter, code, message string) {
	writeJSON(w, http.StatusBadGateway, envelope{Error: &apiError{Code: code, Message: message}})
}

// serviceUnavailable writes a 503 error response; used when the risk
// classifier cannot produce a verdict.
func serviceUnavailable(w http.ResponseWriter, code, message string) {
	writeJSON(w, http.StatusServiceUnavailable, envelope{Error: &apiError{Code: code, Message: message}})
}

// internalError writes a 500 error response.
func internalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, envelope{
		Error: &apiError{Code: "INTERNAL_ERROR", Message: "an unexpected error occurred"},
	})
}
