package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"meridian/banking-api/internal/admission"
	"meridian/banking-api/internal/domain"
	"meridian/banking-api/internal/export"
	"meridian/banking-api/internal/metrics"
)

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	controller *admission.Controller
}

// NewHandler creates a Handler wired to the given admission controller.
func NewHandler(c *admission.Controller) *Handler {
	return &Handler{controller: c}
}

// ─── POST /api/v1/transactions ────────────────────────────────────────────────

// submitRequest is the submission payload. Amount accepts a JSON number or a
// quoted decimal string. Fields carries the kind-specific form values; the
// sensitive ones never make it past admission.
type submitRequest struct {
	Kind        domain.Kind       `json:"kind"`
	Amount      decimal.Decimal   `json:"amount"`
	Fields      map[string]string `json:"fields"`
	Location    string            `json:"location"`
	Description string            `json:"description"`
	Phone       string            `json:"phone"`
}

// committedResponse is the payload for a committed transaction, on both the
// direct and the verified step-up path.
type committedResponse struct {
	Status      string              `json:"status"`
	Transaction *domain.Transaction `json:"transaction"`
	Flagged     bool                `json:"flagged"`
	Message     string              `json:"message"`
}

// SubmitTransaction runs the admission pipeline for a submitted transaction
// and maps the outcome: 201 committed, 202 held for step-up, or an error
// status per rejection reason.
func (h *Handler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}

	draft := domain.Draft{
		Kind:        req.Kind,
		Amount:      req.Amount,
		Fields:      req.Fields,
		Location:    req.Location,
		Description: req.Description,
	}

	res := h.controller.Submit(r.Context(), sessionFrom(r), draft, req.Phone)
	switch res.Status {
	case admission.StatusCommitted:
		created(w, committedResponse{
			Status:      string(res.Status),
			Transaction: res.Transaction,
			Flagged:     res.Flagged,
			Message:     commitMessage(res.Flagged),
		})

	case admission.StatusStepUpRequired:
		accepted(w, map[string]string{
			"status":  string(res.Status),
			"message": "a one-time code has been sent; verify it to complete the transaction",
		})

	case admission.StatusRejected:
		switch res.Reason {
		case domain.ReasonChallengeDeliveryFailed:
			badGateway(w, "CHALLENGE_DELIVERY_FAILED", "failed to send the one-time code, please try again")
		case domain.ReasonClassifierUnavailable:
			serviceUnavailable(w, "CLASSIFIER_UNAVAILABLE", "risk screening is temporarily unavailable")
		default:
			badRequest(w, "VALIDATION_ERROR", res.Detail)
		}

	default:
		internalError(w)
	}
}

// ─── POST /api/v1/transactions/verify ─────────────────────────────────────────

// VerifyChallenge checks a submitted one-time code against the session's
// outstanding challenge.
func (h *Handler) VerifyChallenge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}

	res, err := h.controller.Verify(r.Context(), sessionFrom(r), req.Code)
	if err != nil {
		if errors.Is(err, admission.ErrClassifierUnavailable) {
			serviceUnavailable(w, "CLASSIFIER_UNAVAILABLE",
				"risk screening is temporarily unavailable; your code is still valid")
			return
		}
		internalError(w)
		return
	}

	switch res.Status {
	case domain.VerifyCommitted:
		created(w, committedResponse{
			Status:      string(res.Status),
			Transaction: res.Transaction,
			Flagged:     res.Flagged,
			Message:     commitMessage(res.Flagged),
		})
	case domain.VerifyRetry:
		unauthorized(w, "CHALLENGE_MISMATCH", "invalid code, please try again")
	case domain.VerifyNoActiveChallenge:
		conflict(w, "NO_ACTIVE_CHALLENGE", "no pending transaction requires verification")
	default:
		internalError(w)
	}
}

// ─── GET /api/v1/transactions ─────────────────────────────────────────────────

// ListTransactions returns the session ledger in commit order.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs := sessionFrom(r).Transactions()
	ok(w, map[string]any{
		"transactions": txs,
		"count":        len(txs),
	})
}

// ─── GET /api/v1/metrics ──────────────────────────────────────────────────────

// GetMetrics aggregates the session ledger into a summary report.
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	ok(w, metrics.Compute(sessionFrom(r).Transactions()))
}

// ─── GET /api/v1/export ───────────────────────────────────────────────────────

// ExportLedger streams the session ledger as a CSV attachment.
func (h *Handler) ExportLedger(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.Filename))

	if err := export.WriteCSV(w, sessionFrom(r).Transactions()); err != nil {
		// Header already sent; the client sees a truncated file.
		_ = err
	}
}

// ─── POST /api/v1/session/reset ───────────────────────────────────────────────

// ResetSession discards the session's ledger, pending transaction, and
// challenge together. The session cookie stays valid.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r).Reset()
	ok(w, map[string]string{"status": "reset"})
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func commitMessage(flagged bool) string {
	if flagged {
		return "transaction completed but flagged as suspicious"
	}
	return "transaction completed successfully"
}
