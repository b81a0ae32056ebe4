// Package domain contains all core types used across the application.
// Keeping domain types in one place makes the admission rules easy to reason about.
package domain

import (
	"github.com/shopspring/decimal"
)

// ─── Constants ───────────────────────────────────────────────────────────────

// Kind identifies the category of a monetary action.
type Kind string

// Supported transaction kinds. The values double as display names so the
// ledger, metrics grouping, and CSV export all render the same label.
const (
	OnlineShopping Kind = "Online Shopping"
	FundTransfer   Kind = "Fund Transfer"
	AtmWithdrawal  Kind = "ATM Withdrawal"
)

// KindUnknown is the metrics bucket for transactions whose kind is missing
// or unrecognised. Aggregation groups them instead of failing.
const KindUnknown = "Unknown"

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case OnlineShopping, FundTransfer, AtmWithdrawal:
		return true
	}
	return false
}

// RejectReason classifies why an admission attempt was refused.
type RejectReason string

// Admission rejection reasons. All are recoverable: the user corrects input
// or retries the submission; no rejection mutates session state.
const (
	ReasonValidationError         RejectReason = "validation_error"
	ReasonChallengeDeliveryFailed RejectReason = "challenge_delivery_failed"
	ReasonClassifierUnavailable   RejectReason = "classifier_unavailable"
)

// VerifyStatus is the outcome of an OTP verification attempt.
type VerifyStatus string

const (
	VerifyCommitted         VerifyStatus = "committed"           // code matched, transaction recorded
	VerifyRetry             VerifyStatus = "retry"               // code mismatch, challenge still live
	VerifyNoActiveChallenge VerifyStatus = "no_active_challenge" // nothing pending for this session
)

// TimestampLayout is the wall-clock format stamped onto committed
// transactions and rendered in the CSV export.
const TimestampLayout = "2006-01-02 15:04:05"

// ─── Core domain types ────────────────────────────────────────────────────────

// Draft is a transaction as submitted, before admission. Identifier fields
// arrive raw in Fields and must not survive past admission: the controller
// masks or discards every sensitive value before anything is stored.
type Draft struct {
	Kind        Kind              `json:"kind"`
	Amount      decimal.Decimal   `json:"amount"`
	Fields      map[string]string `json:"fields"`
	Location    string            `json:"location"`
	Description string            `json:"description"`
}

// Transaction is the canonical ledger record. It is immutable once appended:
// Fraud is set exactly once by the risk classifier at commit time and never
// recomputed, and Masked holds only last-4 renditions of identifiers — the
// full card/account numbers, CVV, expiry, PIN, and phone are gone by then.
type Transaction struct {
	ID          string            `json:"id"`
	Kind        Kind              `json:"kind"`
	Amount      decimal.Decimal   `json:"amount"`
	Masked      map[string]string `json:"masked_identifiers"`
	Details     map[string]string `json:"details,omitempty"`
	Location    string            `json:"location,omitempty"`
	Description string            `json:"description,omitempty"`
	Timestamp   string            `json:"timestamp"`
	Fraud       bool              `json:"fraud"`
}

// ─── Masking ──────────────────────────────────────────────────────────────────

// Mask irreversibly truncates a sensitive identifier to its last four
// characters. Values of four characters or fewer are returned unchanged —
// there is nothing left to hide.
func Mask(v string) string {
	if len(v) <= 4 {
		return v
	}
	return v[len(v)-4:]
}

// ─── Metrics ──────────────────────────────────────────────────────────────────

// KindStats is the per-kind bucket in a metrics report.
type KindStats struct {
	Total int `json:"total"`
	Fraud int `json:"fraud"`
}

// Report is the aggregated view of a ledger snapshot.
type Report struct {
	TotalCount      int                  `json:"total_transactions"`
	FraudCount      int                  `json:"fraud_transactions"`
	FraudPercentage float64              `json:"fraud_percentage"`
	PerKind         map[string]KindStats `json:"types"`
	AvgAmount       decimal.Decimal      `json:"avg_amount"`
	MaxAmount       decimal.Decimal      `json:"max_amount"`
}
