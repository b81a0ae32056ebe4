// Package risk decides whether a committed transaction should carry a fraud
// flag.
//
// Architecture:
//   The Classifier is a one-method capability injected into the admission
//   controller, so alternative scoring strategies (rule-based, model-backed)
//   are swappable without touching admission logic. The classifier sees only
//   the masked transaction — raw identifiers and transport fields are gone
//   before scoring.
//
// Scoring philosophy of the default implementation:
//   Each rule contributes a non-negative delta; deltas are additive and the
//   transaction is flagged when the total reaches the suspicion threshold.
package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"meridian/banking-api/internal/domain"
)

// Classifier is the fraud-scoring capability the admission controller
// depends on. Flag is called exactly once per transaction, at commit time;
// its verdict is trusted without further validation. A non-nil error means
// the classifier could not produce a verdict at all.
type Classifier interface {
	Flag(tx *domain.Transaction) (bool, error)
}

// ─── Default rule-based classifier ────────────────────────────────────────────

// Rule-weight constants. The flag threshold is deliberately above any single
// rule's delta: one signal alone never flags a transaction.
const (
	deltaHighAmount  = 40 // amount in the upper band for its kind
	deltaRoundAmount = 25 // suspiciously round amount
	deltaOffHours    = 35 // committed between 02:00 and 06:00
	flagThreshold    = 60
)

var (
	highAmountBand = decimal.NewFromInt(5000)
	thousand       = decimal.NewFromInt(1000)
)

// RuleBased is a stateless, deterministic classifier built from additive
// heuristic rules. It never fails; the error return exists to satisfy the
// Classifier contract shared with fallible implementations.
type RuleBased struct{}

// NewRuleBased creates the default classifier.
func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

// Flag scores tx against every rule and reports whether the total reaches
// the suspicion threshold.
func (c *RuleBased) Flag(tx *domain.Transaction) (bool, error) {
	total := 0

	if tx.Amount.GreaterThanOrEqual(highAmountBand) {
		total += deltaHighAmount
	}
	if tx.Amount.GreaterThanOrEqual(thousand) && tx.Amount.Mod(thousand).IsZero() {
		total += deltaRoundAmount
	}
	if committedOffHours(tx.Timestamp) {
		total += deltaOffHours
	}

	return total >= flagThreshold, nil
}

// committedOffHours reports whether the commit timestamp falls in the
// 02:00–06:00 window. Unparseable timestamps contribute nothing.
func committedOffHours(ts string) bool {
	t, err := time.Parse(domain.TimestampLayout, ts)
	if err != nil {
		return false
	}
	return t.Hour() >= 2 && t.Hour() < 6
}
