// Package admission implements the risk-gated transaction admission pipeline:
// the decision of whether a submitted transaction is committed immediately,
// held pending OTP step-up, or rejected, plus the OTP verification state
// machine that resolves held transactions.
//
// Architecture:
//   The controller is stateless — all mutable state lives in the caller's
//   Session, passed into every operation. The risk classifier and the OTP
//   challenger are injected capabilities; the controller never looks either
//   up ambiently. Sensitive input (full card/account numbers, CVV, expiry,
//   PIN) is masked or discarded here, before anything is stored, so no later
//   component can leak what the controller never kept.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meridian/banking-api/internal/domain"
	"meridian/banking-api/internal/otp"
	"meridian/banking-api/internal/risk"
	"meridian/banking-api/internal/session"
)

// ErrClassifierUnavailable is returned when the risk classifier cannot
// produce a verdict. The transaction is never committed unflagged: on the
// direct path nothing is appended, on the verification path the pending
// transaction stays intact for a later attempt.
var ErrClassifierUnavailable = errors.New("risk classifier unavailable")

// ─── Results ──────────────────────────────────────────────────────────────────

// Status is the outcome category of a submission.
type Status string

const (
	StatusCommitted      Status = "committed"
	StatusStepUpRequired Status = "step_up_required"
	StatusRejected       Status = "rejected"
)

// Result is the outcome of a Submit call.
type Result struct {
	Status      Status
	Transaction *domain.Transaction // set when Status is StatusCommitted
	Flagged     bool
	Reason      domain.RejectReason // set when Status is StatusRejected
	Detail      string
}

// VerifyResult is the outcome of a Verify call.
type VerifyResult struct {
	Status      domain.VerifyStatus
	Transaction *domain.Transaction // set when Status is VerifyCommitted
	Flagged     bool
}

// ─── Per-kind field rules ─────────────────────────────────────────────────────

// fieldRules describes how one transaction kind treats its form fields.
// Required fields must be present and non-empty. Masked fields are kept as
// last-4 identifiers. Kept fields are stored verbatim (non-sensitive).
// Everything else — CVV, expiry, PIN — is discarded at admission.
type fieldRules struct {
	required []string
	masked   []string
	kept     []string

	// locationField, when set, names the form field that carries the
	// transaction location (ATM withdrawals submit it as a form field).
	locationField string
}

var rulesByKind = map[domain.Kind]fieldRules{
	domain.OnlineShopping: {
		required: []string{"merchant", "card_number", "expiry", "cvv"},
		masked:   []string{"card_number"},
		kept:     []string{"merchant"},
	},
	domain.FundTransfer: {
		required: []string{"sender_account", "recipient_account", "bank_name"},
		masked:   []string{"sender_account", "recipient_account"},
		kept:     []string{"bank_name"},
	},
	domain.AtmWithdrawal: {
		required:      []string{"card_number", "pin", "atm_location"},
		masked:        []string{"card_number"},
		locationField: "atm_location",
	},
}

// ─── Controller ───────────────────────────────────────────────────────────────

// Controller owns the admission decision and the OTP state machine.
type Controller struct {
	classifier risk.Classifier
	challenger otp.Challenger
	threshold  decimal.Decimal
	now        func() time.Time
}

// New creates a Controller. Transactions with amount strictly greater than
// threshold require OTP step-up before they are committed.
func New(classifier risk.Classifier, challenger otp.Challenger, threshold decimal.Decimal) *Controller {
	return &Controller{
		classifier: classifier,
		challenger: challenger,
		threshold:  threshold,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ─── Submit ───────────────────────────────────────────────────────────────────

// Submit runs the admission pipeline for a draft transaction:
// validation → masking → threshold routing → classifier or OTP issuance.
// Committing appends exactly one transaction to the session ledger; the
// step-up path appends zero until the challenge is verified. Rejections
// leave the session untouched.
func (c *Controller) Submit(ctx context.Context, sess *session.Session, draft domain.Draft, phone string) Result {
	if detail, ok := validate(draft, phone); !ok {
		return Result{Status: StatusRejected, Reason: domain.ReasonValidationError, Detail: detail}
	}

	tx := c.buildTransaction(draft)

	if tx.Amount.GreaterThan(c.threshold) {
		return c.beginStepUp(ctx, sess, tx, phone)
	}

	flagged, err := c.classifier.Flag(&tx)
	if err != nil {
		slog.WarnContext(ctx, "admission: classifier failed", "kind", tx.Kind, "error", err)
		return Result{Status: StatusRejected, Reason: domain.ReasonClassifierUnavailable, Detail: err.Error()}
	}
	tx.Fraud = flagged
	sess.Append(tx)

	slog.InfoContext(ctx, "admission: transaction committed",
		"session", sess.ID(), "transaction", tx.ID, "kind", tx.Kind, "fraud", flagged)
	return Result{Status: StatusCommitted, Transaction: &tx, Flagged: flagged}
}

// beginStepUp holds the masked transaction and issues an OTP challenge.
// Challenge issuance failure leaves no pending state behind.
func (c *Controller) beginStepUp(ctx context.Context, sess *session.Session, tx domain.Transaction, phone string) Result {
	if _, active := sess.ActiveStepUp(); active {
		return Result{
			Status: StatusRejected,
			Reason: domain.ReasonValidationError,
			Detail: session.ErrStepUpActive.Error(),
		}
	}

	code, err := c.challenger.Issue(ctx, phone)
	if err != nil {
		slog.WarnContext(ctx, "admission: challenge delivery failed",
			"session", sess.ID(), "kind", tx.Kind, "error", err)
		return Result{Status: StatusRejected, Reason: domain.ReasonChallengeDeliveryFailed, Detail: err.Error()}
	}

	pending := session.Pending{Tx: tx, Phone: phone}
	challenge := session.Challenge{Code: code, Contact: phone, IssuedAt: c.now()}
	if err := sess.BeginStepUp(pending, challenge); err != nil {
		return Result{Status: StatusRejected, Reason: domain.ReasonValidationError, Detail: err.Error()}
	}

	slog.InfoContext(ctx, "admission: step-up required",
		"session", sess.ID(), "transaction", tx.ID, "kind", tx.Kind)
	return Result{Status: StatusStepUpRequired}
}

// ─── Verify ───────────────────────────────────────────────────────────────────

// Verify resolves an outstanding OTP challenge.
//
// State machine: NoChallenge → Pending → {Committed, Abandoned}. A mismatch
// keeps the state Pending — retries are unlimited. Verification without an
// outstanding challenge reports NoActiveChallenge instead of silently
// succeeding. A matching code finalizes the pending transaction: the
// transport-only phone contact is dropped, the commit timestamp replaces
// the provisional one, the classifier sets the fraud flag, and the ledger
// append and slot clear happen as one transition.
//
// A non-nil error wraps ErrClassifierUnavailable; the pending transaction
// and challenge survive it so the user can verify again later.
func (c *Controller) Verify(ctx context.Context, sess *session.Session, code string) (VerifyResult, error) {
	su, ok := sess.ActiveStepUp()
	if !ok {
		return VerifyResult{Status: domain.VerifyNoActiveChallenge}, nil
	}

	if !otp.Check(code, su.Challenge.Code) {
		attempts := sess.RecordMismatch()
		slog.InfoContext(ctx, "admission: challenge mismatch",
			"session", sess.ID(), "attempts", attempts)
		return VerifyResult{Status: domain.VerifyRetry}, nil
	}

	tx := su.Pending.Tx
	tx.Timestamp = c.now().Format(domain.TimestampLayout)

	flagged, err := c.classifier.Flag(&tx)
	if err != nil {
		slog.WarnContext(ctx, "admission: classifier failed during verification",
			"session", sess.ID(), "transaction", tx.ID, "error", err)
		return VerifyResult{}, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	tx.Fraud = flagged

	sess.CommitStepUp(tx)
	slog.InfoContext(ctx, "admission: step-up verified and committed",
		"session", sess.ID(), "transaction", tx.ID, "kind", tx.Kind, "fraud", flagged)
	return VerifyResult{Status: domain.VerifyCommitted, Transaction: &tx, Flagged: flagged}, nil
}

// ─── Validation and masking ───────────────────────────────────────────────────

// validate checks the draft against its kind's field rules. It mutates
// nothing; a failed validation leaves no trace in the session.
func validate(draft domain.Draft, phone string) (detail string, ok bool) {
	if !draft.Kind.Valid() {
		return fmt.Sprintf("unknown transaction kind %q", draft.Kind), false
	}
	if draft.Amount.Sign() <= 0 {
		return "amount must be greater than 0", false
	}
	if phone == "" {
		return "phone is required", false
	}
	for _, f := range rulesByKind[draft.Kind].required {
		if draft.Fields[f] == "" {
			return fmt.Sprintf("%s is required", f), false
		}
	}
	return "", true
}

// buildTransaction turns a validated draft into a ledger-shaped transaction:
// identifiers masked to last-4, non-sensitive fields kept, everything else
// dropped. The timestamp stamped here is provisional for the step-up path
// and is replaced at commit time.
func (c *Controller) buildTransaction(draft domain.Draft) domain.Transaction {
	rules := rulesByKind[draft.Kind]

	masked := make(map[string]string, len(rules.masked))
	for _, f := range rules.masked {
		masked[f] = domain.Mask(draft.Fields[f])
	}

	var details map[string]string
	if len(rules.kept) > 0 {
		details = make(map[string]string, len(rules.kept))
		for _, f := range rules.kept {
			if v := draft.Fields[f]; v != "" {
				details[f] = v
			}
		}
	}

	location := draft.Location
	if rules.locationField != "" {
		location = draft.Fields[rules.locationField]
	}

	return domain.Transaction{
		ID:          uuid.NewString(),
		Kind:        draft.Kind,
		Amount:      draft.Amount,
		Masked:      masked,
		Details:     details,
		Location:    location,
		Description: draft.Description,
		Timestamp:   c.now().Format(domain.TimestampLayout),
	}
}
