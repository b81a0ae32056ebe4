// Package otp issues and checks the one-time codes used for step-up
// verification of high-value transactions.
//
// The real delivery channel (SMS, push) is an external collaborator; the
// default Sender here generates the code and "delivers" it to the structured
// log, which is enough for demo environments and keeps the Challenger
// contract honest: issuance can fail, and the caller must treat a failure as
// a delivery failure, not retry it.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"meridian/banking-api/internal/domain"
)

// Challenger issues one-time codes delivered out-of-band to a contact.
// A returned error is a delivery failure distinguishable from success;
// callers must not retain any challenge state when Issue fails.
type Challenger interface {
	Issue(ctx context.Context, contact string) (code string, err error)
}

// ErrNoContact is returned when issuance is attempted without a destination.
var ErrNoContact = errors.New("no contact destination for challenge delivery")

// Check reports whether a submitted code matches the issued one.
// Exact, case-sensitive comparison; no normalisation.
func Check(submitted, issued string) bool {
	return submitted != "" && submitted == issued
}

// ─── Console sender ───────────────────────────────────────────────────────────

// Sender is the default Challenger: it generates a fixed-length numeric code
// and logs it instead of sending it over a real channel.
type Sender struct {
	length int
}

// NewSender creates a Sender producing codes of the given digit length.
func NewSender(length int) *Sender {
	return &Sender{length: length}
}

// Issue generates a numeric code for the contact and logs the delivery.
// The contact is masked in the log line the same way identifiers are masked
// in the ledger.
func (s *Sender) Issue(ctx context.Context, contact string) (string, error) {
	if contact == "" {
		return "", ErrNoContact
	}

	code, err := generateCode(s.length)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	slog.InfoContext(ctx, "otp: challenge issued",
		"contact", "..."+domain.Mask(contact),
		"digits", s.length,
	)
	return code, nil
}

// generateCode returns a uniformly random numeric string of n digits,
// left-padded with zeros.
func generateCode(n int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v), nil
}
