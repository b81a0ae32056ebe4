// Package session provides the per-session mutable state of the admission
// pipeline: the append-only transaction ledger and the step-up slot holding
// at most one pending transaction with its OTP challenge.
//
// Design rationale: the state is an explicit object passed into the
// admission controller rather than looked up ambiently, so the controller
// stays a function of (state, request). The step-up slot is a single tagged
// value — either absent or a pending transaction paired with its challenge —
// which makes a challenge without a draft unrepresentable. Cross-session
// isolation is structural: a Session is only reachable through its own ID
// and no state is shared between sessions.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"meridian/banking-api/internal/domain"
)

// ErrStepUpActive is returned when a new step-up is requested while an
// earlier one has not been committed or discarded yet.
var ErrStepUpActive = errors.New("a pending transaction is already awaiting verification")

// Pending is a fully masked, provisionally timestamped transaction held
// while OTP verification is outstanding. Phone is transport-only and is
// stripped before the transaction is scored or recorded.
type Pending struct {
	Tx    domain.Transaction
	Phone string
}

// Challenge is an issued one-time code bound to one pending transaction.
// No expiry is modelled: the challenge stays valid until consumed or the
// session is reset. Attempts counts mismatches for logging only; retries
// are unlimited.
type Challenge struct {
	Code     string
	Contact  string
	IssuedAt time.Time
	Attempts int
}

// StepUp pairs a pending transaction with its challenge. The pair is created
// and cleared as a unit.
type StepUp struct {
	Pending   Pending
	Challenge Challenge
}

// ─── Session ──────────────────────────────────────────────────────────────────

// Session holds one user's ledger and step-up slot. All methods are
// safe for concurrent use; each state transition happens under one lock
// acquisition so readers never observe a half-applied transition.
type Session struct {
	mu     sync.Mutex
	id     string
	ledger []domain.Transaction
	stepUp *StepUp
}

// New creates an empty session with a fresh ID.
func New() *Session {
	return &Session{id: uuid.NewString()}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// ─── Ledger ───────────────────────────────────────────────────────────────────

// Append records a finalized transaction. The ledger is append-only:
// there is no delete or mutate operation, only Reset discards it.
func (s *Session) Append(tx domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = append(s.ledger, tx)
}

// Transactions returns a snapshot of the ledger in commit order.
func (s *Session) Transactions() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Transaction, len(s.ledger))
	copy(out, s.ledger)
	return out
}

// Empty reports whether the ledger holds no transactions.
func (s *Session) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger) == 0
}

// ─── Step-up slot ─────────────────────────────────────────────────────────────

// BeginStepUp stores a pending transaction and its challenge. Returns
// ErrStepUpActive if the slot is occupied: a pending transaction must be
// committed or discarded before a new one may be created.
func (s *Session) BeginStepUp(p Pending, c Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stepUp != nil {
		return ErrStepUpActive
	}
	s.stepUp = &StepUp{Pending: p, Challenge: c}
	return nil
}

// ActiveStepUp returns a copy of the outstanding step-up, if any.
func (s *Session) ActiveStepUp() (StepUp, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stepUp == nil {
		return StepUp{}, false
	}
	return *s.stepUp, true
}

// RecordMismatch increments the challenge attempt counter and returns the
// new count. The pending transaction and challenge stay intact.
func (s *Session) RecordMismatch() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stepUp == nil {
		return 0
	}
	s.stepUp.Challenge.Attempts++
	return s.stepUp.Challenge.Attempts
}

// CommitStepUp appends the finalized transaction and clears the step-up
// slot in one transition, so no reader ever observes a committed ledger
// entry alongside a still-live pending transaction.
func (s *Session) CommitStepUp(tx domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = append(s.ledger, tx)
	s.stepUp = nil
}

// ─── Reset ────────────────────────────────────────────────────────────────────

// Reset discards the ledger, the pending transaction, and the challenge
// together. Partial resets do not exist: clearing only part of the state
// could orphan a pending transaction.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = nil
	s.stepUp = nil
}

// ─── Manager ──────────────────────────────────────────────────────────────────

// Manager is a thread-safe registry of sessions keyed by ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetOrCreate returns the session with the given ID, creating a fresh one
// (with a new ID) when the given ID is empty or unknown.
func (m *Manager) GetOrCreate(id string) *Session {
	if id != "" {
		if s, ok := m.Get(id); ok {
			return s
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s := New()
	m.sessions[s.id] = s
	return s
}
