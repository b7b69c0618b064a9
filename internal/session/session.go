package session

import (
	"sync"

	"training-service/internal/models"
)

// Session is the single source of truth for one user's interactive training
// session: the step machine, the conversation ledger, the active quiz attempt
// and the in-flight selections. One instance exists per connected session and
// is never shared across sessions.
//
// Callers serialize access through Lock/Unlock. Async continuations (AI
// calls, storage writes, clock expiry) must capture Epoch before suspending
// and re-check it after re-acquiring the lock; a mismatch means the session
// was reset in the interim and the stale result must be discarded.
type Session struct {
	mu sync.Mutex

	ID     string
	UserID string

	epoch uint64

	machine *Machine
	ledger  *Ledger
	attempt *Attempt

	Mode       string
	ScenarioID string
	QuizSetID  string
	RecordID   string // id of the persisted training session row

	Feedback      *models.FeedbackScore
	LastResult    *models.QuizResult
	LastError     string
	Loading       bool
	PendingBadges []models.Badge
}

func New(id, userID string, onChange func(step Step, recorded bool)) *Session {
	return &Session{
		ID:      id,
		UserID:  userID,
		machine: NewMachine(onChange),
		ledger:  NewLedger(),
	}
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

func (s *Session) Epoch() uint64 {
	return s.epoch
}

func (s *Session) Machine() *Machine {
	return s.machine
}

func (s *Session) Ledger() *Ledger {
	return s.ledger
}

func (s *Session) Attempt() *Attempt {
	return s.attempt
}

func (s *Session) SetAttempt(a *Attempt) {
	s.attempt = a
}

// Reset clears all exercise-specific state and returns the step machine to
// mode selection. Any response from a call issued before Reset is stale and
// will fail the epoch check.
func (s *Session) Reset() {
	s.ClearExercise()
	s.machine.Reset()
}

// ClearExercise discards the in-progress exercise without moving the step
// machine: the attempt countdown stops and the epoch bump invalidates every
// continuation still in flight. Used when a new exercise replaces a running
// one and when the client disconnects.
func (s *Session) ClearExercise() {
	s.epoch++
	if s.attempt != nil {
		s.attempt.Stop()
		s.attempt = nil
	}
	s.ledger.Reset()
	s.Mode = ""
	s.ScenarioID = ""
	s.QuizSetID = ""
	s.RecordID = ""
	s.Feedback = nil
	s.LastResult = nil
	s.LastError = ""
	s.Loading = false
	s.PendingBadges = nil
}

// GoBack forwards an inbound back-navigation signal to the step machine,
// clearing exercise state when the machine collapses to a reset. State is
// cleared before the machine notifies its listener so observers see a
// consistent session.
func (s *Session) GoBack() (Step, bool) {
	h := s.machine.History()
	willReset := h.Len() <= 1 || stepBelowTop(h).Transient()
	if willReset {
		s.ClearExercise()
	}
	return s.machine.GoBack()
}

// RecoverToStable unwinds a failed collaborator call and surfaces its error.
func (s *Session) RecoverToStable(errMsg string) Step {
	s.Loading = false
	s.LastError = errMsg
	return s.machine.RecoverToStable()
}

func stepBelowTop(h *History) Step {
	return h.steps[len(h.steps)-2]
}
