package session

import (
	"time"

	"training-service/internal/models"
)

type AttemptState string

const (
	AttemptIdle      AttemptState = "idle"
	AttemptRunning   AttemptState = "running"
	AttemptExpired   AttemptState = "expired"
	AttemptSubmitted AttemptState = "submitted"
)

const warningThresholdSec = 60

// Attempt owns the countdown, answer map and submission for one presented
// quiz set. Auto-submit on expiry and manual Submit funnel through the same
// Grade call so both paths are observably identical.
//
// Attempt methods are called from the session's single logical thread; the
// clock tick arrives on its own goroutine and is serialized by the caller
// holding the session lock inside the callbacks it installs.
type Attempt struct {
	state        AttemptState
	questions    []models.Question
	answers      map[string]any
	remaining    int
	hasLimit     bool
	warningFired bool

	clock     Clock
	stopClock func()
	onWarning func()
	onExpire  func(models.QuizResult)

	result *models.QuizResult
}

// NewAttempt creates an idle attempt over the given question set. onWarning
// fires at most once per attempt when one minute remains; onExpire fires when
// the countdown reaches zero, carrying the auto-submitted result.
func NewAttempt(questions []models.Question, clock Clock, onWarning func(), onExpire func(models.QuizResult)) *Attempt {
	return &Attempt{
		state:     AttemptIdle,
		questions: questions,
		answers:   make(map[string]any),
		clock:     clock,
		onWarning: onWarning,
		onExpire:  onExpire,
	}
}

// Start begins the countdown. A non-positive limit means the quiz is untimed:
// the attempt stays idle and no countdown side effects ever occur.
func (a *Attempt) Start(limitSeconds int) {
	if a.state != AttemptIdle || limitSeconds <= 0 {
		return
	}
	a.state = AttemptRunning
	a.hasLimit = true
	a.remaining = limitSeconds
	a.stopClock = a.clock.Start(time.Second, a.Tick)
}

func (a *Attempt) State() AttemptState {
	return a.state
}

// RemainingSeconds returns the countdown value; ok is false for untimed
// attempts that never started the clock.
func (a *Attempt) RemainingSeconds() (int, bool) {
	return a.remaining, a.hasLimit
}

func (a *Attempt) Questions() []models.Question {
	return a.questions
}

// RecordAnswer stores the selected answer for a question, overwriting any
// prior value. Ignored once the attempt is expired or submitted.
func (a *Attempt) RecordAnswer(questionID string, value any) {
	if a.state != AttemptIdle && a.state != AttemptRunning {
		return
	}
	a.answers[questionID] = value
}

// Tick advances the countdown by one second. Ticks arriving after expiry,
// submission or Stop are no-ops, which keeps cancellation deterministic.
func (a *Attempt) Tick() {
	if a.state != AttemptRunning {
		return
	}

	a.remaining--

	if a.remaining == warningThresholdSec && !a.warningFired {
		a.warningFired = true
		if a.onWarning != nil {
			a.onWarning()
		}
	}

	if a.remaining <= 0 {
		a.remaining = 0
		a.state = AttemptExpired
		a.cancelClock()
		result := Grade(a.questions, a.answers)
		a.result = &result
		if a.onExpire != nil {
			a.onExpire(result)
		}
	}
}

// Submit grades whatever answers have been recorded and finalizes the
// attempt. Idempotent: once a result exists (manual submit or expiry), the
// same result is returned again.
func (a *Attempt) Submit() models.QuizResult {
	if a.result != nil {
		a.state = AttemptSubmitted
		return *a.result
	}

	a.state = AttemptSubmitted
	a.cancelClock()
	result := Grade(a.questions, a.answers)
	a.result = &result
	return result
}

// Stop cancels the countdown without grading, used when the user navigates
// away and the attempt state is discarded.
func (a *Attempt) Stop() {
	if a.state == AttemptRunning {
		a.state = AttemptSubmitted
	}
	a.cancelClock()
}

func (a *Attempt) cancelClock() {
	if a.stopClock != nil {
		a.stopClock()
		a.stopClock = nil
	}
}
