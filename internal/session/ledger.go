package session

import (
	"time"

	"training-service/internal/models"
)

// Ledger is the append-only list of conversation turns for one simulation
// session. Role alternation is caller discipline: the ledger records whatever
// it is handed and does not reject a misordered append.
type Ledger struct {
	turns []models.Turn
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// AppendTurn records a turn with a capture-time timestamp and returns the
// updated sequence.
func (l *Ledger) AppendTurn(role, text string) []models.Turn {
	l.turns = append(l.turns, models.Turn{
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	})
	return l.Turns()
}

// Turns returns a copy of the recorded sequence.
func (l *Ledger) Turns() []models.Turn {
	out := make([]models.Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

func (l *Ledger) Len() int {
	return len(l.turns)
}

// LastRole returns the role of the most recent turn, or "" when empty.
func (l *Ledger) LastRole() string {
	if len(l.turns) == 0 {
		return ""
	}
	return l.turns[len(l.turns)-1].Role
}

// HasRole reports whether any recorded turn carries the given role.
func (l *Ledger) HasRole(role string) bool {
	for _, t := range l.turns {
		if t.Role == role {
			return true
		}
	}
	return false
}

func (l *Ledger) Reset() {
	l.turns = nil
}
