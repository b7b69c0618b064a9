package session

import (
	"testing"

	"training-service/internal/constants"
)

func TestLedgerAppendPreservesOrder(t *testing.T) {
	l := NewLedger()

	l.AppendTurn(constants.RoleCustomer, "My package never arrived.")
	l.AppendTurn(constants.RoleAgent, "I'm sorry to hear that, let me check.")
	turns := l.AppendTurn(constants.RoleCustomer, "It's been two weeks already.")

	if len(turns) != 3 {
		t.Fatalf("Expected 3 turns, got %d", len(turns))
	}
	if turns[0].Role != constants.RoleCustomer || turns[1].Role != constants.RoleAgent {
		t.Error("Turns are out of order")
	}
	if turns[2].Text != "It's been two weeks already." {
		t.Errorf("Unexpected last turn text: %q", turns[2].Text)
	}
	for _, turn := range turns {
		if turn.Timestamp.IsZero() {
			t.Error("Expected every turn to carry a timestamp")
		}
	}
}

func TestLedgerTurnsReturnsCopy(t *testing.T) {
	l := NewLedger()
	l.AppendTurn(constants.RoleCustomer, "Hello?")

	turns := l.Turns()
	turns[0].Text = "mutated"

	if l.Turns()[0].Text != "Hello?" {
		t.Error("Mutating the returned slice changed the ledger")
	}
}

func TestLedgerLastRole(t *testing.T) {
	l := NewLedger()

	if l.LastRole() != "" {
		t.Errorf("Expected empty last role, got %q", l.LastRole())
	}

	l.AppendTurn(constants.RoleCustomer, "Hi")
	l.AppendTurn(constants.RoleAgent, "Hello")

	if l.LastRole() != constants.RoleAgent {
		t.Errorf("Expected last role %s, got %s", constants.RoleAgent, l.LastRole())
	}
}

func TestLedgerHasRole(t *testing.T) {
	l := NewLedger()
	l.AppendTurn(constants.RoleCustomer, "Hi")

	if l.HasRole(constants.RoleAgent) {
		t.Error("Expected no agent turn yet")
	}

	l.AppendTurn(constants.RoleAgent, "Hello")

	if !l.HasRole(constants.RoleAgent) {
		t.Error("Expected an agent turn to be present")
	}
}

func TestLedgerReset(t *testing.T) {
	l := NewLedger()
	l.AppendTurn(constants.RoleCustomer, "Hi")
	l.Reset()

	if l.Len() != 0 {
		t.Errorf("Expected empty ledger after reset, got %d turns", l.Len())
	}
}
