package session

import "testing"

func TestTransitionRecordsHistory(t *testing.T) {
	m := NewMachine(nil)

	m.Transition(StepScenarioSelection)
	m.Transition(StepGeneratingResponse)

	if m.Current() != StepGeneratingResponse {
		t.Errorf("Expected current step %s, got %s", StepGeneratingResponse, m.Current())
	}
	if m.History().Len() != 3 {
		t.Errorf("Expected history length 3, got %d", m.History().Len())
	}
}

func TestRedundantTransitionDoesNotGrowHistory(t *testing.T) {
	m := NewMachine(nil)

	m.Transition(StepScenarioSelection)
	m.Transition(StepScenarioSelection)
	m.Transition(StepScenarioSelection)

	if m.History().Len() != 2 {
		t.Errorf("Expected history length 2 after redundant transitions, got %d", m.History().Len())
	}
}

func TestGoBackLandsOnPreviousStep(t *testing.T) {
	m := NewMachine(nil)

	m.Transition(StepScenarioSelection)
	m.Transition(StepQuizHome)

	landed, reset := m.GoBack()
	if reset {
		t.Error("Expected go back onto a stable step, got reset")
	}
	if landed != StepScenarioSelection {
		t.Errorf("Expected to land on %s, got %s", StepScenarioSelection, landed)
	}
	if m.Current() != StepScenarioSelection {
		t.Errorf("Expected current step %s, got %s", StepScenarioSelection, m.Current())
	}
}

func TestGoBackOntoTransientStepResets(t *testing.T) {
	m := NewMachine(nil)

	m.Transition(StepScenarioSelection)
	m.Transition(StepTranscribing)
	m.Transition(StepGeneratingResponse)

	landed, reset := m.GoBack()
	if !reset {
		t.Error("Expected reset when the exposed step is transient")
	}
	if landed != StepModeSelection {
		t.Errorf("Expected to land on %s, got %s", StepModeSelection, landed)
	}
	if m.History().Len() != 1 {
		t.Errorf("Expected collapsed history, got length %d", m.History().Len())
	}
}

func TestGoBackAtBottomResets(t *testing.T) {
	m := NewMachine(nil)

	landed, reset := m.GoBack()
	if !reset {
		t.Error("Expected reset when the history has no step to pop")
	}
	if landed != StepModeSelection {
		t.Errorf("Expected to land on %s, got %s", StepModeSelection, landed)
	}
}

func TestRecoverToStableUnwindsTransientSteps(t *testing.T) {
	m := NewMachine(nil)

	m.Transition(StepScenarioSelection)
	m.Transition(StepTranscribing)
	m.Transition(StepGeneratingResponse)

	landed := m.RecoverToStable()
	if landed != StepScenarioSelection {
		t.Errorf("Expected to recover to %s, got %s", StepScenarioSelection, landed)
	}
	if m.Current() != StepScenarioSelection {
		t.Errorf("Expected current step %s, got %s", StepScenarioSelection, m.Current())
	}
}

func TestOnChangeReportsRecordedFlag(t *testing.T) {
	type notification struct {
		step     Step
		recorded bool
	}
	var notifications []notification

	m := NewMachine(func(step Step, recorded bool) {
		notifications = append(notifications, notification{step, recorded})
	})

	m.Transition(StepScenarioSelection) // new step, recorded
	m.Transition(StepScenarioSelection) // same step, not recorded
	m.GoBack()                          // landing is never recorded

	expected := []notification{
		{StepScenarioSelection, true},
		{StepScenarioSelection, false},
		{StepModeSelection, false},
	}
	if len(notifications) != len(expected) {
		t.Fatalf("Expected %d notifications, got %d", len(expected), len(notifications))
	}
	for i, want := range expected {
		if notifications[i] != want {
			t.Errorf("Notification %d: expected %+v, got %+v", i, want, notifications[i])
		}
	}
}

func TestHistoryNeverEmpty(t *testing.T) {
	h := NewHistory(StepModeSelection)

	if _, ok := h.Pop(); ok {
		t.Error("Expected pop of bottom entry to fail")
	}
	if h.Len() != 1 {
		t.Errorf("Expected length 1, got %d", h.Len())
	}
	if h.Top() != StepModeSelection {
		t.Errorf("Expected top %s, got %s", StepModeSelection, h.Top())
	}
}
