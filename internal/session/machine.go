package session

// Machine is the finite-state controller for one session's flow. It owns the
// current step and the history stack; everything else (ledger, quiz attempt,
// selections) lives on the surrounding Session and is cleared through its
// Reset. None of the operations here can fail; it is pure state manipulation.
type Machine struct {
	current Step
	history *History

	// onChange is notified after every current-step change. recorded is true
	// when the step was appended to the history stack, which is the signal
	// for the browser to mirror it into platform history so the native back
	// gesture stays observable.
	onChange func(step Step, recorded bool)
}

func NewMachine(onChange func(step Step, recorded bool)) *Machine {
	return &Machine{
		current:  StepModeSelection,
		history:  NewHistory(StepModeSelection),
		onChange: onChange,
	}
}

func (m *Machine) Current() Step {
	return m.current
}

func (m *Machine) History() *History {
	return m.history
}

// Transition sets the current step and pushes it onto the history stack when
// it differs from the top. Transitioning to the step already current is safe:
// the stack is untouched but the listener still fires.
func (m *Machine) Transition(next Step) {
	recorded := m.history.Top() != next
	m.current = next
	m.history.Push(next)
	m.notify(recorded)
}

// GoBack handles an inbound back-navigation signal. It pops the history
// stack and lands on the new top, except when the new top is transient or the
// stack is already at its bottom entry: there is nothing meaningful to resume
// on a transient step, so both cases collapse to a full reset. The caller is
// responsible for clearing exercise state when reset is reported.
func (m *Machine) GoBack() (landed Step, reset bool) {
	if _, ok := m.history.Pop(); !ok {
		m.Reset()
		return m.current, true
	}

	top := m.history.Top()
	if top.Transient() {
		m.Reset()
		return m.current, true
	}

	m.current = top
	m.notify(false)
	return top, false
}

// Reset collapses the history stack to the initial step.
func (m *Machine) Reset() {
	m.current = StepModeSelection
	m.history.Collapse(StepModeSelection)
	m.notify(false)
}

// RecoverToStable unwinds a failed async operation: it pops transient tops
// until a stable step is exposed and lands there. Used when a collaborator
// call rejects while a transient step is current.
func (m *Machine) RecoverToStable() Step {
	for m.history.Len() > 1 && m.history.Top().Transient() {
		m.history.Pop()
	}
	top := m.history.Top()
	m.current = top
	m.notify(false)
	return top
}

func (m *Machine) notify(recorded bool) {
	if m.onChange != nil {
		m.onChange(m.current, recorded)
	}
}
