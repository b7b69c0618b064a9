package session

// Step identifies one phase of the application's top-level flow. Exactly one
// step is current per session at any time.
type Step string

const (
	StepModeSelection      Step = "mode_selection"
	StepScenarioSelection  Step = "scenario_selection"
	StepListening          Step = "listening"
	StepWaitingForResponse Step = "waiting_for_response"
	StepRecording          Step = "recording"
	StepTranscribing       Step = "transcribing"
	StepGeneratingResponse Step = "generating_response"
	StepAnalyzing          Step = "analyzing"
	StepFeedback           Step = "feedback"
	StepQuizHome           Step = "quiz_home"
	StepQuizSolver         Step = "quiz_solver"
	StepQuizResult         Step = "quiz_result"
	StepProfile            Step = "profile"
	StepLeaderboard        Step = "leaderboard"
	StepAdminDashboard     Step = "admin_dashboard"
)

// Transient reports whether the step only exists while an async call is in
// flight. Transient steps are never a valid back-navigation landing point.
func (s Step) Transient() bool {
	switch s {
	case StepTranscribing, StepGeneratingResponse, StepAnalyzing:
		return true
	}
	return false
}
