package websocket

type MessageType string

const (
	// Client -> Server
	MessageTypeSelectMode       MessageType = "select_mode"
	MessageTypeSelectScenario   MessageType = "select_scenario"
	MessageTypePlaybackFinished MessageType = "playback_finished"
	MessageTypeStartRecording   MessageType = "start_recording"
	MessageTypeAgentAudio       MessageType = "agent_audio"
	MessageTypeEndConversation  MessageType = "end_conversation"
	MessageTypeStartQuiz        MessageType = "start_quiz"
	MessageTypeAnswer           MessageType = "answer"
	MessageTypeSubmitQuiz       MessageType = "submit_quiz"
	MessageTypeBack             MessageType = "back"
	MessageTypeGoHome           MessageType = "go_home"
	MessageTypeOpenProfile      MessageType = "open_profile"
	MessageTypeOpenLeaderboard  MessageType = "open_leaderboard"
	MessageTypePing             MessageType = "ping"

	// Server -> Client
	MessageTypeConnected MessageType = "connected"
	MessageTypeError     MessageType = "error"
	MessageTypePong      MessageType = "pong"
)

type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

type SelectModePayload struct {
	Mode string `json:"mode"`
}

type SelectScenarioPayload struct {
	ScenarioID string `json:"scenario_id"`
}

// AgentAudioPayload carries one recorded reply. Data is base64-encoded.
type AgentAudioPayload struct {
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

type StartQuizPayload struct {
	SetID string `json:"set_id"`
}

type AnswerPayload struct {
	QuestionID string `json:"question_id"`
	Value      any    `json:"value"`
}

type ConnectedPayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
