package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"training-service/internal/achievements"
	"training-service/internal/constants"
	"training-service/internal/models"
	"training-service/internal/session"

	"github.com/google/uuid"
)

// Storage and collaborator dependencies are consumed through narrow
// interfaces so tests can substitute fakes for the database, the AI
// providers and the broker.

type SessionStore interface {
	CreateSession(ctx context.Context, s *models.TrainingSession) error
	AppendResponse(ctx context.Context, resp *models.SessionResponse) error
	SaveFeedback(ctx context.Context, sessionID string, feedback *models.FeedbackScore) error
	CompleteSession(ctx context.Context, id string, score int) error
	AbandonSession(ctx context.Context, id string) error
}

type ScenarioStore interface {
	ListScenarios(ctx context.Context) ([]models.Scenario, error)
	GetScenario(ctx context.Context, id string) (*models.Scenario, error)
}

type QuizStore interface {
	ListQuizSets(ctx context.Context) ([]models.QuizSet, error)
	GetQuizSet(ctx context.Context, id string) (*models.QuizSet, error)
	GetQuestions(ctx context.Context, setID string) ([]models.Question, error)
	SaveQuizResult(ctx context.Context, sessionID, userID, setID string, result *models.QuizResult) error
}

type StatsStore interface {
	GetStats(ctx context.Context, userID string) (*models.UserStats, error)
	UpsertStats(ctx context.Context, stats *models.UserStats) error
	GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

type BadgeStore interface {
	ListBadges(ctx context.Context) ([]models.Badge, error)
	GetEarnedBadgeIDs(ctx context.Context, userID string) (map[string]bool, error)
	AwardBadge(ctx context.Context, userID, badgeID string) error
	GetUserBadges(ctx context.Context, userID string) ([]models.EarnedBadge, error)
}

type ConversationAI interface {
	InitialUtterance(ctx context.Context, scenario *models.Scenario) (string, error)
	NextUtterance(ctx context.Context, scenario *models.Scenario, turns []models.Turn) (string, error)
	AnalyzeConversation(ctx context.Context, scenario *models.Scenario, turns []models.Turn) (*models.FeedbackScore, error)
}

type SpeechAI interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
	Synthesize(ctx context.Context, text, emotionTag string) ([]byte, error)
}

type AudioStore interface {
	UploadAudio(ctx context.Context, sessionID, name string, data []byte, contentType string) (string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// Outbound event types pushed to the connected client.
const (
	EventStepChanged   = "step_changed"
	EventScenarioList  = "scenario_list"
	EventQuizSetList   = "quiz_set_list"
	EventCustomerTurn  = "customer_turn"
	EventAgentTurn     = "agent_turn"
	EventQuizStarted   = "quiz_started"
	EventTimeWarning   = "time_warning"
	EventTimeExpired   = "time_expired"
	EventQuizResult    = "quiz_result"
	EventFeedback      = "feedback"
	EventBadgesEarned  = "badges_earned"
	EventProfile       = "profile"
	EventLeaderboard   = "leaderboard"
	EventError         = "error"
	EventSessionReset  = "session_reset"
)

// OutboundEvent is one server-to-client push.
type OutboundEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type StepChangedPayload struct {
	Step     string `json:"step"`
	Recorded bool   `json:"recorded"`
}

type CustomerTurnPayload struct {
	Text     string        `json:"text"`
	AudioURL string        `json:"audio_url,omitempty"`
	Turns    []models.Turn `json:"turns"`
}

type AgentTurnPayload struct {
	Text  string        `json:"text"`
	Turns []models.Turn `json:"turns"`
}

// QuizQuestionView is a question as presented to the solver, without the
// answer key.
type QuizQuestionView struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
}

type QuizStartedPayload struct {
	SetID            string             `json:"set_id"`
	Title            string             `json:"title"`
	Questions        []QuizQuestionView `json:"questions"`
	TimeLimitSec     int                `json:"time_limit_sec"`
	RemainingSeconds int                `json:"remaining_seconds"`
}

type QuizResultPayload struct {
	Result       models.QuizResult `json:"result"`
	PassScore    int               `json:"pass_score"`
	Passed       bool              `json:"passed"`
	Explanations map[string]string `json:"explanations"`
	AutoExpired  bool              `json:"auto_expired"`
}

type FeedbackPayload struct {
	Feedback models.FeedbackScore `json:"feedback"`
	Turns    []models.Turn        `json:"turns"`
}

type ProfilePayload struct {
	Stats  models.UserStats     `json:"stats"`
	Badges []models.Badge       `json:"badges"`
	Earned []models.EarnedBadge `json:"earned"`
}

type sessionCompletedMessage struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Mode      string `json:"mode"`
	Score     int    `json:"score"`
	Timestamp string `json:"timestamp"`
}

type badgeEarnedMessage struct {
	UserID    string `json:"user_id"`
	BadgeID   string `json:"badge_id"`
	BadgeName string `json:"badge_name"`
	Timestamp string `json:"timestamp"`
}

// TrainingService orchestrates interactive training sessions: the simulation
// conversation loop, the quiz attempt lifecycle and the completion pipeline
// that updates stats, awards badges and publishes events.
type TrainingService struct {
	mu       sync.RWMutex
	sessions map[string]*liveSession

	sessionStore  SessionStore
	scenarioStore ScenarioStore
	quizStore     QuizStore
	statsStore    StatsStore
	badgeStore    BadgeStore
	conversation  ConversationAI
	speech        SpeechAI
	audioStore    AudioStore
	publisher     EventPublisher
	clock         session.Clock
}

type liveSession struct {
	state *session.Session
	emit  func(OutboundEvent)
}

func NewTrainingService(
	sessionStore SessionStore,
	scenarioStore ScenarioStore,
	quizStore QuizStore,
	statsStore StatsStore,
	badgeStore BadgeStore,
	conversation ConversationAI,
	speech SpeechAI,
	audioStore AudioStore,
	publisher EventPublisher,
	clock session.Clock,
) *TrainingService {
	return &TrainingService{
		sessions:      make(map[string]*liveSession),
		sessionStore:  sessionStore,
		scenarioStore: scenarioStore,
		quizStore:     quizStore,
		statsStore:    statsStore,
		badgeStore:    badgeStore,
		conversation:  conversation,
		speech:        speech,
		audioStore:    audioStore,
		publisher:     publisher,
		clock:         clock,
	}
}

// Connect registers a new live session for a connected user. emit delivers
// server pushes for this session and must not block.
func (t *TrainingService) Connect(sessionID, userID string, emit func(OutboundEvent)) {
	live := &liveSession{emit: emit}
	live.state = session.New(sessionID, userID, func(step session.Step, recorded bool) {
		emit(OutboundEvent{Type: EventStepChanged, Payload: StepChangedPayload{
			Step:     string(step),
			Recorded: recorded,
		}})
	})

	t.mu.Lock()
	t.sessions[sessionID] = live
	t.mu.Unlock()

	emit(OutboundEvent{Type: EventStepChanged, Payload: StepChangedPayload{
		Step:     string(session.StepModeSelection),
		Recorded: true,
	}})
}

// Disconnect tears down a live session. An exercise still in flight is
// marked abandoned, and the epoch bump discards any AI or storage
// continuation that resolves after the client is gone.
func (t *TrainingService) Disconnect(sessionID string) {
	t.mu.Lock()
	live, ok := t.sessions[sessionID]
	delete(t.sessions, sessionID)
	t.mu.Unlock()
	if !ok {
		return
	}

	live.state.Lock()
	recordID := live.state.RecordID
	live.state.ClearExercise()
	live.state.Unlock()

	t.abandonReplaced(context.Background(), recordID)
}

func (t *TrainingService) lookup(sessionID string) (*liveSession, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	live, ok := t.sessions[sessionID]
	return live, ok
}

// SelectMode moves from mode selection into the chosen mode's entry step.
func (t *TrainingService) SelectMode(ctx context.Context, sessionID, mode string) {
	live, ok := t.lookup(sessionID)
	if !ok {
		return
	}

	switch mode {
	case constants.ModeSimulation:
		scenarios, err := t.scenarioStore.ListScenarios(ctx)
		if err != nil {
			t.fail(live, fmt.Sprintf("failed to load scenarios: %v", err))
			return
		}
		live.state.Lock()
		live.state.Mode = mode
		live.state.Machine().Transition(session.StepScenarioSelection)
		live.state.Unlock()
		live.emit(OutboundEvent{Type: EventScenarioList, Payload: scenarios})

	case constants.ModeQuiz:
		sets, err := t.quizStore.ListQuizSets(ctx)
		if err != nil {
			t.fail(live, fmt.Sprintf("failed to load quiz sets: %v", err))
			return
		}
		live.state.Lock()
		live.state.Mode = mode
		live.state.Machine().Transition(session.StepQuizHome)
		live.state.Unlock()
		live.emit(OutboundEvent{Type: EventQuizSetList, Payload: sets})

	default:
		live.emit(OutboundEvent{Type: EventError, Payload: "unknown mode: " + mode})
	}
}

// SelectScenario starts a simulation session: it persists the session row,
// then asks the customer AI for its opening line and speaks it.
func (t *TrainingService) SelectScenario(ctx context.Context, sessionID, scenarioID string) {
	live, ok := t.lookup(sessionID)
	if !ok {
		return
	}

	scenario, err := t.scenarioStore.GetScenario(ctx, scenarioID)
	if err != nil {
		t.fail(live, fmt.Sprintf("failed to load scenario: %v", err))
		return
	}

	record := &models.TrainingSession{
		UserID:     live.state.UserID,
		Mode:       constants.ModeSimulation,
		ScenarioID: sql.NullString{String: scenario.ID, Valid: true},
		Status:     constants.SessionStatusActive,
	}
	if err := t.sessionStore.CreateSession(ctx, record); err != nil {
		t.fail(live, fmt.Sprintf("failed to create session: %v", err))
		return
	}

	live.state.Lock()
	prevRecordID := live.state.RecordID
	live.state.ClearExercise()
	live.state.Mode = constants.ModeSimulation
	live.state.ScenarioID = scenario.ID
	live.state.RecordID = record.ID
	live.state.Loading = true
	live.state.Machine().Transition(session.StepGeneratingResponse)
	epoch := live.state.Epoch()
	live.state.Unlock()

	t.abandonReplaced(ctx, prevRecordID)

	go t.produceCustomerTurn(live, epoch, scenario, nil)
}

// abandonReplaced marks the session row of a replaced exercise abandoned.
// The update is guarded on active status, so a row the completion pipeline
// already closed is left untouched.
func (t *TrainingService) abandonReplaced(ctx context.Context, recordID string) {
	if recordID == "" {
		return
	}
	if err := t.sessionStore.AbandonSession(ctx, recordID); err != nil {
		log.Printf("Failed to mark session %s abandoned: %v", recordID, err)
	}
}

// produceCustomerTurn asks the customer AI for its next line, synthesizes
// audio for it and delivers the turn. turns is nil for the opening line.
func (t *TrainingService) produceCustomerTurn(live *liveSession, epoch uint64, scenario *models.Scenario, turns []models.Turn) {
	ctx := context.Background()

	var text string
	var err error
	if turns == nil {
		text, err = t.conversation.InitialUtterance(ctx, scenario)
	} else {
		text, err = t.conversation.NextUtterance(ctx, scenario, turns)
	}
	if err != nil {
		t.recover(live, epoch, fmt.Sprintf("customer response failed: %v", err))
		return
	}

	audioURL := ""
	if audio, synthErr := t.speech.Synthesize(ctx, text, scenario.EmotionTag); synthErr != nil {
		// Audio is best-effort: the turn still lands as text.
		log.Printf("Speech synthesis failed for session %s: %v", live.state.ID, synthErr)
	} else {
		name := fmt.Sprintf("customer-%s.mp3", uuid.New().String())
		audioURL, err = t.audioStore.UploadAudio(ctx, live.state.ID, name, audio, "audio/mpeg")
		if err != nil {
			log.Printf("Audio upload failed for session %s: %v", live.state.ID, err)
			audioURL = ""
		}
	}

	live.state.Lock()
	if live.state.Epoch() != epoch {
		live.state.Unlock()
		return
	}
	updated := live.state.Ledger().AppendTurn(constants.RoleCustomer, text)
	turnIndex := len(updated) - 1
	recordID := live.state.RecordID
	live.state.Loading = false
	live.state.Machine().Transition(session.StepListening)
	live.state.Unlock()

	live.emit(OutboundEvent{Type: EventCustomerTurn, Payload: CustomerTurnPayload{
		Text:     text,
		AudioURL: audioURL,
		Turns:    updated,
	}})

	if err := t.sessionStore.AppendResponse(ctx, &models.SessionResponse{
		SessionID: recordID,
		TurnIndex: turnIndex,
		Role:      constants.RoleCustomer,
		Text:      text,
		AudioURL:  audioURL,
	}); err != nil {
		log.Printf("Failed to persist customer turn for session %s: %v", recordID, err)
	}
}

// PlaybackFinished signals that the client finished playing the customer's
// audio; the session waits for the agent to act.
func (t *TrainingService) PlaybackFinished(sessionID string) {
	t.transitionIfCurrent(sessionID, session.StepListening, session.StepWaitingForResponse)
}

// StartRecording signals that the agent began recording a reply.
func (t *TrainingService) StartRecording(sessionID string) {
	t.transitionIfCurrent(sessionID, session.StepWaitingForResponse, session.StepRecording)
}

func (t *TrainingService) transitionIfCurrent(sessionID string, from, to session.Step) {
	live, ok := t.lookup(sessionID)
	if !ok {
		return
	}
	live.state.Lock()
	if live.state.Machine().Current() == from {
		live.state.Machine().Transition(to)
	}
	live.state.Unlock()
}

// AgentAudio receives the agent's recorded reply, transcribes it, appends
// the agent turn and hands the conversation back to the customer AI.
func (t *TrainingService) AgentAudio(ctx context.Context, sessionID string, audio []byte, filename string) {
	live, ok := t.lookup(sessionID)
	if !ok {
		return
	}

	live.state.Lock()
	if live.state.Mode != constants.ModeSimulation || live.state.ScenarioID == "" {
		live.state.Unlock()
		live.emit(OutboundEvent{Type: EventError, Payload: "no active simulation"})
		return
	}
	// The agent speaks only in reply to the customer: a recording that
	// arrives while the customer's line is still playing or generating would
	// otherwise append two consecutive agent turns and fork the reply loop.
	current := live.state.Machine().Current()
	replyTurn := current == session.StepWaitingForResponse || current == session.StepRecording
	if !replyTurn || live.state.Ledger().LastRole() != constants.RoleCustomer {
		live.state.Unlock()
		live.emit(OutboundEvent{Type: EventError, Payload: "no customer turn to reply to"})
		return
	}
	scenarioID := live.state.ScenarioID
	live.state.Loading = true
	live.state.Machine().Transition(session.StepTranscribing)
	epoch := live.state.Epoch()
	live.state.Unlock()

	go t.processAgentAudio(live, epoch, scenarioID, audio, filename)
}

func (t *TrainingService) processAgentAudio(live *liveSession, epoch uint64, scenarioID string, audio []byte, filename string) {
	ctx := context.Background()

	text, err := t.speech.Transcribe(ctx, audio, filename)
	if err != nil {
		t.recover(live, epoch, fmt.Sprintf("transcription failed: %v", err))
		return
	}

	scenario, err := t.scenarioStore.GetScenario(ctx, scenarioID)
	if err != nil {
		t.recover(live, epoch, fmt.Sprintf("failed to load scenario: %v", err))
		return
	}

	agentAudioURL := ""
	name := fmt.Sprintf("agent-%s%s", uuid.New().String(), audioExtension(filename))
	if url, upErr := t.audioStore.UploadAudio(ctx, live.state.ID, name, audio, "audio/webm"); upErr != nil {
		log.Printf("Agent audio upload failed for session %s: %v", live.state.ID, upErr)
	} else {
		agentAudioURL = url
	}

	live.state.Lock()
	if live.state.Epoch() != epoch {
		live.state.Unlock()
		return
	}
	updated := live.state.Ledger().AppendTurn(constants.RoleAgent, text)
	turnIndex := len(updated) - 1
	recordID := live.state.RecordID
	live.state.Machine().Transition(session.StepGeneratingResponse)
	live.state.Unlock()

	live.emit(OutboundEvent{Type: EventAgentTurn, Payload: AgentTurnPayload{
		Text:  text,
		Turns: updated,
	}})

	if err := t.sessionStore.AppendResponse(ctx, &models.SessionResponse{
		SessionID: recordID,
		TurnIndex: turnIndex,
		Role:      constants.RoleAgent,
		Text:      text,
		AudioURL:  agentAudioURL,
	}); err != nil {
		log.Printf("Failed to persist agent turn for session %s: %v", recordID, err)
	}

	t.produceCustomerTurn(live, epoch, scenario, updated)
}

// EndConversation closes the simulation and requests feedback. The session
// must contain at least one agent turn; ending an exchange the agent never
// spoke in is rejected without touching storage.
func (t *TrainingService) EndConversation(ctx context.Context, sessionID string) {
	live, ok := t.lookup(sessionID)
	if !ok {
		return
	}

	live.state.Lock()
	if live.state.Mode != constants.ModeSimulation || !live.state.Ledger().HasRole(constants.RoleAgent) {
		live.state.Unlock()
		live.emit(OutboundEvent{Type: EventError, Payload: "nothing to analyze yet"})
		return
	}
	scenarioID := live.state.ScenarioID
	turns := live.state.Ledger().Turns()
	live.state.Loading = true
	live.state.Machine().Transition(session.StepAnalyzing)
	epoch := live.state.Epoch()
	live.state.Unlock()

	go t.analyzeConversation(live, epoch, scenarioID, turns)
}

func (t *TrainingService) analyzeConversation(live *liveSession, epoch uint64, scenarioID string, turns []models.Turn) {
	ctx := context.Background()

	scenario, err := t.scenarioStore.GetScenario(ctx, scenarioID)
	if err != nil {
		t.recover(live, epoch, fmt.Sprintf("failed to load scenario: %v", err))
		return
	}

	feedback, err := t.conversation.AnalyzeConversation(ctx, scenario, turns)
	if err != nil {
		t.recover(live, epoch, fmt.Sprintf("analysis failed: %v", err))
		return
	}

	live.state.Lock()
	if live.state.Epoch() != epoch {
		live.state.Unlock()
		return
	}
	recordID := live.state.RecordID
	userID := live.state.UserID
	live.state.Feedback = feedback
	live.state.Loading = false
	live.state.Unlock()

	if err := t.sessionStore.SaveFeedback(ctx, recordID, feedback); err != nil {
		log.Printf("Failed to save feedback for session %s: %v", recordID, err)
	}
	if err := t.sessionStore.CompleteSession(ctx, recordID, feedback.Overall); err != nil {
		log.Printf("Failed to complete session %s: %v", recordID, err)
	}

	newBadges := t.completeSession(ctx, recordID, userID, achievements.Event{
		Mode:  constants.ModeSimulation,
		Score: feedback.Overall,
		SubScores: map[string]int{
			constants.SubscoreEmpathy:         feedback.Empathy,
			constants.SubscoreProblemSolving:  feedback.ProblemSolving,
			constants.SubscoreProfessionalism: feedback.Professionalism,
		},
	})

	live.state.Lock()
	if live.state.Epoch() != epoch {
		live.state.Unlock()
		return
	}
	live.state.PendingBadges = newBadges
	live.state.Machine().Transition(session.StepFeedback)
	live.state.Unlock()

	live.emit(OutboundEvent{Type: EventFeedback, Payload: FeedbackPayload{
		Feedback: *feedback,
		Turns:    turns,
	}})
	if len(newBadges) > 0 {
		live.emit(OutboundEvent{Type: EventBadgesEarned, Payload: newBadges})
	}
}

// StartQuiz begins an attempt on a quiz set: loads the questions, persists
// the session row and starts the countdown when the set is timed.
func (t *TrainingService) StartQuiz(ctx context.Context, sessionID, setID string) {
	live, ok := t.lookup(sessionID)
	if !ok {
		return
	}

	set, err := t.quizStore.GetQuizSet(ctx, setID)
	if err != nil {
		t.fail(live, fmt.Sprintf("failed to load quiz set: %v", err))
		return
	}
	questions, err := t.quizStore.GetQuestions(ctx, setID)
	if err != nil {
		t.fail(live, fmt.Sprintf("failed to load questions: %v", err))
		return
	}
	if len(questions) == 0 {
		live.emit(OutboundEvent{Type: EventError, Payload: "quiz set has no questions"})
		return
	}

	record := &models.TrainingSession{
		UserID:    live.state.UserID,
		Mode:      constants.ModeQuiz,
		QuizSetID: sql.NullString{String: set.ID, Valid: true},
		Status:    constants.SessionStatusActive,
	}
	if err := t.sessionStore.CreateSession(ctx, record); err != nil {
		t.fail(live, fmt.Sprintf("failed to create session: %v", err))
		return
	}

	live.state.Lock()
	// A fresh start replaces whatever exercise was running: the old
	// countdown is stopped and its continuations are invalidated before the
	// new attempt is installed.
	prevRecordID := live.state.RecordID
	live.state.ClearExercise()
	live.state.Mode = constants.ModeQuiz
	live.state.QuizSetID = set.ID
	live.state.RecordID = record.ID
	epoch := live.state.Epoch()

	attempt := session.NewAttempt(questions, lockedClock{inner: t.clock, state: live.state},
		func() {
			live.emit(OutboundEvent{Type: EventTimeWarning, Payload: warningThreshold()})
		},
		func(result models.QuizResult) {
			// Fires inside a clock tick with the session lock held; the
			// pipeline re-acquires it on its own goroutine.
			live.emit(OutboundEvent{Type: EventTimeExpired})
			go t.finishQuiz(live, epoch, set, result, true)
		},
	)
	live.state.SetAttempt(attempt)
	attempt.Start(set.TimeLimitSec)
	remaining, _ := attempt.RemainingSeconds()
	live.state.Machine().Transition(session.StepQuizSolver)
	live.state.Unlock()

	t.abandonReplaced(ctx, prevRecordID)

	views := make([]QuizQuestionView, len(questions))
	for i, q := range questions {
		views[i] = QuizQuestionView{ID: q.ID, Type: q.Type, Prompt: q.Prompt, Options: q.Options}
	}
	live.emit(OutboundEvent{Type: EventQuizStarted, Payload: QuizStartedPayload{
		SetID:            set.ID,
		Title:            set.Title,
		Questions:        views,
		TimeLimitSec:     set.TimeLimitSec,
		RemainingSeconds: remaining,
	}})
}

func warningThreshold() map[string]int {
	return map[string]int{"remaining_seconds": 60}
}

// Answer records one selected answer on the active attempt.
func (t *TrainingService) Answer(sessionID, questionID string, value any) {
	live, ok := t.lookup(sessionID)
	if !ok {
		return
	}
	live.state.Lock()
	if attempt := live.state.Attempt(); attempt != nil {
		attempt.RecordAnswer(questionID, value)
	}
	live.state.Unlock()
}

// SubmitQuiz grades the active attempt. Submitting an attempt the countdown
// already expired returns the expiry result unchanged.
func (t *TrainingService) SubmitQuiz(ctx context.Context, sessionID string) {
	live, ok := t.lookup(sessionID)
	if !ok {
		return
	}

	live.state.Lock()
	attempt := live.state.Attempt()
	if attempt == nil {
		live.state.Unlock()
		live.emit(OutboundEvent{Type: EventError, Payload: "no active quiz"})
		return
	}
	alreadyFinal := attempt.State() == session.AttemptExpired || attempt.State() == session.AttemptSubmitted
	epoch := live.state.Epoch()
	setID := live.state.QuizSetID
	result := attempt.Submit()
	live.state.Unlock()

	if alreadyFinal {
		// Expiry already ran the finish pipeline; just re-send the result.
		set, err := t.quizStore.GetQuizSet(ctx, setID)
		if err != nil {
			t.fail(live, fmt.Sprintf("failed to load quiz set: %v", err))
			return
		}
		live.emit(OutboundEvent{Type: EventQuizResult, Payload: t.resultPayload(set, result, false)})
		return
	}

	set, err := t.quizStore.GetQuizSet(ctx, setID)
	if err != nil {
		t.fail(live, fmt.Sprintf("failed to load quiz set: %v", err))
		return
	}
	t.finishQuiz(live, epoch, set, result, false)
}

// finishQuiz runs the shared completion pipeline for both submission paths.
// Callers must not hold the session lock.
func (t *TrainingService) finishQuiz(live *liveSession, epoch uint64, set *models.QuizSet, result models.QuizResult, autoExpired bool) {
	ctx := context.Background()

	live.state.Lock()
	if live.state.Epoch() != epoch {
		live.state.Unlock()
		return
	}
	recordID := live.state.RecordID
	userID := live.state.UserID
	live.state.LastResult = &result
	live.state.Unlock()

	if err := t.quizStore.SaveQuizResult(ctx, recordID, userID, set.ID, &result); err != nil {
		log.Printf("Failed to save quiz result for session %s: %v", recordID, err)
	}
	if err := t.sessionStore.CompleteSession(ctx, recordID, result.Score); err != nil {
		log.Printf("Failed to complete session %s: %v", recordID, err)
	}

	newBadges := t.completeSession(ctx, recordID, userID, achievements.Event{
		Mode:  constants.ModeQuiz,
		Score: result.Score,
	})

	live.state.Lock()
	if live.state.Epoch() != epoch {
		live.state.Unlock()
		return
	}
	live.state.PendingBadges = newBadges
	live.state.Machine().Transition(session.StepQuizResult)
	live.state.Unlock()

	live.emit(OutboundEvent{Type: EventQuizResult, Payload: t.resultPayload(set, result, autoExpired)})
	if len(newBadges) > 0 {
		live.emit(OutboundEvent{Type: EventBadgesEarned, Payload: newBadges})
	}
}

// lockedClock serializes clock ticks with every other session operation by
// running them under the session lock.
type lockedClock struct {
	inner session.Clock
	state *session.Session
}

func (c lockedClock) Start(interval time.Duration, tick func()) func() {
	return c.inner.Start(interval, func() {
		c.state.Lock()
		tick()
		c.state.Unlock()
	})
}

func (t *TrainingService) resultPayload(set *models.QuizSet, result models.QuizResult, autoExpired bool) QuizResultPayload {
	explanations := make(map[string]string)
	for _, id := range result.WrongQuestionIDs {
		explanations[id] = ""
	}
	// Fill explanations from the stored questions; absence is tolerated.
	if questions, err := t.quizStore.GetQuestions(context.Background(), set.ID); err == nil {
		for _, q := range questions {
			if _, wrong := explanations[q.ID]; wrong {
				explanations[q.ID] = q.Explanation
			}
		}
	}
	return QuizResultPayload{
		Result:       result,
		PassScore:    set.PassScore,
		Passed:       result.Score >= set.PassScore,
		Explanations: explanations,
		AutoExpired:  autoExpired,
	}
}

// completeSession updates cumulative stats, evaluates badges and publishes
// the completion events. Returns the badges newly awarded.
func (t *TrainingService) completeSession(ctx context.Context, recordID, userID string, event achievements.Event) []models.Badge {
	stats, err := t.statsStore.GetStats(ctx, userID)
	if err != nil {
		log.Printf("Failed to load stats for user %s: %v", userID, err)
		return nil
	}
	stats.CompletedSessions++
	stats.TotalScore += event.Score
	stats.Level = stats.TotalScore/1000 + 1
	if err := t.statsStore.UpsertStats(ctx, stats); err != nil {
		log.Printf("Failed to update stats for user %s: %v", userID, err)
	}

	t.publish(ctx, constants.QueueSessionCompleted, sessionCompletedMessage{
		SessionID: recordID,
		UserID:    userID,
		Mode:      event.Mode,
		Score:     event.Score,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	badges, err := t.badgeStore.ListBadges(ctx)
	if err != nil {
		log.Printf("Failed to load badges: %v", err)
		return nil
	}
	earned, err := t.badgeStore.GetEarnedBadgeIDs(ctx, userID)
	if err != nil {
		log.Printf("Failed to load earned badges for user %s: %v", userID, err)
		return nil
	}

	newIDs := achievements.Evaluate(event, *stats, earned, badges)
	if len(newIDs) == 0 {
		return nil
	}

	byID := make(map[string]models.Badge, len(badges))
	for _, b := range badges {
		byID[b.ID] = b
	}

	var awarded []models.Badge
	for _, id := range newIDs {
		if err := t.badgeStore.AwardBadge(ctx, userID, id); err != nil {
			log.Printf("Failed to award badge %s to user %s: %v", id, userID, err)
			continue
		}
		badge := byID[id]
		awarded = append(awarded, badge)
		t.publish(ctx, constants.QueueBadgeEarned, badgeEarnedMessage{
			UserID:    userID,
			BadgeID:   badge.ID,
			BadgeName: badge.Name,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
	return awarded
}

func (t *TrainingService) publish(ctx context.Context, queue string, message any) {
	if t.publisher == nil {
		return
	}
	body, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal %s message: %v", queue, err)
		return
	}
	if err := t.publisher.Publish(ctx, queue, body); err != nil {
		log.Printf("Failed to publish to %s: %v", queue, err)
	}
}

// Back handles the browser back gesture for a session.
func (t *TrainingService) Back(sessionID string) {
	live, ok := t.lookup(sessionID)
	if !ok {
		return
	}
	live.state.Lock()
	_, reset := live.state.GoBack()
	if !reset && live.state.Machine().Current() != session.StepQuizSolver {
		// Leaving the solver abandons the attempt and its countdown.
		if attempt := live.state.Attempt(); attempt != nil {
			attempt.Stop()
			live.state.SetAttempt(nil)
		}
	}
	live.state.Unlock()
	if reset {
		live.emit(OutboundEvent{Type: EventSessionReset})
	}
}

// GoHome abandons whatever is in progress and returns to mode selection.
func (t *TrainingService) GoHome(sessionID string) {
	live, ok := t.lookup(sessionID)
	if !ok {
		return
	}
	live.state.Lock()
	live.state.Reset()
	live.state.Unlock()
	live.emit(OutboundEvent{Type: EventSessionReset})
}

// OpenProfile shows the user's cumulative stats and earned badges.
func (t *TrainingService) OpenProfile(ctx context.Context, sessionID string) {
	live, ok := t.lookup(sessionID)
	if !ok {
		return
	}

	stats, err := t.statsStore.GetStats(ctx, live.state.UserID)
	if err != nil {
		t.fail(live, fmt.Sprintf("failed to load stats: %v", err))
		return
	}
	badges, err := t.badgeStore.ListBadges(ctx)
	if err != nil {
		t.fail(live, fmt.Sprintf("failed to load badges: %v", err))
		return
	}
	earned, err := t.badgeStore.GetUserBadges(ctx, live.state.UserID)
	if err != nil {
		t.fail(live, fmt.Sprintf("failed to load earned badges: %v", err))
		return
	}

	live.state.Lock()
	live.state.Machine().Transition(session.StepProfile)
	live.state.Unlock()

	live.emit(OutboundEvent{Type: EventProfile, Payload: ProfilePayload{
		Stats:  *stats,
		Badges: badges,
		Earned: earned,
	}})
}

// OpenLeaderboard shows the top users by total score.
func (t *TrainingService) OpenLeaderboard(ctx context.Context, sessionID string) {
	live, ok := t.lookup(sessionID)
	if !ok {
		return
	}

	entries, err := t.statsStore.GetLeaderboard(ctx, 10)
	if err != nil {
		t.fail(live, fmt.Sprintf("failed to load leaderboard: %v", err))
		return
	}

	live.state.Lock()
	live.state.Machine().Transition(session.StepLeaderboard)
	live.state.Unlock()

	live.emit(OutboundEvent{Type: EventLeaderboard, Payload: entries})
}

// fail reports an error to the client without moving the step machine; used
// for rejected operations issued from a stable step.
func (t *TrainingService) fail(live *liveSession, msg string) {
	live.state.Lock()
	live.state.LastError = msg
	live.state.Loading = false
	live.state.Unlock()
	live.emit(OutboundEvent{Type: EventError, Payload: msg})
}

// recover unwinds a failed async call issued from a transient step: the
// machine lands on the stable step beneath it and the error is surfaced.
// Stale failures from before a reset are discarded like stale successes.
func (t *TrainingService) recover(live *liveSession, epoch uint64, msg string) {
	live.state.Lock()
	if live.state.Epoch() != epoch {
		live.state.Unlock()
		return
	}
	live.state.RecoverToStable(msg)
	live.state.Unlock()
	live.emit(OutboundEvent{Type: EventError, Payload: msg})
}

func audioExtension(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			return filename[i:]
		}
	}
	return ".webm"
}
