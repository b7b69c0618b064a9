package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"training-service/internal/constants"
	"training-service/internal/models"
	"training-service/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessionStore struct {
	mu        sync.Mutex
	created   []*models.TrainingSession
	responses []*models.SessionResponse
	completed map[string]int
	abandoned []string
	feedback  map[string]*models.FeedbackScore
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		completed: make(map[string]int),
		feedback:  make(map[string]*models.FeedbackScore),
	}
}

func (f *fakeSessionStore) CreateSession(_ context.Context, s *models.TrainingSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = fmt.Sprintf("rec-%d", len(f.created)+1)
	f.created = append(f.created, s)
	return nil
}

func (f *fakeSessionStore) AppendResponse(_ context.Context, resp *models.SessionResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeSessionStore) SaveFeedback(_ context.Context, sessionID string, feedback *models.FeedbackScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback[sessionID] = feedback
	return nil
}

func (f *fakeSessionStore) CompleteSession(_ context.Context, id string, score int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[id] = score
	return nil
}

func (f *fakeSessionStore) AbandonSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abandoned = append(f.abandoned, id)
	return nil
}

func (f *fakeSessionStore) completedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completed)
}

func (f *fakeSessionStore) responseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.responses)
}

type fakeScenarioStore struct {
	scenarios []models.Scenario
}

func (f *fakeScenarioStore) ListScenarios(context.Context) ([]models.Scenario, error) {
	return f.scenarios, nil
}

func (f *fakeScenarioStore) GetScenario(_ context.Context, id string) (*models.Scenario, error) {
	for i := range f.scenarios {
		if f.scenarios[i].ID == id {
			return &f.scenarios[i], nil
		}
	}
	return nil, fmt.Errorf("scenario %s not found", id)
}

type fakeQuizStore struct {
	mu        sync.Mutex
	sets      []models.QuizSet
	questions map[string][]models.Question
	saved     []*models.QuizResult
}

func (f *fakeQuizStore) ListQuizSets(context.Context) ([]models.QuizSet, error) {
	return f.sets, nil
}

func (f *fakeQuizStore) GetQuizSet(_ context.Context, id string) (*models.QuizSet, error) {
	for i := range f.sets {
		if f.sets[i].ID == id {
			return &f.sets[i], nil
		}
	}
	return nil, fmt.Errorf("quiz set %s not found", id)
}

func (f *fakeQuizStore) GetQuestions(_ context.Context, setID string) ([]models.Question, error) {
	return f.questions[setID], nil
}

func (f *fakeQuizStore) SaveQuizResult(_ context.Context, _, _, _ string, result *models.QuizResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, result)
	return nil
}

func (f *fakeQuizStore) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakeStatsStore struct {
	mu    sync.Mutex
	stats map[string]models.UserStats
}

func newFakeStatsStore() *fakeStatsStore {
	return &fakeStatsStore{stats: make(map[string]models.UserStats)}
}

func (f *fakeStatsStore) GetStats(_ context.Context, userID string) (*models.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.stats[userID]; ok {
		copied := s
		return &copied, nil
	}
	return &models.UserStats{UserID: userID, Level: 1}, nil
}

func (f *fakeStatsStore) UpsertStats(_ context.Context, stats *models.UserStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats[stats.UserID] = *stats
	return nil
}

func (f *fakeStatsStore) GetLeaderboard(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	return nil, nil
}

func (f *fakeStatsStore) get(userID string) models.UserStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats[userID]
}

type fakeBadgeStore struct {
	mu     sync.Mutex
	badges []models.Badge
	awards map[string]map[string]bool
}

func newFakeBadgeStore(badges ...models.Badge) *fakeBadgeStore {
	return &fakeBadgeStore{badges: badges, awards: make(map[string]map[string]bool)}
}

func (f *fakeBadgeStore) ListBadges(context.Context) ([]models.Badge, error) {
	return f.badges, nil
}

func (f *fakeBadgeStore) GetEarnedBadgeIDs(_ context.Context, userID string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	earned := make(map[string]bool)
	for id := range f.awards[userID] {
		earned[id] = true
	}
	return earned, nil
}

func (f *fakeBadgeStore) AwardBadge(_ context.Context, userID, badgeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.awards[userID] == nil {
		f.awards[userID] = make(map[string]bool)
	}
	f.awards[userID][badgeID] = true
	return nil
}

func (f *fakeBadgeStore) GetUserBadges(_ context.Context, userID string) ([]models.EarnedBadge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var earned []models.EarnedBadge
	for id := range f.awards[userID] {
		earned = append(earned, models.EarnedBadge{UserID: userID, BadgeID: id})
	}
	return earned, nil
}

func (f *fakeBadgeStore) awardCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.awards[userID])
}

type fakeConversation struct {
	mu           sync.Mutex
	text         string
	analysis     *models.FeedbackScore
	err          error
	analyzeCalls int
}

func (f *fakeConversation) InitialUtterance(context.Context, *models.Scenario) (string, error) {
	return f.text, f.err
}

func (f *fakeConversation) NextUtterance(context.Context, *models.Scenario, []models.Turn) (string, error) {
	return f.text, f.err
}

func (f *fakeConversation) AnalyzeConversation(context.Context, *models.Scenario, []models.Turn) (*models.FeedbackScore, error) {
	f.mu.Lock()
	f.analyzeCalls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

func (f *fakeConversation) analyzed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analyzeCalls
}

type fakeSpeech struct {
	transcript string
	err        error
}

func (f *fakeSpeech) Transcribe(context.Context, []byte, string) (string, error) {
	return f.transcript, f.err
}

func (f *fakeSpeech) Synthesize(context.Context, string, string) ([]byte, error) {
	return []byte("audio"), nil
}

type fakeAudioStore struct{}

func (fakeAudioStore) UploadAudio(_ context.Context, sessionID, name string, _ []byte, _ string) (string, error) {
	return "/audio/" + sessionID + "/" + name, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{messages: make(map[string][][]byte)}
}

func (f *fakePublisher) Publish(_ context.Context, queueName string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[queueName] = append(f.messages[queueName], body)
	return nil
}

func (f *fakePublisher) count(queueName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages[queueName])
}

type manualClock struct {
	mu   sync.Mutex
	tick func()
}

func (c *manualClock) Start(_ time.Duration, tick func()) func() {
	c.mu.Lock()
	c.tick = tick
	c.mu.Unlock()
	return func() {}
}

func (c *manualClock) advance(seconds int) {
	c.mu.Lock()
	tick := c.tick
	c.mu.Unlock()
	for i := 0; i < seconds; i++ {
		tick()
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []OutboundEvent
	ch     chan OutboundEvent
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{ch: make(chan OutboundEvent, 128)}
}

func (r *eventRecorder) emit(e OutboundEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.ch <- e
}

func (r *eventRecorder) wait(t *testing.T, eventType string) OutboundEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-r.ch:
			if e.Type == eventType {
				return e
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for %s event", eventType)
		}
	}
}

func (r *eventRecorder) has(eventType string) bool {
	return r.count(eventType) > 0
}

func (r *eventRecorder) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	svc          *TrainingService
	sessionStore *fakeSessionStore
	quizStore    *fakeQuizStore
	statsStore   *fakeStatsStore
	badgeStore   *fakeBadgeStore
	conversation *fakeConversation
	publisher    *fakePublisher
	clock        *manualClock
	recorder     *eventRecorder
}

func newFixture() *fixture {
	f := &fixture{
		sessionStore: newFakeSessionStore(),
		quizStore: &fakeQuizStore{
			sets: []models.QuizSet{
				{ID: "set1", Title: "Returns policy", TimeLimitSec: 61, PassScore: 60},
				{ID: "set2", Title: "Untimed basics", TimeLimitSec: 0, PassScore: 60},
			},
			questions: map[string][]models.Question{
				"set1": {
					{ID: "q1", Type: constants.QuestionTypeMultipleChoice, CorrectAnswer: `"B"`, Explanation: "Policy section 2"},
					{ID: "q2", Type: constants.QuestionTypeTrueFalse, CorrectAnswer: `true`},
				},
				"set2": {
					{ID: "q1", Type: constants.QuestionTypeMultipleChoice, CorrectAnswer: `"B"`},
					{ID: "q2", Type: constants.QuestionTypeTrueFalse, CorrectAnswer: `true`},
				},
			},
		},
		statsStore: newFakeStatsStore(),
		badgeStore: newFakeBadgeStore(
			models.Badge{ID: "first", Name: "First Steps", ConditionType: constants.BadgeConditionFirstSession},
		),
		conversation: &fakeConversation{
			text:     "Where is my order?",
			analysis: &models.FeedbackScore{Overall: 80, Empathy: 85, ProblemSolving: 75, Professionalism: 82},
		},
		publisher: newFakePublisher(),
		clock:     &manualClock{},
		recorder:  newEventRecorder(),
	}

	f.svc = NewTrainingService(
		f.sessionStore,
		&fakeScenarioStore{scenarios: []models.Scenario{
			{ID: "sc1", Title: "Lost parcel", Complaint: "Order never arrived", EmotionTag: "angry"},
		}},
		f.quizStore,
		f.statsStore,
		f.badgeStore,
		f.conversation,
		&fakeSpeech{transcript: "Let me look into that for you."},
		fakeAudioStore{},
		f.publisher,
		f.clock,
	)
	return f
}

func (f *fixture) connect() {
	f.svc.Connect("s1", "u1", f.recorder.emit)
}

func (f *fixture) live(t *testing.T) *liveSession {
	t.Helper()
	live, ok := f.svc.lookup("s1")
	require.True(t, ok, "live session missing")
	return live
}

func TestEndConversationRequiresAgentTurn(t *testing.T) {
	f := newFixture()
	f.connect()
	f.svc.SelectMode(context.Background(), "s1", constants.ModeSimulation)

	f.svc.EndConversation(context.Background(), "s1")

	assert.True(t, f.recorder.has(EventError), "expected an error event")
	assert.Equal(t, 0, f.conversation.analyzed(), "analysis must not run on an empty exchange")
	assert.Equal(t, 0, f.sessionStore.completedCount(), "nothing should be persisted")
}

func TestStaleCustomerTurnDiscardedAfterReset(t *testing.T) {
	f := newFixture()
	f.connect()
	live := f.live(t)

	live.state.Lock()
	epoch := live.state.Epoch()
	live.state.Unlock()

	// The user goes home while the customer response is still in flight.
	f.svc.GoHome("s1")

	scenario := &models.Scenario{ID: "sc1", EmotionTag: "angry"}
	f.svc.produceCustomerTurn(live, epoch, scenario, nil)

	assert.False(t, f.recorder.has(EventCustomerTurn), "stale turn must not reach the client")
	assert.Equal(t, 0, f.sessionStore.responseCount(), "stale turn must not be persisted")

	live.state.Lock()
	assert.Equal(t, 0, live.state.Ledger().Len(), "stale turn must not enter the ledger")
	live.state.Unlock()
}

func TestFailedGenerationRecoversToStableStep(t *testing.T) {
	f := newFixture()
	f.conversation.err = fmt.Errorf("model unavailable")
	f.connect()

	f.svc.SelectMode(context.Background(), "s1", constants.ModeSimulation)
	f.svc.SelectScenario(context.Background(), "s1", "sc1")

	f.recorder.wait(t, EventError)

	live := f.live(t)
	live.state.Lock()
	current := live.state.Machine().Current()
	live.state.Unlock()
	assert.Equal(t, session.StepScenarioSelection, current, "expected recovery onto the step beneath the transient one")
}

func TestQuizSubmitRunsCompletionPipelineOnce(t *testing.T) {
	f := newFixture()
	f.connect()
	ctx := context.Background()

	f.svc.SelectMode(ctx, "s1", constants.ModeQuiz)
	f.svc.StartQuiz(ctx, "s1", "set2")

	started := f.recorder.wait(t, EventQuizStarted)
	payload, ok := started.Payload.(QuizStartedPayload)
	require.True(t, ok)
	require.Len(t, payload.Questions, 2)
	assert.Empty(t, payload.Questions[0].Options, "options pass through empty here, but never the answer key")

	f.svc.Answer("s1", "q1", "B")
	f.svc.Answer("s1", "q2", true)
	f.svc.SubmitQuiz(ctx, "s1")

	result := f.recorder.wait(t, EventQuizResult)
	resultPayload, ok := result.Payload.(QuizResultPayload)
	require.True(t, ok)
	assert.Equal(t, 100, resultPayload.Result.Score)
	assert.True(t, resultPayload.Passed)
	assert.False(t, resultPayload.AutoExpired)

	stats := f.statsStore.get("u1")
	assert.Equal(t, 1, stats.CompletedSessions)
	assert.Equal(t, 100, stats.TotalScore)
	assert.Equal(t, 1, stats.Level)

	assert.Equal(t, 1, f.badgeStore.awardCount("u1"))
	assert.True(t, f.recorder.has(EventBadgesEarned))
	assert.Equal(t, 1, f.publisher.count(constants.QueueSessionCompleted))
	assert.Equal(t, 1, f.publisher.count(constants.QueueBadgeEarned))
	assert.Equal(t, 1, f.sessionStore.completedCount())

	// Submitting again re-sends the result but never re-runs the pipeline.
	f.svc.SubmitQuiz(ctx, "s1")
	f.recorder.wait(t, EventQuizResult)
	assert.Equal(t, 1, f.sessionStore.completedCount())
	assert.Equal(t, 1, f.publisher.count(constants.QueueSessionCompleted))
	stats = f.statsStore.get("u1")
	assert.Equal(t, 1, stats.CompletedSessions)
}

func TestQuizExpiryAutoSubmits(t *testing.T) {
	f := newFixture()
	f.connect()
	ctx := context.Background()

	f.svc.SelectMode(ctx, "s1", constants.ModeQuiz)
	f.svc.StartQuiz(ctx, "s1", "set1")
	f.recorder.wait(t, EventQuizStarted)

	f.svc.Answer("s1", "q2", true)

	f.clock.advance(1)
	f.recorder.wait(t, EventTimeWarning)

	f.clock.advance(60)
	f.recorder.wait(t, EventTimeExpired)

	result := f.recorder.wait(t, EventQuizResult)
	resultPayload, ok := result.Payload.(QuizResultPayload)
	require.True(t, ok)
	assert.Equal(t, 50, resultPayload.Result.Score, "unanswered question counts as wrong")
	assert.True(t, resultPayload.AutoExpired)
	assert.False(t, resultPayload.Passed)
	assert.Equal(t, "Policy section 2", resultPayload.Explanations["q1"], "wrong answers carry explanations")

	stats := f.statsStore.get("u1")
	assert.Equal(t, 1, stats.CompletedSessions)
	assert.Equal(t, 50, stats.TotalScore)
}

func TestBackFromSolverAbandonsAttempt(t *testing.T) {
	f := newFixture()
	f.connect()
	ctx := context.Background()

	f.svc.SelectMode(ctx, "s1", constants.ModeQuiz)
	f.svc.StartQuiz(ctx, "s1", "set1")
	f.recorder.wait(t, EventQuizStarted)

	f.svc.Back("s1")

	live := f.live(t)
	live.state.Lock()
	current := live.state.Machine().Current()
	attempt := live.state.Attempt()
	live.state.Unlock()

	assert.Equal(t, session.StepQuizHome, current)
	assert.Nil(t, attempt, "back off the solver must discard the attempt")

	// Ticks from the abandoned countdown must not resurface.
	f.clock.advance(120)
	assert.False(t, f.recorder.has(EventTimeExpired))
	assert.Equal(t, 0, f.sessionStore.completedCount())
}

func TestSimulationFeedbackPipeline(t *testing.T) {
	f := newFixture()
	f.connect()
	ctx := context.Background()

	f.svc.SelectMode(ctx, "s1", constants.ModeSimulation)
	f.svc.SelectScenario(ctx, "s1", "sc1")
	f.recorder.wait(t, EventCustomerTurn)

	f.svc.PlaybackFinished("s1")
	f.svc.StartRecording("s1")
	f.svc.AgentAudio(ctx, "s1", []byte("recording"), "reply.webm")
	f.recorder.wait(t, EventAgentTurn)
	// The customer replies after every agent turn.
	f.recorder.wait(t, EventCustomerTurn)

	f.svc.EndConversation(ctx, "s1")
	feedback := f.recorder.wait(t, EventFeedback)

	feedbackPayload, ok := feedback.Payload.(FeedbackPayload)
	require.True(t, ok)
	assert.Equal(t, 80, feedbackPayload.Feedback.Overall)
	require.GreaterOrEqual(t, len(feedbackPayload.Turns), 3)

	stats := f.statsStore.get("u1")
	assert.Equal(t, 1, stats.CompletedSessions)
	assert.Equal(t, 80, stats.TotalScore)
	assert.Equal(t, 1, f.sessionStore.completedCount())
	assert.Equal(t, 1, f.badgeStore.awardCount("u1"))
}

func TestDisconnectDiscardsInFlightGeneration(t *testing.T) {
	f := newFixture()
	f.connect()
	ctx := context.Background()

	f.svc.SelectMode(ctx, "s1", constants.ModeSimulation)
	live := f.live(t)

	live.state.Lock()
	epoch := live.state.Epoch()
	live.state.Unlock()

	// The client disconnects while the customer response is still in flight.
	f.svc.Disconnect("s1")

	scenario := &models.Scenario{ID: "sc1", EmotionTag: "angry"}
	f.svc.produceCustomerTurn(live, epoch, scenario, nil)

	assert.False(t, f.recorder.has(EventCustomerTurn), "no turn may be delivered after disconnect")
	assert.Equal(t, 0, f.sessionStore.responseCount(), "no turn may be persisted after disconnect")

	live.state.Lock()
	assert.Equal(t, 0, live.state.Ledger().Len(), "disconnect must invalidate in-flight work")
	live.state.Unlock()
}

func TestStartQuizReplacesRunningAttempt(t *testing.T) {
	f := newFixture()
	f.connect()
	ctx := context.Background()

	f.svc.SelectMode(ctx, "s1", constants.ModeQuiz)
	f.svc.StartQuiz(ctx, "s1", "set1")
	f.recorder.wait(t, EventQuizStarted)

	// Starting another set abandons the first attempt and its countdown.
	f.svc.StartQuiz(ctx, "s1", "set2")
	f.recorder.wait(t, EventQuizStarted)

	f.clock.advance(120)
	assert.False(t, f.recorder.has(EventTimeExpired), "the replaced countdown must be dead")
	assert.False(t, f.recorder.has(EventQuizResult), "the replaced attempt must not produce a result")

	f.sessionStore.mu.Lock()
	abandoned := append([]string(nil), f.sessionStore.abandoned...)
	f.sessionStore.mu.Unlock()
	assert.Equal(t, []string{"rec-1"}, abandoned, "the replaced session row is marked abandoned")

	f.svc.Answer("s1", "q1", "B")
	f.svc.Answer("s1", "q2", true)
	f.svc.SubmitQuiz(ctx, "s1")

	result := f.recorder.wait(t, EventQuizResult)
	resultPayload, ok := result.Payload.(QuizResultPayload)
	require.True(t, ok)
	assert.Equal(t, 100, resultPayload.Result.Score)

	stats := f.statsStore.get("u1")
	assert.Equal(t, 1, stats.CompletedSessions, "only the finished attempt counts")
	assert.Equal(t, 100, stats.TotalScore)
	assert.Equal(t, 1, f.sessionStore.completedCount())
	assert.Equal(t, 1, f.quizStore.savedCount(), "only the finished attempt is persisted")
}

func TestAgentAudioRejectedOutOfTurn(t *testing.T) {
	f := newFixture()
	f.connect()
	ctx := context.Background()

	f.svc.SelectMode(ctx, "s1", constants.ModeSimulation)
	f.svc.SelectScenario(ctx, "s1", "sc1")
	f.recorder.wait(t, EventCustomerTurn)

	// A recording sent while the customer audio is still playing is rejected.
	f.svc.AgentAudio(ctx, "s1", []byte("too early"), "reply.webm")
	assert.Equal(t, 1, f.recorder.count(EventError))

	live := f.live(t)
	live.state.Lock()
	assert.Equal(t, 1, live.state.Ledger().Len())
	live.state.Unlock()

	f.svc.PlaybackFinished("s1")
	f.svc.StartRecording("s1")
	f.svc.AgentAudio(ctx, "s1", []byte("recording"), "reply.webm")
	f.recorder.wait(t, EventAgentTurn)

	// A second recording while the customer reply is mid-flight is rejected
	// too; accepting it would stack two agent turns and fork the reply loop.
	f.svc.AgentAudio(ctx, "s1", []byte("again"), "reply.webm")
	assert.Equal(t, 2, f.recorder.count(EventError))

	f.recorder.wait(t, EventCustomerTurn)

	live.state.Lock()
	turns := live.state.Ledger().Turns()
	live.state.Unlock()
	require.Len(t, turns, 3)
	assert.Equal(t, constants.RoleCustomer, turns[0].Role)
	assert.Equal(t, constants.RoleAgent, turns[1].Role)
	assert.Equal(t, constants.RoleCustomer, turns[2].Role)
}

func TestDisconnectAbandonsActiveSession(t *testing.T) {
	f := newFixture()
	f.connect()
	ctx := context.Background()

	f.svc.SelectMode(ctx, "s1", constants.ModeQuiz)
	f.svc.StartQuiz(ctx, "s1", "set1")
	f.recorder.wait(t, EventQuizStarted)

	f.svc.Disconnect("s1")

	f.sessionStore.mu.Lock()
	abandoned := len(f.sessionStore.abandoned)
	f.sessionStore.mu.Unlock()
	assert.Equal(t, 1, abandoned)
}
