package achievements

import (
	"reflect"
	"testing"

	"training-service/internal/constants"
	"training-service/internal/models"
)

func badge(id, condType, condValue string) models.Badge {
	return models.Badge{ID: id, Name: id, ConditionType: condType, ConditionValue: condValue}
}

func TestEvaluateConditions(t *testing.T) {
	testCases := []struct {
		name     string
		badge    models.Badge
		event    Event
		stats    models.UserStats
		expected bool
	}{
		{
			name:     "first session qualifies after one completion",
			badge:    badge("b1", constants.BadgeConditionFirstSession, ""),
			event:    Event{Mode: constants.ModeQuiz, Score: 10},
			stats:    models.UserStats{CompletedSessions: 1},
			expected: true,
		},
		{
			name:     "perfect score with default threshold",
			badge:    badge("b2", constants.BadgeConditionPerfectScore, ""),
			event:    Event{Mode: constants.ModeQuiz, Score: 100},
			stats:    models.UserStats{CompletedSessions: 5},
			expected: true,
		},
		{
			name:     "perfect score below default threshold",
			badge:    badge("b2", constants.BadgeConditionPerfectScore, ""),
			event:    Event{Mode: constants.ModeQuiz, Score: 99},
			stats:    models.UserStats{CompletedSessions: 5},
			expected: false,
		},
		{
			name:     "perfect score with custom threshold",
			badge:    badge("b2", constants.BadgeConditionPerfectScore, `{"score": 90}`),
			event:    Event{Mode: constants.ModeSimulation, Score: 92},
			stats:    models.UserStats{CompletedSessions: 5},
			expected: true,
		},
		{
			name:     "session count met",
			badge:    badge("b3", constants.BadgeConditionSessionCount, `{"count": 10}`),
			event:    Event{Mode: constants.ModeQuiz, Score: 50},
			stats:    models.UserStats{CompletedSessions: 10},
			expected: true,
		},
		{
			name:     "session count not met",
			badge:    badge("b3", constants.BadgeConditionSessionCount, `{"count": 10}`),
			event:    Event{Mode: constants.ModeQuiz, Score: 50},
			stats:    models.UserStats{CompletedSessions: 9},
			expected: false,
		},
		{
			name:     "session count without a configured count never qualifies",
			badge:    badge("b3", constants.BadgeConditionSessionCount, `{}`),
			event:    Event{Mode: constants.ModeQuiz, Score: 50},
			stats:    models.UserStats{CompletedSessions: 100},
			expected: false,
		},
		{
			name:  "subscore threshold met",
			badge: badge("b4", constants.BadgeConditionAverageSubscore, `{"metric": "empathy", "score": 80}`),
			event: Event{
				Mode:      constants.ModeSimulation,
				Score:     85,
				SubScores: map[string]int{constants.SubscoreEmpathy: 88},
			},
			stats:    models.UserStats{CompletedSessions: 3},
			expected: true,
		},
		{
			name:  "subscore threshold not met",
			badge: badge("b4", constants.BadgeConditionAverageSubscore, `{"metric": "empathy", "score": 80}`),
			event: Event{
				Mode:      constants.ModeSimulation,
				Score:     85,
				SubScores: map[string]int{constants.SubscoreEmpathy: 70},
			},
			stats:    models.UserStats{CompletedSessions: 3},
			expected: false,
		},
		{
			name:     "subscore condition never qualifies for quiz events",
			badge:    badge("b4", constants.BadgeConditionAverageSubscore, `{"metric": "empathy", "score": 80}`),
			event:    Event{Mode: constants.ModeQuiz, Score: 100},
			stats:    models.UserStats{CompletedSessions: 3},
			expected: false,
		},
		{
			name:     "unknown condition type never qualifies",
			badge:    badge("b5", "streak_days", `{"count": 7}`),
			event:    Event{Mode: constants.ModeQuiz, Score: 100},
			stats:    models.UserStats{CompletedSessions: 100},
			expected: false,
		},
		{
			name:     "malformed condition value never qualifies",
			badge:    badge("b6", constants.BadgeConditionSessionCount, `{broken`),
			event:    Event{Mode: constants.ModeQuiz, Score: 100},
			stats:    models.UserStats{CompletedSessions: 100},
			expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			awarded := Evaluate(tc.event, tc.stats, map[string]bool{}, []models.Badge{tc.badge})
			if got := len(awarded) == 1; got != tc.expected {
				t.Errorf("Expected qualifies=%v, got awarded=%v", tc.expected, awarded)
			}
		})
	}
}

func TestEvaluateSkipsAlreadyEarned(t *testing.T) {
	badges := []models.Badge{
		badge("first", constants.BadgeConditionFirstSession, ""),
		badge("tenth", constants.BadgeConditionSessionCount, `{"count": 10}`),
	}
	event := Event{Mode: constants.ModeQuiz, Score: 50}
	stats := models.UserStats{CompletedSessions: 12}

	awarded := Evaluate(event, stats, map[string]bool{"first": true}, badges)

	if !reflect.DeepEqual(awarded, []string{"tenth"}) {
		t.Errorf("Expected only the unearned badge, got %v", awarded)
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	badges := []models.Badge{badge("first", constants.BadgeConditionFirstSession, "")}
	event := Event{Mode: constants.ModeSimulation, Score: 70}
	stats := models.UserStats{CompletedSessions: 1}
	earned := map[string]bool{}

	first := Evaluate(event, stats, earned, badges)
	if !reflect.DeepEqual(first, []string{"first"}) {
		t.Fatalf("Expected first evaluation to award, got %v", first)
	}

	// The caller persists the award; re-running with the updated earned set
	// must award nothing.
	earned["first"] = true
	second := Evaluate(event, stats, earned, badges)
	if len(second) != 0 {
		t.Errorf("Expected no award on re-evaluation, got %v", second)
	}
}

func TestEvaluateMultipleAwardsInOneEvent(t *testing.T) {
	badges := []models.Badge{
		badge("first", constants.BadgeConditionFirstSession, ""),
		badge("perfect", constants.BadgeConditionPerfectScore, ""),
	}
	event := Event{Mode: constants.ModeQuiz, Score: 100}
	stats := models.UserStats{CompletedSessions: 1}

	awarded := Evaluate(event, stats, map[string]bool{}, badges)

	if !reflect.DeepEqual(awarded, []string{"first", "perfect"}) {
		t.Errorf("Expected both badges, got %v", awarded)
	}
}
