package achievements

import (
	"encoding/json"
	"log"

	"training-service/internal/constants"
	"training-service/internal/models"
)

// Event carries the performance of one just-completed exercise session. Quiz
// sessions carry no sub-scores, so sub-score conditions never qualify for
// them.
type Event struct {
	Mode      string         `json:"mode"`
	Score     int            `json:"score"`
	SubScores map[string]int `json:"sub_scores,omitempty"`
}

// conditionValue is the decoded form of Badge.ConditionValue. Fields are
// interpreted per condition type; absent fields fall back to defaults.
type conditionValue struct {
	Score  int    `json:"score,omitempty"`
	Count  int    `json:"count,omitempty"`
	Metric string `json:"metric,omitempty"`
}

// Evaluate computes the badges newly qualifying for a user, given the event,
// the cumulative stats already reflecting the completed session, and the set
// of badge ids the user holds. It is stateless and idempotent: it never
// returns an id present in earned, and the same inputs always produce the
// same output. Persistence of awards is the caller's concern.
func Evaluate(event Event, stats models.UserStats, earned map[string]bool, badges []models.Badge) []string {
	var awarded []string

	for _, badge := range badges {
		if earned[badge.ID] {
			continue
		}
		if qualifies(&badge, event, stats) {
			awarded = append(awarded, badge.ID)
		}
	}

	return awarded
}

func qualifies(badge *models.Badge, event Event, stats models.UserStats) bool {
	var cond conditionValue
	if badge.ConditionValue != "" {
		if err := json.Unmarshal([]byte(badge.ConditionValue), &cond); err != nil {
			log.Printf("Badge %s has malformed condition value: %v", badge.ID, err)
			return false
		}
	}

	switch badge.ConditionType {
	case constants.BadgeConditionFirstSession:
		return stats.CompletedSessions >= 1

	case constants.BadgeConditionPerfectScore:
		threshold := cond.Score
		if threshold == 0 {
			threshold = 100
		}
		return event.Score >= threshold

	case constants.BadgeConditionSessionCount:
		return cond.Count > 0 && stats.CompletedSessions >= cond.Count

	case constants.BadgeConditionAverageSubscore:
		value, ok := event.SubScores[cond.Metric]
		return ok && value >= cond.Score
	}

	// Unrecognized condition types never qualify; new types added by a newer
	// admin surface must not break older evaluators.
	return false
}
