package session

import (
	"encoding/json"
	"math"

	"training-service/internal/constants"
	"training-service/internal/models"
)

// Grade maps a question set and an answer map to a result record. It is a
// pure function: the same inputs always produce the same result, whether
// invoked on expiry or on explicit submission. A question is correct iff an
// answer exists for its id and equals the correct answer exactly, with the
// answer's type distinguishing true/false from multiple choice. Every other
// question, unanswered or mismatched, lands in WrongQuestionIDs.
func Grade(questions []models.Question, answers map[string]any) models.QuizResult {
	result := models.QuizResult{
		TotalQuestions:   len(questions),
		WrongQuestionIDs: []string{},
		Answers:          make(map[string]any, len(answers)),
	}
	for id, v := range answers {
		result.Answers[id] = v
	}

	for _, q := range questions {
		value, answered := answers[q.ID]
		if answered && answerMatches(&q, value) {
			result.CorrectCount++
		} else {
			result.WrongQuestionIDs = append(result.WrongQuestionIDs, q.ID)
		}
	}

	if result.TotalQuestions > 0 {
		ratio := float64(result.CorrectCount) / float64(result.TotalQuestions)
		result.Score = int(math.Round(ratio * 100))
	}

	return result
}

func answerMatches(q *models.Question, value any) bool {
	var correct any
	if err := json.Unmarshal([]byte(q.CorrectAnswer), &correct); err != nil {
		return false
	}

	switch q.Type {
	case constants.QuestionTypeTrueFalse:
		want, ok := correct.(bool)
		if !ok {
			return false
		}
		got, ok := value.(bool)
		return ok && got == want

	case constants.QuestionTypeMultipleChoice:
		want, ok := correct.(string)
		if !ok {
			return false
		}
		got, ok := value.(string)
		return ok && got == want
	}

	return false
}
