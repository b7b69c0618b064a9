package session

import (
	"reflect"
	"testing"

	"training-service/internal/constants"
	"training-service/internal/models"
)

func question(id, qType, correct string) models.Question {
	return models.Question{ID: id, Type: qType, CorrectAnswer: correct}
}

func TestGradeMixedSet(t *testing.T) {
	questions := []models.Question{
		question("q1", constants.QuestionTypeMultipleChoice, `"A"`),
		question("q2", constants.QuestionTypeMultipleChoice, `"C"`),
		question("q3", constants.QuestionTypeTrueFalse, `true`),
		question("q4", constants.QuestionTypeTrueFalse, `false`),
		question("q5", constants.QuestionTypeMultipleChoice, `"B"`),
		question("q6", constants.QuestionTypeTrueFalse, `true`),
		question("q7", constants.QuestionTypeMultipleChoice, `"D"`),
		question("q8", constants.QuestionTypeTrueFalse, `false`),
		question("q9", constants.QuestionTypeMultipleChoice, `"A"`),
		question("q10", constants.QuestionTypeTrueFalse, `true`),
	}
	answers := map[string]any{
		"q1": "A",   // correct
		"q2": "C",   // correct
		"q3": true,  // correct
		"q4": false, // correct
		"q5": "B",   // correct
		"q6": true,  // correct
		"q7": "A",   // wrong choice
		"q8": true,  // wrong choice
		"q9": "A",   // correct
		// q10 unanswered, counts as wrong
	}

	result := Grade(questions, answers)

	if result.TotalQuestions != 10 {
		t.Errorf("Expected 10 total questions, got %d", result.TotalQuestions)
	}
	if result.CorrectCount != 7 {
		t.Errorf("Expected 7 correct, got %d", result.CorrectCount)
	}
	if result.Score != 70 {
		t.Errorf("Expected score 70, got %d", result.Score)
	}
	if !reflect.DeepEqual(result.WrongQuestionIDs, []string{"q7", "q8", "q10"}) {
		t.Errorf("Expected wrong ids in question order, got %v", result.WrongQuestionIDs)
	}
}

func TestGradeIsDeterministic(t *testing.T) {
	questions := []models.Question{
		question("q1", constants.QuestionTypeTrueFalse, `true`),
		question("q2", constants.QuestionTypeMultipleChoice, `"B"`),
	}
	answers := map[string]any{"q1": true}

	first := Grade(questions, answers)
	second := Grade(questions, answers)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical results for identical inputs\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestGradeAnswerTypeMatters(t *testing.T) {
	testCases := []struct {
		name    string
		q       models.Question
		answer  any
		correct bool
	}{
		{"bool matches true_false", question("q", constants.QuestionTypeTrueFalse, `true`), true, true},
		{"string never matches true_false", question("q", constants.QuestionTypeTrueFalse, `true`), "true", false},
		{"string matches multiple_choice", question("q", constants.QuestionTypeMultipleChoice, `"B"`), "B", true},
		{"bool never matches multiple_choice", question("q", constants.QuestionTypeMultipleChoice, `"true"`), true, false},
		{"case sensitive choice", question("q", constants.QuestionTypeMultipleChoice, `"B"`), "b", false},
		{"malformed answer key never matches", question("q", constants.QuestionTypeTrueFalse, `not-json`), true, false},
		{"unknown question type never matches", question("q", "essay", `"anything"`), "anything", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := Grade([]models.Question{tc.q}, map[string]any{"q": tc.answer})
			if got := result.CorrectCount == 1; got != tc.correct {
				t.Errorf("Expected correct=%v, got correct=%v", tc.correct, got)
			}
		})
	}
}

func TestGradeRoundsHalfUp(t *testing.T) {
	questions := []models.Question{
		question("q1", constants.QuestionTypeTrueFalse, `true`),
		question("q2", constants.QuestionTypeTrueFalse, `true`),
		question("q3", constants.QuestionTypeTrueFalse, `true`),
	}

	testCases := []struct {
		name     string
		answers  map[string]any
		expected int
	}{
		{"one of three", map[string]any{"q1": true}, 33},
		{"two of three", map[string]any{"q1": true, "q2": true}, 67},
		{"none", map[string]any{}, 0},
		{"all", map[string]any{"q1": true, "q2": true, "q3": true}, 100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := Grade(questions, tc.answers)
			if result.Score != tc.expected {
				t.Errorf("Expected score %d, got %d", tc.expected, result.Score)
			}
		})
	}
}

func TestGradeEmptySet(t *testing.T) {
	result := Grade(nil, map[string]any{})

	if result.Score != 0 || result.TotalQuestions != 0 {
		t.Errorf("Expected empty result, got %+v", result)
	}
	if result.WrongQuestionIDs == nil {
		t.Error("Expected non-nil wrong ids slice")
	}
}

func TestGradeIgnoresUnknownAnswerIDs(t *testing.T) {
	questions := []models.Question{
		question("q1", constants.QuestionTypeTrueFalse, `true`),
	}
	answers := map[string]any{"q1": true, "ghost": "X"}

	result := Grade(questions, answers)
	if result.Score != 100 {
		t.Errorf("Expected stray answers to be ignored, got score %d", result.Score)
	}
}
