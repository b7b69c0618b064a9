package handlers

import (
	"testing"

	"training-service/internal/constants"
	"training-service/internal/models"
)

func TestValidateAnswerKey(t *testing.T) {
	tests := []struct {
		name     string
		question models.Question
		wantErr  bool
	}{
		{
			name: "multiple choice with matching option",
			question: models.Question{
				Type:          constants.QuestionTypeMultipleChoice,
				Options:       []string{"A", "B", "C"},
				CorrectAnswer: `"B"`,
			},
		},
		{
			name: "multiple choice without options",
			question: models.Question{
				Type:          constants.QuestionTypeMultipleChoice,
				CorrectAnswer: `"B"`,
			},
		},
		{
			name: "multiple choice key is not JSON",
			question: models.Question{
				Type:          constants.QuestionTypeMultipleChoice,
				CorrectAnswer: `B`,
			},
			wantErr: true,
		},
		{
			name: "multiple choice key outside options",
			question: models.Question{
				Type:          constants.QuestionTypeMultipleChoice,
				Options:       []string{"A", "B"},
				CorrectAnswer: `"D"`,
			},
			wantErr: true,
		},
		{
			name: "multiple choice empty key",
			question: models.Question{
				Type:          constants.QuestionTypeMultipleChoice,
				CorrectAnswer: `""`,
			},
			wantErr: true,
		},
		{
			name: "true/false boolean key",
			question: models.Question{
				Type:          constants.QuestionTypeTrueFalse,
				CorrectAnswer: `true`,
			},
		},
		{
			// A quoted boolean would never match a bool answer in grading.
			name: "true/false key is a string",
			question: models.Question{
				Type:          constants.QuestionTypeTrueFalse,
				CorrectAnswer: `"true"`,
			},
			wantErr: true,
		},
		{
			name: "unknown question type",
			question: models.Question{
				Type:          "essay",
				CorrectAnswer: `"anything"`,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAnswerKey(&tt.question)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateAnswerKey() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
