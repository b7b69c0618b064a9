package models

import (
	"database/sql"
	"time"
)

type TrainingSession struct {
	ID         string
	UserID     string
	Mode       string // "simulation" or "quiz"
	ScenarioID sql.NullString
	QuizSetID  sql.NullString
	Status     string // "active", "completed", "abandoned"
	Score      int
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

type Turn struct {
	Role      string    `json:"role"` // "customer" or "agent"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type SessionResponse struct {
	ID         string
	SessionID  string
	TurnIndex  int
	Role       string
	Text       string
	AudioURL   string
	RecordedAt time.Time
}

type Scenario struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CustomerBio string   `json:"customer_bio"`
	Complaint   string   `json:"complaint"`
	EmotionTag  string   `json:"emotion_tag"`
	Difficulty  string   `json:"difficulty"`
	CreatedAt   time.Time `json:"created_at"`
}

type QuizSet struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	TimeLimitSec int       `json:"time_limit_sec"` // 0 means untimed
	PassScore    int       `json:"pass_score"`     // minimum score considered passing
	CreatedAt    time.Time `json:"created_at"`
}

type Question struct {
	ID            string   `json:"id"`
	SetID         string   `json:"set_id"`
	Type          string   `json:"type"` // "multiple_choice" or "true_false"
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer"` // JSON: string for multiple choice, bool for true/false
	Explanation   string   `json:"explanation"`
	OrderIndex    int      `json:"order_index"`
}

// QuizResult is derived by grading and immutable once produced.
type QuizResult struct {
	TotalQuestions   int            `json:"total_questions"`
	CorrectCount     int            `json:"correct_count"`
	Score            int            `json:"score"` // 0-100, rounded half-up
	WrongQuestionIDs []string       `json:"wrong_question_ids"`
	Answers          map[string]any `json:"answers"`
}

type FeedbackScore struct {
	Overall         int    `json:"overall"`
	Empathy         int    `json:"empathy"`
	ProblemSolving  int    `json:"problem_solving"`
	Professionalism int    `json:"professionalism"`
	Comments        string `json:"comments"`
}

type UserStats struct {
	UserID            string    `json:"user_id"`
	TotalScore        int       `json:"total_score"`
	CompletedSessions int       `json:"completed_sessions"`
	Level             int       `json:"level"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Badge struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Icon           string `json:"icon"`
	ConditionType  string `json:"condition_type"`
	ConditionValue string `json:"condition_value"` // JSON
}

type EarnedBadge struct {
	UserID   string    `json:"user_id"`
	BadgeID  string    `json:"badge_id"`
	EarnedAt time.Time `json:"earned_at"`
}

type LeaderboardEntry struct {
	Rank              int    `json:"rank"`
	UserID            string `json:"user_id"`
	TotalScore        int    `json:"total_score"`
	CompletedSessions int    `json:"completed_sessions"`
	Level             int    `json:"level"`
}
