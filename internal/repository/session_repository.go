package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"training-service/internal/models"

	"github.com/google/uuid"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) CreateSession(ctx context.Context, session *models.TrainingSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	session.StartedAt = time.Now()

	query := `
		INSERT INTO training_sessions (id, user_id, mode, scenario_id, quiz_set_id, status, score, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.Mode,
		session.ScenarioID,
		session.QuizSetID,
		session.Status,
		session.Score,
		session.StartedAt,
	)
	return err
}

func (r *SessionRepository) CompleteSession(ctx context.Context, id string, score int) error {
	query := `
		UPDATE training_sessions
		SET status = 'completed', score = $1, finished_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, score, time.Now(), id)
	return err
}

// AbandonSession marks a session the user walked away from. Completed
// sessions are left untouched.
func (r *SessionRepository) AbandonSession(ctx context.Context, id string) error {
	query := `
		UPDATE training_sessions
		SET status = 'abandoned', finished_at = $1
		WHERE id = $2 AND status = 'active'
	`
	_, err := r.db.ExecContext(ctx, query, time.Now(), id)
	return err
}

func (r *SessionRepository) AppendResponse(ctx context.Context, resp *models.SessionResponse) error {
	if resp.ID == "" {
		resp.ID = uuid.New().String()
	}
	resp.RecordedAt = time.Now()

	query := `
		INSERT INTO session_responses (id, session_id, turn_index, role, text, audio_url, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		resp.ID,
		resp.SessionID,
		resp.TurnIndex,
		resp.Role,
		resp.Text,
		resp.AudioURL,
		resp.RecordedAt,
	)
	return err
}

func (r *SessionRepository) SaveFeedback(ctx context.Context, sessionID string, feedback *models.FeedbackScore) error {
	detail, err := json.Marshal(feedback)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO session_results (session_id, score, detail, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE SET score = $2, detail = $3
	`
	_, err = r.db.ExecContext(ctx, query, sessionID, feedback.Overall, detail, time.Now())
	return err
}
