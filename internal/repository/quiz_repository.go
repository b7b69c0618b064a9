package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"training-service/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type QuizRepository struct {
	db *sql.DB
}

func NewQuizRepository(db *sql.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

func (r *QuizRepository) ListQuizSets(ctx context.Context) ([]models.QuizSet, error) {
	query := `
		SELECT id, title, description, time_limit_sec, pass_score, created_at
		FROM quiz_sets
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []models.QuizSet
	for rows.Next() {
		var s models.QuizSet
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.TimeLimitSec, &s.PassScore, &s.CreatedAt); err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	return sets, rows.Err()
}

func (r *QuizRepository) GetQuizSet(ctx context.Context, id string) (*models.QuizSet, error) {
	query := `
		SELECT id, title, description, time_limit_sec, pass_score, created_at
		FROM quiz_sets
		WHERE id = $1
	`
	set := &models.QuizSet{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&set.ID, &set.Title, &set.Description, &set.TimeLimitSec, &set.PassScore, &set.CreatedAt)
	if err != nil {
		return nil, err
	}
	return set, nil
}

func (r *QuizRepository) CreateQuizSet(ctx context.Context, set *models.QuizSet) error {
	if set.ID == "" {
		set.ID = uuid.New().String()
	}
	set.CreatedAt = time.Now()

	query := `
		INSERT INTO quiz_sets (id, title, description, time_limit_sec, pass_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		set.ID, set.Title, set.Description, set.TimeLimitSec, set.PassScore, set.CreatedAt)
	return err
}

func (r *QuizRepository) UpdateQuizSet(ctx context.Context, set *models.QuizSet) error {
	query := `
		UPDATE quiz_sets
		SET title = $1, description = $2, time_limit_sec = $3, pass_score = $4
		WHERE id = $5
	`
	result, err := r.db.ExecContext(ctx, query,
		set.Title, set.Description, set.TimeLimitSec, set.PassScore, set.ID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *QuizRepository) DeleteQuizSet(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM quiz_sets WHERE id = $1`, id)
	return err
}

// GetQuestions returns the questions of a set in presentation order.
func (r *QuizRepository) GetQuestions(ctx context.Context, setID string) ([]models.Question, error) {
	query := `
		SELECT id, set_id, type, prompt, options, correct_answer, explanation, order_index
		FROM quiz_questions
		WHERE set_id = $1
		ORDER BY order_index
	`
	rows, err := r.db.QueryContext(ctx, query, setID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(
			&q.ID, &q.SetID, &q.Type, &q.Prompt,
			pq.Array(&q.Options), &q.CorrectAnswer, &q.Explanation, &q.OrderIndex,
		); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (r *QuizRepository) CreateQuestion(ctx context.Context, q *models.Question) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	query := `
		INSERT INTO quiz_questions (id, set_id, type, prompt, options, correct_answer, explanation, order_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		q.ID, q.SetID, q.Type, q.Prompt,
		pq.Array(q.Options), q.CorrectAnswer, q.Explanation, q.OrderIndex)
	return err
}

func (r *QuizRepository) DeleteQuestion(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM quiz_questions WHERE id = $1`, id)
	return err
}

func (r *QuizRepository) SaveQuizResult(ctx context.Context, sessionID, userID, setID string, result *models.QuizResult) error {
	answers, err := json.Marshal(result.Answers)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO quiz_results (id, session_id, user_id, set_id, total_questions, correct_count, score, wrong_question_ids, answers, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		uuid.New().String(), sessionID, userID, setID,
		result.TotalQuestions, result.CorrectCount, result.Score,
		pq.Array(result.WrongQuestionIDs), answers, time.Now())
	return err
}
