package repository

import (
	"context"
	"database/sql"
	"time"

	"training-service/internal/models"

	"github.com/google/uuid"
)

type ScenarioRepository struct {
	db *sql.DB
}

func NewScenarioRepository(db *sql.DB) *ScenarioRepository {
	return &ScenarioRepository{db: db}
}

func (r *ScenarioRepository) ListScenarios(ctx context.Context) ([]models.Scenario, error) {
	query := `
		SELECT id, title, description, customer_bio, complaint, emotion_tag, difficulty, created_at
		FROM scenarios
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scenarios []models.Scenario
	for rows.Next() {
		var s models.Scenario
		if err := rows.Scan(
			&s.ID, &s.Title, &s.Description, &s.CustomerBio,
			&s.Complaint, &s.EmotionTag, &s.Difficulty, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, rows.Err()
}

func (r *ScenarioRepository) GetScenario(ctx context.Context, id string) (*models.Scenario, error) {
	query := `
		SELECT id, title, description, customer_bio, complaint, emotion_tag, difficulty, created_at
		FROM scenarios
		WHERE id = $1
	`
	s := &models.Scenario{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Title, &s.Description, &s.CustomerBio,
		&s.Complaint, &s.EmotionTag, &s.Difficulty, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *ScenarioRepository) CreateScenario(ctx context.Context, s *models.Scenario) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.CreatedAt = time.Now()

	query := `
		INSERT INTO scenarios (id, title, description, customer_bio, complaint, emotion_tag, difficulty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.Title, s.Description, s.CustomerBio,
		s.Complaint, s.EmotionTag, s.Difficulty, s.CreatedAt)
	return err
}

func (r *ScenarioRepository) UpdateScenario(ctx context.Context, s *models.Scenario) error {
	query := `
		UPDATE scenarios
		SET title = $1, description = $2, customer_bio = $3, complaint = $4, emotion_tag = $5, difficulty = $6
		WHERE id = $7
	`
	result, err := r.db.ExecContext(ctx, query,
		s.Title, s.Description, s.CustomerBio, s.Complaint, s.EmotionTag, s.Difficulty, s.ID)
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

func (r *ScenarioRepository) DeleteScenario(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scenarios WHERE id = $1`, id)
	return err
}
