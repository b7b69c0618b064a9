package repository

import (
	"context"
	"database/sql"
	"time"

	"training-service/internal/models"

	"github.com/google/uuid"
)

type BadgeRepository struct {
	db *sql.DB
}

func NewBadgeRepository(db *sql.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

func (r *BadgeRepository) ListBadges(ctx context.Context) ([]models.Badge, error) {
	query := `
		SELECT id, name, description, icon, condition_type, condition_value
		FROM badges
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var badges []models.Badge
	for rows.Next() {
		var b models.Badge
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.ConditionType, &b.ConditionValue); err != nil {
			return nil, err
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

func (r *BadgeRepository) CreateBadge(ctx context.Context, badge *models.Badge) error {
	if badge.ID == "" {
		badge.ID = uuid.New().String()
	}
	query := `
		INSERT INTO badges (id, name, description, icon, condition_type, condition_value)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		badge.ID, badge.Name, badge.Description, badge.Icon, badge.ConditionType, badge.ConditionValue)
	return err
}

func (r *BadgeRepository) UpdateBadge(ctx context.Context, badge *models.Badge) error {
	query := `
		UPDATE badges
		SET name = $1, description = $2, icon = $3, condition_type = $4, condition_value = $5
		WHERE id = $6
	`
	result, err := r.db.ExecContext(ctx, query,
		badge.Name, badge.Description, badge.Icon, badge.ConditionType, badge.ConditionValue, badge.ID)
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

func (r *BadgeRepository) DeleteBadge(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM badges WHERE id = $1`, id)
	return err
}

// GetEarnedBadgeIDs returns the set of badge ids the user already holds.
func (r *BadgeRepository) GetEarnedBadgeIDs(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT badge_id FROM user_badges WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	earned := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		earned[id] = true
	}
	return earned, rows.Err()
}

// AwardBadge records the badge for the user. Awarding a badge the user
// already holds is a no-op, so retries and concurrent completions cannot
// produce duplicates.
func (r *BadgeRepository) AwardBadge(ctx context.Context, userID, badgeID string) error {
	query := `
		INSERT INTO user_badges (user_id, badge_id, earned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, badge_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, userID, badgeID, time.Now())
	return err
}

func (r *BadgeRepository) GetUserBadges(ctx context.Context, userID string) ([]models.EarnedBadge, error) {
	query := `
		SELECT user_id, badge_id, earned_at
		FROM user_badges
		WHERE user_id = $1
		ORDER BY earned_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var earned []models.EarnedBadge
	for rows.Next() {
		var e models.EarnedBadge
		if err := rows.Scan(&e.UserID, &e.BadgeID, &e.EarnedAt); err != nil {
			return nil, err
		}
		earned = append(earned, e)
	}
	return earned, rows.Err()
}
