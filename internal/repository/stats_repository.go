package repository

import (
	"context"
	"database/sql"
	"time"

	"training-service/internal/models"
)

type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	query := `
		SELECT user_id, total_score, completed_sessions, level, updated_at
		FROM user_stats
		WHERE user_id = $1
	`
	stats := &models.UserStats{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.UserID,
		&stats.TotalScore,
		&stats.CompletedSessions,
		&stats.Level,
		&stats.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return &models.UserStats{UserID: userID, Level: 1}, nil
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *StatsRepository) UpsertStats(ctx context.Context, stats *models.UserStats) error {
	query := `
		INSERT INTO user_stats (user_id, total_score, completed_sessions, level, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET total_score = $2, completed_sessions = $3, level = $4, updated_at = $5
	`
	_, err := r.db.ExecContext(ctx, query,
		stats.UserID,
		stats.TotalScore,
		stats.CompletedSessions,
		stats.Level,
		time.Now(),
	)
	return err
}

func (r *StatsRepository) GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT user_id, total_score, completed_sessions, level
		FROM user_stats
		ORDER BY total_score DESC, updated_at ASC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	rank := 0
	for rows.Next() {
		rank++
		entry := models.LeaderboardEntry{Rank: rank}
		if err := rows.Scan(&entry.UserID, &entry.TotalScore, &entry.CompletedSessions, &entry.Level); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
