package database

import (
	"context"
	"database/sql"
	"fmt"

	"training-service/config"

	_ "github.com/lib/pq"
)

type PostgresClient struct {
	db     *sql.DB
	config *config.DBConfig
}

func NewPostgresClient(cfg *config.DBConfig) (*PostgresClient, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{
		db:     db,
		config: cfg,
	}, nil
}

func (c *PostgresClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *PostgresClient) GetDB() *sql.DB {
	return c.db
}

func (c *PostgresClient) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS training_sessions (
			id VARCHAR(255) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			mode VARCHAR(50) NOT NULL,
			scenario_id VARCHAR(255),
			quiz_set_id VARCHAR(255),
			status VARCHAR(50) NOT NULL DEFAULT 'active',
			score INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_training_sessions_user_id ON training_sessions(user_id);
		CREATE INDEX IF NOT EXISTS idx_training_sessions_status ON training_sessions(status);

		CREATE TABLE IF NOT EXISTS session_responses (
			id VARCHAR(255) PRIMARY KEY,
			session_id VARCHAR(255) NOT NULL REFERENCES training_sessions(id),
			turn_index INTEGER NOT NULL,
			role VARCHAR(20) NOT NULL,
			text TEXT NOT NULL,
			audio_url VARCHAR(512),
			recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_session_responses_session_id ON session_responses(session_id);

		CREATE TABLE IF NOT EXISTS session_results (
			session_id VARCHAR(255) PRIMARY KEY REFERENCES training_sessions(id),
			score INTEGER NOT NULL,
			detail JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS user_stats (
			user_id VARCHAR(255) PRIMARY KEY,
			total_score INTEGER NOT NULL DEFAULT 0,
			completed_sessions INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS scenarios (
			id VARCHAR(255) PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			customer_bio TEXT NOT NULL DEFAULT '',
			complaint TEXT NOT NULL DEFAULT '',
			emotion_tag VARCHAR(50) NOT NULL DEFAULT 'neutral',
			difficulty VARCHAR(50) NOT NULL DEFAULT 'normal',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS quiz_sets (
			id VARCHAR(255) PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			time_limit_sec INTEGER NOT NULL DEFAULT 0,
			pass_score INTEGER NOT NULL DEFAULT 60,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS quiz_questions (
			id VARCHAR(255) PRIMARY KEY,
			set_id VARCHAR(255) NOT NULL REFERENCES quiz_sets(id),
			type VARCHAR(50) NOT NULL,
			prompt TEXT NOT NULL,
			options TEXT[] NOT NULL DEFAULT '{}',
			correct_answer JSONB NOT NULL,
			explanation TEXT NOT NULL DEFAULT '',
			order_index INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_quiz_questions_set_id ON quiz_questions(set_id);

		CREATE TABLE IF NOT EXISTS quiz_results (
			id VARCHAR(255) PRIMARY KEY,
			session_id VARCHAR(255) NOT NULL REFERENCES training_sessions(id),
			user_id VARCHAR(255) NOT NULL,
			set_id VARCHAR(255) NOT NULL,
			total_questions INTEGER NOT NULL,
			correct_count INTEGER NOT NULL,
			score INTEGER NOT NULL,
			wrong_question_ids TEXT[] NOT NULL DEFAULT '{}',
			answers JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_quiz_results_user_id ON quiz_results(user_id);

		CREATE TABLE IF NOT EXISTS badges (
			id VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			icon VARCHAR(255) NOT NULL DEFAULT '',
			condition_type VARCHAR(50) NOT NULL,
			condition_value JSONB NOT NULL DEFAULT '{}'
		);

		CREATE TABLE IF NOT EXISTS user_badges (
			user_id VARCHAR(255) NOT NULL,
			badge_id VARCHAR(255) NOT NULL REFERENCES badges(id),
			earned_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, badge_id)
		);
		CREATE INDEX IF NOT EXISTS idx_user_badges_user_id ON user_badges(user_id);
	`

	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}
