package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	// Database drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/memory"
)

// SQLStore archives episodes and skills in a SQL database. Supports
// PostgreSQL, MySQL, and SQLite through database/sql with one shared
// schema: scalar columns for querying, the full record as JSON payload.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

const (
	createEpisodesSQL = `
CREATE TABLE IF NOT EXISTS episodes (
    id VARCHAR(64) PRIMARY KEY,
    task_prompt TEXT,
    outcome TEXT,
    success INTEGER NOT NULL,
    step_count INTEGER NOT NULL,
    payload TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
)`

	createSkillsSQL = `
CREATE TABLE IF NOT EXISTS skills (
    name VARCHAR(255) PRIMARY KEY,
    payload TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

	createEpisodeIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_episodes_created_at ON episodes(created_at)`
)

// NewSQLStore wraps an existing connection. Tests hand it an in-memory
// SQLite handle.
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLStore{db: db, dialect: dialect}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// NewSQLStoreFromConfig opens a connection from a database config entry.
func NewSQLStoreFromConfig(cfg *config.DatabaseConfig) (*SQLStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	db, err := sql.Open(cfg.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewSQLStore(db, cfg.Dialect())
}

func (s *SQLStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stmts := []string{createEpisodesSQL, createSkillsSQL}
	// MySQL has no CREATE INDEX IF NOT EXISTS; it runs on primary keys
	// alone.
	if s.dialect != "mysql" {
		stmts = append(stmts, createEpisodeIndexSQL)
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// AppendEpisode inserts one episode row.
func (s *SQLStore) AppendEpisode(ctx context.Context, ep memory.Episode) error {
	payload, err := json.Marshal(ep)
	if err != nil {
		return fmt.Errorf("failed to encode episode: %w", err)
	}

	query := `
INSERT INTO episodes (id, task_prompt, outcome, success, step_count, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	if s.dialect == "postgres" {
		query = `
INSERT INTO episodes (id, task_prompt, outcome, success, step_count, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	}

	success := 0
	if ep.Success {
		success = 1
	}

	_, err = s.db.ExecContext(ctx, query,
		ep.ID, ep.TaskPrompt, ep.Outcome, success, ep.StepCount,
		string(payload), ep.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert episode: %w", err)
	}
	return nil
}

// ListEpisodes returns episodes oldest first. A positive limit keeps only
// the most recent rows.
func (s *SQLStore) ListEpisodes(ctx context.Context, limit int) ([]memory.Episode, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		query := `SELECT payload FROM episodes ORDER BY created_at DESC, id DESC LIMIT ?`
		if s.dialect == "postgres" {
			query = `SELECT payload FROM episodes ORDER BY created_at DESC, id DESC LIMIT $1`
		}
		rows, err = s.db.QueryContext(ctx, query, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT payload FROM episodes ORDER BY created_at ASC, id ASC`)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	var episodes []memory.Episode
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		var ep memory.Episode
		if err := json.Unmarshal([]byte(payload), &ep); err != nil {
			slog.Warn("Skipping undecodable episode row", "error", err)
			continue
		}
		episodes = append(episodes, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read episodes: %w", err)
	}

	if limit > 0 {
		for i, j := 0, len(episodes)-1; i < j; i, j = i+1, j-1 {
			episodes[i], episodes[j] = episodes[j], episodes[i]
		}
	}
	return episodes, nil
}

// PutSkill upserts a skill row keyed by name.
func (s *SQLStore) PutSkill(ctx context.Context, skill memory.Skill) error {
	if skill.Name == "" {
		return fmt.Errorf("skill name is required")
	}
	payload, err := json.Marshal(skill)
	if err != nil {
		return fmt.Errorf("failed to encode skill: %w", err)
	}

	var query string
	switch s.dialect {
	case "postgres":
		query = `
INSERT INTO skills (name, payload, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	case "mysql":
		query = `
INSERT INTO skills (name, payload, updated_at) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE payload = VALUES(payload), updated_at = VALUES(updated_at)`
	default:
		query = `
INSERT INTO skills (name, payload, updated_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	}

	if _, err := s.db.ExecContext(ctx, query, skill.Name, string(payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert skill: %w", err)
	}
	return nil
}

// ListSkills returns all skills sorted by name.
func (s *SQLStore) ListSkills(ctx context.Context) ([]memory.Skill, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM skills ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query skills: %w", err)
	}
	defer rows.Close()

	var skills []memory.Skill
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan skill: %w", err)
		}
		var skill memory.Skill
		if err := json.Unmarshal([]byte(payload), &skill); err != nil {
			slog.Warn("Skipping undecodable skill row", "error", err)
			continue
		}
		skills = append(skills, skill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read skills: %w", err)
	}
	return skills, nil
}

// Close releases the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
