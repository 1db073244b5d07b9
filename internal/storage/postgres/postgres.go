// Package postgres stores the playback event log.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/lib/pq"
)

const (
	DefaultQueryLimit = 200
	MaxQueryLimit     = 10000
)

// EventRow represents an event stored in Postgres.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	ProjectID string                 `json:"project_id"`
	SessionID *string                `json:"session_id,omitempty"`
}

// Config holds connection settings, read from the standard libpq variables.
type Config struct {
	Host     string `env:"PGHOST" envDefault:"127.0.0.1"`
	Port     string `env:"PGPORT" envDefault:"5432"`
	User     string `env:"PGUSER" envDefault:"dialogue"`
	Database string `env:"PGDATABASE" envDefault:"dialogue"`
	Password string `env:"PGPASSWORD"`
	SSLMode  string `env:"PGSSLMODE" envDefault:"disable"`
}

// ConfigFromEnv parses Config from the environment.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse postgres env: %w", err)
	}
	return cfg, nil
}

// ConnString renders cfg as a lib/pq keyword/value connection string.
func (cfg Config) ConnString() string {
	parts := []string{
		"host=" + cfg.Host,
		"port=" + cfg.Port,
		"user=" + cfg.User,
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+cfg.Password)
	}
	parts = append(parts, "dbname="+cfg.Database, "sslmode="+cfg.SSLMode)
	return strings.Join(parts, " ")
}

// Client manages the Postgres connection for one project's event log.
type Client struct {
	db        *sql.DB
	projectID string
}

// New connects with settings from the environment and ensures the events
// table exists.
func New(projectID string) (*Client, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return Open(cfg, projectID)
}

// Open connects using cfg.
func Open(cfg Config, projectID string) (*Client, error) {
	db, err := sql.Open("postgres", cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		db:        db,
		projectID: projectID,
	}

	if err := client.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create events table: %w", err)
	}

	return client, nil
}

func (c *Client) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS dialogue_events (
			event_id   BIGSERIAL PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			level      TEXT NOT NULL,
			event      TEXT NOT NULL,
			msg        TEXT,
			fields     JSONB,
			project_id TEXT NOT NULL,
			session_id TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_dialogue_events_ts ON dialogue_events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_dialogue_events_project ON dialogue_events(project_id);
		CREATE INDEX IF NOT EXISTS idx_dialogue_events_session ON dialogue_events(session_id);
	`
	_, err := c.db.Exec(query)
	return err
}

// Append inserts an event into the database.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	_, err = c.db.Exec(`
		INSERT INTO dialogue_events (ts, level, event, msg, fields, project_id, session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ts, level, event, nullString(msg), fieldsJSON, c.projectID, nullString(sessionID))
	return err
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ClampLimit maps a requested row count onto 1..MaxQueryLimit, with
// non-positive values meaning DefaultQueryLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}

// Query returns the last N events of the project, newest first.
func (c *Client) Query(limit int) ([]EventRow, error) {
	rows, err := c.db.Query(`
		SELECT event_id, ts, level, event, msg, fields, project_id, session_id
		FROM dialogue_events
		WHERE project_id = $1
		ORDER BY ts DESC, event_id DESC
		LIMIT $2
	`, c.projectID, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

// QuerySession returns the events of one playback session, oldest first.
func (c *Client) QuerySession(sessionID string, limit int) ([]EventRow, error) {
	rows, err := c.db.Query(`
		SELECT event_id, ts, level, event, msg, fields, project_id, session_id
		FROM dialogue_events
		WHERE project_id = $1 AND session_id = $2
		ORDER BY ts ASC, event_id ASC
		LIMIT $3
	`, c.projectID, sessionID, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]EventRow, error) {
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg, sessionID sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.ProjectID, &sessionID); err != nil {
			return nil, err
		}

		if msg.Valid {
			e.Message = &msg.String
		}
		if sessionID.Valid {
			e.SessionID = &sessionID.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// Ping checks the connection, for readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
