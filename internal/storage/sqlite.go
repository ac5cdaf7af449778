package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"skywatch/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:skywatch.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			user_id TEXT NOT NULL,
			alert_id TEXT NOT NULL,
			ts TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			location TEXT NOT NULL,
			dismissed INTEGER NOT NULL DEFAULT 0,
			data_json TEXT,
			PRIMARY KEY (user_id, alert_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_user_active ON alerts(user_id, dismissed, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) SaveAlert(ctx context.Context, alert model.Alert) error {
	if s.db == nil || alert.ID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (user_id, alert_id, ts, alert_type, severity, message, location, dismissed, data_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, alert_id) DO NOTHING`,
		alert.UserID,
		alert.ID,
		alert.Timestamp.UTC(),
		string(alert.Type),
		string(alert.Severity),
		alert.Message,
		alert.Location,
		boolToInt(alert.Dismissed),
		encodeJSON(alert.Data),
	)
	return err
}

func (s *sqliteStore) MarkDismissed(ctx context.Context, userID, alertID string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET dismissed = 1 WHERE user_id = ? AND alert_id = ?`,
		userID, alertID)
	return err
}

func (s *sqliteStore) ClearUser(ctx context.Context, userID string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE user_id = ?`, userID)
	return err
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
