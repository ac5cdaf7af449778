package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"skywatch/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/skywatch?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			user_id TEXT NOT NULL,
			alert_id TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			alert_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			location TEXT NOT NULL,
			dismissed BOOLEAN NOT NULL DEFAULT FALSE,
			data_json JSONB,
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

func (s *postgresStore) SaveAlert(ctx context.Context, alert model.Alert) error {
	if s.db == nil || alert.ID == "" {
		return nil
	}
	data := encodeJSON(alert.Data)
	var dataArg any
	if data != "" {
		dataArg = data
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (user_id, alert_id, ts, alert_type, severity, message, location, dismissed, data_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, alert_id) DO NOTHING`,
		alert.UserID,
		alert.ID,
		alert.Timestamp.UTC(),
		string(alert.Type),
		string(alert.Severity),
		alert.Message,
		alert.Location,
		alert.Dismissed,
		dataArg,
	)
	return err
}

func (s *postgresStore) MarkDismissed(ctx context.Context, userID, alertID string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET dismissed = TRUE WHERE user_id = $1 AND alert_id = $2`,
		userID, alertID)
	return err
}

func (s *postgresStore) ClearUser(ctx context.Context, userID string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE user_id = $1`, userID)
	return err
}
