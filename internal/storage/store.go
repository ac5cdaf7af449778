package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"skywatch/internal/config"
	"skywatch/internal/model"
)

// Store is the optional durable archive behind the in-memory alert store.
// Writes are best-effort; the in-memory view stays authoritative.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveAlert(ctx context.Context, alert model.Alert) error
	MarkDismissed(ctx context.Context, userID, alertID string) error
	ClearUser(ctx context.Context, userID string) error
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func encodeJSON(value any) string {
	if value == nil {
		return ""
	}
	data, _ := json.Marshal(value)
	return string(data)
}
