package peer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"skywatch/internal/config"
	"skywatch/internal/engine"
	"skywatch/internal/model"
)

// batch is one peer-evaluated alert set for a single user.
type batch struct {
	UserID string        `json:"userId"`
	Alerts []model.Alert `json:"alerts"`
}

// StartKafka consumes peer-evaluated alert batches and feeds them to the
// engine, where they reconcile with local evaluations by id.
func StartKafka(ctx context.Context, cfg *config.Manager, svc *engine.Service, logger *slog.Logger) {
	current := cfg.Get().Peer.Kafka
	if !current.Enabled {
		if logger != nil {
			logger.Info("peer feed disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("peer feed enabled", "brokers", current.Brokers, "topic", current.Topic, "group_id", current.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  current.Brokers,
		Topic:    current.Topic,
		GroupID:  current.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Warn("peer feed read error", "err", err)
				}
				continue
			}
			var b batch
			if err := json.Unmarshal(m.Value, &b); err != nil {
				if logger != nil {
					logger.Warn("peer feed decode error", "err", err)
				}
				continue
			}
			if b.UserID == "" || len(b.Alerts) == 0 {
				continue
			}
			added := svc.SubmitPeer(ctx, b.UserID, b.Alerts)
			if logger != nil && len(added) > 0 {
				logger.Debug("peer batch merged", "user_id", b.UserID, "new", len(added))
			}
		}
	}()
}
