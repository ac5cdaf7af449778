package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"skywatch/internal/alerts"
	"skywatch/internal/config"
	"skywatch/internal/model"
	"skywatch/internal/notify"
	"skywatch/internal/rules"
	"skywatch/internal/stats"
	"skywatch/internal/storage"
)

// Service orchestrates one evaluation pass: run the rule set over a
// snapshot, reconcile with peer-evaluated alerts at the merge boundary,
// commit to the per-user store and surface whatever turned out to be new.
type Service struct {
	logger     *slog.Logger
	store      *alerts.Store
	archive    storage.Store
	stats      *stats.Store
	dispatcher notify.Dispatcher
	ruleSet    atomic.Value
	started    time.Time
}

func NewService(cfg *config.Config, logger *slog.Logger, store *alerts.Store, archive storage.Store, statsStore *stats.Store, dispatcher notify.Dispatcher) *Service {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if dispatcher == nil {
		dispatcher = notify.NopDispatcher{}
	}
	s := &Service{
		logger:     logger,
		store:      store,
		archive:    archive,
		stats:      statsStore,
		dispatcher: dispatcher,
		started:    time.Now().UTC(),
	}
	s.ruleSet.Store(rules.New(cfg.Rules))
	return s
}

func (s *Service) UpdateConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	s.ruleSet.Store(rules.New(cfg.Rules))
}

func (s *Service) rules() *rules.RuleSet {
	if v := s.ruleSet.Load(); v != nil {
		return v.(*rules.RuleSet)
	}
	return rules.Default()
}

// Evaluate runs the rule set over the snapshot, merges the local result
// with any peer-evaluated alerts and appends into the user's store.
// Returned are only the alerts that were genuinely new this call; those are
// also the ones handed to the notification dispatcher.
func (s *Service) Evaluate(ctx context.Context, userID string, snap model.Snapshot, peerAlerts []model.Alert) ([]model.Alert, error) {
	if snap.Current == nil {
		return nil, model.ErrValidation
	}
	local := s.rules().Evaluate(userID, snap)
	merged := Merge(local, claim(userID, peerAlerts))
	added := s.store.Append(userID, merged)
	s.commit(ctx, userID, added)
	if len(added) > 0 && s.logger != nil {
		s.logger.Info("alerts created",
			"user_id", userID,
			"location", snap.Current.Location(),
			"count", len(added),
		)
	}
	return added, nil
}

// SubmitPeer appends alerts evaluated elsewhere, with no local snapshot.
// Peer alerts go through the same merge and store path as local ones; the
// origin is never special-cased past this point.
func (s *Service) SubmitPeer(ctx context.Context, userID string, peerAlerts []model.Alert) []model.Alert {
	if userID == "" || len(peerAlerts) == 0 {
		return nil
	}
	merged := Merge(claim(userID, peerAlerts))
	added := s.store.Append(userID, merged)
	s.commit(ctx, userID, added)
	if len(added) > 0 && s.logger != nil {
		s.logger.Info("peer alerts accepted", "user_id", userID, "count", len(added))
	}
	return added
}

func (s *Service) ListActive(userID string) []model.Alert {
	return s.store.ListActive(userID)
}

func (s *Service) Count(userID string) int {
	return s.store.Count(userID)
}

func (s *Service) Dismiss(ctx context.Context, userID, alertID string) {
	s.store.Dismiss(userID, alertID)
	if s.archive != nil {
		if err := s.archive.MarkDismissed(ctx, userID, alertID); err != nil && s.logger != nil {
			s.logger.Warn("archive dismiss failed", "user_id", userID, "alert_id", alertID, "err", err)
		}
	}
}

func (s *Service) Clear(ctx context.Context, userID string) {
	s.store.Clear(userID)
	if s.archive != nil {
		if err := s.archive.ClearUser(ctx, userID); err != nil && s.logger != nil {
			s.logger.Warn("archive clear failed", "user_id", userID, "err", err)
		}
	}
}

func (s *Service) Started() time.Time {
	return s.started
}

func (s *Service) commit(ctx context.Context, userID string, added []model.Alert) {
	if s.archive != nil {
		for _, a := range added {
			if err := s.archive.SaveAlert(ctx, a); err != nil && s.logger != nil {
				s.logger.Warn("archive save failed", "alert_id", a.ID, "err", err)
			}
		}
	}
	if s.stats != nil {
		s.stats.Record(userID, added)
	}
	if len(added) > 0 && s.dispatcher.Enabled() {
		s.dispatcher.Notify(ctx, added)
	}
}

// claim stamps ownership onto alerts supplied by a peer; the engine trusts
// the authenticated user id, not whatever the payload carried.
func claim(userID string, in []model.Alert) []model.Alert {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.Alert, len(in))
	copy(out, in)
	for i := range out {
		out[i].UserID = userID
	}
	return out
}
