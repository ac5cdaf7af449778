package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"skywatch/internal/alerts"
	"skywatch/internal/config"
	"skywatch/internal/model"
	"skywatch/internal/stats"
)

type recordingDispatcher struct {
	mu  sync.Mutex
	ids []string
}

func (d *recordingDispatcher) Enabled() bool { return true }

func (d *recordingDispatcher) Notify(_ context.Context, list []model.Alert) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range list {
		d.ids = append(d.ids, a.ID)
	}
}

func newServiceForTest() (*Service, *recordingDispatcher) {
	disp := &recordingDispatcher{}
	svc := NewService(
		config.DefaultConfig(),
		nil,
		alerts.NewStore(100, 24*time.Hour),
		nil,
		stats.NewStore(100),
		disp,
	)
	return svc, disp
}

var hotObservationTime = time.Now().UTC()

func hotSnapshot() model.Snapshot {
	return model.Snapshot{Current: &model.Observation{
		TempC:     36,
		Condition: "Clear",
		City:      "Madrid",
		Country:   "ES",
		Time:      hotObservationTime,
	}}
}

func TestEvaluateRequiresCurrent(t *testing.T) {
	svc, _ := newServiceForTest()
	_, err := svc.Evaluate(context.Background(), "user_1", model.Snapshot{}, nil)
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEvaluateReturnsOnlyNew(t *testing.T) {
	svc, disp := newServiceForTest()
	first, err := svc.Evaluate(context.Background(), "user_1", hotSnapshot(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 new alert, got %d", len(first))
	}
	second, err := svc.Evaluate(context.Background(), "user_1", hotSnapshot(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("re-evaluation of the same condition must yield nothing new, got %d", len(second))
	}
	if svc.Count("user_1") != 1 {
		t.Fatalf("store must hold exactly 1 alert, got %d", svc.Count("user_1"))
	}
	if len(disp.ids) != 1 {
		t.Fatalf("dispatcher must fire once per new alert, got %d", len(disp.ids))
	}
}

func TestEvaluateMergesPeerAlerts(t *testing.T) {
	svc, _ := newServiceForTest()
	local, _ := svc.Evaluate(context.Background(), "user_1", hotSnapshot(), nil)
	svc.Clear(context.Background(), "user_1")

	peer := []model.Alert{
		{ID: local[0].ID, UserID: "someone_else", Type: model.TypeHighTemp, Severity: model.SeverityExtreme},
		{ID: "peer_only", UserID: "someone_else", Type: model.TypeRainNow, Severity: model.SeverityLow},
	}
	added, err := svc.Evaluate(context.Background(), "user_1", hotSnapshot(), peer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("expected local alert plus distinct peer alert, got %d", len(added))
	}
	if added[0].ID != local[0].ID {
		t.Fatalf("local evaluation must win the merge for a shared id")
	}
	if added[1].ID != "peer_only" || added[1].UserID != "user_1" {
		t.Fatalf("peer alert must be claimed for the authenticated user, got %+v", added[1])
	}
}

func TestDismissSurvivesReappend(t *testing.T) {
	svc, _ := newServiceForTest()
	first, _ := svc.Evaluate(context.Background(), "user_1", hotSnapshot(), nil)
	svc.Dismiss(context.Background(), "user_1", first[0].ID)

	added, _ := svc.Evaluate(context.Background(), "user_1", hotSnapshot(), nil)
	if len(added) != 0 {
		t.Fatalf("dismissed alert must not be re-created under the same id")
	}
	active := svc.ListActive("user_1")
	if len(active) != 1 || !active[0].Dismissed {
		t.Fatalf("dismiss must be monotonic, got %+v", active)
	}
}

func TestSubmitPeer(t *testing.T) {
	svc, disp := newServiceForTest()
	batch := []model.Alert{
		{ID: "peer_1", Type: model.TypeStorm, Severity: model.SeverityHigh, Timestamp: time.Now()},
		{ID: "peer_1", Type: model.TypeStorm, Severity: model.SeverityHigh, Timestamp: time.Now()},
	}
	added := svc.SubmitPeer(context.Background(), "user_1", batch)
	if len(added) != 1 {
		t.Fatalf("duplicate ids within a peer batch must collapse, got %d", len(added))
	}
	if svc.SubmitPeer(context.Background(), "", batch) != nil {
		t.Fatalf("peer batch without a user must be ignored")
	}
	if len(disp.ids) != 1 {
		t.Fatalf("dispatcher must fire once, got %d", len(disp.ids))
	}
}
