package stats

import (
	"sync"
	"time"

	"skywatch/internal/model"
)

type UserStats struct {
	Evaluations   int            `json:"evaluations"`
	AlertsEmitted int            `json:"alerts_emitted"`
	BySeverity    map[string]int `json:"by_severity,omitempty"`
	LastEvaluated time.Time      `json:"last_evaluated"`
}

// Store tracks per-user evaluation counters for the stats endpoint.
type Store struct {
	mu     sync.RWMutex
	byUser map[string]*UserStats
	limit  int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 5000
	}
	return &Store{
		byUser: make(map[string]*UserStats),
		limit:  limit,
	}
}

func (s *Store) Record(userID string, emitted []model.Alert) {
	if userID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byUser[userID]
	if !ok {
		st = &UserStats{BySeverity: make(map[string]int)}
		s.byUser[userID] = st
	}
	st.Evaluations++
	st.AlertsEmitted += len(emitted)
	for _, a := range emitted {
		st.BySeverity[string(a.Severity)]++
	}
	st.LastEvaluated = time.Now().UTC()
	if len(s.byUser) > s.limit {
		s.evictOldest()
	}
}

func (s *Store) Get(userID string) (UserStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.byUser[userID]
	if !ok {
		return UserStats{}, false
	}
	return cloneStats(st), true
}

func (s *Store) All() map[string]UserStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]UserStats, len(s.byUser))
	for userID, st := range s.byUser {
		out[userID] = cloneStats(st)
	}
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser = make(map[string]*UserStats)
}

func (s *Store) evictOldest() {
	var oldestUser string
	var oldest time.Time
	for userID, st := range s.byUser {
		if oldestUser == "" || st.LastEvaluated.Before(oldest) {
			oldestUser = userID
			oldest = st.LastEvaluated
		}
	}
	if oldestUser != "" {
		delete(s.byUser, oldestUser)
	}
}

func cloneStats(st *UserStats) UserStats {
	out := *st
	out.BySeverity = make(map[string]int, len(st.BySeverity))
	for k, v := range st.BySeverity {
		out.BySeverity[k] = v
	}
	return out
}
