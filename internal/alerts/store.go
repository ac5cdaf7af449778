package alerts

import (
	"sync"
	"time"

	"skywatch/internal/model"
)

// Store keeps each user's alerts in an independent partition. Operations on
// different users never contend on the same lock; within one partition the
// mutation operations are serialized.
type Store struct {
	mu        sync.RWMutex
	users     map[string]*partition
	limit     int
	retention time.Duration
}

type partition struct {
	mu    sync.Mutex
	list  []model.Alert
	index map[string]int
}

func NewStore(limit int, retention time.Duration) *Store {
	if limit <= 0 {
		limit = 1000
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Store{
		users:     make(map[string]*partition),
		limit:     limit,
		retention: retention,
	}
}

func (s *Store) partition(userID string, create bool) *partition {
	s.mu.RLock()
	p := s.users[userID]
	s.mu.RUnlock()
	if p != nil || !create {
		return p
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p = s.users[userID]; p == nil {
		p = &partition{index: make(map[string]int)}
		s.users[userID] = p
	}
	return p
}

// Append merges alerts into the user's partition, deduplicating by id.
// A re-delivered id is dropped and the existing record, including its
// dismissed flag, is left untouched. The returned slice holds only the
// genuinely new records, in input order.
func (s *Store) Append(userID string, alerts []model.Alert) []model.Alert {
	if len(alerts) == 0 {
		return nil
	}
	p := s.partition(userID, true)
	p.mu.Lock()
	defer p.mu.Unlock()
	var added []model.Alert
	for _, a := range alerts {
		if a.ID == "" {
			continue
		}
		if _, ok := p.index[a.ID]; ok {
			continue
		}
		if len(p.list) >= s.limit {
			p.evictOldest()
		}
		p.index[a.ID] = len(p.list)
		p.list = append(p.list, a)
		added = append(added, a)
	}
	return added
}

// ListActive returns the read view in insertion order: every alert that is
// not dismissed, plus dismissed alerts whose condition instant is still
// inside the retention window.
func (s *Store) ListActive(userID string) []model.Alert {
	p := s.partition(userID, false)
	if p == nil {
		return []model.Alert{}
	}
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Alert, 0, len(p.list))
	for _, a := range p.list {
		if !a.Dismissed || now.Sub(a.Timestamp) < s.retention {
			out = append(out, a)
		}
	}
	return out
}

// Dismiss is monotonic: it only ever sets the flag. Unknown ids are a
// no-op, not an error.
func (s *Store) Dismiss(userID, alertID string) bool {
	p := s.partition(userID, false)
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.index[alertID]
	if !ok {
		return false
	}
	p.list[i].Dismissed = true
	return true
}

func (s *Store) Clear(userID string) {
	p := s.partition(userID, false)
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.list = nil
	p.index = make(map[string]int)
}

func (s *Store) Count(userID string) int {
	p := s.partition(userID, false)
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.list)
}

// evictOldest drops the oldest record to honor the per-user cap. Caller
// holds the partition lock.
func (p *partition) evictOldest() {
	if len(p.list) == 0 {
		return
	}
	delete(p.index, p.list[0].ID)
	copy(p.list, p.list[1:])
	p.list = p.list[:len(p.list)-1]
	for id, i := range p.index {
		p.index[id] = i - 1
	}
}
