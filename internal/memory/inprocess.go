package memory

import (
	"context"
	"sync"
	"time"
)

// InProcess is a mutex-guarded map with lazy expiry on read.
type InProcess struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

var _ Store = (*InProcess)(nil)

// NewInProcess returns an empty store. A non-positive ttl selects DefaultTTL; a nil
// clock selects time.Now.
func NewInProcess(ttl time.Duration, now func() time.Time) *InProcess {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &InProcess{entries: make(map[string]Entry), ttl: ttl, now: now}
}

func (s *InProcess) Get(_ context.Context, userID string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return Entry{}, false, nil
	}
	if e.ExpiredAt(s.now(), s.ttl) {
		delete(s.entries, userID)
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (s *InProcess) Set(_ context.Context, userID string, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = e
	return nil
}

func (s *InProcess) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

func (s *InProcess) Purge(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, e := range s.entries {
		if e.ExpiredAt(now, s.ttl) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}
