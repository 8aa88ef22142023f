package directory

import (
	"context"
	"sync"
)

// Static serves a fixed set of entries. Used in tests and development
// seeding.
type Static struct {
	mu      sync.RWMutex
	entries []Entry
	byID    map[string]Entry
}

func NewStatic(entries ...Entry) *Static {
	s := &Static{byID: make(map[string]Entry)}
	s.Replace(entries)
	return s
}

func (s *Static) Replace(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]Entry(nil), entries...)
	s.byID = make(map[string]Entry, len(entries))
	for _, e := range entries {
		s.byID[e.UserID] = e
	}
}

func (s *Static) Search(ctx context.Context, q string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return search(s.entries, q, limit), nil
}

func (s *Static) Lookup(ctx context.Context, userID string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[userID]
	return e, ok, nil
}
