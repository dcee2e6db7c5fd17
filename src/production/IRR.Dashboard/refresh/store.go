// Package refresh keeps the dashboard's current snapshot and replaces it when
// a newer fetch completes.
package refresh

import (
	"sync"

	view "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Dashboard/view"
)

// Store holds the latest committed snapshot. Each fetch takes a generation from
// Begin; a result is only accepted when its generation is newer than the one
// already shown, so a slow older fetch can never overwrite a newer one.
type Store struct {
	mu        sync.RWMutex
	issued    uint64
	committed uint64
	snapshot  *view.Snapshot
	lastErr   error
}

func NewStore() *Store {
	return &Store{}
}

// Begin issues the next generation.
func (s *Store) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Commit publishes snap if gen is newer than the committed generation.
func (s *Store) Commit(gen uint64, snap view.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.committed {
		return false
	}
	s.committed = gen
	s.snapshot = &snap
	s.lastErr = nil
	return true
}

// Fail records a failed fetch. The current snapshot stays visible.
func (s *Store) Fail(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.committed {
		return
	}
	s.lastErr = err
}

// Snapshot returns the committed snapshot, if any.
func (s *Store) Snapshot() (view.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return view.Snapshot{}, false
	}
	return *s.snapshot, true
}

// LastError is the error of the most recent failed fetch newer than the
// committed snapshot, or nil.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Generation returns the committed generation.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed
}
