// internal/store/memory.go
//
// In-memory registry of live game sessions.
//
// Characteristics:
//   - Sessions are keyed by game ID (a UUID) in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts; finished results live in sqlite.
//   - Sweep stops and drops sessions nobody has touched within the TTL.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/higherpwned/server/internal/session"
)

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("not found")

// Store defines the registry interface for running sessions.
type Store interface {
	// Save registers or replaces a session under its game ID.
	Save(ctx context.Context, s *session.Session) error

	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (*session.Session, error)

	// Delete stops and forgets a session. Unknown IDs are ignored.
	Delete(ctx context.Context, id string) error

	// Range calls fn for each session until fn returns false.
	Range(fn func(s *session.Session) bool)
}

type memory struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*session.Session)}
}

func (m *memory) Save(ctx context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = s
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Stop()
	}
	return nil
}

// Range iterates over a copy so fn may call back into the store.
func (m *memory) Range(fn func(s *session.Session) bool) {
	m.mu.RLock()
	all := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()
	for _, s := range all {
		if !fn(s) {
			return
		}
	}
}

// Sweep deletes sessions idle for longer than ttl, or whose goroutine has
// already exited. It returns how many were removed.
func Sweep(ctx context.Context, st Store, now time.Time, ttl time.Duration) int {
	var stale []string
	st.Range(func(s *session.Session) bool {
		select {
		case <-s.Done():
			stale = append(stale, s.ID())
			return true
		default:
		}
		if now.Sub(s.LastActive()) > ttl {
			stale = append(stale, s.ID())
		}
		return true
	})
	for _, id := range stale {
		_ = st.Delete(ctx, id)
	}
	if len(stale) > 0 {
		log.Debug().Int("removed", len(stale)).Msg("swept idle sessions")
	}
	return len(stale)
}

// RunSweeper calls Sweep every interval until ctx is done.
func RunSweeper(ctx context.Context, st Store, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			Sweep(ctx, st, now, ttl)
		}
	}
}
