package pwned

import (
	"context"
	"sync"
)

// Static is an in-memory Counter for offline play and tests. Unknown
// passwords count 0 unless Fallback is set.
type Static struct {
	mu       sync.RWMutex
	counts   map[string]int64
	Fallback func(password string) (int64, error)
}

// NewStatic copies counts into a Static counter.
func NewStatic(counts map[string]int64) *Static {
	s := &Static{counts: make(map[string]int64, len(counts))}
	for k, v := range counts {
		s.counts[k] = v
	}
	return s
}

// Set records a count.
func (s *Static) Set(password string, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[password] = n
}

func (s *Static) Count(ctx context.Context, password string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	n, ok := s.counts[password]
	s.mu.RUnlock()
	if !ok && s.Fallback != nil {
		return s.Fallback(password)
	}
	return n, nil
}

// Seeded derives a stable pseudo count from the password hash so offline
// games still have an answer for every pair.
func Seeded(password string) (int64, error) {
	prefix, suffix := Hash(password)
	var n int64
	for _, r := range prefix + suffix[:6] {
		n = n*16 + int64(hexVal(r))
	}
	return n % 10_000_000, nil
}

func hexVal(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10
	}
	return 0
}
