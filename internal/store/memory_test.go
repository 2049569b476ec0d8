package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/higherpwned/server/internal/game"
	"github.com/higherpwned/server/internal/pwned"
	"github.com/higherpwned/server/internal/rng"
	"github.com/higherpwned/server/internal/session"
	"github.com/higherpwned/server/internal/timing"
	"github.com/higherpwned/server/internal/words"
)

func newSession(t *testing.T, clock timing.Clock) *session.Session {
	t.Helper()
	pool, err := words.NewPool([]string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	g := game.New(pool, rng.New(1), game.DefaultRules())
	return session.New(g, pwned.NewStatic(nil), session.Options{Clock: clock})
}

func TestSaveGetDelete(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	s := newSession(t, nil)

	if _, err := st.Get(ctx, s.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get before Save: %v", err)
	}
	if err := st.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	got, err := st.Get(ctx, s.ID())
	if err != nil || got != s {
		t.Fatalf("Get = %p, %v", got, err)
	}
	if err := st.Delete(ctx, s.ID()); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Get(ctx, s.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Delete: %v", err)
	}
	if err := st.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete unknown: %v", err)
	}
}

func TestSweepRemovesIdle(t *testing.T) {
	ctx := context.Background()
	start := time.Unix(1000, 0)
	clock := timing.NewManual(start)
	st := NewMemoryStore()

	old := newSession(t, clock)
	clock.Advance(10 * time.Minute)
	fresh := newSession(t, clock)
	_ = st.Save(ctx, old)
	_ = st.Save(ctx, fresh)

	if n := Sweep(ctx, st, clock.Now(), 5*time.Minute); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if _, err := st.Get(ctx, old.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatal("idle session kept")
	}
	if _, err := st.Get(ctx, fresh.ID()); err != nil {
		t.Fatal("active session removed")
	}
}

func TestRangeStops(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	for i := 0; i < 3; i++ {
		_ = st.Save(ctx, newSession(t, nil))
	}
	seen := 0
	st.Range(func(*session.Session) bool {
		seen++
		return false
	})
	if seen != 1 {
		t.Fatalf("Range visited %d after returning false", seen)
	}
}
