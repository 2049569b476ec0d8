package game

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/higherpwned/server/internal/rng"
	"github.com/higherpwned/server/internal/words"
)

func mustPool(t *testing.T, values ...string) *words.Pool {
	t.Helper()
	p, err := words.NewPool(values)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// playing returns a started game with no countdown.
func playing(t *testing.T, pool *words.Pool, r rng.Source) *Game {
	t.Helper()
	rules := DefaultRules()
	rules.Countdown = 0
	g := New(pool, r, rules)
	if !g.Start() || g.State != StatePlaying {
		t.Fatalf("Start: state %s", g.State)
	}
	return g
}

func resolve(g *Game, counts map[string]int64) {
	for _, l := range g.PendingLookups() {
		g.ApplyCount(l.Side, l.Gen, counts[l.Value])
	}
}

func TestScenarioCorrectGuess(t *testing.T) {
	pool := mustPool(t, "123456", "password")
	g := playing(t, pool, &rng.Sequence{Ints: []int{0}})
	if g.Left.Value != "123456" || g.Right.Value != "password" {
		t.Fatalf("pair = %s/%s", g.Left.Value, g.Right.Value)
	}
	resolve(g, map[string]int64{"123456": 500, "password": 300})

	out, err := g.MakeGuess(SideLeft)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Correct || g.Score != 1 || g.State != StatePlaying {
		t.Fatalf("outcome %+v, score %d, state %s", out, g.Score, g.State)
	}
	if g.TimeRemaining != 18*time.Second {
		t.Fatalf("bonus not applied: %v", g.TimeRemaining)
	}
	if g.Left.Value != "123456" || g.Left.RoundsStayed != 1 || g.Left.Count == nil {
		t.Fatalf("winner must keep its slot and count: %+v", g.Left)
	}
	if g.Left.Value == g.Right.Value {
		t.Fatal("slots must differ")
	}
}

func TestScenarioWrongGuess(t *testing.T) {
	pool := mustPool(t, "123456", "password")
	g := playing(t, pool, &rng.Sequence{Ints: []int{0}})
	resolve(g, map[string]int64{"123456": 500, "password": 300})

	out, err := g.MakeGuess(SideRight)
	if err != nil {
		t.Fatal(err)
	}
	if out.Correct || g.State != StateGameOver || g.Result == nil {
		t.Fatalf("expected game over, got %+v state %s", out, g.State)
	}
	if g.Result.CorrectAnswer != SideLeft || g.Result.Score != 0 || g.Result.TimedOut {
		t.Fatalf("result %+v", g.Result)
	}
	if g.Result.LastLeft.Value != "123456" || g.Result.LastRight.Value != "password" {
		t.Fatalf("result pair %+v", g.Result)
	}
}

func TestTieGoesLeft(t *testing.T) {
	g := playing(t, mustPool(t, "a", "b"), rng.New(1))
	resolve(g, map[string]int64{"a": 7, "b": 7})
	out, _ := g.MakeGuess(SideLeft)
	if !out.Correct {
		t.Fatal("a tie must favour left")
	}
}

func TestRotationAfterMaxRoundsStayed(t *testing.T) {
	values := make([]string, 20)
	for i := range values {
		values[i] = fmt.Sprintf("pw%02d", i)
	}
	g := playing(t, mustPool(t, values...), rng.New(42))

	// Left always has more breaches than whatever replaces the right slot.
	feed := func() {
		for _, l := range g.PendingLookups() {
			n := int64(1)
			if l.Side == SideLeft {
				n = 1000
			}
			g.ApplyCount(l.Side, l.Gen, n)
		}
	}

	winner := g.Left.Value
	for round := 1; round <= 2; round++ {
		feed()
		if _, err := g.MakeGuess(SideLeft); err != nil {
			t.Fatal(err)
		}
		if g.Left.Value != winner || g.Left.RoundsStayed != round {
			t.Fatalf("round %d: left = %+v, want %s staying %d", round, g.Left, winner, round)
		}
		if g.Right.RoundsStayed != 0 || g.Right.Count != nil {
			t.Fatalf("round %d: loser slot must be fresh: %+v", round, g.Right)
		}
	}

	feed()
	if _, err := g.MakeGuess(SideLeft); err != nil {
		t.Fatal(err)
	}
	if g.Left.Value == winner {
		t.Fatal("winner must be replaced after MaxRoundsStayed")
	}
	if g.Left.RoundsStayed != 0 || g.Right.RoundsStayed != 0 {
		t.Fatalf("new slots must start at 0: %+v %+v", g.Left, g.Right)
	}
	if g.Left.Value == g.Right.Value {
		t.Fatal("new pair must be distinct")
	}
	if g.Score != 3 {
		t.Fatalf("score = %d, want 3", g.Score)
	}
}

func TestNewValuesAvoidUsed(t *testing.T) {
	values := make([]string, 50)
	for i := range values {
		values[i] = fmt.Sprintf("v%d", i)
	}
	g := playing(t, mustPool(t, values...), rng.New(3))
	seen := map[string]bool{g.Left.Value: true, g.Right.Value: true}
	for i := 0; i < 10; i++ {
		resolve(g, map[string]int64{})
		if _, err := g.MakeGuess(SideLeft); err != nil {
			t.Fatal(err)
		}
		for _, p := range []Password{g.Left, g.Right} {
			if p.RoundsStayed == 0 && seen[p.Value] {
				t.Fatalf("value %q shown twice before pool exhaustion", p.Value)
			}
			seen[p.Value] = true
		}
	}
}

func TestPoolExhaustionNeverPanics(t *testing.T) {
	g := playing(t, mustPool(t, "x", "y", "z"), rng.New(8))
	for i := 0; i < 30; i++ {
		resolve(g, map[string]int64{})
		if _, err := g.MakeGuess(SideLeft); err != nil {
			t.Fatal(err)
		}
		if g.Left.Value == g.Right.Value {
			t.Fatalf("round %d: identical pair %q", i, g.Left.Value)
		}
		if !g.Used(g.Left.Value) || !g.Used(g.Right.Value) {
			t.Fatal("on-screen values must be tracked as used")
		}
	}
}

func TestResetInvariants(t *testing.T) {
	g := playing(t, mustPool(t, "a", "b", "c", "d"), rng.New(5))
	resolve(g, map[string]int64{"a": 1, "b": 2, "c": 3, "d": 4})
	g.MakeGuess(g.CorrectSide())
	g.Advance(2 * time.Second)

	g.Reset()
	if g.State != StateIdle || g.Score != 0 || g.Result != nil {
		t.Fatalf("state %s score %d result %v", g.State, g.Score, g.Result)
	}
	if g.Left.Value == g.Right.Value {
		t.Fatal("reset pair must be distinct")
	}
	if g.UsedCount() != 2 || !g.Used(g.Left.Value) || !g.Used(g.Right.Value) {
		t.Fatalf("used set must be exactly the new pair, size %d", g.UsedCount())
	}
	if g.TimeRemaining != 15*time.Second || g.Left.Count != nil || g.Right.Count != nil {
		t.Fatal("reset must restore the clock and clear counts")
	}
}

func TestGuessRejectedWhileLoadingOrOver(t *testing.T) {
	g := playing(t, mustPool(t, "a", "b"), rng.New(1))
	if _, err := g.MakeGuess(SideLeft); !errors.Is(err, ErrLoading) {
		t.Fatalf("err = %v, want ErrLoading", err)
	}
	if g.StartReveal() {
		t.Fatal("reveal must wait for both counts")
	}
	if g.Score != 0 || g.State != StatePlaying {
		t.Fatal("loading guess must be a no-op")
	}

	resolve(g, map[string]int64{"a": 1, "b": 2})
	wrong := SideLeft
	if g.CorrectSide() == SideLeft {
		wrong = SideRight
	}
	g.MakeGuess(wrong)
	res := g.Result
	if _, err := g.MakeGuess(SideLeft); !errors.Is(err, ErrFinished) {
		t.Fatalf("err = %v, want ErrFinished", err)
	}
	if g.Result != res || g.State != StateGameOver {
		t.Fatal("guess after game over must not change anything")
	}
}

func TestGuessRejectedBeforeStart(t *testing.T) {
	g := New(mustPool(t, "a", "b"), rng.New(1), DefaultRules())
	resolve(g, map[string]int64{"a": 1, "b": 2})
	if _, err := g.MakeGuess(SideLeft); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("err = %v, want ErrNotPlaying", err)
	}
	if _, err := g.MakeGuess("middle"); !errors.Is(err, ErrInvalidSide) {
		t.Fatalf("err = %v, want ErrInvalidSide", err)
	}
}

func TestCountdownThenTimeout(t *testing.T) {
	g := New(mustPool(t, "a", "b"), rng.New(1), DefaultRules())
	g.Start()
	if g.State != StateCountdown {
		t.Fatalf("state %s, want countdown", g.State)
	}
	g.Advance(2 * time.Second)
	if g.State != StateCountdown {
		t.Fatal("countdown ended early")
	}
	if !g.Advance(time.Second) || g.State != StatePlaying {
		t.Fatalf("state %s, want playing", g.State)
	}
	resolve(g, map[string]int64{"a": 1, "b": 9})
	g.Advance(14 * time.Second)
	if g.State != StatePlaying {
		t.Fatal("timed out early")
	}
	if !g.Advance(2*time.Second) || g.State != StateGameOver {
		t.Fatalf("state %s, want gameOver", g.State)
	}
	if g.TimeRemaining != 0 || !g.Result.TimedOut {
		t.Fatalf("remaining %v result %+v", g.TimeRemaining, g.Result)
	}
	if g.Result.CorrectAnswer != g.CorrectSide() {
		t.Fatal("timeout result must carry the side with more breaches")
	}
}

func TestTimerDoesNotEndRevealing(t *testing.T) {
	g := playing(t, mustPool(t, "a", "b"), rng.New(1))
	resolve(g, map[string]int64{"a": 5, "b": 1})
	if !g.StartReveal() {
		t.Fatal("reveal refused")
	}
	g.Advance(time.Minute)
	if g.State != StateRevealing || g.TimeRemaining != 0 {
		t.Fatalf("state %s remaining %v", g.State, g.TimeRemaining)
	}
	out, err := g.MakeGuess(g.CorrectSide())
	if err != nil || !out.Correct {
		t.Fatalf("guess after reveal: %+v %v", out, err)
	}
	if g.TimeRemaining != 3*time.Second {
		t.Fatalf("bonus on empty clock: %v", g.TimeRemaining)
	}
}

func TestStaleLookupsAreDropped(t *testing.T) {
	g := playing(t, mustPool(t, "a", "b", "c", "d"), rng.New(2))
	lookups := g.PendingLookups()
	if len(lookups) != 2 {
		t.Fatalf("want 2 pending lookups, got %d", len(lookups))
	}
	resolve(g, map[string]int64{})
	g.MakeGuess(SideLeft)

	// The right slot was refilled, so its old lookup no longer applies.
	var oldRight Lookup
	for _, l := range lookups {
		if l.Side == SideRight {
			oldRight = l
		}
	}
	if g.ApplyCount(SideRight, oldRight.Gen, 99) {
		t.Fatal("stale count accepted")
	}
	if g.FailLookup(SideRight, oldRight.Gen, errors.New("boom")) {
		t.Fatal("stale failure accepted")
	}
	if g.Right.Count != nil || g.Right.LookupErr != "" {
		t.Fatalf("right slot touched by stale lookup: %+v", g.Right)
	}

	cur := g.PendingLookups()[0]
	if !g.FailLookup(cur.Side, cur.Gen, errors.New("rate limited")) || g.Right.LookupErr != "rate limited" {
		t.Fatal("current failure must be recorded")
	}
	if !g.ApplyCount(cur.Side, cur.Gen, -4) || *g.Right.Count != 0 || g.Right.LookupErr != "" {
		t.Fatal("retry must clear the error and clamp negative counts")
	}
}

func TestSnapshotHidesCountsUntilReveal(t *testing.T) {
	g := playing(t, mustPool(t, "a", "b"), rng.New(1))
	resolve(g, map[string]int64{"a": 4, "b": 2})
	v := g.Snapshot()
	if v.Left.Count != nil || v.Right.Count != nil || v.Loading {
		t.Fatalf("counts leaked before reveal: %+v", v)
	}
	g.StartReveal()
	v = g.Snapshot()
	if v.Left.Count == nil || v.Right.Count == nil || v.State != StateRevealing {
		t.Fatalf("counts hidden while revealing: %+v", v)
	}
}
