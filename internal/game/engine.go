// internal/game/engine.go
//
// Game engine for a single higher-or-pwned session.
// Responsibilities:
//   - Pick two distinct passwords, tracking every value shown this session.
//   - Drive the countdown and the round clock from elapsed time.
//   - Gate guesses on both breach counts being known.
//   - Score guesses (ties go left), rotate slots, and freeze a Result on loss.
//
// Notes:
//   - A Game is not safe for concurrent use; the session goroutine owns it.
//   - Breach counts are fed in from outside through ApplyCount / FailLookup.
//   - When the used set leaves no candidate, history is forgotten: the used
//     set shrinks to the values on screen and selection starts over.

package game

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zyedidia/generic/mapset"

	"github.com/higherpwned/server/internal/rng"
	"github.com/higherpwned/server/internal/words"
)

var (
	ErrLoading    = errors.New("breach counts still loading")
	ErrFinished   = errors.New("game finished")
	ErrNotPlaying = errors.New("game not started")
)

// Game is the state of one session.
type Game struct {
	ID            string
	Left, Right   Password
	Score         int
	State         State
	TimeRemaining time.Duration
	Countdown     time.Duration
	Result        *Result

	used  mapset.Set[string]
	pool  *words.Pool
	rng   rng.Source
	rules Rules
	gen   uint64
}

// New builds a game in the idle state with a fresh pair on screen.
func New(pool *words.Pool, r rng.Source, rules Rules) *Game {
	if rules.MaxRoundsStayed < 0 {
		rules.MaxRoundsStayed = 0
	}
	if rules.RoundTime <= 0 {
		rules.RoundTime = DefaultRules().RoundTime
	}
	if rules.Countdown < 0 {
		rules.Countdown = 0
	}
	g := &Game{ID: uuid.NewString(), pool: pool, rng: r, rules: rules}
	g.Reset()
	return g
}

// Rules returns the tunables this game runs with.
func (g *Game) Rules() Rules { return g.rules }

// Reset starts over: new distinct pair, score 0, full clock, state idle.
func (g *Game) Reset() {
	g.used = mapset.New[string]()
	g.Left, g.Right = Password{}, Password{}
	left := g.pick()
	right := g.pick(left)
	g.Left, g.Right = g.fill(left), g.fill(right)

	g.Score = 0
	g.TimeRemaining = g.rules.RoundTime
	g.Countdown = g.rules.Countdown
	g.State = StateIdle
	g.Result = nil
}

// Start leaves idle. With no countdown configured it goes straight to playing.
func (g *Game) Start() bool {
	if g.State != StateIdle {
		return false
	}
	if g.Countdown <= 0 {
		g.State = StatePlaying
	} else {
		g.State = StateCountdown
	}
	return true
}

// Advance moves the clocks forward by d and reports whether the state changed.
// The round clock runs while playing or revealing; running out while playing
// ends the game.
func (g *Game) Advance(d time.Duration) bool {
	if d <= 0 {
		return false
	}
	switch g.State {
	case StateCountdown:
		g.Countdown -= d
		if g.Countdown <= 0 {
			g.Countdown = 0
			g.State = StatePlaying
			return true
		}
	case StatePlaying, StateRevealing:
		g.TimeRemaining -= d
		if g.TimeRemaining <= 0 {
			g.TimeRemaining = 0
			if g.State == StatePlaying {
				g.finish(true)
				return true
			}
		}
	}
	return false
}

// IsLoading reports whether either breach count is still unknown.
func (g *Game) IsLoading() bool {
	return g.Left.Count == nil || g.Right.Count == nil
}

// StartReveal locks in the pair for judging. Only valid while playing with
// both counts known.
func (g *Game) StartReveal() bool {
	if g.State != StatePlaying || g.IsLoading() {
		return false
	}
	g.State = StateRevealing
	return true
}

// MakeGuess judges choice against the breach counts.
//
// A wrong guess ends the game. A right one scores, adds the bonus to the
// clock and rotates the slots: the winner stays unless it has now outlived
// MaxRoundsStayed, in which case both slots are refilled.
func (g *Game) MakeGuess(choice Side) (Outcome, error) {
	if _, err := ParseSide(string(choice)); err != nil {
		return Outcome{}, err
	}
	switch g.State {
	case StateGameOver:
		return Outcome{}, ErrFinished
	case StatePlaying, StateRevealing:
	default:
		return Outcome{}, ErrNotPlaying
	}
	if g.IsLoading() {
		return Outcome{}, ErrLoading
	}

	answer := g.CorrectSide()
	out := Outcome{Choice: choice, Answer: answer}
	if choice != answer {
		g.finish(false)
		out.Score = g.Score
		out.Result = g.Result
		return out, nil
	}

	g.Score++
	g.TimeRemaining += g.rules.Bonus
	g.rotate(choice)
	g.State = StatePlaying

	out.Correct = true
	out.Score = g.Score
	return out, nil
}

// CorrectSide is the slot with more breaches; ties and unknowns go left.
func (g *Game) CorrectSide() Side {
	if g.Left.count() >= g.Right.count() {
		return SideLeft
	}
	return SideRight
}

func (g *Game) rotate(winnerSide Side) {
	winner, loser := &g.Left, &g.Right
	if winnerSide == SideRight {
		winner, loser = &g.Right, &g.Left
	}
	winner.RoundsStayed++
	if winner.RoundsStayed > g.rules.MaxRoundsStayed {
		left := g.pick()
		right := g.pick(left)
		g.Left, g.Right = g.fill(left), g.fill(right)
		return
	}
	*loser = g.fill(g.pick(winner.Value))
}

// pick chooses an unused value not in others. When nothing is left it forgets
// history down to what is on screen; a pool of two can still be exhausted by
// that, in which case only others are avoided.
func (g *Game) pick(others ...string) string {
	avoid := func(v string) bool {
		for _, o := range others {
			if v == o {
				return true
			}
		}
		return false
	}
	if v, ok := g.pool.Pick(g.rng, func(v string) bool { return g.used.Has(v) || avoid(v) }); ok {
		return v
	}
	g.used = mapset.New[string]()
	for _, v := range []string{g.Left.Value, g.Right.Value} {
		if v != "" {
			g.used.Put(v)
		}
	}
	if v, ok := g.pool.Pick(g.rng, func(v string) bool { return g.used.Has(v) || avoid(v) }); ok {
		return v
	}
	v, _ := g.pool.Pick(g.rng, avoid)
	return v
}

// fill puts value in a fresh slot generation and marks it used.
func (g *Game) fill(value string) Password {
	g.gen++
	g.used.Put(value)
	return Password{Value: value, Gen: g.gen}
}

func (g *Game) finish(timedOut bool) {
	g.Result = &Result{
		Score:         g.Score,
		LastLeft:      g.Left,
		LastRight:     g.Right,
		CorrectAnswer: g.CorrectSide(),
		TimedOut:      timedOut,
	}
	g.State = StateGameOver
}

func (g *Game) slot(side Side) *Password {
	if side == SideRight {
		return &g.Right
	}
	return &g.Left
}

// ApplyCount records a resolved breach count. It reports false when the slot
// has moved on to another password since the lookup was issued.
func (g *Game) ApplyCount(side Side, gen uint64, n int64) bool {
	p := g.slot(side)
	if p.Gen != gen {
		return false
	}
	if n < 0 {
		n = 0
	}
	p.Count = &n
	p.LookupErr = ""
	return true
}

// FailLookup records a lookup failure; the count stays unknown so guessing
// stays blocked until a retry succeeds.
func (g *Game) FailLookup(side Side, gen uint64, err error) bool {
	p := g.slot(side)
	if p.Gen != gen || p.Count != nil {
		return false
	}
	if err != nil {
		p.LookupErr = err.Error()
	}
	return true
}

// PendingLookups lists the slots whose count is still unknown.
func (g *Game) PendingLookups() []Lookup {
	var out []Lookup
	for _, s := range []Side{SideLeft, SideRight} {
		p := g.slot(s)
		if p.Count == nil {
			out = append(out, Lookup{Side: s, Gen: p.Gen, Value: p.Value})
		}
	}
	return out
}

// Used reports whether v has been shown since history was last cleared.
func (g *Game) Used(v string) bool { return g.used.Has(v) }

// UsedCount is the size of the used set.
func (g *Game) UsedCount() int { return g.used.Size() }

// Snapshot renders the client view. Counts stay hidden until the pair is
// being judged, except for a winner carried over from an earlier round.
func (g *Game) Snapshot() View {
	reveal := g.State == StateRevealing || g.State == StateGameOver
	slot := func(p Password) SlotView {
		v := SlotView{
			Value:        p.Value,
			Loading:      p.Count == nil,
			Error:        p.LookupErr,
			RoundsStayed: p.RoundsStayed,
		}
		if reveal || p.RoundsStayed > 0 {
			v.Count = p.Count
		}
		return v
	}
	return View{
		ID:              g.ID,
		State:           g.State,
		Left:            slot(g.Left),
		Right:           slot(g.Right),
		Score:           g.Score,
		Loading:         g.IsLoading(),
		TimeRemainingMs: g.TimeRemaining.Milliseconds(),
		CountdownMs:     g.Countdown.Milliseconds(),
		Result:          g.Result,
	}
}
