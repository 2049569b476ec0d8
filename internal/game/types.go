// internal/game/types.go
//
// Core type definitions for the higher-or-pwned state machine.
// Defines:
//   - State: idle | countdown | playing | revealing | gameOver.
//   - Side: which of the two slots a guess points at.
//   - Password: one on-screen slot with its (possibly pending) breach count.
//   - Result: the frozen summary written when a game ends.
//   - Rules: timing and rotation tunables.
//   - View: the JSON snapshot served to clients.

package game

import (
	"errors"
	"fmt"
	"time"
)

// State is the coarse phase of a game.
type State string

const (
	StateIdle      State = "idle"
	StateCountdown State = "countdown"
	StatePlaying   State = "playing"
	StateRevealing State = "revealing"
	StateGameOver  State = "gameOver"
)

// Side identifies a slot.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// ErrInvalidSide is returned for anything other than "left" or "right".
var ErrInvalidSide = errors.New("invalid side")

// ParseSide validates a side name.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideLeft, SideRight:
		return Side(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSide, s)
}

// Password is one displayed candidate.
type Password struct {
	Value string `json:"value"`
	// Count is nil until the breach lookup resolves.
	Count        *int64 `json:"count"`
	RoundsStayed int    `json:"roundsStayed"`
	// Gen changes every time the slot is refilled; lookups carry it so late
	// answers for a replaced password are dropped.
	Gen       uint64 `json:"-"`
	LookupErr string `json:"lookupError,omitempty"`
}

func (p Password) count() int64 {
	if p.Count == nil {
		return 0
	}
	return *p.Count
}

// Result is written once, on entering gameOver.
type Result struct {
	Score         int      `json:"score"`
	LastLeft      Password `json:"lastLeft"`
	LastRight     Password `json:"lastRight"`
	CorrectAnswer Side     `json:"correctAnswer"`
	TimedOut      bool     `json:"timedOut"`
}

// Outcome reports what a guess did.
type Outcome struct {
	Correct bool    `json:"correct"`
	Choice  Side    `json:"choice"`
	Answer  Side    `json:"answer"`
	Score   int     `json:"score"`
	Result  *Result `json:"result,omitempty"`
}

// Lookup is a breach-count request the owner of the game has to run.
type Lookup struct {
	Side  Side
	Gen   uint64
	Value string
}

// Rules are the per-game tunables.
type Rules struct {
	// MaxRoundsStayed is how many wins a password may survive before both
	// slots are refreshed.
	MaxRoundsStayed int
	Countdown       time.Duration
	RoundTime       time.Duration
	Bonus           time.Duration
}

// DefaultRules mirrors the classic game: 3s countdown, 15s clock, +3s per
// correct answer, a winner stays for at most two rounds.
func DefaultRules() Rules {
	return Rules{
		MaxRoundsStayed: 2,
		Countdown:       3 * time.Second,
		RoundTime:       15 * time.Second,
		Bonus:           3 * time.Second,
	}
}

// SlotView is the client-facing form of a Password.
type SlotView struct {
	Value        string `json:"value"`
	Count        *int64 `json:"count,omitempty"`
	Loading      bool   `json:"loading"`
	Error        string `json:"error,omitempty"`
	RoundsStayed int    `json:"roundsStayed"`
}

// View is a point-in-time snapshot of a game.
type View struct {
	ID              string   `json:"id"`
	State           State    `json:"state"`
	Left            SlotView `json:"left"`
	Right           SlotView `json:"right"`
	Score           int      `json:"score"`
	Loading         bool     `json:"loading"`
	TimeRemainingMs int64    `json:"timeRemainingMs"`
	CountdownMs     int64    `json:"countdownMs"`
	Result          *Result  `json:"result,omitempty"`
}
