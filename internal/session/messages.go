package session

import "github.com/higherpwned/server/internal/game"

// Commands accepted on Session.Inbox. Every Reply channel must be buffered
// (capacity 1) so the session never blocks answering.

type Start struct {
	Reply chan<- error
}

type Reveal struct {
	Reply chan<- bool
}

type Guess struct {
	Choice game.Side
	Reply  chan<- GuessResult
}

type GuessResult struct {
	Outcome game.Outcome
	Err     error
}

// Play reveals now and submits Choice once the reveal delay has passed.
type Play struct {
	Choice game.Side
	Reply  chan<- error
}

type Reset struct {
	Reply chan<- game.View
}

// Retry re-issues lookups that failed; Reply gets how many were restarted.
type Retry struct {
	Reply chan<- int
}

type Snapshot struct {
	Reply chan<- game.View
}

type Subscribe struct {
	Reply chan<- Subscription
}

type Unsubscribe struct {
	ID int
}

// Subscription delivers views; only the newest undelivered view is kept.
type Subscription struct {
	ID int
	C  <-chan game.View
}

// lookupResult is posted back by a lookup goroutine.
type lookupResult struct {
	Side  game.Side
	Gen   uint64
	Count int64
	Err   error
}
