// internal/session/session.go
//
// Session is the single goroutine that owns one game.
//
// Responsibilities:
//   - Serialize every command through Inbox so the game is never shared.
//   - Advance the countdown and round clock on a fixed tick.
//   - Run breach lookups concurrently, one per slot, cancelling a lookup when
//     its slot is refilled and dropping answers for old slot generations.
//   - Fan snapshots out to subscribers and publish the score atomically.
//   - Report the result once per game through OnFinish.

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/higherpwned/server/internal/game"
	"github.com/higherpwned/server/internal/pwned"
	"github.com/higherpwned/server/internal/timing"
)

const (
	DefaultTick        = 10 * time.Millisecond
	DefaultRevealDelay = 2 * time.Second
	// publishEvery throttles clock-only updates to subscribers.
	publishEvery = 100 * time.Millisecond
)

var (
	// ErrStopped is returned by calls made after the session exited.
	ErrStopped      = errors.New("session stopped")
	ErrStarted      = errors.New("game already started")
	ErrGuessPending = errors.New("guess already pending")
)

// Options tunes a Session. Zero values take the defaults.
type Options struct {
	Tick        time.Duration
	RevealDelay time.Duration
	Clock       timing.Clock
	// LookupTimeout bounds a single breach lookup. Zero means 15s.
	LookupTimeout time.Duration
}

type pendingGuess struct {
	choice game.Side
	at     time.Time
}

// Session drives one game.
type Session struct {
	Inbox chan any

	// Mode is informational ("classic", "daily").
	Mode string
	// OnFinish receives the result each time the game ends. It runs on its
	// own goroutine.
	OnFinish func(res game.Result)

	g       *game.Game
	counter pwned.Counter
	opts    Options

	ctx      context.Context
	cancels  map[game.Side]context.CancelFunc
	inflight map[game.Side]uint64

	subs    map[int]chan game.View
	nextSub int

	pending     *pendingGuess
	finished    bool
	lastTick    time.Time
	lastPublish time.Time

	score      atomic.Int64
	latest     atomic.Pointer[game.View]
	lastActive atomic.Int64

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New wraps g. The session does nothing until Run is called.
func New(g *game.Game, counter pwned.Counter, opts Options) *Session {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.RevealDelay < 0 {
		opts.RevealDelay = 0
	} else if opts.RevealDelay == 0 {
		opts.RevealDelay = DefaultRevealDelay
	}
	if opts.Clock == nil {
		opts.Clock = timing.Real{}
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 15 * time.Second
	}
	s := &Session{
		Inbox:    make(chan any, 64),
		Mode:     "classic",
		g:        g,
		counter:  counter,
		opts:     opts,
		ctx:      context.Background(),
		cancels:  make(map[game.Side]context.CancelFunc),
		inflight: make(map[game.Side]uint64),
		subs:     make(map[int]chan game.View),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.touch()
	v := g.Snapshot()
	s.latest.Store(&v)
	return s
}

// ID is the game's identifier.
func (s *Session) ID() string { return s.g.ID }

// Score is the current score, safe to read from any goroutine.
func (s *Session) Score() int { return int(s.score.Load()) }

// Latest is the most recently published view.
func (s *Session) Latest() game.View { return *s.latest.Load() }

// LastActive is when a command last reached the session.
func (s *Session) LastActive() time.Time { return time.Unix(0, s.lastActive.Load()) }

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stop asks Run to exit. Safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })
}

// Run processes commands until ctx is cancelled or Stop is called.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.ctx = runCtx

	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()
	defer s.closeSubs()

	s.lastTick = s.opts.Clock.Now()
	s.issueLookups(false)
	s.publish(true)

	for {
		select {
		case <-runCtx.Done():
			return
		case <-s.quit:
			return
		case cmd := <-s.Inbox:
			s.handle(cmd)
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Session) touch() { s.lastActive.Store(s.opts.Clock.Now().UnixNano()) }

func (s *Session) handle(cmd any) {
	if _, internal := cmd.(lookupResult); !internal {
		s.touch()
	}
	switch c := cmd.(type) {
	case Start:
		var err error
		if !s.g.Start() {
			err = ErrStarted
			if s.g.State == game.StateGameOver {
				err = game.ErrFinished
			}
		}
		s.lastTick = s.opts.Clock.Now()
		c.Reply <- err
	case Reveal:
		c.Reply <- s.g.StartReveal()
	case Guess:
		s.pending = nil
		out, err := s.g.MakeGuess(c.Choice)
		c.Reply <- GuessResult{Outcome: out, Err: err}
	case Play:
		c.Reply <- s.play(c.Choice)
	case Reset:
		s.pending = nil
		s.finished = false
		s.g.Reset()
		c.Reply <- s.g.Snapshot()
	case Retry:
		c.Reply <- s.issueLookups(true)
	case Snapshot:
		c.Reply <- s.g.Snapshot()
	case Subscribe:
		s.nextSub++
		ch := make(chan game.View, 1)
		s.subs[s.nextSub] = ch
		ch <- s.g.Snapshot()
		c.Reply <- Subscription{ID: s.nextSub, C: ch}
		return
	case Unsubscribe:
		if ch, ok := s.subs[c.ID]; ok {
			delete(s.subs, c.ID)
			close(ch)
		}
		return
	case lookupResult:
		s.applyLookup(c)
	default:
		log.Warn().Str("gameId", s.g.ID).Msgf("session: unknown command %T", cmd)
		return
	}
	s.afterChange()
}

// play starts the reveal (unless one is already showing) and schedules the
// guess.
func (s *Session) play(choice game.Side) error {
	if _, err := game.ParseSide(string(choice)); err != nil {
		return err
	}
	if s.pending != nil {
		return ErrGuessPending
	}
	switch s.g.State {
	case game.StateRevealing:
	case game.StatePlaying:
		if !s.g.StartReveal() {
			return game.ErrLoading
		}
	case game.StateGameOver:
		return game.ErrFinished
	default:
		return game.ErrNotPlaying
	}
	s.pending = &pendingGuess{choice: choice, at: s.opts.Clock.Now().Add(s.opts.RevealDelay)}
	return nil
}

func (s *Session) tick() {
	now := s.opts.Clock.Now()
	changed := s.g.Advance(now.Sub(s.lastTick))
	s.lastTick = now

	if p := s.pending; p != nil && !now.Before(p.at) {
		s.pending = nil
		if _, err := s.g.MakeGuess(p.choice); err != nil {
			log.Debug().Err(err).Str("gameId", s.g.ID).Msg("delayed guess dropped")
		}
		changed = true
	}
	if changed {
		s.afterChange()
		return
	}
	switch s.g.State {
	case game.StateCountdown, game.StatePlaying, game.StateRevealing:
		if now.Sub(s.lastPublish) >= publishEvery {
			s.publish(false)
		}
	}
}

// afterChange launches lookups for refilled slots, reports a finished game
// and publishes.
func (s *Session) afterChange() {
	s.issueLookups(false)
	if s.g.State == game.StateGameOver && !s.finished {
		s.finished = true
		s.pending = nil
		res := *s.g.Result
		log.Info().Str("gameId", s.g.ID).Int("score", res.Score).Bool("timedOut", res.TimedOut).Msg("game over")
		if s.OnFinish != nil {
			go s.OnFinish(res)
		}
	}
	s.publish(true)
}

// issueLookups starts a lookup for every slot whose count is unknown and
// which has nothing in flight. Slots with a recorded failure are only
// retried when retry is set. It returns how many lookups were started.
func (s *Session) issueLookups(retry bool) int {
	started := 0
	for _, l := range s.g.PendingLookups() {
		if s.inflight[l.Side] == l.Gen {
			continue
		}
		if !retry && s.hasError(l.Side) {
			continue
		}
		if cancel := s.cancels[l.Side]; cancel != nil {
			cancel()
		}
		ctx, cancel := context.WithTimeout(s.ctx, s.opts.LookupTimeout)
		s.cancels[l.Side] = cancel
		s.inflight[l.Side] = l.Gen
		started++
		go s.lookup(ctx, l)
	}
	return started
}

func (s *Session) hasError(side game.Side) bool {
	if side == game.SideRight {
		return s.g.Right.LookupErr != ""
	}
	return s.g.Left.LookupErr != ""
}

func (s *Session) lookup(ctx context.Context, l game.Lookup) {
	n, err := s.counter.Count(ctx, l.Value)
	if ctx.Err() != nil && err == nil {
		// The slot was refilled or the session stopped; nobody wants this.
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	select {
	case s.Inbox <- lookupResult{Side: l.Side, Gen: l.Gen, Count: n, Err: err}:
	case <-s.quit:
	case <-s.done:
	}
}

func (s *Session) applyLookup(r lookupResult) {
	if s.inflight[r.Side] == r.Gen {
		delete(s.inflight, r.Side)
		if cancel := s.cancels[r.Side]; cancel != nil {
			cancel()
			delete(s.cancels, r.Side)
		}
	}
	if r.Err != nil {
		if s.g.FailLookup(r.Side, r.Gen, r.Err) {
			log.Warn().Err(r.Err).Str("gameId", s.g.ID).Str("side", string(r.Side)).Msg("breach lookup failed")
		}
		return
	}
	s.g.ApplyCount(r.Side, r.Gen, r.Count)
}

func (s *Session) publish(force bool) {
	v := s.g.Snapshot()
	s.latest.Store(&v)
	s.score.Store(int64(s.g.Score))
	s.lastPublish = s.opts.Clock.Now()
	if !force && len(s.subs) == 0 {
		return
	}
	for _, ch := range s.subs {
		offer(ch, v)
	}
}

// offer delivers v, replacing an undelivered older view if necessary.
func offer(ch chan game.View, v game.View) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

func (s *Session) closeSubs() {
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	for side, cancel := range s.cancels {
		cancel()
		delete(s.cancels, side)
	}
}
