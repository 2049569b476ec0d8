package session

import (
	"context"

	"github.com/higherpwned/server/internal/game"
)

// call posts a command built around a fresh reply channel and waits for the
// answer, giving up if ctx ends or the session stops.
func call[T any](ctx context.Context, s *Session, build func(reply chan<- T) any) (T, error) {
	var zero T
	reply := make(chan T, 1)
	select {
	case s.Inbox <- build(reply):
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.done:
		return zero, ErrStopped
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.done:
		return zero, ErrStopped
	}
}

func (s *Session) Start(ctx context.Context) error {
	res, err := call(ctx, s, func(r chan<- error) any { return Start{Reply: r} })
	if err != nil {
		return err
	}
	return res
}

func (s *Session) Reveal(ctx context.Context) (bool, error) {
	return call(ctx, s, func(r chan<- bool) any { return Reveal{Reply: r} })
}

func (s *Session) Guess(ctx context.Context, choice game.Side) (game.Outcome, error) {
	res, err := call(ctx, s, func(r chan<- GuessResult) any { return Guess{Choice: choice, Reply: r} })
	if err != nil {
		return game.Outcome{}, err
	}
	return res.Outcome, res.Err
}

func (s *Session) Play(ctx context.Context, choice game.Side) error {
	res, err := call(ctx, s, func(r chan<- error) any { return Play{Choice: choice, Reply: r} })
	if err != nil {
		return err
	}
	return res
}

func (s *Session) Reset(ctx context.Context) (game.View, error) {
	return call(ctx, s, func(r chan<- game.View) any { return Reset{Reply: r} })
}

func (s *Session) Retry(ctx context.Context) (int, error) {
	return call(ctx, s, func(r chan<- int) any { return Retry{Reply: r} })
}

func (s *Session) View(ctx context.Context) (game.View, error) {
	return call(ctx, s, func(r chan<- game.View) any { return Snapshot{Reply: r} })
}

// Subscribe registers for view updates. The first view arrives immediately.
func (s *Session) Subscribe(ctx context.Context) (Subscription, error) {
	return call(ctx, s, func(r chan<- Subscription) any { return Subscribe{Reply: r} })
}

// Unsubscribe drops a subscription; its channel is closed.
func (s *Session) Unsubscribe(id int) {
	select {
	case s.Inbox <- Unsubscribe{ID: id}:
	case <-s.done:
	}
}
