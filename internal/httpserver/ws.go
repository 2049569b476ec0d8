// internal/httpserver/ws.go
//
// GET /game/{id}/ws streams a game over a websocket.
//
// Server → client messages:
//   {"type":"state","game":{...}}      on every published change
//   {"type":"frame","frame":"...", ...} one animation frame per loop tick
//   {"type":"error","error":"code"}    a client command failed
//
// Client → server messages:
//   {"type":"start"|"reveal"|"reset"|"retry"}
//   {"type":"guess"|"play","choice":"left"|"right"}
//
// Each connection owns its own simulation and frame loop. The loop reads the
// score through the session's atomic; when the score moves the rule is
// retuned in place and the loop's fps follows the score table.
// Query: variant (default fire), w, h, format=html.

package httpserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/higherpwned/server/internal/game"
	"github.com/higherpwned/server/internal/rng"
	"github.com/higherpwned/server/internal/session"
	"github.com/higherpwned/server/internal/sim"
	"github.com/higherpwned/server/internal/timing"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 25 * time.Second
)

type wsCommand struct {
	Type   string `json:"type"`
	Choice string `json:"choice,omitempty"`
}

type wsState struct {
	Type string  `json:"type"`
	Game gameRes `json:"game"`
}

type wsFrame struct {
	Type    string      `json:"type"`
	Variant sim.Variant `json:"variant"`
	Score   int         `json:"score"`
	FPS     int         `json:"fps"`
	Frame   string      `json:"frame"`
	HTML    string      `json:"html,omitempty"`
}

type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// animation is one connection's simulation, shared between the frame loop
// goroutine and the writer.
type animation struct {
	mu      sync.Mutex
	variant sim.Variant
	w, h    int
	score   int
	fps     int
	html    bool
	sim     *sim.Simulation
}

func newAnimation(v sim.Variant, w, h, score int, html bool) (*animation, error) {
	cfg, err := sim.ForScore(v, score, w, h)
	if err != nil {
		return nil, err
	}
	return &animation{
		variant: v, w: w, h: h, score: score, fps: cfg.FPS, html: html,
		sim: cfg.Build(rng.NewRandom()),
	}, nil
}

// step advances and renders one frame.
func (a *animation) step() wsFrame {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sim.Step()
	f := wsFrame{Type: "frame", Variant: a.variant, Score: a.score, FPS: a.fps, Frame: a.sim.Frame()}
	if a.html {
		f.HTML = a.sim.HTML()
	}
	return f
}

// follow retunes the running rule for score and returns the new fps, or 0
// when nothing changed.
func (a *animation) follow(score int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if score == a.score {
		return 0
	}
	cfg, err := sim.ForScore(a.variant, score, a.w, a.h)
	if err != nil {
		return 0
	}
	if !cfg.Retune(a.sim.Rule()) {
		a.sim.Reset(a.w, a.h, cfg.Rule())
	}
	a.score = score
	if cfg.FPS == a.fps {
		return 0
	}
	a.fps = cfg.FPS
	return a.fps
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	variant := sim.VariantFire
	if q := r.URL.Query().Get("variant"); q != "" {
		v, err := sim.ParseVariant(q)
		if err != nil {
			http.Error(w, `{"error":"unknown_variant"}`, http.StatusBadRequest)
			return
		}
		variant = v
	}
	anim, err := newAnimation(variant,
		queryInt(r, "w", 60, 1, 200), queryInt(r, "h", 24, 1, 100),
		sess.Score(), r.URL.Query().Get("format") == "html")
	if err != nil {
		writeErr(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("ws upgrade")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	sub, err := sess.Subscribe(ctx)
	if err != nil {
		return
	}
	defer sess.Unsubscribe(sub.ID)

	// Frame loop: latest frame wins if the writer falls behind. Rate changes
	// go to the writer, which owns the loop.
	frames := make(chan wsFrame, 1)
	retune := make(chan int, 1)
	loop := timing.NewLoop(anim.fps, nil, func(time.Time) {
		if fps := anim.follow(sess.Score()); fps > 0 {
			offer(retune, fps)
		}
		offer(frames, anim.step())
	})
	loop.Start()
	defer loop.Stop()

	// Reader: client commands and close detection.
	replies := make(chan any, 8)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		conn.SetReadLimit(1 << 16)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			var cmd wsCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Err(err).Str("gameId", sess.ID()).Msg("ws read")
				}
				return
			}
			if err := s.wsDispatch(ctx, sess, cmd); err != nil {
				select {
				case replies <- wsError{Type: "error", Error: errorCode(err)}:
				default:
				}
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	write := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(v) == nil
	}

	for {
		var ok bool
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			return
		case v, open := <-sub.C:
			if !open {
				return
			}
			ok = write(wsState{Type: "state", Game: present(sess.Mode, v)})
		case f := <-frames:
			ok = write(f)
		case fps := <-retune:
			loop.SetFPS(fps)
			ok = true
		case m := <-replies:
			ok = write(m)
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			ok = conn.WriteMessage(websocket.PingMessage, nil) == nil
		}
		if !ok {
			return
		}
	}
}

// offer delivers v, replacing an unread older value.
func offer[T any](ch chan T, v T) {
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

// wsDispatch forwards a client command to the session.
func (s *Server) wsDispatch(ctx context.Context, sess *session.Session, cmd wsCommand) error {
	switch cmd.Type {
	case "start":
		return sess.Start(ctx)
	case "reveal":
		_, err := sess.Reveal(ctx)
		return err
	case "retry":
		_, err := sess.Retry(ctx)
		return err
	case "reset":
		if sess.Mode == modeDaily {
			return errDailyReset
		}
		_, err := sess.Reset(ctx)
		return err
	case "guess", "play":
		side, err := game.ParseSide(cmd.Choice)
		if err != nil {
			return err
		}
		if cmd.Type == "play" {
			return sess.Play(ctx, side)
		}
		_, err = sess.Guess(ctx, side)
		return err
	}
	return errUnknownCommand
}
