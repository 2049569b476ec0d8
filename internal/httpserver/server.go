// internal/httpserver/server.go
//
// HTTP server wiring for the higher-or-pwned backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/leaderboard", "/sim/{variant}".
//   - Game endpoints (optional auth): /game/new and /game/{id}/*, including
//     the websocket stream (see ws.go).
//   - Daily challenge endpoints under /daily (see routes_daily.go).
//   - Auth + profile endpoints (see auth.go).
//   - Persisting finished games to the scores table.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Every game runs in its own session goroutine; handlers only talk to it
//     through session calls.
//   - The websocket route sits outside the request timeout.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/higherpwned/server/internal/config"
	"github.com/higherpwned/server/internal/daily"
	"github.com/higherpwned/server/internal/game"
	"github.com/higherpwned/server/internal/pwned"
	"github.com/higherpwned/server/internal/rng"
	"github.com/higherpwned/server/internal/scores"
	"github.com/higherpwned/server/internal/session"
	"github.com/higherpwned/server/internal/sim"
	"github.com/higherpwned/server/internal/store"
	"github.com/higherpwned/server/internal/timing"
	"github.com/higherpwned/server/internal/words"
)

// Deps are the collaborators a Server needs.
type Deps struct {
	Store   store.Store
	DB      *sql.DB
	Counter pwned.Counter
	Pool    *words.Pool
	Config  config.Config
	// Clock drives game timers; nil means wall time.
	Clock timing.Clock
}

// Server bundles router, session registry, and DB handle.
type Server struct {
	r       *chi.Mux
	ctx     context.Context
	store   store.Store
	db      *sql.DB
	scores  *scores.Store
	counter pwned.Counter
	pool    *words.Pool
	cfg     config.Config
	clock   timing.Clock

	upgrader websocket.Upgrader
	daily    *dailyServer
}

// New constructs a Server, installs middleware, and registers routes.
// Sessions started by the server run until ctx is cancelled.
func New(ctx context.Context, d Deps) *Server {
	if d.Clock == nil {
		d.Clock = timing.Real{}
	}
	s := &Server{
		r:       chi.NewRouter(),
		ctx:     ctx,
		store:   d.Store,
		db:      d.DB,
		scores:  scores.NewStore(d.DB),
		counter: d.Counter,
		pool:    d.Pool,
		cfg:     d.Config,
		clock:   d.Clock,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 8192,
		CheckOrigin:     s.checkOrigin,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(jsonContentType) // default JSON responses
	s.r.Use(s.corsFromEnv)   // credentials-friendly CORS

	// Streaming lives outside the handler timeout.
	s.r.With(s.withOptionalAuth()).Get("/game/{id}/ws", s.handleWS)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"higher-pwned","endpoints":["/health","POST /game/new","/game/{id}","/game/{id}/ws","/sim/{variant}","/leaderboard","/daily/*","/auth/*"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})

		// Game endpoints: OPTIONAL AUTH (guests can play)
		r.Group(func(r chi.Router) {
			r.Use(s.withOptionalAuth())
			r.Post("/game/new", s.handleNewGame)
			r.Get("/game/{id}", s.handleGetGame)
			r.Post("/game/{id}/start", s.handleStart)
			r.Post("/game/{id}/reveal", s.handleReveal)
			r.Post("/game/{id}/guess", s.handleGuess)
			r.Post("/game/{id}/play", s.handlePlay)
			r.Post("/game/{id}/reset", s.handleReset)
			r.Post("/game/{id}/retry", s.handleRetry)
			s.mountDaily(r)
			r.Get("/scores/me", s.handleMyScores)
		})

		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/sim", s.handleSimVariants)
		r.Get("/sim/{variant}", s.handleSim)

		// Auth + profile (require auth where needed)
		s.mountAuthRoutes(r)

		// Debug: pool size
		r.Get("/debug/passwords", func(w http.ResponseWriter, r *http.Request) {
			n := 0
			if s.pool != nil {
				n = s.pool.Len()
			}
			writeJSON(w, map[string]any{"passwords": n, "sessions": s.sessionCount()})
		})
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromEnv enables credentialed CORS for the configured client origin.
func (s *Server) corsFromEnv(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkOrigin accepts same-host requests, the configured client origin and
// clients that send no Origin at all.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == s.cfg.ClientOrigin {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// ------------------------------ helpers ------------------------------------

func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}

var (
	errDailyReset     = errors.New("daily games cannot be reset")
	errUnknownCommand = errors.New("unknown command")
)

// classify maps game and session errors to an error code and status.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, game.ErrInvalidSide):
		return "invalid_side", http.StatusBadRequest
	case errors.Is(err, errUnknownCommand):
		return "unknown_command", http.StatusBadRequest
	case errors.Is(err, game.ErrLoading):
		return "loading", http.StatusConflict
	case errors.Is(err, game.ErrFinished):
		return "finished", http.StatusConflict
	case errors.Is(err, game.ErrNotPlaying):
		return "not_playing", http.StatusConflict
	case errors.Is(err, session.ErrStarted):
		return "already_started", http.StatusConflict
	case errors.Is(err, session.ErrGuessPending):
		return "guess_pending", http.StatusConflict
	case errors.Is(err, errDailyReset):
		return "daily_no_reset", http.StatusConflict
	case errors.Is(err, session.ErrStopped), errors.Is(err, store.ErrNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout", http.StatusServiceUnavailable
	}
	return "server_error", http.StatusInternalServerError
}

func errorCode(err error) string {
	code, _ := classify(err)
	return code
}

// writeErr answers with the classified error.
func writeErr(w http.ResponseWriter, err error) {
	code, status := classify(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	http.Error(w, `{"error":"`+code+`"}`, status)
}

func queryInt(r *http.Request, key string, def, lo, hi int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return min(max(n, lo), hi)
}

func (s *Server) sessionCount() int {
	n := 0
	s.store.Range(func(*session.Session) bool {
		n++
		return true
	})
	return n
}

// ------------------------------ sessions -----------------------------------

// startSession builds a game from src, registers it and starts its goroutine.
// Finished games are recorded against owner.
func (s *Server) startSession(ctx context.Context, mode string, owner scores.Owner, src rng.Source) (*session.Session, error) {
	g := game.New(s.pool, src, s.cfg.Rules)
	sess := session.New(g, s.counter, session.Options{Clock: s.clock})
	sess.Mode = mode

	created := daily.DateKey(s.clock.Now())
	var plays atomic.Int32
	sess.OnFinish = func(res game.Result) {
		n := plays.Add(1)
		date := created
		if mode != modeDaily {
			date = daily.DateKey(s.clock.Now())
		}
		s.recordResult(sess.ID(), int(n), mode, date, owner, res)
	}

	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	go sess.Run(s.ctx)
	log.Info().Str("gameId", sess.ID()).Str("mode", mode).Msg("game created")
	return sess, nil
}

// recordResult persists one finished game. The n-th game of a session (after
// resets) gets its own row.
func (s *Server) recordResult(id string, n int, mode, date string, owner scores.Owner, res game.Result) {
	gameID := id
	if n > 1 {
		gameID = fmt.Sprintf("%s-%d", id, n)
	}
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	err := s.scores.Insert(ctx, scores.Entry{
		GameID:        gameID,
		Owner:         owner,
		Mode:          mode,
		Date:          date,
		Score:         res.Score,
		TimedOut:      res.TimedOut,
		LastLeft:      res.LastLeft.Value,
		LastRight:     res.LastRight.Value,
		CorrectAnswer: string(res.CorrectAnswer),
		CreatedAt:     s.clock.Now(),
	})
	if err != nil {
		log.Warn().Err(err).Str("gameId", gameID).Msg("record result")
	}
}

// owner resolves who is playing: the signed-in user or the anonymous cookie.
func (s *Server) owner(w http.ResponseWriter, r *http.Request) scores.Owner {
	if me, _ := r.Context().Value(ctxUserKey{}).(*authUser); me != nil {
		return scores.Owner{UserID: me.ID}
	}
	return scores.Owner{AnonymousID: s.ensureAnonID(w, r)}
}

// ---------------------------- leaderboard ----------------------------------

type leaderboardRes struct {
	Date string       `json:"date,omitempty"`
	Mode string       `json:"mode,omitempty"`
	Top  []scores.Row `json:"top"`
}

// handleLeaderboard returns the best scores, all time unless ?date= is set.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := scores.Query{
		Date:  r.URL.Query().Get("date"),
		Mode:  r.URL.Query().Get("mode"),
		Limit: queryInt(r, "limit", scores.DefaultLimit, 1, 100),
	}
	if q.Date != "" {
		if _, err := daily.ParseKey(q.Date); err != nil {
			http.Error(w, `{"error":"bad_date"}`, http.StatusBadRequest)
			return
		}
	}
	rows, err := s.scores.Leaderboard(r.Context(), q)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, leaderboardRes{Date: q.Date, Mode: q.Mode, Top: rows})
}

// handleMyScores returns the caller's personal best and recent games.
func (s *Server) handleMyScores(w http.ResponseWriter, r *http.Request) {
	o := s.owner(w, r)
	best, err := s.scores.Best(r.Context(), o)
	if err != nil {
		writeErr(w, err)
		return
	}
	hist, err := s.scores.History(r.Context(), o, queryInt(r, "limit", 20, 1, 100))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, map[string]any{"best": best, "games": hist})
}

// ------------------------------- sim ---------------------------------------

func (s *Server) handleSimVariants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"variants": sim.Variants})
}

type simRes struct {
	Variant sim.Variant `json:"variant"`
	Width   int         `json:"width"`
	Height  int         `json:"height"`
	FPS     int         `json:"fps"`
	Ticks   uint64      `json:"ticks"`
	Frame   string      `json:"frame"`
	HTML    string      `json:"html,omitempty"`
}

// handleSim renders one frame of a variant after a warm-up.
// Query: w, h, score, seed, steps, format=html.
func (s *Server) handleSim(w http.ResponseWriter, r *http.Request) {
	v, err := sim.ParseVariant(chi.URLParam(r, "variant"))
	if err != nil {
		http.Error(w, `{"error":"unknown_variant"}`, http.StatusNotFound)
		return
	}
	width := queryInt(r, "w", 60, 1, 200)
	height := queryInt(r, "h", 24, 1, 100)
	cfg, err := sim.ForScore(v, queryInt(r, "score", 0, 0, 1000), width, height)
	if err != nil {
		writeErr(w, err)
		return
	}

	var src rng.Source = rng.NewRandom()
	if seed := r.URL.Query().Get("seed"); seed != "" {
		n, err := strconv.ParseUint(seed, 10, 64)
		if err != nil {
			http.Error(w, `{"error":"bad_seed"}`, http.StatusBadRequest)
			return
		}
		src = rng.New(n)
	}

	sm := cfg.Build(src)
	steps := queryInt(r, "steps", 30, 0, 500)
	for i := 0; i < steps; i++ {
		sm.Step()
	}
	res := simRes{Variant: v, Width: width, Height: height, FPS: cfg.FPS, Ticks: sm.Ticks(), Frame: sm.Frame()}
	if r.URL.Query().Get("format") == "html" {
		res.HTML = sm.HTML()
	}
	writeJSON(w, res)
}
