// internal/httpserver/routes_game.go
//
// Game endpoints. Each handler resolves the session from {id}, forwards one
// command to it and answers with the resulting view.
//
//   - POST /game/new          → create a classic (or daily) game
//   - GET  /game/{id}         → current view
//   - POST /game/{id}/start   → idle → countdown
//   - POST /game/{id}/reveal  → lock the pair for judging
//   - POST /game/{id}/guess   → judge immediately
//   - POST /game/{id}/play    → reveal now, judge after the reveal delay
//   - POST /game/{id}/reset   → fresh pair, score 0
//   - POST /game/{id}/retry   → re-issue failed breach lookups

package httpserver

import (
	"encoding/json"
	"hash/fnv"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/higherpwned/server/internal/game"
	"github.com/higherpwned/server/internal/rng"
	"github.com/higherpwned/server/internal/session"
	"github.com/higherpwned/server/internal/words"
)

const (
	modeClassic = "classic"
	modeDaily   = "daily"
)

// gameRes is a view plus the result screen extras once the game is over.
type gameRes struct {
	game.View
	Mode    string `json:"mode"`
	Message string `json:"message,omitempty"`
	Share   string `json:"share,omitempty"`
	Art     string `json:"art,omitempty"`
}

// present decorates v. The loss message is derived from the game so every
// request for the same result shows the same taunt.
func present(mode string, v game.View) gameRes {
	res := gameRes{View: v, Mode: mode}
	if v.Result != nil {
		h := fnv.New64a()
		_, _ = h.Write([]byte(v.ID))
		res.Message = words.LossMessage(rng.New(h.Sum64() + uint64(v.Result.Score)))
		res.Share = words.ShareText(v.Result.Score)
		res.Art = words.ResultArt()
	}
	return res
}

type newGameReq struct {
	Mode string `json:"mode"` // "classic" | "daily"
}

type newGameRes struct {
	GameID string  `json:"gameId"`
	Game   gameRes `json:"game"`
}

// handleNewGame creates a session and returns its first view.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
			return
		}
	}
	switch req.Mode {
	case "", modeClassic:
	case modeDaily:
		s.handleDailyNew(w, r)
		return
	default:
		http.Error(w, `{"error":"bad_mode"}`, http.StatusBadRequest)
		return
	}

	sess, err := s.startSession(r.Context(), modeClassic, s.owner(w, r), rng.NewRandom())
	if err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, newGameRes{GameID: sess.ID(), Game: present(sess.Mode, sess.Latest())})
}

// session looks up {id}, answering 404 itself when it is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return nil, false
	}
	return sess, true
}

// respond writes the session's current view.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	v, err := sess.View(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, present(sess.Mode, v))
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		s.respond(w, r, sess)
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Start(r.Context()); err != nil {
		writeErr(w, err)
		return
	}
	s.respond(w, r, sess)
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	revealed, err := sess.Reveal(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	v, err := sess.View(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": revealed, "game": present(sess.Mode, v)})
}

type choiceReq struct {
	Choice string `json:"choice"`
}

// choice decodes {"choice": "left"|"right"}, answering 400 on bad input.
func choice(w http.ResponseWriter, r *http.Request) (game.Side, bool) {
	var req choiceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return "", false
	}
	side, err := game.ParseSide(req.Choice)
	if err != nil {
		writeErr(w, err)
		return "", false
	}
	return side, true
}

type guessRes struct {
	game.Outcome
	Game gameRes `json:"game"`
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	side, ok := choice(w, r)
	if !ok {
		return
	}
	out, err := sess.Guess(r.Context(), side)
	if err != nil {
		writeErr(w, err)
		return
	}
	v, err := sess.View(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, guessRes{Outcome: out, Game: present(sess.Mode, v)})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	side, ok := choice(w, r)
	if !ok {
		return
	}
	if err := sess.Play(r.Context(), side); err != nil {
		writeErr(w, err)
		return
	}
	v, err := sess.View(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, present(sess.Mode, v))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if sess.Mode == modeDaily {
		writeErr(w, errDailyReset)
		return
	}
	v, err := sess.Reset(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, present(sess.Mode, v))
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n, err := sess.Retry(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	v, err := sess.View(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, map[string]any{"retried": n, "game": present(sess.Mode, v)})
}
