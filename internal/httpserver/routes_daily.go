// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Challenge" mode.
// Exposes two endpoints under /daily:
//   - POST /daily/new         → start today's game (creates or reuses session)
//   - GET  /daily/leaderboard → fetch top results for today (or a given date)
//
// Each player gets one finished daily game per UTC day (enforced by the
// scores table + the in-memory session map). Every daily game draws its
// passwords from the same date-seeded source, so all players see the same
// sequence for as long as they keep answering correctly.

package httpserver

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/higherpwned/server/internal/daily"
	"github.com/higherpwned/server/internal/scores"
)

// dailyServer tracks in-progress daily sessions.
type dailyServer struct {
	srv      *Server
	salt     string
	sessions map[string]string // owner|date → game ID
	mu       sync.Mutex        // guards sessions
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	s.daily = &dailyServer{
		srv:      s,
		salt:     s.cfg.DailySalt,
		sessions: make(map[string]string),
	}
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", s.handleDailyNew)
		r.Get("/leaderboard", s.daily.handleLeaderboard)
	})
}

func ownerKey(o scores.Owner, date string) string {
	if o.UserID != "" {
		return "u:" + o.UserID + "|" + date
	}
	return "a:" + o.AnonymousID + "|" + date
}

// dailyNewRes is returned by /daily/new.
type dailyNewRes struct {
	GameID string   `json:"gameId,omitempty"`
	Date   string   `json:"date"`
	Played bool     `json:"played"`
	Game   *gameRes `json:"game,omitempty"`
}

// handleDailyNew creates or reuses today's session for the caller.
// - If the caller already finished today's game → Played=true, no game.
// - Otherwise reuse a live session or start a date-seeded one.
func (s *Server) handleDailyNew(w http.ResponseWriter, r *http.Request) {
	d := s.daily
	owner := s.owner(w, r)
	now := s.clock.Now()
	date := daily.DateKey(now)

	played, err := s.scores.PlayedOn(r.Context(), owner, modeDaily, date)
	if err != nil {
		writeErr(w, err)
		return
	}
	if played {
		writeJSON(w, dailyNewRes{Date: date, Played: true})
		return
	}

	key := ownerKey(owner, date)
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.sessions[key]; ok {
		if sess, err := s.store.Get(r.Context(), id); err == nil {
			res := present(sess.Mode, sess.Latest())
			writeJSON(w, dailyNewRes{GameID: id, Date: date, Game: &res})
			return
		}
		delete(d.sessions, key)
	}

	sess, err := s.startSession(r.Context(), modeDaily, owner, daily.Source(now, d.salt))
	if err != nil {
		writeErr(w, err)
		return
	}
	d.sessions[key] = sess.ID()
	res := present(sess.Mode, sess.Latest())
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, dailyNewRes{GameID: sess.ID(), Date: date, Game: &res})
}

// handleLeaderboard returns the daily leaderboard for ?date= (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(d.srv.clock.Now())
	} else if _, err := daily.ParseKey(date); err != nil {
		http.Error(w, `{"error":"bad_date"}`, http.StatusBadRequest)
		return
	}
	rows, err := d.srv.scores.Leaderboard(r.Context(), scores.Query{
		Date:  date,
		Mode:  modeDaily,
		Limit: queryInt(r, "limit", 20, 1, 100),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, leaderboardRes{Date: date, Mode: modeDaily, Top: rows})
}
