// internal/scores/scores.go
//
// SQLite-backed record of finished games.
// Responsibilities:
//   - Insert one row per finished game (idempotent on game ID).
//   - Keep users.games_played / users.best_score in step for signed-in players.
//   - Personal best and recent history per owner (user or anonymous cookie).
//   - Leaderboards: top N by score, earliest first on ties, optionally per day.
//   - Hand anonymous history over to an account on signup/login.

package scores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoOwner is returned when neither a user nor an anonymous ID is given.
var ErrNoOwner = errors.New("scores: owner required")

// Owner identifies who played: a signed-in user or an anonymous cookie.
type Owner struct {
	UserID      string
	AnonymousID string
}

func (o Owner) clause() (string, any, error) {
	switch {
	case o.UserID != "":
		return "user_id=?", o.UserID, nil
	case o.AnonymousID != "":
		return "anonymous_id=?", o.AnonymousID, nil
	}
	return "", nil, ErrNoOwner
}

// Entry is one finished game.
type Entry struct {
	GameID        string    `json:"gameId"`
	Owner         Owner     `json:"-"`
	Mode          string    `json:"mode"`
	Date          string    `json:"date"`
	Score         int       `json:"score"`
	TimedOut      bool      `json:"timedOut"`
	LastLeft      string    `json:"lastLeft"`
	LastRight     string    `json:"lastRight"`
	CorrectAnswer string    `json:"correctAnswer"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Row is a leaderboard line.
type Row struct {
	Rank      int       `json:"rank"`
	Player    string    `json:"player"`
	Score     int       `json:"score"`
	Mode      string    `json:"mode"`
	TimedOut  bool      `json:"timedOut"`
	CreatedAt time.Time `json:"createdAt"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Insert records e. A second insert for the same game ID is ignored.
func (s *Store) Insert(ctx context.Context, e Entry) error {
	if _, _, err := e.Owner.clause(); err != nil {
		return err
	}
	if e.Mode == "" {
		e.Mode = "classic"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
        INSERT OR IGNORE INTO results
            (game_id, user_id, anonymous_id, mode, date, score, timed_out,
             last_left, last_right, correct_answer, created_at)
        VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		e.GameID, nullable(e.Owner.UserID), nullable(e.Owner.AnonymousID), e.Mode, e.Date,
		e.Score, e.TimedOut, e.LastLeft, e.LastRight, e.CorrectAnswer,
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 && e.Owner.UserID != "" {
		if _, err := tx.ExecContext(ctx, `
            UPDATE users SET games_played = games_played + 1,
                             best_score = MAX(best_score, ?)
            WHERE id=?`, e.Score, e.Owner.UserID); err != nil {
			return fmt.Errorf("bump stats: %w", err)
		}
	}
	return tx.Commit()
}

// Best returns the owner's highest score, 0 if they have none.
func (s *Store) Best(ctx context.Context, o Owner) (int, error) {
	where, arg, err := o.clause()
	if err != nil {
		return 0, err
	}
	var best int
	err = s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(score), 0) FROM results WHERE `+where, arg).Scan(&best)
	return best, err
}

// PlayedOn reports whether the owner has a finished game in mode on date.
func (s *Store) PlayedOn(ctx context.Context, o Owner, mode, date string) (bool, error) {
	where, arg, err := o.clause()
	if err != nil {
		return false, err
	}
	var cnt int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM results WHERE mode=? AND date=? AND `+where, mode, date, arg,
	).Scan(&cnt)
	return cnt > 0, err
}

// History lists the owner's most recent games, newest first.
func (s *Store) History(ctx context.Context, o Owner, limit int) ([]Entry, error) {
	where, arg, err := o.clause()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT game_id, mode, date, score, timed_out, last_left, last_right, correct_answer, created_at
        FROM results WHERE `+where+`
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, arg, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		e := Entry{Owner: o}
		var created string
		if err := rows.Scan(&e.GameID, &e.Mode, &e.Date, &e.Score, &e.TimedOut,
			&e.LastLeft, &e.LastRight, &e.CorrectAnswer, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Query selects a leaderboard. Empty Date means all time, empty Mode means
// every mode.
type Query struct {
	Date  string
	Mode  string
	Limit int
}

// DefaultLimit matches the classic top-ten table.
const DefaultLimit = 10

// Leaderboard returns the top rows by score, earliest first on ties.
func (s *Store) Leaderboard(ctx context.Context, q Query) ([]Row, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT COALESCE(u.username, ''), r.score, r.mode, r.timed_out, r.created_at
        FROM results r LEFT JOIN users u ON u.id = r.user_id
        WHERE (?1 = '' OR r.date = ?1) AND (?2 = '' OR r.mode = ?2)
        ORDER BY r.score DESC, r.created_at ASC, r.id ASC
        LIMIT ?3`, q.Date, q.Mode, q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Row, 0, q.Limit)
	for rows.Next() {
		var r Row
		var created string
		if err := rows.Scan(&r.Player, &r.Score, &r.Mode, &r.TimedOut, &created); err != nil {
			return nil, err
		}
		if r.Player == "" {
			r.Player = "anonymous"
		}
		r.CreatedAt = parseTime(created)
		r.Rank = len(out) + 1
		out = append(out, r)
	}
	return out, rows.Err()
}

// Claim moves anonymous results to userID and recomputes the user's totals.
func (s *Store) Claim(ctx context.Context, anonID, userID string) error {
	if anonID == "" || userID == "" {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE results SET user_id=?, anonymous_id=NULL WHERE anonymous_id=? AND user_id IS NULL`,
		userID, anonID); err != nil {
		return fmt.Errorf("claim results: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE users SET
            games_played = (SELECT COUNT(1) FROM results WHERE user_id=?1),
            best_score   = (SELECT COALESCE(MAX(score), 0) FROM results WHERE user_id=?1)
        WHERE id=?1`, userID); err != nil {
		return fmt.Errorf("recount stats: %w", err)
	}
	return tx.Commit()
}

const timeLayout = "2006-01-02T15:04:05.000Z"

func parseTime(s string) time.Time {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
