package httpserver

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	_ "github.com/mattn/go-sqlite3"

	"github.com/higherpwned/server/assets"
	"github.com/higherpwned/server/internal/config"
	"github.com/higherpwned/server/internal/game"
	"github.com/higherpwned/server/internal/pwned"
	"github.com/higherpwned/server/internal/session"
	"github.com/higherpwned/server/internal/store"
	"github.com/higherpwned/server/internal/timing"
	"github.com/higherpwned/server/internal/words"
)

type testEnv struct {
	srv    *Server
	ts     *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db")+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	migs, err := assets.Migrations()
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range migs {
		if _, err := db.Exec(m.SQL); err != nil {
			t.Fatalf("%s: %v", m.Name, err)
		}
	}

	pool, err := words.NewPool([]string{"123456", "password"})
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{
		ClientOrigin:   "http://localhost:5173",
		JWTSecret:      "test-secret",
		JWTExpiresDays: 1,
		CookieName:     "pwned_token",
		DailySalt:      "salt",
		Rules:          game.DefaultRules(),
	}
	cfg.Rules.Countdown = 0

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := New(ctx, Deps{
		Store:   store.NewMemoryStore(),
		DB:      db,
		Counter: pwned.NewStatic(map[string]int64{"123456": 500, "password": 300}),
		Pool:    pool,
		Config:  cfg,
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	jar, _ := cookiejar.New(nil)
	return &testEnv{srv: srv, ts: ts, client: &http.Client{Jar: jar, Timeout: 5 * time.Second}}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

type errBody struct {
	Error string `json:"error"`
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	var body map[string]bool
	if code := e.do(t, http.MethodGet, "/health", nil, &body); code != http.StatusOK || !body["ok"] {
		t.Fatalf("health = %d %v", code, body)
	}
	var nf errBody
	if code := e.do(t, http.MethodGet, "/nope", nil, &nf); code != http.StatusNotFound || nf.Error != "not_found" {
		t.Fatalf("404 = %d %+v", code, nf)
	}
}

// waitPlayable polls until both counts are known.
func (e *testEnv) waitPlayable(t *testing.T, id string) gameRes {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var g gameRes
		e.do(t, http.MethodGet, "/game/"+id, nil, &g)
		if !g.Loading {
			return g
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("counts never arrived")
	return gameRes{}
}

func TestGamePlaysToGameOver(t *testing.T) {
	e := newTestEnv(t)

	var created newGameRes
	if code := e.do(t, http.MethodPost, "/game/new", map[string]string{"mode": "classic"}, &created); code != http.StatusCreated {
		t.Fatalf("new = %d", code)
	}
	if created.GameID == "" || created.Game.State != game.StateIdle {
		t.Fatalf("created %+v", created)
	}
	id := created.GameID

	var started gameRes
	if code := e.do(t, http.MethodPost, "/game/"+id+"/start", nil, &started); code != http.StatusOK || started.State != game.StatePlaying {
		t.Fatalf("start = %d %s", code, started.State)
	}
	var eb errBody
	if code := e.do(t, http.MethodPost, "/game/"+id+"/start", nil, &eb); code != http.StatusConflict || eb.Error != "already_started" {
		t.Fatalf("second start = %d %+v", code, eb)
	}

	// Keep guessing left until a guess is wrong.
	var last guessRes
	for i := 0; i < 100; i++ {
		g := e.waitPlayable(t, id)
		if g.Left.Count != nil && g.Left.RoundsStayed == 0 {
			t.Fatal("count of a fresh password leaked while playing")
		}
		code := e.do(t, http.MethodPost, "/game/"+id+"/guess", map[string]string{"choice": "left"}, &last)
		if code != http.StatusOK {
			t.Fatalf("guess = %d", code)
		}
		if !last.Correct {
			break
		}
	}
	if last.Correct || last.Game.State != game.StateGameOver {
		t.Fatalf("no loss after 100 guesses: %+v", last)
	}
	if last.Answer != game.SideRight {
		t.Fatalf("wrong-left loss must name right, got %s", last.Answer)
	}
	if last.Game.Result == nil || last.Game.Message == "" || !strings.Contains(last.Game.Share, "I scored") {
		t.Fatalf("result screen missing: %+v", last.Game)
	}

	var eb2 errBody
	if code := e.do(t, http.MethodPost, "/game/"+id+"/guess", map[string]string{"choice": "left"}, &eb2); code != http.StatusConflict || eb2.Error != "finished" {
		t.Fatalf("guess after loss = %d %+v", code, eb2)
	}

	// The result lands in sqlite asynchronously.
	deadline := time.Now().Add(3 * time.Second)
	for {
		var mine struct {
			Best  int   `json:"best"`
			Games []any `json:"games"`
		}
		e.do(t, http.MethodGet, "/scores/me", nil, &mine)
		if len(mine.Games) == 1 && mine.Best == last.Score {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("result not recorded: %+v", mine)
		}
		time.Sleep(10 * time.Millisecond)
	}

	var reset gameRes
	if code := e.do(t, http.MethodPost, "/game/"+id+"/reset", nil, &reset); code != http.StatusOK || reset.State != game.StateIdle || reset.Score != 0 {
		t.Fatalf("reset = %d %+v", code, reset)
	}
}

func TestGuessErrors(t *testing.T) {
	e := newTestEnv(t)
	var created newGameRes
	e.do(t, http.MethodPost, "/game/new", nil, &created)
	id := created.GameID

	cases := []struct {
		path   string
		body   any
		status int
		code   string
	}{
		{"/game/" + id + "/guess", map[string]string{"choice": "up"}, http.StatusBadRequest, "invalid_side"},
		{"/game/" + id + "/guess", map[string]string{"choice": "left"}, http.StatusConflict, "not_playing"},
		{"/game/" + id + "/play", map[string]string{"choice": "left"}, http.StatusConflict, "not_playing"},
		{"/game/missing/guess", map[string]string{"choice": "left"}, http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		var eb errBody
		if code := e.do(t, http.MethodPost, tc.path, tc.body, &eb); code != tc.status || eb.Error != tc.code {
			t.Errorf("%s: got %d %q, want %d %q", tc.path, code, eb.Error, tc.status, tc.code)
		}
	}
}

func TestPlayRevealsThenJudges(t *testing.T) {
	e := newTestEnv(t)
	var created newGameRes
	e.do(t, http.MethodPost, "/game/new", nil, &created)
	id := created.GameID
	e.do(t, http.MethodPost, "/game/"+id+"/start", nil, nil)
	e.waitPlayable(t, id)

	var g gameRes
	if code := e.do(t, http.MethodPost, "/game/"+id+"/play", map[string]string{"choice": "left"}, &g); code != http.StatusAccepted {
		t.Fatalf("play = %d", code)
	}
	if g.State != game.StateRevealing || g.Left.Count == nil || g.Right.Count == nil {
		t.Fatalf("reveal must show both counts: %+v", g)
	}
	var eb errBody
	if code := e.do(t, http.MethodPost, "/game/"+id+"/play", map[string]string{"choice": "left"}, &eb); code != http.StatusConflict || eb.Error != "guess_pending" {
		t.Fatalf("second play = %d %+v", code, eb)
	}
}

func TestSimEndpoint(t *testing.T) {
	e := newTestEnv(t)
	var res simRes
	if code := e.do(t, http.MethodGet, "/sim/fire?w=12&h=5&seed=7&steps=4&format=html", nil, &res); code != http.StatusOK {
		t.Fatalf("sim = %d", code)
	}
	rows := strings.Split(res.Frame, "\n")
	if len(rows) != 5 {
		t.Fatalf("got %d rows", len(rows))
	}
	for _, row := range rows {
		if utf8.RuneCountInString(row) != 12 {
			t.Fatalf("row %q is not 12 wide", row)
		}
	}
	if res.Ticks != 4 || !strings.Contains(res.HTML, "<span") {
		t.Fatalf("ticks %d html %q", res.Ticks, res.HTML)
	}

	var again simRes
	e.do(t, http.MethodGet, "/sim/fire?w=12&h=5&seed=7&steps=4", nil, &again)
	if again.Frame != res.Frame {
		t.Fatal("same seed gave a different frame")
	}
	if code := e.do(t, http.MethodGet, "/sim/plasma", nil, nil); code != http.StatusNotFound {
		t.Fatalf("unknown variant = %d", code)
	}
}

func TestLeaderboardValidatesDate(t *testing.T) {
	e := newTestEnv(t)
	if code := e.do(t, http.MethodGet, "/leaderboard?date=yesterday", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("bad date = %d", code)
	}
	var lb leaderboardRes
	if code := e.do(t, http.MethodGet, "/leaderboard?limit=5", nil, &lb); code != http.StatusOK || lb.Top == nil {
		t.Fatalf("leaderboard = %d %+v", code, lb)
	}
}

func TestAuthFlow(t *testing.T) {
	e := newTestEnv(t)
	creds := map[string]string{"username": "alice_1", "password": "hunter2hunter2"}

	if code := e.do(t, http.MethodGet, "/auth/me", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("me before signup = %d", code)
	}
	if code := e.do(t, http.MethodPost, "/auth/signup", creds, nil); code != http.StatusCreated {
		t.Fatalf("signup = %d", code)
	}
	var me map[string]any
	if code := e.do(t, http.MethodGet, "/auth/me", nil, &me); code != http.StatusOK || me["username"] != "alice_1" {
		t.Fatalf("me = %d %v", code, me)
	}
	if code := e.do(t, http.MethodPost, "/auth/signup", creds, nil); code != http.StatusConflict {
		t.Fatalf("duplicate signup = %d", code)
	}
	bad := map[string]string{"username": "alice_1", "password": "wrong-password"}
	if code := e.do(t, http.MethodPost, "/auth/login", bad, nil); code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", code)
	}
	e.do(t, http.MethodPost, "/auth/logout", nil, nil)
	if code := e.do(t, http.MethodGet, "/auth/me", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("me after logout = %d", code)
	}
	if code := e.do(t, http.MethodPost, "/auth/login", creds, nil); code != http.StatusOK {
		t.Fatalf("login = %d", code)
	}
}

func TestSignupErrorCodes(t *testing.T) {
	e := newTestEnv(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.srv.clock = timing.NewManual(created)

	var res map[string]any
	ok := map[string]string{"username": "bob_2", "password": "correct-horse"}
	if code := e.do(t, http.MethodPost, "/auth/signup", ok, &res); code != http.StatusCreated {
		t.Fatalf("signup = %d", code)
	}
	if at, _ := time.Parse(time.RFC3339, res["createdAt"].(string)); !at.Equal(created) {
		t.Fatalf("createdAt = %v, want %v", res["createdAt"], created)
	}

	tests := []struct {
		name     string
		username string
		password string
		status   int
		code     string
	}{
		{"same name other case", "BOB_2", "correct-horse", http.StatusConflict, "username_taken"},
		{"short name", "bo", "correct-horse", http.StatusBadRequest, "username_length"},
		{"bad chars", "bob smith", "correct-horse", http.StatusBadRequest, "username_chars"},
		{"short password", "carol", "short", http.StatusBadRequest, "password_length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errBody
			code := e.do(t, http.MethodPost, "/auth/signup",
				map[string]string{"username": tt.username, "password": tt.password}, &body)
			if code != tt.status || body.Error != tt.code {
				t.Fatalf("signup %q = %d %q, want %d %q", tt.username, code, body.Error, tt.status, tt.code)
			}
		})
	}
}

func TestCreateUserMapsUniqueIndex(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	if _, err := e.srv.createUser(ctx, "dave_3", "correct-horse"); err != nil {
		t.Fatal(err)
	}
	_, err := e.srv.createUser(ctx, "Dave_3", "other-password")
	if !errors.Is(err, errUsernameTaken) {
		t.Fatalf("second insert err = %v, want errUsernameTaken", err)
	}
}

func TestDailyReusesSession(t *testing.T) {
	e := newTestEnv(t)
	var first, second dailyNewRes
	e.do(t, http.MethodPost, "/daily/new", nil, &first)
	e.do(t, http.MethodPost, "/game/new", map[string]string{"mode": "daily"}, &second)
	if first.GameID == "" || first.GameID != second.GameID || first.Played {
		t.Fatalf("first %+v second %+v", first, second)
	}
	if code := e.do(t, http.MethodPost, "/game/"+first.GameID+"/reset", nil, nil); code != http.StatusConflict {
		t.Fatalf("daily reset = %d", code)
	}
}

func TestWebsocketStreamsStateAndFrames(t *testing.T) {
	e := newTestEnv(t)
	var created newGameRes
	e.do(t, http.MethodPost, "/game/new", nil, &created)

	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/game/" + created.GameID + "/ws?w=8&h=4"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	if err := conn.WriteJSON(wsCommand{Type: "start"}); err != nil {
		t.Fatal(err)
	}
	var sawFrame, sawPlaying bool
	for !(sawFrame && sawPlaying) {
		var msg struct {
			Type  string  `json:"type"`
			Frame string  `json:"frame"`
			Game  gameRes `json:"game"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v (frame %v playing %v)", err, sawFrame, sawPlaying)
		}
		switch msg.Type {
		case "frame":
			sawFrame = len(strings.Split(msg.Frame, "\n")) == 4
		case "state":
			sawPlaying = sawPlaying || msg.Game.State == game.StatePlaying
		}
	}

	if err := conn.WriteJSON(wsCommand{Type: "jump"}); err != nil {
		t.Fatal(err)
	}
	for {
		var msg wsError
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatal(err)
		}
		if msg.Type == "error" {
			if msg.Error != "unknown_command" {
				t.Fatalf("error %q", msg.Error)
			}
			break
		}
	}
}

func TestClassify(t *testing.T) {
	cases := map[error]string{
		game.ErrLoading:            "loading",
		session.ErrStopped:         "not_found",
		store.ErrNotFound:          "not_found",
		context.DeadlineExceeded:   "timeout",
		errors.New("disk on fire"): "server_error",
	}
	for err, want := range cases {
		if got := errorCode(err); got != want {
			t.Errorf("%v: got %q want %q", err, got, want)
		}
	}
}
