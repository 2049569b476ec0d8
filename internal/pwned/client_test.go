package pwned

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestHash(t *testing.T) {
	p, s := Hash("password")
	if p != "5BAA6" || s != "1E4C9B93F3F0682250B6CF8331B7EE68FD8" {
		t.Fatalf("Hash(password) = %s %s", p, s)
	}
}

func TestParseRangeSkipsMalformed(t *testing.T) {
	body := strings.Join([]string{
		"1E4C9B93F3F0682250B6CF8331B7EE68FD8:9545824",
		"",
		"garbage",
		"ZZZZ:12",
		"0018A45C4D1DEF81644B54AB7F969B88D65:notanumber",
		"abcdef:3",
		"00D4F6E8FA6EECAD2A3AA415EEC418D38EC:0",
	}, "\r\n")
	got, err := ParseRange(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("parsed %d entries: %v", len(got), got)
	}
	if got["1E4C9B93F3F0682250B6CF8331B7EE68FD8"] != 9545824 || got["ABCDEF"] != 3 {
		t.Fatalf("unexpected map %v", got)
	}
}

func rangeServer(t *testing.T, hits *atomic.Int32, status func(n int32) int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		if r.Header.Get("Add-Padding") != "true" {
			t.Errorf("missing Add-Padding header")
		}
		if code := status(n); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		switch r.URL.Path {
		case "/range/5BAA6":
			fmt.Fprint(w, "1e4c9b93f3f0682250b6cf8331b7ee68fd8:300\r\nFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF:0\r\n")
		case "/range/7C4A8":
			fmt.Fprint(w, "D09CA3762AF61E59520943DC26494F8941B:500\r\n")
		default:
			fmt.Fprint(w, "")
		}
	}))
}

func TestClientCountAndCache(t *testing.T) {
	var hits atomic.Int32
	srv := rangeServer(t, &hits, func(int32) int { return http.StatusOK })
	defer srv.Close()

	now := time.Unix(1000, 0)
	c := NewClient(srv.URL)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	if n, err := c.Count(ctx, "password"); err != nil || n != 300 {
		t.Fatalf("Count(password) = %d, %v", n, err)
	}
	if n, err := c.Count(ctx, "123456"); err != nil || n != 500 {
		t.Fatalf("Count(123456) = %d, %v", n, err)
	}
	if n, err := c.Count(ctx, "correct horse battery staple xyz"); err != nil || n != 0 {
		t.Fatalf("absent password = %d, %v", n, err)
	}
	before := hits.Load()
	c.Count(ctx, "password")
	if hits.Load() != before {
		t.Fatal("second lookup within TTL must hit the cache")
	}
	now = now.Add(DefaultTTL)
	c.Count(ctx, "password")
	if hits.Load() != before+1 {
		t.Fatal("expired entry must be refetched")
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := rangeServer(t, &hits, func(n int32) int {
		if n <= 2 {
			return http.StatusServiceUnavailable
		}
		return http.StatusOK
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	c.Backoff = time.Millisecond
	n, err := c.Count(context.Background(), "password")
	if err != nil || n != 300 {
		t.Fatalf("Count = %d, %v", n, err)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits = %d, want 3", hits.Load())
	}
}

func TestClientGivesUpAfterRetries(t *testing.T) {
	var hits atomic.Int32
	srv := rangeServer(t, &hits, func(int32) int { return http.StatusInternalServerError })
	defer srv.Close()

	c := NewClient(srv.URL)
	c.Backoff = time.Millisecond
	_, err := c.Count(context.Background(), "password")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError {
		t.Fatalf("err = %v, want StatusError 500", err)
	}
	if hits.Load() != int32(DefaultRetries+1) {
		t.Fatalf("hits = %d, want %d", hits.Load(), DefaultRetries+1)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := rangeServer(t, &hits, func(int32) int { return http.StatusBadRequest })
	defer srv.Close()

	c := NewClient(srv.URL)
	c.Backoff = time.Millisecond
	if _, err := c.Count(context.Background(), "password"); err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d, want 1", hits.Load())
	}
}

func TestClientHonoursCancellation(t *testing.T) {
	var hits atomic.Int32
	srv := rangeServer(t, &hits, func(int32) int { return http.StatusServiceUnavailable })
	defer srv.Close()

	c := NewClient(srv.URL)
	c.Backoff = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.Count(ctx, "password")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d, want 1", hits.Load())
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic(map[string]int64{"a": 3})
	if n, _ := s.Count(context.Background(), "a"); n != 3 {
		t.Fatalf("a = %d", n)
	}
	if n, _ := s.Count(context.Background(), "b"); n != 0 {
		t.Fatalf("b = %d", n)
	}
	s.Fallback = Seeded
	x, _ := s.Count(context.Background(), "b")
	y, _ := Seeded("b")
	if x != y {
		t.Fatal("fallback not used")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Count(ctx, "a"); err == nil {
		t.Fatal("cancelled context must fail")
	}
}
