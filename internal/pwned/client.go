// internal/pwned/client.go
//
// Breach-count lookups against a k-anonymity range API.
//
// Only the first five hex characters of the password's SHA-1 leave the
// process; the full suffix list for that prefix comes back and is matched
// locally. Responses are cached per prefix for a few minutes, failed calls
// are retried a bounded number of times, and a cancelled context is never
// retried.

package pwned

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Counter resolves how often a password appears in known breaches.
type Counter interface {
	Count(ctx context.Context, password string) (int64, error)
}

const (
	DefaultBaseURL = "https://api.pwnedpasswords.com"
	DefaultRetries = 2
	DefaultTTL     = 5 * time.Minute
	DefaultBackoff = 250 * time.Millisecond
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Prefix string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pwned: range %s: status %d", e.Prefix, e.Code)
}

// retryable reports whether another attempt could succeed.
func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client is a Counter backed by the range API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Retries int
	Backoff time.Duration
	TTL     time.Duration

	now   func() time.Time
	mu    sync.Mutex
	cache map[string]entry
}

type entry struct {
	counts  map[string]int64
	expires time.Time
}

// NewClient returns a client with the default endpoint, retry count and TTL.
// An empty baseURL means DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Retries: DefaultRetries,
		Backoff: DefaultBackoff,
		TTL:     DefaultTTL,
		now:     time.Now,
		cache:   make(map[string]entry),
	}
}

// Count returns the breach count for password; unknown passwords count 0.
func (c *Client) Count(ctx context.Context, password string) (int64, error) {
	prefix, suffix := Hash(password)
	counts, err := c.Range(ctx, prefix)
	if err != nil {
		return 0, err
	}
	return counts[suffix], nil
}

// Range fetches (or serves from cache) the suffix table for prefix.
func (c *Client) Range(ctx context.Context, prefix string) (map[string]int64, error) {
	prefix = strings.ToUpper(prefix)
	if counts, ok := c.cached(prefix); ok {
		return counts, nil
	}

	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			wait := c.Backoff * time.Duration(attempt)
			log.Debug().Str("prefix", prefix).Int("attempt", attempt).Err(lastErr).Msg("retrying range lookup")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		counts, err := c.fetch(ctx, prefix)
		if err == nil {
			c.store(prefix, counts)
			return counts, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var se *StatusError
		if errors.As(err, &se) && !se.retryable() {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) fetch(ctx context.Context, prefix string) (map[string]int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/range/"+prefix, nil)
	if err != nil {
		return nil, fmt.Errorf("pwned: build request: %w", err)
	}
	req.Header.Set("Add-Padding", "true")
	req.Header.Set("User-Agent", "higherpwned-server")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pwned: range %s: %w", prefix, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Prefix: prefix}
	}
	counts, err := ParseRange(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("pwned: read range %s: %w", prefix, err)
	}
	return counts, nil
}

func (c *Client) cached(prefix string) (map[string]int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[prefix]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.cache, prefix)
		return nil, false
	}
	return e.counts, true
}

func (c *Client) store(prefix string, counts map[string]int64) {
	if c.TTL <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil {
		c.cache = make(map[string]entry)
	}
	c.cache[prefix] = entry{counts: counts, expires: c.now().Add(c.TTL)}
}
