// internal/words/words.go
//
// Password pool for the game.
//
// Responsibilities:
//   - Load the pool once from PASSWORDS_FILE, falling back to the embedded list.
//   - Drop blanks, comments and duplicates; a pool needs two distinct values.
//   - Uniform selection with an exclusion predicate (used values, the other slot).
//
// Environment variables:
//   PASSWORDS_FILE=/path/to/passwords.txt   one value per line, '#' comments allowed

package words

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/higherpwned/server/assets"
	"github.com/higherpwned/server/internal/rng"
)

// ErrPoolTooSmall is returned when fewer than two distinct values remain.
var ErrPoolTooSmall = errors.New("words: pool needs at least two distinct passwords")

// Pool is an immutable, de-duplicated list of candidate passwords.
type Pool struct {
	values []string
	index  map[string]struct{}
}

// NewPool de-duplicates values (keeping first occurrence order) and trims
// surrounding whitespace.
func NewPool(values []string) (*Pool, error) {
	p := &Pool{index: make(map[string]struct{}, len(values))}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := p.index[v]; dup {
			continue
		}
		p.index[v] = struct{}{}
		p.values = append(p.values, v)
	}
	if len(p.values) < 2 {
		return nil, ErrPoolTooSmall
	}
	return p, nil
}

// Len is the number of distinct values.
func (p *Pool) Len() int { return len(p.values) }

// Contains reports whether v is in the pool.
func (p *Pool) Contains(v string) bool {
	_, ok := p.index[v]
	return ok
}

// Values returns a copy of the pool.
func (p *Pool) Values() []string {
	return append([]string(nil), p.values...)
}

// Pick returns a uniformly random value for which skip is false. It reports
// false when every value is skipped. A nil skip accepts everything.
func (p *Pool) Pick(r rng.Source, skip func(string) bool) (string, bool) {
	if skip == nil {
		return p.values[r.IntN(len(p.values))], true
	}
	candidates := make([]string, 0, len(p.values))
	for _, v := range p.values {
		if !skip(v) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[r.IntN(len(candidates))], true
}

// ------------------------------ process pool -------------------------------

var (
	initOnce   sync.Once
	defaultP   *Pool
	initialErr error
)

// Init loads the process-wide pool exactly once.
func Init() error {
	initOnce.Do(func() {
		var list []string
		var err error
		if path := os.Getenv("PASSWORDS_FILE"); path != "" {
			list, err = readFile(path)
		} else {
			list, err = assets.PasswordList()
		}
		if err != nil {
			initialErr = fmt.Errorf("words: load pool: %w", err)
			return
		}
		defaultP, initialErr = NewPool(list)
	})
	return initialErr
}

// Default returns the pool loaded by Init, or nil before a successful Init.
func Default() *Pool { return defaultP }

// Stats returns the size of the loaded pool.
func Stats() int {
	if defaultP == nil {
		return 0
	}
	return defaultP.Len()
}

// readFile loads one value per line, skipping blanks and '#' comments.
func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}
