// internal/daily/daily.go
//
// Daily challenge helpers: every player gets the same password sequence on
// a given UTC day.

package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/higherpwned/server/internal/rng"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ParseKey validates a YYYY-MM-DD key.
func ParseKey(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// Seed is HMAC(salt, YYYY-MM-DD) folded to 64 bits.
func Seed(date time.Time, salt string) uint64 {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// Source returns the random source for the day's game.
func Source(date time.Time, salt string) rng.Source {
	return rng.New(Seed(date, salt))
}
