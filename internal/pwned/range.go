package pwned

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"strconv"
	"strings"
)

// PrefixLen is how much of the hash leaves the process.
const PrefixLen = 5

// Hash returns the upper-case hex SHA-1 of password split into the range
// prefix sent to the API and the suffix matched locally.
func Hash(password string) (prefix, suffix string) {
	sum := sha1.Sum([]byte(password))
	h := strings.ToUpper(hex.EncodeToString(sum[:]))
	return h[:PrefixLen], h[PrefixLen:]
}

// ParseRange reads "SUFFIX:COUNT" lines into a map keyed by upper-case
// suffix. Blank and malformed lines are skipped; padding entries with a zero
// count are kept as zeros.
func ParseRange(r io.Reader) (map[string]int64, error) {
	out := make(map[string]int64)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		suffix, count, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		suffix = strings.ToUpper(strings.TrimSpace(suffix))
		if suffix == "" || !isHex(suffix) {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(count), 10, 64)
		if err != nil || n < 0 {
			continue
		}
		out[suffix] = n
	}
	return out, sc.Err()
}

func isHex(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'F') {
			return false
		}
	}
	return true
}
