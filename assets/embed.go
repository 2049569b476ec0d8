// assets/embed.go
//
// Embedded data shipped with the binary: the password pool, the loss
// messages, the result screen art and the SQL migrations.

package assets

import (
	"bufio"
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed passwords.txt messages.txt art.txt sql/*.sql
var FS embed.FS

// readLines returns the trimmed non-empty lines of name, skipping # comments.
func readLines(name string) ([]string, error) {
	f, err := FS.Open(name)
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

func PasswordList() ([]string, error) {
	return readLines("passwords.txt")
}

func MessageList() ([]string, error) {
	return readLines("messages.txt")
}

// ResultArt is the ASCII art shown next to the final score.
func ResultArt() string {
	b, err := FS.ReadFile("art.txt")
	if err != nil {
		return ""
	}
	return string(b)
}

// Migration is one embedded SQL script.
type Migration struct {
	Name string
	SQL  string
}

// Migrations returns the embedded scripts in lexical order.
func Migrations() ([]Migration, error) {
	names, err := fs.Glob(FS, "sql/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	out := make([]Migration, 0, len(names))
	for _, n := range names {
		b, err := FS.ReadFile(n)
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Name: n, SQL: string(b)})
	}
	return out, nil
}
