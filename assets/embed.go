// Package assets bundles the default word lists. Lines starting with '#' are
// comments.
package assets

import (
	"embed"
	"strings"
)

//go:embed allowed.txt answers.txt
var FS embed.FS

func lines(name string) ([]string, error) {
	b, err := FS.ReadFile(name)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, l := range strings.Split(string(b), "\n") {
		l = strings.TrimSpace(l)
		if l == "" || l[0] == '#' {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// Answers lists the bundled target words.
func Answers() ([]string, error) { return lines("answers.txt") }

// Allowed lists extra accepted guesses; answers are accepted without being
// listed.
func Allowed() ([]string, error) { return lines("allowed.txt") }
