// internal/words/words.go
//
// Word lists for the duel engine.
//
// Responsibilities:
//   - Load the answer list (targets) and the allowed-guess list.
//   - Keep lookup sets for IsAllowed.
//   - Supply RandomAnswer, Answers and Stats to sessions and the bot.
//
// Init order:
//   1. Options.URL, a remote newline separated list (used for both lists).
//   2. Options.AnswersFile and/or Options.AllowedFile. An allowed file alone
//      serves as both lists.
//   3. The lists bundled in assets.
// A failing remote or file source is logged and the next one is tried.
//
// Words are five ASCII letters, normalized to upper case. Answers are always
// allowed guesses.

package words

import (
	"bufio"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/robalobadob/wordduel/assets"
)

// Length is the only word length the lists carry.
const Length = 5

const fallbackAnswer = "CRANE"

// Options names the sources Init consults.
type Options struct {
	URL         string
	AnswersFile string
	AllowedFile string
}

// Source is a loaded pair of lists. It is read-only after Init.
type Source struct {
	answers    []string
	answersSet map[string]struct{}
	allowedSet map[string]struct{} // answers ∪ guesses
	origin     string
}

// Init builds a Source from the first source in opts that yields a
// non-empty answer list.
func Init(ctx context.Context, opts Options, logger zerolog.Logger) (*Source, error) {
	logger = logger.With().Str("component", "words").Logger()

	if opts.URL != "" {
		list, err := fetchRemote(ctx, opts.URL)
		if err == nil && len(list) > 0 {
			return newSource(list, nil, "remote"), nil
		}
		if err == nil {
			err = errors.New("no usable words")
		}
		logger.Warn().Err(err).Str("url", opts.URL).Msg("remote word list unavailable, falling back")
	}

	if opts.AllowedFile != "" || opts.AnswersFile != "" {
		src, err := fromFiles(opts.AnswersFile, opts.AllowedFile)
		if err == nil {
			return src, nil
		}
		logger.Warn().Err(err).Msg("word files unusable, falling back to bundled lists")
	}

	ans, err := assets.Answers()
	if err != nil {
		return nil, fmt.Errorf("bundled answers: %w", err)
	}
	allowed, err := assets.Allowed()
	if err != nil {
		return nil, fmt.Errorf("bundled allowed: %w", err)
	}
	src := newSource(normalize(ans), normalize(allowed), "bundled")
	if len(src.answers) == 0 {
		return nil, errors.New("words: answers list is empty")
	}
	return src, nil
}

func fromFiles(answersPath, allowedPath string) (*Source, error) {
	var ans, allowed []string
	var err error
	if allowedPath != "" {
		if allowed, err = readWordFile(allowedPath); err != nil {
			return nil, err
		}
	}
	if answersPath != "" {
		if ans, err = readWordFile(answersPath); err != nil {
			return nil, err
		}
	} else {
		ans = allowed
	}
	if len(ans) == 0 {
		return nil, errors.New("words: answers list is empty")
	}
	return newSource(ans, allowed, "files"), nil
}

func newSource(ans, allowed []string, origin string) *Source {
	s := &Source{
		answers:    ans,
		answersSet: toSet(ans),
		allowedSet: toSet(ans),
		origin:     origin,
	}
	for _, w := range allowed {
		s.allowedSet[w] = struct{}{}
	}
	return s
}

func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return scanWords(f)
}

func scanWords(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if w, ok := normalizeWord(sc.Text()); ok {
			out = append(out, w)
		}
	}
	return out, sc.Err()
}

func normalize(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if w, ok := normalizeWord(l); ok {
			out = append(out, w)
		}
	}
	return out
}

func normalizeWord(s string) (string, bool) {
	w := strings.ToUpper(strings.TrimSpace(s))
	if len(w) != Length {
		return "", false
	}
	for i := 0; i < len(w); i++ {
		if w[i] < 'A' || w[i] > 'Z' {
			return "", false
		}
	}
	return w, true
}

func toSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, w := range list {
		m[w] = struct{}{}
	}
	return m
}

// RandomAnswer returns a cryptographically random answer.
func (s *Source) RandomAnswer() string {
	if len(s.answers) == 0 {
		return fallbackAnswer
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(s.answers))))
	if err != nil {
		return s.answers[0]
	}
	return s.answers[n.Int64()]
}

// Answers returns the answer list. Callers must not modify it.
func (s *Source) Answers() []string { return s.answers }

// IsAllowed reports whether w is a valid guess.
func (s *Source) IsAllowed(w string) bool {
	_, ok := s.allowedSet[strings.ToUpper(w)]
	return ok
}

// IsAnswer reports whether w can be drawn as a target.
func (s *Source) IsAnswer(w string) bool {
	_, ok := s.answersSet[strings.ToUpper(w)]
	return ok
}

// Stats returns the list sizes.
func (s *Source) Stats() (answersCount, allowedCount int) {
	return len(s.answers), len(s.allowedSet)
}

// Origin names the source the lists came from: remote, files or bundled.
func (s *Source) Origin() string { return s.origin }
