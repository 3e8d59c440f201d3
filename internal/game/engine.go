// internal/game/engine.go
//
// Feedback engine for the duel.
// Responsibilities:
//   - Validate guesses (exactly WordLength ASCII letters, normalized uppercase).
//   - Score guesses with the two-pass position-then-scan algorithm.
//
// Score is a pure function: no randomness, no shared state.

package game

import (
	"strings"
)

const (
	// DefaultRows is the board size when a match does not configure one.
	DefaultRows = 6
	// WordLength is the length of targets and guesses.
	WordLength = 5
	// DefaultHandSize is how many cards a holder is topped up to.
	DefaultHandSize = 3
)

// NormalizeGuess trims and uppercases a raw guess and validates it.
// Returns an InvalidIntent error for anything other than 5 letters A-Z.
func NormalizeGuess(raw string) (string, error) {
	g := strings.ToUpper(strings.TrimSpace(raw))
	if len(g) != WordLength || !isAlpha(g) {
		return "", Invalid("guesses must be exactly 5 letters")
	}
	return g, nil
}

// Score evaluates guess against target.
//
// Pass 1:
//   - Mark exact matches correct and consume that target position.
//
// Pass 2:
//   - For each remaining guess position, scan target positions left to right;
//     the first unconsumed position holding the same letter yields present
//     and is consumed. Otherwise the slot is absent.
//
// A letter repeated in the guess is therefore credited no more often than it
// occurs, unconsumed, in the target.
func Score(guess, target string) []Mark {
	n := len(target)
	res := make([]Mark, n)
	if len(guess) != n {
		for i := range res {
			res[i] = MarkAbsent
		}
		return res
	}
	consumed := make([]bool, n)

	// First pass: exact hits.
	for i := 0; i < n; i++ {
		if guess[i] == target[i] {
			res[i] = MarkCorrect
			consumed[i] = true
		}
	}

	// Second pass: first unconsumed match wins.
	for i := 0; i < n; i++ {
		if res[i] == MarkCorrect {
			continue
		}
		res[i] = MarkAbsent
		for j := 0; j < n; j++ {
			if !consumed[j] && target[j] == guess[i] {
				res[i] = MarkPresent
				consumed[j] = true
				break
			}
		}
	}
	return res
}

// AllCorrect returns true if every mark is MarkCorrect.
func AllCorrect(m []Mark) bool {
	if len(m) == 0 {
		return false
	}
	for _, x := range m {
		if x != MarkCorrect {
			return false
		}
	}
	return true
}

// Equal compares two feedback sequences.
func Equal(a, b []Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// isAlpha checks that a string consists only of uppercase A-Z.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
