package cards

import (
	"github.com/robalobadob/wordduel/internal/game"
)

// PlayLookup returns a player's last main card and, when that card was a
// mirror, what it resolved to.
type PlayLookup func(playerID string) (played, mirrored game.CardID, ok bool)

// ResolveMirror finds the card a mirror cast by actor copies.
//
// Starting at actor's opponent, a non-mirror play is the answer. A mirror
// play answers with what it resolved to, if that was a real card; otherwise
// the walk moves on to that player's opponent. Each player is visited at
// most once, so cycles end with ok == false.
func ResolveMirror(lookup PlayLookup, opponentOf func(string) string, actor string) (game.CardID, bool) {
	seen := map[string]bool{actor: true}
	for target := opponentOf(actor); target != "" && !seen[target]; target = opponentOf(target) {
		seen[target] = true
		played, mirrored, ok := lookup(target)
		if !ok || played == "" {
			return "", false
		}
		if played != Mirror {
			return played, true
		}
		if mirrored != "" && mirrored != Mirror {
			return mirrored, true
		}
	}
	return "", false
}

// MatchLookup adapts a match's play records to PlayLookup.
func MatchLookup(m *game.Match) PlayLookup {
	return func(id string) (game.CardID, game.CardID, bool) {
		rec, ok := m.LastPlayed[id]
		if !ok {
			return "", "", false
		}
		return rec.Card, m.Mirrored[id], true
	}
}
