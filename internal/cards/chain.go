package cards

import (
	"github.com/robalobadob/wordduel/internal/game"
)

// Announcement is what the opponent is told about one turn's play.
type Announcement struct {
	Hidden bool        // nothing is announced
	Shown  game.CardID // real card, or a decoy when faked
}

// ResolveChain decides the announcement for the cards played in one turn.
//
// chain lists every card played this turn in order, real included. A card
// marked silent anywhere in the chain hides the play and wins over a faked
// one. Otherwise a faked card swaps in a decoy drawn uniformly from the
// catalog minus the real card. An empty real card announces nothing.
func ResolveChain(chain []game.CardID, real game.CardID, rng Rand) Announcement {
	if real == "" {
		return Announcement{Hidden: true}
	}
	var hide, fake bool
	for _, id := range chain {
		c, ok := Lookup(id)
		if !ok {
			continue
		}
		switch c.Announce {
		case Silent:
			hide = true
		case Faked:
			fake = true
		}
	}
	switch {
	case hide:
		return Announcement{Hidden: true}
	case fake:
		return Announcement{Shown: decoy(real, rng)}
	}
	return Announcement{Shown: real}
}

func decoy(real game.CardID, rng Rand) game.CardID {
	pool := make([]game.CardID, 0, len(catalog))
	for _, c := range catalog {
		if c.ID != real {
			pool = append(pool, c.ID)
		}
	}
	return pool[rng.IntN(len(pool))]
}
