// internal/cards/catalog.go
//
// The closed card catalog.
//
// Every card is declared here with its display metadata and three
// behavior flags:
//   - Timing: when the card's hook runs (with the guess, at selection, or
//     as a modifier of another card played the same turn).
//   - Announce: whether the opponent is told about the play, told nothing,
//     or told about a decoy.
//   - KeepTrue: the true identity must be kept apart from what was shown.
//
// The catalog is compiled in; there is no runtime loading.

package cards

import (
	"github.com/robalobadob/wordduel/internal/game"
)

// Tag is the categorical label shown with a card.
type Tag string

const (
	Helpful Tag = "helpful"
	Harmful Tag = "harmful"
)

// Timing says when a card's hook runs.
type Timing string

const (
	OnGuess  Timing = "guess"    // resolved together with the holder's guess
	OnSelect Timing = "select"   // one-shot, resolved the moment it is chosen
	Modifier Timing = "modifier" // wraps the main card played this turn
)

// Announce controls what the opponent learns about a play.
type Announce string

const (
	Shown  Announce = "shown"
	Silent Announce = "silent"
	Faked  Announce = "faked"
)

// Card ids.
const (
	Cloak        game.CardID = "cloak"
	Smokescreen  game.CardID = "smokescreen"
	Misdirection game.CardID = "misdirection"
	DoubleTime   game.CardID = "double_time"
	Insight      game.CardID = "insight"
	Gambler      game.CardID = "gambler"
	AllIn        game.CardID = "all_in"
	Mirror       game.CardID = "mirror"
	Lockdown     game.CardID = "lockdown"
	Flip         game.CardID = "flip"
	Amnesia      game.CardID = "amnesia"
	Fog          game.CardID = "fog"
	Colorblind   game.CardID = "colorblind"
	TimeDrain    game.CardID = "time_drain"
	Pickpocket   game.CardID = "pickpocket"
	Jam          game.CardID = "jam"
	Cleanse      game.CardID = "cleanse"
	Replenish    game.CardID = "replenish"
	Spyglass     game.CardID = "spyglass"
	Shroud       game.CardID = "shroud"
	Bluff        game.CardID = "bluff"
)

// Card is an immutable catalog entry.
type Card struct {
	ID          game.CardID `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Tag         Tag         `json:"tag"`
	Timing      Timing      `json:"timing"`
	Announce    Announce    `json:"-"`
	KeepTrue    bool        `json:"-"`
}

var catalog = []Card{
	{ID: Cloak, Title: "Cloak", Description: "Your opponent cannot see the letters of this guess.", Tag: Helpful, Timing: OnGuess, Announce: Shown},
	{ID: Smokescreen, Title: "Smokescreen", Description: "Your opponent cannot see the feedback for this guess.", Tag: Helpful, Timing: OnGuess, Announce: Shown},
	{ID: Misdirection, Title: "Misdirection", Description: "Your opponent sees scrambled feedback for this guess.", Tag: Helpful, Timing: OnGuess, Announce: Shown},
	{ID: DoubleTime, Title: "Double Time", Description: "Take another turn after this guess.", Tag: Helpful, Timing: OnGuess, Announce: Shown},
	{ID: Insight, Title: "Insight", Description: "Reveal one letter of the word and where it goes.", Tag: Helpful, Timing: OnGuess, Announce: Shown},
	{ID: Gambler, Title: "Gambler", Description: "Heads: reveal a letter. Tails: your next guess is hidden from you.", Tag: Helpful, Timing: OnGuess, Announce: Shown},
	{ID: AllIn, Title: "All In", Description: "A 1% chance to win outright. Otherwise your next guess is hidden from you.", Tag: Helpful, Timing: OnGuess, Announce: Shown},
	{ID: Mirror, Title: "Mirror", Description: "Copy the last card your opponent played.", Tag: Helpful, Timing: OnGuess, Announce: Shown, KeepTrue: true},
	{ID: Lockdown, Title: "Lockdown", Description: "Your opponent cannot play cards next turn.", Tag: Harmful, Timing: OnGuess, Announce: Shown},
	{ID: Flip, Title: "Flip", Description: "Your opponent's hand is face-down next turn.", Tag: Harmful, Timing: OnGuess, Announce: Shown},
	{ID: Amnesia, Title: "Amnesia", Description: "Your opponent's guess history is blank next turn.", Tag: Harmful, Timing: OnGuess, Announce: Shown},
	{ID: Fog, Title: "Fog", Description: "Your opponent's keyboard hints are hidden next turn.", Tag: Harmful, Timing: OnGuess, Announce: Shown},
	{ID: Colorblind, Title: "Colorblind", Description: "Your opponent's next guess shows greens as grey.", Tag: Harmful, Timing: OnGuess, Announce: Shown},
	{ID: TimeDrain, Title: "Time Drain", Description: "Your opponent has half the time next turn.", Tag: Harmful, Timing: OnGuess, Announce: Shown},
	{ID: Pickpocket, Title: "Pickpocket", Description: "Steal a random card from your opponent's hand.", Tag: Helpful, Timing: OnSelect, Announce: Shown},
	{ID: Jam, Title: "Jam", Description: "Block a random card in your opponent's hand.", Tag: Harmful, Timing: OnSelect, Announce: Shown},
	{ID: Cleanse, Title: "Cleanse", Description: "Remove every harmful effect on you.", Tag: Helpful, Timing: OnSelect, Announce: Shown},
	{ID: Replenish, Title: "Replenish", Description: "Refill your hand.", Tag: Helpful, Timing: OnSelect, Announce: Shown},
	{ID: Spyglass, Title: "Spyglass", Description: "Look at your opponent's hand.", Tag: Helpful, Timing: OnSelect, Announce: Silent},
	{ID: Shroud, Title: "Shroud", Description: "Your opponent is not told which card you play this turn.", Tag: Helpful, Timing: Modifier, Announce: Silent},
	{ID: Bluff, Title: "Bluff", Description: "Your opponent is shown a different card than the one you play.", Tag: Helpful, Timing: Modifier, Announce: Faked, KeepTrue: true},
}

var byID = func() map[game.CardID]Card {
	m := make(map[game.CardID]Card, len(catalog))
	for _, c := range catalog {
		m[c.ID] = c
	}
	return m
}()

// All returns a copy of the catalog in declaration order.
func All() []Card {
	out := make([]Card, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a card by id.
func Lookup(id game.CardID) (Card, bool) {
	c, ok := byID[id]
	return c, ok
}

// Draw picks a uniformly random card id from the full catalog.
func Draw(rng Rand) game.CardID {
	return catalog[rng.IntN(len(catalog))].ID
}

// Fill tops hand up to size with random draws.
func Fill(hand []game.CardID, size int, rng Rand) []game.CardID {
	for len(hand) < size {
		hand = append(hand, Draw(rng))
	}
	return hand
}
