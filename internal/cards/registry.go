// internal/cards/registry.go
//
// Trigger dispatch for the catalog. Each hook is a switch with one case per
// card id; ids without a case fall through as a no-op.

package cards

import (
	"github.com/robalobadob/wordduel/internal/game"
)

// Rand is the randomness the registry consumes. *math/rand/v2.Rand
// satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

const (
	falseFeedbackRate = 0.4
	allInWinRate      = 0.01
)

// Outcome is what an on-guess hook reports back to the session.
type Outcome struct {
	InstantWin bool          // skip evaluation; the actor wins
	Hint       *game.Hint    // one-time reveal for the actor
	Copied     game.CardID   // what a mirror resolved to
	Select     SelectOutcome // set when a mirror copied a selection-time card
}

// TriggerOnGuess runs id's on-guess hook for actor. Effects are armed
// relative to m.Seq, the sequence number of the turn being resolved.
func TriggerOnGuess(m *game.Match, actor string, id game.CardID, rng Rand) Outcome {
	opp := m.OpponentID(actor)
	if opp == "" {
		return Outcome{}
	}
	seq := m.Seq

	switch id {
	case Cloak:
		m.AddEffect(game.ActiveEffect{Kind: game.EffectHiddenGuess, Target: actor, ArmedSeq: seq, Source: id})
	case Smokescreen:
		m.AddEffect(game.ActiveEffect{Kind: game.EffectHiddenFeedback, Target: actor, ArmedSeq: seq, Source: id})
	case Misdirection:
		m.AddEffect(game.ActiveEffect{Kind: game.EffectFalseFeedback, Target: actor, ArmedSeq: seq, Source: id})
	case DoubleTime:
		m.AddEffect(game.ActiveEffect{Kind: game.EffectExtraTurn, Target: actor, ArmedSeq: seq, Source: id})
	case Insight:
		return Outcome{Hint: reveal(m, actor, id, rng)}
	case Gambler:
		if rng.IntN(2) == 0 {
			return Outcome{Hint: reveal(m, actor, id, rng)}
		}
		m.AddEffect(game.ActiveEffect{Kind: game.EffectSelfBlind, Target: actor, ArmedSeq: seq + 1, Source: id})
	case AllIn:
		if rng.Float64() < allInWinRate {
			return Outcome{InstantWin: true}
		}
		m.AddEffect(game.ActiveEffect{Kind: game.EffectSelfBlind, Target: actor, ArmedSeq: seq + 1, Source: id})
	case Mirror:
		copied := m.Mirrored[actor]
		if copied == "" || copied == Mirror {
			return Outcome{}
		}
		var out Outcome
		if c, ok := Lookup(copied); ok && c.Timing == OnSelect {
			out.Select = TriggerOnSelect(m, actor, copied, rng)
		} else {
			out = TriggerOnGuess(m, actor, copied, rng)
		}
		out.Copied = copied
		return out
	case Lockdown:
		m.AddEffect(game.ActiveEffect{Kind: game.EffectLock, Target: opp, ArmedSeq: seq + 1, Source: id})
	case Flip:
		m.AddEffect(game.ActiveEffect{Kind: game.EffectFlip, Target: opp, ArmedSeq: seq + 1, Source: id})
	case Amnesia:
		m.AddEffect(game.ActiveEffect{Kind: game.EffectAmnesia, Target: opp, ArmedSeq: seq + 1, Source: id})
	case Fog:
		m.AddEffect(game.ActiveEffect{Kind: game.EffectHiddenKeyboard, Target: opp, ArmedSeq: seq + 1, Source: id})
	case Colorblind:
		m.AddEffect(game.ActiveEffect{Kind: game.EffectGreenToGrey, Target: opp, ArmedSeq: seq + 1, Source: id})
	case TimeDrain:
		m.AddEffect(game.ActiveEffect{Kind: game.EffectTimeDrain, Target: opp, ArmedSeq: seq + 1, Source: id})
	}
	return Outcome{}
}

func reveal(m *game.Match, actor string, src game.CardID, rng Rand) *game.Hint {
	if len(m.Target) == 0 {
		return nil
	}
	pos := rng.IntN(len(m.Target))
	h := &game.Hint{Letter: m.Target[pos : pos+1], Position: pos}
	m.AddEffect(game.ActiveEffect{Kind: game.EffectHint, Target: actor, ArmedSeq: m.Seq, Hint: h, Source: src})
	return h
}

// SelectOutcome reports what a selection-time card changed.
type SelectOutcome struct {
	Stolen   game.CardID   // pickpocket: card moved into the actor's hand
	Blocked  game.CardID   // jam: card blocked in the opponent's hand
	Cleansed int           // cleanse: effects removed
	Drawn    []game.CardID // replenish: cards added
	Revealed []game.CardID // spyglass: opponent's hand
}

// TriggerOnSelect runs a one-shot selection-time card. The played card
// must already be out of the actor's hand.
func TriggerOnSelect(m *game.Match, actor string, id game.CardID, rng Rand) SelectOutcome {
	me, opp := m.Player(actor), m.Opponent(actor)
	if me == nil || opp == nil {
		return SelectOutcome{}
	}

	switch id {
	case Pickpocket:
		if len(opp.Hand) == 0 {
			return SelectOutcome{}
		}
		i := rng.IntN(len(opp.Hand))
		stolen := opp.Hand[i]
		opp.Hand = append(opp.Hand[:i:i], opp.Hand[i+1:]...)
		if opp.Blocked == stolen && !contains(opp.Hand, stolen) {
			opp.Blocked = ""
		}
		me.Hand = append(me.Hand, stolen)
		return SelectOutcome{Stolen: stolen}
	case Jam:
		if len(opp.Hand) == 0 {
			return SelectOutcome{}
		}
		opp.Blocked = opp.Hand[rng.IntN(len(opp.Hand))]
		return SelectOutcome{Blocked: opp.Blocked}
	case Cleanse:
		return SelectOutcome{Cleansed: m.Cleanse(actor)}
	case Replenish:
		before := len(me.Hand)
		size := m.HandSize
		if size <= 0 {
			size = game.DefaultHandSize
		}
		me.Hand = Fill(me.Hand, size, rng)
		return SelectOutcome{Drawn: append([]game.CardID(nil), me.Hand[before:]...)}
	case Spyglass:
		return SelectOutcome{Revealed: append([]game.CardID(nil), opp.Hand...)}
	}
	return SelectOutcome{}
}

// TriggerOnFeedback shapes fb for one viewer of guesser's row. Effects on
// the guesser apply in registration order; the input slice is not mutated.
func TriggerOnFeedback(m *game.Match, guesser string, fb []game.Mark, viewerIsOpponent bool, rng Rand) []game.Mark {
	out := append([]game.Mark(nil), fb...)
	for _, e := range m.EffectsFor(guesser) {
		switch e.Kind {
		case game.EffectFalseFeedback:
			if !viewerIsOpponent {
				continue
			}
			for i := range out {
				if rng.Float64() < falseFeedbackRate {
					out[i] = game.Marks[rng.IntN(len(game.Marks))]
				}
			}
		case game.EffectGreenToGrey:
			if viewerIsOpponent {
				continue
			}
			for i, mk := range out {
				if mk == game.MarkCorrect {
					out[i] = game.MarkAbsent
				}
			}
		}
	}
	return out
}

func contains(hand []game.CardID, id game.CardID) bool {
	for _, c := range hand {
		if c == id {
			return true
		}
	}
	return false
}
