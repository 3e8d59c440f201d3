// internal/game/effects.go
//
// ActiveEffect bookkeeping for a match.
//
// An effect targets one of the two players and waits for a kind-specific
// trigger: the target's next guess, the target's next turn, or the start of
// the target's next turn timer. Effects become eligible once the match turn
// sequence reaches ArmedSeq, and are marked consumed (then swept) when their
// trigger fires.

package game

// EffectKind names what an ActiveEffect does.
type EffectKind string

const (
	EffectHiddenGuess    EffectKind = "hidden_guess"    // guess letters withheld from the opponent
	EffectHiddenFeedback EffectKind = "hidden_feedback" // feedback withheld from the opponent
	EffectFalseFeedback  EffectKind = "false_feedback"  // opponent's copy of feedback randomized
	EffectSelfBlind      EffectKind = "self_blind"      // row withheld from its own guesser
	EffectGreenToGrey    EffectKind = "green_to_grey"   // guesser sees correct as absent
	EffectLock           EffectKind = "lock"            // no card plays this turn
	EffectFlip           EffectKind = "flip"            // hand shown face-down this turn
	EffectAmnesia        EffectKind = "amnesia"         // guess history blank this turn
	EffectHiddenKeyboard EffectKind = "hidden_keyboard" // keyboard hints withheld this turn
	EffectExtraTurn      EffectKind = "extra_turn"      // holder keeps the turn once
	EffectTimeDrain      EffectKind = "time_drain"      // next turn timer halved
	EffectHint           EffectKind = "hint"            // one-time revealed letter
)

// Trigger is the condition that consumes an effect.
type Trigger int

const (
	TriggerGuess     Trigger = iota // target's next resolved guess
	TriggerTurn                     // end of target's next turn
	TriggerTurnStart                // start of target's next turn timer
	TriggerAdvance                  // next turn advance
	TriggerDelivered                // once shown to the target
)

// Trigger reports when effects of kind k are consumed.
func (k EffectKind) Trigger() Trigger {
	switch k {
	case EffectLock, EffectFlip, EffectAmnesia, EffectHiddenKeyboard:
		return TriggerTurn
	case EffectTimeDrain:
		return TriggerTurnStart
	case EffectExtraTurn:
		return TriggerAdvance
	case EffectHint:
		return TriggerDelivered
	default:
		return TriggerGuess
	}
}

// Idempotent kinds never stack: re-casting refreshes the existing instance.
func (k EffectKind) Idempotent() bool {
	switch k {
	case EffectLock, EffectFlip, EffectAmnesia, EffectHiddenKeyboard:
		return true
	}
	return false
}

// Harmful kinds are removed by a cleanse.
func (k EffectKind) Harmful() bool {
	switch k {
	case EffectSelfBlind, EffectGreenToGrey, EffectLock, EffectFlip,
		EffectAmnesia, EffectHiddenKeyboard, EffectTimeDrain:
		return true
	}
	return false
}

// Hint is a revealed letter of the target.
type Hint struct {
	Letter   string `json:"letter"`
	Position int    `json:"position"`
}

// ActiveEffect is a consumable, targeted modifier.
type ActiveEffect struct {
	Kind     EffectKind
	Target   string // player ID
	Consumed bool
	ArmedSeq int
	Hint     *Hint
	Source   CardID
}

// AddEffect registers e. For idempotent kinds any unconsumed instance with
// the same kind and target is discarded first.
// Effects whose target is not a seat of this match are dropped.
func (m *Match) AddEffect(e ActiveEffect) bool {
	if m.Player(e.Target) == nil {
		return false
	}
	if e.Kind.Idempotent() {
		kept := m.Effects[:0]
		for _, x := range m.Effects {
			if !x.Consumed && x.Kind == e.Kind && x.Target == e.Target {
				continue
			}
			kept = append(kept, x)
		}
		m.Effects = kept
	}
	m.Effects = append(m.Effects, e)
	return true
}

func (m *Match) armed(e ActiveEffect) bool {
	return !e.Consumed && e.ArmedSeq <= m.Seq
}

// Active reports whether an armed, unconsumed effect of kind targets target.
// Turn-scoped kinds only apply while their target holds the turn.
func (m *Match) Active(kind EffectKind, target string) bool {
	if kind.Trigger() == TriggerTurn && !m.IsHolder(target) {
		return false
	}
	for _, e := range m.Effects {
		if e.Kind == kind && e.Target == target && m.armed(e) {
			return true
		}
	}
	return false
}

// EffectsFor returns the armed effects on target in registration order.
func (m *Match) EffectsFor(target string) []ActiveEffect {
	var out []ActiveEffect
	for _, e := range m.Effects {
		if e.Target == target && m.armed(e) {
			out = append(out, e)
		}
	}
	return out
}

// Pending counts unconsumed effects of kind on target, armed or not.
func (m *Match) Pending(kind EffectKind, target string) int {
	n := 0
	for _, e := range m.Effects {
		if !e.Consumed && e.Kind == kind && e.Target == target {
			n++
		}
	}
	return n
}

// Consume marks armed effects on target with the given trigger consumed and
// returns them.
func (m *Match) Consume(target string, t Trigger) []ActiveEffect {
	var out []ActiveEffect
	for i := range m.Effects {
		e := &m.Effects[i]
		if e.Target == target && e.Kind.Trigger() == t && m.armed(*e) {
			e.Consumed = true
			out = append(out, *e)
		}
	}
	return out
}

// Cleanse removes every unconsumed harmful effect on target.
func (m *Match) Cleanse(target string) int {
	n := 0
	for i := range m.Effects {
		e := &m.Effects[i]
		if !e.Consumed && e.Target == target && e.Kind.Harmful() {
			e.Consumed = true
			n++
		}
	}
	m.Sweep()
	return n
}

// Sweep discards consumed effects.
func (m *Match) Sweep() {
	kept := m.Effects[:0]
	for _, e := range m.Effects {
		if !e.Consumed {
			kept = append(kept, e)
		}
	}
	m.Effects = kept
}
