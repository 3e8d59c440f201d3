// internal/session/view.go
//
// Per-observer redaction. Nothing leaves a session except through these
// builders, so every outbound row and state snapshot is shaped for exactly
// one viewer.

package session

import (
	"time"

	"github.com/robalobadob/wordduel/internal/cards"
	"github.com/robalobadob/wordduel/internal/game"
)

// RowView is one board row as a particular viewer may see it.
type RowView struct {
	Guesser        string      `json:"guesser"`
	Letters        string      `json:"letters,omitempty"`
	Feedback       []game.Mark `json:"feedback,omitempty"`
	LettersHidden  bool        `json:"lettersHidden,omitempty"`
	FeedbackHidden bool        `json:"feedbackHidden,omitempty"`
	Seq            int         `json:"seq"`
}

// PlayerView is public seat info.
type PlayerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Bot   bool   `json:"bot,omitempty"`
	Chips int    `json:"chips"`
	Cards int    `json:"cards"`
}

// HandCard is one slot of the viewer's own hand. Card is nil when the hand
// is face-down.
type HandCard struct {
	Slot    int         `json:"slot"`
	Card    *cards.Card `json:"card,omitempty"`
	Blocked bool        `json:"blocked,omitempty"`
}

// View is a full state snapshot for one player.
type View struct {
	Code           string               `json:"code"`
	Phase          Phase                `json:"phase"`
	You            string               `json:"you"`
	Holder         string               `json:"holder,omitempty"`
	Seq            int                  `json:"seq"`
	MaxRows        int                  `json:"maxRows"`
	Players        []PlayerView         `json:"players"`
	Hand           []HandCard           `json:"hand"`
	Chain          []game.CardID        `json:"chain,omitempty"`
	Pending        game.CardID          `json:"pendingCard,omitempty"`
	Rows           []RowView            `json:"rows"`
	Keyboard       map[string]game.Mark `json:"keyboard,omitempty"`
	Hints          []game.Hint          `json:"hints,omitempty"`
	Locked         bool                 `json:"locked,omitempty"`
	FaceDown       bool                 `json:"faceDown,omitempty"`
	Amnesia        bool                 `json:"amnesia,omitempty"`
	KeyboardHidden bool                 `json:"keyboardHidden,omitempty"`
	Deadline       *time.Time           `json:"deadline,omitempty"`
	Over           bool                 `json:"over,omitempty"`
	Winner         string               `json:"winner,omitempty"`
	Target         string               `json:"target,omitempty"`
}

// rowFor redacts r for viewer using the flags frozen on the row.
// Finished matches show every row in full.
func rowFor(r game.Row, viewer string, reveal bool) RowView {
	v := RowView{Guesser: r.Guesser, Seq: r.Seq}
	switch {
	case reveal:
		v.Letters, v.Feedback = r.Letters, r.Feedback
	case r.Guesser == viewer:
		if r.SelfHidden {
			v.LettersHidden, v.FeedbackHidden = true, true
			break
		}
		v.Letters, v.Feedback = r.Letters, r.GuesserFeedback
	default:
		if r.LettersHidden {
			v.LettersHidden = true
		} else {
			v.Letters = r.Letters
		}
		if r.FeedbackHidden {
			v.FeedbackHidden = true
		} else {
			v.Feedback = r.OpponentFeedback
		}
	}
	return v
}

var markRank = map[game.Mark]int{game.MarkAbsent: 1, game.MarkPresent: 2, game.MarkCorrect: 3}

// keyboard folds the rows a viewer can fully see into a best-mark-per-letter
// map.
func keyboard(rows []RowView) map[string]game.Mark {
	kb := map[string]game.Mark{}
	for _, r := range rows {
		if r.Letters == "" || len(r.Feedback) != len(r.Letters) {
			continue
		}
		for i := 0; i < len(r.Letters); i++ {
			l := r.Letters[i : i+1]
			if markRank[r.Feedback[i]] > markRank[kb[l]] {
				kb[l] = r.Feedback[i]
			}
		}
	}
	return kb
}

// viewLocked builds viewer's snapshot. Caller holds s.mu.
func (s *Session) viewLocked(viewer string) View {
	m := s.m
	v := View{
		Code:    s.code,
		Phase:   s.phase,
		You:     viewer,
		Seq:     m.Seq,
		MaxRows: m.MaxRows,
		Over:    m.Over,
		Winner:  m.Winner,
		Rows:    []RowView{},
		Hand:    []HandCard{},
	}
	for _, p := range m.Players {
		if p == nil {
			continue
		}
		v.Players = append(v.Players, PlayerView{ID: p.ID, Name: p.Name, Bot: p.Bot, Chips: p.Chips, Cards: len(p.Hand)})
	}
	if s.phase == PhaseWaiting {
		return v
	}
	if h := m.HolderPlayer(); h != nil && !m.Over {
		v.Holder = h.ID
		if !s.deadline.IsZero() {
			d := s.deadline
			v.Deadline = &d
		}
	}
	if m.Over {
		v.Target = m.Target
	}

	v.Locked = m.Active(game.EffectLock, viewer)
	v.FaceDown = m.Active(game.EffectFlip, viewer)
	v.Amnesia = m.Active(game.EffectAmnesia, viewer)
	v.KeyboardHidden = m.Active(game.EffectHiddenKeyboard, viewer)

	if me := m.Player(viewer); me != nil {
		for i, id := range me.Hand {
			hc := HandCard{Slot: i, Blocked: id == me.Blocked}
			if c, ok := cards.Lookup(id); ok && !v.FaceDown {
				hc.Card = &c
			}
			v.Hand = append(v.Hand, hc)
		}
	}
	v.Hints = append([]game.Hint(nil), s.hints[viewer]...)
	if m.IsHolder(viewer) {
		v.Chain = append([]game.CardID(nil), s.chain...)
		v.Pending = s.card
	}

	for _, r := range m.Rows {
		rv := rowFor(r, viewer, m.Over)
		if v.Amnesia {
			rv = RowView{Guesser: r.Guesser, Seq: r.Seq, LettersHidden: true, FeedbackHidden: true}
		}
		v.Rows = append(v.Rows, rv)
	}
	if !v.KeyboardHidden && !v.Amnesia {
		v.Keyboard = keyboard(v.Rows)
	}
	return v
}
