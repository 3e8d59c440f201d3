// internal/session/events.go
//
// Events pushed to match participants, and the sinks that carry them.
//
// Every event is addressed to one player and already redacted for that
// player. Sinks never block the session: a full sink drops the event.

package session

import (
	"time"

	"github.com/robalobadob/wordduel/internal/cards"
	"github.com/robalobadob/wordduel/internal/game"
)

// EventType names an outbound message.
type EventType string

const (
	EventMatchCreated     EventType = "match_created"
	EventPlayerJoined     EventType = "player_joined"
	EventMatchStarted     EventType = "match_started"
	EventCardSelected     EventType = "card_selected"
	EventCardPlayed       EventType = "card_played"
	EventTurnChanged      EventType = "turn_changed"
	EventGuessSubmitted   EventType = "guess_submitted"
	EventMatchOver        EventType = "match_over"
	EventError            EventType = "error"
	EventState            EventType = "state"
	EventHandRevealed     EventType = "hand_revealed"
	EventHint             EventType = "hint"
	EventQueued           EventType = "queued"
	EventRematchRequested EventType = "rematch_requested"
)

// Event is one message for one recipient. Optional fields are nil or empty
// when withheld.
type Event struct {
	Type     EventType     `json:"type"`
	Code     string        `json:"code,omitempty"`
	PlayerID string        `json:"playerId,omitempty"` // recipient's seat
	Actor    string        `json:"actor,omitempty"`    // seat the event is about
	Name     string        `json:"name,omitempty"`
	Card     *cards.Card   `json:"card,omitempty"`
	Row      *RowView      `json:"row,omitempty"`
	Hand     []game.CardID `json:"hand,omitempty"`
	Hint     *game.Hint    `json:"hint,omitempty"`
	Holder   string        `json:"holder,omitempty"`
	Deadline *time.Time    `json:"deadline,omitempty"`
	Winner   string        `json:"winner,omitempty"`
	Draw     bool          `json:"draw,omitempty"`
	Target   string        `json:"target,omitempty"`
	Chips    *ChipChange   `json:"chips,omitempty"`
	Queue    string        `json:"queue,omitempty"`
	Message  string        `json:"message,omitempty"`
	State    *View         `json:"state,omitempty"`
}

// ChipChange reports a recipient's chip total before and after a match.
type ChipChange struct {
	Before int `json:"before"`
	After  int `json:"after"`
}

// ErrorEvent wraps a user-facing message.
func ErrorEvent(msg string) Event {
	return Event{Type: EventError, Message: msg}
}

// Sink receives events for one participant.
type Sink interface {
	// Send delivers e without blocking and reports whether it was accepted.
	Send(e Event) bool
}

// ChanSink is a buffered channel sink.
type ChanSink chan Event

// NewChanSink returns a sink buffering up to n events.
func NewChanSink(n int) ChanSink { return make(ChanSink, n) }

func (c ChanSink) Send(e Event) bool {
	select {
	case c <- e:
		return true
	default:
		return false
	}
}
