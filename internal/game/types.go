// internal/game/types.go
//
// Core type definitions for the duel engine.
// Defines:
//   - Mark: per-letter result of a guess (correct/present/absent).
//   - Match, Player, Row, PlayRecord: the state owned by one live match.
//   - CardID: stable identifier of a catalog card (catalog lives in package cards).

package game

// Mark represents the evaluation result for a single letter in a guess.
// Possible values:
//   - "correct": letter is in the answer at this position.
//   - "present": letter exists in the answer at another unconsumed position.
//   - "absent":  no unconsumed occurrence of the letter remains.
type Mark string

const (
	MarkCorrect Mark = "correct"
	MarkPresent Mark = "present"
	MarkAbsent  Mark = "absent"
)

// Marks lists every outcome, in a stable order (used for random draws).
var Marks = []Mark{MarkCorrect, MarkPresent, MarkAbsent}

// CardID identifies a card in the closed catalog.
type CardID string

// Player is one seat of a match.
type Player struct {
	ID       string   // connection-scoped identifier (uuid)
	Name     string   // display name
	Identity string   // durable external identity; empty for guests and bots
	Bot      bool     // true when driven by the bot-turn driver
	Guest    bool     // chips are not read or persisted (guests and unranked seats)
	Hand     []CardID // cards available to play
	Blocked  CardID   // card in Hand that cannot be played until this player's turn ends
	Chips    int      // chip total read at session start
}

// Row is one resolved guess on the shared board.
//
// The redaction flags are frozen when the row is resolved so later effect
// changes never retroactively reveal or hide it.
type Row struct {
	Guesser          string
	Letters          string
	Feedback         []Mark // ground truth
	GuesserFeedback  []Mark // what the guesser is shown
	OpponentFeedback []Mark // what the opponent is shown
	LettersHidden    bool   // letters withheld from the opponent
	FeedbackHidden   bool   // feedback withheld from the opponent
	SelfHidden       bool   // whole row withheld from the guesser
	Seq              int
}

// PlayRecord keeps both what a player really played and what the opponent
// was told. The true card is never discarded.
type PlayRecord struct {
	Card   CardID // true card
	Shown  CardID // card announced to the opponent (decoy when faked)
	Hidden bool   // nothing was announced
	Seq    int
}

// Match holds the state of a single duel.
type Match struct {
	Code       string
	Target     string     // 5 uppercase letters
	Players    [2]*Player // exactly two seats once started
	Holder     int        // index into Players of the current turn holder
	Rows       []Row
	Effects    []ActiveEffect
	LastPlayed map[string]PlayRecord // by player ID
	Mirrored   map[string]CardID     // what a player's last mirror resolved to
	Seq        int                   // turn sequence counter
	MaxRows    int
	HandSize   int
	Over       bool
	Winner     string // player ID; empty with Over set means draw
}

// NewMatch returns a match with its bookkeeping maps allocated.
func NewMatch(code, target string, a, b *Player, maxRows int) *Match {
	if maxRows <= 0 {
		maxRows = DefaultRows
	}
	return &Match{
		Code:       code,
		Target:     target,
		Players:    [2]*Player{a, b},
		LastPlayed: make(map[string]PlayRecord),
		Mirrored:   make(map[string]CardID),
		MaxRows:    maxRows,
		HandSize:   DefaultHandSize,
	}
}

// Reset clears per-round state for a rematch. Seats, chips and
// configuration are kept.
func (m *Match) Reset(target string) {
	m.Target = target
	m.Rows = nil
	m.Effects = nil
	m.LastPlayed = make(map[string]PlayRecord)
	m.Mirrored = make(map[string]CardID)
	m.Seq = 0
	m.Over = false
	m.Winner = ""
	for _, p := range m.Players {
		if p != nil {
			p.Hand = nil
			p.Blocked = ""
		}
	}
}

// Player returns the seat with the given ID, or nil.
func (m *Match) Player(id string) *Player {
	for _, p := range m.Players {
		if p != nil && p.ID == id {
			return p
		}
	}
	return nil
}

// Opponent returns the other seat, or nil if id is not in the match.
func (m *Match) Opponent(id string) *Player {
	switch {
	case m.Players[0] != nil && m.Players[0].ID == id:
		return m.Players[1]
	case m.Players[1] != nil && m.Players[1].ID == id:
		return m.Players[0]
	}
	return nil
}

// OpponentID is Opponent reduced to an ID; empty when unknown.
func (m *Match) OpponentID(id string) string {
	if o := m.Opponent(id); o != nil {
		return o.ID
	}
	return ""
}

// HolderPlayer returns the current turn holder.
func (m *Match) HolderPlayer() *Player { return m.Players[m.Holder] }

// IsHolder reports whether id holds the turn.
func (m *Match) IsHolder(id string) bool {
	h := m.HolderPlayer()
	return h != nil && h.ID == id
}

// GuessCount counts rows made by one player.
func (m *Match) GuessCount(id string) int {
	n := 0
	for _, r := range m.Rows {
		if r.Guesser == id {
			n++
		}
	}
	return n
}
