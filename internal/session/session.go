// internal/session/session.go
//
// GameSession: the turn state machine for one match.
//
// A Session owns its Match outright. Every intent, timer expiry and bot
// action takes the session mutex, so effect bookkeeping is never observed
// half-applied. Sessions never share locks with one another.
//
// Phases:
//   waiting -> awaiting_card -> awaiting_guess -> resolving -> awaiting_card ... -> game_over
//
// Resolution of an accepted guess:
//   1. chain announcement and the main card's on-guess hook
//   2. feedback (game.Score)
//   3. feedback shaping per viewer, in effect registration order
//   4. redaction flags frozen on the row
//   5. row appended, guess-triggered effects consumed
//   6. win / exhaustion check, else turn advance (or repeat on extra turn)

package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/wordduel/internal/cards"
	"github.com/robalobadob/wordduel/internal/game"
)

// Phase is the state machine position.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseSelect    Phase = "awaiting_card"
	PhaseGuess     Phase = "awaiting_guess"
	PhaseResolving Phase = "resolving"
	PhaseOver      Phase = "game_over"
)

// TimeoutPolicy decides what an expired turn timer does.
type TimeoutPolicy string

const (
	PolicyPass    TimeoutPolicy = "pass"    // turn moves to the opponent
	PolicyForfeit TimeoutPolicy = "forfeit" // holder loses the match
)

// ChipStore is the durable chip ledger. Identities are durable account ids.
type ChipStore interface {
	Chips(ctx context.Context, identity string) (int, error)
	AddChips(ctx context.Context, identity string, delta int) (int, error)
}

// WordSource supplies targets and the bot's candidate list.
type WordSource interface {
	RandomAnswer() string
	Answers() []string
	IsAllowed(w string) bool
}

// Config tunes a session. Zero fields take defaults.
type Config struct {
	TurnTimeout   time.Duration
	TimeoutPolicy TimeoutPolicy
	RematchWindow time.Duration
	MaxRows       int
	HandSize      int
	BotThink      time.Duration
	StrictGuesses bool // guesses must be in the allowed list
	// IdleTurns ends a match as a draw after this many consecutive turns
	// pass on the timer without a guess.
	IdleTurns int
}

// Defaults.
const (
	DefaultTurnTimeout   = 60 * time.Second
	DefaultRematchWindow = 2 * time.Minute
	DefaultBotThink      = 1500 * time.Millisecond
	DefaultIdleTurns     = 4
	chipTimeout          = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.TurnTimeout == 0 {
		c.TurnTimeout = DefaultTurnTimeout
	}
	if c.TimeoutPolicy == "" {
		c.TimeoutPolicy = PolicyPass
	}
	if c.RematchWindow == 0 {
		c.RematchWindow = DefaultRematchWindow
	}
	if c.MaxRows <= 0 {
		c.MaxRows = game.DefaultRows
	}
	if c.HandSize <= 0 {
		c.HandSize = game.DefaultHandSize
	}
	if c.BotThink == 0 {
		c.BotThink = DefaultBotThink
	}
	if c.IdleTurns <= 0 {
		c.IdleTurns = DefaultIdleTurns
	}
	return c
}

// Options carries a session's collaborators.
type Options struct {
	Config Config
	Words  WordSource
	Chips  ChipStore  // optional
	Rand   cards.Rand // optional; seeded per session when nil
	Logger zerolog.Logger

	// OnClose runs on its own goroutine once the session is finished for good.
	OnClose func(code string)
	// OnUndelivered receives a match_over event that no sink accepted.
	OnUndelivered func(identity string, ev Event)
}

// Session is one live match.
type Session struct {
	mu sync.Mutex

	code          string
	cfg           Config
	words         WordSource
	chips         ChipStore
	rng           cards.Rand
	log           zerolog.Logger
	onClose       func(string)
	onUndelivered func(string, Event)

	m     *game.Match
	phase Phase
	chain []game.CardID // modifiers played so far this turn
	card  game.CardID   // main card awaiting the guess
	sinks map[string]Sink
	hints map[string][]game.Hint // revealed letters, kept for the round
	idle  int                    // consecutive turns passed on the timer

	turnTimer  *time.Timer
	deadline   time.Time
	closeTimer *time.Timer
	rematch    map[string]bool
	bots       []*botDriver
	closed     bool
}

// New returns an empty session waiting for two seats.
func New(code string, opts Options) *Session {
	cfg := opts.Config.withDefaults()
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	m := game.NewMatch(code, "", nil, nil, cfg.MaxRows)
	m.HandSize = cfg.HandSize
	return &Session{
		code:          code,
		cfg:           cfg,
		words:         opts.Words,
		chips:         opts.Chips,
		rng:           rng,
		log:           opts.Logger.With().Str("match", code).Logger(),
		onClose:       opts.OnClose,
		onUndelivered: opts.OnUndelivered,
		m:             m,
		phase:         PhaseWaiting,
		sinks:         make(map[string]Sink),
	}
}

// Code returns the match code.
func (s *Session) Code() string { return s.code }

// Phase reports the current state machine position.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Closed reports whether the session has shut down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// AddPlayer seats p. sink may be nil for a player who is not connected.
func (s *Session) AddPlayer(p *game.Player, sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return game.NotFound("match not found")
	}
	if s.phase != PhaseWaiting {
		return game.Invalid("match already started")
	}
	seat := -1
	for i, q := range s.m.Players {
		if q == nil && seat < 0 {
			seat = i
		}
		if q != nil && q.ID == p.ID {
			return game.Invalid("already in this match")
		}
	}
	if seat < 0 {
		return game.Invalid("match is full")
	}
	s.m.Players[seat] = p
	if sink != nil {
		s.sinks[p.ID] = sink
	}
	for _, q := range s.m.Players {
		if q != nil {
			s.emitLocked(q.ID, Event{Type: EventPlayerJoined, Actor: p.ID, Name: p.Name})
		}
	}
	s.log.Info().Str("player", p.ID).Str("name", p.Name).Bool("bot", p.Bot).Msg("player seated")
	return nil
}

// Ready reports whether both seats are filled.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Players[0] != nil && s.m.Players[1] != nil
}

// Start loads chip totals, picks a word and a starting holder, deals and
// opens the first turn.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return game.NotFound("match not found")
	}
	if s.phase != PhaseWaiting || s.m.Players[0] == nil || s.m.Players[1] == nil {
		s.mu.Unlock()
		return game.Invalid("match needs two players to start")
	}
	seats := s.m.Players
	s.mu.Unlock()

	totals := s.loadChips(ctx, seats)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.phase != PhaseWaiting {
		return game.Invalid("match already started")
	}
	for i, p := range s.m.Players {
		p.Chips = totals[i]
	}
	s.m.Target = s.pickTarget()
	s.startRoundLocked()
	s.log.Info().
		Str("p0", s.m.Players[0].ID).
		Str("p1", s.m.Players[1].ID).
		Msg("match started")
	return nil
}

// loadChips reads both durable totals concurrently. Failures read as zero.
func (s *Session) loadChips(ctx context.Context, seats [2]*game.Player) [2]int {
	var totals [2]int
	if s.chips == nil {
		return totals
	}
	ctx, cancel := context.WithTimeout(ctx, chipTimeout)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)
	for i, p := range seats {
		if p.Bot || p.Guest || p.Identity == "" {
			continue
		}
		g.Go(func() error {
			n, err := s.chips.Chips(gCtx, p.Identity)
			if err != nil {
				return fmt.Errorf("load chips for %s: %w", p.Identity, err)
			}
			totals[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Warn().Err(err).Msg("chip totals unavailable")
	}
	return totals
}

func (s *Session) pickTarget() string {
	if s.words == nil {
		return "CRANE"
	}
	return strings.ToUpper(s.words.RandomAnswer())
}

// startRoundLocked deals and opens turn one of a fresh round.
func (s *Session) startRoundLocked() {
	m := s.m
	m.Seq = 1
	m.Holder = s.rng.IntN(2)
	for _, p := range m.Players {
		p.Hand = cards.Fill(p.Hand, m.HandSize, s.rng)
	}
	s.chain, s.card = nil, ""
	s.phase = PhaseSelect
	s.rematch = nil
	s.hints = make(map[string][]game.Hint)
	s.idle = 0
	for _, p := range m.Players {
		st := s.viewLocked(p.ID)
		s.emitLocked(p.ID, Event{Type: EventMatchStarted, Holder: m.HolderPlayer().ID, State: &st})
	}
	s.beginTurnLocked()
}

// beginTurnLocked tops up the holder's hand, starts the turn timer and
// tells both players whose turn it is.
func (s *Session) beginTurnLocked() {
	m := s.m
	holder := m.HolderPlayer()
	holder.Hand = cards.Fill(holder.Hand, m.HandSize, s.rng)

	d := s.cfg.TurnTimeout
	if len(m.Consume(holder.ID, game.TriggerTurnStart)) > 0 {
		d /= 2
	}
	m.Sweep()
	s.armTurnTimerLocked(d)

	for _, p := range m.Players {
		st := s.viewLocked(p.ID)
		ev := Event{Type: EventTurnChanged, Holder: holder.ID, State: &st}
		if !s.deadline.IsZero() {
			dl := s.deadline
			ev.Deadline = &dl
		}
		s.emitLocked(p.ID, ev)
	}
}

func (s *Session) armTurnTimerLocked(d time.Duration) {
	s.stopTurnTimerLocked()
	if d <= 0 {
		return
	}
	seq := s.m.Seq
	s.deadline = time.Now().Add(d)
	s.turnTimer = time.AfterFunc(d, func() { s.onTurnTimeout(seq) })
}

func (s *Session) stopTurnTimerLocked() {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
	s.deadline = time.Time{}
}

// onTurnTimeout fires from the timer goroutine. Timers for a turn that has
// already moved on are ignored.
func (s *Session) onTurnTimeout(seq int) {
	defer s.recoverPanic("turn timeout")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.m.Over || seq != s.m.Seq {
		return
	}
	if s.phase != PhaseSelect && s.phase != PhaseGuess {
		return
	}
	holder := s.m.HolderPlayer()
	s.log.Info().Str("player", holder.ID).Str("policy", string(s.cfg.TimeoutPolicy)).Msg("turn timed out")
	s.emitLocked(holder.ID, ErrorEvent("time is up"))
	if s.cfg.TimeoutPolicy == PolicyForfeit {
		s.finishLocked(s.m.OpponentID(holder.ID))
		return
	}
	s.idle++
	if s.idle >= s.cfg.IdleTurns {
		s.log.Info().Int("turns", s.idle).Msg("nobody is guessing; ending match")
		s.finishLocked("")
		return
	}
	s.advanceLocked()
}

// checkTurnLocked validates that id may act right now.
func (s *Session) checkTurnLocked(id string) error {
	switch {
	case s.closed:
		return game.NotFound("match not found")
	case s.m.Player(id) == nil:
		return game.NotFound("player not in this match")
	case s.phase == PhaseWaiting:
		return game.Invalid("match has not started")
	case s.m.Over:
		return game.Invalid("match is over")
	case !s.m.IsHolder(id):
		return game.Invalid("not your turn")
	}
	return nil
}

// SelectCard plays a card from id's hand. cardID is a card id or "slot:N";
// an empty cardID declines to play a card this turn.
func (s *Session) SelectCard(id, cardID string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverInto(&err)
	if err := s.checkTurnLocked(id); err != nil {
		return err
	}
	if s.phase != PhaseSelect {
		return game.Invalid("a card was already chosen this turn")
	}
	return s.selectLocked(id, cardID)
}

func (s *Session) selectLocked(id, raw string) error {
	m := s.m
	p := m.Player(id)
	if raw == "" {
		s.card = ""
		s.phase = PhaseGuess
		s.emitLocked(id, Event{Type: EventCardSelected})
		return nil
	}
	if m.Active(game.EffectLock, id) {
		return game.Invalid("your cards are locked this turn")
	}
	idx, ok := handIndex(p.Hand, raw)
	if !ok {
		return game.Invalid("that card is not in your hand")
	}
	cid := p.Hand[idx]
	if cid == p.Blocked {
		return game.Invalid("that card is blocked this turn")
	}
	c, ok := cards.Lookup(cid)
	if !ok {
		return game.Invalid("unknown card")
	}
	p.Hand = append(p.Hand[:idx:idx], p.Hand[idx+1:]...)
	s.emitLocked(id, Event{Type: EventCardSelected, Card: &c})

	switch c.Timing {
	case cards.Modifier:
		s.chain = append(s.chain, cid)
	case cards.OnSelect:
		ann := cards.ResolveChain(append(s.chain, cid), cid, s.rng)
		s.announceLocked(id, cid, ann)
		out := cards.TriggerOnSelect(m, id, cid, s.rng)
		s.reportSelectLocked(id, out)
		s.chain, s.card = nil, ""
		s.phase = PhaseGuess
		s.broadcastStateLocked()
	default:
		if cid == cards.Mirror {
			if copied, ok := cards.ResolveMirror(cards.MatchLookup(m), m.OpponentID, id); ok {
				m.Mirrored[id] = copied
			} else {
				delete(m.Mirrored, id)
				s.log.Debug().Str("player", id).Msg("mirror has nothing to copy")
			}
		}
		s.card = cid
		s.phase = PhaseGuess
	}
	return nil
}

func handIndex(hand []game.CardID, raw string) (int, bool) {
	if n, ok := strings.CutPrefix(raw, "slot:"); ok {
		i, err := strconv.Atoi(n)
		if err != nil || i < 0 || i >= len(hand) {
			return 0, false
		}
		return i, true
	}
	for i, c := range hand {
		if c == game.CardID(raw) {
			return i, true
		}
	}
	return 0, false
}

// announceLocked records the play and tells both sides what they may know.
func (s *Session) announceLocked(actor string, real game.CardID, ann cards.Announcement) {
	s.m.LastPlayed[actor] = game.PlayRecord{Card: real, Shown: ann.Shown, Hidden: ann.Hidden, Seq: s.m.Seq}
	if c, ok := cards.Lookup(real); ok {
		s.emitLocked(actor, Event{Type: EventCardPlayed, Actor: actor, Card: &c})
	}
	if ann.Hidden {
		return
	}
	if c, ok := cards.Lookup(ann.Shown); ok {
		s.emitLocked(s.m.OpponentID(actor), Event{Type: EventCardPlayed, Actor: actor, Card: &c})
	}
}

func (s *Session) reportSelectLocked(actor string, out cards.SelectOutcome) {
	if out.Revealed != nil {
		s.emitLocked(actor, Event{Type: EventHandRevealed, Actor: s.m.OpponentID(actor), Hand: out.Revealed})
	}
}

// SubmitGuess resolves id's guess. A non-empty cardID while no card has been
// chosen selects it first, atomically with the guess.
func (s *Session) SubmitGuess(id, raw, cardID string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverInto(&err)
	if err := s.checkTurnLocked(id); err != nil {
		return err
	}
	guess, err := game.NormalizeGuess(raw)
	if err != nil {
		return err
	}
	if s.cfg.StrictGuesses && s.words != nil && !s.words.IsAllowed(guess) {
		return game.Invalid("%s is not in the word list", guess)
	}
	switch s.phase {
	case PhaseSelect:
		if err := s.selectLocked(id, cardID); err != nil {
			return err
		}
		if s.phase == PhaseSelect {
			// Only a modifier was chosen; nothing left to wrap.
			s.phase = PhaseGuess
		}
	case PhaseGuess:
		if cardID != "" && game.CardID(cardID) != s.card {
			return game.Invalid("a card was already chosen this turn")
		}
	default:
		return game.Invalid("not accepting guesses right now")
	}
	s.resolveLocked(id, guess)
	return nil
}

func (s *Session) resolveLocked(actor, guess string) {
	m := s.m
	s.phase = PhaseResolving
	s.stopTurnTimerLocked()
	s.idle = 0

	if s.card != "" {
		ann := cards.ResolveChain(append(s.chain, s.card), s.card, s.rng)
		s.announceLocked(actor, s.card, ann)
		out := cards.TriggerOnGuess(m, actor, s.card, s.rng)
		if out.Copied != "" {
			s.log.Debug().Str("player", actor).Str("copied", string(out.Copied)).Msg("mirror resolved")
		}
		s.reportSelectLocked(actor, out.Select)
		if out.Hint != nil {
			// The hint stays in the actor's snapshot, so a player who
			// misses the event still gets it on reconnect.
			s.hints[actor] = append(s.hints[actor], *out.Hint)
			m.Consume(actor, game.TriggerDelivered)
			s.emitLocked(actor, Event{Type: EventHint, Hint: out.Hint})
		}
		if out.InstantWin {
			s.log.Info().Str("player", actor).Msg("instant win")
			s.finishLocked(actor)
			return
		}
	}

	fb := game.Score(guess, m.Target)
	row := game.Row{
		Guesser:          actor,
		Letters:          guess,
		Feedback:         fb,
		GuesserFeedback:  cards.TriggerOnFeedback(m, actor, fb, false, s.rng),
		OpponentFeedback: cards.TriggerOnFeedback(m, actor, fb, true, s.rng),
		LettersHidden:    m.Active(game.EffectHiddenGuess, actor),
		FeedbackHidden:   m.Active(game.EffectHiddenFeedback, actor),
		SelfHidden:       m.Active(game.EffectSelfBlind, actor),
		Seq:              m.Seq,
	}
	m.Rows = append(m.Rows, row)
	m.Consume(actor, game.TriggerGuess)

	for _, p := range m.Players {
		rv := rowFor(row, p.ID, false)
		s.emitLocked(p.ID, Event{Type: EventGuessSubmitted, Actor: actor, Row: &rv})
	}

	switch {
	case game.AllCorrect(fb):
		s.finishLocked(actor)
	case len(m.Rows) >= m.MaxRows:
		s.finishLocked("")
	default:
		s.advanceLocked()
	}
}

// advanceLocked ends the holder's turn and opens the next one.
func (s *Session) advanceLocked() {
	m := s.m
	s.stopTurnTimerLocked()
	holder := m.HolderPlayer()
	m.Consume(holder.ID, game.TriggerTurn)
	holder.Blocked = ""
	extra := len(m.Consume(holder.ID, game.TriggerAdvance)) > 0
	m.Sweep()
	m.Seq++
	if !extra {
		m.Holder = 1 - m.Holder
	}
	s.chain, s.card = nil, ""
	s.phase = PhaseSelect
	s.beginTurnLocked()
}

// finishLocked ends the match. winner is empty for a draw.
func (s *Session) finishLocked(winner string) {
	m := s.m
	s.stopTurnTimerLocked()
	m.Over = true
	m.Winner = winner
	s.phase = PhaseOver
	s.chain, s.card = nil, ""

	changes := s.settleChipsLocked(winner)
	for _, p := range m.Players {
		st := s.viewLocked(p.ID)
		ev := Event{
			Type:     EventMatchOver,
			Code:     s.code,
			PlayerID: p.ID,
			Winner:   winner,
			Draw:     winner == "",
			Target:   m.Target,
			Chips:    changes[p.ID],
			State:    &st,
		}
		s.deliverResultLocked(p, ev)
	}
	s.log.Info().Str("winner", winner).Int("rows", len(m.Rows)).Msg("match over")

	s.rematch = make(map[string]bool)
	for _, p := range m.Players {
		if p.Bot {
			s.rematch[p.ID] = true
		}
	}
	if s.closeTimer != nil {
		s.closeTimer.Stop()
	}
	s.closeTimer = time.AfterFunc(s.cfg.RematchWindow, s.expireRematch)
}

// settleChipsLocked scores chip changes for account holders and persists
// them off the session lock. Draws leave totals alone.
func (s *Session) settleChipsLocked(winner string) map[string]*ChipChange {
	out := make(map[string]*ChipChange)
	deltas := make(map[string]int)
	for _, p := range s.m.Players {
		if p.Bot || p.Guest || p.Identity == "" {
			continue
		}
		cc := &ChipChange{Before: p.Chips, After: p.Chips}
		out[p.ID] = cc
		if winner == "" {
			continue
		}
		won := p.ID == winner
		n := s.m.GuessCount(p.ID)
		if won {
			n = len(s.m.Rows)
		}
		cc.After = game.ScoreChips(won, n, p.Chips)
		p.Chips = cc.After
		if delta := cc.After - cc.Before; delta != 0 {
			deltas[p.Identity] = delta
		}
	}
	if len(deltas) > 0 && s.chips != nil {
		go s.persistChips(deltas)
	}
	return out
}

func (s *Session) persistChips(deltas map[string]int) {
	defer s.recoverPanic("persist chips")
	for identity, delta := range deltas {
		ctx, cancel := context.WithTimeout(context.Background(), chipTimeout)
		if _, err := s.chips.AddChips(ctx, identity, delta); err != nil {
			s.log.Warn().Err(err).Str("identity", identity).Int("delta", delta).Msg("persist chips")
		}
		cancel()
	}
}

// deliverResultLocked sends a match_over event or hands it to the
// reconnection ledger.
func (s *Session) deliverResultLocked(p *game.Player, ev Event) {
	if sink := s.sinks[p.ID]; sink != nil && sink.Send(ev) {
		return
	}
	if p.Bot || p.Identity == "" || s.onUndelivered == nil {
		return
	}
	s.log.Info().Str("identity", p.Identity).Msg("holding result for reconnect")
	s.onUndelivered(p.Identity, ev)
}

func (s *Session) expireRematch() {
	defer s.recoverPanic("rematch window")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseOver {
		s.closeLocked()
	}
}

// RequestRematch records id's vote. With both votes in, the session starts
// a new round in place.
func (s *Session) RequestRematch(id string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverInto(&err)
	if s.closed {
		return game.NotFound("match not found")
	}
	if s.m.Player(id) == nil {
		return game.NotFound("player not in this match")
	}
	if s.phase != PhaseOver {
		return game.Invalid("match is still in progress")
	}
	s.rematch[id] = true
	for _, p := range s.m.Players {
		s.emitLocked(p.ID, Event{Type: EventRematchRequested, Actor: id})
	}
	if len(s.rematch) < 2 {
		return nil
	}
	if s.closeTimer != nil {
		s.closeTimer.Stop()
		s.closeTimer = nil
	}
	s.m.Reset(s.pickTarget())
	s.startRoundLocked()
	s.log.Info().Msg("rematch started")
	return nil
}

// Leave removes id from the match. Leaving a live match forfeits it; in
// every case the session then closes.
func (s *Session) Leave(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.m.Player(id) == nil {
		return game.NotFound("player not in this match")
	}
	if s.phase != PhaseWaiting && !s.m.Over {
		s.log.Info().Str("player", id).Msg("player left; forfeit")
		s.finishLocked(s.m.OpponentID(id))
	}
	delete(s.sinks, id)
	s.closeLocked()
	return nil
}

// Attach binds a (re)connected sink to id and sends it a fresh snapshot.
func (s *Session) Attach(id string, sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return game.NotFound("match not found")
	}
	if s.m.Player(id) == nil {
		return game.NotFound("player not in this match")
	}
	s.sinks[id] = sink
	st := s.viewLocked(id)
	sink.Send(Event{Type: EventState, Code: s.code, PlayerID: id, State: &st})
	return nil
}

// Detach drops id's sink. The match carries on; the turn timer keeps it
// moving.
func (s *Session) Detach(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sinks, id)
}

// View returns id's redacted snapshot.
func (s *Session) View(id string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return View{}, game.NotFound("match not found")
	}
	if s.m.Player(id) == nil {
		return View{}, game.NotFound("player not in this match")
	}
	return s.viewLocked(id), nil
}

// Close shuts the session down without a result.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	s.stopTurnTimerLocked()
	if s.closeTimer != nil {
		s.closeTimer.Stop()
		s.closeTimer = nil
	}
	for _, b := range s.bots {
		b.stop()
	}
	s.log.Debug().Msg("session closed")
	if s.onClose != nil {
		go s.onClose(s.code)
	}
}

func (s *Session) emitLocked(id string, ev Event) {
	if id == "" {
		return
	}
	sink := s.sinks[id]
	if sink == nil {
		return
	}
	if ev.Code == "" {
		ev.Code = s.code
	}
	if ev.PlayerID == "" {
		ev.PlayerID = id
	}
	if !sink.Send(ev) {
		s.log.Warn().Str("player", id).Str("event", string(ev.Type)).Msg("sink full; event dropped")
	}
}

func (s *Session) broadcastStateLocked() {
	for _, p := range s.m.Players {
		st := s.viewLocked(p.ID)
		s.emitLocked(p.ID, Event{Type: EventState, State: &st})
	}
}

var errInternal = errors.New("internal error")

func (s *Session) recoverInto(err *error) {
	if r := recover(); r != nil {
		s.log.Error().Interface("panic", r).Msg("recovered panic in session")
		*err = errInternal
	}
}

func (s *Session) recoverPanic(where string) {
	if r := recover(); r != nil {
		s.log.Error().Interface("panic", r).Str("where", where).Msg("recovered panic in session")
	}
}
