// internal/matchmaking/coordinator.go
//
// Matchmaking coordinator: FIFO queues with bot fallback, private matches,
// and the identity bookkeeping that keeps one identity in at most one live
// match.
//
// Lock order is coordinator then session. Sessions never call back into the
// coordinator while holding their own lock (OnClose runs on a goroutine and
// OnUndelivered only touches the pending ledger). Nothing that waits on
// storage runs under the coordinator lock: sessions are started after it is
// released and bindings are mirrored by a background writer.

package matchmaking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/robalobadob/wordduel/internal/game"
	"github.com/robalobadob/wordduel/internal/session"
	"github.com/robalobadob/wordduel/internal/store"
)

// Queue is a matchmaking queue kind.
type Queue string

const (
	QueueRanked Queue = "ranked"
	QueueCasual Queue = "casual"

	// Private matches are scored like casual ones: no chips move.
	privateQueue = QueueCasual
)

const (
	DefaultBotWait = 20 * time.Second
	codeAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength     = 6
	maxNameLen     = 24
	bookTimeout    = 3 * time.Second
)

// Identity is who is asking. Key is an account id, or a connection id for
// guests.
type Identity struct {
	Key   string
	Guest bool
}

// Entry is one waiting player.
type Entry struct {
	Identity Identity
	Name     string
	Queue    Queue
	At       time.Time
}

// MatchBook mirrors identity bindings to durable storage.
type MatchBook interface {
	Bind(ctx context.Context, identity, code string) error
	Unbind(ctx context.Context, identity string) error
}

// Config tunes the coordinator.
type Config struct {
	BotWait time.Duration
	Session session.Config
}

// Options carries the coordinator's collaborators.
type Options struct {
	Config  Config
	Matches *store.Matches
	Pending *store.Pending
	Words   session.WordSource
	Chips   session.ChipStore // optional
	Book    MatchBook         // optional
	Logger  zerolog.Logger
}

type seat struct {
	code     string
	playerID string
	guest    bool
}

// Coordinator pairs players and owns the identity maps.
type Coordinator struct {
	mu       sync.Mutex
	queues   map[Queue][]*Entry
	timers   map[string]*time.Timer
	bindings map[string]seat
	sinks    map[string]session.Sink

	cfg     Config
	matches *store.Matches
	pending *store.Pending
	words   session.WordSource
	chips   session.ChipStore
	book    *bookWriter // nil without a MatchBook
	log     zerolog.Logger
	closed  bool
}

func New(opts Options) *Coordinator {
	cfg := opts.Config
	if cfg.BotWait <= 0 {
		cfg.BotWait = DefaultBotWait
	}
	matches := opts.Matches
	if matches == nil {
		matches = store.NewMatches()
	}
	pending := opts.Pending
	if pending == nil {
		pending = store.NewPending(store.DefaultRetention, opts.Logger)
	}
	c := &Coordinator{
		queues:   map[Queue][]*Entry{QueueRanked: nil, QueueCasual: nil},
		timers:   make(map[string]*time.Timer),
		bindings: make(map[string]seat),
		sinks:    make(map[string]session.Sink),
		cfg:      cfg,
		matches:  matches,
		pending:  pending,
		words:    opts.Words,
		chips:    opts.Chips,
		log:      opts.Logger.With().Str("component", "matchmaking").Logger(),
	}
	if opts.Book != nil {
		c.book = newBookWriter(opts.Book, c.log)
	}
	return c
}

// Connect registers sink for id. A reconnecting identity is re-attached to
// its live match, and a held result is delivered exactly once.
func (c *Coordinator) Connect(id Identity, sink session.Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks[id.Key] = sink
	if b, ok := c.bindings[id.Key]; ok {
		if s, err := c.matches.Get(b.code); err == nil {
			if err := s.Attach(b.playerID, sink); err != nil {
				c.log.Debug().Err(err).Str("identity", id.Key).Msg("reattach failed")
			}
		}
	}
	if id.Guest {
		return
	}
	if ev, ok := c.pending.Take(id.Key); ok {
		if !sink.Send(ev) {
			c.pending.Hold(id.Key, ev)
			return
		}
		c.log.Info().Str("identity", id.Key).Str("match", ev.Code).Msg("delivered held result")
	}
}

// Disconnect drops sink for id if it is still the registered one. Queued
// entries are cancelled. A guest cannot come back, so a guest's live match
// is forfeited; an account holder's match carries on detached.
func (c *Coordinator) Disconnect(id Identity, sink session.Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.sinks[id.Key]; !ok || cur != sink {
		return
	}
	delete(c.sinks, id.Key)
	c.dequeueLocked(id.Key)
	b, ok := c.bindings[id.Key]
	if !ok {
		return
	}
	s, err := c.matches.Get(b.code)
	if err != nil {
		return
	}
	if id.Guest {
		_ = s.Leave(b.playerID)
		c.unbindLocked(id.Key)
		return
	}
	s.Detach(b.playerID)
}

// Enqueue joins q. It pairs immediately with the head of the queue or
// waits for a partner until the bot fallback fires.
func (c *Coordinator) Enqueue(id Identity, name string, q Queue) error {
	if q != QueueRanked && q != QueueCasual {
		return game.Invalid("unknown queue %q", q)
	}
	if q == QueueRanked && id.Guest {
		return game.Invalid("sign in to play ranked")
	}
	s, err := c.enqueue(id, name, q)
	if err != nil || s == nil {
		return err
	}
	return c.start(s)
}

// enqueue returns the paired session when id was matched at once.
func (c *Coordinator) enqueue(id Identity, name string, q Queue) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, game.Invalid("server is shutting down")
	}
	if err := c.checkFreeLocked(id); err != nil {
		return nil, err
	}
	e := &Entry{Identity: id, Name: cleanName(name), Queue: q, At: time.Now()}

	if waiting := c.queues[q]; len(waiting) > 0 {
		head := waiting[0]
		c.queues[q] = waiting[1:]
		c.stopTimerLocked(head.Identity.Key)
		s, err := c.pairLocked(head, e)
		if err != nil {
			c.sendLocked(head.Identity.Key, session.ErrorEvent(game.Message(err)))
			return nil, err
		}
		return s, nil
	}

	c.queues[q] = append(c.queues[q], e)
	key := id.Key
	c.timers[key] = time.AfterFunc(c.cfg.BotWait, func() { c.botFallback(e) })
	c.sendLocked(key, session.Event{Type: session.EventQueued, Queue: string(q)})
	c.log.Info().Str("identity", key).Str("queue", string(q)).Msg("queued")
	return nil, nil
}

// Cancel removes id from whichever queue it waits in.
func (c *Coordinator) Cancel(id Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dequeueLocked(id.Key) {
		return game.NotFound("not queued")
	}
	return nil
}

// CreateMatch opens a private match and returns its code.
func (c *Coordinator) CreateMatch(id Identity, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", game.Invalid("server is shutting down")
	}
	if err := c.checkFreeLocked(id); err != nil {
		return "", err
	}
	s, err := c.newSessionLocked()
	if err != nil {
		return "", err
	}
	pid, err := c.seatLocked(s, id, cleanName(name), privateQueue)
	if err != nil {
		s.Close()
		return "", err
	}
	c.sendLocked(id.Key, session.Event{Type: session.EventMatchCreated, Code: s.Code(), PlayerID: pid})
	c.log.Info().Str("identity", id.Key).Str("match", s.Code()).Msg("private match created")
	return s.Code(), nil
}

// JoinMatch takes the second seat of a private match and starts it.
func (c *Coordinator) JoinMatch(id Identity, name, code string) error {
	s, err := c.join(id, name, code)
	if err != nil {
		return err
	}
	if !s.Ready() {
		return nil
	}
	return c.start(s)
}

func (c *Coordinator) join(id Identity, name, code string) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkFreeLocked(id); err != nil {
		return nil, err
	}
	s, err := c.matches.Get(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	if _, err := c.seatLocked(s, id, cleanName(name), privateQueue); err != nil {
		return nil, err
	}
	return s, nil
}

// Leave gives up id's seat. A live match is forfeited.
func (c *Coordinator) Leave(id Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.bindings[id.Key]
	if !ok {
		return game.NotFound("not in a match")
	}
	c.unbindLocked(id.Key)
	s, err := c.matches.Get(b.code)
	if err != nil {
		return nil
	}
	return s.Leave(b.playerID)
}

// SelectCard routes a card intent to the caller's match.
func (c *Coordinator) SelectCard(id Identity, code, playerID, cardID string) error {
	s, pid, err := c.seatFor(id, code, playerID)
	if err != nil {
		return err
	}
	return s.SelectCard(pid, cardID)
}

// SubmitGuess routes a guess intent to the caller's match.
func (c *Coordinator) SubmitGuess(id Identity, code, playerID, guess, cardID string) error {
	s, pid, err := c.seatFor(id, code, playerID)
	if err != nil {
		return err
	}
	return s.SubmitGuess(pid, guess, cardID)
}

// RequestRematch routes a rematch vote.
func (c *Coordinator) RequestRematch(id Identity, code, playerID string) error {
	s, pid, err := c.seatFor(id, code, playerID)
	if err != nil {
		return err
	}
	return s.RequestRematch(pid)
}

// Bound returns id's match code and seat, if any.
func (c *Coordinator) Bound(id Identity) (code, playerID string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.bindings[id.Key]
	return b.code, b.playerID, ok
}

// Waiting counts entries in q.
func (c *Coordinator) Waiting(q Queue) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queues[q])
}

// Session exposes a live session by code.
func (c *Coordinator) Session(code string) (*session.Session, error) {
	return c.matches.Get(code)
}

// Close stops queue timers and shuts every live session down.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	for key, t := range c.timers {
		t.Stop()
		delete(c.timers, key)
	}
	for q := range c.queues {
		c.queues[q] = nil
	}
	codes := make(map[string]bool)
	for _, b := range c.bindings {
		codes[b.code] = true
	}
	c.mu.Unlock()

	for code := range codes {
		if s, err := c.matches.Get(code); err == nil {
			s.Close()
		}
	}
	if c.book != nil {
		c.book.stop()
	}
}

// seatFor resolves and authorizes the seat an intent addresses. Empty code
// or playerID default to the caller's binding.
func (c *Coordinator) seatFor(id Identity, code, playerID string) (*session.Session, string, error) {
	c.mu.Lock()
	b, ok := c.bindings[id.Key]
	c.mu.Unlock()
	if !ok {
		return nil, "", game.NotFound("not in a match")
	}
	if code == "" {
		code = b.code
	}
	if playerID == "" {
		playerID = b.playerID
	}
	if !strings.EqualFold(code, b.code) || playerID != b.playerID {
		return nil, "", game.Invalid("you are not seated in that match")
	}
	s, err := c.matches.Get(b.code)
	if err != nil {
		return nil, "", err
	}
	return s, b.playerID, nil
}

// botFallback seats a bot opposite e. A timer that fired after e left the
// queue finds nothing to do, even if the same identity queued again.
func (c *Coordinator) botFallback(e *Entry) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("recovered panic in bot fallback")
		}
	}()
	s, bot := c.seatBot(e)
	if s == nil {
		return
	}
	if err := c.start(s); err != nil {
		return
	}
	c.log.Info().Str("identity", e.Identity.Key).Str("bot", bot).Str("match", s.Code()).Msg("no partner found; playing a bot")
}

func (c *Coordinator) seatBot(e *Entry) (*session.Session, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.removeEntryLocked(e) {
		return nil, ""
	}
	key := e.Identity.Key
	delete(c.timers, key)
	s, err := c.newSessionLocked()
	if err != nil {
		c.sendLocked(key, session.ErrorEvent("could not start a match"))
		c.log.Error().Err(err).Msg("bot fallback")
		return nil, ""
	}
	if _, err := c.seatLocked(s, e.Identity, e.Name, e.Queue); err != nil {
		s.Close()
		c.sendLocked(key, session.ErrorEvent(game.Message(err)))
		return nil, ""
	}
	bot := &game.Player{ID: uuid.NewString(), Name: botName()}
	if err := s.AttachBot(bot); err != nil {
		s.Close()
		c.log.Error().Err(err).Msg("attach bot")
		return nil, ""
	}
	return s, bot.Name
}

// start opens a seated session. It runs without the coordinator lock
// because it reads chip totals from storage.
func (c *Coordinator) start(s *session.Session) error {
	if err := s.Start(context.Background()); err != nil {
		s.Close()
		c.log.Error().Err(err).Str("match", s.Code()).Msg("start match")
		return err
	}
	return nil
}

func (c *Coordinator) pairLocked(a, b *Entry) (*session.Session, error) {
	s, err := c.newSessionLocked()
	if err != nil {
		return nil, err
	}
	for _, e := range []*Entry{a, b} {
		if _, err := c.seatLocked(s, e.Identity, e.Name, e.Queue); err != nil {
			s.Close()
			return nil, err
		}
	}
	c.log.Info().Str("match", s.Code()).Str("a", a.Identity.Key).Str("b", b.Identity.Key).Msg("paired")
	return s, nil
}

func (c *Coordinator) newSessionLocked() (*session.Session, error) {
	code, err := c.newCodeLocked()
	if err != nil {
		return nil, err
	}
	s := session.New(code, session.Options{
		Config:        c.cfg.Session,
		Words:         c.words,
		Chips:         c.chips,
		Logger:        c.log,
		OnClose:       c.onSessionClosed,
		OnUndelivered: c.pending.Hold,
	})
	c.matches.Put(s)
	return s, nil
}

func (c *Coordinator) newCodeLocked() (string, error) {
	for range 8 {
		code, err := gonanoid.Generate(codeAlphabet, codeLength)
		if err != nil {
			return "", fmt.Errorf("generate match code: %w", err)
		}
		if !c.matches.Has(code) {
			return code, nil
		}
	}
	return "", fmt.Errorf("generate match code: too many collisions")
}

// seatLocked adds id to s and records the binding. Only ranked seats of
// account holders move chips.
func (c *Coordinator) seatLocked(s *session.Session, id Identity, name string, q Queue) (string, error) {
	p := &game.Player{ID: uuid.NewString(), Name: name, Guest: id.Guest || q != QueueRanked}
	if !id.Guest {
		p.Identity = id.Key
	}
	if err := s.AddPlayer(p, c.sinks[id.Key]); err != nil {
		return "", err
	}
	c.bindings[id.Key] = seat{code: s.Code(), playerID: p.ID, guest: id.Guest}
	if c.book != nil && !id.Guest {
		c.book.bind(id.Key, s.Code())
	}
	return p.ID, nil
}

// checkFreeLocked rejects an identity that is queued or seated in a live
// match. A seat in a finished match is given up first.
func (c *Coordinator) checkFreeLocked(id Identity) error {
	for _, q := range c.queues {
		for _, e := range q {
			if e.Identity.Key == id.Key {
				return game.Invalid("already queued")
			}
		}
	}
	b, ok := c.bindings[id.Key]
	if !ok {
		return nil
	}
	s, err := c.matches.Get(b.code)
	if err == nil && !s.Closed() {
		if s.Phase() != session.PhaseOver {
			return game.Invalid("already in a match")
		}
		_ = s.Leave(b.playerID)
	}
	c.unbindLocked(id.Key)
	return nil
}

func (c *Coordinator) unbindLocked(key string) {
	b, ok := c.bindings[key]
	if !ok {
		return
	}
	delete(c.bindings, key)
	if c.book != nil && !b.guest {
		c.book.unbind(key)
	}
}

func (c *Coordinator) onSessionClosed(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matches.Delete(code)
	for key, b := range c.bindings {
		if b.code == code {
			c.unbindLocked(key)
		}
	}
	c.log.Debug().Str("match", code).Msg("match removed")
}

func (c *Coordinator) dequeueLocked(key string) bool {
	if c.takeEntryLocked(key) == nil {
		return false
	}
	c.stopTimerLocked(key)
	return true
}

// removeEntryLocked drops e itself from its queue and reports whether it
// was still there.
func (c *Coordinator) removeEntryLocked(e *Entry) bool {
	waiting := c.queues[e.Queue]
	for i, x := range waiting {
		if x == e {
			c.queues[e.Queue] = append(waiting[:i:i], waiting[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Coordinator) takeEntryLocked(key string) *Entry {
	for q, waiting := range c.queues {
		for i, e := range waiting {
			if e.Identity.Key == key {
				c.queues[q] = append(waiting[:i:i], waiting[i+1:]...)
				return e
			}
		}
	}
	return nil
}

func (c *Coordinator) stopTimerLocked(key string) {
	if t, ok := c.timers[key]; ok {
		t.Stop()
		delete(c.timers, key)
	}
}

func (c *Coordinator) sendLocked(key string, ev session.Event) {
	if sink := c.sinks[key]; sink != nil {
		sink.Send(ev)
	}
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Player"
	}
	if r := []rune(name); len(r) > maxNameLen {
		name = string(r[:maxNameLen])
	}
	return name
}

// botName composes a friendly two-word name such as "Brave Otter".
func botName() string {
	return cases.Title(language.English).String(strings.ReplaceAll(petname.Generate(2, "-"), "-", " "))
}
