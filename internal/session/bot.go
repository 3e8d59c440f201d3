// internal/session/bot.go
//
// Bot-turn driver. A bot is an ordinary seat whose sink is read by a
// goroutine instead of a websocket. On its turn it waits a think delay,
// reads its own redacted view, and calls SubmitGuess like any client.

package session

import (
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/wordduel/internal/cards"
	"github.com/robalobadob/wordduel/internal/game"
)

type botDriver struct {
	s     *Session
	id    string
	sink  ChanSink
	think time.Duration
	rng   *rand.Rand
	words WordSource
	log   zerolog.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// AttachBot seats p as a bot and starts its driver.
func (s *Session) AttachBot(p *game.Player) error {
	p.Bot = true
	d := &botDriver{
		s:     s,
		id:    p.ID,
		sink:  NewChanSink(64),
		think: s.cfg.BotThink,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		words: s.words,
		log:   s.log.With().Str("bot", p.ID).Logger(),
		done:  make(chan struct{}),
	}
	if err := s.AddPlayer(p, d.sink); err != nil {
		return err
	}
	s.mu.Lock()
	s.bots = append(s.bots, d)
	s.mu.Unlock()
	go d.run()
	return nil
}

func (d *botDriver) stop() {
	d.stopOnce.Do(func() { close(d.done) })
}

func (d *botDriver) run() {
	defer d.s.recoverPanic("bot driver")
	for {
		select {
		case <-d.done:
			return
		case ev := <-d.sink:
			if ev.Type == EventTurnChanged && ev.Holder == d.id {
				d.act()
			}
		}
	}
}

func (d *botDriver) act() {
	if d.think > 0 {
		t := time.NewTimer(d.think)
		select {
		case <-d.done:
			t.Stop()
			return
		case <-t.C:
		}
	}
	v, err := d.s.View(d.id)
	if err != nil || v.Over || v.Holder != d.id {
		return
	}
	card := ""
	if v.Phase == PhaseSelect {
		card = d.pickCard(v)
	}
	guess := d.pickGuess(v)
	if err := d.s.SubmitGuess(d.id, guess, card); err != nil && card != "" {
		err = d.s.SubmitGuess(d.id, guess, "")
		if err != nil {
			d.log.Debug().Err(err).Msg("bot guess rejected")
		}
	}
}

// Card weights: harmful cards first, then helpful guess cards, then
// one-shot cards. Modifiers are never played on their own.
func cardWeight(c cards.Card) int {
	switch {
	case c.Timing == cards.Modifier:
		return 0
	case c.Tag == cards.Harmful:
		return 3
	case c.Timing == cards.OnGuess:
		return 2
	default:
		return 1
	}
}

// pickCard returns a card to play, or "" for none. Half the time the bot
// plays nothing.
func (d *botDriver) pickCard(v View) string {
	if v.Locked || len(v.Hand) == 0 || d.rng.IntN(2) == 0 {
		return ""
	}
	if v.FaceDown {
		return "slot:" + strconv.Itoa(d.rng.IntN(len(v.Hand)))
	}
	total := 0
	for _, hc := range v.Hand {
		if hc.Card != nil && !hc.Blocked {
			total += cardWeight(*hc.Card)
		}
	}
	if total == 0 {
		return ""
	}
	n := d.rng.IntN(total)
	for _, hc := range v.Hand {
		if hc.Card == nil || hc.Blocked {
			continue
		}
		n -= cardWeight(*hc.Card)
		if n < 0 {
			return string(hc.Card.ID)
		}
	}
	return ""
}

// pickGuess draws from the answers consistent with every row the bot can
// fully see. Scrambled feedback can rule everything out; then any answer
// will do.
func (d *botDriver) pickGuess(v View) string {
	var cands []string
	if d.words != nil {
		cands = candidates(d.words.Answers(), v.Rows)
	}
	if len(cands) > 0 {
		return cands[d.rng.IntN(len(cands))]
	}
	if d.words != nil {
		return d.words.RandomAnswer()
	}
	return "CRANE"
}

func candidates(answers []string, rows []RowView) []string {
	tried := make(map[string]bool, len(rows))
	var known []RowView
	for _, r := range rows {
		if r.Letters == "" || len(r.Feedback) != game.WordLength {
			continue
		}
		tried[r.Letters] = true
		known = append(known, r)
	}
	var out []string
next:
	for _, w := range answers {
		if tried[w] {
			continue
		}
		for _, r := range known {
			if !game.Equal(game.Score(r.Letters, w), r.Feedback) {
				continue next
			}
		}
		out = append(out, w)
	}
	return out
}
