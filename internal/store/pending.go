// internal/store/pending.go
//
// Reconnection ledger: game-over results that could not be delivered,
// held per durable identity until the player reconnects or the entry ages
// out.

package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/wordduel/internal/session"
)

// DefaultRetention is how long an undelivered result is kept.
const DefaultRetention = 10 * time.Minute

// PendingResult is one held result.
type PendingResult struct {
	Identity string
	Event    session.Event
	HeldAt   time.Time
}

// Pending holds at most one result per identity; a newer result replaces
// an older one.
type Pending struct {
	mu        sync.Mutex
	items     map[string]PendingResult
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

func NewPending(retention time.Duration, logger zerolog.Logger) *Pending {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Pending{
		items:     make(map[string]PendingResult),
		retention: retention,
		now:       time.Now,
		log:       logger.With().Str("component", "pending").Logger(),
	}
}

// Hold stores ev for identity.
func (p *Pending) Hold(identity string, ev session.Event) {
	if identity == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[identity] = PendingResult{Identity: identity, Event: ev, HeldAt: p.now()}
}

// Take removes and returns identity's held result. A result is returned at
// most once.
func (p *Pending) Take(identity string) (session.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.items[identity]
	if !ok {
		return session.Event{}, false
	}
	delete(p.items, identity)
	if p.now().Sub(r.HeldAt) > p.retention {
		return session.Event{}, false
	}
	return r.Event, true
}

// Sweep drops entries held longer than the retention window and returns how
// many were removed.
func (p *Pending) Sweep(now time.Time) int {
	cutoff := now.Add(-p.retention)
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for id, r := range p.items {
		if r.HeldAt.Before(cutoff) {
			delete(p.items, id)
			n++
		}
	}
	return n
}

// Len counts held results.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Run sweeps every half retention until ctx is done.
func (p *Pending) Run(ctx context.Context) {
	ticker := time.NewTicker(p.retention / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := p.Sweep(now); n > 0 {
				p.log.Debug().Int("expired", n).Msg("dropped stale results")
			}
		}
	}
}
