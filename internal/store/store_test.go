package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/wordduel/internal/game"
	"github.com/robalobadob/wordduel/internal/session"
)

func TestMatchesRegistry(t *testing.T) {
	m := NewMatches()
	s := session.New("QWE234", session.Options{Logger: zerolog.Nop()})
	m.Put(s)

	got, err := m.Get("QWE234")
	if err != nil || got != s {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if !m.Has("QWE234") || m.Len() != 1 {
		t.Fatal("registry lost the session")
	}
	m.Delete("QWE234")
	if _, err := m.Get("QWE234"); !errors.Is(err, game.ErrNotFound) {
		t.Fatalf("Get after delete: %v", err)
	}
}

func TestPendingTakeOnce(t *testing.T) {
	p := NewPending(time.Minute, zerolog.Nop())
	ev := session.Event{Type: session.EventMatchOver, Winner: "a"}
	p.Hold("user-1", ev)

	got, ok := p.Take("user-1")
	if !ok || got.Winner != "a" {
		t.Fatalf("Take = %+v, %v", got, ok)
	}
	if _, ok := p.Take("user-1"); ok {
		t.Fatal("result delivered twice")
	}
}

func TestPendingNewerReplaces(t *testing.T) {
	p := NewPending(time.Minute, zerolog.Nop())
	p.Hold("user-1", session.Event{Code: "OLD111"})
	p.Hold("user-1", session.Event{Code: "NEW222"})
	if got, _ := p.Take("user-1"); got.Code != "NEW222" {
		t.Fatalf("held %q", got.Code)
	}
}

func TestPendingIgnoresAnonymous(t *testing.T) {
	p := NewPending(time.Minute, zerolog.Nop())
	p.Hold("", session.Event{})
	if p.Len() != 0 {
		t.Fatal("held a result for an empty identity")
	}
}

func TestPendingExpiry(t *testing.T) {
	p := NewPending(time.Minute, zerolog.Nop())
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return base }
	p.Hold("old", session.Event{})
	p.now = func() time.Time { return base.Add(50 * time.Second) }
	p.Hold("fresh", session.Event{})

	if n := p.Sweep(base.Add(90 * time.Second)); n != 1 {
		t.Fatalf("swept %d", n)
	}
	if _, ok := p.Take("old"); ok {
		t.Fatal("expired result survived the sweep")
	}

	p.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := p.Take("fresh"); ok {
		t.Fatal("stale result returned before the reaper ran")
	}
}

func TestPendingRunStops(t *testing.T) {
	p := NewPending(20*time.Millisecond, zerolog.Nop())
	p.Hold("user-1", session.Event{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for p.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if p.Len() != 0 {
		t.Fatal("reaper never swept")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run ignored cancellation")
	}
}
