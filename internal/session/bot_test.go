package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/robalobadob/wordduel/internal/cards"
	"github.com/robalobadob/wordduel/internal/game"
)

func TestCandidates(t *testing.T) {
	answers := []string{"CRANE", "SLATE", "CRONY", "TRACE", "BRINE"}
	rows := []RowView{
		{Letters: "SLATE", Feedback: game.Score("SLATE", "CRANE")},
		{LettersHidden: true, Feedback: []game.Mark{game.MarkAbsent}}, // unreadable; ignored
	}
	got := candidates(answers, rows)
	if diff := cmp.Diff([]string{"CRANE"}, got); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
	if got := candidates(answers, nil); len(got) != len(answers) {
		t.Fatalf("no rows should keep every answer, got %v", got)
	}
}

func TestCardWeight(t *testing.T) {
	tests := []struct {
		id   game.CardID
		want int
	}{
		{cards.Bluff, 0},
		{cards.Lockdown, 3},
		{cards.Jam, 3},
		{cards.Cloak, 2},
		{cards.Replenish, 1},
	}
	for _, tc := range tests {
		c, _ := cards.Lookup(tc.id)
		if got := cardWeight(c); got != tc.want {
			t.Errorf("cardWeight(%s) = %d, want %d", tc.id, got, tc.want)
		}
	}
}

func TestBotTakesItsTurn(t *testing.T) {
	human := &recSink{}
	s := New("BOT001", Options{
		Config: Config{TurnTimeout: time.Hour, BotThink: time.Millisecond},
		Words:  testWords,
		Rand:   &scriptRand{},
		Logger: zerolog.Nop(),
	})
	t.Cleanup(s.Close)
	mustOK(t, s.AddPlayer(&game.Player{ID: "a", Name: "Ann", Identity: "user-a"}, human))
	mustOK(t, s.AttachBot(&game.Player{ID: "bot", Name: "Brave Otter"}))
	mustOK(t, s.Start(context.Background()))

	// SLATE against CRANE leaves one consistent answer.
	mustOK(t, s.SubmitGuess("a", "SLATE", ""))
	eventually(t, "bot to win", func() bool {
		v, err := s.View("a")
		return err == nil && v.Over
	})
	if v := view(t, s, "a"); v.Winner != "bot" {
		t.Fatalf("winner = %q", v.Winner)
	}

	// The bot has already voted; one human vote restarts.
	mustOK(t, s.RequestRematch("a"))
	if v := view(t, s, "a"); v.Over || len(v.Rows) != 0 {
		t.Fatalf("rematch did not start: %+v", v)
	}
}
