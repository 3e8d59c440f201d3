package words

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestBundled(t *testing.T) {
	src, err := Init(context.Background(), Options{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if src.Origin() != "bundled" {
		t.Fatalf("origin = %s", src.Origin())
	}
	for _, w := range []string{"crane", "SLATE", "Allot"} {
		if !src.IsAllowed(w) {
			t.Errorf("%s not allowed", w)
		}
	}
	if src.IsAllowed("ZZZZZ") || src.IsAllowed("CRANES") {
		t.Error("junk accepted")
	}
	if src.IsAnswer("ALLOT") || !src.IsAnswer("crane") {
		t.Error("answer set mixed up with guesses")
	}
	ans, allowed := src.Stats()
	if ans == 0 || allowed <= ans {
		t.Fatalf("stats = %d, %d", ans, allowed)
	}
	for i := 0; i < 20; i++ {
		if w := src.RandomAnswer(); !src.IsAnswer(w) {
			t.Fatalf("RandomAnswer() = %q", w)
		}
	}
}

func TestFiles(t *testing.T) {
	answers := writeFile(t, "answers.txt", "crane\n  Slate \nnope\nsix-ch\n")
	allowed := writeFile(t, "allowed.txt", "allot\nllama\n")

	src, err := Init(context.Background(), Options{AnswersFile: answers, AllowedFile: allowed}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"CRANE", "SLATE"}, src.Answers()); diff != "" {
		t.Errorf("answers (-want +got):\n%s", diff)
	}
	if !src.IsAllowed("LLAMA") || !src.IsAllowed("crane") {
		t.Error("allowed set incomplete")
	}

	only, err := Init(context.Background(), Options{AllowedFile: allowed}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"ALLOT", "LLAMA"}, only.Answers()); diff != "" {
		t.Errorf("allowed-only answers (-want +got):\n%s", diff)
	}
}

func TestMissingFileFallsBack(t *testing.T) {
	src, err := Init(context.Background(), Options{AllowedFile: filepath.Join(t.TempDir(), "absent.txt")}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if src.Origin() != "bundled" {
		t.Fatalf("origin = %s", src.Origin())
	}
}

func TestRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("brine\ncrony\ntrace\n"))
	}))
	defer srv.Close()

	src, err := Init(context.Background(), Options{URL: srv.URL}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if src.Origin() != "remote" {
		t.Fatalf("origin = %s", src.Origin())
	}
	if diff := cmp.Diff([]string{"BRINE", "CRONY", "TRACE"}, src.Answers()); diff != "" {
		t.Errorf("answers (-want +got):\n%s", diff)
	}
}

func TestRemoteFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	answers := writeFile(t, "answers.txt", "crane\n")
	src, err := Init(context.Background(), Options{URL: srv.URL, AnswersFile: answers}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if src.Origin() != "files" {
		t.Fatalf("origin = %s", src.Origin())
	}
}
