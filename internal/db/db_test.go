package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "duel.db")}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRebind(t *testing.T) {
	s := &Store{driver: DriverPostgres}
	if got := s.rebind(`UPDATE t SET a = ? WHERE b = ? AND c = ?`); got != `UPDATE t SET a = $1 WHERE b = $2 AND c = $3` {
		t.Fatalf("rebind = %s", got)
	}
	s.driver = DriverSQLite
	if got := s.rebind(`SELECT ?`); got != `SELECT ?` {
		t.Fatalf("sqlite rebind = %s", got)
	}
}

func TestUsers(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "  ann_1 ", "correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if u.Username != "ann_1" {
		t.Fatalf("username = %q", u.Username)
	}
	if _, err := s.CreateUser(ctx, "ANN_1", "another password"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate: %v", err)
	}
	for _, bad := range [][2]string{{"ab", "longenough"}, {"bad name", "longenough"}, {"okname", "short"}} {
		if _, err := s.CreateUser(ctx, bad[0], bad[1]); !errors.Is(err, ErrInvalidSignup) {
			t.Errorf("CreateUser(%q, %q) = %v", bad[0], bad[1], err)
		}
	}

	got, err := s.UserByUsername(ctx, "Ann_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != u.ID || !CheckPassword(got.PasswordHash, "correct horse") || CheckPassword(got.PasswordHash, "wrong") {
		t.Fatalf("loaded user = %+v", got)
	}
	if _, err := s.UserByID(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user: %v", err)
	}
}

func TestChipsFloorAtZero(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	u, err := s.CreateUser(ctx, "bob", "password1")
	if err != nil {
		t.Fatal(err)
	}

	if n, err := s.AddChips(ctx, u.ID, 45); err != nil || n != 45 {
		t.Fatalf("AddChips(+45) = %d, %v", n, err)
	}
	if n, err := s.AddChips(ctx, u.ID, -60); err != nil || n != 0 {
		t.Fatalf("AddChips(-60) = %d, %v", n, err)
	}
	if n, err := s.Chips(ctx, u.ID); err != nil || n != 0 {
		t.Fatalf("Chips = %d, %v", n, err)
	}
	if _, err := s.AddChips(ctx, "ghost", 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown identity: %v", err)
	}
}

func TestBindings(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.Bind(ctx, "user-a", "ABC234"); err != nil {
		t.Fatal(err)
	}
	if err := s.Bind(ctx, "user-a", "XYZ789"); err != nil {
		t.Fatal(err)
	}
	if err := s.Bind(ctx, "user-b", "XYZ789"); err != nil {
		t.Fatal(err)
	}
	if code, err := s.Bound(ctx, "user-a"); err != nil || code != "XYZ789" {
		t.Fatalf("Bound = %q, %v", code, err)
	}
	if err := s.Unbind(ctx, "user-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Bound(ctx, "user-a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after unbind: %v", err)
	}
	if n, err := s.ClearBindings(ctx); err != nil || n != 1 {
		t.Fatalf("ClearBindings = %d, %v", n, err)
	}
}

func TestVerificationCodes(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	u, err := s.CreateUser(ctx, "cat", "password1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.IssueCode(ctx, u.ID, "not-an-address"); !errors.Is(err, ErrInvalidSignup) {
		t.Fatalf("bad address: %v", err)
	}
	code, err := s.IssueCode(ctx, u.ID, "cat@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != codeLength {
		t.Fatalf("code %q", code)
	}
	if _, err := s.IssueCode(ctx, u.ID, "cat@example.com"); !errors.Is(err, ErrCodeTooSoon) {
		t.Fatalf("resend: %v", err)
	}

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	if err := s.ConfirmCode(ctx, u.ID, wrong); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("wrong code: %v", err)
	}
	if err := s.ConfirmCode(ctx, u.ID, code); err != nil {
		t.Fatal(err)
	}
	got, _ := s.UserByID(ctx, u.ID)
	if !got.Verified || got.Email != "cat@example.com" {
		t.Fatalf("user after confirm = %+v", got)
	}
	if err := s.ConfirmCode(ctx, u.ID, code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("code reused: %v", err)
	}

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	code, err = s.IssueCode(ctx, u.ID, "cat@example.com")
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return base.Add(20 * time.Minute) }
	if err := s.ConfirmCode(ctx, u.ID, code); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("stale code: %v", err)
	}
}
