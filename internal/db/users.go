package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken = errors.New("username taken")
	ErrInvalidSignup = errors.New("invalid signup")
)

// User is an account row.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email,omitempty"`
	Verified     bool      `json:"verified"`
	Chips        int       `json:"chips"`
	CreatedAt    time.Time `json:"createdAt"`
}

func normalizeUsername(u string) string {
	return strings.TrimSpace(u)
}

func validateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return fmt.Errorf("%w: username must be 3-24 chars", ErrInvalidSignup)
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return fmt.Errorf("%w: username may use letters, numbers and underscore only", ErrInvalidSignup)
		}
	}
	if len(p) < 8 || len(p) > 100 {
		return fmt.Errorf("%w: password must be 8-100 chars", ErrInvalidSignup)
	}
	return nil
}

// CheckPassword is a bcrypt verifier.
func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// CreateUser validates input, hashes the password and inserts the account.
func (s *Store) CreateUser(ctx context.Context, username, pw string) (*User, error) {
	username = normalizeUsername(username)
	if err := validateSignup(username, pw); err != nil {
		return nil, err
	}
	var exists int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM users WHERE lower(username) = lower(?)`), username).Scan(&exists)
	switch {
	case err == nil:
		return nil, ErrUsernameTaken
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("check username: %w", err)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(h),
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`),
		u.ID, u.Username, u.PasswordHash, u.CreatedAt.Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	s.log.Info().Str("user", u.ID).Msg("account created")
	return u, nil
}

const userColumns = `id, username, password_hash, COALESCE(email, ''), verified, chips, created_at`

// UserByUsername loads an account by case-insensitive username.
func (s *Store) UserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE lower(username) = lower(?)`), normalizeUsername(username))
	return scanUser(row)
}

// UserByID loads an account by id.
func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u        User
		verified int
		created  string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &verified, &u.Chips, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Verified = verified != 0
	u.CreatedAt = parseTime(created)
	return &u, nil
}
