package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	codeDigits      = "0123456789"
	codeLength      = 6
	codeTTL         = 5 * time.Minute
	codeResendAfter = 2 * time.Minute
	maxCodeAttempts = 5
)

var (
	ErrCodeTooSoon  = errors.New("a code was sent recently")
	ErrCodeExpired  = errors.New("verification code expired")
	ErrCodeMismatch = errors.New("invalid verification code")
)

// IssueCode creates a fresh verification code for userID's address. A new
// code is refused while the previous one is under two minutes old.
func (s *Store) IssueCode(ctx context.Context, userID, address string) (string, error) {
	address = strings.TrimSpace(address)
	if !strings.Contains(address, "@") {
		return "", fmt.Errorf("%w: address must be an e-mail", ErrInvalidSignup)
	}
	var created string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT created_at FROM verification_codes WHERE user_id = ?`), userID).Scan(&created)
	switch {
	case err == nil:
		if s.now().Sub(parseTime(created)) < codeResendAfter {
			return "", ErrCodeTooSoon
		}
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("check code: %w", err)
	}

	code, err := gonanoid.Generate(codeDigits, codeLength)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO verification_codes (user_id, address, code, attempts, created_at) VALUES (?, ?, ?, 0, ?)
		ON CONFLICT (user_id) DO UPDATE SET address = excluded.address, code = excluded.code, attempts = 0, created_at = excluded.created_at`),
		userID, address, code, s.timestamp())
	if err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// ConfirmCode checks code for userID. On success the address is recorded on
// the account and the code is spent.
func (s *Store) ConfirmCode(ctx context.Context, userID, code string) error {
	var (
		address, stored, created string
		attempts                 int
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT address, code, attempts, created_at FROM verification_codes WHERE user_id = ?`), userID).
		Scan(&address, &stored, &attempts, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}
	if s.now().Sub(parseTime(created)) > codeTTL || attempts >= maxCodeAttempts {
		if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM verification_codes WHERE user_id = ?`), userID); err != nil {
			s.log.Warn().Err(err).Str("user", userID).Msg("drop spent verification code")
		}
		return ErrCodeExpired
	}
	if strings.TrimSpace(code) != stored {
		if _, err := s.db.ExecContext(ctx, s.rebind(`UPDATE verification_codes SET attempts = attempts + 1 WHERE user_id = ?`), userID); err != nil {
			s.log.Error().Err(err).Str("user", userID).Msg("count failed verification attempt")
		}
		return ErrCodeMismatch
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE users SET email = ?, verified = 1 WHERE id = ?`), address, userID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM verification_codes WHERE user_id = ?`), userID); err != nil {
		return fmt.Errorf("spend code: %w", err)
	}
	return tx.Commit()
}
