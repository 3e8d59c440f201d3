package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Chips returns identity's chip total.
func (s *Store) Chips(ctx context.Context, identity string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT chips FROM users WHERE id = ?`), identity).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("chips for %s: %w", identity, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("chips for %s: %w", identity, err)
	}
	return n, nil
}

// AddChips applies delta, flooring the total at zero, and returns the new
// total.
func (s *Store) AddChips(ctx context.Context, identity string, delta int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE users
		SET chips = CASE WHEN chips + ? < 0 THEN 0 ELSE chips + ? END
		WHERE id = ?`), delta, delta, identity)
	if err != nil {
		return 0, fmt.Errorf("add chips for %s: %w", identity, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("add chips for %s: %w", identity, ErrNotFound)
	}
	var total int
	if err := tx.QueryRowContext(ctx, s.rebind(`SELECT chips FROM users WHERE id = ?`), identity).Scan(&total); err != nil {
		return 0, fmt.Errorf("read chips for %s: %w", identity, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

// Bind records that identity is seated in match code.
func (s *Store) Bind(ctx context.Context, identity, code string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO match_bindings (identity, code, bound_at) VALUES (?, ?, ?)
		ON CONFLICT (identity) DO UPDATE SET code = excluded.code, bound_at = excluded.bound_at`),
		identity, code, s.timestamp())
	if err != nil {
		return fmt.Errorf("bind %s: %w", identity, err)
	}
	return nil
}

// Unbind forgets identity's match.
func (s *Store) Unbind(ctx context.Context, identity string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM match_bindings WHERE identity = ?`), identity); err != nil {
		return fmt.Errorf("unbind %s: %w", identity, err)
	}
	return nil
}

// Bound returns identity's recorded match code.
func (s *Store) Bound(ctx context.Context, identity string) (string, error) {
	var code string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT code FROM match_bindings WHERE identity = ?`), identity).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return code, err
}

// ClearBindings drops every binding. Run at boot, before any match is live.
func (s *Store) ClearBindings(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM match_bindings`)
	if err != nil {
		return 0, fmt.Errorf("clear bindings: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
