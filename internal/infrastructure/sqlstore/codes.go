package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-api-accounts/internal/domain"
)

// InsertCode stores a new code and supersedes every earlier live code for
// the same account and channel in one transaction.
func (s *Store) InsertCode(ctx context.Context, c *domain.OneTimeCode) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE one_time_codes SET superseded_at = ?
		WHERE account_id = ? AND channel = ? AND consumed_at IS NULL AND superseded_at IS NULL`),
		toMillis(c.IssuedAt), c.AccountID, string(c.Channel)); err != nil {
		return fmt.Errorf("supersede codes: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO one_time_codes
		(id, account_id, channel, code, issued_at, expires_at, consumed_at, superseded_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, NULL)`),
		c.CodeID, c.AccountID, string(c.Channel), c.Code, toMillis(c.IssuedAt), toMillis(c.ExpiresAt)); err != nil {
		return fmt.Errorf("insert code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LatestCode returns the most recently issued code for (account, channel),
// whatever its state, or domain.ErrNotFound.
func (s *Store) LatestCode(ctx context.Context, accountID string, ch domain.Channel) (*domain.OneTimeCode, error) {
	var (
		c                      domain.OneTimeCode
		channel                string
		issuedAt, expiresAt    int64
		consumedAt, superseded sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, account_id, channel, code, issued_at, expires_at,
			consumed_at, superseded_at
		FROM one_time_codes WHERE account_id = ? AND channel = ?
		ORDER BY issued_at DESC, id DESC LIMIT 1`), accountID, string(ch)).
		Scan(&c.CodeID, &c.AccountID, &channel, &c.Code, &issuedAt, &expiresAt, &consumedAt, &superseded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest code: %w", err)
	}
	c.Channel = domain.Channel(channel)
	c.IssuedAt = fromMillis(issuedAt)
	c.ExpiresAt = fromMillis(expiresAt)
	c.ConsumedAt = timePtr(consumedAt)
	c.SupersededAt = timePtr(superseded)
	return &c, nil
}

// ConsumeCode marks a live code consumed. If the code was consumed or
// superseded concurrently it returns domain.ErrNotFound.
func (s *Store) ConsumeCode(ctx context.Context, c *domain.OneTimeCode, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE one_time_codes SET consumed_at = ?
		WHERE id = ? AND consumed_at IS NULL AND superseded_at IS NULL`),
		toMillis(at), c.CodeID)
	if err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
