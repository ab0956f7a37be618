package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-api-accounts/internal/domain"
)

const accountColumns = `id, email, phone, password_hash, first_name, last_name,
	email_verified_at, phone_verified_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		a               domain.Account
		phone           sql.NullString
		emailVerifiedAt sql.NullInt64
		phoneVerifiedAt sql.NullInt64
		createdAt       int64
		updatedAt       int64
	)
	err := row.Scan(&a.AccountID, &a.Email, &phone, &a.PasswordHash, &a.FirstName, &a.LastName,
		&emailVerifiedAt, &phoneVerifiedAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if phone.Valid {
		p := phone.String
		a.Phone = &p
	}
	a.EmailVerifiedAt = timePtr(emailVerifiedAt)
	a.PhoneVerifiedAt = timePtr(phoneVerifiedAt)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return &a, nil
}

// Get returns the account with the given ID or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`), accountID))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, err
}

// FindByEmail looks an account up by its normalised email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+accountColumns+` FROM accounts WHERE email = ?`), email))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	return a, err
}

// MaxPhoneAccounts caps how many accounts ListByPhone returns.
const MaxPhoneAccounts = 20

// ListByPhone returns the accounts registered with phone, newest first.
// Phone numbers are not unique. No match yields an empty slice.
func (s *Store) ListByPhone(ctx context.Context, phone string) ([]*domain.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+accountColumns+` FROM accounts WHERE phone = ?
			ORDER BY created_at DESC, id DESC LIMIT ?`), phone, MaxPhoneAccounts)
	if err != nil {
		return nil, fmt.Errorf("list accounts by phone: %w", err)
	}
	defer rows.Close()

	var out []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts by phone: %w", err)
	}
	return out, nil
}

// InsertAccount stores a new account. A duplicate email returns
// domain.ErrConflict, unless the existing row is this same account (a
// retried insert), which counts as success.
func (s *Store) InsertAccount(ctx context.Context, a *domain.Account) error {
	var phone sql.NullString
	if a.Phone != nil {
		phone = sql.NullString{String: *a.Phone, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.AccountID, a.Email, phone, a.PasswordHash, a.FirstName, a.LastName,
		nullMillis(a.EmailVerifiedAt), nullMillis(a.PhoneVerifiedAt),
		toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
	)
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return fmt.Errorf("insert account: %w", err)
	}

	existing, getErr := s.Get(ctx, a.AccountID)
	if getErr == nil && existing.Email == a.Email {
		return nil
	}
	return fmt.Errorf("insert account %s: %w", a.Email, domain.ErrConflict)
}

// UpdateVerificationStatus marks the channel verified at the given time.
// An already verified channel keeps its original timestamp.
func (s *Store) UpdateVerificationStatus(ctx context.Context, accountID string, ch domain.Channel, at time.Time) error {
	column := "email_verified_at"
	if ch == domain.ChannelSMS {
		column = "phone_verified_at"
	}
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE accounts SET `+column+` = COALESCE(`+column+`, ?), updated_at = ? WHERE id = ?`),
		toMillis(at), toMillis(at), accountID)
	if err != nil {
		return fmt.Errorf("update verification status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification status: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
