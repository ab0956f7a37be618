package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-api-accounts/internal/domain"
)

type Service interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
}

type accountStore interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
}

type ServiceDeps struct {
	Accounts     accountStore
	StoreTimeout time.Duration
}

type service struct {
	accounts accountStore
	timeout  time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{accounts: deps.Accounts, timeout: deps.StoreTimeout}
}

func (s *service) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	a, err := s.accounts.Get(ctx, accountID)
	switch {
	case err == nil:
		return a, nil
	case errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	default:
		return nil, fmt.Errorf("get account: %w: %v", domain.ErrDependency, err)
	}
}
