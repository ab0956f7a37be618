package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-api-accounts/internal/application/notification"
	"github.com/go-api-accounts/internal/domain"
	jwtinfra "github.com/go-api-accounts/internal/infrastructure/jwt"
	"github.com/go-api-accounts/internal/metrics"
	"github.com/go-api-accounts/internal/pkg/id"
	"github.com/go-api-accounts/internal/pkg/otp"
)

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token   string
	Account *domain.Account
}

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.Account, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	VerifyOneTimeCode(ctx context.Context, ch domain.Channel, identifier, code string) error
	ResendCode(ctx context.Context, identifier string, ch domain.Channel) error
}

type accountStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	ListByPhone(ctx context.Context, phone string) ([]*domain.Account, error)
	InsertAccount(ctx context.Context, a *domain.Account) error
	UpdateVerificationStatus(ctx context.Context, accountID string, ch domain.Channel, at time.Time) error
}

type codeStore interface {
	InsertCode(ctx context.Context, c *domain.OneTimeCode) error
	LatestCode(ctx context.Context, accountID string, ch domain.Channel) (*domain.OneTimeCode, error)
	ConsumeCode(ctx context.Context, c *domain.OneTimeCode, at time.Time) error
}

type hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
	VerifyDummy(ctx context.Context, plaintext string)
}

type tokenIssuer interface {
	Issue(claims jwtinfra.Claims, ttl time.Duration) (string, error)
}

type attemptLimiter interface {
	Hit(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// Policy holds the lifetimes and switches the service enforces.
type Policy struct {
	TokenTTL             time.Duration
	CodeTTL              time.Duration
	ResendInterval       time.Duration
	StoreTimeout         time.Duration
	RequireVerifiedLogin bool
}

type ServiceDeps struct {
	Accounts accountStore
	Codes    codeStore
	Hasher   hasher
	Tokens   tokenIssuer
	Notifier notification.Gateway
	Limiter  attemptLimiter
	Metrics  metrics.Recorder
	Clock    func() time.Time
	Policy   Policy
}

type service struct {
	accounts accountStore
	codes    codeStore
	hasher   hasher
	tokens   tokenIssuer
	notifier notification.Gateway
	limiter  attemptLimiter
	metrics  metrics.Recorder
	now      func() time.Time
	policy   Policy
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		accounts: deps.Accounts,
		codes:    deps.Codes,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		notifier: deps.Notifier,
		limiter:  deps.Limiter,
		metrics:  deps.Metrics,
		now:      deps.Clock,
		policy:   deps.Policy,
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Account, error) {
	ch, ok := domain.ParseChannel(req.VerificationChannel)
	if !ok {
		return nil, fmt.Errorf("unknown verification channel %q: %w", req.VerificationChannel, domain.ErrBadRequest)
	}
	if len(req.Password) > domain.MaxPasswordBytes {
		return nil, fmt.Errorf("password exceeds %d bytes: %w", domain.MaxPasswordBytes, domain.ErrBadRequest)
	}
	var phone *string
	if req.Phone != nil && strings.TrimSpace(*req.Phone) != "" {
		p := domain.NormalizePhone(*req.Phone)
		phone = &p
	}
	if ch == domain.ChannelSMS && phone == nil {
		return nil, fmt.Errorf("phone is required for sms verification: %w", domain.ErrBadRequest)
	}

	email := domain.NormalizeEmail(req.Email)
	err := s.store(ctx, "find account by email", func(ctx context.Context) error {
		_, err := s.accounts.FindByEmail(ctx, email)
		return err
	})
	switch {
	case err == nil:
		s.metrics.RecordRegistration(metrics.OutcomeConflict)
		return nil, fmt.Errorf("user already exists: %w", domain.ErrConflict)
	case !errors.Is(err, domain.ErrNotFound):
		s.metrics.RecordRegistration(metrics.OutcomeError)
		return nil, err
	}

	digest, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeError)
		return nil, hashErr(err)
	}

	now := s.now().UTC()
	a := &domain.Account{
		AccountID:    id.New(),
		Email:        email,
		Phone:        phone,
		PasswordHash: digest,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.store(ctx, "insert account", func(ctx context.Context) error {
		return s.accounts.InsertAccount(ctx, a)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.metrics.RecordRegistration(metrics.OutcomeConflict)
			return nil, fmt.Errorf("user already exists: %w", domain.ErrConflict)
		}
		s.metrics.RecordRegistration(metrics.OutcomeError)
		return nil, err
	}
	s.metrics.RecordRegistration(metrics.OutcomeSuccess)

	if err := s.issueAndSend(ctx, a, ch); err != nil {
		slog.WarnContext(ctx, "verification code not delivered after registration",
			"account_id", a.AccountID, "channel", ch, "err", err)
	}
	return a, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var a *domain.Account
	err := s.store(ctx, "find account by email", func(ctx context.Context) error {
		var err error
		a, err = s.accounts.FindByEmail(ctx, domain.NormalizeEmail(email))
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		s.hasher.VerifyDummy(ctx, password)
		s.metrics.RecordLogin(metrics.OutcomeInvalid)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		s.metrics.RecordLogin(metrics.OutcomeError)
		return nil, err
	}

	ok, err := s.hasher.Verify(ctx, password, a.PasswordHash)
	if err != nil {
		s.metrics.RecordLogin(metrics.OutcomeError)
		slog.ErrorContext(ctx, "password verification failed", "account_id", a.AccountID, "err", err)
		return nil, hashErr(err)
	}
	if !ok {
		s.metrics.RecordLogin(metrics.OutcomeInvalid)
		return nil, domain.ErrInvalidCredentials
	}

	if s.policy.RequireVerifiedLogin && a.VerificationStatus() == domain.StatusUnverified {
		s.metrics.RecordLogin(metrics.OutcomeInvalid)
		return nil, fmt.Errorf("account not verified: %w", domain.ErrForbidden)
	}

	token, err := s.tokens.Issue(jwtinfra.Claims{UserID: a.AccountID, Email: a.Email}, s.policy.TokenTTL)
	if err != nil {
		s.metrics.RecordLogin(metrics.OutcomeError)
		return nil, fmt.Errorf("issue token: %w: %v", domain.ErrInternal, err)
	}
	s.metrics.RecordLogin(metrics.OutcomeSuccess)
	return &LoginResult{Token: token, Account: a}, nil
}

func (s *service) VerifyOneTimeCode(ctx context.Context, ch domain.Channel, identifier, code string) error {
	identifier = normalizeIdentifier(ch, identifier)
	var candidates []*domain.Account
	err := s.store(ctx, "resolve account", func(ctx context.Context) error {
		var err error
		candidates, err = s.findByChannel(ctx, ch, identifier)
		return err
	})
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		s.metrics.RecordVerification(string(ch), metrics.OutcomeInvalid)
		return domain.ErrInvalidCode
	}

	// Every attempt counts before the code is compared; a success resets.
	key := string(ch) + ":" + identifier
	allowed, err := s.limiter.Hit(ctx, key)
	if err != nil {
		return fmt.Errorf("attempt limiter: %w: %v", domain.ErrDependency, err)
	}
	if !allowed {
		s.metrics.RecordVerification(string(ch), metrics.OutcomeLimited)
		return fmt.Errorf("too many verification attempts: %w", domain.ErrTooManyRequests)
	}

	now := s.now().UTC()
	a, c, err := s.matchCode(ctx, candidates, ch, code, now)
	if err != nil {
		return err
	}
	if c == nil {
		s.metrics.RecordVerification(string(ch), metrics.OutcomeInvalid)
		return domain.ErrInvalidCode
	}

	err = s.store(ctx, "consume code", func(ctx context.Context) error {
		return s.codes.ConsumeCode(ctx, c, now)
	})
	if errors.Is(err, domain.ErrNotFound) {
		// Consumed or superseded by a concurrent request.
		s.metrics.RecordVerification(string(ch), metrics.OutcomeInvalid)
		return domain.ErrInvalidCode
	}
	if err != nil {
		return err
	}

	err = s.store(ctx, "update verification status", func(ctx context.Context) error {
		return s.accounts.UpdateVerificationStatus(ctx, a.AccountID, ch, now)
	})
	if err != nil {
		return err
	}
	s.metrics.RecordVerification(string(ch), metrics.OutcomeSuccess)

	if err := s.limiter.Reset(ctx, key); err != nil {
		slog.WarnContext(ctx, "failed to reset attempt counter", "key", key, "err", err)
	}
	if d := s.notifier.Send(ctx, ch, destination(a, ch), notification.ConfirmationMessage(ch, a.FirstName)); !d.Delivered {
		slog.WarnContext(ctx, "confirmation not delivered", "account_id", a.AccountID, "channel", ch, "detail", d.Detail)
	}
	return nil
}

// matchCode returns the candidate whose latest code on ch is usable and
// equal to code. No match yields a nil code and a nil error.
func (s *service) matchCode(ctx context.Context, candidates []*domain.Account, ch domain.Channel, code string, now time.Time) (*domain.Account, *domain.OneTimeCode, error) {
	for _, a := range candidates {
		if a.IsVerified(ch) {
			continue
		}
		var c *domain.OneTimeCode
		err := s.store(ctx, "latest code", func(ctx context.Context) error {
			var err error
			c, err = s.codes.LatestCode(ctx, a.AccountID, ch)
			return err
		})
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if c.Usable(now) && otp.Equal(code, c.Code) {
			return a, c, nil
		}
	}
	return nil, nil, nil
}

func (s *service) ResendCode(ctx context.Context, identifier string, ch domain.Channel) error {
	var candidates []*domain.Account
	err := s.store(ctx, "resolve account", func(ctx context.Context) error {
		var err error
		if strings.Contains(identifier, "@") {
			candidates, err = s.findByChannel(ctx, domain.ChannelEmail, domain.NormalizeEmail(identifier))
		} else {
			candidates, err = s.findByChannel(ctx, domain.ChannelSMS, domain.NormalizePhone(identifier))
		}
		return err
	})
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		// Same response as a real send so callers cannot enumerate accounts.
		return nil
	}
	a := pendingFirst(candidates, ch)

	if a.IsVerified(ch) {
		return fmt.Errorf("%s already verified: %w", ch, domain.ErrBadRequest)
	}
	if ch == domain.ChannelSMS && a.Phone == nil {
		return fmt.Errorf("account has no phone number: %w", domain.ErrBadRequest)
	}

	var latest *domain.OneTimeCode
	err = s.store(ctx, "latest code", func(ctx context.Context) error {
		var err error
		latest, err = s.codes.LatestCode(ctx, a.AccountID, ch)
		return err
	})
	switch {
	case err == nil:
		if s.now().Sub(latest.IssuedAt) < s.policy.ResendInterval {
			return fmt.Errorf("code resent too soon: %w", domain.ErrTooManyRequests)
		}
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}

	return s.issueAndSend(ctx, a, ch)
}

// issueAndSend stores a fresh code for (account, channel), superseding older
// ones, and dispatches it. Non-delivery is reported as ErrDependency.
func (s *service) issueAndSend(ctx context.Context, a *domain.Account, ch domain.Channel) error {
	code, err := otp.Generate()
	if err != nil {
		return fmt.Errorf("generate code: %w: %v", domain.ErrInternal, err)
	}
	codeID, err := id.NewCodeID()
	if err != nil {
		return fmt.Errorf("generate code id: %w: %v", domain.ErrInternal, err)
	}
	now := s.now().UTC()
	c := &domain.OneTimeCode{
		CodeID:    codeID,
		AccountID: a.AccountID,
		Channel:   ch,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.policy.CodeTTL),
	}
	err = s.store(ctx, "insert code", func(ctx context.Context) error {
		return s.codes.InsertCode(ctx, c)
	})
	if err != nil {
		return err
	}

	d := s.notifier.Send(ctx, ch, destination(a, ch), notification.OTPMessage(ch, code, s.policy.CodeTTL))
	if !d.Delivered {
		return fmt.Errorf("deliver code: %w: %s", domain.ErrDependency, d.Detail)
	}
	return nil
}

// findByChannel resolves a normalised identifier to its accounts, newest
// first. An email matches at most one account; a phone may match several.
// No match yields an empty slice.
func (s *service) findByChannel(ctx context.Context, ch domain.Channel, identifier string) ([]*domain.Account, error) {
	if ch == domain.ChannelSMS {
		return s.accounts.ListByPhone(ctx, identifier)
	}
	a, err := s.accounts.FindByEmail(ctx, identifier)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []*domain.Account{a}, nil
}

func normalizeIdentifier(ch domain.Channel, identifier string) string {
	if ch == domain.ChannelSMS {
		return domain.NormalizePhone(identifier)
	}
	return domain.NormalizeEmail(identifier)
}

// pendingFirst picks the newest account still unverified on ch, falling
// back to the newest one.
func pendingFirst(candidates []*domain.Account, ch domain.Channel) *domain.Account {
	for _, a := range candidates {
		if !a.IsVerified(ch) {
			return a
		}
	}
	return candidates[0]
}

// store runs fn under the store timeout. Not-found and conflict pass through;
// anything else becomes ErrDependency with the cause kept in the message only.
func (s *service) store(ctx context.Context, op string, fn func(context.Context) error) error {
	if s.policy.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.policy.StoreTimeout)
		defer cancel()
	}
	err := fn(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConflict):
		return err
	default:
		return fmt.Errorf("%s: %w: %v", op, domain.ErrDependency, err)
	}
}

func hashErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("hash: %w: %v", domain.ErrDependency, err)
	}
	return fmt.Errorf("hash: %w: %v", domain.ErrInternal, err)
}

func destination(a *domain.Account, ch domain.Channel) string {
	if ch == domain.ChannelSMS && a.Phone != nil {
		return *a.Phone
	}
	return a.Email
}
