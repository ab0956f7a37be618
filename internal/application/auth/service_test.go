package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-api-accounts/internal/application/notification"
	"github.com/go-api-accounts/internal/domain"
	jwtinfra "github.com/go-api-accounts/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockAccountStore struct{ mock.Mock }

func (m *mockAccountStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountStore) ListByPhone(ctx context.Context, phone string) ([]*domain.Account, error) {
	args := m.Called(ctx, phone)
	list, _ := args.Get(0).([]*domain.Account)
	return list, args.Error(1)
}
func (m *mockAccountStore) InsertAccount(ctx context.Context, a *domain.Account) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockAccountStore) UpdateVerificationStatus(ctx context.Context, accountID string, ch domain.Channel, at time.Time) error {
	return m.Called(ctx, accountID, ch, at).Error(0)
}

type mockCodeStore struct{ mock.Mock }

func (m *mockCodeStore) InsertCode(ctx context.Context, c *domain.OneTimeCode) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockCodeStore) LatestCode(ctx context.Context, accountID string, ch domain.Channel) (*domain.OneTimeCode, error) {
	args := m.Called(ctx, accountID, ch)
	if c, _ := args.Get(0).(*domain.OneTimeCode); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCodeStore) ConsumeCode(ctx context.Context, c *domain.OneTimeCode, at time.Time) error {
	return m.Called(ctx, c, at).Error(0)
}

type mockHasher struct{ mock.Mock }

func (m *mockHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	args := m.Called(ctx, plaintext)
	return args.String(0), args.Error(1)
}
func (m *mockHasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	args := m.Called(ctx, plaintext, digest)
	return args.Bool(0), args.Error(1)
}
func (m *mockHasher) VerifyDummy(ctx context.Context, plaintext string) {
	m.Called(ctx, plaintext)
}

type mockTokens struct{ mock.Mock }

func (m *mockTokens) Issue(claims jwtinfra.Claims, ttl time.Duration) (string, error) {
	args := m.Called(claims, ttl)
	return args.String(0), args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Send(ctx context.Context, ch domain.Channel, destination string, msg notification.Message) notification.Delivery {
	return m.Called(ctx, ch, destination, msg).Get(0).(notification.Delivery)
}

type mockLimiter struct{ mock.Mock }

func (m *mockLimiter) Hit(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}
func (m *mockLimiter) Reset(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// --- builder ---

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	accounts *mockAccountStore
	codes    *mockCodeStore
	hasher   *mockHasher
	tokens   *mockTokens
	notifier *mockNotifier
	limiter  *mockLimiter
	now      time.Time
}

func newFixture() *fixture {
	return &fixture{
		accounts: &mockAccountStore{},
		codes:    &mockCodeStore{},
		hasher:   &mockHasher{},
		tokens:   &mockTokens{},
		notifier: &mockNotifier{},
		limiter:  &mockLimiter{},
		now:      epoch,
	}
}

func (f *fixture) service(p Policy) Service {
	return NewService(ServiceDeps{
		Accounts: f.accounts,
		Codes:    f.codes,
		Hasher:   f.hasher,
		Tokens:   f.tokens,
		Notifier: f.notifier,
		Limiter:  f.limiter,
		Clock:    func() time.Time { return f.now },
		Policy:   p,
	})
}

func defaultPolicy() Policy {
	return Policy{
		TokenTTL:       90 * 24 * time.Hour,
		CodeTTL:        10 * time.Minute,
		ResendInterval: time.Minute,
		StoreTimeout:   time.Second,
	}
}

func strPtr(s string) *string { return &s }

func registerReq() domain.RegisterRequest {
	return domain.RegisterRequest{
		Email:     " Ada@Example.com ",
		Phone:     strPtr("+1 555-0100"),
		Password:  "correct-horse",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}
}

// --- Register ---

func TestRegister_HappyPath_SendsEmailCode(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, "ada@example.com").Return(nil, domain.ErrNotFound)
	f.hasher.On("Hash", mock.Anything, "correct-horse").Return("$2a$digest", nil)
	f.accounts.On("InsertAccount", mock.Anything, mock.AnythingOfType("*domain.Account")).Return(nil)
	f.codes.On("InsertCode", mock.Anything, mock.MatchedBy(func(c *domain.OneTimeCode) bool {
		return c.Channel == domain.ChannelEmail && len(c.Code) == 6 &&
			c.ExpiresAt.Equal(epoch.Add(10*time.Minute))
	})).Return(nil)
	f.notifier.On("Send", mock.Anything, domain.ChannelEmail, "ada@example.com", mock.Anything).
		Return(notification.Delivery{Delivered: true})

	a, err := f.service(defaultPolicy()).Register(context.Background(), registerReq())

	require.NoError(t, err)
	assert.NotEmpty(t, a.AccountID)
	assert.Equal(t, "ada@example.com", a.Email)
	require.NotNil(t, a.Phone)
	assert.Equal(t, "+15550100", *a.Phone)
	assert.Equal(t, "$2a$digest", a.PasswordHash)
	assert.Equal(t, domain.StatusUnverified, a.VerificationStatus())
	f.accounts.AssertExpectations(t)
	f.codes.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestRegister_SMSChannel_SendsToPhone(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
	f.hasher.On("Hash", mock.Anything, mock.Anything).Return("digest", nil)
	f.accounts.On("InsertAccount", mock.Anything, mock.Anything).Return(nil)
	f.codes.On("InsertCode", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("Send", mock.Anything, domain.ChannelSMS, "+15550100", mock.Anything).
		Return(notification.Delivery{Delivered: true})

	req := registerReq()
	req.VerificationChannel = "sms"
	_, err := f.service(defaultPolicy()).Register(context.Background(), req)

	require.NoError(t, err)
	f.notifier.AssertExpectations(t)
}

func TestRegister_SMSWithoutPhone_ReturnsBadRequest(t *testing.T) {
	f := newFixture()
	req := registerReq()
	req.Phone = nil
	req.VerificationChannel = "sms"

	_, err := f.service(defaultPolicy()).Register(context.Background(), req)

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	f.accounts.AssertNotCalled(t, "InsertAccount", mock.Anything, mock.Anything)
}

func TestRegister_ExistingEmail_ReturnsConflict(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, "ada@example.com").Return(&domain.Account{AccountID: "a1"}, nil)

	_, err := f.service(defaultPolicy()).Register(context.Background(), registerReq())

	assert.True(t, errors.Is(err, domain.ErrConflict))
	f.hasher.AssertNotCalled(t, "Hash", mock.Anything, mock.Anything)
}

func TestRegister_LostInsertRace_ReturnsConflict(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
	f.hasher.On("Hash", mock.Anything, mock.Anything).Return("digest", nil)
	f.accounts.On("InsertAccount", mock.Anything, mock.Anything).Return(domain.ErrConflict)

	_, err := f.service(defaultPolicy()).Register(context.Background(), registerReq())

	assert.True(t, errors.Is(err, domain.ErrConflict))
	f.codes.AssertNotCalled(t, "InsertCode", mock.Anything, mock.Anything)
}

func TestRegister_StoreFailure_ReturnsDependency(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := f.service(defaultPolicy()).Register(context.Background(), registerReq())

	assert.True(t, errors.Is(err, domain.ErrDependency))
}

func TestRegister_DeliveryFailure_StillSucceeds(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
	f.hasher.On("Hash", mock.Anything, mock.Anything).Return("digest", nil)
	f.accounts.On("InsertAccount", mock.Anything, mock.Anything).Return(nil)
	f.codes.On("InsertCode", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(notification.Delivery{Detail: "smtp down"})

	a, err := f.service(defaultPolicy()).Register(context.Background(), registerReq())

	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestRegister_UnknownChannel_ReturnsBadRequest(t *testing.T) {
	f := newFixture()
	req := registerReq()
	req.VerificationChannel = "pigeon"

	_, err := f.service(defaultPolicy()).Register(context.Background(), req)

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestRegister_PasswordOverBcryptLimit_ReturnsBadRequest(t *testing.T) {
	f := newFixture()
	req := registerReq()
	req.Password = strings.Repeat("é", 40)

	_, err := f.service(defaultPolicy()).Register(context.Background(), req)

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	f.hasher.AssertNotCalled(t, "Hash", mock.Anything, mock.Anything)
	f.accounts.AssertNotCalled(t, "InsertAccount", mock.Anything, mock.Anything)
}

func TestRegister_MultibytePasswordWithinLimit_IsHashed(t *testing.T) {
	f := newFixture()
	pw := strings.Repeat("é", 36)
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
	f.hasher.On("Hash", mock.Anything, pw).Return("digest", nil)
	f.accounts.On("InsertAccount", mock.Anything, mock.Anything).Return(nil)
	f.codes.On("InsertCode", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(notification.Delivery{Delivered: true})
	req := registerReq()
	req.Password = pw

	_, err := f.service(defaultPolicy()).Register(context.Background(), req)

	require.NoError(t, err)
	f.hasher.AssertExpectations(t)
}

// --- Login ---

func TestLogin_HappyPath(t *testing.T) {
	f := newFixture()
	acct := &domain.Account{AccountID: "a1", Email: "ada@example.com", PasswordHash: "digest"}
	f.accounts.On("FindByEmail", mock.Anything, "ada@example.com").Return(acct, nil)
	f.hasher.On("Verify", mock.Anything, "correct-horse", "digest").Return(true, nil)
	f.tokens.On("Issue", jwtinfra.Claims{UserID: "a1", Email: "ada@example.com"}, 90*24*time.Hour).
		Return("signed.jwt.token", nil)

	res, err := f.service(defaultPolicy()).Login(context.Background(), "ADA@example.com", "correct-horse")

	require.NoError(t, err)
	assert.Equal(t, "signed.jwt.token", res.Token)
	assert.Equal(t, "a1", res.Account.AccountID)
}

func TestLogin_UnknownEmailAndWrongPassword_AreIndistinguishable(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)
	f.hasher.On("VerifyDummy", mock.Anything, "pw").Return()
	f.accounts.On("FindByEmail", mock.Anything, "ada@example.com").
		Return(&domain.Account{AccountID: "a1", PasswordHash: "digest"}, nil)
	f.hasher.On("Verify", mock.Anything, "pw", "digest").Return(false, nil)
	svc := f.service(defaultPolicy())

	_, errUnknown := svc.Login(context.Background(), "ghost@example.com", "pw")
	_, errWrong := svc.Login(context.Background(), "ada@example.com", "pw")

	assert.Equal(t, domain.ErrInvalidCredentials, errUnknown)
	assert.Equal(t, errUnknown, errWrong)
	f.hasher.AssertCalled(t, "VerifyDummy", mock.Anything, "pw")
	f.tokens.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
}

func TestLogin_RequireVerified_RejectsUnverified(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).
		Return(&domain.Account{AccountID: "a1", PasswordHash: "digest"}, nil)
	f.hasher.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	p := defaultPolicy()
	p.RequireVerifiedLogin = true

	_, err := f.service(p).Login(context.Background(), "ada@example.com", "pw")

	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestLogin_RequireVerified_AcceptsEitherChannel(t *testing.T) {
	f := newFixture()
	verified := epoch
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).
		Return(&domain.Account{AccountID: "a1", PasswordHash: "digest", PhoneVerifiedAt: &verified}, nil)
	f.hasher.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.tokens.On("Issue", mock.Anything, mock.Anything).Return("tok", nil)
	p := defaultPolicy()
	p.RequireVerifiedLogin = true

	res, err := f.service(p).Login(context.Background(), "ada@example.com", "pw")

	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)
}

func TestLogin_MalformedDigest_ReturnsInternal(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).
		Return(&domain.Account{AccountID: "a1", PasswordHash: "garbage"}, nil)
	f.hasher.On("Verify", mock.Anything, mock.Anything, "garbage").Return(false, errors.New("malformed"))

	_, err := f.service(defaultPolicy()).Login(context.Background(), "ada@example.com", "pw")

	assert.True(t, errors.Is(err, domain.ErrInternal))
}

// --- VerifyOneTimeCode ---

func liveCode(code string) *domain.OneTimeCode {
	return &domain.OneTimeCode{
		CodeID:    "c1",
		AccountID: "a1",
		Channel:   domain.ChannelEmail,
		Code:      code,
		IssuedAt:  epoch,
		ExpiresAt: epoch.Add(10 * time.Minute),
	}
}

func TestVerify_HappyPath(t *testing.T) {
	f := newFixture()
	f.now = epoch.Add(9 * time.Minute)
	acct := &domain.Account{AccountID: "a1", Email: "ada@example.com", FirstName: "Ada"}
	code := liveCode("123456")
	f.accounts.On("FindByEmail", mock.Anything, "ada@example.com").Return(acct, nil)
	f.limiter.On("Hit", mock.Anything, "email:ada@example.com").Return(true, nil)
	f.codes.On("LatestCode", mock.Anything, "a1", domain.ChannelEmail).Return(code, nil)
	f.codes.On("ConsumeCode", mock.Anything, code, f.now).Return(nil)
	f.accounts.On("UpdateVerificationStatus", mock.Anything, "a1", domain.ChannelEmail, f.now).Return(nil)
	f.limiter.On("Reset", mock.Anything, "email:ada@example.com").Return(nil)
	f.notifier.On("Send", mock.Anything, domain.ChannelEmail, "ada@example.com",
		notification.ConfirmationMessage(domain.ChannelEmail, "Ada")).Return(notification.Delivery{Delivered: true})

	err := f.service(defaultPolicy()).VerifyOneTimeCode(context.Background(), domain.ChannelEmail, " Ada@Example.com", "123456")

	require.NoError(t, err)
	f.codes.AssertExpectations(t)
	f.accounts.AssertExpectations(t)
	f.limiter.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestVerify_Expired_ReturnsInvalidCode(t *testing.T) {
	f := newFixture()
	f.now = epoch.Add(11 * time.Minute)
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).Return(&domain.Account{AccountID: "a1"}, nil)
	f.limiter.On("Hit", mock.Anything, "email:ada@example.com").Return(true, nil)
	f.codes.On("LatestCode", mock.Anything, "a1", domain.ChannelEmail).Return(liveCode("123456"), nil)

	err := f.service(defaultPolicy()).VerifyOneTimeCode(context.Background(), domain.ChannelEmail, "ada@example.com", "123456")

	assert.Equal(t, domain.ErrInvalidCode, err)
	f.codes.AssertNotCalled(t, "ConsumeCode", mock.Anything, mock.Anything, mock.Anything)
	f.limiter.AssertNotCalled(t, "Reset", mock.Anything, mock.Anything)
}

func TestVerify_WrongCode_CountsAttempt(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).Return(&domain.Account{AccountID: "a1"}, nil)
	f.limiter.On("Hit", mock.Anything, "email:ada@example.com").Return(true, nil).Once()
	f.codes.On("LatestCode", mock.Anything, mock.Anything, mock.Anything).Return(liveCode("123456"), nil)

	err := f.service(defaultPolicy()).VerifyOneTimeCode(context.Background(), domain.ChannelEmail, "ada@example.com", "654321")

	assert.Equal(t, domain.ErrInvalidCode, err)
	f.limiter.AssertExpectations(t)
	f.limiter.AssertNotCalled(t, "Reset", mock.Anything, mock.Anything)
}

func TestVerify_AttemptCountedBeforeCodeLookup(t *testing.T) {
	f := newFixture()
	var order []string
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).Return(&domain.Account{AccountID: "a1"}, nil)
	f.limiter.On("Hit", mock.Anything, mock.Anything).Return(true, nil).
		Run(func(mock.Arguments) { order = append(order, "hit") })
	f.codes.On("LatestCode", mock.Anything, mock.Anything, mock.Anything).Return(liveCode("123456"), nil).
		Run(func(mock.Arguments) { order = append(order, "lookup") })

	_ = f.service(defaultPolicy()).VerifyOneTimeCode(context.Background(), domain.ChannelEmail, "ada@example.com", "000000")

	assert.Equal(t, []string{"hit", "lookup"}, order)
}

func TestVerify_SupersededCode_ReturnsInvalidCode(t *testing.T) {
	f := newFixture()
	code := liveCode("123456")
	superseded := epoch.Add(time.Minute)
	code.SupersededAt = &superseded
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).Return(&domain.Account{AccountID: "a1"}, nil)
	f.limiter.On("Hit", mock.Anything, mock.Anything).Return(true, nil)
	f.codes.On("LatestCode", mock.Anything, mock.Anything, mock.Anything).Return(code, nil)

	err := f.service(defaultPolicy()).VerifyOneTimeCode(context.Background(), domain.ChannelEmail, "ada@example.com", "123456")

	assert.Equal(t, domain.ErrInvalidCode, err)
}

func TestVerify_UnknownAccount_ReturnsInvalidCode(t *testing.T) {
	f := newFixture()
	f.accounts.On("ListByPhone", mock.Anything, "+15550100").Return([]*domain.Account{}, nil)

	err := f.service(defaultPolicy()).VerifyOneTimeCode(context.Background(), domain.ChannelSMS, "+1 555 0100", "123456")

	assert.Equal(t, domain.ErrInvalidCode, err)
	f.limiter.AssertNotCalled(t, "Hit", mock.Anything, mock.Anything)
}

func TestVerify_NoCodeIssued_ReturnsInvalidCode(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).Return(&domain.Account{AccountID: "a1"}, nil)
	f.limiter.On("Hit", mock.Anything, mock.Anything).Return(true, nil)
	f.codes.On("LatestCode", mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)

	err := f.service(defaultPolicy()).VerifyOneTimeCode(context.Background(), domain.ChannelEmail, "ada@example.com", "123456")

	assert.Equal(t, domain.ErrInvalidCode, err)
}

func TestVerify_ConcurrentConsume_LoserGetsInvalidCode(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).Return(&domain.Account{AccountID: "a1"}, nil)
	f.limiter.On("Hit", mock.Anything, mock.Anything).Return(true, nil)
	f.codes.On("LatestCode", mock.Anything, mock.Anything, mock.Anything).Return(liveCode("123456"), nil)
	f.codes.On("ConsumeCode", mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrNotFound)

	err := f.service(defaultPolicy()).VerifyOneTimeCode(context.Background(), domain.ChannelEmail, "ada@example.com", "123456")

	assert.Equal(t, domain.ErrInvalidCode, err)
	f.accounts.AssertNotCalled(t, "UpdateVerificationStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerify_Locked_ReturnsTooManyRequests(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).Return(&domain.Account{AccountID: "a1"}, nil)
	f.limiter.On("Hit", mock.Anything, "email:ada@example.com").Return(false, nil)

	err := f.service(defaultPolicy()).VerifyOneTimeCode(context.Background(), domain.ChannelEmail, "ada@example.com", "123456")

	assert.True(t, errors.Is(err, domain.ErrTooManyRequests))
	f.codes.AssertNotCalled(t, "LatestCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerify_LimiterDown_FailsClosed(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).Return(&domain.Account{AccountID: "a1"}, nil)
	f.limiter.On("Hit", mock.Anything, mock.Anything).Return(false, errors.New("redis: connection refused"))

	err := f.service(defaultPolicy()).VerifyOneTimeCode(context.Background(), domain.ChannelEmail, "ada@example.com", "123456")

	assert.True(t, errors.Is(err, domain.ErrDependency))
}

func TestVerify_SharedPhone_OlderAccountCanVerify(t *testing.T) {
	f := newFixture()
	f.now = epoch.Add(time.Minute)
	phone := strPtr("+15550100")
	newer := &domain.Account{AccountID: "a2", Email: "new@example.com", Phone: phone}
	older := &domain.Account{AccountID: "a1", Email: "old@example.com", Phone: phone, FirstName: "Ada"}
	olderCode := liveCode("111111")
	olderCode.Channel = domain.ChannelSMS
	newerCode := liveCode("222222")
	newerCode.CodeID, newerCode.AccountID, newerCode.Channel = "c2", "a2", domain.ChannelSMS

	f.accounts.On("ListByPhone", mock.Anything, "+15550100").Return([]*domain.Account{newer, older}, nil)
	f.limiter.On("Hit", mock.Anything, "sms:+15550100").Return(true, nil)
	f.codes.On("LatestCode", mock.Anything, "a2", domain.ChannelSMS).Return(newerCode, nil)
	f.codes.On("LatestCode", mock.Anything, "a1", domain.ChannelSMS).Return(olderCode, nil)
	f.codes.On("ConsumeCode", mock.Anything, olderCode, f.now).Return(nil)
	f.accounts.On("UpdateVerificationStatus", mock.Anything, "a1", domain.ChannelSMS, f.now).Return(nil)
	f.limiter.On("Reset", mock.Anything, "sms:+15550100").Return(nil)
	f.notifier.On("Send", mock.Anything, domain.ChannelSMS, "+15550100", mock.Anything).
		Return(notification.Delivery{Delivered: true})

	err := f.service(defaultPolicy()).VerifyOneTimeCode(context.Background(), domain.ChannelSMS, "+1 555 0100", "111111")

	require.NoError(t, err)
	f.accounts.AssertExpectations(t)
	f.codes.AssertExpectations(t)
	f.accounts.AssertNotCalled(t, "UpdateVerificationStatus", mock.Anything, "a2", mock.Anything, mock.Anything)
}

func TestVerify_SharedPhone_SkipsVerifiedAccounts(t *testing.T) {
	f := newFixture()
	at := epoch
	phone := strPtr("+15550100")
	verified := &domain.Account{AccountID: "a2", Phone: phone, PhoneVerifiedAt: &at}
	pending := &domain.Account{AccountID: "a1", Phone: phone}
	f.accounts.On("ListByPhone", mock.Anything, mock.Anything).Return([]*domain.Account{verified, pending}, nil)
	f.limiter.On("Hit", mock.Anything, mock.Anything).Return(true, nil)
	f.codes.On("LatestCode", mock.Anything, "a1", domain.ChannelSMS).Return(nil, domain.ErrNotFound)

	err := f.service(defaultPolicy()).VerifyOneTimeCode(context.Background(), domain.ChannelSMS, "+15550100", "123456")

	assert.Equal(t, domain.ErrInvalidCode, err)
	f.codes.AssertNotCalled(t, "LatestCode", mock.Anything, "a2", mock.Anything)
}

func TestVerify_StoreFailure_ReturnsDependency(t *testing.T) {
	f := newFixture()
	f.accounts.On("ListByPhone", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	err := f.service(defaultPolicy()).VerifyOneTimeCode(context.Background(), domain.ChannelSMS, "+15550100", "123456")

	assert.True(t, errors.Is(err, domain.ErrDependency))
	f.limiter.AssertNotCalled(t, "Hit", mock.Anything, mock.Anything)
}

// --- ResendCode ---

func TestResend_UnknownIdentifier_IsSilent(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)

	err := f.service(defaultPolicy()).ResendCode(context.Background(), "ghost@example.com", domain.ChannelEmail)

	require.NoError(t, err)
	f.codes.AssertNotCalled(t, "InsertCode", mock.Anything, mock.Anything)
}

func TestResend_AlreadyVerified_ReturnsBadRequest(t *testing.T) {
	f := newFixture()
	at := epoch
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).
		Return(&domain.Account{AccountID: "a1", EmailVerifiedAt: &at}, nil)

	err := f.service(defaultPolicy()).ResendCode(context.Background(), "ada@example.com", domain.ChannelEmail)

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestResend_TooSoon_ReturnsTooManyRequests(t *testing.T) {
	f := newFixture()
	f.now = epoch.Add(30 * time.Second)
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).Return(&domain.Account{AccountID: "a1"}, nil)
	f.codes.On("LatestCode", mock.Anything, "a1", domain.ChannelEmail).Return(liveCode("123456"), nil)

	err := f.service(defaultPolicy()).ResendCode(context.Background(), "ada@example.com", domain.ChannelEmail)

	assert.True(t, errors.Is(err, domain.ErrTooManyRequests))
}

func TestResend_IssuesFreshCode(t *testing.T) {
	f := newFixture()
	f.now = epoch.Add(2 * time.Minute)
	acct := &domain.Account{AccountID: "a1", Email: "ada@example.com", Phone: strPtr("+15550100")}
	f.accounts.On("ListByPhone", mock.Anything, "+15550100").Return([]*domain.Account{acct}, nil)
	f.codes.On("LatestCode", mock.Anything, "a1", domain.ChannelSMS).Return(nil, domain.ErrNotFound)
	f.codes.On("InsertCode", mock.Anything, mock.MatchedBy(func(c *domain.OneTimeCode) bool {
		return c.AccountID == "a1" && c.Channel == domain.ChannelSMS && c.IssuedAt.Equal(f.now)
	})).Return(nil)
	f.notifier.On("Send", mock.Anything, domain.ChannelSMS, "+15550100", mock.Anything).
		Return(notification.Delivery{Delivered: true})

	err := f.service(defaultPolicy()).ResendCode(context.Background(), "+1 (555) 0100", domain.ChannelSMS)

	require.NoError(t, err)
	f.codes.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestResend_DeliveryFailure_ReturnsDependency(t *testing.T) {
	f := newFixture()
	f.accounts.On("FindByEmail", mock.Anything, mock.Anything).
		Return(&domain.Account{AccountID: "a1", Email: "ada@example.com"}, nil)
	f.codes.On("LatestCode", mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
	f.codes.On("InsertCode", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(notification.Delivery{Detail: "timeout"})

	err := f.service(defaultPolicy()).ResendCode(context.Background(), "ada@example.com", domain.ChannelEmail)

	assert.True(t, errors.Is(err, domain.ErrDependency))
}

func TestResend_SharedPhone_TargetsPendingAccount(t *testing.T) {
	f := newFixture()
	at := epoch
	phone := strPtr("+15550100")
	verified := &domain.Account{AccountID: "a2", Phone: phone, PhoneVerifiedAt: &at}
	pending := &domain.Account{AccountID: "a1", Phone: phone}
	f.accounts.On("ListByPhone", mock.Anything, "+15550100").Return([]*domain.Account{verified, pending}, nil)
	f.codes.On("LatestCode", mock.Anything, "a1", domain.ChannelSMS).Return(nil, domain.ErrNotFound)
	f.codes.On("InsertCode", mock.Anything, mock.MatchedBy(func(c *domain.OneTimeCode) bool {
		return c.AccountID == "a1"
	})).Return(nil)
	f.notifier.On("Send", mock.Anything, domain.ChannelSMS, "+15550100", mock.Anything).
		Return(notification.Delivery{Delivered: true})

	err := f.service(defaultPolicy()).ResendCode(context.Background(), "+15550100", domain.ChannelSMS)

	require.NoError(t, err)
	f.codes.AssertExpectations(t)
}
