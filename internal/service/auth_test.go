package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Den-Varenik/social-network/internal/auth"
	"github.com/Den-Varenik/social-network/internal/domain"
	"github.com/Den-Varenik/social-network/internal/event"
	apperrors "github.com/Den-Varenik/social-network/pkg/errors"
	pkgkafka "github.com/Den-Varenik/social-network/pkg/kafka"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestTokenManager(t *testing.T) *auth.TokenManager {
	t.Helper()
	tm, err := auth.NewTokenManager("test-secret-key-for-testing", "HS256", 15*time.Minute, 30*24*time.Hour)
	require.NoError(t, err)
	return tm
}

func newTestEventProducer() *event.Producer {
	logger := newTestLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	kafkaProducer := pkgkafka.NewProducer(kafkaCfg, logger)
	return event.NewProducer(kafkaProducer, logger)
}

func newTestService(t *testing.T, userRepo *mockUserRepository) *AuthService {
	t.Helper()
	return NewAuthService(userRepo, newTestTokenManager(t), newTestEventProducer(), newTestLogger(), bcrypt.MinCost)
}

// hashForTest creates a bcrypt hash with the minimum cost for fast tests.
func hashForTest(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}

func activeUser(id int64, email, password string) *domain.User {
	now := time.Now().UTC()
	return &domain.User{
		ID:           id,
		Email:        email,
		PasswordHash: hashForTest(password),
		AccountType:  domain.AccountTypePersonal,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// --- Login Tests ---

func TestLogin_Success(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)
	ctx := context.Background()

	userRepo.On("GetByEmail", ctx, "john@example.com").
		Return(activeUser(1, "john@example.com", "SecurePass123"), nil)
	userRepo.On("UpdateLastLogin", ctx, int64(1), mock.AnythingOfType("time.Time")).Return(nil)

	user, tokens, err := svc.Login(ctx, "john@example.com", "SecurePass123")

	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotNil(t, tokens)
	assert.Equal(t, int64(1), user.ID)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.NotNil(t, user.LastLogin)

	userRepo.AssertExpectations(t)
}

func TestLogin_UnknownEmail(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)
	ctx := context.Background()

	userRepo.On("GetByEmail", ctx, "ghost@example.com").
		Return(nil, apperrors.ErrNotFound)

	user, tokens, err := svc.Login(ctx, "ghost@example.com", "whatever")

	assert.Nil(t, user)
	assert.Nil(t, tokens)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLogin_WrongPassword(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)
	ctx := context.Background()

	userRepo.On("GetByEmail", ctx, "john@example.com").
		Return(activeUser(1, "john@example.com", "SecurePass123"), nil)

	user, tokens, err := svc.Login(ctx, "john@example.com", "WrongPass456")

	assert.Nil(t, user)
	assert.Nil(t, tokens)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLogin_StoreFailureIsNotNotFound(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)
	ctx := context.Background()

	userRepo.On("GetByEmail", ctx, "john@example.com").
		Return(nil, errors.New("dial tcp 127.0.0.1:5432: connection refused"))

	user, tokens, err := svc.Login(ctx, "john@example.com", "SecurePass123")

	assert.Nil(t, user)
	assert.Nil(t, tokens)
	require.Error(t, err)
	// A credential-store outage must not tell the caller their account
	// does not exist.
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.NotErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogin_MissingCredentials(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)

	_, _, err := svc.Login(context.Background(), "", "")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestLogin_LastLoginFailureDoesNotFailLogin(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)
	ctx := context.Background()

	userRepo.On("GetByEmail", ctx, "john@example.com").
		Return(activeUser(1, "john@example.com", "SecurePass123"), nil)
	userRepo.On("UpdateLastLogin", ctx, int64(1), mock.AnythingOfType("time.Time")).
		Return(assert.AnError)

	user, tokens, err := svc.Login(ctx, "john@example.com", "SecurePass123")

	require.NoError(t, err)
	assert.NotNil(t, user)
	assert.NotNil(t, tokens)
	assert.Nil(t, user.LastLogin)
}

// --- Register Tests ---

func TestRegister_Success(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)
	ctx := context.Background()

	userRepo.On("Create", ctx, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.User).ID = 42
		}).
		Return(nil)

	user, tokens, err := svc.Register(ctx, RegisterInput{
		Email:    "john@example.com",
		Password: "SecurePass123",
	})

	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotNil(t, tokens)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "john@example.com", user.Email)
	assert.Equal(t, domain.AccountTypePersonal, user.AccountType)
	assert.True(t, user.IsActive)
	assert.False(t, user.IsVerified)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.NotEqual(t, "SecurePass123", user.PasswordHash)
	assert.True(t, auth.VerifyPassword(user.PasswordHash, "SecurePass123"))

	userRepo.AssertExpectations(t)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)
	ctx := context.Background()

	userRepo.On("Create", ctx, mock.AnythingOfType("*domain.User")).
		Return(apperrors.AlreadyExists("user", "email", "john@example.com"))

	user, tokens, err := svc.Register(ctx, RegisterInput{
		Email:    "john@example.com",
		Password: "SecurePass123",
	})

	assert.Nil(t, user)
	assert.Nil(t, tokens)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestRegister_MissingFields(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, RegisterInput{Password: "SecurePass123"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, _, err = svc.Register(ctx, RegisterInput{Email: "john@example.com"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// raceUserRepository admits exactly one Create per email, mirroring the
// database unique index.
type raceUserRepository struct {
	mu     sync.Mutex
	emails map[string]int64
	nextID int64
}

func newRaceUserRepository() *raceUserRepository {
	return &raceUserRepository{emails: make(map[string]int64)}
}

func (r *raceUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.emails[user.Email]; ok {
		return apperrors.AlreadyExists("user", "email", user.Email)
	}
	r.nextID++
	r.emails[user.Email] = r.nextID
	user.ID = r.nextID
	return nil
}

func (r *raceUserRepository) GetByID(context.Context, int64) (*domain.User, error) {
	return nil, apperrors.ErrNotFound
}

func (r *raceUserRepository) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, apperrors.ErrNotFound
}

func (r *raceUserRepository) UpdateLastLogin(context.Context, int64, time.Time) error {
	return nil
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	repo := newRaceUserRepository()
	svc := NewAuthService(repo, newTestTokenManager(t), newTestEventProducer(), newTestLogger(), bcrypt.MinCost)
	ctx := context.Background()

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.Register(ctx, RegisterInput{
				Email:    "race@example.com",
				Password: "SecurePass123",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
		}
	}
	assert.Equal(t, 1, succeeded)
}

// --- Refresh Tests ---

func TestRefresh_Success(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)
	ctx := context.Background()

	refreshToken, err := newTestTokenManager(t).NewRefreshToken(1)
	require.NoError(t, err)

	userRepo.On("GetByID", ctx, int64(1)).
		Return(activeUser(1, "john@example.com", "SecurePass123"), nil)

	tokens, err := svc.Refresh(ctx, refreshToken)

	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
}

func TestRefresh_ForgedToken(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)

	other, err := auth.NewTokenManager("a-completely-different-secret", "HS256", time.Minute, time.Hour)
	require.NoError(t, err)
	forged, err := other.NewRefreshToken(1)
	require.NoError(t, err)

	tokens, err := svc.Refresh(context.Background(), forged)

	assert.Nil(t, tokens)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRefresh_MalformedToken(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)

	tokens, err := svc.Refresh(context.Background(), "not-a-jwt")

	assert.Nil(t, tokens)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRefresh_UserNoLongerExists(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)
	ctx := context.Background()

	refreshToken, err := newTestTokenManager(t).NewRefreshToken(99)
	require.NoError(t, err)

	userRepo.On("GetByID", ctx, int64(99)).Return(nil, apperrors.ErrNotFound)

	tokens, err := svc.Refresh(ctx, refreshToken)

	assert.Nil(t, tokens)
	// A missing user surfaces as Unauthorized, never NotFound: the caller
	// only presented a token, not a claimed identity.
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRefresh_StoreFailureIsNotUnauthorized(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)
	ctx := context.Background()

	refreshToken, err := newTestTokenManager(t).NewRefreshToken(1)
	require.NoError(t, err)

	userRepo.On("GetByID", ctx, int64(1)).
		Return(nil, errors.New("dial tcp 127.0.0.1:5432: connection refused"))

	tokens, err := svc.Refresh(ctx, refreshToken)

	assert.Nil(t, tokens)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrUnauthorized)
}

// --- ResolveCurrentUser Tests ---

func TestResolveCurrentUser_Success(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)
	ctx := context.Background()

	token, err := newTestTokenManager(t).NewAccessToken(1)
	require.NoError(t, err)

	userRepo.On("GetByID", ctx, int64(1)).
		Return(activeUser(1, "john@example.com", "SecurePass123"), nil)

	user, err := svc.ResolveCurrentUser(ctx, token)

	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
}

func TestResolveCurrentUser_InactiveUser(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)
	ctx := context.Background()

	token, err := newTestTokenManager(t).NewAccessToken(1)
	require.NoError(t, err)

	inactive := activeUser(1, "john@example.com", "SecurePass123")
	inactive.IsActive = false
	userRepo.On("GetByID", ctx, int64(1)).Return(inactive, nil)

	user, err := svc.ResolveCurrentUser(ctx, token)

	assert.Nil(t, user)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestResolveCurrentUser_ExpiredToken(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)

	expired, err := newTestTokenManager(t).SignWithExpiry(1, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	user, err := svc.ResolveCurrentUser(context.Background(), expired)

	assert.Nil(t, user)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

// --- VerifyToken Tests ---

func TestVerifyToken_Valid(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)
	ctx := context.Background()

	token, err := newTestTokenManager(t).NewAccessToken(1)
	require.NoError(t, err)

	userRepo.On("GetByID", ctx, int64(1)).
		Return(activeUser(1, "john@example.com", "SecurePass123"), nil)

	assert.NoError(t, svc.VerifyToken(ctx, token))
}

func TestVerifyToken_Expired(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)

	expired, err := newTestTokenManager(t).SignWithExpiry(1, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	err = svc.VerifyToken(context.Background(), expired)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestVerifyToken_IgnoresActiveFlag(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(t, userRepo)
	ctx := context.Background()

	token, err := newTestTokenManager(t).NewAccessToken(1)
	require.NoError(t, err)

	inactive := activeUser(1, "john@example.com", "SecurePass123")
	inactive.IsActive = false
	userRepo.On("GetByID", ctx, int64(1)).Return(inactive, nil)

	// Verify checks signature, expiry, and user existence only; a
	// deactivated account still holds a verifiable token.
	assert.NoError(t, svc.VerifyToken(ctx, token))
}
