package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Den-Varenik/social-network/internal/auth"
	"github.com/Den-Varenik/social-network/internal/domain"
	"github.com/Den-Varenik/social-network/internal/event"
	"github.com/Den-Varenik/social-network/internal/repository"
	apperrors "github.com/Den-Varenik/social-network/pkg/errors"
)

// AuthService implements credential checking, token issuance, and
// request-time identity resolution.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	producer   *event.Producer
	logger     *slog.Logger
	bcryptCost int
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenManager,
	producer *event.Producer,
	logger *slog.Logger,
	bcryptCost int,
) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		producer:   producer,
		logger:     logger,
		bcryptCost: bcryptCost,
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Email       string
	Password    string
	AccountType string
}

// Login authenticates a user by email and password and issues a fresh token
// pair. An unknown email returns ErrNotFound; a wrong password returns
// ErrUnauthorized. The two outcomes are kept distinct here; the HTTP
// boundary decides whether to collapse them.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error) {
	if email == "" || password == "" {
		return nil, nil, apperrors.InvalidInput("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		// Only a genuinely absent identity maps to NotFound; a store
		// failure must not tell the caller their account does not exist.
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.NotFound("user", email)
		}
		return nil, nil, fmt.Errorf("get user by email: %w", err)
	}

	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, nil, apperrors.Unauthorized("incorrect email or password")
	}

	tokens, err := s.issueTokenPair(user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	// Best effort: a failed last-login touch must not fail the login.
	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to update last login",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	} else {
		user.LastLogin = &now
	}

	if err := s.producer.PublishUserLoggedIn(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.logged_in event",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, tokens, nil
}

// Register creates a new user account, hashes the password, and issues a
// token pair immediately (register doubles as login). The database unique
// index on email is the authoritative duplicate guard; a racing insert of
// the same email surfaces as ErrAlreadyExists.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, *domain.TokenPair, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, nil, apperrors.InvalidInput("password is required")
	}

	accountType := input.AccountType
	if accountType == "" {
		accountType = domain.AccountTypePersonal
	}

	hashedPassword, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		Email:        input.Email,
		PasswordHash: hashedPassword,
		AccountType:  accountType,
		IsActive:     true,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	tokens, err := s.issueTokenPair(user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	// Publish registration event (non-blocking on failure).
	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, tokens, nil
}

// Refresh validates a refresh token and issues a brand-new access+refresh
// pair. Every failure (bad signature, malformed or expired token, user no
// longer exists) collapses into ErrUnauthorized: the caller only holds a
// token, not a claimed identity. The old refresh token is not invalidated
// and remains valid until its own expiry.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired refresh token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid or expired refresh token")
		}
		return nil, fmt.Errorf("get user %d: %w", claims.UserID, err)
	}

	tokens, err := s.issueTokenPair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "tokens refreshed",
		slog.Int64("user_id", user.ID),
	)

	return tokens, nil
}

// ResolveCurrentUser decodes an access token and returns the authenticated
// principal. It fails with ErrUnauthorized for an invalid or expired token,
// a user that no longer exists, or a deactivated account.
func (s *AuthService) ResolveCurrentUser(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid or expired token")
		}
		return nil, fmt.Errorf("get user %d: %w", claims.UserID, err)
	}

	if !user.IsActive {
		return nil, apperrors.Unauthorized("inactive user")
	}

	return user, nil
}

// VerifyToken checks that an access token has a valid signature, is not
// expired, and references an existing user. Unlike ResolveCurrentUser it
// does not consult the active flag and returns no user payload; it is a
// lightweight liveness check for a token.
func (s *AuthService) VerifyToken(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		return apperrors.Unauthorized("invalid or expired token")
	}

	if _, err := s.users.GetByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Unauthorized("invalid or expired token")
		}
		return fmt.Errorf("get user %d: %w", claims.UserID, err)
	}

	return nil
}

// GetProfile returns the profile of an authenticated user by id.
func (s *AuthService) GetProfile(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	return user, nil
}

// issueTokenPair creates an access+refresh token pair bound to the user id.
// Tokens are never persisted; validity is purely signature + expiry.
func (s *AuthService) issueTokenPair(userID int64) (*domain.TokenPair, error) {
	accessToken, err := s.tokens.NewAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, err := s.tokens.NewRefreshToken(userID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
