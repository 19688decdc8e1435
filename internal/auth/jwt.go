package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned by Parse for any token that cannot be
// accepted: bad signature, malformed payload, unexpected algorithm, or an
// expiry at or before the current time. The specific cause is deliberately
// not exposed to callers.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the signed claim set carried by both access and refresh tokens.
// The token kind is not encoded; access and refresh tokens differ only in
// the expiry horizon chosen at issuance.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenManager signs and parses user tokens with a symmetric secret. The
// secret and lifetimes are fixed at construction; there is no runtime
// rotation.
type TokenManager struct {
	secret        []byte
	method        jwt.SigningMethod
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// NewTokenManager creates a token manager for the given secret, signing
// algorithm identifier (e.g. "HS256"), and access/refresh lifetimes.
func NewTokenManager(secret, algorithm string, accessExpiry, refreshExpiry time.Duration) (*TokenManager, error) {
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, errors.New("unknown signing algorithm: " + algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("unsupported signing algorithm: " + algorithm)
	}

	return &TokenManager{
		secret:        []byte(secret),
		method:        method,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}, nil
}

// AccessExpiry returns the configured access token lifetime.
func (m *TokenManager) AccessExpiry() time.Duration { return m.accessExpiry }

// RefreshExpiry returns the configured refresh token lifetime.
func (m *TokenManager) RefreshExpiry() time.Duration { return m.refreshExpiry }

// NewAccessToken creates a signed short-lived token bound to the user id.
func (m *TokenManager) NewAccessToken(userID int64) (string, error) {
	return m.sign(userID, m.accessExpiry)
}

// NewRefreshToken creates a signed long-lived token bound to the user id.
func (m *TokenManager) NewRefreshToken(userID int64) (string, error) {
	return m.sign(userID, m.refreshExpiry)
}

// SignWithExpiry creates a signed token with an explicit expiry instant.
// Used by tests to produce already-expired tokens.
func (m *TokenManager) SignWithExpiry(userID int64, expiresAt time.Time) (string, error) {
	return m.signAt(userID, expiresAt)
}

func (m *TokenManager) sign(userID int64, ttl time.Duration) (string, error) {
	return m.signAt(userID, time.Now().UTC().Add(ttl))
}

func (m *TokenManager) signAt(userID int64, expiresAt time.Time) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    "social-network",
		},
	}

	token := jwt.NewWithClaims(m.method, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", err
	}

	return signed, nil
}

// Parse validates a token's signature and expiry and returns its claims.
// All failures collapse into ErrInvalidToken.
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
