package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager("test-secret-key-for-testing", "HS256", 15*time.Minute, 30*24*time.Hour)
	require.NoError(t, err)
	return tm
}

func TestNewTokenManager_RejectsNonHMAC(t *testing.T) {
	_, err := NewTokenManager("secret", "RS256", time.Minute, time.Hour)
	assert.Error(t, err)

	_, err = NewTokenManager("secret", "none", time.Minute, time.Hour)
	assert.Error(t, err)

	_, err = NewTokenManager("secret", "bogus", time.Minute, time.Hour)
	assert.Error(t, err)
}

func TestAccessToken_RoundTrip(t *testing.T) {
	tm := newManager(t)

	token, err := tm.NewAccessToken(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "42", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	tm := newManager(t)

	token, err := tm.NewRefreshToken(7)
	require.NoError(t, err)

	claims, err := tm.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestParse_ExpiredToken(t *testing.T) {
	tm := newManager(t)

	token, err := tm.SignWithExpiry(42, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	claims, err := tm.Parse(token)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_WrongSecret(t *testing.T) {
	tm := newManager(t)
	other, err := NewTokenManager("a-completely-different-secret", "HS256", time.Minute, time.Hour)
	require.NoError(t, err)

	token, err := other.NewAccessToken(42)
	require.NoError(t, err)

	_, err = tm.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_TamperedPayload(t *testing.T) {
	tm := newManager(t)

	token, err := tm.NewAccessToken(42)
	require.NoError(t, err)

	// Flip a character in the payload segment; the signature no longer matches.
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	_, err = tm.Parse(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Malformed(t *testing.T) {
	tm := newManager(t)

	for _, tok := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		_, err := tm.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}

func TestParse_RejectsUnsignedToken(t *testing.T) {
	tm := newManager(t)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UserID: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tm.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_RejectsMissingExpiry(t *testing.T) {
	tm := newManager(t)

	// A signed token without an exp claim must be rejected, not treated
	// as never-expiring.
	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: 42})
	token, err := noExpiry.SignedString([]byte("test-secret-key-for-testing"))
	require.NoError(t, err)

	_, err = tm.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_RejectsZeroUserID(t *testing.T) {
	tm := newManager(t)

	token, err := tm.NewAccessToken(0)
	require.NoError(t, err)

	_, err = tm.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiryTamperingInvalidatesSignature(t *testing.T) {
	tm := newManager(t)

	token, err := tm.SignWithExpiry(42, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	// Re-encode the payload with a future expiry while keeping the old
	// signature. Expiry lives inside the signed payload, so the token
	// must stay invalid.
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
	require.NoError(t, err)
	claims := parsed.Claims.(*Claims)
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))

	forgedPayload, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SigningString()
	require.NoError(t, err)
	parts := strings.Split(token, ".")
	forged := forgedPayload + "." + parts[2]

	_, err = tm.Parse(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
