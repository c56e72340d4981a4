package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "access-secret-for-tests-0123456789"
	testRefreshSecret = "refresh-secret-for-tests-0123456789"
)

func newTestIssuer() *TokenIssuer {
	return NewTokenIssuer(testAccessSecret, testRefreshSecret, 15*time.Minute, 240*time.Hour)
}

func TestIssueAndValidateAccessToken(t *testing.T) {
	issuer := newTestIssuer()

	token, err := issuer.IssueAccessToken("user-1", "alice", "alice@x.com", "Alice A")
	require.NoError(t, err)

	claims, err := issuer.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.UserName)
	assert.Equal(t, "alice@x.com", claims.Email)
	assert.Equal(t, "Alice A", claims.FullName)
	assert.Equal(t, "vidtube", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestIssueAndValidateRefreshToken(t *testing.T) {
	issuer := newTestIssuer()

	token, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)

	claims, err := issuer.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestTokensIssuedInSameSecondDiffer(t *testing.T) {
	issuer := newTestIssuer()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return fixed }

	a, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)
	b, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestSecretsAreNotInterchangeable(t *testing.T) {
	issuer := newTestIssuer()

	access, err := issuer.IssueAccessToken("user-1", "alice", "alice@x.com", "Alice")
	require.NoError(t, err)
	refresh, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)

	_, err = issuer.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.ValidateAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccessToken_Rejections(t *testing.T) {
	issuer := newTestIssuer()
	other := NewTokenIssuer("some-other-access-secret-0123456789", testRefreshSecret, time.Minute, time.Hour)

	wrongSecret, err := other.IssueAccessToken("user-1", "alice", "a@x.com", "A")
	require.NoError(t, err)

	expiredIssuer := newTestIssuer()
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredIssuer.IssueAccessToken("user-1", "alice", "a@x.com", "A")
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "vidtube",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	foreignIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "vidtube",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"wrong secret", wrongSecret, ErrInvalidToken},
		{"expired", expired, ErrTokenExpired},
		{"malformed", "not.a.jwt", ErrInvalidToken},
		{"empty", "", ErrInvalidToken},
		{"alg none", noneAlg, ErrInvalidToken},
		{"foreign issuer", foreignIssuer, ErrInvalidToken},
		{"missing subject", noSubject, ErrInvalidToken},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := issuer.ValidateAccessToken(tc.token)
			assert.Nil(t, claims)
			assert.True(t, errors.Is(err, tc.want), "got %v, want %v", err, tc.want)
		})
	}
}

func TestExpiredErrorText(t *testing.T) {
	issuer := newTestIssuer()
	issuer.now = func() time.Time { return time.Now().Add(-300 * time.Hour) }
	token, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.ValidateRefreshToken(token)

	require.Error(t, err)
	assert.Equal(t, "token is expired", err.Error())
}
