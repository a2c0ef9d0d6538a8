package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-service/internal/domain"
)

func TestTokenManagerIssueAndParse(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	token, code, err := tm.Issue(&domain.User{ID: 42, Username: "alice"})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotEmpty(t, code)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "42", claims.Subject)
}

func TestTokenManagerIssueOneTimeCodesDiffer(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	user := &domain.User{ID: 1, Username: "alice"}

	_, code1, err := tm.Issue(user)
	require.NoError(t, err)
	_, code2, err := tm.Issue(user)
	require.NoError(t, err)

	assert.NotEqual(t, code1, code2)
}

func TestTokenManagerRefusesBannedUser(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	token, code, err := tm.Issue(&domain.User{ID: 7, Username: "mallory", Banned: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUserBanned))
	assert.Empty(t, token)
	assert.Empty(t, code)
}

func TestTokenManagerRejectsForeignSignature(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	other := NewTokenManager("other-secret", time.Hour)

	token, _, err := other.Issue(&domain.User{ID: 9, Username: "bob"})
	require.NoError(t, err)

	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManagerRejectsExpiredToken(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	tm.ttl = -time.Minute

	token, _, err := tm.Issue(&domain.User{ID: 3, Username: "carol"})
	require.NoError(t, err)

	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}
