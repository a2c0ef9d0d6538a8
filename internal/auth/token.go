package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/auth-service/internal/domain"
)

// ErrUserBanned is returned when a token is requested for a banned account.
// Callers must detect this condition with errors.Is, never by message text.
var ErrUserBanned = errors.New("user is banned and cannot be issued a token")

// TokenManager issues and validates signed session tokens. Each issued token
// is paired with a one-time code that callers persist alongside the client
// context before the token reaches the client.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 168 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Claims describes the JWT payload.
type Claims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// Issue builds a signed token plus a companion one-time code for the user.
// Banned users are refused with ErrUserBanned.
func (tm *TokenManager) Issue(user *domain.User) (string, string, error) {
	if user.Banned {
		return "", "", fmt.Errorf("issue token for user %d: %w", user.ID, ErrUserBanned)
	}

	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", "", err
	}

	code := uuid.NewString()
	return tokenString, code, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
