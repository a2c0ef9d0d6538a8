package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// CookieName is the session cookie carrying the signed token.
const CookieName = "auth_token"

const principalKey = "auth_principal"

// SessionMiddleware validates the session cookie and loads the current user.
type SessionMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(tokens *TokenManager, users repository.UserRepository) *SessionMiddleware {
	return &SessionMiddleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *SessionMiddleware) Handle(c *fiber.Ctx) error {
	tokenStr := c.Cookies(CookieName)
	if tokenStr == "" {
		return apperrors.NewUnauthorized("missing session cookie")
	}

	claims, err := m.tokens.ParseToken(tokenStr)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(c.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}
	if user.Banned {
		return apperrors.NewForbidden(apperrors.CodeAccountBanned, "Your account is banned.")
	}

	c.Locals(principalKey, user)
	return c.Next()
}

// UserFromContext retrieves the authenticated user.
func UserFromContext(c *fiber.Ctx) (*domain.User, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	user, ok := val.(*domain.User)
	return user, ok
}
