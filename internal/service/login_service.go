package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/pkg/util"
)

// RedirectAfterLogin is the authenticated landing destination.
const RedirectAfterLogin = "/inbox"

// TokenIssuer creates a signed session token plus a companion one-time code.
// Implementations refuse banned users with auth.ErrUserBanned.
type TokenIssuer interface {
	Issue(user *domain.User) (token string, code string, err error)
}

// LoginInput carries the submitted credentials together with the client
// context resolved by the transport layer.
type LoginInput struct {
	Username  string
	Password  string
	IP        string
	UserAgent string
}

// LoginResult signals a successful login. A non-nil result means the caller
// should set the session cookie and redirect; every failure is a typed error.
type LoginResult struct {
	User       *domain.User
	Token      string
	RedirectTo string
}

// LoginService verifies identity and issues session tokens.
type LoginService struct {
	users      repository.UserRepository
	codes      repository.AuthCodeRepository
	tokens     TokenIssuer
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// LoginDependencies encapsulates collaborator requirements for the login service.
type LoginDependencies struct {
	UserRepo     repository.UserRepository
	AuthCodeRepo repository.AuthCodeRepository
	Tokens       TokenIssuer
}

// NewLoginService builds the service.
func NewLoginService(deps LoginDependencies, dispatcher events.Dispatcher, logger *zap.Logger) *LoginService {
	return &LoginService{
		users:      deps.UserRepo,
		codes:      deps.AuthCodeRepo,
		tokens:     deps.Tokens,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Login authenticates a returning user. Unknown usernames and wrong passwords
// yield the identical failure so account existence cannot be probed.
func (s *LoginService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if in.Username == "" || in.Password == "" {
		return nil, util.NewRejection(util.CodeInvalidInput, "Invalid input.")
	}

	username := strings.ToLower(in.Username)
	if !auth.ValidateUsername(username) {
		return nil, util.NewRejection(util.CodeInvalidFormat, "Invalid username format.")
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invalidCredentials()
		}
		return nil, util.NewInternalError(err)
	}

	if user.Banned {
		return nil, util.NewForbidden(util.CodeAccountBanned, "Your account is banned.")
	}

	// Deactivated accounts are indistinguishable from unknown ones.
	if user.Deactivated() {
		return nil, invalidCredentials()
	}

	if err := auth.ComparePassword(user.PasswordHash, in.Password); err != nil {
		return nil, invalidCredentials()
	}

	token, code, err := s.tokens.Issue(user)
	if err != nil {
		if errors.Is(err, auth.ErrUserBanned) {
			return nil, util.NewForbidden(util.CodeAccountBanned, "Your account is banned.")
		}
		return nil, util.NewInternalError(err)
	}

	// The stored code is the durable side of the session; it must exist
	// before the cookie is handed to the client.
	if err := s.codes.Store(ctx, user.ID, code, in.IP, in.UserAgent); err != nil {
		return nil, util.NewInternalError(err)
	}

	s.publishLoggedIn(ctx, user, in)

	return &LoginResult{
		User:       user,
		Token:      token,
		RedirectTo: RedirectAfterLogin,
	}, nil
}

func (s *LoginService) publishLoggedIn(ctx context.Context, user *domain.User, in LoginInput) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventUserLoggedIn,
		UserID:    user.ID,
		Timestamp: time.Now(),
		Payload: events.UserLoggedInPayload{
			Username:  user.Username,
			IP:        in.IP,
			UserAgent: in.UserAgent,
		},
	})
}

func invalidCredentials() error {
	return util.NewRejection(util.CodeInvalidCredentials, "Invalid username or password.")
}
