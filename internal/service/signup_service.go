package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/pkg/util"
)

const minPasswordLength = 8

// SignupInput carries the submitted registration form fields.
type SignupInput struct {
	Username        string
	Password        string
	ConfirmPassword string
	InviteKey       string
	ScoreOverride   string
	SessionID       string
	ClientScore     string
}

// SignupService verifies invite and score eligibility and creates accounts.
type SignupService struct {
	users      repository.UserRepository
	sessions   repository.SessionScoreRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger

	inviteKey          string
	allowScoreOverride bool
	publicDomain       string
	bcryptCost         int
}

// SignupDependencies encapsulates collaborator requirements for the signup service.
type SignupDependencies struct {
	UserRepo    repository.UserRepository
	SessionRepo repository.SessionScoreRepository
}

// NewSignupService builds the service.
func NewSignupService(cfg config.Config, deps SignupDependencies, dispatcher events.Dispatcher, logger *zap.Logger) *SignupService {
	return &SignupService{
		users:              deps.UserRepo,
		sessions:           deps.SessionRepo,
		dispatcher:         dispatcher,
		logger:             logger,
		inviteKey:          cfg.Signup.InviteKey,
		allowScoreOverride: cfg.Signup.AllowScoreOverride,
		publicDomain:       cfg.App.PublicDomain,
		bcryptCost:         cfg.Auth.BcryptCost,
	}
}

// Signup runs the eligibility checks in fixed order and creates the account.
// The qualifying session is consumed only after the account row exists; a
// failed deletion is logged and does not undo the account.
func (s *SignupService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	if in.Username == "" {
		return nil, util.NewRejection(util.CodeInvalidInput, "Username is required")
	}
	username := strings.ToLower(in.Username)
	if !auth.ValidateUsername(username) {
		return nil, util.NewRejection(util.CodeInvalidFormat, "Invalid username format")
	}
	if in.Password == "" {
		return nil, util.NewRejection(util.CodeInvalidInput, "Password is required")
	}
	if in.ConfirmPassword == "" {
		return nil, util.NewRejection(util.CodeInvalidInput, "Password confirmation is required")
	}
	if in.InviteKey == "" {
		return nil, util.NewRejection(util.CodeInvalidInput, "An invite key is required.")
	}

	useOverride := in.ScoreOverride != ""
	if useOverride && !s.allowScoreOverride {
		return nil, util.NewRejection(util.CodeInvalidInput, "Score override is not permitted")
	}
	if !useOverride {
		if in.SessionID == "" {
			return nil, util.NewRejection(util.CodeInvalidInput, "Qualifying test session ID is missing")
		}
		if in.ClientScore == "" {
			return nil, util.NewRejection(util.CodeInvalidInput, "Qualifying score is missing")
		}
	}

	if len(in.Password) < minPasswordLength {
		return nil, util.NewRejection(util.CodeInvalidInput, "Password must be at least 8 characters")
	}
	if in.Password != in.ConfirmPassword {
		return nil, util.NewRejection(util.CodePasswordMismatch, "Passwords do not match")
	}
	if in.InviteKey != s.inviteKey {
		return nil, util.NewRejection(util.CodeInvalidInvite, "Invalid invite key")
	}

	score, err := s.resolveScore(ctx, in, useOverride)
	if err != nil {
		return nil, err
	}

	// Pre-check for a friendly 409; the unique constraint at insert remains
	// the authoritative guard against concurrent signups.
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, usernameTaken()
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, util.NewInternalError(err)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, util.NewInternalError(err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
		Domain:       s.publicDomain,
		Score:        score,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, usernameTaken()
		}
		return nil, util.NewInternalError(err)
	}

	if !useOverride {
		if err := s.sessions.DeleteSession(ctx, in.SessionID); err != nil {
			s.logger.Warn("failed to consume qualifying session",
				zap.String("session_id", in.SessionID),
				zap.Error(err))
		}
	}

	s.publishRegistered(ctx, user)

	return user, nil
}

// resolveScore picks the account score from exactly one of the two branches.
// The override branch never consults the session store.
func (s *SignupService) resolveScore(ctx context.Context, in SignupInput, useOverride bool) (int, error) {
	if useOverride {
		score, err := strconv.Atoi(in.ScoreOverride)
		if err != nil {
			return 0, util.NewRejection(util.CodeInvalidScoreFormat, "Invalid score format")
		}
		return score, nil
	}

	claimed, err := strconv.Atoi(in.ClientScore)
	if err != nil {
		return 0, util.NewRejection(util.CodeInvalidScoreFormat, "Invalid score format")
	}

	held, err := s.sessions.GetScore(ctx, in.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return 0, util.NewRejection(util.CodeSessionNotFound, "Qualifying test session not found or incomplete")
		}
		return 0, util.NewInternalError(err)
	}

	if held != claimed {
		return 0, util.NewRejection(util.CodeScoreMismatch, "Score validation failed")
	}
	return held, nil
}

func (s *SignupService) publishRegistered(ctx context.Context, user *domain.User) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventUserRegistered,
		UserID:    user.ID,
		Timestamp: time.Now(),
		Payload: events.UserRegisteredPayload{
			Username: user.Username,
			Domain:   user.Domain,
			Score:    user.Score,
		},
	})
}

func usernameTaken() error {
	return util.NewConflict(util.CodeUsernameTaken, "Username already taken")
}
