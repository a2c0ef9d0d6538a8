package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/api/dto"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/service"
	"github.com/spec-kit/auth-service/pkg/util"
)

const sessionCookieMaxAge = 604800 // 7 days, matches the token lifetime

// AuthHandler exposes the login and signup endpoints.
type AuthHandler struct {
	login   *service.LoginService
	signup  *service.SignupService
	cfg     config.AppConfig
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewAuthHandler constructs handler.
func NewAuthHandler(login *service.LoginService, signup *service.SignupService, cfg config.AppConfig, logger *zap.Logger, metrics *observability.Metrics) *AuthHandler {
	return &AuthHandler{login: login, signup: signup, cfg: cfg, logger: logger, metrics: metrics}
}

// Login handles POST /auth/login. Success sets the session cookie and
// redirects to the authenticated landing page; there is no success body.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, "login", "", util.NewRejection(util.CodeInvalidInput, "Invalid input."))
	}
	username := strings.ToLower(req.Username)

	result, err := h.login.Login(c.Context(), service.LoginInput{
		Username:  req.Username,
		Password:  req.Password,
		IP:        resolveClientIP(c),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return h.fail(c, "login", username, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   sessionCookieMaxAge,
		Secure:   h.cfg.Production(),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})

	h.metrics.RecordLogin("success")
	return c.Redirect(result.RedirectTo, fiber.StatusSeeOther)
}

// Signup handles POST /auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, "signup", "", util.NewRejection(util.CodeInvalidInput, "Invalid input."))
	}
	username := strings.ToLower(req.Username)

	_, err := h.signup.Signup(c.Context(), service.SignupInput{
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		InviteKey:       req.InviteKey,
		ScoreOverride:   req.IQOverride,
		SessionID:       req.SessionID,
		ClientScore:     req.IQScore,
	})
	if err != nil {
		return h.fail(c, "signup", username, err)
	}

	h.metrics.RecordSignup("success")
	return c.JSON(fiber.Map{"success": true})
}

// Me handles GET /auth/me behind the session middleware.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return util.NewUnauthorized("not authenticated")
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"id":       user.ID,
			"username": user.Username,
			"domain":   user.Domain,
			"score":    user.Score,
		},
	})
}

// fail maps a protocol error onto the structured failure body, echoing the
// submitted username back for form repopulation. Unexpected causes are logged
// in full and surfaced only as a generic message.
func (h *AuthHandler) fail(c *fiber.Ctx, op, username string, err error) error {
	domainErr := util.ToDomainError(err)
	if domainErr.HTTPStatus >= http.StatusInternalServerError {
		h.logger.Error(op+" error", zap.Error(domainErr))
	}

	switch op {
	case "login":
		h.metrics.RecordLogin(domainErr.Code)
	case "signup":
		h.metrics.RecordSignup(domainErr.Code)
	}

	return c.Status(domainErr.HTTPStatus).JSON(dto.AuthFailure{
		Success:  false,
		Error:    domainErr.Message,
		Username: username,
	})
}

// resolveClientIP picks the client address by header priority: CDN-provided
// client IP, generic real IP, first hop of the forwarded-for chain, then the
// transport peer address.
func resolveClientIP(c *fiber.Ctx) string {
	if ip := c.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if ip := c.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if chain := c.Get(fiber.HeaderXForwardedFor); chain != "" {
		if first := strings.TrimSpace(strings.Split(chain, ",")[0]); first != "" {
			return first
		}
	}
	return c.IP()
}
