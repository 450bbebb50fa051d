package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pharrrodev/type2lyfe-sub001/internal/models"
	"github.com/pharrrodev/type2lyfe-sub001/internal/services"
)

type credentialsInput struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type changePasswordInput struct {
	Email           string `json:"email" form:"email"`
	CurrentPassword string `json:"current_password" form:"current_password"`
	NewPassword     string `json:"new_password" form:"new_password"`
}

func (handler *Handler) Register(c *fiber.Ctx) error {
	input := credentialsInput{}
	if err := c.BodyParser(&input); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid input")
	}

	user, err := handler.authService.Register(input.Email, input.Password)
	switch {
	case errors.Is(err, services.ErrAuthCredentialsInvalid):
		return apiError(c, fiber.StatusBadRequest, "invalid input")
	case errors.Is(err, services.ErrWeakPassword):
		return apiError(c, fiber.StatusBadRequest, "weak password")
	case errors.Is(err, services.ErrEmailExists):
		return apiError(c, fiber.StatusConflict, "email already exists")
	case err != nil:
		handler.logger.Error("registration failed", "err", err)
		return apiError(c, fiber.StatusInternalServerError, "failed to create account")
	}

	handler.logger.Info("user registered", "user_id", user.ID)
	return handler.respondWithToken(c, fiber.StatusCreated, &user)
}

func (handler *Handler) Login(c *fiber.Ctx) error {
	input := credentialsInput{}
	if err := c.BodyParser(&input); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid input")
	}

	key := loginLimiterKey(c, services.NormalizeAuthEmail(input.Email))
	now := handler.now()
	if handler.loginLimiter.blocked(key, now) {
		return apiError(c, fiber.StatusTooManyRequests, "too many login attempts")
	}

	user, err := handler.authService.Authenticate(input.Email, input.Password)
	switch {
	case errors.Is(err, services.ErrPasswordChangeRequired):
		handler.loginLimiter.clear(key)
		return apiError(c, fiber.StatusForbidden, "password change required")
	case err != nil:
		handler.loginLimiter.recordFailure(key, now)
		return apiError(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	handler.loginLimiter.clear(key)
	return handler.respondWithToken(c, fiber.StatusOK, &user)
}

// ChangePassword is public so that a user with a temporary password can set
// a new one before holding a token.
func (handler *Handler) ChangePassword(c *fiber.Ctx) error {
	input := changePasswordInput{}
	if err := c.BodyParser(&input); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid input")
	}

	key := loginLimiterKey(c, services.NormalizeAuthEmail(input.Email))
	now := handler.now()
	if handler.loginLimiter.blocked(key, now) {
		return apiError(c, fiber.StatusTooManyRequests, "too many login attempts")
	}

	user, err := handler.authService.ChangePassword(input.Email, input.CurrentPassword, input.NewPassword)
	switch {
	case errors.Is(err, services.ErrWeakPassword):
		return apiError(c, fiber.StatusBadRequest, "weak password")
	case errors.Is(err, services.ErrAuthCredentialsInvalid):
		handler.loginLimiter.recordFailure(key, now)
		return apiError(c, fiber.StatusUnauthorized, "invalid credentials")
	case err != nil:
		handler.logger.Error("password change failed", "err", err)
		return apiError(c, fiber.StatusInternalServerError, "failed to change password")
	}

	handler.loginLimiter.clear(key)
	return handler.respondWithToken(c, fiber.StatusOK, &user)
}

func (handler *Handler) respondWithToken(c *fiber.Ctx, status int, user *models.User) error {
	token, expiresAt, err := handler.buildToken(user)
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, "failed to create session")
	}
	return c.Status(status).JSON(fiber.Map{
		"token":      token,
		"expires_at": expiresAt.UTC(),
	})
}
