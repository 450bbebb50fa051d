package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
)

func apiError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// validationError answers 400 with the offending field when one is known.
func validationError(c *fiber.Ctx, err error) error {
	var invalid *record.ValidationError
	if errors.As(err, &invalid) && invalid.Field != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": invalid.Error(), "field": invalid.Field})
	}
	return apiError(c, fiber.StatusBadRequest, err.Error())
}

func (handler *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (handler *Handler) NotFound(c *fiber.Ctx) error {
	return apiError(c, fiber.StatusNotFound, "not found")
}
