package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pharrrodev/type2lyfe-sub001/internal/services"
)

type medicationInput struct {
	Name string `json:"name" form:"name"`
	Dose string `json:"dose" form:"dose"`
}

func (handler *Handler) ListMedications(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return apiError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	medications, err := handler.medicationService.List(user.ID)
	if err != nil {
		handler.logger.Error("list medications failed", "user_id", user.ID, "err", err)
		return apiError(c, fiber.StatusInternalServerError, "failed to load medications")
	}
	return c.JSON(fiber.Map{"items": medications})
}

func (handler *Handler) AddMedication(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return apiError(c, fiber.StatusUnauthorized, "unauthorized")
	}
	input := medicationInput{}
	if err := c.BodyParser(&input); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid input")
	}

	medication, err := handler.medicationService.Add(user.ID, input.Name, input.Dose)
	switch {
	case errors.Is(err, services.ErrMedicationNameRequired),
		errors.Is(err, services.ErrMedicationNameTooLong),
		errors.Is(err, services.ErrMedicationDoseTooLong):
		return apiError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrMedicationExists):
		return apiError(c, fiber.StatusConflict, err.Error())
	case err != nil:
		handler.logger.Error("add medication failed", "user_id", user.ID, "err", err)
		return apiError(c, fiber.StatusInternalServerError, "failed to save medication")
	}
	return c.Status(fiber.StatusCreated).JSON(medication)
}

func (handler *Handler) DeleteMedication(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return apiError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	err := handler.medicationService.Delete(user.ID, c.Params("id"))
	switch {
	case errors.Is(err, services.ErrMedicationNotFound):
		return apiError(c, fiber.StatusNotFound, err.Error())
	case err != nil:
		handler.logger.Error("delete medication failed", "user_id", user.ID, "err", err)
		return apiError(c, fiber.StatusInternalServerError, "failed to delete medication")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
