package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/aliialzein/PsyConnect/internal/services"
)

func mapServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidSlot):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Please choose one of the allowed time slots on a future date"})
	case errors.Is(err, services.ErrSlotUnavailable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This time slot is already booked. Please choose another one."})
	case errors.Is(err, services.ErrSlotLost):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Sorry, this time slot has just been booked by someone else."})
	case errors.Is(err, services.ErrReviewExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "A review for this booking already exists"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrNotModifiable):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrExternalUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service temporarily unavailable"})
	case errors.Is(err, services.ErrNotFound), errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process request"})
	}
}

func actorFromContext(c *fiber.Ctx) (string, string, bool) {
	userID, okID := c.Locals("user_id").(string)
	role, okRole := c.Locals("role").(string)
	return userID, role, okID && okRole && userID != ""
}
