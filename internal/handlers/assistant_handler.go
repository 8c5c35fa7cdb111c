package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/aliialzein/PsyConnect/internal/services"
)

type assistantReplier interface {
	Reply(ctx context.Context, userMessage string) (string, error)
}

type AssistantHandler struct {
	service assistantReplier
}

func NewAssistantHandler(service *services.AssistantService) *AssistantHandler {
	return &AssistantHandler{service: service}
}

type assistantRequest struct {
	Message string `json:"message"`
}

func (h *AssistantHandler) Chat(c *fiber.Ctx) error {
	if _, _, ok := actorFromContext(c); !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req assistantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message is required"})
	}

	reply, err := h.service.Reply(c.Context(), message)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"reply": reply})
}
