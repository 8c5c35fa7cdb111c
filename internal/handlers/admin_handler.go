package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/aliialzein/PsyConnect/internal/models"
	"github.com/aliialzein/PsyConnect/internal/repository"
	"github.com/aliialzein/PsyConnect/internal/services"
)

type statsSource interface {
	Stats(ctx context.Context, now time.Time) (*repository.BookingStats, error)
}

type statsSummarizer interface {
	Summarize(ctx context.Context, stats *repository.BookingStats) string
}

type AdminHandler struct {
	stats      statsSource
	summarizer statsSummarizer
}

func NewAdminHandler(stats *repository.BookingRepository, summarizer *services.SummaryService) *AdminHandler {
	return &AdminHandler{stats: stats, summarizer: summarizer}
}

func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	_, role, ok := actorFromContext(c)
	if !ok || role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	stats, err := h.stats.Stats(c.Context(), time.Now())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"stats": stats})
}

// Summary returns the stats plus a generated narrative. The narrative
// degrades to a fixed message when the provider is down, so this endpoint
// never fails because of the model.
func (h *AdminHandler) Summary(c *fiber.Ctx) error {
	_, role, ok := actorFromContext(c)
	if !ok || role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	stats, err := h.stats.Stats(c.Context(), time.Now())
	if err != nil {
		return mapServiceError(c, err)
	}
	summary := h.summarizer.Summarize(c.Context(), stats)
	return c.JSON(fiber.Map{"stats": stats, "summary": summary})
}
