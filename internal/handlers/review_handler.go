package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/aliialzein/PsyConnect/internal/models"
	"github.com/aliialzein/PsyConnect/internal/services"
)

type reviewApplicationService interface {
	CreateReview(ctx context.Context, ownerID string, bookingID int64, rating int, comment *string) (*models.Review, error)
	UpdateReview(ctx context.Context, ownerID string, reviewID int64, rating int, comment *string) (*models.Review, error)
	GetReview(ctx context.Context, actorID, role string, reviewID int64) (*models.Review, error)
	ListMyReviews(ctx context.Context, ownerID string) ([]models.Review, error)
	ListAllReviews(ctx context.Context) ([]models.Review, error)
}

type ReviewHandler struct {
	service reviewApplicationService
}

func NewReviewHandler(service *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

type createReviewRequest struct {
	BookingID int64   `json:"booking_id"`
	Rating    int     `json:"rating"`
	Comment   *string `json:"comment"`
}

type updateReviewRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment"`
}

func (h *ReviewHandler) CreateReview(c *fiber.Ctx) error {
	userID, role, ok := actorFromContext(c)
	if !ok || role != models.RolePatient {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	var req createReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.BookingID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "booking_id is required"})
	}

	review, err := h.service.CreateReview(c.Context(), userID, req.BookingID, req.Rating, req.Comment)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"review": review})
}

func (h *ReviewHandler) UpdateReview(c *fiber.Ctx) error {
	userID, role, ok := actorFromContext(c)
	if !ok || role != models.RolePatient {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	reviewID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || reviewID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid review id"})
	}

	var req updateReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	review, err := h.service.UpdateReview(c.Context(), userID, reviewID, req.Rating, req.Comment)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"review": review})
}

func (h *ReviewHandler) GetReview(c *fiber.Ctx) error {
	userID, role, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	reviewID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || reviewID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid review id"})
	}

	review, err := h.service.GetReview(c.Context(), userID, role, reviewID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"review": review})
}

func (h *ReviewHandler) ListReviews(c *fiber.Ctx) error {
	userID, role, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var (
		reviews []models.Review
		err     error
	)
	if role == models.RoleAdmin {
		reviews, err = h.service.ListAllReviews(c.Context())
	} else {
		reviews, err = h.service.ListMyReviews(c.Context(), userID)
	}
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"reviews": reviews})
}
