package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/aliialzein/PsyConnect/internal/models"
	"github.com/aliialzein/PsyConnect/internal/services"
)

type bookingApplicationService interface {
	CreateDirect(ctx context.Context, ownerID string, fields services.BookingFields) (*models.Booking, error)
	ListBookings(ctx context.Context, actorID, role, statusFilter string) ([]models.BookingDetail, error)
	GetBooking(ctx context.Context, actorID, role string, bookingID int64) (*models.BookingDetail, error)
	UpdateBooking(ctx context.Context, actorID, role string, bookingID int64, title string, description *string, kind string) (*models.Booking, error)
	Reschedule(ctx context.Context, actorID, role string, bookingID int64, newInstant time.Time) (*models.Booking, error)
	DeleteBooking(ctx context.Context, actorID, role string, bookingID int64) error
}

type BookingHandler struct {
	service bookingApplicationService
}

func NewBookingHandler(service *services.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

type createBookingRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Kind        string  `json:"kind"`
	ScheduledAt string  `json:"scheduled_at"`
}

type updateBookingRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Kind        string  `json:"kind"`
}

type rescheduleBookingRequest struct {
	ScheduledAt string `json:"scheduled_at"`
}

func parseScheduledAt(raw string) (time.Time, bool) {
	instant, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, false
	}
	return instant, true
}

// CreateBooking is the no-payment path: slot validation and insert happen in
// one step.
func (h *BookingHandler) CreateBooking(c *fiber.Ctx) error {
	userID, role, ok := actorFromContext(c)
	if !ok || role != models.RolePatient {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	var req createBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	scheduledAt, ok := parseScheduledAt(req.ScheduledAt)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "scheduled_at must be a valid RFC3339 timestamp"})
	}

	booking, err := h.service.CreateDirect(c.Context(), userID, services.BookingFields{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Kind:        req.Kind,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"booking": booking})
}

func (h *BookingHandler) ListBookings(c *fiber.Ctx) error {
	userID, role, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	bookings, err := h.service.ListBookings(c.Context(), userID, role, strings.TrimSpace(c.Query("status")))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"bookings": bookings})
}

func (h *BookingHandler) GetBooking(c *fiber.Ctx) error {
	userID, role, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	bookingID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || bookingID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}

	booking, err := h.service.GetBooking(c.Context(), userID, role, bookingID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"booking": booking})
}

func (h *BookingHandler) UpdateBooking(c *fiber.Ctx) error {
	userID, role, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	bookingID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || bookingID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}

	var req updateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	booking, err := h.service.UpdateBooking(c.Context(), userID, role, bookingID, strings.TrimSpace(req.Title), req.Description, req.Kind)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"booking": booking})
}

func (h *BookingHandler) Reschedule(c *fiber.Ctx) error {
	userID, role, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	bookingID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || bookingID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}

	var req rescheduleBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	scheduledAt, okTime := parseScheduledAt(req.ScheduledAt)
	if !okTime {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "scheduled_at must be a valid RFC3339 timestamp"})
	}

	booking, err := h.service.Reschedule(c.Context(), userID, role, bookingID, scheduledAt)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"booking": booking})
}

func (h *BookingHandler) DeleteBooking(c *fiber.Ctx) error {
	userID, role, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	bookingID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || bookingID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}

	if err := h.service.DeleteBooking(c.Context(), userID, role, bookingID); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type calendarEvent struct {
	ID              int64          `json:"id"`
	Title           string         `json:"title"`
	Start           string         `json:"start"`
	ExtendedProps   map[string]any `json:"extendedProps"`
	BackgroundColor string         `json:"backgroundColor"`
	BorderColor     string         `json:"borderColor"`
}

// Events feeds the dashboard calendar: admins see every booking, patients
// only their own.
func (h *BookingHandler) Events(c *fiber.Ctx) error {
	userID, role, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	bookings, err := h.service.ListBookings(c.Context(), userID, role, strings.TrimSpace(c.Query("status")))
	if err != nil {
		return mapServiceError(c, err)
	}

	events := make([]calendarEvent, 0, len(bookings))
	for _, booking := range bookings {
		color := "#2196f3"
		switch booking.Status {
		case models.StatusCompleted:
			color = "#4caf50"
		case models.StatusInProgress:
			color = "#ff9800"
		}
		events = append(events, calendarEvent{
			ID:    booking.ID,
			Title: booking.Title + " (" + booking.Kind + ")",
			Start: booking.ScheduledAt.Format(time.RFC3339),
			ExtendedProps: map[string]any{
				"status": booking.Status,
				"number": booking.Number,
			},
			BackgroundColor: color,
			BorderColor:     "#ffffff",
		})
	}
	return c.JSON(events)
}
