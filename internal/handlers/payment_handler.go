package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/aliialzein/PsyConnect/internal/models"
	"github.com/aliialzein/PsyConnect/internal/services"
)

type paymentBookingService interface {
	StartReservation(ctx context.Context, ownerID string, fields services.BookingFields) (*models.Reservation, error)
	ConfirmReservation(ctx context.Context, reservationID string) (*models.Booking, error)
	CancelReservation(ctx context.Context, reservationID string) (*models.Reservation, error)
	GetReservation(ctx context.Context, actorID, role, reservationID string) (*models.Reservation, error)
	ListReservations(ctx context.Context, ownerID string) ([]models.Reservation, error)
}

type PaymentHandler struct {
	service  paymentBookingService
	checkout services.CheckoutProvider
	baseURL  string
}

func NewPaymentHandler(service *services.BookingService, checkout services.CheckoutProvider, baseURL string) *PaymentHandler {
	return &PaymentHandler{service: service, checkout: checkout, baseURL: strings.TrimRight(baseURL, "/")}
}

type startPaymentRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Kind        string  `json:"kind"`
	ScheduledAt string  `json:"scheduled_at"`
}

// StartCheckout opens a reservation and hands back the hosted checkout URL.
// The booking itself is only written once the payment callback confirms.
func (h *PaymentHandler) StartCheckout(c *fiber.Ctx) error {
	userID, role, ok := actorFromContext(c)
	if !ok || role != models.RolePatient {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	var req startPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	scheduledAt, okTime := parseScheduledAt(req.ScheduledAt)
	if !okTime {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "scheduled_at must be a valid RFC3339 timestamp"})
	}

	reservation, err := h.service.StartReservation(c.Context(), userID, services.BookingFields{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Kind:        req.Kind,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	successURL := h.baseURL + "/api/payments/success?reservation_id=" + reservation.ID
	cancelURL := h.baseURL + "/api/payments/cancel?reservation_id=" + reservation.ID

	checkoutURL, err := h.checkout.CreateCheckoutSession(c.Context(), reservation.Amount, reservation.BookingTitle, successURL, cancelURL)
	if err != nil {
		// release the hold so the slot is not blocked by a dead intent
		_, _ = h.service.CancelReservation(c.Context(), reservation.ID)
		return mapServiceError(c, services.ErrExternalUnavailable)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"reservation":  reservation,
		"checkout_url": checkoutURL,
	})
}

// Success is the provider's return URL. Confirmation re-validates the slot; a
// slot lost in the meantime fails the reservation and reports the conflict.
func (h *PaymentHandler) Success(c *fiber.Ctx) error {
	reservationID := strings.TrimSpace(c.Query("reservation_id"))
	if reservationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reservation_id is required"})
	}

	booking, err := h.service.ConfirmReservation(c.Context(), reservationID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Payment confirmed", "booking": booking})
}

func (h *PaymentHandler) Cancel(c *fiber.Ctx) error {
	reservationID := strings.TrimSpace(c.Query("reservation_id"))
	if reservationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reservation_id is required"})
	}

	reservation, err := h.service.CancelReservation(c.Context(), reservationID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Payment canceled", "reservation": reservation})
}

// Confirm lets the owner finalize a reservation directly, for flows without a
// hosted checkout page.
func (h *PaymentHandler) Confirm(c *fiber.Ctx) error {
	userID, role, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	reservationID := strings.TrimSpace(c.Params("id"))
	if _, err := h.service.GetReservation(c.Context(), userID, role, reservationID); err != nil {
		return mapServiceError(c, err)
	}

	booking, err := h.service.ConfirmReservation(c.Context(), reservationID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"booking": booking})
}

func (h *PaymentHandler) GetReservation(c *fiber.Ctx) error {
	userID, role, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	reservation, err := h.service.GetReservation(c.Context(), userID, role, strings.TrimSpace(c.Params("id")))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"reservation": reservation})
}

func (h *PaymentHandler) ListReservations(c *fiber.Ctx) error {
	userID, _, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	reservations, err := h.service.ListReservations(c.Context(), userID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"reservations": reservations})
}
