package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/aliialzein/PsyConnect/internal/models"
	"github.com/aliialzein/PsyConnect/internal/repository"
	"github.com/aliialzein/PsyConnect/internal/slot"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidSlot         = errors.New("invalid time slot")
	ErrSlotUnavailable     = errors.New("slot unavailable")
	ErrSlotLost            = errors.New("slot lost")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrNotModifiable       = errors.New("booking state forbids this change")
	ErrExternalUnavailable = errors.New("external service unavailable")
)

const (
	PriceOnsite = 30.0
	PriceOnline = 20.0
)

// PriceFor returns the session price for a booking kind.
func PriceFor(kind string) (float64, error) {
	switch kind {
	case models.KindOnsite:
		return PriceOnsite, nil
	case models.KindOnline:
		return PriceOnline, nil
	default:
		return 0, ErrInvalidInput
	}
}

type bookingUserReader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type BookingFields struct {
	Title       string
	Description *string
	Kind        string
	ScheduledAt time.Time
}

type BookingService struct {
	db              *pgxpool.Pool
	bookingRepo     *repository.BookingRepository
	reservationRepo *repository.ReservationRepository
	reviewRepo      *repository.ReviewRepository
	statusService   *StatusService
	userRepo        bookingUserReader
	mailer          EmailSender
	log             zerolog.Logger
}

func NewBookingService(
	db *pgxpool.Pool,
	bookingRepo *repository.BookingRepository,
	reservationRepo *repository.ReservationRepository,
	reviewRepo *repository.ReviewRepository,
	statusService *StatusService,
	userRepo bookingUserReader,
	mailer EmailSender,
	log zerolog.Logger,
) *BookingService {
	return &BookingService{
		db:              db,
		bookingRepo:     bookingRepo,
		reservationRepo: reservationRepo,
		reviewRepo:      reviewRepo,
		statusService:   statusService,
		userRepo:        userRepo,
		mailer:          mailer,
		log:             log,
	}
}

func (s *BookingService) validateFields(fields *BookingFields, now time.Time) error {
	if fields.Title == "" {
		return ErrInvalidInput
	}
	if fields.Kind != models.KindOnsite && fields.Kind != models.KindOnline {
		return ErrInvalidInput
	}
	fields.ScheduledAt = fields.ScheduledAt.Truncate(time.Minute)
	if !slot.Allowed(fields.ScheduledAt, now) {
		return ErrInvalidSlot
	}
	return nil
}

// StartReservation opens a Pending payment intent holding a snapshot of the
// requested booking. No booking row exists until the reservation is confirmed.
func (s *BookingService) StartReservation(ctx context.Context, ownerID string, fields BookingFields) (*models.Reservation, error) {
	if err := s.validateFields(&fields, time.Now()); err != nil {
		return nil, err
	}

	free, err := s.bookingRepo.SlotIsFree(ctx, fields.ScheduledAt, 0)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, ErrSlotUnavailable
	}

	amount, err := PriceFor(fields.Kind)
	if err != nil {
		return nil, err
	}

	return s.reservationRepo.Create(ctx, repository.CreateReservationInput{
		OwnerID:            ownerID,
		Amount:             amount,
		BookingTitle:       fields.Title,
		BookingDescription: fields.Description,
		BookingKind:        fields.Kind,
		BookingScheduledAt: fields.ScheduledAt,
	})
}

// ConfirmReservation finalizes a paid reservation: it re-validates the slot at
// confirmation time, assigns the owner's next sequence number, inserts the
// booking and marks the reservation Paid, all in one transaction. Confirming
// an already-Paid reservation is a no-op success. A slot lost between Start
// and Confirm (including losing the race at the unique constraint) moves the
// reservation to Failed and surfaces ErrSlotLost.
func (s *BookingService) ConfirmReservation(ctx context.Context, reservationID string) (*models.Booking, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txReservationRepo := repository.NewReservationRepository(tx)
	txBookingRepo := repository.NewBookingRepository(tx)

	reservation, err := txReservationRepo.GetByIDForUpdate(ctx, reservationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	switch reservation.Status {
	case models.ReservationPaid:
		booking, err := txBookingRepo.GetBySlot(ctx, reservation.BookingScheduledAt)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		// the slot may have been freed and re-booked by someone else since
		// this reservation was paid; never hand back a foreign booking
		if booking != nil && booking.OwnerID != reservation.OwnerID {
			booking = nil
		}
		return booking, tx.Commit(ctx)
	case models.ReservationCanceled, models.ReservationFailed:
		return nil, ErrNotModifiable
	}

	booking, err := s.commitBooking(ctx, txBookingRepo, reservation.OwnerID, BookingFields{
		Title:       reservation.BookingTitle,
		Description: reservation.BookingDescription,
		Kind:        reservation.BookingKind,
		ScheduledAt: reservation.BookingScheduledAt,
	})
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			// slot lost between Start and Confirm
			if _, err := txReservationRepo.UpdateStatusIfCurrent(ctx, reservationID, models.ReservationPending, models.ReservationFailed); err != nil {
				return nil, err
			}
			if err := tx.Commit(ctx); err != nil {
				return nil, err
			}
			return nil, ErrSlotLost
		}
		if isUniqueViolation(err) {
			// The pre-check raced another writer; the constraint is the
			// authority. The aborted transaction takes the insert and the
			// row lock with it, so the Failed transition runs on the pool.
			_ = tx.Rollback(ctx)
			if _, failErr := s.reservationRepo.UpdateStatusIfCurrent(ctx, reservationID, models.ReservationPending, models.ReservationFailed); failErr != nil {
				s.log.Error().Err(failErr).Str("reservation_id", reservationID).Msg("failed to mark raced reservation as Failed")
			}
			return nil, ErrSlotLost
		}
		return nil, err
	}

	if _, err := txReservationRepo.UpdateStatusIfCurrent(ctx, reservationID, models.ReservationPending, models.ReservationPaid); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.sendBookingEmail(booking, "Your session is booked")
	return booking, nil
}

// CancelReservation moves a Pending reservation to Canceled. Reservations
// already in a terminal state are returned unchanged.
func (s *BookingService) CancelReservation(ctx context.Context, reservationID string) (*models.Reservation, error) {
	reservation, err := s.reservationRepo.GetByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if reservation.Status != models.ReservationPending {
		return reservation, nil
	}

	updated, err := s.reservationRepo.UpdateStatusIfCurrent(ctx, reservationID, models.ReservationPending, models.ReservationCanceled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// lost the race against a callback; re-read the terminal state
			return s.reservationRepo.GetByID(ctx, reservationID)
		}
		return nil, err
	}
	return updated, nil
}

// GetReservation returns a reservation to its owner (admins may read any).
func (s *BookingService) GetReservation(ctx context.Context, actorID, role, reservationID string) (*models.Reservation, error) {
	reservation, err := s.reservationRepo.GetByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if role != models.RoleAdmin && reservation.OwnerID != actorID {
		return nil, ErrForbidden
	}
	return reservation, nil
}

// ListReservations returns the caller's payment intents, newest first.
func (s *BookingService) ListReservations(ctx context.Context, ownerID string) ([]models.Reservation, error) {
	return s.reservationRepo.ListByOwner(ctx, ownerID)
}

// CreateDirect books a slot without an external payment step. It shares the
// commit logic with ConfirmReservation: pre-check inside the transaction,
// unique constraint as the authority.
func (s *BookingService) CreateDirect(ctx context.Context, ownerID string, fields BookingFields) (*models.Booking, error) {
	if err := s.validateFields(&fields, time.Now()); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txBookingRepo := repository.NewBookingRepository(tx)

	// serialize same-slot writers; cheap because the key is the slot itself
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", fields.ScheduledAt.Unix()); err != nil {
		return nil, err
	}

	booking, err := s.commitBooking(ctx, txBookingRepo, ownerID, fields)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.sendBookingEmail(booking, "Your session is booked")
	return booking, nil
}

// commitBooking is the shared reserve-and-insert step. The caller owns the
// transaction and maps a unique violation to its conflict error.
func (s *BookingService) commitBooking(ctx context.Context, txBookingRepo *repository.BookingRepository, ownerID string, fields BookingFields) (*models.Booking, error) {
	free, err := txBookingRepo.SlotIsFree(ctx, fields.ScheduledAt, 0)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, ErrSlotUnavailable
	}

	number, err := txBookingRepo.NextOwnerSequence(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	return txBookingRepo.Insert(ctx, repository.CreateBookingInput{
		OwnerID:     ownerID,
		Title:       fields.Title,
		Description: fields.Description,
		Kind:        fields.Kind,
		ScheduledAt: fields.ScheduledAt,
		Number:      number,
	})
}

// UpdateBooking edits the descriptive fields of a booking. The slot stays
// untouched; a booking whose session already ended is frozen.
func (s *BookingService) UpdateBooking(ctx context.Context, actorID, role string, bookingID int64, title string, description *string, kind string) (*models.Booking, error) {
	if title == "" {
		return nil, ErrInvalidInput
	}
	if kind != models.KindOnsite && kind != models.KindOnline {
		return nil, ErrInvalidInput
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if role != models.RoleAdmin && booking.OwnerID != actorID {
		return nil, ErrForbidden
	}
	if slot.DeriveStatus(booking.ScheduledAt, time.Now()) == models.StatusCompleted {
		return nil, ErrNotModifiable
	}

	return s.bookingRepo.UpdateFields(ctx, bookingID, title, description, kind)
}

// Reschedule moves a booking to a new instant. A booking whose derived status
// is InProgress or Completed is frozen, as is a Pending booking scheduled for
// today.
func (s *BookingService) Reschedule(ctx context.Context, actorID, role string, bookingID int64, newInstant time.Time) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if role != models.RoleAdmin && booking.OwnerID != actorID {
		return nil, ErrForbidden
	}

	now := time.Now()
	derived := slot.DeriveStatus(booking.ScheduledAt, now)
	if derived == models.StatusInProgress || derived == models.StatusCompleted {
		return nil, ErrNotModifiable
	}
	if derived == models.StatusPending && slot.SameDay(booking.ScheduledAt.Local(), now) {
		return nil, ErrNotModifiable
	}

	newInstant = newInstant.Truncate(time.Minute)
	if !slot.Allowed(newInstant, now) {
		return nil, ErrInvalidSlot
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txBookingRepo := repository.NewBookingRepository(tx)

	free, err := txBookingRepo.SlotIsFree(ctx, newInstant, bookingID)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, ErrSlotUnavailable
	}

	updated, err := txBookingRepo.UpdateSchedule(ctx, bookingID, newInstant)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.sendBookingEmail(updated, "Your session was rescheduled")
	return updated, nil
}

// DeleteBooking removes a booking; the associated review goes with it.
func (s *BookingService) DeleteBooking(ctx context.Context, actorID, role string, bookingID int64) error {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if role != models.RoleAdmin && booking.OwnerID != actorID {
		return ErrForbidden
	}

	deleted, err := s.bookingRepo.Delete(ctx, bookingID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// GetBooking returns a booking with its status reconciled against the clock
// and its review attached when one exists.
func (s *BookingService) GetBooking(ctx context.Context, actorID, role string, bookingID int64) (*models.BookingDetail, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if role != models.RoleAdmin && booking.OwnerID != actorID {
		return nil, ErrForbidden
	}

	bookings := []models.Booking{*booking}
	s.statusService.Reconcile(ctx, bookings, time.Now())

	detail := &models.BookingDetail{Booking: bookings[0]}
	review, err := s.reviewRepo.GetByBookingID(ctx, bookingID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err == nil {
		detail.Review = review
	}
	return detail, nil
}

// ListBookings returns the caller's bookings (all bookings for admins),
// reconciled, newest slot first.
func (s *BookingService) ListBookings(ctx context.Context, actorID, role, statusFilter string) ([]models.BookingDetail, error) {
	filter := repository.BookingListFilter{Status: statusFilter}
	if role != models.RoleAdmin {
		filter.OwnerID = actorID
	}

	bookings, err := s.bookingRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.statusService.Reconcile(ctx, bookings, time.Now())

	details := make([]models.BookingDetail, 0, len(bookings))
	for _, booking := range bookings {
		detail := models.BookingDetail{Booking: booking}
		review, err := s.reviewRepo.GetByBookingID(ctx, booking.ID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if err == nil {
			detail.Review = review
		}
		details = append(details, detail)
	}
	return details, nil
}

func (s *BookingService) sendBookingEmail(booking *models.Booking, subject string) {
	if s.mailer == nil || s.userRepo == nil || booking == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		user, err := s.userRepo.GetByID(ctx, booking.OwnerID)
		if err != nil || user.Email == "" {
			s.log.Warn().Err(err).Str("owner_id", booking.OwnerID).Msg("booking email skipped: owner not reachable")
			return
		}

		body := fmt.Sprintf(
			"<h2>%s</h2><ul><li><strong>Title:</strong> %s</li><li><strong>Type:</strong> %s</li><li><strong>Date &amp; Time:</strong> %s</li><li><strong>Queue Number:</strong> %d</li></ul>",
			subject, booking.Title, booking.Kind,
			booking.ScheduledAt.Local().Format("Monday, January 2, 2006 3:04 PM"),
			booking.Number,
		)
		if err := s.mailer.Send(ctx, user.Email, "PsyConnect – "+subject, body); err != nil {
			s.log.Warn().Err(err).Int64("booking_id", booking.ID).Msg("booking email failed")
		}
	}()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
