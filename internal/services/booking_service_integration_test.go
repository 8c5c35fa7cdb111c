package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/aliialzein/PsyConnect/internal/models"
	"github.com/aliialzein/PsyConnect/internal/repository"
)

var (
	testDBOnce sync.Once
	testDBPool *pgxpool.Pool
	testDBErr  error
)

func TestBookingServiceReserveAndConfirmFlow(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationBookingService(pool)

	ownerID := createTestPatient(t, ctx, pool)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, ownerID) })

	scheduledAt := time.Date(2030, 3, 15, 10, 0, 0, 0, time.Local)
	reservation, err := service.StartReservation(ctx, ownerID, BookingFields{
		Title:       "Intake session",
		Kind:        models.KindOnline,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		t.Fatalf("StartReservation: %v", err)
	}

	if reservation.Status != models.ReservationPending {
		t.Fatalf("expected Pending reservation, got %q", reservation.Status)
	}
	if reservation.Amount != PriceOnline {
		t.Fatalf("expected amount %.2f, got %.2f", PriceOnline, reservation.Amount)
	}

	booking, err := service.ConfirmReservation(ctx, reservation.ID)
	if err != nil {
		t.Fatalf("ConfirmReservation: %v", err)
	}
	if booking.Number != 1 {
		t.Fatalf("expected first sequence number, got %d", booking.Number)
	}
	if booking.Status != models.StatusPending {
		t.Fatalf("expected Pending booking, got %q", booking.Status)
	}

	// confirming again is an idempotent no-op
	again, err := service.ConfirmReservation(ctx, reservation.ID)
	if err != nil {
		t.Fatalf("second ConfirmReservation: %v", err)
	}
	if again == nil || again.ID != booking.ID {
		t.Fatalf("expected same booking back, got %+v", again)
	}

	confirmed, err := service.GetReservation(ctx, ownerID, models.RolePatient, reservation.ID)
	if err != nil {
		t.Fatalf("GetReservation: %v", err)
	}
	if confirmed.Status != models.ReservationPaid {
		t.Fatalf("expected Paid reservation, got %q", confirmed.Status)
	}
}

func TestBookingServiceOnsitePriceAndSequence(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationBookingService(pool)

	ownerID := createTestPatient(t, ctx, pool)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, ownerID) })

	first, err := service.CreateDirect(ctx, ownerID, BookingFields{
		Title:       "Session one",
		Kind:        models.KindOnsite,
		ScheduledAt: time.Date(2030, 4, 1, 9, 0, 0, 0, time.Local),
	})
	if err != nil {
		t.Fatalf("first CreateDirect: %v", err)
	}
	second, err := service.CreateDirect(ctx, ownerID, BookingFields{
		Title:       "Session two",
		Kind:        models.KindOnsite,
		ScheduledAt: time.Date(2030, 4, 1, 11, 0, 0, 0, time.Local),
	})
	if err != nil {
		t.Fatalf("second CreateDirect: %v", err)
	}

	if first.Number != 1 || second.Number != 2 {
		t.Fatalf("expected per-owner sequence 1,2, got %d,%d", first.Number, second.Number)
	}

	amount, err := PriceFor(models.KindOnsite)
	if err != nil || amount != PriceOnsite {
		t.Fatalf("expected onsite price %.2f, got %.2f (%v)", PriceOnsite, amount, err)
	}
}

func TestBookingServiceRejectsTakenSlot(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationBookingService(pool)

	firstOwner := createTestPatient(t, ctx, pool)
	secondOwner := createTestPatient(t, ctx, pool)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, firstOwner, secondOwner) })

	scheduledAt := time.Date(2030, 4, 2, 14, 0, 0, 0, time.Local)
	if _, err := service.CreateDirect(ctx, firstOwner, BookingFields{
		Title:       "Holder",
		Kind:        models.KindOnline,
		ScheduledAt: scheduledAt,
	}); err != nil {
		t.Fatalf("first CreateDirect: %v", err)
	}

	if _, err := service.CreateDirect(ctx, secondOwner, BookingFields{
		Title:       "Challenger",
		Kind:        models.KindOnline,
		ScheduledAt: scheduledAt,
	}); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}

	if _, err := service.StartReservation(ctx, secondOwner, BookingFields{
		Title:       "Late reservation",
		Kind:        models.KindOnline,
		ScheduledAt: scheduledAt,
	}); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable at reserve time, got %v", err)
	}
}

func TestBookingServiceConcurrentConfirmHasOneWinner(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationBookingService(pool)

	firstOwner := createTestPatient(t, ctx, pool)
	secondOwner := createTestPatient(t, ctx, pool)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, firstOwner, secondOwner) })

	scheduledAt := time.Date(2030, 4, 3, 16, 0, 0, 0, time.Local)
	fields := BookingFields{Title: "Contested slot", Kind: models.KindOnline, ScheduledAt: scheduledAt}

	firstRes, err := service.StartReservation(ctx, firstOwner, fields)
	if err != nil {
		t.Fatalf("first StartReservation: %v", err)
	}
	secondRes, err := service.StartReservation(ctx, secondOwner, fields)
	if err != nil {
		t.Fatalf("second StartReservation: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, resID := range []string{firstRes.ID, secondRes.ID} {
		wg.Add(1)
		go func(idx int, id string) {
			defer wg.Done()
			_, results[idx] = service.ConfirmReservation(ctx, id)
		}(i, resID)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotLost):
			losses++
		default:
			t.Fatalf("unexpected confirm error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("expected exactly one winner, got %d wins / %d losses", wins, losses)
	}

	reservationRepo := repository.NewReservationRepository(pool)
	var paid, failed int
	for _, id := range []string{firstRes.ID, secondRes.ID} {
		res, err := reservationRepo.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID(%s): %v", id, err)
		}
		switch res.Status {
		case models.ReservationPaid:
			paid++
		case models.ReservationFailed:
			failed++
		}
	}
	if paid != 1 || failed != 1 {
		t.Fatalf("expected one Paid and one Failed reservation, got %d/%d", paid, failed)
	}
}

func TestBookingServiceRescheduleRules(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationBookingService(pool)

	ownerID := createTestPatient(t, ctx, pool)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, ownerID) })

	booking, err := service.CreateDirect(ctx, ownerID, BookingFields{
		Title:       "Movable session",
		Kind:        models.KindOnline,
		ScheduledAt: time.Date(2030, 4, 4, 12, 0, 0, 0, time.Local),
	})
	if err != nil {
		t.Fatalf("CreateDirect: %v", err)
	}

	if _, err := service.Reschedule(ctx, ownerID, models.RolePatient, booking.ID, time.Date(2030, 4, 4, 13, 0, 0, 0, time.Local)); !errors.Is(err, ErrInvalidSlot) {
		t.Fatalf("expected ErrInvalidSlot for 13:00, got %v", err)
	}

	moved, err := service.Reschedule(ctx, ownerID, models.RolePatient, booking.ID, time.Date(2030, 4, 5, 15, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if moved.Status != models.StatusPending || moved.ReminderSent {
		t.Fatalf("expected reset Pending booking, got %+v", moved)
	}

	otherID := createTestPatient(t, ctx, pool)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, otherID) })
	if _, err := service.Reschedule(ctx, otherID, models.RolePatient, booking.ID, time.Date(2030, 4, 6, 9, 0, 0, 0, time.Local)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}
}

func TestBookingServiceCancelReservationIsTerminalSafe(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationBookingService(pool)

	ownerID := createTestPatient(t, ctx, pool)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, ownerID) })

	reservation, err := service.StartReservation(ctx, ownerID, BookingFields{
		Title:       "Abandoned checkout",
		Kind:        models.KindOnsite,
		ScheduledAt: time.Date(2030, 4, 7, 17, 0, 0, 0, time.Local),
	})
	if err != nil {
		t.Fatalf("StartReservation: %v", err)
	}

	canceled, err := service.CancelReservation(ctx, reservation.ID)
	if err != nil {
		t.Fatalf("CancelReservation: %v", err)
	}
	if canceled.Status != models.ReservationCanceled {
		t.Fatalf("expected Canceled, got %q", canceled.Status)
	}

	// canceling again returns the terminal row unchanged
	again, err := service.CancelReservation(ctx, reservation.ID)
	if err != nil {
		t.Fatalf("second CancelReservation: %v", err)
	}
	if again.Status != models.ReservationCanceled {
		t.Fatalf("expected Canceled to stick, got %q", again.Status)
	}

	// a canceled reservation cannot be confirmed
	if _, err := service.ConfirmReservation(ctx, reservation.ID); !errors.Is(err, ErrNotModifiable) {
		t.Fatalf("expected ErrNotModifiable, got %v", err)
	}
}

func TestBookingServiceReconfirmNeverReturnsForeignBooking(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationBookingService(pool)

	ownerID := createTestPatient(t, ctx, pool)
	otherID := createTestPatient(t, ctx, pool)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, ownerID, otherID) })

	scheduledAt := time.Date(2030, 4, 8, 11, 0, 0, 0, time.Local)
	reservation, err := service.StartReservation(ctx, ownerID, BookingFields{
		Title:       "Released session",
		Kind:        models.KindOnline,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		t.Fatalf("StartReservation: %v", err)
	}
	booking, err := service.ConfirmReservation(ctx, reservation.ID)
	if err != nil {
		t.Fatalf("ConfirmReservation: %v", err)
	}

	// owner frees the slot and someone else takes it
	if err := service.DeleteBooking(ctx, ownerID, models.RolePatient, booking.ID); err != nil {
		t.Fatalf("DeleteBooking: %v", err)
	}
	if _, err := service.CreateDirect(ctx, otherID, BookingFields{
		Title:       "Replacement session",
		Kind:        models.KindOnline,
		ScheduledAt: scheduledAt,
	}); err != nil {
		t.Fatalf("CreateDirect: %v", err)
	}

	// re-confirming the already-Paid reservation must not expose the
	// occupying booking, which now belongs to a different owner
	again, err := service.ConfirmReservation(ctx, reservation.ID)
	if err != nil {
		t.Fatalf("re-ConfirmReservation: %v", err)
	}
	if again != nil {
		t.Fatalf("expected no booking for a freed slot taken by another owner, got %+v", again)
	}
}

func integrationTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	testDBOnce.Do(func() {
		_ = godotenv.Load(".env")
		_ = godotenv.Load(filepath.Join("..", "..", ".env"))

		dbURL := os.Getenv("DB_URL")
		if dbURL == "" {
			testDBErr = fmt.Errorf("DB_URL is not set")
			return
		}

		cfg, err := pgxpool.ParseConfig(dbURL)
		if err != nil {
			testDBErr = err
			return
		}

		testDBPool, testDBErr = pgxpool.NewWithConfig(context.Background(), cfg)
		if testDBErr != nil {
			return
		}
		testDBErr = testDBPool.Ping(context.Background())
	})

	if testDBErr != nil {
		t.Skipf("skipping integration test: %v", testDBErr)
	}
	return testDBPool
}

func newIntegrationBookingService(pool *pgxpool.Pool) *BookingService {
	bookingRepo := repository.NewBookingRepository(pool)
	return NewBookingService(
		pool,
		bookingRepo,
		repository.NewReservationRepository(pool),
		repository.NewReviewRepository(pool),
		NewStatusService(bookingRepo, zerolog.Nop()),
		repository.NewUserRepository(pool),
		nil,
		zerolog.Nop(),
	)
}

func createTestPatient(t *testing.T, ctx context.Context, pool *pgxpool.Pool) string {
	t.Helper()

	userRepo := repository.NewUserRepository(pool)
	user := &models.User{
		Email:        fmt.Sprintf("booking-test-%d@example.com", time.Now().UnixNano()),
		UserName:     "Test Patient",
		PasswordHash: "test-hash",
		Role:         models.RolePatient,
	}
	if err := userRepo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user.ID
}

func cleanupTestUsers(t *testing.T, ctx context.Context, pool *pgxpool.Pool, userIDs ...string) {
	t.Helper()

	if len(userIDs) == 0 {
		return
	}

	if _, err := pool.Exec(ctx, "DELETE FROM users WHERE id = ANY($1)", userIDs); err != nil {
		t.Fatalf("cleanup users: %v", err)
	}
}
