package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aliialzein/PsyConnect/internal/models"
)

type CreateReservationInput struct {
	OwnerID            string
	Amount             float64
	BookingTitle       string
	BookingDescription *string
	BookingKind        string
	BookingScheduledAt time.Time
}

type ReservationRepository struct {
	db DBTX
}

func NewReservationRepository(db DBTX) *ReservationRepository {
	return &ReservationRepository{db: db}
}

const reservationColumns = `id, owner_id, amount, status, booking_title, booking_description, booking_kind, booking_scheduled_at, created_at`

func (r *ReservationRepository) Create(ctx context.Context, input CreateReservationInput) (*models.Reservation, error) {
	query := `
		INSERT INTO reservations (id, owner_id, amount, status, booking_title, booking_description, booking_kind, booking_scheduled_at)
		VALUES ($1, $2, $3, 'Pending', $4, $5, $6, $7)
		RETURNING ` + reservationColumns

	return r.scanOne(r.db.QueryRow(
		ctx,
		query,
		uuid.NewString(),
		input.OwnerID,
		input.Amount,
		input.BookingTitle,
		input.BookingDescription,
		input.BookingKind,
		input.BookingScheduledAt,
	))
}

func (r *ReservationRepository) GetByID(ctx context.Context, reservationID string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, reservationID))
}

func (r *ReservationRepository) GetByIDForUpdate(ctx context.Context, reservationID string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.db.QueryRow(ctx, query, reservationID))
}

// UpdateStatusIfCurrent is a compare-and-set: the row moves to nextStatus only
// when it still holds currentStatus, which keeps terminal states terminal
// under concurrent callbacks. Returns pgx.ErrNoRows when the guard fails.
func (r *ReservationRepository) UpdateStatusIfCurrent(ctx context.Context, reservationID, currentStatus, nextStatus string) (*models.Reservation, error) {
	query := `
		UPDATE reservations
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + reservationColumns

	return r.scanOne(r.db.QueryRow(ctx, query, reservationID, currentStatus, nextStatus))
}

func (r *ReservationRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reservations := make([]models.Reservation, 0)
	for rows.Next() {
		var res models.Reservation
		if err := rows.Scan(
			&res.ID,
			&res.OwnerID,
			&res.Amount,
			&res.Status,
			&res.BookingTitle,
			&res.BookingDescription,
			&res.BookingKind,
			&res.BookingScheduledAt,
			&res.CreatedAt,
		); err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *ReservationRepository) scanOne(row interface{ Scan(dest ...any) error }) (*models.Reservation, error) {
	var res models.Reservation
	err := row.Scan(
		&res.ID,
		&res.OwnerID,
		&res.Amount,
		&res.Status,
		&res.BookingTitle,
		&res.BookingDescription,
		&res.BookingKind,
		&res.BookingScheduledAt,
		&res.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
