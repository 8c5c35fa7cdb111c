package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aliialzein/PsyConnect/internal/models"
)

type CreateBookingInput struct {
	OwnerID     string
	Title       string
	Description *string
	Kind        string
	ScheduledAt time.Time
	Number      int
}

type BookingListFilter struct {
	OwnerID string
	Status  string
}

type BookingRepository struct {
	db DBTX
}

func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, owner_id, title, description, kind, scheduled_at, number, status, reminder_sent, created_at, updated_at`

func scanBooking(row pgx.Row) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID,
		&b.OwnerID,
		&b.Title,
		&b.Description,
		&b.Kind,
		&b.ScheduledAt,
		&b.Number,
		&b.Status,
		&b.ReminderSent,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) Insert(ctx context.Context, input CreateBookingInput) (*models.Booking, error) {
	query := fmt.Sprintf(`
		INSERT INTO bookings (owner_id, title, description, kind, scheduled_at, number, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'Pending')
		RETURNING %s
	`, bookingColumns)

	return scanBooking(r.db.QueryRow(
		ctx,
		query,
		input.OwnerID,
		input.Title,
		input.Description,
		input.Kind,
		input.ScheduledAt,
		input.Number,
	))
}

func (r *BookingRepository) GetByID(ctx context.Context, bookingID int64) (*models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)
	return scanBooking(r.db.QueryRow(ctx, query, bookingID))
}

func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, bookingID int64) (*models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1 FOR UPDATE`, bookingColumns)
	return scanBooking(r.db.QueryRow(ctx, query, bookingID))
}

func (r *BookingRepository) GetBySlot(ctx context.Context, instant time.Time) (*models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE scheduled_at = $1`, bookingColumns)
	return scanBooking(r.db.QueryRow(ctx, query, instant))
}

// SlotIsFree reports whether no booking other than excludingID occupies the
// exact instant. It is an optimistic pre-check: the unique constraint on
// scheduled_at remains the authority at commit time.
func (r *BookingRepository) SlotIsFree(ctx context.Context, instant time.Time, excludingID int64) (bool, error) {
	query := `
		SELECT NOT EXISTS (
			SELECT 1
			FROM bookings
			WHERE scheduled_at = $1
			  AND id <> $2
		)
	`
	var free bool
	if err := r.db.QueryRow(ctx, query, instant, excludingID).Scan(&free); err != nil {
		return false, err
	}
	return free, nil
}

// NextOwnerSequence returns 1 + the highest number the owner has ever been
// assigned. Deleted bookings keep their numbers reserved only insofar as the
// max is taken over surviving rows; the per-owner unique index rejects reuse
// races at commit time.
func (r *BookingRepository) NextOwnerSequence(ctx context.Context, ownerID string) (int, error) {
	query := `SELECT COALESCE(MAX(number), 0) + 1 FROM bookings WHERE owner_id = $1`
	var next int
	if err := r.db.QueryRow(ctx, query, ownerID).Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

func (r *BookingRepository) List(ctx context.Context, filter BookingListFilter) ([]models.Booking, error) {
	args := []any{}
	whereParts := []string{}

	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		whereParts = append(whereParts, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if status := strings.TrimSpace(filter.Status); status != "" && status != "All" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(whereParts) > 0 {
		where = "WHERE " + strings.Join(whereParts, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM bookings
		%s
		ORDER BY scheduled_at DESC, id DESC
	`, bookingColumns, where)

	return r.queryBookings(ctx, query, args...)
}

func (r *BookingRepository) UpdateSchedule(ctx context.Context, bookingID int64, instant time.Time) (*models.Booking, error) {
	query := fmt.Sprintf(`
		UPDATE bookings
		SET scheduled_at = $2, status = 'Pending', reminder_sent = FALSE, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, bookingColumns)
	return scanBooking(r.db.QueryRow(ctx, query, bookingID, instant))
}

func (r *BookingRepository) UpdateFields(ctx context.Context, bookingID int64, title string, description *string, kind string) (*models.Booking, error) {
	query := fmt.Sprintf(`
		UPDATE bookings
		SET title = $2, description = $3, kind = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, bookingColumns)
	return scanBooking(r.db.QueryRow(ctx, query, bookingID, title, description, kind))
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, bookingID int64, status string) error {
	query := `
		UPDATE bookings
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, bookingID, status)
	return err
}

func (r *BookingRepository) Delete(ctx context.Context, bookingID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, bookingID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListDueReminders selects Pending bookings scheduled on exactly the given
// calendar day whose reminder has not been sent yet.
func (r *BookingRepository) ListDueReminders(ctx context.Context, day time.Time) ([]models.Booking, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM bookings
		WHERE status = 'Pending'
		  AND scheduled_at >= $1
		  AND scheduled_at < $2
		  AND reminder_sent = FALSE
		ORDER BY scheduled_at ASC
	`, bookingColumns)

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return r.queryBookings(ctx, query, start, start.AddDate(0, 0, 1))
}

func (r *BookingRepository) MarkReminderSent(ctx context.Context, bookingID int64) error {
	query := `
		UPDATE bookings
		SET reminder_sent = TRUE, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, bookingID)
	return err
}

// ListForDate returns every booking scheduled on the given calendar day,
// ordered by time. Used for the admin daily digest.
func (r *BookingRepository) ListForDate(ctx context.Context, day time.Time) ([]models.Booking, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM bookings
		WHERE scheduled_at >= $1
		  AND scheduled_at < $2
		ORDER BY scheduled_at ASC
	`, bookingColumns)

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return r.queryBookings(ctx, query, start, start.AddDate(0, 0, 1))
}

func (r *BookingRepository) queryBookings(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]models.Booking, 0)
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(
			&b.ID,
			&b.OwnerID,
			&b.Title,
			&b.Description,
			&b.Kind,
			&b.ScheduledAt,
			&b.Number,
			&b.Status,
			&b.ReminderSent,
			&b.CreatedAt,
			&b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

type BookingStats struct {
	Total         int64 `json:"total"`
	Today         int64 `json:"today"`
	NextSevenDays int64 `json:"next_seven_days"`
	Pending       int64 `json:"pending"`
	InProgress    int64 `json:"in_progress"`
	Completed     int64 `json:"completed"`
	Onsite        int64 `json:"onsite"`
	Online        int64 `json:"online"`
}

func (r *BookingRepository) Stats(ctx context.Context, now time.Time) (*BookingStats, error) {
	startToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endWeek := startToday.AddDate(0, 0, 7)

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE scheduled_at >= $1 AND scheduled_at < $2),
			COUNT(*) FILTER (WHERE scheduled_at >= $1 AND scheduled_at < $3),
			COUNT(*) FILTER (WHERE status = 'Pending'),
			COUNT(*) FILTER (WHERE status = 'InProgress'),
			COUNT(*) FILTER (WHERE status = 'Completed'),
			COUNT(*) FILTER (WHERE kind = 'Onsite'),
			COUNT(*) FILTER (WHERE kind = 'Online')
		FROM bookings
	`

	var stats BookingStats
	err := r.db.QueryRow(ctx, query, startToday, startToday.AddDate(0, 0, 1), endWeek).Scan(
		&stats.Total,
		&stats.Today,
		&stats.NextSevenDays,
		&stats.Pending,
		&stats.InProgress,
		&stats.Completed,
		&stats.Onsite,
		&stats.Online,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
