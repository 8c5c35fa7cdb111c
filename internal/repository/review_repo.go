package repository

import (
	"context"

	"github.com/aliialzein/PsyConnect/internal/models"
)

type CreateReviewInput struct {
	BookingID int64
	OwnerID   string
	Rating    int
	Comment   *string
}

type ReviewRepository struct {
	db DBTX
}

func NewReviewRepository(db DBTX) *ReviewRepository {
	return &ReviewRepository{db: db}
}

const reviewColumns = `id, booking_id, owner_id, rating, comment, created_at`

func (r *ReviewRepository) Create(ctx context.Context, input CreateReviewInput) (*models.Review, error) {
	query := `
		INSERT INTO reviews (booking_id, owner_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + reviewColumns

	var review models.Review
	err := r.db.QueryRow(ctx, query, input.BookingID, input.OwnerID, input.Rating, input.Comment).Scan(
		&review.ID,
		&review.BookingID,
		&review.OwnerID,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *ReviewRepository) GetByID(ctx context.Context, reviewID int64) (*models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	var review models.Review
	err := r.db.QueryRow(ctx, query, reviewID).Scan(
		&review.ID,
		&review.BookingID,
		&review.OwnerID,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *ReviewRepository) GetByBookingID(ctx context.Context, bookingID int64) (*models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE booking_id = $1`

	var review models.Review
	err := r.db.QueryRow(ctx, query, bookingID).Scan(
		&review.ID,
		&review.BookingID,
		&review.OwnerID,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *ReviewRepository) Update(ctx context.Context, reviewID int64, rating int, comment *string) (*models.Review, error) {
	query := `
		UPDATE reviews
		SET rating = $2, comment = $3
		WHERE id = $1
		RETURNING ` + reviewColumns

	var review models.Review
	err := r.db.QueryRow(ctx, query, reviewID, rating, comment).Scan(
		&review.ID,
		&review.BookingID,
		&review.OwnerID,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *ReviewRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	return r.queryReviews(ctx, query, ownerID)
}

func (r *ReviewRepository) ListAll(ctx context.Context) ([]models.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		ORDER BY created_at DESC
	`
	return r.queryReviews(ctx, query)
}

func (r *ReviewRepository) queryReviews(ctx context.Context, query string, args ...any) ([]models.Review, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := make([]models.Review, 0)
	for rows.Next() {
		var review models.Review
		if err := rows.Scan(
			&review.ID,
			&review.BookingID,
			&review.OwnerID,
			&review.Rating,
			&review.Comment,
			&review.CreatedAt,
		); err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reviews, nil
}
