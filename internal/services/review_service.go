package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aliialzein/PsyConnect/internal/models"
	"github.com/aliialzein/PsyConnect/internal/repository"
	"github.com/aliialzein/PsyConnect/internal/slot"
)

var ErrReviewExists = errors.New("review already exists for this booking")

type reviewBookingReader interface {
	GetByID(ctx context.Context, bookingID int64) (*models.Booking, error)
}

type reviewStore interface {
	Create(ctx context.Context, input repository.CreateReviewInput) (*models.Review, error)
	GetByID(ctx context.Context, reviewID int64) (*models.Review, error)
	GetByBookingID(ctx context.Context, bookingID int64) (*models.Review, error)
	Update(ctx context.Context, reviewID int64, rating int, comment *string) (*models.Review, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Review, error)
	ListAll(ctx context.Context) ([]models.Review, error)
}

// ReviewService enforces the one-review-per-completed-booking rules. A review
// may only be written or edited by the booking's owner, and only while the
// booking's derived status is Completed.
type ReviewService struct {
	reviews  reviewStore
	bookings reviewBookingReader
}

func NewReviewService(reviews reviewStore, bookings reviewBookingReader) *ReviewService {
	return &ReviewService{reviews: reviews, bookings: bookings}
}

func validateReviewInput(rating int, comment *string) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidInput
	}
	if comment != nil && len(strings.TrimSpace(*comment)) > 800 {
		return ErrInvalidInput
	}
	return nil
}

func (s *ReviewService) completedBookingFor(ctx context.Context, ownerID string, bookingID int64) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if booking.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	if slot.DeriveStatus(booking.ScheduledAt, time.Now()) != models.StatusCompleted {
		return nil, ErrForbidden
	}
	return booking, nil
}

func (s *ReviewService) CreateReview(ctx context.Context, ownerID string, bookingID int64, rating int, comment *string) (*models.Review, error) {
	if err := validateReviewInput(rating, comment); err != nil {
		return nil, err
	}
	if _, err := s.completedBookingFor(ctx, ownerID, bookingID); err != nil {
		return nil, err
	}

	existing, err := s.reviews.GetByBookingID(ctx, bookingID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrReviewExists
	}

	review, err := s.reviews.Create(ctx, repository.CreateReviewInput{
		BookingID: bookingID,
		OwnerID:   ownerID,
		Rating:    rating,
		Comment:   comment,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrReviewExists
		}
		return nil, err
	}
	return review, nil
}

func (s *ReviewService) UpdateReview(ctx context.Context, ownerID string, reviewID int64, rating int, comment *string) (*models.Review, error) {
	if err := validateReviewInput(rating, comment); err != nil {
		return nil, err
	}

	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if review.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	if _, err := s.completedBookingFor(ctx, ownerID, review.BookingID); err != nil {
		return nil, err
	}

	return s.reviews.Update(ctx, reviewID, rating, comment)
}

func (s *ReviewService) GetReview(ctx context.Context, actorID, role string, reviewID int64) (*models.Review, error) {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if role != models.RoleAdmin && review.OwnerID != actorID {
		return nil, ErrForbidden
	}
	return review, nil
}

func (s *ReviewService) ListMyReviews(ctx context.Context, ownerID string) ([]models.Review, error) {
	return s.reviews.ListByOwner(ctx, ownerID)
}

func (s *ReviewService) ListAllReviews(ctx context.Context) ([]models.Review, error) {
	return s.reviews.ListAll(ctx)
}
