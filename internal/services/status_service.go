package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aliialzein/PsyConnect/internal/models"
	"github.com/aliialzein/PsyConnect/internal/slot"
)

type bookingStatusWriter interface {
	UpdateStatus(ctx context.Context, bookingID int64, status string) error
}

// StatusService recomputes booking statuses from wall-clock time. Status is
// derived state: the stored column is a cache kept fresh on read paths and on
// the background tick.
type StatusService struct {
	store bookingStatusWriter
	log   zerolog.Logger
}

func NewStatusService(store bookingStatusWriter, log zerolog.Logger) *StatusService {
	return &StatusService{store: store, log: log}
}

// Reconcile derives every booking's status in place and persists the ones
// that changed. It never fails: persistence errors are logged and the
// in-memory statuses stay correct for the caller.
func (s *StatusService) Reconcile(ctx context.Context, bookings []models.Booking, now time.Time) {
	for i := range bookings {
		derived := slot.DeriveStatus(bookings[i].ScheduledAt, now)
		if derived == bookings[i].Status {
			continue
		}
		bookings[i].Status = derived
		if s.store == nil {
			continue
		}
		if err := s.store.UpdateStatus(ctx, bookings[i].ID, derived); err != nil {
			s.log.Warn().Err(err).Int64("booking_id", bookings[i].ID).Msg("status reconcile persist failed")
		}
	}
}
