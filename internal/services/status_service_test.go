package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aliialzein/PsyConnect/internal/models"
)

type recordingStatusWriter struct {
	updates map[int64]string
	err     error
}

func (w *recordingStatusWriter) UpdateStatus(_ context.Context, bookingID int64, status string) error {
	if w.err != nil {
		return w.err
	}
	if w.updates == nil {
		w.updates = map[int64]string{}
	}
	w.updates[bookingID] = status
	return nil
}

func TestReconcilePersistsOnlyChangedStatuses(t *testing.T) {
	now := time.Date(2026, 9, 14, 10, 30, 0, 0, time.UTC)
	bookings := []models.Booking{
		{ID: 1, ScheduledAt: now.Add(24 * time.Hour), Status: models.StatusPending},
		{ID: 2, ScheduledAt: now.Add(-10 * time.Minute), Status: models.StatusPending},
		{ID: 3, ScheduledAt: now.Add(-2 * time.Hour), Status: models.StatusPending},
	}
	writer := &recordingStatusWriter{}
	svc := NewStatusService(writer, zerolog.Nop())

	svc.Reconcile(context.Background(), bookings, now)

	if bookings[0].Status != models.StatusPending {
		t.Fatalf("future booking must stay Pending, got %q", bookings[0].Status)
	}
	if bookings[1].Status != models.StatusInProgress {
		t.Fatalf("running booking must be InProgress, got %q", bookings[1].Status)
	}
	if bookings[2].Status != models.StatusCompleted {
		t.Fatalf("past booking must be Completed, got %q", bookings[2].Status)
	}
	if len(writer.updates) != 2 {
		t.Fatalf("expected 2 persisted updates, got %d", len(writer.updates))
	}
	if _, ok := writer.updates[1]; ok {
		t.Fatalf("unchanged booking must not be written")
	}
}

func TestReconcileKeepsInMemoryStatusWhenPersistFails(t *testing.T) {
	now := time.Date(2026, 9, 14, 10, 30, 0, 0, time.UTC)
	bookings := []models.Booking{
		{ID: 1, ScheduledAt: now.Add(-2 * time.Hour), Status: models.StatusPending},
	}
	writer := &recordingStatusWriter{err: errors.New("db down")}
	svc := NewStatusService(writer, zerolog.Nop())

	svc.Reconcile(context.Background(), bookings, now)

	if bookings[0].Status != models.StatusCompleted {
		t.Fatalf("derived status must win in memory, got %q", bookings[0].Status)
	}
}
