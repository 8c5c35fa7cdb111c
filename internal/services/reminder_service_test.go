package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliialzein/PsyConnect/internal/models"
	"github.com/aliialzein/PsyConnect/internal/repository"
)

type fakeReminderStore struct {
	all           []models.Booking
	due           []models.Booking
	today         []models.Booking
	markedSent    []int64
	markSentErr   error
	listDueErr    error
	listForDayErr error
}

func (f *fakeReminderStore) List(_ context.Context, _ repository.BookingListFilter) ([]models.Booking, error) {
	return f.all, nil
}

func (f *fakeReminderStore) ListDueReminders(_ context.Context, _ time.Time) ([]models.Booking, error) {
	if f.listDueErr != nil {
		return nil, f.listDueErr
	}
	remaining := make([]models.Booking, 0, len(f.due))
	for _, b := range f.due {
		sent := false
		for _, id := range f.markedSent {
			if id == b.ID {
				sent = true
				break
			}
		}
		if !sent {
			remaining = append(remaining, b)
		}
	}
	return remaining, nil
}

func (f *fakeReminderStore) MarkReminderSent(_ context.Context, bookingID int64) error {
	if f.markSentErr != nil {
		return f.markSentErr
	}
	f.markedSent = append(f.markedSent, bookingID)
	return nil
}

func (f *fakeReminderStore) ListForDate(_ context.Context, _ time.Time) ([]models.Booking, error) {
	if f.listForDayErr != nil {
		return nil, f.listForDayErr
	}
	return f.today, nil
}

type fakeDirectory struct {
	users  map[string]*models.User
	admins []models.User
}

func (f *fakeDirectory) GetByID(_ context.Context, id string) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, errors.New("no such user")
	}
	return user, nil
}

func (f *fakeDirectory) ListByRole(_ context.Context, _ string) ([]models.User, error) {
	return f.admins, nil
}

type fakeReconciler struct {
	calls int
}

func (f *fakeReconciler) Reconcile(_ context.Context, _ []models.Booking, _ time.Time) {
	f.calls++
}

type recordingMailer struct {
	sent    []string
	failFor map[string]error
}

func (m *recordingMailer) Send(_ context.Context, to, _, _ string) error {
	if err, ok := m.failFor[to]; ok {
		return err
	}
	m.sent = append(m.sent, to)
	return nil
}

func reminderFixture(t *testing.T) (*ReminderService, *fakeReminderStore, *recordingMailer, *fakeReconciler) {
	t.Helper()
	tomorrow := time.Now().AddDate(0, 0, 1)
	store := &fakeReminderStore{
		due: []models.Booking{
			{ID: 1, OwnerID: "u1", Title: "Session A", Kind: models.KindOnline, ScheduledAt: tomorrow, Number: 1},
			{ID: 2, OwnerID: "u2", Title: "Session B", Kind: models.KindOnsite, ScheduledAt: tomorrow, Number: 1},
		},
	}
	directory := &fakeDirectory{
		users: map[string]*models.User{
			"u1": {ID: "u1", Email: "u1@example.com", UserName: "Pat"},
			"u2": {ID: "u2", Email: "u2@example.com", UserName: "Sam"},
		},
		admins: []models.User{{ID: "a1", Email: "admin@example.com", Role: models.RoleAdmin}},
	}
	reconciler := &fakeReconciler{}
	mailer := &recordingMailer{failFor: map[string]error{}}
	svc := NewReminderService(store, directory, reconciler, mailer, 30*time.Minute, 8, zerolog.Nop())
	return svc, store, mailer, reconciler
}

func TestReminderPassSendsOnceAndFlagsBooking(t *testing.T) {
	svc, store, mailer, _ := reminderFixture(t)
	now := time.Now()

	require.NoError(t, svc.patientReminderPass(context.Background(), now))
	assert.Len(t, mailer.sent, 2)
	assert.ElementsMatch(t, []int64{1, 2}, store.markedSent)

	// second tick: everything already flagged, nothing goes out
	require.NoError(t, svc.patientReminderPass(context.Background(), now))
	assert.Len(t, mailer.sent, 2)
}

func TestReminderPassIsolatesFailingRecipient(t *testing.T) {
	svc, store, mailer, _ := reminderFixture(t)
	mailer.failFor["u1@example.com"] = errors.New("smtp down")

	require.NoError(t, svc.patientReminderPass(context.Background(), time.Now()))

	assert.Equal(t, []string{"u2@example.com"}, mailer.sent)
	assert.Equal(t, []int64{2}, store.markedSent, "failed send must not flag the booking")
}

func TestReminderPassSkipsFlagOnPersistFailure(t *testing.T) {
	svc, store, mailer, _ := reminderFixture(t)
	store.markSentErr = errors.New("db down")

	require.NoError(t, svc.patientReminderPass(context.Background(), time.Now()))

	assert.Len(t, mailer.sent, 2, "emails still go out when flag persist fails")
	assert.Empty(t, store.markedSent)
}

func TestDigestSentOnlyAtConfiguredHourAndOncePerDay(t *testing.T) {
	svc, store, mailer, _ := reminderFixture(t)
	store.today = []models.Booking{
		{ID: 3, OwnerID: "u1", Title: "Session C", Kind: models.KindOnline, ScheduledAt: time.Now(), Number: 2, Status: models.StatusPending},
	}

	wrongHour := time.Date(2026, 9, 14, 7, 0, 0, 0, time.UTC)
	require.NoError(t, svc.adminDigestPass(context.Background(), wrongHour))
	assert.Empty(t, mailer.sent)

	digestHour := time.Date(2026, 9, 14, 8, 15, 0, 0, time.UTC)
	require.NoError(t, svc.adminDigestPass(context.Background(), digestHour))
	assert.Equal(t, []string{"admin@example.com"}, mailer.sent)

	// same hour again, already sent today
	require.NoError(t, svc.adminDigestPass(context.Background(), digestHour))
	assert.Len(t, mailer.sent, 1)
}

func TestDigestFlagSetEvenWhenDayIsEmpty(t *testing.T) {
	svc, _, mailer, _ := reminderFixture(t)

	digestHour := time.Date(2026, 9, 14, 8, 0, 0, 0, time.UTC)
	require.NoError(t, svc.adminDigestPass(context.Background(), digestHour))
	assert.Empty(t, mailer.sent)
	assert.True(t, svc.digestSentToday)
}

func TestRunOnceResetsDigestFlagAtMidnight(t *testing.T) {
	svc, _, _, reconciler := reminderFixture(t)
	svc.digestSentToday = true

	midnight := time.Date(2026, 9, 15, 0, 10, 0, 0, time.UTC)
	svc.runOnce(context.Background(), midnight)

	assert.False(t, svc.digestSentToday)
	assert.Equal(t, 1, reconciler.calls)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	svc, _, _, _ := reminderFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
