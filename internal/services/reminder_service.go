package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aliialzein/PsyConnect/internal/models"
	"github.com/aliialzein/PsyConnect/internal/repository"
)

type reminderBookingStore interface {
	List(ctx context.Context, filter repository.BookingListFilter) ([]models.Booking, error)
	ListDueReminders(ctx context.Context, day time.Time) ([]models.Booking, error)
	MarkReminderSent(ctx context.Context, bookingID int64) error
	ListForDate(ctx context.Context, day time.Time) ([]models.Booking, error)
}

type reminderDirectory interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListByRole(ctx context.Context, role string) ([]models.User, error)
}

type statusReconciler interface {
	Reconcile(ctx context.Context, bookings []models.Booking, now time.Time)
}

// ReminderService is the long-running background loop: it reconciles booking
// statuses, sends each patient one reminder the day before their session, and
// mails admins a daily digest of today's bookings.
type ReminderService struct {
	store      reminderBookingStore
	directory  reminderDirectory
	status     statusReconciler
	mailer     EmailSender
	interval   time.Duration
	digestHour int
	log        zerolog.Logger

	// private to the loop goroutine; deliberately not persisted, so a restart
	// between the digest hour and midnight may repeat the digest
	digestSentToday bool
}

func NewReminderService(
	store reminderBookingStore,
	directory reminderDirectory,
	status statusReconciler,
	mailer EmailSender,
	interval time.Duration,
	digestHour int,
	log zerolog.Logger,
) *ReminderService {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &ReminderService{
		store:      store,
		directory:  directory,
		status:     status,
		mailer:     mailer,
		interval:   interval,
		digestHour: digestHour,
		log:        log,
	}
}

// Run ticks until the context is canceled. Every pass is fault-isolated: an
// error is logged and the loop keeps going after the fixed delay.
func (s *ReminderService) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("reminder loop started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("reminder loop stopping")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx, time.Now())
		}
	}
}

func (s *ReminderService) runOnce(ctx context.Context, now time.Time) {
	if err := s.reconcilePass(ctx, now); err != nil {
		s.log.Error().Err(err).Msg("status reconcile pass failed")
	}
	if err := s.patientReminderPass(ctx, now); err != nil {
		s.log.Error().Err(err).Msg("patient reminder pass failed")
	}
	if err := s.adminDigestPass(ctx, now); err != nil {
		s.log.Error().Err(err).Msg("admin digest pass failed")
	}
	if now.Hour() == 0 {
		s.digestSentToday = false
	}
}

func (s *ReminderService) reconcilePass(ctx context.Context, now time.Time) error {
	bookings, err := s.store.List(ctx, repository.BookingListFilter{})
	if err != nil {
		return err
	}
	s.status.Reconcile(ctx, bookings, now)
	return nil
}

// patientReminderPass sends at most one reminder per booking scheduled for
// tomorrow. The reminder_sent flag is set only after a send that reported
// success; one failing item never blocks the rest.
func (s *ReminderService) patientReminderPass(ctx context.Context, now time.Time) error {
	tomorrow := now.AddDate(0, 0, 1)
	due, err := s.store.ListDueReminders(ctx, tomorrow)
	if err != nil {
		return err
	}

	for _, booking := range due {
		user, err := s.directory.GetByID(ctx, booking.OwnerID)
		if err != nil || user.Email == "" {
			s.log.Warn().Err(err).Int64("booking_id", booking.ID).Msg("reminder skipped: owner not reachable")
			continue
		}

		subject := "PsyConnect – Reminder for your session tomorrow"
		body := fmt.Sprintf(
			"<h2>Session reminder</h2><p>Hello %s,</p><p>This is a reminder of your session scheduled for <strong>tomorrow</strong>:</p><ul><li><strong>Title:</strong> %s</li><li><strong>Type:</strong> %s</li><li><strong>Date &amp; Time:</strong> %s</li><li><strong>Queue Number:</strong> %d</li></ul><p>Please make sure to be available on time.</p>",
			user.UserName,
			booking.Title,
			booking.Kind,
			booking.ScheduledAt.Local().Format("Monday, January 2, 2006 3:04 PM"),
			booking.Number,
		)

		if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
			s.log.Warn().Err(err).Int64("booking_id", booking.ID).Msg("reminder send failed; will retry next tick")
			continue
		}
		if err := s.store.MarkReminderSent(ctx, booking.ID); err != nil {
			// the email went out; a duplicate next tick is possible here
			s.log.Error().Err(err).Int64("booking_id", booking.ID).Msg("reminder flag persist failed")
			continue
		}
		s.log.Info().Str("email", user.Email).Int64("booking_id", booking.ID).Msg("patient reminder sent")
	}
	return nil
}

// adminDigestPass emails every admin a summary of today's bookings once per
// day, when the wall-clock hour matches the configured digest hour.
func (s *ReminderService) adminDigestPass(ctx context.Context, now time.Time) error {
	if now.Hour() != s.digestHour || s.digestSentToday {
		return nil
	}

	todays, err := s.store.ListForDate(ctx, now)
	if err != nil {
		return err
	}
	if len(todays) == 0 {
		s.digestSentToday = true
		return nil
	}

	admins, err := s.directory.ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		return err
	}

	body := s.buildDigestBody(ctx, now, todays)
	for _, admin := range admins {
		if admin.Email == "" {
			continue
		}
		if err := s.mailer.Send(ctx, admin.Email, "PsyConnect – Today's bookings summary", body); err != nil {
			s.log.Warn().Err(err).Str("email", admin.Email).Msg("admin digest send failed")
			continue
		}
		s.log.Info().Str("email", admin.Email).Msg("admin daily digest sent")
	}

	s.digestSentToday = true
	return nil
}

func (s *ReminderService) buildDigestBody(ctx context.Context, now time.Time, bookings []models.Booking) string {
	var sb strings.Builder
	sb.WriteString("<h2>Today's bookings</h2>")
	sb.WriteString(fmt.Sprintf("<p>Date: <strong>%s</strong></p>", now.Format("Monday, January 2, 2006")))
	sb.WriteString("<table border='1' cellspacing='0' cellpadding='4'>")
	sb.WriteString("<tr><th>Time</th><th>Patient</th><th>Title</th><th>Type</th><th>Status</th><th>#</th></tr>")

	for _, booking := range bookings {
		patientName := "Unknown"
		if user, err := s.directory.GetByID(ctx, booking.OwnerID); err == nil {
			patientName = user.UserName
		}
		sb.WriteString("<tr>")
		sb.WriteString(fmt.Sprintf("<td>%s</td>", booking.ScheduledAt.Local().Format("15:04")))
		sb.WriteString(fmt.Sprintf("<td>%s</td>", patientName))
		sb.WriteString(fmt.Sprintf("<td>%s</td>", booking.Title))
		sb.WriteString(fmt.Sprintf("<td>%s</td>", booking.Kind))
		sb.WriteString(fmt.Sprintf("<td>%s</td>", booking.Status))
		sb.WriteString(fmt.Sprintf("<td>%d</td>", booking.Number))
		sb.WriteString("</tr>")
	}

	sb.WriteString("</table>")
	return sb.String()
}
