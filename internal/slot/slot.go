package slot

import (
	"time"

	"github.com/aliialzein/PsyConnect/internal/models"
)

// SessionDuration is how long a therapy session occupies its slot.
const SessionDuration = 50 * time.Minute

var allowedHours = map[int]bool{
	9:  true,
	10: true,
	11: true,
	12: true,
	14: true,
	15: true,
	16: true,
	17: true,
}

// Allowed reports whether instant is a bookable slot: on the hour in the
// practice's local zone, within the fixed allow-list, and strictly in the
// future relative to now. The instant is normalized first so the answer does
// not depend on the zone offset a client happened to serialize.
func Allowed(instant, now time.Time) bool {
	local := instant.In(time.Local)
	if local.Minute() != 0 {
		return false
	}
	if !allowedHours[local.Hour()] {
		return false
	}
	return instant.After(now)
}

// DeriveStatus computes a booking's lifecycle status from its scheduled
// instant and the current time. It is total: every input maps to a status.
func DeriveStatus(scheduledAt, now time.Time) string {
	if scheduledAt.IsZero() {
		return models.StatusPending
	}
	if scheduledAt.After(now) {
		return models.StatusPending
	}
	if now.Before(scheduledAt.Add(SessionDuration)) {
		return models.StatusInProgress
	}
	return models.StatusCompleted
}

// SameDay reports whether two instants fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
