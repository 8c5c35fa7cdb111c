package models

import "time"

const (
	ReservationPending  = "Pending"
	ReservationPaid     = "Paid"
	ReservationFailed   = "Failed"
	ReservationCanceled = "Canceled"
)

// Reservation is a payment intent holding a snapshot of the booking fields.
// The snapshot is a copy, not a reference: the booking does not exist until
// the reservation is confirmed.
type Reservation struct {
	ID                 string    `json:"id"`
	OwnerID            string    `json:"owner_id"`
	Amount             float64   `json:"amount"`
	Status             string    `json:"status"`
	BookingTitle       string    `json:"booking_title"`
	BookingDescription *string   `json:"booking_description"`
	BookingKind        string    `json:"booking_kind"`
	BookingScheduledAt time.Time `json:"booking_scheduled_at"`
	CreatedAt          time.Time `json:"created_at"`
}
