package models

import "time"

const (
	StatusPending    = "Pending"
	StatusInProgress = "InProgress"
	StatusCompleted  = "Completed"
)

const (
	KindOnsite = "Onsite"
	KindOnline = "Online"
)

type Booking struct {
	ID           int64     `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Title        string    `json:"title"`
	Description  *string   `json:"description"`
	Kind         string    `json:"kind"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Number       int       `json:"number"`
	Status       string    `json:"status"`
	ReminderSent bool      `json:"reminder_sent"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type BookingDetail struct {
	Booking
	Review *Review `json:"review,omitempty"`
}
