package booking

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// CanTransition reports whether an appointment may move from one status to
// another. Completed, cancelled and no_show are terminal.
func CanTransition(from, to AppointmentStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCompleted || to == StatusCancelled || to == StatusNoShow
	default:
		return false
	}
}

type Business struct {
	ID            uuid.UUID
	Slug          string
	Name          string
	Timezone      string // IANA name
	Address       string
	WhatsAppPhone string // owner notification target, canonical digits
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BusinessHours is one weekday row; every business has exactly seven,
// weekday 0=Sunday..6=Saturday. Open/close are local wall clock "HH:MM"
// and are only read when IsOpen is true.
type BusinessHours struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	Weekday    int
	IsOpen     bool
	OpensAt    *string
	ClosesAt   *string
}

// Offering is one bookable service in a business catalog.
type Offering struct {
	ID              uuid.UUID
	BusinessID      uuid.UUID
	Name            string
	DurationMinutes int
	Price           *float64
	Active          bool
	SortOrder       int
}

// Staff is a business user who can be assigned to appointments.
type Staff struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	Name       string
	Phone      string
	Role       string // owner, staff
}

type Client struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	Name       string
	Phone      string // canonical digits, unique per business
	Notes      string
	CreatedAt  time.Time
}

type Appointment struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	ServiceID  uuid.UUID
	StaffID    *uuid.UUID
	ClientID   *uuid.UUID

	// Snapshot fields so history survives later client edits.
	ClientName  string
	ClientPhone string
	Notes       string

	StartsAt time.Time
	EndsAt   time.Time
	Status   AppointmentStatus
	Price    *float64 // captured at booking time

	Reminder24hSent bool
	Reminder1hSent  bool
	FollowupSent    bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
