package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBusinessNotFound    = errors.New("business not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrStaffNotFound       = errors.New("staff not found")
	ErrClientNotFound      = errors.New("client not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlugTaken           = errors.New("business slug already taken")

	// ErrSlotTaken is the conflict outcome of the booking transaction: an
	// overlapping non-cancelled appointment was found under lock.
	ErrSlotTaken = errors.New("time slot already booked")
)

// BookParams is everything the booking transaction needs. ClientPhone must
// already be canonical. Price and EndsAt are intentionally absent: the
// transaction re-reads the service row for the authoritative values.
type BookParams struct {
	BusinessID    uuid.UUID
	ServiceID     uuid.UUID
	StaffID       *uuid.UUID
	StartsAt      time.Time
	ClientName    string
	ClientPhone   string
	Notes         string
	InitialStatus AppointmentStatus // StatusPending (public/bot) or StatusConfirmed (admin)
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	CreateBusiness(ctx context.Context, b *Business, hours []BusinessHours) error
	GetBusinessByID(ctx context.Context, id uuid.UUID) (*Business, error)
	GetBusinessBySlug(ctx context.Context, slug string) (*Business, error)

	GetBusinessHours(ctx context.Context, businessID uuid.UUID) ([]BusinessHours, error)
	ReplaceBusinessHours(ctx context.Context, businessID uuid.UUID, hours []BusinessHours) error

	ListServices(ctx context.Context, businessID uuid.UUID, activeOnly bool) ([]Offering, error)
	GetService(ctx context.Context, businessID, serviceID uuid.UUID) (*Offering, error)
	ListStaff(ctx context.Context, businessID uuid.UUID) ([]Staff, error)

	// ListAppointmentsInRange returns non-cancelled appointments whose
	// [starts_at, ends_at) intersects [from, to). When staffID is set, only
	// appointments for that staff member or unassigned ones are returned.
	ListAppointmentsInRange(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID, from, to time.Time) ([]Appointment, error)

	// BookAppointment runs the whole booking as one transaction: authoritative
	// service re-fetch, FOR UPDATE lock on overlapping appointments, conflict
	// check, client find-or-create, insert. Returns ErrSlotTaken on overlap.
	BookAppointment(ctx context.Context, p BookParams) (*Appointment, error)

	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateAppointmentStatus is compare-and-set: the update only applies
	// while the row still holds the expected current status.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	FindClientByPhone(ctx context.Context, businessID uuid.UUID, canonicalPhone string) (*Client, error)

	// Bot business-context resolution
	NextAppointmentByPhone(ctx context.Context, canonicalPhone string, now time.Time) (*Appointment, error)
	LatestClientBusinessByPhone(ctx context.Context, canonicalPhone string) (uuid.UUID, error)
}
