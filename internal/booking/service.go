package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/citaflow/citaflow/internal/availability"
	"github.com/citaflow/citaflow/internal/phone"
)

var (
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrStartsInPast            = errors.New("appointment starts in the past")
)

// ValidationError rejects malformed input before any transaction begins.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Notifier delivers post-commit booking notifications. Implementations are
// best-effort: they log and swallow their own failures, and must never make
// the booking fail.
type Notifier interface {
	BookingCreated(ctx context.Context, business *Business, appt *Appointment)
}

type Service struct {
	repo      Repository
	notifier  Notifier
	logger    *zap.Logger
	defaultTZ string
	now       func() time.Time
}

func NewService(repo Repository, notifier Notifier, logger *zap.Logger, defaultTZ string) *Service {
	if defaultTZ == "" {
		defaultTZ = "America/Mexico_City"
	}
	return &Service{
		repo:      repo,
		notifier:  notifier,
		logger:    logger,
		defaultTZ: defaultTZ,
		now:       time.Now,
	}
}

// Businesses

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases and hyphenates a human-chosen name into a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugPattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// RegisterBusiness creates the tenant with its seven default hours rows.
// A slug collision is resolved by suffixing a timestamp-derived token; the
// slug is immutable afterwards.
func (s *Service) RegisterBusiness(ctx context.Context, name, slug, timezone, whatsappPhone string) (*Business, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}
	if slug == "" {
		slug = Slugify(name)
	} else {
		slug = Slugify(slug)
	}
	if slug == "" {
		return nil, &ValidationError{Field: "slug", Reason: "required"}
	}

	if timezone == "" {
		timezone = s.defaultTZ
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, &ValidationError{Field: "timezone", Reason: "unknown IANA name"}
	}

	b := &Business{
		ID:            uuid.New(),
		Slug:          slug,
		Name:          strings.TrimSpace(name),
		Timezone:      timezone,
		WhatsAppPhone: phone.Normalize(whatsappPhone),
		Active:        true,
	}

	err := s.repo.CreateBusiness(ctx, b, defaultHours())
	if errors.Is(err, ErrSlugTaken) {
		b.Slug = slug + "-" + strconv.FormatInt(s.now().UnixMilli(), 36)
		err = s.repo.CreateBusiness(ctx, b, defaultHours())
	}
	if err != nil {
		return nil, fmt.Errorf("register business: %w", err)
	}

	s.logger.Info("business registered",
		zap.String("business_id", b.ID.String()),
		zap.String("slug", b.Slug),
	)
	return b, nil
}

func defaultHours() []BusinessHours {
	opens, closes := "09:00", "19:00"
	hours := make([]BusinessHours, 0, 7)
	for weekday := 0; weekday < 7; weekday++ {
		h := BusinessHours{ID: uuid.New(), Weekday: weekday}
		if weekday != 0 { // closed Sundays by default
			h.IsOpen = true
			h.OpensAt = &opens
			h.ClosesAt = &closes
		}
		hours = append(hours, h)
	}
	return hours
}

func (s *Service) BusinessBySlug(ctx context.Context, slug string) (*Business, error) {
	return s.repo.GetBusinessBySlug(ctx, slug)
}

func (s *Service) BusinessByID(ctx context.Context, id uuid.UUID) (*Business, error) {
	return s.repo.GetBusinessByID(ctx, id)
}

// Business hours

// HoursEntry is one weekday in a wholesale hours update.
type HoursEntry struct {
	Weekday  int    `json:"weekday"`
	IsOpen   bool   `json:"is_open"`
	OpensAt  string `json:"opens_at,omitempty"`
	ClosesAt string `json:"closes_at,omitempty"`
}

// ReplaceHours validates and replaces all seven weekday rows at once.
func (s *Service) ReplaceHours(ctx context.Context, businessID uuid.UUID, entries []HoursEntry) error {
	if len(entries) != 7 {
		return &ValidationError{Field: "hours", Reason: fmt.Sprintf("expected 7 entries, got %d", len(entries))}
	}

	if _, err := s.repo.GetBusinessByID(ctx, businessID); err != nil {
		return err
	}

	seen := make(map[int]bool, 7)
	rows := make([]BusinessHours, 0, 7)
	for _, e := range entries {
		if e.Weekday < 0 || e.Weekday > 6 {
			return &ValidationError{Field: "weekday", Reason: "must be 0..6"}
		}
		if seen[e.Weekday] {
			return &ValidationError{Field: "weekday", Reason: fmt.Sprintf("duplicate weekday %d", e.Weekday)}
		}
		seen[e.Weekday] = true

		row := BusinessHours{BusinessID: businessID, Weekday: e.Weekday, IsOpen: e.IsOpen}
		if e.IsOpen {
			open, err := parseWallClock(e.OpensAt)
			if err != nil {
				return &ValidationError{Field: "opens_at", Reason: "must be HH:MM"}
			}
			closeT, err := parseWallClock(e.ClosesAt)
			if err != nil {
				return &ValidationError{Field: "closes_at", Reason: "must be HH:MM"}
			}
			if !closeT.After(open) {
				return &ValidationError{Field: "closes_at", Reason: "must be after opens_at"}
			}
			opens, closes := e.OpensAt, e.ClosesAt
			row.OpensAt = &opens
			row.ClosesAt = &closes
		}
		rows = append(rows, row)
	}

	return s.repo.ReplaceBusinessHours(ctx, businessID, rows)
}

func parseWallClock(hhmm string) (time.Time, error) {
	return time.Parse("15:04", hhmm)
}

func (s *Service) Hours(ctx context.Context, businessID uuid.UUID) ([]BusinessHours, error) {
	return s.repo.GetBusinessHours(ctx, businessID)
}

// Catalog

func (s *Service) ListServices(ctx context.Context, businessID uuid.UUID) ([]Offering, error) {
	return s.repo.ListServices(ctx, businessID, true)
}

func (s *Service) ListStaff(ctx context.Context, businessID uuid.UUID) ([]Staff, error) {
	return s.repo.ListStaff(ctx, businessID)
}

// Availability

// Availability computes the slot list for one calendar day in the business
// timezone. Unavailable slots are included so callers can render them
// struck through.
func (s *Service) Availability(ctx context.Context, business *Business, serviceID uuid.UUID, date string, staffID *uuid.UUID) ([]availability.Slot, error) {
	loc := s.locationFor(business)

	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}

	svc, err := s.repo.GetService(ctx, business.ID, serviceID)
	if err != nil {
		return nil, err
	}

	hours, err := s.repo.GetBusinessHours(ctx, business.ID)
	if err != nil {
		return nil, fmt.Errorf("load business hours: %w", err)
	}

	dayHours := availability.DayHours{}
	for _, h := range hours {
		if h.Weekday == int(day.Weekday()) && h.IsOpen && h.OpensAt != nil && h.ClosesAt != nil {
			dayHours = availability.DayHours{IsOpen: true, OpensAt: *h.OpensAt, ClosesAt: *h.ClosesAt}
			break
		}
	}

	dayStart := day
	dayEnd := day.AddDate(0, 0, 1)
	appts, err := s.repo.ListAppointmentsInRange(ctx, business.ID, staffID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	busy := make([]availability.Interval, 0, len(appts))
	for _, a := range appts {
		busy = append(busy, availability.Interval{Start: a.StartsAt, End: a.EndsAt})
	}

	return availability.Slots(dayHours, busy, day, svc.DurationMinutes, availability.DefaultStepMinutes, s.now(), loc)
}

func (s *Service) locationFor(business *Business) *time.Location {
	tz := business.Timezone
	if tz == "" {
		tz = s.defaultTZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc, _ = time.LoadLocation(s.defaultTZ)
	}
	return loc
}

// Booking

// BookRequest is a booking attempt from any channel. The caller chooses the
// initial status: pending for the public page and the bot, confirmed for
// admin-created appointments.
type BookRequest struct {
	ServiceID     uuid.UUID
	StaffID       *uuid.UUID
	StartsAt      time.Time
	ClientName    string
	ClientPhone   string
	Notes         string
	InitialStatus AppointmentStatus
}

// Book validates, runs the booking transaction and, on success, dispatches
// best-effort notifications after commit.
func (s *Service) Book(ctx context.Context, business *Business, req BookRequest) (*Appointment, error) {
	if strings.TrimSpace(req.ClientName) == "" {
		return nil, &ValidationError{Field: "client_name", Reason: "required"}
	}
	canonicalPhone := phone.Normalize(req.ClientPhone)
	if canonicalPhone == "" {
		return nil, &ValidationError{Field: "client_phone", Reason: "required"}
	}
	if req.StartsAt.IsZero() {
		return nil, &ValidationError{Field: "starts_at", Reason: "required"}
	}
	if !req.StartsAt.After(s.now()) {
		return nil, ErrStartsInPast
	}

	status := req.InitialStatus
	if status == "" {
		status = StatusPending
	}
	if status != StatusPending && status != StatusConfirmed {
		return nil, &ValidationError{Field: "status", Reason: "initial status must be pending or confirmed"}
	}

	appt, err := s.repo.BookAppointment(ctx, BookParams{
		BusinessID:    business.ID,
		ServiceID:     req.ServiceID,
		StaffID:       req.StaffID,
		StartsAt:      req.StartsAt,
		ClientName:    strings.TrimSpace(req.ClientName),
		ClientPhone:   canonicalPhone,
		Notes:         req.Notes,
		InitialStatus: status,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment booked",
		zap.String("appointment_id", appt.ID.String()),
		zap.String("business_id", business.ID.String()),
		zap.Time("starts_at", appt.StartsAt),
		zap.String("status", string(appt.Status)),
	)

	// Post-commit, fire-and-forget. A notification failure never undoes a
	// booking.
	if s.notifier != nil {
		go s.notifier.BookingCreated(context.WithoutCancel(ctx), business, appt)
	}

	return appt, nil
}

// Status transitions

func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted)
}

func (s *Service) NoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusNoShow)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, to) {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to)
	if err != nil {
		// The compare-and-set missed: someone transitioned the row first.
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.logger.Info("appointment status changed",
		zap.String("appointment_id", id.String()),
		zap.String("from", string(appt.Status)),
		zap.String("to", string(to)),
	)
	return updated, nil
}

func (s *Service) Appointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointment(ctx, id)
}
