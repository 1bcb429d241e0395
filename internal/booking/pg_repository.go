package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository uses. pgxmock satisfies it
// too, which keeps the booking transaction testable without a live database.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const appointmentColumns = `id, business_id, service_id, staff_id, client_id,
		client_name, client_phone, notes, starts_at, ends_at, status, price,
		reminder_24h_sent, reminder_1h_sent, followup_sent, created_at, updated_at`

// Helpers

func scanBusiness(row pgx.Row) (*Business, error) {
	var b Business
	err := row.Scan(
		&b.ID,
		&b.Slug,
		&b.Name,
		&b.Timezone,
		&b.Address,
		&b.WhatsAppPhone,
		&b.Active,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBusinessNotFound
		}
		return nil, err
	}
	return &b, nil
}

func scanOffering(row pgx.Row) (*Offering, error) {
	var s Offering
	err := row.Scan(
		&s.ID,
		&s.BusinessID,
		&s.Name,
		&s.DurationMinutes,
		&s.Price,
		&s.Active,
		&s.SortOrder,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.BusinessID,
		&a.ServiceID,
		&a.StaffID,
		&a.ClientID,
		&a.ClientName,
		&a.ClientPhone,
		&a.Notes,
		&a.StartsAt,
		&a.EndsAt,
		&a.Status,
		&a.Price,
		&a.Reminder24hSent,
		&a.Reminder1hSent,
		&a.FollowupSent,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Businesses

func (r *PgRepository) CreateBusiness(ctx context.Context, b *Business, hours []BusinessHours) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create business: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO businesses (id, slug, name, timezone, address, whatsapp_phone, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	`, b.ID, b.Slug, b.Name, b.Timezone, b.Address, b.WhatsAppPhone, b.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugTaken
		}
		return fmt.Errorf("insert business: %w", err)
	}

	for _, h := range hours {
		_, err = tx.Exec(ctx, `
			INSERT INTO business_hours (id, business_id, weekday, is_open, opens_at, closes_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, h.ID, b.ID, h.Weekday, h.IsOpen, h.OpensAt, h.ClosesAt)
		if err != nil {
			return fmt.Errorf("insert business hours: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) GetBusinessByID(ctx context.Context, id uuid.UUID) (*Business, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, slug, name, timezone, address, whatsapp_phone, active, created_at, updated_at
		FROM businesses
		WHERE id = $1
	`, id)
	return scanBusiness(row)
}

func (r *PgRepository) GetBusinessBySlug(ctx context.Context, slug string) (*Business, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, slug, name, timezone, address, whatsapp_phone, active, created_at, updated_at
		FROM businesses
		WHERE slug = $1 AND active = true
	`, slug)
	return scanBusiness(row)
}

// Business hours

func (r *PgRepository) GetBusinessHours(ctx context.Context, businessID uuid.UUID) ([]BusinessHours, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, business_id, weekday, is_open, opens_at, closes_at
		FROM business_hours
		WHERE business_id = $1
		ORDER BY weekday
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BusinessHours
	for rows.Next() {
		var h BusinessHours
		if err := rows.Scan(&h.ID, &h.BusinessID, &h.Weekday, &h.IsOpen, &h.OpensAt, &h.ClosesAt); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

// ReplaceBusinessHours deletes and reinserts all seven rows in one
// transaction. Hours are never partially patched.
func (r *PgRepository) ReplaceBusinessHours(ctx context.Context, businessID uuid.UUID, hours []BusinessHours) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace hours: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM business_hours WHERE business_id = $1`, businessID); err != nil {
		return fmt.Errorf("delete business hours: %w", err)
	}

	for _, h := range hours {
		_, err := tx.Exec(ctx, `
			INSERT INTO business_hours (id, business_id, weekday, is_open, opens_at, closes_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New(), businessID, h.Weekday, h.IsOpen, h.OpensAt, h.ClosesAt)
		if err != nil {
			return fmt.Errorf("insert business hours: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Services and staff

func (r *PgRepository) ListServices(ctx context.Context, businessID uuid.UUID, activeOnly bool) ([]Offering, error) {
	query := `
		SELECT id, business_id, name, duration_minutes, price, active, sort_order
		FROM services
		WHERE business_id = $1
	`
	if activeOnly {
		query += ` AND active = true`
	}
	query += ` ORDER BY sort_order, name`

	rows, err := r.db.Query(ctx, query, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Offering
	for rows.Next() {
		s, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetService(ctx context.Context, businessID, serviceID uuid.UUID) (*Offering, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, business_id, name, duration_minutes, price, active, sort_order
		FROM services
		WHERE id = $1 AND business_id = $2 AND active = true
	`, serviceID, businessID)
	return scanOffering(row)
}

func (r *PgRepository) ListStaff(ctx context.Context, businessID uuid.UUID) ([]Staff, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, business_id, name, phone, role
		FROM users
		WHERE business_id = $1 AND role IN ('owner', 'staff')
		ORDER BY name
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Staff
	for rows.Next() {
		var s Staff
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.Phone, &s.Role); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// Appointments

func (r *PgRepository) ListAppointmentsInRange(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID, from, to time.Time) ([]Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE business_id = $1
		  AND status <> 'cancelled'
		  AND starts_at < $2
		  AND ends_at > $3
	`
	args := []any{businessID, to, from}
	if staffID != nil {
		query += ` AND (staff_id = $4 OR staff_id IS NULL)`
		args = append(args, *staffID)
	}
	query += ` ORDER BY starts_at`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// BookAppointment is the conflict-prevention core. The whole flow runs in
// one transaction:
//
//  1. re-fetch the service row for the authoritative duration and price
//  2. lock every non-cancelled appointment overlapping [starts_at, ends_at)
//     with SELECT ... FOR UPDATE, so concurrent bookers for the same window
//     serialize on the database
//  3. any locked row means conflict: rollback, no insert
//  4. find-or-create the client, insert the appointment, commit
//
// The lock must come before the existence check is trusted; without it two
// transactions could both see "no conflict" before either commits.
func (r *PgRepository) BookAppointment(ctx context.Context, p BookParams) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking: %w", err)
	}
	defer tx.Rollback(ctx)

	var durationMinutes int
	var price *float64
	err = tx.QueryRow(ctx, `
		SELECT duration_minutes, price
		FROM services
		WHERE id = $1 AND business_id = $2 AND active = true
	`, p.ServiceID, p.BusinessID).Scan(&durationMinutes, &price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("load service: %w", err)
	}

	endsAt := p.StartsAt.Add(time.Duration(durationMinutes) * time.Minute)

	lockQuery := `
		SELECT id
		FROM appointments
		WHERE business_id = $1
		  AND status <> 'cancelled'
		  AND starts_at < $2
		  AND ends_at > $3
	`
	lockArgs := []any{p.BusinessID, endsAt, p.StartsAt}
	if p.StaffID != nil {
		lockQuery += ` AND (staff_id = $4 OR staff_id IS NULL)`
		lockArgs = append(lockArgs, *p.StaffID)
	}
	lockQuery += ` FOR UPDATE`

	rows, err := tx.Query(ctx, lockQuery, lockArgs...)
	if err != nil {
		return nil, fmt.Errorf("lock overlapping appointments: %w", err)
	}
	conflict := rows.Next()
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock overlapping appointments: %w", err)
	}
	if conflict {
		return nil, ErrSlotTaken
	}

	var clientID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO clients (id, business_id, name, phone, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (business_id, phone)
		DO UPDATE SET name = COALESCE(NULLIF(EXCLUDED.name, ''), clients.name)
		RETURNING id
	`, uuid.New(), p.BusinessID, p.ClientName, p.ClientPhone, p.Notes).Scan(&clientID)
	if err != nil {
		return nil, fmt.Errorf("find or create client: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (
			id, business_id, service_id, staff_id, client_id,
			client_name, client_phone, notes, starts_at, ends_at, status, price,
			reminder_24h_sent, reminder_1h_sent, followup_sent, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, false, false, false, now(), now())
		RETURNING `+appointmentColumns+`
	`, uuid.New(), p.BusinessID, p.ServiceID, p.StaffID, clientID,
		p.ClientName, p.ClientPhone, p.Notes, p.StartsAt, endsAt, p.InitialStatus, price)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking: %w", err)
	}

	return appt, nil
}

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)
	return scanAppointment(row)
}

// Clients

func (r *PgRepository) FindClientByPhone(ctx context.Context, businessID uuid.UUID, canonicalPhone string) (*Client, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, business_id, name, phone, notes, created_at
		FROM clients
		WHERE business_id = $1 AND phone = $2
	`, businessID, canonicalPhone)

	var c Client
	err := row.Scan(&c.ID, &c.BusinessID, &c.Name, &c.Phone, &c.Notes, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &c, nil
}

// NextAppointmentByPhone returns the phone's soonest upcoming pending or
// confirmed appointment across all businesses.
func (r *PgRepository) NextAppointmentByPhone(ctx context.Context, canonicalPhone string, now time.Time) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE client_phone = $1
		  AND status IN ('pending', 'confirmed')
		  AND starts_at > $2
		ORDER BY starts_at
		LIMIT 1
	`, canonicalPhone, now)
	return scanAppointment(row)
}

func (r *PgRepository) LatestClientBusinessByPhone(ctx context.Context, canonicalPhone string) (uuid.UUID, error) {
	var businessID uuid.UUID
	err := r.db.QueryRow(ctx, `
		SELECT business_id
		FROM clients
		WHERE phone = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, canonicalPhone).Scan(&businessID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrClientNotFound
		}
		return uuid.Nil, err
	}
	return businessID, nil
}
