package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReminderKind selects which of the three monotonic reminder flags a sweep
// operates on.
type ReminderKind string

const (
	Reminder24h      ReminderKind = "reminder_24h"
	Reminder1h       ReminderKind = "reminder_1h"
	ReminderFollowup ReminderKind = "followup"
)

// ListDueReminders returns appointments whose reminder of the given kind is
// due within [from, to) and has not been sent yet. The 24h and 1h kinds look
// at confirmed appointments by start time; the follow-up kind looks at
// completed appointments by end time.
func (r *PgRepository) ListDueReminders(ctx context.Context, kind ReminderKind, from, to time.Time) ([]Appointment, error) {
	var query string
	switch kind {
	case Reminder24h:
		query = `
			SELECT ` + appointmentColumns + `
			FROM appointments
			WHERE status = 'confirmed'
			  AND starts_at >= $1 AND starts_at < $2
			  AND reminder_24h_sent = false
			ORDER BY starts_at`
	case Reminder1h:
		query = `
			SELECT ` + appointmentColumns + `
			FROM appointments
			WHERE status = 'confirmed'
			  AND starts_at >= $1 AND starts_at < $2
			  AND reminder_1h_sent = false
			ORDER BY starts_at`
	case ReminderFollowup:
		query = `
			SELECT ` + appointmentColumns + `
			FROM appointments
			WHERE status = 'completed'
			  AND ends_at >= $1 AND ends_at < $2
			  AND followup_sent = false
			ORDER BY ends_at`
	default:
		return nil, fmt.Errorf("unknown reminder kind %q", kind)
	}

	rows, err := r.db.Query(ctx, query, from, to)
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

// MarkReminderSent flips the flag for one appointment. Flags only ever move
// false to true; marking an already-sent reminder is a no-op.
func (r *PgRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, kind ReminderKind) error {
	var column string
	switch kind {
	case Reminder24h:
		column = "reminder_24h_sent"
	case Reminder1h:
		column = "reminder_1h_sent"
	case ReminderFollowup:
		column = "followup_sent"
	default:
		return fmt.Errorf("unknown reminder kind %q", kind)
	}

	_, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET `+column+` = true,
		    updated_at = now()
		WHERE id = $1 AND `+column+` = false
	`, id)
	if err != nil {
		return fmt.Errorf("mark %s sent: %w", kind, err)
	}
	return nil
}
