// Package reminder sends WhatsApp reminders and follow-ups for upcoming and
// finished appointments. It is driven by a periodic sweep: each run scans a
// window around now for appointments whose reminder flag is still unset,
// sends the message and flips the flag.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/citaflow/citaflow/internal/booking"
)

// Store is the slice of the booking repository the sweeps need.
type Store interface {
	ListDueReminders(ctx context.Context, kind booking.ReminderKind, from, to time.Time) ([]booking.Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, kind booking.ReminderKind) error
	GetBusinessByID(ctx context.Context, id uuid.UUID) (*booking.Business, error)
}

// Sender delivers one text message.
type Sender interface {
	SendText(ctx context.Context, toPhone, body string) (string, error)
}

type Service struct {
	store  Store
	sender Sender
	logger *zap.Logger

	now func() time.Time
}

func NewService(store Store, sender Sender, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
}

// sweep describes one reminder kind: the window around now it scans and how
// it renders the message. Windows are wider than the sweep interval so a
// missed run catches up on the next one; the sent flag keeps delivery
// single-shot either way.
type sweep struct {
	kind  booking.ReminderKind
	from  time.Duration
	to    time.Duration
	build func(biz *booking.Business, appt *booking.Appointment, loc *time.Location) string
}

var sweeps = []sweep{
	{
		kind: booking.Reminder24h,
		from: 23 * time.Hour,
		to:   25 * time.Hour,
		build: func(biz *booking.Business, appt *booking.Appointment, loc *time.Location) string {
			return fmt.Sprintf("⏰ Hola %s, te recordamos tu cita en %s mañana a las %s. Responde 1 para confirmar o 2 para cancelar.",
				appt.ClientName, biz.Name, appt.StartsAt.In(loc).Format("15:04"))
		},
	},
	{
		kind: booking.Reminder1h,
		from: 55 * time.Minute,
		to:   65 * time.Minute,
		build: func(biz *booking.Business, appt *booking.Appointment, loc *time.Location) string {
			return fmt.Sprintf("⏰ Hola %s, tu cita en %s es hoy a las %s. ¡Te esperamos!",
				appt.ClientName, biz.Name, appt.StartsAt.In(loc).Format("15:04"))
		},
	},
	{
		kind: booking.ReminderFollowup,
		from: -150 * time.Minute,
		to:   -90 * time.Minute,
		build: func(biz *booking.Business, appt *booking.Appointment, loc *time.Location) string {
			return fmt.Sprintf("Hola %s, gracias por tu visita a %s. ¿Cómo fue tu experiencia? Responde a este mensaje con cualquier comentario.",
				appt.ClientName, biz.Name)
		},
	},
}

// Run executes the three sweeps once. Failures on individual appointments are
// logged and skipped so one bad row never blocks the rest of the batch.
func (s *Service) Run(ctx context.Context) {
	now := s.now()
	for _, sw := range sweeps {
		from := now.Add(sw.from)
		to := now.Add(sw.to)

		due, err := s.store.ListDueReminders(ctx, sw.kind, from, to)
		if err != nil {
			s.logger.Error("listing due reminders failed",
				zap.String("kind", string(sw.kind)),
				zap.Error(err),
			)
			continue
		}
		if len(due) == 0 {
			continue
		}

		s.logger.Info("reminder sweep",
			zap.String("kind", string(sw.kind)),
			zap.Int("due", len(due)),
		)

		for i := range due {
			if err := s.deliver(ctx, sw, &due[i]); err != nil {
				s.logger.Warn("reminder delivery failed",
					zap.String("kind", string(sw.kind)),
					zap.String("appointment_id", due[i].ID.String()),
					zap.Error(err),
				)
			}
		}
	}
}

func (s *Service) deliver(ctx context.Context, sw sweep, appt *booking.Appointment) error {
	biz, err := s.store.GetBusinessByID(ctx, appt.BusinessID)
	if err != nil {
		return fmt.Errorf("load business: %w", err)
	}

	loc, err := time.LoadLocation(biz.Timezone)
	if err != nil {
		loc = time.UTC
	}

	body := sw.build(biz, appt, loc)
	if _, err := s.sender.SendText(ctx, appt.ClientPhone, body); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	if err := s.store.MarkReminderSent(ctx, appt.ID, sw.kind); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}
