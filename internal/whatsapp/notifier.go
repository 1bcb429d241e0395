package whatsapp

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/citaflow/citaflow/internal/booking"
)

// Sender is what the notifier needs from the gateway.
type Sender interface {
	SendText(ctx context.Context, toPhone, body string) (string, error)
}

// Notifier tells the business owner about new bookings after commit.
// Strictly best-effort: every failure is logged and swallowed, a booking is
// never undone because a message could not be sent.
type Notifier struct {
	sender Sender
	logger *zap.Logger
}

func NewNotifier(sender Sender, logger *zap.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger}
}

func (n *Notifier) BookingCreated(ctx context.Context, business *booking.Business, appt *booking.Appointment) {
	if business.WhatsAppPhone == "" {
		return
	}

	loc, err := time.LoadLocation(business.Timezone)
	if err != nil {
		loc = time.UTC
	}

	body := fmt.Sprintf("📅 Nueva cita: %s el %s a las %s (%s).",
		appt.ClientName,
		appt.StartsAt.In(loc).Format("02/01"),
		appt.StartsAt.In(loc).Format("15:04"),
		appt.Status,
	)

	sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := n.sender.SendText(sendCtx, business.WhatsAppPhone, body); err != nil {
		n.logger.Warn("owner booking notification failed",
			zap.Error(err),
			zap.String("business_id", business.ID.String()),
			zap.String("appointment_id", appt.ID.String()),
		)
	}
}
