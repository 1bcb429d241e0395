package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/citaflow/citaflow/internal/availability"
	"github.com/citaflow/citaflow/internal/booking"
	"github.com/citaflow/citaflow/internal/phone"
)

// MessageSender delivers one outbound text. Implemented by the WhatsApp
// client; tests use a recorder.
type MessageSender interface {
	SendText(ctx context.Context, toPhone, body string) (string, error)
}

// BookingService is the slice of the booking core the dialogue needs.
type BookingService interface {
	BusinessByID(ctx context.Context, id uuid.UUID) (*booking.Business, error)
	BusinessBySlug(ctx context.Context, slug string) (*booking.Business, error)
	Hours(ctx context.Context, businessID uuid.UUID) ([]booking.BusinessHours, error)
	ListServices(ctx context.Context, businessID uuid.UUID) ([]booking.Offering, error)
	ListStaff(ctx context.Context, businessID uuid.UUID) ([]booking.Staff, error)
	Availability(ctx context.Context, business *booking.Business, serviceID uuid.UUID, date string, staffID *uuid.UUID) ([]availability.Slot, error)
	Book(ctx context.Context, business *booking.Business, req booking.BookRequest) (*booking.Appointment, error)
	Confirm(ctx context.Context, id uuid.UUID) (*booking.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*booking.Appointment, error)
}

// ClientDirectory resolves which business an inbound phone number belongs
// to when no conversation is active.
type ClientDirectory interface {
	NextAppointmentByPhone(ctx context.Context, canonicalPhone string, now time.Time) (*booking.Appointment, error)
	FindClientByPhone(ctx context.Context, businessID uuid.UUID, canonicalPhone string) (*booking.Client, error)
	LatestClientBusinessByPhone(ctx context.Context, canonicalPhone string) (uuid.UUID, error)
}

// Engine drives the booking dialogue. One inbound message in, zero or more
// outbound messages out, state persisted between turns. Downstream failures
// never escape: the user always gets a reply, generic if need be.
type Engine struct {
	store     ConversationStore
	bookings  BookingService
	directory ClientDirectory
	sender    MessageSender
	logger    *zap.Logger
	defaultTZ string
	now       func() time.Time
}

func NewEngine(store ConversationStore, bookings BookingService, directory ClientDirectory, sender MessageSender, logger *zap.Logger, defaultTZ string) *Engine {
	if defaultTZ == "" {
		defaultTZ = "America/Mexico_City"
	}
	return &Engine{
		store:     store,
		bookings:  bookings,
		directory: directory,
		sender:    sender,
		logger:    logger,
		defaultTZ: defaultTZ,
		now:       time.Now,
	}
}

// HandleMessage processes one inbound WhatsApp text. The transport may
// redeliver messages; the engine does not deduplicate.
func (e *Engine) HandleMessage(ctx context.Context, fromPhone, text string) {
	p := phone.Normalize(fromPhone)
	if p == "" {
		e.logger.Warn("inbound message with unusable phone", zap.String("from", fromPhone))
		return
	}
	text = strings.TrimSpace(text)

	st, err := e.store.Get(ctx, p)
	if err != nil {
		// A lost conversation only restarts the dialogue.
		e.logger.Warn("conversation state read failed", zap.Error(err), zap.String("phone", p))
		st = nil
	}

	if st != nil && st.Step != StepIdle {
		e.handleStep(ctx, p, text, st)
		return
	}
	e.handleIntent(ctx, p, text, st)
}

// Active flow

func (e *Engine) handleStep(ctx context.Context, p, text string, st *State) {
	// Cancellation wins at every step, unconditionally.
	if IsAbort(text) {
		e.clear(ctx, p)
		e.send(ctx, p, msgFlowCancelled)
		return
	}

	switch st.Step {
	case StepSelectService:
		e.stepSelectService(ctx, p, text, st)
	case StepSelectStaff:
		e.stepSelectStaff(ctx, p, text, st)
	case StepSelectDate:
		e.stepSelectDate(ctx, p, text, st)
	case StepSelectTime:
		e.stepSelectTime(ctx, p, text, st)
	case StepAskName:
		e.stepAskName(ctx, p, text, st)
	case StepConfirm:
		e.stepConfirm(ctx, p, text, st)
	default:
		e.clear(ctx, p)
		e.handleIntent(ctx, p, text, nil)
	}
}

func (e *Engine) stepSelectService(ctx context.Context, p, text string, st *State) {
	opt, ok := pickOption(text, st.Options)
	if !ok {
		e.send(ctx, p, msgInvalidOption)
		return
	}

	serviceID, err := uuid.Parse(opt.Value)
	if err != nil {
		e.fail(ctx, p, "parse service option", err)
		return
	}

	services, err := e.bookings.ListServices(ctx, st.BusinessID)
	if err != nil {
		e.fail(ctx, p, "list services", err)
		return
	}
	for _, svc := range services {
		if svc.ID == serviceID {
			st.ServiceID = svc.ID
			st.ServiceName = svc.Name
			st.DurationMinutes = svc.DurationMinutes
			break
		}
	}
	if st.ServiceID != serviceID {
		e.send(ctx, p, msgInvalidOption)
		return
	}

	staff, err := e.bookings.ListStaff(ctx, st.BusinessID)
	if err != nil {
		e.fail(ctx, p, "list staff", err)
		return
	}
	if len(staff) > 1 {
		msg, opts := staffOptions(staff)
		st.Step = StepSelectStaff
		st.Options = opts
		e.save(ctx, p, st)
		e.send(ctx, p, msg)
		return
	}

	// Single-person business: no staff choice to make.
	e.promptDate(ctx, p, st)
}

func (e *Engine) stepSelectStaff(ctx context.Context, p, text string, st *State) {
	opt, ok := pickOption(text, st.Options)
	if !ok {
		e.send(ctx, p, msgInvalidOption)
		return
	}

	staffID, err := uuid.Parse(opt.Value)
	if err != nil {
		e.fail(ctx, p, "parse staff option", err)
		return
	}
	st.StaffID = &staffID
	st.StaffName = opt.Label

	e.promptDate(ctx, p, st)
}

func (e *Engine) promptDate(ctx context.Context, p string, st *State) {
	_, loc, err := e.business(ctx, st.BusinessID)
	if err != nil {
		e.fail(ctx, p, "load business", err)
		return
	}

	msg, opts := dateOptions(e.now(), loc)
	st.Step = StepSelectDate
	st.Options = opts
	e.save(ctx, p, st)
	e.send(ctx, p, msg)
}

func (e *Engine) stepSelectDate(ctx context.Context, p, text string, st *State) {
	opt, ok := pickOption(text, st.Options)
	if !ok {
		e.send(ctx, p, msgInvalidOption)
		return
	}

	b, _, err := e.business(ctx, st.BusinessID)
	if err != nil {
		e.fail(ctx, p, "load business", err)
		return
	}

	slots, err := e.bookings.Availability(ctx, b, st.ServiceID, opt.Value, st.StaffID)
	if err != nil {
		e.fail(ctx, p, "compute availability", err)
		return
	}

	msg, opts := timeOptions(slots)
	if len(opts) == 0 {
		// Stay on the date step with fresh date options.
		dateMsg, dateOpts := dateOptions(e.now(), e.location(b))
		st.Options = dateOpts
		e.save(ctx, p, st)
		e.send(ctx, p, dateMsg+"\n\n(El día que elegiste ya no tiene horarios libres.)")
		return
	}

	st.Date = opt.Value
	st.Step = StepSelectTime
	st.Options = opts
	e.save(ctx, p, st)
	e.send(ctx, p, msg)
}

func (e *Engine) stepSelectTime(ctx context.Context, p, text string, st *State) {
	opt, ok := pickOption(text, st.Options)
	if !ok {
		e.send(ctx, p, msgInvalidOption)
		return
	}
	st.Time = opt.Value
	st.Options = nil

	// Known clients skip the name question.
	client, err := e.directory.FindClientByPhone(ctx, st.BusinessID, p)
	if err == nil && client.Name != "" {
		st.ClientName = client.Name
		st.Step = StepConfirm
		e.save(ctx, p, st)
		e.send(ctx, p, confirmSummary(st))
		return
	}

	st.Step = StepAskName
	e.save(ctx, p, st)
	e.send(ctx, p, msgAskName)
}

func (e *Engine) stepAskName(ctx context.Context, p, text string, st *State) {
	name := strings.TrimSpace(text)
	if name == "" {
		e.send(ctx, p, msgAskName)
		return
	}

	st.ClientName = name
	st.Step = StepConfirm
	e.save(ctx, p, st)
	e.send(ctx, p, confirmSummary(st))
}

func (e *Engine) stepConfirm(ctx context.Context, p, text string, st *State) {
	switch {
	case IsAffirmative(text):
		e.finishBooking(ctx, p, st)
	case strings.EqualFold(strings.TrimSpace(text), "2"), strings.EqualFold(strings.TrimSpace(text), "no"):
		e.clear(ctx, p)
		e.send(ctx, p, msgFlowCancelled)
	default:
		e.send(ctx, p, "Responde *1* para confirmar tu cita o *2* para cancelar.")
	}
}

func (e *Engine) finishBooking(ctx context.Context, p string, st *State) {
	b, loc, err := e.business(ctx, st.BusinessID)
	if err != nil {
		e.fail(ctx, p, "load business", err)
		return
	}

	startsAt, err := time.ParseInLocation("2006-01-02 15:04", st.Date+" "+st.Time, loc)
	if err != nil {
		e.fail(ctx, p, "parse selected slot", err)
		return
	}

	appt, err := e.bookings.Book(ctx, b, booking.BookRequest{
		ServiceID:     st.ServiceID,
		StaffID:       st.StaffID,
		StartsAt:      startsAt,
		ClientName:    st.ClientName,
		ClientPhone:   p,
		InitialStatus: booking.StatusPending,
	})
	if err != nil {
		e.clear(ctx, p)
		if errors.Is(err, booking.ErrSlotTaken) {
			e.send(ctx, p, msgSlotConflict)
			return
		}
		e.logger.Error("bot booking failed", zap.Error(err), zap.String("phone", p))
		e.send(ctx, p, msgSomethingWrong)
		return
	}

	e.clear(ctx, p)
	e.send(ctx, p, bookedMessage(b, appt, loc))
}

// Intent handling outside an active flow

func (e *Engine) handleIntent(ctx context.Context, p, text string, st *State) {
	intent := ClassifyIntent(text)

	b := e.resolveBusiness(ctx, p, text, st)

	switch intent {
	case IntentBook:
		e.startBookingFlow(ctx, p, b)

	case IntentGreet:
		if b == nil {
			e.send(ctx, p, msgAskLink)
			return
		}
		e.send(ctx, p, menuMessage(b))

	case IntentPrices:
		e.withServices(ctx, p, b, func(services []booking.Offering) string {
			return pricesMessage(services)
		})

	case IntentServices:
		e.withServices(ctx, p, b, func(services []booking.Offering) string {
			return servicesMessage(services)
		})

	case IntentHours:
		if b == nil {
			e.send(ctx, p, msgAskLink)
			return
		}
		hours, err := e.bookings.Hours(ctx, b.ID)
		if err != nil {
			e.fail(ctx, p, "load hours", err)
			return
		}
		e.send(ctx, p, hoursMessage(b, hours))

	case IntentLocation:
		if b == nil {
			e.send(ctx, p, msgAskLink)
			return
		}
		e.send(ctx, p, locationMessage(b))

	case IntentHuman:
		e.send(ctx, p, msgHumanHandoff)
		if b != nil && b.WhatsAppPhone != "" {
			e.notifyOwner(ctx, b, "Un cliente ("+p+") pide hablar con una persona. Respóndele directamente por WhatsApp.")
		}

	case IntentConfirm:
		e.confirmPending(ctx, p)

	case IntentCancel:
		e.cancelPending(ctx, p)

	case IntentReschedule:
		appt, err := e.directory.NextAppointmentByPhone(ctx, p, e.now())
		if err != nil || appt == nil {
			e.send(ctx, p, msgNothingPending+" Escribe *agendar* para reservar.")
			return
		}
		e.send(ctx, p, "Para cambiar tu cita primero cancélala respondiendo *cancelar*, y después escribe *agendar* para elegir un nuevo horario.")

	default:
		// Fallback: surface a pending appointment before the generic help.
		appt, err := e.directory.NextAppointmentByPhone(ctx, p, e.now())
		if err == nil && appt != nil && appt.Status == booking.StatusPending {
			loc := e.location(b)
			e.send(ctx, p, pendingReminderMessage(appt, loc))
			return
		}
		e.send(ctx, p, helpMessage())
	}
}

func (e *Engine) startBookingFlow(ctx context.Context, p string, b *booking.Business) {
	if b == nil {
		e.send(ctx, p, msgAskLink)
		return
	}

	services, err := e.bookings.ListServices(ctx, b.ID)
	if err != nil {
		e.fail(ctx, p, "list services", err)
		return
	}
	if len(services) == 0 {
		e.send(ctx, p, "*"+b.Name+"* aún no tiene servicios disponibles para agendar en línea.")
		return
	}

	msg, opts := serviceOptions(services)
	st := &State{
		Step:       StepSelectService,
		BusinessID: b.ID,
		Options:    opts,
	}
	e.save(ctx, p, st)
	e.send(ctx, p, msg)
}

func (e *Engine) confirmPending(ctx context.Context, p string) {
	appt, err := e.directory.NextAppointmentByPhone(ctx, p, e.now())
	if err != nil || appt == nil {
		e.send(ctx, p, msgNothingPending)
		return
	}
	if appt.Status != booking.StatusPending {
		e.send(ctx, p, "Tu próxima cita ya está confirmada. ✅")
		return
	}

	if _, err := e.bookings.Confirm(ctx, appt.ID); err != nil {
		e.fail(ctx, p, "confirm appointment", err)
		return
	}
	e.send(ctx, p, "¡Gracias! Tu cita quedó confirmada. ✅")
}

func (e *Engine) cancelPending(ctx context.Context, p string) {
	appt, err := e.directory.NextAppointmentByPhone(ctx, p, e.now())
	if err != nil || appt == nil {
		e.send(ctx, p, msgNothingPending)
		return
	}

	if _, err := e.bookings.Cancel(ctx, appt.ID); err != nil {
		e.fail(ctx, p, "cancel appointment", err)
		return
	}
	e.send(ctx, p, "Tu cita fue cancelada. Escribe *agendar* cuando quieras reservar de nuevo.")
}

// resolveBusiness finds the tenant an inbound phone is talking to, in
// priority order: active conversation, upcoming appointment, existing client
// record, slug literal typed in the message. Nil when nothing resolves; the
// caller then asks for the business link instead of guessing.
func (e *Engine) resolveBusiness(ctx context.Context, p, text string, st *State) *booking.Business {
	if st != nil && st.BusinessID != uuid.Nil {
		if b, err := e.bookings.BusinessByID(ctx, st.BusinessID); err == nil {
			return b
		}
	}

	if appt, err := e.directory.NextAppointmentByPhone(ctx, p, e.now()); err == nil && appt != nil {
		if b, err := e.bookings.BusinessByID(ctx, appt.BusinessID); err == nil {
			return b
		}
	}

	if businessID, err := e.directory.LatestClientBusinessByPhone(ctx, p); err == nil && businessID != uuid.Nil {
		if b, err := e.bookings.BusinessByID(ctx, businessID); err == nil {
			return b
		}
	}

	if slug := ExtractSlug(text); slug != "" {
		if b, err := e.bookings.BusinessBySlug(ctx, slug); err == nil {
			return b
		}
	}

	return nil
}

// Helpers

func (e *Engine) withServices(ctx context.Context, p string, b *booking.Business, format func([]booking.Offering) string) {
	if b == nil {
		e.send(ctx, p, msgAskLink)
		return
	}
	services, err := e.bookings.ListServices(ctx, b.ID)
	if err != nil {
		e.fail(ctx, p, "list services", err)
		return
	}
	e.send(ctx, p, format(services))
}

func (e *Engine) business(ctx context.Context, id uuid.UUID) (*booking.Business, *time.Location, error) {
	b, err := e.bookings.BusinessByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return b, e.location(b), nil
}

func (e *Engine) location(b *booking.Business) *time.Location {
	tz := e.defaultTZ
	if b != nil && b.Timezone != "" {
		tz = b.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc, _ = time.LoadLocation(e.defaultTZ)
		if loc == nil {
			loc = time.UTC
		}
	}
	return loc
}

func (e *Engine) save(ctx context.Context, p string, st *State) {
	if err := e.store.Set(ctx, p, st); err != nil {
		e.logger.Error("conversation state write failed", zap.Error(err), zap.String("phone", p))
	}
}

func (e *Engine) clear(ctx context.Context, p string) {
	if err := e.store.Clear(ctx, p); err != nil {
		e.logger.Warn("conversation state clear failed", zap.Error(err), zap.String("phone", p))
	}
}

func (e *Engine) send(ctx context.Context, p, body string) {
	if _, err := e.sender.SendText(ctx, p, body); err != nil {
		e.logger.Error("outbound message failed", zap.Error(err), zap.String("phone", p))
	}
}

// fail logs a downstream error and gives the user a generic recoverable
// reply; nothing propagates to the transport.
func (e *Engine) fail(ctx context.Context, p, what string, err error) {
	e.logger.Error("bot step failed", zap.String("op", what), zap.Error(err), zap.String("phone", p))
	e.send(ctx, p, msgSomethingWrong)
}

// notifyOwner is fire-and-forget: errors are the sender's problem, not the
// dialogue's.
func (e *Engine) notifyOwner(ctx context.Context, b *booking.Business, body string) {
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if _, err := e.sender.SendText(sendCtx, b.WhatsAppPhone, body); err != nil {
			e.logger.Warn("owner notification failed", zap.Error(err), zap.String("business_id", b.ID.String()))
		}
	}()
}

func pickOption(text string, options []Option) (Option, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > len(options) {
		return Option{}, false
	}
	return options[n-1], true
}
