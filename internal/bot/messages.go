package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/citaflow/citaflow/internal/availability"
	"github.com/citaflow/citaflow/internal/booking"
)

// All user-facing texts. The product ships in Mexico, so the bot speaks
// Spanish.

const (
	msgSomethingWrong = "Ups, algo salió mal. Por favor intenta de nuevo."
	msgAskLink        = "Hola 👋 No encontré el negocio con el que quieres agendar. Pide su enlace de citas y mándamelo por aquí."
	msgFlowCancelled  = "Listo, cancelé el proceso. Escríbeme cuando quieras agendar de nuevo. 👋"
	msgSlotConflict   = "Lo siento, ese horario ya no está disponible. 😔 Escribe *agendar* para elegir otro."
	msgInvalidOption  = "No entendí esa opción. Responde con el número de una de las opciones de la lista."
	msgAskName        = "¿A nombre de quién agendo la cita?"
	msgNoSlots        = "Ese día ya no tengo horarios disponibles. Elige otra fecha:"
	msgHumanHandoff   = "Claro, le aviso al equipo para que te contacten por aquí lo antes posible. 🙋"
	msgNothingPending = "No tienes citas próximas registradas con este número."
)

var spanishDays = map[time.Weekday]string{
	time.Sunday:    "Dom",
	time.Monday:    "Lun",
	time.Tuesday:   "Mar",
	time.Wednesday: "Mié",
	time.Thursday:  "Jue",
	time.Friday:    "Vie",
	time.Saturday:  "Sáb",
}

var spanishDayNames = [7]string{"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"}

func menuMessage(b *booking.Business) string {
	return fmt.Sprintf(`¡Hola! 👋 Bienvenido a *%s*.

¿En qué te puedo ayudar?
• Escribe *agendar* para reservar una cita
• *servicios* para ver qué ofrecemos
• *precios*, *horario* o *ubicación* para más información`, b.Name)
}

func serviceOptions(services []booking.Offering) (string, []Option) {
	var sb strings.Builder
	sb.WriteString("¿Qué servicio te interesa? Responde con el número:\n")
	opts := make([]Option, 0, len(services))
	for i, svc := range services {
		line := fmt.Sprintf("\n%d. %s (%d min", i+1, svc.Name, svc.DurationMinutes)
		if svc.Price != nil {
			line += fmt.Sprintf(", $%.2f", *svc.Price)
		}
		line += ")"
		sb.WriteString(line)
		opts = append(opts, Option{Value: svc.ID.String(), Label: svc.Name})
	}
	return sb.String(), opts
}

func staffOptions(staff []booking.Staff) (string, []Option) {
	var sb strings.Builder
	sb.WriteString("¿Con quién prefieres tu cita?\n")
	opts := make([]Option, 0, len(staff))
	for i, st := range staff {
		sb.WriteString(fmt.Sprintf("\n%d. %s", i+1, st.Name))
		opts = append(opts, Option{Value: st.ID.String(), Label: st.Name})
	}
	return sb.String(), opts
}

// dateOptions offers the next seven calendar days in the business timezone.
func dateOptions(now time.Time, loc *time.Location) (string, []Option) {
	var sb strings.Builder
	sb.WriteString("¿Qué día te gustaría? Responde con el número:\n")
	opts := make([]Option, 0, 7)
	day := now.In(loc)
	for i := 0; i < 7; i++ {
		label := fmt.Sprintf("%s %s", spanishDays[day.Weekday()], day.Format("02/01"))
		if i == 0 {
			label += " (hoy)"
		}
		sb.WriteString(fmt.Sprintf("\n%d. %s", i+1, label))
		opts = append(opts, Option{Value: day.Format("2006-01-02"), Label: label})
		day = day.AddDate(0, 0, 1)
	}
	return sb.String(), opts
}

// timeOptions lists only the available slots; taken ones are not offered.
func timeOptions(slots []availability.Slot) (string, []Option) {
	var sb strings.Builder
	sb.WriteString("Estos son los horarios disponibles:\n")
	var opts []Option
	for _, s := range slots {
		if !s.Available {
			continue
		}
		opts = append(opts, Option{Value: s.Time, Label: s.Time})
		sb.WriteString(fmt.Sprintf("\n%d. %s", len(opts), s.Time))
	}
	if len(opts) == 0 {
		return msgNoSlots, nil
	}
	return sb.String(), opts
}

func confirmSummary(st *State) string {
	var sb strings.Builder
	sb.WriteString("Perfecto, confirma tu cita:\n")
	sb.WriteString(fmt.Sprintf("\n📅 %s a las %s", st.Date, st.Time))
	sb.WriteString(fmt.Sprintf("\n💈 %s", st.ServiceName))
	if st.StaffName != "" {
		sb.WriteString(fmt.Sprintf("\n🙍 Con %s", st.StaffName))
	}
	sb.WriteString(fmt.Sprintf("\n👤 A nombre de %s", st.ClientName))
	sb.WriteString("\n\nResponde *1* (sí) para confirmar o *2* (no) para cancelar.")
	return sb.String()
}

func bookedMessage(b *booking.Business, appt *booking.Appointment, loc *time.Location) string {
	starts := appt.StartsAt.In(loc)
	return fmt.Sprintf("✅ ¡Listo! Tu cita en *%s* quedó agendada para el %s %s a las %s. Te mandaremos un recordatorio por aquí.",
		b.Name,
		spanishDays[starts.Weekday()],
		starts.Format("02/01"),
		starts.Format("15:04"),
	)
}

func hoursMessage(b *booking.Business, hours []booking.BusinessHours) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Horario de *%s*:\n", b.Name))
	for _, h := range hours {
		if h.Weekday < 0 || h.Weekday > 6 {
			continue
		}
		name := spanishDayNames[h.Weekday]
		if h.IsOpen && h.OpensAt != nil && h.ClosesAt != nil {
			sb.WriteString(fmt.Sprintf("\n%s: %s – %s", name, *h.OpensAt, *h.ClosesAt))
		} else {
			sb.WriteString(fmt.Sprintf("\n%s: cerrado", name))
		}
	}
	return sb.String()
}

func pricesMessage(services []booking.Offering) string {
	var sb strings.Builder
	sb.WriteString("Nuestros precios:\n")
	for _, svc := range services {
		if svc.Price != nil {
			sb.WriteString(fmt.Sprintf("\n• %s: $%.2f", svc.Name, *svc.Price))
		} else {
			sb.WriteString(fmt.Sprintf("\n• %s: consultar", svc.Name))
		}
	}
	return sb.String()
}

func servicesMessage(services []booking.Offering) string {
	var sb strings.Builder
	sb.WriteString("Estos son nuestros servicios:\n")
	for _, svc := range services {
		sb.WriteString(fmt.Sprintf("\n• %s (%d min)", svc.Name, svc.DurationMinutes))
	}
	sb.WriteString("\n\nEscribe *agendar* para reservar.")
	return sb.String()
}

func locationMessage(b *booking.Business) string {
	if b.Address == "" {
		return fmt.Sprintf("*%s* aún no ha publicado su dirección. Pregunta directamente al negocio.", b.Name)
	}
	return fmt.Sprintf("📍 *%s* está en: %s", b.Name, b.Address)
}

func pendingReminderMessage(appt *booking.Appointment, loc *time.Location) string {
	starts := appt.StartsAt.In(loc)
	return fmt.Sprintf("Tienes una cita pendiente de confirmar el %s %s a las %s. Responde *1* para confirmarla o *2* para cancelarla.",
		spanishDays[starts.Weekday()],
		starts.Format("02/01"),
		starts.Format("15:04"),
	)
}

func helpMessage() string {
	return "Te puedo ayudar a agendar una cita. Escribe *agendar* para empezar, o *servicios*, *precios*, *horario*, *ubicación* para más información."
}
