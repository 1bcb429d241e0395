package bot

import (
	"regexp"
	"strings"
)

type Intent string

const (
	IntentUnknown    Intent = "unknown"
	IntentGreet      Intent = "greet"
	IntentBook       Intent = "book"
	IntentPrices     Intent = "prices"
	IntentHours      Intent = "hours"
	IntentLocation   Intent = "location"
	IntentServices   Intent = "services"
	IntentHuman      Intent = "human"
	IntentConfirm    Intent = "confirm"
	IntentCancel     Intent = "cancel"
	IntentReschedule Intent = "reschedule"
)

type keywordRule struct {
	intent   Intent
	keywords []string
}

// intentRules is matched top to bottom; the first rule with a keyword
// contained in the message wins. Specific intents come before broad ones:
// "cambiar mi cita" must hit reschedule even though it contains "cita".
var intentRules = []keywordRule{
	{IntentReschedule, []string{"reagendar", "cambiar mi cita", "mover mi cita", "otra fecha"}},
	{IntentCancel, []string{"cancelar", "cancela", "ya no quiero"}},
	{IntentConfirm, []string{"confirmar", "confirmo"}},
	{IntentBook, []string{"agendar", "cita", "reservar", "reserva", "apartar", "agenda"}},
	{IntentPrices, []string{"precio", "costo", "cuánto cuesta", "cuanto cuesta", "tarifa"}},
	{IntentHours, []string{"horario", "abren", "cierran", "a qué hora", "a que hora"}},
	{IntentLocation, []string{"ubicación", "ubicacion", "dirección", "direccion", "dónde están", "donde estan", "cómo llegar", "como llegar"}},
	{IntentServices, []string{"servicios", "qué hacen", "que hacen", "qué ofrecen", "que ofrecen"}},
	{IntentHuman, []string{"asesor", "humano", "persona real", "hablar con alguien", "atención", "atencion"}},
	{IntentGreet, []string{"hola", "buenos días", "buenos dias", "buenas tardes", "buenas noches", "buenas", "hey", "qué tal", "que tal"}},
}

// ClassifyIntent maps free text outside an active flow to an intent.
// "1"/"sí"/"si" and "2"/"no" short-circuit so confirmation prompts can be
// answered with a single keystroke.
func ClassifyIntent(text string) Intent {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return IntentUnknown
	}

	switch t {
	case "1", "sí", "si":
		return IntentConfirm
	case "2", "no":
		return IntentCancel
	}

	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(t, kw) {
				return rule.intent
			}
		}
	}

	return IntentUnknown
}

// slugPattern matches a hyphenated slug token, e.g. "barberia-centro".
var slugPattern = regexp.MustCompile(`\b[a-z0-9]+(?:-[a-z0-9]+)+\b`)

// ExtractSlug pulls a business slug literal out of a message like
// "hola barberia-centro". Empty when the text carries no slug-shaped token.
func ExtractSlug(text string) string {
	return slugPattern.FindString(strings.ToLower(strings.TrimSpace(text)))
}

// IsAffirmative recognizes a confirmation reply at the final step.
func IsAffirmative(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "1", "sí", "si", "confirmo", "confirmar", "claro", "ok":
		return true
	}
	return false
}

// IsAbort recognizes the cancellation keyword that aborts a flow at any step.
func IsAbort(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == "cancelar" || t == "cancela" || t == "salir"
}
