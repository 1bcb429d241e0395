package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyIntent(t *testing.T) {
	cases := []struct {
		text string
		want Intent
	}{
		{"Hola!", IntentGreet},
		{"buenos días", IntentGreet},
		{"quiero agendar una cita", IntentBook},
		{"puedo reservar para mañana?", IntentBook},
		{"cuánto cuesta el corte?", IntentPrices},
		{"precio del tinte", IntentPrices},
		{"a qué hora abren?", IntentHours},
		{"horario de atención", IntentHours}, // hours beats human: first match wins
		{"dónde están ubicados?", IntentLocation},
		{"como llegar", IntentLocation},
		{"qué servicios tienen", IntentServices},
		{"quiero hablar con un asesor", IntentHuman},
		{"confirmo mi cita", IntentConfirm},
		{"quiero cancelar", IntentCancel},
		{"ya no quiero la cita", IntentCancel},
		{"quiero cambiar mi cita a otra fecha", IntentReschedule},
		{"reagendar por favor", IntentReschedule},
		{"1", IntentConfirm},
		{"sí", IntentConfirm},
		{"si", IntentConfirm},
		{"2", IntentCancel},
		{"no", IntentCancel},
		{"asdfgh", IntentUnknown},
		{"", IntentUnknown},
		{"   ", IntentUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyIntent(tc.text), "text: %q", tc.text)
		})
	}
}

func TestRescheduleBeatsBook(t *testing.T) {
	// "cambiar mi cita" contains "cita"; the more specific rule must win.
	assert.Equal(t, IntentReschedule, ClassifyIntent("necesito cambiar mi cita"))
}

func TestExtractSlug(t *testing.T) {
	assert.Equal(t, "barberia-centro", ExtractSlug("Hola Barberia-Centro"))
	assert.Equal(t, "spa-luna-2", ExtractSlug("quiero cita en spa-luna-2"))
	assert.Equal(t, "", ExtractSlug("hola quiero una cita"))
	assert.Equal(t, "", ExtractSlug(""))
}

func TestIsAffirmative(t *testing.T) {
	for _, yes := range []string{"1", "Sí", "si", "CONFIRMO", "ok", " claro "} {
		assert.True(t, IsAffirmative(yes), yes)
	}
	for _, no := range []string{"2", "no", "tal vez", ""} {
		assert.False(t, IsAffirmative(no), no)
	}
}

func TestIsAbort(t *testing.T) {
	assert.True(t, IsAbort("cancelar"))
	assert.True(t, IsAbort(" Salir "))
	assert.False(t, IsAbort("quiero cancelar mi cita"), "abort must be the whole message")
	assert.False(t, IsAbort("continuar"))
}
