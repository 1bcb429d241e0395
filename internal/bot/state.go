// Package bot implements the WhatsApp booking dialogue: a finite-state
// machine per phone number, backed by an expiring conversation store.
package bot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StateTTL is the sliding conversation expiry. A state older than this is
// treated as absent; the user simply starts over.
const StateTTL = 30 * time.Minute

// Step is the dialogue position. Each step only reads the state fields
// accumulated by the steps before it.
type Step string

const (
	StepIdle          Step = "idle"
	StepSelectService Step = "select_service"
	StepSelectStaff   Step = "select_staff"
	StepSelectDate    Step = "select_date"
	StepSelectTime    Step = "select_time"
	StepAskName       Step = "ask_name"
	StepConfirm       Step = "confirm"
)

// Option is one numbered choice offered to the user. Value is what the step
// handler needs back (a service id, a date, a time); Label is what was shown.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// State is the in-progress dialogue for one phone number.
type State struct {
	Step       Step      `json:"step"`
	BusinessID uuid.UUID `json:"business_id"`

	ServiceID       uuid.UUID  `json:"service_id,omitempty"`
	ServiceName     string     `json:"service_name,omitempty"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
	StaffID         *uuid.UUID `json:"staff_id,omitempty"`
	StaffName       string     `json:"staff_name,omitempty"`
	Date            string     `json:"date,omitempty"` // YYYY-MM-DD
	Time            string     `json:"time,omitempty"` // HH:MM
	ClientName      string     `json:"client_name,omitempty"`

	// Options bounds valid numeric replies for the current step.
	Options []Option `json:"options,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationStore holds per-phone dialogue state with lazy 30-minute
// expiry. Implementations must be safe for concurrent use across phones.
// Losing the store mid-conversation only forces the user to restart.
type ConversationStore interface {
	// Get returns nil when no fresh state exists for the phone.
	Get(ctx context.Context, phone string) (*State, error)
	// Set stores the state and stamps UpdatedAt, restarting the TTL.
	Set(ctx context.Context, phone string, st *State) error
	Clear(ctx context.Context, phone string) error
}
