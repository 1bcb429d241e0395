package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/citaflow/citaflow/internal/availability"
	"github.com/citaflow/citaflow/internal/booking"
)

type RegisterBusinessRequest struct {
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Timezone      string `json:"timezone"`
	WhatsAppPhone string `json:"whatsapp_phone"`
}

type BusinessResponse struct {
	ID            uuid.UUID `json:"id"`
	Slug          string    `json:"slug"`
	Name          string    `json:"name"`
	Timezone      string    `json:"timezone"`
	Address       string    `json:"address,omitempty"`
	WhatsAppPhone string    `json:"whatsapp_phone,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type ReplaceHoursRequest struct {
	Hours []booking.HoursEntry `json:"hours"`
}

type ServiceResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           *float64  `json:"price,omitempty"`
}

type AvailabilityResponse struct {
	Date  string              `json:"date"`
	Slots []availability.Slot `json:"slots"`
}

type BookAppointmentRequest struct {
	ServiceID   string `json:"service_id"`
	StaffID     string `json:"staff_id,omitempty"`
	StartsAt    string `json:"starts_at"` // RFC 3339
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
	Notes       string `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID          uuid.UUID  `json:"id"`
	BusinessID  uuid.UUID  `json:"business_id"`
	ServiceID   uuid.UUID  `json:"service_id"`
	StaffID     *uuid.UUID `json:"staff_id,omitempty"`
	ClientName  string     `json:"client_name"`
	ClientPhone string     `json:"client_phone"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      time.Time  `json:"ends_at"`
	Status      string     `json:"status"`
	Price       *float64   `json:"price,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func newBusinessResponse(b *booking.Business) BusinessResponse {
	return BusinessResponse{
		ID:            b.ID,
		Slug:          b.Slug,
		Name:          b.Name,
		Timezone:      b.Timezone,
		Address:       b.Address,
		WhatsAppPhone: b.WhatsAppPhone,
		CreatedAt:     b.CreatedAt,
	}
}

func newAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		BusinessID:  a.BusinessID,
		ServiceID:   a.ServiceID,
		StaffID:     a.StaffID,
		ClientName:  a.ClientName,
		ClientPhone: a.ClientPhone,
		StartsAt:    a.StartsAt,
		EndsAt:      a.EndsAt,
		Status:      string(a.Status),
		Price:       a.Price,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
