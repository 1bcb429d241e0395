package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/citaflow/citaflow/internal/booking"
)

// stubRepo implements booking.Repository in memory, just enough to exercise
// the HTTP surface end to end without Postgres.
type stubRepo struct {
	businesses map[uuid.UUID]*booking.Business
	hours      map[uuid.UUID][]booking.BusinessHours
	offerings  map[uuid.UUID]*booking.Offering
	appts      map[uuid.UUID]*booking.Appointment
	conflict   bool
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		businesses: make(map[uuid.UUID]*booking.Business),
		hours:      make(map[uuid.UUID][]booking.BusinessHours),
		offerings:  make(map[uuid.UUID]*booking.Offering),
		appts:      make(map[uuid.UUID]*booking.Appointment),
	}
}

func (s *stubRepo) CreateBusiness(_ context.Context, b *booking.Business, hours []booking.BusinessHours) error {
	for _, existing := range s.businesses {
		if existing.Slug == b.Slug {
			return booking.ErrSlugTaken
		}
	}
	cp := *b
	cp.CreatedAt = time.Now()
	s.businesses[b.ID] = &cp
	s.hours[b.ID] = hours
	return nil
}

func (s *stubRepo) GetBusinessByID(_ context.Context, id uuid.UUID) (*booking.Business, error) {
	b, ok := s.businesses[id]
	if !ok {
		return nil, booking.ErrBusinessNotFound
	}
	return b, nil
}

func (s *stubRepo) GetBusinessBySlug(_ context.Context, slug string) (*booking.Business, error) {
	for _, b := range s.businesses {
		if b.Slug == slug {
			return b, nil
		}
	}
	return nil, booking.ErrBusinessNotFound
}

func (s *stubRepo) GetBusinessHours(_ context.Context, businessID uuid.UUID) ([]booking.BusinessHours, error) {
	return s.hours[businessID], nil
}

func (s *stubRepo) ReplaceBusinessHours(_ context.Context, businessID uuid.UUID, hours []booking.BusinessHours) error {
	s.hours[businessID] = hours
	return nil
}

func (s *stubRepo) ListServices(_ context.Context, businessID uuid.UUID, _ bool) ([]booking.Offering, error) {
	var out []booking.Offering
	for _, o := range s.offerings {
		if o.BusinessID == businessID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *stubRepo) GetService(_ context.Context, businessID, serviceID uuid.UUID) (*booking.Offering, error) {
	o, ok := s.offerings[serviceID]
	if !ok || o.BusinessID != businessID {
		return nil, booking.ErrServiceNotFound
	}
	return o, nil
}

func (s *stubRepo) ListStaff(_ context.Context, _ uuid.UUID) ([]booking.Staff, error) {
	return nil, nil
}

func (s *stubRepo) ListAppointmentsInRange(_ context.Context, _ uuid.UUID, _ *uuid.UUID, _, _ time.Time) ([]booking.Appointment, error) {
	return nil, nil
}

func (s *stubRepo) BookAppointment(_ context.Context, p booking.BookParams) (*booking.Appointment, error) {
	if s.conflict {
		return nil, booking.ErrSlotTaken
	}
	o, ok := s.offerings[p.ServiceID]
	if !ok {
		return nil, booking.ErrServiceNotFound
	}
	a := &booking.Appointment{
		ID:          uuid.New(),
		BusinessID:  p.BusinessID,
		ServiceID:   p.ServiceID,
		StaffID:     p.StaffID,
		ClientName:  p.ClientName,
		ClientPhone: p.ClientPhone,
		StartsAt:    p.StartsAt,
		EndsAt:      p.StartsAt.Add(time.Duration(o.DurationMinutes) * time.Minute),
		Status:      p.InitialStatus,
		Price:       o.Price,
	}
	s.appts[a.ID] = a
	return a, nil
}

func (s *stubRepo) GetAppointment(_ context.Context, id uuid.UUID) (*booking.Appointment, error) {
	a, ok := s.appts[id]
	if !ok {
		return nil, booking.ErrAppointmentNotFound
	}
	return a, nil
}

func (s *stubRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to booking.AppointmentStatus) (*booking.Appointment, error) {
	a, ok := s.appts[id]
	if !ok || a.Status != from {
		return nil, booking.ErrAppointmentNotFound
	}
	a.Status = to
	return a, nil
}

func (s *stubRepo) FindClientByPhone(_ context.Context, _ uuid.UUID, _ string) (*booking.Client, error) {
	return nil, booking.ErrClientNotFound
}

func (s *stubRepo) NextAppointmentByPhone(_ context.Context, _ string, _ time.Time) (*booking.Appointment, error) {
	return nil, booking.ErrAppointmentNotFound
}

func (s *stubRepo) LatestClientBusinessByPhone(_ context.Context, _ string) (uuid.UUID, error) {
	return uuid.Nil, booking.ErrClientNotFound
}

func testServer(t *testing.T) (*stubRepo, http.Handler) {
	t.Helper()
	repo := newStubRepo()
	svc := booking.NewService(repo, nil, zap.NewNop(), "America/Mexico_City")
	router := NewRouter(RouterConfig{
		Service: svc,
		Logger:  zap.NewNop(),
		Env:     "test",
		Version: "test",
	})
	return repo, router
}

func seedTenant(t *testing.T, repo *stubRepo, router http.Handler) (*booking.Business, *booking.Offering) {
	t.Helper()

	body := `{"name": "Barbería Centro", "slug": "barberia-centro", "timezone": "America/Mexico_City"}`
	req := httptest.NewRequest("POST", "/api/businesses", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, 201, rec.Code, rec.Body.String())

	var resp BusinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	biz := repo.businesses[resp.ID]
	require.NotNil(t, biz)

	price := 150.0
	offering := &booking.Offering{
		ID:              uuid.New(),
		BusinessID:      biz.ID,
		Name:            "Corte",
		DurationMinutes: 30,
		Price:           &price,
		Active:          true,
	}
	repo.offerings[offering.ID] = offering
	return biz, offering
}

func TestRegisterBusinessEndpoint(t *testing.T) {
	repo, router := testServer(t)

	biz, _ := seedTenant(t, repo, router)
	assert.Equal(t, "barberia-centro", biz.Slug)
	assert.Len(t, repo.hours[biz.ID], 7)

	// Same slug again: suffixed, not rejected.
	req := httptest.NewRequest("POST", "/api/businesses",
		bytes.NewBufferString(`{"name": "Otra", "slug": "barberia-centro"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, 201, rec.Code)

	var resp BusinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEqual(t, "barberia-centro", resp.Slug)
	assert.Contains(t, resp.Slug, "barberia-centro-")
}

func TestRegisterBusinessValidationError(t *testing.T) {
	_, router := testServer(t)

	req := httptest.NewRequest("POST", "/api/businesses", bytes.NewBufferString(`{"name": "  "}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_name", resp.Error)
}

func TestPublicBookEndpoint(t *testing.T) {
	repo, router := testServer(t)
	_, offering := seedTenant(t, repo, router)

	startsAt := time.Now().Add(48 * time.Hour).Truncate(time.Hour)
	payload := map[string]string{
		"service_id":   offering.ID.String(),
		"starts_at":    startsAt.Format(time.RFC3339),
		"client_name":  "Ana López",
		"client_phone": "5512345678",
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest("POST", "/api/public/barberia-centro/book", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 201, rec.Code, rec.Body.String())
	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "5215512345678", resp.ClientPhone, "phone is canonicalized")
	assert.Equal(t, resp.StartsAt.Add(30*time.Minute), resp.EndsAt)
}

func TestPublicBookConflictMapsTo409(t *testing.T) {
	repo, router := testServer(t)
	_, offering := seedTenant(t, repo, router)
	repo.conflict = true

	payload := map[string]string{
		"service_id":   offering.ID.String(),
		"starts_at":    time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"client_name":  "Ana",
		"client_phone": "5512345678",
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest("POST", "/api/public/barberia-centro/book", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 409, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "slot_taken", resp.Error)
}

func TestPublicBookUnknownSlug(t *testing.T) {
	_, router := testServer(t)

	req := httptest.NewRequest("POST", "/api/public/no-such-place/book", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 404, rec.Code)
}

func TestStatusTransitionEndpoints(t *testing.T) {
	repo, router := testServer(t)
	_, offering := seedTenant(t, repo, router)

	appt, err := repo.BookAppointment(context.Background(), booking.BookParams{
		BusinessID:    offering.BusinessID,
		ServiceID:     offering.ID,
		StartsAt:      time.Now().Add(24 * time.Hour),
		ClientName:    "Ana",
		ClientPhone:   "5215512345678",
		InitialStatus: booking.StatusPending,
	})
	require.NoError(t, err)

	post := func(action string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", fmt.Sprintf("/api/appointments/%s/%s", appt.ID, action), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := post("confirm")
	require.Equal(t, 200, rec.Code, rec.Body.String())
	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "confirmed", resp.Status)

	rec = post("complete")
	require.Equal(t, 200, rec.Code)

	// Terminal state: further transitions conflict.
	rec = post("cancel")
	assert.Equal(t, 409, rec.Code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "invalid_status_transition", errResp.Error)
}

func TestListServicesEndpoint(t *testing.T) {
	repo, router := testServer(t)
	seedTenant(t, repo, router)

	req := httptest.NewRequest("GET", "/api/public/barberia-centro/services", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var resp []ServiceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "Corte", resp[0].Name)
	assert.Equal(t, 30, resp[0].DurationMinutes)
}

func TestReplaceHoursEndpoint(t *testing.T) {
	repo, router := testServer(t)
	biz, _ := seedTenant(t, repo, router)

	hours := `{"hours": [
		{"weekday": 0, "is_open": false},
		{"weekday": 1, "is_open": true, "opens_at": "10:00", "closes_at": "18:00"},
		{"weekday": 2, "is_open": true, "opens_at": "10:00", "closes_at": "18:00"},
		{"weekday": 3, "is_open": true, "opens_at": "10:00", "closes_at": "18:00"},
		{"weekday": 4, "is_open": true, "opens_at": "10:00", "closes_at": "18:00"},
		{"weekday": 5, "is_open": true, "opens_at": "10:00", "closes_at": "20:00"},
		{"weekday": 6, "is_open": true, "opens_at": "09:00", "closes_at": "14:00"}
	]}`

	req := httptest.NewRequest("PUT", "/api/businesses/"+biz.ID.String()+"/hours", bytes.NewBufferString(hours))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 204, rec.Code, rec.Body.String())
	stored := repo.hours[biz.ID]
	require.Len(t, stored, 7)
	assert.Equal(t, "20:00", *stored[5].ClosesAt)

	// Fewer than seven entries is rejected.
	req = httptest.NewRequest("PUT", "/api/businesses/"+biz.ID.String()+"/hours",
		bytes.NewBufferString(`{"hours": [{"weekday": 0, "is_open": false}]}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, 400, rec.Code)
}
