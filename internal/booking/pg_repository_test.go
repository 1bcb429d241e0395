package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgRepository(mock)
}

func appointmentRow(mock pgxmock.PgxPoolIface, a Appointment) *pgxmock.Rows {
	return mock.NewRows([]string{
		"id", "business_id", "service_id", "staff_id", "client_id",
		"client_name", "client_phone", "notes", "starts_at", "ends_at", "status", "price",
		"reminder_24h_sent", "reminder_1h_sent", "followup_sent", "created_at", "updated_at",
	}).AddRow(
		a.ID, a.BusinessID, a.ServiceID, a.StaffID, a.ClientID,
		a.ClientName, a.ClientPhone, a.Notes, a.StartsAt, a.EndsAt, a.Status, a.Price,
		a.Reminder24hSent, a.Reminder1hSent, a.FollowupSent, a.CreatedAt, a.UpdatedAt,
	)
}

func TestBookAppointmentHappyPath(t *testing.T) {
	mock, repo := newMockRepo(t)

	businessID := uuid.New()
	serviceID := uuid.New()
	clientID := uuid.New()
	startsAt := time.Date(2026, 9, 8, 16, 0, 0, 0, time.UTC)
	endsAt := startsAt.Add(30 * time.Minute)
	price := 150.0

	p := BookParams{
		BusinessID:    businessID,
		ServiceID:     serviceID,
		StartsAt:      startsAt,
		ClientName:    "Ana López",
		ClientPhone:   "5215512345678",
		InitialStatus: StatusPending,
	}

	mock.ExpectBegin()

	mock.ExpectQuery("SELECT duration_minutes, price").
		WithArgs(serviceID, businessID).
		WillReturnRows(mock.NewRows([]string{"duration_minutes", "price"}).AddRow(30, &price))

	// No overlapping rows: the lock query comes back empty.
	mock.ExpectQuery("SELECT id").
		WithArgs(businessID, endsAt, startsAt).
		WillReturnRows(mock.NewRows([]string{"id"}))

	mock.ExpectQuery("INSERT INTO clients").
		WithArgs(pgxmock.AnyArg(), businessID, "Ana López", "5215512345678", "").
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(clientID))

	inserted := Appointment{
		ID:          uuid.New(),
		BusinessID:  businessID,
		ServiceID:   serviceID,
		ClientID:    &clientID,
		ClientName:  "Ana López",
		ClientPhone: "5215512345678",
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		Status:      StatusPending,
		Price:       &price,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), businessID, serviceID, (*uuid.UUID)(nil), clientID,
			"Ana López", "5215512345678", "", startsAt, endsAt, StatusPending, &price).
		WillReturnRows(appointmentRow(mock, inserted))

	mock.ExpectCommit()
	mock.ExpectRollback() // deferred rollback after commit is a no-op

	appt, err := repo.BookAppointment(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, inserted.ID, appt.ID)
	assert.Equal(t, endsAt, appt.EndsAt, "ends_at derives from the service duration")
	assert.Equal(t, StatusPending, appt.Status)
	require.NotNil(t, appt.Price)
	assert.Equal(t, price, *appt.Price)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookAppointmentConflictRollsBack(t *testing.T) {
	mock, repo := newMockRepo(t)

	businessID := uuid.New()
	serviceID := uuid.New()
	startsAt := time.Date(2026, 9, 8, 16, 0, 0, 0, time.UTC)
	endsAt := startsAt.Add(60 * time.Minute)

	mock.ExpectBegin()

	mock.ExpectQuery("SELECT duration_minutes, price").
		WithArgs(serviceID, businessID).
		WillReturnRows(mock.NewRows([]string{"duration_minutes", "price"}).AddRow(60, nil))

	// One overlapping appointment comes back locked: conflict.
	mock.ExpectQuery("SELECT id").
		WithArgs(businessID, endsAt, startsAt).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(uuid.New()))

	mock.ExpectRollback()

	_, err := repo.BookAppointment(context.Background(), BookParams{
		BusinessID:    businessID,
		ServiceID:     serviceID,
		StartsAt:      startsAt,
		ClientName:    "Beto",
		ClientPhone:   "5215587654321",
		InitialStatus: StatusPending,
	})
	assert.ErrorIs(t, err, ErrSlotTaken)

	// No client upsert, no insert: expectations stop at the lock query.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookAppointmentStaffScopedLock(t *testing.T) {
	mock, repo := newMockRepo(t)

	businessID := uuid.New()
	serviceID := uuid.New()
	staffID := uuid.New()
	startsAt := time.Date(2026, 9, 8, 16, 0, 0, 0, time.UTC)
	endsAt := startsAt.Add(30 * time.Minute)

	mock.ExpectBegin()

	mock.ExpectQuery("SELECT duration_minutes, price").
		WithArgs(serviceID, businessID).
		WillReturnRows(mock.NewRows([]string{"duration_minutes", "price"}).AddRow(30, nil))

	// The staff filter adds a fourth argument to the lock query.
	mock.ExpectQuery(`staff_id = \$4 OR staff_id IS NULL`).
		WithArgs(businessID, endsAt, startsAt, staffID).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(uuid.New()))

	mock.ExpectRollback()

	_, err := repo.BookAppointment(context.Background(), BookParams{
		BusinessID:    businessID,
		ServiceID:     serviceID,
		StaffID:       &staffID,
		StartsAt:      startsAt,
		ClientName:    "Ana",
		ClientPhone:   "5215512345678",
		InitialStatus: StatusPending,
	})
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookAppointmentUnknownService(t *testing.T) {
	mock, repo := newMockRepo(t)

	businessID := uuid.New()
	serviceID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT duration_minutes, price").
		WithArgs(serviceID, businessID).
		WillReturnRows(mock.NewRows([]string{"duration_minutes", "price"}))
	mock.ExpectRollback()

	_, err := repo.BookAppointment(context.Background(), BookParams{
		BusinessID:    businessID,
		ServiceID:     serviceID,
		StartsAt:      time.Now().Add(time.Hour),
		ClientName:    "Ana",
		ClientPhone:   "5215512345678",
		InitialStatus: StatusPending,
	})
	assert.ErrorIs(t, err, ErrServiceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentStatusIsCompareAndSet(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()

	// The row moved on between read and update: the guarded update matches
	// nothing and the caller sees not-found.
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, StatusConfirmed, StatusPending).
		WillReturnRows(mock.NewRows([]string{"id"}))

	_, err := repo.UpdateAppointmentStatus(context.Background(), id, StatusPending, StatusConfirmed)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReminderSentIsMonotonic(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()

	mock.ExpectExec("UPDATE appointments").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.MarkReminderSent(context.Background(), id, Reminder24h))

	// Already sent: the guarded update touches nothing and still succeeds.
	mock.ExpectExec("UPDATE appointments").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.MarkReminderSent(context.Background(), id, Reminder24h))

	assert.Error(t, repo.MarkReminderSent(context.Background(), id, ReminderKind("bogus")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
