package bot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *State {
	staffID := uuid.New()
	return &State{
		Step:            StepSelectTime,
		BusinessID:      uuid.New(),
		ServiceID:       uuid.New(),
		ServiceName:     "Corte y barba",
		DurationMinutes: 60,
		StaffID:         &staffID,
		StaffName:       "Luis",
		Date:            "2026-09-08",
		Options: []Option{
			{Value: "10:00", Label: "10:00"},
			{Value: "10:30", Label: "10:30"},
		},
	}
}

func TestMemoryStoreRoundtrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	got, err := store.Get(ctx, "5215512345678")
	require.NoError(t, err)
	assert.Nil(t, got, "missing state reads as nil")

	st := sampleState()
	require.NoError(t, store.Set(ctx, "5215512345678", st))

	got, err = store.Get(ctx, "5215512345678")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, st.Step, got.Step)
	assert.Equal(t, st.ServiceName, got.ServiceName)
	assert.Equal(t, st.Options, got.Options)
	assert.False(t, got.UpdatedAt.IsZero(), "Set stamps UpdatedAt")

	// Mutating the returned copy must not leak into the store.
	got.Step = StepConfirm
	again, err := store.Get(ctx, "5215512345678")
	require.NoError(t, err)
	assert.Equal(t, StepSelectTime, again.Step)

	require.NoError(t, store.Clear(ctx, "5215512345678"))
	got, err = store.Get(ctx, "5215512345678")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	current := time.Date(2026, 9, 7, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	require.NoError(t, store.Set(ctx, "5215512345678", sampleState()))

	current = current.Add(29 * time.Minute)
	got, err := store.Get(ctx, "5215512345678")
	require.NoError(t, err)
	assert.NotNil(t, got, "29 minutes idle is still alive")

	current = current.Add(2 * time.Minute)
	got, err = store.Get(ctx, "5215512345678")
	require.NoError(t, err)
	assert.Nil(t, got, "31 minutes idle has expired")
}

func TestMemoryStoreSetRestartsTTL(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	current := time.Date(2026, 9, 7, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	require.NoError(t, store.Set(ctx, "5215512345678", sampleState()))

	current = current.Add(25 * time.Minute)
	require.NoError(t, store.Set(ctx, "5215512345678", sampleState()))

	current = current.Add(25 * time.Minute)
	got, err := store.Get(ctx, "5215512345678")
	require.NoError(t, err)
	assert.NotNil(t, got, "each Set restarts the clock")
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStoreRoundtrip(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	got, err := store.Get(ctx, "5215512345678")
	require.NoError(t, err)
	assert.Nil(t, got)

	st := sampleState()
	require.NoError(t, store.Set(ctx, "5215512345678", st))

	got, err = store.Get(ctx, "5215512345678")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, st.Step, got.Step)
	assert.Equal(t, st.BusinessID, got.BusinessID)
	require.NotNil(t, got.StaffID)
	assert.Equal(t, *st.StaffID, *got.StaffID)
	assert.Equal(t, st.Options, got.Options)

	require.NoError(t, store.Clear(ctx, "5215512345678"))
	got, err = store.Get(ctx, "5215512345678")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "5215512345678", sampleState()))

	mr.FastForward(29 * time.Minute)
	got, err := store.Get(ctx, "5215512345678")
	require.NoError(t, err)
	assert.NotNil(t, got)

	mr.FastForward(2 * time.Minute)
	got, err = store.Get(ctx, "5215512345678")
	require.NoError(t, err)
	assert.Nil(t, got, "key TTL enforces the conversation expiry")
}

func TestRedisStoreKeysArePerPhone(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	a, b := sampleState(), sampleState()
	a.Step, b.Step = StepSelectDate, StepConfirm

	require.NoError(t, store.Set(ctx, "5215511111111", a))
	require.NoError(t, store.Set(ctx, "5215522222222", b))

	gotA, err := store.Get(ctx, "5215511111111")
	require.NoError(t, err)
	gotB, err := store.Get(ctx, "5215522222222")
	require.NoError(t, err)

	assert.Equal(t, StepSelectDate, gotA.Step)
	assert.Equal(t, StepConfirm, gotB.Step)
}
