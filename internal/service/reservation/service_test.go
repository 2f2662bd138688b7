package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenbook/screenbook/internal/domain"
	"github.com/screenbook/screenbook/internal/repository"
	"github.com/screenbook/screenbook/internal/repository/memory"
)

func newTestService(t *testing.T, cfg Config) (*Service, *memory.Store, uuid.UUID) {
	t.Helper()

	store := memory.NewStore()
	screeningID, err := store.Create(context.Background(), domain.Screening{
		MovieTitle:     "Arrival",
		CinemaName:     "Central",
		RoomName:       "Hall 1",
		Format:         "2D",
		StartsAt:       time.Now().Add(24 * time.Hour),
		EndsAt:         time.Now().Add(26 * time.Hour),
		BasePriceCents: 1200,
	}, []domain.SeatRowSpec{
		{Label: "A", Seats: 24, Type: domain.SeatStandard},
		{Label: "B", Seats: 24, Type: domain.SeatStandard},
		{Label: "C", Seats: 24, Type: domain.SeatPremium},
		{Label: "D", Seats: 24, Type: domain.SeatVIP},
	})
	require.NoError(t, err)

	return New(store, nil, nil, nil, nil, cfg), store, screeningID
}

func seatIDs(t *testing.T, store *memory.Store, screeningID uuid.UUID, labels ...string) []uuid.UUID {
	t.Helper()

	ids, err := store.SeatIDsByNumbers(context.Background(), screeningID, labels)
	require.NoError(t, err)
	return ids
}

func available(t *testing.T, store *memory.Store, screeningID uuid.UUID) int {
	t.Helper()

	counts, err := store.CountsByStatus(context.Background(), screeningID)
	require.NoError(t, err)
	return counts.Available
}

func TestHoldThenConfirm(t *testing.T) {
	ctx := context.Background()
	svc, store, screeningID := newTestService(t, Config{})

	ids := seatIDs(t, store, screeningID, "A1", "A2")

	seats, err := svc.Hold(ctx, screeningID, ids, 7, 0, "")
	require.NoError(t, err)
	require.Len(t, seats, 2)
	for _, s := range seats {
		assert.Equal(t, domain.SeatReserved, s.Status)
		require.NotNil(t, s.ReservedBy)
		assert.EqualValues(t, 7, *s.ReservedBy)
		assert.NotNil(t, s.ReservationExpires)
	}
	assert.Equal(t, 94, available(t, store, screeningID))

	total, labels, err := svc.Confirm(ctx, screeningID, ids, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 2400, total)
	assert.ElementsMatch(t, []string{"A1", "A2"}, labels)

	// confirmed seats do not return to the available pool
	assert.Equal(t, 94, available(t, store, screeningID))
}

func TestHoldBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	svc, store, screeningID := newTestService(t, Config{})

	middle := seatIDs(t, store, screeningID, "A2")
	_, err := svc.Hold(ctx, screeningID, middle, 99, 0, "")
	require.NoError(t, err)

	ids := seatIDs(t, store, screeningID, "A1", "A2", "A3")
	_, err = svc.Hold(ctx, screeningID, ids, 7, 0, "")
	require.Error(t, err)

	var unavailable *repository.SeatsUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []string{"A2"}, unavailable.SeatNumbers)

	// A1 and A3 were not touched by the failed batch
	sm, err := store.ListSeats(ctx, screeningID)
	require.NoError(t, err)
	for _, s := range sm {
		switch s.SeatNumber {
		case "A1", "A3":
			assert.Equal(t, domain.SeatAvailable, s.Status, s.SeatNumber)
		case "A2":
			assert.Equal(t, domain.SeatReserved, s.Status)
		}
	}
	assert.Equal(t, 95, available(t, store, screeningID))
}

func TestHoldConcurrentOneWinner(t *testing.T) {
	ctx := context.Background()
	svc, store, screeningID := newTestService(t, Config{})

	ids := seatIDs(t, store, screeningID, "B5")

	const racers = 16
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Hold(ctx, screeningID, ids, int64(i+1), 0, "")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, repository.ErrSeatsUnavailable)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 95, available(t, store, screeningID))
}

func TestConfirmRejectsForeignHold(t *testing.T) {
	ctx := context.Background()
	svc, store, screeningID := newTestService(t, Config{})

	ids := seatIDs(t, store, screeningID, "C1")
	_, err := svc.Hold(ctx, screeningID, ids, 7, 0, "")
	require.NoError(t, err)

	_, _, err = svc.Confirm(ctx, screeningID, ids, 8)
	require.Error(t, err)

	var foreign *repository.NotHolderError
	require.ErrorAs(t, err, &foreign)
	assert.Equal(t, []string{"C1"}, foreign.SeatNumbers)
}

func TestConfirmExpiredHoldReleasesSeats(t *testing.T) {
	ctx := context.Background()
	svc, store, screeningID := newTestService(t, Config{
		DefaultHoldTTL: time.Millisecond,
		MinHoldTTL:     time.Millisecond,
		MaxHoldTTL:     time.Minute,
	})

	ids := seatIDs(t, store, screeningID, "D3", "D4")
	_, err := svc.Hold(ctx, screeningID, ids, 7, time.Millisecond, "")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, _, err = svc.Confirm(ctx, screeningID, ids, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrHoldExpired)

	var expired *repository.HoldExpiredError
	require.ErrorAs(t, err, &expired)
	assert.ElementsMatch(t, []string{"D3", "D4"}, expired.SeatNumbers)

	// the failed confirm released the seats back to the pool
	assert.Equal(t, 96, available(t, store, screeningID))
}

func TestReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, store, screeningID := newTestService(t, Config{})

	ids := seatIDs(t, store, screeningID, "A10", "A11")
	_, err := svc.Hold(ctx, screeningID, ids, 7, 0, "")
	require.NoError(t, err)

	released, err := svc.Release(ctx, screeningID, ids)
	require.NoError(t, err)
	assert.EqualValues(t, 2, released)

	released, err = svc.Release(ctx, screeningID, ids)
	require.NoError(t, err)
	assert.EqualValues(t, 0, released)

	assert.Equal(t, 96, available(t, store, screeningID))
}

func TestHoldRejectsEmptyBatch(t *testing.T) {
	svc, _, screeningID := newTestService(t, Config{})

	_, err := svc.Hold(context.Background(), screeningID, nil, 7, 0, "")
	assert.ErrorIs(t, err, ErrNoSeatsSelected)
}

func TestHoldTTLIsClamped(t *testing.T) {
	ctx := context.Background()
	svc, store, screeningID := newTestService(t, Config{
		MinHoldTTL: 10 * time.Second,
		MaxHoldTTL: time.Minute,
	})

	ids := seatIDs(t, store, screeningID, "B1")
	seats, err := svc.Hold(ctx, screeningID, ids, 7, time.Hour, "")
	require.NoError(t, err)
	require.Len(t, seats, 1)
	require.NotNil(t, seats[0].ReservationExpires)

	assert.WithinDuration(t,
		time.Now().Add(time.Minute),
		*seats[0].ReservationExpires,
		2*time.Second,
	)
}

func TestExpireDueSweepsStaleHolds(t *testing.T) {
	ctx := context.Background()
	svc, store, screeningID := newTestService(t, Config{
		DefaultHoldTTL: time.Millisecond,
		MinHoldTTL:     time.Millisecond,
		MaxHoldTTL:     time.Minute,
	})

	ids := seatIDs(t, store, screeningID, "A1", "B1", "C1")
	_, err := svc.Hold(ctx, screeningID, ids, 7, time.Millisecond, "")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	released, err := svc.ExpireDue(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 3, released)
	assert.Equal(t, 96, available(t, store, screeningID))

	// nothing left to sweep
	released, err = svc.ExpireDue(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, released)
}

func TestHoldOnCancelledScreeningFails(t *testing.T) {
	ctx := context.Background()
	svc, store, screeningID := newTestService(t, Config{})

	require.NoError(t, store.Cancel(ctx, screeningID))

	ids := seatIDs(t, store, screeningID, "A1")
	_, err := svc.Hold(ctx, screeningID, ids, 7, 0, "")
	assert.ErrorIs(t, err, repository.ErrScreeningClosed)
}

func TestHoldDeduplicatesSeatIDs(t *testing.T) {
	ctx := context.Background()
	svc, store, screeningID := newTestService(t, Config{})

	a1 := seatIDs(t, store, screeningID, "A1")
	dup := []uuid.UUID{a1[0], a1[0], a1[0]}

	seats, err := svc.Hold(ctx, screeningID, dup, 7, 0, "")
	require.NoError(t, err)
	require.Len(t, seats, 1)
	assert.Equal(t, "A1", seats[0].SeatNumber)

	// one seat claimed, counted once
	assert.Equal(t, 95, available(t, store, screeningID))

	total, labels, err := svc.Confirm(ctx, screeningID, dup, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 1200, total)
	assert.Equal(t, []string{"A1"}, labels)
	assert.Equal(t, 95, available(t, store, screeningID))
}

func TestReleaseDeduplicatesSeatIDs(t *testing.T) {
	ctx := context.Background()
	svc, store, screeningID := newTestService(t, Config{})

	ids := seatIDs(t, store, screeningID, "A1")
	_, err := svc.Hold(ctx, screeningID, ids, 7, 0, "")
	require.NoError(t, err)

	released, err := svc.Release(ctx, screeningID, []uuid.UUID{ids[0], ids[0]})
	require.NoError(t, err)
	assert.EqualValues(t, 1, released)
	assert.Equal(t, 96, available(t, store, screeningID))
}
