package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenbook/screenbook/internal/domain"
	"github.com/screenbook/screenbook/internal/repository"
)

func newScreening(t *testing.T, store *Store) (context.Context, uuid.UUID) {
	t.Helper()

	ctx := context.Background()
	id, err := store.Create(ctx, domain.Screening{
		MovieTitle:     "Ran",
		CinemaName:     "Kino",
		RoomName:       "Hall 1",
		StartsAt:       time.Now().Add(time.Hour),
		EndsAt:         time.Now().Add(3 * time.Hour),
		BasePriceCents: 800,
	}, []domain.SeatRowSpec{
		{Label: "A", Seats: 3, Type: domain.SeatStandard},
	})
	require.NoError(t, err)
	return ctx, id
}

func TestHoldSeatsLazyExpiry(t *testing.T) {
	store := NewStore()
	ctx, id := newScreening(t, store)

	ids, err := store.SeatIDsByNumbers(ctx, id, []string{"A1"})
	require.NoError(t, err)

	// extremely short hold that expires immediately
	_, err = store.HoldSeats(ctx, id, ids, 7, -time.Second)
	require.NoError(t, err)

	// another user can take the seat without waiting for the sweep
	seats, err := store.HoldSeats(ctx, id, ids, 8, time.Minute)
	require.NoError(t, err)
	require.Len(t, seats, 1)
	require.NotNil(t, seats[0].ReservedBy)
	assert.EqualValues(t, 8, *seats[0].ReservedBy)

	sc, err := store.GetScreening(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, sc.SeatsAvailable)
}

func TestCounterTracksSeatStates(t *testing.T) {
	store := NewStore()
	ctx, id := newScreening(t, store)

	ids, err := store.SeatIDsByNumbers(ctx, id, []string{"A1", "A2"})
	require.NoError(t, err)

	_, err = store.HoldSeats(ctx, id, ids, 7, time.Minute)
	require.NoError(t, err)

	_, _, err = store.ConfirmSeats(ctx, id, ids, 7)
	require.NoError(t, err)

	sc, err := store.GetScreening(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, sc.SeatsAvailable)

	released, err := store.ReleaseBooked(ctx, id, ids)
	require.NoError(t, err)
	assert.EqualValues(t, 2, released)

	sc, err = store.GetScreening(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, sc.SeatsAvailable)

	counts, err := store.CountsByStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, sc.SeatsAvailable, counts.Available)
}

func TestScreeningStatusDerivation(t *testing.T) {
	store := NewStore()
	ctx, id := newScreening(t, store)

	ids, err := store.SeatIDsByNumbers(ctx, id, []string{"A1", "A2", "A3"})
	require.NoError(t, err)

	_, err = store.HoldSeats(ctx, id, ids, 7, time.Minute)
	require.NoError(t, err)

	sc, err := store.GetScreening(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ScreeningSoldOut, sc.Status)

	_, err = store.ReleaseSeats(ctx, id, ids[:1])
	require.NoError(t, err)

	sc, err = store.GetScreening(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ScreeningOpen, sc.Status)
}

func TestHoldSeatsRejectsDuplicateIDs(t *testing.T) {
	store := NewStore()
	ctx, id := newScreening(t, store)

	ids, err := store.SeatIDsByNumbers(ctx, id, []string{"A1"})
	require.NoError(t, err)

	_, err = store.HoldSeats(ctx, id, []uuid.UUID{ids[0], ids[0]}, 7, time.Minute)
	assert.ErrorIs(t, err, repository.ErrConflict)

	// nothing changed: the seat is still free and the counter is intact
	sc, err := store.GetScreening(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, sc.SeatsAvailable)

	counts, err := store.CountsByStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, sc.SeatsAvailable, counts.Available)
}

func TestConfirmSeatsRejectsDuplicateIDs(t *testing.T) {
	store := NewStore()
	ctx, id := newScreening(t, store)

	ids, err := store.SeatIDsByNumbers(ctx, id, []string{"A1"})
	require.NoError(t, err)

	_, err = store.HoldSeats(ctx, id, ids, 7, time.Minute)
	require.NoError(t, err)

	_, _, err = store.ConfirmSeats(ctx, id, []uuid.UUID{ids[0], ids[0]}, 7)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestConfirmClearsHolderFields(t *testing.T) {
	store := NewStore()
	ctx, id := newScreening(t, store)

	ids, err := store.SeatIDsByNumbers(ctx, id, []string{"A1"})
	require.NoError(t, err)

	_, err = store.HoldSeats(ctx, id, ids, 7, time.Minute)
	require.NoError(t, err)

	_, _, err = store.ConfirmSeats(ctx, id, ids, 7)
	require.NoError(t, err)

	seats, err := store.ListSeats(ctx, id)
	require.NoError(t, err)
	for _, s := range seats {
		if s.SeatNumber != "A1" {
			continue
		}
		assert.Equal(t, domain.SeatBooked, s.Status)
		assert.Nil(t, s.ReservedBy)
		assert.Nil(t, s.ReservedAt)
		assert.Nil(t, s.ReservationExpires)
	}
}

func TestAdminCannotFreeBookedSeat(t *testing.T) {
	store := NewStore()
	ctx, id := newScreening(t, store)

	ids, err := store.SeatIDsByNumbers(ctx, id, []string{"A1"})
	require.NoError(t, err)

	_, err = store.HoldSeats(ctx, id, ids, 7, time.Minute)
	require.NoError(t, err)
	_, _, err = store.ConfirmSeats(ctx, id, ids, 7)
	require.NoError(t, err)

	// a sold seat leaves through the release path, not through admin edits
	_, err = store.SetSeatStatusByNumbers(ctx, id, []string{"A1"}, domain.SeatAvailable)
	require.Error(t, err)

	var unavailable *repository.SeatsUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []string{"A1"}, unavailable.SeatNumbers)
}
