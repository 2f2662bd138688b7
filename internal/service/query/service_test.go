package query

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenbook/screenbook/internal/domain"
	"github.com/screenbook/screenbook/internal/repository"
	"github.com/screenbook/screenbook/internal/repository/memory"
)

func newQueryFixture(t *testing.T) (*Service, *memory.Store, uuid.UUID) {
	t.Helper()

	store := memory.NewStore()
	id, err := store.Create(context.Background(), domain.Screening{
		MovieTitle:     "Alien",
		CinemaName:     "Odeon",
		RoomName:       "Hall 3",
		StartsAt:       time.Now().Add(time.Hour),
		EndsAt:         time.Now().Add(3 * time.Hour),
		BasePriceCents: 900,
	}, []domain.SeatRowSpec{
		{Label: "A", Seats: 4, Type: domain.SeatStandard},
		{Label: "B", Seats: 4, Type: domain.SeatVIP},
	})
	require.NoError(t, err)

	return New(store, nil, nil, Config{}), store, id
}

func TestGetScreening(t *testing.T) {
	svc, _, id := newQueryFixture(t)

	sc, err := svc.GetScreening(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Alien", sc.MovieTitle)
	assert.Equal(t, 8, sc.SeatsAvailable)

	_, err = svc.GetScreening(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrScreeningNotFound)
}

func TestAvailability(t *testing.T) {
	ctx := context.Background()
	svc, store, id := newQueryFixture(t)

	ids, err := store.SeatIDsByNumbers(ctx, id, []string{"A1", "A2"})
	require.NoError(t, err)
	_, err = store.HoldSeats(ctx, id, ids, 7, time.Minute)
	require.NoError(t, err)

	av, err := svc.Availability(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 6, av.Counts.Available)
	assert.Equal(t, 2, av.Counts.Reserved)
	assert.Equal(t, 8, av.Counts.Total)
}

func TestSeatMapGroupsByRow(t *testing.T) {
	svc, _, id := newQueryFixture(t)

	sm, err := svc.SeatMap(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, sm.Rows, 2)
	assert.Equal(t, "A", sm.Rows[0].Row)
	assert.Equal(t, "B", sm.Rows[1].Row)
	assert.Len(t, sm.Rows[0].Seats, 4)
	assert.Equal(t, "B1", sm.Rows[1].Seats[0].SeatNumber)
}

func TestResolveSeatIDs(t *testing.T) {
	svc, _, id := newQueryFixture(t)

	ids, err := svc.ResolveSeatIDs(context.Background(), id, []string{"A1", "B4"})
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	_, err = svc.ResolveSeatIDs(context.Background(), id, []string{"A1", "Z9"})
	require.Error(t, err)

	var missing *repository.SeatsNotFoundError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"Z9"}, missing.SeatIDs)
}
