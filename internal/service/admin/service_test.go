package admin

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

func validParams() CreateScreeningParams {
	return CreateScreeningParams{
		MovieTitle:     "Heat",
		CinemaName:     "Rex",
		RoomName:       "Hall 2",
		Format:         "2D",
		StartsAt:       time.Now().Add(2 * time.Hour),
		EndsAt:         time.Now().Add(4 * time.Hour),
		BasePriceCents: 1000,
		Rows: []domain.SeatRowSpec{
			{Label: "A", Seats: 10, Type: domain.SeatStandard},
			{Label: "B", Seats: 8, Type: domain.SeatPremium},
		},
	}
}

func TestCreateScreening(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := New(store, nil, nil, nil)

	id, err := svc.CreateScreening(ctx, validParams())
	require.NoError(t, err)

	sc, err := store.GetScreening(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 18, sc.TotalSeats)
	assert.Equal(t, 18, sc.SeatsAvailable)
	assert.True(t, sc.IsActive)

	seats, err := store.ListSeats(ctx, id)
	require.NoError(t, err)
	require.Len(t, seats, 18)
	assert.Equal(t, "A1", seats[0].SeatNumber)
	assert.EqualValues(t, 1000, seats[0].PriceCents)

	// premium row carries the type multiplier
	last := seats[len(seats)-1]
	assert.Equal(t, domain.SeatPremium, last.Type)
	assert.EqualValues(t, 1250, last.PriceCents)
}

func TestCreateScreeningValidation(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.NewStore(), nil, nil, nil)

	tests := []struct {
		name    string
		mutate  func(*CreateScreeningParams)
		wantErr error
	}{
		{
			name:    "no rows",
			mutate:  func(p *CreateScreeningParams) { p.Rows = nil },
			wantErr: ErrInvalidRows,
		},
		{
			name: "duplicate row label",
			mutate: func(p *CreateScreeningParams) {
				p.Rows = append(p.Rows, domain.SeatRowSpec{Label: "A", Seats: 4, Type: domain.SeatStandard})
			},
			wantErr: ErrInvalidRows,
		},
		{
			name: "empty row",
			mutate: func(p *CreateScreeningParams) {
				p.Rows[0].Seats = 0
			},
			wantErr: ErrInvalidRows,
		},
		{
			name: "unknown seat type",
			mutate: func(p *CreateScreeningParams) {
				p.Rows[0].Type = "throne"
			},
			wantErr: ErrInvalidRows,
		},
		{
			name: "ends before start",
			mutate: func(p *CreateScreeningParams) {
				p.EndsAt = p.StartsAt.Add(-time.Hour)
			},
			wantErr: ErrInvalidSchedule,
		},
		{
			name: "zero base price",
			mutate: func(p *CreateScreeningParams) {
				p.BasePriceCents = 0
			},
			wantErr: ErrInvalidBasePrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			_, err := svc.CreateScreening(ctx, p)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSetSeatStatus(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := New(store, nil, nil, nil)

	id, err := svc.CreateScreening(ctx, validParams())
	require.NoError(t, err)

	changed, err := svc.SetSeatStatus(ctx, id, []string{"A1", "A2"}, domain.SeatBlocked)
	require.NoError(t, err)
	assert.EqualValues(t, 2, changed)

	sc, err := store.GetScreening(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 16, sc.SeatsAvailable)

	// blocking again is a no-op, not an error
	changed, err = svc.SetSeatStatus(ctx, id, []string{"A1", "A2"}, domain.SeatBlocked)
	require.NoError(t, err)
	assert.Zero(t, changed)

	changed, err = svc.SetSeatStatus(ctx, id, []string{"A1"}, domain.SeatAvailable)
	require.NoError(t, err)
	assert.EqualValues(t, 1, changed)

	sc, err = store.GetScreening(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 17, sc.SeatsAvailable)
}

func TestSetSeatStatusRejectsNonAdminTarget(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := New(store, nil, nil, nil)

	id, err := svc.CreateScreening(ctx, validParams())
	require.NoError(t, err)

	_, err = svc.SetSeatStatus(ctx, id, []string{"A1"}, domain.SeatBooked)
	assert.ErrorIs(t, err, ErrInvalidSeatStatus)
}

func TestCancelScreening(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := New(store, nil, nil, nil)

	id, err := svc.CreateScreening(ctx, validParams())
	require.NoError(t, err)

	require.NoError(t, svc.CancelScreening(ctx, id))

	sc, err := store.GetScreening(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ScreeningCancelled, sc.Status)
	assert.False(t, sc.IsActive)

	err = svc.CancelScreening(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrScreeningNotFound)
}
