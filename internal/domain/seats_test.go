package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceFor(t *testing.T) {
	tests := []struct {
		name string
		base int64
		typ  SeatType
		want int64
	}{
		{"standard keeps base", 1000, SeatStandard, 1000},
		{"accessible keeps base", 1000, SeatAccessible, 1000},
		{"premium +25%", 1000, SeatPremium, 1250},
		{"vip +50%", 1000, SeatVIP, 1500},
		{"couple +75%", 1000, SeatCouple, 1750},
		{"premium rounds", 999, SeatPremium, 1249},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PriceFor(tt.base, tt.typ))
		})
	}
}

func TestSeatLabel(t *testing.T) {
	assert.Equal(t, "A1", SeatLabel("A", 1))
	assert.Equal(t, "K12", SeatLabel("K", 12))
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to SeatStatus }{
		{SeatAvailable, SeatReserved},
		{SeatAvailable, SeatBlocked},
		{SeatAvailable, SeatMaintenance},
		{SeatReserved, SeatBooked},
		{SeatReserved, SeatAvailable},
		{SeatBooked, SeatAvailable},
		{SeatBlocked, SeatAvailable},
		{SeatMaintenance, SeatAvailable},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr.from, tr.to), "%s -> %s", tr.from, tr.to)
	}

	denied := []struct{ from, to SeatStatus }{
		{SeatAvailable, SeatBooked},
		{SeatBooked, SeatReserved},
		{SeatBooked, SeatBlocked},
		{SeatBlocked, SeatReserved},
		{SeatBlocked, SeatMaintenance},
		{SeatReserved, SeatBlocked},
	}
	for _, tr := range denied {
		assert.False(t, CanTransition(tr.from, tr.to), "%s -> %s", tr.from, tr.to)
	}
}

func TestDeriveScreeningStatus(t *testing.T) {
	tests := []struct {
		name      string
		current   ScreeningStatus
		available int
		total     int
		want      ScreeningStatus
	}{
		{"plenty of seats", ScreeningOpen, 80, 100, ScreeningOpen},
		{"exactly 10% left", ScreeningOpen, 10, 100, ScreeningAlmostFull},
		{"under 10% left", ScreeningOpen, 5, 100, ScreeningAlmostFull},
		{"none left", ScreeningAlmostFull, 0, 100, ScreeningSoldOut},
		{"reopens after release", ScreeningSoldOut, 1, 8, ScreeningOpen},
		{"cancelled is sticky", ScreeningCancelled, 50, 100, ScreeningCancelled},
		{"scheduled becomes open", ScreeningScheduled, 96, 96, ScreeningOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveScreeningStatus(tt.current, tt.available, tt.total))
		})
	}
}

func TestGroupSeatsByRow(t *testing.T) {
	seats := []Seat{
		{Row: "B", Column: 2, SeatNumber: "B2"},
		{Row: "A", Column: 3, SeatNumber: "A3"},
		{Row: "A", Column: 1, SeatNumber: "A1"},
		{Row: "B", Column: 1, SeatNumber: "B1"},
		{Row: "A", Column: 2, SeatNumber: "A2"},
	}

	rows := GroupSeatsByRow(seats)

	assert.Len(t, rows, 2)
	assert.Equal(t, "A", rows[0].Row)
	assert.Equal(t, "B", rows[1].Row)

	var labels []string
	for _, s := range rows[0].Seats {
		labels = append(labels, s.SeatNumber)
	}
	assert.Equal(t, []string{"A1", "A2", "A3"}, labels)
}

func TestGroupSeatsByRowEmpty(t *testing.T) {
	assert.Empty(t, GroupSeatsByRow(nil))
}
