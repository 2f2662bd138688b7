package domain

import (
	"fmt"
	"math"
	"sort"
)

// PriceFor derives a seat price from the screening base price and the seat
// type multiplier. The result is fixed at seat-creation time.
func PriceFor(basePriceCents int64, t SeatType) int64 {
	return int64(math.Round(float64(basePriceCents) * typeMultiplier(t)))
}

func typeMultiplier(t SeatType) float64 {
	switch t {
	case SeatPremium:
		return 1.25
	case SeatVIP:
		return 1.5
	case SeatCouple:
		return 1.75
	default:
		// standard and accessible share the base price
		return 1.0
	}
}

// SeatLabel builds the display label for a seat, e.g. "A1".
func SeatLabel(row string, column int) string {
	return fmt.Sprintf("%s%d", row, column)
}

// CanTransition reports whether a seat status transition is allowed:
//
//	available  -> reserved | blocked | maintenance
//	reserved   -> booked | available
//	booked     -> available
//	blocked    -> available
//	maintenance-> available
func CanTransition(from, to SeatStatus) bool {
	switch from {
	case SeatAvailable:
		return to == SeatReserved || to == SeatBlocked || to == SeatMaintenance
	case SeatReserved:
		return to == SeatBooked || to == SeatAvailable
	case SeatBooked, SeatBlocked, SeatMaintenance:
		return to == SeatAvailable
	default:
		return false
	}
}

// DeriveScreeningStatus recomputes the coarse display status from the
// availability ratio. Cancelled is sticky and never derived away.
func DeriveScreeningStatus(current ScreeningStatus, available, total int) ScreeningStatus {
	if current == ScreeningCancelled {
		return ScreeningCancelled
	}
	switch {
	case available <= 0:
		return ScreeningSoldOut
	case total > 0 && available*10 <= total:
		return ScreeningAlmostFull
	default:
		return ScreeningOpen
	}
}

// GroupSeatsByRow arranges seats into rows sorted alphabetically, each row
// sorted by column. The input order (creation order) is not relied on.
func GroupSeatsByRow(seats []Seat) []SeatRow {
	byRow := make(map[string][]Seat)
	for _, s := range seats {
		byRow[s.Row] = append(byRow[s.Row], s)
	}

	labels := make([]string, 0, len(byRow))
	for label := range byRow {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make([]SeatRow, 0, len(labels))
	for _, label := range labels {
		row := byRow[label]
		sort.Slice(row, func(i, j int) bool { return row[i].Column < row[j].Column })
		out = append(out, SeatRow{Row: label, Seats: row})
	}

	return out
}
