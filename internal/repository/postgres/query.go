package postgresrepo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/screenbook/screenbook/internal/domain"
	"github.com/screenbook/screenbook/internal/repository"
)

type QueryRepo struct {
	store *Store
}

// GetScreening retrieves one screening summary.
//
// Returns repository.ErrScreeningNotFound for unknown ids.
func (r *QueryRepo) GetScreening(ctx context.Context, id uuid.UUID) (*domain.Screening, error) {
	const op = "postgresrepo.QueryRepo.GetScreening"

	var sc domain.Screening
	err := r.store.pool.QueryRow(ctx,
		`SELECT id, movie_title, cinema_name, room_name, format,
            	starts_at, ends_at, base_price_cents,
            	total_seats, seats_available, status, is_active
       	 FROM screenings WHERE id = $1`,
		id,
	).Scan(
		&sc.ID, &sc.MovieTitle, &sc.CinemaName, &sc.RoomName, &sc.Format,
		&sc.StartsAt, &sc.EndsAt, &sc.BasePriceCents,
		&sc.TotalSeats, &sc.SeatsAvailable, &sc.Status, &sc.IsActive,
	)
	if err != nil {
		if translateDBErr(err) == repository.ErrNotFound {
			return nil, fmt.Errorf("%s:%w", op, repository.ErrScreeningNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &sc, nil
}

// CountsByStatus counts the screening's seats per status. blocked and
// maintenance are reported together as administratively withheld seats.
func (r *QueryRepo) CountsByStatus(ctx context.Context, screeningID uuid.UUID) (*domain.ScreeningCounts, error) {
	const op = "postgresrepo.QueryRepo.CountsByStatus"

	if _, err := r.GetScreening(ctx, screeningID); err != nil {
		return nil, err
	}

	var sc domain.ScreeningCounts
	err := r.store.pool.QueryRow(ctx,
		`SELECT
            COALESCE(SUM(CASE WHEN status = 'available' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN status = 'reserved' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN status = 'booked' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN status IN ('blocked', 'maintenance') THEN 1 ELSE 0 END), 0)
       	 FROM screening_seats
      	 WHERE screening_id = $1`,
		screeningID,
	).Scan(&sc.Available, &sc.Reserved, &sc.Booked, &sc.Blocked)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	sc.Total = sc.Available + sc.Reserved + sc.Booked + sc.Blocked

	return &sc, nil
}

// ListSeats returns every seat of the screening ordered by row then column,
// ready for the grouped-by-row projection.
func (r *QueryRepo) ListSeats(ctx context.Context, screeningID uuid.UUID) ([]domain.Seat, error) {
	const op = "postgresrepo.QueryRepo.ListSeats"

	if _, err := r.GetScreening(ctx, screeningID); err != nil {
		return nil, err
	}

	rows, err := r.store.pool.Query(ctx,
		`SELECT id, screening_id, row_label, col, seat_number, status, seat_type, price_cents,
            	reserved_by, reserved_at, reservation_expires
       	 FROM screening_seats
      	 WHERE screening_id = $1
      	 ORDER BY row_label, col`,
		screeningID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	seats, err := collectSeats(rows)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return seats, nil
}

// SeatIDsByNumbers resolves display labels to seat ids for one screening.
func (r *QueryRepo) SeatIDsByNumbers(
	ctx context.Context,
	screeningID uuid.UUID,
	seatNumbers []string,
) ([]uuid.UUID, error) {
	const op = "postgresrepo.QueryRepo.SeatIDsByNumbers"

	rows, err := r.store.pool.Query(ctx,
		`SELECT id, seat_number
       	 FROM screening_seats
      	 WHERE screening_id = $1 AND seat_number = ANY($2)`,
		screeningID, seatNumbers,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	byLabel := make(map[string]uuid.UUID, len(seatNumbers))
	for rows.Next() {
		var id uuid.UUID
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		byLabel[label] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	out := make([]uuid.UUID, 0, len(seatNumbers))
	var missing []string
	for _, label := range seatNumbers {
		id, ok := byLabel[label]
		if !ok {
			missing = append(missing, label)
			continue
		}
		out = append(out, id)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s:%w", op, &repository.SeatsNotFoundError{SeatIDs: missing})
	}

	return out, nil
}
