package postgresrepo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/screenbook/screenbook/internal/domain"
	"github.com/screenbook/screenbook/internal/repository"
)

type ScreeningRepo struct {
	store *Store
}

// Create inserts a screening and its full seat grid in one transaction. The
// grid never changes afterwards; seats only move between statuses.
func (r *ScreeningRepo) Create(
	ctx context.Context,
	sc domain.Screening,
	rows []domain.SeatRowSpec,
) (uuid.UUID, error) {
	const op = "postgresrepo.ScreeningRepo.Create"

	var id uuid.UUID

	err := r.store.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		var err error
		id, err = r.createCore(ctx, tx, sc, rows)
		return err
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return id, nil
}

func (r *ScreeningRepo) createCore(
	ctx context.Context,
	db DB,
	sc domain.Screening,
	rows []domain.SeatRowSpec,
) (uuid.UUID, error) {
	id := uuid.New()

	total := 0
	for _, row := range rows {
		total += row.Seats
	}

	if _, err := db.Exec(ctx,
		`INSERT INTO screenings(
            id, movie_title, cinema_name, room_name, format,
            starts_at, ends_at, base_price_cents,
            total_seats, seats_available, status, is_active)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, 'scheduled', TRUE)`,
		id, sc.MovieTitle, sc.CinemaName, sc.RoomName, sc.Format,
		sc.StartsAt, sc.EndsAt, sc.BasePriceCents, total,
	); err != nil {
		return uuid.Nil, err
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		for col := 1; col <= row.Seats; col++ {
			batch.Queue(
				`INSERT INTO screening_seats(
                    id, screening_id, row_label, col, seat_number,
                    status, seat_type, price_cents)
               	 VALUES ($1, $2, $3, $4, $5, 'available', $6, $7)`,
				uuid.New(), id, row.Label, col,
				domain.SeatLabel(row.Label, col),
				string(row.Type),
				domain.PriceFor(sc.BasePriceCents, row.Type),
			)
		}
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return uuid.Nil, err
	}

	return id, nil
}

// SetSeatStatusByNumbers applies an administrative status change (blocked,
// maintenance, or back to available) to seats addressed by their display
// labels. Only the transitions allowed by the seat state machine are
// applied; a seat in any other state fails the whole batch.
func (r *ScreeningRepo) SetSeatStatusByNumbers(
	ctx context.Context,
	screeningID uuid.UUID,
	seatNumbers []string,
	to domain.SeatStatus,
) (int64, error) {
	const op = "postgresrepo.ScreeningRepo.SetSeatStatusByNumbers"

	var fromStatuses []string
	var delta int64
	switch to {
	case domain.SeatBlocked, domain.SeatMaintenance:
		fromStatuses = []string{string(domain.SeatAvailable)}
		delta = -1
	case domain.SeatAvailable:
		fromStatuses = []string{string(domain.SeatBlocked), string(domain.SeatMaintenance)}
		delta = 1
	default:
		return 0, fmt.Errorf("%s: status %q is not an administrative target", op, to)
	}

	var changed int64

	run := func(ctx context.Context, db DB) error {
		if err := lockScreening(ctx, db, screeningID); err != nil {
			return err
		}

		tag, err := db.Exec(ctx,
			`UPDATE screening_seats
            	SET status = $3
          	 WHERE screening_id = $1
            	AND seat_number = ANY($2)
            	AND status = ANY($4)`,
			screeningID, seatNumbers, string(to), fromStatuses,
		)
		if err != nil {
			return err
		}

		changed = tag.RowsAffected()
		if changed != int64(len(seatNumbers)) {
			// Seats already carrying the target status are fine (idempotent
			// admin call); anything else fails the whole batch.
			if err := classifyLabelFailure(ctx, db, screeningID, seatNumbers, to, fromStatuses); err != nil {
				return err
			}
		}

		return adjustAvailable(ctx, db, screeningID, delta*changed)
	}

	if err := r.store.RunTx(ctx, nil, run); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return changed, nil
}

// Cancel soft-deactivates a screening. Bookings keep referencing it; no rows
// are deleted.
func (r *ScreeningRepo) Cancel(ctx context.Context, screeningID uuid.UUID) error {
	const op = "postgresrepo.ScreeningRepo.Cancel"

	tag, err := r.store.pool.Exec(ctx,
		`UPDATE screenings
        	SET status = 'cancelled', is_active = FALSE
      	 WHERE id = $1`,
		screeningID,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrScreeningNotFound)
	}

	return nil
}

func classifyLabelFailure(
	ctx context.Context,
	db DB,
	screeningID uuid.UUID,
	seatNumbers []string,
	to domain.SeatStatus,
	fromStatuses []string,
) error {
	rows, err := db.Query(ctx,
		`SELECT seat_number, status
       	 FROM screening_seats
      	 WHERE screening_id = $1 AND seat_number = ANY($2)`,
		screeningID, seatNumbers,
	)
	if err != nil {
		return err
	}

	defer rows.Close()

	allowed := make(map[string]struct{}, len(fromStatuses))
	for _, s := range fromStatuses {
		allowed[s] = struct{}{}
	}
	// The target status is fine too: rows just updated in this transaction
	// carry it already.
	allowed[string(to)] = struct{}{}

	found := make(map[string]domain.SeatStatus, len(seatNumbers))
	for rows.Next() {
		var label string
		var status domain.SeatStatus
		if err := rows.Scan(&label, &status); err != nil {
			return err
		}
		found[label] = status
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var missing []string
	var blocked []string
	for _, label := range seatNumbers {
		status, ok := found[label]
		if !ok {
			missing = append(missing, label)
			continue
		}
		if _, ok := allowed[string(status)]; !ok {
			blocked = append(blocked, label)
		}
	}

	if len(missing) > 0 {
		return &repository.SeatsNotFoundError{SeatIDs: missing}
	}

	if len(blocked) > 0 {
		return &repository.SeatsUnavailableError{SeatNumbers: blocked}
	}

	return nil
}
