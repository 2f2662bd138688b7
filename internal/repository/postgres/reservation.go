package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/screenbook/screenbook/internal/domain"
	"github.com/screenbook/screenbook/internal/repository"
)

// ReservationRepo owns every seat-status transition. All batch mutations run
// inside one serializable transaction with the screening row locked first,
// so two concurrent batches on the same screening are strictly ordered and a
// status-filtered UPDATE acts as a compare-and-swap per seat.
type ReservationRepo struct {
	store *Store
}

// HoldSeats transitions the requested seats available -> reserved for
// userID, stamping the hold expiry. The batch is all-or-nothing: if any seat
// is missing or not available the transaction rolls back and no seat
// changes. Expired holds on the screening are released first, so a hold does
// not depend on sweep timing.
func (r *ReservationRepo) HoldSeats(
	ctx context.Context,
	screeningID uuid.UUID,
	seatIDs []uuid.UUID,
	userID int64,
	ttl time.Duration,
) ([]domain.Seat, error) {
	const op = "postgresrepo.ReservationRepo.HoldSeats"

	var seats []domain.Seat

	err := r.store.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		var err error
		seats, err = r.holdSeatsCore(ctx, tx, screeningID, seatIDs, userID, ttl)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return seats, nil
}

// ConfirmSeats transitions reserved -> booked for seats held by userID and
// returns the chargeable total plus the seat labels. Seats whose hold has
// expired are released back to available and the whole batch fails with
// repository.HoldExpiredError; the release itself is committed so the seats
// do not stay reserved until the next sweep.
func (r *ReservationRepo) ConfirmSeats(
	ctx context.Context,
	screeningID uuid.UUID,
	seatIDs []uuid.UUID,
	userID int64,
) (int64, []string, error) {
	const op = "postgresrepo.ReservationRepo.ConfirmSeats"

	var total int64
	var labels []string
	var expiredErr error

	err := r.store.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		total, labels, expiredErr = 0, nil, nil

		t, l, err := r.confirmSeatsCore(ctx, tx, screeningID, seatIDs, userID)
		if err != nil {
			// The expired-hold path mutates seats back to available; that
			// compensation must survive the failed confirm, so the
			// transaction still commits and the error surfaces afterwards.
			if errors.Is(err, repository.ErrHoldExpired) {
				expiredErr = err
				return nil
			}
			return err
		}

		total, labels = t, l
		return nil
	})
	if err != nil {
		return 0, nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}
	if expiredErr != nil {
		return 0, nil, fmt.Errorf("%s:%w", op, expiredErr)
	}

	return total, labels, nil
}

// ReleaseSeats transitions reserved -> available regardless of holder.
// Already-available seats are skipped, which makes the call idempotent; the
// returned count only reflects seats actually released, so the availability
// counter cannot double-increment.
func (r *ReservationRepo) ReleaseSeats(
	ctx context.Context,
	screeningID uuid.UUID,
	seatIDs []uuid.UUID,
) (int64, error) {
	const op = "postgresrepo.ReservationRepo.ReleaseSeats"

	return r.releaseWithStatus(ctx, op, screeningID, seatIDs, domain.SeatReserved)
}

// ReleaseBooked transitions booked -> available. Used for booking
// cancellation/refund and for compensating a failed payment.
func (r *ReservationRepo) ReleaseBooked(
	ctx context.Context,
	screeningID uuid.UUID,
	seatIDs []uuid.UUID,
) (int64, error) {
	const op = "postgresrepo.ReservationRepo.ReleaseBooked"

	return r.releaseWithStatus(ctx, op, screeningID, seatIDs, domain.SeatBooked)
}

// ExpiredScreenings lists screenings that have at least one reserved seat
// whose hold expired before now.
func (r *ReservationRepo) ExpiredScreenings(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	const op = "postgresrepo.ReservationRepo.ExpiredScreenings"

	rows, err := r.store.pool.Query(ctx,
		`SELECT DISTINCT screening_id
       	 FROM screening_seats
      	 WHERE status = 'reserved' AND reservation_expires <= $1`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// ExpireScreeningHolds releases every expired hold on one screening and
// adjusts the availability counter in the same transaction. Safe under
// re-entry: a seat already released matches no row the second time.
func (r *ReservationRepo) ExpireScreeningHolds(
	ctx context.Context,
	screeningID uuid.UUID,
	now time.Time,
) (int64, error) {
	const op = "postgresrepo.ReservationRepo.ExpireScreeningHolds"

	var released int64

	run := func(ctx context.Context, db DB) error {
		if err := lockScreening(ctx, db, screeningID); err != nil {
			return err
		}

		tag, err := db.Exec(ctx,
			`UPDATE screening_seats
            	SET status = 'available', reserved_by = NULL, reserved_at = NULL, reservation_expires = NULL
          	 WHERE screening_id = $1
            	AND status = 'reserved'
            	AND reservation_expires <= $2`,
			screeningID, now,
		)
		if err != nil {
			return err
		}

		released = tag.RowsAffected()
		if released == 0 {
			return nil
		}

		return adjustAvailable(ctx, db, screeningID, released)
	}

	if err := r.store.RunTx(ctx, nil, run); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return released, nil
}

func (r *ReservationRepo) holdSeatsCore(
	ctx context.Context,
	db DB,
	screeningID uuid.UUID,
	seatIDs []uuid.UUID,
	userID int64,
	ttl time.Duration,
) ([]domain.Seat, error) {
	if err := lockBookableScreening(ctx, db, screeningID); err != nil {
		return nil, err
	}

	// Release expired holds on this screening first so an expired-but-not-
	// yet-swept seat counts as available for this batch.
	lazyTag, err := db.Exec(ctx,
		`UPDATE screening_seats
        	SET status = 'available', reserved_by = NULL, reserved_at = NULL, reservation_expires = NULL
      	 WHERE screening_id = $1
        	AND status = 'reserved'
        	AND reservation_expires <= now()`,
		screeningID,
	)
	if err != nil {
		return nil, err
	}

	expires := time.Now().Add(ttl)

	rows, err := db.Query(ctx,
		`UPDATE screening_seats
        	SET status = 'reserved', reserved_by = $3, reserved_at = now(), reservation_expires = $4
      	 WHERE screening_id = $1
        	AND id = ANY($2)
        	AND status = 'available'
      	 RETURNING id, screening_id, row_label, col, seat_number, status, seat_type, price_cents,
               	   reserved_by, reserved_at, reservation_expires`,
		screeningID, seatIDs, userID, expires,
	)
	if err != nil {
		return nil, err
	}

	seats, err := collectSeats(rows)
	if err != nil {
		return nil, err
	}

	if len(seats) != len(seatIDs) {
		held := make(map[uuid.UUID]struct{}, len(seats))
		for _, s := range seats {
			held[s.ID] = struct{}{}
		}
		var failing []uuid.UUID
		for _, id := range seatIDs {
			if _, ok := held[id]; !ok {
				failing = append(failing, id)
			}
		}
		return nil, classifySeatFailure(ctx, db, screeningID, failing, domain.SeatAvailable)
	}

	delta := lazyTag.RowsAffected() - int64(len(seatIDs))
	if err := adjustAvailable(ctx, db, screeningID, delta); err != nil {
		return nil, err
	}

	return seats, nil
}

func (r *ReservationRepo) confirmSeatsCore(
	ctx context.Context,
	db DB,
	screeningID uuid.UUID,
	seatIDs []uuid.UUID,
	userID int64,
) (int64, []string, error) {
	if err := lockBookableScreening(ctx, db, screeningID); err != nil {
		return 0, nil, err
	}

	rows, err := db.Query(ctx,
		`SELECT id, seat_number, status, reserved_by, reservation_expires
       	 FROM screening_seats
      	 WHERE screening_id = $1 AND id = ANY($2)
      	 FOR UPDATE`,
		screeningID, seatIDs,
	)
	if err != nil {
		return 0, nil, err
	}

	type seatState struct {
		id      uuid.UUID
		label   string
		status  domain.SeatStatus
		holder  *int64
		expires *time.Time
	}

	found := make(map[uuid.UUID]seatState, len(seatIDs))
	for rows.Next() {
		var st seatState
		if err := rows.Scan(&st.id, &st.label, &st.status, &st.holder, &st.expires); err != nil {
			rows.Close()
			return 0, nil, err
		}
		found[st.id] = st
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}

	var missing []string
	var unavailable []string
	var foreign []string
	var expired []uuid.UUID
	var expiredLabels []string

	now := time.Now()
	for _, id := range seatIDs {
		st, ok := found[id]
		switch {
		case !ok:
			missing = append(missing, id.String())
		case st.status != domain.SeatReserved:
			unavailable = append(unavailable, st.label)
		case st.holder == nil || *st.holder != userID:
			foreign = append(foreign, st.label)
		case st.expires == nil || !st.expires.After(now):
			expired = append(expired, st.id)
			expiredLabels = append(expiredLabels, st.label)
		}
	}

	switch {
	case len(missing) > 0:
		return 0, nil, &repository.SeatsNotFoundError{SeatIDs: missing}
	case len(unavailable) > 0:
		return 0, nil, &repository.SeatsUnavailableError{SeatNumbers: unavailable}
	case len(foreign) > 0:
		return 0, nil, &repository.NotHolderError{SeatNumbers: foreign}
	case len(expired) > 0:
		// Expired holds are treated as available: release them here and fail
		// the batch so the caller re-holds.
		tag, err := db.Exec(ctx,
			`UPDATE screening_seats
            	SET status = 'available', reserved_by = NULL, reserved_at = NULL, reservation_expires = NULL
          	 WHERE screening_id = $1 AND id = ANY($2) AND status = 'reserved'`,
			screeningID, expired,
		)
		if err != nil {
			return 0, nil, err
		}
		if err := adjustAvailable(ctx, db, screeningID, tag.RowsAffected()); err != nil {
			return 0, nil, err
		}
		return 0, nil, &repository.HoldExpiredError{SeatNumbers: expiredLabels}
	}

	confirmRows, err := db.Query(ctx,
		`UPDATE screening_seats
        	SET status = 'booked', reserved_by = NULL, reserved_at = NULL, reservation_expires = NULL
      	 WHERE screening_id = $1
        	AND id = ANY($2)
        	AND status = 'reserved'
        	AND reserved_by = $3
        	AND reservation_expires > now()
      	 RETURNING seat_number, price_cents`,
		screeningID, seatIDs, userID,
	)
	if err != nil {
		return 0, nil, err
	}

	defer confirmRows.Close()

	var total int64
	var labels []string
	for confirmRows.Next() {
		var label string
		var price int64
		if err := confirmRows.Scan(&label, &price); err != nil {
			return 0, nil, err
		}
		total += price
		labels = append(labels, label)
	}
	if err := confirmRows.Err(); err != nil {
		return 0, nil, err
	}

	if len(labels) != len(seatIDs) {
		return 0, nil, repository.ErrSeatsUnavailable
	}

	// seats_available was already decremented at hold time; confirming does
	// not touch the counter.

	return total, labels, nil
}

func (r *ReservationRepo) releaseWithStatus(
	ctx context.Context,
	op string,
	screeningID uuid.UUID,
	seatIDs []uuid.UUID,
	from domain.SeatStatus,
) (int64, error) {
	var released int64

	run := func(ctx context.Context, db DB) error {
		if err := lockScreening(ctx, db, screeningID); err != nil {
			return err
		}

		if err := ensureSeatsExist(ctx, db, screeningID, seatIDs); err != nil {
			return err
		}

		tag, err := db.Exec(ctx,
			`UPDATE screening_seats
            	SET status = 'available', reserved_by = NULL, reserved_at = NULL, reservation_expires = NULL
          	 WHERE screening_id = $1 AND id = ANY($2) AND status = $3`,
			screeningID, seatIDs, string(from),
		)
		if err != nil {
			return err
		}

		released = tag.RowsAffected()
		if released == 0 {
			return nil
		}

		return adjustAvailable(ctx, db, screeningID, released)
	}

	if err := r.store.RunTx(ctx, nil, run); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return released, nil
}

// lockScreening locks the screening row, serializing seat batches per
// screening, and reports repository.ErrScreeningNotFound for unknown ids.
func lockScreening(ctx context.Context, db DB, screeningID uuid.UUID) error {
	var id uuid.UUID
	err := db.QueryRow(ctx,
		`SELECT id FROM screenings WHERE id = $1 FOR UPDATE`,
		screeningID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrScreeningNotFound
	}
	return err
}

// lockBookableScreening additionally rejects cancelled or deactivated
// screenings; holds and confirms must not touch those.
func lockBookableScreening(ctx context.Context, db DB, screeningID uuid.UUID) error {
	var status domain.ScreeningStatus
	var isActive bool
	err := db.QueryRow(ctx,
		`SELECT status, is_active FROM screenings WHERE id = $1 FOR UPDATE`,
		screeningID,
	).Scan(&status, &isActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrScreeningNotFound
	}
	if err != nil {
		return err
	}

	if !isActive || status == domain.ScreeningCancelled {
		return repository.ErrScreeningClosed
	}

	return nil
}

// adjustAvailable moves the denormalized counter and rederives the display
// status in the same statement, so counter and status cannot drift from the
// seat rows within a committed transaction.
func adjustAvailable(ctx context.Context, db DB, screeningID uuid.UUID, delta int64) error {
	if delta == 0 {
		return nil
	}

	_, err := db.Exec(ctx,
		`UPDATE screenings
        	SET seats_available = seats_available + $2,
            	status = CASE
                	WHEN status = 'cancelled' THEN status
                	WHEN seats_available + $2 <= 0 THEN 'sold_out'
                	WHEN (seats_available + $2) * 10 <= total_seats THEN 'almost_full'
                	ELSE 'open'
            	END
      	 WHERE id = $1`,
		screeningID, delta,
	)

	return err
}

func ensureSeatsExist(ctx context.Context, db DB, screeningID uuid.UUID, seatIDs []uuid.UUID) error {
	rows, err := db.Query(ctx,
		`SELECT id FROM screening_seats WHERE screening_id = $1 AND id = ANY($2)`,
		screeningID, seatIDs,
	)
	if err != nil {
		return err
	}

	defer rows.Close()

	present := make(map[uuid.UUID]struct{}, len(seatIDs))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		present[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var missing []string
	for _, id := range seatIDs {
		if _, ok := present[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return &repository.SeatsNotFoundError{SeatIDs: missing}
	}

	return nil
}

// classifySeatFailure distinguishes unknown seat ids from guard violations
// after a short CAS update, so the caller gets a precise error.
func classifySeatFailure(
	ctx context.Context,
	db DB,
	screeningID uuid.UUID,
	seatIDs []uuid.UUID,
	wanted domain.SeatStatus,
) error {
	rows, err := db.Query(ctx,
		`SELECT id, seat_number, status
       	 FROM screening_seats
      	 WHERE screening_id = $1 AND id = ANY($2)`,
		screeningID, seatIDs,
	)
	if err != nil {
		return err
	}

	defer rows.Close()

	type state struct {
		label  string
		status domain.SeatStatus
	}

	found := make(map[uuid.UUID]state, len(seatIDs))
	for rows.Next() {
		var id uuid.UUID
		var st state
		if err := rows.Scan(&id, &st.label, &st.status); err != nil {
			return err
		}
		found[id] = st
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var missing []string
	var blocked []string
	for _, id := range seatIDs {
		st, ok := found[id]
		if !ok {
			missing = append(missing, id.String())
			continue
		}
		if st.status != wanted {
			blocked = append(blocked, st.label)
		}
	}

	if len(missing) > 0 {
		return &repository.SeatsNotFoundError{SeatIDs: missing}
	}

	if len(blocked) == 0 {
		// A batch with repeated ids updates fewer rows than it names while
		// every named seat looks fine here. Report the conflict rather than
		// an empty seat list.
		return repository.ErrConflict
	}

	return &repository.SeatsUnavailableError{SeatNumbers: blocked}
}

func collectSeats(rows pgx.Rows) ([]domain.Seat, error) {
	defer rows.Close()

	var out []domain.Seat
	for rows.Next() {
		var s domain.Seat
		if err := rows.Scan(
			&s.ID, &s.ScreeningID, &s.Row, &s.Column, &s.SeatNumber,
			&s.Status, &s.Type, &s.PriceCents,
			&s.ReservedBy, &s.ReservedAt, &s.ReservationExpires,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
