package postgresrepo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/screenbook/screenbook/internal/domain"
	"github.com/screenbook/screenbook/internal/repository"
)

type BookingRepo struct {
	store *Store
}

// Insert persists a booking record. Records are append-only per request;
// only the status fields change afterwards.
func (r *BookingRepo) Insert(ctx context.Context, b *domain.Booking) error {
	const op = "postgresrepo.BookingRepo.Insert"

	if _, err := r.store.pool.Exec(ctx,
		`INSERT INTO bookings(
            id, user_id, screening_id, movie_title, cinema_name, room_name,
            starts_at, seat_ids, seat_numbers, total_cents,
            booking_status, payment_status, payment_ref, created_at)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		b.ID, b.UserID, b.ScreeningID, b.MovieTitle, b.CinemaName, b.RoomName,
		b.StartsAt, b.SeatIDs, b.SeatNumbers, b.TotalCents,
		string(b.BookingStatus), string(b.PaymentStatus), b.PaymentRef, b.CreatedAt,
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// Get retrieves a booking by id.
//
// Returns repository.ErrNotFound for unknown ids.
func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgresrepo.BookingRepo.Get"

	var b domain.Booking
	err := r.store.pool.QueryRow(ctx,
		`SELECT id, user_id, screening_id, movie_title, cinema_name, room_name,
            	starts_at, seat_ids, seat_numbers, total_cents,
            	booking_status, payment_status, payment_ref, created_at
       	 FROM bookings WHERE id = $1`,
		id,
	).Scan(
		&b.ID, &b.UserID, &b.ScreeningID, &b.MovieTitle, &b.CinemaName, &b.RoomName,
		&b.StartsAt, &b.SeatIDs, &b.SeatNumbers, &b.TotalCents,
		&b.BookingStatus, &b.PaymentStatus, &b.PaymentRef, &b.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &b, nil
}

// ListByUser returns a user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Booking, error) {
	const op = "postgresrepo.BookingRepo.ListByUser"

	rows, err := r.store.pool.Query(ctx,
		`SELECT id, user_id, screening_id, movie_title, cinema_name, room_name,
            	starts_at, seat_ids, seat_numbers, total_cents,
            	booking_status, payment_status, payment_ref, created_at
       	 FROM bookings
      	 WHERE user_id = $1
      	 ORDER BY created_at DESC
      	 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.ScreeningID, &b.MovieTitle, &b.CinemaName, &b.RoomName,
			&b.StartsAt, &b.SeatIDs, &b.SeatNumbers, &b.TotalCents,
			&b.BookingStatus, &b.PaymentStatus, &b.PaymentRef, &b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// SetStatus moves the booking's status pair, e.g. cancelled/refunded after a
// refund or completed/completed after the show.
func (r *BookingRepo) SetStatus(
	ctx context.Context,
	id uuid.UUID,
	booking domain.BookingStatus,
	payment domain.PaymentStatus,
) error {
	const op = "postgresrepo.BookingRepo.SetStatus"

	tag, err := r.store.pool.Exec(ctx,
		`UPDATE bookings
        	SET booking_status = $2, payment_status = $3
      	 WHERE id = $1`,
		id, string(booking), string(payment),
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
