// Package booking turns confirmed seat holds into booking records. The
// flow is confirm seats, charge the payment gateway, persist the record.
// A failed charge compensates by releasing the just-booked seats; the
// failed booking is still persisted for audit.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/screenbook/screenbook/internal/catalog"
	"github.com/screenbook/screenbook/internal/domain"
	"github.com/screenbook/screenbook/internal/notify"
	"github.com/screenbook/screenbook/internal/payment"
	"github.com/screenbook/screenbook/internal/repository"
)

// Confirmer is the slice of the reservation service this package needs.
type Confirmer interface {
	Confirm(ctx context.Context, screeningID uuid.UUID, seatIDs []uuid.UUID, userID int64) (int64, []string, error)
	ReleaseBooked(ctx context.Context, screeningID uuid.UUID, seatIDs []uuid.UUID) (int64, error)
}

// BookingStore persists booking records.
type BookingStore interface {
	Insert(ctx context.Context, b *domain.Booking) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Booking, error)
	SetStatus(ctx context.Context, id uuid.UUID, booking domain.BookingStatus, payment domain.PaymentStatus) error
}

type Service struct {
	seats    Confirmer
	bookings BookingStore
	charger  payment.Charger
	catalog  catalog.Lookup
	notifier notify.Notifier
	logger   *slog.Logger
}

func New(
	seats Confirmer,
	bookings BookingStore,
	charger payment.Charger,
	cat catalog.Lookup,
	notifier notify.Notifier,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		seats:    seats,
		bookings: bookings,
		charger:  charger,
		catalog:  cat,
		notifier: notifier,
		logger:   logger,
	}
}

type CreateParams struct {
	ScreeningID   uuid.UUID
	SeatIDs       []uuid.UUID
	UserID        int64
	PaymentMethod string
}

// Create confirms the user's held seats, charges the total and persists the
// booking. On a declined or failed charge the seats are released back to
// available and the booking is kept with payment_status=failed; the caller
// receives a *PaymentDeclinedError.
func (s *Service) Create(ctx context.Context, p CreateParams) (*domain.Booking, error) {
	const op = "service.booking.Create"

	total, labels, err := s.seats.Confirm(ctx, p.ScreeningID, p.SeatIDs, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	b := &domain.Booking{
		ID:          uuid.New(),
		UserID:      p.UserID,
		ScreeningID: p.ScreeningID,
		SeatIDs:     p.SeatIDs,
		SeatNumbers: labels,
		TotalCents:  total,
		CreatedAt:   time.Now().UTC(),
	}

	// Display fields are best-effort denormalization; a lookup failure
	// must not void seats the user already paid to confirm.
	if s.catalog != nil {
		if meta, err := s.catalog.Screening(ctx, p.ScreeningID); err == nil {
			b.MovieTitle = meta.MovieTitle
			b.CinemaName = meta.CinemaName
			b.RoomName = meta.RoomName
			b.StartsAt = meta.StartsAt
		} else {
			s.logger.Warn("screening metadata lookup failed",
				"screening_id", p.ScreeningID, "error", err)
		}
	}

	res, chargeErr := s.charger.Charge(ctx, payment.Request{
		AmountCents: total,
		Method:      p.PaymentMethod,
		Metadata: map[string]string{
			"booking_id":   b.ID.String(),
			"screening_id": p.ScreeningID.String(),
		},
	})

	if chargeErr != nil || !res.Success {
		return nil, s.compensate(ctx, b, res, chargeErr)
	}

	b.BookingStatus = domain.BookingConfirmed
	b.PaymentStatus = domain.PaymentCompleted
	b.PaymentRef = res.Reference

	if err := s.bookings.Insert(ctx, b); err != nil {
		// Seats are booked and money is taken; surface the error but do
		// not release. Reconciliation owns this case.
		s.logger.Error("booking insert failed after successful charge",
			"booking_id", b.ID, "payment_ref", res.Reference, "error", err)
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.notify(ctx, p.UserID, notify.EventBookingConfirmed, b)

	return b, nil
}

// compensate releases the seats Confirm just booked and records the failed
// booking for audit. The returned error is always a *PaymentDeclinedError.
func (s *Service) compensate(
	ctx context.Context,
	b *domain.Booking,
	res payment.Result,
	chargeErr error,
) error {
	const op = "service.booking.Create"

	reason := res.Reason
	if chargeErr != nil {
		reason = "gateway unreachable"
		s.logger.Error("payment charge failed",
			"booking_id", b.ID, "error", chargeErr)
	}

	if _, err := s.seats.ReleaseBooked(ctx, b.ScreeningID, b.SeatIDs); err != nil {
		// The sweep cannot free booked seats, so this needs an operator.
		s.logger.Error("compensating release failed, seats stuck booked",
			"booking_id", b.ID, "screening_id", b.ScreeningID, "error", err)
	}

	b.BookingStatus = domain.BookingCancelled
	b.PaymentStatus = domain.PaymentFailed

	if err := s.bookings.Insert(ctx, b); err != nil {
		s.logger.Error("failed to persist declined booking",
			"booking_id", b.ID, "error", err)
	}

	return fmt.Errorf("%s:%w", op, &PaymentDeclinedError{
		BookingID: b.ID.String(),
		Reason:    reason,
	})
}

// Get returns a booking, enforcing ownership when userID is non-zero.
func (s *Service) Get(ctx context.Context, id uuid.UUID, userID int64) (*domain.Booking, error) {
	const op = "service.booking.Get"

	b, err := s.bookings.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if userID != 0 && b.UserID != userID {
		return nil, fmt.Errorf("%s:%w", op, ErrNotOwner)
	}

	return b, nil
}

// ListByUser returns the user's bookings, newest first.
func (s *Service) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Booking, error) {
	const op = "service.booking.ListByUser"

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	out, err := s.bookings.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Cancel releases the booking's seats and marks it cancelled/refunded.
// Only the owner may cancel; cancelling an already-cancelled booking is
// rejected so a refund cannot be issued twice.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, userID int64) (*domain.Booking, error) {
	const op = "service.booking.Cancel"

	b, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if b.BookingStatus != domain.BookingConfirmed {
		return nil, fmt.Errorf("%s:%w", op, ErrAlreadyFinal)
	}

	if _, err := s.seats.ReleaseBooked(ctx, b.ScreeningID, b.SeatIDs); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := s.bookings.SetStatus(ctx, id, domain.BookingCancelled, domain.PaymentRefunded); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	b.BookingStatus = domain.BookingCancelled
	b.PaymentStatus = domain.PaymentRefunded

	s.notify(ctx, userID, notify.EventBookingCancelled, b)

	return b, nil
}

func (s *Service) notify(ctx context.Context, userID int64, event notify.Event, b *domain.Booking) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, event, b); err != nil {
		s.logger.Warn("notification enqueue failed",
			"booking_id", b.ID, "event", string(event), "error", err)
	}
}
