// Package admin covers the operator surface: creating screenings with
// their seat grids, blocking seats for maintenance and cancelling
// screenings. These paths are low-volume and skip the cache on reads but
// must still invalidate it on writes.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/screenbook/screenbook/internal/domain"
)

// AdminStore is the persistence contract for the operator surface.
type AdminStore interface {
	Create(ctx context.Context, sc domain.Screening, rows []domain.SeatRowSpec) (uuid.UUID, error)
	SetSeatStatusByNumbers(ctx context.Context, screeningID uuid.UUID, seatNumbers []string, to domain.SeatStatus) (int64, error)
	Cancel(ctx context.Context, screeningID uuid.UUID) error
}

type Invalidator interface {
	InvalidateScreening(ctx context.Context, screeningID uuid.UUID) error
}

type Publisher interface {
	PublishScreeningChanged(ctx context.Context, screeningID uuid.UUID) error
}

type Service struct {
	store  AdminStore
	cache  Invalidator
	pubsub Publisher
	logger *slog.Logger
}

func New(store AdminStore, cache Invalidator, pubsub Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{store: store, cache: cache, pubsub: pubsub, logger: logger}
}

type CreateScreeningParams struct {
	MovieTitle     string
	CinemaName     string
	RoomName       string
	Format         string
	StartsAt       time.Time
	EndsAt         time.Time
	BasePriceCents int64
	Rows           []domain.SeatRowSpec
}

// CreateScreening validates the seat grid and persists the screening with
// every seat available.
func (s *Service) CreateScreening(ctx context.Context, p CreateScreeningParams) (uuid.UUID, error) {
	const op = "service.admin.CreateScreening"

	if err := validateRows(p.Rows); err != nil {
		return uuid.Nil, fmt.Errorf("%s:%w", op, err)
	}

	if !p.EndsAt.After(p.StartsAt) {
		return uuid.Nil, fmt.Errorf("%s:%w", op, ErrInvalidSchedule)
	}

	if p.BasePriceCents <= 0 {
		return uuid.Nil, fmt.Errorf("%s:%w", op, ErrInvalidBasePrice)
	}

	total := 0
	for _, row := range p.Rows {
		total += row.Seats
	}

	sc := domain.Screening{
		MovieTitle:     p.MovieTitle,
		CinemaName:     p.CinemaName,
		RoomName:       p.RoomName,
		Format:         p.Format,
		StartsAt:       p.StartsAt,
		EndsAt:         p.EndsAt,
		BasePriceCents: p.BasePriceCents,
		TotalSeats:     total,
	}

	id, err := s.store.Create(ctx, sc, p.Rows)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("screening created",
		"screening_id", id, "movie", p.MovieTitle, "seats", total)

	return id, nil
}

// SetSeatStatus blocks seats, marks them under maintenance, or returns
// them to available. Seats are addressed by display label.
func (s *Service) SetSeatStatus(
	ctx context.Context,
	screeningID uuid.UUID,
	seatNumbers []string,
	to domain.SeatStatus,
) (int64, error) {
	const op = "service.admin.SetSeatStatus"

	switch to {
	case domain.SeatBlocked, domain.SeatMaintenance, domain.SeatAvailable:
	default:
		return 0, fmt.Errorf("%s:%w: %q", op, ErrInvalidSeatStatus, to)
	}

	if len(seatNumbers) == 0 {
		return 0, fmt.Errorf("%s:%w: no seats addressed", op, ErrInvalidRows)
	}

	changed, err := s.store.SetSeatStatusByNumbers(ctx, screeningID, seatNumbers, to)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	if changed > 0 {
		s.screeningChanged(ctx, screeningID)
	}

	return changed, nil
}

// CancelScreening marks the screening cancelled and inactive. Holds on a
// cancelled screening still age out through the sweep; existing bookings
// are refunded through the booking cancellation path.
func (s *Service) CancelScreening(ctx context.Context, screeningID uuid.UUID) error {
	const op = "service.admin.CancelScreening"

	if err := s.store.Cancel(ctx, screeningID); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	s.screeningChanged(ctx, screeningID)
	s.logger.Info("screening cancelled", "screening_id", screeningID)

	return nil
}

func (s *Service) screeningChanged(ctx context.Context, screeningID uuid.UUID) {
	if s.cache != nil {
		_ = s.cache.InvalidateScreening(ctx, screeningID)
	}
	if s.pubsub != nil {
		_ = s.pubsub.PublishScreeningChanged(ctx, screeningID)
	}
}

func validateRows(rows []domain.SeatRowSpec) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: no rows", ErrInvalidRows)
	}

	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		label := strings.TrimSpace(row.Label)
		if label == "" {
			return fmt.Errorf("%w: empty row label", ErrInvalidRows)
		}
		if _, dup := seen[label]; dup {
			return fmt.Errorf("%w: duplicate row %q", ErrInvalidRows, label)
		}
		seen[label] = struct{}{}

		if row.Seats <= 0 {
			return fmt.Errorf("%w: row %q has no seats", ErrInvalidRows, label)
		}

		switch row.Type {
		case domain.SeatStandard, domain.SeatPremium, domain.SeatVIP,
			domain.SeatCouple, domain.SeatAccessible:
		default:
			return fmt.Errorf("%w: row %q has unknown seat type %q", ErrInvalidRows, label, row.Type)
		}
	}

	return nil
}
