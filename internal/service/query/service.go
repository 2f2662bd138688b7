// Package query serves the read side: screening summaries, availability
// counts and the grouped seat map. Projections are cached in redis with
// short TTLs; writers invalidate them, so staleness is bounded by the TTL
// even if an invalidation is lost.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/screenbook/screenbook/internal/domain"
	redisx "github.com/screenbook/screenbook/internal/redis"
	redisrepo "github.com/screenbook/screenbook/internal/repository/redis"
)

// ReadStore is the persistence contract for the read side.
type ReadStore interface {
	GetScreening(ctx context.Context, id uuid.UUID) (*domain.Screening, error)
	CountsByStatus(ctx context.Context, screeningID uuid.UUID) (*domain.ScreeningCounts, error)
	ListSeats(ctx context.Context, screeningID uuid.UUID) ([]domain.Seat, error)
	SeatIDsByNumbers(ctx context.Context, screeningID uuid.UUID, seatNumbers []string) ([]uuid.UUID, error)
}

type Config struct {
	SummaryTTL      time.Duration
	AvailabilityTTL time.Duration
	SeatMapTTL      time.Duration
}

type Service struct {
	store  ReadStore
	cache  *redisrepo.Cache
	logger *slog.Logger
	cfg    Config
}

func New(store ReadStore, cache *redisrepo.Cache, logger *slog.Logger, cfg Config) *Service {
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = 30 * time.Second
	}
	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 5 * time.Second
	}
	if cfg.SeatMapTTL <= 0 {
		cfg.SeatMapTTL = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{store: store, cache: cache, logger: logger, cfg: cfg}
}

// Availability is the counts projection plus the derived display status.
type Availability struct {
	ScreeningID uuid.UUID              `json:"screening_id"`
	Status      domain.ScreeningStatus `json:"status"`
	Counts      domain.ScreeningCounts `json:"counts"`
}

// SeatMap is the seat grid grouped by row for rendering.
type SeatMap struct {
	ScreeningID uuid.UUID        `json:"screening_id"`
	Rows        []domain.SeatRow `json:"rows"`
}

// GetScreening returns the screening summary, cached.
func (s *Service) GetScreening(ctx context.Context, id uuid.UUID) (*domain.Screening, error) {
	const op = "service.query.GetScreening"

	if s.cache == nil {
		return s.store.GetScreening(ctx, id)
	}

	sc, err := redisrepo.GetOrSetJSON(ctx, s.cache, redisx.KeyScreeningSummary(id), s.cfg.SummaryTTL,
		func(ctx context.Context) (*domain.Screening, error) {
			return s.store.GetScreening(ctx, id)
		})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return sc, nil
}

// Availability returns per-status seat counts and the display status.
func (s *Service) Availability(ctx context.Context, id uuid.UUID) (*Availability, error) {
	const op = "service.query.Availability"

	load := func(ctx context.Context) (*Availability, error) {
		sc, err := s.store.GetScreening(ctx, id)
		if err != nil {
			return nil, err
		}

		counts, err := s.store.CountsByStatus(ctx, id)
		if err != nil {
			return nil, err
		}

		return &Availability{
			ScreeningID: id,
			Status:      sc.Status,
			Counts:      *counts,
		}, nil
	}

	var (
		av  *Availability
		err error
	)
	if s.cache == nil {
		av, err = load(ctx)
	} else {
		av, err = redisrepo.GetOrSetJSON(ctx, s.cache, redisx.KeyScreeningAvailability(id), s.cfg.AvailabilityTTL, load)
	}
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return av, nil
}

// SeatMap returns the full seat grid grouped by row.
func (s *Service) SeatMap(ctx context.Context, id uuid.UUID) (*SeatMap, error) {
	const op = "service.query.SeatMap"

	load := func(ctx context.Context) (*SeatMap, error) {
		seats, err := s.store.ListSeats(ctx, id)
		if err != nil {
			return nil, err
		}

		return &SeatMap{
			ScreeningID: id,
			Rows:        domain.GroupSeatsByRow(seats),
		}, nil
	}

	var (
		sm  *SeatMap
		err error
	)
	if s.cache == nil {
		sm, err = load(ctx)
	} else {
		sm, err = redisrepo.GetOrSetJSON(ctx, s.cache, redisx.KeyScreeningSeatMap(id), s.cfg.SeatMapTTL, load)
	}
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return sm, nil
}

// ResolveSeatIDs maps display labels like "A12" to seat ids. Never cached:
// label resolution is part of a write path.
func (s *Service) ResolveSeatIDs(ctx context.Context, screeningID uuid.UUID, seatNumbers []string) ([]uuid.UUID, error) {
	const op = "service.query.ResolveSeatIDs"

	ids, err := s.store.SeatIDsByNumbers(ctx, screeningID, seatNumbers)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return ids, nil
}
