package reservation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/screenbook/screenbook/internal/domain"
	redisrepo "github.com/screenbook/screenbook/internal/repository/redis"
	"golang.org/x/sync/singleflight"
)

// SeatStore is the persistence contract for seat-status transitions. Every
// batch operation is all-or-nothing: on error no seat in the batch has
// changed state (except the documented expired-hold release inside
// ConfirmSeats).
type SeatStore interface {
	HoldSeats(ctx context.Context, screeningID uuid.UUID, seatIDs []uuid.UUID, userID int64, ttl time.Duration) ([]domain.Seat, error)
	ConfirmSeats(ctx context.Context, screeningID uuid.UUID, seatIDs []uuid.UUID, userID int64) (int64, []string, error)
	ReleaseSeats(ctx context.Context, screeningID uuid.UUID, seatIDs []uuid.UUID) (int64, error)
	ReleaseBooked(ctx context.Context, screeningID uuid.UUID, seatIDs []uuid.UUID) (int64, error)
	ExpiredScreenings(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ExpireScreeningHolds(ctx context.Context, screeningID uuid.UUID, now time.Time) (int64, error)
}

// Publisher broadcasts seat-map changes; Invalidator drops cached
// projections. Both are satisfied by the redis repositories and may be nil
// in tests.
type Publisher interface {
	PublishScreeningChanged(ctx context.Context, screeningID uuid.UUID) error
}

type Invalidator interface {
	InvalidateScreening(ctx context.Context, screeningID uuid.UUID) error
}

type Config struct {
	DefaultHoldTTL time.Duration
	MinHoldTTL     time.Duration
	MaxHoldTTL     time.Duration
}

type Service struct {
	store   SeatStore
	cache   Invalidator
	pubsub  Publisher
	limiter *redisrepo.SlidingWindowLimiter
	logger  *slog.Logger
	sweeps  singleflight.Group
	cfg     Config
}

func New(
	store SeatStore,
	cache Invalidator,
	pubsub Publisher,
	limiter *redisrepo.SlidingWindowLimiter,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.MinHoldTTL <= 0 {
		cfg.MinHoldTTL = 15 * time.Second
	}

	if cfg.MaxHoldTTL <= 0 || cfg.MaxHoldTTL < cfg.MinHoldTTL {
		cfg.MaxHoldTTL = 5 * time.Minute
	}

	if cfg.DefaultHoldTTL <= 0 {
		cfg.DefaultHoldTTL = 2 * time.Minute
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:   store,
		cache:   cache,
		pubsub:  pubsub,
		limiter: limiter,
		logger:  logger,
		cfg:     cfg,
	}
}

// Hold places a time-bounded claim on the requested seats for userID.
//
// Returns:
//   - []domain.Seat: the updated seat records on success.
//   - error: repository.ErrSeatsUnavailable (as *SeatsUnavailableError with
//     the offending labels) if any seat in the batch is not available; the
//     batch then changed nothing.
func (s *Service) Hold(
	ctx context.Context,
	screeningID uuid.UUID,
	seatIDs []uuid.UUID,
	userID int64,
	ttl time.Duration,
	rlKey string,
) ([]domain.Seat, error) {
	const op = "service.reservation.Hold"

	seatIDs = dedupeSeatIDs(seatIDs)
	if len(seatIDs) == 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrNoSeatsSelected)
	}

	ttl = s.clampTTL(ttl)

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s:%w, retry in %s", op, ErrRateLimited, retry)
		}
	}

	seats, err := s.store.HoldSeats(ctx, screeningID, seatIDs, userID, ttl)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.screeningChanged(ctx, screeningID)

	return seats, nil
}

// Confirm transitions held seats to booked and returns the chargeable total
// in cents plus the seat labels. This is the only path that produces a
// chargeable amount.
func (s *Service) Confirm(
	ctx context.Context,
	screeningID uuid.UUID,
	seatIDs []uuid.UUID,
	userID int64,
) (int64, []string, error) {
	const op = "service.reservation.Confirm"

	seatIDs = dedupeSeatIDs(seatIDs)
	if len(seatIDs) == 0 {
		return 0, nil, fmt.Errorf("%s:%w", op, ErrNoSeatsSelected)
	}

	total, labels, err := s.store.ConfirmSeats(ctx, screeningID, seatIDs, userID)
	if err != nil {
		// An expired hold was released inside the store; the seat map
		// changed even though the confirm failed.
		s.screeningChanged(ctx, screeningID)
		return 0, nil, fmt.Errorf("%s:%w", op, err)
	}

	s.screeningChanged(ctx, screeningID)

	return total, labels, nil
}

// Release returns reserved seats to available regardless of holder.
// Idempotent: already-available seats are skipped without error.
func (s *Service) Release(
	ctx context.Context,
	screeningID uuid.UUID,
	seatIDs []uuid.UUID,
) (int64, error) {
	const op = "service.reservation.Release"

	seatIDs = dedupeSeatIDs(seatIDs)
	if len(seatIDs) == 0 {
		return 0, fmt.Errorf("%s:%w", op, ErrNoSeatsSelected)
	}

	released, err := s.store.ReleaseSeats(ctx, screeningID, seatIDs)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	if released > 0 {
		s.screeningChanged(ctx, screeningID)
	}

	return released, nil
}

// ReleaseBooked returns booked seats to available. Used for booking
// cancellation and for compensating a failed payment.
func (s *Service) ReleaseBooked(
	ctx context.Context,
	screeningID uuid.UUID,
	seatIDs []uuid.UUID,
) (int64, error) {
	const op = "service.reservation.ReleaseBooked"

	seatIDs = dedupeSeatIDs(seatIDs)
	if len(seatIDs) == 0 {
		return 0, fmt.Errorf("%s:%w", op, ErrNoSeatsSelected)
	}

	released, err := s.store.ReleaseBooked(ctx, screeningID, seatIDs)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	if released > 0 {
		s.screeningChanged(ctx, screeningID)
	}

	return released, nil
}

// ExpireDue releases every hold that expired before now, screening by
// screening. Each screening is processed at most once at a time via
// singleflight, so an overlapping sweep cannot double-process seats.
// Per-screening failures are logged and do not abort the rest of the sweep.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	const op = "service.reservation.ExpireDue"

	screenings, err := s.store.ExpiredScreenings(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	var total int64
	for _, id := range screenings {
		released, err, _ := s.sweeps.Do(id.String(), func() (any, error) {
			return s.store.ExpireScreeningHolds(ctx, id, now)
		})
		if err != nil {
			s.logger.Error("expire sweep failed for screening",
				"screening_id", id, "error", err)
			continue
		}

		n := released.(int64)
		if n > 0 {
			total += n
			s.screeningChanged(ctx, id)
			s.logger.Info("released expired holds",
				"screening_id", id, "released", n)
		}
	}

	return total, nil
}

func (s *Service) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.cfg.DefaultHoldTTL
	}

	if ttl < s.cfg.MinHoldTTL {
		return s.cfg.MinHoldTTL
	}

	if ttl > s.cfg.MaxHoldTTL {
		return s.cfg.MaxHoldTTL
	}

	return ttl
}

// dedupeSeatIDs drops repeated ids while keeping the first occurrence's
// position. A request naming the same seat twice is one claim on that seat,
// not two.
func dedupeSeatIDs(seatIDs []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(seatIDs))
	out := seatIDs[:0:0]
	for _, id := range seatIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}

func (s *Service) screeningChanged(ctx context.Context, screeningID uuid.UUID) {
	if s.cache != nil {
		_ = s.cache.InvalidateScreening(ctx, screeningID)
	}
	if s.pubsub != nil {
		_ = s.pubsub.PublishScreeningChanged(ctx, screeningID)
	}
}
