// Package memory is a mutex-guarded in-memory store implementing the same
// contracts as the postgres repositories, including the all-or-nothing
// batch semantics and the denormalized availability counter. It backs
// service and transport tests that should not need a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/screenbook/screenbook/internal/domain"
	"github.com/screenbook/screenbook/internal/repository"
)

type screeningState struct {
	screening domain.Screening
	seats     map[uuid.UUID]*domain.Seat
	order     []uuid.UUID
}

type Store struct {
	mu         sync.Mutex
	screenings map[uuid.UUID]*screeningState
	bookings   map[uuid.UUID]*domain.Booking
}

func NewStore() *Store {
	return &Store{
		screenings: make(map[uuid.UUID]*screeningState),
		bookings:   make(map[uuid.UUID]*domain.Booking),
	}
}

// Create mirrors the SQL grid insert: every seat starts available and the
// counter equals the grid size.
func (s *Store) Create(_ context.Context, sc domain.Screening, rows []domain.SeatRowSpec) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc.ID = uuid.New()
	sc.Status = domain.ScreeningScheduled
	sc.IsActive = true

	st := &screeningState{
		screening: sc,
		seats:     make(map[uuid.UUID]*domain.Seat),
	}

	total := 0
	for _, row := range rows {
		for col := 1; col <= row.Seats; col++ {
			seat := &domain.Seat{
				ID:          uuid.New(),
				ScreeningID: sc.ID,
				Row:         row.Label,
				Column:      col,
				SeatNumber:  domain.SeatLabel(row.Label, col),
				Status:      domain.SeatAvailable,
				Type:        row.Type,
				PriceCents:  domain.PriceFor(sc.BasePriceCents, row.Type),
			}
			st.seats[seat.ID] = seat
			st.order = append(st.order, seat.ID)
			total++
		}
	}

	st.screening.TotalSeats = total
	st.screening.SeatsAvailable = total

	s.screenings[sc.ID] = st

	return sc.ID, nil
}

func (s *Store) GetScreening(_ context.Context, id uuid.UUID) (*domain.Screening, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.screenings[id]
	if !ok {
		return nil, repository.ErrScreeningNotFound
	}

	sc := st.screening
	return &sc, nil
}

func (s *Store) CountsByStatus(_ context.Context, screeningID uuid.UUID) (*domain.ScreeningCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.screenings[screeningID]
	if !ok {
		return nil, repository.ErrScreeningNotFound
	}

	var counts domain.ScreeningCounts
	for _, seat := range st.seats {
		switch seat.Status {
		case domain.SeatAvailable:
			counts.Available++
		case domain.SeatReserved:
			counts.Reserved++
		case domain.SeatBooked:
			counts.Booked++
		case domain.SeatBlocked, domain.SeatMaintenance:
			counts.Blocked++
		}
		counts.Total++
	}

	return &counts, nil
}

func (s *Store) ListSeats(_ context.Context, screeningID uuid.UUID) ([]domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.screenings[screeningID]
	if !ok {
		return nil, repository.ErrScreeningNotFound
	}

	out := make([]domain.Seat, 0, len(st.order))
	for _, id := range st.order {
		out = append(out, *st.seats[id])
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Column < out[j].Column
	})

	return out, nil
}

func (s *Store) SeatIDsByNumbers(_ context.Context, screeningID uuid.UUID, seatNumbers []string) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.screenings[screeningID]
	if !ok {
		return nil, repository.ErrScreeningNotFound
	}

	byLabel := make(map[string]uuid.UUID, len(st.seats))
	for id, seat := range st.seats {
		byLabel[seat.SeatNumber] = id
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
		return nil, &repository.SeatsNotFoundError{SeatIDs: missing}
	}

	return out, nil
}

// HoldSeats is all-or-nothing: if any requested seat is missing or not
// available (after lazily expiring stale holds) nothing changes.
func (s *Store) HoldSeats(
	_ context.Context,
	screeningID uuid.UUID,
	seatIDs []uuid.UUID,
	userID int64,
	ttl time.Duration,
) ([]domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.bookableScreening(screeningID)
	if err != nil {
		return nil, err
	}

	if hasDuplicateIDs(seatIDs) {
		return nil, repository.ErrConflict
	}

	s.expireLocked(st, time.Now().UTC())

	var missing []string
	var unavailable []string
	for _, id := range seatIDs {
		seat, ok := st.seats[id]
		if !ok {
			missing = append(missing, id.String())
			continue
		}
		if seat.Status != domain.SeatAvailable {
			unavailable = append(unavailable, seat.SeatNumber)
		}
	}
	if len(missing) > 0 {
		return nil, &repository.SeatsNotFoundError{SeatIDs: missing}
	}
	if len(unavailable) > 0 {
		return nil, &repository.SeatsUnavailableError{SeatNumbers: unavailable}
	}

	now := time.Now().UTC()
	expires := now.Add(ttl)
	out := make([]domain.Seat, 0, len(seatIDs))
	for _, id := range seatIDs {
		seat := st.seats[id]
		seat.Status = domain.SeatReserved
		uid := userID
		at := now
		exp := expires
		seat.ReservedBy = &uid
		seat.ReservedAt = &at
		seat.ReservationExpires = &exp
		out = append(out, *seat)
	}

	s.adjustAvailable(st, -len(seatIDs))

	return out, nil
}

// ConfirmSeats moves the caller's live holds to booked. An expired hold is
// released, stays released, and fails the confirm.
func (s *Store) ConfirmSeats(
	_ context.Context,
	screeningID uuid.UUID,
	seatIDs []uuid.UUID,
	userID int64,
) (int64, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.bookableScreening(screeningID)
	if err != nil {
		return 0, nil, err
	}

	if hasDuplicateIDs(seatIDs) {
		return 0, nil, repository.ErrConflict
	}

	now := time.Now().UTC()

	var missing []string
	var unavailable []string
	var foreign []string
	var expired []uuid.UUID
	var expiredLabels []string

	for _, id := range seatIDs {
		seat, ok := st.seats[id]
		if !ok {
			missing = append(missing, id.String())
			continue
		}
		if seat.Status != domain.SeatReserved {
			unavailable = append(unavailable, seat.SeatNumber)
			continue
		}
		if seat.ReservedBy == nil || *seat.ReservedBy != userID {
			foreign = append(foreign, seat.SeatNumber)
			continue
		}
		if seat.ReservationExpires != nil && !seat.ReservationExpires.After(now) {
			expired = append(expired, id)
			expiredLabels = append(expiredLabels, seat.SeatNumber)
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
		for _, id := range expired {
			s.releaseSeat(st.seats[id])
		}
		s.adjustAvailable(st, len(expired))
		return 0, nil, &repository.HoldExpiredError{SeatNumbers: expiredLabels}
	}

	var total int64
	labels := make([]string, 0, len(seatIDs))
	for _, id := range seatIDs {
		seat := st.seats[id]
		seat.Status = domain.SeatBooked
		seat.ReservedBy = nil
		seat.ReservedAt = nil
		seat.ReservationExpires = nil
		total += seat.PriceCents
		labels = append(labels, seat.SeatNumber)
	}

	return total, labels, nil
}

func (s *Store) ReleaseSeats(_ context.Context, screeningID uuid.UUID, seatIDs []uuid.UUID) (int64, error) {
	return s.release(screeningID, seatIDs, domain.SeatReserved)
}

func (s *Store) ReleaseBooked(_ context.Context, screeningID uuid.UUID, seatIDs []uuid.UUID) (int64, error) {
	return s.release(screeningID, seatIDs, domain.SeatBooked)
}

func (s *Store) release(screeningID uuid.UUID, seatIDs []uuid.UUID, from domain.SeatStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.screenings[screeningID]
	if !ok {
		return 0, repository.ErrScreeningNotFound
	}

	var missing []string
	for _, id := range seatIDs {
		if _, ok := st.seats[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return 0, &repository.SeatsNotFoundError{SeatIDs: missing}
	}

	var released int64
	for _, id := range seatIDs {
		seat := st.seats[id]
		if seat.Status != from {
			continue
		}
		s.releaseSeat(seat)
		released++
	}

	if released > 0 {
		s.adjustAvailable(st, int(released))
	}

	return released, nil
}

func (s *Store) ExpiredScreenings(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []uuid.UUID
	for id, st := range s.screenings {
		for _, seat := range st.seats {
			if seat.Status == domain.SeatReserved &&
				seat.ReservationExpires != nil && !seat.ReservationExpires.After(now) {
				out = append(out, id)
				break
			}
		}
	}

	return out, nil
}

func (s *Store) ExpireScreeningHolds(_ context.Context, screeningID uuid.UUID, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.screenings[screeningID]
	if !ok {
		return 0, repository.ErrScreeningNotFound
	}

	return s.expireLocked(st, now), nil
}

func (s *Store) SetSeatStatusByNumbers(
	_ context.Context,
	screeningID uuid.UUID,
	seatNumbers []string,
	to domain.SeatStatus,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.screenings[screeningID]
	if !ok {
		return 0, repository.ErrScreeningNotFound
	}

	byLabel := make(map[string]*domain.Seat, len(st.seats))
	for _, seat := range st.seats {
		byLabel[seat.SeatNumber] = seat
	}

	var missing []string
	var blocked []string
	var targets []*domain.Seat
	for _, label := range seatNumbers {
		seat, ok := byLabel[label]
		if !ok {
			missing = append(missing, label)
			continue
		}
		if seat.Status == to {
			continue
		}
		if !adminTransitionOK(seat.Status, to) {
			blocked = append(blocked, label)
			continue
		}
		targets = append(targets, seat)
	}
	if len(missing) > 0 {
		return 0, &repository.SeatsNotFoundError{SeatIDs: missing}
	}
	if len(blocked) > 0 {
		return 0, &repository.SeatsUnavailableError{SeatNumbers: blocked}
	}

	delta := 0
	for _, seat := range targets {
		if seat.Status == domain.SeatAvailable {
			delta--
		}
		if to == domain.SeatAvailable {
			delta++
		}
		seat.Status = to
	}

	if delta != 0 {
		s.adjustAvailable(st, delta)
	}

	return int64(len(targets)), nil
}

func (s *Store) Cancel(_ context.Context, screeningID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.screenings[screeningID]
	if !ok {
		return repository.ErrScreeningNotFound
	}

	st.screening.Status = domain.ScreeningCancelled
	st.screening.IsActive = false

	return nil
}

func (s *Store) Insert(_ context.Context, b *domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bookings[b.ID]; exists {
		return repository.ErrConflict
	}

	cp := *b
	s.bookings[b.ID] = &cp

	return nil
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	cp := *b
	return &cp, nil
}

func (s *Store) ListByUser(_ context.Context, userID int64, limit, offset int) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []domain.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			all = append(all, *b)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	return all, nil
}

func (s *Store) SetStatus(
	_ context.Context,
	id uuid.UUID,
	booking domain.BookingStatus,
	payment domain.PaymentStatus,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}

	b.BookingStatus = booking
	b.PaymentStatus = payment

	return nil
}

func (s *Store) bookableScreening(id uuid.UUID) (*screeningState, error) {
	st, ok := s.screenings[id]
	if !ok {
		return nil, repository.ErrScreeningNotFound
	}
	if !st.screening.IsActive || st.screening.Status == domain.ScreeningCancelled {
		return nil, repository.ErrScreeningClosed
	}
	return st, nil
}

func (s *Store) expireLocked(st *screeningState, now time.Time) int64 {
	var freed int64
	for _, seat := range st.seats {
		if seat.Status == domain.SeatReserved &&
			seat.ReservationExpires != nil && !seat.ReservationExpires.After(now) {
			s.releaseSeat(seat)
			freed++
		}
	}
	if freed > 0 {
		s.adjustAvailable(st, int(freed))
	}
	return freed
}

func (s *Store) releaseSeat(seat *domain.Seat) {
	seat.Status = domain.SeatAvailable
	seat.ReservedBy = nil
	seat.ReservedAt = nil
	seat.ReservationExpires = nil
}

// adminTransitionOK narrows the seat state machine to the administrative
// subset: only available seats can be withheld, and only withheld seats can
// be returned to available. Reserved and booked seats leave through the
// release paths instead.
func adminTransitionOK(from, to domain.SeatStatus) bool {
	switch to {
	case domain.SeatBlocked, domain.SeatMaintenance:
		return domain.CanTransition(from, to)
	case domain.SeatAvailable:
		if from != domain.SeatBlocked && from != domain.SeatMaintenance {
			return false
		}
		return domain.CanTransition(from, to)
	default:
		return false
	}
}

func hasDuplicateIDs(seatIDs []uuid.UUID) bool {
	seen := make(map[uuid.UUID]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

func (s *Store) adjustAvailable(st *screeningState, delta int) {
	st.screening.SeatsAvailable += delta
	st.screening.Status = domain.DeriveScreeningStatus(
		st.screening.Status,
		st.screening.SeatsAvailable,
		st.screening.TotalSeats,
	)
}
