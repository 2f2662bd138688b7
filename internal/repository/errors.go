package repository

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrScreeningNotFound = errors.New("screening not found")
	ErrScreeningClosed   = errors.New("screening is closed for booking")
	ErrSeatNotFound      = errors.New("seat not found in screening")
	ErrSeatsUnavailable  = errors.New("some seats unavailable")
	ErrHoldExpired       = errors.New("hold expired")
	ErrNotHolder         = errors.New("seat held by another user")
)

// SeatsUnavailableError carries the labels of the seats that violated the
// transition guard, so callers can tell the client exactly which seats
// caused the conflict.
type SeatsUnavailableError struct {
	SeatNumbers []string
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("seats unavailable: %v", e.SeatNumbers)
}

func (e *SeatsUnavailableError) Is(target error) bool { return target == ErrSeatsUnavailable }

type SeatsNotFoundError struct {
	SeatIDs []string
}

func (e *SeatsNotFoundError) Error() string {
	return fmt.Sprintf("seats not found: %v", e.SeatIDs)
}

func (e *SeatsNotFoundError) Is(target error) bool { return target == ErrSeatNotFound }

type HoldExpiredError struct {
	SeatNumbers []string
}

func (e *HoldExpiredError) Error() string {
	return fmt.Sprintf("hold expired for seats: %v", e.SeatNumbers)
}

func (e *HoldExpiredError) Is(target error) bool { return target == ErrHoldExpired }

type NotHolderError struct {
	SeatNumbers []string
}

func (e *NotHolderError) Error() string {
	return fmt.Sprintf("seats held by another user: %v", e.SeatNumbers)
}

func (e *NotHolderError) Is(target error) bool { return target == ErrNotHolder }
