package reservation

import "errors"

var (
	ErrNoSeatsSelected = errors.New("no seats selected")
	ErrRateLimited     = errors.New("rate limited")
)
