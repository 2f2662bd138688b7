package admin

import "errors"

var (
	ErrInvalidRows       = errors.New("invalid seat row specification")
	ErrInvalidSchedule   = errors.New("screening ends before it starts")
	ErrInvalidBasePrice  = errors.New("base price must be positive")
	ErrInvalidSeatStatus = errors.New("status is not an administrative seat status")
)
