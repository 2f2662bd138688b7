package booking

import "errors"

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrNotOwner        = errors.New("booking belongs to another user")
	ErrAlreadyFinal    = errors.New("booking already cancelled or completed")
)

// PaymentDeclinedError carries the gateway's decline reason plus the id of
// the failed booking record kept for audit.
type PaymentDeclinedError struct {
	BookingID string
	Reason    string
}

func (e *PaymentDeclinedError) Error() string {
	if e.Reason == "" {
		return "payment declined"
	}
	return "payment declined: " + e.Reason
}

func (e *PaymentDeclinedError) Is(target error) bool {
	return target == ErrPaymentDeclined
}

var ErrPaymentDeclined = errors.New("payment declined")
