package httpgin

import (
	"time"

	"github.com/screenbook/screenbook/internal/domain"
)

type CreateHoldRequest struct {
	UserID      int64    `json:"user_id" binding:"required"`
	SeatIDs     []string `json:"seat_ids" binding:"omitempty,dive,uuid"`
	SeatNumbers []string `json:"seat_numbers" binding:"omitempty,dive,required"`
	TTLSec      int      `json:"ttl_sec"`
}

type ReleaseSeatsRequest struct {
	SeatIDs []string `json:"seat_ids" binding:"required,min=1,dive,uuid"`
}

type CreateBookingRequest struct {
	UserID        int64    `json:"user_id" binding:"required"`
	ScreeningID   string   `json:"screening_id" binding:"required,uuid"`
	SeatIDs       []string `json:"seat_ids" binding:"required,min=1,dive,uuid"`
	PaymentMethod string   `json:"payment_method" binding:"required"`
}

type CreateScreeningRequest struct {
	MovieTitle     string        `json:"movie_title" binding:"required"`
	CinemaName     string        `json:"cinema_name" binding:"required"`
	RoomName       string        `json:"room_name" binding:"required"`
	Format         string        `json:"format"`
	StartsAt       string        `json:"starts_at" binding:"required"`
	EndsAt         string        `json:"ends_at" binding:"required"`
	BasePriceCents int64         `json:"base_price_cents" binding:"required,gt=0"`
	Rows           []SeatRowSpec `json:"rows" binding:"required,min=1,dive"`
}

type SeatRowSpec struct {
	Label string `json:"label" binding:"required"`
	Seats int    `json:"seats" binding:"required,gt=0"`
	Type  string `json:"type" binding:"required"`
}

type SetSeatStatusRequest struct {
	SeatNumbers []string `json:"seat_numbers" binding:"required,min=1,dive,required"`
	Status      string   `json:"status" binding:"required,oneof=blocked maintenance available"`
}

type ErrorResponse struct {
	Error string   `json:"error"`
	Seats []string `json:"seats,omitempty"`
}

type CreateHoldResponse struct {
	ScreeningID string        `json:"screening_id"`
	Seats       []domain.Seat `json:"seats"`
	ExpiresAt   *time.Time    `json:"expires_at,omitempty"`
}

type ReleaseSeatsResponse struct {
	Released int64 `json:"released"`
}

type CreateScreeningResponse struct {
	ScreeningID string `json:"screening_id"`
}

type SetSeatStatusResponse struct {
	Changed int64 `json:"changed"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
