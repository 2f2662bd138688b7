package domain

import (
	"time"

	"github.com/google/uuid"
)

type SeatStatus string

const (
	SeatAvailable   SeatStatus = "available"
	SeatReserved    SeatStatus = "reserved"
	SeatBooked      SeatStatus = "booked"
	SeatBlocked     SeatStatus = "blocked"
	SeatMaintenance SeatStatus = "maintenance"
)

type SeatType string

const (
	SeatStandard   SeatType = "standard"
	SeatPremium    SeatType = "premium"
	SeatVIP        SeatType = "vip"
	SeatCouple     SeatType = "couple"
	SeatAccessible SeatType = "accessible"
)

type ScreeningStatus string

const (
	ScreeningScheduled  ScreeningStatus = "scheduled"
	ScreeningOpen       ScreeningStatus = "open"
	ScreeningAlmostFull ScreeningStatus = "almost_full"
	ScreeningSoldOut    ScreeningStatus = "sold_out"
	ScreeningCancelled  ScreeningStatus = "cancelled"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Seat is one bookable seat within one screening. ReservedBy, ReservedAt and
// ReservationExpires are set iff Status == SeatReserved.
type Seat struct {
	ID                 uuid.UUID  `json:"id"`
	ScreeningID        uuid.UUID  `json:"screening_id"`
	Row                string     `json:"row"`
	Column             int        `json:"column"`
	SeatNumber         string     `json:"seat_number"`
	Status             SeatStatus `json:"status"`
	Type               SeatType   `json:"type"`
	PriceCents         int64      `json:"price_cents"`
	ReservedBy         *int64     `json:"reserved_by,omitempty"`
	ReservedAt         *time.Time `json:"reserved_at,omitempty"`
	ReservationExpires *time.Time `json:"reservation_expires,omitempty"`
}

// Screening is the aggregate that owns its seats. SeatsAvailable is a
// denormalized counter kept equal to the number of available seats by
// mutating it in the same transaction as the seat rows.
type Screening struct {
	ID             uuid.UUID       `json:"id"`
	MovieTitle     string          `json:"movie_title"`
	CinemaName     string          `json:"cinema_name"`
	RoomName       string          `json:"room_name"`
	Format         string          `json:"format"`
	StartsAt       time.Time       `json:"starts_at"`
	EndsAt         time.Time       `json:"ends_at"`
	BasePriceCents int64           `json:"base_price_cents"`
	TotalSeats     int             `json:"total_seats"`
	SeatsAvailable int             `json:"seats_available"`
	Status         ScreeningStatus `json:"status"`
	IsActive       bool            `json:"is_active"`
}

// SeatRowSpec describes one row of the seat grid at screening-creation
// time: a row label, how many seats the row has and the seat type shared by
// the row. Seat prices derive from the screening base price and the type.
type SeatRowSpec struct {
	Label string   `json:"label"`
	Seats int      `json:"seats"`
	Type  SeatType `json:"type"`
}

// SeatRow groups the seats of one row for display, sorted by column.
type SeatRow struct {
	Row   string `json:"row"`
	Seats []Seat `json:"seats"`
}

type ScreeningCounts struct {
	Available int `json:"available"`
	Reserved  int `json:"reserved"`
	Booked    int `json:"booked"`
	Blocked   int `json:"blocked"`
	Total     int `json:"total"`
}

// Booking is a confirmed purchase. Movie, cinema and showtime fields are
// denormalized at creation so the record survives screening archival.
type Booking struct {
	ID            uuid.UUID     `json:"id"`
	UserID        int64         `json:"user_id"`
	ScreeningID   uuid.UUID     `json:"screening_id"`
	MovieTitle    string        `json:"movie_title"`
	CinemaName    string        `json:"cinema_name"`
	RoomName      string        `json:"room_name"`
	StartsAt      time.Time     `json:"starts_at"`
	SeatIDs       []uuid.UUID   `json:"seat_ids"`
	SeatNumbers   []string      `json:"seat_numbers"`
	TotalCents    int64         `json:"total_cents"`
	BookingStatus BookingStatus `json:"booking_status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentRef    string        `json:"payment_ref,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}
