package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/screenbook/screenbook/internal/domain"
	"github.com/screenbook/screenbook/internal/repository"
	redisrepo "github.com/screenbook/screenbook/internal/repository/redis"
	"github.com/screenbook/screenbook/internal/service"
	"github.com/screenbook/screenbook/internal/service/admin"
	"github.com/screenbook/screenbook/internal/service/booking"
	"github.com/screenbook/screenbook/internal/service/query"
	"github.com/screenbook/screenbook/internal/service/reservation"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/screenings/:id", handleGetScreening(svcs))
	r.GET("/screenings/:id/availability", handleGetAvailability(svcs))
	r.GET("/screenings/:id/seats", handleGetSeatMap(svcs))

	r.POST("/screenings/:id/holds", handleCreateHold(svcs, idem))
	r.POST("/screenings/:id/release", handleReleaseSeats(svcs))

	r.POST("/bookings", handleCreateBooking(svcs, idem))
	r.GET("/bookings", handleListBookings(svcs))
	r.GET("/bookings/:id", handleGetBooking(svcs))
	r.POST("/bookings/:id/cancel", handleCancelBooking(svcs))

	// Admin API
	// TODO: add admin auth middleware
	adm := r.Group("/admin")
	{
		adm.POST("/screenings", handleCreateScreening(svcs))
		adm.POST("/screenings/:id/seat-status", handleSetSeatStatus(svcs))
		adm.POST("/screenings/:id/cancel", handleCancelScreening(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Get screening
// @Param    id  path  string  true  "Screening ID (uuid)"
// @Success  200  {object}  domain.Screening
// @Failure  404  {object}  ErrorResponse
// @Router   /screenings/{id} [get]
func handleGetScreening(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		sc, err := svcs.Query.GetScreening(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 30s
		writeJSONWithCache(c, http.StatusOK, sc, "public, max-age=30", true)
	}
}

// @Summary  Get availability counters
// @Param    id  path  string  true  "Screening ID (uuid)"
// @Success  200  {object}  query.Availability
// @Router   /screenings/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		av, err := svcs.Query.Availability(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 5s, counters churn fast
		writeJSONWithCache(c, http.StatusOK, av, "public, max-age=5", true)
	}
}

// @Summary  Get seat map grouped by row
// @Param    id  path  string  true  "Screening ID (uuid)"
// @Success  200  {object}  query.SeatMap
// @Router   /screenings/{id}/seats [get]
func handleGetSeatMap(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		sm, err := svcs.Query.SeatMap(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, sm, "public, max-age=5", true)
	}
}

// @Summary  Hold seats (idempotent)
// @Param    id  path  string  true  "Screening ID (uuid)"
// @Param    req body  CreateHoldRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} CreateHoldResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "seats unavailable / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /screenings/{id}/holds [post]
func handleCreateHold(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		screeningID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req CreateHoldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if len(req.SeatIDs) == 0 && len(req.SeatNumbers) == 0 {
			badRequest(c, "seat_ids or seat_numbers required")
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemHold(screeningID, idemKey)

			if replayIdem(c, idem, idemStorageKey, idemKey) {
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if replayIdem(c, idem, idemStorageKey, idemKey) {
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		seatIDs, err := resolveSeatIDs(c, svcs, screeningID, req.SeatIDs, req.SeatNumbers)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		ttl := time.Duration(req.TTLSec) * time.Second
		rlKey := "ip:" + c.ClientIP()

		seats, err := svcs.Reservation.Hold(
			c.Request.Context(),
			screeningID,
			seatIDs,
			req.UserID,
			ttl,
			rlKey,
		)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			if errors.Is(err, reservation.ErrRateLimited) {
				c.Header("Retry-After", "60")
				c.JSON(
					http.StatusTooManyRequests,
					ErrorResponse{Error: "rate limited"},
				)
				return
			}
			respondErr(c, err)
			return
		}

		resp := CreateHoldResponse{
			ScreeningID: screeningID.String(),
			Seats:       seats,
		}
		if len(seats) > 0 {
			resp.ExpiresAt = seats[0].ReservationExpires
		}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Release held seats
// @Param    id  path  string  true  "Screening ID (uuid)"
// @Param    req body  ReleaseSeatsRequest true "payload"
// @Success  200 {object} ReleaseSeatsResponse
// @Router   /screenings/{id}/release [post]
func handleReleaseSeats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		screeningID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req ReleaseSeatsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		seatIDs, ok := parseUUIDs(c, req.SeatIDs)
		if !ok {
			return
		}
		released, err := svcs.Reservation.Release(c.Request.Context(), screeningID, seatIDs)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ReleaseSeatsResponse{Released: released})
	}
}

// @Summary  Create booking from held seats (idempotent)
// @Param    req body  CreateBookingRequest true "payload"
// @Success  201 {object} domain.Booking
// @Failure  402 {object} ErrorResponse "payment declined"
// @Failure  409 {object} ErrorResponse
// @Router   /bookings [post]
func handleCreateBooking(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		screeningID, err := uuid.Parse(req.ScreeningID)
		if err != nil {
			badRequest(c, "invalid screening_id")
			return
		}
		seatIDs, ok := parseUUIDs(c, req.SeatIDs)
		if !ok {
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemBooking(idemKey)

			if replayIdem(c, idem, idemStorageKey, idemKey) {
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if replayIdem(c, idem, idemStorageKey, idemKey) {
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		b, err := svcs.Booking.Create(c.Request.Context(), booking.CreateParams{
			ScreeningID:   screeningID,
			SeatIDs:       seatIDs,
			UserID:        req.UserID,
			PaymentMethod: req.PaymentMethod,
		})
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		if idemStorageKey != "" && idem != nil {
			raw, _ := json.Marshal(b)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(raw))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, b)
	}
}

// @Summary  List bookings for a user
// @Param    user_id query  int  true  "User ID"
// @Param    limit   query  int  false "page size"
// @Param    offset  query  int  false "offset"
// @Success  200 {array} domain.Booking
// @Router   /bookings [get]
func handleListBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
		if err != nil || userID <= 0 {
			badRequest(c, "invalid user_id")
			return
		}
		limit := parseIntDefault(c.Query("limit"), 20)
		offset := parseIntDefault(c.Query("offset"), 0)

		out, err := svcs.Booking.ListByUser(c.Request.Context(), userID, limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Get booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} domain.Booking
// @Router   /bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		userID, _ := strconv.ParseInt(c.Query("user_id"), 10, 64)

		b, err := svcs.Booking.Get(c.Request.Context(), id, userID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Cancel booking and refund
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Param    user_id query  int  true  "User ID"
// @Success  200 {object} domain.Booking
// @Failure  403 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "already cancelled"
// @Router   /bookings/{id}/cancel [post]
func handleCancelBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
		if err != nil || userID <= 0 {
			badRequest(c, "invalid user_id")
			return
		}

		b, err := svcs.Booking.Cancel(c.Request.Context(), id, userID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Create screening with seat grid
// @Param    req body  CreateScreeningRequest true "payload"
// @Success  201 {object} CreateScreeningResponse
// @Router   /admin/screenings [post]
func handleCreateScreening(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateScreeningRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		starts, err := parseRFC3339(req.StartsAt)
		if err != nil {
			badRequest(c, "invalid starts_at (RFC3339)")
			return
		}
		ends, err := parseRFC3339(req.EndsAt)
		if err != nil {
			badRequest(c, "invalid ends_at (RFC3339)")
			return
		}

		rows := make([]domain.SeatRowSpec, 0, len(req.Rows))
		for _, r := range req.Rows {
			rows = append(rows, domain.SeatRowSpec{
				Label: r.Label,
				Seats: r.Seats,
				Type:  domain.SeatType(r.Type),
			})
		}

		id, err := svcs.Admin.CreateScreening(c.Request.Context(), admin.CreateScreeningParams{
			MovieTitle:     req.MovieTitle,
			CinemaName:     req.CinemaName,
			RoomName:       req.RoomName,
			Format:         req.Format,
			StartsAt:       starts,
			EndsAt:         ends,
			BasePriceCents: req.BasePriceCents,
			Rows:           rows,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateScreeningResponse{ScreeningID: id.String()})
	}
}

// @Summary  Block, unblock or mark seats under maintenance
// @Param    id  path  string  true  "Screening ID (uuid)"
// @Param    req body  SetSeatStatusRequest true "payload"
// @Success  200 {object} SetSeatStatusResponse
// @Router   /admin/screenings/{id}/seat-status [post]
func handleSetSeatStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		screeningID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req SetSeatStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		changed, err := svcs.Admin.SetSeatStatus(
			c.Request.Context(),
			screeningID,
			req.SeatNumbers,
			domain.SeatStatus(req.Status),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, SetSeatStatusResponse{Changed: changed})
	}
}

// @Summary  Cancel screening
// @Param    id  path  string  true  "Screening ID (uuid)"
// @Success  200 {object} map[string]string
// @Router   /admin/screenings/{id}/cancel [post]
func handleCancelScreening(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		screeningID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := svcs.Admin.CancelScreening(c.Request.Context(), screeningID); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
	}
}

// --- Helpers ---

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func parseUUIDs(c *gin.Context, in []string) ([]uuid.UUID, bool) {
	out := make([]uuid.UUID, 0, len(in))
	for _, s := range in {
		id, err := uuid.Parse(s)
		if err != nil {
			badRequest(c, "invalid seat id "+s)
			return nil, false
		}
		out = append(out, id)
	}
	return out, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// resolveSeatIDs accepts either raw seat ids or display labels like "A12".
func resolveSeatIDs(
	c *gin.Context,
	svcs *service.Services,
	screeningID uuid.UUID,
	rawIDs []string,
	labels []string,
) ([]uuid.UUID, error) {
	if len(rawIDs) > 0 {
		out := make([]uuid.UUID, 0, len(rawIDs))
		for _, s := range rawIDs {
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, &repository.SeatsNotFoundError{SeatIDs: []string{s}}
			}
			out = append(out, id)
		}
		return out, nil
	}
	return svcs.Query.ResolveSeatIDs(c.Request.Context(), screeningID, labels)
}

// replayIdem replays a stored idempotent response if one exists.
func replayIdem(
	c *gin.Context,
	idem *redisrepo.IdempotencyStore,
	storageKey, idemKey string,
) bool {
	payload, ok, _ := idem.GetResult(c.Request.Context(), storageKey)
	if !ok {
		return false
	}
	c.Header("Idempotency-Key", idemKey)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
	return true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var unavailable *repository.SeatsUnavailableError
	var notFoundSeats *repository.SeatsNotFoundError
	var expired *repository.HoldExpiredError
	var foreign *repository.NotHolderError
	var declined *booking.PaymentDeclinedError

	switch {
	// repository typed errors carry the offending seat labels
	case errors.As(err, &unavailable):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "seats unavailable",
			Seats: unavailable.SeatNumbers,
		})
		return
	case errors.As(err, &expired):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "hold expired",
			Seats: expired.SeatNumbers,
		})
		return
	case errors.As(err, &foreign):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "seats held by another user",
			Seats: foreign.SeatNumbers,
		})
		return
	case errors.As(err, &notFoundSeats):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "seats not found",
			Seats: notFoundSeats.SeatIDs,
		})
		return
	// booking service
	case errors.As(err, &declined):
		c.JSON(http.StatusPaymentRequired, ErrorResponse{Error: declined.Error()})
		return
	case errors.Is(err, booking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
		return
	case errors.Is(err, booking.ErrNotOwner):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "booking belongs to another user"})
		return
	case errors.Is(err, booking.ErrAlreadyFinal):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking already cancelled or completed"})
		return
	// reservation service
	case errors.Is(err, reservation.ErrNoSeatsSelected):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no seats selected"})
		return
	// admin service
	case errors.Is(err, admin.ErrInvalidRows),
		errors.Is(err, admin.ErrInvalidSchedule),
		errors.Is(err, admin.ErrInvalidBasePrice),
		errors.Is(err, admin.ErrInvalidSeatStatus):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	// shared repository sentinels
	case errors.Is(err, query.ErrScreeningNotFound),
		errors.Is(err, repository.ErrScreeningNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "screening not found"})
		return
	case errors.Is(err, repository.ErrScreeningClosed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "screening is not open for booking"})
		return
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
		return
	case errors.Is(err, repository.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
