package httpgin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenbook/screenbook/internal/domain"
	"github.com/screenbook/screenbook/internal/payment"
	"github.com/screenbook/screenbook/internal/repository/memory"
	"github.com/screenbook/screenbook/internal/service"
	"github.com/screenbook/screenbook/internal/service/admin"
	"github.com/screenbook/screenbook/internal/service/booking"
	"github.com/screenbook/screenbook/internal/service/query"
	"github.com/screenbook/screenbook/internal/service/reservation"
)

type stubCharger struct {
	result payment.Result
}

func (s *stubCharger) Charge(context.Context, payment.Request) (payment.Result, error) {
	return s.result, nil
}

func newTestRouter(t *testing.T, charger payment.Charger) (*gin.Engine, *memory.Store) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	res := reservation.New(store, nil, nil, nil, nil, reservation.Config{})
	svcs := &service.Services{
		Reservation: res,
		Query:       query.New(store, nil, nil, query.Config{}),
		Booking:     booking.New(res, store, charger, nil, nil, nil),
		Admin:       admin.New(store, nil, nil, nil),
	}

	return NewRouter(svcs, nil, slog.Default()), store
}

func createScreening(t *testing.T, r *gin.Engine) string {
	t.Helper()

	body := fmt.Sprintf(`{
		"movie_title": "Blade Runner",
		"cinema_name": "Lux",
		"room_name": "Hall 1",
		"format": "2D",
		"starts_at": %q,
		"ends_at": %q,
		"base_price_cents": 1100,
		"rows": [
			{"label": "A", "seats": 6, "type": "standard"},
			{"label": "B", "seats": 6, "type": "vip"}
		]
	}`,
		time.Now().Add(2*time.Hour).Format(time.RFC3339),
		time.Now().Add(4*time.Hour).Format(time.RFC3339),
	)

	w := doJSON(r, http.MethodPost, "/admin/screenings", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp CreateScreeningResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ScreeningID
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t, &stubCharger{})

	w := doJSON(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetScreening(t *testing.T) {
	r, _ := newTestRouter(t, &stubCharger{})
	id := createScreening(t, r)

	w := doJSON(r, http.MethodGet, "/screenings/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("ETag"))

	var sc domain.Screening
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sc))
	assert.Equal(t, "Blade Runner", sc.MovieTitle)
	assert.Equal(t, 12, sc.SeatsAvailable)
}

func TestGetScreeningNotFound(t *testing.T) {
	r, _ := newTestRouter(t, &stubCharger{})

	w := doJSON(r, http.MethodGet, "/screenings/6b1be0f4-3a67-4d7c-8e8c-000000000000", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/screenings/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHoldSeatsByLabel(t *testing.T) {
	r, _ := newTestRouter(t, &stubCharger{})
	id := createScreening(t, r)

	w := doJSON(r, http.MethodPost, "/screenings/"+id+"/holds",
		`{"user_id": 7, "seat_numbers": ["A1", "A2"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp CreateHoldResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Seats, 2)
	assert.Equal(t, domain.SeatReserved, resp.Seats[0].Status)
	assert.NotNil(t, resp.ExpiresAt)
}

func TestHoldConflictListsSeats(t *testing.T) {
	r, _ := newTestRouter(t, &stubCharger{})
	id := createScreening(t, r)

	w := doJSON(r, http.MethodPost, "/screenings/"+id+"/holds",
		`{"user_id": 7, "seat_numbers": ["A1"]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, http.MethodPost, "/screenings/"+id+"/holds",
		`{"user_id": 8, "seat_numbers": ["A1", "A2"]}`)
	require.Equal(t, http.StatusConflict, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"A1"}, resp.Seats)
}

func TestHoldValidation(t *testing.T) {
	r, _ := newTestRouter(t, &stubCharger{})
	id := createScreening(t, r)

	// neither ids nor labels
	w := doJSON(r, http.MethodPost, "/screenings/"+id+"/holds", `{"user_id": 7}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// unknown label
	w = doJSON(r, http.MethodPost, "/screenings/"+id+"/holds",
		`{"user_id": 7, "seat_numbers": ["Z9"]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBookingFlow(t *testing.T) {
	r, _ := newTestRouter(t, &stubCharger{
		result: payment.Result{Success: true, Reference: "ch_1"},
	})
	id := createScreening(t, r)

	w := doJSON(r, http.MethodPost, "/screenings/"+id+"/holds",
		`{"user_id": 7, "seat_numbers": ["B1", "B2"]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var hold CreateHoldResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hold))

	ids := make([]string, 0, len(hold.Seats))
	for _, s := range hold.Seats {
		ids = append(ids, s.ID.String())
	}
	body, _ := json.Marshal(map[string]any{
		"user_id":        7,
		"screening_id":   id,
		"seat_ids":       ids,
		"payment_method": "card",
	})

	w = doJSON(r, http.MethodPost, "/bookings", string(body))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var b domain.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	assert.Equal(t, domain.BookingConfirmed, b.BookingStatus)
	// vip seats carry the 1.5x multiplier over the 1100 base
	assert.EqualValues(t, 3300, b.TotalCents)

	w = doJSON(r, http.MethodGet, "/bookings/"+b.ID.String()+"?user_id=7", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/bookings?user_id=7", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/bookings/"+b.ID.String()+"/cancel?user_id=7", "")
	assert.Equal(t, http.StatusOK, w.Code)

	// second cancel conflicts
	w = doJSON(r, http.MethodPost, "/bookings/"+b.ID.String()+"/cancel?user_id=7", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBookingPaymentDeclined(t *testing.T) {
	r, _ := newTestRouter(t, &stubCharger{
		result: payment.Result{Success: false, Reason: "insufficient funds"},
	})
	id := createScreening(t, r)

	w := doJSON(r, http.MethodPost, "/screenings/"+id+"/holds",
		`{"user_id": 7, "seat_numbers": ["A3"]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var hold CreateHoldResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hold))

	body, _ := json.Marshal(map[string]any{
		"user_id":        7,
		"screening_id":   id,
		"seat_ids":       []string{hold.Seats[0].ID.String()},
		"payment_method": "card",
	})

	w = doJSON(r, http.MethodPost, "/bookings", string(body))
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	// the seat is available again after compensation
	w = doJSON(r, http.MethodGet, "/screenings/"+id+"/availability", "")
	require.Equal(t, http.StatusOK, w.Code)

	var av query.Availability
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &av))
	assert.Equal(t, 12, av.Counts.Available)
}

func TestReleaseSeats(t *testing.T) {
	r, _ := newTestRouter(t, &stubCharger{})
	id := createScreening(t, r)

	w := doJSON(r, http.MethodPost, "/screenings/"+id+"/holds",
		`{"user_id": 7, "seat_numbers": ["A4"]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var hold CreateHoldResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hold))

	body, _ := json.Marshal(map[string]any{
		"seat_ids": []string{hold.Seats[0].ID.String()},
	})
	w = doJSON(r, http.MethodPost, "/screenings/"+id+"/release", string(body))
	require.Equal(t, http.StatusOK, w.Code)

	var resp ReleaseSeatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp.Released)
}

func TestSeatMapEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, &stubCharger{})
	id := createScreening(t, r)

	w := doJSON(r, http.MethodGet, "/screenings/"+id+"/seats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var sm query.SeatMap
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sm))
	require.Len(t, sm.Rows, 2)
	assert.Equal(t, "A", sm.Rows[0].Row)
}

func TestAdminSeatStatus(t *testing.T) {
	r, _ := newTestRouter(t, &stubCharger{})
	id := createScreening(t, r)

	w := doJSON(r, http.MethodPost, "/admin/screenings/"+id+"/seat-status",
		`{"seat_numbers": ["A1", "A2"], "status": "blocked"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SetSeatStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 2, resp.Changed)

	// blocked seats cannot be held
	w = doJSON(r, http.MethodPost, "/screenings/"+id+"/holds",
		`{"user_id": 7, "seat_numbers": ["A1"]}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminCancelScreening(t *testing.T) {
	r, _ := newTestRouter(t, &stubCharger{})
	id := createScreening(t, r)

	w := doJSON(r, http.MethodPost, "/admin/screenings/"+id+"/cancel", "")
	require.Equal(t, http.StatusOK, w.Code)

	// holds on a cancelled screening are rejected
	w = doJSON(r, http.MethodPost, "/screenings/"+id+"/holds",
		`{"user_id": 7, "seat_numbers": ["A1"]}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestETagNotModified(t *testing.T) {
	r, _ := newTestRouter(t, &stubCharger{})
	id := createScreening(t, r)

	w := doJSON(r, http.MethodGet, "/screenings/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/screenings/"+id, nil)
	req.Header.Set("If-None-Match", etag)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusNotModified, w2.Code)
}
