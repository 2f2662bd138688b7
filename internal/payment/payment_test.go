package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayClientCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/charges", r.URL.Path)

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 2400, req.AmountCents)
		assert.Equal(t, "card", req.Method)

		json.NewEncoder(w).Encode(Result{Success: true, Reference: "ch_789"})
	}))
	defer srv.Close()

	client := NewGatewayClient(srv.URL, time.Second)
	res, err := client.Charge(context.Background(), Request{
		AmountCents: 2400,
		Method:      "card",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ch_789", res.Reference)
}

func TestGatewayClientDecline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(Result{Success: false, Reason: "card expired"})
	}))
	defer srv.Close()

	client := NewGatewayClient(srv.URL, time.Second)
	res, err := client.Charge(context.Background(), Request{AmountCents: 100, Method: "card"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "card expired", res.Reason)
}

func TestGatewayClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewGatewayClient(srv.URL, time.Second)
	_, err := client.Charge(context.Background(), Request{AmountCents: 100, Method: "card"})
	assert.Error(t, err)
}

func TestGatewayClientUnreachable(t *testing.T) {
	client := NewGatewayClient("http://127.0.0.1:1", 100*time.Millisecond)
	_, err := client.Charge(context.Background(), Request{AmountCents: 100, Method: "card"})
	assert.Error(t, err)
}
