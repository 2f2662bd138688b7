// Package payment wraps the external payment gateway. The gateway is a
// collaborator, not part of this service: a declined charge is a normal
// outcome surfaced through Result, while transport problems come back as
// errors. Booking creation treats both as a failed payment and compensates.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Request struct {
	AmountCents int64             `json:"amount_cents"`
	Method      string            `json:"method"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type Result struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type Charger interface {
	Charge(ctx context.Context, req Request) (Result, error)
}

// GatewayClient talks to the payment gateway over HTTP.
type GatewayClient struct {
	baseURL string
	httpc   *http.Client
}

func NewGatewayClient(baseURL string, timeout time.Duration) *GatewayClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &GatewayClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
	}
}

func (c *GatewayClient) Charge(ctx context.Context, req Request) (Result, error) {
	const op = "payment.GatewayClient.Charge"

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("%s:%w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/charges",
		bytes.NewReader(body),
	)
	if err != nil {
		return Result{}, fmt.Errorf("%s:%w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("%s:%w", op, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Result{}, fmt.Errorf("%s: gateway returned %d", op, resp.StatusCode)
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}
