package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/pkg/logger"
)

var (
	ErrTransport         = errors.New("bank transport failure")
	ErrMalformedResponse = errors.New("malformed bank response")
)

// HTTPDoer is the outbound transport; *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Recorder observes bank call latency by classification.
type Recorder interface {
	ObserveBankCall(result string, duration time.Duration)
}

type Config struct {
	BaseURL     string
	PaymentPath string
	Timeout     time.Duration
}

func (c Config) Endpoint() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(c.PaymentPath, "/")
}

// AuthorizationRequest is the bank wire request.
type AuthorizationRequest struct {
	CardNumber string `json:"card_number"`
	ExpiryDate string `json:"expiry_date"`
	Currency   string `json:"currency"`
	Amount     int64  `json:"amount"`
	CVV        string `json:"cvv"`
}

type AuthorizationResponse struct {
	Authorized        bool   `json:"authorized"`
	AuthorizationCode string `json:"authorization_code"`
}

// wireResponse keeps the flag nullable so a missing field is detectable.
type wireResponse struct {
	Authorized        *bool  `json:"authorized"`
	AuthorizationCode string `json:"authorization_code"`
}

type Client struct {
	endpoint string
	timeout  time.Duration
	http     HTTPDoer
	recorder Recorder
	logger   *slog.Logger
}

// NewHTTPClient returns an instrumented client bounded by timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func NewClient(cfg Config, doer HTTPDoer, lg *slog.Logger) *Client {
	if doer == nil {
		doer = NewHTTPClient(cfg.Timeout)
	}
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &Client{
		endpoint: cfg.Endpoint(),
		timeout:  cfg.Timeout,
		http:     doer,
		logger:   lg,
	}
}

// WithRecorder attaches a latency recorder.
func (c *Client) WithRecorder(r Recorder) *Client {
	c.recorder = r
	return c
}

// Authorize issues exactly one POST to the bank. Errors wrap ErrTransport or
// ErrMalformedResponse.
func (c *Client) Authorize(ctx context.Context, req *AuthorizationRequest) (resp *AuthorizationResponse, err error) {
	start := time.Now()
	defer func() {
		if c.recorder != nil {
			c.recorder.ObserveBankCall(Classify(resp, err).String(), time.Since(start))
		}
	}()

	ctx, cancel := internal.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal authorization request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug("sending authorization request",
		"url", c.endpoint,
		"amount", req.Amount,
		"currency", req.Currency)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %w", ErrTransport, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		c.logger.Warn("bank returned non-success status",
			"status", httpResp.StatusCode,
			"url", c.endpoint)
		return nil, fmt.Errorf("%w: unexpected status %d", ErrTransport, httpResp.StatusCode)
	}

	var wire wireResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if wire.Authorized == nil {
		return nil, fmt.Errorf("%w: missing authorized flag", ErrMalformedResponse)
	}

	return &AuthorizationResponse{
		Authorized:        *wire.Authorized,
		AuthorizationCode: wire.AuthorizationCode,
	}, nil
}
