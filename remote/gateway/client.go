// Package gateway is an HTTP JSON client for a remote ledger gateway.
//
//	GET  {base}/origins/{origin}/state  -> any JSON document
//	POST {base}/origins/{origin}/mint   <- EnergyReading
//	                                    -> {"blockNumber", "transactionId", "status"}
//
// Requests carry a bearer token when one is configured.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/xraph/bond/reading"
	"github.com/xraph/bond/remote"
)

// compile-time interface check
var _ remote.Client = (*Client)(nil)

// DefaultTimeout bounds a single gateway request.
const DefaultTimeout = 30 * time.Second

// Option configures a gateway Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.http.SetAuthToken(token) }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client is a remote.Client over HTTP.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// New creates a client for the gateway at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(DefaultTimeout).
			SetHeader("Accept", "application/json"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LastState fetches the gateway's snapshot for origin.
func (c *Client) LastState(ctx context.Context, origin string) (*remote.State, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("origin", origin).
		Get("/origins/{origin}/state")
	if err != nil {
		return nil, fmt.Errorf("%w: last state %s: %w", remote.ErrUnavailable, origin, err)
	}
	if err := statusError(resp, "last state", origin); err != nil {
		return nil, err
	}

	body := resp.Body()
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: last state %s: body is not JSON", remote.ErrBadResponse, origin)
	}
	c.logger.Debug("remote state fetched", "origin", origin, "bytes", len(body))

	return &remote.State{
		Origin:    origin,
		Raw:       json.RawMessage(append([]byte(nil), body...)),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// Mint posts r and decodes the receipt.
func (c *Client) Mint(ctx context.Context, r *reading.EnergyReading, origin string) (*remote.Receipt, error) {
	var receipt remote.Receipt
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("origin", origin).
		SetHeader("Content-Type", "application/json").
		SetBody(r).
		SetResult(&receipt).
		Post("/origins/{origin}/mint")
	if err != nil {
		return nil, fmt.Errorf("%w: mint %s: %w", remote.ErrUnavailable, origin, err)
	}
	if err := statusError(resp, "mint", origin); err != nil {
		return nil, err
	}

	if receipt.TransactionID == "" {
		return nil, fmt.Errorf("%w: mint %s: missing transactionId", remote.ErrBadResponse, origin)
	}
	if receipt.Status == "" {
		receipt.Status = remote.StatusPending
	}
	if !receipt.Status.Valid() {
		return nil, fmt.Errorf("%w: mint %s: unknown status %q", remote.ErrBadResponse, origin, receipt.Status)
	}
	if receipt.Status == remote.StatusFailed {
		return &receipt, fmt.Errorf("%w: mint %s: tx %s failed", remote.ErrRejected, origin, receipt.TransactionID)
	}

	c.logger.Debug("reading minted",
		"origin", origin,
		"block", receipt.BlockNumber,
		"tx", receipt.TransactionID,
		"status", receipt.Status,
	)
	return &receipt, nil
}

func statusError(resp *resty.Response, op, origin string) error {
	code := resp.StatusCode()
	switch {
	case code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s %s: HTTP %d", remote.ErrUnavailable, op, origin, code)
	case code >= http.StatusBadRequest:
		return fmt.Errorf("%w: %s %s: HTTP %d: %s", remote.ErrRejected, op, origin, code, truncate(resp.Body(), 200))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
