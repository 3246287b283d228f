// Package memory provides an in-process remote.Client. It backs dry runs
// and tests: mints are kept in order per origin and block numbers increase
// by one per mint.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/bond/id"
	"github.com/xraph/bond/reading"
	"github.com/xraph/bond/remote"
)

// compile-time interface check
var _ remote.Client = (*Client)(nil)

// Mint is one accepted submission.
type Mint struct {
	Origin  string
	Reading *reading.EnergyReading
	Receipt *remote.Receipt
}

// Client is a fake remote ledger.
type Client struct {
	mu        sync.Mutex
	block     int64
	mints     []Mint
	mintErrs  []error
	stateErrs []error
	calls     map[string]int
}

// New creates an empty remote ledger whose first block is 1.
func New() *Client {
	return &Client{calls: make(map[string]int)}
}

// FailMint queues errors returned by the next Mint calls, one per call.
func (c *Client) FailMint(errs ...error) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mintErrs = append(c.mintErrs, errs...)
	return c
}

// FailState queues errors returned by the next LastState calls.
func (c *Client) FailState(errs ...error) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateErrs = append(c.stateErrs, errs...)
	return c
}

// LastState returns the newest mint for origin as JSON, or an empty object.
func (c *Client) LastState(ctx context.Context, origin string) (*remote.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["last_state"]++

	if err := pop(&c.stateErrs); err != nil {
		return nil, err
	}

	raw := json.RawMessage(`{}`)
	for i := len(c.mints) - 1; i >= 0; i-- {
		m := c.mints[i]
		if m.Origin != origin {
			continue
		}
		data, err := json.Marshal(map[string]any{
			"blockNumber":       m.Receipt.BlockNumber,
			"transactionId":     m.Receipt.TransactionID,
			"accumulatedEnergy": m.Reading.AccumulatedEnergy,
			"measuredAt":        m.Reading.MeasurementTimestamp,
		})
		if err != nil {
			return nil, err
		}
		raw = data
		break
	}
	return &remote.State{Origin: origin, Raw: raw, FetchedAt: time.Now().UTC()}, nil
}

// Mint records r and returns a confirmed receipt.
func (c *Client) Mint(ctx context.Context, r *reading.EnergyReading, origin string) (*remote.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["mint"]++

	if err := pop(&c.mintErrs); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: nil reading", remote.ErrRejected)
	}

	c.block++
	receipt := &remote.Receipt{
		BlockNumber:   c.block,
		TransactionID: id.NewMintID().String(),
		Status:        remote.StatusConfirmed,
	}
	copied := *r
	c.mints = append(c.mints, Mint{Origin: origin, Reading: &copied, Receipt: receipt})

	out := *receipt
	return &out, nil
}

// Mints returns every accepted mint in order.
func (c *Client) Mints() []Mint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Mint, len(c.mints))
	copy(out, c.mints)
	return out
}

// Calls returns how often op ("mint" or "last_state") was invoked,
// including failed calls.
func (c *Client) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

func pop(queue *[]error) error {
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	*queue = (*queue)[1:]
	return err
}
