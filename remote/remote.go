// Package remote defines the contract with the external ledger that mints
// readings. The remote side is treated as unreliable: any call may fail and
// the caller decides whether to retry.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/xraph/bond/reading"
)

// Status is the confirmation state the remote reports for a mint.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusFailed:
		return true
	}
	return false
}

var (
	// ErrRejected means the remote answered but refused the mint.
	ErrRejected = errors.New("remote: mint rejected")

	// ErrUnavailable means the remote could not be reached or answered 5xx.
	ErrUnavailable = errors.New("remote: unavailable")

	// ErrBadResponse means the remote answered with something unparseable.
	ErrBadResponse = errors.New("remote: malformed response")
)

// State is an opaque snapshot of what the remote holds for an origin. It is
// context for sources and telemetry; nothing validates it against the local
// chain.
type State struct {
	Origin    string          `json:"origin"`
	Raw       json.RawMessage `json:"raw"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// String returns the raw snapshot for log lines.
func (s *State) String() string {
	if s == nil || len(s.Raw) == 0 {
		return "<none>"
	}
	return string(s.Raw)
}

// Receipt is what the remote returns for an accepted mint.
type Receipt struct {
	BlockNumber   int64  `json:"blockNumber"`
	TransactionID string `json:"transactionId"`
	Status        Status `json:"status"`
}

// Client talks to the remote ledger.
type Client interface {
	// LastState returns the latest snapshot for origin. Best effort.
	LastState(ctx context.Context, origin string) (*State, error)

	// Mint submits r under origin and blocks until the remote accepts or
	// rejects it.
	Mint(ctx context.Context, r *reading.EnergyReading, origin string) (*Receipt, error)
}
