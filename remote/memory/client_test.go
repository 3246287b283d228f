package memory_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/xraph/bond/reading"
	"github.com/xraph/bond/remote"
	"github.com/xraph/bond/remote/memory"
	"github.com/xraph/bond/types"
)

func sample(kwh float64) *reading.EnergyReading {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return reading.New(reading.UnknownDevice(), at, nil, types.MustCanonicalize(kwh), at)
}

func TestMintIncrementsBlocks(t *testing.T) {
	ctx := context.Background()
	c := memory.New()

	for want := int64(1); want <= 3; want++ {
		rcpt, err := c.Mint(ctx, sample(float64(want)), "site-b1")
		if err != nil {
			t.Fatal(err)
		}
		if rcpt.BlockNumber != want {
			t.Errorf("block = %d, want %d", rcpt.BlockNumber, want)
		}
		if rcpt.Status != remote.StatusConfirmed || rcpt.TransactionID == "" {
			t.Errorf("unexpected receipt %+v", rcpt)
		}
	}
	if n := len(c.Mints()); n != 3 {
		t.Errorf("expected 3 mints, got %d", n)
	}
}

func TestLastStateReflectsNewestMint(t *testing.T) {
	ctx := context.Background()
	c := memory.New()

	st, err := c.LastState(ctx, "site-b1")
	if err != nil {
		t.Fatal(err)
	}
	if string(st.Raw) != "{}" {
		t.Errorf("expected empty state, got %s", st.Raw)
	}

	_, _ = c.Mint(ctx, sample(1), "site-b1")
	_, _ = c.Mint(ctx, sample(2), "site-b1")
	_, _ = c.Mint(ctx, sample(9), "other")

	st, err = c.LastState(ctx, "site-b1")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		BlockNumber       int64 `json:"blockNumber"`
		AccumulatedEnergy int64 `json:"accumulatedEnergy"`
	}
	if err := json.Unmarshal(st.Raw, &got); err != nil {
		t.Fatal(err)
	}
	if got.BlockNumber != 2 || got.AccumulatedEnergy != 200 {
		t.Errorf("unexpected state %s", st.Raw)
	}
}

func TestInjectedFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	c := memory.New().FailMint(boom).FailState(remote.ErrUnavailable)

	if _, err := c.Mint(ctx, sample(1), "o"); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if _, err := c.Mint(ctx, sample(1), "o"); err != nil {
		t.Errorf("second mint should succeed: %v", err)
	}
	if _, err := c.LastState(ctx, "o"); !errors.Is(err, remote.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if c.Calls("mint") != 2 || c.Calls("last_state") != 1 {
		t.Errorf("calls: mint=%d last_state=%d", c.Calls("mint"), c.Calls("last_state"))
	}
}
