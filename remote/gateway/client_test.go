package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xraph/bond/reading"
	"github.com/xraph/bond/remote"
	"github.com/xraph/bond/remote/gateway"
	"github.com/xraph/bond/types"
)

func sample() *reading.EnergyReading {
	at := time.Date(2018, 3, 26, 9, 21, 20, 0, time.UTC)
	return reading.New(reading.UnknownDevice(), at, []byte(`{}`), types.MustCanonicalize(875.409090909), at)
}

func TestMint(t *testing.T) {
	var gotAuth string
	var gotBody reading.EnergyReading
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/origins/site-b1/mint" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"blockNumber":42,"transactionId":"0xabc","status":"confirmed"}`))
	}))
	defer srv.Close()

	c := gateway.New(srv.URL, gateway.WithToken("secret"))
	r := sample()
	rcpt, err := c.Mint(context.Background(), r, "site-b1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if rcpt.BlockNumber != 42 || rcpt.TransactionID != "0xabc" || rcpt.Status != remote.StatusConfirmed {
		t.Errorf("unexpected receipt %+v", rcpt)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if !gotBody.Equal(r) {
		t.Error("posted body differs from the reading")
	}
}

func TestMintErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusBadGateway, `oops`, remote.ErrUnavailable},
		{"client error", http.StatusUnprocessableEntity, `{"error":"dup"}`, remote.ErrRejected},
		{"missing tx", http.StatusOK, `{"blockNumber":1}`, remote.ErrBadResponse},
		{"failed status", http.StatusOK, `{"blockNumber":1,"transactionId":"t","status":"failed"}`, remote.ErrRejected},
		{"unknown status", http.StatusOK, `{"blockNumber":1,"transactionId":"t","status":"lost"}`, remote.ErrBadResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := gateway.New(srv.URL).Mint(context.Background(), sample(), "o")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLastState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/origins/site-b1/state" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"lastBlock":41}`))
	}))
	defer srv.Close()

	st, err := gateway.New(srv.URL).LastState(context.Background(), "site-b1")
	if err != nil {
		t.Fatalf("LastState: %v", err)
	}
	if st.Origin != "site-b1" || string(st.Raw) != `{"lastBlock":41}` {
		t.Errorf("unexpected state %+v", st)
	}
}

func TestLastStateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := gateway.New(url, gateway.WithTimeout(time.Second)).LastState(context.Background(), "o")
	if !errors.Is(err, remote.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
