package influx_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xraph/bond/source"
	"github.com/xraph/bond/source/influx"
)

const csvResult = `#datatype,string,long,dateTime:RFC3339,dateTime:RFC3339,dateTime:RFC3339,double,string,string,string
#group,false,false,true,true,false,false,true,true,true
#default,_result,,,,,,,,
,result,table,_start,_stop,_time,_value,_field,_measurement,site
,,0,2018-03-26T08:21:20Z,2018-03-26T09:21:20Z,2018-03-26T09:00:00Z,875.4090909090909,accumulated,energy,b1

`

func newServer(t *testing.T, body string, seen *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/query" {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			raw, _ := io.ReadAll(r.Body)
			var q struct {
				Query string `json:"query"`
			}
			_ = json.Unmarshal(raw, &q)
			*seen = q.Query
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestReadState(t *testing.T) {
	var query string
	srv := newServer(t, csvResult, &query)

	accessed := time.Date(2018, 3, 26, 17, 25, 0, 0, time.FixedZone("SGT", 8*3600))
	src := influx.New(influx.Config{URL: srv.URL, Token: "t", Org: "o", Bucket: "meters", Site: "b1"},
		influx.WithClock(func() time.Time { return accessed }))
	defer src.Close()

	r, err := src.ReadState(context.Background(), source.Context{})
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if r.AccumulatedEnergy != 87540 {
		t.Errorf("energy = %d, want 87540", r.AccumulatedEnergy)
	}
	if got := r.MeasurementTimestamp.Format(time.RFC3339); got != "2018-03-26T09:00:00Z" {
		t.Errorf("measurement = %s", got)
	}
	if !r.AccessTimestamp.Equal(accessed) {
		t.Errorf("access = %s", r.AccessTimestamp)
	}
	for _, want := range []string{`from(bucket: "meters")`, `range(start: -3600s)`, `r["site"] == "b1"`, `last()`} {
		if !strings.Contains(query, want) {
			t.Errorf("query missing %s:\n%s", want, query)
		}
	}
}

func TestNoRowsIsEmptyResponse(t *testing.T) {
	srv := newServer(t, "", nil)
	src := influx.New(influx.Config{URL: srv.URL, Org: "o", Bucket: "meters", Site: "b1"})
	defer src.Close()

	_, err := src.ReadState(context.Background(), source.Context{})
	if !errors.Is(err, source.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestQueryDefaults(t *testing.T) {
	src := influx.New(influx.Config{Bucket: "b", Site: "s", Window: 90 * time.Minute})
	defer src.Close()

	q := src.Query()
	for _, want := range []string{`r["_measurement"] == "energy"`, `r["_field"] == "accumulated"`, `-5400s`} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %s:\n%s", want, q)
		}
	}
	if src.SourceName() != "influx:b/s" {
		t.Errorf("SourceName = %q", src.SourceName())
	}
}
