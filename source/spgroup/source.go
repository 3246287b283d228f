// Package spgroup reads hourly production from an SP Group style sites feed.
//
// The feed answers GET {base}/produced?limit=5&start=last_hour&end=now with
//
//	{"sites": [{"site_id": "b1", "start_time": "...Z", "end_time": "...Z",
//	            "energy": {"unit": "wh", "data": 875.409}}]}
//
// The entry whose site_id matches the configured site becomes the reading.
package spgroup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/xraph/bond/reading"
	"github.com/xraph/bond/source"
	"github.com/xraph/bond/types"
)

// compile-time interface check
var _ source.Source = (*Source)(nil)

// DefaultLimit is the number of site entries requested per read.
const DefaultLimit = 5

// Response is the feed's JSON body.
type Response struct {
	Sites []Site `json:"sites"`
}

// Site is one entry of the feed.
type Site struct {
	SiteID    string `json:"site_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Energy    struct {
		Unit string  `json:"unit"`
		Data float64 `json:"data"`
	} `json:"energy"`
}

// Option configures a Source.
type Option func(*Source)

// WithAuthorization sets the raw Authorization header value.
func WithAuthorization(value string) Option {
	return func(s *Source) { s.authorization = value }
}

// WithLimit overrides DefaultLimit.
func WithLimit(n int) Option {
	return func(s *Source) { s.limit = n }
}

// WithClock overrides the clock used for access timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Source) { s.now = now }
}

// WithTimeout bounds a single feed request.
func WithTimeout(d time.Duration) Option {
	return func(s *Source) { s.http.SetTimeout(d) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// Source is a source.Source for one site of the feed.
type Source struct {
	site          string
	authorization string
	limit         int
	http          *resty.Client
	now           func() time.Time
	logger        *slog.Logger
}

// New creates a source for site on the feed at baseURL.
func New(baseURL, site string, opts ...Option) *Source {
	s := &Source{
		site:   site,
		limit:  DefaultLimit,
		http:   resty.New().SetBaseURL(baseURL).SetTimeout(30 * time.Second),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SourceName implements source.Named.
func (s *Source) SourceName() string { return "spgroup:" + s.site }

// ReadState fetches the last hour and returns the entry for the site.
func (s *Source) ReadState(ctx context.Context, _ source.Context) (*reading.EnergyReading, error) {
	req := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"limit": strconv.Itoa(s.limit),
			"start": "last_hour",
			"end":   "now",
		})
	if s.authorization != "" {
		req.SetHeader("Authorization", s.authorization)
	}

	resp, err := req.Get("/produced")
	if err != nil {
		return nil, fmt.Errorf("spgroup: request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("spgroup: HTTP %d", resp.StatusCode())
	}

	body := resp.Body()
	entry, err := s.match(body)
	if err != nil {
		return nil, err
	}

	energy, err := types.Canonicalize(entry.Energy.Data)
	if err != nil {
		return nil, fmt.Errorf("spgroup: site %s: %w", s.site, err)
	}
	measuredAt, err := time.Parse(time.RFC3339, entry.EndTime)
	if err != nil {
		return nil, fmt.Errorf("spgroup: site %s: end_time: %w", s.site, err)
	}

	s.logger.Debug("spgroup entry matched",
		"site", s.site,
		"end_time", entry.EndTime,
		"unit", entry.Energy.Unit,
		"energy", energy,
	)
	return reading.New(
		reading.UnknownDevice(),
		s.now(),
		append([]byte(nil), body...),
		energy,
		measuredAt,
	), nil
}

func (s *Source) match(body []byte) (*Site, error) {
	var payload Response
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("spgroup: decode: %w", err)
	}
	if len(payload.Sites) == 0 {
		return nil, fmt.Errorf("%w: spgroup: no sites in response", source.ErrEmptyResponse)
	}
	for i := range payload.Sites {
		if payload.Sites[i].SiteID == s.site {
			return &payload.Sites[i], nil
		}
	}
	return nil, fmt.Errorf("%w: spgroup: site %q not in response", source.ErrEmptyResponse, s.site)
}
