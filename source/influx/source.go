// Package influx reads meter values that a collector has already written to
// InfluxDB. The newest point of one measurement/field for one site tag within
// the lookback window becomes the reading.
package influx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/xraph/bond/reading"
	"github.com/xraph/bond/source"
	"github.com/xraph/bond/types"
)

// compile-time interface check
var _ source.Source = (*Source)(nil)

// Defaults for the query shape.
const (
	DefaultMeasurement = "energy"
	DefaultField       = "accumulated"
	DefaultSiteTag     = "site"
	DefaultWindow      = time.Hour
)

// Config describes where the points live.
type Config struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Site        string
	Measurement string
	Field       string
	SiteTag     string
	Window      time.Duration
}

// Option configures a Source.
type Option func(*Source)

// WithDevice sets the device attached to every reading.
func WithDevice(d reading.Device) Option {
	return func(s *Source) { s.device = d }
}

// WithClock overrides the clock used for access timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Source) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// Source is a source.Source backed by an InfluxDB query.
type Source struct {
	cfg    Config
	client influxdb2.Client
	device reading.Device
	now    func() time.Time
	logger *slog.Logger
}

// New creates a source from cfg. Close releases the underlying client.
func New(cfg Config, opts ...Option) *Source {
	if cfg.Measurement == "" {
		cfg.Measurement = DefaultMeasurement
	}
	if cfg.Field == "" {
		cfg.Field = DefaultField
	}
	if cfg.SiteTag == "" {
		cfg.SiteTag = DefaultSiteTag
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	s := &Source{
		cfg:    cfg,
		client: influxdb2.NewClient(cfg.URL, cfg.Token),
		device: reading.UnknownDevice(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SourceName implements source.Named.
func (s *Source) SourceName() string { return "influx:" + s.cfg.Bucket + "/" + s.cfg.Site }

// Query returns the Flux query the source runs.
func (s *Source) Query() string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%s)
  |> filter(fn: (r) => r["_measurement"] == %q)
  |> filter(fn: (r) => r["_field"] == %q)
  |> filter(fn: (r) => r[%q] == %q)
  |> last()`,
		s.cfg.Bucket, fluxDuration(s.cfg.Window),
		s.cfg.Measurement, s.cfg.Field, s.cfg.SiteTag, s.cfg.Site)
}

type point struct {
	Measurement string    `json:"measurement"`
	Field       string    `json:"field"`
	Site        string    `json:"site"`
	Time        time.Time `json:"time"`
	Value       float64   `json:"value"`
}

// ReadState runs the query and converts the newest point.
func (s *Source) ReadState(ctx context.Context, _ source.Context) (*reading.EnergyReading, error) {
	result, err := s.client.QueryAPI(s.cfg.Org).Query(ctx, s.Query())
	if err != nil {
		return nil, fmt.Errorf("influx: query: %w", err)
	}
	defer result.Close()

	var latest *point
	for result.Next() {
		rec := result.Record()
		var value float64
		switch v := rec.Value().(type) {
		case float64:
			value = v
		case int64:
			value = float64(v)
		case uint64:
			value = float64(v)
		default:
			return nil, fmt.Errorf("influx: unexpected value type %T", v)
		}
		if latest == nil || rec.Time().After(latest.Time) {
			latest = &point{
				Measurement: s.cfg.Measurement,
				Field:       s.cfg.Field,
				Site:        s.cfg.Site,
				Time:        rec.Time().UTC(),
				Value:       value,
			}
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("influx: read result: %w", err)
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: influx: no points for %s=%s", source.ErrEmptyResponse, s.cfg.SiteTag, s.cfg.Site)
	}

	energy, err := types.Canonicalize(latest.Value)
	if err != nil {
		return nil, fmt.Errorf("influx: site %s: %w", s.cfg.Site, err)
	}
	raw, err := json.Marshal(latest)
	if err != nil {
		return nil, fmt.Errorf("influx: encode raw payload: %w", err)
	}

	s.logger.Debug("influx point read", "site", s.cfg.Site, "time", latest.Time, "energy", energy)
	return reading.New(s.device, s.now(), raw, energy, latest.Time), nil
}

// Ping checks the server's health endpoint.
func (s *Source) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influx: ping: %w", err)
	}
	if !ok {
		return fmt.Errorf("influx: ping: server not ready")
	}
	return nil
}

// Close releases the client.
func (s *Source) Close() error {
	s.client.Close()
	return nil
}

// fluxDuration renders d in whole seconds, the unit every Flux range accepts.
func fluxDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs <= 0 {
		secs = int64(DefaultWindow / time.Second)
	}
	return strconv.FormatInt(secs, 10) + "s"
}
