package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xraph/bond"
	"github.com/xraph/bond/remote"
	"github.com/xraph/bond/remote/gateway"
	remotemem "github.com/xraph/bond/remote/memory"
	"github.com/xraph/bond/source"
	"github.com/xraph/bond/source/influx"
	"github.com/xraph/bond/source/spgroup"
	"github.com/xraph/bond/store"
	"github.com/xraph/bond/store/file"
	storemem "github.com/xraph/bond/store/memory"
)

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// BuildStore builds the configured ledger backend.
func (c *Config) BuildStore(logger *slog.Logger) store.Store {
	if c.Ledger.Backend == LedgerMemory {
		return storemem.New()
	}
	return file.New(c.Ledger.Dir, file.WithLogger(logger))
}

// BuildRemote builds the configured remote ledger client.
func (c *Config) BuildRemote(logger *slog.Logger) remote.Client {
	if c.Remote.Mode == RemoteMemory {
		return remotemem.New()
	}
	opts := []gateway.Option{gateway.WithLogger(logger)}
	if c.Remote.Token != "" {
		opts = append(opts, gateway.WithToken(c.Remote.Token))
	}
	if c.Remote.Timeout > 0 {
		opts = append(opts, gateway.WithTimeout(c.Remote.Timeout))
	}
	return gateway.New(c.Remote.URL, opts...)
}

// RetryPolicy builds the engine's retry policy.
func (c *Config) RetryPolicy() bond.RetryPolicy {
	return bond.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		Delay:       bond.LinearDelay(c.Retry.Step),
	}
}

// BuildItems builds the configured items. The returned closers release source
// clients and must be closed after the engine stops.
func (c *Config) BuildItems(logger *slog.Logger) ([]bond.Item, []io.Closer, error) {
	items := make([]bond.Item, 0, len(c.Items))
	var closers []io.Closer
	for i, ic := range c.Items {
		src, closer, err := buildSource(ic.Source, logger)
		if err != nil {
			return nil, closers, &bond.ConfigurationError{Field: fmt.Sprintf("items[%d].source", i), Message: err.Error()}
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		items = append(items, bond.Item{
			Name:     ic.Name,
			Kind:     bond.Kind(ic.Kind),
			Category: bond.Category(ic.Category),
			Origin:   ic.Origin,
			Source:   src,
		})
	}
	return items, closers, nil
}

func buildSource(sc SourceConfig, logger *slog.Logger) (source.Source, io.Closer, error) {
	switch sc.Type {
	case SourceSPGroup:
		opts := []spgroup.Option{spgroup.WithLogger(logger)}
		if sc.Authorization != "" {
			opts = append(opts, spgroup.WithAuthorization(sc.Authorization))
		}
		return spgroup.New(sc.URL, sc.Site, opts...), nil, nil
	case SourceInflux:
		src := influx.New(influx.Config{
			URL:         sc.URL,
			Token:       sc.Token,
			Org:         sc.Org,
			Bucket:      sc.Bucket,
			Site:        sc.Site,
			Measurement: sc.Measurement,
			Field:       sc.Field,
			Window:      sc.Window,
		}, influx.WithLogger(logger))
		return src, src, nil
	default:
		return nil, nil, fmt.Errorf("unknown source type %q", sc.Type)
	}
}
