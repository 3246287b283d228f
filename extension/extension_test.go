package extension

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/xraph/bond"
	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/plugin"
	remotememory "github.com/xraph/bond/remote/memory"
	"github.com/xraph/bond/source"
	"github.com/xraph/bond/store/memory"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

type blockingHook struct {
	ended chan error
}

func (blockingHook) Name() string { return "blocking" }

func (b blockingHook) OnReadingAppended(ctx context.Context, _ plugin.Subject, _ *chain.Record) error {
	<-ctx.Done()
	b.ended <- ctx.Err()
	return nil
}

func downSource() source.Source {
	return source.Func(func(context.Context, source.Context) (*bond.Reading, error) {
		return nil, errors.New("meter offline")
	})
}

func TestBuildEngineOptsAppliesConfig(t *testing.T) {
	sleeper := &recordingSleeper{}
	hook := blockingHook{ended: make(chan error, 1)}
	item := bond.Item{Name: "solar", Kind: bond.Production, Category: bond.Hourly, Origin: "b1", Source: downSource()}

	e := New(
		WithStore(memory.New()),
		WithRemote(remotememory.New()),
		WithItems(item),
		WithPlugin(hook),
		WithEngineOption(bond.WithSleeper(sleeper)),
		WithMaxAttempts(4),
		WithBackoffStep(time.Minute),
		WithHookTimeout(30*time.Millisecond),
	)
	e.config = e.mergeWithDefaults(e.config)
	eng := bond.New(e.buildEngineOpts()...)

	res := eng.Reconcile(context.Background(), item)
	if res.Reconciled || res.Attempts != 4 {
		t.Fatalf("attempts = %d, want 4", res.Attempts)
	}
	want := []time.Duration{0, time.Minute, 2 * time.Minute, 3 * time.Minute}
	if fmt.Sprint(sleeper.delays) != fmt.Sprint(want) {
		t.Errorf("delays = %v, want %v", sleeper.delays, want)
	}

	start := time.Now()
	eng.Plugins().EmitReadingAppended(context.Background(), plugin.Subject{Item: "solar"}, &chain.Record{})
	if err := <-hook.ended; !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("hook ended with %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("hook timeout not applied, waited %v", elapsed)
	}
}

func TestDefaultsFillUnsetFields(t *testing.T) {
	e := New()
	cfg := e.mergeWithDefaults(e.config)
	if cfg != DefaultConfig() {
		t.Errorf("config = %+v, want %+v", cfg, DefaultConfig())
	}

	e.config = cfg
	e.store = memory.New()
	e.remote = remotememory.New()
	eng := bond.New(e.buildEngineOpts()...)
	if err := eng.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestMergeConfigurations(t *testing.T) {
	tests := []struct {
		name         string
		file, option Config
		want         Config
	}{
		{
			name:   "file wins",
			file:   Config{MaxAttempts: 5, BackoffStep: time.Minute},
			option: Config{MaxAttempts: 2, BackoffStep: time.Second},
			want:   Config{MaxAttempts: 5, BackoffStep: time.Minute, HookTimeout: 5 * time.Second},
		},
		{
			name:   "options fill gaps",
			file:   Config{},
			option: Config{MaxAttempts: 2, HookTimeout: time.Second},
			want:   Config{MaxAttempts: 2, BackoffStep: 300 * time.Second, HookTimeout: time.Second},
		},
		{
			name:   "disable migrate from options",
			file:   Config{},
			option: Config{DisableMigrate: true},
			want:   Config{DisableMigrate: true, MaxAttempts: 3, BackoffStep: 300 * time.Second, HookTimeout: 5 * time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New().mergeConfigurations(tt.file, tt.option); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
