package bond

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/id"
	"github.com/xraph/bond/plugin"
	"github.com/xraph/bond/reading"
	"github.com/xraph/bond/remote"
	"github.com/xraph/bond/source"
	"github.com/xraph/bond/store"
	"github.com/xraph/bond/types"
)

// Step names a stage of a single reconciliation attempt.
type Step string

// Attempt stages, in order.
const (
	StepLocalHash   Step = "fetch_local_hash"
	StepRemoteState Step = "fetch_remote_state"
	StepReadSource  Step = "read_source"
	StepAppend      Step = "append_local"
	StepMint        Step = "mint_remote"
	StepVerify      Step = "verify"
)

// Engine is the reconciliation pipeline. It reads each configured item,
// appends the reading to the item's local ledger and mints it remotely.
type Engine struct {
	store   store.Store
	remote  remote.Client
	items   []Item
	retry   RetryPolicy
	sleeper Sleeper
	now     func() time.Time
	plugins *plugin.Registry
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates a new Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		retry:   DefaultRetryPolicy(),
		sleeper: TimerSleeper,
		now:     time.Now,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Engine) { e.plugins.WithTimeout(d) }
}

// WithStore sets the local ledger backend.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithRemote sets the remote ledger client.
func WithRemote(c remote.Client) Option {
	return func(e *Engine) { e.remote = c }
}

// WithItems appends configured items. Order within a kind is kept.
func WithItems(items ...Item) Option {
	return func(e *Engine) { e.items = append(e.items, items...) }
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Engine) { e.retry = p }
}

// WithSleeper overrides TimerSleeper.
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) { e.sleeper = s }
}

// WithClock sets the clock used for elapsed times.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Items returns the configured items.
func (e *Engine) Items() []Item {
	return slices.Clone(e.items)
}

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Validate checks that the engine can run.
func (e *Engine) Validate() error {
	var errs MultiError
	if e.store == nil {
		errs.Add(ErrNoLedger)
	}
	if e.remote == nil {
		errs.Add(ErrNoRemote)
	}
	errs.Add(e.retry.Validate())

	seen := make(map[string]bool, len(e.items))
	for _, item := range e.items {
		if err := item.Validate(); err != nil {
			errs.Add(err)
			continue
		}
		if seen[item.Name] {
			errs.Add(fmt.Errorf("%w: duplicate name %q", ErrInvalidItem, item.Name))
		}
		seen[item.Name] = true
	}
	return errs.ErrOrNil()
}

// Start validates the configuration, migrates the ledgers and initializes
// plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Validate(); err != nil {
		return err
	}

	if err := e.store.Migrate(ctx); err != nil {
		return &LedgerError{Op: "migrate", Err: err}
	}

	e.plugins.EmitInit(ctx, e)

	e.mu.Lock()
	e.started = true
	e.stopped = false
	e.mu.Unlock()

	for _, item := range e.items {
		e.logger.Info("module configured",
			"item", item.Name,
			"kind", item.Kind,
			"category", item.Category,
			"origin", item.Origin,
			"source", source.Name(item.Source),
		)
	}
	e.logger.Info("bond engine started",
		"items", len(e.items),
		"max_attempts", e.retry.MaxAttempts,
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop shuts plugins down and closes the ledger store.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	started := e.started
	e.mu.Unlock()

	if started {
		e.plugins.EmitShutdown(context.Background())
	}
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

func (e *Engine) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// ──────────────────────────────────────────────────
// Cycles
// ──────────────────────────────────────────────────

// ItemResult is the outcome of reconciling one item for one wake event.
type ItemResult struct {
	Item       string
	Kind       Kind
	Attempts   int
	Reconciled bool
	Record     *chain.Record
	Receipt    *remote.Receipt
	Elapsed    time.Duration
	Err        error
}

// CycleReport summarizes a cycle.
type CycleReport struct {
	ID         id.CycleID
	Categories []Category
	StartedAt  time.Time
	Elapsed    time.Duration
	Results    []ItemResult
	Reconciled int
	Abandoned  int
	Errors     MultiError
}

// RunCycle reconciles every item selected by categories, production items
// first, then consumption. No categories selects all items. Failures are
// reported, never returned.
func (e *Engine) RunCycle(ctx context.Context, categories ...Category) *CycleReport {
	started := e.now()
	report := &CycleReport{
		ID:         id.NewCycleID(),
		Categories: categories,
		StartedAt:  started,
	}

	selected := e.selectItems(categories)
	cats := make([]string, len(categories))
	for i, c := range categories {
		cats[i] = string(c)
	}

	e.logger.Info("wake",
		"cycle", report.ID.String(),
		"categories", cats,
		"items", len(selected),
	)
	e.plugins.EmitCycleStarted(ctx, report.ID, cats, len(selected))

	for _, item := range selected {
		res := e.Reconcile(ctx, item)
		report.Results = append(report.Results, res)
		if res.Reconciled {
			report.Reconciled++
			continue
		}
		report.Abandoned++
		report.Errors.Add(res.Err)
	}

	report.Elapsed = e.now().Sub(started)
	e.plugins.EmitCycleCompleted(ctx, report.ID, report.Reconciled, report.Abandoned, report.Elapsed)
	e.logger.Info("cycle completed",
		"cycle", report.ID.String(),
		"reconciled", report.Reconciled,
		"abandoned", report.Abandoned,
		"elapsed_ms", report.Elapsed.Milliseconds(),
	)
	return report
}

func (e *Engine) selectItems(categories []Category) []Item {
	var out []Item
	for _, kind := range []Kind{Production, Consumption} {
		for _, item := range e.items {
			if item.Kind == kind && item.inCategories(categories) {
				out = append(out, item)
			}
		}
	}
	return out
}

// Reconcile runs the bounded retry loop for one item. The outcome is
// reported in the result; it never fails the caller.
func (e *Engine) Reconcile(ctx context.Context, item Item) ItemResult {
	started := e.now()
	res := ItemResult{Item: item.Name, Kind: item.Kind}
	subj := subjectOf(item)
	log := e.logger.With("item", item.Name, "kind", item.Kind, "category", item.Category)

	if e.isStopped() {
		res.Err = ErrEngineStopped
		return res
	}

	var lastErr error
	for attempt := 0; attempt < e.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		log.Info("try", "attempt", attempt+1)
		res.Attempts = attempt + 1

		rec, receipt, err := e.attempt(ctx, item, attempt, log)
		if err == nil {
			res.Reconciled = true
			res.Record = rec
			res.Receipt = receipt
			res.Elapsed = e.now().Sub(started)
			e.plugins.EmitItemReconciled(ctx, subj, res.Attempts, res.Elapsed)
			return res
		}

		lastErr = err
		step := stepOf(err)
		log.Warn("attempt failed",
			"attempt", attempt+1,
			"step", step,
			"error", err,
		)
		e.plugins.EmitAttemptFailed(ctx, subj, attempt+1, string(step), err)

		delay := e.retry.delay(attempt)
		log.Info("backing off", "attempt", attempt+1, "delay", delay)
		if err := e.sleeper.Sleep(ctx, delay); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}
	}

	if lastErr == nil {
		lastErr = e.retry.Validate()
	}
	res.Elapsed = e.now().Sub(started)
	res.Err = fmt.Errorf("%w: %s after %d attempt(s): %w", ErrRetryExhausted, item.Name, res.Attempts, lastErr)
	log.Error("item abandoned",
		"attempts", res.Attempts,
		"error", lastErr,
	)
	e.plugins.EmitItemAbandoned(ctx, subj, res.Attempts, lastErr)
	return res
}

// attempt walks the pipeline once. An appended record is kept even if a
// later step fails.
func (e *Engine) attempt(ctx context.Context, item Item, attempt int, log *slog.Logger) (rec *chain.Record, receipt *remote.Receipt, err error) {
	step := StepLocalHash
	fail := func(cause error) error {
		return &StepError{Item: item.Name, Kind: item.Kind, Step: step, Attempt: attempt, Err: cause}
	}

	defer func() {
		if r := recover(); r != nil {
			rec, receipt = nil, nil
			err = fail(fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	if e.store == nil {
		return nil, nil, fail(ErrNoLedger)
	}
	if e.remote == nil {
		return nil, nil, fail(ErrNoRemote)
	}
	if item.Source == nil {
		return nil, nil, fail(fmt.Errorf("%w: %s", ErrNoSource, item.Name))
	}
	ledger := store.Bind(e.store, item.Kind.Ledger())

	lastHash, err := ledger.LastHash(ctx)
	if err != nil {
		return nil, nil, fail(&LedgerError{Kind: item.Kind, Op: "last_hash", Err: err})
	}

	step = StepRemoteState
	prev, err := e.remote.LastState(ctx, item.Origin)
	if err != nil {
		return nil, nil, fail(&RemoteLedgerError{Origin: item.Origin, Op: "last_state", Err: err})
	}
	log.Info("last remote state", "state", prev.String(), "local_hash", lastHash.Short())

	step = StepReadSource
	r, err := item.Source.ReadState(ctx, source.Context{LastLocalHash: lastHash, LastRemoteState: prev})
	if err == nil && r == nil {
		err = ErrEmptyResponse
	}
	if err == nil {
		err = r.Validate()
	}
	if err != nil {
		return nil, nil, fail(&DataSourceError{Item: item.Name, Err: err})
	}

	step = StepAppend
	rec, err = ledger.Append(ctx, r)
	if err != nil {
		return nil, nil, fail(&LedgerError{Kind: item.Kind, Op: "append", Err: err})
	}
	log.Info("new local record",
		"ref", rec.Ref,
		"sequence", rec.Sequence,
		"hash", rec.ContentHash.Short(),
		"energy", r.AccumulatedEnergy,
	)
	e.plugins.EmitReadingAppended(ctx, subjectOf(item), rec)

	step = StepMint
	log.Info("sending to remote ledger", "origin", item.Origin)
	receipt, err = e.remote.Mint(ctx, r, item.Origin)
	if err != nil {
		return rec, nil, fail(&RemoteLedgerError{Origin: item.Origin, Op: "mint", Err: err})
	}
	log.Info("mint receipt",
		"block", receipt.BlockNumber,
		"tx", receipt.TransactionID,
		"status", receipt.Status,
	)
	e.plugins.EmitReadingMinted(ctx, subjectOf(item), rec, receipt)

	step = StepVerify
	if state, err := e.remote.LastState(ctx, item.Origin); err != nil {
		log.Warn("post-mint remote state unavailable", "error", err)
	} else {
		log.Info("new remote state", "state", state.String())
		e.plugins.EmitRemoteStateObserved(ctx, subjectOf(item), state)
	}

	return rec, receipt, nil
}

// ──────────────────────────────────────────────────
// Ledger inspection
// ──────────────────────────────────────────────────

// LedgerReport describes a verified ledger.
type LedgerReport struct {
	Kind     Kind
	Records  int
	LastHash chain.Hash
	Total    types.Energy
}

// Verify re-checks the hash chain of the ledger for kind and sums its energy.
func (e *Engine) Verify(ctx context.Context, kind Kind) (*LedgerReport, error) {
	if e.store == nil {
		return nil, ErrNoLedger
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidItem, kind)
	}

	report, err := store.Verify(ctx, e.store, kind.Ledger())
	if err != nil {
		return nil, &LedgerError{Kind: kind, Op: "verify", Err: err}
	}
	total, err := store.TotalEnergy(ctx, e.store, kind.Ledger())
	if err != nil {
		return nil, &LedgerError{Kind: kind, Op: "total", Err: err}
	}

	return &LedgerReport{
		Kind:     kind,
		Records:  report.Records,
		LastHash: report.LastHash,
		Total:    total,
	}, nil
}

// LastReading returns the newest reading in the ledger for kind, or nil.
func (e *Engine) LastReading(ctx context.Context, kind Kind) (*reading.EnergyReading, error) {
	if e.store == nil {
		return nil, ErrNoLedger
	}
	records, err := e.store.Records(ctx, kind.Ledger())
	if err != nil {
		return nil, &LedgerError{Kind: kind, Op: "records", Err: err}
	}
	if len(records) == 0 {
		return nil, nil //nolint:nilnil // empty ledger
	}
	return records[len(records)-1].Payload, nil
}

func subjectOf(item Item) plugin.Subject {
	return plugin.Subject{
		Item:     item.Name,
		Kind:     string(item.Kind),
		Category: string(item.Category),
		Origin:   item.Origin,
	}
}

func stepOf(err error) Step {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}
