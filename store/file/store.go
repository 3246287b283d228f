// Package file implements store.Store on the local filesystem.
//
// Every ledger is a directory under the store root and every record is one
// JSON file named by its zero-padded sequence (000000000001.json, ...).
// A record is written to a .tmp sibling, fsynced, renamed into place and the
// directory is fsynced, so a crash leaves either the whole record or none of
// it. Stray .tmp files are removed the next time the ledger is opened.
//
// The store does no locking: each ledger must have exactly one writer.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/reading"
	"github.com/xraph/bond/store"
)

const (
	recordExt = ".json"
	tmpExt    = ".tmp"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Option configures a file Store.
type Option func(*Store)

// WithLogger sets the logger for open/append events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the time source used for AppendedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is a directory of ledgers.
type Store struct {
	root   string
	logger *slog.Logger
	now    func() time.Time
	heads  map[string]*head
	closed bool
}

// head caches the newest record of an opened ledger.
type head struct {
	dir  string
	last *chain.Record
}

// New creates a file store rooted at dir. Nothing touches the disk until a
// ledger is first used.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		root:   dir,
		logger: slog.Default(),
		now:    time.Now,
		heads:  make(map[string]*head),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// LastHash returns the head hash of ledger, opening it on first use.
func (s *Store) LastHash(ctx context.Context, ledger string) (chain.Hash, error) {
	h, err := s.open(ctx, ledger)
	if err != nil {
		return "", err
	}
	if h.last == nil {
		return chain.Genesis, nil
	}
	return h.last.ContentHash, nil
}

// Append writes the next record of ledger and publishes it atomically.
func (s *Store) Append(ctx context.Context, ledger string, r *reading.EnergyReading) (*chain.Record, error) {
	h, err := s.open(ctx, ledger)
	if err != nil {
		return nil, err
	}

	rec, err := chain.Next(ledger, h.last, r, s.now())
	if err != nil {
		return nil, fmt.Errorf("bond/file: append %s: %w", ledger, err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("bond/file: encode record: %w", err)
	}

	final := filepath.Join(h.dir, recordName(rec.Sequence))
	if err := publish(h.dir, final, data); err != nil {
		// The record may already be on disk; reload the head on next use.
		delete(s.heads, ledger)
		return nil, fmt.Errorf("bond/file: append %s #%d: %w", ledger, rec.Sequence, err)
	}
	rec.Ref = final
	h.last = rec.Clone()

	s.logger.Debug("ledger record written",
		"ledger", ledger,
		"sequence", rec.Sequence,
		"hash", rec.ContentHash.Short(),
		"path", final,
	)
	return rec, nil
}

// Records reads every record of ledger from disk in sequence order.
func (s *Store) Records(ctx context.Context, ledger string) ([]*chain.Record, error) {
	h, err := s.open(ctx, ledger)
	if err != nil {
		return nil, err
	}
	return readRecords(h.dir)
}

// Migrate creates the store root.
func (s *Store) Migrate(_ context.Context) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("bond/file: create root: %w", err)
	}
	return nil
}

// Ping checks that the root exists and is a directory.
func (s *Store) Ping(_ context.Context) error {
	if s.closed {
		return store.ErrClosed
	}
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("bond/file: ping: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("bond/file: ping: %s is not a directory", s.root)
	}
	return nil
}

// Close forgets all opened ledgers. Records are already durable.
func (s *Store) Close() error {
	s.closed = true
	s.heads = make(map[string]*head)
	return nil
}

// open returns the cached head of ledger, loading and verifying the
// directory the first time.
func (s *Store) open(ctx context.Context, ledger string) (*head, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, store.ErrClosed
	}
	if err := store.ValidateName(ledger); err != nil {
		return nil, err
	}
	if h, ok := s.heads[ledger]; ok {
		return h, nil
	}

	dir := filepath.Join(s.root, ledger)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("bond/file: open %s: %w", ledger, err)
	}
	removed, err := removeTemps(dir)
	if err != nil {
		return nil, fmt.Errorf("bond/file: open %s: %w", ledger, err)
	}

	records, err := readRecords(dir)
	if err != nil {
		return nil, err
	}
	report, err := chain.Verify(records)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", store.ErrCorrupt, dir, err)
	}

	h := &head{dir: dir}
	if n := len(records); n > 0 {
		h.last = records[n-1]
	}
	s.heads[ledger] = h

	s.logger.Info("ledger opened",
		"ledger", ledger,
		"path", dir,
		"records", report.Records,
		"head", report.LastHash.Short(),
		"stale_tmp_removed", removed,
	)
	return h, nil
}

func recordName(seq int64) string {
	return fmt.Sprintf("%012d%s", seq, recordExt)
}

// publish writes data next to final, syncs it, renames it into place and
// syncs the directory entry.
func publish(dir, final string, data []byte) error {
	if _, err := os.Stat(final); err == nil {
		return store.ErrConflict
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	tmp := final + tmpExt
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return err
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

func removeTemps(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+tmpExt))
	if err != nil {
		return 0, err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, err
		}
	}
	return len(matches), nil
}

func readRecords(dir string) ([]*chain.Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("bond/file: read %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	records := make([]*chain.Record, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("bond/file: read %s: %w", path, err)
		}
		var rec chain.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", store.ErrCorrupt, path, err)
		}
		if name != recordName(rec.Sequence) {
			return nil, fmt.Errorf("%w: %s holds sequence %d", store.ErrCorrupt, path, rec.Sequence)
		}
		rec.Ref = path
		records = append(records, &rec)
	}
	return records, nil
}
