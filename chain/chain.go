// Package chain implements the hash linkage shared by every ledger backend.
//
// Record k stores the content hash of record k-1 as its PrevHash, and its own
// ContentHash is SHA-256(PrevHash || canonical JSON(payload)) in hex. The first
// record links to Genesis. Backends only persist records; building and
// checking the linkage lives here so all of them agree byte for byte.
package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/bond/id"
	"github.com/xraph/bond/reading"
)

// Hash is a hex-encoded SHA-256 digest.
type Hash string

// Genesis is the PrevHash of the first record in every ledger.
const Genesis Hash = "0000000000000000000000000000000000000000000000000000000000000000"

var (
	// ErrHashMismatch means a record's content no longer matches its hash.
	ErrHashMismatch = errors.New("chain: content hash mismatch")

	// ErrBrokenLink means a record does not point at its predecessor.
	ErrBrokenLink = errors.New("chain: prev hash does not match predecessor")

	// ErrSequenceGap means sequence numbers are not contiguous from 1.
	ErrSequenceGap = errors.New("chain: sequence gap")

	// ErrNilPayload is returned when hashing a record without a reading.
	ErrNilPayload = errors.New("chain: nil payload")
)

// String returns the hex digest.
func (h Hash) String() string { return string(h) }

// Short returns the first 12 hex characters, for log lines.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// IsGenesis reports whether h is the genesis sentinel.
func (h Hash) IsGenesis() bool { return h == Genesis }

// Record is one immutable ledger entry.
type Record struct {
	ID          id.RecordID            `json:"id"`
	Ledger      string                 `json:"ledger"`
	Sequence    int64                  `json:"sequence"`
	PrevHash    Hash                   `json:"prev_hash"`
	ContentHash Hash                   `json:"content_hash"`
	Payload     *reading.EnergyReading `json:"payload"`
	AppendedAt  time.Time              `json:"appended_at"`

	// Ref locates the record inside its backend (a file path, a row key).
	// It is not part of the hashed content.
	Ref string `json:"-"`
}

// ComputeHash derives the content hash of payload chained onto prev.
func ComputeHash(prev Hash, payload *reading.EnergyReading) (Hash, error) {
	if payload == nil {
		return "", ErrNilPayload
	}
	body, err := payload.Canonical()
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(prev))
	h.Write(body)
	return Hash(hex.EncodeToString(h.Sum(nil))), nil
}

// Next builds the record that follows last in ledger. A nil last starts the
// chain at sequence 1 on top of Genesis.
func Next(ledger string, last *Record, payload *reading.EnergyReading, now time.Time) (*Record, error) {
	seq, prev := int64(1), Genesis
	if last != nil {
		seq, prev = last.Sequence+1, last.ContentHash
	}

	hash, err := ComputeHash(prev, payload)
	if err != nil {
		return nil, err
	}

	return &Record{
		ID:          id.NewRecordID(),
		Ledger:      ledger,
		Sequence:    seq,
		PrevHash:    prev,
		ContentHash: hash,
		Payload:     payload,
		AppendedAt:  now.UTC(),
	}, nil
}

// Check recomputes the record's content hash.
func (r *Record) Check() error {
	h, err := ComputeHash(r.PrevHash, r.Payload)
	if err != nil {
		return fmt.Errorf("sequence %d: %w", r.Sequence, err)
	}
	if h != r.ContentHash {
		return fmt.Errorf("%w: sequence %d: stored %s, computed %s",
			ErrHashMismatch, r.Sequence, r.ContentHash.Short(), h.Short())
	}
	return nil
}

// Report summarizes a verified chain.
type Report struct {
	Records      int   `json:"records"`
	LastSequence int64 `json:"last_sequence"`
	LastHash     Hash  `json:"last_hash"`
}

// Verify checks records (in sequence order) for contiguous sequences, intact
// links and matching content hashes. The report covers the valid prefix
// when an error is returned.
func Verify(records []*Record) (*Report, error) {
	report := &Report{LastHash: Genesis}
	for i, r := range records {
		want := int64(i + 1)
		if r.Sequence != want {
			return report, fmt.Errorf("%w: expected %d, got %d", ErrSequenceGap, want, r.Sequence)
		}
		if r.PrevHash != report.LastHash {
			return report, fmt.Errorf("%w: sequence %d", ErrBrokenLink, r.Sequence)
		}
		if err := r.Check(); err != nil {
			return report, err
		}
		report.Records++
		report.LastSequence = r.Sequence
		report.LastHash = r.ContentHash
	}
	return report, nil
}

// ParseHash validates a hex SHA-256 digest.
func ParseHash(s string) (Hash, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != sha256.Size*2 {
		return "", fmt.Errorf("chain: hash %q: want %d hex characters", s, sha256.Size*2)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("chain: hash %q: %w", s, err)
	}
	return Hash(s), nil
}

// Clone returns a deep copy of r so backends never share mutable state with
// callers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Payload != nil {
		p := *r.Payload
		p.RawSourcePayload = append([]byte(nil), r.Payload.RawSourcePayload...)
		c.Payload = &p
	}
	return &c
}
