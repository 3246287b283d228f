package bond

import (
	"errors"
	"fmt"

	"github.com/xraph/bond/source"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrEmptyResponse means the upstream had no entry for the item.
	ErrEmptyResponse = source.ErrEmptyResponse

	// Configuration errors
	ErrNoLedger    = errors.New("bond: no ledger store configured")
	ErrNoSource    = errors.New("bond: item has no data source")
	ErrNoRemote    = errors.New("bond: no remote ledger configured")
	ErrInvalidItem = errors.New("bond: invalid item")

	// Pipeline errors
	ErrRetryExhausted = errors.New("bond: retry budget exhausted")
	ErrEngineStopped  = errors.New("bond: engine is stopped")
	ErrPanic          = errors.New("bond: attempt panicked")
)

// DataSourceError is a failed read from an item's source.
type DataSourceError struct {
	Item string
	Err  error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("bond: data source %s: %v", e.Item, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// LedgerError is a failed local ledger operation.
type LedgerError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("bond: %s ledger %s: %v", e.Kind, e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// RemoteLedgerError is a failed remote ledger call.
type RemoteLedgerError struct {
	Origin string
	Op     string
	Err    error
}

func (e *RemoteLedgerError) Error() string {
	return fmt.Sprintf("bond: remote ledger %s (%s): %v", e.Op, e.Origin, e.Err)
}

func (e *RemoteLedgerError) Unwrap() error { return e.Err }

// ConfigurationError is an invalid setting found at startup.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("bond: configuration error for %s: %s", e.Field, e.Message)
}

// StepError marks where an attempt stopped.
type StepError struct {
	Item    string
	Kind    Kind
	Step    Step
	Attempt int
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("bond: %s item %s attempt %d failed at %s: %v", e.Kind, e.Item, e.Attempt+1, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "bond: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("bond: %d errors occurred", len(e.Errors))
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// ErrOrNil returns e as an error, or nil when nothing was collected.
func (e MultiError) ErrOrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// IsDataSourceError returns true if err came from a data source.
func IsDataSourceError(err error) bool {
	var target *DataSourceError
	return errors.As(err, &target)
}

// IsLedgerError returns true if err came from the local ledger.
func IsLedgerError(err error) bool {
	var target *LedgerError
	return errors.As(err, &target)
}

// IsRemoteError returns true if err came from the remote ledger.
func IsRemoteError(err error) bool {
	var target *RemoteLedgerError
	return errors.As(err, &target)
}

// IsConfigurationError returns true if err is a startup configuration error.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}
