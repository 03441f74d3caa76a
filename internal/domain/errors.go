package domain

import "fmt"

// Error types for consistent error handling across the service.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrExternalService indicates a failure in a storage or messaging backend.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrDuplicate indicates a concurrent writer already created the resource.
type ErrDuplicate struct {
	Key string
}

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("duplicate resource: %s", e.Key)
}

// ErrUnknownFormat indicates a CSV header row matched no registered bank
// adapter. At the row level this is log-and-skip, never job-fatal.
type ErrUnknownFormat struct {
	Headers []string
}

func (e *ErrUnknownFormat) Error() string {
	return fmt.Sprintf("unknown bank CSV format, headers: %v", e.Headers)
}

// ErrSetup indicates the import failed before any batch started
// (unparsable CSV, account resolution failure). The job transitions
// directly to error.
type ErrSetup struct {
	Stage string
	Err   error
}

func (e *ErrSetup) Error() string {
	return fmt.Sprintf("import setup failed [%s]: %v", e.Stage, e.Err)
}

func (e *ErrSetup) Unwrap() error {
	return e.Err
}
