package index

import "fmt"

// ErrorKind classifies fatal reconciliation failures.
type ErrorKind int

const (
	// LoadFailure means a prior index exists but cannot be read as a valid table.
	LoadFailure ErrorKind = iota + 1
	// CreateFailure means the output location could not be created.
	CreateFailure
	// WriteFailure means the table could not be written or moved into place.
	WriteFailure
)

func (k ErrorKind) String() string {
	switch k {
	case LoadFailure:
		return "load prior index"
	case CreateFailure:
		return "create output location"
	case WriteFailure:
		return "write index"
	default:
		return "reconcile"
	}
}

// ReconciliationError is a run-level error; the run must abort.
type ReconciliationError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}
