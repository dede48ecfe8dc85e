package extractor

import "fmt"

// ErrorKind classifies why a single file contributed nothing to the index.
type ErrorKind int

const (
	// ReadFailure means the file could not be read or is not valid UTF-8.
	ReadFailure ErrorKind = iota + 1
	// ParseFailure means the grammar reported a syntax error.
	ParseFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ReadFailure:
		return "read failure"
	case ParseFailure:
		return "parse failure"
	default:
		return "unknown failure"
	}
}

// ExtractionError is a per-file, recoverable error.
type ExtractionError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s in %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
