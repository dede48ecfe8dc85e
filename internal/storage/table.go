package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
)

// Header is the fixed first row of every index table.
var Header = []string{"File", "Item Type", "Name"}

// ErrBadHeader is returned when a table does not start with Header.
var ErrBadHeader = errors.New("table header does not match File,Item Type,Name")

// Row is one data row of the index table.
type Row [3]string

// ReadTable reads a delimited table, checks the header and streams each data
// row to onRow. Reading stops at the first malformed record or onRow error.
func ReadTable(r io.Reader, onRow func(Row) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Header)

	header, err := reader.Read()
	if err == io.EOF {
		return fmt.Errorf("%w: table is empty", ErrBadHeader)
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if !slices.Equal(header, Header) {
		return fmt.Errorf("%w: got %q", ErrBadHeader, header)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read row: %w", err)
		}
		if err := onRow(Row{record[0], record[1], record[2]}); err != nil {
			line, _ := reader.FieldPos(0)
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

// TableWriter writes the header followed by data rows.
type TableWriter struct {
	w           *csv.Writer
	wroteHeader bool
}

// NewTableWriter wraps w. Nothing is written until the first call.
func NewTableWriter(w io.Writer) *TableWriter {
	return &TableWriter{w: csv.NewWriter(w)}
}

// WriteHeader writes the header row. It is implied by the first WriteRow.
func (t *TableWriter) WriteHeader() error {
	if t.wroteHeader {
		return nil
	}
	t.wroteHeader = true
	return t.w.Write(Header)
}

// WriteRow writes one data row.
func (t *TableWriter) WriteRow(row Row) error {
	if err := t.WriteHeader(); err != nil {
		return err
	}
	return t.w.Write(row[:])
}

// Close flushes buffered rows and reports any deferred write error.
// It does not close the underlying writer.
func (t *TableWriter) Close() error {
	if err := t.WriteHeader(); err != nil {
		return err
	}
	t.w.Flush()
	return t.w.Error()
}
