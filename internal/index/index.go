package index

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"refindex/internal/extractor"
	"refindex/internal/storage"
)

// Set is the deduplicating collection of entries for one run.
type Set struct {
	entries map[extractor.Entry]struct{}
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{entries: make(map[extractor.Entry]struct{})}
}

// Add inserts e and reports whether it was not already present.
func (s *Set) Add(e extractor.Entry) bool {
	if _, ok := s.entries[e]; ok {
		return false
	}
	s.entries[e] = struct{}{}
	return true
}

// Merge adds every entry and returns how many were new.
func (s *Set) Merge(entries []extractor.Entry) int {
	added := 0
	for _, e := range entries {
		if s.Add(e) {
			added++
		}
	}
	return added
}

func (s *Set) Len() int {
	return len(s.entries)
}

// Sorted returns the entries in index order.
func (s *Set) Sorted() []extractor.Entry {
	out := make([]extractor.Entry, 0, len(s.entries))
	for e := range s.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, Compare)
	return out
}

// Compare orders entries by file, then name, then kind label. The kind key
// only matters when one file holds two kinds with the same name string.
func Compare(a, b extractor.Entry) int {
	return cmp.Or(
		strings.Compare(a.File, b.File),
		strings.Compare(a.Name, b.Name),
		strings.Compare(a.Kind.String(), b.Kind.String()),
	)
}

// Reconcile returns the sorted union of prior and fresh. A nil prior is
// treated as empty; prior itself is left unchanged.
func Reconcile(prior *Set, fresh []extractor.Entry) []extractor.Entry {
	union := NewSet()
	if prior != nil {
		for e := range prior.entries {
			union.Add(e)
		}
	}
	union.Merge(fresh)
	return union.Sorted()
}

// Load reads a persisted index. A missing file yields an empty set and
// found == false; any other problem is a LoadFailure.
func Load(path string) (set *Set, found bool, err error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewSet(), false, nil
	}
	if err != nil {
		return nil, false, &ReconciliationError{Kind: LoadFailure, Path: path, Err: err}
	}
	defer f.Close()

	set = NewSet()
	err = storage.ReadTable(f, func(row storage.Row) error {
		kind, err := extractor.ParseKind(row[1])
		if err != nil {
			return err
		}
		set.Add(extractor.Entry{File: row[0], Kind: kind, Name: row[2]})
		return nil
	})
	if err != nil {
		return nil, true, &ReconciliationError{Kind: LoadFailure, Path: path, Err: err}
	}
	return set, true, nil
}

// Persist writes entries as a complete table at path. The table is written
// to a temporary file in the same directory and renamed over path, so a
// failure never leaves a truncated index behind.
func Persist(path string, entries []extractor.Entry) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &ReconciliationError{Kind: CreateFailure, Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &ReconciliationError{Kind: CreateFailure, Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := writeTable(tmp, entries); err != nil {
		return &ReconciliationError{Kind: WriteFailure, Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return &ReconciliationError{Kind: WriteFailure, Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &ReconciliationError{Kind: WriteFailure, Path: path, Err: err}
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return &ReconciliationError{Kind: WriteFailure, Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return &ReconciliationError{Kind: WriteFailure, Path: path, Err: err}
	}
	committed = true
	return nil
}

func writeTable(out io.Writer, entries []extractor.Entry) error {
	w := storage.NewTableWriter(out)
	if err := w.WriteHeader(); err != nil {
		return err
	}
	for _, e := range entries {
		if err := w.WriteRow(storage.Row{e.File, e.Kind.String(), e.Name}); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.Name, err)
		}
	}
	return w.Close()
}
