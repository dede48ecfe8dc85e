package index

import "refindex/internal/extractor"

// Mode selects how fresh entries combine with the persisted index.
type Mode int

const (
	// Incremental unions fresh entries with the prior table.
	Incremental Mode = iota
	// Full ignores the prior table and writes only the fresh entries.
	Full
)

func (m Mode) String() string {
	if m == Full {
		return "full"
	}
	return "incremental"
}

// Result describes one reconciliation.
type Result struct {
	Path       string
	PriorFound bool
	Prior      int // unique entries read from the prior table
	Fresh      int // entries extracted in this run, duplicates included
	Added      int // entries not present in the prior table
	Written    int
	Entries    []extractor.Entry // the table as written, in order
}

// Reconciler owns the lifecycle of the index table at Path.
// It is the only writer of that file for the duration of a run.
type Reconciler struct {
	Path string
}

func NewReconciler(path string) *Reconciler {
	return &Reconciler{Path: path}
}

// Run loads the prior table (Incremental only), merges fresh into it, and
// replaces the table with the sorted result. Nothing is written when the
// prior table cannot be loaded.
func (r *Reconciler) Run(fresh []extractor.Entry, mode Mode) (*Result, error) {
	prior := NewSet()
	found := false
	if mode == Incremental {
		var err error
		prior, found, err = Load(r.Path)
		if err != nil {
			return nil, err
		}
	}

	merged := Reconcile(prior, fresh)
	if err := Persist(r.Path, merged); err != nil {
		return nil, err
	}

	return &Result{
		Path:       r.Path,
		PriorFound: found,
		Prior:      prior.Len(),
		Fresh:      len(fresh),
		Added:      len(merged) - prior.Len(),
		Written:    len(merged),
		Entries:    merged,
	}, nil
}
