package index

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"refindex/internal/extractor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fn(file, name string) extractor.Entry {
	return extractor.Entry{File: file, Kind: extractor.KindFunction, Name: name}
}

func st(file, name string) extractor.Entry {
	return extractor.Entry{File: file, Kind: extractor.KindStruct, Name: name}
}

func TestSet_MergeDeduplicates(t *testing.T) {
	s := NewSet()
	added := s.Merge([]extractor.Entry{fn("a.rs", "foo"), fn("a.rs", "foo"), st("a.rs", "foo")})
	assert.Equal(t, 2, added)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []extractor.Entry{fn("a.rs", "foo"), st("a.rs", "foo")}, s.Sorted())
}

func TestReconcile_UnionIsCommutative(t *testing.T) {
	e1 := []extractor.Entry{fn("a.rs", "foo"), st("b.rs", "Bar"), fn("c.rs", "shared")}
	e2 := []extractor.Entry{fn("c.rs", "shared"), fn("a.rs", "zed")}

	left := NewSet()
	left.Merge(e1)
	right := NewSet()
	right.Merge(e2)

	assert.Equal(t, Reconcile(left, e2), Reconcile(right, e1))
	assert.Len(t, Reconcile(left, e2), 4)
}

func TestReconcile_NilPrior(t *testing.T) {
	got := Reconcile(nil, []extractor.Entry{fn("a.rs", "foo"), fn("a.rs", "foo")})
	assert.Equal(t, []extractor.Entry{fn("a.rs", "foo")}, got)
}

func TestReconcile_DoesNotMutatePrior(t *testing.T) {
	prior := NewSet()
	prior.Add(fn("a.rs", "foo"))
	Reconcile(prior, []extractor.Entry{fn("b.rs", "bar")})
	assert.Equal(t, 1, prior.Len())
}

func TestReconcile_SortOrder(t *testing.T) {
	entries := []extractor.Entry{
		fn("src/z.rs", "alpha"),
		{File: "src/a.rs", Kind: extractor.KindTraitMethod, Name: "Shape::area"},
		{File: "src/a.rs", Kind: extractor.KindImplMethod, Name: "Shape::area"},
		fn("src/a.rs", "foo"),
		st("src/a.rs", "Bar"),
		fn("src/a.rs", "_private"),
	}

	got := Reconcile(nil, entries)

	assert.Equal(t, []extractor.Entry{
		st("src/a.rs", "Bar"),
		{File: "src/a.rs", Kind: extractor.KindImplMethod, Name: "Shape::area"},
		{File: "src/a.rs", Kind: extractor.KindTraitMethod, Name: "Shape::area"},
		fn("src/a.rs", "_private"),
		fn("src/a.rs", "foo"),
		fn("src/z.rs", "alpha"),
	}, got)

	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		require.LessOrEqual(t, prev.File, cur.File)
		if prev.File == cur.File {
			require.LessOrEqual(t, prev.Name, cur.Name)
		}
	}
}

func TestReconciler_IncrementalMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spreadsheets", "project_references.csv")
	r := NewReconciler(path)

	res, err := r.Run([]extractor.Entry{fn("a.src", "foo")}, Incremental)
	require.NoError(t, err)
	assert.False(t, res.PriorFound)
	assert.Equal(t, 1, res.Written)

	res, err = r.Run([]extractor.Entry{fn("a.src", "foo"), st("a.src", "Bar")}, Incremental)
	require.NoError(t, err)
	assert.True(t, res.PriorFound)
	assert.Equal(t, 1, res.Prior)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 2, res.Written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "File,Item Type,Name\na.src,Struct,Bar\na.src,Function,foo\n", string(data))
}

func TestReconciler_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.csv")
	r := NewReconciler(path)
	fresh := []extractor.Entry{
		fn("b.rs", "main"),
		{File: "a.rs", Kind: extractor.KindImplMethod, Name: "Widget::draw"},
		{File: "a,b.rs", Kind: extractor.KindEnum, Name: "Mode"},
	}

	_, err := r.Run(fresh, Incremental)
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = r.Run(fresh, Incremental)
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestReconciler_NoPruning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.csv")
	r := NewReconciler(path)

	_, err := r.Run([]extractor.Entry{fn("a.rs", "old")}, Incremental)
	require.NoError(t, err)
	res, err := r.Run([]extractor.Entry{fn("a.rs", "renamed")}, Incremental)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)

	res, err = r.Run([]extractor.Entry{fn("a.rs", "renamed")}, Full)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	assert.False(t, res.PriorFound)
}

func TestReconciler_CorruptPriorAborts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.csv")
	corrupt := "File,Item Type\na.rs,Function\n"
	require.NoError(t, os.WriteFile(path, []byte(corrupt), 0o644))

	_, err := NewReconciler(path).Run([]extractor.Entry{fn("a.rs", "foo")}, Incremental)
	require.Error(t, err)

	var recErr *ReconciliationError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, LoadFailure, recErr.Kind)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, corrupt, string(data), "prior table must be left untouched")
}

func TestReconciler_UnknownKindAborts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.csv")
	require.NoError(t, os.WriteFile(path, []byte("File,Item Type,Name\na.rs,Macro,m\n"), 0o644))

	_, err := NewReconciler(path).Run(nil, Incremental)
	var recErr *ReconciliationError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, LoadFailure, recErr.Kind)
}

func TestLoad_LegacyLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"File,Item Type,Name\n"+
			"a.rs,ImplFn,Widget::draw\n"+
			"a.rs,ImplMethod,Widget::draw\n"+
			"a.rs,TraitFn,Drawable::draw\n"), 0o644))

	set, found, err := Load(path)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []extractor.Entry{
		{File: "a.rs", Kind: extractor.KindTraitMethod, Name: "Drawable::draw"},
		{File: "a.rs", Kind: extractor.KindImplMethod, Name: "Widget::draw"},
	}, set.Sorted())
}

func TestPersist_CreateFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := Persist(filepath.Join(blocker, "index.csv"), nil)
	var recErr *ReconciliationError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, CreateFailure, recErr.Kind)
}

func TestPersist_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.csv")
	require.NoError(t, Persist(path, []extractor.Entry{fn("a.rs", "foo")}))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "index.csv", files[0].Name())
}

func TestPersist_RenameFailureKeepsPriorTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.csv")
	require.NoError(t, os.Mkdir(path, 0o755))
	kept := filepath.Join(path, "keep.txt")
	require.NoError(t, os.WriteFile(kept, []byte("prior"), 0o644))

	err := Persist(path, []extractor.Entry{fn("a.rs", "foo")})
	var recErr *ReconciliationError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, WriteFailure, recErr.Kind)

	data, err := os.ReadFile(kept)
	require.NoError(t, err)
	assert.Equal(t, "prior", string(data))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1, "temporary table must be removed")
	assert.Equal(t, "index.csv", files[0].Name())
}
