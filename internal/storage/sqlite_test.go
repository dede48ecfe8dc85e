package storage

import (
	"context"
	"path/filepath"
	"testing"

	"refindex/internal/extractor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_SaveEntries_Snapshot(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	first := []extractor.Entry{
		{File: "a.rs", Kind: extractor.KindFunction, Name: "foo"},
		{File: "a.rs", Kind: extractor.KindStruct, Name: "Bar"},
	}
	require.NoError(t, store.SaveEntries(ctx, first))

	second := []extractor.Entry{
		{File: "b.rs", Kind: extractor.KindImplMethod, Name: "Widget::draw"},
		{File: "a.rs", Kind: extractor.KindStruct, Name: "Bar"},
		{File: "a.rs", Kind: extractor.KindStruct, Name: "Bar"},
	}
	require.NoError(t, store.SaveEntries(ctx, second))

	loaded, err := store.LoadEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []extractor.Entry{
		{File: "a.rs", Kind: extractor.KindStruct, Name: "Bar"},
		{File: "b.rs", Kind: extractor.KindImplMethod, Name: "Widget::draw"},
	}, loaded)
}

func TestSQLiteStore_Find(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SaveEntries(ctx, []extractor.Entry{
		{File: "a.rs", Kind: extractor.KindImplMethod, Name: "Widget::draw"},
		{File: "a.rs", Kind: extractor.KindTraitMethod, Name: "Drawable::draw"},
		{File: "b.rs", Kind: extractor.KindFunction, Name: "draw_all"},
		{File: "b.rs", Kind: extractor.KindFunction, Name: "main"},
	}))

	t.Run("by name", func(t *testing.T) {
		found, err := store.FindByName(ctx, "DRAW")
		require.NoError(t, err)
		assert.Equal(t, []extractor.Entry{
			{File: "a.rs", Kind: extractor.KindTraitMethod, Name: "Drawable::draw"},
			{File: "a.rs", Kind: extractor.KindImplMethod, Name: "Widget::draw"},
			{File: "b.rs", Kind: extractor.KindFunction, Name: "draw_all"},
		}, found)
	})

	t.Run("underscore is literal", func(t *testing.T) {
		found, err := store.FindByName(ctx, "w_a")
		require.NoError(t, err)
		assert.Equal(t, []extractor.Entry{
			{File: "b.rs", Kind: extractor.KindFunction, Name: "draw_all"},
		}, found)
	})

	t.Run("by file", func(t *testing.T) {
		found, err := store.FindByFile(ctx, "b.rs")
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})
}
