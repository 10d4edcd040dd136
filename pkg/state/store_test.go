package state_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	archetype "github.com/goliatone/go-archetype"
	"github.com/goliatone/go-archetype/pkg/state"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) state.Store

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(*testing.T) state.Store { return state.NewMemoryStore() },
		"sqlite": func(t *testing.T) state.Store {
			store, err := state.NewSQLiteStore(filepath.Join(t.TempDir(), "assets.db"))
			require.NoError(t, err)
			t.Cleanup(func() { store.Close() })
			return store
		},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			id := archetype.NewAssetID()

			_, _, ok, err := store.Load(ctx, id)
			require.NoError(t, err)
			require.False(t, ok)

			updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			saved, err := store.Save(ctx, id, []byte("doc-1"), state.Meta{
				SnapshotID: "v1",
				UpdatedAt:  updated,
				Extra:      map[string]string{"author": "qa"},
			})
			require.NoError(t, err)
			require.Equal(t, state.ComputeETag([]byte("doc-1")), saved.ETag)

			data, meta, ok, err := store.Load(ctx, id)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "doc-1", string(data))
			require.Equal(t, "v1", meta.SnapshotID)
			require.Equal(t, saved.ETag, meta.ETag)
			require.True(t, updated.Equal(meta.UpdatedAt))
			require.Equal(t, map[string]string{"author": "qa"}, meta.Extra)
		})
	}
}

func TestStoreETagConflict(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			id := archetype.NewAssetID()

			first, err := store.Save(ctx, id, []byte("doc-1"), state.Meta{})
			require.NoError(t, err)

			second, err := store.Save(ctx, id, []byte("doc-2"), state.Meta{ETag: first.ETag})
			require.NoError(t, err)
			require.NotEqual(t, first.ETag, second.ETag)

			_, err = store.Save(ctx, id, []byte("doc-3"), state.Meta{ETag: first.ETag})
			require.ErrorIs(t, err, state.ErrETagMismatch)

			data, _, _, err := store.Load(ctx, id)
			require.NoError(t, err)
			require.Equal(t, "doc-2", string(data))
		})
	}
}

func TestStoreDeleteAndList(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			a, b := archetype.NewAssetID(), archetype.NewAssetID()

			_, err := store.Save(ctx, a, []byte("a"), state.Meta{})
			require.NoError(t, err)
			_, err = store.Save(ctx, b, []byte("b"), state.Meta{})
			require.NoError(t, err)

			ids, err := store.List(ctx)
			require.NoError(t, err)
			require.ElementsMatch(t, []archetype.AssetID{a, b}, ids)

			require.NoError(t, store.Delete(ctx, a))
			_, _, ok, err := store.Load(ctx, a)
			require.NoError(t, err)
			require.False(t, ok)

			ids, err = store.List(ctx)
			require.NoError(t, err)
			require.Equal(t, []archetype.AssetID{b}, ids)
		})
	}
}

func TestMemoryStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	id := archetype.NewAssetID()
	data := []byte("doc")

	_, err := store.Save(ctx, id, data, state.Meta{})
	require.NoError(t, err)
	data[0] = 'x'

	loaded, _, _, err := store.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "doc", string(loaded))
}
