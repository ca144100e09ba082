package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

func baseSchema(version int) schema.Schema {
	return schema.Schema{
		Version: version,
		Stores: []schema.StoreSchema{
			{
				Name:           "widgets",
				PrimaryKeyPath: schema.KeyPath{"id"},
				Indexes: []schema.IndexSchema{
					{Name: "by_name", KeyPath: schema.KeyPath{"name"}},
				},
			},
		},
	}
}

func withExtraIndex(version int) schema.Schema {
	s := baseSchema(version)
	s.Stores[0].Indexes = append(s.Stores[0].Indexes, schema.IndexSchema{Name: "by_tag", KeyPath: schema.KeyPath{"tag"}, MultiEntry: true})
	return s
}

func TestReconcileAddsIndexAndPreservesData(t *testing.T) {
	ctx := context.Background()
	e := NewEngine()
	require.NoError(t, e.OpenDatabase(ctx, "widgets", baseSchema(1), false, false))

	txn, err := e.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, map[string]any{"id": "1", "name": "Alpha", "tag": []any{"red"}}))
	require.NoError(t, <-txn.GetCompletionPromise())

	require.NoError(t, e.OpenDatabase(ctx, "widgets", withExtraIndex(2), false, false))

	txn2, err := e.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store2, err := txn2.GetStore("widgets")
	require.NoError(t, err)

	item, ok, err := store2.Get(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alpha", item.(map[string]any)["name"])

	byTag, err := store2.OpenIndex("by_tag")
	require.NoError(t, err)
	matches, err := byTag.GetOnly(ctx, "red", false, 0, 0)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	require.NoError(t, <-txn2.GetCompletionPromise())
}

func TestReconcileVersionTooNewWithoutWipe(t *testing.T) {
	ctx := context.Background()
	e := NewEngine()
	require.NoError(t, e.OpenDatabase(ctx, "widgets", baseSchema(5), false, false))

	err := e.OpenDatabase(ctx, "widgets", baseSchema(2), false, false)
	assert.ErrorIs(t, err, schema.ErrVersionTooNew)
}

func TestReconcileWipeOnDowngradeWhenOptedIn(t *testing.T) {
	ctx := context.Background()
	e := NewEngine()
	require.NoError(t, e.OpenDatabase(ctx, "widgets", baseSchema(5), false, false))

	txn, err := e.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, map[string]any{"id": "1", "name": "Alpha"}))
	require.NoError(t, <-txn.GetCompletionPromise())

	require.NoError(t, e.OpenDatabase(ctx, "widgets", baseSchema(2), true, false))

	txn2, err := e.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store2, err := txn2.GetStore("widgets")
	require.NoError(t, err)
	_, ok, err := store2.Get(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, <-txn2.GetCompletionPromise())
}

func TestReconcileDropsObsoleteStore(t *testing.T) {
	ctx := context.Background()
	e := NewEngine()

	twoStores := schema.Schema{
		Version: 1,
		Stores: []schema.StoreSchema{
			{Name: "widgets", PrimaryKeyPath: schema.KeyPath{"id"}},
			{Name: "gadgets", PrimaryKeyPath: schema.KeyPath{"id"}},
		},
	}
	require.NoError(t, e.OpenDatabase(ctx, "widgets", twoStores, false, false))

	oneStore := schema.Schema{
		Version: 2,
		Stores:  []schema.StoreSchema{{Name: "widgets", PrimaryKeyPath: schema.KeyPath{"id"}}},
	}
	require.NoError(t, e.OpenDatabase(ctx, "widgets", oneStore, false, false))

	_, err := e.OpenTransaction(ctx, []string{"gadgets"}, false)
	assert.ErrorIs(t, err, schema.ErrStoreNotFound)
}

func TestReconcilePrimaryKeyChangeRebuildsStore(t *testing.T) {
	ctx := context.Background()
	e := NewEngine()

	byID := schema.Schema{
		Version: 1,
		Stores:  []schema.StoreSchema{{Name: "widgets", PrimaryKeyPath: schema.KeyPath{"id"}}},
	}
	require.NoError(t, e.OpenDatabase(ctx, "widgets", byID, false, false))

	txn, err := e.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, map[string]any{"id": "1", "slug": "alpha"}))
	require.NoError(t, <-txn.GetCompletionPromise())

	bySlug := schema.Schema{
		Version: 2,
		Stores:  []schema.StoreSchema{{Name: "widgets", PrimaryKeyPath: schema.KeyPath{"slug"}}},
	}
	require.NoError(t, e.OpenDatabase(ctx, "widgets", bySlug, false, false))

	txn2, err := e.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store2, err := txn2.GetStore("widgets")
	require.NoError(t, err)
	item, ok, err := store2.Get(ctx, "alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", item.(map[string]any)["id"])
	require.NoError(t, <-txn2.GetCompletionPromise())
}
