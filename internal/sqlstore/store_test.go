package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutGetRoundTrip(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	txn, err := p.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, widget("1", "Alpha", "a red gadget", "red", "blue")))
	require.NoError(t, <-txn.GetCompletionPromise())

	txn2, err := p.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store2, err := txn2.GetStore("widgets")
	require.NoError(t, err)

	item, ok, err := store2.Get(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alpha", item.(map[string]any)["name"])
	require.NoError(t, <-txn2.GetCompletionPromise())
}

func TestStoreGetMissingKey(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	txn, err := p.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, <-txn.GetCompletionPromise())
}

func TestStoreGetMultipleSkipsMissing(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	txn, err := p.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx,
		widget("1", "Alpha", "a red gadget", "red"),
		widget("2", "Beta", "a blue gadget", "blue"),
	))
	require.NoError(t, <-txn.GetCompletionPromise())

	txn2, err := p.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store2, err := txn2.GetStore("widgets")
	require.NoError(t, err)

	items, err := store2.GetMultiple(ctx, []any{"1", "missing", "2"})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	require.NoError(t, <-txn2.GetCompletionPromise())
}

func TestStoreGetMultipleEmptyShortCircuits(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	txn, err := p.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)

	items, err := store.GetMultiple(ctx, []any{})
	require.NoError(t, err)
	assert.Empty(t, items)
	require.NoError(t, <-txn.GetCompletionPromise())
}

func TestStoreRemove(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	txn, err := p.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, widget("1", "Alpha", "a red gadget", "red")))
	require.NoError(t, store.Remove(ctx, "1"))
	require.NoError(t, <-txn.GetCompletionPromise())

	txn2, err := p.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store2, err := txn2.GetStore("widgets")
	require.NoError(t, err)
	_, ok, err := store2.Get(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, <-txn2.GetCompletionPromise())
}

func TestStoreClearAllData(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	txn, err := p.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx,
		widget("1", "Alpha", "a red gadget", "red"),
		widget("2", "Beta", "a blue gadget", "blue"),
	))
	require.NoError(t, store.ClearAllData(ctx))
	require.NoError(t, <-txn.GetCompletionPromise())

	txn2, err := p.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store2, err := txn2.GetStore("widgets")
	require.NoError(t, err)
	idx, err := store2.OpenPrimaryKey()
	require.NoError(t, err)
	count, err := idx.CountAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	require.NoError(t, <-txn2.GetCompletionPromise())
}

func TestIndexGetAllOrdering(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	txn, err := p.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx,
		widget("1", "Charlie", "c", "c"),
		widget("2", "Alpha", "a", "a"),
		widget("3", "Bravo", "b", "b"),
	))
	require.NoError(t, <-txn.GetCompletionPromise())

	txn2, err := p.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store2, err := txn2.GetStore("widgets")
	require.NoError(t, err)
	byName, err := store2.OpenIndex("by_name")
	require.NoError(t, err)

	items, err := byName.GetAll(ctx, false, 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Alpha", items[0].(map[string]any)["name"])
	assert.Equal(t, "Bravo", items[1].(map[string]any)["name"])
	assert.Equal(t, "Charlie", items[2].(map[string]any)["name"])

	reversed, err := byName.GetAll(ctx, true, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Charlie", reversed[0].(map[string]any)["name"])
	require.NoError(t, <-txn2.GetCompletionPromise())
}

func TestIndexGetRangeAndCount(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	txn, err := p.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx,
		widget("1", "Alpha", "a"),
		widget("2", "Bravo", "b"),
		widget("3", "Charlie", "c"),
	))
	require.NoError(t, <-txn.GetCompletionPromise())

	txn2, err := p.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store2, err := txn2.GetStore("widgets")
	require.NoError(t, err)
	byName, err := store2.OpenIndex("by_name")
	require.NoError(t, err)

	items, err := byName.GetRange(ctx, "Alpha", "Bravo", false, false, false, 0, 0)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	n, err := byName.CountOnly(ctx, "Bravo")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	require.NoError(t, <-txn2.GetCompletionPromise())
}

func TestMultiEntryIndex(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	txn, err := p.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, widget("1", "Alpha", "a gadget", "red", "blue")))
	require.NoError(t, <-txn.GetCompletionPromise())

	txn2, err := p.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store2, err := txn2.GetStore("widgets")
	require.NoError(t, err)
	byTag, err := store2.OpenIndex("by_tag")
	require.NoError(t, err)

	red, err := byTag.GetOnly(ctx, "red", false, 0, 0)
	require.NoError(t, err)
	require.Len(t, red, 1)
	blue, err := byTag.GetOnly(ctx, "blue", false, 0, 0)
	require.NoError(t, err)
	require.Len(t, blue, 1)

	count, err := byTag.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
	require.NoError(t, <-txn2.GetCompletionPromise())
}

func TestMultiEntryIndexRefreshesOnPut(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	txn, err := p.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, widget("1", "Alpha", "a gadget", "red", "blue")))
	require.NoError(t, store.Put(ctx, widget("1", "Alpha", "a gadget", "green")))
	require.NoError(t, <-txn.GetCompletionPromise())

	txn2, err := p.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store2, err := txn2.GetStore("widgets")
	require.NoError(t, err)
	byTag, err := store2.OpenIndex("by_tag")
	require.NoError(t, err)

	red, err := byTag.GetOnly(ctx, "red", false, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, red)
	green, err := byTag.GetOnly(ctx, "green", false, 0, 0)
	require.NoError(t, err)
	assert.Len(t, green, 1)
	require.NoError(t, <-txn2.GetCompletionPromise())
}
