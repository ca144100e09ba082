package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
)

func TestFullTextSearchAnd(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()

	txn, err := e.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx,
		widget("1", "Alpha", "a red rubber gadget"),
		widget("2", "Beta", "a red metal gadget"),
		widget("3", "Gamma", "a blue rubber gadget"),
	))
	require.NoError(t, <-txn.GetCompletionPromise())

	txn2, err := e.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store2, err := txn2.GetStore("widgets")
	require.NoError(t, err)
	idx, err := store2.OpenIndex("by_description")
	require.NoError(t, err)

	results, err := idx.FullTextSearch(ctx, "red rubber", nosql.ResolutionAnd, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Alpha", results[0].(map[string]any)["name"])
	require.NoError(t, <-txn2.GetCompletionPromise())
}

func TestFullTextSearchOr(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()

	txn, err := e.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx,
		widget("1", "Alpha", "a red rubber gadget"),
		widget("2", "Beta", "a metal widget"),
		widget("3", "Gamma", "a blue rubber gadget"),
	))
	require.NoError(t, <-txn.GetCompletionPromise())

	txn2, err := e.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store2, err := txn2.GetStore("widgets")
	require.NoError(t, err)
	idx, err := store2.OpenIndex("by_description")
	require.NoError(t, err)

	results, err := idx.FullTextSearch(ctx, "red metal", nosql.ResolutionOr, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	require.NoError(t, <-txn2.GetCompletionPromise())
}

func TestFullTextSearchEmptyPhraseErrors(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()

	txn, err := e.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	idx, err := store.OpenIndex("by_description")
	require.NoError(t, err)

	_, err = idx.FullTextSearch(ctx, "   ", nosql.ResolutionAnd, 0)
	assert.Error(t, err)
	require.NoError(t, <-txn.GetCompletionPromise())
}

func TestFullTextSearchRejectsNonFullTextIndex(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()

	txn, err := e.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	idx, err := store.OpenIndex("by_name")
	require.NoError(t, err)

	_, err = idx.FullTextSearch(ctx, "alpha", nosql.ResolutionAnd, 0)
	assert.Error(t, err)
	require.NoError(t, <-txn.GetCompletionPromise())
}
