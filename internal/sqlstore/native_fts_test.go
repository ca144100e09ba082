package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosqlprovider-go/cupboard/internal/sqlexec"
	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
)

func TestNativeFullTextSearchAnd(t *testing.T) {
	p := setupNativeFTSProvider(t)
	ctx := context.Background()

	txn, err := p.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx,
		widget("1", "Alpha", "a red rubber gadget"),
		widget("2", "Beta", "a red metal gadget"),
		widget("3", "Gamma", "a blue rubber gadget"),
	))
	require.NoError(t, <-txn.GetCompletionPromise())

	txn2, err := p.OpenTransaction(ctx, []string{"widgets"}, false)
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

func TestNativeFullTextSearchOr(t *testing.T) {
	p := setupNativeFTSProvider(t)
	ctx := context.Background()

	txn, err := p.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx,
		widget("1", "Alpha", "a red rubber gadget"),
		widget("2", "Beta", "a metal widget"),
		widget("3", "Gamma", "a blue rubber gadget"),
	))
	require.NoError(t, <-txn.GetCompletionPromise())

	txn2, err := p.OpenTransaction(ctx, []string{"widgets"}, false)
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

func TestNativeFullTextSearchPrefixMatch(t *testing.T) {
	p := setupNativeFTSProvider(t)
	ctx := context.Background()

	txn, err := p.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx,
		widget("1", "Alpha", "a gadget in the kitchen category"),
		widget("2", "Beta", "a gadget in the garage"),
	))
	require.NoError(t, <-txn.GetCompletionPromise())

	txn2, err := p.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store2, err := txn2.GetStore("widgets")
	require.NoError(t, err)
	idx, err := store2.OpenIndex("by_description")
	require.NoError(t, err)

	results, err := idx.FullTextSearch(ctx, "cat", nosql.ResolutionAnd, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Alpha", results[0].(map[string]any)["name"])
	require.NoError(t, <-txn2.GetCompletionPromise())
}

// TestNativeFullTextSearchSurvivesReopen reopens the same database a second
// time without wiping, exercising the migration engine's obsolete-table
// sweep against an fts5 virtual table's shadow tables. Before the sweep
// learned to recognize fts5 shadow tables, this reopen corrupted the
// virtual table and made the subsequent search fail.
func TestNativeFullTextSearchSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "widgets.db")

	executor, err := sqlexec.OpenModernc(dsn)
	require.NoError(t, err)
	p := NewProvider(executor, nosql.DriverCapabilities{SupportsNativeFTS: true}, dsn)
	require.NoError(t, p.OpenDatabase(ctx, "widgets", widgetSchema(1), false, false))

	txn, err := p.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, widget("1", "Alpha", "a red rubber gadget")))
	require.NoError(t, <-txn.GetCompletionPromise())
	require.NoError(t, p.Close(ctx))

	executor2, err := sqlexec.OpenModernc(dsn)
	require.NoError(t, err)
	p2 := NewProvider(executor2, nosql.DriverCapabilities{SupportsNativeFTS: true}, dsn)
	require.NoError(t, p2.OpenDatabase(ctx, "widgets", widgetSchema(1), false, false))
	defer p2.Close(ctx)

	txn2, err := p2.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store2, err := txn2.GetStore("widgets")
	require.NoError(t, err)
	idx, err := store2.OpenIndex("by_description")
	require.NoError(t, err)

	results, err := idx.FullTextSearch(ctx, "red", nosql.ResolutionAnd, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, <-txn2.GetCompletionPromise())
}
