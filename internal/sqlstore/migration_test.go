package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosqlprovider-go/cupboard/internal/sqlexec"
	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
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

func TestMigrationAddsIndexAndPreservesData(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "migrate.db")

	executor, err := sqlexec.OpenModernc(dsn)
	require.NoError(t, err)
	p := NewProvider(executor, nosql.DriverCapabilities{}, dsn)
	require.NoError(t, p.OpenDatabase(ctx, "widgets", baseSchema(1), false, false))

	txn, err := p.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, map[string]any{"id": "1", "name": "Alpha", "tag": []any{"red"}}))
	require.NoError(t, <-txn.GetCompletionPromise())
	require.NoError(t, p.Close(ctx))

	executor2, err := sqlexec.OpenModernc(dsn)
	require.NoError(t, err)
	p2 := NewProvider(executor2, nosql.DriverCapabilities{}, dsn)
	require.NoError(t, p2.OpenDatabase(ctx, "widgets", withExtraIndex(2), false, false))

	txn2, err := p2.OpenTransaction(ctx, []string{"widgets"}, false)
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
	require.NoError(t, p2.Close(ctx))
}

func TestMigrationVersionTooNewWithoutWipe(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "downgrade.db")

	executor, err := sqlexec.OpenModernc(dsn)
	require.NoError(t, err)
	p := NewProvider(executor, nosql.DriverCapabilities{}, dsn)
	require.NoError(t, p.OpenDatabase(ctx, "widgets", baseSchema(5), false, false))
	require.NoError(t, p.Close(ctx))

	executor2, err := sqlexec.OpenModernc(dsn)
	require.NoError(t, err)
	p2 := NewProvider(executor2, nosql.DriverCapabilities{}, dsn)
	err = p2.OpenDatabase(ctx, "widgets", baseSchema(2), false, false)
	assert.ErrorIs(t, err, schema.ErrVersionTooNew)
}

func TestMigrationWipeOnDowngradeWhenOptedIn(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "wipe.db")

	executor, err := sqlexec.OpenModernc(dsn)
	require.NoError(t, err)
	p := NewProvider(executor, nosql.DriverCapabilities{}, dsn)
	require.NoError(t, p.OpenDatabase(ctx, "widgets", baseSchema(5), false, false))

	txn, err := p.OpenTransaction(ctx, []string{"widgets"}, true)
	require.NoError(t, err)
	store, err := txn.GetStore("widgets")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, map[string]any{"id": "1", "name": "Alpha"}))
	require.NoError(t, <-txn.GetCompletionPromise())
	require.NoError(t, p.Close(ctx))

	executor2, err := sqlexec.OpenModernc(dsn)
	require.NoError(t, err)
	p2 := NewProvider(executor2, nosql.DriverCapabilities{}, dsn)
	require.NoError(t, p2.OpenDatabase(ctx, "widgets", baseSchema(2), true, false))

	txn2, err := p2.OpenTransaction(ctx, []string{"widgets"}, false)
	require.NoError(t, err)
	store2, err := txn2.GetStore("widgets")
	require.NoError(t, err)
	_, ok, err := store2.Get(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, <-txn2.GetCompletionPromise())
}

func TestMigrationDropsObsoleteStore(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "drop.db")

	twoStores := schema.Schema{
		Version: 1,
		Stores: []schema.StoreSchema{
			{Name: "widgets", PrimaryKeyPath: schema.KeyPath{"id"}},
			{Name: "gadgets", PrimaryKeyPath: schema.KeyPath{"id"}},
		},
	}
	executor, err := sqlexec.OpenModernc(dsn)
	require.NoError(t, err)
	p := NewProvider(executor, nosql.DriverCapabilities{}, dsn)
	require.NoError(t, p.OpenDatabase(ctx, "widgets", twoStores, false, false))
	require.NoError(t, p.Close(ctx))

	oneStore := schema.Schema{
		Version: 2,
		Stores:  []schema.StoreSchema{{Name: "widgets", PrimaryKeyPath: schema.KeyPath{"id"}}},
	}
	executor2, err := sqlexec.OpenModernc(dsn)
	require.NoError(t, err)
	p2 := NewProvider(executor2, nosql.DriverCapabilities{}, dsn)
	require.NoError(t, p2.OpenDatabase(ctx, "widgets", oneStore, false, false))

	_, err = p2.OpenTransaction(ctx, []string{"gadgets"}, false)
	assert.ErrorIs(t, err, schema.ErrStoreNotFound)
}
