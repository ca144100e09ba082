package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nosqlprovider-go/cupboard/internal/sqlexec"
	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

func widgetSchema(version int) schema.Schema {
	return schema.Schema{
		Version: version,
		Stores: []schema.StoreSchema{
			{
				Name:           "widgets",
				PrimaryKeyPath: schema.KeyPath{"id"},
				Indexes: []schema.IndexSchema{
					{Name: "by_name", KeyPath: schema.KeyPath{"name"}},
					{Name: "by_tag", KeyPath: schema.KeyPath{"tag"}, MultiEntry: true},
					{Name: "by_description", KeyPath: schema.KeyPath{"description"}, FullText: true},
				},
			},
		},
	}
}

// setupProvider opens a fresh Provider backed by a temp-file modernc.org/sqlite
// database with the widget schema migrated in.
func setupProvider(t *testing.T) *Provider {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "widgets.db")
	executor, err := sqlexec.OpenModernc(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { executor.Close() })

	p := NewProvider(executor, nosql.DriverCapabilities{SupportsNativeFTS: false}, dsn)
	require.NoError(t, p.OpenDatabase(context.Background(), "widgets", widgetSchema(1), false, false))
	return p
}

// setupNativeFTSProvider is like setupProvider but advertises native FTS
// support, so full-text indexes get an fts5 virtual table instead of the
// LIKE-fallback column.
func setupNativeFTSProvider(t *testing.T) *Provider {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "widgets.db")
	executor, err := sqlexec.OpenModernc(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { executor.Close() })

	p := NewProvider(executor, nosql.DriverCapabilities{SupportsNativeFTS: true}, dsn)
	require.NoError(t, p.OpenDatabase(context.Background(), "widgets", widgetSchema(1), false, false))
	return p
}

func widget(id, name, description string, tags ...string) map[string]any {
	tagVals := make([]any, len(tags))
	for i, t := range tags {
		tagVals[i] = t
	}
	return map[string]any{
		"id":          id,
		"name":        name,
		"description": description,
		"tag":         tagVals,
	}
}
