package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

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

// setupEngine opens a fresh in-memory Engine with the widget schema.
func setupEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine()
	require.NoError(t, e.OpenDatabase(context.Background(), "widgets", widgetSchema(1), false, false))
	return e
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
