// Schema file loading for the cupboard CLI: a JSON document describing a
// schema.Schema, passed to every command that opens a database.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

// indexDoc and storeDoc mirror schema.IndexSchema/StoreSchema with JSON tags;
// the schema package itself carries no encoding concerns.
type indexDoc struct {
	Name               string   `json:"name"`
	KeyPath            []string `json:"keyPath"`
	Unique             bool     `json:"unique,omitempty"`
	MultiEntry         bool     `json:"multiEntry,omitempty"`
	FullText           bool     `json:"fullText,omitempty"`
	IncludeDataInIndex bool     `json:"includeDataInIndex,omitempty"`
}

type storeDoc struct {
	Name           string     `json:"name"`
	PrimaryKeyPath []string   `json:"primaryKeyPath"`
	Indexes        []indexDoc `json:"indexes,omitempty"`
}

type schemaDoc struct {
	Version           int        `json:"version"`
	LastUsableVersion int        `json:"lastUsableVersion,omitempty"`
	Stores            []storeDoc `json:"stores"`
}

// loadSchemaFile reads and decodes path into a schema.Schema, validating it
// before returning.
func loadSchemaFile(path string) (schema.Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return schema.Schema{}, fmt.Errorf("%w: read schema file: %v", schema.ErrInvalidArgument, err)
	}

	var doc schemaDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return schema.Schema{}, fmt.Errorf("%w: parse schema file: %v", schema.ErrInvalidArgument, err)
	}

	declared := schema.Schema{Version: doc.Version, LastUsableVersion: doc.LastUsableVersion}
	for _, st := range doc.Stores {
		storeSchema := schema.StoreSchema{Name: st.Name, PrimaryKeyPath: schema.KeyPath(st.PrimaryKeyPath)}
		for _, idx := range st.Indexes {
			storeSchema.Indexes = append(storeSchema.Indexes, schema.IndexSchema{
				Name:               idx.Name,
				KeyPath:            schema.KeyPath(idx.KeyPath),
				Unique:             idx.Unique,
				MultiEntry:         idx.MultiEntry,
				FullText:           idx.FullText,
				IncludeDataInIndex: idx.IncludeDataInIndex,
			})
		}
		declared.Stores = append(declared.Stores, storeSchema)
	}

	if err := declared.Validate(); err != nil {
		return schema.Schema{}, err
	}
	return declared, nil
}
