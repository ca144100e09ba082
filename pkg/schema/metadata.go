package schema

// IndexMetadata is the persisted record the migration engine compares
// against a freshly declared IndexSchema to detect drift across opens. One
// row is stored per declared index, keyed by "<storeName>_<indexName>" in
// the SQL metadata table; memstore keeps no such rows.
type IndexMetadata struct {
	Key       KeyPath     `json:"key"`
	StoreName string      `json:"storeName"`
	Index     IndexSchema `json:"index"`
}

// MetadataKey is the metadata-table row key for an index's IndexMetadata.
func MetadataKey(storeName, indexName string) string {
	return storeName + "_" + indexName
}

// SchemaVersionKey is the metadata-table row key for the stored schema version.
const SchemaVersionKey = "schemaVersion"
