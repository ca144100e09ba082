package sqlstore

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

const (
	colPK   = "nsp_pk"
	colData = "nsp_data"
)

func indexColumn(indexName string) string {
	return "nsp_i_" + indexName
}

func sideTableName(storeName, indexName string) string {
	return storeName + "_" + indexName
}

// columnIndexes returns the indexes represented as a column on the base
// table: plain indexes, and FTS indexes when the backend lacks native FTS
// (stored as a sentinel-delimited token concatenation).
func columnIndexes(store schema.StoreSchema, caps nosql.DriverCapabilities) []schema.IndexSchema {
	var out []schema.IndexSchema
	for _, idx := range store.Indexes {
		if idx.MultiEntry {
			continue
		}
		if idx.FullText && caps.SupportsNativeFTS {
			continue
		}
		out = append(out, idx)
	}
	return out
}

// sideTableIndexes returns the indexes backed by a dedicated side table:
// multi-entry indexes, and FTS indexes on a backend with native FTS.
func sideTableIndexes(store schema.StoreSchema, caps nosql.DriverCapabilities) []schema.IndexSchema {
	var out []schema.IndexSchema
	for _, idx := range store.Indexes {
		if idx.MultiEntry || (idx.FullText && caps.SupportsNativeFTS) {
			out = append(out, idx)
		}
	}
	return out
}

// canonicalCreateTable regenerates the CREATE TABLE text for store the same
// way the migration engine expects to find it on disk: nsp_pk primary key,
// nsp_data payload, one nsp_i_<index> column per column-based index, in
// declared index order.
func canonicalCreateTable(store schema.StoreSchema, caps nosql.DriverCapabilities) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", store.Name)
	fmt.Fprintf(&b, "  %s TEXT PRIMARY KEY,\n", colPK)
	fmt.Fprintf(&b, "  %s TEXT", colData)
	for _, idx := range columnIndexes(store, caps) {
		fmt.Fprintf(&b, ",\n  %s TEXT", indexColumn(idx.Name))
	}
	b.WriteString("\n)")
	return b.String()
}

// canonicalIndexDDL regenerates the CREATE INDEX statements for store's
// column-based indexes; unique indexes are emitted as CREATE UNIQUE INDEX so
// SQLite enforces uniqueness on insert.
func canonicalIndexDDL(store schema.StoreSchema, caps nosql.DriverCapabilities) []string {
	var out []string
	for _, idx := range columnIndexes(store, caps) {
		col := indexColumn(idx.Name)
		name := fmt.Sprintf("idx_%s_%s", store.Name, idx.Name)
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		out = append(out, fmt.Sprintf("CREATE %sINDEX %s ON %s(%s)", unique, name, store.Name, col))
	}
	return out
}

// canonicalSideTableDDL regenerates the CREATE TABLE/VIRTUAL TABLE and
// supporting index statements for store's side-table indexes.
func canonicalSideTableDDL(store schema.StoreSchema, caps nosql.DriverCapabilities) map[string][]string {
	out := make(map[string][]string)
	for _, idx := range sideTableIndexes(store, caps) {
		name := sideTableName(store.Name, idx.Name)
		if idx.FullText {
			out[name] = []string{
				fmt.Sprintf("CREATE VIRTUAL TABLE %s USING fts5(nsp_tokens, nsp_refpk UNINDEXED)", name),
			}
			continue
		}
		stmts := []string{
			fmt.Sprintf(`CREATE TABLE %s (
  nsp_key TEXT NOT NULL,
  nsp_refpk TEXT NOT NULL%s
)`, name, sideDataColumn(idx)),
			fmt.Sprintf("CREATE INDEX %s_key ON %s(nsp_key)", name, name),
			fmt.Sprintf("CREATE INDEX %s_refpk ON %s(nsp_refpk)", name, name),
		}
		out[name] = stmts
	}
	return out
}

func sideDataColumn(idx schema.IndexSchema) string {
	if idx.IncludeDataInIndex {
		return ",\n  nsp_data TEXT"
	}
	return ""
}

var ddlWhitespace = regexp.MustCompile(`\s+`)

// normalizeDDL collapses whitespace runs and uppercases the whole text so two
// semantically identical CREATE TABLE texts compare equal regardless of how
// sqlite_master happens to have stored the original statement's formatting.
func normalizeDDL(ddl string) string {
	collapsed := ddlWhitespace.ReplaceAllString(strings.TrimSpace(ddl), " ")
	return strings.ToUpper(collapsed)
}

// ddlMatches reports whether two CREATE TABLE texts are the same after
// whitespace normalization; a mismatch triggers a store rebuild.
func ddlMatches(a, b string) bool {
	return normalizeDDL(a) == normalizeDDL(b)
}
