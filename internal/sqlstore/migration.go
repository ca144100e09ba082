package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/nosqlprovider-go/cupboard/internal/logging"
	"github.com/nosqlprovider-go/cupboard/internal/sqlexec"
	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

// migrate reconciles declared against persisted state: ensure the metadata
// table exists, read the stored version, decide whether a wipe is needed,
// drop tables no longer declared, bring every declared store's table/index
// DDL in line with what's declared (recreating from scratch or rebuilding
// in place as needed), and record the new version. It must run inside a
// write transaction; on any error the caller rolls the transaction back,
// leaving persisted state unchanged.
func migrate(ctx context.Context, tx sqlexec.Tx, declared schema.Schema, wipeIfExists bool, caps nosql.DriverCapabilities, log logging.Logger) error {
	if err := ensureMetadataTable(ctx, tx); err != nil {
		return fmt.Errorf("ensure metadata table: %w", err)
	}

	vOld, err := readSchemaVersion(ctx, tx)
	if err != nil {
		return err
	}

	wipe := wipeIfExists
	if vOld > declared.Version {
		if !wipeIfExists {
			return schema.ErrVersionTooNew
		}
		wipe = true
	}
	if declared.LastUsableVersion != 0 && vOld < declared.LastUsableVersion {
		wipe = true
	}

	existingTables, err := listTables(ctx, tx)
	if err != nil {
		return err
	}
	existingSet := make(map[string]bool, len(existingTables))
	for _, t := range existingTables {
		existingSet[t] = true
	}

	if wipe {
		log.Debug("wiping database", "storedVersion", vOld, "declaredVersion", declared.Version)
		for _, name := range existingTables {
			if name == "metadata" || isFTS5ShadowTable(name, existingSet) {
				continue
			}
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", name)); err != nil {
				return fmt.Errorf("drop table %s: %w", name, err)
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM metadata WHERE name != ?", schema.SchemaVersionKey); err != nil {
			return fmt.Errorf("clear index metadata: %w", err)
		}
		existingSet = map[string]bool{"metadata": true}
	} else {
		required := requiredTableNames(declared, caps)
		for _, name := range existingTables {
			if name == "metadata" || required[name] || isFTS5ShadowTable(name, existingSet) {
				continue
			}
			log.Debug("dropping obsolete table", "table", name)
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", name)); err != nil {
				return fmt.Errorf("drop obsolete table %s: %w", name, err)
			}
			if err := dropTableMetadata(ctx, tx, name); err != nil {
				return err
			}
			delete(existingSet, name)
		}
	}

	for _, store := range declared.Stores {
		if err := migrateStore(ctx, tx, store, caps, existingSet, log); err != nil {
			return fmt.Errorf("migrate store %q: %w", store.Name, err)
		}
	}

	if err := writeSchemaVersion(ctx, tx, declared.Version); err != nil {
		return fmt.Errorf("write schemaVersion: %w", err)
	}
	return nil
}

func requiredTableNames(declared schema.Schema, caps nosql.DriverCapabilities) map[string]bool {
	req := map[string]bool{"metadata": true}
	for _, store := range declared.Stores {
		req[store.Name] = true
		for name := range canonicalSideTableDDL(store, caps) {
			req[name] = true
		}
	}
	return req
}

// fts5ShadowSuffixes lists the suffixes SQLite appends to an fts5 virtual
// table's name for the ordinary tables it manages internally.
var fts5ShadowSuffixes = []string{"_data", "_idx", "_docsize", "_content", "_config"}

// isFTS5ShadowTable reports whether name is one of the shadow tables SQLite
// auto-creates alongside an fts5 virtual table that is itself present in
// tables. SQLite manages a virtual table and its shadow tables as a unit;
// dropping a shadow table directly (rather than dropping the owning virtual
// table and letting SQLite cascade the cleanup) corrupts the index.
func isFTS5ShadowTable(name string, tables map[string]bool) bool {
	for _, suffix := range fts5ShadowSuffixes {
		if base, ok := strings.CutSuffix(name, suffix); ok && tables[base] {
			return true
		}
	}
	return false
}

func dropTableMetadata(ctx context.Context, tx sqlexec.Tx, tableName string) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM metadata WHERE name LIKE ?", tableName+"_%")
	return err
}

// migrateStore reconciles a single declared store against persisted state:
// compare-then-rebuild-or-create.
func migrateStore(ctx context.Context, tx sqlexec.Tx, store schema.StoreSchema, caps nosql.DriverCapabilities, existing map[string]bool, log logging.Logger) error {
	if !existing[store.Name] {
		return createStore(ctx, tx, store, caps, log)
	}

	drift, err := storeDrifted(ctx, tx, store, caps)
	if err != nil {
		return err
	}
	if !drift {
		return nil
	}
	return rebuildStore(ctx, tx, store, caps, log)
}

func storeDrifted(ctx context.Context, tx sqlexec.Tx, store schema.StoreSchema, caps nosql.DriverCapabilities) (bool, error) {
	existingSQL, ok, err := tableCreateSQL(ctx, tx, store.Name)
	if err != nil {
		return false, err
	}
	if !ok || !ddlMatches(existingSQL, canonicalCreateTable(store, caps)) {
		return true, nil
	}

	for _, idx := range store.Indexes {
		im, found, err := readIndexMetadata(ctx, tx, store.Name, idx.Name)
		if err != nil {
			return false, err
		}
		if !found || !reflect.DeepEqual(im.Index, idx) {
			return true, nil
		}
		if idx.MultiEntry || (idx.FullText && caps.SupportsNativeFTS) {
			sideSQL, exists, err := tableCreateSQL(ctx, tx, sideTableName(store.Name, idx.Name))
			if err != nil {
				return false, err
			}
			if !exists {
				return true, nil
			}
			_ = sideSQL
		}
	}
	return false, nil
}

// createStore creates a store's table, indexes, and side tables from
// scratch and records index metadata. Used both for brand-new stores and
// for the final half of rebuildStore; there is no data to migrate here.
func createStore(ctx context.Context, tx sqlexec.Tx, store schema.StoreSchema, caps nosql.DriverCapabilities, log logging.Logger) error {
	log.Debug("creating store", "store", store.Name)
	if _, err := tx.ExecContext(ctx, canonicalCreateTable(store, caps)); err != nil {
		return fmt.Errorf("create table %s: %w", store.Name, err)
	}
	for _, stmt := range canonicalIndexDDL(store, caps) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index on %s: %w", store.Name, err)
		}
	}
	for name, stmts := range canonicalSideTableDDL(store, caps) {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create side table %s: %w", name, err)
			}
		}
	}
	for _, idx := range store.Indexes {
		if err := writeIndexMetadata(ctx, tx, store.Name, idx); err != nil {
			return err
		}
	}
	return nil
}

// rebuildStore drops dependent indexes/side tables, renames the existing
// table to temp_<name>, recreates it from the declared schema,
// stream-reinserts every row via the normal put path (so indexes/side
// tables repopulate automatically), then drops the temp table.
func rebuildStore(ctx context.Context, tx sqlexec.Tx, store schema.StoreSchema, caps nosql.DriverCapabilities, log logging.Logger) error {
	log.Debug("rebuilding store", "store", store.Name)

	for _, idx := range store.Indexes {
		if idx.MultiEntry || idx.FullText {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", sideTableName(store.Name, idx.Name))); err != nil {
				return fmt.Errorf("drop side table for %s: %w", idx.Name, err)
			}
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP INDEX IF EXISTS idx_%s_%s", store.Name, idx.Name)); err != nil {
			return fmt.Errorf("drop index %s: %w", idx.Name, err)
		}
		if err := deleteIndexMetadata(ctx, tx, store.Name, idx.Name); err != nil {
			return err
		}
	}

	tempName := "temp_" + store.Name
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", tempName)); err != nil {
		return fmt.Errorf("drop stale temp table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", store.Name, tempName)); err != nil {
		return fmt.Errorf("rename %s to %s: %w", store.Name, tempName, err)
	}

	if err := createStore(ctx, tx, store, caps, log); err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", colData, tempName))
	if err != nil {
		return fmt.Errorf("stream rows from %s: %w", tempName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("scan row from %s: %w", tempName, err)
		}
		var item any
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return fmt.Errorf("decode row from %s: %w", tempName, err)
		}
		if err := putItemTx(ctx, tx, store, caps, item); err != nil {
			return fmt.Errorf("reinsert row during rebuild of %s: %w", store.Name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", tempName)); err != nil {
		return fmt.Errorf("drop temp table %s: %w", tempName, err)
	}
	return nil
}
