package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nosqlprovider-go/cupboard/internal/sqlexec"
	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

const createMetadataTable = `CREATE TABLE IF NOT EXISTS metadata (
  name TEXT PRIMARY KEY,
  value TEXT
)`

func ensureMetadataTable(ctx context.Context, tx sqlexec.Tx) error {
	_, err := tx.ExecContext(ctx, createMetadataTable)
	return err
}

func readSchemaVersion(ctx context.Context, tx sqlexec.Tx) (int, error) {
	row := tx.QueryRowContext(ctx, "SELECT value FROM metadata WHERE name = ?", schema.SchemaVersionKey)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("read schemaVersion: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse schemaVersion: %w", err)
	}
	return v, nil
}

func writeSchemaVersion(ctx context.Context, tx sqlexec.Tx, version int) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO metadata (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value",
		schema.SchemaVersionKey, strconv.Itoa(version))
	return err
}

func readIndexMetadata(ctx context.Context, tx sqlexec.Tx, storeName, indexName string) (schema.IndexMetadata, bool, error) {
	row := tx.QueryRowContext(ctx, "SELECT value FROM metadata WHERE name = ?", schema.MetadataKey(storeName, indexName))
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return schema.IndexMetadata{}, false, nil
		}
		return schema.IndexMetadata{}, false, fmt.Errorf("read index metadata %s/%s: %w", storeName, indexName, err)
	}
	var im schema.IndexMetadata
	if err := json.Unmarshal([]byte(raw), &im); err != nil {
		return schema.IndexMetadata{}, false, fmt.Errorf("decode index metadata %s/%s: %w", storeName, indexName, err)
	}
	return im, true, nil
}

func writeIndexMetadata(ctx context.Context, tx sqlexec.Tx, storeName string, idx schema.IndexSchema) error {
	im := schema.IndexMetadata{Key: idx.KeyPath, StoreName: storeName, Index: idx}
	raw, err := json.Marshal(im)
	if err != nil {
		return fmt.Errorf("encode index metadata %s/%s: %w", storeName, idx.Name, err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO metadata (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value",
		schema.MetadataKey(storeName, idx.Name), string(raw))
	return err
}

func deleteIndexMetadata(ctx context.Context, tx sqlexec.Tx, storeName, indexName string) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM metadata WHERE name = ?", schema.MetadataKey(storeName, indexName))
	return err
}

// listTables returns every user table/virtual table name currently in
// sqlite_master (excluding sqlite_ internal tables).
func listTables(ctx context.Context, tx sqlexec.Tx) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type IN ('table') AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func tableCreateSQL(ctx context.Context, tx sqlexec.Tx, name string) (string, bool, error) {
	row := tx.QueryRowContext(ctx, "SELECT sql FROM sqlite_master WHERE type IN ('table','view') AND name = ?", name)
	var sqlText sql.NullString
	if err := row.Scan(&sqlText); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return sqlText.String, true, nil
}
