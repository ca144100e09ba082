package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/nosqlprovider-go/cupboard/internal/fts"
	"github.com/nosqlprovider-go/cupboard/internal/keypathcodec"
	"github.com/nosqlprovider-go/cupboard/internal/logging"
	"github.com/nosqlprovider-go/cupboard/internal/sqlexec"
	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

// likeSentinel delimits tokens inside the synthetic index column used for
// LIKE-fallback full-text search on backends without native FTS. Every
// token is prefixed (and the whole run suffixed) with the sentinel, so a
// query for "%<sentinel><term>%" matches any stored token with term as a
// prefix.
const likeSentinel = "^$^"

// sqlStore is the per-transaction Store runtime (component C6, SQL flavor).
type sqlStore struct {
	tx           sqlexec.Tx
	store        schema.StoreSchema
	caps         nosql.DriverCapabilities
	maxVariables int
	log          logging.Logger
}

func newSQLStore(tx sqlexec.Tx, store schema.StoreSchema, caps nosql.DriverCapabilities, maxVariables int, log logging.Logger) *sqlStore {
	return &sqlStore{tx: tx, store: store, caps: caps, maxVariables: maxVariables, log: log}
}

func (s *sqlStore) Get(ctx context.Context, key any) (any, bool, error) {
	pk, err := keypathcodec.Serialize(key, s.store.PrimaryKeyPath)
	if err != nil {
		return nil, false, err
	}
	row := s.tx.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", colData, s.store.Name, colPK), pk)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", schema.ErrBackendError, err)
	}
	var item any
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return nil, false, fmt.Errorf("%w: decode item: %v", schema.ErrBackendError, err)
	}
	return item, true, nil
}

func (s *sqlStore) GetMultiple(ctx context.Context, keys []any) ([]any, error) {
	if len(keys) == 0 {
		return []any{}, nil
	}
	serialized := make([]string, len(keys))
	for i, k := range keys {
		pk, err := keypathcodec.Serialize(k, s.store.PrimaryKeyPath)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		serialized[i] = pk
	}

	found := make(map[string]any, len(serialized))
	batchSize := s.maxVariables
	if batchSize <= 0 {
		batchSize = 999
	}
	for start := 0; start < len(serialized); start += batchSize {
		end := start + batchSize
		if end > len(serialized) {
			end = len(serialized)
		}
		chunk := serialized[start:end]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, c := range chunk {
			args[i] = c
		}
		query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IN (%s)", colPK, colData, s.store.Name, colPK, placeholders)
		rows, err := s.tx.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrBackendError, err)
		}
		for rows.Next() {
			var pk, raw string
			if err := rows.Scan(&pk, &raw); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%w: %v", schema.ErrBackendError, err)
			}
			var item any
			if err := json.Unmarshal([]byte(raw), &item); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%w: decode item: %v", schema.ErrBackendError, err)
			}
			found[pk] = item
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: %v", schema.ErrBackendError, err)
		}
		rows.Close()
	}

	out := make([]any, 0, len(serialized))
	for _, pk := range serialized {
		if item, ok := found[pk]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *sqlStore) Put(ctx context.Context, items ...any) error {
	if len(items) == 0 {
		return nil
	}
	return batchPut(ctx, s.tx, s.store, s.caps, s.maxVariables, items)
}

func (s *sqlStore) Remove(ctx context.Context, keys ...any) error {
	for _, k := range keys {
		pk, err := keypathcodec.Serialize(k, s.store.PrimaryKeyPath)
		if err != nil {
			return err
		}
		if err := removeRow(ctx, s.tx, s.store, s.caps, pk); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlStore) ClearAllData(ctx context.Context) error {
	if _, err := s.tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.store.Name)); err != nil {
		return fmt.Errorf("%w: %v", schema.ErrBackendError, err)
	}
	for _, idx := range sideTableIndexes(s.store, s.caps) {
		name := sideTableName(s.store.Name, idx.Name)
		if _, err := s.tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", name)); err != nil {
			return fmt.Errorf("%w: %v", schema.ErrBackendError, err)
		}
	}
	return nil
}

func (s *sqlStore) OpenPrimaryKey() (nosql.Index, error) {
	return &columnIndexView{
		tx: s.tx, store: s.store, caps: s.caps,
		column: colPK, idx: schema.IndexSchema{Name: "(primary)", KeyPath: s.store.PrimaryKeyPath, Unique: true},
	}, nil
}

func (s *sqlStore) OpenIndex(name string) (nosql.Index, error) {
	idx, ok := s.store.Index(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", schema.ErrIndexNotFound, name)
	}
	if idx.MultiEntry {
		return &sideTableIndexView{tx: s.tx, store: s.store, idx: idx}, nil
	}
	if idx.FullText && s.caps.SupportsNativeFTS {
		return &nativeFTSIndexView{tx: s.tx, store: s.store, idx: idx}, nil
	}
	return &columnIndexView{tx: s.tx, store: s.store, caps: s.caps, column: indexColumn(idx.Name), idx: idx}, nil
}

// removeRow deletes pk's base row and every side-table row referencing it.
func removeRow(ctx context.Context, tx sqlexec.Tx, store schema.StoreSchema, caps nosql.DriverCapabilities, pk string) error {
	for _, idx := range sideTableIndexes(store, caps) {
		name := sideTableName(store.Name, idx.Name)
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE nsp_refpk = ?", name), pk); err != nil {
			return fmt.Errorf("%w: remove side rows from %s: %v", schema.ErrBackendError, name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", store.Name, colPK), pk); err != nil {
		return fmt.Errorf("%w: %v", schema.ErrBackendError, err)
	}
	return nil
}

// putItemTx upserts a single item: the base row plus every side-table
// refresh. Used directly by the migration engine's rebuild reinsert loop,
// and as the one-row case of batchPut.
func putItemTx(ctx context.Context, tx sqlexec.Tx, store schema.StoreSchema, caps nosql.DriverCapabilities, item any) error {
	return batchPut(ctx, tx, store, caps, 999, []any{item})
}

// columnValues extracts and serializes pk and every column-based index value
// for item, returning them in columnIndexes(store, caps) order.
func columnValues(item any, store schema.StoreSchema, caps nosql.DriverCapabilities) (pk string, dataJSON string, colVals []sql.NullString, err error) {
	pkVal, ok := keypathcodec.Extract(item, store.PrimaryKeyPath)
	if !ok {
		return "", "", nil, fmt.Errorf("%w: item has no value at primary key path", schema.ErrInvalidKey)
	}
	pk, err = keypathcodec.Serialize(pkVal, store.PrimaryKeyPath)
	if err != nil {
		return "", "", nil, err
	}

	raw, err := json.Marshal(item)
	if err != nil {
		return "", "", nil, fmt.Errorf("%w: encode item: %v", schema.ErrInvalidArgument, err)
	}
	dataJSON = string(raw)
	if caps.RequiresUnicodeReplacement {
		dataJSON = sqlexec.StripProblematicUnicode(dataJSON)
	}

	cols := columnIndexes(store, caps)
	colVals = make([]sql.NullString, len(cols))
	for i, idx := range cols {
		v, err := columnValueFor(item, idx)
		if err != nil {
			return "", "", nil, err
		}
		colVals[i] = v
	}
	return pk, dataJSON, colVals, nil
}

func columnValueFor(item any, idx schema.IndexSchema) (sql.NullString, error) {
	val, ok := keypathcodec.Extract(item, idx.KeyPath)
	if !ok {
		return sql.NullString{}, nil
	}
	if idx.FullText {
		s, ok := val.(string)
		if !ok {
			return sql.NullString{}, nil
		}
		tokens := fts.Tokenize(s)
		if len(tokens) == 0 {
			return sql.NullString{}, nil
		}
		return sql.NullString{String: likeSentinel + strings.Join(tokens, likeSentinel) + likeSentinel, Valid: true}, nil
	}
	s, err := keypathcodec.Serialize(val, idx.KeyPath)
	if err != nil {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: s, Valid: true}, nil
}

// refreshSideTables replaces pk's rows in every side-table-backed index with
// freshly extracted values from item.
func refreshSideTables(ctx context.Context, tx sqlexec.Tx, store schema.StoreSchema, caps nosql.DriverCapabilities, pk string, item any) error {
	for _, idx := range sideTableIndexes(store, caps) {
		name := sideTableName(store.Name, idx.Name)
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE nsp_refpk = ?", name), pk); err != nil {
			return fmt.Errorf("%w: clear side rows in %s: %v", schema.ErrBackendError, name, err)
		}

		val, ok := keypathcodec.Extract(item, idx.KeyPath)
		if !ok {
			continue
		}

		if idx.FullText {
			s, ok := val.(string)
			if !ok {
				continue
			}
			tokens := fts.Tokenize(s)
			if len(tokens) == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (nsp_tokens, nsp_refpk) VALUES (?, ?)", name), strings.Join(tokens, " "), pk); err != nil {
				return fmt.Errorf("%w: insert tokens into %s: %v", schema.ErrBackendError, name, err)
			}
			continue
		}

		for _, el := range multiEntryValues(val) {
			s, err := keypathcodec.Serialize(el, idx.KeyPath)
			if err != nil {
				continue
			}
			if idx.IncludeDataInIndex {
				data, _ := json.Marshal(item)
				if _, err := tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (nsp_key, nsp_refpk, nsp_data) VALUES (?, ?, ?)", name), s, pk, string(data)); err != nil {
					return fmt.Errorf("%w: insert side row into %s: %v", schema.ErrBackendError, name, err)
				}
			} else {
				if _, err := tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (nsp_key, nsp_refpk) VALUES (?, ?)", name), s, pk); err != nil {
					return fmt.Errorf("%w: insert side row into %s: %v", schema.ErrBackendError, name, err)
				}
			}
		}
	}
	return nil
}

// multiEntryValues normalizes a multiEntry index's extracted value into a
// slice of scalar key components: a slice/array is iterated element-wise, a
// scalar value is treated as a one-element entry.
func multiEntryValues(val any) []any {
	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{val}
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
