package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nosqlprovider-go/cupboard/internal/fts"
	"github.com/nosqlprovider-go/cupboard/internal/keypathcodec"
	"github.com/nosqlprovider-go/cupboard/internal/sqlexec"
	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

// columnIndexView is the Index runtime for the primary key and for
// column-based secondary indexes (plain ordering, or the LIKE-fallback
// full-text column when the backend lacks native FTS).
type columnIndexView struct {
	tx     sqlexec.Tx
	store  schema.StoreSchema
	caps   nosql.DriverCapabilities
	column string
	idx    schema.IndexSchema
}

func orderDir(reverse bool) string {
	if reverse {
		return "DESC"
	}
	return "ASC"
}

func (v *columnIndexView) scanItems(ctx context.Context, query string, args []any) ([]any, error) {
	rows, err := v.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrBackendError, err)
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrBackendError, err)
		}
		var item any
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("%w: decode item: %v", schema.ErrBackendError, err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (v *columnIndexView) GetAll(ctx context.Context, reverse bool, limit, offset uint32) ([]any, error) {
	limit = nosql.ClampLimit(limit)
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s %s LIMIT ? OFFSET ?", colData, v.store.Name, v.column, orderDir(reverse))
	return v.scanItems(ctx, query, []any{limit, offset})
}

func (v *columnIndexView) GetOnly(ctx context.Context, key any, reverse bool, limit, offset uint32) ([]any, error) {
	serialized, err := keypathcodec.Serialize(key, v.idx.KeyPath)
	if err != nil {
		return nil, err
	}
	limit = nosql.ClampLimit(limit)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? ORDER BY %s %s LIMIT ? OFFSET ?", colData, v.store.Name, v.column, v.column, orderDir(reverse))
	return v.scanItems(ctx, query, []any{serialized, limit, offset})
}

func (v *columnIndexView) GetRange(ctx context.Context, lo, hi any, loExcl, hiExcl bool, reverse bool, limit, offset uint32) ([]any, error) {
	where, args, err := rangeClause(v.column, lo, hi, loExcl, hiExcl, v.idx.KeyPath)
	if err != nil {
		return nil, err
	}
	limit = nosql.ClampLimit(limit)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s %s LIMIT ? OFFSET ?", colData, v.store.Name, where, v.column, orderDir(reverse))
	args = append(args, limit, offset)
	return v.scanItems(ctx, query, args)
}

func (v *columnIndexView) count(ctx context.Context, where string, args []any) (uint64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", v.store.Name, where)
	row := v.tx.QueryRowContext(ctx, query, args...)
	var n uint64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", schema.ErrBackendError, err)
	}
	return n, nil
}

func (v *columnIndexView) CountAll(ctx context.Context) (uint64, error) {
	return v.count(ctx, "", nil)
}

func (v *columnIndexView) CountOnly(ctx context.Context, key any) (uint64, error) {
	serialized, err := keypathcodec.Serialize(key, v.idx.KeyPath)
	if err != nil {
		return 0, err
	}
	return v.count(ctx, fmt.Sprintf(" WHERE %s = ?", v.column), []any{serialized})
}

func (v *columnIndexView) CountRange(ctx context.Context, lo, hi any, loExcl, hiExcl bool) (uint64, error) {
	where, args, err := rangeClause(v.column, lo, hi, loExcl, hiExcl, v.idx.KeyPath)
	if err != nil {
		return 0, err
	}
	return v.count(ctx, where, args)
}

// FullTextSearch is only meaningful on the LIKE-fallback column (declared
// fullText, native FTS unavailable); every other column index rejects it.
func (v *columnIndexView) FullTextSearch(ctx context.Context, phrase string, resolution nosql.Resolution, limit uint32) ([]any, error) {
	if !v.idx.FullText {
		return nil, fmt.Errorf("%w: index %q is not full-text", schema.ErrInvalidArgument, v.idx.Name)
	}
	terms := fts.Tokenize(phrase)
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: phrase yields no search terms", schema.ErrInvalidArgument)
	}
	limit = nosql.ClampLimit(limit)

	if resolution == nosql.ResolutionAnd {
		clauses := make([]string, len(terms))
		args := make([]any, len(terms))
		for i, t := range terms {
			clauses[i] = fmt.Sprintf("%s LIKE ?", v.column)
			args[i] = "%" + likeSentinel + t + "%"
		}
		query := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIMIT ?", colData, v.store.Name, strings.Join(clauses, " AND "))
		args = append(args, limit)
		return v.scanItems(ctx, query, args)
	}

	parts := make([]string, len(terms))
	for i := range terms {
		parts[i] = fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s LIKE ?", colPK, colData, v.store.Name, v.column)
	}
	query := fmt.Sprintf("SELECT %s FROM (%s) LIMIT ?", colData, strings.Join(parts, " UNION "))
	args := make([]any, 0, len(terms)+1)
	for _, t := range terms {
		args = append(args, "%"+likeSentinel+t+"%")
	}
	args = append(args, limit)
	return v.scanItems(ctx, query, args)
}

// rangeClause builds a "WHERE col ⋛ ? [AND col ⋚ ?]" fragment, honoring
// unset bounds (both nil means no filter at all).
func rangeClause(column string, lo, hi any, loExcl, hiExcl bool, keyPath schema.KeyPath) (string, []any, error) {
	var clauses []string
	var args []any
	if lo != nil {
		s, err := keypathcodec.Serialize(lo, keyPath)
		if err != nil {
			return "", nil, err
		}
		op := ">="
		if loExcl {
			op = ">"
		}
		clauses = append(clauses, fmt.Sprintf("%s %s ?", column, op))
		args = append(args, s)
	}
	if hi != nil {
		s, err := keypathcodec.Serialize(hi, keyPath)
		if err != nil {
			return "", nil, err
		}
		op := "<="
		if hiExcl {
			op = "<"
		}
		clauses = append(clauses, fmt.Sprintf("%s %s ?", column, op))
		args = append(args, s)
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// sideTableIndexView is the Index runtime for multi-entry indexes, joining
// the side table's (nsp_key, nsp_refpk) rows back to the base table.
type sideTableIndexView struct {
	tx    sqlexec.Tx
	store schema.StoreSchema
	idx   schema.IndexSchema
}

func (v *sideTableIndexView) tableName() string { return sideTableName(v.store.Name, v.idx.Name) }

func (v *sideTableIndexView) scanItems(ctx context.Context, query string, args []any) ([]any, error) {
	rows, err := v.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrBackendError, err)
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrBackendError, err)
		}
		var item any
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("%w: decode item: %v", schema.ErrBackendError, err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (v *sideTableIndexView) join() string {
	return fmt.Sprintf("%s s JOIN %s b ON b.%s = s.nsp_refpk", v.tableName(), v.store.Name, colPK)
}

func (v *sideTableIndexView) GetAll(ctx context.Context, reverse bool, limit, offset uint32) ([]any, error) {
	limit = nosql.ClampLimit(limit)
	query := fmt.Sprintf("SELECT b.%s FROM %s ORDER BY s.nsp_key %s LIMIT ? OFFSET ?", colData, v.join(), orderDir(reverse))
	return v.scanItems(ctx, query, []any{limit, offset})
}

func (v *sideTableIndexView) GetOnly(ctx context.Context, key any, reverse bool, limit, offset uint32) ([]any, error) {
	serialized, err := keypathcodec.Serialize(key, v.idx.KeyPath)
	if err != nil {
		return nil, err
	}
	limit = nosql.ClampLimit(limit)
	query := fmt.Sprintf("SELECT b.%s FROM %s WHERE s.nsp_key = ? ORDER BY s.nsp_key %s LIMIT ? OFFSET ?", colData, v.join(), orderDir(reverse))
	return v.scanItems(ctx, query, []any{serialized, limit, offset})
}

func (v *sideTableIndexView) GetRange(ctx context.Context, lo, hi any, loExcl, hiExcl bool, reverse bool, limit, offset uint32) ([]any, error) {
	where, args, err := rangeClause("s.nsp_key", lo, hi, loExcl, hiExcl, v.idx.KeyPath)
	if err != nil {
		return nil, err
	}
	limit = nosql.ClampLimit(limit)
	query := fmt.Sprintf("SELECT b.%s FROM %s%s ORDER BY s.nsp_key %s LIMIT ? OFFSET ?", colData, v.join(), where, orderDir(reverse))
	args = append(args, limit, offset)
	return v.scanItems(ctx, query, args)
}

func (v *sideTableIndexView) count(ctx context.Context, where string, args []any) (uint64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", v.tableName(), where)
	row := v.tx.QueryRowContext(ctx, query, args...)
	var n uint64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", schema.ErrBackendError, err)
	}
	return n, nil
}

func (v *sideTableIndexView) CountAll(ctx context.Context) (uint64, error) {
	return v.count(ctx, "", nil)
}

func (v *sideTableIndexView) CountOnly(ctx context.Context, key any) (uint64, error) {
	serialized, err := keypathcodec.Serialize(key, v.idx.KeyPath)
	if err != nil {
		return 0, err
	}
	return v.count(ctx, " WHERE nsp_key = ?", []any{serialized})
}

func (v *sideTableIndexView) CountRange(ctx context.Context, lo, hi any, loExcl, hiExcl bool) (uint64, error) {
	where, args, err := rangeClause("nsp_key", lo, hi, loExcl, hiExcl, v.idx.KeyPath)
	if err != nil {
		return 0, err
	}
	return v.count(ctx, where, args)
}

func (v *sideTableIndexView) FullTextSearch(ctx context.Context, phrase string, resolution nosql.Resolution, limit uint32) ([]any, error) {
	return nil, fmt.Errorf("%w: index %q is multiEntry, not full-text", schema.ErrInvalidArgument, v.idx.Name)
}

// nativeFTSIndexView is the Index runtime for fullText indexes on a backend
// with native FTS3/FTS5 support: an fts5 virtual table of (nsp_tokens,
// nsp_refpk). It supports only FullTextSearch; range/count queries over
// token soup have no natural ordering.
type nativeFTSIndexView struct {
	tx    sqlexec.Tx
	store schema.StoreSchema
	idx   schema.IndexSchema
}

func (v *nativeFTSIndexView) tableName() string { return sideTableName(v.store.Name, v.idx.Name) }

var errFTSOrderingUnsupported = fmt.Errorf("%w: full-text index supports only FullTextSearch", schema.ErrInvalidArgument)

func (v *nativeFTSIndexView) GetAll(ctx context.Context, reverse bool, limit, offset uint32) ([]any, error) {
	return nil, errFTSOrderingUnsupported
}

func (v *nativeFTSIndexView) GetOnly(ctx context.Context, key any, reverse bool, limit, offset uint32) ([]any, error) {
	return nil, errFTSOrderingUnsupported
}

func (v *nativeFTSIndexView) GetRange(ctx context.Context, lo, hi any, loExcl, hiExcl bool, reverse bool, limit, offset uint32) ([]any, error) {
	return nil, errFTSOrderingUnsupported
}

func (v *nativeFTSIndexView) CountAll(ctx context.Context) (uint64, error) { return 0, errFTSOrderingUnsupported }

func (v *nativeFTSIndexView) CountOnly(ctx context.Context, key any) (uint64, error) {
	return 0, errFTSOrderingUnsupported
}

func (v *nativeFTSIndexView) CountRange(ctx context.Context, lo, hi any, loExcl, hiExcl bool) (uint64, error) {
	return 0, errFTSOrderingUnsupported
}

func (v *nativeFTSIndexView) FullTextSearch(ctx context.Context, phrase string, resolution nosql.Resolution, limit uint32) ([]any, error) {
	terms := fts.Tokenize(phrase)
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: phrase yields no search terms", schema.ErrInvalidArgument)
	}
	limit = nosql.ClampLimit(limit)
	table := v.tableName()

	if resolution == nosql.ResolutionAnd {
		prefixed := make([]string, len(terms))
		for i, t := range terms {
			prefixed[i] = t + "*"
		}
		match := strings.Join(prefixed, " ")
		query := fmt.Sprintf(
			"SELECT b.%s FROM %s f JOIN %s b ON b.%s = f.nsp_refpk WHERE f MATCH ? LIMIT ?",
			colData, table, v.store.Name, colPK,
		)
		return v.scanItems(ctx, query, []any{match, limit})
	}

	subqueries := make([]string, len(terms))
	args := make([]any, len(terms))
	for i, t := range terms {
		subqueries[i] = fmt.Sprintf("SELECT nsp_refpk FROM %s WHERE %s MATCH ?", table, table)
		args[i] = t + "*"
	}
	query := fmt.Sprintf(
		"SELECT DISTINCT b.%s FROM (%s) t JOIN %s b ON b.%s = t.nsp_refpk LIMIT ?",
		colData, strings.Join(subqueries, " UNION ALL "), v.store.Name, colPK,
	)
	args = append(args, limit)
	return v.scanItems(ctx, query, args)
}

func (v *nativeFTSIndexView) scanItems(ctx context.Context, query string, args []any) ([]any, error) {
	rows, err := v.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrBackendError, err)
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrBackendError, err)
		}
		var item any
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("%w: decode item: %v", schema.ErrBackendError, err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
