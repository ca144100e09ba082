package sqlstore

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/nosqlprovider-go/cupboard/internal/sqlexec"
	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

type rowValues struct {
	pk      string
	data    string
	cols    []interface{}
	item    any
}

// batchPut upserts items into store, batching the base-table INSERT into
// groups sized by floor(maxVariables/columnsPerRow) so no single statement
// exceeds the driver's bound-parameter cap. Batches of row values are built
// concurrently (bounded by GOMAXPROCS) since extraction/serialization is pure
// CPU work; the resulting statements still execute one at a time against the
// single parent transaction, which cannot be shared across goroutines.
func batchPut(ctx context.Context, tx sqlexec.Tx, store schema.StoreSchema, caps nosql.DriverCapabilities, maxVariables int, items []any) error {
	cols := columnIndexes(store, caps)
	columnsPerRow := 2 + len(cols) // nsp_pk, nsp_data, one per column index

	if maxVariables <= 0 {
		maxVariables = 999
	}
	rowsPerBatch := maxVariables / columnsPerRow
	if rowsPerBatch < 1 {
		rowsPerBatch = 1
	}

	batches := chunkItems(items, rowsPerBatch)

	p := pool.NewWithResults[[]rowValues]().WithMaxGoroutines(runtime.GOMAXPROCS(0)).WithErrors()
	for _, batch := range batches {
		batch := batch
		p.Go(func() ([]rowValues, error) {
			out := make([]rowValues, len(batch))
			for i, item := range batch {
				pk, data, colVals, err := columnValues(item, store, caps)
				if err != nil {
					return nil, err
				}
				vals := make([]interface{}, len(colVals))
				for j, v := range colVals {
					vals[j] = v
				}
				out[i] = rowValues{pk: pk, data: data, cols: vals, item: item}
			}
			return out, nil
		})
	}
	built, err := p.Wait()
	if err != nil {
		return err
	}

	for _, rows := range built {
		if len(rows) == 0 {
			continue
		}
		if err := upsertBatch(ctx, tx, store, cols, rows); err != nil {
			return err
		}
		for _, r := range rows {
			if err := refreshSideTables(ctx, tx, store, caps, r.pk, r.item); err != nil {
				return err
			}
		}
	}
	return nil
}

func chunkItems(items []any, size int) [][]any {
	var batches [][]any
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// upsertBatch builds and executes a single multi-row
// INSERT ... VALUES (?,?,...),(?,?,...) ON CONFLICT(nsp_pk) DO UPDATE
// statement for rows.
func upsertBatch(ctx context.Context, tx sqlexec.Tx, store schema.StoreSchema, cols []schema.IndexSchema, rows []rowValues) error {
	columnNames := []string{colPK, colData}
	for _, idx := range cols {
		columnNames = append(columnNames, indexColumn(idx.Name))
	}

	placeholderRow := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columnNames)), ",") + ")"
	valueRows := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(columnNames))
	for i, r := range rows {
		valueRows[i] = placeholderRow
		args = append(args, r.pk, r.data)
		args = append(args, r.cols...)
	}

	updateClauses := make([]string, 0, len(columnNames)-1)
	for _, name := range columnNames[1:] {
		updateClauses = append(updateClauses, fmt.Sprintf("%s = excluded.%s", name, name))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s ON CONFLICT(%s) DO UPDATE SET %s",
		store.Name,
		strings.Join(columnNames, ", "),
		strings.Join(valueRows, ", "),
		colPK,
		strings.Join(updateClauses, ", "),
	)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if sqlexec.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", schema.ErrInvalidKey, err)
		}
		return fmt.Errorf("%w: %v", schema.ErrBackendError, err)
	}
	return nil
}
