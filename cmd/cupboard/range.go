// Range command scans an index (or the primary key) within bounds.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

var (
	flagIndex    string
	flagLower    string
	flagUpper    string
	flagReverse  bool
	flagLimit    uint32
	flagOffset   uint32
)

var rangeCmd = &cobra.Command{
	Use:   "range",
	Short: "Scan an index (or the primary key) within a key range",
	Args:  cobra.NoArgs,
	RunE:  runRange,
}

func init() {
	registerSchemaFlags(rangeCmd)
	rangeCmd.Flags().StringVar(&flagStore, "store", "", "store name (required)")
	rangeCmd.Flags().StringVar(&flagIndex, "index", "", "index name (default: primary key)")
	rangeCmd.Flags().StringVar(&flagLower, "lo", "", "lower bound, JSON-encoded (unbounded if omitted)")
	rangeCmd.Flags().StringVar(&flagUpper, "hi", "", "upper bound, JSON-encoded (unbounded if omitted)")
	rangeCmd.Flags().BoolVar(&flagReverse, "reverse", false, "descending order")
	rangeCmd.Flags().Uint32Var(&flagLimit, "limit", 0, "maximum number of items (0 means unbounded)")
	rangeCmd.Flags().Uint32Var(&flagOffset, "offset", 0, "number of items to skip")
	_ = rangeCmd.MarkFlagRequired("store")
}

func runRange(cmd *cobra.Command, args []string) error {
	declared, err := loadSchemaFile(flagSchemaPath)
	if err != nil {
		return err
	}

	var lo, hi any
	if flagLower != "" {
		if err := json.Unmarshal([]byte(flagLower), &lo); err != nil {
			return fmt.Errorf("%w: parse --lo: %v", schema.ErrInvalidArgument, err)
		}
	}
	if flagUpper != "" {
		if err := json.Unmarshal([]byte(flagUpper), &hi); err != nil {
			return fmt.Errorf("%w: parse --hi: %v", schema.ErrInvalidArgument, err)
		}
	}

	ctx := cmd.Context()
	provider, err := buildProvider(ctx, flagDBName, declared, false)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer provider.Close(ctx)

	txn, err := provider.OpenTransaction(ctx, []string{flagStore}, false)
	if err != nil {
		return fmt.Errorf("open transaction: %w", err)
	}
	store, err := txn.GetStore(flagStore)
	if err != nil {
		_ = txn.Abort(err)
		return err
	}

	idx, err := openIndexOrPrimary(store, flagIndex)
	if err != nil {
		_ = txn.Abort(err)
		return err
	}

	var items []any
	switch {
	case lo == nil && hi == nil:
		items, err = idx.GetAll(ctx, flagReverse, flagLimit, flagOffset)
	default:
		items, err = idx.GetRange(ctx, lo, hi, false, false, flagReverse, flagLimit, flagOffset)
	}
	if err != nil {
		_ = txn.Abort(err)
		return err
	}
	<-txn.GetCompletionPromise()

	return printJSON(cmd, items)
}

func openIndexOrPrimary(store nosql.Store, name string) (nosql.Index, error) {
	if name == "" {
		return store.OpenPrimaryKey()
	}
	return store.OpenIndex(name)
}
