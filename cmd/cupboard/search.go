// Search command runs a full-text query against a declared full-text index.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
)

var (
	flagPhrase string
	flagOr     bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Full-text search a declared full-text index",
	Args:  cobra.NoArgs,
	RunE:  runSearch,
}

func init() {
	registerSchemaFlags(searchCmd)
	searchCmd.Flags().StringVar(&flagStore, "store", "", "store name (required)")
	searchCmd.Flags().StringVar(&flagIndex, "index", "", "full-text index name (required)")
	searchCmd.Flags().StringVar(&flagPhrase, "phrase", "", "search phrase (required)")
	searchCmd.Flags().BoolVar(&flagOr, "or", false, "union terms instead of intersecting them")
	searchCmd.Flags().Uint32Var(&flagLimit, "limit", 0, "maximum number of results (0 means unbounded)")
	_ = searchCmd.MarkFlagRequired("store")
	_ = searchCmd.MarkFlagRequired("index")
	_ = searchCmd.MarkFlagRequired("phrase")
}

func runSearch(cmd *cobra.Command, args []string) error {
	declared, err := loadSchemaFile(flagSchemaPath)
	if err != nil {
		return err
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
	idx, err := store.OpenIndex(flagIndex)
	if err != nil {
		_ = txn.Abort(err)
		return err
	}

	resolution := nosql.ResolutionAnd
	if flagOr {
		resolution = nosql.ResolutionOr
	}

	items, err := idx.FullTextSearch(ctx, flagPhrase, resolution, flagLimit)
	if err != nil {
		_ = txn.Abort(err)
		return err
	}
	<-txn.GetCompletionPromise()

	return printJSON(cmd, items)
}
