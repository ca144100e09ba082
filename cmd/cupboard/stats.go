// Stats command reports per-store and per-index row counts, humanized via
// go-humanize, using each index's CountAll operation.
package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report per-store and per-index row counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	registerSchemaFlags(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	storeNames := make([]string, len(declared.Stores))
	for i, st := range declared.Stores {
		storeNames[i] = st.Name
	}

	txn, err := provider.OpenTransaction(ctx, storeNames, false)
	if err != nil {
		return fmt.Errorf("open transaction: %w", err)
	}

	for _, st := range declared.Stores {
		store, err := txn.GetStore(st.Name)
		if err != nil {
			_ = txn.Abort(err)
			return err
		}
		pk, err := store.OpenPrimaryKey()
		if err != nil {
			_ = txn.Abort(err)
			return err
		}
		rows, err := pk.CountAll(ctx)
		if err != nil {
			_ = txn.Abort(err)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s item(s)\n", st.Name, humanize.Comma(int64(rows)))

		for _, idxSchema := range st.Indexes {
			idx, err := store.OpenIndex(idxSchema.Name)
			if err != nil {
				_ = txn.Abort(err)
				return err
			}
			n, err := idx.CountAll(ctx)
			if err != nil {
				_ = txn.Abort(err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s.%s: %s entr(y/ies)\n", st.Name, idxSchema.Name, humanize.Comma(int64(n)))
		}
	}

	<-txn.GetCompletionPromise()
	return nil
}
