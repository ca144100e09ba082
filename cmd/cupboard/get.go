// Get command fetches a single item by primary key.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a single item by primary key",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	registerSchemaFlags(getCmd)
	getCmd.Flags().StringVar(&flagStore, "store", "", "store name (required)")
	_ = getCmd.MarkFlagRequired("store")
}

func runGet(cmd *cobra.Command, args []string) error {
	declared, err := loadSchemaFile(flagSchemaPath)
	if err != nil {
		return err
	}

	var key any
	if err := json.Unmarshal([]byte(args[0]), &key); err != nil {
		return fmt.Errorf("%w: parse key: %v", schema.ErrInvalidArgument, err)
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

	item, ok, err := store.Get(ctx, key)
	if err != nil {
		_ = txn.Abort(err)
		return err
	}
	<-txn.GetCompletionPromise()

	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "null")
		return nil
	}
	return printJSON(cmd, item)
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
