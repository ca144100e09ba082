// Put command upserts one or more JSON items into a store.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

var flagStore string

var putCmd = &cobra.Command{
	Use:   "put [item...]",
	Short: "Put one or more JSON items into a store",
	Long: `Put upserts each JSON object argument into the named store.

With no arguments, items are read one JSON object per line from stdin.`,
	RunE: runPut,
}

func init() {
	registerSchemaFlags(putCmd)
	putCmd.Flags().StringVar(&flagStore, "store", "", "store name (required)")
	_ = putCmd.MarkFlagRequired("store")
}

func runPut(cmd *cobra.Command, args []string) error {
	declared, err := loadSchemaFile(flagSchemaPath)
	if err != nil {
		return err
	}

	items, err := parseItems(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: no items given", schema.ErrInvalidArgument)
	}

	ctx := cmd.Context()
	provider, err := buildProvider(ctx, flagDBName, declared, false)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer provider.Close(ctx)

	txn, err := provider.OpenTransaction(ctx, []string{flagStore}, true)
	if err != nil {
		return fmt.Errorf("open transaction: %w", err)
	}
	store, err := txn.GetStore(flagStore)
	if err != nil {
		_ = txn.Abort(err)
		return err
	}
	if err := store.Put(ctx, items...); err != nil {
		_ = txn.Abort(err)
		return err
	}
	if err := <-txn.GetCompletionPromise(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "put %d item(s) into %q\n", len(items), flagStore)
	return nil
}

// parseItems decodes args as JSON objects, one per argument; if args is
// empty it reads one JSON object per line from r instead.
func parseItems(r io.Reader, args []string) ([]any, error) {
	if len(args) > 0 {
		items := make([]any, 0, len(args))
		for _, a := range args {
			var item any
			if err := json.Unmarshal([]byte(a), &item); err != nil {
				return nil, fmt.Errorf("%w: parse item: %v", schema.ErrInvalidArgument, err)
			}
			items = append(items, item)
		}
		return items, nil
	}

	var items []any
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var item any
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			return nil, fmt.Errorf("%w: parse item: %v", schema.ErrInvalidArgument, err)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read stdin: %v", schema.ErrInvalidArgument, err)
	}
	return items, nil
}
