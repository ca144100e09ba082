// Migrate-check command runs the schema migration engine against a declared
// schema and reports whether it succeeded, without performing any other
// store operation.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCheckCmd = &cobra.Command{
	Use:   "migrate-check",
	Short: "Run the migration engine against a declared schema and report the result",
	Args:  cobra.NoArgs,
	RunE:  runMigrateCheck,
}

func init() {
	registerSchemaFlags(migrateCheckCmd)
	migrateCheckCmd.Flags().BoolVar(&flagWipe, "wipe", false, "force a full wipe-and-recreate on open")
}

func runMigrateCheck(cmd *cobra.Command, args []string) error {
	declared, err := loadSchemaFile(flagSchemaPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	provider, err := buildProvider(ctx, flagDBName, declared, flagWipe)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "migration failed: %v\n", err)
		return err
	}
	defer provider.Close(ctx)

	fmt.Fprintf(cmd.OutOrStdout(), "migration to version %d succeeded for %q\n", declared.Version, flagDBName)
	return nil
}
