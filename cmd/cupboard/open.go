// Open command runs the schema migration engine against a declared schema
// and reports success.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagSchemaPath string
	flagDBName     string
	flagWipe       bool
)

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open (migrating if necessary) a database against a declared schema",
	Args:  cobra.NoArgs,
	RunE:  runOpen,
}

func init() {
	registerSchemaFlags(openCmd)
	openCmd.Flags().BoolVar(&flagWipe, "wipe", false, "force a full wipe-and-recreate on open")
}

// registerSchemaFlags adds the --schema and --db flags shared by every
// command that opens a database.
func registerSchemaFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagSchemaPath, "schema", "", "path to a JSON schema document (required)")
	cmd.Flags().StringVar(&flagDBName, "db", "cupboard", "database name")
	_ = cmd.MarkFlagRequired("schema")
}

func runOpen(cmd *cobra.Command, args []string) error {
	declared, err := loadSchemaFile(flagSchemaPath)
	if err != nil {
		return err
	}

	provider, err := buildProvider(cmd.Context(), flagDBName, declared, flagWipe)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer provider.Close(cmd.Context())

	fmt.Fprintf(cmd.OutOrStdout(), "opened %q at schema version %d\n", flagDBName, declared.Version)
	return nil
}
