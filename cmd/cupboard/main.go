// Package main provides the cupboard CLI: open a declared schema against a
// SQL or in-memory backend, then put, get, range, and search items through
// the same nosql.Provider contract the backends implement.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFromError(err))
	}
}

// exitFromError maps a command error to an exit code. User-facing argument
// and schema errors exit 1; anything that reached the backend exits 2.
func exitFromError(err error) int {
	if isUserError(err) {
		return exitUserError
	}
	return exitSysError
}
