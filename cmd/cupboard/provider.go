// Provider construction for the cupboard CLI: turns the resolved config and
// flags into a concrete nosql.Provider, either SQL-backed or in-memory.
package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/nosqlprovider-go/cupboard/internal/memstore"
	"github.com/nosqlprovider-go/cupboard/internal/sqlexec"
	"github.com/nosqlprovider-go/cupboard/internal/sqlstore"
	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

// buildProvider resolves the data directory and configured backend, opens
// the database against declared, and returns a ready-to-use Provider.
func buildProvider(ctx context.Context, dbName string, declared schema.Schema, wipeIfExists bool) (nosql.Provider, error) {
	switch configBackend {
	case "memory":
		engine := memstore.NewEngine()
		if err := engine.OpenDatabase(ctx, dbName, declared, wipeIfExists, flagVerbose); err != nil {
			return nil, err
		}
		return engine, nil
	case "sql", "":
		return buildSQLProvider(ctx, dbName, declared, wipeIfExists)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q (want \"sql\" or \"memory\")", schema.ErrInvalidArgument, configBackend)
	}
}

func buildSQLProvider(ctx context.Context, dbName string, declared schema.Schema, wipeIfExists bool) (nosql.Provider, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	if err := ensureConfigDir(dataDir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dsn := filepath.Join(dataDir, dbName+".db")

	var (
		executor sqlexec.Executor
		caps     nosql.DriverCapabilities
	)
	switch configSQLEngine {
	case "mattn":
		if configNativeFTS {
			return nil, fmt.Errorf("%w: native_fts is only supported with sql_engine \"modernc\"", schema.ErrInvalidArgument)
		}
		executor, err = sqlexec.OpenCgoSQLite(dsn)
		caps = nosql.DriverCapabilities{RequiresUnicodeReplacement: true, MaxVariablesPerStatement: 999}
	case "modernc", "":
		executor, err = sqlexec.OpenModernc(dsn)
		caps = nosql.DriverCapabilities{MaxVariablesPerStatement: 999, SupportsNativeFTS: configNativeFTS}
	default:
		return nil, fmt.Errorf("%w: unknown sql_engine %q (want \"modernc\" or \"mattn\")", schema.ErrInvalidArgument, configSQLEngine)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", schema.ErrBackendUnavailable, err)
	}

	p := sqlstore.NewProvider(executor, caps, dsn)
	if err := p.OpenDatabase(ctx, dbName, declared, wipeIfExists, flagVerbose); err != nil {
		_ = executor.Close()
		return nil, err
	}
	return p, nil
}

// isUserError reports whether err should be reported as a user mistake
// (bad schema, missing store/index, malformed key) rather than a backend
// failure.
func isUserError(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, schema.ErrInvalidArgument),
		errors.Is(err, schema.ErrInvalidKey),
		errors.Is(err, schema.ErrStoreNotFound),
		errors.Is(err, schema.ErrIndexNotFound),
		errors.Is(err, schema.ErrVersionTooNew):
		return true
	default:
		return false
	}
}
