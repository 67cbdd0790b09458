// Package common holds setup shared by the commands.
package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mpapenbr/portion-tracker-go/log"
	"github.com/mpapenbr/portion-tracker-go/pkg/config"
	database "github.com/mpapenbr/portion-tracker-go/pkg/db/postgres"
	"github.com/mpapenbr/portion-tracker-go/pkg/store"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/factory"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/impl/gsheet"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/impl/memory"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/impl/postgres"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/impl/sqlite"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/impl/xlsx"
	"github.com/mpapenbr/portion-tracker-go/pkg/utils"
)

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger creates the logger from the log flags and makes it the default.
func SetupLogger() (*log.Logger, error) {
	opts := []log.Option{log.WithCaller(true), log.AddCallerSkip(1)}
	if config.LogFilter != "" {
		filter, err := log.WithFilter(config.LogFilter)
		if err != nil {
			return nil, fmt.Errorf("invalid log filter: %w", err)
		}
		opts = append(opts, filter)
	}
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			opts...)
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.DebugLevel),
			opts...)
	}
	log.ResetDefault(logger)
	return logger, nil
}

// NewRecordStore creates the record store selected by the store flags.
func NewRecordStore(ctx context.Context) (store.RecordStore, error) {
	st := factory.StoreType(config.Store)
	log.Debug("creating record store", log.String("type", config.Store))
	switch st {
	case xlsx.StoreTypeXlsx:
		return factory.New[store.RecordStore, xlsx.Option](st,
			[]store.Option{store.WithLocation(config.XlsxFile)},
			[]xlsx.Option{xlsx.WithSheet(config.XlsxSheet)})
	case sqlite.StoreTypeSqlite:
		return factory.New[store.RecordStore, sqlite.Option](st,
			[]store.Option{store.WithLocation(config.SqliteFile)}, nil)
	case gsheet.StoreTypeGsheet:
		return factory.New[store.RecordStore, gsheet.Option](st,
			[]store.Option{store.WithLocation(config.GsheetID)},
			[]gsheet.Option{
				gsheet.WithCredentialsFile(config.GsheetCredentials),
				gsheet.WithTab(config.GsheetTab),
			})
	case postgres.StoreTypePostgres:
		if err := WaitForDatabase(ctx); err != nil {
			return nil, err
		}
		var poolOpts []database.PoolConfigOption
		if config.EnableTelemetry {
			poolOpts = append(poolOpts, database.WithTelemetry())
		}
		return factory.New[store.RecordStore, postgres.Option](st,
			[]store.Option{store.WithLocation(config.DB)},
			[]postgres.Option{
				postgres.WithMigrate(config.Migrate),
				postgres.WithPoolOptions(poolOpts...),
			})
	case memory.StoreTypeMemory:
		return factory.New[store.RecordStore, memory.Option](st, nil, nil)
	default:
		return nil, fmt.Errorf("%w: %q (available: %v)",
			factory.ErrStoreTypeNotSupported, config.Store, factory.Types())
	}
}

// WaitForDatabase waits until the database of the db flag accepts connections.
func WaitForDatabase(ctx context.Context) error {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	addr := utils.ExtractFromDBURL(config.DB)
	if addr == "" {
		return errors.New("invalid database url")
	}
	if err := utils.WaitForTCP(ctx, addr, timeout); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	return nil
}
