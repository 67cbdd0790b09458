package migrate

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/portion-tracker-go/log"
	"github.com/mpapenbr/portion-tracker-go/pkg/cmd/common"
	"github.com/mpapenbr/portion-tracker-go/pkg/config"
	"github.com/mpapenbr/portion-tracker-go/pkg/db/migrate"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "creates or updates the schema of the postgres record store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startMigration(cmd.Context())
		},
	}
	return cmd
}

func startMigration(ctx context.Context) error {
	if _, err := common.SetupLogger(); err != nil {
		return err
	}
	if err := common.WaitForDatabase(ctx); err != nil {
		log.Error("database not ready", log.ErrorField(err))
		return err
	}

	if err := migrate.MigrateDb(config.DB); err != nil {
		log.Error("migration failed", log.ErrorField(err))
		return err
	}
	version, dirty, err := migrate.Version(config.DB)
	if err != nil {
		return err
	}
	log.Info("Database schema is up to date",
		log.Uint("version", version), log.Bool("dirty", dirty))
	return nil
}
