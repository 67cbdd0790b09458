//nolint:errcheck // testsetup
package tcpostgres

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/portion-tracker-go/pkg/db/migrate"
	database "github.com/mpapenbr/portion-tracker-go/pkg/db/postgres"
)

// SetupTestDb starts a postgres container and returns a pool for the migrated database
func SetupTestDb() *pgxpool.Pool {
	ctx := context.Background()
	container, err := SetupPostgres(ctx,
		WithName("portion-tracker-test"),
		WithTmpfs(),
	)
	if err != nil {
		log.Fatal(err)
	}
	dbURL, err := container.ConnectionURL(ctx)
	if err != nil {
		log.Fatal(err)
	}
	return migrateAndConnect(ctx, dbURL)
}

// SetupExternalTestDb uses the database referenced by TESTDB_URL
func SetupExternalTestDb() *pgxpool.Pool {
	return migrateAndConnect(context.Background(), os.Getenv("TESTDB_URL"))
}

func migrateAndConnect(ctx context.Context, dbURL string) *pgxpool.Pool {
	if err := migrate.MigrateDb(dbURL); err != nil {
		log.Fatal(err)
	}
	pool, err := database.InitWithURL(ctx, dbURL)
	if err != nil {
		log.Fatal(err)
	}
	return pool
}

func ClearRecordTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from compliance_record")
}

func ClearAllTables(pool *pgxpool.Pool) {
	ClearRecordTable(pool)
}
