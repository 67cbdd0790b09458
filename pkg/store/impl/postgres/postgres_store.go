// Package postgres stores compliance records in a postgres table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"

	"github.com/mpapenbr/portion-tracker-go/log"
	"github.com/mpapenbr/portion-tracker-go/pkg/db/migrate"
	database "github.com/mpapenbr/portion-tracker-go/pkg/db/postgres"
	"github.com/mpapenbr/portion-tracker-go/pkg/model"
	"github.com/mpapenbr/portion-tracker-go/pkg/store"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/factory"
)

var StoreTypePostgres factory.StoreType = "postgres"

const (
	recordTable = "compliance_record"
	colID       = "id"
	colDate     = "record_date"
	colDayType  = "day_type"
	colTotal    = "total"
	colGroups   = "groups"
)

type (
	Option        func(*postgresStore)
	postgresStore struct {
		pool     *pgxpool.Pool
		ownsPool bool
		migrate  bool
		poolOpts []database.PoolConfigOption
		log      *log.Logger
	}
	querier interface {
		Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
		Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	}
)

var _ store.Replacer = (*postgresStore)(nil)

// WithPool uses an existing pool. The store will not close it.
func WithPool(pool *pgxpool.Pool) Option {
	return func(s *postgresStore) {
		s.pool = pool
	}
}

// WithMigrate applies pending schema migrations before the store is used.
func WithMigrate(arg bool) Option {
	return func(s *postgresStore) {
		s.migrate = arg
	}
}

// WithPoolOptions is applied when the store creates its own pool.
func WithPoolOptions(opts ...database.PoolConfigOption) Option {
	return func(s *postgresStore) {
		s.poolOpts = append(s.poolOpts, opts...)
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *postgresStore) {
		s.log = l
	}
}

func New(common []store.Option, specific []Option) (store.RecordStore, error) {
	cfg := &store.Config{}
	for _, o := range common {
		o(cfg)
	}
	ret := &postgresStore{log: log.Default().Named("store.postgres")}
	for _, o := range specific {
		o(ret)
	}
	if ret.pool != nil {
		return ret, nil
	}
	if cfg.Location == "" {
		return nil, errors.New("postgres store requires a database url")
	}
	if ret.migrate {
		if err := migrate.MigrateDb(cfg.Location); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	poolOpts := append([]database.PoolConfigOption{
		database.WithTracer(ret.log.Named("sql")),
	}, ret.poolOpts...)
	pool, err := database.InitWithURL(context.Background(), cfg.Location, poolOpts...)
	if err != nil {
		return nil, err
	}
	ret.pool = pool
	ret.ownsPool = true
	return ret, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (s *postgresStore) Append(
	ctx context.Context, rec *model.ComplianceRecord,
) error {
	if err := insert(ctx, s.pool, rec); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

func (s *postgresStore) DeleteByDate(ctx context.Context, date time.Time) (int, error) {
	n, err := deleteByDate(ctx, s.pool, date)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	return n, nil
}

// ReplaceDate removes the rows of rec's date and inserts rec in one transaction.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *postgresStore) ReplaceDate(
	ctx context.Context, rec *model.ComplianceRecord,
) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		n, err := deleteByDate(ctx, tx, rec.Date)
		if err != nil {
			return fmt.Errorf("replace records: %w", err)
		}
		if n > 0 {
			s.log.Debug("replaced rows", log.String("date", store.DateKey(rec.Date)),
				log.Int("count", n))
		}
		if err := insert(ctx, tx, rec); err != nil {
			return fmt.Errorf("replace records: %w", err)
		}
		return nil
	})
}

//nolint:whitespace // can't make both editor and linter happy
func (s *postgresStore) LoadAll(ctx context.Context) (
	[]*model.ComplianceRecord, error,
) {
	query, args, err := selectQuery(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()
	ret := []*model.ComplianceRecord{}
	for rows.Next() {
		var (
			item    model.ComplianceRecord
			dayType string
			groups  []int32
		)
		if err := rows.Scan(&item.Date, &dayType, &item.Total, &groups); err != nil {
			return nil, fmt.Errorf("load records: %w", err)
		}
		if len(groups) != model.NumFoodGroups {
			s.log.Warn("skipping row with unexpected group count",
				log.Int("groups", len(groups)))
			continue
		}
		item.DayType = model.DayType(dayType)
		item.Date = model.DateOnly(item.Date)
		for i, v := range groups {
			item.Groups[i] = int(v)
		}
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return ret, nil
}

func (s *postgresStore) Close() error {
	if s.ownsPool {
		s.pool.Close()
	}
	return nil
}

func insert(ctx context.Context, conn querier, rec *model.ComplianceRecord) error {
	query, args, err := insertQuery(ctx, rec)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, query, args...)
	return err
}

func deleteByDate(ctx context.Context, conn querier, date time.Time) (int, error) {
	query, args, err := deleteQuery(ctx, date)
	if err != nil {
		return 0, err
	}
	cmdTag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

//nolint:whitespace // can't make both editor and linter happy
func insertQuery(ctx context.Context, rec *model.ComplianceRecord) (
	string, []any, error,
) {
	groups := make([]int32, len(rec.Groups))
	for i, v := range rec.Groups {
		groups[i] = int32(v)
	}
	return psql.Insert(
		im.Into(recordTable, colDate, colDayType, colTotal, colGroups),
		im.Values(psql.Arg(store.DateKey(rec.Date), string(rec.DayType), rec.Total, groups)),
	).Build(ctx)
}

func deleteQuery(ctx context.Context, date time.Time) (string, []any, error) {
	return psql.Delete(
		dm.From(recordTable),
		dm.Where(psql.Quote(colDate).EQ(psql.Arg(store.DateKey(date)))),
	).Build(ctx)
}

func selectQuery(ctx context.Context) (string, []any, error) {
	return psql.Select(
		sm.Columns(colDate, colDayType, colTotal, colGroups),
		sm.From(recordTable),
		sm.OrderBy(colDate).Asc(),
		sm.OrderBy(colID).Asc(),
	).Build(ctx)
}

func init() {
	factory.Register(StoreTypePostgres, New)
}
