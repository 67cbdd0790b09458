// Package sqlite stores compliance records in a local sqlite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	_ "modernc.org/sqlite"

	"github.com/mpapenbr/portion-tracker-go/log"
	"github.com/mpapenbr/portion-tracker-go/pkg/model"
	"github.com/mpapenbr/portion-tracker-go/pkg/store"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/factory"
)

const DefaultFile = "registro_cumplimiento.db"

var StoreTypeSqlite factory.StoreType = "sqlite"

type (
	Option      func(*sqliteStore)
	sqliteStore struct {
		db  *sql.DB
		log *log.Logger
	}
	execer interface {
		ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	}
)

var _ store.Replacer = (*sqliteStore)(nil)

func WithLogger(l *log.Logger) Option {
	return func(s *sqliteStore) {
		s.log = l
	}
}

// one column per food group, named by the group key
var groupColumns = lo.Map(model.FoodGroups[:], func(g model.FoodGroup, _ int) string {
	return "g_" + string(g.Key)
})

func New(common []store.Option, specific []Option) (store.RecordStore, error) {
	cfg := &store.Config{Location: DefaultFile}
	for _, o := range common {
		o(cfg)
	}
	ret := &sqliteStore{log: log.Default().Named("store.sqlite")}
	for _, o := range specific {
		o(ret)
	}
	if cfg.Location == "" {
		return nil, errors.New("sqlite store requires a file name")
	}
	db, err := sql.Open("sqlite", cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Location, err)
	}
	// a single connection serialises writers and keeps ":memory:" databases alive
	db.SetMaxOpenConns(1)
	if err := createSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	ret.db = db
	ret.log.Debug("opened database", log.String("file", cfg.Location))
	return ret, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	cols := lo.Map(groupColumns, func(c string, _ int) string {
		return c + " INTEGER NOT NULL DEFAULT 0"
	})
	ddl := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS compliance_record (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_date TEXT NOT NULL,
		day_type TEXT NOT NULL,
		total INTEGER NOT NULL,
		%s,
		created TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS compliance_record_date_idx ON compliance_record (record_date);
	`, strings.Join(cols, ",\n\t\t"))
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

//nolint:whitespace // can't make both editor and linter happy
func (s *sqliteStore) Append(
	ctx context.Context, rec *model.ComplianceRecord,
) error {
	if err := insert(ctx, s.db, rec); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

func (s *sqliteStore) DeleteByDate(ctx context.Context, date time.Time) (int, error) {
	n, err := deleteByDate(ctx, s.db, date)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	return n, nil
}

// ReplaceDate removes the rows of rec's date and inserts rec in one transaction.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *sqliteStore) ReplaceDate(
	ctx context.Context, rec *model.ComplianceRecord,
) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace records: %w", err)
	}
	//nolint:errcheck // no-op after commit
	defer tx.Rollback()
	if _, err := deleteByDate(ctx, tx, rec.Date); err != nil {
		return fmt.Errorf("replace records: %w", err)
	}
	if err := insert(ctx, tx, rec); err != nil {
		return fmt.Errorf("replace records: %w", err)
	}
	return tx.Commit()
}

//nolint:whitespace // can't make both editor and linter happy
func (s *sqliteStore) LoadAll(ctx context.Context) (
	[]*model.ComplianceRecord, error,
) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
	SELECT record_date, day_type, total, %s FROM compliance_record
	ORDER BY record_date ASC, id ASC
	`, strings.Join(groupColumns, ", ")))
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()
	ret := []*model.ComplianceRecord{}
	for rows.Next() {
		var (
			item    model.ComplianceRecord
			date    string
			dayType string
		)
		dest := []any{&date, &dayType, &item.Total}
		for i := range item.Groups {
			dest = append(dest, &item.Groups[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("load records: %w", err)
		}
		if item.Date, err = store.ParseDate(date); err != nil {
			s.log.Warn("skipping row with invalid date", log.String("date", date))
			continue
		}
		item.DayType = model.DayType(dayType)
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return ret, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func insert(ctx context.Context, conn execer, rec *model.ComplianceRecord) error {
	args := []any{store.DateKey(rec.Date), string(rec.DayType), rec.Total}
	for _, v := range rec.Groups {
		args = append(args, v)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	_, err := conn.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO compliance_record (record_date, day_type, total, %s) VALUES (%s)",
		strings.Join(groupColumns, ", "), placeholders), args...)
	return err
}

func deleteByDate(ctx context.Context, conn execer, date time.Time) (int, error) {
	res, err := conn.ExecContext(ctx,
		"DELETE FROM compliance_record WHERE record_date = ?", store.DateKey(date))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func init() {
	factory.Register(StoreTypeSqlite, New)
}
