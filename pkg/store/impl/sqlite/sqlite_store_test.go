package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/portion-tracker-go/pkg/model"
	"github.com/mpapenbr/portion-tracker-go/pkg/store"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/factory"
)

var today = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

func sample(date time.Time, total int) *model.ComplianceRecord {
	return &model.ComplianceRecord{
		Date:    date,
		DayType: model.DayTypeHeavy,
		Total:   total,
		Groups:  [model.NumFoodGroups]int{100, 90, 75, 50, 100, 67, 0},
	}
}

func newStore(t *testing.T, file string) store.RecordStore {
	t.Helper()
	s, err := factory.New[store.RecordStore, Option](StoreTypeSqlite,
		[]store.Option{store.WithLocation(file)}, nil)
	assert.NoError(t, err)
	return s
}

func TestSqliteStore_SaveThenDelete(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "records.db")
	s := newStore(t, file)

	assert.NoError(t, s.Append(ctx, sample(today.AddDate(0, 0, -1), 50)))
	assert.NoError(t, s.Append(ctx, sample(today, 80)))
	assert.NoError(t, s.Append(ctx, sample(today, 81)))

	n, err := s.DeleteByDate(ctx, today)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := s.LoadAll(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, store.DateKey(today.AddDate(0, 0, -1)), store.DateKey(all[0].Date))
	assert.Equal(t, sample(today, 0).Groups, all[0].Groups)

	n, err = s.DeleteByDate(ctx, today)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.NoError(t, s.Close())
}

func TestSqliteStore_ReplaceDate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, filepath.Join(t.TempDir(), "records.db"))
	defer s.Close()

	r, ok := s.(store.Replacer)
	assert.True(t, ok)
	assert.NoError(t, s.Append(ctx, sample(today, 10)))
	assert.NoError(t, s.Append(ctx, sample(today, 20)))
	assert.NoError(t, r.ReplaceDate(ctx, sample(today, 99)))

	all, err := s.LoadAll(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, 99, all[0].Total)
	assert.Equal(t, model.DayTypeHeavy, all[0].DayType)
}

func TestSqliteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "records.db")
	s := newStore(t, file)
	assert.NoError(t, s.Append(ctx, sample(today, 70)))
	assert.NoError(t, s.Close())

	s = newStore(t, file)
	defer s.Close()
	all, err := s.LoadAll(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, 70, all[0].Total)
}
