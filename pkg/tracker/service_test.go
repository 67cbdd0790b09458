package tracker

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/portion-tracker-go/pkg/compliance"
	"github.com/mpapenbr/portion-tracker-go/pkg/model"
	"github.com/mpapenbr/portion-tracker-go/pkg/store"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/impl/memory"
)

var now = time.Date(2026, 10, 18, 21, 30, 0, 0, time.UTC)

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	s, err := memory.New(nil, nil)
	assert.NoError(t, err)
	base := []Option{WithStore(s), WithClock(func() time.Time { return now })}
	return NewService(append(base, opts...)...)
}

func fullTraining(t *testing.T, srv *Service) *model.Compliance {
	t.Helper()
	required, _ := model.DayTypeTraining.RequiredPortions()
	checked := map[model.GroupKey]int{}
	for i, g := range model.FoodGroups {
		checked[g.Key] = int(required[i].IntPart()*2) + 1
	}
	c, err := srv.Evaluate(context.Background(), model.DayTypeTraining, checked)
	assert.NoError(t, err)
	return c
}

func TestParseSaveMode(t *testing.T) {
	tests := []struct {
		in      string
		want    SaveMode
		wantErr bool
	}{
		{"", SaveModeUpsert, false},
		{"upsert", SaveModeUpsert, false},
		{"append", SaveModeAppend, false},
		{"overwrite", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSaveMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownSaveMode)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_Evaluate(t *testing.T) {
	srv := newService(t)
	c := fullTraining(t, srv)
	assert.Equal(t, 100, c.Total)
	assert.Equal(t, model.LevelFull, c.Level)

	_, err := srv.Evaluate(context.Background(), "rest day", nil)
	assert.ErrorIs(t, err, compliance.ErrUnknownDayType)
}

func TestService_SaveThenDeleteToday(t *testing.T) {
	ctx := context.Background()
	srv := newService(t)
	rec, err := srv.Save(ctx, fullTraining(t, srv))
	assert.NoError(t, err)
	assert.Equal(t, model.DateOnly(now), rec.Date)
	assert.Equal(t, 100, rec.Total)

	found, err := srv.DeleteToday(ctx)
	assert.NoError(t, err)
	assert.True(t, found)

	all, err := srv.Records(ctx)
	assert.NoError(t, err)
	assert.Empty(t, all)

	found, err = srv.DeleteToday(ctx)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestService_SaveModes(t *testing.T) {
	tests := []struct {
		mode SaveMode
		want int
	}{
		{SaveModeUpsert, 1},
		{SaveModeAppend, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			ctx := context.Background()
			srv := newService(t, WithSaveMode(tt.mode))
			c := fullTraining(t, srv)
			_, err := srv.Save(ctx, c)
			assert.NoError(t, err)
			_, err = srv.Save(ctx, c)
			assert.NoError(t, err)
			all, err := srv.Records(ctx)
			assert.NoError(t, err)
			assert.Len(t, all, tt.want)
		})
	}
}

func TestService_UpsertKeepsOtherDays(t *testing.T) {
	ctx := context.Background()
	s, _ := memory.New(nil, []memory.Option{memory.WithRecords(model.ComplianceRecord{
		Date: model.DateOnly(now.AddDate(0, 0, -1)), DayType: model.DayTypeHeavy,
	})})
	srv := NewService(WithStore(s), WithClock(func() time.Time { return now }))
	_, err := srv.Save(ctx, fullTraining(t, srv))
	assert.NoError(t, err)
	all, _ := srv.Records(ctx)
	assert.Len(t, all, 2)
}

type failingStore struct {
	store.RecordStore
}

var errBroken = errors.New("broken")

func (failingStore) Append(context.Context, *model.ComplianceRecord) error {
	return errBroken
}

func (failingStore) DeleteByDate(context.Context, time.Time) (int, error) {
	return 0, errBroken
}

func TestService_StoreErrors(t *testing.T) {
	ctx := context.Background()
	srv := NewService(WithStore(failingStore{}), WithSaveMode(SaveModeAppend))
	_, err := srv.Save(ctx, fullTraining(t, srv))
	assert.ErrorIs(t, err, errBroken)

	_, err = srv.DeleteToday(ctx)
	assert.ErrorIs(t, err, errBroken)
}

func TestService_NoStore(t *testing.T) {
	ctx := context.Background()
	srv := NewService()
	_, err := srv.Save(ctx, &model.Compliance{})
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = srv.DeleteToday(ctx)
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = srv.Records(ctx)
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestService_ExportUnsupported(t *testing.T) {
	srv := newService(t)
	assert.False(t, srv.CanExport())
	var buf bytes.Buffer
	_, ok, err := srv.Export(context.Background(), &buf)
	assert.NoError(t, err)
	assert.False(t, ok)
}
