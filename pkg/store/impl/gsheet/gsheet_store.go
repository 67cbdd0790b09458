// Package gsheet stores compliance records in a Google Sheets spreadsheet.
package gsheet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/mpapenbr/portion-tracker-go/log"
	"github.com/mpapenbr/portion-tracker-go/pkg/model"
	"github.com/mpapenbr/portion-tracker-go/pkg/store"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/factory"
)

const DefaultTab = "Registro"

var (
	StoreTypeGsheet factory.StoreType = "gsheet"

	ErrSheetNotFound = errors.New("sheet not found")
)

func New(common []store.Option, specific []Option) (store.RecordStore, error) {
	cfg := &store.Config{}
	for _, o := range common {
		o(cfg)
	}
	ret := &gsheetStore{
		spreadsheetID: cfg.Location,
		tab:           DefaultTab,
		log:           log.Default().Named("store.gsheet"),
	}
	for _, o := range specific {
		o(ret)
	}
	if ret.spreadsheetID == "" {
		return nil, errors.New("gsheet store requires a spreadsheet id")
	}
	if ret.api == nil {
		api, err := newServiceAPI(context.Background(), ret.credentialsFile)
		if err != nil {
			return nil, err
		}
		ret.api = api
	}
	return ret, nil
}

type (
	Option      func(*gsheetStore)
	gsheetStore struct {
		api             sheetsAPI
		spreadsheetID   string
		tab             string
		credentialsFile string
		log             *log.Logger
	}
)

// WithCredentialsFile sets the service account key file. Without it the
// application default credentials are used.
func WithCredentialsFile(file string) Option {
	return func(s *gsheetStore) {
		s.credentialsFile = file
	}
}

func WithTab(tab string) Option {
	return func(s *gsheetStore) {
		if tab != "" {
			s.tab = tab
		}
	}
}

func withAPI(api sheetsAPI) Option {
	return func(s *gsheetStore) {
		s.api = api
	}
}

//nolint:whitespace // can't make both editor and linter happy
func (s *gsheetStore) Append(
	ctx context.Context, rec *model.ComplianceRecord,
) error {
	if err := s.ensureHeader(ctx); err != nil {
		return err
	}
	return s.api.AppendValues(ctx, s.spreadsheetID, s.rng("A:J"),
		[][]any{store.ToRow(rec)})
}

// DeleteByDate scans the date column and removes every matching row.
func (s *gsheetStore) DeleteByDate(ctx context.Context, date time.Time) (int, error) {
	values, err := s.api.GetValues(ctx, s.spreadsheetID, s.rng("A:A"))
	if err != nil {
		return 0, err
	}
	toDelete := []int64{}
	for i := len(values) - 1; i >= 1; i-- {
		if len(values[i]) > 0 && store.IsDate(fmt.Sprint(values[i][0]), date) {
			toDelete = append(toDelete, int64(i))
		}
	}
	if len(toDelete) == 0 {
		return 0, nil
	}
	sheetID, err := s.api.SheetID(ctx, s.spreadsheetID, s.tab)
	if err != nil {
		return 0, err
	}
	s.log.Debug("deleting rows", log.Any("rows", toDelete))
	if err := s.api.DeleteRows(ctx, s.spreadsheetID, sheetID, toDelete); err != nil {
		return 0, err
	}
	return len(toDelete), nil
}

//nolint:whitespace // can't make both editor and linter happy
func (s *gsheetStore) LoadAll(ctx context.Context) (
	[]*model.ComplianceRecord, error,
) {
	values, err := s.api.GetValues(ctx, s.spreadsheetID, s.rng("A:J"))
	if err != nil {
		return nil, err
	}
	ret := []*model.ComplianceRecord{}
	for i := 1; i < len(values); i++ {
		cells := lo.Map(values[i], func(v any, _ int) string { return fmt.Sprint(v) })
		for len(cells) < store.NumColumns {
			cells = append(cells, "")
		}
		rec, err := store.FromRow(cells)
		if err != nil {
			s.log.Warn("skipping row", log.Int("row", i+1), log.ErrorField(err))
			continue
		}
		ret = append(ret, rec)
	}
	return ret, nil
}

func (s *gsheetStore) Close() error {
	return nil
}

func (s *gsheetStore) ensureHeader(ctx context.Context) error {
	values, err := s.api.GetValues(ctx, s.spreadsheetID, s.rng("A1:J1"))
	if err != nil {
		return err
	}
	if len(values) > 0 && len(values[0]) > 0 {
		return nil
	}
	s.log.Info("writing header row", log.String("tab", s.tab))
	header := lo.Map(store.Header(), func(h string, _ int) any { return h })
	return s.api.UpdateValues(ctx, s.spreadsheetID, s.rng("A1"), [][]any{header})
}

func (s *gsheetStore) rng(cells string) string {
	return fmt.Sprintf("'%s'!%s", s.tab, cells)
}

func init() {
	factory.Register(StoreTypeGsheet, New)
}
