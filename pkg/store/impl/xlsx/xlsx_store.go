// Package xlsx stores compliance records in a local spreadsheet file.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mpapenbr/portion-tracker-go/log"
	"github.com/mpapenbr/portion-tracker-go/pkg/model"
	"github.com/mpapenbr/portion-tracker-go/pkg/store"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/factory"
)

const (
	DefaultFile  = "registro_cumplimiento.xlsx"
	DefaultSheet = "Sheet1"
	ContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var StoreTypeXlsx factory.StoreType = "xlsx"

func New(common []store.Option, specific []Option) (store.RecordStore, error) {
	cfg := &store.Config{Location: DefaultFile}
	for _, o := range common {
		o(cfg)
	}
	ret := &xlsxStore{
		path:  cfg.Location,
		sheet: DefaultSheet,
		log:   log.Default().Named("store.xlsx"),
	}
	for _, o := range specific {
		o(ret)
	}
	if ret.path == "" {
		return nil, errors.New("xlsx store requires a file name")
	}
	return ret, nil
}

type (
	Option    func(*xlsxStore)
	xlsxStore struct {
		mu    sync.Mutex
		path  string
		sheet string
		log   *log.Logger
	}
)

var (
	_ store.Exporter = (*xlsxStore)(nil)
	_ store.Replacer = (*xlsxStore)(nil)
)

func WithSheet(sheet string) Option {
	return func(s *xlsxStore) {
		if sheet != "" {
			s.sheet = sheet
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *xlsxStore) {
		s.log = l
	}
}

//nolint:whitespace // can't make both editor and linter happy
func (s *xlsxStore) Append(
	ctx context.Context, rec *model.ComplianceRecord,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modify(func(f *excelize.File, rows [][]string) (bool, error) {
		return true, s.appendRow(f, len(rows)+1, rec)
	})
}

func (s *xlsxStore) DeleteByDate(ctx context.Context, date time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists() {
		return 0, nil
	}
	removed := 0
	err := s.modify(func(f *excelize.File, rows [][]string) (bool, error) {
		var err error
		removed, err = s.removeDate(f, rows, date)
		return removed > 0, err
	})
	return removed, err
}

//nolint:whitespace // can't make both editor and linter happy
func (s *xlsxStore) ReplaceDate(
	ctx context.Context, rec *model.ComplianceRecord,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modify(func(f *excelize.File, rows [][]string) (bool, error) {
		removed, err := s.removeDate(f, rows, rec.Date)
		if err != nil {
			return false, err
		}
		return true, s.appendRow(f, len(rows)+1-removed, rec)
	})
}

//nolint:whitespace // can't make both editor and linter happy
func (s *xlsxStore) LoadAll(ctx context.Context) (
	[]*model.ComplianceRecord, error,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := []*model.ComplianceRecord{}
	if !s.exists() {
		return ret, nil
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	idx, err := f.GetSheetIndex(s.sheet)
	if err != nil || idx < 0 {
		return ret, err
	}
	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(rows); i++ {
		rec, err := store.FromRow(pad(rows[i]))
		if err != nil {
			s.log.Warn("skipping row", log.Int("row", i+1), log.ErrorField(err))
			continue
		}
		ret = append(ret, rec)
	}
	return ret, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (s *xlsxStore) Export(ctx context.Context, w io.Writer) (
	store.Export, error,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := os.Open(s.path)
	if err != nil {
		return store.Export{}, err
	}
	defer file.Close()
	if _, err := io.Copy(w, file); err != nil {
		return store.Export{}, err
	}
	return store.Export{FileName: filepath.Base(s.path), ContentType: ContentType}, nil
}

func (s *xlsxStore) Exportable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exists()
}

func (s *xlsxStore) Close() error {
	return nil
}

func (s *xlsxStore) exists() bool {
	_, err := os.Stat(s.path)
	return !errors.Is(err, fs.ErrNotExist)
}

// modify opens (or creates) the workbook, ensures the header row and saves the
// file if fn reports a change.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *xlsxStore) modify(
	fn func(f *excelize.File, rows [][]string) (bool, error),
) error {
	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		s.log.Info("creating record sheet",
			log.String("file", s.path), log.String("sheet", s.sheet))
		header := store.Header()
		if err := f.SetSheetRow(s.sheet, "A1", &header); err != nil {
			return err
		}
		rows = [][]string{header}
	}
	changed, err := fn(f, rows)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	return nil
}

func (s *xlsxStore) open() (*excelize.File, error) {
	if !s.exists() {
		if dir := filepath.Dir(s.path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		f := excelize.NewFile()
		if s.sheet != DefaultSheet {
			if err := f.SetSheetName(DefaultSheet, s.sheet); err != nil {
				f.Close()
				return nil, err
			}
		}
		return f, nil
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, err
	}
	idx, err := f.GetSheetIndex(s.sheet)
	if err != nil {
		f.Close()
		return nil, err
	}
	if idx < 0 {
		if _, err := f.NewSheet(s.sheet); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (s *xlsxStore) appendRow(
	f *excelize.File, rowNum int, rec *model.ComplianceRecord,
) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	row := store.ToRow(rec)
	return f.SetSheetRow(s.sheet, cell, &row)
}

// removeDate deletes matching rows bottom up so the remaining row numbers stay valid.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *xlsxStore) removeDate(
	f *excelize.File, rows [][]string, date time.Time,
) (int, error) {
	removed := 0
	for i := len(rows) - 1; i >= 1; i-- {
		if len(rows[i]) == 0 || !store.IsDate(rows[i][0], date) {
			continue
		}
		if err := f.RemoveRow(s.sheet, i+1); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func pad(row []string) []string {
	for len(row) < store.NumColumns {
		row = append(row, "")
	}
	return row
}

func init() {
	factory.Register(StoreTypeXlsx, New)
}
