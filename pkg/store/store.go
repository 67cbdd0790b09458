// Package store defines the durable compliance record store and its row format.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mpapenbr/portion-tracker-go/pkg/model"
)

const (
	ColDate    = "Fecha"
	ColDayType = "Tipo de día"
	ColTotal   = "Cumplimiento total"
	NumColumns = 3 + model.NumFoodGroups
)

var ErrInvalidRow = errors.New("invalid record row")

type (
	RecordStore interface {
		// Append adds one row, creating the store with a header row if needed.
		Append(ctx context.Context, rec *model.ComplianceRecord) error
		// DeleteByDate removes all rows for date and returns the number removed.
		DeleteByDate(ctx context.Context, date time.Time) (int, error)
		LoadAll(ctx context.Context) ([]*model.ComplianceRecord, error)
		Close() error
	}

	// Replacer is implemented by stores that can replace the rows of a day atomically.
	Replacer interface {
		ReplaceDate(ctx context.Context, rec *model.ComplianceRecord) error
	}

	// Exporter is implemented by stores backed by a downloadable file.
	Exporter interface {
		Export(ctx context.Context, w io.Writer) (Export, error)
		// Exportable reports whether the backing file exists yet.
		Exportable() bool
	}

	Export struct {
		FileName    string
		ContentType string
	}

	Config struct {
		Location string // file name, spreadsheet id, connection string
	}
	Option func(*Config)
)

func WithLocation(location string) Option {
	return func(c *Config) {
		c.Location = location
	}
}

// Header returns the column titles of the record table.
func Header() []string {
	ret := make([]string, 0, NumColumns)
	ret = append(ret, ColDate, ColDayType, ColTotal)
	for _, g := range model.FoodGroups {
		ret = append(ret, g.Name)
	}
	return ret
}

func DateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

// ToRow converts rec into the cell values of one table row.
func ToRow(rec *model.ComplianceRecord) []any {
	ret := make([]any, 0, NumColumns)
	ret = append(ret, DateKey(rec.Date), string(rec.DayType), rec.Total)
	for _, v := range rec.Groups {
		ret = append(ret, v)
	}
	return ret
}

// FromRow parses the cell texts of one table row.
func FromRow(cells []string) (*model.ComplianceRecord, error) {
	if len(cells) < NumColumns {
		return nil, fmt.Errorf("%w: expected %d cells, got %d",
			ErrInvalidRow, NumColumns, len(cells))
	}
	date, err := ParseDate(cells[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRow, err)
	}
	ret := &model.ComplianceRecord{
		Date:    date,
		DayType: model.DayType(strings.TrimSpace(cells[1])),
	}
	if ret.Total, err = parseInt(cells[2]); err != nil {
		return nil, fmt.Errorf("%w: total: %w", ErrInvalidRow, err)
	}
	for i := range ret.Groups {
		if ret.Groups[i], err = parseInt(cells[3+i]); err != nil {
			return nil, fmt.Errorf("%w: %s: %w",
				ErrInvalidRow, model.FoodGroups[i].Name, err)
		}
	}
	return ret, nil
}

// ParseDate accepts the date cell as written by this tool ("2006-01-02"), with an
// optional time part as written by spreadsheet tools.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(time.DateOnly) {
		s = s[:len(time.DateOnly)]
	}
	return time.Parse(time.DateOnly, s)
}

// IsDate reports whether the date cell s denotes date.
func IsDate(s string, date time.Time) bool {
	d, err := ParseDate(s)
	if err != nil {
		return false
	}
	return d.Equal(model.DateOnly(date))
}

func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
