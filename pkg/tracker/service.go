// Package tracker binds the compliance calculator to a record store and a clock.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/portion-tracker-go/log"
	"github.com/mpapenbr/portion-tracker-go/pkg/compliance"
	"github.com/mpapenbr/portion-tracker-go/pkg/model"
	"github.com/mpapenbr/portion-tracker-go/pkg/store"
)

type SaveMode string

const (
	// SaveModeUpsert keeps at most one row per day
	SaveModeUpsert SaveMode = "upsert"
	// SaveModeAppend adds a new row on every save
	SaveModeAppend SaveMode = "append"
)

var (
	ErrNoStore         = errors.New("no record store configured")
	ErrUnknownSaveMode = errors.New("unknown save mode")
)

func ParseSaveMode(s string) (SaveMode, error) {
	switch SaveMode(s) {
	case SaveModeUpsert, "":
		return SaveModeUpsert, nil
	case SaveModeAppend:
		return SaveModeAppend, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSaveMode, s)
	}
}

type Option func(*Service)

func WithStore(s store.RecordStore) Option {
	return func(srv *Service) {
		srv.store = s
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(srv *Service) {
		srv.now = now
	}
}

func WithSaveMode(mode SaveMode) Option {
	return func(srv *Service) {
		srv.mode = mode
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(srv *Service) {
		srv.tracer = tracer
	}
}

func WithLogger(l *log.Logger) Option {
	return func(srv *Service) {
		srv.log = l
	}
}

type Service struct {
	store   store.RecordStore
	now     func() time.Time
	mode    SaveMode
	tracer  trace.Tracer
	log     *log.Logger
	saved   metric.Int64Counter
	deleted metric.Int64Counter
}

func NewService(opts ...Option) *Service {
	ret := &Service{
		now:  time.Now,
		mode: SaveModeUpsert,
		log:  log.Default().Named("tracker"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.tracer == nil {
		ret.tracer = otel.Tracer("ptrack")
	}
	meter := otel.Meter("ptrack")
	var err error
	if ret.saved, err = meter.Int64Counter("ptrack.records.saved",
		metric.WithDescription("number of saved compliance records")); err != nil {
		ret.log.Warn("could not create metric", log.ErrorField(err))
	}
	if ret.deleted, err = meter.Int64Counter("ptrack.records.deleted",
		metric.WithDescription("number of deleted compliance records")); err != nil {
		ret.log.Warn("could not create metric", log.ErrorField(err))
	}
	return ret
}

// Today returns the current calendar day.
func (s *Service) Today() time.Time {
	return model.DateOnly(s.now())
}

func (s *Service) SaveMode() SaveMode {
	return s.mode
}

func (s *Service) Store() store.RecordStore {
	return s.store
}

// Evaluate computes the compliance for the checked half portions.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *Service) Evaluate(
	ctx context.Context,
	dayType model.DayType,
	checkedHalves map[model.GroupKey]int,
) (*model.Compliance, error) {
	_, span := s.tracer.Start(ctx, "tracker.Evaluate",
		trace.WithAttributes(attribute.String("dayType", string(dayType))))
	defer span.End()
	c, err := compliance.Evaluate(dayType, checkedHalves)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("total", c.Total))
	return c, nil
}

// Save persists c as today's record according to the configured save mode.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *Service) Save(
	ctx context.Context,
	c *model.Compliance,
) (*model.ComplianceRecord, error) {
	ctx, span := s.tracer.Start(ctx, "tracker.Save",
		trace.WithAttributes(attribute.String("mode", string(s.mode))))
	defer span.End()
	if s.store == nil {
		recordError(span, ErrNoStore)
		return nil, ErrNoStore
	}
	rec := compliance.Record(c)
	rec.Date = s.Today()

	var err error
	switch s.mode {
	case SaveModeAppend:
		err = s.store.Append(ctx, &rec)
	default:
		err = s.replace(ctx, &rec)
	}
	if err != nil {
		recordError(span, err)
		s.log.Error("could not save record", log.ErrorField(err))
		return nil, fmt.Errorf("save record: %w", err)
	}
	s.saved.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", string(s.mode))))
	s.log.Info("record saved",
		log.String("date", store.DateKey(rec.Date)),
		log.String("dayType", string(rec.DayType)),
		log.Int("total", rec.Total))
	return &rec, nil
}

func (s *Service) replace(ctx context.Context, rec *model.ComplianceRecord) error {
	if r, ok := s.store.(store.Replacer); ok {
		return r.ReplaceDate(ctx, rec)
	}
	if _, err := s.store.DeleteByDate(ctx, rec.Date); err != nil {
		return err
	}
	return s.store.Append(ctx, rec)
}

// DeleteToday removes all rows of today. It reports whether any row existed.
func (s *Service) DeleteToday(ctx context.Context) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "tracker.DeleteToday")
	defer span.End()
	if s.store == nil {
		recordError(span, ErrNoStore)
		return false, ErrNoStore
	}
	today := s.Today()
	n, err := s.store.DeleteByDate(ctx, today)
	if err != nil {
		recordError(span, err)
		s.log.Error("could not delete record", log.ErrorField(err))
		return false, fmt.Errorf("delete record: %w", err)
	}
	span.SetAttributes(attribute.Int("deleted", n))
	s.deleted.Add(ctx, int64(n))
	if n == 0 {
		s.log.Warn("no record found for today", log.String("date", store.DateKey(today)))
		return false, nil
	}
	s.log.Info("records deleted",
		log.String("date", store.DateKey(today)), log.Int("count", n))
	return true, nil
}

// Records returns all stored records.
func (s *Service) Records(ctx context.Context) ([]*model.ComplianceRecord, error) {
	ctx, span := s.tracer.Start(ctx, "tracker.Records")
	defer span.End()
	if s.store == nil {
		recordError(span, ErrNoStore)
		return nil, ErrNoStore
	}
	ret, err := s.store.LoadAll(ctx)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("load records: %w", err)
	}
	return ret, nil
}

// Export writes the backing file of the store to w if the store supports it.
// The second value is false when the store cannot be exported.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *Service) Export(ctx context.Context, w io.Writer) (
	store.Export, bool, error,
) {
	e, ok := s.store.(store.Exporter)
	if !ok {
		return store.Export{}, false, nil
	}
	ctx, span := s.tracer.Start(ctx, "tracker.Export")
	defer span.End()
	ret, err := e.Export(ctx, w)
	if err != nil {
		recordError(span, err)
		return ret, true, fmt.Errorf("export records: %w", err)
	}
	return ret, true, nil
}

// CanExport reports whether the store offers a downloadable file and the
// file exists.
func (s *Service) CanExport() bool {
	e, ok := s.store.(store.Exporter)
	return ok && e.Exportable()
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
