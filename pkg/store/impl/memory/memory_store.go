package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mpapenbr/portion-tracker-go/pkg/model"
	"github.com/mpapenbr/portion-tracker-go/pkg/store"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/factory"
)

func New(common []store.Option, specific []Option) (store.RecordStore, error) {
	cfg := &store.Config{}
	for _, o := range common {
		o(cfg)
	}
	ret := &memoryStore{cfg: cfg}
	for _, o := range specific {
		o(ret)
	}
	return ret, nil
}

var StoreTypeMemory factory.StoreType = "memory"

type (
	Option      func(*memoryStore)
	memoryStore struct {
		cfg  *store.Config
		mu   sync.Mutex
		rows []model.ComplianceRecord
	}
)

// WithRecords preloads the store.
func WithRecords(recs ...model.ComplianceRecord) Option {
	return func(s *memoryStore) {
		s.rows = append(s.rows, recs...)
	}
}

//nolint:whitespace // can't make both editor and linter happy
func (s *memoryStore) Append(
	ctx context.Context, rec *model.ComplianceRecord,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := *rec
	item.Date = model.DateOnly(item.Date)
	s.rows = append(s.rows, item)
	return nil
}

func (s *memoryStore) DeleteByDate(ctx context.Context, date time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	date = model.DateOnly(date)
	kept := s.rows[:0]
	for _, r := range s.rows {
		if !r.Date.Equal(date) {
			kept = append(kept, r)
		}
	}
	removed := len(s.rows) - len(kept)
	s.rows = kept
	return removed, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (s *memoryStore) LoadAll(ctx context.Context) (
	[]*model.ComplianceRecord, error,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]*model.ComplianceRecord, len(s.rows))
	for i := range s.rows {
		item := s.rows[i]
		ret[i] = &item
	}
	return ret, nil
}

func (s *memoryStore) Close() error {
	return nil
}

func init() {
	factory.Register(StoreTypeMemory, New)
}
