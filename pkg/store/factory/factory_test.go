package factory

import (
	"context"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/mpapenbr/portion-tracker-go/pkg/model"
	"github.com/mpapenbr/portion-tracker-go/pkg/store"
)

type (
	dummyOption func(*dummyStore)
	dummyStore  struct {
		location string
		label    string
	}
)

func (d *dummyStore) Append(context.Context, *model.ComplianceRecord) error { return nil }

//nolint:whitespace // can't make both editor and linter happy
func (d *dummyStore) DeleteByDate(context.Context, time.Time) (int, error) {
	return 0, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (d *dummyStore) LoadAll(context.Context) ([]*model.ComplianceRecord, error) {
	return nil, nil
}
func (d *dummyStore) Close() error { return nil }

func newDummy(common []store.Option, specific []dummyOption) (store.RecordStore, error) {
	cfg := &store.Config{}
	for _, o := range common {
		o(cfg)
	}
	ret := &dummyStore{location: cfg.Location}
	for _, o := range specific {
		o(ret)
	}
	return ret, nil
}

func TestNew(t *testing.T) {
	Register(StoreType("dummy"), newDummy)

	s, err := New[store.RecordStore, dummyOption]("dummy",
		[]store.Option{store.WithLocation("somewhere")},
		[]dummyOption{func(d *dummyStore) { d.label = "x" }})
	assert.NilError(t, err)
	d, ok := s.(*dummyStore)
	assert.Assert(t, ok)
	assert.Equal(t, d.location, "somewhere")
	assert.Equal(t, d.label, "x")
	assert.Assert(t, len(Types()) >= 1)
}

func TestNew_Errors(t *testing.T) {
	Register(StoreType("dummy"), newDummy)

	_, err := New[store.RecordStore, dummyOption]("unknown", nil, nil)
	assert.ErrorIs(t, err, ErrStoreTypeNotSupported)

	_, err = New[store.RecordStore, string]("dummy", nil, nil)
	assert.ErrorIs(t, err, ErrStoreWrongCreator)
}
