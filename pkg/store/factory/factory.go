package factory

import (
	"errors"
	"sort"

	"github.com/mpapenbr/portion-tracker-go/pkg/store"
)

type StoreType string

var (
	ErrStoreTypeNotSupported = errors.New("record store type not supported")
	ErrStoreWrongCreator     = errors.New("record store wrong creator")
)

//nolint:lll //readability
type Creator[S store.RecordStore, ImplOpt any] func([]store.Option, []ImplOpt) (S, error)

var registry = map[StoreType]any{}

// Register a new implementation generically
//
//nolint:whitespace //editor/linter issue
func Register[S store.RecordStore, ImplOpt any](
	key StoreType, creator Creator[S, ImplOpt],
) {
	registry[key] = creator
}

// Create a new instance
//
//nolint:whitespace //editor/linter issue
func New[S store.RecordStore, ImplOpt any](
	key StoreType,
	common []store.Option,
	specific []ImplOpt,
) (S, error) {
	entry, ok := registry[key]
	if !ok {
		var zero S
		return zero, ErrStoreTypeNotSupported
	}
	creator, ok := entry.(Creator[S, ImplOpt])
	if !ok {
		var zero S
		return zero, ErrStoreWrongCreator
	}
	return creator(common, specific)
}

// Types returns the registered store types, sorted.
func Types() []StoreType {
	ret := make([]StoreType, 0, len(registry))
	for k := range registry {
		ret = append(ret, k)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}
