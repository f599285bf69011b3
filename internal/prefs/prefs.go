package prefs

import (
	"context"
	"errors"
	"log"

	"github.com/lapaz-movil/transit/internal/repository"
	"github.com/lapaz-movil/transit/internal/static/catalog"
)

// FilterKey is the storage key of the transport filter preference
const FilterKey = "transport_filter"

// Store reads and writes one client device's preferences. Failures never
// reach the caller: reads fall back to defaults and writes are logged.
type Store struct {
	kv       repository.KeyValueStore
	deviceID string
}

// NewStore creates a store whose keys are namespaced by deviceID. An empty
// deviceID uses the shared, un-namespaced keys.
func NewStore(kv repository.KeyValueStore, deviceID string) *Store {
	return &Store{kv: kv, deviceID: deviceID}
}

func (s *Store) key(name string) string {
	if s.deviceID == "" {
		return name
	}
	return s.deviceID + ":" + name
}

// Restore returns the persisted filter, or FilterAll when nothing usable is stored
func (s *Store) Restore(ctx context.Context) catalog.Filter {
	value, err := s.kv.Get(ctx, s.key(FilterKey))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("Prefs: failed to restore %s: %v", FilterKey, err)
		}
		return catalog.FilterAll
	}

	filter, ok := catalog.ParseFilter(value)
	if !ok {
		log.Printf("Prefs: ignoring unrecognized %s value %q", FilterKey, value)
		return catalog.FilterAll
	}
	return filter
}

// Save persists the filter. Errors are logged and swallowed.
func (s *Store) Save(ctx context.Context, filter catalog.Filter) {
	if err := s.kv.Set(ctx, s.key(FilterKey), string(filter)); err != nil {
		log.Printf("Prefs: failed to save %s: %v", FilterKey, err)
	}
}
