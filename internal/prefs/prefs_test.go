package prefs

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lapaz-movil/transit/internal/repository"
	"github.com/lapaz-movil/transit/internal/static/catalog"
)

// memoryKV is an in-memory KeyValueStore with injectable failures
type memoryKV struct {
	mu       sync.Mutex
	values   map[string]string
	getErr   error
	setErr   error
	setCalls int
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string]string{}}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

func (m *memoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *memoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func TestRestore(t *testing.T) {
	tests := []struct {
		name     string
		stored   *string
		getErr   error
		expected catalog.Filter
	}{
		{name: "nothing stored", expected: catalog.FilterAll},
		{name: "minibuses", stored: strPtr("minibuses"), expected: catalog.FilterMinibuses},
		{name: "telefericos", stored: strPtr("telefericos"), expected: catalog.FilterTelefericos},
		{name: "all", stored: strPtr("all"), expected: catalog.FilterAll},
		{name: "unrecognized", stored: strPtr("foo"), expected: catalog.FilterAll},
		{name: "empty string", stored: strPtr(""), expected: catalog.FilterAll},
		{name: "read error", getErr: errors.New("disk on fire"), expected: catalog.FilterAll},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kv := newMemoryKV()
			kv.getErr = tc.getErr
			if tc.stored != nil {
				kv.values[FilterKey] = *tc.stored
			}

			got := NewStore(kv, "").Restore(context.Background())
			if got != tc.expected {
				t.Errorf("Restore() = %q, expected %q", got, tc.expected)
			}
		})
	}
}

func TestSave_WritesBack(t *testing.T) {
	kv := newMemoryKV()
	store := NewStore(kv, "")

	store.Save(context.Background(), catalog.FilterTelefericos)

	if kv.values[FilterKey] != "telefericos" {
		t.Errorf("stored value = %q", kv.values[FilterKey])
	}
	if got := store.Restore(context.Background()); got != catalog.FilterTelefericos {
		t.Errorf("Restore after Save = %q", got)
	}
}

func TestSave_SwallowsWriteErrors(t *testing.T) {
	kv := newMemoryKV()
	kv.setErr = errors.New("read-only")

	// Must not panic and has no error to return
	NewStore(kv, "").Save(context.Background(), catalog.FilterMinibuses)

	if kv.setCalls != 1 {
		t.Errorf("expected one write attempt, got %d", kv.setCalls)
	}
}

func TestStore_NamespacedByDevice(t *testing.T) {
	kv := newMemoryKV()
	phone := NewStore(kv, "phone")
	tablet := NewStore(kv, "tablet")

	phone.Save(context.Background(), catalog.FilterMinibuses)

	if got := tablet.Restore(context.Background()); got != catalog.FilterAll {
		t.Errorf("other device should see the default, got %q", got)
	}
	if got := phone.Restore(context.Background()); got != catalog.FilterMinibuses {
		t.Errorf("Restore = %q", got)
	}
	if _, ok := kv.values["phone:"+FilterKey]; !ok {
		t.Error("expected key to be namespaced by device id")
	}
}

func TestStore_SQLiteBackend(t *testing.T) {
	kv, err := repository.NewSQLiteKV(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteKV failed: %v", err)
	}
	defer kv.Close()

	store := NewStore(kv, "device-1")
	store.Save(context.Background(), catalog.FilterMinibuses)

	if got := NewStore(kv, "device-1").Restore(context.Background()); got != catalog.FilterMinibuses {
		t.Errorf("Restore = %q", got)
	}
}

func strPtr(s string) *string { return &s }
