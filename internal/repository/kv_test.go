package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func exerciseStore(t *testing.T, kv KeyValueStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := kv.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get on missing key should return ErrNotFound, got %v", err)
	}

	if err := kv.Set(ctx, "device-1:transport_filter", "minibuses"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := kv.Get(ctx, "device-1:transport_filter")
	if err != nil || got != "minibuses" {
		t.Errorf("Get = %q, %v; expected minibuses", got, err)
	}

	if err := kv.Set(ctx, "device-1:transport_filter", "telefericos"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, _ = kv.Get(ctx, "device-1:transport_filter")
	if got != "telefericos" {
		t.Errorf("overwrite not applied, got %q", got)
	}

	if err := kv.Delete(ctx, "device-1:transport_filter"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := kv.Get(ctx, "device-1:transport_filter"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted key should be gone, got %v", err)
	}

	if err := kv.Delete(ctx, "never-set"); err != nil {
		t.Errorf("deleting a missing key should not fail, got %v", err)
	}
}

func TestSQLiteKV(t *testing.T) {
	kv, err := NewSQLiteKV(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteKV failed: %v", err)
	}
	defer kv.Close()

	exerciseStore(t, kv)
}

func TestSQLiteKV_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")

	kv, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("NewSQLiteKV failed: %v", err)
	}
	if err := kv.Set(context.Background(), "auth_token", "abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	kv.Close()

	reopened, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), "auth_token")
	if err != nil || got != "abc" {
		t.Errorf("Get after reopen = %q, %v", got, err)
	}
}

func TestOpen_SQLiteFallback(t *testing.T) {
	store, err := Open("", filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	if _, ok := store.(*SQLiteKV); !ok {
		t.Errorf("expected SQLite store without DATABASE_URL, got %T", store)
	}
}

func TestPostgresKV(t *testing.T) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set - skipping integration test")
	}

	kv, err := NewPostgresKV(databaseURL)
	if err != nil {
		t.Fatalf("Failed to create test repository: %v", err)
	}
	defer kv.Close()

	exerciseStore(t, kv)
}
