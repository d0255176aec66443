package cache

import (
	"path/filepath"
	"testing"
)

func TestSQLiteMedium_CRUD(t *testing.T) {
	m, err := NewSQLiteMedium(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteMedium: %v", err)
	}
	defer m.Close()

	if _, ok, err := m.Get("missing"); ok || err != nil {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}

	if err := m.Put("k", []byte("one")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := m.Put("k", []byte("two")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, ok, err := m.Get("k")
	if err != nil || !ok || string(got) != "two" {
		t.Fatalf("Get = %q ok=%v err=%v", got, ok, err)
	}

	stats := m.Stats()
	if stats.ItemCount != 1 || stats.Size != 3 {
		t.Errorf("stats = %+v", stats)
	}

	if err := m.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := m.Get("k"); ok {
		t.Error("key survived Delete")
	}
}

func TestSQLiteMedium_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	m, err := NewSQLiteMedium(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	m.Put("settings.speed", []byte("42"))
	m.Close()

	m, err = NewSQLiteMedium(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer m.Close()

	got, ok, err := m.Get("settings.speed")
	if err != nil || !ok || string(got) != "42" {
		t.Fatalf("Get = %q ok=%v err=%v", got, ok, err)
	}
}

func TestSQLiteMedium_ClosedReportsError(t *testing.T) {
	m, err := NewSQLiteMedium(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	m.Close()

	if _, _, err := m.Get("k"); err == nil {
		t.Error("expected error from closed database")
	}
}
