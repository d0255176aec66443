package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestDiskCache_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	if err := dc.Put("collection.cards", []byte("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := dc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, ok, err := reopened.Get("collection.cards")
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if string(got) != "hello" {
		t.Errorf("got %q", got)
	}
}

func TestDiskCache_CompressesLargeValues(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	defer dc.Close()

	value := bytes.Repeat([]byte(`{"name":"Card","link":"https://example.com"}`), 200)
	if err := dc.Put("big", value); err != nil {
		t.Fatalf("Put: %v", err)
	}

	onDisk, err := os.ReadFile(dc.pathFor("big"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if onDisk[0] != headerZstd {
		t.Errorf("expected zstd header, got %d", onDisk[0])
	}
	if len(onDisk) >= len(value) {
		t.Errorf("compressed size %d not smaller than %d", len(onDisk), len(value))
	}

	got, ok, err := dc.Get("big")
	if err != nil || !ok || !bytes.Equal(got, value) {
		t.Fatalf("round trip failed: ok=%v err=%v", ok, err)
	}
}

func TestDiskCache_SharedDirectory(t *testing.T) {
	dir := t.TempDir()

	writer, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer writer.Close()
	reader, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	value := bytes.Repeat([]byte("x"), 4096)
	if err := writer.Put("settings.speed", value); err != nil {
		t.Fatal(err)
	}

	got, ok, err := reader.Get("settings.speed")
	if err != nil || !ok || !bytes.Equal(got, value) {
		t.Fatalf("reader did not see writer's entry: ok=%v err=%v", ok, err)
	}
}

func TestDiskCache_ClearRemovesForeignFiles(t *testing.T) {
	dir := t.TempDir()

	writer, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer writer.Close()
	clearer, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer clearer.Close()

	if err := writer.Put("collection.cards", []byte("cards")); err != nil {
		t.Fatal(err)
	}
	if err := clearer.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := clearer.Get("collection.cards"); ok {
		t.Error("entry written by another instance survived Clear")
	}
	if n := clearer.Size(); n != 0 {
		t.Errorf("Size after Clear = %d, want 0", n)
	}
}

func TestDiskCache_CorruptFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()

	dc.Put("k", []byte("v"))
	if err := os.WriteFile(dc.pathFor("k"), []byte{9, 9, 9}, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := dc.Get("k"); ok || err != nil {
		t.Fatalf("corrupt entry: ok=%v err=%v", ok, err)
	}
	if _, err := os.Stat(dc.pathFor("k")); !os.IsNotExist(err) {
		t.Error("corrupt file should be removed")
	}
}

func TestDiskCache_DeleteAndEvict(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 64, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()

	dc.Put("a", make([]byte, 30))
	dc.Put("b", make([]byte, 30))
	dc.Put("c", make([]byte, 30)) // evicts one of a, b

	if got := dc.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
	if dc.Size() > 64 {
		t.Errorf("Size %d exceeds capacity", dc.Size())
	}
	if err := dc.Delete("c"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := dc.Get("c"); ok {
		t.Error("c should be gone")
	}
	if _, err := os.Stat(filepath.Join(dir, indexFile)); err != nil {
		t.Errorf("index not written: %v", err)
	}
	if err := dc.Put("huge", make([]byte, 128)); err != ErrItemTooLarge {
		t.Errorf("expected ErrItemTooLarge, got %v", err)
	}
}
