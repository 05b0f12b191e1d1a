package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonesrussell/viewtrace/internal/storage"
)

func TestFileBackend_Conformance(t *testing.T) {
	b, err := storage.NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("open file backend: %v", err)
	}
	defer b.Close()

	testBackendConformance(t, b)
}

func TestFileBackend_SaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	b, err := storage.NewFileBackend(dir)
	if err != nil {
		t.Fatalf("open file backend: %v", err)
	}
	defer b.Close()

	if err := b.Save(storage.SessionKey("s1"), []byte(`{"v":1}`)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// No temp files should survive a completed save.
	entries, err := os.ReadDir(filepath.Join(dir, "records"))
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tmp" {
			t.Fatalf("leftover temp file: %s", entry.Name())
		}
	}
}
