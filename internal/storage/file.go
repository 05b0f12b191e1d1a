package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// recordsSubdir is the directory for flat record files inside the data
// directory, and recordExt their filename extension.
const (
	recordsSubdir = "records"
	recordExt     = ".json"
)

// FileBackend stores one JSON file per key under the data directory.
// It is the fallback when SQLite cannot be opened.
type FileBackend struct {
	dir string
}

// NewFileBackend creates the records directory under dataDir.
func NewFileBackend(dataDir string) (*FileBackend, error) {
	dir := filepath.Join(dataDir, recordsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create records directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

// Name identifies the backend for logging.
func (b *FileBackend) Name() string {
	return "file"
}

// IsAvailable probes that the records directory is writable.
func (b *FileBackend) IsAvailable() bool {
	probe := filepath.Join(b.dir, ".probe")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return false
	}
	_ = os.Remove(probe)
	return true
}

// Save stores data under key, overwriting any existing record. The write
// goes through a temp file and rename so readers never see a partial
// record.
func (b *FileBackend) Save(key string, data []byte) error {
	path := b.path(key)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write record %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit record %s: %w", key, err)
	}
	return nil
}

// Load returns the data stored under key, or ErrNotFound.
func (b *FileBackend) Load(key string) ([]byte, error) {
	data, err := os.ReadFile(b.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", key, err)
	}
	return data, nil
}

// Remove deletes the record under key. Missing keys are not an error.
func (b *FileBackend) Remove(key string) error {
	err := os.Remove(b.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove record %s: %w", key, err)
	}
	return nil
}

// ListKeys returns all keys with the given prefix, sorted.
func (b *FileBackend) ListKeys(prefix string) ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("read records directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		key := strings.TrimSuffix(name, recordExt)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear removes every record.
func (b *FileBackend) Clear() error {
	keys, err := b.ListKeys("")
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := b.Remove(key); err != nil {
			return err
		}
	}
	return nil
}

// Usage reports record count and stored bytes.
func (b *FileBackend) Usage() (Usage, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return Usage{}, fmt.Errorf("read records directory: %w", err)
	}

	var u Usage
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		u.Records++
		u.Bytes += info.Size()
	}
	return u, nil
}

// Close is a no-op for the file backend.
func (b *FileBackend) Close() error {
	return nil
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, key+recordExt)
}
