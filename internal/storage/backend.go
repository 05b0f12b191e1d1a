// Package storage persists session records to a durable store. A
// higher-capacity embedded SQLite store is preferred; a flat JSON file
// store serves as the fallback. The backend is chosen once at
// construction by capability probing, never re-selected at runtime.
package storage

import (
	"errors"

	"github.com/jonesrussell/viewtrace/internal/logger"
)

// ErrNotFound is returned when a key has no stored record. Malformed
// stored data is reported the same way so corrupt records never fault a
// read path.
var ErrNotFound = errors.New("record not found")

// Persistence key prefixes. Each session stores one full record plus one
// lightweight metadata record for fast listing.
const (
	sessionKeyPrefix  = "session_"
	metadataKeyPrefix = "metadata_"
)

// SessionKey returns the durable key for a session's full record.
func SessionKey(id string) string {
	return sessionKeyPrefix + id
}

// MetadataKey returns the durable key for a session's listing record.
func MetadataKey(id string) string {
	return metadataKeyPrefix + id
}

// Usage reports how much a backend currently holds.
type Usage struct {
	Records int   `json:"records"`
	Bytes   int64 `json:"bytes"`
}

// Backend is the single interface both stores honor.
type Backend interface {
	// Name identifies the backend for logging.
	Name() string
	// IsAvailable probes whether the backend can currently serve.
	IsAvailable() bool
	// Save stores data under key, overwriting any existing record.
	Save(key string, data []byte) error
	// Load returns the data stored under key, or ErrNotFound.
	Load(key string) ([]byte, error)
	// Remove deletes the record under key. Missing keys are not an error.
	Remove(key string) error
	// ListKeys returns all keys with the given prefix, sorted.
	ListKeys(prefix string) ([]string, error)
	// Clear removes every record.
	Clear() error
	// Usage reports record count and stored bytes.
	Usage() (Usage, error)
	// Close releases backend resources.
	Close() error
}

// Select probes the available backends in preference order and returns
// the first usable one. It returns nil when neither backend is usable;
// the caller degrades persistence to a no-op.
func Select(dataDir string, log logger.Logger) Backend {
	if sq, err := NewSQLiteBackend(dataDir); err == nil && sq.IsAvailable() {
		log.Info("Using sqlite persistence backend",
			logger.String("data_dir", dataDir),
		)
		return sq
	} else if err != nil {
		log.Warn("SQLite backend unavailable, trying file backend",
			logger.Error(err),
		)
	} else {
		_ = sq.Close()
		log.Warn("SQLite backend not responding, trying file backend")
	}

	if fb, err := NewFileBackend(dataDir); err == nil && fb.IsAvailable() {
		log.Info("Using file persistence backend",
			logger.String("data_dir", dataDir),
		)
		return fb
	} else if err != nil {
		log.Warn("File backend unavailable",
			logger.Error(err),
		)
	}

	log.Warn("No persistence backend available, sessions will not be durable")
	return nil
}
