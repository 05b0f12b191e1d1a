package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jonesrussell/viewtrace/internal/domain"
	"github.com/jonesrussell/viewtrace/internal/logger"
)

const (
	// saveQueueCapacity bounds the number of snapshots waiting for the
	// flush loop; the loop coalesces by session id so this rarely fills.
	saveQueueCapacity = 256

	// writeRetries is the number of backoff retries per failed write
	// before the record is dropped until the next scheduled snapshot.
	writeRetries = 2

	// retryInitialInterval seeds the exponential backoff between retries.
	retryInitialInterval = 50 * time.Millisecond
)

// ManagerOptions holds write scheduling and retention tunables.
type ManagerOptions struct {
	// WriteDebounce is the quiet period after the last enqueue before a
	// coalesced flush.
	WriteDebounce time.Duration
	// BatchSize flushes immediately once this many distinct sessions are
	// pending.
	BatchSize int
	// BatchTimeout flushes whatever is pending at this interval even
	// without a quiet period.
	BatchTimeout time.Duration
	// FlushTimeout bounds the forced synchronous flush at session end.
	FlushTimeout time.Duration
	// MaxDataAge drops sessions older than this during cleanup.
	MaxDataAge time.Duration
	// MaxSessions caps the stored session count; oldest are dropped first.
	MaxSessions int
}

// saveRequest is one enqueued session snapshot.
type saveRequest struct {
	id     string
	record domain.SessionRecord
}

// Manager schedules durable writes of session records. Saves are
// debounced and batched off the interactive path; reads go straight to
// the backend. With no backend available every operation degrades to a
// no-op and the session stays usable in memory.
type Manager struct {
	backend Backend
	log     logger.Logger
	opts    ManagerOptions

	saves    chan saveRequest
	flushReq chan chan struct{}
	closed   chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a Manager writing to backend. A nil backend is
// accepted and disables persistence.
func NewManager(backend Backend, log logger.Logger, opts ManagerOptions) *Manager {
	return &Manager{
		backend:  backend,
		log:      log,
		opts:     opts,
		saves:    make(chan saveRequest, saveQueueCapacity),
		flushReq: make(chan chan struct{}),
		closed:   make(chan struct{}),
	}
}

// Enabled reports whether a durable backend was selected.
func (m *Manager) Enabled() bool {
	return m.backend != nil
}

// Start launches the background flush loop.
func (m *Manager) Start() {
	if m.backend == nil {
		return
	}
	m.wg.Add(1)
	go m.flushLoop()
}

// Stop flushes pending writes, stops the loop, and closes the backend.
func (m *Manager) Stop() {
	m.once.Do(func() {
		close(m.closed)
	})
	m.wg.Wait()
	if m.backend != nil {
		if err := m.backend.Close(); err != nil {
			m.log.Warn("Failed to close persistence backend", logger.Error(err))
		}
	}
}

// SaveSession enqueues a session snapshot for a debounced, batched
// write. It never blocks the caller; when the queue is full the snapshot
// is dropped and the next scheduled snapshot covers it.
func (m *Manager) SaveSession(record domain.SessionRecord) {
	if m.backend == nil {
		return
	}
	select {
	case m.saves <- saveRequest{id: record.SessionID, record: record}:
	default:
		m.log.Warn("Persistence queue full, dropping snapshot",
			logger.String("session_id", record.SessionID),
		)
	}
}

// Flush forces a synchronous best-effort flush, bypassing the debounce
// window. It is bounded by FlushTimeout and never fails the caller; use
// it at session end where delayed writes may not be delivered.
func (m *Manager) Flush() {
	if m.backend == nil {
		return
	}

	done := make(chan struct{})
	timeout := time.After(m.opts.FlushTimeout)

	select {
	case m.flushReq <- done:
	case <-timeout:
		m.log.Warn("Forced flush could not be scheduled in time")
		return
	case <-m.closed:
		return
	}

	select {
	case <-done:
	case <-timeout:
		m.log.Warn("Forced flush timed out")
	}
}

// LoadSession reads a full session record. Malformed stored data is
// reported as ErrNotFound.
func (m *Manager) LoadSession(id string) (domain.SessionRecord, error) {
	if m.backend == nil {
		return domain.SessionRecord{}, ErrNotFound
	}

	data, err := m.backend.Load(SessionKey(id))
	if err != nil {
		return domain.SessionRecord{}, err
	}

	var record domain.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		m.log.Warn("Malformed session record, treating as not found",
			logger.String("session_id", id),
			logger.Error(err),
		)
		return domain.SessionRecord{}, ErrNotFound
	}
	return record, nil
}

// ListSessions returns stored session metadata, newest first, without
// deserializing full records. Malformed entries are skipped, never a
// fault.
func (m *Manager) ListSessions() ([]domain.SessionMetadata, error) {
	if m.backend == nil {
		return nil, nil
	}

	keys, err := m.backend.ListKeys(metadataKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list metadata keys: %w", err)
	}

	metas := make([]domain.SessionMetadata, 0, len(keys))
	for _, key := range keys {
		data, err := m.backend.Load(key)
		if err != nil {
			continue
		}
		var meta domain.SessionMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			m.log.Warn("Malformed session metadata, skipping",
				logger.String("key", key),
				logger.Error(err),
			)
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].StartTimeMs > metas[j].StartTimeMs
	})
	return metas, nil
}

// DeleteSession removes a session's record and metadata.
func (m *Manager) DeleteSession(id string) error {
	if m.backend == nil {
		return nil
	}
	if err := m.backend.Remove(SessionKey(id)); err != nil {
		return err
	}
	return m.backend.Remove(MetadataKey(id))
}

// Usage reports what the backend currently holds.
func (m *Manager) Usage() (Usage, error) {
	if m.backend == nil {
		return Usage{}, nil
	}
	return m.backend.Usage()
}

// Cleanup enforces the retention policy: sessions older than MaxDataAge
// are dropped, and when more than MaxSessions remain the oldest (by
// start time) are dropped until the cap holds. Matching metadata is
// removed with each session. Returns the number of sessions removed.
func (m *Manager) Cleanup() int {
	if m.backend == nil {
		return 0
	}

	metas, err := m.ListSessions()
	if err != nil {
		m.log.Warn("Cleanup could not list sessions", logger.Error(err))
		return 0
	}

	cutoff := time.Now().Add(-m.opts.MaxDataAge).UnixMilli()
	removed := 0
	kept := metas[:0]
	for _, meta := range metas {
		if meta.StartTimeMs < cutoff {
			if err := m.DeleteSession(meta.SessionID); err != nil {
				m.log.Warn("Failed to remove expired session",
					logger.String("session_id", meta.SessionID),
					logger.Error(err),
				)
				continue
			}
			removed++
			continue
		}
		kept = append(kept, meta)
	}

	if len(kept) > m.opts.MaxSessions {
		// ListSessions returns newest first, so the overflow to drop is
		// the tail.
		for _, meta := range kept[m.opts.MaxSessions:] {
			if err := m.DeleteSession(meta.SessionID); err != nil {
				m.log.Warn("Failed to remove excess session",
					logger.String("session_id", meta.SessionID),
					logger.Error(err),
				)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		m.log.Info("Retention cleanup removed sessions", logger.Int("removed", removed))
	}
	return removed
}

// flushLoop coalesces enqueued snapshots by session id and flushes when
// the batch reaches BatchSize, the debounce window goes quiet, or the
// batch timeout fires, whichever comes first.
func (m *Manager) flushLoop() {
	defer m.wg.Done()

	batchTicker := time.NewTicker(m.opts.BatchTimeout)
	defer batchTicker.Stop()

	debounce := time.NewTimer(m.opts.WriteDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	pending := make(map[string]domain.SessionRecord)

	for {
		select {
		case req := <-m.saves:
			pending[req.id] = req.record
			if len(pending) >= m.opts.BatchSize {
				m.flush(pending)
				pending = make(map[string]domain.SessionRecord)
				continue
			}
			debounce.Reset(m.opts.WriteDebounce)

		case <-debounce.C:
			if len(pending) > 0 {
				m.flush(pending)
				pending = make(map[string]domain.SessionRecord)
			}

		case <-batchTicker.C:
			if len(pending) > 0 {
				m.flush(pending)
				pending = make(map[string]domain.SessionRecord)
			}

		case done := <-m.flushReq:
			m.drain(pending)
			m.flush(pending)
			pending = make(map[string]domain.SessionRecord)
			close(done)

		case <-m.closed:
			m.drain(pending)
			m.flush(pending)
			return
		}
	}
}

// drain empties the save queue into pending without blocking.
func (m *Manager) drain(pending map[string]domain.SessionRecord) {
	for {
		select {
		case req := <-m.saves:
			pending[req.id] = req.record
		default:
			return
		}
	}
}

// flush writes every pending record and its metadata. Failures are
// logged and retried with bounded backoff, never propagated; the next
// scheduled snapshot naturally covers a dropped write.
func (m *Manager) flush(pending map[string]domain.SessionRecord) {
	for id, record := range pending {
		if err := m.writeRecord(id, record); err != nil {
			m.log.Error("Failed to persist session",
				logger.String("session_id", id),
				logger.Error(err),
			)
		}
	}

	if len(pending) > 0 {
		m.log.Debug("Flushed session snapshots", logger.Int("count", len(pending)))
	}
}

// writeRecord stores one session record plus its metadata, retrying
// transient failures with exponential backoff.
func (m *Manager) writeRecord(id string, record domain.SessionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	meta, err := json.Marshal(record.Metadata())
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval

	op := func() error {
		if err := m.backend.Save(SessionKey(id), data); err != nil {
			return err
		}
		return m.backend.Save(MetadataKey(id), meta)
	}
	return backoff.Retry(op, backoff.WithMaxRetries(bo, writeRetries))
}
