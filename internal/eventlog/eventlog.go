// Package eventlog keeps a fixed-capacity chronological record of recent
// interactions. It is deliberately decoupled from the heatmap so log
// retention and grid decay follow independent policies.
package eventlog

import (
	"sync"

	"github.com/jonesrussell/viewtrace/internal/domain"
)

// Log is a fixed-capacity ring buffer of interaction events. Once full,
// each push silently overwrites the oldest entry.
type Log struct {
	mu   sync.RWMutex
	buf  []domain.InteractionEvent
	head int
	size int
}

// New creates a Log with the given capacity. Capacity must be positive.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = 1
	}
	return &Log{
		buf: make([]domain.InteractionEvent, capacity),
	}
}

// Push appends an event in O(1), overwriting the oldest entry when full.
func (l *Log) Push(ev domain.InteractionEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf[l.head] = ev
	l.head = (l.head + 1) % len(l.buf)
	if l.size < len(l.buf) {
		l.size++
	}
}

// Events returns the logged events in chronological push order,
// regardless of where the internal write position has wrapped.
func (l *Log) Events() []domain.InteractionEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.InteractionEvent, l.size)
	start := l.head - l.size
	if start < 0 {
		start += len(l.buf)
	}
	for i := 0; i < l.size; i++ {
		out[i] = l.buf[(start+i)%len(l.buf)]
	}
	return out
}

// Len returns the number of events currently held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Cap returns the fixed capacity.
func (l *Log) Cap() int {
	return len(l.buf)
}

// Clear removes all events. The buffer itself is kept, but its slots are
// zeroed so the cleared events and their detail maps can be collected.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.buf)
	l.head = 0
	l.size = 0
}
