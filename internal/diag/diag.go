// Package diag keeps a bounded in-memory log of orchestration errors and
// dropped events for later inspection via /status tooling and tests.
package diag

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultCapacity = 256

// Entry is one retained diagnostic record.
type Entry struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
}

// Log is a fixed-capacity ring of diagnostic entries. When full, the oldest
// entry is dropped to admit the new one.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	start   int
	count   int
	logger  *zerolog.Logger
}

// New returns a Log holding at most capacity entries. capacity <= 0 selects
// the default.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Log{entries: make([]Entry, capacity)}
}

// SetLogger installs a structured logger mirrored on every Record call.
func (l *Log) SetLogger(zl zerolog.Logger) {
	l.mu.Lock()
	l.logger = &zl
	l.mu.Unlock()
}

// Record appends a timestamped entry, evicting the oldest when full.
func (l *Log) Record(kind, message string) {
	l.mu.Lock()
	e := Entry{Time: time.Now(), Kind: kind, Message: message}
	idx := (l.start + l.count) % len(l.entries)
	l.entries[idx] = e
	if l.count < len(l.entries) {
		l.count++
	} else {
		l.start = (l.start + 1) % len(l.entries)
	}
	logger := l.logger
	l.mu.Unlock()
	if logger != nil {
		logger.Warn().Str("kind", kind).Msg(message)
	}
}

// Err records an error under the given kind. Nil errors are ignored.
func (l *Log) Err(kind string, err error) {
	if err == nil {
		return
	}
	l.Record(kind, err.Error())
}

// Entries returns the retained entries oldest-first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, l.count)
	for i := 0; i < l.count; i++ {
		out = append(out, l.entries[(l.start+i)%len(l.entries)])
	}
	return out
}

// Len reports the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
