// Package store holds the process-lifetime alert log.
package store

import (
	"sync"

	"github.com/gyaneshwarpardhi/alertrelay/internal/alert"
)

// AppendResult says whether Append changed the log.
type AppendResult int

const (
	Inserted AppendResult = iota + 1
	DuplicateIgnored
)

func (r AppendResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case DuplicateIgnored:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Log is an ordered, append-only, in-memory alert log with id dedupe.
// The first alert appended for an id is final; later ones are ignored.
// Nothing is evicted: the log lives as long as the process.
type Log struct {
	mu     sync.RWMutex
	alerts []alert.Alert
	ids    map[string]int // id -> index in alerts
}

// NewLog creates an empty Log.
func NewLog() *Log {
	return &Log{ids: make(map[string]int)}
}

// Append adds a to the end of the log and returns the stored copy, which
// carries its sequence number and a timestamp no earlier than its
// predecessor's. An alert with an already-seen id is not stored; the
// record appended first for that id is returned instead.
func (l *Log) Append(a alert.Alert) (alert.Alert, AppendResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i, seen := l.ids[a.ID]; seen {
		return l.alerts[i].Clone(), DuplicateIgnored
	}
	if n := len(l.alerts); n > 0 {
		if prev := l.alerts[n-1].Timestamp; a.Timestamp.Before(prev) {
			a.Timestamp = prev
		}
	}
	a.Seq = uint64(len(l.alerts)) + 1
	a = a.Clone()
	l.ids[a.ID] = len(l.alerts)
	l.alerts = append(l.alerts, a)
	return a.Clone(), Inserted
}

// Snapshot returns the alerts appended so far, oldest first. The slice is
// the caller's own; later appends are not reflected in it.
func (l *Log) Snapshot() []alert.Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneAll(l.alerts)
}

// Len returns the number of alerts in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.alerts)
}

// Contains reports whether an alert with id has been appended.
func (l *Log) Contains(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[id]
	return ok
}

func cloneAll(src []alert.Alert) []alert.Alert {
	out := make([]alert.Alert, len(src))
	for i, a := range src {
		out[i] = a.Clone()
	}
	return out
}
