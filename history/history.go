// Package history keeps the per-session score timeline.
package history

import (
	"sync"
	"time"
)

// TimestampLayout is the minute-precision format of entry timestamps.
const TimestampLayout = "2006-01-02 15:04"

// DefaultDisplayLimit is the number of entries shown in the timeline.
const DefaultDisplayLimit = 10

type Entry struct {
	Timestamp string `json:"timestamp"`
	Score     int    `json:"score"`
}

// TimelineEntry is an Entry annotated with its score tier.
type TimelineEntry struct {
	Entry
	Tier string `json:"tier"`
}

// Log is an append-only score history. It is safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

func New() *Log {
	return &Log{now: time.Now}
}

// Append records score at the current time and returns the new entry.
func (l *Log) Append(score int) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := Entry{Timestamp: l.clock().Format(TimestampLayout), Score: score}
	l.entries = append(l.entries, entry)
	return entry
}

func (l *Log) clock() time.Time {
	if l.now == nil {
		return time.Now()
	}
	return l.now()
}

// Entries returns a copy of the history, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Recent returns at most n entries, newest first.
func (l *Log) Recent(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || len(l.entries) == 0 {
		return []Entry{}
	}
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Entry, 0, n)
	for i := len(l.entries) - 1; i >= len(l.entries)-n; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

// Timeline is Recent with a tier on every entry.
func (l *Log) Timeline(n int) []TimelineEntry {
	recent := l.Recent(n)
	out := make([]TimelineEntry, len(recent))
	for i, e := range recent {
		out[i] = TimelineEntry{Entry: e, Tier: Tier(e.Score)}
	}
	return out
}

// Reset drops every entry.
func (l *Log) Reset() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Tier maps a score to its display emoji.
func Tier(score int) string {
	switch {
	case score >= 9:
		return "🌟"
	case score >= 7:
		return "✅"
	case score >= 5:
		return "⚠️"
	default:
		return "🚧"
	}
}
