package cache

import (
	"sync"
	"time"
)

// DefaultHistoryCapacity bounds the history log when no capacity is given.
const DefaultHistoryCapacity = 1000

// HistoryQuery selects history records. Zero-valued fields match
// everything; Tags use all-must-match semantics.
type HistoryQuery struct {
	ModelPath string
	Since     time.Time
	Until     time.Time
	Tags      []string
}

// History is an append-only, bounded log of cache writes. When the log
// is full the oldest record is dropped first. Queries return matches
// newest-first.
type History struct {
	mu       sync.Mutex
	capacity int
	records  []*Record
}

// NewHistory creates a History bounded at capacity entries.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity}
}

// Append records one cache write, dropping the oldest entry when full.
func (h *History) Append(record *Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) >= h.capacity {
		h.records = h.records[1:]
	}
	h.records = append(h.records, record)
}

// Len returns the number of records held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// Query returns the records matching q, newest-first.
func (h *History) Query(q HistoryQuery) []*Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	matches := make([]*Record, 0)
	for i := len(h.records) - 1; i >= 0; i-- {
		record := h.records[i]
		if q.ModelPath != "" && record.Metadata.ModelPath != q.ModelPath {
			continue
		}
		if !q.Since.IsZero() && record.Metadata.Timestamp.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && record.Metadata.Timestamp.After(q.Until) {
			continue
		}
		if !hasAllTags(record.Metadata.Tags, q.Tags) {
			continue
		}
		matches = append(matches, record)
	}
	return matches
}

// hasAllTags reports whether every wanted tag is present.
func hasAllTags(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]bool, len(have))
	for _, tag := range have {
		set[tag] = true
	}
	for _, tag := range want {
		if !set[tag] {
			return false
		}
	}
	return true
}
