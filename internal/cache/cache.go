// Package cache holds recently produced simulation results in a
// bounded LRU and mirrors every write into a bounded, queryable
// history log.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/me/gosweep/pkg/model"
)

// DefaultTTL is the staleness bound enforced on reads.
const DefaultTTL = 24 * time.Hour

// Metadata describes where a cached result came from.
type Metadata struct {
	ModelPath  string         `json:"model_path"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Tags       []string       `json:"tags,omitempty"`
}

// Record is one cached result and its metadata.
type Record struct {
	Key      string                   `json:"key"`
	Results  *model.SimulationResults `json:"results"`
	Metadata Metadata                 `json:"metadata"`
}

// DeriveKey builds a cache key from the model path and the serialized
// parameters. json.Marshal sorts map keys, so the derivation is stable
// across call sites.
func DeriveKey(modelPath string, parameters map[string]any) string {
	params, _ := json.Marshal(parameters)
	sum := sha256.Sum256([]byte(modelPath + ":" + string(params)))
	return hex.EncodeToString(sum[:16])
}

type entry struct {
	record  *Record
	stored  time.Time
	element *list.Element
}

// Cache is an LRU of bounded capacity with a read-side TTL. Both reads
// and writes promote the touched key to the front; inserting past
// capacity evicts the least-recently-used tail. Every write is also
// appended to the history log.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*entry
	order    *list.List // front = most recently used; element values are keys
	history  *History

	now func() time.Time // test hook
}

// New creates a Cache with the given LRU capacity and history capacity.
// ttl <= 0 means DefaultTTL.
func New(capacity int, ttl time.Duration, historyCapacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*entry),
		order:    list.New(),
		history:  NewHistory(historyCapacity),
		now:      time.Now,
	}
}

// History returns the cache's history log.
func (c *Cache) History() *History {
	return c.history
}

// Put stores a result under key, promoting it to most-recently-used and
// evicting the tail when the insert would exceed capacity. A nil result
// is a malformed write and errors; this is the only cache operation
// that can fail.
func (c *Cache) Put(key string, results *model.SimulationResults, meta Metadata) error {
	if key == "" {
		return fmt.Errorf("cache: empty key")
	}
	if results == nil {
		return fmt.Errorf("cache: nil results for key %s", key)
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = c.now().UTC()
	}
	record := &Record{Key: key, Results: results, Metadata: meta}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.record = record
		e.stored = c.now()
		c.order.MoveToFront(e.element)
	} else {
		if len(c.entries) >= c.capacity {
			c.evictTail()
		}
		c.entries[key] = &entry{
			record:  record,
			stored:  c.now(),
			element: c.order.PushFront(key),
		}
	}
	c.mu.Unlock()

	c.history.Append(record)
	return nil
}

// Get returns the record for key, promoting it to most-recently-used.
// An entry older than the TTL is evicted and reported as a miss. Misses
// never error.
func (c *Cache) Get(key string) (*Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.stored) > c.ttl {
		c.order.Remove(e.element)
		delete(c.entries, key)
		return nil, false
	}
	c.order.MoveToFront(e.element)
	return e.record, true
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictTail drops the least-recently-used entry. Caller must hold mu.
func (c *Cache) evictTail() {
	tail := c.order.Back()
	if tail == nil {
		return
	}
	c.order.Remove(tail)
	delete(c.entries, tail.Value.(string))
}
