package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/me/gosweep/pkg/model"
)

func dummyResults() *model.SimulationResults {
	return &model.SimulationResults{
		Success: true,
		Data:    map[string][]float64{model.TimeColumn: {0, 1}, "x": {1, 2}},
		Columns: []string{model.TimeColumn, "x"},
		Index:   []float64{0, 1},
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2, 0, 10)

	for _, key := range []string{"a", "b", "c"} {
		if err := c.Put(key, dummyResults(), Metadata{ModelPath: "m.mo"}); err != nil {
			t.Fatalf("Put(%s): %v", key, err)
		}
	}

	if _, ok := c.Get("a"); ok {
		t.Error("a should have been evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("b should be a hit")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should be a hit")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestCache_GetPromotes(t *testing.T) {
	c := New(2, 0, 10)
	c.Put("a", dummyResults(), Metadata{})
	c.Put("b", dummyResults(), Metadata{})

	// Touch a so that b becomes the LRU tail.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be present")
	}
	c.Put("c", dummyResults(), Metadata{})

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted after a was promoted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should survive")
	}
}

func TestCache_PutExistingPromotesAndReplaces(t *testing.T) {
	c := New(2, 0, 10)
	c.Put("a", dummyResults(), Metadata{ModelPath: "v1"})
	c.Put("b", dummyResults(), Metadata{})
	c.Put("a", dummyResults(), Metadata{ModelPath: "v2"})
	c.Put("c", dummyResults(), Metadata{})

	record, ok := c.Get("a")
	if !ok {
		t.Fatal("a should survive after rewrite promoted it")
	}
	if record.Metadata.ModelPath != "v2" {
		t.Errorf("ModelPath = %q, want v2", record.Metadata.ModelPath)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(4, time.Hour, 10)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Put("a", dummyResults(), Metadata{})

	now = now.Add(30 * time.Minute)
	if _, ok := c.Get("a"); !ok {
		t.Error("fresh entry should hit")
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get("a"); ok {
		t.Error("stale entry should be evicted and miss")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after expiry, want 0", c.Len())
	}
}

func TestCache_MalformedWrite(t *testing.T) {
	c := New(2, 0, 10)
	if err := c.Put("a", nil, Metadata{}); err == nil {
		t.Error("nil results must error")
	}
	if err := c.Put("", dummyResults(), Metadata{}); err == nil {
		t.Error("empty key must error")
	}
}

func TestDeriveKey_Stable(t *testing.T) {
	k1 := DeriveKey("m.mo", map[string]any{"alpha": 0.1, "beta": 2})
	k2 := DeriveKey("m.mo", map[string]any{"beta": 2, "alpha": 0.1})
	if k1 != k2 {
		t.Error("key must not depend on map iteration order")
	}
	if k1 == DeriveKey("other.mo", map[string]any{"alpha": 0.1, "beta": 2}) {
		t.Error("key must depend on model path")
	}
	if k1 == DeriveKey("m.mo", map[string]any{"alpha": 0.2, "beta": 2}) {
		t.Error("key must depend on parameter values")
	}
}

func TestHistory_BoundedOldestFirstDrop(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Append(&Record{Key: fmt.Sprintf("k%d", i)})
	}
	if h.Len() != 3 {
		t.Fatalf("Len = %d, want 3", h.Len())
	}
	all := h.Query(HistoryQuery{})
	// Newest-first: k4, k3, k2.
	want := []string{"k4", "k3", "k2"}
	for i, record := range all {
		if record.Key != want[i] {
			t.Errorf("record %d = %s, want %s", i, record.Key, want[i])
		}
	}
}

func TestHistory_Query(t *testing.T) {
	h := NewHistory(10)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	h.Append(&Record{Key: "a", Metadata: Metadata{
		ModelPath: "m1.mo", Timestamp: base, Tags: []string{"baseline"},
	}})
	h.Append(&Record{Key: "b", Metadata: Metadata{
		ModelPath: "m1.mo", Timestamp: base.Add(time.Hour), Tags: []string{"baseline", "tuned"},
	}})
	h.Append(&Record{Key: "c", Metadata: Metadata{
		ModelPath: "m2.mo", Timestamp: base.Add(2 * time.Hour), Tags: []string{"tuned"},
	}})

	if got := h.Query(HistoryQuery{ModelPath: "m1.mo"}); len(got) != 2 || got[0].Key != "b" {
		t.Errorf("model query = %v", keys(got))
	}
	if got := h.Query(HistoryQuery{Since: base.Add(30 * time.Minute)}); len(got) != 2 {
		t.Errorf("since query = %v", keys(got))
	}
	if got := h.Query(HistoryQuery{Until: base.Add(30 * time.Minute)}); len(got) != 1 || got[0].Key != "a" {
		t.Errorf("until query = %v", keys(got))
	}
	// All tags must match.
	if got := h.Query(HistoryQuery{Tags: []string{"baseline", "tuned"}}); len(got) != 1 || got[0].Key != "b" {
		t.Errorf("tags query = %v", keys(got))
	}
	if got := h.Query(HistoryQuery{Tags: []string{"missing"}}); len(got) != 0 {
		t.Errorf("missing-tag query = %v", keys(got))
	}
}

func TestCache_WritesMirrorToHistory(t *testing.T) {
	c := New(1, 0, 10)
	c.Put("a", dummyResults(), Metadata{})
	c.Put("b", dummyResults(), Metadata{}) // evicts a from the LRU

	if c.Len() != 1 {
		t.Errorf("cache Len = %d, want 1", c.Len())
	}
	if c.History().Len() != 2 {
		t.Errorf("history Len = %d, want 2 (eviction must not touch history)", c.History().Len())
	}
}

func keys(records []*Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Key
	}
	return out
}
