package table

import (
	"context"
	"sync"

	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/record"
)

const defaultMemoryCapacity = 1000

// MemoryTable is an in-process stand-in for the key-value table. It keeps at
// most capacity records and evicts the oldest first.
type MemoryTable struct {
	mu       sync.Mutex
	capacity int
	order    []string
	items    map[string]record.Record
}

func NewMemoryTable(capacity int) *MemoryTable {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryTable{
		capacity: capacity,
		order:    make([]string, 0, 200),
		items:    make(map[string]record.Record),
	}
}

func (t *MemoryTable) Put(_ context.Context, rec record.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := rec.ID()
	stored := record.Merge(rec, id)
	if _, ok := t.items[id]; ok {
		t.items[id] = stored
		return nil
	}

	t.items[id] = stored
	t.order = append(t.order, id)
	if len(t.order) > t.capacity {
		for _, evicted := range t.order[:len(t.order)-t.capacity] {
			delete(t.items, evicted)
		}
		t.order = t.order[len(t.order)-t.capacity:]
	}
	return nil
}

func (t *MemoryTable) Get(id string) (record.Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.items[id]
	return rec, ok
}

func (t *MemoryTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.items)
}

// List returns up to limit records, newest first.
func (t *MemoryTable) List(limit int) []record.Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	if limit > len(t.order) {
		limit = len(t.order)
	}
	start := len(t.order) - limit
	result := make([]record.Record, 0, limit)
	for i := len(t.order) - 1; i >= start; i-- {
		result = append(result, t.items[t.order[i]])
	}
	return result
}
