// Package agent implements the write funnel: per-collection column
// ordering, in-flight counters, request validation/transcoding, and the
// IndexAgent that mediates between the public write verb and the index
// layer.
package agent

import (
	"sync"

	"github.com/vsearchio/vsearch/meta"
)

// ColumnOrder is an immutable-once-published snapshot of a collection's
// column name → ordinal mapping, used by WriteRequestBuilder to reorder
// out-of-order forward/index values onto meta's canonical positions.
type ColumnOrder struct {
	Forward map[string]int
	Index   map[string]int
}

func newColumnOrder(c *meta.Collection) *ColumnOrder {
	co := &ColumnOrder{
		Forward: make(map[string]int, len(c.ForwardColumns)),
		Index:   make(map[string]int, len(c.IndexColumns)),
	}
	for i, name := range c.ForwardColumns {
		co.Forward[name] = i
	}
	for i, ic := range c.IndexColumns {
		co.Index[ic.ColumnName] = i
	}
	return co
}

// ColumnOrderMap owns the name→snapshot map; snapshots are immutable once
// published so readers never need to copy them.
type ColumnOrderMap struct {
	mu   sync.Mutex
	byID map[string]*ColumnOrder
}

func NewColumnOrderMap() *ColumnOrderMap {
	return &ColumnOrderMap{byID: make(map[string]*ColumnOrder)}
}

// Rebuild replaces the snapshot for c.Name, called whenever a collection is
// created or its schema updated.
func (m *ColumnOrderMap) Rebuild(c *meta.Collection) *ColumnOrder {
	co := newColumnOrder(c)
	m.mu.Lock()
	m.byID[c.Name] = co
	m.mu.Unlock()
	return co
}

// Get returns the current snapshot for name, or nil if none has been built.
func (m *ColumnOrderMap) Get(name string) *ColumnOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[name]
}

// Delete drops the snapshot for name, called on drop_collection.
func (m *ColumnOrderMap) Delete(name string) {
	m.mu.Lock()
	delete(m.byID, name)
	m.mu.Unlock()
}
