// Package memindex is a runnable, in-memory segmented linear-scan
// implementation of index.Service. It is not the production ANN engine
// this module's core is designed around (that lives entirely outside this
// module's scope, per the index layer contract) — it exists so the core
// has a default backend it can actually run and test against, exercising
// linear-scan recall mode the same way a real graph index would for small
// collections.
package memindex

import (
	"math"
	"sort"
	"sync"

	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/index"
)

// segment is a bounded chunk of documents; max_docs_per_segment (0 =
// unlimited) determines when a new segment is opened.
type segment struct {
	docs map[uint64]*doc
}

type doc struct {
	primaryKey  uint64
	forwardBlob []byte
	vectors     map[string][]byte // column name -> raw transcoded bytes
}

type collectionState struct {
	mu       sync.RWMutex
	meta     index.CollectionMeta
	segments []*segment
	byKey    map[uint64]int // primary key -> segment index, for O(1) point lookup/delete
}

// Index is the in-memory reference IndexService.
type Index struct {
	mu          sync.RWMutex
	collections map[string]*collectionState
}

func New() *Index {
	return &Index{collections: make(map[string]*collectionState)}
}

func (idx *Index) CreateCollection(name string, meta index.CollectionMeta) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.collections[name]; ok {
		return cmn.NewError(cmn.CodeDuplicateCollection, "memindex: collection %q already exists", name)
	}
	idx.collections[name] = &collectionState{
		meta:     meta,
		segments: []*segment{{docs: make(map[uint64]*doc)}},
		byKey:    make(map[uint64]int),
	}
	return nil
}

func (idx *Index) UpdateCollection(name string, meta index.CollectionMeta) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	c, ok := idx.collections[name]
	if !ok {
		return cmn.NewError(cmn.CodeInexistentCollection, "memindex: collection %q not found", name)
	}
	c.mu.Lock()
	c.meta = meta
	c.mu.Unlock()
	return nil
}

func (idx *Index) DropCollection(name string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.collections, name) // idempotent: deleting an absent key is a no-op
	return nil
}

func (idx *Index) get(name string) (*collectionState, error) {
	idx.mu.RLock()
	c, ok := idx.collections[name]
	idx.mu.RUnlock()
	if !ok {
		return nil, cmn.NewError(cmn.CodeInexistentCollection, "memindex: collection %q not found", name)
	}
	return c, nil
}

func (idx *Index) WriteRecords(name string, ds index.Dataset) error {
	c, err := idx.get(name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, row := range ds.Rows {
		switch row.OperationType {
		case cmn.OpDelete:
			if segIdx, ok := c.byKey[row.PrimaryKey]; ok {
				delete(c.segments[segIdx].docs, row.PrimaryKey)
				delete(c.byKey, row.PrimaryKey)
			}
		default:
			segIdx, exists := c.byKey[row.PrimaryKey]
			if !exists {
				segIdx = c.openSegmentForWrite()
			}
			d := &doc{primaryKey: row.PrimaryKey, forwardBlob: row.ForwardBlob, vectors: map[string][]byte{}}
			for _, col := range row.Columns {
				d.vectors[col.ColumnName] = col.Bytes
			}
			c.segments[segIdx].docs[row.PrimaryKey] = d
			c.byKey[row.PrimaryKey] = segIdx
		}
	}
	return nil
}

// openSegmentForWrite returns the index of a segment with room, opening a
// new one when the last segment has reached max_docs_per_segment (0 means
// unlimited, so the caller keeps writing into segment 0 forever).
func (c *collectionState) openSegmentForWrite() int {
	last := len(c.segments) - 1
	if c.meta.MaxDocsPerSegment == 0 || uint64(len(c.segments[last].docs)) < c.meta.MaxDocsPerSegment {
		return last
	}
	c.segments = append(c.segments, &segment{docs: make(map[uint64]*doc)})
	return last + 1
}

func (idx *Index) KNN(name, column string, vectors []index.QueryVector, topk int, radius float32, linearScan bool, extras map[string]string) ([]index.BatchResult, error) {
	c, err := idx.get(name)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var dim int
	for _, ic := range c.meta.IndexColumns {
		if ic.ColumnName == column {
			dim = ic.Dimension
		}
	}
	if dim == 0 {
		return nil, cmn.NewError(cmn.CodeInexistentColumn, "memindex: column %q not found in %q", column, name)
	}

	results := make([]index.BatchResult, len(vectors))
	for qi, qv := range vectors {
		qf, err := bytesToFloat32(qv.Bytes)
		if err != nil {
			return nil, err
		}

		type scored struct {
			hit   index.Hit
			score float32
		}
		var all []scored
		for _, seg := range c.segments {
			for _, d := range seg.docs {
				raw, ok := d.vectors[column]
				if !ok {
					continue
				}
				cf, err := bytesToFloat32(raw)
				if err != nil {
					continue
				}
				score := l2Distance(qf, cf)
				if radius > 0 && score > radius {
					continue
				}
				all = append(all, scored{hit: index.Hit{PrimaryKey: d.primaryKey, Score: score, ForwardBlob: d.forwardBlob}, score: score})
			}
		}
		sort.Slice(all, func(i, j int) bool { return all[i].score < all[j].score })
		if topk < len(all) {
			all = all[:topk]
		}
		hits := make([]index.Hit, len(all))
		for i, s := range all {
			hits[i] = s.hit
		}
		results[qi] = index.BatchResult{Hits: hits}
	}
	return results, nil
}

func (idx *Index) GetByKey(name string, primaryKey uint64) (index.Hit, bool, error) {
	c, err := idx.get(name)
	if err != nil {
		return index.Hit{}, false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	segIdx, ok := c.byKey[primaryKey]
	if !ok {
		return index.Hit{}, false, nil
	}
	d := c.segments[segIdx].docs[primaryKey]
	return index.Hit{PrimaryKey: d.primaryKey, ForwardBlob: d.forwardBlob}, true, nil
}

func (idx *Index) GetLatestLSN(name string) (uint64, string, error) {
	if _, err := idx.get(name); err != nil {
		return 0, "", err
	}
	return 0, "", nil
}

func (idx *Index) GetCollectionStats(name string) (index.Stats, error) {
	c, err := idx.get(name)
	if err != nil {
		return index.Stats{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total uint64
	for _, seg := range c.segments {
		total += uint64(len(seg.docs))
	}
	return index.Stats{TotalDocCount: total, TotalSegmentCount: uint64(len(c.segments))}, nil
}

func (idx *Index) LoadCollections(names []string, metas []index.CollectionMeta) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, name := range names {
		if _, ok := idx.collections[name]; ok {
			continue
		}
		idx.collections[name] = &collectionState{
			meta:     metas[i],
			segments: []*segment{{docs: make(map[uint64]*doc)}},
			byKey:    make(map[uint64]int),
		}
	}
	return nil
}

func bytesToFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, cmn.NewError(cmn.CodeInvalidVectorFormat, "memindex: vector byte length %d not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

func l2Distance(a, b []float32) float32 {
	var sum float32
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}
