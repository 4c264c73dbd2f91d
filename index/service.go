// Package index defines the narrow contract the core requires of the
// per-collection segmented ANN store (§6's "Index layer contract"), and
// ships a runnable in-memory reference implementation under memindex/ that
// satisfies it — used as the default backend and exercised by every
// end-to-end test.
package index

import "github.com/vsearchio/vsearch/cmn"

// IndexColumnMeta is the subset of a collection's index column schema the
// index layer needs to create/validate segments.
type IndexColumnMeta struct {
	ColumnName string
	DataType   cmn.DataType
	Dimension  int
}

// CollectionMeta is the subset of collection schema passed down to
// create_collection / update_collection.
type CollectionMeta struct {
	Name              string
	MaxDocsPerSegment uint64
	ForwardColumns    []string
	IndexColumns      []IndexColumnMeta
}

// Column is one index-column value in raw transcoded-bytes form.
type Column struct {
	ColumnName string
	DataType   cmn.DataType
	Dimension  int
	Bytes      []byte
}

// DatasetRow is one row of a write batch in the index layer's internal
// representation.
type DatasetRow struct {
	PrimaryKey    uint64
	OperationType cmn.OperationType
	ForwardBlob   []byte
	Columns       []Column
}

// Dataset is one unit of work passed to WriteRecords.
type Dataset struct {
	Rows []DatasetRow
}

// QueryVector is one query vector in raw transcoded-bytes form.
type QueryVector struct {
	Bytes []byte
}

// Hit is one k-NN result: a primary key, its distance/similarity score,
// and its raw forward blob (the agent deserializes this against collection
// metadata before returning it to the client).
type Hit struct {
	PrimaryKey  uint64
	Score       float32
	ForwardBlob []byte
}

// BatchResult is the top-k hit list for one query vector in a batch.
type BatchResult struct {
	Hits []Hit
}

// Stats summarizes one collection's on-disk state.
type Stats struct {
	TotalDocCount     uint64
	TotalSegmentCount uint64
}

// Service is the external-collaborator contract: a per-collection
// segmented ANN store. create/update/drop are idempotent on the index side;
// the callers in this module hold no schema-wide lock around them, and
// write_records/knn may be called concurrently by many goroutines.
type Service interface {
	CreateCollection(name string, meta CollectionMeta) error
	UpdateCollection(name string, meta CollectionMeta) error
	DropCollection(name string) error

	WriteRecords(name string, ds Dataset) error

	KNN(name, column string, vectors []QueryVector, topk int, radius float32, linearScan bool, extras map[string]string) ([]BatchResult, error)

	GetByKey(name string, primaryKey uint64) (Hit, bool, error)

	GetLatestLSN(name string) (lsn uint64, context string, err error)
	GetCollectionStats(name string) (Stats, error)

	LoadCollections(names []string, metas []CollectionMeta) error
}
