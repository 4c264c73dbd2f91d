// Package query implements the k-NN dispatch front-end: a bounded worker
// pool that validates requests, transcodes query vectors into a column's
// native data type, calls the index layer, and assembles results with their
// forward attributes.
package query

import (
	"context"
	"time"

	"github.com/vsearchio/vsearch/agent"
	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/index"
	"github.com/vsearchio/vsearch/meta"
)

// VectorInput is one query vector, either as parsed JSON elements or as
// already-encoded raw bytes (the binary-RPC path decodes straight to bytes).
type VectorInput struct {
	JSONElements []interface{}
	RawBytes     []byte
}

// Request is a k-NN query (§4.9's knn_param plus the owning collection).
type Request struct {
	CollectionName string
	ColumnName     string
	Vectors        []VectorInput
	Dimension      int
	DataType       cmn.DataType
	TopK           int
	Radius         float32
	LinearScan     bool
	Extras         map[string]string
}

// ByKeyRequest is a point lookup by primary key.
type ByKeyRequest struct {
	CollectionName string
	PrimaryKey     uint64
}

// Hit is one assembled result: primary key, similarity score, and the
// forward attribute values in collection-schema order.
type Hit struct {
	PrimaryKey uint64
	Score      float32
	Forward    []string
}

// BatchResult is the hit list for one query vector in a batch.
type BatchResult struct {
	Hits []Hit
}

// Response is the full assembled answer to a Request.
type Response struct {
	Batches   []BatchResult
	LatencyUS int64
}

// Agent owns a bounded worker pool sized to the configured query thread
// count; Search/SearchByKey submit onto it and block the caller until the
// task completes.
type Agent struct {
	meta  *meta.Service
	index index.Service
	slots chan struct{}
}

// NewAgent constructs a query Agent. threadCount <= 0 defaults to 1.
func NewAgent(ms *meta.Service, idx index.Service, threadCount int) *Agent {
	if threadCount <= 0 {
		threadCount = 1
	}
	return &Agent{meta: ms, index: idx, slots: make(chan struct{}, threadCount)}
}

func validateRequest(req *Request) error {
	if req.CollectionName == "" {
		return cmn.NewError(cmn.CodeEmptyCollectionName, "query: empty collection_name")
	}
	if req.ColumnName == "" {
		return cmn.NewError(cmn.CodeEmptyColumnName, "query: empty column_name")
	}
	if req.TopK <= 0 {
		return cmn.NewError(cmn.CodeInvalidQuery, "query: topk must be > 0, got %d", req.TopK)
	}
	if len(req.Vectors) == 0 {
		return cmn.NewError(cmn.CodeInvalidQuery, "query: batch_count must be > 0")
	}
	if req.Dimension <= 0 {
		return cmn.NewError(cmn.CodeInvalidQuery, "query: dimension must be > 0, got %d", req.Dimension)
	}
	if req.DataType == cmn.DataTypeUndefined {
		return cmn.NewError(cmn.CodeInvalidDataType, "query: data_type is undefined")
	}
	for _, v := range req.Vectors {
		if len(v.JSONElements) == 0 && len(v.RawBytes) == 0 {
			return cmn.NewError(cmn.CodeInvalidQuery, "query: empty features for a batch vector")
		}
	}
	return nil
}

// Search runs the §4.9 search path: validate, transcode, submit onto the
// worker pool, call IndexService.KNN, and assemble forward attributes.
func (a *Agent) Search(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	col, err := a.meta.DescribeCollection(req.CollectionName)
	if err != nil {
		return nil, err
	}
	if !col.Readable {
		return nil, cmn.NewError(cmn.CodeUnreadableCollection, "collection %q is not readable", req.CollectionName)
	}

	var columnDataType cmn.DataType
	found := false
	for _, ic := range col.IndexColumns {
		if ic.ColumnName == req.ColumnName {
			columnDataType = ic.DataType
			found = true
			break
		}
	}
	if !found {
		return nil, cmn.NewError(cmn.CodeInexistentColumn, "column %q not found in %q", req.ColumnName, req.CollectionName)
	}

	vectors := make([]index.QueryVector, len(req.Vectors))
	for i, v := range req.Vectors {
		bytes, err := agent.TranscodeQueryVector(v.JSONElements, v.RawBytes, req.DataType, columnDataType, req.Dimension)
		if err != nil {
			return nil, err
		}
		vectors[i] = index.QueryVector{Bytes: bytes}
	}

	var batches []index.BatchResult
	err = a.submit(ctx, func() error {
		var knnErr error
		batches, knnErr = a.index.KNN(req.CollectionName, req.ColumnName, vectors, req.TopK, req.Radius, req.LinearScan, req.Extras)
		return knnErr
	})
	if err != nil {
		return nil, err
	}

	resp := &Response{Batches: make([]BatchResult, len(batches))}
	forwardCount := len(col.ForwardColumns)
	for bi, b := range batches {
		hits := make([]Hit, len(b.Hits))
		for hi, h := range b.Hits {
			forward, ferr := agent.DeserializeForward(h.ForwardBlob, forwardCount)
			if ferr != nil {
				return nil, ferr
			}
			hits[hi] = Hit{PrimaryKey: h.PrimaryKey, Score: h.Score, Forward: forward}
		}
		resp.Batches[bi] = BatchResult{Hits: hits}
	}
	resp.LatencyUS = time.Since(start).Microseconds()
	return resp, nil
}

// SearchByKey returns at most one document (with forward attributes) for a
// primary key point lookup.
func (a *Agent) SearchByKey(ctx context.Context, req *ByKeyRequest) (*Hit, error) {
	if req.CollectionName == "" {
		return nil, cmn.NewError(cmn.CodeEmptyCollectionName, "query: empty collection_name")
	}

	col, err := a.meta.DescribeCollection(req.CollectionName)
	if err != nil {
		return nil, err
	}
	if !col.Readable {
		return nil, cmn.NewError(cmn.CodeUnreadableCollection, "collection %q is not readable", req.CollectionName)
	}

	var hit index.Hit
	var found bool
	err = a.submit(ctx, func() error {
		var gerr error
		hit, found, gerr = a.index.GetByKey(req.CollectionName, req.PrimaryKey)
		return gerr
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	forward, err := agent.DeserializeForward(hit.ForwardBlob, len(col.ForwardColumns))
	if err != nil {
		return nil, err
	}
	return &Hit{PrimaryKey: hit.PrimaryKey, Score: hit.Score, Forward: forward}, nil
}

// submit runs fn on the shared bounded worker pool and blocks until it
// completes. Per §4.9, if ctx is cancelled while fn is in flight the task
// still runs to completion and the result is simply discarded by a caller
// that has already given up — submit itself always waits out the task.
func (a *Agent) submit(ctx context.Context, fn func() error) error {
	a.slots <- struct{}{}
	defer func() { <-a.slots }()

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		<-done // task still runs to completion; its result is discarded
		return cmn.NewError(cmn.CodeScheduleError, "query cancelled: %v", ctx.Err())
	}
}
