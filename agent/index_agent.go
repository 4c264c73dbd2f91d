package agent

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/index"
	"github.com/vsearchio/vsearch/internal/xlog"
	"github.com/vsearchio/vsearch/meta"
)

const rateLimitAcquireTimeout = 500 * time.Millisecond

// IndexAgent is the authoritative write funnel: it mediates between the
// public write verb and the index layer (IndexService), enforcing
// admission control, the magic-number fence, and the direct/proxy dispatch
// split.
type IndexAgent struct {
	meta    *meta.Service
	index   index.Service
	counter *CollectionCounterMap
	order   *ColumnOrderMap
	builder *WriteRequestBuilder

	limiter *rate.Limiter

	// magicNumber is a monotonic-microseconds timestamp captured at init;
	// every proxy write must carry it back so a restarted server can fence
	// stale CDC replays from its previous incarnation.
	magicNumber uint64

	buildThreadCount int
}

// NewIndexAgent constructs an IndexAgent. maxBuildQPS == 0 means unlimited.
func NewIndexAgent(ms *meta.Service, idx index.Service, maxBuildQPS, buildThreadCount int) *IndexAgent {
	var limiter *rate.Limiter
	if maxBuildQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(maxBuildQPS), maxBuildQPS)
	}
	return &IndexAgent{
		meta:             ms,
		index:            idx,
		counter:          NewCollectionCounterMap(),
		order:            NewColumnOrderMap(),
		builder:          NewWriteRequestBuilder(),
		limiter:          limiter,
		magicNumber:      uint64(time.Now().UnixMicro()),
		buildThreadCount: buildThreadCount,
	}
}

// MagicNumber returns the startup fence value exposed via
// describe_collection so CDC repositories can stamp outgoing writes.
func (a *IndexAgent) MagicNumber() uint64 { return a.magicNumber }

// CreateCollection registers bookkeeping for name and asks the index layer
// to materialize it. The caller (AdminAgent) is responsible for deleting
// the meta row if this fails.
func (a *IndexAgent) CreateCollection(name string) error {
	col, err := a.meta.DescribeCollection(name)
	if err != nil {
		return err
	}
	a.counter.Register(name)
	a.order.Rebuild(col)
	return a.index.CreateCollection(name, toIndexMeta(col))
}

// UpdateCollection spins (bounded by drainTimeout, 0 meaning forever) until
// the collection's counter reaches zero, then hands the target revision to
// the index layer.
func (a *IndexAgent) UpdateCollection(ctx context.Context, name string, revision uint64, drainTimeout time.Duration) error {
	counter := a.counter.Register(name)
	if err := a.drain(ctx, counter, drainTimeout); err != nil {
		return err
	}

	col, err := a.meta.DescribeCollection(name)
	if err != nil {
		return err
	}
	a.order.Rebuild(col)
	return a.index.UpdateCollection(name, toIndexMeta(col))
}

func (a *IndexAgent) drain(ctx context.Context, counter *CollectionCounter, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for counter.Load() != 0 {
		select {
		case <-ctx.Done():
			return cmn.NewError(cmn.CodeScheduleError, "update_collection cancelled while draining: %v", ctx.Err())
		case <-ticker.C:
		}
		if timeout > 0 && time.Now().After(deadline) {
			return cmn.NewError(cmn.CodeScheduleError, "update_collection drain timed out after %s", timeout)
		}
	}
	return nil
}

// DropCollection drops name from the index layer and, on success, removes
// its counter and column-order bookkeeping.
func (a *IndexAgent) DropCollection(name string) error {
	if err := a.index.DropCollection(name); err != nil {
		return err
	}
	a.counter.Delete(name)
	a.order.Delete(name)
	return nil
}

// Write is the main write-path entry point described by §4.8.
func (a *IndexAgent) Write(ctx context.Context, req *WriteRequest) error {
	if len(req.Rows) == 0 {
		return nil
	}

	col, err := a.meta.DescribeCollection(req.CollectionName)
	if err != nil {
		return err
	}
	if !col.Writable {
		return cmn.NewError(cmn.CodeSuspendedCollection, "collection %q is not writable", req.CollectionName)
	}
	if req.IsProxy && req.MagicNumber != a.magicNumber {
		return cmn.NewError(cmn.CodeMismatchedMagicNumber, "proxy write magic number %d != agent %d", req.MagicNumber, a.magicNumber)
	}

	rowCount := len(req.Rows)
	if a.limiter != nil {
		acctx, cancel := context.WithTimeout(ctx, rateLimitAcquireTimeout)
		defer cancel()
		if err := a.limiter.WaitN(acctx, rowCount); err != nil {
			return cmn.NewError(cmn.CodeExceedRateLimit, "rate limit exceeded for %d rows: %v", rowCount, err)
		}
	}

	counter := a.counter.Register(req.CollectionName)
	counter.AddActive(uint32(rowCount))

	// Re-check writable: the flag may have flipped while we were waiting
	// on the rate limiter.
	col, err = a.meta.DescribeCollection(req.CollectionName)
	if err != nil {
		counter.SubActive(uint32(rowCount))
		return err
	}
	if !col.Writable {
		counter.SubActive(uint32(rowCount))
		return cmn.NewError(cmn.CodeSuspendedCollection, "collection %q is not writable", req.CollectionName)
	}

	order := a.order.Get(req.CollectionName)
	if order == nil {
		order = a.order.Rebuild(col)
	}

	datasets, mode, err := a.builder.Build(req, col, order)
	if err != nil {
		counter.SubActive(uint32(rowCount))
		return err
	}

	switch mode {
	case cmn.WriteModeProxy:
		return a.dispatchProxy(ctx, req.CollectionName, datasets, counter)
	default:
		defer counter.SubActive(uint32(rowCount))
		return a.index.WriteRecords(req.CollectionName, toIndexDataset(datasets[0]))
	}
}

// dispatchProxy submits each row as an independent task on a bounded pool
// sized to buildThreadCount; failures are logged per-row and never abort
// siblings, matching §7's fan-out failure policy.
func (a *IndexAgent) dispatchProxy(ctx context.Context, name string, datasets []*Dataset, counter *CollectionCounter) error {
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(a.buildThreadCount)

	for _, ds := range datasets {
		ds := ds
		g.Go(func() error {
			defer counter.DecActive()
			if err := a.index.WriteRecords(name, toIndexDataset(ds)); err != nil {
				xlog.Warnf("agent: proxy write row failed for %q: %v", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// GetLatestLSN delegates to the index layer.
func (a *IndexAgent) GetLatestLSN(name string) (uint64, string, error) {
	return a.index.GetLatestLSN(name)
}

// GetCollectionStats delegates to the index layer.
func (a *IndexAgent) GetCollectionStats(name string) (index.Stats, error) {
	return a.index.GetCollectionStats(name)
}

func toIndexMeta(c *meta.Collection) index.CollectionMeta {
	cols := make([]index.IndexColumnMeta, len(c.IndexColumns))
	for i, ic := range c.IndexColumns {
		cols[i] = index.IndexColumnMeta{
			ColumnName: ic.ColumnName,
			DataType:   ic.DataType,
			Dimension:  ic.Dimension,
		}
	}
	return index.CollectionMeta{
		Name:              c.Name,
		MaxDocsPerSegment: c.MaxDocsPerSegment,
		ForwardColumns:    c.ForwardColumns,
		IndexColumns:      cols,
	}
}

func toIndexDataset(ds *Dataset) index.Dataset {
	rows := make([]index.DatasetRow, len(ds.Rows))
	for i, r := range ds.Rows {
		cols := make([]index.Column, len(r.Columns))
		for j, c := range r.Columns {
			cols[j] = index.Column{ColumnName: c.ColumnName, DataType: c.DataType, Dimension: c.Dimension, Bytes: c.Bytes}
		}
		rows[i] = index.DatasetRow{
			PrimaryKey:    r.PrimaryKey,
			OperationType: r.OperationType,
			ForwardBlob:   r.ForwardBlob,
			Columns:       cols,
		}
	}
	return index.Dataset{Rows: rows}
}
