// Package admin implements AdminAgent: thin orchestration of
// create/drop/describe/list/stats across MetaService, IndexAgent, and the
// query Agent, with compensating rollback when a downstream step fails
// after the meta row has already been persisted.
package admin

import (
	"context"
	"time"

	"github.com/vsearchio/vsearch/agent"
	"github.com/vsearchio/vsearch/internal/xlog"
	"github.com/vsearchio/vsearch/meta"
)

// Description is describe_collection's response: the collection schema
// plus the agent's startup fence, which CDC repositories stamp onto
// outgoing proxy writes.
type Description struct {
	Collection  *meta.Collection
	MagicNumber uint64
}

// Stats is stats_collection's response.
type Stats struct {
	TotalDocCount     uint64
	TotalSegmentCount uint64
}

// Agent is AdminAgent.
type Agent struct {
	meta         *meta.Service
	index        *agent.IndexAgent
	drainTimeout time.Duration
}

// NewAgent constructs an AdminAgent. drainTimeout bounds how long
// UpdateCollection waits for a collection's CollectionCounter to reach
// zero before giving up (0 means wait forever).
func NewAgent(ms *meta.Service, ia *agent.IndexAgent, drainTimeout time.Duration) *Agent {
	return &Agent{meta: ms, index: ia, drainTimeout: drainTimeout}
}

// CreateCollection validates and persists the schema, asks the index layer
// to materialize it, then enables revision 0 so the collection is
// immediately SERVING. If the index layer fails, the meta row is deleted.
func (a *Agent) CreateCollection(param *meta.CreateParam) (*meta.Collection, error) {
	col, err := a.meta.CreateCollection(param)
	if err != nil {
		return nil, err
	}

	if err := a.index.CreateCollection(col.Name); err != nil {
		xlog.Errorf("admin: create_collection %q index step failed, compensating: %v", col.Name, err)
		if derr := a.meta.DropCollection(col.Name); derr != nil {
			xlog.Errorf("admin: compensating meta delete for %q failed: %v", col.Name, derr)
		}
		return nil, err
	}

	if err := a.meta.EnableCollection(col.Name, col.Revision); err != nil {
		return nil, err
	}
	return a.meta.DescribeCollection(col.Name)
}

// UpdateCollection builds and persists the next revision, waits for the
// index layer to drain in-flight writes against the current revision, hands
// the new schema to the index layer, then enables it.
func (a *Agent) UpdateCollection(ctx context.Context, param *meta.UpdateParam) (*meta.Collection, error) {
	next, err := a.meta.UpdateCollection(param)
	if err != nil {
		return nil, err
	}

	if err := a.index.UpdateCollection(ctx, next.Name, next.Revision, a.drainTimeout); err != nil {
		return nil, err
	}

	if err := a.meta.EnableCollection(next.Name, next.Revision); err != nil {
		return nil, err
	}
	return a.meta.DescribeCollection(next.Name)
}

// DropCollection removes name from the index layer first so no further
// queries/writes are routed to it, then removes its meta rows. Idempotent.
func (a *Agent) DropCollection(name string) error {
	if err := a.index.DropCollection(name); err != nil {
		return err
	}
	return a.meta.DropCollection(name)
}

// DescribeCollection returns the current schema plus the index agent's
// startup fence.
func (a *Agent) DescribeCollection(name string) (*Description, error) {
	col, err := a.meta.DescribeCollection(name)
	if err != nil {
		return nil, err
	}
	return &Description{Collection: col, MagicNumber: a.index.MagicNumber()}, nil
}

// ListCollections lists every current collection, optionally filtered by
// repository name.
func (a *Agent) ListCollections(repositoryFilter string) []*meta.Collection {
	return a.meta.ListCollections(repositoryFilter)
}

// StatsCollection reports the index layer's doc/segment counts for name.
func (a *Agent) StatsCollection(name string) (*Stats, error) {
	if _, err := a.meta.DescribeCollection(name); err != nil {
		return nil, err
	}
	s, err := a.index.GetCollectionStats(name)
	if err != nil {
		return nil, err
	}
	return &Stats{TotalDocCount: s.TotalDocCount, TotalSegmentCount: s.TotalSegmentCount}, nil
}
