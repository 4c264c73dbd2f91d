// Package server implements a single concrete handler behind a capability
// interface, plus two thin protocol adapters: the JSON/HTTP surface
// (http.go) and the binary-RPC surface (rpc.go), both translating wire
// messages into calls on the same Handler.
package server

import (
	"context"

	"github.com/vsearchio/vsearch/admin"
	"github.com/vsearchio/vsearch/agent"
	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/meta"
	"github.com/vsearchio/vsearch/metrics"
	"github.com/vsearchio/vsearch/query"
)

// Handler is the protocol-agnostic capability interface: every collection
// and document operation has exactly one method here, called identically
// by both adapters.
type Handler struct {
	admin   *admin.Agent
	index   *agent.IndexAgent
	query   *query.Agent
	metrics *metrics.Registry
}

// NewHandler wires the three agents and the metrics registry into one
// dispatch surface. metricsRegistry may be nil, in which case timers are
// no-ops.
func NewHandler(a *admin.Agent, ia *agent.IndexAgent, qa *query.Agent, metricsRegistry *metrics.Registry) *Handler {
	return &Handler{admin: a, index: ia, query: qa, metrics: metricsRegistry}
}

func (h *Handler) CreateCollection(param *meta.CreateParam) (*meta.Collection, error) {
	return h.admin.CreateCollection(param)
}

func (h *Handler) UpdateCollection(ctx context.Context, param *meta.UpdateParam) (*meta.Collection, error) {
	return h.admin.UpdateCollection(ctx, param)
}

func (h *Handler) DropCollection(name string) error {
	return h.admin.DropCollection(name)
}

func (h *Handler) DescribeCollection(name string) (*admin.Description, error) {
	return h.admin.DescribeCollection(name)
}

func (h *Handler) ListCollections(repositoryFilter string) []*meta.Collection {
	return h.admin.ListCollections(repositoryFilter)
}

func (h *Handler) StatsCollection(name string) (*admin.Stats, error) {
	return h.admin.StatsCollection(name)
}

// Write dispatches a write batch and, when a metrics registry is
// configured, records its latency/outcome under the request's collection.
func (h *Handler) Write(ctx context.Context, req *agent.WriteRequest) error {
	if h.metrics == nil {
		return h.index.Write(ctx, req)
	}
	stop := h.metrics.StartWriteTimer(req.CollectionName)
	err := h.index.Write(ctx, req)
	stop(err)
	return err
}

// Query dispatches a k-NN search and records latency/outcome.
func (h *Handler) Query(ctx context.Context, req *query.Request) (*query.Response, error) {
	if h.metrics == nil {
		return h.query.Search(ctx, req)
	}
	stop := h.metrics.StartQueryTimer(req.CollectionName)
	resp, err := h.query.Search(ctx, req)
	stop(err)
	return resp, err
}

// GetDocumentByKey dispatches a point lookup and records latency/outcome.
func (h *Handler) GetDocumentByKey(ctx context.Context, req *query.ByKeyRequest) (*query.Hit, error) {
	if h.metrics == nil {
		return h.query.SearchByKey(ctx, req)
	}
	stop := h.metrics.StartGetDocumentTimer(req.CollectionName)
	hit, err := h.query.SearchByKey(ctx, req)
	stop(err)
	return hit, err
}

// GetVersion returns the running binary's protocol/service version.
func (h *Handler) GetVersion() string {
	return cmn.ServiceVersion
}
