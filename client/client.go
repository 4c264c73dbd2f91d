// Package client is the synchronous library client: connection pooling,
// bounded retry, and a startup version handshake sit in front of both wire
// transports (HTTP/JSON and binary-RPC), behind the same method set the
// server's own Handler exposes.
package client

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vsearchio/vsearch/admin"
	"github.com/vsearchio/vsearch/agent"
	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/meta"
	"github.com/vsearchio/vsearch/query"
)

// defaults for Config's zero-valued fields.
const (
	defaultTimeout             = time.Second
	defaultRetryCount          = 3
	defaultMaxIdleConnsPerHost = 4
	defaultRPCPoolSize         = 4
)

// Transport selects which wire protocol a Client dials.
type Transport string

const (
	TransportHTTP Transport = "http"
	TransportRPC  Transport = "rpc"
)

// Config configures a Client. Addr is host:port; for TransportHTTP it is
// dialed as http://Addr, for TransportRPC as a plain TCP connection.
type Config struct {
	Addr                string
	Transport           Transport
	Timeout             time.Duration
	RetryCount          int
	MaxIdleConnsPerHost int
	RPCPoolSize         int
}

func (c *Config) setDefaults() {
	if c.Transport == "" {
		c.Transport = TransportHTTP
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.RetryCount <= 0 {
		c.RetryCount = defaultRetryCount
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}
	if c.RPCPoolSize <= 0 {
		c.RPCPoolSize = defaultRPCPoolSize
	}
}

// wireTransport is the seam between Client's retry/timeout policy and the
// two concrete protocol implementations.
type wireTransport interface {
	createCollection(ctx context.Context, p *meta.CreateParam) (*meta.Collection, error)
	updateCollection(ctx context.Context, p *meta.UpdateParam) (*meta.Collection, error)
	dropCollection(ctx context.Context, name string) error
	describeCollection(ctx context.Context, name string) (*admin.Description, error)
	listCollections(ctx context.Context, repositoryFilter string) ([]*meta.Collection, error)
	statsCollection(ctx context.Context, name string) (*admin.Stats, error)
	write(ctx context.Context, req *agent.WriteRequest) error
	query(ctx context.Context, req *query.Request) (*query.Response, error)
	getDocumentByKey(ctx context.Context, req *query.ByKeyRequest) (*query.Hit, error)
	getVersion(ctx context.Context) (string, error)
	close() error
}

// Client is the library entry point. Create one with New, which performs a
// server-version handshake before returning.
type Client struct {
	cfg     Config
	tr      wireTransport
	version string
}

// New dials addr over cfg.Transport, pools connections per cfg, and blocks
// until a get_version handshake against the server succeeds (subject to
// cfg.RetryCount/cfg.Timeout).
func New(cfg Config) (*Client, error) {
	cfg.setDefaults()

	var tr wireTransport
	var err error
	switch cfg.Transport {
	case TransportRPC:
		tr, err = newRPCTransport(cfg)
	default:
		tr = newHTTPTransport(cfg)
	}
	if err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg, tr: tr}
	if err := c.withRetry(context.Background(), func(ctx context.Context) error {
		v, verr := tr.getVersion(ctx)
		if verr != nil {
			return verr
		}
		c.version = v
		return nil
	}); err != nil {
		tr.close()
		return nil, err
	}
	return c, nil
}

// ServerVersion returns the version string captured during the New handshake.
func (c *Client) ServerVersion() string { return c.version }

// Close releases pooled connections.
func (c *Client) Close() error { return c.tr.close() }

// withRetry bounds op to cfg.Timeout per attempt and retries it up to
// cfg.RetryCount times with exponential backoff. Errors that carry a
// cmn.Code are never worth retrying except for transport-level failures
// (connection refused, timeout), which the transports surface as plain,
// non-*cmn.Error errors; those are the only ones retried.
func (c *Client) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.RetryCount)), ctx)
	return backoff.Retry(func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		err := op(callCtx)
		if _, ok := err.(*cmn.Error); ok {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

func (c *Client) CreateCollection(ctx context.Context, p *meta.CreateParam) (*meta.Collection, error) {
	var out *meta.Collection
	err := c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.tr.createCollection(ctx, p)
		return err
	})
	return out, err
}

func (c *Client) UpdateCollection(ctx context.Context, p *meta.UpdateParam) (*meta.Collection, error) {
	var out *meta.Collection
	err := c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.tr.updateCollection(ctx, p)
		return err
	})
	return out, err
}

func (c *Client) DropCollection(ctx context.Context, name string) error {
	return c.withRetry(ctx, func(ctx context.Context) error {
		return c.tr.dropCollection(ctx, name)
	})
}

func (c *Client) DescribeCollection(ctx context.Context, name string) (*admin.Description, error) {
	var out *admin.Description
	err := c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.tr.describeCollection(ctx, name)
		return err
	})
	return out, err
}

func (c *Client) ListCollections(ctx context.Context, repositoryFilter string) ([]*meta.Collection, error) {
	var out []*meta.Collection
	err := c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.tr.listCollections(ctx, repositoryFilter)
		return err
	})
	return out, err
}

func (c *Client) StatsCollection(ctx context.Context, name string) (*admin.Stats, error) {
	var out *admin.Stats
	err := c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.tr.statsCollection(ctx, name)
		return err
	})
	return out, err
}

// Write is not retried on a *cmn.Error (an already-classified server
// rejection), but like every other call is retried on transport failure;
// callers writing non-idempotent inserts under at-least-once delivery
// should rely on the primary key, not on this method being exactly-once.
func (c *Client) Write(ctx context.Context, req *agent.WriteRequest) error {
	return c.withRetry(ctx, func(ctx context.Context) error {
		return c.tr.write(ctx, req)
	})
}

func (c *Client) Query(ctx context.Context, req *query.Request) (*query.Response, error) {
	var out *query.Response
	err := c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.tr.query(ctx, req)
		return err
	})
	return out, err
}

func (c *Client) GetDocumentByKey(ctx context.Context, req *query.ByKeyRequest) (*query.Hit, error) {
	var out *query.Hit
	err := c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.tr.getDocumentByKey(ctx, req)
		return err
	})
	return out, err
}
