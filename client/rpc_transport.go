package client

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"

	"github.com/tinylib/msgp/msgp"

	"github.com/vsearchio/vsearch/admin"
	"github.com/vsearchio/vsearch/agent"
	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/meta"
	"github.com/vsearchio/vsearch/query"
	"github.com/vsearchio/vsearch/server/wire"
)

const maxFrameBytes = 64 << 20

// rpcTransport dials the same `[4-byte length][msgpack body]` framing
// server/rpc.go speaks, pooling up to cfg.RPCPoolSize idle connections.
type rpcTransport struct {
	addr string
	pool chan net.Conn
}

func newRPCTransport(cfg Config) (*rpcTransport, error) {
	return &rpcTransport{addr: cfg.Addr, pool: make(chan net.Conn, cfg.RPCPoolSize)}, nil
}

func (t *rpcTransport) getConn(ctx context.Context) (net.Conn, error) {
	select {
	case c := <-t.pool:
		return c, nil
	default:
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", t.addr)
}

func (t *rpcTransport) putConn(c net.Conn) {
	select {
	case t.pool <- c:
	default:
		c.Close()
	}
}

func (t *rpcTransport) close() error {
	for {
		select {
		case c := <-t.pool:
			c.Close()
		default:
			return nil
		}
	}
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameBytes {
		return nil, cmn.NewError(cmn.CodeReadData, "frame of %d bytes exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

func writeFrame(w io.Writer, body []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// call sends op+req as one frame and decodes the {code, reason} envelope
// plus an optional payload from the response frame. A *cmn.Error return
// means the server answered normally with a semantic failure; any other
// error means the connection itself is suspect and is not pooled back.
func (t *rpcTransport) call(ctx context.Context, op wire.OpCode, req msgp.Encodable, out msgp.Decodable) error {
	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	var buf bytes.Buffer
	en := msgp.NewWriter(&buf)
	if err := wire.WriteOp(en, op, req); err != nil {
		conn.Close()
		return err
	}
	if err := writeFrame(conn, buf.Bytes()); err != nil {
		conn.Close()
		return err
	}

	body, err := readFrame(conn)
	if err != nil {
		conn.Close()
		return err
	}
	dc := msgp.NewReader(bytes.NewReader(body))
	env, err := wire.ReadEnvelope(dc)
	if err != nil {
		conn.Close()
		return err
	}
	if env.Code != int32(cmn.Success) {
		t.putConn(conn)
		return &cmn.Error{Code: cmn.Code(env.Code), Reason: env.Reason}
	}
	if out != nil {
		if err := out.DecodeMsg(dc); err != nil {
			conn.Close()
			return err
		}
	}
	t.putConn(conn)
	return nil
}

func repositoryToWire(r *meta.Repository) *wire.Repository {
	if r == nil {
		return nil
	}
	return &wire.Repository{Name: r.Name, ConnectionURI: r.ConnectionURI, User: r.User, Password: r.Password, TableName: r.TableName}
}

func repositoryFromWire(r *wire.Repository) *meta.Repository {
	if r == nil {
		return nil
	}
	return &meta.Repository{Name: r.Name, ConnectionURI: r.ConnectionURI, User: r.User, Password: r.Password, TableName: r.TableName}
}

func indexColumnsToWire(cols []meta.IndexColumn) []wire.IndexColumn {
	out := make([]wire.IndexColumn, len(cols))
	for i, c := range cols {
		out[i] = wire.IndexColumn{
			ColumnName: c.ColumnName, ColumnUID: c.ColumnUID, IndexType: int32(c.IndexType),
			DataType: int32(c.DataType), Dimension: int32(c.Dimension), Parameters: c.Parameters,
		}
	}
	return out
}

func indexColumnsFromWire(cols []wire.IndexColumn) []meta.IndexColumn {
	out := make([]meta.IndexColumn, len(cols))
	for i, c := range cols {
		out[i] = meta.IndexColumn{
			ColumnName: c.ColumnName, ColumnUID: c.ColumnUID, IndexType: cmn.IndexType(c.IndexType),
			DataType: cmn.DataType(c.DataType), Dimension: int(c.Dimension), Parameters: c.Parameters,
		}
	}
	return out
}

func collectionFromWire(c *wire.Collection) *meta.Collection {
	return &meta.Collection{
		Name: c.Name, UID: c.UID, UUID: c.UUID, Revision: c.Revision, Current: c.Current,
		Status: cmn.CollectionStatus(c.Status), Readable: c.Readable, Writable: c.Writable, MaxDocsPerSegment: c.MaxDocsPerSegment,
		ForwardColumns: c.ForwardColumns, IndexColumns: indexColumnsFromWire(c.IndexColumns), Repository: repositoryFromWire(c.Repository),
	}
}

func createParamToWire(p *meta.CreateParam) *wire.CollectionConfig {
	return &wire.CollectionConfig{
		Name: p.Name, MaxDocsPerSegment: p.MaxDocsPerSegment, ForwardColumns: p.ForwardColumns,
		IndexColumns: indexColumnsToWire(p.IndexColumns), Repository: repositoryToWire(p.Repository),
	}
}

// updateParamToWire mirrors server/rpc.go's wireToUpdateParam convention in
// reverse: a nil MaxDocsPerSegment/IndexColumns means "leave unchanged",
// which on the wire is the zero value/nil slice.
func updateParamToWire(p *meta.UpdateParam) *wire.CollectionConfig {
	cfg := &wire.CollectionConfig{Name: p.Name, ForwardColumns: p.ForwardColumns, Repository: repositoryToWire(p.Repository)}
	if p.MaxDocsPerSegment != nil {
		cfg.MaxDocsPerSegment = *p.MaxDocsPerSegment
	}
	if p.IndexColumns != nil {
		cfg.IndexColumns = indexColumnsToWire(p.IndexColumns)
	}
	return cfg
}

func writeRequestToWire(req *agent.WriteRequest) *wire.WriteRequest {
	rows := make([]wire.WriteRow, len(req.Rows))
	for i, r := range req.Rows {
		values := make([]wire.IndexValue, len(r.IndexValues))
		for j, iv := range r.IndexValues {
			values[j] = wire.IndexValue{ColumnName: iv.ColumnName, RawBytes: iv.Value.RawBytes}
		}
		rows[i] = wire.WriteRow{
			PrimaryKey: r.PrimaryKey, OperationType: int32(r.OperationType), ForwardValues: r.ForwardValues,
			IndexValues: values, LSN: r.LSN, LSNContext: r.LSNContext, HasLSNContext: r.HasLSNContext,
		}
	}
	return &wire.WriteRequest{
		CollectionName: req.CollectionName, RequestIndexColumns: req.RequestIndexColumns, RequestForwardColumns: req.RequestForwardColumns,
		Rows: rows, MagicNumber: req.MagicNumber, IsProxy: req.IsProxy,
	}
}

func queryRequestToWire(req *query.Request) *wire.QueryRequest {
	vectors := make([][]byte, len(req.Vectors))
	for i, v := range req.Vectors {
		vectors[i] = v.RawBytes
	}
	return &wire.QueryRequest{
		CollectionName: req.CollectionName, ColumnName: req.ColumnName, Vectors: vectors, Dimension: int32(req.Dimension),
		DataType: int32(req.DataType), TopK: int32(req.TopK), Radius: req.Radius, LinearScan: req.LinearScan, Extras: req.Extras,
	}
}

func queryResponseFromWire(resp *wire.QueryResponse) *query.Response {
	batches := make([]query.BatchResult, len(resp.Batches))
	for i, b := range resp.Batches {
		hits := make([]query.Hit, len(b.Hits))
		for j, h := range b.Hits {
			hits[j] = query.Hit{PrimaryKey: h.PrimaryKey, Score: h.Score, Forward: h.Forward}
		}
		batches[i] = query.BatchResult{Hits: hits}
	}
	return &query.Response{Batches: batches, LatencyUS: resp.LatencyUS}
}

func (t *rpcTransport) createCollection(ctx context.Context, p *meta.CreateParam) (*meta.Collection, error) {
	var out wire.Collection
	if err := t.call(ctx, wire.OpCreateCollection, createParamToWire(p), &out); err != nil {
		return nil, err
	}
	return collectionFromWire(&out), nil
}

func (t *rpcTransport) updateCollection(ctx context.Context, p *meta.UpdateParam) (*meta.Collection, error) {
	var out wire.Collection
	if err := t.call(ctx, wire.OpUpdateCollection, updateParamToWire(p), &out); err != nil {
		return nil, err
	}
	return collectionFromWire(&out), nil
}

func (t *rpcTransport) dropCollection(ctx context.Context, name string) error {
	return t.call(ctx, wire.OpDropCollection, &wire.NameRequest{Name: name}, nil)
}

func (t *rpcTransport) describeCollection(ctx context.Context, name string) (*admin.Description, error) {
	var out wire.DescribeResponse
	if err := t.call(ctx, wire.OpDescribeCollection, &wire.NameRequest{Name: name}, &out); err != nil {
		return nil, err
	}
	return &admin.Description{Collection: collectionFromWire(&out.Collection), MagicNumber: out.MagicNumber}, nil
}

func (t *rpcTransport) listCollections(ctx context.Context, repositoryFilter string) ([]*meta.Collection, error) {
	var out wire.CollectionList
	if err := t.call(ctx, wire.OpListCollections, &wire.ListRequest{RepositoryFilter: repositoryFilter}, &out); err != nil {
		return nil, err
	}
	cols := make([]*meta.Collection, len(out.Collections))
	for i := range out.Collections {
		cols[i] = collectionFromWire(&out.Collections[i])
	}
	return cols, nil
}

func (t *rpcTransport) statsCollection(ctx context.Context, name string) (*admin.Stats, error) {
	var out wire.Stats
	if err := t.call(ctx, wire.OpStatsCollection, &wire.NameRequest{Name: name}, &out); err != nil {
		return nil, err
	}
	return &admin.Stats{TotalDocCount: out.TotalDocCount, TotalSegmentCount: out.TotalSegmentCount}, nil
}

func (t *rpcTransport) write(ctx context.Context, req *agent.WriteRequest) error {
	return t.call(ctx, wire.OpWrite, writeRequestToWire(req), nil)
}

func (t *rpcTransport) query(ctx context.Context, req *query.Request) (*query.Response, error) {
	var out wire.QueryResponse
	if err := t.call(ctx, wire.OpQuery, queryRequestToWire(req), &out); err != nil {
		return nil, err
	}
	return queryResponseFromWire(&out), nil
}

func (t *rpcTransport) getDocumentByKey(ctx context.Context, req *query.ByKeyRequest) (*query.Hit, error) {
	var out wire.Hit
	err := t.call(ctx, wire.OpGetDocumentByKey, &wire.GetByKeyRequest{CollectionName: req.CollectionName, PrimaryKey: req.PrimaryKey}, &out)
	if err != nil {
		if cmn.AsCode(err) == cmn.CodeInexistentKey {
			return nil, nil
		}
		return nil, err
	}
	return &query.Hit{PrimaryKey: out.PrimaryKey, Score: out.Score, Forward: out.Forward}, nil
}

func (t *rpcTransport) getVersion(ctx context.Context) (string, error) {
	var out wire.VersionResponse
	if err := t.call(ctx, wire.OpGetVersion, nil, &out); err != nil {
		return "", err
	}
	return out.Version, nil
}
