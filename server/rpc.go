package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"

	"github.com/tinylib/msgp/msgp"

	"github.com/vsearchio/vsearch/agent"
	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/internal/xlog"
	"github.com/vsearchio/vsearch/meta"
	"github.com/vsearchio/vsearch/query"
	"github.com/vsearchio/vsearch/server/wire"
)

// maxFrameBytes bounds a single request/response frame so a corrupt length
// prefix can't make the server allocate unbounded memory.
const maxFrameBytes = 64 << 20

// RPCServer is the binary-RPC adapter: `[4-byte big-endian length][msgpack
// body]` frames over a plain net.Listener, dispatching to the same Handler
// the HTTP adapter uses.
type RPCServer struct {
	ln      net.Listener
	handler *Handler
}

// NewRPCServer binds addr and returns a server ready to Serve.
func NewRPCServer(addr string, h *Handler) (*RPCServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, cmn.NewError(cmn.CodeStartServer, "rpc listen %s: %v", addr, err)
	}
	return &RPCServer{ln: ln, handler: h}, nil
}

// Serve accepts connections until the listener is closed.
func (s *RPCServer) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go s.serveConn(conn)
	}
}

// Shutdown closes the listener; in-flight connections are not interrupted.
func (s *RPCServer) Shutdown(_ context.Context) error {
	return s.ln.Close()
}

// Addr returns the listener's bound address, useful when addr was ":0".
func (s *RPCServer) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *RPCServer) serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		body, err := readFrame(conn)
		if err != nil {
			if err != io.EOF {
				xlog.Warnf("server/rpc: read frame: %v", err)
			}
			return
		}
		resp := s.dispatch(body)
		if err := writeFrame(conn, resp); err != nil {
			xlog.Warnf("server/rpc: write frame: %v", err)
			return
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

// dispatch decodes the op byte plus request body from frameBody, calls the
// matching Handler method, and encodes the response frame. Decode/encode
// errors are reported through the same {code, reason} envelope as
// application errors, never as a dropped connection.
func (s *RPCServer) dispatch(frameBody []byte) []byte {
	dc := msgp.NewReader(bytes.NewReader(frameBody))
	op, err := wire.ReadOp(dc)
	if err != nil {
		return encodeResponse(cmn.NewError(cmn.CodeDeserializeError, "read op: %v", err), nil)
	}

	ctx := context.Background()
	switch op {
	case wire.OpCreateCollection:
		req := &wire.CollectionConfig{}
		if err := req.DecodeMsg(dc); err != nil {
			return encodeResponse(cmn.NewError(cmn.CodeDeserializeError, "decode create_collection: %v", err), nil)
		}
		col, err := s.handler.CreateCollection(wireToCreateParam(req))
		if err != nil {
			return encodeResponse(err, nil)
		}
		out := collectionToWire(col)
		return encodeResponse(nil, &out)

	case wire.OpUpdateCollection:
		req := &wire.CollectionConfig{}
		if err := req.DecodeMsg(dc); err != nil {
			return encodeResponse(cmn.NewError(cmn.CodeDeserializeError, "decode update_collection: %v", err), nil)
		}
		param := wireToUpdateParam(req)
		col, err := s.handler.UpdateCollection(ctx, param)
		if err != nil {
			return encodeResponse(err, nil)
		}
		out := collectionToWire(col)
		return encodeResponse(nil, &out)

	case wire.OpDropCollection:
		req := &wire.NameRequest{}
		if err := req.DecodeMsg(dc); err != nil {
			return encodeResponse(cmn.NewError(cmn.CodeDeserializeError, "decode drop_collection: %v", err), nil)
		}
		if err := s.handler.DropCollection(req.Name); err != nil {
			return encodeResponse(err, nil)
		}
		return encodeResponse(nil, nil)

	case wire.OpDescribeCollection:
		req := &wire.NameRequest{}
		if err := req.DecodeMsg(dc); err != nil {
			return encodeResponse(cmn.NewError(cmn.CodeDeserializeError, "decode describe_collection: %v", err), nil)
		}
		desc, err := s.handler.DescribeCollection(req.Name)
		if err != nil {
			return encodeResponse(err, nil)
		}
		out := &wire.DescribeResponse{Collection: collectionToWire(desc.Collection), MagicNumber: desc.MagicNumber}
		return encodeResponse(nil, out)

	case wire.OpListCollections:
		req := &wire.ListRequest{}
		if err := req.DecodeMsg(dc); err != nil {
			return encodeResponse(cmn.NewError(cmn.CodeDeserializeError, "decode list_collections: %v", err), nil)
		}
		cols := s.handler.ListCollections(req.RepositoryFilter)
		out := &wire.CollectionList{Collections: make([]wire.Collection, len(cols))}
		for i, c := range cols {
			out.Collections[i] = collectionToWire(c)
		}
		return encodeResponse(nil, out)

	case wire.OpStatsCollection:
		req := &wire.NameRequest{}
		if err := req.DecodeMsg(dc); err != nil {
			return encodeResponse(cmn.NewError(cmn.CodeDeserializeError, "decode stats_collection: %v", err), nil)
		}
		stats, err := s.handler.StatsCollection(req.Name)
		if err != nil {
			return encodeResponse(err, nil)
		}
		out := &wire.Stats{TotalDocCount: stats.TotalDocCount, TotalSegmentCount: stats.TotalSegmentCount}
		return encodeResponse(nil, out)

	case wire.OpWrite:
		req := &wire.WriteRequest{}
		if err := req.DecodeMsg(dc); err != nil {
			return encodeResponse(cmn.NewError(cmn.CodeDeserializeError, "decode write: %v", err), nil)
		}
		if err := s.handler.Write(ctx, wireToWriteRequest(req)); err != nil {
			return encodeResponse(err, nil)
		}
		return encodeResponse(nil, nil)

	case wire.OpQuery:
		req := &wire.QueryRequest{}
		if err := req.DecodeMsg(dc); err != nil {
			return encodeResponse(cmn.NewError(cmn.CodeDeserializeError, "decode query: %v", err), nil)
		}
		resp, err := s.handler.Query(ctx, wireToQueryRequest(req))
		if err != nil {
			return encodeResponse(err, nil)
		}
		return encodeResponse(nil, queryResponseToWire(resp))

	case wire.OpGetDocumentByKey:
		req := &wire.GetByKeyRequest{}
		if err := req.DecodeMsg(dc); err != nil {
			return encodeResponse(cmn.NewError(cmn.CodeDeserializeError, "decode get_document_by_key: %v", err), nil)
		}
		hit, err := s.handler.GetDocumentByKey(ctx, &query.ByKeyRequest{CollectionName: req.CollectionName, PrimaryKey: req.PrimaryKey})
		if err != nil {
			return encodeResponse(err, nil)
		}
		if hit == nil {
			return encodeResponse(cmn.NewError(cmn.CodeInexistentKey, "primary key %d not found in %q", req.PrimaryKey, req.CollectionName), nil)
		}
		out := &wire.Hit{PrimaryKey: hit.PrimaryKey, Score: hit.Score, Forward: hit.Forward}
		return encodeResponse(nil, out)

	case wire.OpGetVersion:
		return encodeResponse(nil, &wire.VersionResponse{Version: s.handler.GetVersion()})

	default:
		return encodeResponse(cmn.NewError(cmn.CodeInvalidArgument, "unknown op %d", op), nil)
	}
}

func encodeResponse(err error, payload msgp.Encodable) []byte {
	env := &wire.Envelope{Code: int32(cmn.AsCode(err))}
	if err != nil {
		env.Reason = err.Error()
	}
	var buf bytes.Buffer
	en := msgp.NewWriter(&buf)
	if werr := wire.WriteResponse(en, env, payload); werr != nil {
		xlog.Errorf("server/rpc: encode response: %v", werr)
		// Fall back to a bare envelope carrying the encode failure so the
		// client still gets a well-formed frame.
		buf.Reset()
		en = msgp.NewWriter(&buf)
		_ = wire.WriteResponse(en, &wire.Envelope{Code: int32(cmn.CodeSerializeError), Reason: werr.Error()}, nil)
	}
	return buf.Bytes()
}

func wireToRepositoryParam(r *wire.Repository) *meta.Repository {
	if r == nil {
		return nil
	}
	return &meta.Repository{Name: r.Name, ConnectionURI: r.ConnectionURI, User: r.User, Password: r.Password, TableName: r.TableName}
}

func repositoryToWire(r *meta.Repository) *wire.Repository {
	if r == nil {
		return nil
	}
	return &wire.Repository{Name: r.Name, ConnectionURI: r.ConnectionURI, User: r.User, Password: r.Password, TableName: r.TableName}
}

func wireToIndexColumns(cols []wire.IndexColumn) []meta.IndexColumn {
	out := make([]meta.IndexColumn, len(cols))
	for i, c := range cols {
		out[i] = meta.IndexColumn{
			ColumnName: c.ColumnName, ColumnUID: c.ColumnUID, IndexType: cmn.IndexType(c.IndexType),
			DataType: cmn.DataType(c.DataType), Dimension: int(c.Dimension), Parameters: c.Parameters,
		}
	}
	return out
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

func wireToCreateParam(cfg *wire.CollectionConfig) *meta.CreateParam {
	return &meta.CreateParam{
		Name: cfg.Name, MaxDocsPerSegment: cfg.MaxDocsPerSegment, ForwardColumns: cfg.ForwardColumns,
		IndexColumns: wireToIndexColumns(cfg.IndexColumns), Repository: wireToRepositoryParam(cfg.Repository),
	}
}

// wireToUpdateParam treats a zero MaxDocsPerSegment and empty ForwardColumns/
// IndexColumns as "leave unchanged", matching the JSON adapter's optional-
// field convention for the same operation (the msgp decoder yields empty,
// never nil, slices).
func wireToUpdateParam(cfg *wire.CollectionConfig) *meta.UpdateParam {
	p := &meta.UpdateParam{Name: cfg.Name, Repository: wireToRepositoryParam(cfg.Repository)}
	if len(cfg.ForwardColumns) > 0 {
		p.ForwardColumns = cfg.ForwardColumns
	}
	if cfg.MaxDocsPerSegment != 0 {
		v := cfg.MaxDocsPerSegment
		p.MaxDocsPerSegment = &v
	}
	if len(cfg.IndexColumns) > 0 {
		p.IndexColumns = wireToIndexColumns(cfg.IndexColumns)
	}
	return p
}

func collectionToWire(c *meta.Collection) wire.Collection {
	return wire.Collection{
		Name: c.Name, UID: c.UID, UUID: c.UUID, Revision: c.Revision, Current: c.Current,
		Status: int32(c.Status), Readable: c.Readable, Writable: c.Writable, MaxDocsPerSegment: c.MaxDocsPerSegment,
		ForwardColumns: c.ForwardColumns, IndexColumns: indexColumnsToWire(c.IndexColumns), Repository: repositoryToWire(c.Repository),
	}
}

func wireToWriteRequest(req *wire.WriteRequest) *agent.WriteRequest {
	rows := make([]agent.RequestRow, len(req.Rows))
	for i, r := range req.Rows {
		values := make([]agent.IndexValue, len(r.IndexValues))
		for j, iv := range r.IndexValues {
			values[j] = agent.IndexValue{ColumnName: iv.ColumnName, Value: agent.RowValue{RawBytes: iv.RawBytes}}
		}
		rows[i] = agent.RequestRow{
			PrimaryKey: r.PrimaryKey, OperationType: cmn.OperationType(r.OperationType), ForwardValues: r.ForwardValues,
			IndexValues: values, LSN: r.LSN, LSNContext: r.LSNContext, HasLSNContext: r.HasLSNContext,
		}
	}
	return &agent.WriteRequest{
		CollectionName: req.CollectionName, RequestIndexColumns: req.RequestIndexColumns, RequestForwardColumns: req.RequestForwardColumns,
		Rows: rows, MagicNumber: req.MagicNumber, IsProxy: req.IsProxy,
	}
}

func wireToQueryRequest(req *wire.QueryRequest) *query.Request {
	vectors := make([]query.VectorInput, len(req.Vectors))
	for i, v := range req.Vectors {
		vectors[i] = query.VectorInput{RawBytes: v}
	}
	return &query.Request{
		CollectionName: req.CollectionName, ColumnName: req.ColumnName, Vectors: vectors, Dimension: int(req.Dimension),
		DataType: cmn.DataType(req.DataType), TopK: int(req.TopK), Radius: req.Radius, LinearScan: req.LinearScan, Extras: req.Extras,
	}
}

func queryResponseToWire(resp *query.Response) *wire.QueryResponse {
	batches := make([]wire.BatchResult, len(resp.Batches))
	for i, b := range resp.Batches {
		hits := make([]wire.Hit, len(b.Hits))
		for j, h := range b.Hits {
			hits[j] = wire.Hit{PrimaryKey: h.PrimaryKey, Score: h.Score, Forward: h.Forward}
		}
		batches[i] = wire.BatchResult{Hits: hits}
	}
	return &wire.QueryResponse{Batches: batches, LatencyUS: resp.LatencyUS}
}
