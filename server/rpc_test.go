package server

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tinylib/msgp/msgp"

	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/server/wire"
)

func floatsToBytesLE(vals []float32) []byte {
	out := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		bits := math.Float32bits(v)
		out = append(out, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	}
	return out
}

func newTestRPCServer(t *testing.T) *RPCServer {
	t.Helper()
	h := newTestHandler(t)
	return &RPCServer{handler: h}
}

// callRPC encodes op+req into a frame body, dispatches it directly (without
// a real listener), and decodes the envelope plus payload.
func callRPC(t *testing.T, s *RPCServer, op wire.OpCode, req msgp.Encodable, payload msgp.Decodable) *wire.Envelope {
	t.Helper()
	var buf bytes.Buffer
	en := msgp.NewWriter(&buf)
	require.NoError(t, wire.WriteOp(en, op, req))

	respBody := s.dispatch(buf.Bytes())
	dc := msgp.NewReader(bytes.NewReader(respBody))
	env, err := wire.ReadEnvelope(dc)
	require.NoError(t, err)
	if payload != nil && env.Code == int32(cmn.Success) {
		require.NoError(t, payload.DecodeMsg(dc))
	}
	return env
}

func TestRPCCreateDescribeUpdateDropCollection(t *testing.T) {
	s := newTestRPCServer(t)

	createReq := &wire.CollectionConfig{
		Name:           "c",
		ForwardColumns: []string{"f1", "f2"},
		IndexColumns: []wire.IndexColumn{
			{ColumnName: "v", DataType: int32(cmn.DataTypeVectorFP32), Dimension: 4},
		},
	}
	var created wire.Collection
	env := callRPC(t, s, wire.OpCreateCollection, createReq, &created)
	require.Equal(t, int32(cmn.Success), env.Code)
	require.Equal(t, "c", created.Name)

	var desc wire.DescribeResponse
	env = callRPC(t, s, wire.OpDescribeCollection, &wire.NameRequest{Name: "c"}, &desc)
	require.Equal(t, int32(cmn.Success), env.Code)
	require.Equal(t, "c", desc.Collection.Name)

	updateReq := &wire.CollectionConfig{Name: "c", ForwardColumns: []string{"f1", "f2", "f3"}}
	var updated wire.Collection
	env = callRPC(t, s, wire.OpUpdateCollection, updateReq, &updated)
	require.Equal(t, int32(cmn.Success), env.Code)
	require.Equal(t, []string{"f1", "f2", "f3"}, updated.ForwardColumns)

	var list wire.CollectionList
	env = callRPC(t, s, wire.OpListCollections, &wire.ListRequest{}, &list)
	require.Equal(t, int32(cmn.Success), env.Code)
	require.Len(t, list.Collections, 1)

	env = callRPC(t, s, wire.OpDropCollection, &wire.NameRequest{Name: "c"}, nil)
	require.Equal(t, int32(cmn.Success), env.Code)

	env = callRPC(t, s, wire.OpDescribeCollection, &wire.NameRequest{Name: "c"}, nil)
	require.NotEqual(t, int32(cmn.Success), env.Code)
}

func TestRPCWriteQueryGetDocumentByKey(t *testing.T) {
	s := newTestRPCServer(t)

	createReq := &wire.CollectionConfig{
		Name:           "c",
		ForwardColumns: []string{"f1", "f2"},
		IndexColumns: []wire.IndexColumn{
			{ColumnName: "v", DataType: int32(cmn.DataTypeVectorFP32), Dimension: 4},
		},
	}
	env := callRPC(t, s, wire.OpCreateCollection, createReq, nil)
	require.Equal(t, int32(cmn.Success), env.Code)

	raw := floatsToBytesLE([]float32{0.1, 0.2, 0.3, 0.4})
	writeReq := &wire.WriteRequest{
		CollectionName:        "c",
		RequestIndexColumns:   []string{"v"},
		RequestForwardColumns: []string{"f1", "f2"},
		Rows: []wire.WriteRow{
			{
				PrimaryKey: 1, OperationType: int32(cmn.OpInsert), ForwardValues: []string{"hello", "world"},
				IndexValues: []wire.IndexValue{{ColumnName: "v", RawBytes: raw}},
			},
		},
	}
	env = callRPC(t, s, wire.OpWrite, writeReq, nil)
	require.Equal(t, int32(cmn.Success), env.Code)

	queryReq := &wire.QueryRequest{
		CollectionName: "c", ColumnName: "v", Dimension: 4, DataType: int32(cmn.DataTypeVectorFP32), TopK: 1,
		Vectors: [][]byte{raw},
	}
	var queryResp wire.QueryResponse
	env = callRPC(t, s, wire.OpQuery, queryReq, &queryResp)
	require.Equal(t, int32(cmn.Success), env.Code)
	require.Len(t, queryResp.Batches, 1)
	require.Equal(t, uint64(1), queryResp.Batches[0].Hits[0].PrimaryKey)

	var hit wire.Hit
	env = callRPC(t, s, wire.OpGetDocumentByKey, &wire.GetByKeyRequest{CollectionName: "c", PrimaryKey: 1}, &hit)
	require.Equal(t, int32(cmn.Success), env.Code)
	require.Equal(t, []string{"hello", "world"}, hit.Forward)

	env = callRPC(t, s, wire.OpGetDocumentByKey, &wire.GetByKeyRequest{CollectionName: "c", PrimaryKey: 999}, nil)
	require.Equal(t, int32(cmn.CodeInexistentKey), env.Code)
}

func TestRPCGetVersion(t *testing.T) {
	s := newTestRPCServer(t)
	var resp wire.VersionResponse
	env := callRPC(t, s, wire.OpGetVersion, nil, &resp)
	require.Equal(t, int32(cmn.Success), env.Code)
	require.Equal(t, cmn.ServiceVersion, resp.Version)
}

func TestRPCUnknownOp(t *testing.T) {
	s := newTestRPCServer(t)
	env := callRPC(t, s, wire.OpCode(255), nil, nil)
	require.Equal(t, int32(cmn.CodeInvalidArgument), env.Code)
}
