package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tinylib/msgp/msgp"
)

func TestCollectionConfigRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	en := msgp.NewWriter(&buf)

	cfg := &CollectionConfig{
		Name:              "c",
		MaxDocsPerSegment: 1000,
		ForwardColumns:    []string{"f1", "f2"},
		IndexColumns: []IndexColumn{
			{ColumnName: "v", ColumnUID: "uid-1", DataType: 1, Dimension: 8, Parameters: map[string]string{"k": "v"}},
		},
		Repository: &Repository{Name: "repo", ConnectionURI: "uri"},
	}
	require.NoError(t, cfg.EncodeMsg(en))
	require.NoError(t, en.Flush())

	dc := msgp.NewReader(&buf)
	got := &CollectionConfig{}
	require.NoError(t, got.DecodeMsg(dc))

	require.Equal(t, cfg.Name, got.Name)
	require.Equal(t, cfg.ForwardColumns, got.ForwardColumns)
	require.Len(t, got.IndexColumns, 1)
	require.Equal(t, "v", got.IndexColumns[0].ColumnName)
	require.Equal(t, "repo", got.Repository.Name)
}

func TestWriteRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	en := msgp.NewWriter(&buf)

	req := &WriteRequest{
		CollectionName:        "c",
		RequestIndexColumns:   []string{"v"},
		RequestForwardColumns: []string{"f1"},
		Rows: []WriteRow{
			{
				PrimaryKey: 7, OperationType: 0, ForwardValues: []string{"hello"},
				IndexValues: []IndexValue{{ColumnName: "v", RawBytes: []byte{1, 2, 3, 4}}},
				HasLSNContext: true, LSNContext: "ctx",
			},
		},
		MagicNumber: 42,
		IsProxy:     true,
	}
	require.NoError(t, req.EncodeMsg(en))
	require.NoError(t, en.Flush())

	dc := msgp.NewReader(&buf)
	got := &WriteRequest{}
	require.NoError(t, got.DecodeMsg(dc))

	require.Equal(t, req.CollectionName, got.CollectionName)
	require.Len(t, got.Rows, 1)
	require.Equal(t, uint64(7), got.Rows[0].PrimaryKey)
	require.True(t, got.Rows[0].HasLSNContext)
	require.Equal(t, []byte{1, 2, 3, 4}, got.Rows[0].IndexValues[0].RawBytes)
}

func TestQueryRequestAndResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	en := msgp.NewWriter(&buf)

	req := &QueryRequest{
		CollectionName: "c", ColumnName: "v",
		Vectors: [][]byte{{1, 2, 3, 4}}, Dimension: 4, DataType: 1, TopK: 5, Radius: 0.5,
	}
	require.NoError(t, req.EncodeMsg(en))
	require.NoError(t, en.Flush())

	dc := msgp.NewReader(&buf)
	got := &QueryRequest{}
	require.NoError(t, got.DecodeMsg(dc))
	require.Equal(t, req.TopK, got.TopK)
	require.Equal(t, req.Vectors, got.Vectors)

	var buf2 bytes.Buffer
	en2 := msgp.NewWriter(&buf2)
	resp := &QueryResponse{
		Batches:   []BatchResult{{Hits: []Hit{{PrimaryKey: 1, Score: 0.1, Forward: []string{"a"}}}}},
		LatencyUS: 123,
	}
	require.NoError(t, resp.EncodeMsg(en2))
	require.NoError(t, en2.Flush())

	dc2 := msgp.NewReader(&buf2)
	gotResp := &QueryResponse{}
	require.NoError(t, gotResp.DecodeMsg(dc2))
	require.Equal(t, int64(123), gotResp.LatencyUS)
	require.Equal(t, uint64(1), gotResp.Batches[0].Hits[0].PrimaryKey)
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	en := msgp.NewWriter(&buf)

	req := &QueryRequest{CollectionName: "c", ColumnName: "v", TopK: 1}
	require.NoError(t, WriteOp(en, OpQuery, req))

	dc := msgp.NewReader(&buf)
	op, err := ReadOp(dc)
	require.NoError(t, err)
	require.Equal(t, OpQuery, op)

	got := &QueryRequest{}
	require.NoError(t, got.DecodeMsg(dc))
	require.Equal(t, "c", got.CollectionName)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	en := msgp.NewWriter(&buf)
	require.NoError(t, WriteResponse(en, &Envelope{Code: 4000, Reason: "boom"}, nil))

	dc := msgp.NewReader(&buf)
	env, err := ReadEnvelope(dc)
	require.NoError(t, err)
	require.Equal(t, int32(4000), env.Code)
	require.Equal(t, "boom", env.Reason)
}
