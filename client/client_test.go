package client

import (
	"context"
	"math"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vsearchio/vsearch/admin"
	"github.com/vsearchio/vsearch/agent"
	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/index/memindex"
	"github.com/vsearchio/vsearch/meta"
	"github.com/vsearchio/vsearch/metrics"
	"github.com/vsearchio/vsearch/query"
	"github.com/vsearchio/vsearch/server"
)

func floatsToBytesLE(vals []float32) []byte {
	out := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		bits := math.Float32bits(v)
		out = append(out, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	}
	return out
}

func newTestServerHandler(t *testing.T) *server.Handler {
	t.Helper()
	uri := "sqlite://" + filepath.Join(t.TempDir(), "meta.db")
	ms, err := meta.NewService(uri)
	require.NoError(t, err)
	t.Cleanup(func() { ms.Close() })

	idx := memindex.New()
	ia := agent.NewIndexAgent(ms, idx, 0, 2)
	qa := query.NewAgent(ms, idx, 2)
	aa := admin.NewAgent(ms, ia, 2*time.Second)
	return server.NewHandler(aa, ia, qa, metrics.NewRegistry())
}

func newTestHTTPClient(t *testing.T) *Client {
	t.Helper()
	h := newTestServerHandler(t)
	httpSrv := httptest.NewServer(server.NewHTTPServer(":0", h, nil).Handler())
	t.Cleanup(httpSrv.Close)

	c, err := New(Config{Addr: httpSrv.Listener.Addr().String(), Transport: TransportHTTP})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func newTestRPCClient(t *testing.T) *Client {
	t.Helper()
	h := newTestServerHandler(t)
	rpcSrv, err := server.NewRPCServer("127.0.0.1:0", h)
	require.NoError(t, err)
	go rpcSrv.Serve()
	t.Cleanup(func() { rpcSrv.Shutdown(context.Background()) })

	c, err := New(Config{Addr: rpcSrv.Addr().String(), Transport: TransportRPC})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func basicCreateParam(name string) *meta.CreateParam {
	return &meta.CreateParam{
		Name: name, ForwardColumns: []string{"f1", "f2"},
		IndexColumns: []meta.IndexColumn{{ColumnName: "v", DataType: cmn.DataTypeVectorFP32, Dimension: 4}},
	}
}

func runLifecycle(t *testing.T, c *Client) {
	t.Helper()
	ctx := context.Background()

	require.Equal(t, cmn.ServiceVersion, c.ServerVersion())

	col, err := c.CreateCollection(ctx, basicCreateParam("c"))
	require.NoError(t, err)
	require.Equal(t, cmn.StatusServing, col.Status)

	raw := floatsToBytesLE([]float32{0.1, 0.2, 0.3, 0.4})
	writeReq := &agent.WriteRequest{
		CollectionName:        "c",
		RequestIndexColumns:   []string{"v"},
		RequestForwardColumns: []string{"f1", "f2"},
		Rows: []agent.RequestRow{
			{
				PrimaryKey: 1, OperationType: cmn.OpInsert, ForwardValues: []string{"hello", "world"},
				IndexValues: []agent.IndexValue{{ColumnName: "v", Value: agent.RowValue{RawBytes: raw}}},
			},
		},
	}
	require.NoError(t, c.Write(ctx, writeReq))

	resp, err := c.Query(ctx, &query.Request{
		CollectionName: "c", ColumnName: "v", TopK: 1, Dimension: 4, DataType: cmn.DataTypeVectorFP32,
		Vectors: []query.VectorInput{{RawBytes: raw}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Batches, 1)
	require.Equal(t, uint64(1), resp.Batches[0].Hits[0].PrimaryKey)

	hit, err := c.GetDocumentByKey(ctx, &query.ByKeyRequest{CollectionName: "c", PrimaryKey: 1})
	require.NoError(t, err)
	require.NotNil(t, hit)
	require.Equal(t, []string{"hello", "world"}, hit.Forward)

	missing, err := c.GetDocumentByKey(ctx, &query.ByKeyRequest{CollectionName: "c", PrimaryKey: 999})
	require.NoError(t, err)
	require.Nil(t, missing)

	updated, err := c.UpdateCollection(ctx, &meta.UpdateParam{Name: "c", ForwardColumns: []string{"f1", "f2", "f3"}})
	require.NoError(t, err)
	require.Equal(t, []string{"f1", "f2", "f3"}, updated.ForwardColumns)

	cols, err := c.ListCollections(ctx, "")
	require.NoError(t, err)
	require.Len(t, cols, 1)

	stats, err := c.StatsCollection(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.TotalDocCount)

	desc, err := c.DescribeCollection(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, "c", desc.Collection.Name)

	require.NoError(t, c.DropCollection(ctx, "c"))
}

func TestClientLifecycleOverHTTP(t *testing.T) {
	c := newTestHTTPClient(t)
	runLifecycle(t, c)
}

func TestClientLifecycleOverRPC(t *testing.T) {
	c := newTestRPCClient(t)
	runLifecycle(t, c)
}

func TestClientSurfacesCollectionNotFound(t *testing.T) {
	c := newTestHTTPClient(t)
	_, err := c.DescribeCollection(context.Background(), "nope")
	require.Error(t, err)
}
