package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vsearchio/vsearch/agent"
	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/query"
)

func TestHandlerCreateWriteQueryLifecycle(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	col, err := h.CreateCollection(basicCreateParam("c"))
	require.NoError(t, err)
	require.Equal(t, cmn.StatusServing, col.Status)

	writeReq := &agent.WriteRequest{
		CollectionName:        "c",
		RequestIndexColumns:   []string{"v"},
		RequestForwardColumns: []string{"f1", "f2"},
		Rows: []agent.RequestRow{
			{
				PrimaryKey:    1,
				OperationType: cmn.OpInsert,
				ForwardValues: []string{"hello", "world"},
				IndexValues: []agent.IndexValue{
					{ColumnName: "v", Value: agent.RowValue{JSONElements: []interface{}{0.1, 0.2, 0.3, 0.4}}},
				},
			},
		},
	}
	require.NoError(t, h.Write(ctx, writeReq))

	resp, err := h.Query(ctx, &query.Request{
		CollectionName: "c", ColumnName: "v", TopK: 1, Dimension: 4, DataType: cmn.DataTypeVectorFP32,
		Vectors: []query.VectorInput{{JSONElements: []interface{}{0.1, 0.2, 0.3, 0.4}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Batches, 1)
	require.Equal(t, uint64(1), resp.Batches[0].Hits[0].PrimaryKey)

	hit, err := h.GetDocumentByKey(ctx, &query.ByKeyRequest{CollectionName: "c", PrimaryKey: 1})
	require.NoError(t, err)
	require.NotNil(t, hit)
	require.Equal(t, []string{"hello", "world"}, hit.Forward)

	require.NoError(t, h.DropCollection("c"))
	require.Empty(t, h.ListCollections(""))
}

func TestHandlerGetVersion(t *testing.T) {
	h := newTestHandler(t)
	require.Equal(t, cmn.ServiceVersion, h.GetVersion())
}
