package query

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/index"
	"github.com/vsearchio/vsearch/index/memindex"
	"github.com/vsearchio/vsearch/meta"
)

func newTestAgent(t *testing.T, threadCount int) (*Agent, *meta.Service, index.Service) {
	t.Helper()
	uri := "sqlite://" + filepath.Join(t.TempDir(), "meta.db")
	ms, err := meta.NewService(uri)
	require.NoError(t, err)
	t.Cleanup(func() { ms.Close() })

	idx := memindex.New()
	a := NewAgent(ms, idx, threadCount)
	return a, ms, idx
}

func seedCollection(t *testing.T, ms *meta.Service, idx index.Service, name string) {
	t.Helper()
	_, err := ms.CreateCollection(&meta.CreateParam{
		Name:           name,
		ForwardColumns: []string{"f1"},
		IndexColumns: []meta.IndexColumn{
			{ColumnName: "v", DataType: cmn.DataTypeVectorFP32, Dimension: 2},
		},
	})
	require.NoError(t, err)
	require.NoError(t, ms.EnableCollection(name, 0))

	require.NoError(t, idx.CreateCollection(name, index.CollectionMeta{
		Name:           name,
		ForwardColumns: []string{"f1"},
		IndexColumns:   []index.IndexColumnMeta{{ColumnName: "v", DataType: cmn.DataTypeVectorFP32, Dimension: 2}},
	}))

	ds := index.Dataset{Rows: []index.DatasetRow{
		{PrimaryKey: 1, OperationType: cmn.OpInsert, ForwardBlob: encodeForward(t, "hello"), Columns: []index.Column{
			{ColumnName: "v", Bytes: floatsToBytesLE([]float32{0, 0})},
		}},
	}}
	require.NoError(t, idx.WriteRecords(name, ds))
}

func floatsToBytesLE(vals []float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		bits := math.Float32bits(v)
		out[i*4] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}

func encodeForward(t *testing.T, values ...string) []byte {
	t.Helper()
	var out []byte
	for _, v := range values {
		out = appendUvarintTest(out, uint64(len(v)))
		out = append(out, v...)
	}
	return out
}

func appendUvarintTest(buf []byte, v uint64) []byte {
	var tmp [10]byte
	n := 0
	for v >= 0x80 {
		tmp[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	tmp[n] = byte(v)
	n++
	return append(buf, tmp[:n]...)
}

func TestSearchReturnsHitsWithForwardAttributes(t *testing.T) {
	a, ms, idx := newTestAgent(t, 2)
	seedCollection(t, ms, idx, "c")

	resp, err := a.Search(context.Background(), &Request{
		CollectionName: "c",
		ColumnName:     "v",
		Vectors:        []VectorInput{{JSONElements: []interface{}{0.0, 0.0}}},
		Dimension:      2,
		DataType:       cmn.DataTypeVectorFP32,
		TopK:           1,
	})
	require.NoError(t, err)
	require.Len(t, resp.Batches, 1)
	require.Len(t, resp.Batches[0].Hits, 1)
	require.Equal(t, uint64(1), resp.Batches[0].Hits[0].PrimaryKey)
	require.Equal(t, []string{"hello"}, resp.Batches[0].Hits[0].Forward)
}

func TestSearchRejectsUnreadableCollection(t *testing.T) {
	a, ms, idx := newTestAgent(t, 2)
	seedCollection(t, ms, idx, "c")
	require.NoError(t, ms.SuspendRead("c"))

	_, err := a.Search(context.Background(), &Request{
		CollectionName: "c", ColumnName: "v",
		Vectors: []VectorInput{{JSONElements: []interface{}{0.0, 0.0}}},
		Dimension: 2, DataType: cmn.DataTypeVectorFP32, TopK: 1,
	})
	require.Error(t, err)
	require.Equal(t, cmn.CodeUnreadableCollection, cmn.AsCode(err))
}

func TestSearchRejectsZeroTopK(t *testing.T) {
	a, ms, idx := newTestAgent(t, 2)
	seedCollection(t, ms, idx, "c")

	_, err := a.Search(context.Background(), &Request{
		CollectionName: "c", ColumnName: "v",
		Vectors: []VectorInput{{JSONElements: []interface{}{0.0, 0.0}}},
		Dimension: 2, DataType: cmn.DataTypeVectorFP32, TopK: 0,
	})
	require.Error(t, err)
	require.Equal(t, cmn.CodeInvalidQuery, cmn.AsCode(err))
}

func TestSearchByKeyFindsAndMisses(t *testing.T) {
	a, ms, idx := newTestAgent(t, 2)
	seedCollection(t, ms, idx, "c")

	hit, err := a.SearchByKey(context.Background(), &ByKeyRequest{CollectionName: "c", PrimaryKey: 1})
	require.NoError(t, err)
	require.NotNil(t, hit)
	require.Equal(t, []string{"hello"}, hit.Forward)

	hit, err = a.SearchByKey(context.Background(), &ByKeyRequest{CollectionName: "c", PrimaryKey: 999})
	require.NoError(t, err)
	require.Nil(t, hit)
}
