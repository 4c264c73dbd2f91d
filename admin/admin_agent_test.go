package admin

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vsearchio/vsearch/agent"
	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/index/memindex"
	"github.com/vsearchio/vsearch/meta"
)

func newTestAdmin(t *testing.T) *Agent {
	t.Helper()
	uri := "sqlite://" + filepath.Join(t.TempDir(), "meta.db")
	ms, err := meta.NewService(uri)
	require.NoError(t, err)
	t.Cleanup(func() { ms.Close() })

	idx := memindex.New()
	ia := agent.NewIndexAgent(ms, idx, 0, 2)
	return NewAgent(ms, ia, 2*time.Second)
}

func basicCreateParam(name string) *meta.CreateParam {
	return &meta.CreateParam{
		Name:           name,
		ForwardColumns: []string{"f1", "f2"},
		IndexColumns: []meta.IndexColumn{
			{ColumnName: "v", DataType: cmn.DataTypeVectorFP32, Dimension: 8},
		},
	}
}

func TestCreateCollectionEndToEndIsServing(t *testing.T) {
	a := newTestAdmin(t)

	col, err := a.CreateCollection(basicCreateParam("c"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), col.Revision)
	require.Equal(t, cmn.StatusServing, col.Status)
	require.NotEmpty(t, col.UID)
	require.Len(t, col.ForwardColumns, 2)
	require.Len(t, col.IndexColumns, 1)
	require.Equal(t, 8, col.IndexColumns[0].Dimension)

	require.NoError(t, a.DropCollection("c"))
	require.Empty(t, a.ListCollections(""))
}

func TestCreateCollectionDuplicateNameFails(t *testing.T) {
	a := newTestAdmin(t)
	_, err := a.CreateCollection(basicCreateParam("c"))
	require.NoError(t, err)

	_, err = a.CreateCollection(basicCreateParam("c"))
	require.Error(t, err)
	require.Equal(t, cmn.CodeDuplicateCollection, cmn.AsCode(err))
}

func TestDescribeCollectionExposesMagicNumber(t *testing.T) {
	a := newTestAdmin(t)
	_, err := a.CreateCollection(basicCreateParam("c"))
	require.NoError(t, err)

	desc, err := a.DescribeCollection("c")
	require.NoError(t, err)
	require.Equal(t, a.index.MagicNumber(), desc.MagicNumber)
	require.Equal(t, "c", desc.Collection.Name)
}

func TestUpdateCollectionRejectsImmutableFieldChange(t *testing.T) {
	a := newTestAdmin(t)
	_, err := a.CreateCollection(basicCreateParam("c"))
	require.NoError(t, err)

	_, err = a.UpdateCollection(context.Background(), &meta.UpdateParam{
		Name: "c",
		IndexColumns: []meta.IndexColumn{
			{ColumnName: "v", DataType: cmn.DataTypeVectorInt8, Dimension: 8},
		},
	})
	require.Error(t, err)
	require.Equal(t, cmn.CodeUpdateDataTypeField, cmn.AsCode(err))
}

func TestUpdateCollectionMutableFieldSucceedsAndEnables(t *testing.T) {
	a := newTestAdmin(t)
	_, err := a.CreateCollection(basicCreateParam("c"))
	require.NoError(t, err)

	newMax := uint64(1000)
	col, err := a.UpdateCollection(context.Background(), &meta.UpdateParam{
		Name:              "c",
		MaxDocsPerSegment: &newMax,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), col.Revision)
	require.True(t, col.Current)
	require.Equal(t, cmn.StatusServing, col.Status)
	require.Equal(t, newMax, col.MaxDocsPerSegment)
}

func TestStatsCollectionDelegatesToIndexLayer(t *testing.T) {
	a := newTestAdmin(t)
	_, err := a.CreateCollection(basicCreateParam("c"))
	require.NoError(t, err)

	stats, err := a.StatsCollection("c")
	require.NoError(t, err)
	require.Equal(t, uint64(0), stats.TotalDocCount)
}

func TestDropCollectionIsIdempotent(t *testing.T) {
	a := newTestAdmin(t)
	_, err := a.CreateCollection(basicCreateParam("c"))
	require.NoError(t, err)

	require.NoError(t, a.DropCollection("c"))
	require.NoError(t, a.DropCollection("c"))
}
