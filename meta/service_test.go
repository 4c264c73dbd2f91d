package meta_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/meta"
)

func newTestService(t *testing.T) *meta.Service {
	dir := t.TempDir()
	uri := "sqlite://" + filepath.Join(dir, "meta.sqlite")
	s, err := meta.NewService(uri)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func basicCreateParam(name string) *meta.CreateParam {
	return &meta.CreateParam{
		Name:           name,
		ForwardColumns: []string{"f1", "f2"},
		IndexColumns: []meta.IndexColumn{
			{ColumnName: "v", IndexType: cmn.IndexTypeProximaGraph, DataType: cmn.DataTypeVectorFP32, Dimension: 8},
		},
	}
}

func TestCreateDescribeDrop(t *testing.T) {
	s := newTestService(t)

	col, err := s.CreateCollection(basicCreateParam("c"))
	require.NoError(t, err)
	require.NotEmpty(t, col.UID)
	require.NotEmpty(t, col.UUID)
	require.Equal(t, uint64(0), col.Revision)

	require.NoError(t, s.EnableCollection("c", 0))

	desc, err := s.DescribeCollection("c")
	require.NoError(t, err)
	require.Equal(t, cmn.StatusServing, desc.Status)
	require.True(t, desc.Current)
	require.True(t, desc.Readable)
	require.True(t, desc.Writable)
	require.Len(t, desc.ForwardColumns, 2)
	require.Len(t, desc.IndexColumns, 1)
	require.Equal(t, 8, desc.IndexColumns[0].Dimension)

	require.NoError(t, s.DropCollection("c"))
	require.Empty(t, s.ListCollections(""))

	// idempotent
	require.NoError(t, s.DropCollection("c"))
}

func TestCreateCollectionRejectsDuplicateName(t *testing.T) {
	s := newTestService(t)
	_, err := s.CreateCollection(basicCreateParam("dup"))
	require.NoError(t, err)

	_, err = s.CreateCollection(basicCreateParam("dup"))
	require.Error(t, err)
	require.Equal(t, cmn.CodeDuplicateCollection, cmn.AsCode(err))
}

func TestUpdateCollectionRejectsImmutableField(t *testing.T) {
	s := newTestService(t)
	_, err := s.CreateCollection(basicCreateParam("c"))
	require.NoError(t, err)
	require.NoError(t, s.EnableCollection("c", 0))

	before, err := s.DescribeCollection("c")
	require.NoError(t, err)

	_, err = s.UpdateCollection(&meta.UpdateParam{
		Name: "c",
		IndexColumns: []meta.IndexColumn{
			{ColumnName: "v", IndexType: cmn.IndexTypeProximaGraph, DataType: cmn.DataTypeVectorInt8, Dimension: 8},
		},
	})
	require.Error(t, err)
	require.Equal(t, cmn.CodeUpdateDataTypeField, cmn.AsCode(err))

	after, err := s.DescribeCollection("c")
	require.NoError(t, err)
	require.Equal(t, before.Revision, after.Revision)
	require.Equal(t, cmn.DataTypeVectorFP32, after.IndexColumns[0].DataType)
}

func TestUpdateCollectionRenameBumpsColumnUID(t *testing.T) {
	s := newTestService(t)
	created, err := s.CreateCollection(basicCreateParam("c"))
	require.NoError(t, err)
	require.NoError(t, s.EnableCollection("c", 0))
	oldColUID := created.IndexColumns[0].ColumnUID

	updated, err := s.UpdateCollection(&meta.UpdateParam{
		Name: "c",
		IndexColumns: []meta.IndexColumn{
			{ColumnName: "v2", IndexType: cmn.IndexTypeProximaGraph, DataType: cmn.DataTypeVectorFP32, Dimension: 8},
		},
	})
	require.NoError(t, err)
	require.NotEqual(t, oldColUID, updated.IndexColumns[0].ColumnUID)
	require.Equal(t, "v2", updated.IndexColumns[0].ColumnName)
}

func TestEnableCollectionDemotesPrevious(t *testing.T) {
	s := newTestService(t)
	_, err := s.CreateCollection(basicCreateParam("c"))
	require.NoError(t, err)
	require.NoError(t, s.EnableCollection("c", 0))

	_, err = s.UpdateCollection(&meta.UpdateParam{Name: "c"})
	require.NoError(t, err)
	require.NoError(t, s.EnableCollection("c", 1))

	desc, err := s.DescribeCollection("c")
	require.NoError(t, err)
	require.Equal(t, uint64(1), desc.Revision)
	require.True(t, desc.Current)
}

func TestAtMostOneCurrentPerUID(t *testing.T) {
	s := newTestService(t)
	_, err := s.CreateCollection(basicCreateParam("c"))
	require.NoError(t, err)
	require.NoError(t, s.EnableCollection("c", 0))
	_, err = s.UpdateCollection(&meta.UpdateParam{Name: "c"})
	require.NoError(t, err)
	require.NoError(t, s.EnableCollection("c", 1))

	current := 0
	for _, col := range s.ListCollections("") {
		if col.Current {
			current++
		}
	}
	require.Equal(t, 1, current)
}

func TestServiceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	uri := "sqlite://" + filepath.Join(dir, "meta.sqlite")

	s1, err := meta.NewService(uri)
	require.NoError(t, err)
	_, err = s1.CreateCollection(basicCreateParam("c"))
	require.NoError(t, err)
	require.NoError(t, s1.EnableCollection("c", 0))
	require.NoError(t, s1.Close())

	s2, err := meta.NewService(uri)
	require.NoError(t, err)
	defer s2.Close()

	desc, err := s2.DescribeCollection("c")
	require.NoError(t, err)
	require.Equal(t, cmn.StatusServing, desc.Status)
}
