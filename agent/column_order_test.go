package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vsearchio/vsearch/meta"
)

func TestColumnOrderMapRebuildGetDelete(t *testing.T) {
	m := NewColumnOrderMap()
	require.Nil(t, m.Get("c"))

	col := testCollection()
	co := m.Rebuild(col)
	require.Equal(t, 0, co.Forward["f1"])
	require.Equal(t, 1, co.Forward["f2"])
	require.Equal(t, 0, co.Index["v"])

	require.Same(t, co, m.Get("c"))

	m.Delete("c")
	require.Nil(t, m.Get("c"))
}

func TestNewColumnOrderReflectsSchemaOrder(t *testing.T) {
	col := &meta.Collection{
		Name:           "x",
		ForwardColumns: []string{"b", "a"},
		IndexColumns: []meta.IndexColumn{
			{ColumnName: "v2"},
			{ColumnName: "v1"},
		},
	}
	co := newColumnOrder(col)
	require.Equal(t, 0, co.Forward["b"])
	require.Equal(t, 1, co.Forward["a"])
	require.Equal(t, 0, co.Index["v2"])
	require.Equal(t, 1, co.Index["v1"])
}
