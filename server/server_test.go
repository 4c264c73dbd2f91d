package server

import (
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
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	uri := "sqlite://" + filepath.Join(t.TempDir(), "meta.db")
	ms, err := meta.NewService(uri)
	require.NoError(t, err)
	t.Cleanup(func() { ms.Close() })

	idx := memindex.New()
	ia := agent.NewIndexAgent(ms, idx, 0, 2)
	qa := query.NewAgent(ms, idx, 2)
	aa := admin.NewAgent(ms, ia, 2*time.Second)
	return NewHandler(aa, ia, qa, metrics.NewRegistry())
}

func basicCreateParam(name string) *meta.CreateParam {
	return &meta.CreateParam{
		Name:           name,
		ForwardColumns: []string{"f1", "f2"},
		IndexColumns: []meta.IndexColumn{
			{ColumnName: "v", DataType: cmn.DataTypeVectorFP32, Dimension: 4},
		},
	}
}
