package agent

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/index/memindex"
	"github.com/vsearchio/vsearch/meta"
)

func newTestIndexAgent(t *testing.T, maxBuildQPS, buildThreadCount int) (*IndexAgent, *meta.Service) {
	t.Helper()
	uri := "sqlite://" + filepath.Join(t.TempDir(), "meta.db")
	ms, err := meta.NewService(uri)
	require.NoError(t, err)
	t.Cleanup(func() { ms.Close() })

	idx := memindex.New()
	a := NewIndexAgent(ms, idx, maxBuildQPS, buildThreadCount)
	return a, ms
}

func createAndEnable(t *testing.T, ms *meta.Service, a *IndexAgent, name string) {
	t.Helper()
	_, err := ms.CreateCollection(&meta.CreateParam{
		Name:           name,
		ForwardColumns: []string{"f1", "f2"},
		IndexColumns: []meta.IndexColumn{
			{ColumnName: "v", DataType: cmn.DataTypeVectorFP32, Dimension: 4},
		},
	})
	require.NoError(t, err)
	require.NoError(t, ms.EnableCollection(name, 0))
	require.NoError(t, a.CreateCollection(name))
}

func insertRow(pk uint64) *WriteRequest {
	return &WriteRequest{
		CollectionName:        "c",
		RequestIndexColumns:   []string{"v"},
		RequestForwardColumns: []string{"f1", "f2"},
		Rows: []RequestRow{
			{
				PrimaryKey:    pk,
				OperationType: cmn.OpInsert,
				ForwardValues: []string{"hello", "1"},
				IndexValues: []IndexValue{
					{ColumnName: "v", Value: RowValue{JSONElements: []interface{}{0.1, 0.2, 0.3, 0.4}}},
				},
			},
		},
	}
}

func TestIndexAgentWriteDirect(t *testing.T) {
	a, ms := newTestIndexAgent(t, 0, 2)
	createAndEnable(t, ms, a, "c")

	err := a.Write(context.Background(), insertRow(1))
	require.NoError(t, err)
	require.Equal(t, uint32(0), a.counter.Get("c").Load())

	stats, err := a.GetCollectionStats("c")
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.TotalDocCount)
}

func TestIndexAgentWriteRejectsSuspendedCollection(t *testing.T) {
	a, ms := newTestIndexAgent(t, 0, 2)
	createAndEnable(t, ms, a, "c")
	require.NoError(t, ms.SuspendWrite("c"))

	err := a.Write(context.Background(), insertRow(1))
	require.Error(t, err)
	require.Equal(t, cmn.CodeSuspendedCollection, cmn.AsCode(err))
	require.Equal(t, uint32(0), a.counter.Get("c").Load())
}

func TestIndexAgentWriteRejectsMismatchedMagicNumber(t *testing.T) {
	a, ms := newTestIndexAgent(t, 0, 2)
	createAndEnable(t, ms, a, "c")

	req := insertRow(1)
	req.IsProxy = true
	req.MagicNumber = a.MagicNumber() + 1

	err := a.Write(context.Background(), req)
	require.Error(t, err)
	require.Equal(t, cmn.CodeMismatchedMagicNumber, cmn.AsCode(err))
	require.Equal(t, uint32(0), a.counter.Get("c").Load())
}

func TestIndexAgentWriteRateLimited(t *testing.T) {
	a, ms := newTestIndexAgent(t, 1, 2)
	createAndEnable(t, ms, a, "c")

	// Exhaust the single-token bucket, then expect the second call within
	// the acquire-timeout window to fail with exceed-rate-limit.
	require.NoError(t, a.Write(context.Background(), insertRow(1)))

	start := time.Now()
	err := a.Write(context.Background(), insertRow(2))
	elapsed := time.Since(start)
	require.Error(t, err)
	require.Equal(t, cmn.CodeExceedRateLimit, cmn.AsCode(err))
	require.Less(t, elapsed, 2*time.Second)
}

func TestIndexAgentDropCollectionClearsBookkeeping(t *testing.T) {
	a, ms := newTestIndexAgent(t, 0, 2)
	createAndEnable(t, ms, a, "c")

	require.NoError(t, a.DropCollection("c"))
	require.Nil(t, a.counter.Get("c"))
	require.Nil(t, a.order.Get("c"))
}

func TestIndexAgentUpdateCollectionDrainsBeforeApplying(t *testing.T) {
	a, ms := newTestIndexAgent(t, 0, 2)
	createAndEnable(t, ms, a, "c")

	counter := a.counter.Register("c")
	counter.AddActive(1)

	done := make(chan error, 1)
	go func() {
		_, err := ms.UpdateCollection(&meta.UpdateParam{Name: "c"})
		if err != nil {
			done <- err
			return
		}
		require.NoError(t, ms.EnableCollection("c", 1))
		done <- a.UpdateCollection(context.Background(), "c", 1, 2*time.Second)
	}()

	time.Sleep(50 * time.Millisecond)
	counter.DecActive()

	err := <-done
	require.NoError(t, err)
}

func TestIndexAgentUpdateCollectionDrainTimesOut(t *testing.T) {
	a, ms := newTestIndexAgent(t, 0, 2)
	createAndEnable(t, ms, a, "c")

	counter := a.counter.Register("c")
	counter.AddActive(1)

	err := a.UpdateCollection(context.Background(), "c", 0, 500*time.Millisecond)
	require.Error(t, err)
}
