package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartQueryTimerRecordsOkAndError(t *testing.T) {
	r := NewRegistry()

	stop := r.StartQueryTimer("c")
	stop(nil)

	stop = r.StartQueryTimer("c")
	stop(errors.New("boom"))

	mfs, err := r.Gatherer().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)

	var sawCounter bool
	for _, mf := range mfs {
		if mf.GetName() == "vsearch_query_n" {
			sawCounter = true
			require.Len(t, mf.GetMetric(), 2) // ok + error label combos
		}
	}
	require.True(t, sawCounter)
}

func TestStartWriteAndGetDocumentTimersAreIndependent(t *testing.T) {
	r := NewRegistry()

	r.StartWriteTimer("c")(nil)
	r.StartGetDocumentTimer("c")(nil)

	mfs, err := r.Gatherer().Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	require.True(t, names["vsearch_write_n"])
	require.True(t, names["vsearch_get_document_n"])
}
