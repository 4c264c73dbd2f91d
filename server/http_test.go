package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/metrics"
)

func newTestHTTPServer(t *testing.T) http.Handler {
	t.Helper()
	h := newTestHandler(t)
	return NewHTTPServer(":0", h, metrics.NewRegistry()).Handler()
}

func doRequest(t *testing.T, srv http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, responseEnvelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	var env responseEnvelope
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr, env
}

func createTestCollection(t *testing.T, srv http.Handler, name string) {
	t.Helper()
	rr, env := doRequest(t, srv, http.MethodPost, "/v1/collection/"+name, collectionConfigJSON{
		Name:           name,
		ForwardColumns: []string{"f1", "f2"},
		IndexColumns: []indexColumnJSON{
			{Name: "v", DataType: "VECTOR_FP32", Dimension: 4},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, cmn.Success, env.Code)
}

func TestHandleCollectionLifecycle(t *testing.T) {
	srv := newTestHTTPServer(t)
	createTestCollection(t, srv, "c")

	rr, env := doRequest(t, srv, http.MethodGet, "/v1/collection/c", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, cmn.Success, env.Code)

	rr, env = doRequest(t, srv, http.MethodPut, "/v1/collection/c", updateCollectionConfigJSON{
		ForwardColumns: []string{"f1", "f2", "f3"},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, cmn.Success, env.Code)

	rr, env = doRequest(t, srv, http.MethodDelete, "/v1/collection/c", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, cmn.Success, env.Code)
}

func TestHandleCollectionMethodNotAllowed(t *testing.T) {
	srv := newTestHTTPServer(t)
	req := httptest.NewRequest(http.MethodPatch, "/v1/collection/c", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	allowed := rr.Header().Get("Allowed")
	require.Contains(t, allowed, http.MethodPost)
	require.Contains(t, allowed, http.MethodGet)
	require.Contains(t, allowed, http.MethodDelete)
	require.Contains(t, allowed, http.MethodPut)
}

func TestHandleStatsAndList(t *testing.T) {
	srv := newTestHTTPServer(t)
	createTestCollection(t, srv, "c")

	rr, env := doRequest(t, srv, http.MethodGet, "/v1/collection/c/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, cmn.Success, env.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/collection/c/stats", nil)
	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr, env = doRequest(t, srv, http.MethodGet, "/v1/collections", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, cmn.Success, env.Code)
}

func TestHandleWriteAndQueryAndGetDoc(t *testing.T) {
	srv := newTestHTTPServer(t)
	createTestCollection(t, srv, "c")

	rr, env := doRequest(t, srv, http.MethodPost, "/v1/collection/c/index", writeRequestJSON{
		RequestIndexColumns:   []string{"v"},
		RequestForwardColumns: []string{"f1", "f2"},
		Rows: []writeRowJSON{
			{
				PrimaryKey:    1,
				OperationType: "INSERT",
				ForwardValues: []string{"hello", "world"},
				IndexValues: []indexValueJSON{
					{ColumnName: "v", Elements: []float64{0.1, 0.2, 0.3, 0.4}},
				},
			},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, cmn.Success, env.Code)

	rr, env = doRequest(t, srv, http.MethodPost, "/v1/collection/c/query", queryRequestJSON{
		ColumnName: "v", Dimension: 4, DataType: "VECTOR_FP32", TopK: 1,
		Vectors: []queryVectorJSON{{Elements: []float64{0.1, 0.2, 0.3, 0.4}}},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, cmn.Success, env.Code)

	rr, env = doRequest(t, srv, http.MethodGet, "/v1/collection/c/doc?key=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, cmn.Success, env.Code)

	rr, env = doRequest(t, srv, http.MethodGet, "/v1/collection/c/doc?key=999", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, cmn.CodeInexistentKey, env.Code)
}

func TestHandleVersion(t *testing.T) {
	srv := newTestHTTPServer(t)
	rr, env := doRequest(t, srv, http.MethodGet, "/service_version", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, cmn.Success, env.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestHTTPServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.Contains(rr.Header().Get("Content-Type"), "text/plain"))
}
