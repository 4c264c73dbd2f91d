package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vsearchio/vsearch/agent"
	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/internal/xlog"
	"github.com/vsearchio/vsearch/meta"
	"github.com/vsearchio/vsearch/metrics"
	"github.com/vsearchio/vsearch/query"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPServer adapts Handler to a JSON/HTTP route table.
type HTTPServer struct {
	inner *http.Server
}

// NewHTTPServer builds the HTTP adapter; it does not start listening.
// metricsRegistry may be nil, in which case /metrics is not registered.
func NewHTTPServer(addr string, h *Handler, metricsRegistry *metrics.Registry) *HTTPServer {
	r := mux.NewRouter()
	r.HandleFunc(cmn.URLPathCollection, withHandler(h, handleCollection))
	r.HandleFunc(cmn.URLPathCollectionStats, withHandler(h, handleStats))
	r.HandleFunc(cmn.URLPathCollectionIndex, withHandler(h, handleWrite))
	r.HandleFunc(cmn.URLPathCollectionQuery, withHandler(h, handleQuery))
	r.HandleFunc(cmn.URLPathCollectionDoc, withHandler(h, handleGetDoc))
	r.HandleFunc(cmn.URLPathCollectionsList, withHandler(h, handleListCollections))
	r.HandleFunc(cmn.URLPathServiceVersion, withHandler(h, handleVersion))
	if metricsRegistry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(metricsRegistry.Gatherer(), promhttp.HandlerOpts{}))
	}
	return &HTTPServer{inner: &http.Server{Addr: addr, Handler: r}}
}

func (s *HTTPServer) ListenAndServe() error { return s.inner.ListenAndServe() }

// Handler exposes the underlying http.Handler for tests that want to drive
// requests through httptest without binding a real listener.
func (s *HTTPServer) Handler() http.Handler { return s.inner.Handler }

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}

func withHandler(h *Handler, fn func(*Handler, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(h, w, r)
	}
}

// responseEnvelope is the `{code, reason}` status object every HTTP
// response carries at the top level.
type responseEnvelope struct {
	Code   cmn.Code    `json:"code"`
	Reason string      `json:"reason"`
	Data   interface{} `json:"data,omitempty"`
}

func writeOK(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(responseEnvelope{Code: cmn.Success, Data: data}); err != nil {
		xlog.Errorf("server/http: encode response: %v", err)
	}
}

// writeError always answers 200; semantic failures are distinguished by
// the {code, reason} body, not by HTTP status.
func writeError(w http.ResponseWriter, err error) {
	code := cmn.AsCode(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if jerr := json.NewEncoder(w).Encode(responseEnvelope{Code: code, Reason: err.Error()}); jerr != nil {
		xlog.Errorf("server/http: encode error response: %v", jerr)
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allowed", strings.Join(allowed, ", "))
	w.WriteHeader(http.StatusMethodNotAllowed)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return cmn.NewError(cmn.CodeDeserializeError, "decode request body: %v", err)
	}
	return nil
}

// -- DTOs -------------------------------------------------------------

type indexColumnJSON struct {
	Name       string            `json:"name"`
	DataType   string            `json:"data_type"`
	Dimension  int               `json:"dimension"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

type repositoryJSON struct {
	Name          string `json:"name"`
	ConnectionURI string `json:"connection_uri"`
	User          string `json:"user,omitempty"`
	Password      string `json:"password,omitempty"`
	TableName     string `json:"table_name,omitempty"`
}

func toRepositoryParam(r *repositoryJSON) *meta.Repository {
	if r == nil {
		return nil
	}
	return &meta.Repository{Name: r.Name, ConnectionURI: r.ConnectionURI, User: r.User, Password: r.Password, TableName: r.TableName}
}

func fromRepository(r *meta.Repository) *repositoryJSON {
	if r == nil {
		return nil
	}
	return &repositoryJSON{Name: r.Name, ConnectionURI: r.ConnectionURI, User: r.User, Password: r.Password, TableName: r.TableName}
}

func toIndexColumnParams(cols []indexColumnJSON) ([]meta.IndexColumn, error) {
	out := make([]meta.IndexColumn, len(cols))
	for i, c := range cols {
		dt, err := parseDataType(c.DataType)
		if err != nil {
			return nil, err
		}
		out[i] = meta.IndexColumn{ColumnName: c.Name, DataType: dt, Dimension: c.Dimension, Parameters: c.Parameters, IndexType: cmn.IndexTypeProximaGraph}
	}
	return out, nil
}

func fromIndexColumns(cols []meta.IndexColumn) []indexColumnJSON {
	out := make([]indexColumnJSON, len(cols))
	for i, c := range cols {
		out[i] = indexColumnJSON{Name: c.ColumnName, DataType: c.DataType.String(), Dimension: c.Dimension, Parameters: c.Parameters}
	}
	return out
}

var dataTypeByName = map[string]cmn.DataType{
	"VECTOR_FP32":     cmn.DataTypeVectorFP32,
	"VECTOR_FP16":     cmn.DataTypeVectorFP16,
	"VECTOR_FP64":     cmn.DataTypeVectorFP64,
	"VECTOR_INT16":    cmn.DataTypeVectorInt16,
	"VECTOR_INT8":     cmn.DataTypeVectorInt8,
	"VECTOR_INT4":     cmn.DataTypeVectorInt4,
	"VECTOR_BINARY32": cmn.DataTypeVectorBinary32,
	"VECTOR_BINARY64": cmn.DataTypeVectorBinary64,
}

func parseDataType(s string) (cmn.DataType, error) {
	dt, ok := dataTypeByName[s]
	if !ok {
		return cmn.DataTypeUndefined, cmn.NewError(cmn.CodeInvalidDataType, "unknown data_type %q", s)
	}
	return dt, nil
}

type collectionConfigJSON struct {
	Name              string            `json:"name"`
	MaxDocsPerSegment cmn.JSONUint64    `json:"max_docs_per_segment"`
	ForwardColumns    []string          `json:"forward_columns,omitempty"`
	IndexColumns      []indexColumnJSON `json:"index_columns"`
	Repository        *repositoryJSON   `json:"repository,omitempty"`
}

type updateCollectionConfigJSON struct {
	MaxDocsPerSegment *cmn.JSONUint64   `json:"max_docs_per_segment,omitempty"`
	ForwardColumns    []string          `json:"forward_columns,omitempty"`
	IndexColumns      []indexColumnJSON `json:"index_columns,omitempty"`
	Repository        *repositoryJSON   `json:"repository,omitempty"`
}

type collectionJSON struct {
	Name              string            `json:"name"`
	UID               string            `json:"uid"`
	UUID              string            `json:"uuid"`
	Revision          cmn.JSONUint64    `json:"revision"`
	Current           bool              `json:"current"`
	Status            string            `json:"status"`
	Readable          bool              `json:"readable"`
	Writable          bool              `json:"writable"`
	MaxDocsPerSegment cmn.JSONUint64    `json:"max_docs_per_segment"`
	ForwardColumns    []string          `json:"forward_columns,omitempty"`
	IndexColumns      []indexColumnJSON `json:"index_columns"`
	Repository        *repositoryJSON   `json:"repository,omitempty"`
}

func fromCollection(c *meta.Collection) collectionJSON {
	return collectionJSON{
		Name: c.Name, UID: c.UID, UUID: c.UUID, Revision: cmn.JSONUint64(c.Revision),
		Current: c.Current, Status: c.Status.String(), Readable: c.Readable, Writable: c.Writable,
		MaxDocsPerSegment: cmn.JSONUint64(c.MaxDocsPerSegment),
		ForwardColumns:    c.ForwardColumns,
		IndexColumns:      fromIndexColumns(c.IndexColumns),
		Repository:        fromRepository(c.Repository),
	}
}

type describeResponseJSON struct {
	collectionJSON
	MagicNumber cmn.JSONUint64 `json:"magic_number"`
}

type statsJSON struct {
	TotalDocCount     cmn.JSONUint64 `json:"total_doc_count"`
	TotalSegmentCount cmn.JSONUint64 `json:"total_segment_count"`
}

// -- /v1/collection/{name} ---------------------------------------------

func handleCollection(h *Handler, w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	switch r.Method {
	case http.MethodPost:
		var body collectionConfigJSON
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}
		cols, err := toIndexColumnParams(body.IndexColumns)
		if err != nil {
			writeError(w, err)
			return
		}
		param := &meta.CreateParam{
			Name: name, MaxDocsPerSegment: body.MaxDocsPerSegment.Uint64(),
			ForwardColumns: body.ForwardColumns, IndexColumns: cols, Repository: toRepositoryParam(body.Repository),
		}
		col, err := h.CreateCollection(param)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, fromCollection(col))

	case http.MethodGet:
		col, err := h.DescribeCollection(name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, describeResponseJSON{collectionJSON: fromCollection(col.Collection), MagicNumber: cmn.JSONUint64(col.MagicNumber)})

	case http.MethodDelete:
		if err := h.DropCollection(name); err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, nil)

	case http.MethodPut:
		var body updateCollectionConfigJSON
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}
		param := &meta.UpdateParam{Name: name, ForwardColumns: body.ForwardColumns, Repository: toRepositoryParam(body.Repository)}
		if body.MaxDocsPerSegment != nil {
			v := body.MaxDocsPerSegment.Uint64()
			param.MaxDocsPerSegment = &v
		}
		if body.IndexColumns != nil {
			cols, err := toIndexColumnParams(body.IndexColumns)
			if err != nil {
				writeError(w, err)
				return
			}
			param.IndexColumns = cols
		}
		col, err := h.UpdateCollection(r.Context(), param)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, fromCollection(col))

	default:
		methodNotAllowed(w, http.MethodPost, http.MethodGet, http.MethodDelete, http.MethodPut)
	}
}

func handleStats(h *Handler, w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	name := mux.Vars(r)["name"]
	s, err := h.StatsCollection(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, statsJSON{TotalDocCount: cmn.JSONUint64(s.TotalDocCount), TotalSegmentCount: cmn.JSONUint64(s.TotalSegmentCount)})
}

func handleListCollections(h *Handler, w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	filter := r.URL.Query().Get("repository")
	cols := h.ListCollections(filter)
	out := make([]collectionJSON, len(cols))
	for i, c := range cols {
		out[i] = fromCollection(c)
	}
	writeOK(w, out)
}

func handleVersion(h *Handler, w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeOK(w, map[string]string{"version": h.GetVersion()})
}

// -- write --------------------------------------------------------------

type indexValueJSON struct {
	ColumnName string    `json:"column_name"`
	Elements   []float64 `json:"elements,omitempty"`
	Bytes      []byte    `json:"bytes,omitempty"`
}

type writeRowJSON struct {
	PrimaryKey    cmn.JSONUint64   `json:"primary_key"`
	OperationType string           `json:"operation_type"`
	ForwardValues []string         `json:"forward_values,omitempty"`
	IndexValues   []indexValueJSON `json:"index_values,omitempty"`
	LSN           cmn.JSONUint64   `json:"lsn,omitempty"`
	LSNContext    string           `json:"lsn_context,omitempty"`
	HasLSNContext bool             `json:"has_lsn_context,omitempty"`
}

var operationByName = map[string]cmn.OperationType{"INSERT": cmn.OpInsert, "UPDATE": cmn.OpUpdate, "DELETE": cmn.OpDelete}

func parseOperationType(s string) (cmn.OperationType, error) {
	op, ok := operationByName[s]
	if !ok {
		return 0, cmn.NewError(cmn.CodeInvalidRecord, "unknown operation_type %q", s)
	}
	return op, nil
}

type writeRequestJSON struct {
	RequestIndexColumns   []string       `json:"index_columns"`
	RequestForwardColumns []string       `json:"forward_columns,omitempty"`
	Rows                  []writeRowJSON `json:"rows"`
	MagicNumber           cmn.JSONUint64 `json:"magic_number,omitempty"`
	IsProxy               bool           `json:"is_proxy,omitempty"`
}

func handleWrite(h *Handler, w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	name := mux.Vars(r)["name"]
	var body writeRequestJSON
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	rows := make([]agent.RequestRow, len(body.Rows))
	for i, row := range body.Rows {
		op, err := parseOperationType(row.OperationType)
		if err != nil {
			writeError(w, err)
			return
		}
		values := make([]agent.IndexValue, len(row.IndexValues))
		for j, iv := range row.IndexValues {
			rv := agent.RowValue{RawBytes: iv.Bytes}
			if len(iv.Elements) > 0 {
				elems := make([]interface{}, len(iv.Elements))
				for k, e := range iv.Elements {
					elems[k] = e
				}
				rv.JSONElements = elems
			}
			values[j] = agent.IndexValue{ColumnName: iv.ColumnName, Value: rv}
		}
		rows[i] = agent.RequestRow{
			PrimaryKey: row.PrimaryKey.Uint64(), OperationType: op, ForwardValues: row.ForwardValues,
			IndexValues: values, LSN: row.LSN.Uint64(), LSNContext: row.LSNContext, HasLSNContext: row.HasLSNContext,
		}
	}

	req := &agent.WriteRequest{
		CollectionName: name, RequestIndexColumns: body.RequestIndexColumns, RequestForwardColumns: body.RequestForwardColumns,
		Rows: rows, MagicNumber: body.MagicNumber.Uint64(), IsProxy: body.IsProxy,
	}
	if err := h.Write(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

// -- query ----------------------------------------------------------------

type queryVectorJSON struct {
	Elements []float64 `json:"elements,omitempty"`
	Bytes    []byte    `json:"bytes,omitempty"`
}

type queryRequestJSON struct {
	ColumnName string            `json:"column_name"`
	Vectors    []queryVectorJSON `json:"vectors"`
	Dimension  int               `json:"dimension"`
	DataType   string            `json:"data_type"`
	TopK       int               `json:"topk"`
	Radius     float32           `json:"radius,omitempty"`
	LinearScan bool              `json:"linear_scan,omitempty"`
	Extras     map[string]string `json:"extras,omitempty"`
}

type hitJSON struct {
	PrimaryKey cmn.JSONUint64  `json:"primary_key"`
	Score      cmn.JSONFloat64 `json:"score"`
	Forward    []string        `json:"forward,omitempty"`
}

type batchResultJSON struct {
	Hits []hitJSON `json:"hits"`
}

type queryResponseJSON struct {
	Batches   []batchResultJSON `json:"batches"`
	LatencyUS cmn.JSONUint64    `json:"latency_us"`
}

func handleQuery(h *Handler, w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	name := mux.Vars(r)["name"]
	var body queryRequestJSON
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	dt, err := parseDataType(body.DataType)
	if err != nil {
		writeError(w, err)
		return
	}
	vectors := make([]query.VectorInput, len(body.Vectors))
	for i, v := range body.Vectors {
		vi := query.VectorInput{RawBytes: v.Bytes}
		if len(v.Elements) > 0 {
			elems := make([]interface{}, len(v.Elements))
			for k, e := range v.Elements {
				elems[k] = e
			}
			vi.JSONElements = elems
		}
		vectors[i] = vi
	}

	req := &query.Request{
		CollectionName: name, ColumnName: body.ColumnName, Vectors: vectors, Dimension: body.Dimension,
		DataType: dt, TopK: body.TopK, Radius: body.Radius, LinearScan: body.LinearScan, Extras: body.Extras,
	}
	resp, err := h.Query(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	batches := make([]batchResultJSON, len(resp.Batches))
	for i, b := range resp.Batches {
		hits := make([]hitJSON, len(b.Hits))
		for j, hit := range b.Hits {
			hits[j] = hitJSON{PrimaryKey: cmn.JSONUint64(hit.PrimaryKey), Score: cmn.JSONFloat64(hit.Score), Forward: hit.Forward}
		}
		batches[i] = batchResultJSON{Hits: hits}
	}
	writeOK(w, queryResponseJSON{Batches: batches, LatencyUS: cmn.JSONUint64(resp.LatencyUS)})
}

func handleGetDoc(h *Handler, w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	name := mux.Vars(r)["name"]
	keyStr := r.URL.Query().Get("key")
	key, err := strconv.ParseUint(keyStr, 10, 64)
	if err != nil {
		writeError(w, cmn.NewError(cmn.CodeInvalidArgument, "invalid key query param %q: %v", keyStr, err))
		return
	}
	hit, err := h.GetDocumentByKey(r.Context(), &query.ByKeyRequest{CollectionName: name, PrimaryKey: key})
	if err != nil {
		writeError(w, err)
		return
	}
	if hit == nil {
		writeError(w, cmn.NewError(cmn.CodeInexistentKey, "primary key %d not found in %q", key, name))
		return
	}
	writeOK(w, hitJSON{PrimaryKey: cmn.JSONUint64(hit.PrimaryKey), Score: cmn.JSONFloat64(hit.Score), Forward: hit.Forward})
}

// requireMethod answers 405 with an Allowed header and returns false unless
// r.Method matches exactly (every route below takes a single verb apart
// from /v1/collection/{name}, which switches on method itself).
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	methodNotAllowed(w, method)
	return false
}
