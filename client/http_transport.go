package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/vsearchio/vsearch/admin"
	"github.com/vsearchio/vsearch/agent"
	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/meta"
	"github.com/vsearchio/vsearch/query"
)

var httpJSON = jsoniter.ConfigCompatibleWithStandardLibrary

type httpTransport struct {
	baseURL string
	cl      *http.Client
}

func newHTTPTransport(cfg Config) *httpTransport {
	return &httpTransport{
		baseURL: "http://" + cfg.Addr,
		cl: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
				MaxIdleConns:        cfg.MaxIdleConnsPerHost,
			},
		},
	}
}

func (t *httpTransport) close() error {
	t.cl.CloseIdleConnections()
	return nil
}

// envelope mirrors server.responseEnvelope; the server package's copy is
// unexported, so the client keeps its own, kept in lockstep with the
// {code, reason, data} wire contract.
type envelope struct {
	Code   cmn.Code        `json:"code"`
	Reason string          `json:"reason"`
	Data   jsoniter.RawMessage `json:"data,omitempty"`
}

func (t *httpTransport) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := httpJSON.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	full := t.baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, full, reader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.cl.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed {
		return fmt.Errorf("client: %s %s: method not allowed (allowed: %s)", method, path, resp.Header.Get("Allowed"))
	}

	var env envelope
	if err := httpJSON.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("client: decode response envelope: %w", err)
	}
	if env.Code != cmn.Success {
		return &cmn.Error{Code: env.Code, Reason: env.Reason}
	}
	if out != nil && len(env.Data) > 0 {
		if err := httpJSON.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("client: decode response data: %w", err)
		}
	}
	return nil
}

// -- DTOs, kept field-for-field with server/http.go's private copies -----

type indexColumnJSON struct {
	Name       string            `json:"name"`
	DataType   string            `json:"data_type"`
	Dimension  int               `json:"dimension"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

var dataTypeName = map[cmn.DataType]string{
	cmn.DataTypeVectorFP32:     "VECTOR_FP32",
	cmn.DataTypeVectorFP16:     "VECTOR_FP16",
	cmn.DataTypeVectorFP64:     "VECTOR_FP64",
	cmn.DataTypeVectorInt16:    "VECTOR_INT16",
	cmn.DataTypeVectorInt8:     "VECTOR_INT8",
	cmn.DataTypeVectorInt4:     "VECTOR_INT4",
	cmn.DataTypeVectorBinary32: "VECTOR_BINARY32",
	cmn.DataTypeVectorBinary64: "VECTOR_BINARY64",
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

func indexColumnsToJSON(cols []meta.IndexColumn) []indexColumnJSON {
	out := make([]indexColumnJSON, len(cols))
	for i, c := range cols {
		out[i] = indexColumnJSON{Name: c.ColumnName, DataType: dataTypeName[c.DataType], Dimension: c.Dimension, Parameters: c.Parameters}
	}
	return out
}

func indexColumnsFromJSON(cols []indexColumnJSON) []meta.IndexColumn {
	out := make([]meta.IndexColumn, len(cols))
	for i, c := range cols {
		out[i] = meta.IndexColumn{ColumnName: c.Name, DataType: dataTypeByName[c.DataType], Dimension: c.Dimension, Parameters: c.Parameters}
	}
	return out
}

type repositoryJSON struct {
	Name          string `json:"name"`
	ConnectionURI string `json:"connection_uri"`
	User          string `json:"user,omitempty"`
	Password      string `json:"password,omitempty"`
	TableName     string `json:"table_name,omitempty"`
}

func repositoryToJSON(r *meta.Repository) *repositoryJSON {
	if r == nil {
		return nil
	}
	return &repositoryJSON{Name: r.Name, ConnectionURI: r.ConnectionURI, User: r.User, Password: r.Password, TableName: r.TableName}
}

func repositoryFromJSON(r *repositoryJSON) *meta.Repository {
	if r == nil {
		return nil
	}
	return &meta.Repository{Name: r.Name, ConnectionURI: r.ConnectionURI, User: r.User, Password: r.Password, TableName: r.TableName}
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

var collectionStatusByName = map[string]cmn.CollectionStatus{}

func init() {
	for s := cmn.CollectionStatus(0); s <= cmn.StatusDropped; s++ {
		collectionStatusByName[s.String()] = s
	}
}

func collectionFromJSON(c collectionJSON) *meta.Collection {
	return &meta.Collection{
		Name: c.Name, UID: c.UID, UUID: c.UUID, Revision: c.Revision.Uint64(),
		Current: c.Current, Status: collectionStatusByName[c.Status],
		Readable: c.Readable, Writable: c.Writable, MaxDocsPerSegment: c.MaxDocsPerSegment.Uint64(),
		ForwardColumns: c.ForwardColumns, IndexColumns: indexColumnsFromJSON(c.IndexColumns),
		Repository: repositoryFromJSON(c.Repository),
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

func (t *httpTransport) createCollection(ctx context.Context, p *meta.CreateParam) (*meta.Collection, error) {
	body := collectionConfigJSON{
		Name: p.Name, MaxDocsPerSegment: cmn.JSONUint64(p.MaxDocsPerSegment),
		ForwardColumns: p.ForwardColumns, IndexColumns: indexColumnsToJSON(p.IndexColumns), Repository: repositoryToJSON(p.Repository),
	}
	var out collectionJSON
	if err := t.do(ctx, http.MethodPost, "/v1/collection/"+p.Name, nil, body, &out); err != nil {
		return nil, err
	}
	return collectionFromJSON(out), nil
}

func (t *httpTransport) updateCollection(ctx context.Context, p *meta.UpdateParam) (*meta.Collection, error) {
	body := updateCollectionConfigJSON{ForwardColumns: p.ForwardColumns, Repository: repositoryToJSON(p.Repository)}
	if p.MaxDocsPerSegment != nil {
		v := cmn.JSONUint64(*p.MaxDocsPerSegment)
		body.MaxDocsPerSegment = &v
	}
	if p.IndexColumns != nil {
		body.IndexColumns = indexColumnsToJSON(p.IndexColumns)
	}
	var out collectionJSON
	if err := t.do(ctx, http.MethodPut, "/v1/collection/"+p.Name, nil, body, &out); err != nil {
		return nil, err
	}
	return collectionFromJSON(out), nil
}

func (t *httpTransport) dropCollection(ctx context.Context, name string) error {
	return t.do(ctx, http.MethodDelete, "/v1/collection/"+name, nil, nil, nil)
}

func (t *httpTransport) describeCollection(ctx context.Context, name string) (*admin.Description, error) {
	var out describeResponseJSON
	if err := t.do(ctx, http.MethodGet, "/v1/collection/"+name, nil, nil, &out); err != nil {
		return nil, err
	}
	return &admin.Description{Collection: collectionFromJSON(out.collectionJSON), MagicNumber: out.MagicNumber.Uint64()}, nil
}

func (t *httpTransport) listCollections(ctx context.Context, repositoryFilter string) ([]*meta.Collection, error) {
	q := url.Values{}
	if repositoryFilter != "" {
		q.Set("repository", repositoryFilter)
	}
	var out []collectionJSON
	if err := t.do(ctx, http.MethodGet, "/v1/collections", q, nil, &out); err != nil {
		return nil, err
	}
	cols := make([]*meta.Collection, len(out))
	for i, c := range out {
		cols[i] = collectionFromJSON(c)
	}
	return cols, nil
}

func (t *httpTransport) statsCollection(ctx context.Context, name string) (*admin.Stats, error) {
	var out statsJSON
	if err := t.do(ctx, http.MethodGet, "/v1/collection/"+name+"/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &admin.Stats{TotalDocCount: out.TotalDocCount.Uint64(), TotalSegmentCount: out.TotalSegmentCount.Uint64()}, nil
}

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

var operationName = map[cmn.OperationType]string{cmn.OpInsert: "INSERT", cmn.OpUpdate: "UPDATE", cmn.OpDelete: "DELETE"}

type writeRequestJSON struct {
	RequestIndexColumns   []string       `json:"index_columns"`
	RequestForwardColumns []string       `json:"forward_columns,omitempty"`
	Rows                  []writeRowJSON `json:"rows"`
	MagicNumber           cmn.JSONUint64 `json:"magic_number,omitempty"`
	IsProxy               bool           `json:"is_proxy,omitempty"`
}

func (t *httpTransport) write(ctx context.Context, req *agent.WriteRequest) error {
	rows := make([]writeRowJSON, len(req.Rows))
	for i, r := range req.Rows {
		values := make([]indexValueJSON, len(r.IndexValues))
		for j, iv := range r.IndexValues {
			v := indexValueJSON{ColumnName: iv.ColumnName, Bytes: iv.Value.RawBytes}
			if len(iv.Value.JSONElements) > 0 {
				v.Elements = toFloat64Slice(iv.Value.JSONElements)
			}
			values[j] = v
		}
		rows[i] = writeRowJSON{
			PrimaryKey: cmn.JSONUint64(r.PrimaryKey), OperationType: operationName[r.OperationType], ForwardValues: r.ForwardValues,
			IndexValues: values, LSN: cmn.JSONUint64(r.LSN), LSNContext: r.LSNContext, HasLSNContext: r.HasLSNContext,
		}
	}
	body := writeRequestJSON{
		RequestIndexColumns: req.RequestIndexColumns, RequestForwardColumns: req.RequestForwardColumns,
		Rows: rows, MagicNumber: cmn.JSONUint64(req.MagicNumber), IsProxy: req.IsProxy,
	}
	return t.do(ctx, http.MethodPost, "/v1/collection/"+req.CollectionName+"/index", nil, body, nil)
}

func toFloat64Slice(elems []interface{}) []float64 {
	out := make([]float64, len(elems))
	for i, e := range elems {
		if f, ok := e.(float64); ok {
			out[i] = f
		}
	}
	return out
}

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

func (t *httpTransport) query(ctx context.Context, req *query.Request) (*query.Response, error) {
	vectors := make([]queryVectorJSON, len(req.Vectors))
	for i, v := range req.Vectors {
		qv := queryVectorJSON{Bytes: v.RawBytes}
		if len(v.JSONElements) > 0 {
			qv.Elements = toFloat64Slice(v.JSONElements)
		}
		vectors[i] = qv
	}
	body := queryRequestJSON{
		ColumnName: req.ColumnName, Vectors: vectors, Dimension: req.Dimension, DataType: dataTypeName[req.DataType],
		TopK: req.TopK, Radius: req.Radius, LinearScan: req.LinearScan, Extras: req.Extras,
	}
	var out queryResponseJSON
	if err := t.do(ctx, http.MethodPost, "/v1/collection/"+req.CollectionName+"/query", nil, body, &out); err != nil {
		return nil, err
	}
	batches := make([]query.BatchResult, len(out.Batches))
	for i, b := range out.Batches {
		hits := make([]query.Hit, len(b.Hits))
		for j, h := range b.Hits {
			hits[j] = query.Hit{PrimaryKey: h.PrimaryKey.Uint64(), Score: float32(h.Score), Forward: h.Forward}
		}
		batches[i] = query.BatchResult{Hits: hits}
	}
	return &query.Response{Batches: batches, LatencyUS: out.LatencyUS.Uint64()}, nil
}

func (t *httpTransport) getDocumentByKey(ctx context.Context, req *query.ByKeyRequest) (*query.Hit, error) {
	q := url.Values{"key": {strconv.FormatUint(req.PrimaryKey, 10)}}
	var out hitJSON
	if err := t.do(ctx, http.MethodGet, "/v1/collection/"+req.CollectionName+"/doc", q, nil, &out); err != nil {
		if cmn.AsCode(err) == cmn.CodeInexistentKey {
			return nil, nil
		}
		return nil, err
	}
	return &query.Hit{PrimaryKey: out.PrimaryKey.Uint64(), Score: float32(out.Score), Forward: out.Forward}, nil
}

func (t *httpTransport) getVersion(ctx context.Context) (string, error) {
	var out map[string]string
	if err := t.do(ctx, http.MethodGet, "/service_version", nil, nil, &out); err != nil {
		return "", err
	}
	return out["version"], nil
}
