package agent

import (
	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/meta"
)

// RowValue is one request-side value before transcoding: either a JSON
// textual vector (decoded into float64 elements) or a raw little-endian
// byte vector already in some source data type.
type RowValue struct {
	JSONElements []interface{}
	RawBytes     []byte
	SourceType   cmn.DataType
}

// IndexValue names which request-side index column a RowValue belongs to.
type IndexValue struct {
	ColumnName string
	Value      RowValue
}

// RequestRow is one row of an incoming WriteRequest, before building.
type RequestRow struct {
	PrimaryKey    uint64
	OperationType cmn.OperationType
	ForwardValues []string // positional, matching RequestForwardColumns unless ForwardFullMatch
	IndexValues   []IndexValue
	LSN           uint64
	LSNContext    string
	HasLSNContext bool
}

// WriteRequest is the external, not-yet-validated write payload.
type WriteRequest struct {
	CollectionName        string
	RequestIndexColumns   []string // order as sent by the client
	RequestForwardColumns []string
	Rows                  []RequestRow
	MagicNumber           uint64
	IsProxy               bool
}

// Column is one column of the internal row-dataset form the index layer
// consumes directly.
type Column struct {
	ColumnName string
	DataType   cmn.DataType
	Dimension  int
	Bytes      []byte
}

// Dataset is one unit of work handed to IndexService.write_records: either
// the single accumulated DIRECT dataset, or one of the per-row PROXY
// datasets.
type Dataset struct {
	Rows []DatasetRow
}

// DatasetRow is one row in internal form.
type DatasetRow struct {
	PrimaryKey    uint64
	OperationType cmn.OperationType
	ForwardBlob   []byte
	Columns       []Column
	LSN           uint64
	LSNContext    string
}

// WriteRequestBuilder validates an incoming WriteRequest against a
// collection's current meta and column order, then transcodes it into the
// internal dataset form the index layer consumes.
type WriteRequestBuilder struct{}

func NewWriteRequestBuilder() *WriteRequestBuilder {
	return &WriteRequestBuilder{}
}

// Build runs the full two-pass validate/build algorithm from §4.4.
func (b *WriteRequestBuilder) Build(req *WriteRequest, col *meta.Collection, order *ColumnOrder) ([]*Dataset, cmn.WriteMode, error) {
	if req.CollectionName == "" {
		return nil, 0, cmn.NewError(cmn.CodeEmptyCollectionName, "write request collection name is empty")
	}
	if len(req.Rows) == 0 {
		return nil, 0, cmn.NewError(cmn.CodeInvalidWriteRequest, "write request has no rows")
	}

	indexFullMatch := sameOrder(req.RequestIndexColumns, indexColumnNames(col))
	forwardFullMatch := sameOrder(req.RequestForwardColumns, col.ForwardColumns)

	if err := validateIndexColumns(req.RequestIndexColumns, col); err != nil {
		return nil, 0, err
	}
	if err := validateForwardColumns(req.RequestForwardColumns, col); err != nil {
		return nil, 0, err
	}

	mode := cmn.WriteModeDirect
	if col.Repository != nil {
		mode = cmn.WriteModeProxy
	}

	var rows []DatasetRow
	for _, r := range req.Rows {
		if mode == cmn.WriteModeProxy && !r.HasLSNContext {
			return nil, 0, cmn.NewError(cmn.CodeEmptyLsnContext, "proxy write row %d missing lsn_context", r.PrimaryKey)
		}

		if r.OperationType == cmn.OpDelete {
			rows = append(rows, DatasetRow{
				PrimaryKey:    r.PrimaryKey,
				OperationType: cmn.OpDelete,
				LSN:           r.LSN,
				LSNContext:    r.LSNContext,
			})
			continue
		}

		if len(r.IndexValues) != len(req.RequestIndexColumns) {
			return nil, 0, cmn.NewError(cmn.CodeInvalidWriteRequest,
				"row %d has %d index values, request declared %d", r.PrimaryKey, len(r.IndexValues), len(req.RequestIndexColumns))
		}
		if len(r.ForwardValues) != len(req.RequestForwardColumns) {
			return nil, 0, cmn.NewError(cmn.CodeInvalidWriteRequest,
				"row %d has %d forward values, request declared %d", r.PrimaryKey, len(r.ForwardValues), len(req.RequestForwardColumns))
		}

		forwardBlob, err := buildForwardBlob(r, req.RequestForwardColumns, col, order, forwardFullMatch)
		if err != nil {
			return nil, 0, err
		}

		cols, err := buildIndexColumns(r, req.RequestIndexColumns, col, order, indexFullMatch)
		if err != nil {
			return nil, 0, err
		}

		rows = append(rows, DatasetRow{
			PrimaryKey:    r.PrimaryKey,
			OperationType: r.OperationType,
			ForwardBlob:   forwardBlob,
			Columns:       cols,
			LSN:           r.LSN,
			LSNContext:    r.LSNContext,
		})
	}

	if mode == cmn.WriteModeProxy {
		datasets := make([]*Dataset, len(rows))
		for i, r := range rows {
			datasets[i] = &Dataset{Rows: []DatasetRow{r}}
		}
		return datasets, mode, nil
	}
	return []*Dataset{{Rows: rows}}, mode, nil
}

func indexColumnNames(col *meta.Collection) []string {
	out := make([]string, len(col.IndexColumns))
	for i, ic := range col.IndexColumns {
		out[i] = ic.ColumnName
	}
	return out
}

func sameOrder(requested, canonical []string) bool {
	if len(requested) != len(canonical) {
		return false
	}
	for i := range requested {
		if requested[i] != canonical[i] {
			return false
		}
	}
	return true
}

func validateIndexColumns(requested []string, col *meta.Collection) error {
	byName := make(map[string]meta.IndexColumn, len(col.IndexColumns))
	for _, ic := range col.IndexColumns {
		byName[ic.ColumnName] = ic
	}
	for _, name := range requested {
		if _, ok := byName[name]; !ok {
			return cmn.NewError(cmn.CodeMismatchedIndexColumn, "index column %q not present in collection %q", name, col.Name)
		}
	}
	return nil
}

func validateForwardColumns(requested []string, col *meta.Collection) error {
	allowed := make(map[string]struct{}, len(col.ForwardColumns))
	for _, f := range col.ForwardColumns {
		allowed[f] = struct{}{}
	}
	for _, name := range requested {
		if _, ok := allowed[name]; !ok {
			return cmn.NewError(cmn.CodeMismatchedForward, "forward column %q not present in collection %q", name, col.Name)
		}
	}
	return nil
}

// buildForwardBlob serializes a row's forward values in meta order. When
// the request already matches meta's forward column order, the values are
// serialized as-is; otherwise they're first scattered into meta-sized
// positions via order.Forward.
func buildForwardBlob(r RequestRow, requestForward []string, col *meta.Collection, order *ColumnOrder, fullMatch bool) ([]byte, error) {
	values := make([]string, len(col.ForwardColumns))
	if fullMatch {
		copy(values, r.ForwardValues)
	} else {
		for i, name := range requestForward {
			pos, ok := order.Forward[name]
			if !ok {
				return nil, cmn.NewError(cmn.CodeMismatchedForward, "forward column %q not in column order", name)
			}
			values[pos] = r.ForwardValues[i]
		}
	}
	return serializeForward(values), nil
}

// buildIndexColumns resolves each requested index value against meta (by
// position when fully matched, else by name) and transcodes it into meta's
// declared data type. Raw bytes with no source type are read as already
// being in meta's declared data type.
func buildIndexColumns(r RequestRow, requestIndex []string, col *meta.Collection, order *ColumnOrder, fullMatch bool) ([]Column, error) {
	out := make([]Column, len(r.IndexValues))
	for i, iv := range r.IndexValues {
		var ic meta.IndexColumn
		if fullMatch {
			ic = col.IndexColumns[i]
		} else {
			pos, ok := order.Index[iv.ColumnName]
			if !ok {
				return nil, cmn.NewError(cmn.CodeMismatchedIndexColumn, "index column %q not in column order", iv.ColumnName)
			}
			ic = col.IndexColumns[pos]
		}

		sourceType := iv.Value.SourceType
		if iv.Value.JSONElements != nil || sourceType == cmn.DataTypeUndefined {
			sourceType = ic.DataType
		}

		var elements []float64
		var err error
		switch {
		case iv.Value.JSONElements != nil:
			elements, err = parseJSONNumbers(iv.Value.JSONElements)
		case iv.Value.RawBytes != nil:
			elements, err = decodeRawBytes(iv.Value.RawBytes, sourceType, ic.Dimension)
		default:
			return nil, cmn.NewError(cmn.CodeInvalidVectorFormat, "index value for %q has neither json nor raw form", ic.ColumnName)
		}
		if err != nil {
			return nil, err
		}

		bytes, err := transcode(elements, sourceType, ic.DataType, ic.Dimension)
		if err != nil {
			return nil, err
		}
		out[i] = Column{ColumnName: ic.ColumnName, DataType: ic.DataType, Dimension: ic.Dimension, Bytes: bytes}
	}
	return out, nil
}

// serializeForward is a simple length-prefixed joining of the forward
// values; the index layer treats this blob opaquely and only the query
// path (holding the same column metadata) deserializes it.
func serializeForward(values []string) []byte {
	var out []byte
	for _, v := range values {
		out = appendUvarint(out, uint64(len(v)))
		out = append(out, v...)
	}
	return out
}

func appendUvarint(buf []byte, v uint64) []byte {
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

// DeserializeForward reverses serializeForward against count forward
// columns, for use by QueryAgent when assembling hits.
func DeserializeForward(blob []byte, count int) ([]string, error) {
	return deserializeForward(blob, count)
}

// deserializeForward reverses serializeForward.
func deserializeForward(blob []byte, count int) ([]string, error) {
	out := make([]string, 0, count)
	i := 0
	for len(out) < count {
		if i >= len(blob) {
			return nil, cmn.NewError(cmn.CodeDeserializeError, "forward blob truncated")
		}
		length, n := readUvarint(blob[i:])
		if n == 0 {
			return nil, cmn.NewError(cmn.CodeDeserializeError, "forward blob malformed varint")
		}
		i += n
		if i+int(length) > len(blob) {
			return nil, cmn.NewError(cmn.CodeDeserializeError, "forward blob truncated value")
		}
		out = append(out, string(blob[i:i+int(length)]))
		i += int(length)
	}
	return out, nil
}

func readUvarint(buf []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i, b := range buf {
		if b < 0x80 {
			return v | uint64(b)<<shift, i + 1
		}
		v |= uint64(b&0x7f) << shift
		shift += 7
	}
	return 0, 0
}
