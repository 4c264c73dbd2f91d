package wire

import (
	"github.com/tinylib/msgp/msgp"
)

// QueryRequest is query's request body. Vectors travel as pre-transcoded
// raw bytes, same as WriteRequest's IndexValue.
type QueryRequest struct {
	CollectionName string
	ColumnName     string
	Vectors        [][]byte
	Dimension      int32
	DataType       int32
	TopK           int32
	Radius         float32
	LinearScan     bool
	Extras         map[string]string
}

func (z *QueryRequest) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(9); err != nil {
		return msgp.WrapError(err)
	}
	if err = writeKeyedString(en, "n", z.CollectionName); err != nil {
		return err
	}
	if err = writeKeyedString(en, "c", z.ColumnName); err != nil {
		return err
	}
	if err = en.WriteString("v"); err != nil {
		return msgp.WrapError(err)
	}
	if err = writeBytesSlice(en, z.Vectors); err != nil {
		return msgp.WrapError(err, "Vectors")
	}
	if err = en.WriteString("d"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteInt32(z.Dimension); err != nil {
		return msgp.WrapError(err, "Dimension")
	}
	if err = en.WriteString("dt"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteInt32(z.DataType); err != nil {
		return msgp.WrapError(err, "DataType")
	}
	if err = en.WriteString("t"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteInt32(z.TopK); err != nil {
		return msgp.WrapError(err, "TopK")
	}
	if err = en.WriteString("r"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteFloat32(z.Radius); err != nil {
		return msgp.WrapError(err, "Radius")
	}
	if err = en.WriteString("l"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteBool(z.LinearScan); err != nil {
		return msgp.WrapError(err, "LinearScan")
	}
	if err = en.WriteString("e"); err != nil {
		return msgp.WrapError(err)
	}
	return writeStringMap(en, z.Extras)
}

func (z *QueryRequest) DecodeMsg(dc *msgp.Reader) (err error) {
	n, err := dc.ReadMapHeader()
	if err != nil {
		return msgp.WrapError(err)
	}
	for ; n > 0; n-- {
		field, ferr := dc.ReadMapKeyPtr()
		if ferr != nil {
			return msgp.WrapError(ferr)
		}
		switch msgp.UnsafeString(field) {
		case "n":
			z.CollectionName, err = dc.ReadString()
		case "c":
			z.ColumnName, err = dc.ReadString()
		case "v":
			z.Vectors, err = readBytesSlice(dc)
		case "d":
			z.Dimension, err = dc.ReadInt32()
		case "dt":
			z.DataType, err = dc.ReadInt32()
		case "t":
			z.TopK, err = dc.ReadInt32()
		case "r":
			z.Radius, err = dc.ReadFloat32()
		case "l":
			z.LinearScan, err = dc.ReadBool()
		case "e":
			z.Extras, err = readStringMap(dc)
		default:
			err = dc.Skip()
		}
		if err != nil {
			return msgp.WrapError(err)
		}
	}
	return nil
}

// Hit is one k-NN result on the wire.
type Hit struct {
	PrimaryKey uint64
	Score      float32
	Forward    []string
}

func (z *Hit) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(3); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteString("k"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteUint64(z.PrimaryKey); err != nil {
		return msgp.WrapError(err, "PrimaryKey")
	}
	if err = en.WriteString("s"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteFloat32(z.Score); err != nil {
		return msgp.WrapError(err, "Score")
	}
	if err = en.WriteString("f"); err != nil {
		return msgp.WrapError(err)
	}
	return writeStringSlice(en, z.Forward)
}

func (z *Hit) DecodeMsg(dc *msgp.Reader) (err error) {
	n, err := dc.ReadMapHeader()
	if err != nil {
		return msgp.WrapError(err)
	}
	for ; n > 0; n-- {
		field, ferr := dc.ReadMapKeyPtr()
		if ferr != nil {
			return msgp.WrapError(ferr)
		}
		switch msgp.UnsafeString(field) {
		case "k":
			z.PrimaryKey, err = dc.ReadUint64()
		case "s":
			z.Score, err = dc.ReadFloat32()
		case "f":
			z.Forward, err = readStringSlice(dc)
		default:
			err = dc.Skip()
		}
		if err != nil {
			return msgp.WrapError(err)
		}
	}
	return nil
}

// BatchResult is one query vector's hit list.
type BatchResult struct {
	Hits []Hit
}

func (z *BatchResult) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteArrayHeader(uint32(len(z.Hits))); err != nil {
		return msgp.WrapError(err)
	}
	for i := range z.Hits {
		if err = z.Hits[i].EncodeMsg(en); err != nil {
			return msgp.WrapError(err, i)
		}
	}
	return nil
}

func (z *BatchResult) DecodeMsg(dc *msgp.Reader) (err error) {
	n, err := dc.ReadArrayHeader()
	if err != nil {
		return msgp.WrapError(err)
	}
	z.Hits = make([]Hit, n)
	for i := range z.Hits {
		if err = z.Hits[i].DecodeMsg(dc); err != nil {
			return msgp.WrapError(err, i)
		}
	}
	return nil
}

// QueryResponse is query's response body.
type QueryResponse struct {
	Batches   []BatchResult
	LatencyUS int64
}

func (z *QueryResponse) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(2); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteString("b"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteArrayHeader(uint32(len(z.Batches))); err != nil {
		return msgp.WrapError(err, "Batches")
	}
	for i := range z.Batches {
		if err = z.Batches[i].EncodeMsg(en); err != nil {
			return msgp.WrapError(err, "Batches", i)
		}
	}
	if err = en.WriteString("l"); err != nil {
		return msgp.WrapError(err)
	}
	return en.WriteInt64(z.LatencyUS)
}

func (z *QueryResponse) DecodeMsg(dc *msgp.Reader) (err error) {
	n, err := dc.ReadMapHeader()
	if err != nil {
		return msgp.WrapError(err)
	}
	for ; n > 0; n-- {
		field, ferr := dc.ReadMapKeyPtr()
		if ferr != nil {
			return msgp.WrapError(ferr)
		}
		switch msgp.UnsafeString(field) {
		case "b":
			var cnt uint32
			cnt, err = dc.ReadArrayHeader()
			if err == nil {
				z.Batches = make([]BatchResult, cnt)
				for i := range z.Batches {
					if err = z.Batches[i].DecodeMsg(dc); err != nil {
						break
					}
				}
			}
		case "l":
			z.LatencyUS, err = dc.ReadInt64()
		default:
			err = dc.Skip()
		}
		if err != nil {
			return msgp.WrapError(err)
		}
	}
	return nil
}
