package wire

import (
	"github.com/tinylib/msgp/msgp"
)

// IndexValue is one row's value for one index column, already transcoded
// into raw bytes by the client (the binary protocol never carries JSON
// number arrays).
type IndexValue struct {
	ColumnName string
	RawBytes   []byte
}

func (z *IndexValue) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(2); err != nil {
		return msgp.WrapError(err)
	}
	if err = writeKeyedString(en, "n", z.ColumnName); err != nil {
		return err
	}
	if err = en.WriteString("b"); err != nil {
		return msgp.WrapError(err)
	}
	return en.WriteBytes(z.RawBytes)
}

func (z *IndexValue) DecodeMsg(dc *msgp.Reader) (err error) {
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
			if z.ColumnName, err = dc.ReadString(); err != nil {
				return msgp.WrapError(err, "ColumnName")
			}
		case "b":
			if z.RawBytes, err = dc.ReadBytes(nil); err != nil {
				return msgp.WrapError(err, "RawBytes")
			}
		default:
			if err = dc.Skip(); err != nil {
				return msgp.WrapError(err)
			}
		}
	}
	return nil
}

// WriteRow is one row of a write batch on the wire.
type WriteRow struct {
	PrimaryKey    uint64
	OperationType int32
	ForwardValues []string
	IndexValues   []IndexValue
	LSN           uint64
	LSNContext    string
	HasLSNContext bool
}

func (z *WriteRow) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(7); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteString("k"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteUint64(z.PrimaryKey); err != nil {
		return msgp.WrapError(err, "PrimaryKey")
	}
	if err = en.WriteString("o"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteInt32(z.OperationType); err != nil {
		return msgp.WrapError(err, "OperationType")
	}
	if err = en.WriteString("f"); err != nil {
		return msgp.WrapError(err)
	}
	if err = writeStringSlice(en, z.ForwardValues); err != nil {
		return msgp.WrapError(err, "ForwardValues")
	}
	if err = en.WriteString("i"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteArrayHeader(uint32(len(z.IndexValues))); err != nil {
		return msgp.WrapError(err, "IndexValues")
	}
	for i := range z.IndexValues {
		if err = z.IndexValues[i].EncodeMsg(en); err != nil {
			return msgp.WrapError(err, "IndexValues", i)
		}
	}
	if err = en.WriteString("l"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteUint64(z.LSN); err != nil {
		return msgp.WrapError(err, "LSN")
	}
	if err = en.WriteString("lc"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteString(z.LSNContext); err != nil {
		return msgp.WrapError(err, "LSNContext")
	}
	if err = en.WriteString("hl"); err != nil {
		return msgp.WrapError(err)
	}
	return en.WriteBool(z.HasLSNContext)
}

func (z *WriteRow) DecodeMsg(dc *msgp.Reader) (err error) {
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
			err = setU64(&z.PrimaryKey, dc)
		case "o":
			err = setI32(&z.OperationType, dc)
		case "f":
			z.ForwardValues, err = readStringSlice(dc)
		case "i":
			var cnt uint32
			cnt, err = dc.ReadArrayHeader()
			if err == nil {
				z.IndexValues = make([]IndexValue, cnt)
				for i := range z.IndexValues {
					if err = z.IndexValues[i].DecodeMsg(dc); err != nil {
						break
					}
				}
			}
		case "l":
			err = setU64(&z.LSN, dc)
		case "lc":
			z.LSNContext, err = dc.ReadString()
		case "hl":
			z.HasLSNContext, err = dc.ReadBool()
		default:
			err = dc.Skip()
		}
		if err != nil {
			return msgp.WrapError(err)
		}
	}
	return nil
}

// WriteRequest is write's request body.
type WriteRequest struct {
	CollectionName        string
	RequestIndexColumns   []string
	RequestForwardColumns []string
	Rows                  []WriteRow
	MagicNumber           uint64
	IsProxy               bool
}

func (z *WriteRequest) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(6); err != nil {
		return msgp.WrapError(err)
	}
	if err = writeKeyedString(en, "n", z.CollectionName); err != nil {
		return err
	}
	if err = en.WriteString("i"); err != nil {
		return msgp.WrapError(err)
	}
	if err = writeStringSlice(en, z.RequestIndexColumns); err != nil {
		return msgp.WrapError(err, "RequestIndexColumns")
	}
	if err = en.WriteString("f"); err != nil {
		return msgp.WrapError(err)
	}
	if err = writeStringSlice(en, z.RequestForwardColumns); err != nil {
		return msgp.WrapError(err, "RequestForwardColumns")
	}
	if err = en.WriteString("r"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteArrayHeader(uint32(len(z.Rows))); err != nil {
		return msgp.WrapError(err, "Rows")
	}
	for i := range z.Rows {
		if err = z.Rows[i].EncodeMsg(en); err != nil {
			return msgp.WrapError(err, "Rows", i)
		}
	}
	if err = en.WriteString("m"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteUint64(z.MagicNumber); err != nil {
		return msgp.WrapError(err, "MagicNumber")
	}
	if err = en.WriteString("p"); err != nil {
		return msgp.WrapError(err)
	}
	return en.WriteBool(z.IsProxy)
}

func (z *WriteRequest) DecodeMsg(dc *msgp.Reader) (err error) {
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
		case "i":
			z.RequestIndexColumns, err = readStringSlice(dc)
		case "f":
			z.RequestForwardColumns, err = readStringSlice(dc)
		case "r":
			var cnt uint32
			cnt, err = dc.ReadArrayHeader()
			if err == nil {
				z.Rows = make([]WriteRow, cnt)
				for i := range z.Rows {
					if err = z.Rows[i].DecodeMsg(dc); err != nil {
						break
					}
				}
			}
		case "m":
			z.MagicNumber, err = dc.ReadUint64()
		case "p":
			z.IsProxy, err = dc.ReadBool()
		default:
			err = dc.Skip()
		}
		if err != nil {
			return msgp.WrapError(err)
		}
	}
	return nil
}

func setU64(dst *uint64, dc *msgp.Reader) error {
	v, err := dc.ReadUint64()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func setI32(dst *int32, dc *msgp.Reader) error {
	v, err := dc.ReadInt32()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
