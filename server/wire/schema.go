package wire

import (
	"github.com/tinylib/msgp/msgp"
)

// IndexColumn is one vector column's schema on the wire.
type IndexColumn struct {
	ColumnName string
	ColumnUID  string
	IndexType  int32
	DataType   int32
	Dimension  int32
	Parameters map[string]string
}

func (z *IndexColumn) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(6); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteString("n"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteString(z.ColumnName); err != nil {
		return msgp.WrapError(err, "ColumnName")
	}
	if err = en.WriteString("u"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteString(z.ColumnUID); err != nil {
		return msgp.WrapError(err, "ColumnUID")
	}
	if err = en.WriteString("it"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteInt32(z.IndexType); err != nil {
		return msgp.WrapError(err, "IndexType")
	}
	if err = en.WriteString("dt"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteInt32(z.DataType); err != nil {
		return msgp.WrapError(err, "DataType")
	}
	if err = en.WriteString("d"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteInt32(z.Dimension); err != nil {
		return msgp.WrapError(err, "Dimension")
	}
	if err = en.WriteString("p"); err != nil {
		return msgp.WrapError(err)
	}
	return writeStringMap(en, z.Parameters)
}

func (z *IndexColumn) DecodeMsg(dc *msgp.Reader) (err error) {
	n, err := dc.ReadMapHeader()
	if err != nil {
		return msgp.WrapError(err)
	}
	for ; n > 0; n-- {
		field, err := dc.ReadMapKeyPtr()
		if err != nil {
			return msgp.WrapError(err)
		}
		switch msgp.UnsafeString(field) {
		case "n":
			if z.ColumnName, err = dc.ReadString(); err != nil {
				return msgp.WrapError(err, "ColumnName")
			}
		case "u":
			if z.ColumnUID, err = dc.ReadString(); err != nil {
				return msgp.WrapError(err, "ColumnUID")
			}
		case "it":
			if z.IndexType, err = dc.ReadInt32(); err != nil {
				return msgp.WrapError(err, "IndexType")
			}
		case "dt":
			if z.DataType, err = dc.ReadInt32(); err != nil {
				return msgp.WrapError(err, "DataType")
			}
		case "d":
			if z.Dimension, err = dc.ReadInt32(); err != nil {
				return msgp.WrapError(err, "Dimension")
			}
		case "p":
			if z.Parameters, err = readStringMap(dc); err != nil {
				return msgp.WrapError(err, "Parameters")
			}
		default:
			if err = dc.Skip(); err != nil {
				return msgp.WrapError(err)
			}
		}
	}
	return nil
}

// Repository is the optional CDC source descriptor on the wire.
type Repository struct {
	Name          string
	ConnectionURI string
	User          string
	Password      string
	TableName     string
}

func (z *Repository) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(5); err != nil {
		return msgp.WrapError(err)
	}
	fields := []struct{ key, val string }{
		{"n", z.Name}, {"c", z.ConnectionURI}, {"u", z.User}, {"p", z.Password}, {"t", z.TableName},
	}
	for _, f := range fields {
		if err = en.WriteString(f.key); err != nil {
			return msgp.WrapError(err)
		}
		if err = en.WriteString(f.val); err != nil {
			return msgp.WrapError(err, f.key)
		}
	}
	return nil
}

func (z *Repository) DecodeMsg(dc *msgp.Reader) (err error) {
	n, err := dc.ReadMapHeader()
	if err != nil {
		return msgp.WrapError(err)
	}
	for ; n > 0; n-- {
		field, err := dc.ReadMapKeyPtr()
		if err != nil {
			return msgp.WrapError(err)
		}
		var s string
		if s, err = dc.ReadString(); err != nil {
			return msgp.WrapError(err)
		}
		switch msgp.UnsafeString(field) {
		case "n":
			z.Name = s
		case "c":
			z.ConnectionURI = s
		case "u":
			z.User = s
		case "p":
			z.Password = s
		case "t":
			z.TableName = s
		}
	}
	return nil
}

// CollectionConfig is create_collection's request body.
type CollectionConfig struct {
	Name              string
	MaxDocsPerSegment uint64
	ForwardColumns    []string
	IndexColumns      []IndexColumn
	Repository        *Repository
}

func (z *CollectionConfig) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(5); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteString("n"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteString(z.Name); err != nil {
		return msgp.WrapError(err, "Name")
	}
	if err = en.WriteString("m"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteUint64(z.MaxDocsPerSegment); err != nil {
		return msgp.WrapError(err, "MaxDocsPerSegment")
	}
	if err = en.WriteString("f"); err != nil {
		return msgp.WrapError(err)
	}
	if err = writeStringSlice(en, z.ForwardColumns); err != nil {
		return msgp.WrapError(err, "ForwardColumns")
	}
	if err = en.WriteString("i"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteArrayHeader(uint32(len(z.IndexColumns))); err != nil {
		return msgp.WrapError(err, "IndexColumns")
	}
	for i := range z.IndexColumns {
		if err = z.IndexColumns[i].EncodeMsg(en); err != nil {
			return msgp.WrapError(err, "IndexColumns", i)
		}
	}
	if err = en.WriteString("r"); err != nil {
		return msgp.WrapError(err)
	}
	if z.Repository == nil {
		return en.WriteNil()
	}
	return z.Repository.EncodeMsg(en)
}

func (z *CollectionConfig) DecodeMsg(dc *msgp.Reader) (err error) {
	n, err := dc.ReadMapHeader()
	if err != nil {
		return msgp.WrapError(err)
	}
	for ; n > 0; n-- {
		field, err := dc.ReadMapKeyPtr()
		if err != nil {
			return msgp.WrapError(err)
		}
		switch msgp.UnsafeString(field) {
		case "n":
			if z.Name, err = dc.ReadString(); err != nil {
				return msgp.WrapError(err, "Name")
			}
		case "m":
			if z.MaxDocsPerSegment, err = dc.ReadUint64(); err != nil {
				return msgp.WrapError(err, "MaxDocsPerSegment")
			}
		case "f":
			if z.ForwardColumns, err = readStringSlice(dc); err != nil {
				return msgp.WrapError(err, "ForwardColumns")
			}
		case "i":
			var cnt uint32
			if cnt, err = dc.ReadArrayHeader(); err != nil {
				return msgp.WrapError(err, "IndexColumns")
			}
			z.IndexColumns = make([]IndexColumn, cnt)
			for i := range z.IndexColumns {
				if err = z.IndexColumns[i].DecodeMsg(dc); err != nil {
					return msgp.WrapError(err, "IndexColumns", i)
				}
			}
		case "r":
			if dc.IsNil() {
				if err = dc.ReadNil(); err != nil {
					return msgp.WrapError(err, "Repository")
				}
				z.Repository = nil
			} else {
				z.Repository = new(Repository)
				if err = z.Repository.DecodeMsg(dc); err != nil {
					return msgp.WrapError(err, "Repository")
				}
			}
		default:
			if err = dc.Skip(); err != nil {
				return msgp.WrapError(err)
			}
		}
	}
	return nil
}

// Collection is describe_collection/list_collections's response shape.
type Collection struct {
	Name              string
	UID               string
	UUID              string
	Revision          uint64
	Current           bool
	Status            int32
	Readable          bool
	Writable          bool
	MaxDocsPerSegment uint64
	ForwardColumns    []string
	IndexColumns      []IndexColumn
	Repository        *Repository
}

func (z *Collection) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(12); err != nil {
		return msgp.WrapError(err)
	}
	if err = writeKeyedString(en, "n", z.Name); err != nil {
		return err
	}
	if err = writeKeyedString(en, "u", z.UID); err != nil {
		return err
	}
	if err = writeKeyedString(en, "x", z.UUID); err != nil {
		return err
	}
	if err = en.WriteString("v"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteUint64(z.Revision); err != nil {
		return msgp.WrapError(err, "Revision")
	}
	if err = en.WriteString("c"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteBool(z.Current); err != nil {
		return msgp.WrapError(err, "Current")
	}
	if err = en.WriteString("s"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteInt32(z.Status); err != nil {
		return msgp.WrapError(err, "Status")
	}
	if err = en.WriteString("rd"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteBool(z.Readable); err != nil {
		return msgp.WrapError(err, "Readable")
	}
	if err = en.WriteString("w"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteBool(z.Writable); err != nil {
		return msgp.WrapError(err, "Writable")
	}
	if err = en.WriteString("m"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteUint64(z.MaxDocsPerSegment); err != nil {
		return msgp.WrapError(err, "MaxDocsPerSegment")
	}
	if err = en.WriteString("f"); err != nil {
		return msgp.WrapError(err)
	}
	if err = writeStringSlice(en, z.ForwardColumns); err != nil {
		return msgp.WrapError(err, "ForwardColumns")
	}
	if err = en.WriteString("i"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteArrayHeader(uint32(len(z.IndexColumns))); err != nil {
		return msgp.WrapError(err, "IndexColumns")
	}
	for i := range z.IndexColumns {
		if err = z.IndexColumns[i].EncodeMsg(en); err != nil {
			return msgp.WrapError(err, "IndexColumns", i)
		}
	}
	if err = en.WriteString("r"); err != nil {
		return msgp.WrapError(err)
	}
	if z.Repository == nil {
		return en.WriteNil()
	}
	return z.Repository.EncodeMsg(en)
}

func (z *Collection) DecodeMsg(dc *msgp.Reader) (err error) {
	n, err := dc.ReadMapHeader()
	if err != nil {
		return msgp.WrapError(err)
	}
	for ; n > 0; n-- {
		field, err := dc.ReadMapKeyPtr()
		if err != nil {
			return msgp.WrapError(err)
		}
		switch msgp.UnsafeString(field) {
		case "n":
			z.Name, err = dc.ReadString()
		case "u":
			z.UID, err = dc.ReadString()
		case "x":
			z.UUID, err = dc.ReadString()
		case "v":
			z.Revision, err = dc.ReadUint64()
		case "c":
			z.Current, err = dc.ReadBool()
		case "s":
			z.Status, err = dc.ReadInt32()
		case "rd":
			z.Readable, err = dc.ReadBool()
		case "w":
			z.Writable, err = dc.ReadBool()
		case "m":
			z.MaxDocsPerSegment, err = dc.ReadUint64()
		case "f":
			z.ForwardColumns, err = readStringSlice(dc)
		case "i":
			var cnt uint32
			cnt, err = dc.ReadArrayHeader()
			if err == nil {
				z.IndexColumns = make([]IndexColumn, cnt)
				for i := range z.IndexColumns {
					if err = z.IndexColumns[i].DecodeMsg(dc); err != nil {
						break
					}
				}
			}
		case "r":
			if dc.IsNil() {
				err = dc.ReadNil()
				z.Repository = nil
			} else {
				z.Repository = new(Repository)
				err = z.Repository.DecodeMsg(dc)
			}
		default:
			err = dc.Skip()
		}
		if err != nil {
			return msgp.WrapError(err)
		}
	}
	return nil
}

// Stats is stats_collection's response.
type Stats struct {
	TotalDocCount     uint64
	TotalSegmentCount uint64
}

func (z *Stats) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(2); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteString("d"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteUint64(z.TotalDocCount); err != nil {
		return msgp.WrapError(err, "TotalDocCount")
	}
	if err = en.WriteString("s"); err != nil {
		return msgp.WrapError(err)
	}
	return en.WriteUint64(z.TotalSegmentCount)
}

func (z *Stats) DecodeMsg(dc *msgp.Reader) (err error) {
	n, err := dc.ReadMapHeader()
	if err != nil {
		return msgp.WrapError(err)
	}
	for ; n > 0; n-- {
		field, err := dc.ReadMapKeyPtr()
		if err != nil {
			return msgp.WrapError(err)
		}
		switch msgp.UnsafeString(field) {
		case "d":
			if z.TotalDocCount, err = dc.ReadUint64(); err != nil {
				return msgp.WrapError(err, "TotalDocCount")
			}
		case "s":
			if z.TotalSegmentCount, err = dc.ReadUint64(); err != nil {
				return msgp.WrapError(err, "TotalSegmentCount")
			}
		default:
			if err = dc.Skip(); err != nil {
				return msgp.WrapError(err)
			}
		}
	}
	return nil
}

// Envelope is the {code, reason} status pair attached to every response.
type Envelope struct {
	Code   int32
	Reason string
}

func (z *Envelope) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(2); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteString("c"); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteInt32(z.Code); err != nil {
		return msgp.WrapError(err, "Code")
	}
	if err = en.WriteString("r"); err != nil {
		return msgp.WrapError(err)
	}
	return en.WriteString(z.Reason)
}

func (z *Envelope) DecodeMsg(dc *msgp.Reader) (err error) {
	n, err := dc.ReadMapHeader()
	if err != nil {
		return msgp.WrapError(err)
	}
	for ; n > 0; n-- {
		field, err := dc.ReadMapKeyPtr()
		if err != nil {
			return msgp.WrapError(err)
		}
		switch msgp.UnsafeString(field) {
		case "c":
			if z.Code, err = dc.ReadInt32(); err != nil {
				return msgp.WrapError(err, "Code")
			}
		case "r":
			if z.Reason, err = dc.ReadString(); err != nil {
				return msgp.WrapError(err, "Reason")
			}
		default:
			if err = dc.Skip(); err != nil {
				return msgp.WrapError(err)
			}
		}
	}
	return nil
}

func writeKeyedString(en *msgp.Writer, key, val string) error {
	if err := en.WriteString(key); err != nil {
		return msgp.WrapError(err)
	}
	if err := en.WriteString(val); err != nil {
		return msgp.WrapError(err, key)
	}
	return nil
}
