package wire

import (
	"github.com/tinylib/msgp/msgp"
)

// NameRequest carries a bare collection name: drop_collection,
// describe_collection, stats_collection.
type NameRequest struct {
	Name string
}

func (z *NameRequest) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(1); err != nil {
		return msgp.WrapError(err)
	}
	return writeKeyedString(en, "n", z.Name)
}

func (z *NameRequest) DecodeMsg(dc *msgp.Reader) (err error) {
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
			z.Name, err = dc.ReadString()
		default:
			err = dc.Skip()
		}
		if err != nil {
			return msgp.WrapError(err)
		}
	}
	return nil
}

// ListRequest is list_collections's request body.
type ListRequest struct {
	RepositoryFilter string
}

func (z *ListRequest) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(1); err != nil {
		return msgp.WrapError(err)
	}
	return writeKeyedString(en, "r", z.RepositoryFilter)
}

func (z *ListRequest) DecodeMsg(dc *msgp.Reader) (err error) {
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
		case "r":
			z.RepositoryFilter, err = dc.ReadString()
		default:
			err = dc.Skip()
		}
		if err != nil {
			return msgp.WrapError(err)
		}
	}
	return nil
}

// CollectionList wraps list_collections's response array so it has a single
// top-level Encodable/Decodable type like every other response.
type CollectionList struct {
	Collections []Collection
}

func (z *CollectionList) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteArrayHeader(uint32(len(z.Collections))); err != nil {
		return msgp.WrapError(err)
	}
	for i := range z.Collections {
		if err = z.Collections[i].EncodeMsg(en); err != nil {
			return msgp.WrapError(err, i)
		}
	}
	return nil
}

func (z *CollectionList) DecodeMsg(dc *msgp.Reader) (err error) {
	cnt, err := dc.ReadArrayHeader()
	if err != nil {
		return msgp.WrapError(err)
	}
	z.Collections = make([]Collection, cnt)
	for i := range z.Collections {
		if err = z.Collections[i].DecodeMsg(dc); err != nil {
			return msgp.WrapError(err, i)
		}
	}
	return nil
}

// DescribeResponse is describe_collection's response: schema plus the
// agent's startup fence.
type DescribeResponse struct {
	Collection  Collection
	MagicNumber uint64
}

func (z *DescribeResponse) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(2); err != nil {
		return msgp.WrapError(err)
	}
	if err = en.WriteString("c"); err != nil {
		return msgp.WrapError(err)
	}
	if err = z.Collection.EncodeMsg(en); err != nil {
		return msgp.WrapError(err, "Collection")
	}
	if err = en.WriteString("m"); err != nil {
		return msgp.WrapError(err)
	}
	return en.WriteUint64(z.MagicNumber)
}

func (z *DescribeResponse) DecodeMsg(dc *msgp.Reader) (err error) {
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
		case "c":
			err = z.Collection.DecodeMsg(dc)
		case "m":
			z.MagicNumber, err = dc.ReadUint64()
		default:
			err = dc.Skip()
		}
		if err != nil {
			return msgp.WrapError(err)
		}
	}
	return nil
}

// GetByKeyRequest is get_document_by_key's request body.
type GetByKeyRequest struct {
	CollectionName string
	PrimaryKey     uint64
}

func (z *GetByKeyRequest) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(2); err != nil {
		return msgp.WrapError(err)
	}
	if err = writeKeyedString(en, "n", z.CollectionName); err != nil {
		return err
	}
	if err = en.WriteString("k"); err != nil {
		return msgp.WrapError(err)
	}
	return en.WriteUint64(z.PrimaryKey)
}

func (z *GetByKeyRequest) DecodeMsg(dc *msgp.Reader) (err error) {
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
		case "k":
			z.PrimaryKey, err = dc.ReadUint64()
		default:
			err = dc.Skip()
		}
		if err != nil {
			return msgp.WrapError(err)
		}
	}
	return nil
}

// VersionResponse is get_version's response.
type VersionResponse struct {
	Version string
}

func (z *VersionResponse) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(1); err != nil {
		return msgp.WrapError(err)
	}
	return writeKeyedString(en, "v", z.Version)
}

func (z *VersionResponse) DecodeMsg(dc *msgp.Reader) (err error) {
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
		case "v":
			z.Version, err = dc.ReadString()
		default:
			err = dc.Skip()
		}
		if err != nil {
			return msgp.WrapError(err)
		}
	}
	return nil
}
