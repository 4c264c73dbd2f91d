// Package wire implements the binary-RPC message codecs, hand-written
// against the msgp.Writer/msgp.Reader streaming API the way
// dsort/extract/shard_gen.go's generated code does, field-for-field, since
// running the msgp code generator is out of scope here.
package wire

import (
	"github.com/tinylib/msgp/msgp"
)

func writeStringSlice(en *msgp.Writer, vals []string) error {
	if err := en.WriteArrayHeader(uint32(len(vals))); err != nil {
		return msgp.WrapError(err)
	}
	for i, v := range vals {
		if err := en.WriteString(v); err != nil {
			return msgp.WrapError(err, i)
		}
	}
	return nil
}

func readStringSlice(dc *msgp.Reader) ([]string, error) {
	n, err := dc.ReadArrayHeader()
	if err != nil {
		return nil, msgp.WrapError(err)
	}
	out := make([]string, n)
	for i := range out {
		out[i], err = dc.ReadString()
		if err != nil {
			return nil, msgp.WrapError(err, i)
		}
	}
	return out, nil
}

func writeBytesSlice(en *msgp.Writer, vals [][]byte) error {
	if err := en.WriteArrayHeader(uint32(len(vals))); err != nil {
		return msgp.WrapError(err)
	}
	for i, v := range vals {
		if err := en.WriteBytes(v); err != nil {
			return msgp.WrapError(err, i)
		}
	}
	return nil
}

func readBytesSlice(dc *msgp.Reader) ([][]byte, error) {
	n, err := dc.ReadArrayHeader()
	if err != nil {
		return nil, msgp.WrapError(err)
	}
	out := make([][]byte, n)
	for i := range out {
		out[i], err = dc.ReadBytes(nil)
		if err != nil {
			return nil, msgp.WrapError(err, i)
		}
	}
	return out, nil
}

func writeStringMap(en *msgp.Writer, m map[string]string) error {
	if err := en.WriteMapHeader(uint32(len(m))); err != nil {
		return msgp.WrapError(err)
	}
	for k, v := range m {
		if err := en.WriteString(k); err != nil {
			return msgp.WrapError(err, k)
		}
		if err := en.WriteString(v); err != nil {
			return msgp.WrapError(err, k)
		}
	}
	return nil
}

func readStringMap(dc *msgp.Reader) (map[string]string, error) {
	n, err := dc.ReadMapHeader()
	if err != nil {
		return nil, msgp.WrapError(err)
	}
	out := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := dc.ReadString()
		if err != nil {
			return nil, msgp.WrapError(err)
		}
		v, err := dc.ReadString()
		if err != nil {
			return nil, msgp.WrapError(err, k)
		}
		out[k] = v
	}
	return out, nil
}
