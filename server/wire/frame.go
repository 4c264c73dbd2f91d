package wire

import (
	"github.com/tinylib/msgp/msgp"
)

// OpCode identifies which operation a binary-RPC frame carries, per §6's
// binary service surface.
type OpCode byte

const (
	OpCreateCollection OpCode = iota + 1
	OpUpdateCollection
	OpDropCollection
	OpDescribeCollection
	OpListCollections
	OpStatsCollection
	OpWrite
	OpQuery
	OpGetDocumentByKey
	OpGetVersion
)

// WriteOp writes a single request frame: the op byte followed by the
// msgp-encoded request body.
func WriteOp(en *msgp.Writer, op OpCode, req msgp.Encodable) error {
	if err := en.WriteUint8(uint8(op)); err != nil {
		return msgp.WrapError(err)
	}
	if req == nil {
		return en.Flush()
	}
	if err := req.EncodeMsg(en); err != nil {
		return msgp.WrapError(err)
	}
	return en.Flush()
}

// ReadOp reads the op byte that begins every request frame.
func ReadOp(dc *msgp.Reader) (OpCode, error) {
	b, err := dc.ReadUint8()
	if err != nil {
		return 0, msgp.WrapError(err)
	}
	return OpCode(b), nil
}

// WriteResponse writes a response frame: the status envelope followed by
// the optional payload (callers pass nil for operations with no body, e.g.
// drop_collection).
func WriteResponse(en *msgp.Writer, env *Envelope, payload msgp.Encodable) error {
	if err := env.EncodeMsg(en); err != nil {
		return msgp.WrapError(err)
	}
	if payload != nil {
		if err := payload.EncodeMsg(en); err != nil {
			return msgp.WrapError(err)
		}
	}
	return en.Flush()
}

// ReadEnvelope reads the leading status envelope of a response frame.
func ReadEnvelope(dc *msgp.Reader) (*Envelope, error) {
	env := &Envelope{}
	if err := env.DecodeMsg(dc); err != nil {
		return nil, msgp.WrapError(err)
	}
	return env, nil
}
