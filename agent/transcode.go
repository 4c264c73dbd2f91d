package agent

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/vsearchio/vsearch/cmn"
)

// TranscodeQueryVector transcodes a query vector's JSON elements or raw
// bytes into destType, for use by QueryAgent before calling IndexService.KNN.
func TranscodeQueryVector(elements []interface{}, rawBytes []byte, sourceType, destType cmn.DataType, dimension int) ([]byte, error) {
	var values []float64
	var err error
	switch {
	case len(rawBytes) > 0:
		values, err = decodeRawBytes(rawBytes, sourceType, dimension)
	default:
		values, err = parseJSONNumbers(elements)
	}
	if err != nil {
		return nil, err
	}
	return transcode(values, sourceType, destType, dimension)
}

// transcode converts src (already-parsed float64 elements, from either JSON
// text or decoded raw bytes) from sourceType into raw little-endian bytes of
// destType. Per §4.5, the only supported narrowing is FP32→FP16; every
// other (source, destination) pair that isn't an identity conversion is
// rejected with MismatchedDataType.
func transcode(values []float64, sourceType, destType cmn.DataType, dimension int) ([]byte, error) {
	if sourceType != destType && !(sourceType == cmn.DataTypeVectorFP32 && destType == cmn.DataTypeVectorFP16) {
		return nil, cmn.NewError(cmn.CodeMismatchedDataType, "unsupported transcode %s -> %s", sourceType, destType)
	}
	if len(values) != dimension {
		return nil, cmn.NewError(cmn.CodeMismatchedDimension, "vector has %d elements, expected %d", len(values), dimension)
	}

	out, err := encode(values, destType, dimension)
	if err != nil {
		return nil, err
	}
	if want := cmn.ExpectedByteLength(destType, dimension); len(out) != want {
		return nil, cmn.NewError(cmn.CodeMismatchedDimension, "transcoded length %d, expected %d", len(out), want)
	}
	return out, nil
}

func encode(values []float64, destType cmn.DataType, dimension int) ([]byte, error) {
	switch destType {
	case cmn.DataTypeVectorFP32:
		buf := make([]byte, len(values)*4)
		for i, v := range values {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
		}
		return buf, nil
	case cmn.DataTypeVectorFP64:
		buf := make([]byte, len(values)*8)
		for i, v := range values {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
		}
		return buf, nil
	case cmn.DataTypeVectorFP16:
		buf := make([]byte, len(values)*2)
		for i, v := range values {
			binary.LittleEndian.PutUint16(buf[i*2:], float32ToFloat16(float32(v)))
		}
		return buf, nil
	case cmn.DataTypeVectorInt16:
		buf := make([]byte, len(values)*2)
		for i, v := range values {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v)))
		}
		return buf, nil
	case cmn.DataTypeVectorInt8:
		buf := make([]byte, len(values))
		for i, v := range values {
			buf[i] = byte(int8(v))
		}
		return buf, nil
	case cmn.DataTypeVectorInt4:
		if dimension%2 != 0 {
			return nil, cmn.NewError(cmn.CodeMismatchedDimension, "int4 requires even dimension, got %d", dimension)
		}
		buf := make([]byte, dimension/2)
		for i := 0; i < len(values); i += 2 {
			lo := nibble(values[i])
			var hi byte
			if i+1 < len(values) {
				hi = nibble(values[i+1])
			}
			buf[i/2] = lo | (hi << 4)
		}
		return buf, nil
	case cmn.DataTypeVectorBinary32:
		if dimension%32 != 0 {
			return nil, cmn.NewError(cmn.CodeMismatchedDimension, "binary32 requires dimension multiple of 32, got %d", dimension)
		}
		buf := make([]byte, (dimension/32)*4)
		for i, v := range values {
			if v != 0 {
				word := i / 32
				bit := uint(i % 32)
				w := binary.LittleEndian.Uint32(buf[word*4:])
				w |= 1 << bit
				binary.LittleEndian.PutUint32(buf[word*4:], w)
			}
		}
		return buf, nil
	case cmn.DataTypeVectorBinary64:
		if dimension%64 != 0 {
			return nil, cmn.NewError(cmn.CodeMismatchedDimension, "binary64 requires dimension multiple of 64, got %d", dimension)
		}
		buf := make([]byte, (dimension/64)*8)
		for i, v := range values {
			if v != 0 {
				word := i / 64
				bit := uint(i % 64)
				w := binary.LittleEndian.Uint64(buf[word*8:])
				w |= 1 << bit
				binary.LittleEndian.PutUint64(buf[word*8:], w)
			}
		}
		return buf, nil
	default:
		return nil, cmn.NewError(cmn.CodeInvalidDataType, "unsupported destination data type %s", destType)
	}
}

func nibble(v float64) byte {
	n := int8(v)
	return byte(n) & 0x0f
}

// float32ToFloat16 performs the IEEE-754 half-precision narrowing
// conversion §4.5 requires for the one supported narrowing pair.
func float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xff) - 127 + 15
	mant := bits & 0x7fffff

	switch {
	case exp <= 0:
		// Too small to represent as a normal half; flush to signed zero.
		return sign
	case exp >= 0x1f:
		// Overflow: saturate to signed infinity.
		return sign | 0x7c00
	default:
		return sign | uint16(exp<<10) | uint16(mant>>13)
	}
}

// float16ToFloat32 is float32ToFloat16's inverse, widening an IEEE-754
// half-precision value back to float32.
func float16ToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h & 0x3ff)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal half: value = mant * 2^-24.
		v := float32(mant) * float32(math.Pow(2, -24))
		return math.Float32frombits(sign | math.Float32bits(v))
	case 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | (mant << 13))
	default:
		return math.Float32frombits(sign | ((exp + 112) << 23) | (mant << 13))
	}
}

// decodeRawBytes interprets raw little-endian src, encoded in sourceType
// with the given dimension, into float64 elements for transcode's input.
func decodeRawBytes(src []byte, sourceType cmn.DataType, dimension int) ([]float64, error) {
	want := cmn.ExpectedByteLength(sourceType, dimension)
	if len(src) != want {
		return nil, cmn.NewError(cmn.CodeMismatchedDimension, "raw vector length %d, expected %d", len(src), want)
	}
	switch sourceType {
	case cmn.DataTypeVectorFP32:
		out := make([]float64, dimension)
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:])))
		}
		return out, nil
	case cmn.DataTypeVectorFP64:
		out := make([]float64, dimension)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*8:]))
		}
		return out, nil
	case cmn.DataTypeVectorInt16:
		out := make([]float64, dimension)
		for i := range out {
			out[i] = float64(int16(binary.LittleEndian.Uint16(src[i*2:])))
		}
		return out, nil
	case cmn.DataTypeVectorInt8:
		out := make([]float64, dimension)
		for i := range out {
			out[i] = float64(int8(src[i]))
		}
		return out, nil
	case cmn.DataTypeVectorFP16:
		out := make([]float64, dimension)
		for i := range out {
			out[i] = float64(float16ToFloat32(binary.LittleEndian.Uint16(src[i*2:])))
		}
		return out, nil
	case cmn.DataTypeVectorInt4:
		out := make([]float64, dimension)
		for i := range out {
			b := src[i/2]
			var nib byte
			if i%2 == 0 {
				nib = b & 0x0f
			} else {
				nib = (b >> 4) & 0x0f
			}
			if nib&0x8 != 0 {
				out[i] = float64(nib) - 16
			} else {
				out[i] = float64(nib)
			}
		}
		return out, nil
	case cmn.DataTypeVectorBinary32:
		out := make([]float64, dimension)
		for i := range out {
			word := binary.LittleEndian.Uint32(src[(i/32)*4:])
			if word&(1<<uint(i%32)) != 0 {
				out[i] = 1
			}
		}
		return out, nil
	case cmn.DataTypeVectorBinary64:
		out := make([]float64, dimension)
		for i := range out {
			word := binary.LittleEndian.Uint64(src[(i/64)*8:])
			if word&(1<<uint(i%64)) != 0 {
				out[i] = 1
			}
		}
		return out, nil
	default:
		return nil, cmn.NewError(cmn.CodeInvalidVectorFormat, "unsupported raw source data type %s", sourceType)
	}
}

// parseJSONNumbers converts a slice of already-unmarshalled JSON numeric
// strings/floats into float64 elements for transcode's input.
func parseJSONNumbers(raw []interface{}) ([]float64, error) {
	out := make([]float64, len(raw))
	for i, v := range raw {
		switch n := v.(type) {
		case float64:
			out[i] = n
		case string:
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil, cmn.NewError(cmn.CodeInvalidVectorFormat, "element %d not numeric: %q", i, n)
			}
			out[i] = f
		default:
			return nil, cmn.NewError(cmn.CodeInvalidVectorFormat, "element %d has unsupported JSON type", i)
		}
	}
	return out, nil
}
