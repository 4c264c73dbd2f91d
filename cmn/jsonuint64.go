package cmn

import (
	"math"
	"strconv"
)

// JSONUint64 marshals as a JSON string and unmarshals from either a JSON
// string or a JSON number, matching the wire rule that every u64 field
// (revision, primary keys, LSNs, magic number, counts) must round-trip through JavaScript's
// float64-backed JSON parsers without losing precision.
type JSONUint64 uint64

func (u JSONUint64) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatUint(uint64(u), 10) + `"`), nil
}

func (u *JSONUint64) UnmarshalJSON(data []byte) error {
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return NewError(CodeDeserializeError, "parse uint64 %q: %v", string(data), err)
	}
	*u = JSONUint64(v)
	return nil
}

func (u JSONUint64) Uint64() uint64 { return uint64(u) }

// JSONFloat64 marshals NaN/+Inf/-Inf as quoted strings (JSON has no literal
// for them) and everything else as a plain number; unmarshal accepts both
// forms, matching the wire rule for query-score fields that may carry a
// non-finite distance.
type JSONFloat64 float64

func (f JSONFloat64) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	default:
		return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
	}
}

func (f *JSONFloat64) UnmarshalJSON(data []byte) error {
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		switch string(data[1 : len(data)-1]) {
		case "NaN":
			*f = JSONFloat64(math.NaN())
			return nil
		case "Infinity":
			*f = JSONFloat64(math.Inf(1))
			return nil
		case "-Infinity":
			*f = JSONFloat64(math.Inf(-1))
			return nil
		}
		data = data[1 : len(data)-1]
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return NewError(CodeDeserializeError, "parse float64 %q: %v", string(data), err)
	}
	*f = JSONFloat64(v)
	return nil
}

func (f JSONFloat64) Float64() float64 { return float64(f) }
