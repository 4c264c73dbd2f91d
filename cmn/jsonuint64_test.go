package cmn

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONUint64RoundTrip(t *testing.T) {
	b, err := json.Marshal(JSONUint64(18446744073709551615))
	require.NoError(t, err)
	require.Equal(t, `"18446744073709551615"`, string(b))

	var u JSONUint64
	require.NoError(t, json.Unmarshal(b, &u))
	require.Equal(t, uint64(18446744073709551615), u.Uint64())
}

func TestJSONUint64AcceptsBareNumber(t *testing.T) {
	var u JSONUint64
	require.NoError(t, json.Unmarshal([]byte(`42`), &u))
	require.Equal(t, uint64(42), u.Uint64())
}

func TestJSONFloat64EncodesSpecialValues(t *testing.T) {
	b, err := json.Marshal(JSONFloat64(math.NaN()))
	require.NoError(t, err)
	require.Equal(t, `"NaN"`, string(b))

	b, err = json.Marshal(JSONFloat64(math.Inf(1)))
	require.NoError(t, err)
	require.Equal(t, `"Infinity"`, string(b))

	b, err = json.Marshal(JSONFloat64(1.5))
	require.NoError(t, err)
	require.Equal(t, `1.5`, string(b))
}

func TestJSONFloat64DecodesSpecialAndPlainForms(t *testing.T) {
	var f JSONFloat64
	require.NoError(t, json.Unmarshal([]byte(`"NaN"`), &f))
	require.True(t, math.IsNaN(f.Float64()))

	require.NoError(t, json.Unmarshal([]byte(`"-Infinity"`), &f))
	require.True(t, math.IsInf(f.Float64(), -1))

	require.NoError(t, json.Unmarshal([]byte(`2.25`), &f))
	require.Equal(t, 2.25, f.Float64())
}
