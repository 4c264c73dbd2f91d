package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vsearchio/vsearch/cmn"
)

func TestTranscodeFP32Identity(t *testing.T) {
	out, err := transcode([]float64{1.5, -2.25, 3.0, 0}, cmn.DataTypeVectorFP32, cmn.DataTypeVectorFP32, 4)
	require.NoError(t, err)
	require.Len(t, out, 16)
}

func TestTranscodeFP32ToFP16Narrowing(t *testing.T) {
	out, err := transcode([]float64{1.5, -2.25}, cmn.DataTypeVectorFP32, cmn.DataTypeVectorFP16, 2)
	require.NoError(t, err)
	require.Len(t, out, 4)
}

func TestTranscodeRejectsUnsupportedPairs(t *testing.T) {
	_, err := transcode([]float64{1, 2, 3, 4}, cmn.DataTypeVectorFP32, cmn.DataTypeVectorInt8, 4)
	require.Error(t, err)
	require.Equal(t, cmn.CodeMismatchedDataType, cmn.AsCode(err))

	_, err = transcode([]float64{1, 2}, cmn.DataTypeVectorFP16, cmn.DataTypeVectorFP32, 2)
	require.Error(t, err)
	require.Equal(t, cmn.CodeMismatchedDataType, cmn.AsCode(err))
}

func TestExpectedByteLengthMatchesTranscode(t *testing.T) {
	cases := []struct {
		dt        cmn.DataType
		dimension int
	}{
		{cmn.DataTypeVectorFP32, 8},
		{cmn.DataTypeVectorFP64, 8},
		{cmn.DataTypeVectorInt16, 8},
		{cmn.DataTypeVectorInt8, 8},
		{cmn.DataTypeVectorInt4, 8},
		{cmn.DataTypeVectorBinary32, 64},
		{cmn.DataTypeVectorBinary64, 128},
	}
	for _, c := range cases {
		values := make([]float64, c.dimension)
		out, err := transcode(values, c.dt, c.dt, c.dimension)
		require.NoError(t, err)
		require.Equal(t, cmn.ExpectedByteLength(c.dt, c.dimension), len(out))
	}
}

func TestTranscodeInt4PacksTwoPerByte(t *testing.T) {
	out, err := transcode([]float64{1, 2, 3, 4}, cmn.DataTypeVectorInt4, cmn.DataTypeVectorInt4, 4)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, byte(1)|(byte(2)<<4), out[0])
	require.Equal(t, byte(3)|(byte(4)<<4), out[1])
}

func TestDecodeRawBytesRoundTrip(t *testing.T) {
	raw, err := transcode([]float64{1, 2, 3, 4}, cmn.DataTypeVectorFP32, cmn.DataTypeVectorFP32, 4)
	require.NoError(t, err)

	values, err := decodeRawBytes(raw, cmn.DataTypeVectorFP32, 4)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3, 4}, values)
}

func TestTranscodeRejectsElementCountMismatch(t *testing.T) {
	_, err := transcode([]float64{1, 2, 3}, cmn.DataTypeVectorBinary32, cmn.DataTypeVectorBinary32, 32)
	require.Error(t, err)
	require.Equal(t, cmn.CodeMismatchedDimension, cmn.AsCode(err))

	_, err = transcode(make([]float64, 64), cmn.DataTypeVectorBinary32, cmn.DataTypeVectorBinary32, 32)
	require.Error(t, err)
	require.Equal(t, cmn.CodeMismatchedDimension, cmn.AsCode(err))
}

func TestDecodeRawBytesIdentityForAllSourceTypes(t *testing.T) {
	cases := []struct {
		dt        cmn.DataType
		dimension int
	}{
		{cmn.DataTypeVectorFP16, 4},
		{cmn.DataTypeVectorInt4, 4},
		{cmn.DataTypeVectorBinary32, 32},
		{cmn.DataTypeVectorBinary64, 64},
	}
	for _, c := range cases {
		raw, err := transcode(make([]float64, c.dimension), c.dt, c.dt, c.dimension)
		require.NoError(t, err)

		values, err := decodeRawBytes(raw, c.dt, c.dimension)
		require.NoError(t, err)
		require.Len(t, values, c.dimension)
	}
}

func TestFloat16RoundTrip(t *testing.T) {
	raw, err := transcode([]float64{1.5, -2.25}, cmn.DataTypeVectorFP32, cmn.DataTypeVectorFP16, 2)
	require.NoError(t, err)

	values, err := decodeRawBytes(raw, cmn.DataTypeVectorFP16, 2)
	require.NoError(t, err)
	require.InDelta(t, 1.5, values[0], 0.001)
	require.InDelta(t, -2.25, values[1], 0.001)
}
