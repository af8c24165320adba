package content

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ollama/constfold/dtype"
	"github.com/ollama/constfold/ndtype"
)

func TestFromRawBuffer(t *testing.T) {
	typ := ndtype.Must([]int64{2, 2}, dtype.Scalar(dtype.I16))

	_, err := FromRawBuffer(typ, make([]byte, 8), false)
	require.NoError(t, err)

	_, err = FromRawBuffer(typ, make([]byte, 2), true)
	require.NoError(t, err)

	_, err = FromRawBuffer(typ, make([]byte, 6), false)
	require.True(t, errors.Is(err, ErrInvalidBuffer))

	_, err = FromRawBuffer(typ, make([]byte, 8), true)
	require.True(t, errors.Is(err, ErrInvalidBuffer))
}

func TestSplatExpansion(t *testing.T) {
	typ := ndtype.Must([]int64{3}, dtype.Scalar(dtype.I32))
	c, err := Splat(typ, 5)
	require.NoError(t, err)
	require.True(t, c.IsSplat())
	require.Len(t, c.RawStorage(), 4)

	vals, err := c.Int64s()
	require.NoError(t, err)
	if diff := cmp.Diff([]int64{5, 5, 5}, vals); diff != "" {
		t.Errorf("Int64s mismatch (-want +got):\n%s", diff)
	}

	full, err := c.Expanded()
	require.NoError(t, err)
	require.Len(t, full, 12)

	dst := make([]byte, 12)
	require.NoError(t, c.CopyTo(dst))
	require.Equal(t, full, dst)

	v, err := c.SplatInt64()
	require.NoError(t, err)
	require.Equal(t, int64(5), v)
}

func TestSubByteSplatExpansion(t *testing.T) {
	typ := ndtype.Must([]int64{3}, dtype.Scalar(dtype.I4))
	c, err := FromRawBuffer(typ, []byte{0x0d}, true)
	require.NoError(t, err)

	full, err := c.Expanded()
	require.NoError(t, err)
	require.Equal(t, []byte{0xdd, 0x0d}, full)

	vals, err := c.Int64s()
	require.NoError(t, err)
	require.Equal(t, []int64{-3, -3, -3}, vals)
}

func TestNotSplat(t *testing.T) {
	typ := ndtype.Must([]int64{2}, dtype.Scalar(dtype.F32))
	raw, err := dtype.EncodeFloat64s(dtype.F32, []float64{1.5, -2})
	require.NoError(t, err)

	c, err := FromRawBuffer(typ, raw, false)
	require.NoError(t, err)

	_, err = c.SplatFloat64()
	require.Error(t, err)

	f32, err := c.Float32s()
	require.NoError(t, err)
	require.Equal(t, []float32{1.5, -2}, f32)
}
