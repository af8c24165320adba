package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string  `cbor:"1,keyasint"`
	Shape []int64 `cbor:"2,keyasint"`
}

func TestMarshalDeterministic(t *testing.T) {
	a, err := Marshal(map[string]int{"b": 2, "a": 1, "c": 3})
	require.NoError(t, err)
	b, err := Marshal(map[string]int{"c": 3, "a": 1, "b": 2})
	require.NoError(t, err)
	if !bytes.Equal(a, b) {
		t.Errorf("erwartet identische Kodierung, bekommen %x und %x", a, b)
	}
}

func TestNilAndEmptySlice(t *testing.T) {
	a, err := Marshal(record{Name: "x"})
	require.NoError(t, err)
	b, err := Marshal(record{Name: "x", Shape: []int64{}})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestUnmarshal(t *testing.T) {
	data, err := Marshal(record{Name: "w", Shape: []int64{2, 3}})
	require.NoError(t, err)

	var got record
	require.NoError(t, Unmarshal(data, &got))
	require.Equal(t, "w", got.Name)
	require.Equal(t, []int64{2, 3}, got.Shape)

	diag, err := Diagnose(data)
	require.NoError(t, err)
	require.Equal(t, `{1: "w", 2: [2, 3]}`, diag)
}
