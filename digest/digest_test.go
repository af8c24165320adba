package digest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytes(t *testing.T) {
	a := Bytes([]byte{1, 2, 3})
	b := Bytes([]byte{1, 2, 3})
	c := Bytes([]byte{1, 2, 4})

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.False(t, a.IsZero())
	require.True(t, Hash{}.IsZero())
	require.Len(t, a.String(), 64)
	require.Equal(t, a.String()[:12], a.Short())
}

func TestDomains(t *testing.T) {
	// gleiche Bytes in verschiedenen Domaenen ergeben verschiedene Digests
	data := []byte("x")
	require.NotEqual(t, keyedHash(bufferDomainKey, data), keyedHash(valueDomainKey, data))
}

func TestOf(t *testing.T) {
	type value struct {
		Kind string   `cbor:"1,keyasint"`
		Data Hash     `cbor:"2,keyasint"`
		List []string `cbor:"3,keyasint"`
	}

	h := Bytes([]byte("payload"))
	a, err := Of(value{Kind: "dense", Data: h})
	require.NoError(t, err)
	b, err := Of(value{Kind: "dense", Data: h, List: []string{}})
	require.NoError(t, err)
	c, err := Of(value{Kind: "dense_resource", Data: h})
	require.NoError(t, err)

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)

	_, err = Of(make(chan int))
	require.Error(t, err)
}
