package constant

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ollama/constfold/base"
	"github.com/ollama/constfold/dtype"
	"github.com/ollama/constfold/logutil"
	"github.com/ollama/constfold/ndtype"
	"github.com/ollama/constfold/transform"
)

func denseInts(t *testing.T, shape []int64, d dtype.DType, vals ...int64) *base.Dense {
	t.Helper()
	b, err := base.DenseFromInt64s(ndtype.Must(shape, dtype.Scalar(d)), vals)
	require.NoError(t, err)
	return b
}

func denseFloats(t *testing.T, shape []int64, d dtype.DType, vals ...float64) *base.Dense {
	t.Helper()
	b, err := base.DenseFromFloat64s(ndtype.Must(shape, dtype.Scalar(d)), vals)
	require.NoError(t, err)
	return b
}

func mustNew(t *testing.T, b base.Content, ts ...transform.Transformation) ContentAttr {
	t.Helper()
	attr, err := New(b, ts...)
	require.NoError(t, err)
	return attr
}

func newTestContext(t *testing.T, opts ...Option) *Context {
	t.Helper()
	c := NewContext(append([]Option{WithLogger(logutil.Discard), WithCache(true)}, opts...)...)
	t.Cleanup(c.Close)
	return c
}

// requireOrdered prueft die Form [NONE]* [PREFERRED_LAST]* [LAST]?
func requireOrdered(t *testing.T, ts []transform.Transformation) {
	t.Helper()
	last := transform.PositionNone
	for i, tr := range ts {
		pos := transform.PositionOf(tr)
		if last == transform.PositionLast || pos < last {
			t.Fatalf("Transformation #%d %s verletzt die Reihenfolge", i, transform.String(tr))
		}
		last = pos
	}
}
