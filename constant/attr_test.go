package constant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ollama/constfold/base"
	"github.com/ollama/constfold/dtype"
	"github.com/ollama/constfold/transform"
)

func TestNewVerify(t *testing.T) {
	b := denseInts(t, []int64{4}, dtype.I8, 1, 2, 3, 4)

	cases := []struct {
		name string
		ts   []transform.Transformation
		err  error
	}{
		{"empty", nil, nil},
		{"ordered", []transform.Transformation{transform.Add{Bias: 1}, transform.BitPack{Width: 4}, transform.Swizzle{Key: 1}}, nil},
		{"none after last", []transform.Transformation{transform.Swizzle{Key: 1}, transform.Add{Bias: 1}}, ErrInvalidTransformationList},
		{"none after preferred last", []transform.Transformation{transform.BitPack{Width: 4}, transform.Add{Bias: 1}}, ErrInvalidTransformationList},
		{"two last", []transform.Transformation{transform.Swizzle{Key: 1}, transform.Swizzle{Key: 2}}, ErrInvalidTransformationList},
		{"nil entry", []transform.Transformation{transform.Add{Bias: 1}, nil}, ErrInvalidTransformationList},
		{"invalid params", []transform.Transformation{transform.NewReorder(0, 0)}, ErrInvalidTransformationList},
		{"type mismatch", []transform.Transformation{transform.NewReshape(3)}, ErrInvalidTransformationList},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(b, tt.ts...)
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.err)
		})
	}

	_, err := New(nil)
	require.ErrorIs(t, err, base.ErrInvalidBaseContent)
}

func TestNullAttr(t *testing.T) {
	var a ContentAttr
	require.True(t, a.IsNull())
	require.Nil(t, a.Base())
	require.Empty(t, a.Transformations())
	require.False(t, a.IsSplat())
	require.True(t, a.Key().IsZero())
	require.Equal(t, "<<NULL ATTRIBUTE>>", a.String())
	require.True(t, a.Equal(ContentAttr{}))

	var c *Context
	_, err := c.Fold(a, false)
	require.ErrorIs(t, err, ErrNullContent)
	_, err = c.AddTransformation(a, transform.Add{Bias: 1})
	require.ErrorIs(t, err, ErrNullContent)
}

func TestInferFinalTypeAndSplat(t *testing.T) {
	b := denseInts(t, []int64{4}, dtype.I32, 1, 1, 1, 1)
	require.True(t, b.IsSplat())

	attr := mustNew(t, b, transform.NewBroadcast(2, 4), transform.Add{Bias: 3})
	require.Equal(t, []int64{2, 4}, attr.Type().Shape)
	require.Equal(t, dtype.Scalar(dtype.I32), attr.Type().Elem)
	require.True(t, attr.IsSplat())

	padded := mustNew(t, b, transform.NewPad([]int64{1}, []int64{0}))
	require.Equal(t, []int64{5}, padded.Type().Shape)
	require.False(t, padded.IsSplat())

	swizzled := mustNew(t, b, transform.Swizzle{Key: 1})
	require.Equal(t, []int64{512}, swizzled.Type().Shape)
	require.Equal(t, dtype.Scalar(dtype.U8), swizzled.Type().Elem)
	require.False(t, swizzled.IsSplat())
}

func TestEqualAndKey(t *testing.T) {
	a := mustNew(t, denseInts(t, []int64{2}, dtype.I32, 1, 2), transform.Add{Bias: 1}, transform.NewReshape(2, 1))
	b := mustNew(t, denseInts(t, []int64{2}, dtype.I32, 1, 2), transform.Add{Bias: 1}, transform.NewReshape(2, 1))
	c := mustNew(t, denseInts(t, []int64{2}, dtype.I32, 1, 2), transform.Add{Bias: 2}, transform.NewReshape(2, 1))
	d := mustNew(t, denseInts(t, []int64{2}, dtype.I32, 2, 1), transform.Add{Bias: 1}, transform.NewReshape(2, 1))

	require.True(t, a.Equal(b))
	require.Equal(t, a.Key(), b.Key())

	require.False(t, a.Equal(c))
	require.NotEqual(t, a.Key(), c.Key())

	require.False(t, a.Equal(d))
	require.NotEqual(t, a.Key(), d.Key())

	require.False(t, a.Equal(ContentAttr{}))
}

func TestTransformationsIsCopy(t *testing.T) {
	attr := mustNew(t, denseInts(t, []int64{2}, dtype.I32, 1, 2), transform.Add{Bias: 1})
	ts := attr.Transformations()
	ts[0] = transform.Add{Bias: 100}

	if !transform.Equal(attr.Transformations()[0], transform.Add{Bias: 1}) {
		t.Error("erwartet unveraenderte Transformationsliste")
	}
}

func TestStripAndLastTransformationsFrom(t *testing.T) {
	add := transform.Add{Bias: 1}
	scale := transform.Scale{Factor: 2}
	attr := mustNew(t, denseInts(t, []int64{2}, dtype.I32, 1, 2), add, scale, add, transform.BitPack{Width: 4})

	head, ok := attr.StripTransformationsFrom(add)
	require.True(t, ok)
	require.Len(t, head.Transformations(), 2)

	tail, ok := attr.LastTransformationsFrom(add)
	require.True(t, ok)
	require.Len(t, tail, 2)
	require.True(t, transform.Equal(add, tail[0]))

	// Praefix und Suffix ergeben wieder den urspruenglichen Wert
	rebuilt := mustNew(t, head.Base(), append(head.Transformations(), tail...)...)
	require.True(t, attr.Equal(rebuilt))
	require.Equal(t, attr.Key(), rebuilt.Key())

	head, ok = attr.StripTransformationsFrom(scale)
	require.True(t, ok)
	require.Len(t, head.Transformations(), 1)

	_, ok = attr.StripTransformationsFrom(transform.Add{Bias: 5})
	require.False(t, ok)
	_, ok = attr.LastTransformationsFrom(transform.Add{Bias: 5})
	require.False(t, ok)
}

func TestFoldErrorMessage(t *testing.T) {
	attr := mustNew(t, denseInts(t, []int64{2}, dtype.I32, 1, 2), transform.Add{Bias: 1})
	err := &FoldError{Index: 0, Transformation: transform.Add{Bias: 1}, Attr: attr, Err: errors.New("boom")}

	require.Contains(t, err.Error(), attr.Key().Short())
	require.Contains(t, err.Error(), "#const.Add<1>")
	require.Contains(t, err.Error(), "boom")

	err = &FoldError{Index: -1, Attr: attr, Err: base.ErrUnresolved}
	require.Contains(t, err.Error(), "base content")
	require.ErrorIs(t, err, ErrUnresolved)
}
