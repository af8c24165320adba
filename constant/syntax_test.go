package constant

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ollama/constfold/base"
	"github.com/ollama/constfold/dtype"
	"github.com/ollama/constfold/ndtype"
	"github.com/ollama/constfold/transform"
)

func TestString(t *testing.T) {
	q, err := dtype.Quantized(dtype.U8, dtype.F32, 0.5, 128)
	require.NoError(t, err)

	cases := []struct {
		name string
		attr ContentAttr
		want string
	}{
		{
			"list",
			mustNew(t, denseInts(t, []int64{4}, dtype.I32, 1, 2, 3, 4)),
			"dense<[1, 2, 3, 4]> : tensor<4xi32>",
		},
		{
			"splat",
			mustNew(t, denseFloats(t, []int64{2, 2}, dtype.F32, 1.5, 1.5, 1.5, 1.5), transform.Add{Bias: 1}),
			"dense<1.5> : tensor<2x2xf32>, [#const.Add<1>]",
		},
		{
			"quantized",
			mustNew(t, denseFloats(t, []int64{2}, dtype.F32, 1, 2), transform.Quantize{To: q}, transform.NewPad([]int64{1}, []int64{0})),
			"dense<[1, 2]> : tensor<2xf32>, [#const.Quantize<!quant.uniform<ui8:f32, 0.5:128>>, #const.Pad<[1], [0], 0>]",
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.attr.String())
		})
	}
}

func TestStringHex(t *testing.T) {
	vals := make([]int64, 17)
	for i := range vals {
		vals[i] = int64(i)
	}
	attr := mustNew(t, denseInts(t, []int64{17}, dtype.U8, vals...))
	require.Equal(t, `dense<"0x000102030405060708090A0B0C0D0E0F10"> : tensor<17xui8>`, attr.String())

	parsed, err := Parse(attr.String())
	require.NoError(t, err)
	require.True(t, attr.Equal(parsed))
}

func TestParseRoundTrip(t *testing.T) {
	cases := []string{
		"dense<[1, 2, 3, 4]> : tensor<4xi32>",
		"dense<[[1, 2], [3, 4]]> : tensor<2x2xi16>, [#const.Reorder<[1, 0]>, #const.BitPack<4>]",
		"dense<-7> : tensor<3xi8>",
		"dense<0.25> : tensor<f32>, [#const.Broadcast<[2, 2]>, #const.Scale<4>]",
		"ref<@weights> : tensor<2xf32>, [#const.Convert<f16>]",
		"dense<[1, 2]> : tensor<2xf32>, [#const.Quantize<!quant.uniform<ui8:f32, 0.5:128>>, #const.Pad<[1], [0], 128>, #const.Swizzle<3>]",
		"dense<[1, 1, 1, 1]> : tensor<4xi32>",
		`dense<"0x01000000010000000100000001000000"> : tensor<4xi32>`,
		"dense<[9223372036854775808, 18446744073709551615, 0]> : tensor<3xui64>",
		"dense<[-9223372036854775808, 9223372036854775807]> : tensor<2xi64>",
		"dense<[-128, 127, 0]> : tensor<3xi8>",
		"dense<[0, 255]> : tensor<2xui8>",
	}

	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			attr, err := Parse(s)
			require.NoError(t, err)

			again, err := Parse(attr.String())
			require.NoError(t, err)
			require.True(t, attr.Equal(again), "%s != %s", attr, again)
			require.Equal(t, attr.Key(), again.Key())
		})
	}
}

func TestStringEdgeValues(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"dense<[9223372036854775808, 1]> : tensor<2xui64>", "dense<[9223372036854775808, 1]> : tensor<2xui64>"},
		{"dense<[18446744073709551615, 0]> : tensor<2xui64>", "dense<[18446744073709551615, 0]> : tensor<2xui64>"},
		{"dense<[-9223372036854775808, 9223372036854775807]> : tensor<2xi64>", "dense<[-9223372036854775808, 9223372036854775807]> : tensor<2xi64>"},
		{"dense<[1, 1, 1, 1]> : tensor<4xi32>", "dense<1> : tensor<4xi32>"},
		{`dense<"0x0200000002000000"> : tensor<2xi32>`, "dense<2> : tensor<2xi32>"},
	}

	for _, tt := range cases {
		t.Run(tt.in, func(t *testing.T) {
			attr, err := Parse(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, attr.String())
		})
	}

	_, err := Parse("dense<[-1]> : tensor<1xui64>")
	var syntaxErr *SyntaxError
	require.True(t, errors.As(err, &syntaxErr))
}

func TestParseUniformIsSplat(t *testing.T) {
	fromValues := mustNew(t, denseInts(t, []int64{4}, dtype.I32, 1, 1, 1, 1))

	for _, s := range []string{
		"dense<[1, 1, 1, 1]> : tensor<4xi32>",
		`dense<"0x01000000010000000100000001000000"> : tensor<4xi32>`,
		"dense<1> : tensor<4xi32>",
	} {
		t.Run(s, func(t *testing.T) {
			attr, err := Parse(s)
			require.NoError(t, err)
			require.True(t, attr.IsSplat())
			require.True(t, attr.Equal(fromValues), "%s != %s", attr, fromValues)
			require.Equal(t, fromValues.Key(), attr.Key())
		})
	}
}

func TestParseNested(t *testing.T) {
	attr, err := Parse("dense<[[1, 2], [3, 4]]> : tensor<2x2xi16>")
	require.NoError(t, err)

	d, ok := attr.Base().(*base.Dense)
	require.True(t, ok)
	vals, err := dtype.DecodeInt64s(dtype.I16, d.Data(), 4)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3, 4}, vals)
	require.Equal(t, "dense<[1, 2, 3, 4]> : tensor<2x2xi16>", attr.String())
}

func TestParseResource(t *testing.T) {
	c := newTestContext(t)
	raw, err := dtype.EncodeInt64s(dtype.I32, []int64{5, 6})
	require.NoError(t, err)
	_, err = c.Resources().Insert("blob", raw)
	require.NoError(t, err)

	attr, err := c.Parse("dense_resource<blob> : tensor<2xi32>, [#const.Add<1>]")
	require.NoError(t, err)
	require.Equal(t, base.KindResource, attr.Base().Kind())
	require.Equal(t, "dense_resource<blob> : tensor<2xi32>, [#const.Add<1>]", attr.String())

	folded, err := c.Fold(attr, false)
	require.NoError(t, err)
	vals, err := folded.Int64s()
	require.NoError(t, err)
	require.Equal(t, []int64{6, 7}, vals)

	_, err = c.Parse("dense_resource<missing> : tensor<2xi32>")
	var syntaxErr *SyntaxError
	require.True(t, errors.As(err, &syntaxErr))

	// ohne Kontext gibt es keinen Ressourcen-Manager
	_, err = Parse("dense_resource<blob> : tensor<2xi32>")
	require.True(t, errors.As(err, &syntaxErr))
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"dense<[1, 2]>", "expected ':'"},
		{"dense<[1, 2]> : tensor<2xq8>", "unsupported element type"},
		{"dense<[1, x]> : tensor<2xi32>", "invalid syntax"},
		{"dense<[1, 2, 3]> : tensor<2xi32>", "doesn't match"},
		{"dense<[1, 2]> : tensor<2xi32>, #const.Add<1>", "brackets"},
		{"dense<[1, 2]> : tensor<2xi32>, [#const.Scal<2>]", `did you mean "Scale"`},
		{`dense<"0xZZ"> : tensor<1xi8>`, "invalid byte"},
		{"sparse<1> : tensor<2xi32>", "unknown base content"},
	}

	for _, tt := range cases {
		t.Run(tt.in, func(t *testing.T) {
			_, err := Parse(tt.in)
			var syntaxErr *SyntaxError
			require.True(t, errors.As(err, &syntaxErr), "erwartet SyntaxError, bekommen %v", err)
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("erwartet %q in %q", tt.want, err)
			}
		})
	}

	// Verletzungen der Listen-Invarianten sind keine Syntaxfehler
	_, err := Parse("dense<[1, 2]> : tensor<2xi32>, [#const.Swizzle<1>, #const.Add<1>]")
	require.ErrorIs(t, err, ErrInvalidTransformationList)
}

func TestParseTransformationOffset(t *testing.T) {
	s := "dense<[1, 2]> : tensor<2xi32>, [#const.Add<1>, #const.Bogus<1>]"
	_, err := Parse(s)
	var syntaxErr *SyntaxError
	require.True(t, errors.As(err, &syntaxErr))
	require.Equal(t, strings.Index(s, "#const.Bogus"), syntaxErr.Offset)
}

func TestParseSymbolType(t *testing.T) {
	attr, err := Parse("ref<@w> : tensor<2x3xbf16>")
	require.NoError(t, err)
	require.Equal(t, base.KindSymbol, attr.Base().Kind())
	require.True(t, attr.Type().Equal(ndtype.Must([]int64{2, 3}, dtype.Scalar(dtype.BF16))))
}
