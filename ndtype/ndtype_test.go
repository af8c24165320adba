// ndtype_test.go - Unit Tests fuer Tensor-Typen
package ndtype

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ollama/constfold/dtype"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in    string
		shape []int64
		elem  dtype.ElemType
	}{
		{"tensor<2x4xi32>", []int64{2, 4}, dtype.Scalar(dtype.I32)},
		{"tensor<f16>", nil, dtype.Scalar(dtype.F16)},
		{"tensor<0x3xui4>", []int64{0, 3}, dtype.Scalar(dtype.U4)},
		{"tensor<8x!quant.uniform<i8:f32, 0.25:-3>>", []int64{8}, dtype.ElemType{Storage: dtype.I8, Expressed: dtype.F32, Scale: 0.25, ZeroPoint: -3}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			typ, err := Parse(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.elem, typ.Elem)
			if diff := cmp.Diff(tt.shape, typ.Shape); diff != "" {
				t.Errorf("shape mismatch (-want +got):\n%s", diff)
			}
			require.Equal(t, tt.in, typ.String())
		})
	}

	for _, bad := range []string{"tensor<2x4>", "vector<4xi32>", "tensor<-1xi32>", "tensor<2xfoo>"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q) sollte fehlschlagen", bad)
		}
	}
}

func TestStridesAndUnravel(t *testing.T) {
	shape := []int64{2, 3, 4}
	if diff := cmp.Diff([]int64{12, 4, 1}, Strides(shape)); diff != "" {
		t.Errorf("Strides mismatch (-want +got):\n%s", diff)
	}

	coords := make([]int64, 3)
	Unravel(17, shape, coords)
	if diff := cmp.Diff([]int64{1, 1, 1}, coords); diff != "" {
		t.Errorf("Unravel mismatch (-want +got):\n%s", diff)
	}
}

func TestStorageSize(t *testing.T) {
	typ := Must([]int64{3, 3}, dtype.Scalar(dtype.I4))
	if got := typ.StorageSize(); got != 5 {
		t.Errorf("StorageSize() = %d, erwartet 5", got)
	}
	if got := typ.NumElements(); got != 9 {
		t.Errorf("NumElements() = %d, erwartet 9", got)
	}
}
