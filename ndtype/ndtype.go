// Package ndtype - Tensor-Typen (Shape + Element-Typ)
//
// Dieses Modul enthaelt:
// - Type: Shape und Element-Typ eines Tensors
// - Parse: Parsing von "tensor<2x4xi32>" und "tensor<f32>"
// - Hilfsfunktionen fuer Shapes (NumElements, Strides)
package ndtype

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/ollama/constfold/dtype"
)

var ErrInvalidType = errors.New("invalid tensor type")

// Type ist ein statisch geformter Tensor-Typ
type Type struct {
	Shape []int64
	Elem  dtype.ElemType
}

// New erzeugt einen Tensor-Typ und prueft die Dimensionen
func New(shape []int64, elem dtype.ElemType) (Type, error) {
	t := Type{Shape: slices.Clone(shape), Elem: elem}
	if err := t.Validate(); err != nil {
		return Type{}, err
	}
	return t, nil
}

// Must ist wie New, bricht aber bei Fehlern ab. Nur fuer Konstanten und Tests.
func Must(shape []int64, elem dtype.ElemType) Type {
	t, err := New(shape, elem)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Type) Validate() error {
	for i, d := range t.Shape {
		if d < 0 {
			return fmt.Errorf("%w: negative dimension %d at index %d", ErrInvalidType, d, i)
		}
	}
	return t.Elem.Validate()
}

func (t Type) Rank() int {
	return len(t.Shape)
}

// NumElements gibt die Anzahl der Elemente zurueck (1 fuer Skalare)
func (t Type) NumElements() int64 {
	return NumElements(t.Shape)
}

// StorageSize gibt die Byte-Groesse des voll materialisierten Puffers zurueck
func (t Type) StorageSize() int64 {
	return dtype.StorageSize(t.Elem.Storage, t.NumElements())
}

func (t Type) WithShape(shape []int64) Type {
	return Type{Shape: slices.Clone(shape), Elem: t.Elem}
}

func (t Type) WithElem(elem dtype.ElemType) Type {
	return Type{Shape: slices.Clone(t.Shape), Elem: elem}
}

func (t Type) Equal(o Type) bool {
	return t.Elem == o.Elem && slices.Equal(t.Shape, o.Shape)
}

func (t Type) String() string {
	var sb strings.Builder
	sb.WriteString("tensor<")
	for _, d := range t.Shape {
		sb.WriteString(strconv.FormatInt(d, 10))
		sb.WriteByte('x')
	}
	sb.WriteString(t.Elem.String())
	sb.WriteByte('>')
	return sb.String()
}

// Parse parst die Textform eines Tensor-Typs
func Parse(s string) (Type, error) {
	s = strings.TrimSpace(s)
	body, ok := strings.CutPrefix(s, "tensor<")
	if !ok {
		return Type{}, fmt.Errorf("%w: expected 'tensor<' in %q", ErrInvalidType, s)
	}

	body, ok = strings.CutSuffix(body, ">")
	if !ok {
		return Type{}, fmt.Errorf("%w: unterminated %q", ErrInvalidType, s)
	}

	var shape []int64
	for {
		// Element-Typen beginnen nie mit einer Ziffer
		if body == "" || body[0] < '0' || body[0] > '9' {
			break
		}

		dim, rest, ok := strings.Cut(body, "x")
		if !ok {
			return Type{}, fmt.Errorf("%w: missing element type in %q", ErrInvalidType, s)
		}

		n, err := strconv.ParseInt(dim, 10, 64)
		if err != nil {
			return Type{}, fmt.Errorf("%w: dimension %q", ErrInvalidType, dim)
		}

		shape = append(shape, n)
		body = rest
	}

	elem, err := dtype.ParseElemType(body)
	if err != nil {
		return Type{}, fmt.Errorf("%w: %w", ErrInvalidType, err)
	}

	return New(shape, elem)
}

// NumElements multipliziert alle Dimensionen
func NumElements(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

// Strides berechnet row-major Strides in Elementen
func Strides(shape []int64) []int64 {
	strides := make([]int64, len(shape))
	acc := int64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

// Unravel wandelt einen linearen Index in Koordinaten um
func Unravel(index int64, shape []int64, coords []int64) {
	for i := len(shape) - 1; i >= 0; i-- {
		if shape[i] == 0 {
			coords[i] = 0
			continue
		}
		coords[i] = index % shape[i]
		index /= shape[i]
	}
}
