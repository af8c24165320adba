// Package transform - Layout-Transformationen
//
// Dieses Modul enthaelt:
// - Reorder: Achsen-Permutation (via pdevine/tensor)
// - Pad: Auffuellen an den Raendern
// - Broadcast: NumPy-Broadcasting auf eine Ziel-Shape
// - SubView: Ausschnitt mit Offset und Shape
// - Reshape: neue Shape bei gleicher Elementanzahl
package transform

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/pdevine/tensor"

	"github.com/ollama/constfold/content"
	"github.com/ollama/constfold/dtype"
	"github.com/ollama/constfold/ndtype"
)

var errSubByte = errors.New("sub-byte storage is not byte addressable")

func validateShape(shape []int64) error {
	for i, d := range shape {
		if d < 0 {
			return fmt.Errorf("negative dimension %d at index %d", d, i)
		}
	}
	return nil
}

// elemBytes gibt Elementgroesse und voll ausgerollten Puffer zurueck
func elemBytes(in *content.Content) (int, []byte, error) {
	storage := in.StorageElemType()
	if storage.IsSubByte() {
		return 0, nil, fmt.Errorf("%w: %s", errSubByte, storage)
	}
	src, err := in.Expanded()
	if err != nil {
		return 0, nil, err
	}
	return storage.Size(), src, nil
}

// Reorder permutiert die Achsen: Ausgabe-Achse i ist Eingabe-Achse Perm[i]
type Reorder struct {
	Perm []int
}

func NewReorder(perm ...int) Reorder {
	return Reorder{Perm: slices.Clone(perm)}
}

func (t Reorder) validate() error {
	seen := make([]bool, len(t.Perm))
	for _, p := range t.Perm {
		if p < 0 || p >= len(t.Perm) || seen[p] {
			return fmt.Errorf("%v is not a permutation", t.Perm)
		}
		seen[p] = true
	}
	return nil
}

func (t Reorder) isIdentity() bool {
	for i, p := range t.Perm {
		if i != p {
			return false
		}
	}
	return true
}

func (t Reorder) inferType(in ndtype.Type) (ndtype.Type, error) {
	if len(t.Perm) != in.Rank() {
		return ndtype.Type{}, fmt.Errorf("permutation of rank %d for rank %d", len(t.Perm), in.Rank())
	}
	if err := t.validate(); err != nil {
		return ndtype.Type{}, err
	}
	shape := make([]int64, len(t.Perm))
	for i, p := range t.Perm {
		shape[i] = in.Shape[p]
	}
	return in.WithShape(shape), nil
}

func (t Reorder) apply(in *content.Content, out ndtype.Type) (*content.Content, error) {
	if in.IsSplat() || t.isIdentity() || in.NumElements() == 0 {
		return content.FromRawBuffer(out, in.RawStorage(), in.IsSplat())
	}

	size, src, err := elemBytes(in)
	if err != nil {
		return nil, err
	}

	dims := make([]int, in.Type().Rank())
	for i, d := range in.Type().Shape {
		dims[i] = int(d)
	}

	var dst []byte
	switch size {
	case 1:
		dst, err = permute(slices.Clone(src), dims, t.Perm)
	case 2:
		dst, err = permuteWords(src, dims, t.Perm, binary.LittleEndian.Uint16, binary.LittleEndian.PutUint16)
	case 4:
		dst, err = permuteWords(src, dims, t.Perm, binary.LittleEndian.Uint32, binary.LittleEndian.PutUint32)
	case 8:
		dst, err = permuteWords(src, dims, t.Perm, binary.LittleEndian.Uint64, binary.LittleEndian.PutUint64)
	default:
		err = fmt.Errorf("unsupported element size %d", size)
	}
	if err != nil {
		return nil, err
	}

	return content.FromRawBuffer(out, dst, false)
}

type word interface {
	~uint16 | ~uint32 | ~uint64
}

func permuteWords[W word](src []byte, dims, perm []int, get func([]byte) W, put func([]byte, W)) ([]byte, error) {
	var zero W
	size := binary.Size(zero)

	words := make([]W, len(src)/size)
	for i := range words {
		words[i] = get(src[i*size:])
	}

	words, err := permute(words, dims, perm)
	if err != nil {
		return nil, err
	}

	dst := make([]byte, len(src))
	for i, w := range words {
		put(dst[i*size:], w)
	}
	return dst, nil
}

// permute transponiert die Daten physisch. Die Backing-Slice wird dabei ueberschrieben.
func permute[T any](data []T, dims, perm []int) ([]T, error) {
	n := tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data))
	if err := n.T(perm...); err != nil {
		return nil, err
	}
	if err := n.Transpose(); err != nil {
		return nil, err
	}

	out, ok := n.Data().([]T)
	if !ok {
		return nil, fmt.Errorf("unexpected tensor backing %T", n.Data())
	}
	return out, nil
}

// Pad fuellt den Tensor an den Raendern auf. Fill ist der gespeicherte
// Fuellwert und wird aus dem Eingabetyp abgeleitet (Nullpunkt bei Quantisierung).
type Pad struct {
	Before []int64
	After  []int64
	Fill   int64
}

func NewPad(before, after []int64) Pad {
	return Pad{Before: slices.Clone(before), After: slices.Clone(after)}
}

func (t Pad) validate() error {
	if len(t.Before) != len(t.After) {
		return fmt.Errorf("padding ranks differ: %d vs %d", len(t.Before), len(t.After))
	}
	for i := range t.Before {
		if t.Before[i] < 0 || t.After[i] < 0 {
			return fmt.Errorf("negative padding at index %d", i)
		}
	}
	return nil
}

func (t Pad) isNoop() bool {
	for i := range t.Before {
		if t.Before[i] != 0 || t.After[i] != 0 {
			return false
		}
	}
	return true
}

func (t Pad) update(in ndtype.Type) Pad {
	fill := int64(0)
	if in.Elem.IsQuantized() {
		fill = in.Elem.ZeroPoint
	}
	if fill == t.Fill {
		return t
	}
	return Pad{Before: t.Before, After: t.After, Fill: fill}
}

func (t Pad) inferType(in ndtype.Type) (ndtype.Type, error) {
	if err := t.validate(); err != nil {
		return ndtype.Type{}, err
	}
	if len(t.Before) != in.Rank() {
		return ndtype.Type{}, fmt.Errorf("padding of rank %d for rank %d", len(t.Before), in.Rank())
	}
	shape := make([]int64, in.Rank())
	for i, d := range in.Shape {
		shape[i] = d + t.Before[i] + t.After[i]
	}
	return in.WithShape(shape), nil
}

func (t Pad) apply(in *content.Content, out ndtype.Type) (*content.Content, error) {
	if t.isNoop() {
		return content.FromRawBuffer(out, in.RawStorage(), in.IsSplat())
	}

	size, src, err := elemBytes(in)
	if err != nil {
		return nil, err
	}

	fill, err := dtype.EncodeInt64s(in.StorageElemType(), []int64{t.Fill})
	if err != nil {
		return nil, err
	}
	dst := bytes.Repeat(fill, int(out.NumElements()))

	inShape := in.Type().Shape
	outStrides := ndtype.Strides(out.Shape)
	coords := make([]int64, len(inShape))
	for i := range in.NumElements() {
		ndtype.Unravel(i, inShape, coords)
		var o int64
		for d, c := range coords {
			o += (c + t.Before[d]) * outStrides[d]
		}
		copy(dst[o*int64(size):(o+1)*int64(size)], src[i*int64(size):(i+1)*int64(size)])
	}

	return content.FromRawBuffer(out, dst, false)
}

// Broadcast erweitert den Tensor nach NumPy-Regeln auf Shape
type Broadcast struct {
	Shape []int64
}

func NewBroadcast(shape ...int64) Broadcast {
	return Broadcast{Shape: slices.Clone(shape)}
}

func (t Broadcast) inferType(in ndtype.Type) (ndtype.Type, error) {
	if err := validateShape(t.Shape); err != nil {
		return ndtype.Type{}, err
	}
	if in.Rank() > len(t.Shape) {
		return ndtype.Type{}, fmt.Errorf("cannot broadcast rank %d to rank %d", in.Rank(), len(t.Shape))
	}
	offset := len(t.Shape) - in.Rank()
	for i, d := range in.Shape {
		if d != 1 && d != t.Shape[i+offset] {
			return ndtype.Type{}, fmt.Errorf("dimension %d of size %d is not broadcastable to %d", i, d, t.Shape[i+offset])
		}
	}
	return in.WithShape(t.Shape), nil
}

func (t Broadcast) apply(in *content.Content, out ndtype.Type) (*content.Content, error) {
	if in.IsSplat() {
		return content.FromRawBuffer(out, in.RawStorage(), true)
	}

	size, src, err := elemBytes(in)
	if err != nil {
		return nil, err
	}

	inShape := in.Type().Shape
	inStrides := ndtype.Strides(inShape)
	offset := len(out.Shape) - len(inShape)
	coords := make([]int64, len(out.Shape))
	dst := make([]byte, out.StorageSize())
	for o := range out.NumElements() {
		ndtype.Unravel(o, out.Shape, coords)
		var i int64
		for d, dim := range inShape {
			if dim != 1 {
				i += coords[d+offset] * inStrides[d]
			}
		}
		copy(dst[o*int64(size):(o+1)*int64(size)], src[i*int64(size):(i+1)*int64(size)])
	}

	return content.FromRawBuffer(out, dst, false)
}

// SubView schneidet einen Bereich mit Offset und Shape aus
type SubView struct {
	Offset []int64
	Shape  []int64
}

func NewSubView(offset, shape []int64) SubView {
	return SubView{Offset: slices.Clone(offset), Shape: slices.Clone(shape)}
}

func (t SubView) validate() error {
	if len(t.Offset) != len(t.Shape) {
		return fmt.Errorf("offset rank %d differs from shape rank %d", len(t.Offset), len(t.Shape))
	}
	for i := range t.Offset {
		if t.Offset[i] < 0 {
			return fmt.Errorf("negative offset at index %d", i)
		}
	}
	return validateShape(t.Shape)
}

func (t SubView) inferType(in ndtype.Type) (ndtype.Type, error) {
	if err := t.validate(); err != nil {
		return ndtype.Type{}, err
	}
	if len(t.Shape) != in.Rank() {
		return ndtype.Type{}, fmt.Errorf("subview of rank %d for rank %d", len(t.Shape), in.Rank())
	}
	for i, d := range in.Shape {
		if t.Offset[i]+t.Shape[i] > d {
			return ndtype.Type{}, fmt.Errorf("subview [%d, %d) exceeds dimension %d of size %d", t.Offset[i], t.Offset[i]+t.Shape[i], i, d)
		}
	}
	return in.WithShape(t.Shape), nil
}

func (t SubView) apply(in *content.Content, out ndtype.Type) (*content.Content, error) {
	if in.IsSplat() {
		return content.FromRawBuffer(out, in.RawStorage(), true)
	}

	size, src, err := elemBytes(in)
	if err != nil {
		return nil, err
	}

	inStrides := ndtype.Strides(in.Type().Shape)
	coords := make([]int64, len(out.Shape))
	dst := make([]byte, out.StorageSize())
	for o := range out.NumElements() {
		ndtype.Unravel(o, out.Shape, coords)
		var i int64
		for d, c := range coords {
			i += (c + t.Offset[d]) * inStrides[d]
		}
		copy(dst[o*int64(size):(o+1)*int64(size)], src[i*int64(size):(i+1)*int64(size)])
	}

	return content.FromRawBuffer(out, dst, false)
}

// Reshape aendert die Shape bei gleicher Elementanzahl
type Reshape struct {
	Shape []int64
}

func NewReshape(shape ...int64) Reshape {
	return Reshape{Shape: slices.Clone(shape)}
}

func (t Reshape) inferType(in ndtype.Type) (ndtype.Type, error) {
	if err := validateShape(t.Shape); err != nil {
		return ndtype.Type{}, err
	}
	if n := ndtype.NumElements(t.Shape); n != in.NumElements() {
		return ndtype.Type{}, fmt.Errorf("cannot reshape %d elements into %v", in.NumElements(), t.Shape)
	}
	return in.WithShape(t.Shape), nil
}
