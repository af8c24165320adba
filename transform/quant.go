// Package transform - Quantisierung und Speicherformate
//
// Dieses Modul enthaelt:
// - Quantize/Dequantize: Float <-> uniform quantisiert (per Tensor)
// - QuantCast: Austausch der Quantisierungsparameter ohne Datenaenderung
// - BitPack: Packen von Integer-Speicher auf 4 Bit
// - Swizzle: Hardware-Layout mit 512-Byte-Ausrichtung
package transform

import (
	"fmt"

	"github.com/ollama/constfold/content"
	"github.com/ollama/constfold/dtype"
	"github.com/ollama/constfold/ndtype"
)

type Quantize struct {
	To dtype.ElemType
}

func (t Quantize) validate() error {
	if !t.To.IsQuantized() {
		return fmt.Errorf("target %s is not quantized", t.To)
	}
	return t.To.Validate()
}

func (t Quantize) inferType(in ndtype.Type) (ndtype.Type, error) {
	if err := t.validate(); err != nil {
		return ndtype.Type{}, err
	}
	if in.Elem.IsQuantized() || !in.Elem.Storage.IsFloat() {
		return ndtype.Type{}, fmt.Errorf("can only quantize float types, got %s", in.Elem)
	}
	return in.WithElem(t.To), nil
}

func (t Quantize) apply(in *content.Content, out ndtype.Type) (*content.Content, error) {
	vals, err := in.StoredFloat64s()
	if err != nil {
		return nil, err
	}

	q := make([]int64, len(vals))
	for i, v := range vals {
		q[i] = dtype.RoundInt(t.To.Storage, v/t.To.Scale+float64(t.To.ZeroPoint))
	}

	raw, err := dtype.EncodeInt64s(t.To.Storage, q)
	if err != nil {
		return nil, err
	}
	return content.FromRawBuffer(out, raw, in.IsSplat())
}

// Dequantize berechnet real = Scale * (stored - ZeroPoint) im Expressed-Typ
type Dequantize struct{}

func (Dequantize) inferType(in ndtype.Type) (ndtype.Type, error) {
	if !in.Elem.IsQuantized() {
		return ndtype.Type{}, fmt.Errorf("can only dequantize quantized types, got %s", in.Elem)
	}
	return in.WithElem(dtype.Scalar(in.Elem.Expressed)), nil
}

func (Dequantize) apply(in *content.Content, out ndtype.Type) (*content.Content, error) {
	elem := in.Type().Elem
	q, err := in.StoredInt64s()
	if err != nil {
		return nil, err
	}

	vals := make([]float64, len(q))
	for i, v := range q {
		vals[i] = elem.Scale * float64(v-elem.ZeroPoint)
	}

	raw, err := dtype.EncodeFloat64s(elem.Expressed, vals)
	if err != nil {
		return nil, err
	}
	return content.FromRawBuffer(out, raw, in.IsSplat())
}

// QuantCast ersetzt den quantisierten Typ, die gespeicherten Bits bleiben unveraendert
type QuantCast struct {
	To dtype.ElemType
}

func (t QuantCast) validate() error {
	if !t.To.IsQuantized() {
		return fmt.Errorf("target %s is not quantized", t.To)
	}
	return t.To.Validate()
}

func (t QuantCast) inferType(in ndtype.Type) (ndtype.Type, error) {
	if err := t.validate(); err != nil {
		return ndtype.Type{}, err
	}
	if !in.Elem.IsQuantized() {
		return ndtype.Type{}, fmt.Errorf("can only cast quantized types, got %s", in.Elem)
	}
	if in.Elem.Storage.Bits() != t.To.Storage.Bits() {
		return ndtype.Type{}, fmt.Errorf("storage width differs: %s vs %s", in.Elem.Storage, t.To.Storage)
	}
	return in.WithElem(t.To), nil
}

// BitPack packt Integer-Speicher auf Width Bits. Werte ausserhalb des Bereichs werden gesaettigt.
type BitPack struct {
	Width int
}

func (t BitPack) validate() error {
	if t.Width != 4 {
		return fmt.Errorf("unsupported width %d", t.Width)
	}
	return nil
}

func (t BitPack) inferType(in ndtype.Type) (ndtype.Type, error) {
	if err := t.validate(); err != nil {
		return ndtype.Type{}, err
	}
	storage := in.Elem.Storage
	if !storage.IsInt() || storage.IsSubByte() {
		return ndtype.Type{}, fmt.Errorf("can only pack byte-sized integer storage, got %s", storage)
	}

	packed := dtype.U4
	if storage.IsSigned() {
		packed = dtype.I4
	}
	elem := in.Elem.WithStorage(packed)
	if err := elem.Validate(); err != nil {
		return ndtype.Type{}, err
	}
	return in.WithElem(elem), nil
}

func (t BitPack) apply(in *content.Content, out ndtype.Type) (*content.Content, error) {
	vals, err := in.StoredInt64s()
	if err != nil {
		return nil, err
	}
	raw, err := dtype.EncodeInt64s(out.Elem.Storage, vals)
	if err != nil {
		return nil, err
	}
	return content.FromRawBuffer(out, raw, in.IsSplat())
}

const (
	swizzleAlign = 512
	swizzleLine  = 16
)

// Swizzle ordnet den Speicher fuer die Hardware um. Die Ausgabe ist ein
// Byte-Tensor, dessen Groesse auf 512 Bytes aufgerundet ist.
type Swizzle struct {
	Key int
}

func (t Swizzle) validate() error {
	if t.Key < 1 || t.Key > 5 {
		return fmt.Errorf("swizzle key %d out of range [1, 5]", t.Key)
	}
	return nil
}

func (t Swizzle) inferType(in ndtype.Type) (ndtype.Type, error) {
	if err := t.validate(); err != nil {
		return ndtype.Type{}, err
	}
	size := in.StorageSize()
	size = (size + swizzleAlign - 1) / swizzleAlign * swizzleAlign
	return ndtype.Type{Shape: []int64{size}, Elem: dtype.Scalar(dtype.U8)}, nil
}

// line berechnet die Ziel-Zeile einer 16-Byte-Zeile
func (t Swizzle) line(j int) int {
	bits := min(t.Key, 3)
	return j ^ ((j >> 3) & (1<<bits - 1))
}

func (t Swizzle) apply(in *content.Content, out ndtype.Type) (*content.Content, error) {
	src, err := in.Expanded()
	if err != nil {
		return nil, err
	}

	padded := make([]byte, out.StorageSize())
	copy(padded, src)

	dst := make([]byte, len(padded))
	for j := range len(padded) / swizzleLine {
		d := t.line(j)
		copy(dst[d*swizzleLine:(d+1)*swizzleLine], padded[j*swizzleLine:(j+1)*swizzleLine])
	}

	return content.FromRawBuffer(out, dst, false)
}
