// Package dtype - Byte-Codecs fuer Roh-Puffer
//
// Dieses Modul enthaelt:
// - DecodeFloat64s/EncodeFloat64s: Konvertierung Roh-Bytes <-> float64
// - DecodeInt64s/EncodeInt64s: verlustfreie Integer-Konvertierung
// - DecodeUint64s/EncodeUint64s: voller Wertebereich von ui64
// - Sub-Byte-Packing (4 Bit, niederwertiges Nibble zuerst)
//
// Alle Puffer sind little-endian und row-major.
package dtype

import (
	"encoding/binary"
	"fmt"
	"math"

	bfloat16 "github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

func checkLen(d DType, raw []byte, n int) error {
	if !d.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidElemType, d)
	}
	if want := StorageSize(d, int64(n)); int64(len(raw)) < want {
		return fmt.Errorf("buffer too short for %d x %s: have %d bytes, need %d", n, d, len(raw), want)
	}
	return nil
}

func nibble(raw []byte, i int) uint8 {
	b := raw[i/2]
	if i%2 == 0 {
		return b & 0x0f
	}
	return b >> 4
}

func setNibble(raw []byte, i int, v uint8) {
	if i%2 == 0 {
		raw[i/2] = raw[i/2]&0xf0 | v&0x0f
	} else {
		raw[i/2] = raw[i/2]&0x0f | v<<4
	}
}

// DecodeInt64s liest n Integer-Werte. Float-Typen werden abgeschnitten.
func DecodeInt64s(d DType, raw []byte, n int) ([]int64, error) {
	if err := checkLen(d, raw, n); err != nil {
		return nil, err
	}

	if d.IsFloat() {
		fs, err := DecodeFloat64s(d, raw, n)
		if err != nil {
			return nil, err
		}
		out := make([]int64, n)
		for i, f := range fs {
			out[i] = SaturateInt(I64, f)
		}
		return out, nil
	}

	out := make([]int64, n)
	for i := range out {
		switch d {
		case I4:
			out[i] = int64(int8(nibble(raw, i)<<4) >> 4)
		case U4:
			out[i] = int64(nibble(raw, i))
		case I8:
			out[i] = int64(int8(raw[i]))
		case U8:
			out[i] = int64(raw[i])
		case I16:
			out[i] = int64(int16(binary.LittleEndian.Uint16(raw[2*i:])))
		case U16:
			out[i] = int64(binary.LittleEndian.Uint16(raw[2*i:]))
		case I32:
			out[i] = int64(int32(binary.LittleEndian.Uint32(raw[4*i:])))
		case U32:
			out[i] = int64(binary.LittleEndian.Uint32(raw[4*i:]))
		case I64:
			out[i] = int64(binary.LittleEndian.Uint64(raw[8*i:]))
		case U64:
			out[i] = int64(min(binary.LittleEndian.Uint64(raw[8*i:]), math.MaxInt64))
		}
	}
	return out, nil
}

// DecodeUint64s liest n Werte als uint64. Negative Werte werden zu 0.
func DecodeUint64s(d DType, raw []byte, n int) ([]uint64, error) {
	if d == U64 {
		if err := checkLen(d, raw, n); err != nil {
			return nil, err
		}
		out := make([]uint64, n)
		for i := range out {
			out[i] = binary.LittleEndian.Uint64(raw[8*i:])
		}
		return out, nil
	}

	if d.IsFloat() {
		fs, err := DecodeFloat64s(d, raw, n)
		if err != nil {
			return nil, err
		}
		out := make([]uint64, n)
		for i, f := range fs {
			out[i] = SaturateUint(f)
		}
		return out, nil
	}

	ints, err := DecodeInt64s(d, raw, n)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, n)
	for i, v := range ints {
		out[i] = uint64(max(v, 0))
	}
	return out, nil
}

// EncodeUint64s schreibt vorzeichenlose Werte; ausserhalb des Wertebereichs wird saturiert
func EncodeUint64s(d DType, vals []uint64) ([]byte, error) {
	if d == U64 {
		raw := make([]byte, 8*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint64(raw[8*i:], v)
		}
		return raw, nil
	}

	if d.IsFloat() {
		fs := make([]float64, len(vals))
		for i, v := range vals {
			fs[i] = float64(v)
		}
		return EncodeFloat64s(d, fs)
	}

	ints := make([]int64, len(vals))
	for i, v := range vals {
		ints[i] = int64(min(v, math.MaxInt64))
	}
	return EncodeInt64s(d, ints)
}

// ConvertInts wandelt n Integer-Werte von from nach to und saturiert auf den Zielbereich
func ConvertInts(from, to DType, raw []byte, n int) ([]byte, error) {
	if from == U64 || to == U64 {
		vals, err := DecodeUint64s(from, raw, n)
		if err != nil {
			return nil, err
		}
		return EncodeUint64s(to, vals)
	}

	vals, err := DecodeInt64s(from, raw, n)
	if err != nil {
		return nil, err
	}
	return EncodeInt64s(to, vals)
}

// EncodeInt64s schreibt Integer-Werte; ausserhalb des Wertebereichs wird saturiert
func EncodeInt64s(d DType, vals []int64) ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidElemType, d)
	}

	if d.IsFloat() {
		fs := make([]float64, len(vals))
		for i, v := range vals {
			fs[i] = float64(v)
		}
		return EncodeFloat64s(d, fs)
	}

	lo, hi := d.IntRange()
	raw := make([]byte, StorageSize(d, int64(len(vals))))
	for i, v := range vals {
		v = min(max(v, lo), hi)
		switch d {
		case I4, U4:
			setNibble(raw, i, uint8(v))
		case I8, U8:
			raw[i] = uint8(v)
		case I16, U16:
			binary.LittleEndian.PutUint16(raw[2*i:], uint16(v))
		case I32, U32:
			binary.LittleEndian.PutUint32(raw[4*i:], uint32(v))
		case I64, U64:
			binary.LittleEndian.PutUint64(raw[8*i:], uint64(v))
		}
	}
	return raw, nil
}

// DecodeFloat64s liest n Werte als float64
func DecodeFloat64s(d DType, raw []byte, n int) ([]float64, error) {
	if err := checkLen(d, raw, n); err != nil {
		return nil, err
	}

	out := make([]float64, n)
	switch d {
	case F16:
		for i := range out {
			out[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(raw[2*i:])).Float32())
		}
	case BF16:
		for i, f := range bfloat16.DecodeFloat32(raw[:2*n]) {
			out[i] = float64(f)
		}
	case F32:
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:])))
		}
	case F64:
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
		}
	case U64:
		for i := range out {
			out[i] = float64(binary.LittleEndian.Uint64(raw[8*i:]))
		}
	default:
		ints, err := DecodeInt64s(d, raw, n)
		if err != nil {
			return nil, err
		}
		for i, v := range ints {
			out[i] = float64(v)
		}
	}
	return out, nil
}

// EncodeFloat64s schreibt float64-Werte im Zieltyp.
// Integer-Ziele werden in Richtung Null abgeschnitten und saturiert, NaN wird 0.
func EncodeFloat64s(d DType, vals []float64) ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidElemType, d)
	}

	switch d {
	case F16:
		raw := make([]byte, 2*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint16(raw[2*i:], float16.Fromfloat32(float32(v)).Bits())
		}
		return raw, nil
	case BF16:
		f32s := make([]float32, len(vals))
		for i, v := range vals {
			f32s[i] = float32(v)
		}
		return bfloat16.EncodeFloat32(f32s), nil
	case F32:
		raw := make([]byte, 4*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(float32(v)))
		}
		return raw, nil
	case F64:
		raw := make([]byte, 8*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
		}
		return raw, nil
	case U64:
		uints := make([]uint64, len(vals))
		for i, v := range vals {
			uints[i] = SaturateUint(v)
		}
		return EncodeUint64s(d, uints)
	}

	ints := make([]int64, len(vals))
	for i, v := range vals {
		ints[i] = SaturateInt(d, v)
	}
	return EncodeInt64s(d, ints)
}

// SaturateInt schneidet v in Richtung Null ab und begrenzt es auf den Wertebereich von d
func SaturateInt(d DType, v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	lo, hi := d.IntRange()
	v = math.Trunc(v)
	if v <= float64(lo) {
		return lo
	}
	if v >= float64(hi) {
		return hi
	}
	return int64(v)
}

// SaturateUint schneidet v in Richtung Null ab und begrenzt es auf den Wertebereich von ui64
func SaturateUint(v float64) uint64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	// 2^64 ist als float64 exakt, MaxUint64 nicht
	if v >= 1<<64 {
		return math.MaxUint64
	}
	return uint64(math.Trunc(v))
}

// RoundInt rundet v kaufmaennisch (half away from zero) und begrenzt es auf den Wertebereich von d
func RoundInt(d DType, v float64) int64 {
	return SaturateInt(d, math.Round(v))
}
