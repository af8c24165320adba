// Package dtype - Skalare Element-Typen fuer konstante Tensor-Inhalte
//
// Dieses Modul enthaelt:
// - DType: Skalar-Typen (Integer, Float, Sub-Byte)
// - ParseDType: Parsing der Textform (i32, ui8, bf16, ...)
// - Bits/IsInt/IsFloat/IsSigned/IsSubByte: Typ-Eigenschaften
package dtype

import (
	"fmt"
	"math"
)

// DType ist ein skalarer Speichertyp. Nur Integer- und Float-Typen sind erlaubt.
type DType uint8

const (
	Invalid DType = iota
	I4
	U4
	I8
	U8
	I16
	U16
	I32
	U32
	I64
	U64
	F16
	BF16
	F32
	F64
)

var dtypeNames = [...]string{
	Invalid: "invalid",
	I4:      "i4",
	U4:      "ui4",
	I8:      "i8",
	U8:      "ui8",
	I16:     "i16",
	U16:     "ui16",
	I32:     "i32",
	U32:     "ui32",
	I64:     "i64",
	U64:     "ui64",
	F16:     "f16",
	BF16:    "bf16",
	F32:     "f32",
	F64:     "f64",
}

// ParseDType parst die Textform eines Skalar-Typs
func ParseDType(s string) (DType, error) {
	for d, name := range dtypeNames {
		if d != int(Invalid) && name == s {
			return DType(d), nil
		}
	}
	return Invalid, fmt.Errorf("unsupported element type %q", s)
}

func (d DType) String() string {
	if int(d) < len(dtypeNames) {
		return dtypeNames[d]
	}
	return "unknown"
}

// Bits gibt die Speicherbreite in Bits zurueck
func (d DType) Bits() int {
	switch d {
	case I4, U4:
		return 4
	case I8, U8:
		return 8
	case I16, U16, F16, BF16:
		return 16
	case I32, U32, F32:
		return 32
	case I64, U64, F64:
		return 64
	default:
		return 0
	}
}

// Size gibt die Byte-Groesse eines Elements zurueck, 0 fuer Sub-Byte-Typen
func (d DType) Size() int {
	return d.Bits() / 8
}

func (d DType) Valid() bool {
	return d > Invalid && d <= F64
}

func (d DType) IsInt() bool {
	return d >= I4 && d <= U64
}

func (d DType) IsFloat() bool {
	return d >= F16 && d <= F64
}

func (d DType) IsSigned() bool {
	switch d {
	case I4, I8, I16, I32, I64:
		return true
	default:
		return d.IsFloat()
	}
}

// IsSubByte meldet Typen, deren Elemente kleiner als ein Byte sind
func (d DType) IsSubByte() bool {
	return d.Valid() && d.Bits() < 8
}

// IntRange gibt den darstellbaren Wertebereich eines Integer-Typs zurueck
func (d DType) IntRange() (lo, hi int64) {
	switch d {
	case I4:
		return -8, 7
	case U4:
		return 0, 15
	case I8:
		return math.MinInt8, math.MaxInt8
	case U8:
		return 0, math.MaxUint8
	case I16:
		return math.MinInt16, math.MaxInt16
	case U16:
		return 0, math.MaxUint16
	case I32:
		return math.MinInt32, math.MaxInt32
	case U32:
		return 0, math.MaxUint32
	case I64:
		return math.MinInt64, math.MaxInt64
	case U64:
		// im int64-Pfad, den vollen Bereich decken DecodeUint64s/EncodeUint64s ab
		return 0, math.MaxInt64
	default:
		return 0, 0
	}
}

// StorageSize berechnet die Byte-Groesse fuer n Elemente.
// Sub-Byte-Typen werden dicht gepackt (zwei 4-Bit-Werte pro Byte).
func StorageSize(d DType, n int64) int64 {
	return (int64(d.Bits())*n + 7) / 8
}
