// Package dtype - Element-Typen inklusive Quantisierung
//
// Dieses Modul enthaelt:
// - ElemType: Skalar- oder quantisierter Element-Typ (uniform, per Tensor)
// - Scalar/Quantized: Konstruktoren
// - ParseElemType: Parsing von "f32" oder "!quant.uniform<u8:f32, 0.5:128>"
package dtype

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidElemType = errors.New("invalid element type")

// ElemType beschreibt den Element-Typ eines Tensors.
//
// Fuer skalare Typen ist nur Storage gesetzt. Quantisierte Typen speichern
// Integer-Werte (Storage) und repraesentieren reelle Werte vom Typ Expressed
// ueber real = Scale * (stored - ZeroPoint).
type ElemType struct {
	Storage   DType
	Expressed DType
	Scale     float64
	ZeroPoint int64
}

// Scalar erzeugt einen nicht-quantisierten Element-Typ
func Scalar(d DType) ElemType {
	return ElemType{Storage: d}
}

// Quantized erzeugt einen uniform quantisierten Element-Typ
func Quantized(storage, expressed DType, scale float64, zeroPoint int64) (ElemType, error) {
	e := ElemType{Storage: storage, Expressed: expressed, Scale: scale, ZeroPoint: zeroPoint}
	if err := e.Validate(); err != nil {
		return ElemType{}, err
	}
	return e, nil
}

func (e ElemType) IsQuantized() bool {
	return e.Expressed != Invalid
}

// IsIntOrFloat meldet skalare Integer- oder Float-Typen
func (e ElemType) IsIntOrFloat() bool {
	return !e.IsQuantized() && e.Storage.Valid()
}

func (e ElemType) Bits() int {
	return e.Storage.Bits()
}

// Validate prueft die Konsistenz des Element-Typs
func (e ElemType) Validate() error {
	if !e.Storage.Valid() {
		return fmt.Errorf("%w: storage type %s", ErrInvalidElemType, e.Storage)
	}
	if !e.IsQuantized() {
		return nil
	}
	if !e.Storage.IsInt() {
		return fmt.Errorf("%w: quantized storage must be integer, got %s", ErrInvalidElemType, e.Storage)
	}
	if !e.Expressed.IsFloat() {
		return fmt.Errorf("%w: expressed type must be float, got %s", ErrInvalidElemType, e.Expressed)
	}
	if !(e.Scale > 0) || math.IsInf(e.Scale, 0) {
		return fmt.Errorf("%w: scale must be positive and finite, got %v", ErrInvalidElemType, e.Scale)
	}
	lo, hi := e.Storage.IntRange()
	if e.ZeroPoint < lo || e.ZeroPoint > hi {
		return fmt.Errorf("%w: zero point %d out of range for %s", ErrInvalidElemType, e.ZeroPoint, e.Storage)
	}
	return nil
}

// WithStorage tauscht den Speichertyp, Quantisierungsparameter bleiben erhalten
func (e ElemType) WithStorage(d DType) ElemType {
	e.Storage = d
	return e
}

// Real gibt den Typ zurueck, in dem Werte interpretiert werden
func (e ElemType) Real() DType {
	if e.IsQuantized() {
		return e.Expressed
	}
	return e.Storage
}

func (e ElemType) String() string {
	if !e.IsQuantized() {
		return e.Storage.String()
	}
	return fmt.Sprintf("!quant.uniform<%s:%s, %s:%d>",
		e.Storage, e.Expressed, strconv.FormatFloat(e.Scale, 'g', -1, 64), e.ZeroPoint)
}

// ParseElemType parst einen skalaren oder quantisierten Element-Typ
func ParseElemType(s string) (ElemType, error) {
	s = strings.TrimSpace(s)
	body, ok := strings.CutPrefix(s, "!quant.uniform<")
	if !ok {
		d, err := ParseDType(s)
		if err != nil {
			return ElemType{}, err
		}
		return Scalar(d), nil
	}

	body, ok = strings.CutSuffix(body, ">")
	if !ok {
		return ElemType{}, fmt.Errorf("%w: unterminated %q", ErrInvalidElemType, s)
	}

	types, params, ok := strings.Cut(body, ",")
	if !ok {
		return ElemType{}, fmt.Errorf("%w: missing quantization parameters in %q", ErrInvalidElemType, s)
	}

	storage, expressed, ok := strings.Cut(strings.TrimSpace(types), ":")
	if !ok {
		return ElemType{}, fmt.Errorf("%w: expected storage:expressed in %q", ErrInvalidElemType, s)
	}

	scale, zp, ok := strings.Cut(strings.TrimSpace(params), ":")
	if !ok {
		return ElemType{}, fmt.Errorf("%w: expected scale:zero_point in %q", ErrInvalidElemType, s)
	}

	st, err := ParseDType(strings.TrimSpace(storage))
	if err != nil {
		return ElemType{}, err
	}

	ex, err := ParseDType(strings.TrimSpace(expressed))
	if err != nil {
		return ElemType{}, err
	}

	sc, err := strconv.ParseFloat(strings.TrimSpace(scale), 64)
	if err != nil {
		return ElemType{}, fmt.Errorf("%w: scale: %v", ErrInvalidElemType, err)
	}

	z, err := strconv.ParseInt(strings.TrimSpace(zp), 10, 64)
	if err != nil {
		return ElemType{}, fmt.Errorf("%w: zero point: %v", ErrInvalidElemType, err)
	}

	return Quantized(st, ex, sc, z)
}
