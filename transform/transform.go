// Package transform - Transformationen konstanter Inhalte
//
// Dieses Modul enthaelt:
// - Transformation: geschlossene Variante aller Transformationsarten
// - Position: Positionsanforderung in der Transformationsliste
// - Dispatch: Apply, InferType, InferSplat, PositionOf, SupportsSubByte, Update, Validate
//
// Jede Transformation ist ein unveraenderlicher Wert. Apply veraendert nie
// seine Eingabe, sondern erzeugt einen neuen Content.
package transform

import (
	"errors"
	"fmt"

	"github.com/ollama/constfold/content"
	"github.com/ollama/constfold/ndtype"
)

var (
	// ErrInvalidTransformation meldet ungueltige Parameter oder nil-Eintraege
	ErrInvalidTransformation = errors.New("invalid transformation")

	// ErrInvalidInput meldet einen Eingabetyp, den die Transformation nicht verarbeiten kann
	ErrInvalidInput = errors.New("invalid transformation input")
)

// Transformation ist eine der Varianten dieses Pakets:
// Reorder, Convert, Quantize, Dequantize, QuantCast, Pad, Broadcast, SubView,
// Reshape, Add, Scale, BitPack, Swizzle.
type Transformation interface {
	isTransformation()
}

// Position beschreibt, wo eine Transformation in der Liste stehen muss
type Position int

const (
	PositionNone Position = iota
	PositionPreferredLast
	PositionLast
)

func (p Position) String() string {
	switch p {
	case PositionNone:
		return "NONE"
	case PositionPreferredLast:
		return "PREFERRED_LAST"
	case PositionLast:
		return "LAST"
	default:
		return "unknown"
	}
}

func (Reorder) isTransformation()    {}
func (Convert) isTransformation()    {}
func (Quantize) isTransformation()   {}
func (Dequantize) isTransformation() {}
func (QuantCast) isTransformation()  {}
func (Pad) isTransformation()        {}
func (Broadcast) isTransformation()  {}
func (SubView) isTransformation()    {}
func (Reshape) isTransformation()    {}
func (Add) isTransformation()        {}
func (Scale) isTransformation()      {}
func (BitPack) isTransformation()    {}
func (Swizzle) isTransformation()    {}

func unknown(t Transformation) error {
	return fmt.Errorf("%w: unknown transformation %T", ErrInvalidTransformation, t)
}

// Name gibt den Namen der Transformationsart zurueck
func Name(t Transformation) string {
	switch t.(type) {
	case Reorder:
		return "Reorder"
	case Convert:
		return "Convert"
	case Quantize:
		return "Quantize"
	case Dequantize:
		return "Dequantize"
	case QuantCast:
		return "QuantCast"
	case Pad:
		return "Pad"
	case Broadcast:
		return "Broadcast"
	case SubView:
		return "SubView"
	case Reshape:
		return "Reshape"
	case Add:
		return "Add"
	case Scale:
		return "Scale"
	case BitPack:
		return "BitPack"
	case Swizzle:
		return "Swizzle"
	default:
		return fmt.Sprintf("%T", t)
	}
}

// PositionOf gibt die Positionsanforderung zurueck
func PositionOf(t Transformation) Position {
	switch t.(type) {
	case BitPack:
		return PositionPreferredLast
	case Swizzle:
		return PositionLast
	default:
		return PositionNone
	}
}

// SupportsSubByte meldet, ob die Transformation Sub-Byte-Speicher verarbeiten kann
func SupportsSubByte(t Transformation) bool {
	switch t.(type) {
	case Reshape, QuantCast, Dequantize, Swizzle:
		return true
	default:
		return false
	}
}

// Validate prueft die Parameter unabhaengig vom Eingabetyp
func Validate(t Transformation) error {
	var err error
	switch t := t.(type) {
	case nil:
		return fmt.Errorf("%w: got NULL transformation", ErrInvalidTransformation)
	case Reorder:
		err = t.validate()
	case Convert:
		err = t.validate()
	case Quantize:
		err = t.validate()
	case Dequantize:
		return nil
	case QuantCast:
		err = t.validate()
	case Pad:
		err = t.validate()
	case Broadcast:
		err = validateShape(t.Shape)
	case SubView:
		err = t.validate()
	case Reshape:
		err = validateShape(t.Shape)
	case Add, Scale:
		return nil
	case BitPack:
		err = t.validate()
	case Swizzle:
		err = t.validate()
	default:
		return unknown(t)
	}

	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidTransformation, Name(t), err)
	}
	return nil
}

// InferType berechnet den Ausgabetyp ohne Materialisierung
func InferType(t Transformation, in ndtype.Type) (ndtype.Type, error) {
	var (
		out ndtype.Type
		err error
	)

	switch t := t.(type) {
	case Reorder:
		out, err = t.inferType(in)
	case Convert:
		out, err = t.inferType(in)
	case Quantize:
		out, err = t.inferType(in)
	case Dequantize:
		out, err = t.inferType(in)
	case QuantCast:
		out, err = t.inferType(in)
	case Pad:
		out, err = t.inferType(in)
	case Broadcast:
		out, err = t.inferType(in)
	case SubView:
		out, err = t.inferType(in)
	case Reshape:
		out, err = t.inferType(in)
	case Add:
		out, err = inferArithType(in)
	case Scale:
		out, err = inferArithType(in)
	case BitPack:
		out, err = t.inferType(in)
	case Swizzle:
		out, err = t.inferType(in)
	default:
		return ndtype.Type{}, unknown(t)
	}

	if err != nil {
		return ndtype.Type{}, fmt.Errorf("%w: %s on %s: %w", ErrInvalidInput, String(t), in, err)
	}
	return out, nil
}

// InferSplat berechnet den Splat-Status der Ausgabe aus dem der Eingabe
func InferSplat(t Transformation, inSplat bool, in ndtype.Type) bool {
	switch t := t.(type) {
	case Pad:
		return inSplat && t.isNoop()
	case Swizzle:
		return false
	default:
		return inSplat
	}
}

// Update aktualisiert Parameter, die vom Eingabetyp abhaengen.
// Wird nach jedem Einfuegen fuer alle nachfolgenden Transformationen aufgerufen.
func Update(t Transformation, in ndtype.Type) Transformation {
	switch t := t.(type) {
	case Pad:
		return t.update(in)
	default:
		return t
	}
}

// Apply wendet die Transformation auf einen Content an und gibt einen neuen Content zurueck
func Apply(t Transformation, in *content.Content) (*content.Content, error) {
	outType, err := InferType(t, in.Type())
	if err != nil {
		return nil, err
	}

	var out *content.Content
	switch t := t.(type) {
	case Reorder:
		out, err = t.apply(in, outType)
	case Convert:
		out, err = t.apply(in, outType)
	case Quantize:
		out, err = t.apply(in, outType)
	case Dequantize:
		out, err = t.apply(in, outType)
	case QuantCast:
		out, err = content.FromRawBuffer(outType, in.RawStorage(), in.IsSplat())
	case Pad:
		out, err = t.apply(in, outType)
	case Broadcast:
		out, err = t.apply(in, outType)
	case SubView:
		out, err = t.apply(in, outType)
	case Reshape:
		out, err = content.FromRawBuffer(outType, in.RawStorage(), in.IsSplat())
	case Add:
		out, err = applyArith(in, outType, t.Bias, 1)
	case Scale:
		out, err = applyArith(in, outType, 0, t.Factor)
	case BitPack:
		out, err = t.apply(in, outType)
	case Swizzle:
		out, err = t.apply(in, outType)
	default:
		return nil, unknown(t)
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", String(t), err)
	}
	return out, nil
}
