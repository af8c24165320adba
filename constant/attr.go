// Package constant - Konstante Werte mit verzoegerten Transformationen
//
// Dieses Modul enthaelt:
// - ContentAttr: unveraenderlicher Wert aus Basis-Inhalt und Transformationsliste
// - New/Verify: Konstruktion mit Invarianten-Pruefung
// - InferFinalTypeAndSplat: Typ- und Splat-Inferenz ohne Materialisierung
// - StripTransformationsFrom/LastTransformationsFrom: Praefix und Suffix der Liste
//
// Gleichheit ist strukturell ueber Basis-Inhalt und die komplette Liste.
// Key ist der daraus abgeleitete Cache-Schluessel.
package constant

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ollama/constfold/base"
	"github.com/ollama/constfold/codec"
	"github.com/ollama/constfold/digest"
	"github.com/ollama/constfold/ndtype"
	"github.com/ollama/constfold/transform"
)

// ContentAttr ist ein Handle auf unveraenderlichen, geteilten Speicher.
// Der Nullwert ist der NULL-Wert.
type ContentAttr struct {
	s *storage
}

type storage struct {
	base            base.Content
	transformations []transform.Transformation
	typ             ndtype.Type
	splat           bool

	keyOnce sync.Once
	key     digest.Hash
}

// descriptor ist die kanonische Kodierung fuer den Cache-Schluessel
type descriptor struct {
	Base            base.Descriptor `cbor:"1,keyasint"`
	Transformations [][]byte        `cbor:"2,keyasint"`
}

// New erzeugt einen ContentAttr und prueft alle Invarianten
func New(b base.Content, ts ...transform.Transformation) (ContentAttr, error) {
	if err := Verify(b, ts); err != nil {
		return ContentAttr{}, err
	}
	return newAttr(b, slices.Clone(ts))
}

func newAttr(b base.Content, ts []transform.Transformation) (ContentAttr, error) {
	typ, splat, err := InferFinalTypeAndSplat(b, ts)
	if err != nil {
		return ContentAttr{}, fmt.Errorf("%w: %w", ErrInvalidTransformationList, err)
	}
	return ContentAttr{s: &storage{base: b, transformations: ts, typ: typ, splat: splat}}, nil
}

// Verify prueft Basis-Inhalt und Transformationsliste
func Verify(b base.Content, ts []transform.Transformation) error {
	if err := base.Verify(b); err != nil {
		return err
	}

	last := transform.PositionNone
	for i, t := range ts {
		if t == nil {
			return fmt.Errorf("%w: got NULL transformation at index %d", ErrInvalidTransformationList, i)
		}
		if err := transform.Validate(t); err != nil {
			return fmt.Errorf("%w: index %d: %w", ErrInvalidTransformationList, i, err)
		}

		pos := transform.PositionOf(t)
		switch {
		case last == transform.PositionLast:
			return fmt.Errorf("%w: %s at index %d follows a transformation with LAST position requirement",
				ErrInvalidTransformationList, transform.String(t), i)
		case pos < last:
			return fmt.Errorf("%w: %s at index %d with position requirement %s follows %s",
				ErrInvalidTransformationList, transform.String(t), i, pos, last)
		}
		last = pos
	}

	if _, _, err := InferFinalTypeAndSplat(b, ts); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTransformationList, err)
	}
	return nil
}

// InferFinalTypeAndSplat berechnet Ausgabetyp und Splat-Status, als waeren
// alle Transformationen angewendet
func InferFinalTypeAndSplat(b base.Content, ts []transform.Transformation) (ndtype.Type, bool, error) {
	splat := base.Splat(b)
	typ := b.Type()
	for i, t := range ts {
		splat = transform.InferSplat(t, splat, typ)

		var err error
		typ, err = transform.InferType(t, typ)
		if err != nil {
			return ndtype.Type{}, false, fmt.Errorf("index %d: %w", i, err)
		}
	}
	return typ, splat, nil
}

func (a ContentAttr) IsNull() bool {
	return a.s == nil
}

func (a ContentAttr) Base() base.Content {
	if a.s == nil {
		return nil
	}
	return a.s.base
}

// Transformations gibt eine Kopie der Transformationsliste zurueck
func (a ContentAttr) Transformations() []transform.Transformation {
	if a.s == nil {
		return nil
	}
	return slices.Clone(a.s.transformations)
}

// Type gibt den Typ nach allen Transformationen zurueck
func (a ContentAttr) Type() ndtype.Type {
	if a.s == nil {
		return ndtype.Type{}
	}
	return a.s.typ
}

func (a ContentAttr) IsSplat() bool {
	return a.s != nil && a.s.splat
}

// Key ist der inhaltsadressierte Cache-Schluessel
func (a ContentAttr) Key() digest.Hash {
	if a.s == nil {
		return digest.Hash{}
	}

	a.s.keyOnce.Do(func() {
		key, err := digest.Of(a.descriptor())
		if err != nil {
			key = digest.Bytes([]byte(a.String()))
		}
		a.s.key = key
	})
	return a.s.key
}

func (a ContentAttr) descriptor() descriptor {
	d := descriptor{
		Base:            a.s.base.Descriptor(),
		Transformations: make([][]byte, len(a.s.transformations)),
	}
	for i, t := range a.s.transformations {
		enc, err := transform.Encode(t)
		if err != nil {
			enc = []byte(transform.String(t))
		}
		d.Transformations[i] = enc
	}
	return d
}

// MarshalCBOR gibt die kanonische Beschreibung zurueck, aus der Key berechnet wird
func (a ContentAttr) MarshalCBOR() ([]byte, error) {
	if a.s == nil {
		return nil, ErrNullContent
	}
	return codec.Marshal(a.descriptor())
}

// Equal vergleicht strukturell
func (a ContentAttr) Equal(o ContentAttr) bool {
	if a.s == nil || o.s == nil {
		return a.s == o.s
	}
	if a.s == o.s {
		return true
	}
	if !base.Equal(a.s.base, o.s.base) || len(a.s.transformations) != len(o.s.transformations) {
		return false
	}
	for i := range a.s.transformations {
		if !transform.Equal(a.s.transformations[i], o.s.transformations[i]) {
			return false
		}
	}
	return true
}

func (a ContentAttr) lastIndexOf(t transform.Transformation) int {
	if a.s == nil {
		return -1
	}
	for i := len(a.s.transformations) - 1; i >= 0; i-- {
		if transform.Equal(a.s.transformations[i], t) {
			return i
		}
	}
	return -1
}

// StripTransformationsFrom gibt den Wert mit allen Transformationen vor dem
// letzten strukturell gleichen Vorkommen von t zurueck
func (a ContentAttr) StripTransformationsFrom(t transform.Transformation) (ContentAttr, bool) {
	i := a.lastIndexOf(t)
	if i < 0 {
		return ContentAttr{}, false
	}

	// ein Praefix einer gueltigen Liste ist gueltig
	head, err := newAttr(a.s.base, slices.Clone(a.s.transformations[:i]))
	if err != nil {
		return ContentAttr{}, false
	}
	return head, true
}

// LastTransformationsFrom gibt die Transformationen ab dem letzten strukturell
// gleichen Vorkommen von t zurueck, t eingeschlossen
func (a ContentAttr) LastTransformationsFrom(t transform.Transformation) ([]transform.Transformation, bool) {
	i := a.lastIndexOf(t)
	if i < 0 {
		return nil, false
	}
	return slices.Clone(a.s.transformations[i:]), true
}
