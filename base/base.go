// Package base - Basis-Inhalte konstanter Werte
//
// Dieses Modul enthaelt:
// - Content: geschlossene Variante ueber Dense, Resource und Symbol
// - Verify: Pruefung bei der Konstruktion
// - Descriptor: kanonische Beschreibung fuer strukturelle Gleichheit
package base

import (
	"errors"
	"fmt"

	"github.com/ollama/constfold/content"
	"github.com/ollama/constfold/digest"
	"github.com/ollama/constfold/ndtype"
)

var (
	// ErrInvalidBaseContent meldet ungueltige Basis-Inhalte (nil, Element-Typ, Puffergroesse)
	ErrInvalidBaseContent = errors.New("invalid base content")

	// ErrUnresolved meldet eine symbolische Referenz, die noch nicht aufgeloest wurde
	ErrUnresolved = errors.New("unresolved symbolic reference")
)

// Kind unterscheidet die Varianten von Content
type Kind int

const (
	KindDense Kind = iota
	KindResource
	KindSymbol
)

func (k Kind) String() string {
	switch k {
	case KindDense:
		return "dense"
	case KindResource:
		return "dense_resource"
	case KindSymbol:
		return "ref"
	default:
		return "unknown"
	}
}

// Content ist der unveraenderliche Basis-Inhalt eines konstanten Werts.
// Implementiert nur von *Dense, *Resource und *Symbol.
type Content interface {
	Kind() Kind
	Type() ndtype.Type
	Descriptor() Descriptor

	isBaseContent()
}

// Descriptor ist die kanonische, kodierbare Beschreibung eines Basis-Inhalts
type Descriptor struct {
	Kind  string      `cbor:"1,keyasint"`
	Type  string      `cbor:"2,keyasint"`
	Name  string      `cbor:"3,keyasint,omitempty"`
	Data  digest.Hash `cbor:"4,keyasint,omitempty"`
	Splat bool        `cbor:"5,keyasint,omitempty"`
}

// Verify prueft einen Basis-Inhalt
func Verify(c Content) error {
	switch c := c.(type) {
	case nil:
		return fmt.Errorf("%w: got NULL base content", ErrInvalidBaseContent)
	case *Dense:
		if c == nil {
			return fmt.Errorf("%w: got NULL dense content", ErrInvalidBaseContent)
		}
	case *Resource:
		if c == nil || c.blob == nil {
			return fmt.Errorf("%w: got NULL resource handle", ErrInvalidBaseContent)
		}
	case *Symbol:
		if c == nil || c.name == "" {
			return fmt.Errorf("%w: symbolic reference without name", ErrInvalidBaseContent)
		}
	default:
		return fmt.Errorf("%w: unsupported base content %T", ErrInvalidBaseContent, c)
	}

	typ := c.Type()
	if !typ.Elem.IsIntOrFloat() {
		return fmt.Errorf("%w: unsupported element type '%s'", ErrInvalidBaseContent, typ.Elem)
	}
	if err := typ.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBaseContent, err)
	}

	switch c := c.(type) {
	case *Dense:
		if valid, _ := content.ValidRawBuffer(c.data, typ.Elem.Bits(), typ.NumElements()); !valid {
			return fmt.Errorf("%w: size of dense buffer '%d' doesn't match its type '%s'", ErrInvalidBaseContent, len(c.data), typ)
		}
	case *Resource:
		data, err := c.blob.Data()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidBaseContent, err)
		}
		// Blobs sind opak und werden sonst nirgends validiert
		if valid, _ := content.ValidRawBuffer(data, typ.Elem.Bits(), typ.NumElements()); !valid {
			return fmt.Errorf("%w: size of dense resource buffer '%d' doesn't match its type '%s'", ErrInvalidBaseContent, len(data), typ)
		}
	}

	return nil
}

// Equal vergleicht zwei Basis-Inhalte strukturell
func Equal(a, b Content) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Descriptor() == b.Descriptor()
}
