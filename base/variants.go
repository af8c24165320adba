// Package base - Varianten der Basis-Inhalte
//
// Dieses Modul enthaelt:
// - Dense: besitzt seine Bytes
// - Resource: Handle auf einen extern verwalteten Blob
// - Symbol: Name, der von einer externen Symboltabelle aufgeloest wird
package base

import (
	"bytes"
	"fmt"

	"github.com/ollama/constfold/content"
	"github.com/ollama/constfold/digest"
	"github.com/ollama/constfold/dtype"
	"github.com/ollama/constfold/ndtype"
	"github.com/ollama/constfold/resource"
)

// Dense ist ein Basis-Inhalt mit eigenem Puffer
type Dense struct {
	typ   ndtype.Type
	data  []byte
	splat bool
	hash  digest.Hash
}

// NewDense erzeugt Dense aus einem Roh-Puffer. Der Puffer muss entweder den
// ganzen Tensor oder genau ein Element (Splat) enthalten und wird kopiert.
// Ein voller Puffer aus identischen Elementen wird zu einem Splat komprimiert.
func NewDense(typ ndtype.Type, raw []byte) (*Dense, error) {
	d := &Dense{typ: typ, data: raw}
	if err := Verify(d); err != nil {
		return nil, err
	}

	storage := typ.Elem.Storage
	if typ.NumElements() > 1 && !storage.IsSubByte() && int64(len(raw)) == typ.StorageSize() {
		if single, ok, err := content.DetectSplat(raw, storage.Size()); err == nil && ok {
			raw = single
		}
	}

	d.data = bytes.Clone(raw)
	_, d.splat = content.ValidRawBuffer(d.data, typ.Elem.Bits(), typ.NumElements())
	d.hash = digest.Bytes(d.data)
	return d, nil
}

// NewDenseSplat erzeugt einen Splat mit einem einzelnen Wert
func NewDenseSplat(typ ndtype.Type, value float64) (*Dense, error) {
	if !typ.Elem.IsIntOrFloat() {
		return nil, fmt.Errorf("%w: unsupported element type '%s'", ErrInvalidBaseContent, typ.Elem)
	}
	raw, err := dtype.EncodeFloat64s(typ.Elem.Storage, []float64{value})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseContent, err)
	}
	return NewDense(typ, raw)
}

// DenseFromFloat64s erzeugt Dense aus Werten. Uniforme Werte werden zu einem Splat komprimiert.
func DenseFromFloat64s(typ ndtype.Type, vals []float64) (*Dense, error) {
	if !typ.Elem.IsIntOrFloat() {
		return nil, fmt.Errorf("%w: unsupported element type '%s'", ErrInvalidBaseContent, typ.Elem)
	}
	raw, err := dtype.EncodeFloat64s(typ.Elem.Storage, vals)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseContent, err)
	}
	return newCompressedDense(typ, raw, len(vals))
}

// DenseFromInt64s erzeugt Dense aus Integer-Werten ohne Praezisionsverlust
func DenseFromInt64s(typ ndtype.Type, vals []int64) (*Dense, error) {
	if !typ.Elem.IsIntOrFloat() {
		return nil, fmt.Errorf("%w: unsupported element type '%s'", ErrInvalidBaseContent, typ.Elem)
	}
	raw, err := dtype.EncodeInt64s(typ.Elem.Storage, vals)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseContent, err)
	}
	return newCompressedDense(typ, raw, len(vals))
}

func newCompressedDense(typ ndtype.Type, raw []byte, n int) (*Dense, error) {
	if int64(n) != typ.NumElements() {
		return nil, fmt.Errorf("%w: got %d values for %s", ErrInvalidBaseContent, n, typ)
	}
	return NewDense(typ, raw)
}

func (d *Dense) Kind() Kind        { return KindDense }
func (d *Dense) Type() ndtype.Type { return d.typ }
func (d *Dense) isBaseContent()    {}

// Data gibt den gespeicherten Puffer zurueck, bei Splats genau ein Element
func (d *Dense) Data() []byte {
	return d.data
}

func (d *Dense) IsSplat() bool {
	return d.splat
}

func (d *Dense) Descriptor() Descriptor {
	return Descriptor{Kind: KindDense.String(), Type: d.typ.String(), Data: d.hash, Splat: d.splat}
}

// Resource referenziert einen Blob eines resource.Manager, ohne ihn zu besitzen
type Resource struct {
	typ  ndtype.Type
	blob *resource.Blob
}

// NewResource erzeugt einen Resource-Inhalt und prueft die Blob-Groesse gegen den Typ
func NewResource(typ ndtype.Type, blob *resource.Blob) (*Resource, error) {
	r := &Resource{typ: typ, blob: blob}
	if err := Verify(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resource) Kind() Kind        { return KindResource }
func (r *Resource) Type() ndtype.Type { return r.typ }
func (r *Resource) isBaseContent()    {}

func (r *Resource) Name() string {
	return r.blob.Name()
}

func (r *Resource) Blob() *resource.Blob {
	return r.blob
}

func (r *Resource) Descriptor() Descriptor {
	return Descriptor{Kind: KindResource.String(), Type: r.typ.String(), Name: r.blob.Name(), Data: r.blob.Digest()}
}

// Symbol ist eine symbolische Referenz auf einen anderswo definierten Wert
type Symbol struct {
	typ  ndtype.Type
	name string
}

func NewSymbol(name string, typ ndtype.Type) (*Symbol, error) {
	s := &Symbol{typ: typ, name: name}
	if err := Verify(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Symbol) Kind() Kind        { return KindSymbol }
func (s *Symbol) Type() ndtype.Type { return s.typ }
func (s *Symbol) isBaseContent()    {}

func (s *Symbol) Name() string {
	return s.name
}

func (s *Symbol) Descriptor() Descriptor {
	return Descriptor{Kind: KindSymbol.String(), Type: s.typ.String(), Name: s.name}
}
