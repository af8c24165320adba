// Package content - Materialisierter Inhalt (Content)
//
// Dieses Modul enthaelt:
// - Content: Ergebnis eines Folds (Puffer, Typ, Splat-Flag)
// - FromRawBuffer: Konstruktor mit Groessenpruefung
// - Zugriffsfunktionen (Float64s, Int64s, Uint64s, Float32s, Splat-Werte, Expanded)
package content

import (
	"bytes"
	"fmt"

	"github.com/ollama/constfold/dtype"
	"github.com/ollama/constfold/ndtype"
)

// Content ist ein unveraenderlicher, materialisierter Tensor-Inhalt.
//
// Bei einem Splat enthaelt der Puffer genau ein Element, das fuer den
// gesamten Tensor steht.
type Content struct {
	typ   ndtype.Type
	data  []byte
	splat bool
}

// FromRawBuffer erzeugt einen Content. Der Puffer wird nicht kopiert und darf
// danach nicht mehr veraendert werden.
func FromRawBuffer(typ ndtype.Type, data []byte, splat bool) (*Content, error) {
	want := typ.StorageSize()
	if splat {
		want = dtype.StorageSize(typ.Elem.Storage, 1)
	}
	if int64(len(data)) != want {
		return nil, fmt.Errorf("%w: %d bytes for %s (splat=%t), expected %d", ErrInvalidBuffer, len(data), typ, splat, want)
	}
	return &Content{typ: typ, data: data, splat: splat}, nil
}

// Splat erzeugt einen Splat-Content aus einem einzelnen Wert
func Splat(typ ndtype.Type, value float64) (*Content, error) {
	data, err := dtype.EncodeFloat64s(typ.Elem.Storage, []float64{value})
	if err != nil {
		return nil, err
	}
	return FromRawBuffer(typ, data, true)
}

func (c *Content) Type() ndtype.Type {
	return c.typ
}

func (c *Content) IsSplat() bool {
	return c.splat
}

// StorageElemType gibt den Typ der gespeicherten Elemente zurueck
func (c *Content) StorageElemType() dtype.DType {
	return c.typ.Elem.Storage
}

func (c *Content) NumElements() int64 {
	return c.typ.NumElements()
}

// RawStorage gibt den gespeicherten Puffer zurueck (bei Splats ein Element).
// Der Puffer gehoert dem Content und darf nicht veraendert werden.
func (c *Content) RawStorage() []byte {
	return c.data
}

// storedCount ist die Anzahl physisch gespeicherter Elemente
func (c *Content) storedCount() int {
	if c.splat {
		return 1
	}
	return int(c.NumElements())
}

// Expanded gibt den vollstaendigen Puffer zurueck, Splats werden ausgerollt
func (c *Content) Expanded() ([]byte, error) {
	if !c.splat {
		return bytes.Clone(c.data), nil
	}

	n := c.NumElements()
	storage := c.StorageElemType()
	if !storage.IsSubByte() {
		return bytes.Repeat(c.data, int(n)), nil
	}

	v, err := dtype.DecodeInt64s(storage, c.data, 1)
	if err != nil {
		return nil, err
	}
	vals := make([]int64, n)
	for i := range vals {
		vals[i] = v[0]
	}
	return dtype.EncodeInt64s(storage, vals)
}

// CopyTo schreibt den vollstaendigen Puffer nach dst
func (c *Content) CopyTo(dst []byte) error {
	if want := c.typ.StorageSize(); int64(len(dst)) != want {
		return fmt.Errorf("%w: destination has %d bytes, expected %d", ErrInvalidBuffer, len(dst), want)
	}
	full, err := c.Expanded()
	if err != nil {
		return err
	}
	copy(dst, full)
	return nil
}

// StoredFloat64s liest nur die physisch gespeicherten Werte
func (c *Content) StoredFloat64s() ([]float64, error) {
	return dtype.DecodeFloat64s(c.StorageElemType(), c.data, c.storedCount())
}

// StoredInt64s liest nur die physisch gespeicherten Werte
func (c *Content) StoredInt64s() ([]int64, error) {
	return dtype.DecodeInt64s(c.StorageElemType(), c.data, c.storedCount())
}

// StoredUint64s liest nur die physisch gespeicherten Werte als uint64
func (c *Content) StoredUint64s() ([]uint64, error) {
	return dtype.DecodeUint64s(c.StorageElemType(), c.data, c.storedCount())
}

// Float64s gibt alle gespeicherten Werte als float64 zurueck.
// Quantisierte Inhalte liefern die Speicherwerte, nicht die reellen Werte.
func (c *Content) Float64s() ([]float64, error) {
	vals, err := c.StoredFloat64s()
	if err != nil {
		return nil, err
	}
	return expand(vals, c.splat, c.NumElements()), nil
}

// Int64s gibt alle gespeicherten Werte verlustfrei als int64 zurueck
func (c *Content) Int64s() ([]int64, error) {
	vals, err := c.StoredInt64s()
	if err != nil {
		return nil, err
	}
	return expand(vals, c.splat, c.NumElements()), nil
}

// Uint64s gibt alle Werte als uint64 zurueck, fuer ui64 ohne Vorzeichenfehler
func (c *Content) Uint64s() ([]uint64, error) {
	vals, err := c.StoredUint64s()
	if err != nil {
		return nil, err
	}
	return expand(vals, c.splat, c.NumElements()), nil
}

// Float32s gibt alle Werte als float32 zurueck
func (c *Content) Float32s() ([]float32, error) {
	vals, err := c.Float64s()
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(v)
	}
	return out, nil
}

// SplatFloat64 gibt den Splat-Wert zurueck
func (c *Content) SplatFloat64() (float64, error) {
	if !c.splat {
		return 0, fmt.Errorf("content %s is not a splat", c.typ)
	}
	vals, err := c.StoredFloat64s()
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}

// SplatInt64 gibt den Splat-Wert verlustfrei zurueck
func (c *Content) SplatInt64() (int64, error) {
	if !c.splat {
		return 0, fmt.Errorf("content %s is not a splat", c.typ)
	}
	vals, err := c.StoredInt64s()
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}

func (c *Content) String() string {
	return fmt.Sprintf("content<%s, %d bytes, splat=%t>", c.typ, len(c.data), c.splat)
}

func expand[T any](vals []T, splat bool, n int64) []T {
	if !splat {
		return vals
	}
	out := make([]T, n)
	for i := range out {
		out[i] = vals[0]
	}
	return out
}
