// Package base - Verpacken von Basis-Inhalten als materialisierter Content
//
// Dieses Modul enthaelt:
// - RawDataAndSplat: Roh-Daten und Splat-Status ohne Kopie
// - Splat: Splat-Inferenz ohne Materialisierung
// - Wrap: Start-Content eines Folds
package base

import (
	"fmt"

	"github.com/ollama/constfold/content"
	"github.com/ollama/constfold/logutil"
)

// detectSplatManually erkennt Splats in opaken Puffern. Die generische Pruefung
// erkennt nur Ein-Element-Puffer, uniforme Puffer brauchen den Byte-Vergleich.
func detectSplatManually(c Content, data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return data, false
	}

	typ := c.Type()
	if _, splat := content.ValidRawBuffer(data, typ.Elem.Bits(), typ.NumElements()); splat {
		return data, true
	}

	// Sub-Byte-Elemente sind nicht byte-adressierbar
	if typ.Elem.Storage.IsSubByte() {
		return data, false
	}

	single, splat, err := content.DetectSplat(data, typ.Elem.Storage.Size())
	if err != nil {
		return data, false
	}
	return single, splat
}

// RawDataAndSplat gibt die Roh-Daten und den Splat-Status eines Basis-Inhalts zurueck.
// Symbole koennen hier nicht dereferenziert werden und gelten als nicht-Splat.
func RawDataAndSplat(c Content) ([]byte, bool, error) {
	switch c := c.(type) {
	case *Dense:
		return c.data, c.splat, nil
	case *Symbol:
		return nil, false, nil
	case *Resource:
		data, err := c.blob.Data()
		if err != nil {
			return nil, false, err
		}
		single, splat := detectSplatManually(c, data)
		logutil.Trace("resource splat detection", "name", c.Name(), "size", len(data), "splat", splat)
		return single, splat, nil
	default:
		return nil, false, fmt.Errorf("%w: unsupported base content %T", ErrInvalidBaseContent, c)
	}
}

// Splat gibt den Splat-Status ohne Materialisierung zurueck
func Splat(c Content) bool {
	_, splat, err := RawDataAndSplat(c)
	return err == nil && splat
}

// Wrap verpackt einen Basis-Inhalt als Start-Content eines Folds.
// Symbolische Referenzen muessen vorher aufgeloest werden.
func Wrap(c Content) (*content.Content, error) {
	if sym, ok := c.(*Symbol); ok {
		return nil, fmt.Errorf("%w: @%s", ErrUnresolved, sym.name)
	}

	data, splat, err := RawDataAndSplat(c)
	if err != nil {
		return nil, err
	}

	return content.FromRawBuffer(c.Type(), data, splat)
}
