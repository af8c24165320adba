// Package codec - Deterministische CBOR-Kodierung
//
// Dieses Modul enthaelt:
// - Marshal/Unmarshal: CBOR mit Core Deterministic Encoding (RFC 8949 §4.2)
//
// Gleiche logische Daten ergeben immer identische Bytes. Darauf beruhen
// strukturelle Gleichheit und Cache-Schluessel konstanter Inhalte.
package codec

import (
	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	// NaN-Werte werden kanonisch kodiert, alle NaNs gelten daher als gleich.
	// nil und leere Slices muessen identisch kodiert werden.
	opts := cbor.CoreDetEncOptions()
	opts.NilContainers = cbor.NilContainerAsEmpty
	encMode, err = opts.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal kodiert v deterministisch
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal dekodiert CBOR-Daten nach v
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Diagnose gibt die CBOR-Diagnose-Notation (RFC 8949 §8) zurueck
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
