// Package content - Materialisierte Inhalte und Splat-Erkennung
//
// Dieses Modul enthaelt:
// - DetectSplat: Byte-genaue Erkennung uniformer Puffer
// - ValidRawBuffer: generische Puffer-Pruefung (nur Ein-Element-Splats)
package content

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrInvalidBuffer meldet verletzte Vorbedingungen der Splat-Erkennung
var ErrInvalidBuffer = errors.New("invalid buffer")

// DetectSplat prueft, ob alle Elemente des Puffers byte-identisch sind.
//
// Bei einem Splat wird eine Sicht auf das erste Element zurueckgegeben,
// sonst der unveraenderte Eingabepuffer.
func DetectSplat(data []byte, elemSize int) ([]byte, bool, error) {
	if elemSize <= 0 {
		return nil, false, fmt.Errorf("%w: element size %d", ErrInvalidBuffer, elemSize)
	}
	if len(data) < elemSize {
		return nil, false, fmt.Errorf("%w: the data must contain at least one element", ErrInvalidBuffer)
	}
	if len(data)%elemSize != 0 {
		return nil, false, fmt.Errorf("%w: length %d is not a multiple of element size %d", ErrInvalidBuffer, len(data), elemSize)
	}
	if len(data) == elemSize {
		return data, true, nil
	}

	first := data[:elemSize]
	for i := elemSize; i < len(data); i += elemSize {
		if !bytes.Equal(data[i:i+elemSize], first) {
			return data, false, nil
		}
	}

	return data[:elemSize:elemSize], true, nil
}

// ValidRawBuffer ist die generische Pruefung eines Roh-Puffers: gueltig ist entweder der
// vollstaendige Tensor oder genau ein Element. Letzteres wird als Splat gemeldet.
// Mehrere identische Elemente werden hier nicht erkannt, dafuer gibt es DetectSplat.
func ValidRawBuffer(data []byte, elemBits int, numElements int64) (valid, splat bool) {
	full := (int64(elemBits)*numElements + 7) / 8
	single := (int64(elemBits) + 7) / 8
	switch int64(len(data)) {
	case single:
		// bei Sub-Byte-Typen kann ein Byte mehrere Elemente enthalten
		if single != full || numElements == 1 {
			return true, true
		}
		return true, false
	case full:
		return true, false
	default:
		return false, false
	}
}
