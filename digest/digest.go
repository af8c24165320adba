// Package digest - Inhaltsadressierte Schluessel (BLAKE3)
//
// Dieses Modul enthaelt:
// - Hash: 32-Byte BLAKE3-Digest
// - Bytes: Digest eines Roh-Puffers
// - Of: Digest der kanonischen CBOR-Kodierung eines Werts
package digest

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/ollama/constfold/codec"
)

// Hash ist ein 32-Byte BLAKE3-Digest
type Hash [32]byte

type domainKey [32]byte

// Domaenen-Schluessel: ASCII des Domaenen-Namens, mit Nullen aufgefuellt
var (
	bufferDomainKey = domainKey{
		'c', 'o', 'n', 's', 't', 'f', 'o', 'l', 'd', '.', 'b', 'u', 'f', 'f', 'e', 'r',
	}

	valueDomainKey = domainKey{
		'c', 'o', 'n', 's', 't', 'f', 'o', 'l', 'd', '.', 'v', 'a', 'l', 'u', 'e',
	}
)

// Bytes berechnet den Digest eines Roh-Puffers
func Bytes(data []byte) Hash {
	return keyedHash(bufferDomainKey, data)
}

// Of berechnet den Digest der kanonischen Kodierung von v
func Of(v any) (Hash, error) {
	data, err := codec.Marshal(v)
	if err != nil {
		return Hash{}, fmt.Errorf("digest: encode: %w", err)
	}
	return keyedHash(valueDomainKey, data), nil
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short gibt die ersten 12 Hex-Zeichen zurueck, fuer Logs
func (h Hash) Short() string {
	return h.String()[:12]
}

func (h Hash) MarshalBinary() ([]byte, error) {
	return h[:], nil
}

func keyedHash(key domainKey, data []byte) Hash {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("digest: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h
}
