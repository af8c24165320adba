// Package resource - Verwaltung extern gehaltener Byte-Blobs
//
// Dieses Modul enthaelt:
// - Manager: Registry benannter Blobs in Einfuege-Reihenfolge
// - Blob: nicht-besitzender Handle auf einen Blob
//
// Konstante Inhalte referenzieren Blobs nur. Lebensdauer und Freigabe
// bestimmt ausschliesslich der Manager.
package resource

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/ollama/constfold/digest"
)

var (
	ErrBlobExists   = errors.New("blob already registered")
	ErrBlobNotFound = errors.New("blob not found")
	ErrBlobReleased = errors.New("blob released")
)

// Blob ist ein benannter Byte-Bereich im Besitz eines Managers
type Blob struct {
	name string
	hash digest.Hash
	data atomic.Pointer[[]byte]
}

func (b *Blob) Name() string {
	return b.name
}

// Digest ist der Inhalts-Digest zum Zeitpunkt von Insert. Er bleibt nach Release erhalten.
func (b *Blob) Digest() digest.Hash {
	return b.hash
}

// Data gibt die Bytes des Blobs zurueck. Der Aufrufer darf sie nicht veraendern.
func (b *Blob) Data() ([]byte, error) {
	p := b.data.Load()
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrBlobReleased, b.name)
	}
	return *p, nil
}

// Released meldet, ob der Manager den Blob freigegeben hat
func (b *Blob) Released() bool {
	return b.data.Load() == nil
}

// Manager haelt Blobs nach Namen
type Manager struct {
	mu    sync.RWMutex
	blobs *orderedmap.OrderedMap[string, *Blob]
}

func NewManager() *Manager {
	return &Manager{blobs: orderedmap.New[string, *Blob]()}
}

// Insert registriert einen Blob. Der Manager uebernimmt data.
func (m *Manager) Insert(name string, data []byte) (*Blob, error) {
	if name == "" {
		return nil, errors.New("blob name must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blobs.Get(name); ok {
		return nil, fmt.Errorf("%w: %s", ErrBlobExists, name)
	}

	b := &Blob{name: name, hash: digest.Bytes(data)}
	b.data.Store(&data)
	m.blobs.Set(name, b)
	slog.Debug("registered resource blob", "name", name, "size", len(data))
	return b, nil
}

// Lookup sucht einen Blob nach Namen
func (m *Manager) Lookup(name string) (*Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, name)
	}
	return b, nil
}

// Release entfernt einen Blob. Bestehende Handles melden danach ErrBlobReleased.
func (m *Manager) Release(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blobs.Delete(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBlobNotFound, name)
	}
	b.data.Store(nil)
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.blobs.Len()
}

// All iteriert ueber alle Blobs in Einfuege-Reihenfolge
func (m *Manager) All() iter.Seq[*Blob] {
	return func(yield func(*Blob) bool) {
		m.mu.RLock()
		blobs := make([]*Blob, 0, m.blobs.Len())
		for pair := m.blobs.Oldest(); pair != nil; pair = pair.Next() {
			blobs = append(blobs, pair.Value)
		}
		m.mu.RUnlock()

		for _, b := range blobs {
			if !yield(b) {
				return
			}
		}
	}
}
