// cache.go - Folding-Cache eines Kompilierungs-Kontexts
//
// Dieses Modul enthaelt:
// - Cache: inhaltsadressierte Memoisierung materialisierter Inhalte
// - Lookup/Peek/Wait: synchrone Abfrage (Pending als Miss oder Wartepunkt)
// - Enqueue: asynchrone Folds, hoechstens einer pro Schluessel
// - GetOrCompute/Store: synchroner Fold mit Deduplizierung
// - Close: verwirft alle Eintraege und laufende Ergebnisse
//
// Jeder Schluessel hat einen eigenen Eintrag mit done-Kanal. Unabhaengige
// Schluessel blockieren sich nicht gegenseitig.
package foldcache

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/ollama/constfold/content"
	"github.com/ollama/constfold/digest"
	"github.com/ollama/constfold/logutil"
)

var (
	// ErrClosed wird nach Close fuer alle Operationen gemeldet
	ErrClosed = errors.New("folding cache closed")

	// ErrNotFound meldet einen Schluessel ohne Eintrag
	ErrNotFound = errors.New("no cache entry")
)

// Func berechnet den Inhalt fuer einen Schluessel
type Func func(ctx context.Context) (*content.Content, error)

type Options struct {
	// Workers begrenzt gleichzeitige Hintergrund-Folds (0 = GOMAXPROCS)
	Workers int

	// WaitPending laesst Lookup auf laufende Folds warten
	WaitPending bool

	Logger *slog.Logger
}

type entry struct {
	done  chan struct{}
	value *content.Content
	err   error
}

func newEntry() *entry {
	return &entry{done: make(chan struct{})}
}

func (e *entry) ready() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *entry) wait(ctx context.Context) (*content.Content, error) {
	select {
	case <-e.done:
		return e.value, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats sind Zaehler seit Erzeugung des Caches
type Stats struct {
	Hits         int64
	Misses       int64
	Computations int64
	Collapsed    int64
	Entries      int
}

type Cache struct {
	entries sync.Map // digest.Hash -> *entry

	sem         *semaphore.Weighted
	waitPending bool
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	hits, misses, computations, collapsed atomic.Int64
}

func New(opts Options) *Cache {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		sem:         semaphore.NewWeighted(int64(workers)),
		waitPending: opts.WaitPending,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (c *Cache) load(key digest.Hash) (*entry, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

// Lookup gibt nur fertige Eintraege zurueck. Laufende Folds zaehlen als Miss,
// ausser WaitPending ist gesetzt.
func (c *Cache) Lookup(key digest.Hash) (*content.Content, bool) {
	if c.closed.Load() {
		return nil, false
	}

	e, ok := c.load(key)
	if ok && !e.ready() && c.waitPending {
		c.logger.Log(c.ctx, logutil.LevelTrace, "waiting for pending fold", "key", key.Short())
		_, _ = e.wait(c.ctx)
	}

	if !ok || !e.ready() || e.err != nil {
		c.misses.Add(1)
		c.logger.Log(c.ctx, logutil.LevelTrace, "folding cache miss", "key", key.Short())
		return nil, false
	}

	c.hits.Add(1)
	c.logger.Log(c.ctx, logutil.LevelTrace, "folding cache hit", "key", key.Short())
	return e.value, true
}

// Peek gibt einen fertigen Eintrag zurueck, ohne zu warten oder Zaehler zu aendern
func (c *Cache) Peek(key digest.Hash) (*content.Content, bool) {
	if c.closed.Load() {
		return nil, false
	}
	e, ok := c.load(key)
	if !ok || !e.ready() || e.err != nil {
		return nil, false
	}
	return e.value, true
}

// Wait blockiert, bis der Eintrag fuer key fertig ist
func (c *Cache) Wait(ctx context.Context, key digest.Hash) (*content.Content, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	e, ok := c.load(key)
	if !ok {
		return nil, ErrNotFound
	}
	return e.wait(ctx)
}

// Enqueue startet fn im Hintergrund, falls fuer key noch kein Eintrag existiert.
// Gibt false zurueck, wenn die Anfrage mit einem bestehenden Eintrag zusammengefasst wurde.
func (c *Cache) Enqueue(key digest.Hash, fn Func) bool {
	if c.closed.Load() {
		return false
	}

	e := newEntry()
	if _, loaded := c.entries.LoadOrStore(key, e); loaded {
		c.collapsed.Add(1)
		return false
	}

	c.computations.Add(1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(c.ctx, key, e, fn, true)
	}()
	return true
}

// GetOrCompute gibt den Eintrag fuer key zurueck oder berechnet ihn synchron.
// Laeuft bereits ein Fold fuer key, wird auf dessen Ergebnis gewartet.
func (c *Cache) GetOrCompute(ctx context.Context, key digest.Hash, fn Func) (*content.Content, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	e := newEntry()
	if v, loaded := c.entries.LoadOrStore(key, e); loaded {
		existing := v.(*entry)
		if existing.ready() {
			c.hits.Add(1)
		} else {
			c.collapsed.Add(1)
		}
		return existing.wait(ctx)
	}

	c.misses.Add(1)
	c.computations.Add(1)

	// abbrechen, sobald der Aufrufer oder Close abbricht
	fctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	c.run(fctx, key, e, fn, false)
	return e.value, e.err
}

func (c *Cache) run(ctx context.Context, key digest.Hash, e *entry, fn Func, background bool) {
	defer close(e.done)

	if background {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			e.err = err
			c.entries.CompareAndDelete(key, e)
			return
		}
		defer c.sem.Release(1)
	}

	e.value, e.err = fn(ctx)
	if e.err != nil {
		// fehlgeschlagene Folds duerfen erneut versucht werden
		c.entries.CompareAndDelete(key, e)
		if !errors.Is(e.err, context.Canceled) {
			c.logger.Warn("fold failed", "key", key.Short(), "background", background, "error", e.err)
		}
		return
	}

	if c.closed.Load() {
		c.entries.CompareAndDelete(key, e)
	}
}

// Store legt ein bereits berechnetes Ergebnis ab. Laufende Folds fuer key werden ersetzt.
func (c *Cache) Store(key digest.Hash, value *content.Content) {
	if c.closed.Load() || value == nil {
		return
	}

	e := newEntry()
	e.value = value
	close(e.done)
	c.entries.Store(key, e)
}

// Len gibt die Anzahl der Eintraege inklusive laufender Folds zurueck
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Computations: c.computations.Load(),
		Collapsed:    c.collapsed.Load(),
		Entries:      c.Len(),
	}
}

// Close bricht Hintergrund-Folds ab, wartet auf sie und verwirft alle Eintraege
func (c *Cache) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.cancel()
	c.wg.Wait()
	c.entries.Clear()
}
