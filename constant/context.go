// context.go - Kompilierungs-Kontext fuer konstante Werte
//
// Dieses Modul enthaelt:
// - Context: besitzt Folding-Cache, Ressourcen-Manager und Symboltabelle
// - Option: funktionale Optionen (ueberschreiben Environment-Variablen)
// - Resolve: Aufloesen symbolischer Referenzen
//
// Ein nil-*Context ist gueltig: kein Cache, keine Ressourcen, keine Symbole.
package constant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/ollama/constfold/base"
	"github.com/ollama/constfold/envconfig"
	"github.com/ollama/constfold/foldcache"
	"github.com/ollama/constfold/resource"
)

// SymbolTable loest symbolische Referenzen in konkrete Basis-Inhalte auf
type SymbolTable interface {
	Lookup(ctx context.Context, name string) (base.Content, error)
}

// SymbolTableFunc erlaubt Funktionen als SymbolTable
type SymbolTableFunc func(ctx context.Context, name string) (base.Content, error)

func (f SymbolTableFunc) Lookup(ctx context.Context, name string) (base.Content, error) {
	return f(ctx, name)
}

type options struct {
	cache       bool
	workers     int
	waitPending bool
	logger      *slog.Logger
	symbols     SymbolTable
	resources   *resource.Manager
}

type Option func(*options)

// WithCache aktiviert oder deaktiviert den Folding-Cache
func WithCache(enabled bool) Option {
	return func(o *options) { o.cache = enabled }
}

func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

func WithWaitPending(wait bool) Option {
	return func(o *options) { o.waitPending = wait }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithSymbolTable(symbols SymbolTable) Option {
	return func(o *options) { o.symbols = symbols }
}

// WithResources setzt den Manager fuer dense_resource-Blobs.
// Ohne diese Option erzeugt der Kontext einen eigenen.
func WithResources(m *resource.Manager) Option {
	return func(o *options) { o.resources = m }
}

type Context struct {
	id        uuid.UUID
	logger    *slog.Logger
	cache     *foldcache.Cache
	resources *resource.Manager
	symbols   SymbolTable
	workers   int

	resolving singleflight.Group
}

func NewContext(opts ...Option) *Context {
	o := options{
		cache:       envconfig.BackgroundFolding(true),
		workers:     envconfig.FoldWorkers(),
		waitPending: envconfig.WaitPending(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.resources == nil {
		o.resources = resource.NewManager()
	}
	if o.workers <= 0 {
		o.workers = envconfig.FoldWorkers()
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	c := &Context{
		id:        id,
		logger:    o.logger.With("context", id.String()),
		resources: o.resources,
		symbols:   o.symbols,
		workers:   o.workers,
	}
	if o.cache {
		c.cache = foldcache.New(foldcache.Options{
			Workers:     o.workers,
			WaitPending: o.waitPending,
			Logger:      c.logger,
		})
	}

	c.logger.Debug("created constant folding context", "cache", o.cache, "workers", o.workers)
	return c
}

func (c *Context) ID() uuid.UUID {
	if c == nil {
		return uuid.Nil
	}
	return c.id
}

// Cache gibt den Folding-Cache zurueck, nil wenn deaktiviert
func (c *Context) Cache() *foldcache.Cache {
	if c == nil {
		return nil
	}
	return c.cache
}

func (c *Context) Resources() *resource.Manager {
	if c == nil {
		return nil
	}
	return c.resources
}

func (c *Context) log() *slog.Logger {
	if c == nil {
		return slog.Default()
	}
	return c.logger
}

func (c *Context) numWorkers() int {
	if c == nil || c.workers <= 0 {
		return envconfig.FoldWorkers()
	}
	return c.workers
}

// Close verwirft den Folding-Cache. Ergebnisse laufender Folds gehen verloren.
func (c *Context) Close() {
	if c == nil || c.cache == nil {
		return
	}
	stats := c.cache.Stats()
	c.cache.Close()
	c.logger.Debug("closed constant folding context",
		"hits", stats.Hits, "misses", stats.Misses, "computations", stats.Computations, "collapsed", stats.Collapsed)
}

// Resolve ersetzt eine symbolische Referenz durch den Inhalt aus der Symboltabelle.
// Andere Werte werden unveraendert zurueckgegeben.
func (c *Context) Resolve(ctx context.Context, attr ContentAttr) (ContentAttr, error) {
	if attr.IsNull() {
		return ContentAttr{}, ErrNullContent
	}

	sym, ok := attr.s.base.(*base.Symbol)
	if !ok {
		return attr, nil
	}
	if c == nil || c.symbols == nil {
		return ContentAttr{}, fmt.Errorf("%w: @%s: no symbol table", ErrUnresolved, sym.Name())
	}

	v, err, shared := c.resolving.Do(sym.Name(), func() (any, error) {
		return c.symbols.Lookup(ctx, sym.Name())
	})
	if err != nil {
		return ContentAttr{}, fmt.Errorf("%w: @%s: %w", ErrUnresolved, sym.Name(), err)
	}

	resolved, _ := v.(base.Content)
	if _, ok := resolved.(*base.Symbol); ok || resolved == nil {
		return ContentAttr{}, fmt.Errorf("%w: @%s resolved to %v", ErrUnresolved, sym.Name(), resolved)
	}
	if !resolved.Type().Equal(sym.Type()) {
		return ContentAttr{}, fmt.Errorf("%w: @%s has type %s, expected %s", ErrUnresolved, sym.Name(), resolved.Type(), sym.Type())
	}

	c.logger.Debug("resolved symbol", "name", sym.Name(), "kind", resolved.Kind(), "shared", shared)
	return New(resolved, attr.s.transformations...)
}
