// fold.go - Falten konstanter Werte
//
// Dieses Modul enthaelt:
// - Fold/FoldContext: Materialisierung mit optionalem Cache
// - FoldAll: paralleles Falten mehrerer Werte
// - Enqueue: asynchrone Folds mit Wiederverwendung gecachter Praefixe
package constant

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ollama/constfold/base"
	"github.com/ollama/constfold/content"
	"github.com/ollama/constfold/logutil"
	"github.com/ollama/constfold/transform"
)

// FoldingRequest fordert den Fold von Attr an. NewTransformation ist die zuletzt
// eingefuegte Transformation und erlaubt die Wiederverwendung des Praefixes davor.
type FoldingRequest struct {
	Attr              ContentAttr
	NewTransformation transform.Transformation
}

// Fold materialisiert attr. Ohne bypassCache wird der Folding-Cache benutzt und befuellt.
func (c *Context) Fold(attr ContentAttr, bypassCache bool) (*content.Content, error) {
	return c.FoldContext(context.Background(), attr, bypassCache)
}

func (c *Context) FoldContext(ctx context.Context, attr ContentAttr, bypassCache bool) (*content.Content, error) {
	if attr.IsNull() {
		return nil, ErrNullContent
	}

	cache := c.Cache()
	if bypassCache || cache == nil {
		return c.fold(ctx, attr)
	}

	// laufende Folds fuer denselben Wert werden abgewartet statt wiederholt
	return cache.GetOrCompute(ctx, attr.Key(), func(ctx context.Context) (*content.Content, error) {
		return c.fold(ctx, attr)
	})
}

func (c *Context) fold(ctx context.Context, attr ContentAttr) (*content.Content, error) {
	res, err := base.Wrap(attr.s.base)
	if err != nil {
		return nil, &FoldError{Index: -1, Attr: attr, Err: err}
	}
	return c.apply(ctx, attr, res, 0)
}

// apply wendet die Transformationen ab Index from auf res an
func (c *Context) apply(ctx context.Context, attr ContentAttr, res *content.Content, from int) (*content.Content, error) {
	logger := c.log()
	for i := from; i < len(attr.s.transformations); i++ {
		t := attr.s.transformations[i]
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if bits := res.StorageElemType().Bits(); bits < 8 && !transform.SupportsSubByte(t) {
			return nil, &FoldError{
				Index:          i,
				Transformation: t,
				Attr:           attr,
				Err:            fmt.Errorf("%w: storage type of size '%d' bits", ErrUnsupportedSubByteTransform, bits),
			}
		}

		logger.Log(ctx, logutil.LevelTrace, "applying transformation", "index", i, "transformation", transform.String(t))

		next, err := transform.Apply(t, res)
		if err != nil {
			return nil, &FoldError{Index: i, Transformation: t, Attr: attr, Err: err}
		}
		res = next
	}
	return res, nil
}

// Enqueue faltet req.Attr im Hintergrund. Gleiche Werte werden zu einem Fold
// zusammengefasst. Gibt false zurueck, wenn kein neuer Fold gestartet wurde.
func (c *Context) Enqueue(req FoldingRequest) bool {
	cache := c.Cache()
	if cache == nil || req.Attr.IsNull() {
		return false
	}

	return cache.Enqueue(req.Attr.Key(), func(ctx context.Context) (*content.Content, error) {
		return c.foldRequest(ctx, req)
	})
}

func (c *Context) foldRequest(ctx context.Context, req FoldingRequest) (*content.Content, error) {
	attr := req.Attr
	if req.NewTransformation == nil {
		return c.fold(ctx, attr)
	}

	head, ok := attr.StripTransformationsFrom(req.NewTransformation)
	if !ok {
		return c.fold(ctx, attr)
	}

	// Peek statt Lookup: ein Worker darf nicht auf einen anderen warten
	prefix, ok := c.cache.Peek(head.Key())
	if !ok {
		return c.fold(ctx, attr)
	}

	c.logger.Log(ctx, logutil.LevelTrace, "reusing folded prefix", "key", attr.Key().Short(),
		"prefix", head.Key().Short(), "remaining", len(attr.s.transformations)-len(head.s.transformations))
	return c.apply(ctx, attr, prefix, len(head.s.transformations))
}

// FoldAll faltet alle Werte parallel, die Reihenfolge der Ergebnisse entspricht attrs
func (c *Context) FoldAll(ctx context.Context, attrs []ContentAttr) ([]*content.Content, error) {
	out := make([]*content.Content, len(attrs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.numWorkers())
	for i, attr := range attrs {
		g.Go(func() error {
			v, err := c.FoldContext(ctx, attr, false)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
