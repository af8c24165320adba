package constant

import (
	"fmt"

	"github.com/emirpasic/gods/v2/lists/arraylist"

	"github.com/ollama/constfold/transform"
)

// InsertionPosition gibt den Index zurueck, an dem t eingefuegt werden muss.
// Die Liste bleibt dabei in der Form [NONE]* [PREFERRED_LAST]* [LAST]?, die
// Reihenfolge innerhalb einer Gruppe ist stabil.
func InsertionPosition(ts []transform.Transformation, t transform.Transformation) (int, error) {
	if len(ts) == 0 {
		return 0, nil
	}

	req := transform.PositionOf(t)
	lastReq := transform.PositionOf(ts[len(ts)-1])
	if req == transform.PositionLast && lastReq == transform.PositionLast {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateLastTransformation, transform.String(ts[len(ts)-1]))
	}
	if req == transform.PositionLast {
		return len(ts), nil
	}

	i := len(ts)
	for ; i > 0; i-- {
		prev := transform.PositionOf(ts[i-1])
		if prev == transform.PositionNone || (prev == transform.PositionPreferredLast && req == transform.PositionPreferredLast) {
			return i, nil
		}
	}
	return i, nil
}

// canAddQuantCast sucht rueckwaerts das naechste Quantize oder Dequantize
func canAddQuantCast(head []transform.Transformation) bool {
	for i := len(head) - 1; i >= 0; i-- {
		switch head[i].(type) {
		case transform.Quantize:
			return true
		case transform.Dequantize:
			return false
		}
	}
	return true
}

// AddTransformation fuegt t an der passenden Position ein und gibt den neuen Wert zurueck.
// attr bleibt unveraendert. Mit aktivem Folding-Cache wird der neue Wert im Hintergrund gefaltet.
func (c *Context) AddTransformation(attr ContentAttr, t transform.Transformation) (ContentAttr, error) {
	if attr.IsNull() {
		return ContentAttr{}, ErrNullContent
	}
	if err := transform.Validate(t); err != nil {
		return ContentAttr{}, fmt.Errorf("%w: %w", ErrInvalidTransformationList, err)
	}

	ts := attr.s.transformations
	pos, err := InsertionPosition(ts, t)
	if err != nil {
		return ContentAttr{}, err
	}

	if _, ok := t.(transform.QuantCast); ok && !canAddQuantCast(ts[:pos]) {
		return ContentAttr{}, ErrInvalidQuantizationChain
	}

	list := arraylist.New(ts...)
	list.Insert(pos, t)

	// Parameter ab der Einfuegeposition an die neuen Vorgaenger anpassen
	typ, _, err := InferFinalTypeAndSplat(attr.s.base, ts[:pos])
	if err != nil {
		return ContentAttr{}, fmt.Errorf("%w: %w", ErrInvalidTransformationList, err)
	}
	for i := pos; i < list.Size(); i++ {
		cur, _ := list.Get(i)
		cur = transform.Update(cur, typ)
		list.Set(i, cur)

		typ, err = transform.InferType(cur, typ)
		if err != nil {
			return ContentAttr{}, fmt.Errorf("%w: index %d: %w", ErrInvalidTransformationList, i, err)
		}
	}

	next, err := newAttr(attr.s.base, list.Values())
	if err != nil {
		return ContentAttr{}, err
	}

	inserted, _ := list.Get(pos)
	c.Enqueue(FoldingRequest{Attr: next, NewTransformation: inserted})
	return next, nil
}

// AddTransformations fuegt mehrere Transformationen nacheinander ein
func (c *Context) AddTransformations(attr ContentAttr, ts ...transform.Transformation) (ContentAttr, error) {
	for _, t := range ts {
		var err error
		attr, err = c.AddTransformation(attr, t)
		if err != nil {
			return ContentAttr{}, err
		}
	}
	return attr, nil
}
