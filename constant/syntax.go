// syntax.go - Textform konstanter Werte
//
// Dieses Modul enthaelt:
// - String: Ausgabe als "<basis> : <typ>[, [<transformation>, ...]]"
// - Parse: Einlesen der Textform
//
// Basis-Formen:
//
//	ref<@name>                 symbolische Referenz
//	dense<[1, 2, 3, 4]>        Werteliste
//	dense<7>                   Splat
//	dense<"0x0100000002000000"> Roh-Puffer (Little Endian)
//	dense_resource<name>       Blob aus dem Ressourcen-Manager
package constant

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ollama/constfold/base"
	"github.com/ollama/constfold/dtype"
	"github.com/ollama/constfold/ndtype"
	"github.com/ollama/constfold/transform"
)

// groessere Puffer werden hexadezimal ausgegeben
const maxLiteralElements = 16

func (a ContentAttr) String() string {
	if a.s == nil {
		return "<<NULL ATTRIBUTE>>"
	}

	var b strings.Builder
	b.WriteString(formatBase(a.s.base))
	b.WriteString(" : ")
	b.WriteString(a.s.base.Type().String())

	if len(a.s.transformations) > 0 {
		b.WriteString(", [")
		for i, t := range a.s.transformations {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(transform.String(t))
		}
		b.WriteString("]")
	}
	return b.String()
}

func formatBase(c base.Content) string {
	switch c := c.(type) {
	case *base.Symbol:
		return "ref<@" + c.Name() + ">"
	case *base.Resource:
		return "dense_resource<" + c.Name() + ">"
	case *base.Dense:
		return "dense<" + formatDense(c) + ">"
	default:
		return fmt.Sprintf("%T", c)
	}
}

func formatDense(d *base.Dense) string {
	typ := d.Type()
	if !d.IsSplat() && typ.NumElements() > maxLiteralElements {
		return `"0x` + strings.ToUpper(hex.EncodeToString(d.Data())) + `"`
	}

	n := int(typ.NumElements())
	if d.IsSplat() {
		n = 1
	}

	storage := typ.Elem.Storage
	vals := make([]string, n)
	if storage == dtype.U64 {
		uints, err := dtype.DecodeUint64s(storage, d.Data(), n)
		if err != nil {
			return `"0x` + strings.ToUpper(hex.EncodeToString(d.Data())) + `"`
		}
		for i, v := range uints {
			vals[i] = strconv.FormatUint(v, 10)
		}
	} else if storage.IsInt() {
		ints, err := dtype.DecodeInt64s(storage, d.Data(), n)
		if err != nil {
			return `"0x` + strings.ToUpper(hex.EncodeToString(d.Data())) + `"`
		}
		for i, v := range ints {
			vals[i] = strconv.FormatInt(v, 10)
		}
	} else {
		floats, err := dtype.DecodeFloat64s(storage, d.Data(), n)
		if err != nil {
			return `"0x` + strings.ToUpper(hex.EncodeToString(d.Data())) + `"`
		}
		for i, v := range floats {
			vals[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
	}

	if d.IsSplat() {
		return vals[0]
	}
	return "[" + strings.Join(vals, ", ") + "]"
}

// Parse liest die Textform ohne Ressourcen-Manager
func Parse(s string) (ContentAttr, error) {
	var c *Context
	return c.Parse(s)
}

// Parse liest die Textform. dense_resource-Namen werden im Ressourcen-Manager
// des Kontexts nachgeschlagen.
func (c *Context) Parse(s string) (ContentAttr, error) {
	parts := transform.SplitTopLevel(s, ',')
	if len(parts) == 0 || len(parts) > 2 {
		return ContentAttr{}, &SyntaxError{Msg: fmt.Sprintf("expected '<base> : <type>[, [...]]', got %q", s)}
	}

	head := strings.SplitN(parts[0], " : ", 2)
	if len(head) != 2 {
		fields := transform.SplitTopLevel(parts[0], ':')
		if len(fields) != 2 {
			return ContentAttr{}, &SyntaxError{Msg: fmt.Sprintf("expected ':' between base and type in %q", parts[0])}
		}
		head = fields
	}

	typ, err := ndtype.Parse(strings.TrimSpace(head[1]))
	if err != nil {
		return ContentAttr{}, &SyntaxError{Offset: strings.Index(s, strings.TrimSpace(head[1])), Msg: err.Error()}
	}

	b, err := c.parseBase(strings.TrimSpace(head[0]), typ)
	if err != nil {
		return ContentAttr{}, &SyntaxError{Msg: err.Error()}
	}

	var ts []transform.Transformation
	if len(parts) == 2 {
		list := parts[1]
		offset := strings.LastIndex(s, list)

		body, ok := strings.CutPrefix(list, "[")
		if ok {
			body, ok = strings.CutSuffix(body, "]")
		}
		if !ok {
			return ContentAttr{}, &SyntaxError{Offset: offset, Msg: fmt.Sprintf("expected transformation list in brackets, got %q", list)}
		}

		for _, field := range transform.SplitTopLevel(body, ',') {
			t, err := transform.Parse(field)
			if err != nil {
				return ContentAttr{}, &SyntaxError{Offset: offset + strings.Index(list, field), Msg: err.Error()}
			}
			ts = append(ts, t)
		}
	}

	return New(b, ts...)
}

func (c *Context) parseBase(s string, typ ndtype.Type) (base.Content, error) {
	switch {
	case strings.HasPrefix(s, "ref<@") && strings.HasSuffix(s, ">"):
		return base.NewSymbol(s[len("ref<@"):len(s)-1], typ)
	case strings.HasPrefix(s, "dense_resource<") && strings.HasSuffix(s, ">"):
		name := s[len("dense_resource<") : len(s)-1]
		m := c.Resources()
		if m == nil {
			return nil, fmt.Errorf("dense_resource<%s> needs a resource manager", name)
		}
		blob, err := m.Lookup(name)
		if err != nil {
			return nil, err
		}
		return base.NewResource(typ, blob)
	case strings.HasPrefix(s, "dense<") && strings.HasSuffix(s, ">"):
		return parseDense(strings.TrimSpace(s[len("dense<"):len(s)-1]), typ)
	default:
		return nil, fmt.Errorf("unknown base content %q", s)
	}
}

func parseDense(body string, typ ndtype.Type) (*base.Dense, error) {
	if !typ.Elem.IsIntOrFloat() {
		return nil, fmt.Errorf("%w: unsupported element type '%s'", base.ErrInvalidBaseContent, typ.Elem)
	}

	if quoted, ok := strings.CutPrefix(body, `"`); ok {
		quoted, ok = strings.CutSuffix(quoted, `"`)
		if !ok {
			return nil, fmt.Errorf("unterminated string in %q", body)
		}
		digits, ok := strings.CutPrefix(quoted, "0x")
		if !ok {
			return nil, fmt.Errorf("expected hex literal, got %q", quoted)
		}
		raw, err := hex.DecodeString(digits)
		if err != nil {
			return nil, err
		}
		return base.NewDense(typ, raw)
	}

	var fields []string
	if strings.HasPrefix(body, "[") {
		flat := strings.NewReplacer("[", "", "]", "").Replace(body)
		for _, f := range strings.Split(flat, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
	} else {
		fields = []string{body}
	}

	storage := typ.Elem.Storage
	var (
		raw []byte
		err error
	)
	switch {
	case storage == dtype.U64:
		vals := make([]uint64, len(fields))
		for i, f := range fields {
			if vals[i], err = strconv.ParseUint(f, 10, 64); err != nil {
				return nil, err
			}
		}
		raw, err = dtype.EncodeUint64s(storage, vals)
	case storage.IsInt():
		vals := make([]int64, len(fields))
		for i, f := range fields {
			if vals[i], err = strconv.ParseInt(f, 10, 64); err != nil {
				return nil, err
			}
		}
		raw, err = dtype.EncodeInt64s(storage, vals)
	default:
		vals := make([]float64, len(fields))
		for i, f := range fields {
			if vals[i], err = strconv.ParseFloat(f, 64); err != nil {
				return nil, err
			}
		}
		raw, err = dtype.EncodeFloat64s(storage, vals)
	}
	if err != nil {
		return nil, err
	}

	return base.NewDense(typ, raw)
}
