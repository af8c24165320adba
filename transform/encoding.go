// Package transform - Text- und Binaerform der Transformationen
//
// Dieses Modul enthaelt:
// - String: Textform "#const.Name<params>"
// - Parse: Parsing der Textform mit Namensvorschlaegen
// - Encode/Equal: kanonische CBOR-Kodierung und strukturelle Gleichheit
package transform

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/ollama/constfold/codec"
	"github.com/ollama/constfold/dtype"
)

const prefix = "#const."

var names = []string{
	"Reorder", "Convert", "Quantize", "Dequantize", "QuantCast", "Pad", "Broadcast",
	"SubView", "Reshape", "Add", "Scale", "BitPack", "Swizzle",
}

// Encode gibt die kanonische CBOR-Kodierung zurueck
func Encode(t Transformation) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: got NULL transformation", ErrInvalidTransformation)
	}
	return codec.Marshal([]any{Name(t), t})
}

// Equal vergleicht zwei Transformationen strukturell
func Equal(a, b Transformation) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if Name(a) != Name(b) {
		return false
	}
	ea, err := Encode(a)
	if err != nil {
		return false
	}
	eb, err := Encode(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatList[T int | int64](vals []T) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vals {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatInt(int64(v), 10))
	}
	b.WriteByte(']')
	return b.String()
}

// String gibt die Textform zurueck, z.B. "#const.Reorder<[1, 0]>"
func String(t Transformation) string {
	var params string
	switch t := t.(type) {
	case nil:
		return "<<NULL TRANSFORMATION>>"
	case Reorder:
		params = formatList(t.Perm)
	case Convert:
		params = t.To.String()
	case Quantize:
		params = t.To.String()
	case Dequantize:
		return prefix + "Dequantize"
	case QuantCast:
		params = t.To.String()
	case Pad:
		params = fmt.Sprintf("%s, %s, %d", formatList(t.Before), formatList(t.After), t.Fill)
	case Broadcast:
		params = formatList(t.Shape)
	case SubView:
		params = fmt.Sprintf("%s, %s", formatList(t.Offset), formatList(t.Shape))
	case Reshape:
		params = formatList(t.Shape)
	case Add:
		params = formatFloat(t.Bias)
	case Scale:
		params = formatFloat(t.Factor)
	case BitPack:
		params = strconv.Itoa(t.Width)
	case Swizzle:
		params = strconv.Itoa(t.Key)
	default:
		return fmt.Sprintf("%T", t)
	}
	return prefix + Name(t) + "<" + params + ">"
}

// SplitTopLevel trennt s an sep, ausser innerhalb von [], <>, () oder Strings
func SplitTopLevel(s string, sep byte) []string {
	var (
		parts  []string
		depth  int
		quoted bool
		start  int
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '[' || c == '<' || c == '(':
			depth++
		case c == ']' || c == '>' || c == ')':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" || len(parts) > 0 {
		parts = append(parts, rest)
	}
	return parts
}

func parseList(s string) ([]int64, error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(s), "[")
	if !ok {
		return nil, fmt.Errorf("expected '[' in %q", s)
	}
	body, ok = strings.CutSuffix(body, "]")
	if !ok {
		return nil, fmt.Errorf("expected ']' in %q", s)
	}

	vals := []int64{}
	for _, f := range SplitTopLevel(body, ',') {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func parseInt(s string) (int, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	return int(v), err
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, err
}

// suggest gibt den naechstliegenden bekannten Namen zurueck
func suggest(name string) string {
	best, score := "", math.MaxInt
	for _, n := range names {
		if d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(n)); d < score {
			best, score = n, d
		}
	}
	if score <= 3 {
		return best
	}
	return ""
}

// Parse parst die Textform einer einzelnen Transformation
func Parse(s string) (Transformation, error) {
	s = strings.TrimSpace(s)
	rest, ok := strings.CutPrefix(s, prefix)
	if !ok {
		return nil, fmt.Errorf("%w: expected %q in %q", ErrInvalidTransformation, prefix, s)
	}

	name, params, hasParams := strings.Cut(rest, "<")
	if hasParams {
		params, ok = strings.CutSuffix(params, ">")
		if !ok {
			return nil, fmt.Errorf("%w: unterminated parameters in %q", ErrInvalidTransformation, s)
		}
	}

	t, err := parseParams(name, SplitTopLevel(params, ','))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTransformation, name, err)
	}
	if err := Validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

func parseParams(name string, args []string) (Transformation, error) {
	want := map[string]int{
		"Reorder": 1, "Convert": 1, "Quantize": 1, "Dequantize": 0, "QuantCast": 1, "Pad": 3,
		"Broadcast": 1, "SubView": 2, "Reshape": 1, "Add": 1, "Scale": 1, "BitPack": 1, "Swizzle": 1,
	}

	n, ok := want[name]
	if !ok {
		if s := suggest(name); s != "" {
			return nil, fmt.Errorf("unknown transformation %q, did you mean %q?", name, s)
		}
		return nil, fmt.Errorf("unknown transformation %q", name)
	}
	// Fill ist optional und wird beim Einfuegen neu berechnet
	if name == "Pad" && len(args) == 2 {
		args = append(args, "0")
	}
	if len(args) != n {
		return nil, fmt.Errorf("expected %d parameters, got %d", n, len(args))
	}

	switch name {
	case "Reorder":
		perm, err := parseList(args[0])
		if err != nil {
			return nil, err
		}
		p := make([]int, len(perm))
		for i, v := range perm {
			p[i] = int(v)
		}
		return Reorder{Perm: p}, nil
	case "Convert":
		d, err := dtype.ParseDType(args[0])
		if err != nil {
			return nil, err
		}
		return Convert{To: d}, nil
	case "Quantize", "QuantCast":
		e, err := dtype.ParseElemType(args[0])
		if err != nil {
			return nil, err
		}
		if name == "Quantize" {
			return Quantize{To: e}, nil
		}
		return QuantCast{To: e}, nil
	case "Dequantize":
		return Dequantize{}, nil
	case "Pad":
		before, err := parseList(args[0])
		if err != nil {
			return nil, err
		}
		after, err := parseList(args[1])
		if err != nil {
			return nil, err
		}
		fill, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return nil, err
		}
		return Pad{Before: before, After: after, Fill: fill}, nil
	case "Broadcast", "Reshape":
		shape, err := parseList(args[0])
		if err != nil {
			return nil, err
		}
		if name == "Broadcast" {
			return Broadcast{Shape: shape}, nil
		}
		return Reshape{Shape: shape}, nil
	case "SubView":
		offset, err := parseList(args[0])
		if err != nil {
			return nil, err
		}
		shape, err := parseList(args[1])
		if err != nil {
			return nil, err
		}
		return SubView{Offset: offset, Shape: shape}, nil
	case "Add", "Scale":
		v, err := parseFloat(args[0])
		if err != nil {
			return nil, err
		}
		if name == "Add" {
			return Add{Bias: v}, nil
		}
		return Scale{Factor: v}, nil
	case "BitPack", "Swizzle":
		v, err := parseInt(args[0])
		if err != nil {
			return nil, err
		}
		if name == "BitPack" {
			return BitPack{Width: v}, nil
		}
		return Swizzle{Key: v}, nil
	}

	return nil, fmt.Errorf("unknown transformation %q", name)
}
