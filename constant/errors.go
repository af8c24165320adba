package constant

import (
	"errors"
	"fmt"

	"github.com/ollama/constfold/base"
	"github.com/ollama/constfold/transform"
)

var (
	ErrInvalidTransformationList   = errors.New("invalid transformation list")
	ErrDuplicateLastTransformation = errors.New("existing transformation with LAST position requirement")
	ErrInvalidQuantizationChain    = errors.New("can't add QuantCast to explicitly dequantized constant")
	ErrUnsupportedSubByteTransform = errors.New("unsupported sub-byte storage type")
	ErrNullContent                 = errors.New("null content attribute")

	// ErrUnresolved ist base.ErrUnresolved, damit Aufrufer nur dieses Paket brauchen
	ErrUnresolved = base.ErrUnresolved
)

// FoldError beschreibt einen Fehler waehrend eines Folds. Index ist -1, wenn
// bereits das Verpacken des Basis-Inhalts fehlschlug.
type FoldError struct {
	Index          int
	Transformation transform.Transformation
	Attr           ContentAttr
	Err            error
}

func (e *FoldError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("fold %s: base content: %v", e.Attr.Key().Short(), e.Err)
	}
	return fmt.Sprintf("fold %s: transformation #%d %s: %v", e.Attr.Key().Short(), e.Index, transform.String(e.Transformation), e.Err)
}

func (e *FoldError) Unwrap() error {
	return e.Err
}

// SyntaxError meldet einen Fehler in der Textform, Offset ist die Byte-Position
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("(offset %d): %s", e.Offset, e.Msg)
	}
	return e.Msg
}
