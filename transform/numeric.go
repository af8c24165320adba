package transform

import (
	"fmt"
	"math"
	"math/bits"

	"gonum.org/v1/gonum/floats"

	"github.com/ollama/constfold/content"
	"github.com/ollama/constfold/dtype"
	"github.com/ollama/constfold/ndtype"
)

// Convert wandelt den Element-Typ eines nicht-quantisierten Tensors um.
// Float nach Integer schneidet in Richtung Null ab und saettigt.
type Convert struct {
	To dtype.DType
}

func (t Convert) validate() error {
	if !t.To.Valid() {
		return fmt.Errorf("invalid target type %s", t.To)
	}
	return nil
}

func (t Convert) inferType(in ndtype.Type) (ndtype.Type, error) {
	if err := t.validate(); err != nil {
		return ndtype.Type{}, err
	}
	if in.Elem.IsQuantized() {
		return ndtype.Type{}, fmt.Errorf("cannot convert quantized type %s", in.Elem)
	}
	return in.WithElem(dtype.Scalar(t.To)), nil
}

func (t Convert) apply(in *content.Content, out ndtype.Type) (*content.Content, error) {
	from := in.StorageElemType()

	var (
		raw []byte
		err error
	)
	if from.IsInt() && t.To.IsInt() {
		raw, err = dtype.ConvertInts(from, t.To, in.RawStorage(), storedCount(in))
	} else {
		var vals []float64
		vals, err = in.StoredFloat64s()
		if err != nil {
			return nil, err
		}
		raw, err = dtype.EncodeFloat64s(t.To, vals)
	}
	if err != nil {
		return nil, err
	}

	return content.FromRawBuffer(out, raw, in.IsSplat())
}

// Add addiert Bias elementweise. Bei quantisierten Typen auf den reellen Werten.
type Add struct {
	Bias float64
}

// Scale multipliziert elementweise mit Factor
type Scale struct {
	Factor float64
}

func inferArithType(in ndtype.Type) (ndtype.Type, error) {
	if !in.Elem.IsQuantized() && !in.Elem.IsIntOrFloat() {
		return ndtype.Type{}, fmt.Errorf("unsupported element type %s", in.Elem)
	}
	return in, nil
}

func isIntegral(v float64) bool {
	return v == math.Trunc(v) && !math.IsInf(v, 0) && math.Abs(v) < 1<<53
}

// applyArith berechnet v*factor + bias auf den gespeicherten Werten.
// Splats bleiben Splats, weil nur das gespeicherte Element berechnet wird.
func applyArith(in *content.Content, out ndtype.Type, bias, factor float64) (*content.Content, error) {
	elem := in.Type().Elem
	storage := elem.Storage

	if elem.IsQuantized() {
		q, err := in.StoredInt64s()
		if err != nil {
			return nil, err
		}
		vals := make([]float64, len(q))
		for i, v := range q {
			vals[i] = elem.Scale * float64(v-elem.ZeroPoint)
		}
		floats.Scale(factor, vals)
		floats.AddConst(bias, vals)
		for i, v := range vals {
			q[i] = dtype.RoundInt(storage, v/elem.Scale+float64(elem.ZeroPoint))
		}
		raw, err := dtype.EncodeInt64s(storage, q)
		if err != nil {
			return nil, err
		}
		return content.FromRawBuffer(out, raw, in.IsSplat())
	}

	// Integer mit ganzzahligen Parametern bleibt exakt
	if storage == dtype.U64 && isIntegral(bias) && isIntegral(factor) && bias >= 0 && factor >= 0 {
		vals, err := in.StoredUint64s()
		if err != nil {
			return nil, err
		}
		b, f := uint64(bias), uint64(factor)
		for i, v := range vals {
			vals[i] = mulAddUint(v, f, b)
		}
		raw, err := dtype.EncodeUint64s(storage, vals)
		if err != nil {
			return nil, err
		}
		return content.FromRawBuffer(out, raw, in.IsSplat())
	}
	if storage.IsInt() && storage != dtype.U64 && isIntegral(bias) && isIntegral(factor) {
		vals, err := in.StoredInt64s()
		if err != nil {
			return nil, err
		}
		b, f := int64(bias), int64(factor)
		for i, v := range vals {
			vals[i] = mulAddInt(v, f, b)
		}
		raw, err := dtype.EncodeInt64s(storage, vals)
		if err != nil {
			return nil, err
		}
		return content.FromRawBuffer(out, raw, in.IsSplat())
	}

	vals, err := in.StoredFloat64s()
	if err != nil {
		return nil, err
	}
	floats.Scale(factor, vals)
	floats.AddConst(bias, vals)
	raw, err := dtype.EncodeFloat64s(storage, vals)
	if err != nil {
		return nil, err
	}
	return content.FromRawBuffer(out, raw, in.IsSplat())
}

func storedCount(c *content.Content) int {
	if c.IsSplat() {
		return 1
	}
	return int(c.NumElements())
}

// mulAddInt berechnet v*f + b und saturiert bei Ueberlauf auf den int64-Bereich
func mulAddInt(v, f, b int64) int64 {
	neg := (v < 0) != (f < 0)
	hi, lo := bits.Mul64(absUint(v), absUint(f))
	if hi != 0 || (!neg && lo > math.MaxInt64) || (neg && lo > 1<<63) {
		if neg {
			return math.MinInt64
		}
		return math.MaxInt64
	}

	var p int64
	if neg {
		p = int64(-lo)
	} else {
		p = int64(lo)
	}

	sum := p + b
	switch {
	case b > 0 && sum < p:
		return math.MaxInt64
	case b < 0 && sum > p:
		return math.MinInt64
	}
	return sum
}

// mulAddUint berechnet v*f + b und saturiert bei Ueberlauf auf MaxUint64
func mulAddUint(v, f, b uint64) uint64 {
	hi, lo := bits.Mul64(v, f)
	if hi != 0 {
		return math.MaxUint64
	}
	sum, carry := bits.Add64(lo, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

func absUint(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}
