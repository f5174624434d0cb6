package widgetbridge

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind is the value type of a synchronized trait.
type Kind int

const (
	KindInt Kind = iota + 1
	KindFloat
	KindString
	KindBool
)

// String returns the kind name used in error messages and in the JSON schema
// sent to the frontend.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// MarshalText encodes the kind as its name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Trait is a typed attribute of a widget that is mirrored between the host
// and the frontend. The last value written by either side wins.
type Trait struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Default any    `json:"default"`
}

// Int declares an integer trait.
func Int(name string, def int) Trait {
	return Trait{Name: name, Kind: KindInt, Default: def}
}

// Float declares a floating point trait.
func Float(name string, def float64) Trait {
	return Trait{Name: name, Kind: KindFloat, Default: def}
}

// String declares a string trait.
func String(name string, def string) Trait {
	return Trait{Name: name, Kind: KindString, Default: def}
}

// Bool declares a boolean trait.
func Bool(name string, def bool) Trait {
	return Trait{Name: name, Kind: KindBool, Default: def}
}

// Coerce converts v to the Go type backing kind k: int, float64, string or
// bool. Values decoded from JSON arrive as float64 or json.Number, so
// integral floats are accepted for KindInt.
func (k Kind) Coerce(v any) (any, error) {
	switch k {
	case KindInt:
		return coerceInt(v)
	case KindFloat:
		return coerceFloat(v)
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrTraitKind, int(k))
	}
	return nil, fmt.Errorf("%w: cannot use %T as %s", ErrTraitKind, v, k)
}

func coerceInt(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		if n > math.MaxInt || n < math.MinInt {
			return nil, fmt.Errorf("%w: %d overflows int", ErrTraitKind, n)
		}
		return int(n), nil
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return coerceInt(i)
		}
		// Exponent or fraction forms such as 7.0 or 1e3
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v is not an integer", ErrTraitKind, n)
		}
		return floatToInt(f)
	}
	return nil, fmt.Errorf("%w: cannot use %T as int", ErrTraitKind, v)
}

// floatToInt converts integral floats that fit an int. float64(math.MaxInt)
// rounds up to 2^63, so the upper bound is exclusive.
func floatToInt(f float64) (any, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("%w: %v is not an integer", ErrTraitKind, f)
	}
	if f >= float64(math.MaxInt) || f < float64(math.MinInt) {
		return nil, fmt.Errorf("%w: %v overflows int", ErrTraitKind, f)
	}
	return int(f), nil
}

func coerceFloat(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v is not a number", ErrTraitKind, n)
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w: cannot use %T as float", ErrTraitKind, v)
}
