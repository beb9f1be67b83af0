// Package common holds the value helpers shared by the engine and the SQL
// front end.
package common

import (
	"fmt"
	"math"
)

// Convert coerces a literal into K. Values that already have type K pass
// through; numeric literals convert between integer and float kinds when
// the value is representable in K without loss.
func Convert[K any](v any) (K, bool) {
	if k, ok := v.(K); ok {
		return k, true
	}

	var out K
	ok := false
	switch p := any(&out).(type) {
	case *int:
		var n int64
		if n, ok = toInt(v); ok {
			ok = n >= math.MinInt && n <= math.MaxInt
			*p = int(n)
		}
	case *int32:
		var n int64
		if n, ok = toInt(v); ok {
			ok = n >= math.MinInt32 && n <= math.MaxInt32
			*p = int32(n)
		}
	case *int64:
		*p, ok = toInt(v)
	case *uint:
		var n uint64
		if n, ok = toUint(v); ok {
			*p = uint(n)
		}
	case *uint32:
		var n uint64
		if n, ok = toUint(v); ok {
			ok = n <= math.MaxUint32
			*p = uint32(n)
		}
	case *uint64:
		*p, ok = toUint(v)
	case *float32:
		var f float64
		if f, ok = toFloat(v); ok {
			*p = float32(f)
		}
	case *float64:
		*p, ok = toFloat(v)
	}
	if !ok {
		var zero K
		return zero, false
	}
	return out, true
}

// Bracket returns the neighbouring keys lo < f < hi of a float literal f
// with a fractional part, for integer K. It reports false for any other
// literal or key type, and when either neighbour does not fit in K.
func Bracket[K any](v any) (lo, hi K, ok bool) {
	var f float64
	switch n := v.(type) {
	case float32:
		f = float64(n)
	case float64:
		f = n
	default:
		return lo, hi, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f == math.Trunc(f) {
		return lo, hi, false
	}
	switch any(lo).(type) {
	case int, int32, int64, uint, uint32, uint64:
	default:
		return lo, hi, false
	}
	lo, okLo := Convert[K](math.Floor(f))
	hi, okHi := Convert[K](math.Ceil(f))
	if !okLo || !okHi {
		var zero K
		return zero, zero, false
	}
	return lo, hi, true
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float32:
		return toInt(float64(n))
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func toUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	}
	i, ok := toInt(v)
	if !ok || i < 0 {
		return 0, false
	}
	return uint64(i), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	if u, ok := toUint(v); ok {
		return float64(u), true
	}
	return 0, false
}

// Literal renders a predicate literal for plans and logs. Strings are
// quoted and nil prints as NULL.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("%q", x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}
