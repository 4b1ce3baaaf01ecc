package conv

import (
	"fmt"
	"math"
)

// Uint64ToInt converts uint64 to int safely.
func Uint64ToInt(v uint64) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to int (too large)", v)
	}
	return int(v), nil
}

// Int64ToInt32 converts int64 to int32 safely.
func Int64ToInt32(v int64) (int32, error) {
	if v < math.MinInt32 {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to int32 (too small)", v)
	}
	if v > math.MaxInt32 {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to int32 (too large)", v)
	}
	return int32(v), nil
}

// Float64ToInt32 converts an integral float64 to int32. Fractions and
// values outside the int32 range are rejected.
func Float64ToInt32(v float64) (int32, error) {
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("%v is not an integer", v)
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("integer overflow: %v cannot be converted to int32", v)
	}
	return int32(v), nil
}
