package convert

// ToFloat64Slice converts various slice types to []float64.
// Returns (slice, true) on success, (nil, false) on failure.
//
// Supported types:
//   - []float64 (returned as-is)
//   - []float32 (each element converted)
//   - []interface{} (each element converted via ToFloat64)
//
// Example:
//
//	s, ok := ToFloat64Slice([]interface{}{1, 2.5, "3"})  // Returns ([1.0, 2.5, 3.0], true)
//	s, ok := ToFloat64Slice([]float32{1.0, 2.0})        // Returns ([1.0, 2.0], true)
//
// ELI12:
//
// This takes a list of numbers (in any format) and converts them all
// to decimal numbers. If any number in the list can't be converted,
// it returns nil to tell you something went wrong.
func ToFloat64Slice(v interface{}) ([]float64, bool) {
	switch val := v.(type) {
	case []float64:
		return val, true
	case []float32:
		result := make([]float64, len(val))
		for i, f := range val {
			result[i] = float64(f)
		}
		return result, true
	case []interface{}:
		result := make([]float64, len(val))
		for i, item := range val {
			if f, ok := ToFloat64(item); ok {
				result[i] = f
			} else {
				return nil, false
			}
		}
		return result, true
	}
	return nil, false
}

// ToStringSlice converts various slice types to []string.
// Returns slice on success, nil on failure.
//
// Supported types:
//   - []string (returned as-is)
//   - []interface{} (every element must already be a string)
//
// Example:
//
//	s := ToStringSlice([]interface{}{"a", "b", "c"})  // Returns ["a", "b", "c"]
//	s := ToStringSlice([]interface{}{1, 2, 3})        // Returns nil
func ToStringSlice(v interface{}) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []interface{}:
		result := make([]string, len(val))
		for i, item := range val {
			if s, ok := item.(string); ok {
				result[i] = s
			} else {
				return nil
			}
		}
		return result
	}
	return nil
}
