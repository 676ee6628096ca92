package cache

import (
	"reflect"
)

// SizeEstimator reports the approximate in-memory size of a value in bytes.
// The cache is value-type-agnostic; hosts with exact knowledge of their
// value types can supply a precise estimator.
type SizeEstimator func(value any) int64

// entryOverhead approximates the bookkeeping cost per entry (map slot,
// metadata struct, key header).
const entryOverhead = 96

// DefaultEstimator estimates sizes with a type switch over common value
// types and a reflection walk for composites. It is a heuristic: close
// enough to keep the size budget meaningful, cheap enough to run on every
// insert.
func DefaultEstimator(value any) int64 {
	return estimateValue(reflect.ValueOf(value), 0)
}

// maxEstimateDepth bounds the reflection walk so cyclic or deeply nested
// values cannot stall an insert.
const maxEstimateDepth = 8

func estimateValue(v reflect.Value, depth int) int64 {
	if !v.IsValid() {
		return 0
	}
	if depth > maxEstimateDepth {
		return int64(v.Type().Size())
	}

	switch v.Kind() {
	case reflect.String:
		return int64(len(v.String())) + 16
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return 24
		}
		size := int64(24)
		// Byte slices are common enough to special-case.
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return size + int64(v.Len())
		}
		for i := 0; i < v.Len(); i++ {
			size += estimateValue(v.Index(i), depth+1)
		}
		return size
	case reflect.Map:
		if v.IsNil() {
			return 48
		}
		size := int64(48)
		iter := v.MapRange()
		for iter.Next() {
			size += estimateValue(iter.Key(), depth+1)
			size += estimateValue(iter.Value(), depth+1)
		}
		return size
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return 8
		}
		return 8 + estimateValue(v.Elem(), depth+1)
	case reflect.Struct:
		size := int64(0)
		for i := 0; i < v.NumField(); i++ {
			size += estimateValue(v.Field(i), depth+1)
		}
		return size
	default:
		return int64(v.Type().Size())
	}
}
