package util

import (
	"fmt"
)

// SafeOperation wraps a keyed operation such that panics are recovered and nice error messages
// are constructed. The kind labels the operation in errors (e.g. Map, Filter, FlatMap).
func SafeOperation[I, O any](kind string, op func(key string, value I) (O, error)) func(key string, value I) (O, error) {
	return func(key string, value I) (result O, err error) {
		defer func() {
			if r := recover(); r != nil {
				if anErr, ok := r.(error); ok {
					err = fmt.Errorf("%s Panic: %w\nKey: %s\n%s", kind, anErr, key, GetTrace())
				} else {
					err = fmt.Errorf("%s Panic: %v\nKey: %s\n%s", kind, r, key, GetTrace())
				}
			} else if err != nil {
				err = fmt.Errorf("%s Error: %w\nKey: %s", kind, err, key)
			}
		}()
		result, err = op(key, value)
		return
	}
}

// SafeReductionOperation wraps a ReductionOperation such that panics are recovered and nice error messages are constructed
func SafeReductionOperation[V any](reductionOp func(key string, left V, right V) (V, error)) func(key string, left V, right V) (V, error) {
	return func(key string, left V, right V) (result V, err error) {
		defer func() {
			if r := recover(); r != nil {
				if anErr, ok := r.(error); ok {
					err = fmt.Errorf("Reduction Panic: %w\nKey: %s\n%s", anErr, key, GetTrace())
				} else {
					err = fmt.Errorf("Reduction Panic: %v\nKey: %s\n%s", r, key, GetTrace())
				}
			} else if err != nil {
				err = fmt.Errorf("Reduction Error: %w\nKey: %s", err, key)
			}
		}()
		result, err = reductionOp(key, left, right)
		return
	}
}
