package domain

import (
	"bytes"
	"encoding/json"
)

// Optional is a patch field that distinguishes "absent" from "explicitly
// null" from "set". Only keys present in the request body mark it Set.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// Get returns the value when the field is present and non-null.
func (o Optional[T]) Get() (T, bool) {
	if !o.Set || o.Null {
		var zero T
		return zero, false
	}
	return o.Value, true
}

// Ptr resolves the field against a nullable current value.
func (o Optional[T]) Ptr(current *T) *T {
	switch {
	case !o.Set:
		return current
	case o.Null:
		return nil
	default:
		v := o.Value
		return &v
	}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
