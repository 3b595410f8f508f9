package model

import (
	"bytes"
	"encoding/json"
)

// Optional distinguishes the three states a nullable field can have in a
// partial update: absent, explicitly null, and present with a value.
//
// Use it with the `omitzero` tag option so that an unset Optional is left out
// when encoding.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null returns an Optional that encodes as JSON null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// Ptr returns nil for null, otherwise a pointer to a copy of Value.
func (o Optional[T]) Ptr() *T {
	if o.Null {
		return nil
	}
	v := o.Value
	return &v
}

// IsZero lets encoding/json skip unset fields tagged omitzero.
func (o Optional[T]) IsZero() bool {
	return !o.Set
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
