package contracts

import (
	"encoding/json"
	"reflect"
)

// Result is the outcome of one isolated computation (a KPI card, a derived table).
// A failed Result never aborts its siblings.
type Result[T any] struct {
	Value T
	Err   error
}

// OK wraps a successful value
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps an error
func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// FailWith wraps an error together with a partial value, such as a placeholder card
func FailWith[T any](v T, err error) Result[T] {
	return Result[T]{Value: v, Err: err}
}

// Ok reports success
func (r Result[T]) Ok() bool {
	return r.Err == nil
}

// Get unpacks the result
func (r Result[T]) Get() (T, error) {
	return r.Value, r.Err
}

type resultJSON struct {
	Ok    bool        `json:"ok"`
	Value interface{} `json:"value,omitempty"`
	Error string      `json:"error,omitempty"`
	Kind  string      `json:"kind,omitempty"`
}

// MarshalJSON emits {"ok":true,"value":...} or {"ok":false,"error":"...","kind":"..."}.
// A failed result keeps its value only when one was set with FailWith.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		out := resultJSON{Ok: false, Error: r.Err.Error(), Kind: Kind(r.Err)}
		if v := reflect.ValueOf(&r.Value).Elem(); !v.IsZero() {
			out.Value = r.Value
		}
		return json.Marshal(out)
	}
	return json.Marshal(resultJSON{Ok: true, Value: r.Value})
}
