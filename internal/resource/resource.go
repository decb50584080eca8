// Package resource provides the four-state wrapper emitted by every live
// subscription in the storefront: Unspecified before a subscription has
// produced anything, Loading while an operation is in flight, and
// Success/Error once it settles.
package resource

import "encoding/json"

type State int

const (
	StateUnspecified State = iota
	StateLoading
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unspecified"
	}
}

// Resource is a snapshot of an asynchronous value. Data is only meaningful
// when State is StateSuccess, Err only when State is StateError.
type Resource[T any] struct {
	State State
	Data  T
	Err   string
}

func Unspecified[T any]() Resource[T] {
	return Resource[T]{State: StateUnspecified}
}

func Loading[T any]() Resource[T] {
	return Resource[T]{State: StateLoading}
}

func Success[T any](data T) Resource[T] {
	return Resource[T]{State: StateSuccess, Data: data}
}

func Error[T any](msg string) Resource[T] {
	return Resource[T]{State: StateError, Err: msg}
}

func (r Resource[T]) IsSuccess() bool { return r.State == StateSuccess }
func (r Resource[T]) IsError() bool   { return r.State == StateError }

func (r Resource[T]) MarshalJSON() ([]byte, error) {
	out := struct {
		State string `json:"state"`
		Data  *T     `json:"data,omitempty"`
		Error string `json:"error,omitempty"`
	}{State: r.State.String(), Error: r.Err}
	if r.State == StateSuccess {
		out.Data = &r.Data
	}
	return json.Marshal(out)
}
