package models

// Result is the outcome of a pipeline operation that never fails loudly.
// A successful result carries Value; an empty one carries the zero value
// and a Reason describing why nothing was produced.
type Result[T any] struct {
	Value  T      `json:"value"`
	Reason string `json:"reason,omitempty"`
}

// OK wraps a successful value.
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Empty returns a result holding the zero value of T and a reason.
func Empty[T any](reason string) Result[T] {
	var zero T
	return Result[T]{Value: zero, Reason: reason}
}

// EmptyWith returns a result holding a default value and a reason.
// Used where the zero value is not the documented default (e.g. a zeroed summary).
func EmptyWith[T any](v T, reason string) Result[T] {
	return Result[T]{Value: v, Reason: reason}
}

// Failed reports whether the result carries a reason instead of data.
func (r Result[T]) Failed() bool {
	return r.Reason != ""
}
