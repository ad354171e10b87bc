package fn

// Result carries a value, an error, or both. A best-effort operation may
// return a usable value together with the error that cut it short.
type Result[T any] struct {
	val T
	err error
}

// Of wraps a (value, error) pair as returned by most functions.
func Of[T any](v T, err error) Result[T] {
	return Result[T]{val: v, err: err}
}

// IsOk returns true if the result carries no error.
func (r Result[T]) IsOk() bool { return r.err == nil }

// Unwrap returns the value and error.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }
