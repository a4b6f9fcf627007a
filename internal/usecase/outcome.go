package usecase

// Outcome is the result of one best-effort pipeline stage: either a value or
// the reason the stage failed. A skipped stage is Failed with a nil reason.
type Outcome[T any] struct {
	value T
	err   error
	ok    bool
}

// Ok wraps a successful stage value.
func Ok[T any](value T) Outcome[T] {
	return Outcome[T]{value: value, ok: true}
}

// Failed records a stage failure.
func Failed[T any](err error) Outcome[T] {
	return Outcome[T]{err: err}
}

// Skipped records a stage that did not run.
func Skipped[T any]() Outcome[T] {
	return Outcome[T]{}
}

// IsOk reports whether the stage produced a value.
func (o Outcome[T]) IsOk() bool { return o.ok }

// Err returns the failure reason, nil for successful or skipped stages.
func (o Outcome[T]) Err() error { return o.err }

// Value returns the stage value and whether it is present.
func (o Outcome[T]) Value() (T, bool) { return o.value, o.ok }

// OrElse returns the stage value, or fallback when the stage did not succeed.
func (o Outcome[T]) OrElse(fallback T) T {
	if o.ok {
		return o.value
	}
	return fallback
}

// Label names the outcome for metrics.
func (o Outcome[T]) Label() string {
	switch {
	case o.ok:
		return "ok"
	case o.err != nil:
		return "failed"
	default:
		return "skipped"
	}
}
