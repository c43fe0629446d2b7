package task

import "fmt"

// Result is the outcome of exactly one task execution. It is a closed
// sum: Success, Cancelled or Error. Consumers switch over the three
// variants (see Match); any other implementation is a programming error.
type Result interface {
	// State maps the result to its terminal lifecycle state
	State() State

	isResult()
}

// Success carries the value a task produced.
type Success struct {
	Value any
}

// Cancelled records that the task observed cancellation before finishing.
// Cause is ErrCancelled or a *TimeoutError.
type Cancelled struct {
	Cause error
}

// Error records a failure. Cause is never nil.
type Error struct {
	Cause error
}

func (Success) State() State   { return StateCompleted }
func (Cancelled) State() State { return StateCancelled }
func (Error) State() State     { return StateError }

func (Success) isResult()   {}
func (Cancelled) isResult() {}
func (Error) isResult()     {}

func (s Success) String() string   { return fmt.Sprintf("Success(%v)", s.Value) }
func (c Cancelled) String() string { return fmt.Sprintf("Cancelled(%v)", c.Cause) }
func (e Error) String() string     { return fmt.Sprintf("Error(%v)", e.Cause) }

// Match dispatches on the variant of r. It panics on a nil or foreign Result.
func Match[T any](r Result, onSuccess func(Success) T, onCancelled func(Cancelled) T, onError func(Error) T) T {
	switch v := r.(type) {
	case Success:
		return onSuccess(v)
	case Cancelled:
		return onCancelled(v)
	case Error:
		return onError(v)
	default:
		panic(fmt.Sprintf("task: unexpected result %T", r))
	}
}

// Fail builds an Error result from err, or Cancelled if err is a
// cancellation. A nil err is a programming error.
func Fail(err error) Result {
	if err == nil {
		panic("task: Fail called with nil error")
	}
	if IsCancellation(err) {
		return Cancelled{Cause: Normalize(err)}
	}
	return Error{Cause: err}
}

// Unwrap turns an Error result into a propagating error and returns
// Success and Cancelled unchanged.
func Unwrap(r Result) (Result, error) {
	if e, ok := r.(Error); ok {
		return nil, e.Cause
	}
	return r, nil
}

// StateOf maps the (result, error) pair returned by Execute, Await or
// AwaitOrReturn to the state a caller publishes. A cancellation error maps
// to CANCELLED and any other error to ERROR.
func StateOf(r Result, err error) State {
	if err != nil {
		if IsCancellation(err) {
			return StateCancelled
		}
		return StateError
	}
	if r == nil {
		return StateError
	}
	return r.State()
}
