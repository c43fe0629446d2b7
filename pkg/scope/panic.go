package scope

import (
	"fmt"
	"runtime"
)

// PanicError is a panic recovered from a job, with the stack at the
// point of the panic. It is reported as the job's Error result.
type PanicError struct {
	Job   string
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job %q panicked: %v", e.Job, e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func newPanicError(job string, v any) *PanicError {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{Job: job, Value: v, Stack: string(buf[:n])}
}
