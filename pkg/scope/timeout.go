package scope

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxorio/playground/pkg/core/failfast"
	"github.com/fluxorio/playground/pkg/task"
)

// WithTimeout runs body under a child scope of parent that is cancelled
// after d with a *task.TimeoutError cause. The child scope is waited
// before WithTimeout returns.
//
// A non-cancellation error from body is returned as is. A body that
// returned nil with no job cut short by the deadline yields nil, even if
// the deadline passed meanwhile. Otherwise, if the deadline passed (or
// parent was cancelled) the cancellation cause is returned, so callers can
// match task.ErrCancelled or errors.As a *task.TimeoutError.
func WithTimeout(parent *Scope, d time.Duration, body func(*Scope) error) error {
	failfast.NotNil(parent, "parent scope")
	failfast.NotNil(body, "timeout body")
	failfast.Positive(d, "timeout")

	tctx, cancel := task.WithTimeout(parent.ctx, d)
	defer cancel()

	ctx, cancelScope := context.WithCancelCause(tctx)
	child := parent.adopt(ctx, cancelScope, fmt.Sprintf("timeout(%v)", d), nil)

	err := body(child)
	werr := child.Wait()

	if err != nil && !task.IsCancellation(err) {
		return err
	}
	if err == nil && (werr == nil || (task.IsCancellation(werr) && !child.interrupted())) {
		return nil
	}
	if cause := task.CauseOf(tctx); cause != nil {
		return cause
	}
	if err != nil {
		return err
	}
	return werr
}
