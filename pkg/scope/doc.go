// Package scope implements structured lifetimes for task execution.
//
// A Scope owns every job launched through it and every child scope derived
// from it. Cancelling a scope cancels its still-running jobs and child
// scopes; Wait blocks until all of them have finished and reports how the
// scope ended:
//
//	sc := scope.New(ctx, "sequential")
//	d := t.ExecuteAsync(sc)
//	r, err := d.Await(sc.Context())
//	err = sc.Wait()
//
// WithTimeout runs a body under a child scope bounded by a deadline and
// reports expiry as a *task.TimeoutError.
package scope
