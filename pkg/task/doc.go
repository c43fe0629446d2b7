// Package task holds the task execution model: the lifecycle State
// published to observers, the sealed Result of one execution, the
// cancellation and failure taxonomy, and Deferred, the write-once
// completion slot behind every asynchronously launched unit of work.
//
// A Task is a sequence of simulated steps. Execute runs it on the calling
// goroutine; ExecuteAsync hands it to a Launcher (normally a scope.Scope)
// and returns a Deferred:
//
//	d := t.ExecuteAsync(sc)
//	r, err := d.Await(ctx)                          // Error results come back as err
//	r, err = d.AwaitOrReturn(ctx, task.Cancelled{}) // cancellation becomes the fallback
//
// Cancellation is cooperative. Every suspension point (Delay, channel
// operations, Await) watches ctx and unwinds with ErrCancelled or a
// *TimeoutError.
package task
