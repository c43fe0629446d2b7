// Package usecase defines the concrete task kinds the playground
// scenarios are built from: step tasks (sequential, parallel and failing),
// weighted multi-invocation tasks, a callback-adapted task, long
// computations, a channel producer with optional backpressure and its
// consumer, and the exceptions task with its repository-backed variant.
//
// Durations passed in are real durations; scaling of scenario timing
// happens in the caller.
package usecase
