// Package scheduler provides the single-owner runtime for session state.
//
// # Overview
//
// All session and conversation state is owned by one goroutine: the one
// running Scheduler.Run. Other goroutines (MQTT callbacks, HTTP handlers,
// WebSocket readers) never touch that state; they hand work in:
//
//	s.Submit(func(ctx context.Context) { ... })   // fire and forget
//	s.Do(ctx, func(ctx context.Context) { ... })   // submit and wait
//
// Submit returns false when the scheduler is not running. Callers treat that
// as an explicit drop, not an error.
//
// # Worker Pool
//
// Blocking work (model inference, speech synthesis, outbound HTTP) must not
// run on the scheduler goroutine. Go runs a detached job on a pool bounded by
// a semaphore; Await runs a job and submits its continuation back onto the
// scheduler:
//
//	scheduler.Await(s, "model", callModel, func(ctx context.Context, text string, err error) {
//	    // back on the scheduler goroutine
//	})
//
// Jobs are never canceled by the scheduler. Panics in tasks and jobs are
// recovered and logged.
package scheduler
