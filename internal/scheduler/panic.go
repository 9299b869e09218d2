// ABOUTME: Panic recovery for scheduler tasks and pool jobs
// ABOUTME: Logs the panic value with a stack trace and converts it to an error

package scheduler

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// recoverPanic must be deferred directly; it logs and swallows a panic.
func recoverPanic(logger *slog.Logger, name string) {
	if r := recover(); r != nil {
		logger.Error("PANIC in scheduler",
			slog.String("unit", name),
			slog.Any("panic", r),
			slog.String("stack_trace", string(debug.Stack())))
	}
}

// recoverValue logs a recovered value and returns it as an error. It returns
// nil when nothing was recovered.
func recoverValue(logger *slog.Logger, name string, r any) error {
	if r == nil {
		return nil
	}
	logger.Error("PANIC in background job",
		slog.String("job", name),
		slog.Any("panic", r),
		slog.String("stack_trace", string(debug.Stack())))
	return fmt.Errorf("job %s panicked: %v", name, r)
}
