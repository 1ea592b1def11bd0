package effect

import "context"

// Executor performs the side effect of one effect type. Executors must be safe to run
// more than once for the same task; a returned Permanent error stops retries.
type Executor interface {
	Execute(ctx context.Context, task *Task) error
}

// ExecutorFunc adapts a function to the Executor interface
type ExecutorFunc func(ctx context.Context, task *Task) error

// Execute calls f(ctx, task)
func (f ExecutorFunc) Execute(ctx context.Context, task *Task) error {
	return f(ctx, task)
}
