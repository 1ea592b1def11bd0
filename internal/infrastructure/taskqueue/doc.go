// Package taskqueue stores side effect tasks in postgres and executes them.
//
// Aggregate repositories write tasks through GormTaskRepository.SaveTasks in their own
// transaction. The Processor polls due tasks, claims them with FOR UPDATE SKIP LOCKED
// and runs the executor registered for the effect type, so several instances can
// share one queue. Delivery is at least once; IdempotentExecutor suppresses repeats of
// a generation that already succeeded.
package taskqueue
