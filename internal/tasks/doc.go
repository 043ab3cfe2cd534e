/*
Package tasks runs background work on a single worker goroutine and hands
finished work back to the goroutine that owns the queue.

# Model

A Task has two phases. Process runs on the queue's worker goroutine;
Finish runs on the owner's goroutine, reached through a Dispatcher. The
owner is usually a Loop:

	loop := tasks.NewLoop()
	go loop.Run(ctx)

	queue := tasks.NewQueue(loop, tasks.Options{StopTimeout: time.Minute})
	defer queue.Close()

	id := queue.AddTask(task)

Tasks are pulled strictly in submission order, one at a time. Finish is
called at most once per task and never on the worker goroutine.

# Cancellation

CancelTask removes a queued or finished-but-not-yet-delivered task. A task
the worker already picked up keeps running; its result is dropped when
Process returns and Finish is never called.

# Worker lifetime

The worker goroutine is started by the first AddTask. With a non-zero
StopTimeout it is torn down after the queue has been idle for that long
and started again on the next submission. Stop and Close discard all
pending and undelivered tasks without calling Finish, and block until the
worker has exited.
*/
package tasks
