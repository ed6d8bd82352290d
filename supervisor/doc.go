// Package supervisor guarantees that a failure in a background unit of
// work is notified to the entire program instead of being lost with its
// goroutine.
//
// Every participant of a supervision tree shares two objects: a Stop
// signal, a one-way broadcast flag meaning "stop everything", and an
// Errors queue carrying captured failures to the observing goroutine.
// Thread and Timer wrap a body so that any escaping failure, returned
// or panicked, sets the signal and lands in the queue. Worker scopes a
// component owning such units; ThreadWorker and TimerWorker own exactly
// one. Runner executes a ThreadWorker until an internal failure or an
// operator interrupt and re-surfaces the failure to its caller.
package supervisor
