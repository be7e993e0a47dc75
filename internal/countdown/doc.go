// Package countdown runs the preset timers of one timer back to back.
//
// Engine is the synchronous state machine: it holds the queue of remaining
// segments and turns elapsed time into events. Runner drives an Engine from
// a ticker on its own goroutine and serializes pause, resume and cancel with
// tick delivery, so subscribers observe events in the order they happened.
package countdown
