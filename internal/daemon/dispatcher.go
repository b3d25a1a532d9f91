// Package daemon owns the daemon's single point of serialization: a
// worker goroutine that every Router caller — the reload watcher, the
// upcall listener, and the control socket's CLI handlers — submits
// closures to, so internal/mroute.Router's non-reentrant assumption
// holds regardless of how many goroutines want to touch it.
package daemon

import (
	"log/slog"
	"sync"
)

// Dispatcher serializes access to whatever state its caller closes
// over (in practice, the daemon's single *mroute.Router). Only the
// goroutine running Run ever executes submitted work, so two calls to
// Do can never run concurrently.
type Dispatcher struct {
	work chan func()
	stop chan struct{}
	once sync.Once
	log  *slog.Logger
}

// New creates a Dispatcher. Call Run, typically in its own goroutine,
// before the first Do.
func New(log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		work: make(chan func()),
		stop: make(chan struct{}),
		log:  log,
	}
}

// Run drains submitted work until Close is called. It must run on its
// own goroutine for the lifetime of the daemon.
func (d *Dispatcher) Run() {
	for {
		select {
		case <-d.stop:
			return
		case fn := <-d.work:
			fn()
		}
	}
}

// Do submits fn to run on the Run goroutine and blocks until it
// completes. Safe to call concurrently from any number of goroutines —
// fn itself never overlaps with another submitted fn. Returns
// immediately without running fn if the Dispatcher has been closed.
func (d *Dispatcher) Do(fn func()) {
	done := make(chan struct{})
	select {
	case d.work <- func() { fn(); close(done) }:
	case <-d.stop:
		return
	}
	select {
	case <-done:
	case <-d.stop:
	}
}

// Close stops Run. Pending and future Do calls return without
// executing their closure.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.stop) })
}
