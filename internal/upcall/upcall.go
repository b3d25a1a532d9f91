// Package upcall runs the daemon-side loop that turns kernel
// IGMPMSG_NOCACHE notifications into Router.DynAdd calls.
package upcall

import (
	"context"
	"log/slog"

	"github.com/kuuji/mrouted/internal/metrics"
	"github.com/kuuji/mrouted/internal/mroute"
)

// router is the subset of *mroute.Router the listener needs. Matching
// it against an interface keeps this package testable without a real
// kernel channel.
type router interface {
	NextUpcall() (mroute.Upcall, error)
	DynAdd(mroute.Route4) error
	Stats() mroute.Stats
}

// dispatcher serializes the listener's mutating calls (DynAdd, Stats)
// onto the daemon's single worker goroutine (internal/daemon.Dispatcher
// in production), so they never run concurrently with the reload
// watcher or a control-socket command touching the same Router.
type dispatcher interface {
	Do(fn func())
}

// Listener reads upcalls from a Router and materialises matching
// wildcard routes. NextUpcall blocks on the kernel socket directly on
// its own reader goroutine (it touches no Router state DynAdd/Stats
// also touch); everything else is submitted through disp.
type Listener struct {
	r    router
	disp dispatcher
	log  *slog.Logger
}

// New creates a Listener bound to r, dispatching mutating calls
// through disp.
func New(r router, disp dispatcher, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	return &Listener{r: r, disp: disp, log: log}
}

// Run blocks reading and dispatching upcalls until ctx is cancelled or
// the control channel returns a fatal error.
func (l *Listener) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	upCh := make(chan mroute.Upcall)

	go l.readLoop(upCh, errCh)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case up := <-upCh:
			l.dispatch(up)
		}
	}
}

// readLoop owns the only call to NextUpcall for the lifetime of Run, so
// it can safely hand decoded upcalls to the select loop over a channel
// without also needing a way to cancel a blocked kernel read.
func (l *Listener) readLoop(upCh chan<- mroute.Upcall, errCh chan<- error) {
	for {
		up, err := l.r.NextUpcall()
		if err != nil {
			errCh <- err
			return
		}
		upCh <- up
	}
}

func (l *Listener) dispatch(up mroute.Upcall) {
	metrics.ObserveUpcall()

	route := mroute.Route4{Sender: up.Sender, Group: up.Group, Len: 32, Inbound: up.Inbound}

	var err error
	var stats mroute.Stats
	l.disp.Do(func() {
		err = l.r.DynAdd(route)
		if err == nil {
			stats = l.r.Stats()
		}
	})

	metrics.ObserveKernelCall("dyn_add", err)
	if err != nil {
		l.log.Debug("upcall did not match a configured wildcard", "sender", up.Sender, "group", up.Group, "inbound", up.Inbound, "error", err)
		return
	}

	l.log.Info("materialised dynamic route", "sender", up.Sender, "group", up.Group, "inbound", up.Inbound)
	metrics.Sync(stats)
}
