// Package mroute is the routing core: kernel socket ownership, VIF/MIF
// table management, and the wildcard-expansion route manager. It is
// single-threaded and non-reentrant by design — see Router's doc comment.
package mroute

import (
	"bufio"
	"log/slog"
	"os"
	"strings"

	"github.com/kuuji/mrouted/internal/iface"
)

// Router is the route manager: it orchestrates the kernel control
// channel, the VIF/MIF tables, and the route store on behalf of a
// daemon. It holds no internal mutex — every operation is synchronous
// and brief, and the caller is responsible for never calling it
// re-entrantly or concurrently. The daemon binary serializes every
// call site (reload callback, upcall listener, control socket) onto a
// single worker goroutine for this reason — see internal/daemon.
// Suspension points do not exist inside it.
type Router struct {
	log      *slog.Logger
	provider iface.Provider

	ch4 Channel4
	ch6 Channel6

	vifs vifTable
	mifs mifTable

	store store4

	v4enabled bool
	v6enabled bool
}

// New creates a Router bound to provider. Call Enable4/Enable6 before
// issuing any route operations.
func New(provider iface.Provider, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		log:      log,
		provider: provider,
		ch4:      newChannel4(),
		ch6:      newChannel6(),
	}
}

// Enable4 acquires the IPv4 multicast routing socket and creates a VIF
// for every multicast-capable, non-loopback interface the provider
// knows about.
func (r *Router) Enable4() error {
	if r.v4enabled {
		return nil
	}

	if err := checkVIFLimit(); err != nil {
		return err
	}

	if err := r.ch4.Init(); err != nil {
		return err
	}
	r.v4enabled = true

	for i := 0; ; i++ {
		ifc, ok := r.provider.FindByIndex(i)
		if !ok {
			break
		}
		if err := r.vifs.addVIF(ifc, r.ch4); err != nil {
			r.log.Warn("add_vif failed during enable", "interface", ifc.Name, "error", err)
		}
	}

	return nil
}

// Disable4 is best-effort: it releases the socket and drops every
// configured and dynamic route from the in-process lists. It returns
// nothing and logs nothing; kernel errors from releasing the socket are
// swallowed by the channel's Done.
func (r *Router) Disable4() {
	if !r.v4enabled {
		return
	}
	r.ch4.Done()
	r.v4enabled = false
	r.store.confList = nil
	r.store.dynList = nil
	// Releasing the socket drops the kernel's VIF vector wholesale; clear
	// the in-process mirror to match so a later Enable4 starts clean.
	r.vifs.reset()
}

// Enable6 is the IPv6 analogue of Enable4.
func (r *Router) Enable6() error {
	if r.v6enabled {
		return nil
	}

	if err := r.ch6.Init(); err != nil {
		return err
	}
	r.v6enabled = true

	for i := 0; ; i++ {
		ifc, ok := r.provider.FindByIndex(i)
		if !ok {
			break
		}
		if err := r.mifs.addMIF(ifc, r.ch6); err != nil {
			r.log.Warn("add_mif failed during enable", "interface", ifc.Name, "error", err)
		}
	}

	return nil
}

func (r *Router) Disable6() {
	if !r.v6enabled {
		return
	}
	r.ch6.Done()
	r.v6enabled = false
	r.mifs.reset()
}

// AddVIFFor assigns a VIF to the named interface with the given TTL
// threshold, used by the CLI/config layer after startup.
func (r *Router) AddVIFFor(name string, threshold uint8) error {
	ifc, ok := r.provider.FindByName(name)
	if !ok {
		return &Error{Kind: KindNotFound, Op: "add_vif", Detail: name}
	}
	ifc.Threshold = threshold
	return r.vifs.addVIF(ifc, r.ch4)
}

// DelVIFFor removes the named interface's VIF, if any.
func (r *Router) DelVIFFor(name string) error {
	ifc, ok := r.provider.FindByName(name)
	if !ok {
		return &Error{Kind: KindNotFound, Op: "del_vif", Detail: name}
	}
	return r.vifs.delVIF(ifc, r.ch4)
}

// AddMIFFor is the IPv6 analogue of AddVIFFor.
func (r *Router) AddMIFFor(name string, threshold uint8) error {
	ifc, ok := r.provider.FindByName(name)
	if !ok {
		return &Error{Kind: KindNotFound, Op: "add_mif", Detail: name}
	}
	ifc.Threshold = threshold
	return r.mifs.addMIF(ifc, r.ch6)
}

// DelMIFFor is the IPv6 analogue of DelVIFFor.
func (r *Router) DelMIFFor(name string) error {
	ifc, ok := r.provider.FindByName(name)
	if !ok {
		return &Error{Kind: KindNotFound, Op: "del_mif", Detail: name}
	}
	return r.mifs.delMIF(ifc, r.ch6)
}

// AddInterface adds name to both the VIF and MIF tables. Either family
// failing increments the return count rather than being replaced by the
// other's result, so the caller can tell "one or both failed" apart
// from full success.
func (r *Router) AddInterface(name string, threshold uint8) (failures int) {
	if err := r.AddVIFFor(name, threshold); err != nil {
		r.log.Error("adding VIF", "interface", name, "error", err)
		failures++
	}
	if err := r.AddMIFFor(name, threshold); err != nil {
		r.log.Error("adding MIF", "interface", name, "error", err)
		failures++
	}
	return failures
}

// DelInterface is the dual-family analogue of AddInterface.
func (r *Router) DelInterface(name string) (failures int) {
	if err := r.DelVIFFor(name); err != nil {
		r.log.Error("removing VIF", "interface", name, "error", err)
		failures++
	}
	if err := r.DelMIFFor(name); err != nil {
		r.log.Error("removing MIF", "interface", name, "error", err)
		failures++
	}
	return failures
}

// AddRoute4 installs route directly, or, when route.Sender is the
// any-address sentinel, files it as a wildcard template awaiting a
// matching upcall.
func (r *Router) AddRoute4(route Route4) error {
	if err := validatePrefixLen(route.Len); err != nil {
		return err
	}

	if route.Wildcard() {
		r.store.addConf(route)
		return nil
	}

	return r.ch4.AddMFC(route.Sender, route.Group, route.Inbound, route.TTL)
}

// DelRoute4 removes route directly, or, for a wildcard, withdraws every
// dynamic route it produced before removing the template itself.
func (r *Router) DelRoute4(route Route4) error {
	if !route.Wildcard() {
		return r.ch4.DelMFC(route.Sender, route.Group)
	}

	for _, d := range r.store.delConf(route) {
		if err := r.ch4.DelMFC(d.Sender, d.Group); err != nil {
			r.log.Warn("del_mfc failed during wildcard withdrawal", "sender", d.Sender, "group", d.Group, "error", err)
		}
	}
	return nil
}

// DynAdd installs route in the kernel if a configured wildcard matches
// it, filling route.TTL from the wildcard's fanout first. Called from
// the daemon's upcall reader on IGMPMSG_NOCACHE.
func (r *Router) DynAdd(route Route4) error {
	tmpl, ok := r.store.matchConf(route)
	if !ok {
		return &Error{Kind: KindNotFound, Op: "dyn_add"}
	}

	route.TTL = tmpl.TTL
	// Losing this entry would only cost the ability to auto-withdraw it
	// later; the kernel install below proceeds regardless.
	r.store.addDyn(route)

	return r.ch4.AddMFC(route.Sender, route.Group, route.Inbound, route.TTL)
}

// DynFlush withdraws every dynamically materialised route without
// disturbing the configured wildcard templates.
func (r *Router) DynFlush() {
	for _, d := range r.store.flushDyn() {
		if err := r.ch4.DelMFC(d.Sender, d.Group); err != nil {
			r.log.Warn("del_mfc failed during dyn_flush", "sender", d.Sender, "group", d.Group, "error", err)
		}
	}
}

// NextUpcall blocks until the kernel delivers the next IGMPMSG_NOCACHE
// notification on the IPv4 control channel and returns it decoded.
// Intended to be called in a loop from the daemon's upcall listener
// (internal/upcall), handed off to DynAdd.
func (r *Router) NextUpcall() (Upcall, error) {
	buf := make([]byte, 256)
	for {
		n, err := r.ch4.ReadUpcall(buf)
		if err != nil {
			return Upcall{}, err
		}
		if up, ok := ParseUpcall(buf[:n]); ok {
			return up, nil
		}
		// Not a well-formed IGMPMSG_NOCACHE, e.g. a stray IGMP packet
		// delivered on the same raw socket. Keep reading.
	}
}

// AddRoute6 installs an IPv6 route directly. There is no wildcard
// expansion for IPv6.
func (r *Router) AddRoute6(route Route6) error {
	return r.ch6.AddMFC6(route.Sender, route.Group, route.Inbound, route.TTL)
}

// DelRoute6 removes an IPv6 route directly.
func (r *Router) DelRoute6(route Route6) error {
	return r.ch6.DelMFC6(route.Sender, route.Group)
}

// Stats is a read-only snapshot of router state for status reporting and
// metrics (internal/metrics, `mrouted show`).
type Stats struct {
	VIFsOccupied int
	MIFsOccupied int
	ConfRoutes   int
	DynRoutes    int
}

func (r *Router) Stats() Stats {
	return Stats{
		VIFsOccupied: r.vifs.occupied(),
		MIFsOccupied: r.mifs.occupied(),
		ConfRoutes:   len(r.store.confList),
		DynRoutes:    len(r.store.dynList),
	}
}

// checkVIFLimit counts the VIF rows the kernel publishes in
// /proc/net/ip_mr_vif and refuses to run when there are more rows than
// MaxVIF slots. The proc file lists one row per configured VIF, not per
// available slot, so this does not read the kernel's compile-time
// MAXVIFS and cannot detect a kernel limit that differs from MaxVIF
// while fewer VIFs are configured; an absent or unreadable file is not
// an error.
func checkVIFLimit() error {
	f, err := os.Open("/proc/net/ip_mr_vif")
	if err != nil {
		return nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Scan() // header line
	rows := 0
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		rows++
	}
	if rows > MaxVIF {
		return &Error{Kind: KindTableFull, Op: "enable", Detail: "kernel reports more VIFs than MaxVIF"}
	}
	return nil
}
