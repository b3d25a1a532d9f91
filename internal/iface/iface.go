// Package iface is the interfaces provider the routing core depends on.
//
// The routing core treats this as an external collaborator: it never
// enumerates interfaces itself, only calls FindByIndex/FindByName and mutates the
// VIF/MIF/Threshold fields of whatever it gets back. This package supplies a
// concrete, net.Interfaces-backed implementation so the daemon has something
// real to run against.
package iface

import (
	"fmt"
	"net"
	"sort"
)

// Unassigned marks a VIF or MIF slot that has not been bound to a kernel
// table entry.
const Unassigned = -1

// Interface is a network interface record. Index is this package's own
// stable, session-local enumeration order; Ifindex is the kernel's
// interface index, used verbatim in kernel control structures.
//
// VIF and MIF are owned by the routing core: nothing outside
// internal/mroute's table manager may write them.
type Interface struct {
	Index     int
	Name      string
	Ifindex   int
	Flags     net.Flags
	Addr      net.IP
	Threshold uint8

	VIF int
	MIF int
}

// Loopback reports whether the interface is a loopback device.
func (i *Interface) Loopback() bool {
	return i.Flags&net.FlagLoopback != 0
}

// Multicast reports whether the interface is multicast-capable.
func (i *Interface) Multicast() bool {
	return i.Flags&net.FlagMulticast != 0
}

func (i *Interface) String() string {
	return fmt.Sprintf("%s(ifindex=%d)", i.Name, i.Ifindex)
}

// Provider is the contract the routing core consumes: iterate interfaces by
// stable index starting at zero until FindByIndex reports none, and look
// interfaces up by name for CLI-driven VIF/MIF assignment.
type Provider interface {
	FindByIndex(i int) (*Interface, bool)
	FindByName(name string) (*Interface, bool)
}

// Snapshot is a point-in-time Provider built from the host's interface
// table. It does not track link-state changes; callers that need that
// should call Discover again and swap the Snapshot out — that
// link-monitoring/refresh policy belongs to the daemon, not this package.
type Snapshot struct {
	byIndex []*Interface
	byName  map[string]*Interface
}

// Discover enumerates host network interfaces and their primary IPv4
// addresses, assigning each a stable index in ascending kernel ifindex
// order.
func Discover() (*Snapshot, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}

	sort.Slice(ifaces, func(a, b int) bool { return ifaces[a].Index < ifaces[b].Index })

	snap := &Snapshot{byName: make(map[string]*Interface, len(ifaces))}
	for idx, nif := range ifaces {
		rec := &Interface{
			Index:     idx,
			Name:      nif.Name,
			Ifindex:   nif.Index,
			Flags:     nif.Flags,
			Threshold: 1,
			VIF:       Unassigned,
			MIF:       Unassigned,
		}
		if addr := primaryIPv4(nif); addr != nil {
			rec.Addr = addr
		}
		snap.byIndex = append(snap.byIndex, rec)
		snap.byName[rec.Name] = rec
	}

	return snap, nil
}

func primaryIPv4(nif net.Interface) net.IP {
	addrs, err := nif.Addrs()
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		ip, _, err := net.ParseCIDR(a.String())
		if err != nil {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}

// FindByIndex implements Provider.
func (s *Snapshot) FindByIndex(i int) (*Interface, bool) {
	if i < 0 || i >= len(s.byIndex) {
		return nil, false
	}
	return s.byIndex[i], true
}

// FindByName implements Provider.
func (s *Snapshot) FindByName(name string) (*Interface, bool) {
	rec, ok := s.byName[name]
	return rec, ok
}

// All returns every interface in the snapshot, in index order.
func (s *Snapshot) All() []*Interface {
	return append([]*Interface(nil), s.byIndex...)
}
