package mroute

import (
	"net"
	"testing"

	"github.com/kuuji/mrouted/internal/iface"
)

func newTestIface(name string, idx int, multicast bool) *iface.Interface {
	flags := net.FlagUp
	if multicast {
		flags |= net.FlagMulticast
	}
	return &iface.Interface{
		Index:   idx,
		Name:    name,
		Ifindex: idx + 1,
		Flags:   flags,
		Addr:    net.ParseIP("192.0.2.1"),
		VIF:     iface.Unassigned,
		MIF:     iface.Unassigned,
	}
}

func TestVIFTableAddAssignsLowestFreeSlot(t *testing.T) {
	var tbl vifTable
	ch := &fakeChannel4{}

	a := newTestIface("eth0", 0, true)
	b := newTestIface("eth1", 1, true)

	if err := tbl.addVIF(a, ch); err != nil {
		t.Fatalf("addVIF(a): %v", err)
	}
	if err := tbl.addVIF(b, ch); err != nil {
		t.Fatalf("addVIF(b): %v", err)
	}

	if a.VIF != 0 || b.VIF != 1 {
		t.Fatalf("expected slots 0,1, got %d,%d", a.VIF, b.VIF)
	}
	if tbl.occupied() != 2 {
		t.Fatalf("expected 2 occupied slots, got %d", tbl.occupied())
	}

	if err := tbl.delVIF(a, ch); err != nil {
		t.Fatalf("delVIF(a): %v", err)
	}
	if a.VIF != iface.Unassigned {
		t.Fatal("expected VIF to be released")
	}

	c := newTestIface("eth2", 2, true)
	if err := tbl.addVIF(c, ch); err != nil {
		t.Fatalf("addVIF(c): %v", err)
	}
	if c.VIF != 0 {
		t.Fatalf("expected the freed slot 0 to be reused, got %d", c.VIF)
	}
}

func TestVIFTableAddIsIdempotent(t *testing.T) {
	var tbl vifTable
	ch := &fakeChannel4{}

	ifc := newTestIface("eth0", 0, true)
	if err := tbl.addVIF(ifc, ch); err != nil {
		t.Fatalf("addVIF: %v", err)
	}
	if err := tbl.addVIF(ifc, ch); err != nil {
		t.Fatalf("second addVIF: %v", err)
	}
	if ifc.VIF != 0 {
		t.Fatalf("expected slot 0 to stick, got %d", ifc.VIF)
	}
	if len(ch.addVIFs) != 1 {
		t.Fatalf("expected a single kernel call, got %d", len(ch.addVIFs))
	}
	if tbl.occupied() != 1 {
		t.Fatalf("expected 1 occupied slot, got %d", tbl.occupied())
	}
}

func TestVIFTableSkipsLoopbackAndNonMulticast(t *testing.T) {
	var tbl vifTable
	ch := &fakeChannel4{}

	lo := newTestIface("lo", 0, true)
	lo.Flags |= net.FlagLoopback
	if err := tbl.addVIF(lo, ch); err != nil {
		t.Fatalf("addVIF(lo): %v", err)
	}
	if lo.VIF != iface.Unassigned {
		t.Fatal("expected loopback interface to get no VIF slot")
	}

	noMC := newTestIface("eth9", 1, false)
	if err := tbl.addVIF(noMC, ch); err != nil {
		t.Fatalf("addVIF(noMC): %v", err)
	}
	if noMC.VIF != iface.Unassigned {
		t.Fatal("expected non-multicast interface to get no VIF slot")
	}

	if len(ch.addVIFs) != 0 {
		t.Fatalf("expected no kernel calls for skipped interfaces, got %d", len(ch.addVIFs))
	}
}

func TestVIFTableFullReturnsError(t *testing.T) {
	var tbl vifTable
	ch := &fakeChannel4{}

	for i := 0; i < MaxVIF; i++ {
		ifc := newTestIface("eth", i, true)
		if err := tbl.addVIF(ifc, ch); err != nil {
			t.Fatalf("addVIF(%d): unexpected error %v", i, err)
		}
	}

	overflow := newTestIface("ethN", MaxVIF, true)
	err := tbl.addVIF(overflow, ch)
	if err == nil {
		t.Fatal("expected table-full error")
	}
	if !matchesKind(err, KindTableFull) {
		t.Fatalf("expected KindTableFull, got %v", err)
	}
	if overflow.VIF != iface.Unassigned {
		t.Fatal("expected overflow interface to keep Unassigned VIF")
	}
}

func TestVIFTableRollsBackOnKernelFailure(t *testing.T) {
	var tbl vifTable
	ch := &fakeChannel4{addErr: ErrBusy}

	ifc := newTestIface("eth0", 0, true)
	err := tbl.addVIF(ifc, ch)
	if err == nil {
		t.Fatal("expected kernel failure to propagate")
	}
	if ifc.VIF != iface.Unassigned {
		t.Fatal("expected no slot binding to survive a kernel failure")
	}
	if tbl.occupied() != 0 {
		t.Fatal("expected no occupied slots after rollback")
	}
}

func matchesKind(err error, k Kind) bool {
	me, ok := err.(*Error)
	return ok && me.Kind == k
}
