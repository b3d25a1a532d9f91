package mroute

import (
	"log/slog"
	"net"
	"testing"

	"github.com/kuuji/mrouted/internal/iface"
)

// fakeProvider is a minimal iface.Provider for router tests, independent of
// the host's real network interfaces.
type fakeProvider struct {
	byIndex []*iface.Interface
	byName  map[string]*iface.Interface
}

func newFakeProvider(ifaces ...*iface.Interface) *fakeProvider {
	p := &fakeProvider{byName: make(map[string]*iface.Interface)}
	for _, i := range ifaces {
		p.byIndex = append(p.byIndex, i)
		p.byName[i.Name] = i
	}
	return p
}

func (p *fakeProvider) FindByIndex(i int) (*iface.Interface, bool) {
	if i < 0 || i >= len(p.byIndex) {
		return nil, false
	}
	return p.byIndex[i], true
}

func (p *fakeProvider) FindByName(name string) (*iface.Interface, bool) {
	ifc, ok := p.byName[name]
	return ifc, ok
}

func newTestRouter(provider iface.Provider) (*Router, *fakeChannel4, *fakeChannel6) {
	r := New(provider, slog.Default())
	ch4 := &fakeChannel4{}
	ch6 := &fakeChannel6{}
	r.ch4 = ch4
	r.ch6 = ch6
	return r, ch4, ch6
}

func TestEnable4InstallsVIFPerInterface(t *testing.T) {
	p := newFakeProvider(
		newTestIface("eth0", 0, true),
		newTestIface("eth1", 1, true),
	)
	r, ch4, _ := newTestRouter(p)

	if err := r.Enable4(); err != nil {
		t.Fatalf("Enable4: %v", err)
	}
	if !ch4.inited {
		t.Fatal("expected channel Init to have been called")
	}
	if len(ch4.addVIFs) != 2 {
		t.Fatalf("expected 2 add_vif calls, got %d", len(ch4.addVIFs))
	}
	if r.Stats().VIFsOccupied != 2 {
		t.Fatalf("expected 2 occupied VIFs, got %d", r.Stats().VIFsOccupied)
	}
}

func TestEnable4IsIdempotent(t *testing.T) {
	p := newFakeProvider(newTestIface("eth0", 0, true))
	r, ch4, _ := newTestRouter(p)

	if err := r.Enable4(); err != nil {
		t.Fatalf("Enable4: %v", err)
	}
	if err := r.Enable4(); err != nil {
		t.Fatalf("second Enable4: %v", err)
	}
	if len(ch4.addVIFs) != 1 {
		t.Fatalf("expected exactly 1 add_vif call across both Enable4 calls, got %d", len(ch4.addVIFs))
	}
}

func TestEnableDisableRoundTripLeavesNoBindings(t *testing.T) {
	eth0 := newTestIface("eth0", 0, true)
	p := newFakeProvider(eth0)
	r, ch4, _ := newTestRouter(p)

	if err := r.Enable4(); err != nil {
		t.Fatalf("Enable4: %v", err)
	}
	r.Disable4()
	if ch4.inited {
		t.Fatal("expected the socket to be released after Disable4")
	}
	if eth0.VIF != iface.Unassigned {
		t.Fatal("expected the interface's VIF binding to be cleared by Disable4")
	}
	if r.Stats().VIFsOccupied != 0 {
		t.Fatalf("expected 0 occupied VIFs after Disable4, got %d", r.Stats().VIFsOccupied)
	}

	// A second cycle starts clean: one fresh add_vif, same slot as before.
	if err := r.Enable4(); err != nil {
		t.Fatalf("second Enable4: %v", err)
	}
	if len(ch4.addVIFs) != 2 {
		t.Fatalf("expected 2 add_vif calls across both cycles, got %d", len(ch4.addVIFs))
	}
	if eth0.VIF != 0 {
		t.Fatalf("expected slot 0 on re-enable, got %d", eth0.VIF)
	}
	r.Disable4()
}

func TestDirectRouteInstallsImmediately(t *testing.T) {
	p := newFakeProvider()
	r, ch4, _ := newTestRouter(p)
	r.v4enabled = true

	route := Route4{
		Sender:  net.ParseIP("10.0.0.5"),
		Group:   net.ParseIP("239.1.1.1"),
		Len:     32,
		Inbound: 0,
	}
	if err := r.AddRoute4(route); err != nil {
		t.Fatalf("AddRoute4: %v", err)
	}
	if len(ch4.addMFCs) != 1 {
		t.Fatalf("expected 1 add_mfc call, got %d", len(ch4.addMFCs))
	}
	if len(r.store.confList) != 0 {
		t.Fatal("expected a direct route to skip the wildcard store entirely")
	}
}

func TestWildcardRouteFilesTemplateWithoutKernelCall(t *testing.T) {
	p := newFakeProvider()
	r, ch4, _ := newTestRouter(p)
	r.v4enabled = true

	wild := Route4{
		Group:   net.ParseIP("239.1.0.0"),
		Len:     16,
		Inbound: 2,
	}
	if err := r.AddRoute4(wild); err != nil {
		t.Fatalf("AddRoute4: %v", err)
	}
	if len(ch4.addMFCs) != 0 {
		t.Fatal("expected no kernel call for a bare wildcard template")
	}
	if len(r.store.confList) != 1 {
		t.Fatalf("expected 1 filed template, got %d", len(r.store.confList))
	}
}

func TestDynAddMaterialisesMatchingWildcard(t *testing.T) {
	p := newFakeProvider()
	r, ch4, _ := newTestRouter(p)
	r.v4enabled = true

	wild := Route4{Group: net.ParseIP("239.1.0.0"), Len: 16, Inbound: 2}
	if err := r.AddRoute4(wild); err != nil {
		t.Fatalf("AddRoute4: %v", err)
	}

	observed := Route4{
		Sender:  net.ParseIP("10.0.0.9"),
		Group:   net.ParseIP("239.1.5.5"),
		Inbound: 2,
	}
	if err := r.DynAdd(observed); err != nil {
		t.Fatalf("DynAdd: %v", err)
	}
	if len(ch4.addMFCs) != 1 {
		t.Fatalf("expected 1 add_mfc call from dyn_add, got %d", len(ch4.addMFCs))
	}
	if len(r.store.dynList) != 1 {
		t.Fatalf("expected 1 dynamic entry recorded, got %d", len(r.store.dynList))
	}
}

func TestDynAddWithNoMatchingTemplateFails(t *testing.T) {
	p := newFakeProvider()
	r, _, _ := newTestRouter(p)
	r.v4enabled = true

	observed := Route4{Sender: net.ParseIP("10.0.0.9"), Group: net.ParseIP("239.9.9.9"), Inbound: 0}
	err := r.DynAdd(observed)
	if !matchesKind(err, KindNotFound) {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestDelWildcardCascadesWithdrawal(t *testing.T) {
	p := newFakeProvider()
	r, ch4, _ := newTestRouter(p)
	r.v4enabled = true

	wild := Route4{Group: net.ParseIP("239.1.0.0"), Len: 16, Inbound: 2}
	r.AddRoute4(wild)
	r.DynAdd(Route4{Sender: net.ParseIP("10.0.0.1"), Group: net.ParseIP("239.1.5.5"), Inbound: 2})
	r.DynAdd(Route4{Sender: net.ParseIP("10.0.0.2"), Group: net.ParseIP("239.1.5.6"), Inbound: 2})

	if err := r.DelRoute4(wild); err != nil {
		t.Fatalf("DelRoute4: %v", err)
	}
	if len(ch4.delMFCs) != 2 {
		t.Fatalf("expected 2 del_mfc calls from cascading withdrawal, got %d", len(ch4.delMFCs))
	}
	if len(r.store.confList) != 0 || len(r.store.dynList) != 0 {
		t.Fatal("expected both lists empty after deleting the wildcard")
	}
}

func TestDynFlushLeavesTemplatesIntact(t *testing.T) {
	p := newFakeProvider()
	r, ch4, _ := newTestRouter(p)
	r.v4enabled = true

	wild := Route4{Group: net.ParseIP("239.1.0.0"), Len: 16, Inbound: 2}
	r.AddRoute4(wild)
	r.DynAdd(Route4{Sender: net.ParseIP("10.0.0.1"), Group: net.ParseIP("239.1.5.5"), Inbound: 2})

	r.DynFlush()
	if len(ch4.delMFCs) != 1 {
		t.Fatalf("expected 1 del_mfc call from dyn_flush, got %d", len(ch4.delMFCs))
	}
	if len(r.store.confList) != 1 {
		t.Fatal("expected the wildcard template to survive dyn_flush")
	}
	if len(r.store.dynList) != 0 {
		t.Fatal("expected dynList to be emptied by dyn_flush")
	}
}

func TestAddInterfaceDualFamilyReportsPartialFailure(t *testing.T) {
	p := newFakeProvider(newTestIface("eth0", 0, true))
	r, ch4, _ := newTestRouter(p)
	r.v4enabled = true
	r.v6enabled = true
	ch4.addErr = ErrBusy

	failures := r.AddInterface("eth0", 1)
	if failures != 1 {
		t.Fatalf("expected exactly 1 failure (VIF only), got %d", failures)
	}
}

func TestInvalidPrefixLenRejected(t *testing.T) {
	p := newFakeProvider()
	r, _, _ := newTestRouter(p)
	r.v4enabled = true

	route := Route4{Group: net.ParseIP("239.1.0.0"), Len: 0, Inbound: 0}
	err := r.AddRoute4(route)
	if !matchesKind(err, KindInvalidArgument) {
		t.Fatalf("expected KindInvalidArgument for len=0, got %v", err)
	}
}
