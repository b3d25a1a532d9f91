package mroute

import (
	"net"
	"testing"
)

func mustIP(s string) net.IP { return net.ParseIP(s) }

func TestStoreAddMatchConf(t *testing.T) {
	var s store4
	tmpl := Route4{Group: mustIP("239.1.0.0"), Len: 16, Inbound: 2}
	s.addConf(tmpl)

	cand := Route4{Group: mustIP("239.1.9.9"), Inbound: 2}
	got, ok := s.matchConf(cand)
	if !ok {
		t.Fatal("expected a matching wildcard template")
	}
	if got.Len != 16 {
		t.Errorf("matched template has Len %d, want 16", got.Len)
	}

	miss := Route4{Group: mustIP("239.2.9.9"), Inbound: 2}
	if _, ok := s.matchConf(miss); ok {
		t.Error("expected no match outside the template's prefix")
	}
}

func TestStoreDelConfCascadesDyn(t *testing.T) {
	var s store4
	tmpl := Route4{Group: mustIP("239.1.0.0"), Len: 16, Inbound: 2}
	s.addConf(tmpl)
	s.addDyn(Route4{Sender: mustIP("10.0.0.1"), Group: mustIP("239.1.5.5"), Inbound: 2})
	s.addDyn(Route4{Sender: mustIP("10.0.0.2"), Group: mustIP("239.1.5.6"), Inbound: 2})
	s.addDyn(Route4{Sender: mustIP("10.0.0.3"), Group: mustIP("239.9.0.0"), Inbound: 2}) // unrelated

	withdrawn := s.delConf(tmpl)
	if len(withdrawn) != 2 {
		t.Fatalf("expected 2 withdrawn dynamic routes, got %d", len(withdrawn))
	}
	if len(s.dynList) != 1 {
		t.Fatalf("expected 1 surviving dynamic route, got %d", len(s.dynList))
	}
	if len(s.confList) != 0 {
		t.Fatalf("expected the template itself to be removed, got %d remaining", len(s.confList))
	}
}

func TestStoreFlushDyn(t *testing.T) {
	var s store4
	s.addDyn(Route4{Sender: mustIP("10.0.0.1"), Group: mustIP("239.1.5.5")})
	s.addDyn(Route4{Sender: mustIP("10.0.0.2"), Group: mustIP("239.1.5.6")})

	flushed := s.flushDyn()
	if len(flushed) != 2 {
		t.Fatalf("expected 2 flushed routes, got %d", len(flushed))
	}
	if len(s.dynList) != 0 {
		t.Fatalf("expected dynList empty after flush, got %d", len(s.dynList))
	}
}

func TestStoreCloneIsolatesBackingArray(t *testing.T) {
	var s store4
	sender := mustIP("10.0.0.1")
	s.addConf(Route4{Sender: sender, Group: mustIP("239.1.0.0"), Len: 16})
	sender[0] = 99 // mutate the caller's copy after filing it

	if s.confList[0].Sender.Equal(sender) {
		t.Error("expected addConf to clone, not alias, the caller's IP")
	}
}
