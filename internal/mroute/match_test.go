package mroute

import (
	"net"
	"testing"
)

func TestValidatePrefixLen(t *testing.T) {
	cases := []struct {
		len int
		ok  bool
	}{
		{0, false},
		{1, true},
		{24, true},
		{32, true},
		{33, false},
		{-1, false},
	}
	for _, c := range cases {
		err := validatePrefixLen(c.len)
		if c.ok && err != nil {
			t.Errorf("validatePrefixLen(%d): unexpected error %v", c.len, err)
		}
		if !c.ok && err == nil {
			t.Errorf("validatePrefixLen(%d): expected error, got nil", c.len)
		}
	}
}

func TestMatch4(t *testing.T) {
	rule := &Route4{
		Group:   net.ParseIP("239.1.0.0"),
		Len:     16,
		Inbound: 3,
	}

	inside := &Route4{Group: net.ParseIP("239.1.5.9"), Inbound: 3}
	if !match4(rule, inside) {
		t.Error("expected candidate inside the /16 to match")
	}

	outside := &Route4{Group: net.ParseIP("239.2.5.9"), Inbound: 3}
	if match4(rule, outside) {
		t.Error("expected candidate outside the /16 to not match")
	}

	wrongVIF := &Route4{Group: net.ParseIP("239.1.5.9"), Inbound: 4}
	if match4(rule, wrongVIF) {
		t.Error("expected candidate on a different inbound VIF to not match")
	}
}

func TestMatch4ExactLen32(t *testing.T) {
	rule := &Route4{Group: net.ParseIP("239.1.0.1"), Len: 32, Inbound: 0}
	same := &Route4{Group: net.ParseIP("239.1.0.1"), Inbound: 0}
	if !match4(rule, same) {
		t.Error("expected /32 rule to match the identical address")
	}
	diff := &Route4{Group: net.ParseIP("239.1.0.2"), Inbound: 0}
	if match4(rule, diff) {
		t.Error("expected /32 rule to reject a different address")
	}
}
