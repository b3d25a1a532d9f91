package mroute

import (
	"encoding/binary"
	"net"
)

// validatePrefixLen rejects len=0 rather than letting it degenerate into
// either an exact-match or a match-all mask depending on shift
// semantics. Exact match is spelled Len=32.
func validatePrefixLen(len int) error {
	if len < 1 || len > 32 {
		return ErrInvalidPrefixLen
	}
	return nil
}

// mask4 returns a mask with the top prefixLen bits set, in the same
// numeric space ip4ToUint32 uses (the IP's bytes read most-significant
// first). Because both the address and the mask are interpreted
// MSB-first, no byte-order conversion is needed before the AND.
func mask4(prefixLen int) uint32 {
	if prefixLen >= 32 {
		return 0xFFFFFFFF
	}
	return ^uint32(0) << uint(32-prefixLen)
}

func ip4ToUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}

// match4 reports whether cand falls under rule's (*,G/len) declaration:
// same inbound VIF, and cand's group address shares rule's top Len bits.
func match4(rule, cand *Route4) bool {
	if rule.Inbound != cand.Inbound {
		return false
	}
	m := mask4(rule.Len)
	return ip4ToUint32(rule.Group)&m == ip4ToUint32(cand.Group)&m
}
