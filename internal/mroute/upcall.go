package mroute

import "net"

// IGMPMsgNoCache is IGMPMSG_NOCACHE, the kernel upcall type meaning "a
// packet arrived for a group with no matching (S,G) entry". The kernel
// overlays a struct igmpmsg on top of the raw packet's
// would-be IP header; the payload after byte 20 is the original packet
// and is not needed here.
const IGMPMsgNoCache = 1

const igmpmsgSize = 20

// Upcall is a decoded IGMPMSG_NOCACHE notification: the (S,G) pair that
// triggered it and the VIF it arrived on.
type Upcall struct {
	Sender  net.IP
	Group   net.IP
	Inbound int
}

// ParseUpcall decodes a raw datagram read from a Channel4's socket into
// an Upcall. It reports false for anything that is not a well-formed
// IGMPMSG_NOCACHE notification: too short, the wrong message type, or a
// nonzero im_mbz (the field the kernel guarantees is zero only for
// synthetic upcalls, never for a genuine IGMP packet).
func ParseUpcall(buf []byte) (Upcall, bool) {
	if len(buf) < igmpmsgSize {
		return Upcall{}, false
	}

	msgtype := buf[8]
	mbz := buf[9]
	if mbz != 0 || msgtype != IGMPMsgNoCache {
		return Upcall{}, false
	}

	vif := int(buf[10])
	src := net.IP(append([]byte(nil), buf[12:16]...))
	dst := net.IP(append([]byte(nil), buf[16:20]...))

	return Upcall{Sender: src, Group: dst, Inbound: vif}, true
}
