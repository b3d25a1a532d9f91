//go:build linux

package mroute

import "encoding/binary"

// Socket option levels and names from <linux/in.h>, <linux/mroute.h>, and
// <linux/mroute6.h>. golang.org/x/sys/unix does not export the MRT_*
// family (it isn't part of the header set that package is generated
// from), so they're reproduced here verbatim rather than invented.
const (
	solIP   = 0  // IPPROTO_IP
	solIPV6 = 41 // IPPROTO_IPV6

	mrtBase      = 200
	mrtInit      = mrtBase
	mrtDone      = mrtBase + 1
	mrtAddVIF    = mrtBase + 2
	mrtDelVIF    = mrtBase + 3
	mrtAddMFC    = mrtBase + 4
	mrtDelMFC    = mrtBase + 5

	mrt6Base   = 200
	mrt6Init   = mrt6Base
	mrt6Done   = mrt6Base + 1
	mrt6AddMIF = mrt6Base + 2
	mrt6DelMIF = mrt6Base + 3
	mrt6AddMFC = mrt6Base + 4
	mrt6DelMFC = mrt6Base + 5

	// VIFF_USE_IFINDEX tells the kernel vifc_lcl_ifindex is populated
	// instead of vifc_lcl_addr (Linux 2.6.33+).
	viffUseIfindex = 0x8
)

// vifctl mirrors struct vifctl from <linux/mroute.h> byte for byte:
//
//	struct vifctl {
//		vifi_t         vifc_vifi;
//		unsigned char  vifc_flags;
//		unsigned char  vifc_threshold;
//		unsigned int   vifc_rate_limit;
//		union { struct in_addr vifc_lcl_addr; int vifc_lcl_ifindex; };
//		struct in_addr vifc_rmt_addr;
//	};
//
// The union is represented as a plain 4-byte field; which interpretation
// applies is selected by vifcFlags & viffUseIfindex, same as the kernel.
type vifctl struct {
	vifcVifi      uint16
	vifcFlags     uint8
	vifcThreshold uint8
	vifcRateLimit uint32
	vifcLcl       [4]byte
	vifcRmtAddr   [4]byte
}

func (v *vifctl) marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint16(buf[0:2], v.vifcVifi)
	buf[2] = v.vifcFlags
	buf[3] = v.vifcThreshold
	binary.LittleEndian.PutUint32(buf[4:8], v.vifcRateLimit)
	copy(buf[8:12], v.vifcLcl[:])
	copy(buf[12:16], v.vifcRmtAddr[:])
	return buf
}

// mfcctl mirrors struct mfcctl from <linux/mroute.h>. Only the fields the
// kernel reads on MRT_ADD_MFC/MRT_DEL_MFC are populated; the counters are
// output-only and left zeroed.
type mfcctl struct {
	mfccOrigin   [4]byte
	mfccMcastgrp [4]byte
	mfccParent   uint16
	mfccTTLs     [MaxVIF]uint8
}

func (m *mfcctl) marshal() []byte {
	// 8 (addrs) + 2 (parent) + 2 (padding to align mfcc_pkt_cnt) +
	// MaxVIF (ttls) + 16 (pkt_cnt/byte_cnt/wrong_if/expire, left zero).
	buf := make([]byte, 8+2+MaxVIF+2+16)
	copy(buf[0:4], m.mfccOrigin[:])
	copy(buf[4:8], m.mfccMcastgrp[:])
	binary.LittleEndian.PutUint16(buf[8:10], m.mfccParent)
	copy(buf[10:10+MaxVIF], m.mfccTTLs[:])
	return buf
}

// mif6ctl mirrors struct mif6ctl from <linux/mroute6.h>.
type mif6ctl struct {
	mif6cMifi     uint16
	mif6cFlags    uint8
	vifcThreshold uint8
	mif6cPifi     uint16
	vifcRateLimit uint32
}

func (m *mif6ctl) marshal() []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint16(buf[0:2], m.mif6cMifi)
	buf[2] = m.mif6cFlags
	buf[3] = m.vifcThreshold
	binary.LittleEndian.PutUint16(buf[4:6], m.mif6cPifi)
	binary.LittleEndian.PutUint32(buf[8:12], m.vifcRateLimit)
	return buf
}

// sockaddrIn6Wire mirrors struct sockaddr_in6 as the kernel multicast
// routing ABI embeds it inside struct mf6cctl: family/port/flowinfo/
// addr/scope_id, 28 bytes.
type sockaddrIn6Wire struct {
	family   uint16
	addr     [16]byte
	scopeID  uint32
}

func (s *sockaddrIn6Wire) marshal() []byte {
	buf := make([]byte, 28)
	binary.LittleEndian.PutUint16(buf[0:2], s.family)
	// buf[2:4] port, buf[4:8] flowinfo — always zero for our use.
	copy(buf[8:24], s.addr[:])
	binary.LittleEndian.PutUint32(buf[24:28], s.scopeID)
	return buf
}

const afInet6 = 10

// mf6cctl mirrors struct mf6cctl from <linux/mroute6.h>: two
// sockaddr_in6, a mifi_t parent, and a 256-bit outbound-MIF bitset
// (struct if_set, IF_SETSIZE/32 = 8 uint32 words).
type mf6cctl struct {
	origin   sockaddrIn6Wire
	mcastgrp sockaddrIn6Wire
	parent   uint16
	ifset    [8]uint32
}

func (m *mf6cctl) marshal() []byte {
	buf := make([]byte, 28+28+2+2+32)
	copy(buf[0:28], m.origin.marshal())
	copy(buf[28:56], m.mcastgrp.marshal())
	binary.LittleEndian.PutUint16(buf[56:58], m.parent)
	off := 60
	for i, w := range m.ifset {
		binary.LittleEndian.PutUint32(buf[off+i*4:off+i*4+4], w)
	}
	return buf
}

func setIfsetBit(ifset *[8]uint32, bit int) {
	ifset[bit/32] |= 1 << uint(bit%32)
}
