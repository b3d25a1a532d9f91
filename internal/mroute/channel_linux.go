//go:build linux

package mroute

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// mc_forwarding toggle path, written once before IPv6 table init.
const ipv6McForwardingPath = "/proc/sys/net/ipv6/conf/all/mc_forwarding"

// socketChannel4 is the Linux kernel control channel for IPv4 multicast
// routing: one raw IGMP socket, owned exclusively between Init and Done.
type socketChannel4 struct {
	fd int
}

func newChannel4() Channel4 { return &socketChannel4{fd: -1} }

// Init acquires the raw IGMP socket and asserts multicast-router
// ownership on it (setsockopt MRT_INIT).
func (c *socketChannel4) Init() error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.IPPROTO_IGMP)
	if err != nil {
		if err == unix.ENOPROTOOPT {
			return &Error{Kind: KindUnsupported, Op: "mrt_init"}
		}
		return kernelErr("mrt_init", errno(err))
	}

	if err := unix.SetsockoptInt(fd, solIP, mrtInit, 1); err != nil {
		unix.Close(fd)
		if err == unix.EADDRINUSE {
			return &Error{Kind: KindBusy, Op: "mrt_init"}
		}
		return kernelErr("mrt_init", errno(err))
	}

	c.fd = fd
	return nil
}

// Done releases ownership and closes the socket. Idempotent: a no-op if
// not currently initialised. Kernel errors are swallowed; the socket is
// closed regardless.
func (c *socketChannel4) Done() {
	if c.fd < 0 {
		return
	}
	_ = unix.SetsockoptInt(c.fd, solIP, mrtDone, 0)
	unix.Close(c.fd)
	c.fd = -1
}

func (c *socketChannel4) AddVIF(slot, ifindex int, addr net.IP, threshold uint8) error {
	vc := vifctl{
		vifcVifi:      uint16(slot),
		vifcThreshold: threshold,
		vifcFlags:     viffUseIfindex,
	}
	putUint32LE(vc.vifcLcl[:], uint32(ifindex))
	if err := unix.SetsockoptString(c.fd, solIP, mrtAddVIF, string((&vc).marshal())); err != nil {
		return kernelErr("add_vif", errno(err))
	}
	return nil
}

// DelVIF sends the slot wrapped in a vifctl, the Linux encoding. BSD's
// bare-vifi_t encoding is not implemented by this channel (non-Linux
// platforms get channel_other.go's Unsupported stub instead).
func (c *socketChannel4) DelVIF(slot int) error {
	vc := vifctl{vifcVifi: uint16(slot)}
	if err := unix.SetsockoptString(c.fd, solIP, mrtDelVIF, string((&vc).marshal())); err != nil {
		return kernelErr("del_vif", errno(err))
	}
	return nil
}

func (c *socketChannel4) AddMFC(sender, group net.IP, inbound int, ttl [MaxVIF]uint8) error {
	mc := mfcctl{mfccParent: uint16(inbound), mfccTTLs: ttl}
	copy(mc.mfccOrigin[:], sender.To4())
	copy(mc.mfccMcastgrp[:], group.To4())
	if err := unix.SetsockoptString(c.fd, solIP, mrtAddMFC, string((&mc).marshal())); err != nil {
		return kernelErr("add_mfc", errno(err))
	}
	return nil
}

func (c *socketChannel4) DelMFC(sender, group net.IP) error {
	mc := mfcctl{}
	copy(mc.mfccOrigin[:], sender.To4())
	copy(mc.mfccMcastgrp[:], group.To4())
	if err := unix.SetsockoptString(c.fd, solIP, mrtDelMFC, string((&mc).marshal())); err != nil {
		return kernelErr("del_mfc", errno(err))
	}
	return nil
}

// ReadUpcall blocks on the same raw socket MRT_INIT was issued on: the
// kernel delivers IGMPMSG_NOCACHE notifications as ordinary reads on it.
func (c *socketChannel4) ReadUpcall(buf []byte) (int, error) {
	n, err := unix.Read(c.fd, buf)
	if err != nil {
		return 0, kernelErr("read_upcall", errno(err))
	}
	return n, nil
}

// socketChannel6 is the Linux kernel control channel for IPv6 multicast
// routing.
type socketChannel6 struct {
	fd int
}

func newChannel6() Channel6 { return &socketChannel6{fd: -1} }

func (c *socketChannel6) Init() error {
	if err := enableIPv6McForwarding(); err != nil {
		return err
	}

	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.IPPROTO_ICMPV6)
	if err != nil {
		if err == unix.ENOPROTOOPT {
			return &Error{Kind: KindUnsupported, Op: "mrt6_init"}
		}
		return kernelErr("mrt6_init", errno(err))
	}

	if err := unix.SetsockoptInt(fd, solIPV6, mrt6Init, 1); err != nil {
		unix.Close(fd)
		if err == unix.EADDRINUSE {
			return &Error{Kind: KindBusy, Op: "mrt6_init"}
		}
		return kernelErr("mrt6_init", errno(err))
	}

	c.fd = fd
	return nil
}

// enableIPv6McForwarding writes the sysfs toggle that pre-2.6.29 kernels
// need before MRT6_INIT will take. A write failure caused by insufficient
// privilege is fatal; the file being absent (kernels that already enable
// forwarding via MRT6_INIT) is tolerable.
func enableIPv6McForwarding() error {
	f, err := os.OpenFile(ipv6McForwardingPath, os.O_WRONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		if os.IsPermission(err) {
			return &Error{Kind: KindKernelError, Op: "mc_forwarding", Detail: err.Error()}
		}
		return nil
	}
	defer f.Close()

	// Exactly one byte, "1".
	if _, err := f.Write([]byte{'1'}); err != nil {
		if os.IsPermission(err) {
			return &Error{Kind: KindKernelError, Op: "mc_forwarding", Detail: err.Error()}
		}
	}
	return nil
}

func (c *socketChannel6) Done() {
	if c.fd < 0 {
		return
	}
	_ = unix.SetsockoptInt(c.fd, solIPV6, mrt6Done, 0)
	unix.Close(c.fd)
	c.fd = -1
}

func (c *socketChannel6) AddMIF(slot, ifindex int, threshold uint8) error {
	mc := mif6ctl{
		mif6cMifi:     uint16(slot),
		vifcThreshold: threshold,
		mif6cPifi:     uint16(ifindex),
	}
	if err := unix.SetsockoptString(c.fd, solIPV6, mrt6AddMIF, string((&mc).marshal())); err != nil {
		return kernelErr("add_mif", errno(err))
	}
	return nil
}

func (c *socketChannel6) DelMIF(slot int) error {
	if err := unix.SetsockoptString(c.fd, solIPV6, mrt6DelMIF, string(uint16le(uint16(slot)))); err != nil {
		return kernelErr("del_mif", errno(err))
	}
	return nil
}

func (c *socketChannel6) AddMFC6(sender, group net.IP, inbound int, ttl [MaxMIF]uint8) error {
	mc := mf6cctl{parent: uint16(inbound)}
	mc.origin.family = afInet6
	copy(mc.origin.addr[:], sender.To16())
	mc.mcastgrp.family = afInet6
	copy(mc.mcastgrp.addr[:], group.To16())
	for i, t := range ttl {
		if t > 0 {
			setIfsetBit(&mc.ifset, i)
		}
	}
	if err := unix.SetsockoptString(c.fd, solIPV6, mrt6AddMFC, string((&mc).marshal())); err != nil {
		return kernelErr("add_mfc6", errno(err))
	}
	return nil
}

func (c *socketChannel6) DelMFC6(sender, group net.IP) error {
	mc := mf6cctl{}
	mc.origin.family = afInet6
	copy(mc.origin.addr[:], sender.To16())
	mc.mcastgrp.family = afInet6
	copy(mc.mcastgrp.addr[:], group.To16())
	if err := unix.SetsockoptString(c.fd, solIPV6, mrt6DelMFC, string((&mc).marshal())); err != nil {
		return kernelErr("del_mfc6", errno(err))
	}
	return nil
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func uint16le(v uint16) []byte {
	return []byte{byte(v), byte(v >> 8)}
}

func errno(err error) int {
	if e, ok := err.(unix.Errno); ok {
		return int(e)
	}
	return -1
}
