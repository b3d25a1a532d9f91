//go:build !linux

package mroute

import "net"

// On non-Linux platforms this core reports Unsupported rather than
// guessing at a BSD mroute ABI it cannot verify byte-for-byte; the
// kernel-visible control structures must match the host's headers
// exactly or not be emitted at all.

type stubChannel4 struct{}

func newChannel4() Channel4 { return &stubChannel4{} }

func (s *stubChannel4) Init() error { return &Error{Kind: KindUnsupported, Op: "mrt_init"} }
func (s *stubChannel4) Done()       {}
func (s *stubChannel4) AddVIF(int, int, net.IP, uint8) error {
	return &Error{Kind: KindUnsupported, Op: "add_vif"}
}
func (s *stubChannel4) DelVIF(int) error { return &Error{Kind: KindUnsupported, Op: "del_vif"} }
func (s *stubChannel4) AddMFC(net.IP, net.IP, int, [MaxVIF]uint8) error {
	return &Error{Kind: KindUnsupported, Op: "add_mfc"}
}
func (s *stubChannel4) DelMFC(net.IP, net.IP) error {
	return &Error{Kind: KindUnsupported, Op: "del_mfc"}
}
func (s *stubChannel4) ReadUpcall([]byte) (int, error) {
	return 0, &Error{Kind: KindUnsupported, Op: "read_upcall"}
}

type stubChannel6 struct{}

func newChannel6() Channel6 { return &stubChannel6{} }

func (s *stubChannel6) Init() error { return &Error{Kind: KindUnsupported, Op: "mrt6_init"} }
func (s *stubChannel6) Done()       {}
func (s *stubChannel6) AddMIF(int, int, uint8) error {
	return &Error{Kind: KindUnsupported, Op: "add_mif"}
}
func (s *stubChannel6) DelMIF(int) error { return &Error{Kind: KindUnsupported, Op: "del_mif"} }
func (s *stubChannel6) AddMFC6(net.IP, net.IP, int, [MaxMIF]uint8) error {
	return &Error{Kind: KindUnsupported, Op: "add_mfc6"}
}
func (s *stubChannel6) DelMFC6(net.IP, net.IP) error {
	return &Error{Kind: KindUnsupported, Op: "del_mfc6"}
}
