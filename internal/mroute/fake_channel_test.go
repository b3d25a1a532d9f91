package mroute

import "net"

// fakeChannel4/fakeChannel6 record every call instead of touching a real
// kernel, so the route-manager logic can be exercised without root or a
// Linux host.

type vifCall struct {
	slot, ifindex int
	addr          net.IP
	threshold     uint8
}

type mfcCall struct {
	sender, group net.IP
	inbound       int
	ttl           [MaxVIF]uint8
}

type fakeChannel4 struct {
	initErr error
	addErr  error

	inited   bool
	addVIFs  []vifCall
	delVIFs  []int
	addMFCs  []mfcCall
	delMFCs  []mfcCall
	upcalls  [][]byte
}

func (f *fakeChannel4) Init() error {
	if f.initErr != nil {
		return f.initErr
	}
	f.inited = true
	return nil
}

func (f *fakeChannel4) Done() { f.inited = false }

func (f *fakeChannel4) AddVIF(slot, ifindex int, addr net.IP, threshold uint8) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.addVIFs = append(f.addVIFs, vifCall{slot, ifindex, addr, threshold})
	return nil
}

func (f *fakeChannel4) DelVIF(slot int) error {
	f.delVIFs = append(f.delVIFs, slot)
	return nil
}

func (f *fakeChannel4) AddMFC(sender, group net.IP, inbound int, ttl [MaxVIF]uint8) error {
	f.addMFCs = append(f.addMFCs, mfcCall{sender, group, inbound, ttl})
	return nil
}

func (f *fakeChannel4) DelMFC(sender, group net.IP) error {
	f.delMFCs = append(f.delMFCs, mfcCall{sender: sender, group: group})
	return nil
}

func (f *fakeChannel4) ReadUpcall(buf []byte) (int, error) {
	if len(f.upcalls) == 0 {
		return 0, &Error{Kind: KindNotFound, Op: "read_upcall"}
	}
	next := f.upcalls[0]
	f.upcalls = f.upcalls[1:]
	return copy(buf, next), nil
}

type mif6Call struct {
	slot, ifindex int
	threshold     uint8
}

type mfc6Call struct {
	sender, group net.IP
	inbound       int
	ttl           [MaxMIF]uint8
}

type fakeChannel6 struct {
	initErr error

	inited  bool
	addMIFs []mif6Call
	delMIFs []int
	addMFCs []mfc6Call
	delMFCs []mfc6Call
}

func (f *fakeChannel6) Init() error {
	if f.initErr != nil {
		return f.initErr
	}
	f.inited = true
	return nil
}

func (f *fakeChannel6) Done() { f.inited = false }

func (f *fakeChannel6) AddMIF(slot, ifindex int, threshold uint8) error {
	f.addMIFs = append(f.addMIFs, mif6Call{slot, ifindex, threshold})
	return nil
}

func (f *fakeChannel6) DelMIF(slot int) error {
	f.delMIFs = append(f.delMIFs, slot)
	return nil
}

func (f *fakeChannel6) AddMFC6(sender, group net.IP, inbound int, ttl [MaxMIF]uint8) error {
	f.addMFCs = append(f.addMFCs, mfc6Call{sender, group, inbound, ttl})
	return nil
}

func (f *fakeChannel6) DelMFC6(sender, group net.IP) error {
	f.delMFCs = append(f.delMFCs, mfc6Call{sender: sender, group: group})
	return nil
}
