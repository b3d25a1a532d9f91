package mroute

import "github.com/kuuji/mrouted/internal/iface"

// vifTable is the in-process mirror of the kernel's fixed-size VIF vector.
// Slot index is the identity used in every kernel control structure, so
// the mapping from interface to slot and back must stay mutually
// consistent — see addVIF/delVIF.
type vifTable struct {
	slots [MaxVIF]*iface.Interface
}

func (t *vifTable) occupied() int {
	n := 0
	for _, s := range t.slots {
		if s != nil {
			n++
		}
	}
	return n
}

// addVIF binds ifc to the lowest free slot and installs it in the kernel.
// Loopback and non-multicast interfaces are silently accepted with no
// slot assigned.
func (t *vifTable) addVIF(ifc *iface.Interface, ch Channel4) error {
	if ifc.Loopback() || !ifc.Multicast() {
		ifc.VIF = iface.Unassigned
		return nil
	}
	// Already bound; reload paths re-add freely.
	if ifc.VIF != iface.Unassigned {
		return nil
	}

	slot := -1
	for i := range t.slots {
		if t.slots[i] == nil {
			slot = i
			break
		}
	}
	if slot == -1 {
		return &Error{Kind: KindTableFull, Op: "add_vif", Detail: ifc.Name}
	}

	if err := ch.AddVIF(slot, ifc.Ifindex, ifc.Addr, ifc.Threshold); err != nil {
		// No binding is recorded for a slot the kernel never bound.
		return err
	}

	t.slots[slot] = ifc
	ifc.VIF = slot
	return nil
}

// reset drops every binding without kernel calls, for Disable4: releasing
// the routing socket already tears down the kernel's VIF vector, so only
// the in-process mirror and the interface records need clearing.
func (t *vifTable) reset() {
	for i, s := range t.slots {
		if s != nil {
			s.VIF = iface.Unassigned
			t.slots[i] = nil
		}
	}
}

// delVIF releases ifc's slot. A no-op, successfully, if ifc has none.
func (t *vifTable) delVIF(ifc *iface.Interface, ch Channel4) error {
	if ifc.VIF == iface.Unassigned {
		return nil
	}
	slot := ifc.VIF
	err := ch.DelVIF(slot)
	t.slots[slot] = nil
	ifc.VIF = iface.Unassigned
	return err
}

// mifTable is the IPv6 analogue of vifTable.
type mifTable struct {
	slots [MaxMIF]*iface.Interface
}

func (t *mifTable) occupied() int {
	n := 0
	for _, s := range t.slots {
		if s != nil {
			n++
		}
	}
	return n
}

func (t *mifTable) addMIF(ifc *iface.Interface, ch Channel6) error {
	if ifc.Loopback() || !ifc.Multicast() {
		ifc.MIF = iface.Unassigned
		return nil
	}
	if ifc.MIF != iface.Unassigned {
		return nil
	}

	slot := -1
	for i := range t.slots {
		if t.slots[i] == nil {
			slot = i
			break
		}
	}
	if slot == -1 {
		return &Error{Kind: KindTableFull, Op: "add_mif", Detail: ifc.Name}
	}

	if err := ch.AddMIF(slot, ifc.Ifindex, ifc.Threshold); err != nil {
		return err
	}

	t.slots[slot] = ifc
	ifc.MIF = slot
	return nil
}

func (t *mifTable) reset() {
	for i, s := range t.slots {
		if s != nil {
			s.MIF = iface.Unassigned
			t.slots[i] = nil
		}
	}
}

func (t *mifTable) delMIF(ifc *iface.Interface, ch Channel6) error {
	if ifc.MIF == iface.Unassigned {
		return nil
	}
	slot := ifc.MIF
	err := ch.DelMIF(slot)
	t.slots[slot] = nil
	ifc.MIF = iface.Unassigned
	return err
}
