package native

import (
	"math/bits"

	"github.com/sdb-dev/sdb/pkg/proc"
)

// Hardware stop-points are implemented with the x86 debug registers:
// dr0..dr3 hold addresses, dr6 reports the hit slot, dr7 enables each
// slot and encodes its condition and length in a 4-bit nibble at
// 16+4*slot. See the Intel SDM Vol. 3B, section 17.2.

func encodeHardwareStoppointMode(mode proc.StoppointMode) (uint64, error) {
	switch mode {
	case proc.WriteMode:
		return 0b01, nil
	case proc.ReadWriteMode:
		return 0b11, nil
	case proc.ExecuteMode:
		return 0b00, nil
	}
	return 0, proc.Usagef("invalid stoppoint mode")
}

func encodeHardwareStoppointSize(size int) (uint64, error) {
	switch size {
	case 1:
		return 0b00, nil
	case 2:
		return 0b01, nil
	case 4:
		return 0b11, nil
	case 8:
		return 0b10, nil
	}
	return 0, proc.Usagef("invalid stoppoint size %d", size)
}

func findFreeStoppointRegister(control uint64) (int, error) {
	for i := 0; i < 4; i++ {
		// two enable bits per slot
		if control&(0b11<<(i*2)) == 0 {
			return i, nil
		}
	}
	return 0, proc.ErrNoFreeDebugRegister
}

// SetHardwareStoppoint claims a free debug-register slot for addr and
// programs dr7 for the given mode and size. It returns the slot index.
func (p *Process) SetHardwareStoppoint(addr proc.VirtAddr, mode proc.StoppointMode, size int) (int, error) {
	modeFlag, err := encodeHardwareStoppointMode(mode)
	if err != nil {
		return 0, err
	}
	sizeFlag, err := encodeHardwareStoppointSize(size)
	if err != nil {
		return 0, err
	}

	control := p.regs.ReadUint64(proc.Dr7)
	slot, err := findFreeStoppointRegister(control)
	if err != nil {
		return 0, err
	}

	if err := p.regs.WriteByID(proc.Dr0+proc.RegisterID(slot), proc.Uint64Value(addr.Uint64())); err != nil {
		return 0, err
	}

	enableBit := uint64(1) << (slot * 2)
	modeBits := modeFlag << (slot*4 + 16)
	sizeBits := sizeFlag << (slot*4 + 18)
	clearMask := uint64(0b11)<<(slot*2) | uint64(0b1111)<<(slot*4+16)

	masked := control &^ clearMask
	masked |= enableBit | modeBits | sizeBits

	if err := p.regs.WriteByID(proc.Dr7, proc.Uint64Value(masked)); err != nil {
		return 0, err
	}
	return slot, nil
}

// ClearHardwareStoppoint zeroes dr[slot] and the slot's enable and
// condition/length bits in dr7.
func (p *Process) ClearHardwareStoppoint(slot int) error {
	if err := p.regs.WriteByID(proc.Dr0+proc.RegisterID(slot), proc.Uint64Value(0)); err != nil {
		return err
	}
	control := p.regs.ReadUint64(proc.Dr7)
	clearMask := uint64(0b11)<<(slot*2) | uint64(0b1111)<<(slot*4+16)
	return p.regs.WriteByID(proc.Dr7, proc.Uint64Value(control&^clearMask))
}

// currentHardwareStoppoint resolves which stop-point raised a hardware
// trap: the least significant set bit of dr6 is the hit slot, and the
// slot's address identifies the breakpoint site or watchpoint.
func (p *Process) currentHardwareStoppoint() (HardwareStoppointRef, error) {
	status := p.regs.ReadUint64(proc.Dr6)
	slot := bits.TrailingZeros64(status)
	if slot >= 4 {
		return HardwareStoppointRef{}, proc.Usagef("no hardware stop-point reported in dr6")
	}
	addr := proc.VirtAddr(p.regs.ReadUint64(proc.Dr0 + proc.RegisterID(slot)))

	if p.breakpointSites.ContainsAddress(addr) {
		site, err := p.breakpointSites.GetByAddress(addr)
		if err != nil {
			return HardwareStoppointRef{}, err
		}
		return HardwareStoppointRef{ID: site.ID()}, nil
	}
	wp, err := p.watchpoints.GetByAddress(addr)
	if err != nil {
		return HardwareStoppointRef{}, err
	}
	return HardwareStoppointRef{IsWatchpoint: true, ID: wp.ID()}, nil
}

// HardwareStoppointRef is the tagged id of the stop-point that raised
// a hardware trap: variant 0 a breakpoint site, variant 1 a
// watchpoint.
type HardwareStoppointRef struct {
	IsWatchpoint bool
	ID           int32
}
