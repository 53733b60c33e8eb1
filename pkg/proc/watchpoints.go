package proc

import "encoding/binary"

// Watchpoint is a hardware data stop-point over 1, 2, 4 or 8 bytes.
// It tracks the watched word across stops so the front-end can show
// old and new values.
type Watchpoint struct {
	backend StoppointBackend
	id      int32
	addr    VirtAddr
	mode    StoppointMode
	size    int
	enabled bool

	data     uint64
	prevData uint64
	hwSlot   int
}

// NewWatchpoint creates a disabled watchpoint. x86 requires the
// address to be naturally aligned to the watched size.
func NewWatchpoint(backend StoppointBackend, id int32, addr VirtAddr, mode StoppointMode, size int) (*Watchpoint, error) {
	switch size {
	case 1, 2, 4, 8:
	default:
		return nil, Usagef("invalid watchpoint size %d", size)
	}
	if addr.Uint64()&uint64(size-1) != 0 {
		return nil, Usagef("watchpoints must be aligned to their size")
	}
	return &Watchpoint{
		backend: backend,
		id:      id,
		addr:    addr,
		mode:    mode,
		size:    size,
		hwSlot:  -1,
	}, nil
}

func (wp *Watchpoint) ID() int32           { return wp.id }
func (wp *Watchpoint) Address() VirtAddr   { return wp.addr }
func (wp *Watchpoint) Mode() StoppointMode { return wp.mode }
func (wp *Watchpoint) Size() int           { return wp.size }
func (wp *Watchpoint) IsEnabled() bool     { return wp.enabled }

// Data returns the watched word as of the most recent update.
func (wp *Watchpoint) Data() uint64 { return wp.data }

// PreviousData returns the watched word as of the update before that.
func (wp *Watchpoint) PreviousData() uint64 { return wp.prevData }

func (wp *Watchpoint) AtAddress(addr VirtAddr) bool { return wp.addr == addr }

func (wp *Watchpoint) InRange(low, high VirtAddr) bool {
	return low <= wp.addr && wp.addr < high
}

// Enable claims a debug-register slot for the watchpoint.
func (wp *Watchpoint) Enable() error {
	if wp.enabled {
		return nil
	}
	slot, err := wp.backend.SetHardwareStoppoint(wp.addr, wp.mode, wp.size)
	if err != nil {
		return err
	}
	wp.hwSlot = slot
	wp.enabled = true
	return nil
}

// Disable releases the watchpoint's debug-register slot.
func (wp *Watchpoint) Disable() error {
	if !wp.enabled {
		return nil
	}
	if err := wp.backend.ClearHardwareStoppoint(wp.hwSlot); err != nil {
		return err
	}
	wp.hwSlot = -1
	wp.enabled = false
	return nil
}

// UpdateData shifts the current word into the previous one and
// re-reads the watched memory. The controller calls it when a hardware
// trap resolves to this watchpoint.
func (wp *Watchpoint) UpdateData() error {
	raw, err := wp.backend.ReadMemory(wp.addr, wp.size)
	if err != nil {
		return err
	}
	var word [8]byte
	copy(word[:], raw)
	wp.prevData = wp.data
	wp.data = binary.LittleEndian.Uint64(word[:])
	return nil
}
