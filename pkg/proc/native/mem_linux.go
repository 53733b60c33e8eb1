package native

import (
	"encoding/binary"

	sys "golang.org/x/sys/unix"

	"github.com/sdb-dev/sdb/pkg/proc"
)

const pageSize = 0x1000

// ReadMemory reads n bytes starting at addr with a single
// process_vm_readv call. The remote iovec list is split on 4 KiB page
// boundaries so that a single iovec never crosses into an unmapped
// page.
func (p *Process) ReadMemory(addr proc.VirtAddr, n int) ([]byte, error) {
	out := make([]byte, n)
	if n == 0 {
		return out, nil
	}

	var remote []remoteIovec
	for amount, a := n, addr.Uint64(); amount > 0; {
		upToNextPage := int(pageSize - (a & (pageSize - 1)))
		chunk := amount
		if upToNextPage < chunk {
			chunk = upToNextPage
		}
		remote = append(remote, remoteIovec{base: uintptr(a), len: uintptr(chunk)})
		amount -= chunk
		a += uint64(chunk)
	}

	var (
		read int
		err  error
	)
	p.execPtraceFunc(func() { read, err = processVMReadv(p.pid, out, remote) })
	if err != nil {
		return nil, proc.Kernelf(err, "could not read process memory")
	}
	if read != n {
		return nil, proc.Kernelf(nil, "could not read process memory: short read (%d of %d)", read, n)
	}
	return out, nil
}

// ReadMemoryWithoutTraps reads memory and hides the int3 bytes of
// enabled software breakpoint sites in the range, restoring the saved
// original bytes. Hardware sites leave memory untouched and are
// skipped.
func (p *Process) ReadMemoryWithoutTraps(addr proc.VirtAddr, n int) ([]byte, error) {
	mem, err := p.ReadMemory(addr, n)
	if err != nil {
		return nil, err
	}
	for _, site := range p.breakpointSites.GetInRange(addr, addr.Add(int64(n))) {
		if !site.IsEnabled() || site.IsHardware() {
			continue
		}
		mem[site.Address().Uint64()-addr.Uint64()] = site.SavedByte()
	}
	return mem, nil
}

// WriteMemory writes data at addr in 8-byte pokes. The trailing
// partial word is read back first and merged so bytes past the write
// are preserved. The write either completes or fails as a whole from
// the caller's point of view: each poke is atomic and a failed poke
// aborts the operation.
func (p *Process) WriteMemory(addr proc.VirtAddr, data []byte) error {
	for written := 0; written < len(data); written += 8 {
		remaining := data[written:]

		var word uint64
		if len(remaining) >= 8 {
			word = binary.LittleEndian.Uint64(remaining)
		} else {
			current, err := p.ReadMemory(addr.Add(int64(written)), 8)
			if err != nil {
				return err
			}
			var merged [8]byte
			copy(merged[:], current)
			copy(merged[:], remaining)
			word = binary.LittleEndian.Uint64(merged[:])
		}

		if err := p.WriteWord(addr.Add(int64(written)), word); err != nil {
			return err
		}
	}
	return nil
}

// ReadWord peeks the 8-byte word at addr.
func (p *Process) ReadWord(addr proc.VirtAddr) (uint64, error) {
	var (
		buf [8]byte
		err error
	)
	p.execPtraceFunc(func() { _, err = sys.PtracePeekData(p.pid, uintptr(addr.Uint64()), buf[:]) })
	if err != nil {
		return 0, proc.Kernelf(err, "could not peek memory at %s", addr)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// WriteWord pokes the 8-byte word at addr.
func (p *Process) WriteWord(addr proc.VirtAddr, word uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	var err error
	p.execPtraceFunc(func() { _, err = sys.PtracePokeData(p.pid, uintptr(addr.Uint64()), buf[:]) })
	if err != nil {
		return proc.Kernelf(err, "could not poke memory at %s", addr)
	}
	return nil
}
