package proc

// ElfObject is the read-only contract the core needs from an ELF
// loader: the load bias and section containment checks used to
// translate between file and virtual addresses. The full loader lives
// in pkg/elffile; the core never mutates it.
type ElfObject interface {
	// LoadBias is the offset between the object's preferred base and
	// where it actually resides in the inferior.
	LoadBias() VirtAddr
	// ContainsFileAddr reports whether some section of the object
	// covers the given file address.
	ContainsFileAddr(FileAddr) bool
	// ContainsVirtAddr reports whether some section of the object,
	// relocated by the load bias, covers the given virtual address.
	ContainsVirtAddr(VirtAddr) bool
}

// MemoryReader is the slice of the process controller consumed by the
// disassembler: raw memory with breakpoint bytes hidden, plus the
// current program counter for the default disassembly start.
type MemoryReader interface {
	ReadMemoryWithoutTraps(addr VirtAddr, n int) ([]byte, error)
	PC() VirtAddr
}

// StoppointBackend is what breakpoint sites and watchpoints need from
// the owning process: word-granular memory access for the int3 patch
// and the hardware debug-register allocator. The process strictly
// outlives its stop-points, so this is a non-owning back-pointer.
type StoppointBackend interface {
	ReadWord(addr VirtAddr) (uint64, error)
	WriteWord(addr VirtAddr, word uint64) error
	ReadMemory(addr VirtAddr, n int) ([]byte, error)

	SetHardwareStoppoint(addr VirtAddr, mode StoppointMode, size int) (int, error)
	ClearHardwareStoppoint(index int) error
}

// RegisterSync flushes register-file mutations to the kernel user
// area. GPR and DR writes go through single aligned word pokes; the
// kernel does not support word writes into the x87 area, so FPR writes
// replace the whole area.
type RegisterSync interface {
	PokeUserArea(offset int, word uint64) error
	WriteFPRegs(fprs *UserFPRegs) error
}
