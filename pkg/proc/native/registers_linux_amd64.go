package native

import (
	"unsafe"

	"github.com/sdb-dev/sdb/pkg/proc"
)

// readAllRegisters refreshes the register-file snapshot at stop time:
// one GETREGS for the general purpose registers, one GETFPREGS for the
// x87/SSE area, then dr0..dr7 one by one because the kernel does not
// expose the debug registers as a block.
func (p *Process) readAllRegisters() error {
	var err error
	p.execPtraceFunc(func() {
		if err = ptraceGetRegs(p.pid, unsafe.Pointer(p.regs.Regs())); err != nil {
			return
		}
		err = ptraceGetFPRegs(p.pid, unsafe.Pointer(p.regs.FPRegs()))
	})
	if err != nil {
		return proc.Kernelf(err, "could not read registers")
	}

	for i := 0; i < 8; i++ {
		info, infoErr := proc.RegisterInfoByID(proc.Dr0 + proc.RegisterID(i))
		if infoErr != nil {
			return infoErr
		}
		var word uint64
		p.execPtraceFunc(func() { word, err = ptracePeekUser(p.pid, uintptr(info.Offset)) })
		if err != nil {
			return proc.Kernelf(err, "could not read debug register %s", info.Name)
		}
		p.regs.SetDebugRegRaw(i, word)
	}
	return nil
}

// PokeUserArea implements proc.RegisterSync with a single aligned
// user-area word write.
func (p *Process) PokeUserArea(offset int, word uint64) error {
	var err error
	p.execPtraceFunc(func() { err = ptracePokeUser(p.pid, uintptr(offset), word) })
	if err != nil {
		return proc.Kernelf(err, "could not write to user area")
	}
	return nil
}

// WriteFPRegs implements proc.RegisterSync by replacing the whole x87
// area.
func (p *Process) WriteFPRegs(fprs *proc.UserFPRegs) error {
	var err error
	p.execPtraceFunc(func() { err = ptraceSetFPRegs(p.pid, unsafe.Pointer(fprs)) })
	if err != nil {
		return proc.Kernelf(err, "could not write FPRs")
	}
	return nil
}
