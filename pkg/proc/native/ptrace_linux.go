package native

import (
	"syscall"
	"unsafe"

	sys "golang.org/x/sys/unix"
)

// ptraceAttach executes the sys.PtraceAttach call.
func ptraceAttach(pid int) error {
	return sys.PtraceAttach(pid)
}

// ptraceDetach calls ptrace(PTRACE_DETACH).
func ptraceDetach(pid, sig int) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_DETACH, uintptr(pid), 1, uintptr(sig), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// ptraceCont executes ptrace PTRACE_CONT.
func ptraceCont(pid, sig int) error {
	return sys.PtraceCont(pid, sig)
}

// ptraceSyscall executes ptrace PTRACE_SYSCALL, resuming the inferior
// until the next syscall boundary.
func ptraceSyscall(pid, sig int) error {
	return sys.PtraceSyscall(pid, sig)
}

// ptraceSingleStep executes ptrace PTRACE_SINGLESTEP.
func ptraceSingleStep(pid int) error {
	return sys.PtraceSingleStep(pid)
}

// ptraceSetOptions executes ptrace PTRACE_SETOPTIONS.
func ptraceSetOptions(pid int, options int) error {
	return sys.PtraceSetOptions(pid, options)
}

// ptracePokeUser executes ptrace PTRACE_POKEUSR. off must be 8-byte
// aligned.
func ptracePokeUser(pid int, off uintptr, word uint64) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_POKEUSR, uintptr(pid), off, uintptr(word), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// ptracePeekUser executes ptrace PTRACE_PEEKUSR.
func ptracePeekUser(pid int, off uintptr) (uint64, error) {
	var val uint64
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_PEEKUSR, uintptr(pid), off, uintptr(unsafe.Pointer(&val)), 0, 0)
	if err != syscall.Errno(0) {
		return 0, err
	}
	return val, nil
}

// ptraceGetRegs executes ptrace PTRACE_GETREGS into regs.
func ptraceGetRegs(pid int, regs unsafe.Pointer) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_GETREGS, uintptr(pid), 0, uintptr(regs), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// ptraceGetFPRegs executes ptrace PTRACE_GETFPREGS into fpregs.
func ptraceGetFPRegs(pid int, fpregs unsafe.Pointer) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_GETFPREGS, uintptr(pid), 0, uintptr(fpregs), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// ptraceSetFPRegs executes ptrace PTRACE_SETFPREGS; the kernel does
// not support word writes into the x87 area, so the whole area is
// replaced at once.
func ptraceSetFPRegs(pid int, fpregs unsafe.Pointer) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_SETFPREGS, uintptr(pid), 0, uintptr(fpregs), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// siginfo matches the prefix of the kernel's siginfo_t; only si_code
// is consumed by the stop classifier.
type siginfo struct {
	Signo int32
	Errno int32
	Code  int32
	_     [116]byte
}

// si_code values relevant to SIGTRAP classification, from
// include/uapi/asm-generic/siginfo.h. Software breakpoints report
// SI_KERNEL rather than TRAP_BRKPT on x86-64.
const (
	_SI_KERNEL   = 0x80
	_TRAP_TRACE  = 2
	_TRAP_HWBKPT = 4
)

// ptraceGetSigInfo executes ptrace PTRACE_GETSIGINFO.
func ptraceGetSigInfo(pid int) (*siginfo, error) {
	var si siginfo
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_GETSIGINFO, uintptr(pid), 0, uintptr(unsafe.Pointer(&si)), 0, 0)
	if err != syscall.Errno(0) {
		return nil, err
	}
	return &si, nil
}

// remoteIovec is like golang.org/x/sys/unix.Iovec but uses uintptr for
// the base field instead of *byte so that we can use it with addresses
// that belong to the target process.
type remoteIovec struct {
	base uintptr
	len  uintptr
}

// processVMReadv calls process_vm_readv with a single local iovec and
// the given remote iovec list.
func processVMReadv(pid int, local []byte, remote []remoteIovec) (int, error) {
	localIov := sys.Iovec{Base: &local[0], Len: uint64(len(local))}
	n, _, err := syscall.Syscall6(sys.SYS_PROCESS_VM_READV, uintptr(pid),
		uintptr(unsafe.Pointer(&localIov)), 1,
		uintptr(unsafe.Pointer(&remote[0])), uintptr(len(remote)), 0)
	if err != syscall.Errno(0) {
		return 0, err
	}
	return int(n), nil
}
