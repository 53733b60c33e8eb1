package native

import (
	"os"
	"os/exec"
	"syscall"

	sys "golang.org/x/sys/unix"

	"github.com/sdb-dev/sdb/pkg/proc"
)

const (
	personalityGetPersonality = 0xffffffff // argument to pass to personality syscall to get the current personality
	_ADDR_NO_RANDOMIZE        = 0x0040000  // ADDR_NO_RANDOMIZE linux constant

	sigtrap = uint8(sys.SIGTRAP)
	// syscall-stops are reported as SIGTRAP with bit 7 set once
	// TRACESYSGOOD is in effect
	sigtrapSysGood = sigtrap | 0x80
)

// Launch creates and begins debugging a new process running path. The
// child is placed in its own process group and runs with address-space
// randomization disabled. If stdout is non-nil it replaces the
// child's standard output. With debug false the process is started but
// not traced.
func Launch(path string, debug bool, stdout *os.File) (*Process, error) {
	var (
		cmd *exec.Cmd
		err error
	)

	p := newProcess(0, debug, true)
	p.execPtraceFunc(func() {
		// the personality is inherited across fork, flip it off around
		// the start so only the child sees it
		oldPersonality, _, perr := syscall.Syscall(sys.SYS_PERSONALITY, personalityGetPersonality, 0, 0)
		if perr == syscall.Errno(0) {
			syscall.Syscall(sys.SYS_PERSONALITY, oldPersonality|_ADDR_NO_RANDOMIZE, 0, 0)
			defer syscall.Syscall(sys.SYS_PERSONALITY, oldPersonality, 0, 0)
		}

		cmd = exec.Command(path)
		cmd.Stdout = os.Stdout
		if stdout != nil {
			cmd.Stdout = stdout
		}
		cmd.Stderr = os.Stderr
		cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: debug, Setpgid: true}
		err = cmd.Start()
	})
	if err != nil {
		// covers a failed fork as well as a failed exec: the runtime
		// reports the child's pre-exec errors over its own
		// close-on-exec pipe and reaps the child
		p.stopPtraceThread()
		return nil, proc.Kernelf(err, "exec failed")
	}
	p.pid = cmd.Process.Pid
	p.log.Debugf("launched %q pid=%d", path, p.pid)

	if debug {
		if _, err := p.WaitOnSignal(); err != nil {
			return nil, err
		}
		if err := p.setPtraceOptions(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Attach begins debugging the existing process pid.
func Attach(pid int) (*Process, error) {
	if pid == 0 {
		return nil, proc.Usagef("invalid pid %d", pid)
	}

	p := newProcess(pid, true, false)
	var err error
	p.execPtraceFunc(func() { err = ptraceAttach(pid) })
	if err != nil {
		p.stopPtraceThread()
		return nil, proc.Kernelf(err, "could not attach")
	}
	p.log.Debugf("attached to pid=%d", pid)

	if _, err := p.WaitOnSignal(); err != nil {
		return nil, err
	}
	if err := p.setPtraceOptions(); err != nil {
		return nil, err
	}
	return p, nil
}

// setPtraceOptions requests TRACESYSGOOD so syscall-stops are
// distinguishable from other SIGTRAPs.
func (p *Process) setPtraceOptions() error {
	var err error
	p.execPtraceFunc(func() { err = ptraceSetOptions(p.pid, sys.PTRACE_O_TRACESYSGOOD) })
	if err != nil {
		return proc.Kernelf(err, "failed to set TRACESYSGOOD option")
	}
	return nil
}

// Close tears the debug session down. An inferior we attached to is
// stopped if running, detached and continued on its way; one we
// launched is killed and reaped. Close is idempotent.
func (p *Process) Close() {
	if p.pid == 0 {
		return
	}

	if p.attached && !p.terminateOnEnd {
		// attached rather than launched: hand the process back
		if p.state == proc.Running {
			sys.Kill(p.pid, sys.SIGSTOP)
			var status sys.WaitStatus
			sys.Wait4(p.pid, &status, 0, nil)
		}
		p.execPtraceFunc(func() { ptraceDetach(p.pid, 0) })
		sys.Kill(p.pid, sys.SIGCONT)
	}

	if p.terminateOnEnd {
		sys.Kill(p.pid, sys.SIGKILL)
		var status sys.WaitStatus
		// best-effort teardown, a failed wait here is ignored
		sys.Wait4(p.pid, &status, 0, nil)
	}

	p.log.Debugf("closed pid=%d", p.pid)
	p.stopPtraceThread()
	p.pid = 0
}

// stepOverBreakpoint disables an enabled software breakpoint at the
// current pc, single-steps past it and waits for the step trap. The
// int3 byte would otherwise immediately re-trap on the current
// instruction.
func (p *Process) stepOverBreakpoint() (reenable *proc.BreakpointSite, err error) {
	pc := p.regs.PC()
	if !p.breakpointSites.EnabledStoppointAtAddress(pc) {
		return nil, nil
	}
	bp, err := p.breakpointSites.GetByAddress(pc)
	if err != nil {
		return nil, err
	}
	if err := bp.Disable(); err != nil {
		return nil, err
	}
	p.execPtraceFunc(func() { err = ptraceSingleStep(p.pid) })
	if err != nil {
		return nil, proc.Kernelf(err, "failed to single step")
	}
	var status sys.WaitStatus
	if _, err := sys.Wait4(p.pid, &status, 0, nil); err != nil {
		return nil, proc.Kernelf(err, "waitpid failed")
	}
	return bp, nil
}

// Resume sets the inferior running until the next stop. Depending on
// the syscall catch policy the kernel request is a plain continue or a
// syscall-stopping continue.
func (p *Process) Resume() error {
	bp, err := p.stepOverBreakpoint()
	if err != nil {
		return err
	}
	if bp != nil {
		if err := bp.Enable(); err != nil {
			return err
		}
	}

	p.execPtraceFunc(func() {
		if p.syscallPolicy.Mode() == proc.CatchNone {
			err = ptraceCont(p.pid, 0)
		} else {
			err = ptraceSyscall(p.pid, 0)
		}
	})
	if err != nil {
		return proc.Kernelf(err, "could not resume")
	}
	p.state = proc.Running
	p.log.Debugf("resumed pid=%d", p.pid)
	return nil
}

// StepInstruction executes exactly one instruction, stepping over an
// enabled breakpoint at the current pc if there is one.
func (p *Process) StepInstruction() (proc.StopReason, error) {
	var toReenable *proc.BreakpointSite
	pc := p.regs.PC()
	if p.breakpointSites.EnabledStoppointAtAddress(pc) {
		bp, err := p.breakpointSites.GetByAddress(pc)
		if err != nil {
			return proc.StopReason{}, err
		}
		if err := bp.Disable(); err != nil {
			return proc.StopReason{}, err
		}
		toReenable = bp
	}

	var err error
	p.execPtraceFunc(func() { err = ptraceSingleStep(p.pid) })
	if err != nil {
		return proc.StopReason{}, proc.Kernelf(err, "could not single step")
	}
	reason, err := p.WaitOnSignal()
	if err != nil {
		return proc.StopReason{}, err
	}
	if toReenable != nil {
		if err := toReenable.Enable(); err != nil {
			return proc.StopReason{}, err
		}
	}
	return reason, nil
}

// WaitOnSignal blocks until the inferior stops, exits or is killed and
// returns the classified stop. On a stop of an attached inferior the
// register snapshot is refreshed, the reason is augmented with siginfo
// and debug-register state, the pc is rewound past a software
// breakpoint's int3, watchpoint data is refreshed, and uncaught
// syscall-stops are transparently resumed.
func (p *Process) WaitOnSignal() (proc.StopReason, error) {
	var status sys.WaitStatus
	if _, err := sys.Wait4(p.pid, &status, 0, nil); err != nil {
		return proc.StopReason{}, proc.Kernelf(err, "waitpid failed")
	}
	reason := proc.NewStopReason(status)
	p.state = reason.State
	p.log.Debugf("wait pid=%d state=%s info=%d", p.pid, reason.State, reason.Info)

	if p.attached && p.state == proc.Stopped {
		if err := p.readAllRegisters(); err != nil {
			return reason, err
		}
		if err := p.augmentStopReason(&reason); err != nil {
			return reason, err
		}

		if reason.Info == sigtrap {
			switch reason.Trap {
			case proc.SoftwareBreakpointTrap:
				// the int3 has executed, pc points one past the site
				instructionBegin := p.regs.PC().Add(-1)
				if p.breakpointSites.EnabledStoppointAtAddress(instructionBegin) {
					if err := p.regs.SetPC(instructionBegin); err != nil {
						return reason, err
					}
				}
			case proc.HardwareBreakpointTrap:
				ref, err := p.currentHardwareStoppoint()
				if err != nil {
					return reason, err
				}
				if ref.IsWatchpoint {
					wp, err := p.watchpoints.GetByID(ref.ID)
					if err != nil {
						return reason, err
					}
					if err := wp.UpdateData(); err != nil {
						return reason, err
					}
				}
			case proc.SyscallTrap:
				return p.maybeResumeFromSyscall(reason)
			}
		}
	}
	return reason, nil
}

// augmentStopReason refines a raw stop with ptrace siginfo: syscall
// stops get their syscall information populated, SIGTRAP stops get a
// trap kind decoded from si_code.
func (p *Process) augmentStopReason(reason *proc.StopReason) error {
	var (
		si  *siginfo
		err error
	)
	p.execPtraceFunc(func() { si, err = ptraceGetSigInfo(p.pid) })
	if err != nil {
		return proc.Kernelf(err, "failed to get siginfo")
	}

	if reason.Info == sigtrapSysGood {
		info := &proc.SyscallInfo{ID: uint16(p.regs.ReadUint64(proc.OrigRax))}
		if p.expectingSyscallExit {
			info.Entry = false
			info.Ret = p.regs.ReadUint64(proc.Rax)
			p.expectingSyscallExit = false
		} else {
			info.Entry = true
			// SysV ABI syscall arguments, in order
			for i, id := range [6]proc.RegisterID{proc.Rdi, proc.Rsi, proc.Rdx, proc.R10, proc.R8, proc.R9} {
				info.Args[i] = p.regs.ReadUint64(id)
			}
			p.expectingSyscallExit = true
		}
		reason.Info = sigtrap
		reason.Trap = proc.SyscallTrap
		reason.Syscall = info
		return nil
	}

	// any non-syscall stop breaks an entry/exit pair
	p.expectingSyscallExit = false

	reason.Trap = proc.UnknownTrap
	if reason.Info == sigtrap {
		switch si.Code {
		case _TRAP_TRACE:
			reason.Trap = proc.SingleStepTrap
		case _SI_KERNEL:
			// on x86-64 Linux software breakpoints report SI_KERNEL
			// rather than TRAP_BRKPT; enough tools rely on the quirk
			// that the kernel keeps it
			reason.Trap = proc.SoftwareBreakpointTrap
		case _TRAP_HWBKPT:
			reason.Trap = proc.HardwareBreakpointTrap
		}
	}
	return nil
}

// maybeResumeFromSyscall applies a CatchSome policy: stops for listed
// syscall ids are returned as-is, anything else is transparently
// resumed.
func (p *Process) maybeResumeFromSyscall(reason proc.StopReason) (proc.StopReason, error) {
	if p.syscallPolicy.Mode() == proc.CatchSome && !p.syscallPolicy.Catches(int(reason.Syscall.ID)) {
		if err := p.Resume(); err != nil {
			return reason, err
		}
		return p.WaitOnSignal()
	}
	return reason, nil
}

// CurrentHardwareStoppoint resolves the stop-point that raised the
// most recent hardware trap.
func (p *Process) CurrentHardwareStoppoint() (HardwareStoppointRef, error) {
	return p.currentHardwareStoppoint()
}
