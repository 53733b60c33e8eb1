// Package native controls a single Linux/x86-64 inferior over ptrace:
// launch and attach, register and memory access, software and hardware
// stop-points and the resume/step/wait protocol.
package native

import (
	"runtime"

	"github.com/sdb-dev/sdb/pkg/logflags"
	"github.com/sdb-dev/sdb/pkg/proc"
)

// Process owns one inferior. All mutating operations must be
// serialized by the caller; while the inferior runs, the only safe
// operation is WaitOnSignal.
type Process struct {
	pid            int
	attached       bool
	terminateOnEnd bool
	state          proc.ProcessState

	regs            *proc.RegisterFile
	breakpointSites proc.StoppointCollection[*proc.BreakpointSite]
	watchpoints     proc.StoppointCollection[*proc.Watchpoint]

	syscallPolicy        proc.SyscallCatchPolicy
	expectingSyscallExit bool

	nextBreakpointID int32
	nextWatchpointID int32

	// ptrace(2) expects every request after PTRACE_ATTACH to come from
	// the same thread, so all requests funnel through one locked
	// goroutine.
	ptraceChan     chan func()
	ptraceDoneChan chan interface{}
	exited         bool

	log logflags.Logger
}

func newProcess(pid int, attached, terminateOnEnd bool) *Process {
	p := &Process{
		pid:            pid,
		attached:       attached,
		terminateOnEnd: terminateOnEnd,
		state:          proc.Stopped,
		syscallPolicy:  proc.CatchNonePolicy(),
		ptraceChan:     make(chan func()),
		ptraceDoneChan: make(chan interface{}),
		log:            logflags.DebuggerLogger(),
	}
	p.regs = proc.NewRegisterFile(p)
	go p.handlePtraceFuncs()
	return p
}

func (p *Process) handlePtraceFuncs() {
	runtime.LockOSThread()
	for fn := range p.ptraceChan {
		fn()
		p.ptraceDoneChan <- nil
	}
}

func (p *Process) execPtraceFunc(fn func()) {
	p.ptraceChan <- fn
	<-p.ptraceDoneChan
}

func (p *Process) stopPtraceThread() {
	if p.exited {
		return
	}
	p.exited = true
	close(p.ptraceChan)
	close(p.ptraceDoneChan)
}

// Pid returns the inferior's process id, 0 after Close.
func (p *Process) Pid() int { return p.pid }

// State returns the tracked process state as of the last observed
// transition.
func (p *Process) State() proc.ProcessState { return p.state }

// Registers returns the user-area snapshot taken at the last stop.
func (p *Process) Registers() *proc.RegisterFile { return p.regs }

// PC returns the snapshot program counter.
func (p *Process) PC() proc.VirtAddr { return p.regs.PC() }

// SetPC moves the program counter.
func (p *Process) SetPC(pc proc.VirtAddr) error { return p.regs.SetPC(pc) }

// BreakpointSites exposes the breakpoint-site collection.
func (p *Process) BreakpointSites() *proc.StoppointCollection[*proc.BreakpointSite] {
	return &p.breakpointSites
}

// Watchpoints exposes the watchpoint collection.
func (p *Process) Watchpoints() *proc.StoppointCollection[*proc.Watchpoint] {
	return &p.watchpoints
}

// SetSyscallCatchPolicy replaces the syscall catch policy; it is read
// on the next resume.
func (p *Process) SetSyscallCatchPolicy(policy proc.SyscallCatchPolicy) {
	p.syscallPolicy = policy
}

// SyscallCatchPolicy returns the active policy.
func (p *Process) SyscallCatchPolicy() proc.SyscallCatchPolicy { return p.syscallPolicy }

// CreateBreakpointSite registers a new breakpoint site at addr. User
// site ids are dense and monotonically increasing; internal sites all
// share the id -1.
func (p *Process) CreateBreakpointSite(addr proc.VirtAddr, hardware, internal bool) (*proc.BreakpointSite, error) {
	if p.breakpointSites.ContainsAddress(addr) {
		return nil, proc.Usagef("breakpoint site already created at address %s", addr)
	}
	id := proc.InternalBreakpointID
	if !internal {
		p.nextBreakpointID++
		id = p.nextBreakpointID
	}
	return p.breakpointSites.Push(proc.NewBreakpointSite(p, id, addr, hardware, internal)), nil
}

// CreateWatchpoint registers a new watchpoint over size bytes at addr.
func (p *Process) CreateWatchpoint(addr proc.VirtAddr, mode proc.StoppointMode, size int) (*proc.Watchpoint, error) {
	if p.watchpoints.ContainsAddress(addr) {
		return nil, proc.Usagef("watchpoint already created at address %s", addr)
	}
	p.nextWatchpointID++
	wp, err := proc.NewWatchpoint(p, p.nextWatchpointID, addr, mode, size)
	if err != nil {
		p.nextWatchpointID--
		return nil, err
	}
	return p.watchpoints.Push(wp), nil
}
