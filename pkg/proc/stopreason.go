package proc

import (
	"fmt"

	sys "golang.org/x/sys/unix"
)

// ProcessState tracks the inferior through its lifecycle.
type ProcessState uint8

const (
	Running ProcessState = iota
	Stopped
	Exited
	Terminated
)

func (s ProcessState) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Exited:
		return "exited"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

// TrapKind refines a SIGTRAP stop into what actually raised it.
type TrapKind uint8

const (
	UnknownTrap TrapKind = iota
	SingleStepTrap
	SoftwareBreakpointTrap
	HardwareBreakpointTrap
	SyscallTrap
)

func (k TrapKind) String() string {
	switch k {
	case SingleStepTrap:
		return "single step"
	case SoftwareBreakpointTrap:
		return "software breakpoint"
	case HardwareBreakpointTrap:
		return "hardware breakpoint"
	case SyscallTrap:
		return "syscall"
	}
	return "unknown"
}

// SyscallInfo describes a syscall-stop: on entry the id and the six
// argument registers, on exit the id and the return value.
type SyscallInfo struct {
	ID    uint16
	Entry bool
	Args  [6]uint64 // entry only
	Ret   uint64    // exit only
}

// StopReason is the structured description of why WaitOnSignal
// returned: the new process state, the 8-bit exit code or signal
// number, and for SIGTRAP stops the refined trap kind and optional
// syscall information.
type StopReason struct {
	State   ProcessState
	Info    uint8
	Trap    TrapKind
	Syscall *SyscallInfo
}

// NewStopReason classifies a raw waitpid status.
func NewStopReason(status sys.WaitStatus) StopReason {
	var r StopReason
	switch {
	case status.Exited():
		r.State = Exited
		r.Info = uint8(status.ExitStatus())
	case status.Signaled():
		r.State = Terminated
		r.Info = uint8(status.Signal())
	case status.Stopped():
		r.State = Stopped
		r.Info = uint8(status.StopSignal())
	}
	return r
}

// IsStep reports a plain single-step stop.
func (r StopReason) IsStep() bool {
	return r.State == Stopped && r.Trap == SingleStepTrap
}

func (r StopReason) String() string {
	switch r.State {
	case Exited:
		return fmt.Sprintf("exited with status %d", r.Info)
	case Terminated:
		return fmt.Sprintf("terminated with signal %s", sys.SignalName(sys.Signal(r.Info)))
	case Stopped:
		return fmt.Sprintf("stopped with signal %s", sys.SignalName(sys.Signal(r.Info)))
	}
	return "running"
}

// SyscallCatchPolicyMode selects which syscall-stops are surfaced.
type SyscallCatchPolicyMode uint8

const (
	// CatchNone resumes with a plain continue; syscall traps never
	// occur.
	CatchNone SyscallCatchPolicyMode = iota
	// CatchSome stops only on the listed syscall ids.
	CatchSome
	// CatchAll stops on every syscall entry and exit.
	CatchAll
)

// SyscallCatchPolicy is read on every resume; the front-end mutates it
// between stops.
type SyscallCatchPolicy struct {
	mode    SyscallCatchPolicyMode
	toCatch []int
}

func CatchNonePolicy() SyscallCatchPolicy { return SyscallCatchPolicy{mode: CatchNone} }
func CatchAllPolicy() SyscallCatchPolicy  { return SyscallCatchPolicy{mode: CatchAll} }

func CatchSomePolicy(ids []int) SyscallCatchPolicy {
	return SyscallCatchPolicy{mode: CatchSome, toCatch: ids}
}

func (p SyscallCatchPolicy) Mode() SyscallCatchPolicyMode { return p.mode }

// Catches reports whether the policy surfaces stops for syscall id.
func (p SyscallCatchPolicy) Catches(id int) bool {
	switch p.mode {
	case CatchAll:
		return true
	case CatchSome:
		for _, c := range p.toCatch {
			if c == id {
				return true
			}
		}
	}
	return false
}
