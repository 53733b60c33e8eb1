package proc

import (
	"errors"
	"fmt"
)

// ErrorKind classifies debugger errors so that the front-end can decide
// how to present them. Every error produced by this module and its
// backends is either one of these or a plain sentinel.
type ErrorKind uint8

const (
	// UsageError is a caller mistake: invalid pid, unaligned
	// watchpoint, duplicate breakpoint address, unknown register or
	// syscall name.
	UsageError ErrorKind = iota
	// KernelFailure is any ptrace, waitpid, fork, exec, dup2, pipe2 or
	// process_vm_readv failure; it carries the errno text.
	KernelFailure
	// ResourceExhaustion is returned when no hardware debug register is
	// free.
	ResourceExhaustion
	// ParseError is a malformed integer or vector literal from the
	// front-end.
	ParseError
)

func (k ErrorKind) String() string {
	switch k {
	case UsageError:
		return "usage"
	case KernelFailure:
		return "kernel failure"
	case ResourceExhaustion:
		return "resource exhaustion"
	case ParseError:
		return "parse"
	}
	return "unknown"
}

// Error is the tagged error carried through the debugger core.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error // underlying cause, usually an errno
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Usagef returns a UsageError with a formatted message.
func Usagef(format string, args ...interface{}) error {
	return &Error{Kind: UsageError, Msg: fmt.Sprintf(format, args...)}
}

// Kernelf wraps a failed kernel request. err is typically a
// syscall.Errno.
func Kernelf(err error, format string, args ...interface{}) error {
	return &Error{Kind: KernelFailure, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Parsef returns a ParseError with a formatted message.
func Parsef(format string, args ...interface{}) error {
	return &Error{Kind: ParseError, Msg: fmt.Sprintf(format, args...)}
}

// ErrNoFreeDebugRegister is returned by the debug-register allocator
// when all four slots are enabled.
var ErrNoFreeDebugRegister = &Error{Kind: ResourceExhaustion, Msg: "no remaining hardware debug registers"}

// ErrProcessExited indicates that the process being debugged has exited
// and that no further operations can be performed on it.
type ErrProcessExited struct {
	Pid    int
	Status int
}

func (pe ErrProcessExited) Error() string {
	return fmt.Sprintf("process %d has exited with status %d", pe.Pid, pe.Status)
}

// IsKind reports whether err is a tagged debugger error of kind k.
func IsKind(err error, k ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
