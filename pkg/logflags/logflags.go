// Package logflags routes component logging through logrus. Logging is
// off by default; the command line switches individual components on.
package logflags

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	debugger bool
	ptrace   bool
)

// Setup enables logging for the listed components. flags is a comma
// separated list out of "debugger" and "ptrace"; empty disables
// everything.
func Setup(flags string) error {
	logrus.SetFormatter(&textFormatter{})
	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(logrus.DebugLevel)
	debugger = false
	ptrace = false
	if flags == "" {
		return nil
	}
	for _, component := range strings.Split(flags, ",") {
		switch component {
		case "debugger":
			debugger = true
		case "ptrace":
			ptrace = true
		default:
			return errorf("invalid log component %q", component)
		}
	}
	return nil
}

// Debugger returns true if the debugger component should log.
func Debugger() bool { return debugger }

// Ptrace returns true if ptrace requests should log.
func Ptrace() bool { return ptrace }

// DebuggerLogger returns the logger for the process controller.
func DebuggerLogger() Logger {
	return makeLogger(debugger, Fields{"layer": "debugger"})
}

// PtraceLogger returns the logger for raw trace requests.
func PtraceLogger() Logger {
	return makeLogger(ptrace, Fields{"layer": "ptrace"})
}

type logError struct{ msg string }

func (e logError) Error() string { return e.msg }

func errorf(format string, args ...interface{}) error {
	return logError{msg: sprintf(format, args...)}
}
