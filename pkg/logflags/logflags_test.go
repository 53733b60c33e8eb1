package logflags

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	require.NoError(t, Setup(""))
	require.False(t, Debugger())
	require.False(t, Ptrace())

	require.NoError(t, Setup("debugger,ptrace"))
	require.True(t, Debugger())
	require.True(t, Ptrace())

	require.Error(t, Setup("frobnicator"))

	require.NoError(t, Setup("debugger"))
	require.True(t, Debugger())
	require.False(t, Ptrace())
}

func TestLoggerDisabledByDefault(t *testing.T) {
	require.NoError(t, Setup(""))
	log := DebuggerLogger()
	// must not panic or write anywhere
	log.Debugf("quiet %d", 1)
	log.WithField("pid", 1).WithError(nil).Infof("still quiet")
}
