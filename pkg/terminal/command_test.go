package terminal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdb-dev/sdb/pkg/config"
	"github.com/sdb-dev/sdb/pkg/proc"
)

func testTerm() (*Term, *strings.Builder) {
	var out strings.Builder
	t := &Term{cmds: DebugCommands(), stdout: &out}
	return t, &out
}

func TestCommandPrefixDispatch(t *testing.T) {
	cmds := DebugCommands()

	require.Equal(t, "continue", cmds.find("con").name)
	require.Equal(t, "continue", cmds.find("continue").name)
	require.Equal(t, "breakpoint", cmds.find("b").name)
	require.Nil(t, cmds.find("continues"))
	require.Nil(t, cmds.find("zzz"))
}

func TestUnknownCommand(t *testing.T) {
	term, _ := testTerm()
	err := term.cmds.Call(term, []string{"frobnicate"})
	require.True(t, proc.IsKind(err, proc.UsageError))
}

func TestHelpCommand(t *testing.T) {
	term, out := testTerm()
	require.NoError(t, term.cmds.Call(term, []string{"help"}))
	for _, name := range []string{"breakpoint", "continue", "register", "watchpoint"} {
		require.Contains(t, out.String(), name)
	}

	out.Reset()
	require.NoError(t, term.cmds.Call(term, []string{"help", "memory"}))
	require.Contains(t, out.String(), "memory write <address> <bytes>")

	err := term.cmds.Call(term, []string{"help", "zzz"})
	require.True(t, proc.IsKind(err, proc.UsageError))
}

func TestQuitCommand(t *testing.T) {
	term, _ := testTerm()
	require.NoError(t, term.cmds.Call(term, []string{"quit"}))
	require.True(t, term.quitting)
}

func TestFormatRegisterValue(t *testing.T) {
	rax, err := proc.RegisterInfoByName("rax")
	require.NoError(t, err)
	require.Equal(t, "0x00000000cafecafe", formatRegisterValue(rax, proc.Uint64Value(0xcafecafe)))

	al, err := proc.RegisterInfoByName("al")
	require.NoError(t, err)
	require.Equal(t, "0x7f", formatRegisterValue(al, proc.Uint8Value(0x7f)))

	st0, err := proc.RegisterInfoByName("st0")
	require.NoError(t, err)
	require.Equal(t, "42.5", formatRegisterValue(st0, proc.Float64Value(42.5)))

	mm0, err := proc.RegisterInfoByName("mm0")
	require.NoError(t, err)
	var b [8]byte
	b[0] = 0xde
	got := formatRegisterValue(mm0, proc.Bytes8Value(b))
	require.True(t, strings.HasPrefix(got, "[0xde,"), got)
}

func TestAliasExpansion(t *testing.T) {
	term, _ := testTerm()
	// no config means no aliases
	require.Equal(t, []string{"c"}, term.expandAlias([]string{"c"}))

	term.conf = &config.Config{Aliases: map[string][]string{
		"c":  {"continue"},
		"bs": {"breakpoint", "set"},
	}}
	require.Equal(t, []string{"continue"}, term.expandAlias([]string{"c"}))
	require.Equal(t, []string{"breakpoint", "set", "0x1000"}, term.expandAlias([]string{"bs", "0x1000"}))
}
