package terminal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdb-dev/sdb/pkg/proc"
)

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0xcafecafe")
	require.NoError(t, err)
	require.Equal(t, proc.VirtAddr(0xcafecafe), addr)

	for _, bad := range []string{"cafecafe", "0x", "0xzz", "", "12"} {
		_, err := ParseAddress(bad)
		require.True(t, proc.IsKind(err, proc.ParseError), "input %q", bad)
	}
}

func TestParseByteVector(t *testing.T) {
	data, err := ParseByteVector("[0xde,0xad,0xbe,0xef]")
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, data)

	data, err = ParseByteVector("[]")
	require.NoError(t, err)
	require.Empty(t, data)

	for _, bad := range []string{"0xde,0xad", "[0xde", "[0x100]", "[hello]"} {
		_, err := ParseByteVector(bad)
		require.True(t, proc.IsKind(err, proc.ParseError), "input %q", bad)
	}
}

func TestParseRegisterValue(t *testing.T) {
	rsi, err := proc.RegisterInfoByName("rsi")
	require.NoError(t, err)
	v, err := ParseRegisterValue(rsi, "0xcafecafe")
	require.NoError(t, err)
	require.Equal(t, uint64(0xcafecafe), v.Uint64())

	st0, err := proc.RegisterInfoByName("st0")
	require.NoError(t, err)
	v, err = ParseRegisterValue(st0, "42.5")
	require.NoError(t, err)
	require.Equal(t, 42.5, v.Float64())

	xmm0, err := proc.RegisterInfoByName("xmm0")
	require.NoError(t, err)
	v, err = ParseRegisterValue(xmm0, "[0x01,0x02,0x03,0x04,0x05,0x06,0x07,0x08,0x09,0x0a,0x0b,0x0c,0x0d,0x0e,0x0f,0x10]")
	require.NoError(t, err)
	require.Len(t, v.Bytes(), 16)

	// an 8-byte vector does not fit a 16-byte register
	_, err = ParseRegisterValue(xmm0, "[0x01,0x02,0x03,0x04,0x05,0x06,0x07,0x08]")
	require.Error(t, err)

	al, err := proc.RegisterInfoByName("al")
	require.NoError(t, err)
	_, err = ParseRegisterValue(al, "0x1ff")
	require.True(t, proc.IsKind(err, proc.ParseError))
}

func TestIsPrefix(t *testing.T) {
	require.True(t, isPrefix("con", "continue"))
	require.True(t, isPrefix("continue", "continue"))
	require.False(t, isPrefix("continues", "continue"))
	require.False(t, isPrefix("x", "continue"))
	require.True(t, isPrefix("", "continue"))
}

func TestSplitCommand(t *testing.T) {
	args, err := splitCommand("breakpoint set 0x1000 -h")
	require.NoError(t, err)
	require.Equal(t, []string{"breakpoint", "set", "0x1000", "-h"}, args)

	args, err = splitCommand(`memory write 0x1000 "[0x01,0x02]"`)
	require.NoError(t, err)
	require.Equal(t, []string{"memory", "write", "0x1000", "[0x01,0x02]"}, args)
}
