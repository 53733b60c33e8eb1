package disasm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdb-dev/sdb/pkg/proc"
)

// fakeMemory serves a fixed byte string at a fixed address.
type fakeMemory struct {
	base proc.VirtAddr
	code []byte
}

func (m *fakeMemory) PC() proc.VirtAddr { return m.base }

func (m *fakeMemory) ReadMemoryWithoutTraps(addr proc.VirtAddr, n int) ([]byte, error) {
	off := int(addr.Uint64() - m.base.Uint64())
	out := make([]byte, n)
	copy(out, m.code[off:])
	return out, nil
}

func TestDisassemble(t *testing.T) {
	// nop; xor %eax,%eax; ret
	mem := &fakeMemory{base: 0x401000, code: []byte{0x90, 0x31, 0xc0, 0xc3}}
	d := New(mem)

	instructions, err := d.Disassemble(3, nil)
	require.NoError(t, err)
	require.Len(t, instructions, 3)

	require.Equal(t, proc.VirtAddr(0x401000), instructions[0].Addr)
	require.Equal(t, "nop", instructions[0].Text)
	require.Equal(t, proc.VirtAddr(0x401001), instructions[1].Addr)
	require.Contains(t, instructions[1].Text, "xor")
	require.Equal(t, proc.VirtAddr(0x401003), instructions[2].Addr)
	require.Contains(t, instructions[2].Text, "ret")
}

func TestDisassembleExplicitAddress(t *testing.T) {
	mem := &fakeMemory{base: 0x401000, code: []byte{0x90, 0x90, 0xc3}}
	d := New(mem)

	start := proc.VirtAddr(0x401001)
	instructions, err := d.Disassemble(1, &start)
	require.NoError(t, err)
	require.Len(t, instructions, 1)
	require.Equal(t, start, instructions[0].Addr)
}

func TestDisassembleHonorsInstructionCount(t *testing.T) {
	mem := &fakeMemory{base: 0x401000, code: []byte{0x90, 0x90, 0x90, 0x90}}
	d := New(mem)

	instructions, err := d.Disassemble(2, nil)
	require.NoError(t, err)
	require.Len(t, instructions, 2)
	require.Equal(t, "nop", instructions[0].Text)
}
