package proc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type userPoke struct {
	offset int
	word   uint64
}

// recordingSync captures kernel flushes instead of issuing them.
type recordingSync struct {
	pokes    []userPoke
	fpWrites int
}

func (s *recordingSync) PokeUserArea(offset int, word uint64) error {
	s.pokes = append(s.pokes, userPoke{offset, word})
	return nil
}

func (s *recordingSync) WriteFPRegs(*UserFPRegs) error {
	s.fpWrites++
	return nil
}

func mustInfo(t *testing.T, name string) RegisterInfo {
	t.Helper()
	info, err := RegisterInfoByName(name)
	require.NoError(t, err)
	return info
}

func TestRegisterTableLayout(t *testing.T) {
	require.Equal(t, 80, mustInfo(t, "rax").Offset)
	require.Equal(t, 128, mustInfo(t, "rip").Offset)
	require.Equal(t, 848+7*8, mustInfo(t, "dr7").Offset)
	require.Equal(t, 224, mustInfo(t, "fcw").Offset)
	require.Equal(t, 256, mustInfo(t, "st0").Offset)
	require.Equal(t, 256, mustInfo(t, "mm0").Offset)
	require.Equal(t, 384+16*3, mustInfo(t, "xmm3").Offset)

	// high-byte aliases sit one past their parent
	require.Equal(t, mustInfo(t, "rax").Offset+1, mustInfo(t, "ah").Offset)
	require.Equal(t, mustInfo(t, "rax").Offset, mustInfo(t, "eax").Offset)

	rip, err := RegisterInfoByDwarfID(16)
	require.NoError(t, err)
	require.Equal(t, "rip", rip.Name)

	_, err = RegisterInfoByName("no_such_register")
	require.True(t, IsKind(err, UsageError))
}

func TestRegisterWriteReadBack(t *testing.T) {
	sync := &recordingSync{}
	rf := NewRegisterFile(sync)

	info := mustInfo(t, "rsi")
	require.NoError(t, rf.Write(info, Uint64Value(0xcafecafe)))
	require.Equal(t, uint64(0xcafecafe), rf.Read(info).Uint64())

	require.Len(t, sync.pokes, 1)
	require.Equal(t, info.Offset, sync.pokes[0].offset)
	require.Equal(t, uint64(0xcafecafe), sync.pokes[0].word)
}

func TestRegisterWriteSignExtends(t *testing.T) {
	rf := NewRegisterFile(&recordingSync{})

	info := mustInfo(t, "rax")
	require.NoError(t, rf.Write(info, Int8Value(-1)))
	require.Equal(t, uint64(0xffffffffffffffff), rf.Read(info).Uint64())

	require.NoError(t, rf.Write(info, Int16Value(-2)))
	require.Equal(t, uint64(0xfffffffffffffffe), rf.Read(info).Uint64())

	// unsigned values zero-extend
	require.NoError(t, rf.Write(info, Uint8Value(0x80)))
	require.Equal(t, uint64(0x80), rf.Read(info).Uint64())
}

func TestRegisterWriteSubRegister(t *testing.T) {
	sync := &recordingSync{}
	rf := NewRegisterFile(sync)

	require.NoError(t, rf.Write(mustInfo(t, "rax"), Uint64Value(0x1122334455667788)))
	require.NoError(t, rf.Write(mustInfo(t, "ah"), Uint8Value(0xcd)))

	// the poke covers the whole aligned word holding rax
	last := sync.pokes[len(sync.pokes)-1]
	require.Equal(t, mustInfo(t, "rax").Offset, last.offset)
	require.Equal(t, uint64(0x112233445566cd88), last.word)
	require.Equal(t, uint64(0x112233445566cd88), rf.Read(mustInfo(t, "rax")).Uint64())
}

func TestRegisterWriteFloatWidens(t *testing.T) {
	sync := &recordingSync{}
	rf := NewRegisterFile(sync)

	st0 := mustInfo(t, "st0")
	require.NoError(t, rf.Write(st0, Float64Value(42.5)))
	require.Equal(t, 1, sync.fpWrites)
	require.Equal(t, 42.5, rf.Read(st0).Float64())
}

func TestRegisterWriteVector(t *testing.T) {
	sync := &recordingSync{}
	rf := NewRegisterFile(sync)

	var b [16]byte
	for i := range b {
		b[i] = byte(i + 1)
	}
	xmm0 := mustInfo(t, "xmm0")
	require.NoError(t, rf.Write(xmm0, Bytes16Value(b)))
	require.Equal(t, 1, sync.fpWrites)
	require.Equal(t, b[:], rf.Read(xmm0).Bytes())

	var b8 [8]byte
	copy(b8[:], b[:8])
	mm0 := mustInfo(t, "mm0")
	require.NoError(t, rf.Write(mm0, Bytes8Value(b8)))
	require.Equal(t, b8[:], rf.Read(mm0).Bytes())
}

func TestRegisterWriteOversizedValuePanics(t *testing.T) {
	rf := NewRegisterFile(&recordingSync{})
	al := mustInfo(t, "al")
	require.Panics(t, func() { rf.Write(al, Uint64Value(1)) })
}

func TestRegisterFileProgramCounter(t *testing.T) {
	rf := NewRegisterFile(&recordingSync{})
	require.NoError(t, rf.SetPC(0xdeadbeef))
	require.Equal(t, VirtAddr(0xdeadbeef), rf.PC())
	require.Equal(t, uint64(0xdeadbeef), rf.Regs().Rip)
}
