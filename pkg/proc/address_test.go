package proc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeElf covers file addresses [lo, hi) and relocates them by bias.
type fakeElf struct {
	bias   VirtAddr
	lo, hi uint64
}

func (f *fakeElf) LoadBias() VirtAddr { return f.bias }

func (f *fakeElf) ContainsFileAddr(a FileAddr) bool {
	return a.Obj() == ElfObject(f) && f.lo <= a.Uint64() && a.Uint64() < f.hi
}

func (f *fakeElf) ContainsVirtAddr(a VirtAddr) bool {
	v := a.Uint64() - f.bias.Uint64()
	return f.lo <= v && v < f.hi
}

func TestFileAddrRoundTrip(t *testing.T) {
	elf := &fakeElf{bias: 0x555555554000, lo: 0x1000, hi: 0x2000}

	fa := NewFileAddr(elf, 0x1234)
	va := fa.ToVirtAddr()
	require.Equal(t, VirtAddr(0x555555555234), va)

	back := va.ToFileAddr(elf)
	require.True(t, fa.Equal(back))
}

func TestFileAddrOutOfRangeConvertsToNull(t *testing.T) {
	elf := &fakeElf{bias: 0x1000, lo: 0x1000, hi: 0x2000}

	require.Equal(t, NullVirtAddr, NewFileAddr(elf, 0x4000).ToVirtAddr())

	fa := VirtAddr(0x100).ToFileAddr(elf)
	require.True(t, fa.IsNull())
}

func TestFileAddrCrossObjectComparisonPanics(t *testing.T) {
	a := NewFileAddr(&fakeElf{}, 0x10)
	b := NewFileAddr(&fakeElf{}, 0x20)
	require.Panics(t, func() { a.Less(b) })
}

func TestVirtAddrArithmetic(t *testing.T) {
	a := VirtAddr(0x1000)
	require.Equal(t, VirtAddr(0x1010), a.Add(0x10))
	require.Equal(t, VirtAddr(0xfff), a.Add(-1))
	require.Equal(t, "0x1000", a.String())
}

func TestFileAddrOrderingWithinObject(t *testing.T) {
	elf := &fakeElf{lo: 0, hi: 0x1000}
	a := NewFileAddr(elf, 0x10)
	b := NewFileAddr(elf, 0x20)
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
}
