package proc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStoppoint struct {
	id       int32
	addr     VirtAddr
	enabled  bool
	disabled int
}

func (f *fakeStoppoint) ID() int32                         { return f.id }
func (f *fakeStoppoint) Address() VirtAddr                 { return f.addr }
func (f *fakeStoppoint) AtAddress(addr VirtAddr) bool      { return f.addr == addr }
func (f *fakeStoppoint) InRange(low, high VirtAddr) bool   { return low <= f.addr && f.addr < high }
func (f *fakeStoppoint) IsEnabled() bool                   { return f.enabled }
func (f *fakeStoppoint) Disable() error                    { f.enabled = false; f.disabled++; return nil }

func TestStoppointCollectionLookups(t *testing.T) {
	var c StoppointCollection[*fakeStoppoint]
	require.True(t, c.Empty())

	a := c.Push(&fakeStoppoint{id: 1, addr: 0x1000, enabled: true})
	b := c.Push(&fakeStoppoint{id: 2, addr: 0x2000})

	require.Equal(t, 2, c.Size())
	require.True(t, c.ContainsID(1))
	require.True(t, c.ContainsAddress(0x2000))
	require.False(t, c.ContainsID(7))
	require.False(t, c.ContainsAddress(0x3000))

	got, err := c.GetByID(2)
	require.NoError(t, err)
	require.Same(t, b, got)

	got, err = c.GetByAddress(0x1000)
	require.NoError(t, err)
	require.Same(t, a, got)

	_, err = c.GetByID(9)
	require.True(t, IsKind(err, UsageError))
	_, err = c.GetByAddress(0x9999)
	require.True(t, IsKind(err, UsageError))

	require.True(t, c.EnabledStoppointAtAddress(0x1000))
	require.False(t, c.EnabledStoppointAtAddress(0x2000))
}

func TestStoppointCollectionRangeQueryInsertionOrder(t *testing.T) {
	var c StoppointCollection[*fakeStoppoint]
	c.Push(&fakeStoppoint{id: 1, addr: 0x3000})
	c.Push(&fakeStoppoint{id: 2, addr: 0x1000})
	c.Push(&fakeStoppoint{id: 3, addr: 0x2000})
	c.Push(&fakeStoppoint{id: 4, addr: 0x5000})

	in := c.GetInRange(0x1000, 0x4000)
	require.Len(t, in, 3)
	// insertion order, not address order
	require.Equal(t, int32(1), in[0].ID())
	require.Equal(t, int32(2), in[1].ID())
	require.Equal(t, int32(3), in[2].ID())

	// the range is half-open
	require.Empty(t, c.GetInRange(0x5001, 0x6000))
	require.Len(t, c.GetInRange(0x5000, 0x5001), 1)
}

func TestStoppointCollectionRemoveDisablesFirst(t *testing.T) {
	var c StoppointCollection[*fakeStoppoint]
	p := c.Push(&fakeStoppoint{id: 1, addr: 0x1000, enabled: true})

	require.NoError(t, c.RemoveByID(1))
	require.Equal(t, 1, p.disabled)
	require.False(t, p.enabled)
	require.False(t, c.ContainsID(1))

	q := c.Push(&fakeStoppoint{id: 2, addr: 0x2000, enabled: true})
	require.NoError(t, c.RemoveByAddress(0x2000))
	require.Equal(t, 1, q.disabled)
	require.True(t, c.Empty())
}
