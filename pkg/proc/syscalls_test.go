package proc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSyscallNameLookups(t *testing.T) {
	id, err := SyscallNameToID("write")
	require.NoError(t, err)
	require.Equal(t, 1, id)

	name, err := SyscallIDToName(59)
	require.NoError(t, err)
	require.Equal(t, "execve", name)

	_, err = SyscallNameToID("frobnicate")
	require.True(t, IsKind(err, UsageError))
	_, err = SyscallIDToName(-1)
	require.True(t, IsKind(err, UsageError))
}

func TestSyscallCatchPolicy(t *testing.T) {
	require.False(t, CatchNonePolicy().Catches(1))
	require.True(t, CatchAllPolicy().Catches(1))

	some := CatchSomePolicy([]int{0, 1})
	require.True(t, some.Catches(1))
	require.False(t, some.Catches(2))
}
