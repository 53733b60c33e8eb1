package native_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	sys "golang.org/x/sys/unix"

	"github.com/sdb-dev/sdb/pkg/proc/native"
)

func TestPipeRoundTrip(t *testing.T) {
	p, err := native.NewPipe(false)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Write([]byte("exec failed: No such file or directory")))
	p.CloseWrite()

	data, err := p.Read()
	require.NoError(t, err)
	require.Equal(t, "exec failed: No such file or directory", string(data))

	// write end closed, the next read sees EOF
	data, err = p.Read()
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestPipeCloseOnExec(t *testing.T) {
	p, err := native.NewPipe(true)
	require.NoError(t, err)
	defer p.Close()

	fd := p.ReleaseRead()
	defer sys.Close(fd)
	flags, err := sys.FcntlInt(uintptr(fd), sys.F_GETFD, 0)
	require.NoError(t, err)
	require.NotZero(t, flags&sys.FD_CLOEXEC)
}

func TestPipeRelease(t *testing.T) {
	p, err := native.NewPipe(false)
	require.NoError(t, err)

	fd := p.ReleaseWrite()
	require.NotEqual(t, -1, fd)
	// ownership moved, a second release reports that
	require.Equal(t, -1, p.ReleaseWrite())

	sys.Close(fd)
	p.Close()
	p.Close() // idempotent
}
