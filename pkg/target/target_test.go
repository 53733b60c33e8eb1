package target_test

import (
	"bufio"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdb-dev/sdb/pkg/proc"
	"github.com/sdb-dev/sdb/pkg/proc/native"
	"github.com/sdb-dev/sdb/pkg/proc/test"
	"github.com/sdb-dev/sdb/pkg/target"
)

func launchTarget(t *testing.T, fixture string) (*target.Target, *bufio.Reader) {
	t.Helper()
	test.MustHaveGcc(t)
	test.MustRunAsDebugger(t)
	path := test.BuildFixture(t, fixture)

	pipe, err := native.NewPipe(false)
	require.NoError(t, err)

	wf := pipe.ReleaseWriteFile()
	tgt, err := target.Launch(path, wf)
	wf.Close()
	if err != nil {
		pipe.Close()
		t.Fatalf("could not launch %s: %v", fixture, err)
	}
	t.Cleanup(tgt.Close)

	rf := pipe.ReleaseReadFile()
	t.Cleanup(func() { rf.Close() })
	return tgt, bufio.NewReader(rf)
}

func TestEntryPointTranslation(t *testing.T) {
	tgt, _ := launchTarget(t, "hello_sdb")

	entry := tgt.EntryPoint()
	require.NotEqual(t, proc.NullVirtAddr, entry)

	// the entry point converts back to the ELF header's value
	fa := entry.ToFileAddr(tgt.Elf())
	require.False(t, fa.IsNull())
	require.Equal(t, tgt.Elf().Entry(), fa.Uint64())
}

func TestSoftwareBreakpointAtEntry(t *testing.T) {
	tgt, out := launchTarget(t, "hello_sdb")
	p := tgt.Process()

	entry := tgt.EntryPoint()
	site, err := p.CreateBreakpointSite(entry, false, false)
	require.NoError(t, err)
	require.NoError(t, site.Enable())

	require.NoError(t, p.Resume())
	reason, err := p.WaitOnSignal()
	require.NoError(t, err)
	require.Equal(t, proc.Stopped, reason.State)
	require.Equal(t, uint8(5), reason.Info) // SIGTRAP
	require.Equal(t, proc.SoftwareBreakpointTrap, reason.Trap)
	require.Equal(t, entry, p.PC())

	require.NoError(t, p.Resume())
	reason, err = p.WaitOnSignal()
	require.NoError(t, err)
	require.Equal(t, proc.Exited, reason.State)
	require.Equal(t, uint8(0), reason.Info)

	line, err := out.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "Hello, sdb!\n", line)
}

func TestAttachTargetResolvesExecutable(t *testing.T) {
	test.MustHaveGcc(t)
	test.MustRunAsDebugger(t)
	path := test.BuildFixture(t, "loop_forever")

	// start untraced, then attach by pid
	p, err := native.Launch(path, false, nil)
	require.NoError(t, err)
	defer p.Close()

	tgt, err := target.Attach(p.Pid())
	require.NoError(t, err)
	defer tgt.Close()

	require.Equal(t, proc.Stopped, tgt.Process().State())
	require.NotEqual(t, proc.NullVirtAddr, tgt.EntryPoint())
}
