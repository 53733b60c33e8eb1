package native_test

import (
	"bufio"
	"os/exec"
	"strconv"
	"strings"
	"testing"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"

	"github.com/sdb-dev/sdb/pkg/proc"
	"github.com/sdb-dev/sdb/pkg/proc/native"
	"github.com/sdb-dev/sdb/pkg/proc/test"
)

// launchWithPipe starts a fixture with its stdout connected to a pipe
// and returns a reader over that pipe.
func launchWithPipe(t *testing.T, fixture string) (*native.Process, *bufio.Reader) {
	t.Helper()
	test.MustHaveGcc(t)
	test.MustRunAsDebugger(t)
	path := test.BuildFixture(t, fixture)

	pipe, err := native.NewPipe(false)
	require.NoError(t, err)

	wf := pipe.ReleaseWriteFile()
	p, err := native.Launch(path, true, wf)
	wf.Close()
	if err != nil {
		pipe.Close()
		t.Fatalf("could not launch %s: %v", fixture, err)
	}
	t.Cleanup(p.Close)

	rf := pipe.ReleaseReadFile()
	t.Cleanup(func() { rf.Close() })
	return p, bufio.NewReader(rf)
}

// readAddressLine parses a pointer printed by a fixture with %p.
func readAddressLine(t *testing.T, r *bufio.Reader) proc.VirtAddr {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	line = strings.TrimSpace(line)
	v, err := strconv.ParseUint(strings.TrimPrefix(line, "0x"), 16, 64)
	require.NoError(t, err, "address line %q", line)
	return proc.VirtAddr(v)
}

func resumeAndWait(t *testing.T, p *native.Process) proc.StopReason {
	t.Helper()
	require.NoError(t, p.Resume())
	reason, err := p.WaitOnSignal()
	require.NoError(t, err)
	return reason
}

func TestLaunchMissingProgram(t *testing.T) {
	test.MustRunAsDebugger(t)
	_, err := native.Launch("/no/such/bin", true, nil)
	require.Error(t, err)
	require.True(t, proc.IsKind(err, proc.KernelFailure))
	require.Contains(t, err.Error(), "exec failed")
}

func TestLaunchAndRunToExit(t *testing.T) {
	p, out := launchWithPipe(t, "hello_sdb")
	require.Equal(t, proc.Stopped, p.State())

	reason := resumeAndWait(t, p)
	require.Equal(t, proc.Exited, reason.State)
	require.Equal(t, uint8(0), reason.Info)

	line, err := out.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "Hello, sdb!\n", line)
}

func TestAttach(t *testing.T) {
	test.MustHaveGcc(t)
	test.MustRunAsDebugger(t)
	path := test.BuildFixture(t, "loop_forever")

	cmd := exec.Command(path)
	require.NoError(t, cmd.Start())
	defer func() {
		cmd.Process.Kill()
		cmd.Wait()
	}()

	p, err := native.Attach(cmd.Process.Pid)
	require.NoError(t, err)
	require.Equal(t, proc.Stopped, p.State())
	p.Close()
}

func TestAttachInvalidPid(t *testing.T) {
	_, err := native.Attach(0)
	require.True(t, proc.IsKind(err, proc.UsageError))
}

func TestStepInstruction(t *testing.T) {
	p, _ := launchWithPipe(t, "hello_sdb")

	before := p.PC()
	reason, err := p.StepInstruction()
	require.NoError(t, err)
	require.Equal(t, proc.Stopped, reason.State)
	require.Equal(t, proc.SingleStepTrap, reason.Trap)
	require.NotEqual(t, before, p.PC())
}

func TestRegisterWriteObservedByInferior(t *testing.T) {
	p, out := launchWithPipe(t, "reg_write")

	// run to the int3 inside get_rsi
	reason := resumeAndWait(t, p)
	require.Equal(t, proc.Stopped, reason.State)

	info, err := proc.RegisterInfoByName("rsi")
	require.NoError(t, err)
	require.NoError(t, p.Registers().Write(info, proc.Uint64Value(0xcafecafe)))

	reason = resumeAndWait(t, p)
	require.Equal(t, proc.Exited, reason.State)

	line, err := out.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "0xcafecafe\n", line)
}

func TestSoftwareBreakpointHidesAndRestoresMemory(t *testing.T) {
	p, out := launchWithPipe(t, "anti_debugger")

	resumeAndWait(t, p)
	funcAddr := readAddressLine(t, out)

	site, err := p.CreateBreakpointSite(funcAddr, false, false)
	require.NoError(t, err)
	require.NoError(t, site.Enable())

	data, err := p.ReadMemory(funcAddr, 1)
	require.NoError(t, err)
	require.Equal(t, byte(0xcc), data[0])

	hidden, err := p.ReadMemoryWithoutTraps(funcAddr, 1)
	require.NoError(t, err)
	require.Equal(t, site.SavedByte(), hidden[0])

	require.NoError(t, site.Disable())
	data, err = p.ReadMemory(funcAddr, 1)
	require.NoError(t, err)
	require.Equal(t, site.SavedByte(), data[0])
}

func TestBreakpointSiteIDsAreDenseAndMonotone(t *testing.T) {
	p, _ := launchWithPipe(t, "hello_sdb")

	a, err := p.CreateBreakpointSite(0x1000, false, false)
	require.NoError(t, err)
	b, err := p.CreateBreakpointSite(0x2000, false, false)
	require.NoError(t, err)
	c, err := p.CreateBreakpointSite(0x3000, true, false)
	require.NoError(t, err)
	require.Equal(t, int32(1), a.ID())
	require.Equal(t, int32(2), b.ID())
	require.Equal(t, int32(3), c.ID())

	internal, err := p.CreateBreakpointSite(0x4000, false, true)
	require.NoError(t, err)
	require.Equal(t, proc.InternalBreakpointID, internal.ID())

	_, err = p.CreateBreakpointSite(0x1000, false, false)
	require.True(t, proc.IsKind(err, proc.UsageError))
}

func TestHardwareBreakpointEvadesChecksum(t *testing.T) {
	p, out := launchWithPipe(t, "anti_debugger")

	resumeAndWait(t, p)
	funcAddr := readAddressLine(t, out)

	// with an int3 patched over the function the checksum changes and
	// the target takes the tamper branch
	site, err := p.CreateBreakpointSite(funcAddr, false, false)
	require.NoError(t, err)
	require.NoError(t, site.Enable())

	reason := resumeAndWait(t, p)
	require.Equal(t, proc.Stopped, reason.State)

	line, err := out.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "Putting pepperoni on pizza...\n", line)

	// a hardware breakpoint leaves the code bytes alone
	require.NoError(t, p.BreakpointSites().RemoveByID(site.ID()))
	hwSite, err := p.CreateBreakpointSite(funcAddr, true, false)
	require.NoError(t, err)
	require.NoError(t, hwSite.Enable())

	reason = resumeAndWait(t, p)
	require.Equal(t, proc.Stopped, reason.State)
	require.Equal(t, uint8(5), reason.Info) // SIGTRAP
	require.Equal(t, proc.HardwareBreakpointTrap, reason.Trap)
	require.Equal(t, funcAddr, p.PC())

	ref, err := p.CurrentHardwareStoppoint()
	require.NoError(t, err)
	require.False(t, ref.IsWatchpoint)
	require.Equal(t, hwSite.ID(), ref.ID)

	require.NoError(t, hwSite.Disable())
	reason = resumeAndWait(t, p)
	require.Equal(t, proc.Exited, reason.State)

	line, err = out.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "Putting pineapple on pizza...\n", line)
}

func TestWatchpointReportsReads(t *testing.T) {
	p, out := launchWithPipe(t, "anti_debugger")

	resumeAndWait(t, p)
	funcAddr := readAddressLine(t, out)

	wp, err := p.CreateWatchpoint(funcAddr, proc.ReadWriteMode, 1)
	require.NoError(t, err)
	require.NoError(t, wp.Enable())

	// the checksum loop reads the watched byte
	reason := resumeAndWait(t, p)
	require.Equal(t, proc.Stopped, reason.State)
	require.Equal(t, uint8(5), reason.Info) // SIGTRAP
	require.Equal(t, proc.HardwareBreakpointTrap, reason.Trap)

	ref, err := p.CurrentHardwareStoppoint()
	require.NoError(t, err)
	require.True(t, ref.IsWatchpoint)
	require.Equal(t, wp.ID(), ref.ID)
}

func TestWatchpointValidation(t *testing.T) {
	p, _ := launchWithPipe(t, "hello_sdb")

	_, err := p.CreateWatchpoint(0x1001, proc.WriteMode, 8)
	require.True(t, proc.IsKind(err, proc.UsageError))

	_, err = p.CreateWatchpoint(0x1000, proc.WriteMode, 3)
	require.True(t, proc.IsKind(err, proc.UsageError))
}

func TestHardwareStoppointSlotsExhaust(t *testing.T) {
	p, _ := launchWithPipe(t, "hello_sdb")

	for i := 0; i < 4; i++ {
		wp, err := p.CreateWatchpoint(proc.VirtAddr(0x100000+8*i), proc.WriteMode, 8)
		require.NoError(t, err)
		require.NoError(t, wp.Enable())
	}

	wp, err := p.CreateWatchpoint(proc.VirtAddr(0x200000), proc.WriteMode, 8)
	require.NoError(t, err)
	err = wp.Enable()
	require.True(t, proc.IsKind(err, proc.ResourceExhaustion))

	// releasing one slot makes room again
	first, err := p.Watchpoints().GetByID(1)
	require.NoError(t, err)
	require.NoError(t, first.Disable())
	require.NoError(t, wp.Enable())
}

func TestSyscallCatchSome(t *testing.T) {
	p, out := launchWithPipe(t, "anti_debugger")

	resumeAndWait(t, p)
	readAddressLine(t, out)

	writeID, err := proc.SyscallNameToID("write")
	require.NoError(t, err)
	p.SetSyscallCatchPolicy(proc.CatchSomePolicy([]int{writeID}))

	reason := resumeAndWait(t, p)
	require.Equal(t, proc.Stopped, reason.State)
	require.Equal(t, proc.SyscallTrap, reason.Trap)
	require.NotNil(t, reason.Syscall)
	require.Equal(t, uint16(writeID), reason.Syscall.ID)
	require.True(t, reason.Syscall.Entry)

	reason = resumeAndWait(t, p)
	require.Equal(t, proc.SyscallTrap, reason.Trap)
	require.NotNil(t, reason.Syscall)
	require.Equal(t, uint16(writeID), reason.Syscall.ID)
	require.False(t, reason.Syscall.Entry)
}

func TestMemoryRoundTrip(t *testing.T) {
	p, out := launchWithPipe(t, "memory_rw")

	resumeAndWait(t, p)
	bufAddr := readAddressLine(t, out)

	require.NoError(t, p.WriteMemory(bufAddr, []byte("Hello, sdb!\x00")))

	data, err := p.ReadMemory(bufAddr, 12)
	require.NoError(t, err)
	require.Equal(t, []byte("Hello, sdb!\x00"), data)

	reason := resumeAndWait(t, p)
	require.Equal(t, proc.Exited, reason.State)

	line, err := out.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "Hello, sdb!\n", line)
}

func TestLaunchWithTTYStdout(t *testing.T) {
	test.MustHaveGcc(t)
	test.MustRunAsDebugger(t)
	path := test.BuildFixture(t, "hello_sdb")

	ptmx, pts, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()

	p, err := native.Launch(path, true, pts)
	pts.Close()
	require.NoError(t, err)
	t.Cleanup(p.Close)

	resumeAndWait(t, p)

	buf := make([]byte, 64)
	n, err := ptmx.Read(buf)
	require.NoError(t, err)
	// the tty line discipline turns \n into \r\n
	require.Equal(t, "Hello, sdb!\r\n", string(buf[:n]))
}
