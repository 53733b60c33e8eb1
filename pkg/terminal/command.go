package terminal

import (
	"fmt"
	"strconv"
	"strings"

	sys "golang.org/x/sys/unix"

	"github.com/sdb-dev/sdb/pkg/disasm"
	"github.com/sdb-dev/sdb/pkg/proc"
)

type cmdfunc func(t *Term, args []string) error

type command struct {
	name    string
	cmdFn   cmdfunc
	helpMsg string
}

// Commands is the dispatch table of the interactive loop.
type Commands struct {
	cmds []command
}

// DebugCommands returns the standard command set.
func DebugCommands() *Commands {
	return &Commands{cmds: []command{
		{"breakpoint", breakpointCommand, `Commands for operating on breakpoints.

	breakpoint list
	breakpoint set <address>
	breakpoint set <address> -h
	breakpoint enable <id>
	breakpoint disable <id>
	breakpoint delete <id>`},
		{"catchpoint", catchpointCommand, `Commands for operating on catchpoints.

	catchpoint sys
	catchpoint sys none
	catchpoint sys <name,name,...>`},
		{"continue", continueCommand, "Resume the process."},
		{"disassemble", disassembleCommand, `Disassemble machine code to assembly.

	disassemble [-c <number of instructions>] [-a <start address>]`},
		{"memory", memoryCommand, `Commands for operating on memory.

	memory read <address>
	memory read <address> <number of bytes>
	memory write <address> <bytes>`},
		{"register", registerCommand, `Commands for operating on registers.

	register read
	register read <register>
	register read all
	register write <register> <value>`},
		{"stepi", stepCommand, "Step a single instruction."},
		{"watchpoint", watchpointCommand, `Commands for operating on watchpoints.

	watchpoint list
	watchpoint set <address> <write|rw|execute> <size>
	watchpoint enable <id>
	watchpoint disable <id>
	watchpoint delete <id>`},
		{"help", helpCommand, "Print this help message."},
		{"quit", quitCommand, "Detach and exit."},
	}}
}

// Names returns the command keywords, for completion.
func (c *Commands) Names() []string {
	names := make([]string, len(c.cmds))
	for i := range c.cmds {
		names[i] = c.cmds[i].name
	}
	return names
}

// find resolves a possibly-abbreviated command keyword.
func (c *Commands) find(keyword string) *command {
	for i := range c.cmds {
		if isPrefix(keyword, c.cmds[i].name) {
			return &c.cmds[i]
		}
	}
	return nil
}

// Call dispatches one already-split command line.
func (c *Commands) Call(t *Term, args []string) error {
	cmd := c.find(args[0])
	if cmd == nil {
		return proc.Usagef("unknown command %q", args[0])
	}
	return cmd.cmdFn(t, args)
}

func helpCommand(t *Term, args []string) error {
	if len(args) >= 2 {
		if cmd := t.cmds.find(args[1]); cmd != nil {
			fmt.Fprintln(t.stdout, cmd.helpMsg)
			return nil
		}
		return proc.Usagef("no help available for %q", args[1])
	}
	fmt.Fprintln(t.stdout, "Available commands:")
	for _, cmd := range t.cmds.cmds {
		summary := cmd.helpMsg
		if i := strings.Index(summary, "\n"); i > 0 {
			summary = summary[:i]
		}
		fmt.Fprintf(t.stdout, "\t%s - %s\n", cmd.name, summary)
	}
	return nil
}

func quitCommand(t *Term, args []string) error {
	t.quitting = true
	return nil
}

func continueCommand(t *Term, args []string) error {
	p := t.target.Process()
	if err := p.Resume(); err != nil {
		return err
	}
	reason, err := p.WaitOnSignal()
	if err != nil {
		return err
	}
	return t.printStop(reason)
}

func stepCommand(t *Term, args []string) error {
	reason, err := t.target.Process().StepInstruction()
	if err != nil {
		return err
	}
	return t.printStop(reason)
}

func registerCommand(t *Term, args []string) error {
	if len(args) < 2 {
		return proc.Usagef("register expects a subcommand, see 'help register'")
	}
	switch {
	case isPrefix(args[1], "read"):
		return registerRead(t, args[2:])
	case isPrefix(args[1], "write"):
		return registerWrite(t, args[2:])
	}
	return proc.Usagef("unknown register subcommand %q", args[1])
}

func registerRead(t *Term, args []string) error {
	regs := t.target.Process().Registers()

	printOne := func(info proc.RegisterInfo) {
		fmt.Fprintf(t.stdout, "%s:\t%s\n", info.Name, formatRegisterValue(info, regs.Read(info)))
	}

	if len(args) == 0 || args[0] == "all" {
		all := len(args) == 1
		for _, info := range proc.Registers() {
			// the default listing shows the full-width GPRs only
			if info.Name == "orig_rax" || (!all && info.Type != proc.GPRRegister) {
				continue
			}
			printOne(info)
		}
		return nil
	}

	info, err := proc.RegisterInfoByName(args[0])
	if err != nil {
		return err
	}
	printOne(info)
	return nil
}

func formatRegisterValue(info proc.RegisterInfo, v proc.Value) string {
	switch info.Format {
	case proc.DoubleFloatFormat, proc.LongDoubleFormat:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case proc.VectorFormat:
		elems := make([]string, 0, len(v.Bytes()))
		for _, b := range v.Bytes() {
			elems = append(elems, fmt.Sprintf("0x%02x", b))
		}
		return "[" + strings.Join(elems, ",") + "]"
	default:
		// two hex digits per byte plus the 0x prefix
		return fmt.Sprintf("0x%0*x", info.Size*2, v.Uint64())
	}
}

func registerWrite(t *Term, args []string) error {
	if len(args) != 2 {
		return proc.Usagef("register write expects a register and a value, see 'help register'")
	}
	info, err := proc.RegisterInfoByName(args[0])
	if err != nil {
		return err
	}
	value, err := ParseRegisterValue(info, args[1])
	if err != nil {
		return err
	}
	return t.target.Process().Registers().Write(info, value)
}

func memoryCommand(t *Term, args []string) error {
	if len(args) < 3 {
		return proc.Usagef("memory expects a subcommand, see 'help memory'")
	}
	switch {
	case isPrefix(args[1], "read"):
		return memoryRead(t, args[2:])
	case isPrefix(args[1], "write"):
		return memoryWrite(t, args[2:])
	}
	return proc.Usagef("unknown memory subcommand %q", args[1])
}

func memoryRead(t *Term, args []string) error {
	addr, err := ParseAddress(args[0])
	if err != nil {
		return err
	}
	n := 32
	if len(args) >= 2 {
		v, err := ParseUint(args[1], 32)
		if err != nil {
			return err
		}
		n = int(v)
	}

	data, err := t.target.Process().ReadMemory(addr, n)
	if err != nil {
		return err
	}
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		line := make([]string, 0, 16)
		for _, b := range data[i:end] {
			line = append(line, fmt.Sprintf("%02x", b))
		}
		fmt.Fprintf(t.stdout, "%#016x: %s\n", addr.Uint64()+uint64(i), strings.Join(line, " "))
	}
	return nil
}

func memoryWrite(t *Term, args []string) error {
	if len(args) != 2 {
		return proc.Usagef("memory write expects an address and a byte vector, see 'help memory'")
	}
	addr, err := ParseAddress(args[0])
	if err != nil {
		return err
	}
	data, err := ParseByteVector(args[1])
	if err != nil {
		return err
	}
	return t.target.Process().WriteMemory(addr, data)
}

func breakpointCommand(t *Term, args []string) error {
	if len(args) < 2 {
		return proc.Usagef("breakpoint expects a subcommand, see 'help breakpoint'")
	}
	p := t.target.Process()

	if isPrefix(args[1], "list") {
		if p.BreakpointSites().Empty() {
			fmt.Fprintln(t.stdout, "No breakpoints set")
			return nil
		}
		fmt.Fprintln(t.stdout, "Current breakpoints:")
		p.BreakpointSites().ForEach(func(site *proc.BreakpointSite) {
			if site.IsInternal() {
				return
			}
			fmt.Fprintf(t.stdout, "%d: address = %s, %s\n", site.ID(), site.Address(), enabledString(site.IsEnabled()))
		})
		return nil
	}

	if len(args) < 3 {
		return proc.Usagef("breakpoint %s expects an argument, see 'help breakpoint'", args[1])
	}

	if isPrefix(args[1], "set") {
		addr, err := ParseAddress(args[2])
		if err != nil {
			return err
		}
		hardware := len(args) >= 4 && args[3] == "-h"
		site, err := p.CreateBreakpointSite(addr, hardware, false)
		if err != nil {
			return err
		}
		return site.Enable()
	}

	id64, err := strconv.ParseInt(args[2], 10, 32)
	if err != nil {
		return proc.Parsef("invalid breakpoint id %q", args[2])
	}
	id := int32(id64)

	switch {
	case isPrefix(args[1], "enable"):
		site, err := p.BreakpointSites().GetByID(id)
		if err != nil {
			return err
		}
		return site.Enable()
	case isPrefix(args[1], "disable"):
		site, err := p.BreakpointSites().GetByID(id)
		if err != nil {
			return err
		}
		return site.Disable()
	case isPrefix(args[1], "delete"):
		return p.BreakpointSites().RemoveByID(id)
	}
	return proc.Usagef("unknown breakpoint subcommand %q", args[1])
}

func watchpointCommand(t *Term, args []string) error {
	if len(args) < 2 {
		return proc.Usagef("watchpoint expects a subcommand, see 'help watchpoint'")
	}
	p := t.target.Process()

	if isPrefix(args[1], "list") {
		if p.Watchpoints().Empty() {
			fmt.Fprintln(t.stdout, "No watchpoints set")
			return nil
		}
		fmt.Fprintln(t.stdout, "Current watchpoints:")
		p.Watchpoints().ForEach(func(wp *proc.Watchpoint) {
			fmt.Fprintf(t.stdout, "%d: address = %s, mode = %s, size = %d, %s\n",
				wp.ID(), wp.Address(), wp.Mode(), wp.Size(), enabledString(wp.IsEnabled()))
		})
		return nil
	}

	if isPrefix(args[1], "set") {
		if len(args) != 5 {
			return proc.Usagef("watchpoint set expects an address, mode and size, see 'help watchpoint'")
		}
		addr, err := ParseAddress(args[2])
		if err != nil {
			return err
		}
		var mode proc.StoppointMode
		switch args[3] {
		case "write":
			mode = proc.WriteMode
		case "rw":
			mode = proc.ReadWriteMode
		case "execute":
			mode = proc.ExecuteMode
		default:
			return proc.Usagef("invalid watchpoint mode %q", args[3])
		}
		size, err := ParseUint(args[4], 8)
		if err != nil {
			return err
		}
		wp, err := p.CreateWatchpoint(addr, mode, int(size))
		if err != nil {
			return err
		}
		return wp.Enable()
	}

	if len(args) < 3 {
		return proc.Usagef("watchpoint %s expects an argument, see 'help watchpoint'", args[1])
	}
	id64, err := strconv.ParseInt(args[2], 10, 32)
	if err != nil {
		return proc.Parsef("invalid watchpoint id %q", args[2])
	}
	id := int32(id64)

	switch {
	case isPrefix(args[1], "enable"):
		wp, err := p.Watchpoints().GetByID(id)
		if err != nil {
			return err
		}
		return wp.Enable()
	case isPrefix(args[1], "disable"):
		wp, err := p.Watchpoints().GetByID(id)
		if err != nil {
			return err
		}
		return wp.Disable()
	case isPrefix(args[1], "delete"):
		return p.Watchpoints().RemoveByID(id)
	}
	return proc.Usagef("unknown watchpoint subcommand %q", args[1])
}

func catchpointCommand(t *Term, args []string) error {
	if len(args) < 2 || !isPrefix(args[1], "sys") {
		return proc.Usagef("catchpoint expects a 'sys' subcommand, see 'help catchpoint'")
	}
	p := t.target.Process()

	if len(args) == 2 {
		p.SetSyscallCatchPolicy(proc.CatchAllPolicy())
		return nil
	}
	if args[2] == "none" {
		p.SetSyscallCatchPolicy(proc.CatchNonePolicy())
		return nil
	}

	var ids []int
	for _, name := range strings.Split(args[2], ",") {
		id, err := proc.SyscallNameToID(name)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	p.SetSyscallCatchPolicy(proc.CatchSomePolicy(ids))
	return nil
}

func disassembleCommand(t *Term, args []string) error {
	p := t.target.Process()
	n := 5
	addr := p.PC()

	args = args[1:]
	for len(args) > 0 {
		switch args[0] {
		case "-c":
			if len(args) < 2 {
				return proc.Usagef("-c expects an instruction count")
			}
			v, err := ParseUint(args[1], 32)
			if err != nil {
				return err
			}
			n = int(v)
			args = args[2:]
		case "-a":
			if len(args) < 2 {
				return proc.Usagef("-a expects an address")
			}
			var err error
			addr, err = ParseAddress(args[1])
			if err != nil {
				return err
			}
			args = args[2:]
		default:
			return proc.Usagef("unknown disassemble option %q", args[0])
		}
	}

	return t.printDisassembly(addr, n)
}

func (t *Term) printDisassembly(addr proc.VirtAddr, n int) error {
	d := disasm.New(t.target.Process())
	instructions, err := d.Disassemble(n, &addr)
	if err != nil {
		return err
	}
	for _, inst := range instructions {
		fmt.Fprintf(t.stdout, "%#018x: %s\n", inst.Addr.Uint64(), inst.Text)
	}
	return nil
}

// printStop renders a stop the way the debugger reports all stops:
// the transition, the signal detail, and a short disassembly at the
// stop site.
func (t *Term) printStop(reason proc.StopReason) error {
	p := t.target.Process()

	var message string
	switch reason.State {
	case proc.Exited:
		message = fmt.Sprintf("exited with status %d", reason.Info)
	case proc.Terminated:
		message = fmt.Sprintf("terminated by signal %s", sys.SignalName(sys.Signal(reason.Info)))
	case proc.Stopped:
		message = fmt.Sprintf("stopped by signal %s at %s", sys.SignalName(sys.Signal(reason.Info)), p.PC())
		if reason.Info == uint8(sys.SIGTRAP) {
			message += t.sigtrapInfo(reason)
		}
	}
	fmt.Fprintf(t.stdout, "Process %d: %s\n", p.Pid(), message)

	if reason.State == proc.Stopped {
		return t.printDisassembly(p.PC(), 5)
	}
	return nil
}

func (t *Term) sigtrapInfo(reason proc.StopReason) string {
	p := t.target.Process()
	switch reason.Trap {
	case proc.SingleStepTrap:
		return " (single step)"
	case proc.SoftwareBreakpointTrap:
		site, err := p.BreakpointSites().GetByAddress(p.PC())
		if err != nil {
			return ""
		}
		return fmt.Sprintf(" (breakpoint %d)", site.ID())
	case proc.HardwareBreakpointTrap:
		ref, err := p.CurrentHardwareStoppoint()
		if err != nil {
			return ""
		}
		if !ref.IsWatchpoint {
			return fmt.Sprintf(" (breakpoint %d)", ref.ID)
		}
		wp, err := p.Watchpoints().GetByID(ref.ID)
		if err != nil {
			return ""
		}
		if wp.Data() == wp.PreviousData() {
			return fmt.Sprintf(" (watchpoint %d)\nValue: %#x", wp.ID(), wp.Data())
		}
		return fmt.Sprintf(" (watchpoint %d)\nOld value: %#x\nNew value: %#x",
			wp.ID(), wp.PreviousData(), wp.Data())
	case proc.SyscallTrap:
		info := reason.Syscall
		name, err := proc.SyscallIDToName(int(info.ID))
		if err != nil {
			name = strconv.Itoa(int(info.ID))
		}
		if info.Entry {
			args := make([]string, 0, len(info.Args))
			for _, a := range info.Args {
				args = append(args, fmt.Sprintf("%#x", a))
			}
			return fmt.Sprintf(" (syscall entry)\nsyscall: %s(%s)", name, strings.Join(args, ","))
		}
		return fmt.Sprintf(" (syscall exit)\nsyscall returned: %#x", info.Ret)
	}
	return ""
}

func enabledString(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
