// Package disasm renders inferior code as AT&T-syntax x86-64 assembly.
// It reads through the trap-hiding memory path so enabled software
// breakpoints never show up as int3 in listings.
package disasm

import (
	"golang.org/x/arch/x86/x86asm"

	"github.com/sdb-dev/sdb/pkg/proc"
)

// the longest x86 instruction is 15 bytes
const maxInstructionLength = 15

// Instruction is one decoded instruction and where it lives.
type Instruction struct {
	Addr proc.VirtAddr
	Text string
}

// Disassembler decodes instructions out of a process's memory.
type Disassembler struct {
	mem proc.MemoryReader
}

// New returns a disassembler reading from mem.
func New(mem proc.MemoryReader) *Disassembler {
	return &Disassembler{mem: mem}
}

// Disassemble decodes up to n instructions starting at addr, or at the
// current program counter when addr is nil. Decoding stops early on
// bytes that do not form a valid instruction.
func (d *Disassembler) Disassemble(n int, addr *proc.VirtAddr) ([]Instruction, error) {
	start := d.mem.PC()
	if addr != nil {
		start = *addr
	}

	code, err := d.mem.ReadMemoryWithoutTraps(start, n*maxInstructionLength)
	if err != nil {
		return nil, err
	}

	out := make([]Instruction, 0, n)
	pc := start
	for len(out) < n && len(code) > 0 {
		inst, err := x86asm.Decode(code, 64)
		if err != nil {
			break
		}
		out = append(out, Instruction{
			Addr: pc,
			Text: x86asm.GNUSyntax(inst, pc.Uint64(), nil),
		})
		code = code[inst.Len:]
		pc = pc.Add(int64(inst.Len))
	}
	return out, nil
}
