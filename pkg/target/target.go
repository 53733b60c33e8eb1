// Package target binds a traced process to the ELF object it was
// loaded from, so that addresses can be translated between the file
// and the inferior.
package target

import (
	"fmt"
	"os"

	"github.com/sdb-dev/sdb/pkg/elffile"
	"github.com/sdb-dev/sdb/pkg/proc"
	"github.com/sdb-dev/sdb/pkg/proc/native"
)

// Target is a process under debug together with its main ELF object.
type Target struct {
	proc *native.Process
	elf  *elffile.File
}

func loadElf(p *native.Process, path string) (*elffile.File, error) {
	obj, err := elffile.Open(path)
	if err != nil {
		return nil, err
	}
	// the load bias is the distance between where the entry point
	// landed and where the file wanted it
	entry, err := p.EntryPoint()
	if err != nil {
		obj.Close()
		return nil, err
	}
	obj.NotifyLoaded(proc.VirtAddr(entry.Uint64() - obj.Entry()))
	return obj, nil
}

// Launch starts path under the debugger. A non-nil stdout replaces the
// inferior's standard output.
func Launch(path string, stdout *os.File) (*Target, error) {
	p, err := native.Launch(path, true, stdout)
	if err != nil {
		return nil, err
	}
	obj, err := loadElf(p, path)
	if err != nil {
		p.Close()
		return nil, err
	}
	return &Target{proc: p, elf: obj}, nil
}

// Attach puts the existing process pid under debug.
func Attach(pid int) (*Target, error) {
	p, err := native.Attach(pid)
	if err != nil {
		return nil, err
	}
	// /proc/<pid>/exe is a symlink to the executable of the process
	obj, err := loadElf(p, fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		p.Close()
		return nil, err
	}
	return &Target{proc: p, elf: obj}, nil
}

// Process returns the traced process.
func (t *Target) Process() *native.Process { return t.proc }

// Elf returns the main ELF object.
func (t *Target) Elf() *elffile.File { return t.elf }

// EntryPoint returns the runtime address of the executable's entry
// point.
func (t *Target) EntryPoint() proc.VirtAddr {
	return t.elf.EntryPoint().ToVirtAddr()
}

// Close tears down the debug session and releases the ELF object.
func (t *Target) Close() {
	t.proc.Close()
	t.elf.Close()
}
