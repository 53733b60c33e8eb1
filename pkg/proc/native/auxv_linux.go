package native

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/sdb-dev/sdb/pkg/proc"
)

const _AT_ENTRY = 9 // entry point of the program

// ReadAuxv parses the inferior's auxiliary vector from
// /proc/<pid>/auxv into type/value pairs.
func (p *Process) ReadAuxv() (map[uint64]uint64, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/auxv", p.pid))
	if err != nil {
		return nil, proc.Kernelf(err, "could not read auxiliary vector")
	}
	auxv := make(map[uint64]uint64)
	for i := 0; i+16 <= len(data); i += 16 {
		tag := binary.LittleEndian.Uint64(data[i:])
		if tag == 0 { // AT_NULL
			break
		}
		auxv[tag] = binary.LittleEndian.Uint64(data[i+8:])
	}
	return auxv, nil
}

// EntryPoint returns the runtime entry point of the inferior's
// executable, load bias applied.
func (p *Process) EntryPoint() (proc.VirtAddr, error) {
	auxv, err := p.ReadAuxv()
	if err != nil {
		return 0, err
	}
	entry, ok := auxv[_AT_ENTRY]
	if !ok {
		return 0, proc.Usagef("auxiliary vector has no entry point")
	}
	return proc.VirtAddr(entry), nil
}
