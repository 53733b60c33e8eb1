package native

import (
	"os"

	sys "golang.org/x/sys/unix"

	"github.com/sdb-dev/sdb/pkg/proc"
)

// Pipe is a scoped anonymous one-way byte channel. Both descriptors
// are closed by Close unless released first. In this module it
// captures inferior output in tests; Launch does not use it, since
// os/exec reports the child's startup errors over its own pipe.
type Pipe struct {
	readFd  int
	writeFd int
}

// NewPipe acquires a kernel pipe pair. closeOnExec must be requested
// at creation time; setting it later would race with a concurrent
// fork/exec.
func NewPipe(closeOnExec bool) (*Pipe, error) {
	var flags int
	if closeOnExec {
		flags = sys.O_CLOEXEC
	}
	var fds [2]int
	if err := sys.Pipe2(fds[:], flags); err != nil {
		return nil, proc.Kernelf(err, "pipe creation failed")
	}
	return &Pipe{readFd: fds[0], writeFd: fds[1]}, nil
}

// Read blocks and returns at most 1 KiB of data; an empty slice means
// the write end was closed.
func (p *Pipe) Read() ([]byte, error) {
	buf := make([]byte, 1024)
	n, err := sys.Read(p.readFd, buf)
	if err != nil {
		return nil, proc.Kernelf(err, "could not read from pipe")
	}
	return buf[:n], nil
}

// Write writes all of data or fails.
func (p *Pipe) Write(data []byte) error {
	for len(data) > 0 {
		n, err := sys.Write(p.writeFd, data)
		if err != nil {
			return proc.Kernelf(err, "could not write to pipe")
		}
		data = data[n:]
	}
	return nil
}

// CloseRead closes the read end if still owned.
func (p *Pipe) CloseRead() {
	if p.readFd != -1 {
		sys.Close(p.readFd)
		p.readFd = -1
	}
}

// CloseWrite closes the write end if still owned.
func (p *Pipe) CloseWrite() {
	if p.writeFd != -1 {
		sys.Close(p.writeFd)
		p.writeFd = -1
	}
}

// Close closes both ends.
func (p *Pipe) Close() {
	p.CloseRead()
	p.CloseWrite()
}

// ReleaseRead transfers ownership of the read end to the caller.
func (p *Pipe) ReleaseRead() int {
	fd := p.readFd
	p.readFd = -1
	return fd
}

// ReleaseWrite transfers ownership of the write end to the caller.
func (p *Pipe) ReleaseWrite() int {
	fd := p.writeFd
	p.writeFd = -1
	return fd
}

// ReleaseWriteFile transfers ownership of the write end wrapped in an
// *os.File, suitable as a launch stdout replacement.
func (p *Pipe) ReleaseWriteFile() *os.File {
	return os.NewFile(uintptr(p.ReleaseWrite()), "|1")
}

// ReleaseReadFile transfers ownership of the read end wrapped in an
// *os.File.
func (p *Pipe) ReleaseReadFile() *os.File {
	return os.NewFile(uintptr(p.ReleaseRead()), "|0")
}
