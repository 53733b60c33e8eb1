package proc

import "fmt"

// VirtAddr is a linear address in the inferior's virtual address space.
type VirtAddr uint64

// NullVirtAddr is the sentinel returned by conversions that fall
// outside every section of an ELF object.
const NullVirtAddr VirtAddr = 0

func (a VirtAddr) Uint64() uint64 { return uint64(a) }

// Add returns the address offset by n bytes.
func (a VirtAddr) Add(n int64) VirtAddr { return VirtAddr(int64(a) + n) }

func (a VirtAddr) String() string { return fmt.Sprintf("%#x", uint64(a)) }

// ToFileAddr translates the virtual address into obj's file address
// space. The result is the null file address if a does not fall inside
// any section of obj.
func (a VirtAddr) ToFileAddr(obj ElfObject) FileAddr {
	if obj == nil || !obj.ContainsVirtAddr(a) {
		return FileAddr{}
	}
	return FileAddr{obj: obj, addr: uint64(a) - obj.LoadBias().Uint64()}
}

// FileAddr is an address relative to the preferred base of a specific
// ELF object. The zero value is the null file address.
type FileAddr struct {
	obj  ElfObject
	addr uint64
}

// NewFileAddr binds addr to the given ELF object.
func NewFileAddr(obj ElfObject, addr uint64) FileAddr {
	return FileAddr{obj: obj, addr: addr}
}

// Obj returns the owning ELF object, nil for the null address.
func (a FileAddr) Obj() ElfObject { return a.obj }

func (a FileAddr) Uint64() uint64 { return a.addr }

// IsNull reports whether a is the null file address.
func (a FileAddr) IsNull() bool { return a.obj == nil }

func (a FileAddr) Add(n int64) FileAddr {
	return FileAddr{obj: a.obj, addr: uint64(int64(a.addr) + n)}
}

func (a FileAddr) String() string {
	if a.IsNull() {
		return "<null>"
	}
	return fmt.Sprintf("%#x", a.addr)
}

// Equal reports whether two file addresses denote the same byte of the
// same object.
func (a FileAddr) Equal(b FileAddr) bool {
	return a.obj == b.obj && a.addr == b.addr
}

// Less orders file addresses within a single object. Comparing
// addresses bound to different objects is a programming error.
func (a FileAddr) Less(b FileAddr) bool {
	if a.obj != b.obj {
		panic("comparing file addresses of different ELF objects")
	}
	return a.addr < b.addr
}

// ToVirtAddr translates the file address to the inferior's address
// space using the owning object's load bias. The result is the null
// virtual address if a does not fall inside any section.
func (a FileAddr) ToVirtAddr() VirtAddr {
	if a.IsNull() {
		panic("ToVirtAddr called on null file address")
	}
	if !a.obj.ContainsFileAddr(a) {
		return NullVirtAddr
	}
	return VirtAddr(a.addr + a.obj.LoadBias().Uint64())
}

// FileOffset is a byte offset into an ELF file on disk.
type FileOffset uint64
