package proc

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

// UserRegs mirrors the kernel's struct user_regs_struct for x86-64.
type UserRegs struct {
	R15      uint64
	R14      uint64
	R13      uint64
	R12      uint64
	Rbp      uint64
	Rbx      uint64
	R11      uint64
	R10      uint64
	R9       uint64
	R8       uint64
	Rax      uint64
	Rcx      uint64
	Rdx      uint64
	Rsi      uint64
	Rdi      uint64
	OrigRax  uint64
	Rip      uint64
	Cs       uint64
	Eflags   uint64
	Rsp      uint64
	Ss       uint64
	FsBase   uint64
	GsBase   uint64
	Ds       uint64
	Es       uint64
	Fs       uint64
	Gs       uint64
}

// UserFPRegs mirrors struct user_fpregs_struct in
// /usr/include/x86_64-linux-gnu/sys/user.h.
type UserFPRegs struct {
	Cwd       uint16
	Swd       uint16
	Ftw       uint16
	Fop       uint16
	Rip       uint64
	Rdp       uint64
	Mxcsr     uint32
	MxcsrMask uint32
	StSpace   [32]uint32
	XmmSpace  [256]byte
	Padding   [24]uint32
}

// ValueKind tags the runtime type held by a Value.
type ValueKind uint8

const (
	KindUint8 ValueKind = iota
	KindUint16
	KindUint32
	KindUint64
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindLongDouble
	KindBytes8
	KindBytes16
)

// Value is the closed tagged union of register contents: unsigned and
// signed integers of four widths, float and double, the x87 80-bit
// extended float, and 8- or 16-byte vectors.
type Value struct {
	kind ValueKind
	u    uint64
	f    float64
	b    [16]byte
}

func Uint8Value(v uint8) Value    { return Value{kind: KindUint8, u: uint64(v)} }
func Uint16Value(v uint16) Value  { return Value{kind: KindUint16, u: uint64(v)} }
func Uint32Value(v uint32) Value  { return Value{kind: KindUint32, u: uint64(v)} }
func Uint64Value(v uint64) Value  { return Value{kind: KindUint64, u: v} }
func Int8Value(v int8) Value      { return Value{kind: KindInt8, u: uint64(v)} }
func Int16Value(v int16) Value    { return Value{kind: KindInt16, u: uint64(v)} }
func Int32Value(v int32) Value    { return Value{kind: KindInt32, u: uint64(v)} }
func Int64Value(v int64) Value    { return Value{kind: KindInt64, u: uint64(v)} }
func Float32Value(v float32) Value { return Value{kind: KindFloat32, f: float64(v)} }
func Float64Value(v float64) Value { return Value{kind: KindFloat64, f: v} }

func LongDoubleValue(b [16]byte) Value { return Value{kind: KindLongDouble, b: b} }

func Bytes8Value(b [8]byte) Value {
	var v Value
	v.kind = KindBytes8
	copy(v.b[:], b[:])
	return v
}

func Bytes16Value(b [16]byte) Value { return Value{kind: KindBytes16, b: b} }

func (v Value) Kind() ValueKind { return v.kind }

// Uint64 returns the integer payload zero-extended to 64 bits.
func (v Value) Uint64() uint64 { return v.u }

// Float64 returns the floating point payload; for long doubles the
// value is rounded to double precision.
func (v Value) Float64() float64 {
	if v.kind == KindLongDouble {
		return float80ToFloat64(v.b)
	}
	return v.f
}

// Bytes returns the vector or long double payload.
func (v Value) Bytes() []byte {
	if v.kind == KindBytes8 {
		return v.b[:8]
	}
	return v.b[:]
}

// size reports how many bytes of register storage the source value
// occupies.
func (v Value) size() int {
	switch v.kind {
	case KindUint8, KindInt8:
		return 1
	case KindUint16, KindInt16:
		return 2
	case KindUint32, KindInt32, KindFloat32:
		return 4
	case KindUint64, KindInt64, KindFloat64, KindBytes8:
		return 8
	default:
		return 16
	}
}

func (v Value) signed() bool {
	switch v.kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return true
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case KindFloat32, KindFloat64, KindLongDouble:
		return fmt.Sprintf("%g", v.Float64())
	case KindBytes8, KindBytes16:
		return fmt.Sprintf("[% x]", v.Bytes())
	default:
		return fmt.Sprintf("%#x", v.u)
	}
}

// widen converts v to the storage representation of the destination
// register: floats become double or long double per the register
// format, signed integers are sign-extended, unsigned integers are
// zero-extended, byte arrays are copied verbatim. The inferior expects
// the whole architectural register, not a narrow subfield.
func widen(info RegisterInfo, v Value) [16]byte {
	var out [16]byte
	switch v.kind {
	case KindFloat32, KindFloat64:
		switch info.Format {
		case DoubleFloatFormat:
			binary.LittleEndian.PutUint64(out[:8], math.Float64bits(v.f))
			return out
		case LongDoubleFormat:
			return float80FromFloat64(v.f)
		}
		binary.LittleEndian.PutUint64(out[:8], math.Float64bits(v.f))
	case KindLongDouble, KindBytes8, KindBytes16:
		copy(out[:], v.Bytes())
	default:
		u := v.u
		if v.signed() && info.Format == UintFormat {
			// sign-extend to the destination width
			switch v.size() {
			case 1:
				u = uint64(int64(int8(u)))
			case 2:
				u = uint64(int64(int16(u)))
			case 4:
				u = uint64(int64(int32(u)))
			}
		}
		binary.LittleEndian.PutUint64(out[:8], u)
	}
	return out
}

// RegisterFile owns a buffer shaped like the kernel user area. After
// any observed stop the buffer is a snapshot of the inferior taken at
// that stop; writes update the snapshot and are flushed through the
// attached RegisterSync.
type RegisterFile struct {
	// backing store, kept 8-byte aligned so the GPR and FPR regions
	// can be handed to ptrace directly
	words [UserAreaSize / 8]uint64
	sync  RegisterSync
}

// NewRegisterFile returns a zeroed register file flushing through sync.
func NewRegisterFile(sync RegisterSync) *RegisterFile {
	return &RegisterFile{sync: sync}
}

// Bytes exposes the raw user-area image.
func (rf *RegisterFile) Bytes() []byte {
	return (*[UserAreaSize]byte)(unsafe.Pointer(&rf.words[0]))[:]
}

// Regs returns the general purpose register region of the snapshot.
func (rf *RegisterFile) Regs() *UserRegs {
	return (*UserRegs)(unsafe.Pointer(&rf.words[0]))
}

// FPRegs returns the x87/SSE region of the snapshot.
func (rf *RegisterFile) FPRegs() *UserFPRegs {
	return (*UserFPRegs)(unsafe.Pointer(&rf.words[userFPRegsOffset/8]))
}

// DebugReg returns the snapshot value of dr0..dr7.
func (rf *RegisterFile) DebugReg(i int) uint64 {
	return rf.words[(userDebugRegOffset+8*i)/8]
}

// SetDebugRegRaw updates the snapshot of dr[i] without a kernel write.
// The backend uses it while refreshing the snapshot at stop time.
func (rf *RegisterFile) SetDebugRegRaw(i int, v uint64) {
	rf.words[(userDebugRegOffset+8*i)/8] = v
}

// Read returns the current snapshot value of the given register, typed
// per its format and size.
func (rf *RegisterFile) Read(info RegisterInfo) Value {
	b := rf.Bytes()[info.Offset:]
	switch info.Format {
	case UintFormat:
		switch info.Size {
		case 1:
			return Uint8Value(b[0])
		case 2:
			return Uint16Value(binary.LittleEndian.Uint16(b))
		case 4:
			return Uint32Value(binary.LittleEndian.Uint32(b))
		default:
			return Uint64Value(binary.LittleEndian.Uint64(b))
		}
	case DoubleFloatFormat:
		return Float64Value(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	case LongDoubleFormat:
		var ld [16]byte
		copy(ld[:], b)
		return LongDoubleValue(ld)
	default:
		if info.Size == 8 {
			var v [8]byte
			copy(v[:], b)
			return Bytes8Value(v)
		}
		var v [16]byte
		copy(v[:], b)
		return Bytes16Value(v)
	}
}

// ReadByID reads a register by id.
func (rf *RegisterFile) ReadByID(id RegisterID) (Value, error) {
	info, err := RegisterInfoByID(id)
	if err != nil {
		return Value{}, err
	}
	return rf.Read(info), nil
}

// ReadUint64 reads a register known to hold an unsigned integer. It is
// a convenience for the controller's own fixed lookups.
func (rf *RegisterFile) ReadUint64(id RegisterID) uint64 {
	v, err := rf.ReadByID(id)
	if err != nil {
		panic(err)
	}
	return v.Uint64()
}

// Write widens v to the register's storage width, updates the
// snapshot, and flushes the change to the kernel. Calling it with a
// value wider than the register is a programming bug and panics.
func (rf *RegisterFile) Write(info RegisterInfo, v Value) error {
	if v.size() > info.Size {
		panic(fmt.Sprintf("register write: value of %d bytes does not fit %s (%d bytes)", v.size(), info.Name, info.Size))
	}
	wide := widen(info, v)
	copy(rf.Bytes()[info.Offset:info.Offset+info.Size], wide[:info.Size])

	if rf.sync == nil {
		return nil
	}
	if info.Type == FPRRegister {
		// the kernel does not support word-granular writes into the
		// x87 area, replace it wholesale
		return rf.sync.WriteFPRegs(rf.FPRegs())
	}
	// single word poke covering the changed bytes; POKEUSER offsets
	// must be 8-byte aligned
	aligned := info.Offset &^ 0b111
	word := binary.LittleEndian.Uint64(rf.Bytes()[aligned : aligned+8])
	return rf.sync.PokeUserArea(aligned, word)
}

// WriteByID writes a register by id.
func (rf *RegisterFile) WriteByID(id RegisterID, v Value) error {
	info, err := RegisterInfoByID(id)
	if err != nil {
		return err
	}
	return rf.Write(info, v)
}

// PC returns the snapshot program counter.
func (rf *RegisterFile) PC() VirtAddr {
	return VirtAddr(rf.Regs().Rip)
}

// SetPC updates rip in the snapshot and the inferior.
func (rf *RegisterFile) SetPC(pc VirtAddr) error {
	return rf.WriteByID(Rip, Uint64Value(pc.Uint64()))
}
