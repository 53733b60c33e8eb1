package proc

// Layout of the kernel's struct user for x86-64. The register table
// below indexes a flat image of that struct: the general purpose
// registers start at offset 0, the x87/SSE area (struct
// user_fpregs_struct) at 224, and u_debugreg at 848, see
// source/arch/x86/kernel/ptrace.c.
const (
	userFPRegsOffset   = 224
	userStSpaceOffset  = userFPRegsOffset + 32
	userXmmSpaceOffset = userFPRegsOffset + 160
	userDebugRegOffset = 848

	// UserAreaSize is the size of struct user on x86-64.
	UserAreaSize = 912
)

// RegisterType groups registers by how they are synced to the kernel
// and how the front-end lists them.
type RegisterType uint8

const (
	GPRRegister    RegisterType = iota // full-width general purpose
	SubGPRRegister                     // 32/16/8-bit alias of a GPR
	FPRRegister                        // x87/SSE area
	DRRegister                         // debug register
)

// RegisterFormat selects the runtime type produced by RegisterFile.Read.
type RegisterFormat uint8

const (
	UintFormat RegisterFormat = iota
	DoubleFloatFormat
	LongDoubleFormat
	VectorFormat
)

// RegisterID identifies an entry of the register table.
type RegisterID uint8

// RegisterInfo describes one architectural register: its symbolic
// name, DWARF number (-1 if it has none), width in bytes, byte offset
// into the user area, and how to interpret its contents. The table is
// process-wide and immutable.
type RegisterInfo struct {
	ID      RegisterID
	Name    string
	DwarfID int
	Size    int
	Offset  int
	Type    RegisterType
	Format  RegisterFormat
}

// 64-bit register ids. The sub-register ids follow in the same
// order their parents are declared here.
const (
	Rax RegisterID = iota
	Rdx
	Rcx
	Rbx
	Rsi
	Rdi
	Rbp
	Rsp
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	Rip
	Eflags
	Cs
	Fs
	Gs
	Ss
	Ds
	Es
	OrigRax
	FsBase
	GsBase

	Fcw
	Fsw
	Ftw
	Fop
	Frip
	Frdp
	Mxcsr
	MxcsrMask

	St0
	St1
	St2
	St3
	St4
	St5
	St6
	St7

	Mm0
	Mm1
	Mm2
	Mm3
	Mm4
	Mm5
	Mm6
	Mm7

	Xmm0
	Xmm1
	Xmm2
	Xmm3
	Xmm4
	Xmm5
	Xmm6
	Xmm7
	Xmm8
	Xmm9
	Xmm10
	Xmm11
	Xmm12
	Xmm13
	Xmm14
	Xmm15

	Dr0
	Dr1
	Dr2
	Dr3
	Dr4
	Dr5
	Dr6
	Dr7

	firstSubRegister // sub-register ids are assigned from here
)

// offsets of the 64-bit GPRs inside struct user_regs_struct.
var gprOffsets = map[RegisterID]int{
	R15: 0, R14: 8, R13: 16, R12: 24, Rbp: 32, Rbx: 40, R11: 48,
	R10: 56, R9: 64, R8: 72, Rax: 80, Rcx: 88, Rdx: 96, Rsi: 104,
	Rdi: 112, OrigRax: 120, Rip: 128, Cs: 136, Eflags: 144, Rsp: 152,
	Ss: 160, FsBase: 168, GsBase: 176, Ds: 184, Es: 192, Fs: 200,
	Gs: 208,
}

var registers = buildRegisterTable()

var (
	regsByID    = map[RegisterID]*RegisterInfo{}
	regsByName  = map[string]*RegisterInfo{}
	regsByDwarf = map[int]*RegisterInfo{}
)

func init() {
	for i := range registers {
		info := &registers[i]
		regsByID[info.ID] = info
		regsByName[info.Name] = info
		if info.DwarfID >= 0 {
			regsByDwarf[info.DwarfID] = info
		}
	}
}

func buildRegisterTable() []RegisterInfo {
	var t []RegisterInfo
	nextSub := firstSubRegister

	gpr64 := func(id RegisterID, name string, dwarf int) {
		t = append(t, RegisterInfo{id, name, dwarf, 8, gprOffsets[id], GPRRegister, UintFormat})
	}
	// sub32/sub16/sub8l alias the low bytes of their parent, sub8h the
	// second byte.
	sub := func(parent RegisterID, name string, size, byteOff int) {
		t = append(t, RegisterInfo{nextSub, name, -1, size, gprOffsets[parent] + byteOff, SubGPRRegister, UintFormat})
		nextSub++
	}
	fpr := func(id RegisterID, name string, dwarf, size, off int) {
		t = append(t, RegisterInfo{id, name, dwarf, size, off, FPRRegister, UintFormat})
	}

	// DWARF register numbers follow the System V x86-64 psABI.
	gpr64(Rax, "rax", 0)
	gpr64(Rdx, "rdx", 1)
	gpr64(Rcx, "rcx", 2)
	gpr64(Rbx, "rbx", 3)
	gpr64(Rsi, "rsi", 4)
	gpr64(Rdi, "rdi", 5)
	gpr64(Rbp, "rbp", 6)
	gpr64(Rsp, "rsp", 7)
	gpr64(R8, "r8", 8)
	gpr64(R9, "r9", 9)
	gpr64(R10, "r10", 10)
	gpr64(R11, "r11", 11)
	gpr64(R12, "r12", 12)
	gpr64(R13, "r13", 13)
	gpr64(R14, "r14", 14)
	gpr64(R15, "r15", 15)
	gpr64(Rip, "rip", 16)
	gpr64(Eflags, "eflags", 49)
	gpr64(Cs, "cs", 51)
	gpr64(Fs, "fs", 54)
	gpr64(Gs, "gs", 55)
	gpr64(Ss, "ss", 52)
	gpr64(Ds, "ds", 53)
	gpr64(Es, "es", 50)
	gpr64(OrigRax, "orig_rax", -1)
	gpr64(FsBase, "fs_base", 58)
	gpr64(GsBase, "gs_base", 59)

	sub32 := []struct {
		parent RegisterID
		name   string
	}{
		{Rax, "eax"}, {Rdx, "edx"}, {Rcx, "ecx"}, {Rbx, "ebx"},
		{Rsi, "esi"}, {Rdi, "edi"}, {Rbp, "ebp"}, {Rsp, "esp"},
		{R8, "r8d"}, {R9, "r9d"}, {R10, "r10d"}, {R11, "r11d"},
		{R12, "r12d"}, {R13, "r13d"}, {R14, "r14d"}, {R15, "r15d"},
	}
	for _, s := range sub32 {
		sub(s.parent, s.name, 4, 0)
	}
	sub16 := []struct {
		parent RegisterID
		name   string
	}{
		{Rax, "ax"}, {Rdx, "dx"}, {Rcx, "cx"}, {Rbx, "bx"},
		{Rsi, "si"}, {Rdi, "di"}, {Rbp, "bp"}, {Rsp, "sp"},
		{R8, "r8w"}, {R9, "r9w"}, {R10, "r10w"}, {R11, "r11w"},
		{R12, "r12w"}, {R13, "r13w"}, {R14, "r14w"}, {R15, "r15w"},
	}
	for _, s := range sub16 {
		sub(s.parent, s.name, 2, 0)
	}
	sub8l := []struct {
		parent RegisterID
		name   string
	}{
		{Rax, "al"}, {Rdx, "dl"}, {Rcx, "cl"}, {Rbx, "bl"},
		{Rsi, "sil"}, {Rdi, "dil"}, {Rbp, "bpl"}, {Rsp, "spl"},
		{R8, "r8b"}, {R9, "r9b"}, {R10, "r10b"}, {R11, "r11b"},
		{R12, "r12b"}, {R13, "r13b"}, {R14, "r14b"}, {R15, "r15b"},
	}
	for _, s := range sub8l {
		sub(s.parent, s.name, 1, 0)
	}
	sub8h := []struct {
		parent RegisterID
		name   string
	}{
		{Rax, "ah"}, {Rdx, "dh"}, {Rcx, "ch"}, {Rbx, "bh"},
	}
	for _, s := range sub8h {
		sub(s.parent, s.name, 1, 1)
	}

	// x87 control and status words, struct user_fpregs_struct order.
	fpr(Fcw, "fcw", 65, 2, userFPRegsOffset+0)
	fpr(Fsw, "fsw", 66, 2, userFPRegsOffset+2)
	fpr(Ftw, "ftw", -1, 2, userFPRegsOffset+4)
	fpr(Fop, "fop", -1, 2, userFPRegsOffset+6)
	fpr(Frip, "frip", -1, 8, userFPRegsOffset+8)
	fpr(Frdp, "frdp", -1, 8, userFPRegsOffset+16)
	fpr(Mxcsr, "mxcsr", 64, 4, userFPRegsOffset+24)
	fpr(MxcsrMask, "mxcsrmask", -1, 4, userFPRegsOffset+28)

	for i := 0; i < 8; i++ {
		t = append(t, RegisterInfo{St0 + RegisterID(i), "st" + digits[i], 33 + i, 16, userStSpaceOffset + 16*i, FPRRegister, LongDoubleFormat})
	}
	// mm registers alias the low 8 bytes of the x87 stack slots.
	for i := 0; i < 8; i++ {
		t = append(t, RegisterInfo{Mm0 + RegisterID(i), "mm" + digits[i], 41 + i, 8, userStSpaceOffset + 16*i, FPRRegister, VectorFormat})
	}
	for i := 0; i < 16; i++ {
		t = append(t, RegisterInfo{Xmm0 + RegisterID(i), "xmm" + digits[i], 17 + i, 16, userXmmSpaceOffset + 16*i, FPRRegister, VectorFormat})
	}
	for i := 0; i < 8; i++ {
		t = append(t, RegisterInfo{Dr0 + RegisterID(i), "dr" + digits[i], -1, 8, userDebugRegOffset + 8*i, DRRegister, UintFormat})
	}

	return t
}

var digits = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12", "13", "14", "15"}

// Registers returns the full register table in declaration order.
func Registers() []RegisterInfo { return registers }

// RegisterInfoByID looks up a register by id.
func RegisterInfoByID(id RegisterID) (RegisterInfo, error) {
	if info, ok := regsByID[id]; ok {
		return *info, nil
	}
	return RegisterInfo{}, Usagef("can't find register info")
}

// RegisterInfoByName looks up a register by its symbolic name.
func RegisterInfoByName(name string) (RegisterInfo, error) {
	if info, ok := regsByName[name]; ok {
		return *info, nil
	}
	return RegisterInfo{}, Usagef("no register named %q", name)
}

// RegisterInfoByDwarfID looks up a register by its DWARF number.
func RegisterInfoByDwarfID(dwarfID int) (RegisterInfo, error) {
	if info, ok := regsByDwarf[dwarfID]; ok {
		return *info, nil
	}
	return RegisterInfo{}, Usagef("no register with DWARF id %d", dwarfID)
}
