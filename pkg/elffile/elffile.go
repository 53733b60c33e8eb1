// Package elffile loads an ELF object and answers the address and
// symbol queries the debugger core needs: the load bias, which section
// contains an address, and symbol lookup by name or address. The
// loaded file never changes for the life of the object.
package elffile

import (
	"debug/elf"
	"sort"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/exp/slices"

	"github.com/sdb-dev/sdb/pkg/proc"
)

const symbolCacheSize = 128

// Symbol is one entry of the object's symbol table.
type Symbol struct {
	Name  string
	Value uint64
	Size  uint64
}

// File is a loaded ELF object.
type File struct {
	path     string
	ef       *elf.File
	entry    uint64
	loadBias proc.VirtAddr

	sections []*elf.Section
	// address-ordered symbols with a value, for containment queries
	symsByAddr []Symbol
	symsByName map[string][]Symbol

	containsCache *lru.Cache // symbol-containing-address lookups
}

// Open parses the ELF object at path.
func Open(path string) (*File, error) {
	ef, err := elf.Open(path)
	if err != nil {
		return nil, proc.Kernelf(err, "failed to open ELF file %s", path)
	}

	f := &File{
		path:       path,
		ef:         ef,
		entry:      ef.Entry,
		symsByName: make(map[string][]Symbol),
	}
	f.containsCache, _ = lru.New(symbolCacheSize)

	for _, sec := range ef.Sections {
		f.sections = append(f.sections, sec)
	}

	syms, err := ef.Symbols()
	if err != nil {
		// fall back to the dynamic symbol table; a file with neither
		// just has no symbols
		syms, _ = ef.DynamicSymbols()
	}
	for _, s := range syms {
		if s.Name == "" {
			continue
		}
		sym := Symbol{Name: s.Name, Value: s.Value, Size: s.Size}
		f.symsByName[s.Name] = append(f.symsByName[s.Name], sym)
		if s.Value != 0 && elf.ST_TYPE(s.Info) != elf.STT_TLS {
			f.symsByAddr = append(f.symsByAddr, sym)
		}
	}
	slices.SortStableFunc(f.symsByAddr, func(a, b Symbol) bool {
		return a.Value < b.Value
	})

	return f, nil
}

// Close releases the underlying file.
func (f *File) Close() error { return f.ef.Close() }

// Path returns the path the object was loaded from.
func (f *File) Path() string { return f.path }

// Entry returns the preferred entry point from the ELF header.
func (f *File) Entry() uint64 { return f.entry }

// NotifyLoaded records where the object actually landed: bias is the
// difference between the runtime entry point and the preferred one.
func (f *File) NotifyLoaded(bias proc.VirtAddr) { f.loadBias = bias }

// LoadBias implements proc.ElfObject.
func (f *File) LoadBias() proc.VirtAddr { return f.loadBias }

// EntryPoint returns the entry point as a file address bound to f.
func (f *File) EntryPoint() proc.FileAddr { return proc.NewFileAddr(f, f.entry) }

// SectionContainingFileAddr returns the section covering the given
// file address, or nil.
func (f *File) SectionContainingFileAddr(addr proc.FileAddr) *elf.Section {
	if addr.Obj() != proc.ElfObject(f) {
		return nil
	}
	for _, sec := range f.sections {
		if sec.Addr <= addr.Uint64() && addr.Uint64() < sec.Addr+sec.Size {
			return sec
		}
	}
	return nil
}

// SectionContainingVirtAddr returns the section covering the given
// virtual address once relocated by the load bias, or nil.
func (f *File) SectionContainingVirtAddr(addr proc.VirtAddr) *elf.Section {
	bias := f.loadBias.Uint64()
	for _, sec := range f.sections {
		if bias+sec.Addr <= addr.Uint64() && addr.Uint64() < bias+sec.Addr+sec.Size {
			return sec
		}
	}
	return nil
}

// ContainsFileAddr implements proc.ElfObject.
func (f *File) ContainsFileAddr(addr proc.FileAddr) bool {
	return f.SectionContainingFileAddr(addr) != nil
}

// ContainsVirtAddr implements proc.ElfObject.
func (f *File) ContainsVirtAddr(addr proc.VirtAddr) bool {
	return f.SectionContainingVirtAddr(addr) != nil
}

// Section returns the named section, or nil.
func (f *File) Section(name string) *elf.Section {
	return f.ef.Section(name)
}

// SectionStartAddress returns the file address of the named section.
func (f *File) SectionStartAddress(name string) (proc.FileAddr, bool) {
	sec := f.ef.Section(name)
	if sec == nil {
		return proc.FileAddr{}, false
	}
	return proc.NewFileAddr(f, sec.Addr), true
}

// SymbolsByName returns every symbol with the given name.
func (f *File) SymbolsByName(name string) []Symbol {
	return f.symsByName[name]
}

// SymbolAtFileAddr returns the symbol whose start address is exactly
// addr.
func (f *File) SymbolAtFileAddr(addr proc.FileAddr) (Symbol, bool) {
	if addr.Obj() != proc.ElfObject(f) {
		return Symbol{}, false
	}
	i := sort.Search(len(f.symsByAddr), func(i int) bool {
		return f.symsByAddr[i].Value >= addr.Uint64()
	})
	if i < len(f.symsByAddr) && f.symsByAddr[i].Value == addr.Uint64() {
		return f.symsByAddr[i], true
	}
	return Symbol{}, false
}

// SymbolAtVirtAddr returns the symbol starting exactly at the given
// virtual address.
func (f *File) SymbolAtVirtAddr(addr proc.VirtAddr) (Symbol, bool) {
	fa := addr.ToFileAddr(f)
	if fa.IsNull() {
		return Symbol{}, false
	}
	return f.SymbolAtFileAddr(fa)
}

// SymbolContainingFileAddr returns the symbol whose [value,
// value+size) range covers addr.
func (f *File) SymbolContainingFileAddr(addr proc.FileAddr) (Symbol, bool) {
	if addr.Obj() != proc.ElfObject(f) || len(f.symsByAddr) == 0 {
		return Symbol{}, false
	}
	if cached, ok := f.containsCache.Get(addr.Uint64()); ok {
		sym := cached.(Symbol)
		return sym, sym.Name != ""
	}

	sym, ok := f.symbolContainingSlow(addr.Uint64())
	if ok {
		f.containsCache.Add(addr.Uint64(), sym)
	} else {
		f.containsCache.Add(addr.Uint64(), Symbol{})
	}
	return sym, ok
}

func (f *File) symbolContainingSlow(addr uint64) (Symbol, bool) {
	// first symbol starting after addr; the candidate is the one
	// before it
	i := sort.Search(len(f.symsByAddr), func(i int) bool {
		return f.symsByAddr[i].Value > addr
	})
	if i == 0 {
		return Symbol{}, false
	}
	sym := f.symsByAddr[i-1]
	if sym.Value <= addr && addr < sym.Value+sym.Size {
		return sym, true
	}
	return Symbol{}, false
}

// SymbolContainingVirtAddr returns the symbol covering the given
// virtual address.
func (f *File) SymbolContainingVirtAddr(addr proc.VirtAddr) (Symbol, bool) {
	fa := addr.ToFileAddr(f)
	if fa.IsNull() {
		return Symbol{}, false
	}
	return f.SymbolContainingFileAddr(fa)
}
