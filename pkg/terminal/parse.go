package terminal

import (
	"strconv"
	"strings"

	"github.com/sdb-dev/sdb/pkg/proc"
)

// ParseAddress parses a virtual address literal. Addresses are always
// hexadecimal with a 0x prefix.
func ParseAddress(text string) (proc.VirtAddr, error) {
	if !strings.HasPrefix(text, "0x") {
		return 0, proc.Parsef("expected address in hexadecimal, got %q", text)
	}
	v, err := strconv.ParseUint(text[2:], 16, 64)
	if err != nil {
		return 0, proc.Parsef("invalid address %q", text)
	}
	return proc.VirtAddr(v), nil
}

// ParseUint parses a decimal or 0x-prefixed unsigned integer of the
// given bit width.
func ParseUint(text string, bits int) (uint64, error) {
	base := 10
	if strings.HasPrefix(text, "0x") {
		base = 16
		text = text[2:]
	}
	v, err := strconv.ParseUint(text, base, bits)
	if err != nil {
		return 0, proc.Parsef("invalid integer %q", text)
	}
	return v, nil
}

// ParseByteVector parses a byte vector literal of the form
// [0xNN,0xNN,...].
func ParseByteVector(text string) ([]byte, error) {
	if len(text) < 2 || text[0] != '[' || text[len(text)-1] != ']' {
		return nil, proc.Parsef("invalid vector format %q", text)
	}
	inner := text[1 : len(text)-1]
	if inner == "" {
		return nil, nil
	}
	var out []byte
	for _, elem := range strings.Split(inner, ",") {
		b, err := ParseUint(strings.TrimSpace(elem), 8)
		if err != nil {
			return nil, proc.Parsef("invalid vector element %q", elem)
		}
		out = append(out, byte(b))
	}
	return out, nil
}

// ParseRegisterValue parses text into a value suitable for the given
// register: an unsigned integer of the register's width, a float for
// the floating point formats, or a byte vector for the vector
// registers.
func ParseRegisterValue(info proc.RegisterInfo, text string) (proc.Value, error) {
	switch info.Format {
	case proc.UintFormat:
		v, err := ParseUint(text, info.Size*8)
		if err != nil {
			return proc.Value{}, err
		}
		switch info.Size {
		case 1:
			return proc.Uint8Value(uint8(v)), nil
		case 2:
			return proc.Uint16Value(uint16(v)), nil
		case 4:
			return proc.Uint32Value(uint32(v)), nil
		default:
			return proc.Uint64Value(v), nil
		}
	case proc.DoubleFloatFormat, proc.LongDoubleFormat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return proc.Value{}, proc.Parsef("invalid float %q", text)
		}
		return proc.Float64Value(f), nil
	default:
		bytes, err := ParseByteVector(text)
		if err != nil {
			return proc.Value{}, err
		}
		switch {
		case len(bytes) == 8 && info.Size == 8:
			var b [8]byte
			copy(b[:], bytes)
			return proc.Bytes8Value(b), nil
		case len(bytes) == 16 && info.Size == 16:
			var b [16]byte
			copy(b[:], bytes)
			return proc.Bytes16Value(b), nil
		}
		return proc.Value{}, proc.Parsef("vector of %d bytes does not fit register %s", len(bytes), info.Name)
	}
}

// isPrefix reports whether candidate is a prefix of keyword. A
// candidate longer than the keyword never matches.
func isPrefix(candidate, keyword string) bool {
	return len(candidate) <= len(keyword) && strings.HasPrefix(keyword, candidate)
}
