package proc

import (
	"encoding/binary"
	"math"
)

// The x87 stack registers hold 80-bit extended-precision floats: a
// 64-bit significand with an explicit integer bit, a 15-bit exponent
// biased by 16383 and a sign bit, stored little-endian in the low 10
// bytes of each 16-byte slot.

// float80FromFloat64 encodes f as an 80-bit extended float.
func float80FromFloat64(f float64) [16]byte {
	bits := math.Float64bits(f)
	sign := uint16(bits>>63) << 15
	exp := (bits >> 52) & 0x7ff
	frac := bits & (1<<52 - 1)

	var e80 uint16
	var m80 uint64
	switch {
	case exp == 0x7ff: // infinity or NaN
		e80 = 0x7fff
		m80 = 1<<63 | frac<<11
	case exp == 0 && frac == 0:
		// signed zero
	case exp == 0:
		// subnormal double, normalize into the wider exponent range
		e := int64(-1022)
		for frac&(1<<52) == 0 {
			frac <<= 1
			e--
		}
		frac &^= 1 << 52
		e80 = uint16(e + 16383)
		m80 = 1<<63 | frac<<11
	default:
		e80 = uint16(int64(exp) - 1023 + 16383)
		m80 = 1<<63 | frac<<11
	}

	var out [16]byte
	binary.LittleEndian.PutUint64(out[:8], m80)
	binary.LittleEndian.PutUint16(out[8:10], sign|e80)
	return out
}

// float80ToFloat64 rounds an 80-bit extended float to double
// precision. Values too large for a double become infinities; values
// below the normal double range flush to signed zero.
func float80ToFloat64(b [16]byte) float64 {
	m80 := binary.LittleEndian.Uint64(b[:8])
	se := binary.LittleEndian.Uint16(b[8:10])
	sign := uint64(se>>15) << 63
	e80 := int64(se & 0x7fff)

	switch {
	case e80 == 0 && m80 == 0:
		return math.Float64frombits(sign)
	case e80 == 0x7fff:
		if m80<<1 == 0 {
			return math.Float64frombits(sign | 0x7ff<<52)
		}
		return math.NaN()
	}

	exp := e80 - 16383 + 1023
	if exp >= 0x7ff {
		return math.Float64frombits(sign | 0x7ff<<52)
	}
	if exp <= 0 {
		// underflows double precision, flush to zero
		return math.Float64frombits(sign)
	}
	// drop the explicit integer bit, keep the top 52 fraction bits
	frac := (m80 &^ (1 << 63)) >> 11
	return math.Float64frombits(sign | uint64(exp)<<52 | frac)
}
