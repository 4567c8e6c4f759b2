package skel

// Bitfield load/store helpers used by generated accessor pairs.
//
// A storage unit is a byte cluster of at most 8 bytes. Bit offsets use
// the target's bit numbering: on little-endian targets bit 0 is the
// least significant bit of the first byte, on big-endian targets it is
// the most significant bit of the first byte. The generator picks the
// LE or BE helper at generation time from the catalogue's recorded
// byte order, so generated code never consults the host architecture.

// LoadBitsLE extracts width bits starting at bitOff from a
// little-endian storage unit.
func LoadBitsLE(unit []byte, bitOff, width int) uint64 {
	first := bitOff / 8
	shift := bitOff - first*8
	var v uint64
	for i := 0; i < 8 && first+i < len(unit); i++ {
		v |= uint64(unit[first+i]) << (8 * i)
	}
	return (v >> shift) & mask(width)
}

// StoreBitsLE writes width bits starting at bitOff into a
// little-endian storage unit, leaving the surrounding bits intact.
func StoreBitsLE(unit []byte, bitOff, width int, val uint64) {
	first := bitOff / 8
	shift := bitOff - first*8
	var v uint64
	n := 0
	for ; n < 8 && first+n < len(unit); n++ {
		v |= uint64(unit[first+n]) << (8 * n)
	}
	v &^= mask(width) << shift
	v |= (val & mask(width)) << shift
	for i := 0; i < n; i++ {
		unit[first+i] = byte(v >> (8 * i))
	}
}

// LoadBitsBE extracts width bits starting at bitOff from a big-endian
// storage unit.
func LoadBitsBE(unit []byte, bitOff, width int) uint64 {
	first := bitOff / 8
	shift := bitOff - first*8
	n := 0
	var v uint64
	for ; n < 8 && first+n < len(unit); n++ {
		v = v<<8 | uint64(unit[first+n])
	}
	total := 8 * n
	return (v >> (total - shift - width)) & mask(width)
}

// StoreBitsBE writes width bits starting at bitOff into a big-endian
// storage unit, leaving the surrounding bits intact.
func StoreBitsBE(unit []byte, bitOff, width int, val uint64) {
	first := bitOff / 8
	shift := bitOff - first*8
	n := 0
	var v uint64
	for ; n < 8 && first+n < len(unit); n++ {
		v = v<<8 | uint64(unit[first+n])
	}
	total := 8 * n
	down := total - shift - width
	v &^= mask(width) << down
	v |= (val & mask(width)) << down
	for i := n - 1; i >= 0; i-- {
		unit[first+i] = byte(v)
		v >>= 8
	}
}

// SignExtend interprets the low width bits of v as a signed value.
func SignExtend(v uint64, width int) int64 {
	shift := 64 - width
	return int64(v<<uint(shift)) >> uint(shift)
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(width) - 1
}
