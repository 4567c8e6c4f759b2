package skel

import "unsafe"

// Ptr is a raw target address carried inside generated types. The BPF
// machine is 64-bit, so the wrapper is always 8 bytes regardless of
// the host, which keeps generated layouts bit-exact.
//
// A Ptr cannot be dereferenced accidentally: reading the address is
// safe, turning it into a Go pointer requires the explicit
// UnsafePointer call.
type Ptr struct {
	addr uint64
}

// PtrTo builds a Ptr from a raw address.
func PtrTo(addr uint64) Ptr { return Ptr{addr: addr} }

// Addr returns the raw address.
func (p Ptr) Addr() uint64 { return p.addr }

// IsNull reports whether the pointer is null.
func (p Ptr) IsNull() bool { return p.addr == 0 }

// UnsafePointer reinterprets the address as a host pointer. Only valid
// when the address actually refers to mapped host memory; this is the
// explicit acknowledgment the generated types refuse to make for you.
func (p Ptr) UnsafePointer() unsafe.Pointer {
	return unsafe.Pointer(uintptr(p.addr))
}
