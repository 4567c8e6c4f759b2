package skel

import (
	"fmt"
	"unsafe"
)

// As reinterprets the leading bytes of b as a value of type T, in
// place. Generated union accessors use it to view composite members
// over the union's raw storage.
//
// The region must be large enough for T and suitably aligned for its
// field types; generated code only aliases regions whose placement the
// layout resolver has validated against the source ABI.
func As[T any](b []byte) *T {
	var v T
	if uintptr(len(b)) < unsafe.Sizeof(v) {
		panic(fmt.Sprintf("skel: alias of %d-byte value over %d bytes", unsafe.Sizeof(v), len(b)))
	}
	return (*T)(unsafe.Pointer(&b[0]))
}
