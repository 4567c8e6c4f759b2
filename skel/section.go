package skel

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// Section is the fixed-size backing memory of one global data section.
// The shared, exclusive and raw access surfaces generated for a
// section all alias this one region; they are access modes, not
// copies.
type Section struct {
	name  string
	data  []byte
	order binary.ByteOrder
}

// NewSection wraps a backing region. The loader owns the memory; the
// section must not outlive the loaded object it came from.
func NewSection(name string, data []byte, order binary.ByteOrder) *Section {
	return &Section{name: name, data: data, order: order}
}

func (s *Section) Name() string { return s.name }

func (s *Section) Len() int { return len(s.data) }

// ByteOrder returns the byte order of the target the section belongs
// to.
func (s *Section) ByteOrder() binary.ByteOrder { return s.order }

// Bytes is the raw access surface: the whole section as a mutable
// byte slice aliasing the backing region. For callers whose access
// pattern the typed views cannot express.
func (s *Section) Bytes() []byte { return s.data }

func (s *Section) bounds(off, size uintptr) {
	if off+size > uintptr(len(s.data)) {
		panic(fmt.Sprintf("skel: access [%d, %d) outside section %q of %d bytes",
			off, off+size, s.name, len(s.data)))
	}
}

// ReadVar copies a variable out of the section. Safe under concurrent
// shared access; the returned value is a snapshot.
func ReadVar[T any](s *Section, off uintptr) T {
	var v T
	s.bounds(off, unsafe.Sizeof(v))
	v = *(*T)(unsafe.Pointer(&s.data[off]))
	return v
}

// WriteVar stores a variable into the section. Exclusive access only:
// the caller must guarantee no concurrent shared or exclusive access
// for the duration of the write.
func WriteVar[T any](s *Section, off uintptr, v T) {
	s.bounds(off, unsafe.Sizeof(v))
	*(*T)(unsafe.Pointer(&s.data[off])) = v
}

// VarPtr returns a pointer aliasing a variable inside the section.
// Exclusive access only; the pointer must not be retained past the
// exclusive view it was obtained from.
func VarPtr[T any](s *Section, off uintptr) *T {
	var v T
	s.bounds(off, unsafe.Sizeof(v))
	return (*T)(unsafe.Pointer(&s.data[off]))
}

// VarBytes returns the sub-slice backing one variable, for composite
// variables that are handled as raw bytes.
func (s *Section) VarBytes(off, size int) []byte {
	s.bounds(uintptr(off), uintptr(size))
	return s.data[off : off+size]
}
