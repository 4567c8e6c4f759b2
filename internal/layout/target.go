package layout

import "encoding/binary"

// Target describes the ABI the catalogue was compiled for: pointer
// properties and byte order. The byte order always comes from the
// catalogue itself — the generator must work the same way regardless
// of the architecture it runs on.
type Target struct {
	Name     string // e.g. "bpf"
	PtrSize  int    // bytes
	PtrAlign int    // bytes
	MaxAlign int    // cap on natural scalar alignment
	Order    binary.ByteOrder
}

// BPF returns the eBPF machine target. The BPF ISA is 64-bit on every
// host, so pointers are always 8 bytes wide.
func BPF(order binary.ByteOrder) Target {
	return Target{
		Name:     "bpf",
		PtrSize:  8,
		PtrAlign: 8,
		MaxAlign: 8,
		Order:    order,
	}
}
