// Package btf parses the binary type catalogue (BTF) embedded in a
// compiled eBPF object and exposes it as an immutable, index-addressed
// type graph.
//
// Every type reference inside BTF is a catalogue index, including
// forward and self references, so the in-memory model keeps the same
// shape: an arena of Type values addressed by TypeID, with index 0
// reserved for void. The graph is read-only after Parse returns;
// later phases (layout, naming, emission) receive it by pointer and
// never mutate it.
//
// The parser validates structure only: record bounds, string offsets,
// kind tags, and reference ranges. Layout consistency is the job of
// internal/layout.
package btf
