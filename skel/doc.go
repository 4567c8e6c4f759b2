// Package skel is the runtime contract between generated bindings and
// their callers. Generated code imports this package; nothing in the
// generator itself depends on it at run time.
//
// It defines three surfaces:
//
//   - the loader lifecycle (Builder -> Opened -> Loaded -> Attached)
//     with the Loader collaborator interface standing in for the
//     actual BPF object loader;
//   - Section, the backing region of a global data section, with the
//     shared/exclusive/raw access helpers generated accessors build on;
//   - small fixed-layout primitives referenced by generated types:
//     the Ptr address wrapper and the bitfield load/store helpers.
//
// The exclusive access helpers require the caller to guarantee that no
// other shared or exclusive access to the same section is in flight.
// That discipline cannot be enforced in-process: the underlying memory
// is shared with the kernel-side BPF machine, which ordinary Go locks
// cannot observe.
package skel
