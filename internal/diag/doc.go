// Package diag defines the diagnostic model shared by all generator phases.
//
// Diagnostics point into the type catalogue rather than into source text:
// the primary location of every finding is a catalogue type index, plus an
// optional member ordinal. That is enough for a user to locate the offending
// C declaration with bpftool or pahole, and it keeps the model independent
// of any particular object file on disk.
//
// The package performs no formatting or IO. Rendering lives in the CLI
// layer; orchestration lives in internal/driver. Bag supports deterministic
// sorting and deduplication so that repeated runs over the same catalogue
// report findings in the same order.
package diag
