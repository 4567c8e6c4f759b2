package gen

import "skelgen/internal/names"

// Options configures one generation run. The zero value is not usable;
// call Normalize before passing options to Generate.
type Options struct {
	// Package is the package clause of the generated file.
	Package string

	// ObjectName is the logical name of the compiled object; it seeds
	// the skeleton type names and the embedded object reference.
	ObjectName string

	// RuntimePackage is the import path of the lifecycle/view runtime
	// the generated code compiles against.
	RuntimePackage string

	// TypePrefix is prepended to every generated type name. Defaults
	// to the exported object name, so types from different objects can
	// share a package.
	TypePrefix string

	// EmitRawAccessors adds the untyped pointer/length surface next to
	// the typed datasec views.
	EmitRawAccessors bool

	// EmbedPath is the object file referenced by the go:embed
	// directive in the skeleton.
	EmbedPath string

	// Cflags is carried for the external compilation step. The
	// generator never interprets it; it is recorded here so a cached
	// generation can be invalidated when the flags change.
	Cflags []string
}

// Normalize fills derived defaults and returns the effective options.
func (o Options) Normalize() Options {
	if o.ObjectName == "" {
		o.ObjectName = "bpf"
	}
	if o.Package == "" {
		o.Package = names.Unexported(o.ObjectName)
	}
	if o.TypePrefix == "" {
		o.TypePrefix = names.Exported(o.ObjectName)
	}
	if o.RuntimePackage == "" {
		o.RuntimePackage = "skelgen/skel"
	}
	if o.EmbedPath == "" {
		o.EmbedPath = o.ObjectName + ".bpf.o"
	}
	return o
}
