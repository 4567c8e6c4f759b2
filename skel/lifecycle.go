package skel

// Handle is the loader's opaque token for one loaded BPF object.
type Handle interface {
	ObjectName() string
}

// Link represents one attached program hook. Detaching is idempotent.
type Link interface {
	Program() string
	Detach() error
}

// Map is a handle to one BPF map of a loaded object.
type Map interface {
	Name() string
	FD() int
}

// OpenOpts carries pre-open configuration for a skeleton.
type OpenOpts struct {
	// ObjectName overrides the name recorded in the object, when set.
	ObjectName string

	// KernelLogLevel is forwarded to the loader's verifier interface.
	KernelLogLevel uint32
}

// Loader is the external runtime collaborator that actually talks to
// the kernel. Generated skeletons drive their whole lifecycle through
// this interface and never touch the kernel directly, which keeps the
// generated code testable against a fake loader.
type Loader interface {
	// Open parses a compiled object. The returned handle owns all
	// loader-side resources until Close.
	Open(obj []byte, opts OpenOpts) (Handle, error)

	// Load verifies and loads an opened object into the kernel.
	Load(h Handle) error

	// Attach attaches one named program to its configured hook.
	Attach(h Handle, program string) (Link, error)

	// Section returns the backing memory of a named global data
	// section of a loaded object.
	Section(h Handle, name string) (*Section, error)

	// Map resolves a named map of a loaded object.
	Map(h Handle, name string) (Map, error)

	// Close releases every loader-side resource of the handle.
	Close(h Handle) error
}

// Builder is implemented by every generated skeleton entry point.
type Builder interface {
	ObjectName() string
	OpenObject(l Loader, opts OpenOpts) (Opened, error)
}

// Opened is the capability set of a parsed-but-not-loaded object.
// Generated skeletons expose a typed Load alongside LoadObject; the
// interface form exists so callers can drive unrelated skeletons
// through one code path.
type Opened interface {
	LoadObject() (Loaded, error)
	Close() error
}

// Loaded is the capability set of a verified, loaded object.
type Loaded interface {
	AttachObject() (Attached, error)
	Close() error
}

// Attached is the terminal lifecycle state.
type Attached interface {
	Close() error
}
