// Package gen walks the resolved, named catalogue and emits the Go
// binding source: type definitions, datasec accessors and the
// open/load/attach skeleton.
//
// Emission is purely deterministic. Every walk is over catalogue index
// order or a topological order with index-order tie-breaks, names come
// from internal/names (no map iteration), and the output is assembled
// with a plain strings.Builder. The same catalogue and options always
// produce byte-identical text, because generated bindings live in
// version control and must not produce spurious diffs.
package gen

import (
	"encoding/binary"
	"fmt"
	"strings"

	"skelgen/internal/btf"
	"skelgen/internal/diag"
	"skelgen/internal/layout"
	"skelgen/internal/names"
)

// Emitter drives one generation run over a parsed catalogue.
type Emitter struct {
	ix   *btf.Index
	eng  *layout.Engine
	opts Options
	bag  *diag.Bag

	le bool // target byte order is little-endian

	emitOrder []btf.TypeID
	typeNames map[btf.TypeID]string
	layouts   map[btf.TypeID]*layout.TypeLayout
	skipped   map[btf.TypeID]bool
	scope     *names.Scope
	secViews  []secView

	buf        strings.Builder
	needsEmbed bool
	needsMath  bool
}

// Generate emits the complete binding source for the catalogue.
// Recoverable findings (unsupported constructs, skipped dependents)
// are recorded in the bag; a fatal finding aborts with empty output.
func Generate(ix *btf.Index, eng *layout.Engine, opts Options, bag *diag.Bag) (string, error) {
	e := &Emitter{
		ix:        ix,
		eng:       eng,
		opts:      opts.Normalize(),
		bag:       bag,
		le:        eng.Target.Order == binary.LittleEndian,
		typeNames: make(map[btf.TypeID]string),
		layouts:   make(map[btf.TypeID]*layout.TypeLayout),
		skipped:   make(map[btf.TypeID]bool),
	}

	if err := e.prepare(); err != nil {
		return "", err
	}
	if bag.HasFatal() {
		return "", nil
	}

	e.emitTypes()
	e.emitDatasecs()
	e.emitSkeleton()

	if bag.HasFatal() {
		return "", nil
	}
	return e.assemble(), nil
}

// prepare selects the emission set, resolves layouts, reports
// unsupported constructs, and assigns every identifier.
func (e *Emitter) prepare() error {
	e.scope = names.NewScope(
		// Claimed by the fixed parts of every generated file.
		"skel", "embed", "math", "unsafe",
	)

	e.resolveLayouts()
	e.assignNames()
	e.orderTypes()
	return nil
}

// candidate reports whether the catalogue entry becomes a generated
// type of its own.
func (e *Emitter) candidate(t *btf.Type) bool {
	switch t.Kind {
	case btf.KindStruct, btf.KindUnion, btf.KindEnum, btf.KindEnum64:
		return true
	case btf.KindTypedef:
		return true
	}
	return false
}

// resolveLayouts walks every candidate, resolving and memoizing its
// layout. Unsupported constructs are diagnosed and the type (plus any
// dependent that cannot be emitted without it) is excluded; layout
// disagreements are fatal.
func (e *Emitter) resolveLayouts() {
	for i := 0; i < e.ix.NumTypes(); i++ {
		id := btf.TypeID(uint32(i))
		t := e.ix.MustLookup(id)
		if !e.candidate(t) && t.Kind != btf.KindDatasec {
			continue
		}
		if t.Kind == btf.KindTypedef && e.typedefTarget(t) == nil {
			// Typedefs of function prototypes and void are emitted as
			// documented address aliases; no layout needed.
			continue
		}

		l, err := e.eng.LayoutOf(id)
		if err == nil {
			ll := l
			e.layouts[id] = &ll
			e.checkPackedComposites(id, &ll, t)
			continue
		}

		lerr, ok := err.(*layout.Error)
		if !ok {
			e.bag.Add(diag.NewError(diag.LayMismatch, diag.TypeLoc(uint32(id)), err.Error()))
			continue
		}
		switch lerr.Kind {
		case layout.ErrUnsized:
			// Recoverable: skip the type, report the root cause once
			// and the dependent separately.
			e.skip(id, lerr)
		case layout.ErrRecursiveValue:
			e.bag.Add(diag.NewError(diag.LayRecursiveValue, diag.TypeLoc(uint32(lerr.Type)), lerr.Error()))
		case layout.ErrBitfieldOverflow:
			e.bag.Add(diag.NewError(diag.LayBitfieldOverflow, locOf(lerr), lerr.Error()))
		default:
			e.bag.Add(diag.NewError(diag.LayMismatch, locOf(lerr), lerr.Error()))
		}
	}
}

func locOf(lerr *layout.Error) diag.Loc {
	if lerr.Member >= 0 {
		return diag.MemberLoc(uint32(lerr.Type), lerr.Member)
	}
	return diag.TypeLoc(uint32(lerr.Type))
}

func (e *Emitter) skip(id btf.TypeID, lerr *layout.Error) {
	if e.skipped[id] {
		return
	}
	e.skipped[id] = true
	if lerr.Type == id {
		e.bag.Add(diag.NewWarning(diag.GenUnsupportedConstruct, diag.TypeLoc(uint32(id)), lerr.Msg))
		return
	}
	e.bag.Add(diag.NewWarning(diag.GenSkippedDependent, diag.TypeLoc(uint32(id)),
		fmt.Sprintf("depends on unemittable type#%d", lerr.Type)).
		WithNote(diag.TypeLoc(uint32(lerr.Type)), lerr.Msg))
}

// checkPackedComposites rejects composite members placed below their
// natural alignment: scalar fallbacks exist, but a composite cannot be
// reconstructed from raw storage without its own accessors.
func (e *Emitter) checkPackedComposites(id btf.TypeID, l *layout.TypeLayout, t *btf.Type) {
	if !t.Kind.IsComposite() {
		return
	}
	for i, f := range l.Fields {
		if !f.Packed {
			continue
		}
		mt := e.ix.MustLookup(e.ix.Resolve(t.Members[i].Type))
		if mt.Kind.IsComposite() || mt.Kind == btf.KindArray {
			e.skipped[id] = true
			e.bag.Add(diag.NewWarning(diag.GenUnsupportedConstruct, diag.MemberLoc(uint32(id), i),
				fmt.Sprintf("packed composite member %q has no raw-storage fallback", t.Members[i].Name)))
			return
		}
	}
}

// typedefTarget resolves what a typedef aliases for emission purposes.
// Returns nil for targets with no Go value representation (function
// prototypes, void); those are emitted as address aliases instead.
func (e *Emitter) typedefTarget(t *btf.Type) *btf.Type {
	under := e.ix.MustLookup(e.ix.Resolve(t.Ref))
	switch under.Kind {
	case btf.KindFuncProto, btf.KindVoid:
		return nil
	}
	return under
}

// dependentSkipped propagates skips: a type whose by-value member set
// includes a skipped type cannot be emitted either. Reported, never
// silently dropped.
func (e *Emitter) dependentSkipped(id btf.TypeID) bool {
	if e.skipped[id] {
		return true
	}
	t := e.ix.MustLookup(e.ix.Resolve(id))
	switch t.Kind {
	case btf.KindStruct, btf.KindUnion:
		for i := range t.Members {
			mid := e.ix.Resolve(t.Members[i].Type)
			mt := e.ix.MustLookup(mid)
			if mt.Kind == btf.KindPointer {
				continue
			}
			if e.dependentSkipped(mid) {
				e.skipped[id] = true
				e.bag.Add(diag.NewWarning(diag.GenSkippedDependent, diag.MemberLoc(uint32(id), i),
					fmt.Sprintf("member %q depends on a skipped type", t.Members[i].Name)))
				return true
			}
		}
	case btf.KindArray:
		if e.dependentSkipped(e.ix.Resolve(t.Array.Elem)) {
			e.skipped[id] = true
			return true
		}
	}
	return false
}

// assemble stitches the header (package clause and imports, which are
// only known after the body is emitted) onto the body.
func (e *Emitter) assemble() string {
	var out strings.Builder
	out.Grow(e.buf.Len() + 512)

	fmt.Fprintf(&out, "// Code generated by skelgen from %s; DO NOT EDIT.\n\n", e.opts.EmbedPath)
	fmt.Fprintf(&out, "package %s\n\n", e.opts.Package)

	out.WriteString("import (\n")
	if e.needsEmbed {
		out.WriteString("\t_ \"embed\"\n")
	}
	if e.needsMath {
		out.WriteString("\t\"math\"\n")
	}
	if e.needsEmbed || e.needsMath {
		out.WriteString("\n")
	}
	fmt.Fprintf(&out, "\tskel %q\n", e.opts.RuntimePackage)
	out.WriteString(")\n\n")

	out.WriteString(e.buf.String())
	return out.String()
}

func (e *Emitter) printf(format string, args ...any) {
	fmt.Fprintf(&e.buf, format, args...)
}
