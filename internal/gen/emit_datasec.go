package gen

import (
	"fmt"

	"skelgen/internal/btf"
	"skelgen/internal/diag"
	"skelgen/internal/names"
)

// secView records one emitted section view pair for the skeleton
// emitter.
type secView struct {
	id      btf.TypeID
	secName string // catalogue section name, e.g. ".bss"
	ident   string // exported identifier stem, e.g. "Bss"
	shared  string
	excl    string
}

// emitDatasecs renders the typed access surfaces over global data
// sections: a shared view whose reads copy, and an exclusive view that
// can write and alias. Both are handles over the same skel.Section;
// the mode is a contract with the caller, not an enforcement.
//
// The ".maps" section describes map definitions, not mmapped data, so
// it gets map handles in the skeleton instead of a view pair.
func (e *Emitter) emitDatasecs() {
	for _, sid := range e.ix.Datasecs() {
		t := e.ix.MustLookup(sid)
		if t.Name == ".maps" {
			continue
		}
		if _, ok := e.layouts[sid]; !ok {
			continue // layout failure already diagnosed
		}
		secIdent := names.Section(t.Name)
		sv := secView{
			id:      sid,
			secName: t.Name,
			ident:   secIdent,
			shared:  e.scope.Claim(e.opts.TypePrefix+secIdent+"Shared", int(sid)),
			excl:    e.scope.Claim(e.opts.TypePrefix+secIdent+"Exclusive", int(sid)),
		}
		e.secViews = append(e.secViews, sv)
		e.emitSecViews(sv, t)
	}
}

func (e *Emitter) emitSecViews(sv secView, t *btf.Type) {
	type varPlan struct {
		vi     int
		name   string // catalogue variable name
		goType string
		offset uint32
	}
	var vars []varPlan
	for vi, dv := range t.Vars {
		vt := e.ix.MustLookup(dv.Type)
		if e.skipped[e.ix.Resolve(vt.Ref)] {
			e.bag.Add(diag.NewWarning(diag.GenSkippedDependent, diag.MemberLoc(uint32(sv.id), vi),
				fmt.Sprintf("variable %q has a skipped type; no accessor generated", vt.Name)))
			continue
		}
		vars = append(vars, varPlan{
			vi:     vi,
			name:   vt.Name,
			goType: e.goTypeRef(vt.Ref),
			offset: dv.Offset,
		})
	}

	size := e.layouts[sv.id].Size

	// Shared view: getters only, every read a copy.
	ss := names.NewScope("Bytes")
	e.printf("// %s is the shared view of section %q (%d bytes). Reads\n", sv.shared, sv.secName, size)
	e.printf("// copy the variable out and are safe under concurrent updates.\n")
	e.printf("type %s struct {\n\tsec *skel.Section\n}\n\n", sv.shared)
	getters := make([]string, len(vars))
	for i, vp := range vars {
		base := names.Exported(vp.name)
		if base == "" {
			base = fmt.Sprintf("Var%d", vp.vi)
		}
		getters[i] = ss.Claim(base, vp.vi)
		e.printf("// %s reads variable %q.\n", getters[i], vp.name)
		e.printf("func (v %s) %s() %s {\n", sv.shared, getters[i], vp.goType)
		e.printf("\treturn skel.ReadVar[%s](v.sec, %d)\n", vp.goType, vp.offset)
		e.printf("}\n\n")
	}

	// Exclusive view: adds stores and in-place aliasing. The caller
	// guarantees no concurrent access for the lifetime of the view.
	es := names.NewScope("Bytes")
	e.printf("// %s is the exclusive view of section %q. It can write and\n", sv.excl, sv.secName)
	e.printf("// alias variables in place; the caller must rule out all other\n")
	e.printf("// access while holding it.\n")
	e.printf("type %s struct {\n\tsec *skel.Section\n}\n\n", sv.excl)
	for i, vp := range vars {
		get := es.Claim(getters[i], vp.vi)
		set := es.Claim("Set"+getters[i], vp.vi)
		ptr := es.Claim(getters[i]+"Ptr", vp.vi)
		e.printf("// %s reads variable %q.\n", get, vp.name)
		e.printf("func (v %s) %s() %s {\n", sv.excl, get, vp.goType)
		e.printf("\treturn skel.ReadVar[%s](v.sec, %d)\n", vp.goType, vp.offset)
		e.printf("}\n\n")
		e.printf("// %s stores variable %q.\n", set, vp.name)
		e.printf("func (v %s) %s(x %s) {\n", sv.excl, set, vp.goType)
		e.printf("\tskel.WriteVar[%s](v.sec, %d, x)\n", vp.goType, vp.offset)
		e.printf("}\n\n")
		e.printf("// %s aliases variable %q in place. The pointer must not be\n", ptr, vp.name)
		e.printf("// retained past the view.\n")
		e.printf("func (v %s) %s() *%s {\n", sv.excl, ptr, vp.goType)
		e.printf("\treturn skel.VarPtr[%s](v.sec, %d)\n", vp.goType, vp.offset)
		e.printf("}\n\n")
	}

	if e.opts.EmitRawAccessors {
		e.printf("// Bytes exposes the whole section as raw mutable bytes.\n")
		e.printf("func (v %s) Bytes() []byte {\n\treturn v.sec.Bytes()\n}\n\n", sv.excl)
	}
}
