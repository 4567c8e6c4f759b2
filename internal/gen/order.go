package gen

import (
	"fmt"

	"skelgen/internal/btf"
	"skelgen/internal/names"
)

// assignNames gives every emitted type its final Go identifier.
//
// Named types are claimed first in catalogue index order. Anonymous
// types are then named from their enclosing context — the first named
// container that embeds them by value, qualified by the member name —
// iterated to a fixpoint so that anonymous types nested inside
// anonymous types resolve too. Whatever remains unreferenced falls
// back to an index-qualified synthetic name.
func (e *Emitter) assignNames() {
	for i := 0; i < e.ix.NumTypes(); i++ {
		id := btf.TypeID(uint32(i))
		t := e.ix.MustLookup(id)
		if !e.candidate(t) || e.dependentSkipped(id) {
			continue
		}
		if t.Name == "" {
			continue
		}
		e.typeNames[id] = e.scope.Claim(e.opts.TypePrefix+names.Exported(t.Name), i)
	}

	// Context naming for anonymous types. Each pass can only name
	// types embedded in already-named containers, so the pass count is
	// bounded by the deepest anonymous nesting.
	for {
		if !e.nameAnonymousPass() {
			break
		}
	}

	for i := 0; i < e.ix.NumTypes(); i++ {
		id := btf.TypeID(uint32(i))
		t := e.ix.MustLookup(id)
		if !e.candidate(t) || t.Name != "" || e.skipped[id] {
			continue
		}
		if _, ok := e.typeNames[id]; ok {
			continue
		}
		e.typeNames[id] = e.scope.Claim(fmt.Sprintf("%sAnonT%d", e.opts.TypePrefix, i), i)
	}
}

func (e *Emitter) nameAnonymousPass() bool {
	progress := false
	for i := 0; i < e.ix.NumTypes(); i++ {
		id := btf.TypeID(uint32(i))
		container, ok := e.typeNames[id]
		if !ok {
			continue
		}
		t := e.ix.MustLookup(id)
		if !t.Kind.IsComposite() {
			continue
		}
		for mi := range t.Members {
			m := &t.Members[mi]
			mid := e.ix.Resolve(m.Type)
			mt := e.ix.MustLookup(mid)
			if !e.candidate(mt) || mt.Name != "" || e.skipped[mid] {
				continue
			}
			if _, named := e.typeNames[mid]; named {
				continue
			}
			qualifier := names.Exported(m.Name)
			if qualifier == "" {
				qualifier = fmt.Sprintf("T%d", mi)
			}
			e.typeNames[mid] = e.scope.Claim(container+qualifier, int(mid))
			progress = true
		}
	}
	return progress
}

// orderTypes produces the emission order: a post-order walk over
// contains-by-value edges, so a type appears only after every type it
// embeds. Pointer edges carry no ordering. Roots are visited in index
// order, which makes the whole order deterministic.
func (e *Emitter) orderTypes() {
	visited := make(map[btf.TypeID]bool, e.ix.NumTypes())

	var visit func(id btf.TypeID)
	visit = func(id btf.TypeID) {
		id = e.ix.Resolve(id)
		if visited[id] {
			return
		}
		visited[id] = true
		t := e.ix.MustLookup(id)
		switch t.Kind {
		case btf.KindStruct, btf.KindUnion:
			for i := range t.Members {
				mid := e.ix.Resolve(t.Members[i].Type)
				if e.ix.MustLookup(mid).Kind == btf.KindPointer {
					continue
				}
				visit(mid)
			}
		case btf.KindArray:
			visit(t.Array.Elem)
		}
		if _, named := e.typeNames[id]; named && !e.skipped[id] {
			e.emitOrder = append(e.emitOrder, id)
		}
	}

	for i := 0; i < e.ix.NumTypes(); i++ {
		id := btf.TypeID(uint32(i))
		t := e.ix.MustLookup(id)
		if t.Kind == btf.KindTypedef {
			// A typedef orders after its target but keeps its own
			// place as an emission root.
			visit(t.Ref)
			if _, named := e.typeNames[id]; named && !visited[id] {
				visited[id] = true
				e.emitOrder = append(e.emitOrder, id)
			}
			continue
		}
		visit(id)
	}
}
