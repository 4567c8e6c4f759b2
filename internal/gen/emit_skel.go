package gen

import (
	"skelgen/internal/btf"
	"skelgen/internal/names"
)

// emitSkeleton renders the object lifecycle: builder, opened, loaded
// and attached states. Each transition moves handle ownership forward;
// a spent state closes to a no-op, so Close is always safe to defer at
// every stage.
func (e *Emitter) emitSkeleton() {
	obj := e.opts.ObjectName

	builder := e.scope.Claim(e.opts.TypePrefix+"Builder", 0)
	newBuilder := e.scope.Claim("New"+builder, 0)
	opened := e.scope.Claim("Open"+e.opts.TypePrefix, 0)
	loaded := e.scope.Claim("Loaded"+e.opts.TypePrefix, 0)
	attached := e.scope.Claim("Attached"+e.opts.TypePrefix, 0)
	embedVar := e.scope.Claim(names.Unexported(obj)+"Object", 0)

	programs := e.programNames()
	maps := e.mapNames()

	e.needsEmbed = true
	e.printf("//go:embed %s\n", e.opts.EmbedPath)
	e.printf("var %s []byte\n\n", embedVar)

	// Builder.
	e.printf("// %s opens the embedded %q object.\n", builder, obj)
	e.printf("type %s struct{}\n\n", builder)
	e.printf("func %s() *%s {\n\treturn &%s{}\n}\n\n", newBuilder, builder, builder)
	e.printf("func (b *%s) ObjectName() string {\n\treturn %q\n}\n\n", builder, obj)
	e.printf("// Open parses the embedded object through the loader. The\n")
	e.printf("// returned state owns the handle until Load or Close.\n")
	e.printf("func (b *%s) Open(l skel.Loader, opts skel.OpenOpts) (*%s, error) {\n", builder, opened)
	e.printf("\th, err := l.Open(%s, opts)\n", embedVar)
	e.printf("\tif err != nil {\n\t\treturn nil, &skel.OpenError{Object: %q, Err: err}\n\t}\n", obj)
	e.printf("\treturn &%s{l: l, h: h}, nil\n}\n\n", opened)
	e.printf("// OpenObject implements skel.Builder.\n")
	e.printf("func (b *%s) OpenObject(l skel.Loader, opts skel.OpenOpts) (skel.Opened, error) {\n", builder)
	e.printf("\to, err := b.Open(l, opts)\n")
	e.printf("\tif o == nil {\n\t\treturn nil, err\n\t}\n\treturn o, err\n}\n\n")

	// Opened state.
	e.printf("// %s is the parsed-but-not-loaded state. Initial section\n", opened)
	e.printf("// values can still be written here, before verification.\n")
	e.printf("type %s struct {\n\tl    skel.Loader\n\th    skel.Handle\n\tdone bool\n}\n\n", opened)
	for _, sv := range e.secViews {
		e.printf("// Init%s returns the pre-load exclusive view of %q.\n", sv.ident, sv.secName)
		e.printf("func (o *%s) Init%s() (%s, error) {\n", opened, sv.ident, sv.excl)
		e.printf("\tif o.done {\n\t\treturn %s{}, skel.ErrClosed\n\t}\n", sv.excl)
		e.printf("\tsec, err := o.l.Section(o.h, %q)\n", sv.secName)
		e.printf("\tif err != nil {\n\t\treturn %s{}, err\n\t}\n", sv.excl)
		e.printf("\treturn %s{sec: sec}, nil\n}\n\n", sv.excl)
	}
	e.printf("// Load verifies and loads the object. On success the handle\n")
	e.printf("// moves to the returned state and this one is spent. A load\n")
	e.printf("// failure is final; retrying cannot succeed.\n")
	e.printf("func (o *%s) Load() (*%s, error) {\n", opened, loaded)
	e.printf("\tif o.done {\n\t\treturn nil, skel.ErrClosed\n\t}\n")
	e.printf("\tif err := o.l.Load(o.h); err != nil {\n")
	e.printf("\t\tif le, ok := err.(*skel.LoadError); ok {\n\t\t\treturn nil, le\n\t\t}\n")
	e.printf("\t\treturn nil, &skel.LoadError{Object: %q, Err: err}\n\t}\n", obj)
	e.printf("\to.done = true\n")
	e.printf("\treturn &%s{l: o.l, h: o.h}, nil\n}\n\n", loaded)
	e.printf("// LoadObject implements skel.Opened.\n")
	e.printf("func (o *%s) LoadObject() (skel.Loaded, error) {\n", opened)
	e.printf("\ts, err := o.Load()\n")
	e.printf("\tif s == nil {\n\t\treturn nil, err\n\t}\n\treturn s, err\n}\n\n")
	e.printf("// Close releases the object unless ownership already moved on.\n")
	e.printf("func (o *%s) Close() error {\n", opened)
	e.printf("\tif o.done {\n\t\treturn nil\n\t}\n\to.done = true\n\treturn o.l.Close(o.h)\n}\n\n")

	// Loaded state.
	e.printf("// %s is the verified, loaded state. Section views and map\n", loaded)
	e.printf("// handles resolve here.\n")
	e.printf("type %s struct {\n\tl    skel.Loader\n\th    skel.Handle\n\tdone bool\n}\n\n", loaded)
	e.emitResolvers(loaded, "s")
	for _, name := range maps {
		ident := names.Exported(name)
		e.printf("// %sMap resolves map %q.\n", ident, name)
		e.printf("func (s *%s) %sMap() (skel.Map, error) {\n", loaded, ident)
		e.printf("\tif s.done {\n\t\treturn nil, skel.ErrClosed\n\t}\n")
		e.printf("\treturn s.l.Map(s.h, %q)\n}\n\n", name)
	}
	e.printf("// Attach attaches every program in declaration order. Programs\n")
	e.printf("// attached before a failure stay attached; the returned state\n")
	e.printf("// owns their links even when err is a *skel.AttachError.\n")
	e.printf("func (s *%s) Attach() (*%s, error) {\n", loaded, attached)
	e.printf("\tif s.done {\n\t\treturn nil, skel.ErrClosed\n\t}\n")
	e.printf("\ts.done = true\n")
	e.printf("\ta := &%s{l: s.l, h: s.h}\n", attached)
	if len(programs) > 0 {
		e.printf("\tvar fails []skel.AttachFailure\n")
		e.printf("\tvar oks []string\n")
		e.printf("\tfor _, prog := range []string{")
		for i, p := range programs {
			if i > 0 {
				e.printf(", ")
			}
			e.printf("%q", p)
		}
		e.printf("} {\n")
		e.printf("\t\tlink, err := s.l.Attach(s.h, prog)\n")
		e.printf("\t\tif err != nil {\n")
		e.printf("\t\t\tfails = append(fails, skel.AttachFailure{Program: prog, Err: err})\n")
		e.printf("\t\t\tcontinue\n\t\t}\n")
		e.printf("\t\ta.links = append(a.links, link)\n")
		e.printf("\t\toks = append(oks, prog)\n\t}\n")
		e.printf("\tif len(fails) > 0 {\n")
		e.printf("\t\treturn a, &skel.AttachError{Object: %q, Failures: fails, Attached: oks}\n\t}\n", obj)
	}
	e.printf("\treturn a, nil\n}\n\n")
	e.printf("// AttachObject implements skel.Loaded.\n")
	e.printf("func (s *%s) AttachObject() (skel.Attached, error) {\n", loaded)
	e.printf("\ta, err := s.Attach()\n")
	e.printf("\tif a == nil {\n\t\treturn nil, err\n\t}\n\treturn a, err\n}\n\n")
	e.printf("// Close releases the object unless ownership already moved on.\n")
	e.printf("func (s *%s) Close() error {\n", loaded)
	e.printf("\tif s.done {\n\t\treturn nil\n\t}\n\ts.done = true\n\treturn s.l.Close(s.h)\n}\n\n")

	// Attached state.
	e.printf("// %s is the terminal state: programs attached, links held.\n", attached)
	e.printf("type %s struct {\n\tl     skel.Loader\n\th     skel.Handle\n\tlinks []skel.Link\n\tdone  bool\n}\n\n", attached)
	e.printf("// Links returns the held links in attach order.\n")
	e.printf("func (s *%s) Links() []skel.Link {\n\treturn s.links\n}\n\n", attached)
	e.emitResolvers(attached, "s")
	for _, name := range maps {
		ident := names.Exported(name)
		e.printf("// %sMap resolves map %q.\n", ident, name)
		e.printf("func (s *%s) %sMap() (skel.Map, error) {\n", attached, ident)
		e.printf("\tif s.done {\n\t\treturn nil, skel.ErrClosed\n\t}\n")
		e.printf("\treturn s.l.Map(s.h, %q)\n}\n\n", name)
	}
	e.printf("// Close detaches every link in reverse attach order and then\n")
	e.printf("// releases the object. Cleanup continues past the first error;\n")
	e.printf("// the first error is the one reported.\n")
	e.printf("func (s *%s) Close() error {\n", attached)
	e.printf("\tif s.done {\n\t\treturn nil\n\t}\n\ts.done = true\n")
	e.printf("\tvar first error\n")
	e.printf("\tfor i := len(s.links) - 1; i >= 0; i-- {\n")
	e.printf("\t\tif err := s.links[i].Detach(); err != nil && first == nil {\n")
	e.printf("\t\t\tfirst = err\n\t\t}\n\t}\n")
	e.printf("\tif err := s.l.Close(s.h); err != nil && first == nil {\n")
	e.printf("\t\tfirst = err\n\t}\n")
	e.printf("\treturn first\n}\n\n")
}

// emitResolvers writes the per-section view accessors shared by the
// loaded and attached states.
func (e *Emitter) emitResolvers(recv, rv string) {
	for _, sv := range e.secViews {
		e.printf("// %sShared returns the shared view of %q.\n", sv.ident, sv.secName)
		e.printf("func (%s *%s) %sShared() (%s, error) {\n", rv, recv, sv.ident, sv.shared)
		e.printf("\tif %s.done {\n\t\treturn %s{}, skel.ErrClosed\n\t}\n", rv, sv.shared)
		e.printf("\tsec, err := %s.l.Section(%s.h, %q)\n", rv, rv, sv.secName)
		e.printf("\tif err != nil {\n\t\treturn %s{}, err\n\t}\n", sv.shared)
		e.printf("\treturn %s{sec: sec}, nil\n}\n\n", sv.shared)
		e.printf("// %sExclusive returns the exclusive view of %q.\n", sv.ident, sv.secName)
		e.printf("func (%s *%s) %sExclusive() (%s, error) {\n", rv, recv, sv.ident, sv.excl)
		e.printf("\tif %s.done {\n\t\treturn %s{}, skel.ErrClosed\n\t}\n", rv, sv.excl)
		e.printf("\tsec, err := %s.l.Section(%s.h, %q)\n", rv, rv, sv.secName)
		e.printf("\tif err != nil {\n\t\treturn %s{}, err\n\t}\n", sv.excl)
		e.printf("\treturn %s{sec: sec}, nil\n}\n\n", sv.excl)
	}
}

// programNames collects the attachable programs in catalogue order.
func (e *Emitter) programNames() []string {
	var out []string
	for i := 0; i < e.ix.NumTypes(); i++ {
		t := e.ix.MustLookup(btf.TypeID(uint32(i)))
		if t.Kind != btf.KindFunc || t.Name == "" {
			continue
		}
		if t.Linkage == btf.LinkageExtern {
			continue
		}
		out = append(out, t.Name)
	}
	return out
}

// mapNames collects the map definitions from the ".maps" section in
// declaration order.
func (e *Emitter) mapNames() []string {
	var out []string
	for _, sid := range e.ix.Datasecs() {
		t := e.ix.MustLookup(sid)
		if t.Name != ".maps" {
			continue
		}
		for _, dv := range t.Vars {
			vt := e.ix.MustLookup(dv.Type)
			if vt.Name != "" {
				out = append(out, vt.Name)
			}
		}
	}
	return out
}
