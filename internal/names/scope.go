package names

import "fmt"

// Scope hands out pairwise-distinct identifiers inside one namespace
// (the generated module's top level, or one generated struct's fields
// and methods). Collisions are resolved by appending a numeric suffix
// derived from the caller-supplied ordinal — catalogue index for
// types, member ordinal for fields — so the outcome is independent of
// call patterns and map iteration order.
type Scope struct {
	taken map[string]bool
}

// NewScope builds a scope with a set of pre-claimed names (generated
// helpers, the runtime package alias, padding prefixes).
func NewScope(reserved ...string) *Scope {
	s := &Scope{taken: make(map[string]bool, len(reserved)+16)}
	for _, r := range reserved {
		s.taken[r] = true
	}
	return s
}

// Claim reserves candidate within the scope, disambiguating with the
// ordinal when the plain name is already taken. Claim panics on an
// empty candidate: synthesis happens before claiming.
func (s *Scope) Claim(candidate string, ordinal int) string {
	if candidate == "" {
		panic("names: empty candidate identifier")
	}
	name := candidate
	if s.taken[name] {
		name = fmt.Sprintf("%s_%d", candidate, ordinal)
	}
	// The suffixed form can itself collide with a catalogue name that
	// legitimately ends in _<ordinal>; keep extending deterministically.
	for s.taken[name] {
		name += "_"
	}
	s.taken[name] = true
	return name
}

// Taken reports whether an identifier is already claimed.
func (s *Scope) Taken(name string) bool {
	return s.taken[name]
}
