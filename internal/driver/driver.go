// Package driver wires the generation pipeline: read the catalogue,
// parse it, resolve layout for the target, emit the binding source.
// It owns the translation of parser failures into diagnostics and the
// disk cache that skips regeneration for unchanged inputs.
package driver

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"os"

	"skelgen/internal/btf"
	"skelgen/internal/diag"
	"skelgen/internal/gen"
	"skelgen/internal/layout"
)

// DefaultMaxDiagnostics bounds the bag of one generation run.
const DefaultMaxDiagnostics = 256

// Result is one finished generation: the binding source (empty when a
// fatal diagnostic aborted emission) and the sorted, deduplicated
// findings.
type Result struct {
	Code string
	Bag  *diag.Bag
}

// Failed reports whether the run produced no usable output.
func (r *Result) Failed() bool {
	return r.Code == ""
}

// Generate runs the pipeline over one raw catalogue blob.
//
// Malformed input is not an error return: it becomes a fatal
// diagnostic in the result, so callers report parse failures and
// layout failures through one channel. The error return is reserved
// for internal faults.
func Generate(catalogue []byte, opts gen.Options) (*Result, error) {
	bag := diag.NewBag(DefaultMaxDiagnostics)

	ix, err := btf.Parse(catalogue)
	if err != nil {
		var me *btf.MalformedError
		if !errors.As(err, &me) {
			return nil, err
		}
		bag.Add(diag.NewError(catCode(me.Kind), diag.TypeLoc(uint32(me.Type)), me.Msg))
		return &Result{Bag: bag}, nil
	}

	eng := layout.New(layout.BPF(ix.ByteOrder()), ix)
	code, err := gen.Generate(ix, eng, opts, bag)
	if err != nil {
		return nil, err
	}
	bag.Sort()
	bag.Dedup()
	return &Result{Code: code, Bag: bag}, nil
}

// GenerateFile reads one object or raw catalogue file and generates
// its bindings, consulting the cache when one is given.
func GenerateFile(path string, opts gen.Options, cache *DiskCache) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	catalogue, err := CatalogueBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	key := CacheKey(catalogue, opts)
	if cached, ok := cacheLookup(cache, key); ok {
		return cached, nil
	}
	res, err := Generate(catalogue, opts)
	if err != nil {
		return nil, err
	}
	cacheStore(cache, key, res)
	return res, nil
}

// CatalogueBytes extracts the type catalogue from raw file bytes. A
// compiled ELF object carries it in the .BTF section; anything else is
// treated as a bare catalogue blob.
func CatalogueBytes(raw []byte) ([]byte, error) {
	if !bytes.HasPrefix(raw, []byte(elf.ELFMAG)) {
		return raw, nil
	}
	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	defer f.Close()
	sec := f.Section(".BTF")
	if sec == nil {
		return nil, errors.New("object has no .BTF section")
	}
	return sec.Data()
}

// catCode maps a parse failure class onto its diagnostic code.
func catCode(k btf.ErrKind) diag.Code {
	switch k {
	case btf.ErrTruncated:
		return diag.CatTruncated
	case btf.ErrBadMagic:
		return diag.CatBadMagic
	case btf.ErrUnknownKind:
		return diag.CatUnknownKind
	case btf.ErrIndexOutOfRange:
		return diag.CatIndexOutOfRange
	case btf.ErrBadStringOffset:
		return diag.CatBadStringOffset
	case btf.ErrBadRecord:
		return diag.CatBadMemberRecord
	default:
		return diag.CatMalformed
	}
}
