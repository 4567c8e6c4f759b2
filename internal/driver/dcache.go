package driver

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"skelgen/internal/diag"
	"skelgen/internal/gen"
)

// Schema version of the cached payload. Bump on any payload or
// generated-output format change; stale entries are then ignored.
const diskCacheSchemaVersion uint16 = 1

// Digest keys one cache entry: catalogue content plus the effective
// generation options.
type Digest [sha256.Size]byte

// DiskCache stores finished generation results keyed by Digest.
// Safe for concurrent use.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// DiskPayload is the serialized form of one generation result.
type DiskPayload struct {
	Schema uint16
	Code   string
	Diags  []DiskDiagnostic
}

// DiskDiagnostic flattens one diagnostic for serialization.
type DiskDiagnostic struct {
	Severity uint8
	Code     uint16
	Type     uint32
	Member   int32
	Message  string
	Notes    []DiskNote
}

type DiskNote struct {
	Type    uint32
	Member  int32
	Message string
}

// OpenDiskCache initializes the cache at the standard user location.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// CacheKey fingerprints one generation: the catalogue bytes and every
// option that affects the output.
func CacheKey(catalogue []byte, opts gen.Options) Digest {
	opts = opts.Normalize()
	h := sha256.New()
	var schema [2]byte
	binary.LittleEndian.PutUint16(schema[:], diskCacheSchemaVersion)
	h.Write(schema[:])
	h.Write(catalogue)
	for _, s := range []string{
		opts.Package, opts.ObjectName, opts.RuntimePackage,
		opts.TypePrefix, opts.EmbedPath,
	} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	if opts.EmitRawAccessors {
		h.Write([]byte{1})
	}
	for _, f := range opts.Cflags {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

func (c *DiskCache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "objs", hex.EncodeToString(key[:])+".mp")
}

// Put serializes and atomically writes a payload.
func (c *DiskCache) Put(key Digest, payload *DiskPayload) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads a payload. A missing entry is (false, nil).
func (c *DiskCache) Get(key Digest, out *DiskPayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, err
	}
	return true, nil
}

// DropAll invalidates the whole cache.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	return os.RemoveAll(old)
}

// cacheLookup reconstructs a Result from a cache hit. Read failures
// and schema mismatches degrade to a miss.
func cacheLookup(c *DiskCache, key Digest) (*Result, bool) {
	if c == nil {
		return nil, false
	}
	var payload DiskPayload
	ok, err := c.Get(key, &payload)
	if err != nil || !ok || payload.Schema != diskCacheSchemaVersion {
		return nil, false
	}
	bag := diag.NewBag(maxInt(len(payload.Diags), DefaultMaxDiagnostics))
	for _, dd := range payload.Diags {
		d := diag.Diagnostic{
			Severity: diag.Severity(dd.Severity),
			Code:     diag.Code(dd.Code),
			Message:  dd.Message,
			Primary:  diag.Loc{Type: dd.Type, Member: int(dd.Member)},
		}
		for _, n := range dd.Notes {
			d = d.WithNote(diag.Loc{Type: n.Type, Member: int(n.Member)}, n.Message)
		}
		bag.Add(d)
	}
	return &Result{Code: payload.Code, Bag: bag}, true
}

// cacheStore persists a result. Cache write failures are ignored: the
// result is already in hand.
func cacheStore(c *DiskCache, key Digest, res *Result) {
	if c == nil {
		return
	}
	payload := &DiskPayload{
		Schema: diskCacheSchemaVersion,
		Code:   res.Code,
	}
	for _, d := range res.Bag.Items() {
		dd := DiskDiagnostic{
			Severity: uint8(d.Severity),
			Code:     uint16(d.Code),
			Type:     d.Primary.Type,
			Member:   int32(d.Primary.Member),
			Message:  d.Message,
		}
		for _, n := range d.Notes {
			dd.Notes = append(dd.Notes, DiskNote{
				Type:    n.Loc.Type,
				Member:  int32(n.Loc.Member),
				Message: n.Msg,
			})
		}
		payload.Diags = append(payload.Diags, dd)
	}
	_ = c.Put(key, payload)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
