package project

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest is a loaded skelgen.toml plus its location.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// Config mirrors the manifest schema.
//
//	[project]
//	name = "mytool"
//
//	[generate]
//	runtime = "skelgen/skel"
//	jobs = 0
//	raw_accessors = false
//
//	[[object]]
//	name = "counter"
//	path = "bpf/counter.bpf.o"
//	out = "internal/counter/counter_skel.go"
//	package = "counter"
type Config struct {
	Project  ProjectSection  `toml:"project"`
	Generate GenerateSection `toml:"generate"`
	Objects  []ObjectConfig  `toml:"object"`
}

type ProjectSection struct {
	Name string `toml:"name"`
}

// GenerateSection carries project-wide generation defaults.
type GenerateSection struct {
	Runtime      string `toml:"runtime"`
	Jobs         int    `toml:"jobs"`
	RawAccessors bool   `toml:"raw_accessors"`
}

// ObjectConfig declares one object to generate bindings for. Path and
// Out are relative to the project root.
type ObjectConfig struct {
	Name       string   `toml:"name"`
	Path       string   `toml:"path"`
	Out        string   `toml:"out"`
	Package    string   `toml:"package"`
	TypePrefix string   `toml:"type_prefix"`
	Cflags     []string `toml:"cflags"`
}

// Load locates and parses the nearest manifest above startDir.
func Load(startDir string) (*Manifest, bool, error) {
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := loadConfig(manifestPath)
	if err != nil {
		return nil, true, err
	}
	return &Manifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, true, nil
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("project") {
		return Config{}, fmt.Errorf("%s: missing [project]", path)
	}
	if !meta.IsDefined("project", "name") || strings.TrimSpace(cfg.Project.Name) == "" {
		return Config{}, fmt.Errorf("%s: missing [project].name", path)
	}
	if len(cfg.Objects) == 0 {
		return Config{}, fmt.Errorf("%s: no [[object]] entries", path)
	}
	seen := make(map[string]bool, len(cfg.Objects))
	for i := range cfg.Objects {
		o := &cfg.Objects[i]
		if strings.TrimSpace(o.Name) == "" {
			return Config{}, fmt.Errorf("%s: [[object]] #%d: missing name", path, i+1)
		}
		if seen[o.Name] {
			return Config{}, fmt.Errorf("%s: duplicate object name %q", path, o.Name)
		}
		seen[o.Name] = true
		if strings.TrimSpace(o.Path) == "" {
			return Config{}, fmt.Errorf("%s: object %q: missing path", path, o.Name)
		}
		if o.Out == "" {
			o.Out = o.Name + "_skel.go"
		}
	}
	return cfg, nil
}

// ObjectPath resolves an object's input path against the project root.
func (m *Manifest) ObjectPath(o *ObjectConfig) string {
	return filepath.Join(m.Root, filepath.FromSlash(o.Path))
}

// OutPath resolves an object's output path against the project root.
func (m *Manifest) OutPath(o *ObjectConfig) string {
	return filepath.Join(m.Root, filepath.FromSlash(o.Out))
}
