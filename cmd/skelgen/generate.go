package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"skelgen/internal/driver"
	"skelgen/internal/gen"
	"skelgen/internal/project"
)

const noManifestMessage = "no skelgen.toml found\nplease specify objects explicitly, e.g.:\n  skelgen generate bpf/counter.bpf.o"

var (
	genOut          string
	genPackage      string
	genObjectName   string
	genRuntime      string
	genTypePrefix   string
	genRawAccessors bool
	genJobs         int
	genNoCache      bool
	genCflags       []string
)

func init() {
	generateCmd.Flags().StringVarP(&genOut, "out", "o", "", "output file (single object only; default <object>_skel.go)")
	generateCmd.Flags().StringVar(&genPackage, "package", "", "package clause of the generated file")
	generateCmd.Flags().StringVar(&genObjectName, "object-name", "", "logical object name (default derived from the file name)")
	generateCmd.Flags().StringVar(&genRuntime, "runtime", "", "import path of the skeleton runtime package")
	generateCmd.Flags().StringVar(&genTypePrefix, "type-prefix", "", "prefix for every generated type name")
	generateCmd.Flags().BoolVar(&genRawAccessors, "raw-accessors", false, "emit raw byte access next to typed section views")
	generateCmd.Flags().IntVar(&genJobs, "jobs", 0, "parallel generation jobs (0 = GOMAXPROCS)")
	generateCmd.Flags().BoolVar(&genNoCache, "no-cache", false, "bypass the generation cache")
	generateCmd.Flags().StringArrayVar(&genCflags, "cflags", nil, "compile flags recorded in the cache fingerprint")
}

var generateCmd = &cobra.Command{
	Use:   "generate [objects...]",
	Short: "Generate Go bindings for compiled BPF objects",
	Long: `Generate reads each object's type catalogue and emits the Go types,
data section views and lifecycle skeleton for it. Without arguments the
objects come from the nearest skelgen.toml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		quiet, _ := cmd.Flags().GetBool("quiet")
		colorFlag, _ := cmd.Flags().GetString("color")
		mode, err := readColorMode(colorFlag)
		if err != nil {
			return err
		}
		applyColorMode(mode)

		tasks, outs, err := collectTasks(args)
		if err != nil {
			return err
		}

		var cache *driver.DiskCache
		if !genNoCache {
			// A broken cache only costs regeneration.
			cache, _ = driver.OpenDiskCache("skelgen")
		}

		results, err := driver.GenerateAll(cmd.Context(), tasks, genJobs, cache)
		if err != nil {
			return err
		}

		failed := 0
		for i, tr := range results {
			name := tr.Task.Options.ObjectName
			if tr.Err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", name, tr.Err)
				continue
			}
			printBag(cmd.ErrOrStderr(), name, tr.Res.Bag, quiet)
			if tr.Res.Failed() {
				failed++
				continue
			}
			if err := writeOutput(outs[i], tr.Res.Code); err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", name, err)
				continue
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", tr.Task.Object, outs[i])
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d objects failed", failed, len(results))
		}
		return nil
	},
}

// collectTasks builds the task list from explicit object arguments or,
// absent those, from the project manifest.
func collectTasks(args []string) ([]driver.Task, []string, error) {
	if len(args) > 0 {
		return argTasks(args)
	}
	manifest, ok, err := project.Load(".")
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%s", noManifestMessage)
	}
	return manifestTasks(manifest)
}

func argTasks(args []string) ([]driver.Task, []string, error) {
	if genOut != "" && len(args) > 1 {
		return nil, nil, fmt.Errorf("--out is only valid with a single object")
	}
	tasks := make([]driver.Task, 0, len(args))
	outs := make([]string, 0, len(args))
	for _, objPath := range args {
		name := genObjectName
		if name == "" || len(args) > 1 {
			name = objectNameFromPath(objPath)
		}
		out := genOut
		if out == "" {
			out = filepath.Join(filepath.Dir(objPath), name+"_skel.go")
		}
		tasks = append(tasks, driver.Task{
			Object: objPath,
			Options: gen.Options{
				Package:          genPackage,
				ObjectName:       name,
				RuntimePackage:   genRuntime,
				TypePrefix:       genTypePrefix,
				EmitRawAccessors: genRawAccessors,
				EmbedPath:        filepath.Base(objPath),
				Cflags:           genCflags,
			},
		})
		outs = append(outs, out)
	}
	return tasks, outs, nil
}

func manifestTasks(m *project.Manifest) ([]driver.Task, []string, error) {
	if genJobs == 0 {
		genJobs = m.Config.Generate.Jobs
	}
	tasks := make([]driver.Task, 0, len(m.Config.Objects))
	outs := make([]string, 0, len(m.Config.Objects))
	for i := range m.Config.Objects {
		o := &m.Config.Objects[i]
		tasks = append(tasks, driver.Task{
			Object: m.ObjectPath(o),
			Options: gen.Options{
				Package:          o.Package,
				ObjectName:       o.Name,
				RuntimePackage:   m.Config.Generate.Runtime,
				TypePrefix:       o.TypePrefix,
				EmitRawAccessors: m.Config.Generate.RawAccessors || genRawAccessors,
				EmbedPath:        filepath.Base(o.Path),
				Cflags:           o.Cflags,
			},
		})
		outs = append(outs, m.OutPath(o))
	}
	return tasks, outs, nil
}

// objectNameFromPath derives the logical object name from the file
// name, dropping the conventional .bpf.o suffix.
func objectNameFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".o")
	base = strings.TrimSuffix(base, ".bpf")
	base = strings.TrimSuffix(base, ".btf")
	if base == "" {
		return "bpf"
	}
	return base
}

func writeOutput(path, code string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(code), 0o644)
}
