// Package manifest reads the YAML project manifest that declares a
// directory's libraries and artifacts, and applies it to a build.Project.
//
// A manifest looks like:
//
//	libraries:
//	  - name: nl3
//	    system: libnl-3.0
//	  - name: rdma
//	    link: [-lrdmacm, -libverbs]
//	artifacts:
//	  - name: beegfs-meta
//	    sources: [source/*.cpp, source/net/*.cpp]
//	    libraries: [common, nl3]
//	    include: [source]
//	  - name: test-runner
//	    kind: test
//	    sources: [tests/*.cpp]
//	    libraries: [common]
//
// Strings may reference ${common} and ${thirdparty}, the configured
// common and third-party source roots.
package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/dfsbuild/cxxmk/internal/build"
	"github.com/dfsbuild/cxxmk/internal/registry"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the manifest name looked up when none is given.
const DefaultFile = "cxxmk.yaml"

// Library declares a registry entry. Exactly one of System or the flag
// lists is used.
type Library struct {
	Name string `yaml:"name"`
	// System is a pkg-config package name.
	System string   `yaml:"system,omitempty"`
	CFlags []string `yaml:"cflags,omitempty"`
	Static []string `yaml:"static,omitempty"`
	// Link defaults to Static when absent.
	Link []string `yaml:"link,omitempty"`
}

// Artifact declares one build output.
type Artifact struct {
	Name string `yaml:"name"`
	// Kind is executable (default), static, shared or test.
	Kind      string   `yaml:"kind,omitempty"`
	Sources   []string `yaml:"sources"`
	Libraries []string `yaml:"libraries,omitempty"`
	Include   []string `yaml:"include,omitempty"`
	After     []string `yaml:"after,omitempty"`
}

// Manifest is a parsed project manifest.
type Manifest struct {
	Libraries []Library  `yaml:"libraries,omitempty"`
	Artifacts []Artifact `yaml:"artifacts,omitempty"`
}

// Parse decodes a manifest. Unknown keys are rejected.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func (m *Manifest) validate() error {
	for i, lib := range m.Libraries {
		if lib.Name == "" {
			return fmt.Errorf("library %d: missing name", i)
		}
		if lib.System != "" && (lib.CFlags != nil || lib.Static != nil || lib.Link != nil) {
			return fmt.Errorf("library %s: system packages take no flags", lib.Name)
		}
	}
	for i, a := range m.Artifacts {
		if a.Name == "" {
			return fmt.Errorf("artifact %d: missing name", i)
		}
		if _, err := kindOf(a.Kind); err != nil {
			return fmt.Errorf("artifact %s: %w", a.Name, err)
		}
	}
	return nil
}

func kindOf(s string) (build.Kind, error) {
	switch s {
	case "", "executable":
		return build.Executable, nil
	case "static":
		return build.StaticLibrary, nil
	case "shared":
		return build.SharedLibrary, nil
	case "test":
		return build.TestExecutable, nil
	}
	return 0, fmt.Errorf("unknown kind %q (want executable, static, shared or test)", s)
}

// Options configures Apply.
type Options struct {
	// Dir is the directory source patterns are relative to.
	Dir string
	// Vars are extra ${name} substitutions.
	Vars map[string]string
}

// Apply registers the manifest's libraries in the project's registry and
// declares its artifacts.
func (m *Manifest) Apply(ctx context.Context, p *build.Project, opts Options) error {
	tc := p.Toolchain()
	vars := map[string]string{
		"common":     tc.CommonPath,
		"thirdparty": tc.ThirdpartyPath,
	}
	for k, v := range opts.Vars {
		vars[k] = v
	}
	x := &expander{vars: vars}

	reg := p.Registry()
	for _, lib := range m.Libraries {
		var err error
		if lib.System != "" {
			err = reg.DefineFromSystem(ctx, lib.Name, x.expand(lib.System))
		} else {
			err = reg.Define(lib.Name, registryLibrary(x, lib))
		}
		if err != nil {
			return err
		}
		if x.err != nil {
			return fmt.Errorf("library %s: %w", lib.Name, x.err)
		}
	}

	for _, a := range m.Artifacts {
		kind, _ := kindOf(a.Kind)
		sources, err := expandSources(opts.Dir, x.list(a.Sources))
		if err != nil {
			return fmt.Errorf("artifact %s: %w", a.Name, err)
		}
		libs := x.list(a.Libraries)
		include := x.list(a.Include)
		switch kind {
		case build.StaticLibrary:
			err = p.StaticLibrary(a.Name, sources, libs, include...)
		case build.SharedLibrary:
			err = p.SharedLibrary(a.Name, sources, libs, include...)
		case build.TestExecutable:
			err = p.Test(a.Name, sources, libs, include...)
		default:
			err = p.Executable(a.Name, sources, libs, include...)
		}
		if err != nil {
			return err
		}
		if x.err != nil {
			return fmt.Errorf("artifact %s: %w", a.Name, x.err)
		}
	}

	// Ordering may name artifacts declared later in the file.
	for _, a := range m.Artifacts {
		if len(a.After) == 0 {
			continue
		}
		if err := p.After(a.Name, outputsOf(p, x.list(a.After))...); err != nil {
			return err
		}
	}
	return x.err
}

func registryLibrary(x *expander, lib Library) registry.Library {
	return registry.Library{
		CompileFlags: x.list(lib.CFlags),
		StaticDeps:   x.list(lib.Static),
		LinkFlags:    x.list(lib.Link),
	}
}

// outputsOf maps artifact names in prereqs to their output files; other
// entries are kept as given.
func outputsOf(p *build.Project, prereqs []string) []string {
	out := make([]string, len(prereqs))
	for i, name := range prereqs {
		if a, ok := p.Artifact(name); ok {
			out[i] = a.Output()
		} else {
			out[i] = name
		}
	}
	return out
}

// expandSources expands glob patterns relative to dir. Plain paths are
// kept even when missing, since they may be generated.
func expandSources(dir string, patterns []string) ([]string, error) {
	var sources []string
	for _, pat := range patterns {
		if !strings.ContainsAny(pat, "*?[") {
			sources = append(sources, pat)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(dir, pat))
		if err != nil {
			return nil, fmt.Errorf("source pattern %q: %w", pat, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("source pattern %q matches no files", pat)
		}
		sort.Strings(matches)
		for _, match := range matches {
			if dir != "" {
				rel, err := filepath.Rel(dir, match)
				if err != nil {
					return nil, err
				}
				match = rel
			}
			sources = append(sources, match)
		}
	}
	return sources, nil
}

var varRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expander substitutes ${name} references, remembering the first unknown
// name. A bare $ is left alone, so linker flags like $ORIGIN survive.
type expander struct {
	vars map[string]string
	err  error
}

func (x *expander) expand(s string) string {
	return varRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := ref[2 : len(ref)-1]
		v, ok := x.vars[name]
		if !ok && x.err == nil {
			x.err = fmt.Errorf("undefined variable %s in %q", ref, s)
		}
		return v
	})
}

// list expands every element, keeping nil distinct from empty.
func (x *expander) list(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = x.expand(s)
	}
	return out
}
