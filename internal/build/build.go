// Package build declares artifacts (executables, static and shared
// libraries, test executables) and expands them into build graph nodes.
//
// Declarations only record names; library resolution happens in Generate, so
// an artifact may reference a library that is registered after it.
package build

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dfsbuild/cxxmk/internal/graph"
	"github.com/dfsbuild/cxxmk/internal/registry"
	"github.com/dfsbuild/cxxmk/internal/toolchain"
	"github.com/qiniu/x/log"
)

var (
	// ErrDuplicateArtifact indicates a second declaration of an artifact name
	ErrDuplicateArtifact = errors.New("artifact already declared")

	// ErrNoSources indicates an artifact declared without sources
	ErrNoSources = errors.New("artifact has no sources")

	// ErrUnknownArtifact indicates a reference to an undeclared artifact
	ErrUnknownArtifact = errors.New("unknown artifact")

	// ErrReservedName indicates an artifact named after a built-in goal
	ErrReservedName = errors.New("name is reserved for a built-in goal")
)

// Goal names registered by Generate, plus the clean goal the runners add.
const (
	BuildGoal = "build"
	TidyGoal  = "tidy"
	StripGoal = "strip"
	CleanGoal = "clean"
)

func reserved(name string) bool {
	switch name {
	case BuildGoal, TidyGoal, StripGoal, CleanGoal:
		return true
	}
	return strings.HasPrefix(name, TidyUmbrella("")) || strings.HasPrefix(name, StripTarget(""))
}

// Options configures a Project.
type Options struct {
	Toolchain *toolchain.Toolchain
	Registry  *registry.Registry
}

// Project collects artifact declarations for one build configuration.
type Project struct {
	tc        *toolchain.Toolchain
	reg       *registry.Registry
	artifacts []*Artifact
	byName    map[string]*Artifact
}

// NewProject creates an empty project.
func NewProject(opts Options) *Project {
	return &Project{
		tc:     opts.Toolchain,
		reg:    opts.Registry,
		byName: make(map[string]*Artifact),
	}
}

// Toolchain returns the toolchain the project generates commands for.
func (p *Project) Toolchain() *toolchain.Toolchain {
	return p.tc
}

// Registry returns the library registry used for resolution.
func (p *Project) Registry() *registry.Registry {
	return p.reg
}

// Executable declares an executable linked from sources.
func (p *Project) Executable(name string, sources, libraries []string, includeDirs ...string) error {
	return p.declare(Executable, name, sources, libraries, includeDirs)
}

// StaticLibrary declares an archive lib<name>.a of the objects of sources.
func (p *Project) StaticLibrary(name string, sources, libraries []string, includeDirs ...string) error {
	return p.declare(StaticLibrary, name, sources, libraries, includeDirs)
}

// SharedLibrary declares a shared object lib<name>.so. Static archives of
// its libraries are linked in whole.
func (p *Project) SharedLibrary(name string, sources, libraries []string, includeDirs ...string) error {
	return p.declare(SharedLibrary, name, sources, libraries, includeDirs)
}

// Test declares a test executable. It always links the unit-test framework.
func (p *Project) Test(name string, sources, libraries []string, includeDirs ...string) error {
	return p.declare(TestExecutable, name, sources, libraries, includeDirs)
}

func (p *Project) declare(kind Kind, name string, sources, libraries, includeDirs []string) error {
	if name == "" {
		return fmt.Errorf("declare %s: empty name", kind)
	}
	if reserved(name) {
		return fmt.Errorf("declare %s %s: %w", kind, name, ErrReservedName)
	}
	if _, ok := p.byName[name]; ok {
		return fmt.Errorf("declare %s %s: %w", kind, name, ErrDuplicateArtifact)
	}
	if len(sources) == 0 {
		return fmt.Errorf("declare %s %s: %w", kind, name, ErrNoSources)
	}
	// Overlapping globs list a file twice; it must be linked once.
	var srcs []string
	for _, src := range sources {
		src = filepath.Clean(src)
		if !slices.Contains(srcs, src) {
			srcs = append(srcs, src)
		}
	}
	a := &Artifact{
		Name:        name,
		Kind:        kind,
		Sources:     srcs,
		Libraries:   slices.Clone(libraries),
		IncludeDirs: slices.Clone(includeDirs),
	}
	p.artifacts = append(p.artifacts, a)
	p.byName[name] = a
	log.Debugf("build: declared %s %s (%d sources, libs %v)", kind, name, len(srcs), libraries)
	return nil
}

// After declares that artifact name must not be linked before prereqs
// exist. Prerequisites are files or goals; nothing else is inferred.
func (p *Project) After(name string, prereqs ...string) error {
	a, ok := p.byName[name]
	if !ok {
		return fmt.Errorf("after %s: %w", name, ErrUnknownArtifact)
	}
	a.after = append(a.after, prereqs...)
	return nil
}

// Artifacts returns the declared artifacts in declaration order.
func (p *Project) Artifacts() []*Artifact {
	return slices.Clone(p.artifacts)
}

// Artifact returns the artifact declared as name.
func (p *Project) Artifact(name string) (*Artifact, bool) {
	a, ok := p.byName[name]
	return a, ok
}

// Generate resolves every artifact's libraries and expands the declarations
// into a build graph. Any resolution error aborts the whole generation.
func (p *Project) Generate() (*graph.Graph, error) {
	g := graph.New()

	var pch *pchFragment
	if p.tc.PCH {
		var err error
		if pch, err = p.addPCH(g); err != nil {
			return nil, err
		}
	}

	var goals, tidyGoals, stripGoals []string
	for _, a := range p.artifacts {
		deps, err := p.resolve(a)
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", a.Name, err)
		}
		objs, err := p.compile(g, a, deps, pch)
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", a.Name, err)
		}
		out, err := p.link(g, a, objs, deps)
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", a.Name, err)
		}
		if out != a.Name {
			if err := g.Phony(a.Name, out); err != nil {
				return nil, fmt.Errorf("artifact %s: %w", a.Name, err)
			}
		}
		goals = append(goals, a.Name)

		umbrella, err := p.tidy(g, a, deps)
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", a.Name, err)
		}
		tidyGoals = append(tidyGoals, umbrella)

		if a.Kind != StaticLibrary {
			target, err := p.strip(g, a, out)
			if err != nil {
				return nil, fmt.Errorf("artifact %s: %w", a.Name, err)
			}
			stripGoals = append(stripGoals, target)
		}
	}

	if err := g.Phony(BuildGoal, goals...); err != nil {
		return nil, err
	}
	if err := g.Phony(TidyGoal, tidyGoals...); err != nil {
		return nil, err
	}
	if err := g.Phony(StripGoal, stripGoals...); err != nil {
		return nil, err
	}
	g.SetDefault(BuildGoal)
	return g, nil
}

// resolved holds one artifact's library flags, computed once per Generate.
type resolved struct {
	cflags []string
	libs   []registry.Library
}

func (p *Project) resolve(a *Artifact) (*resolved, error) {
	r := &resolved{}
	for _, name := range a.Libraries {
		lib, err := p.reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		r.cflags = append(r.cflags, lib.CompileFlags...)
		r.libs = append(r.libs, lib)
	}
	if a.Kind == TestExecutable {
		archive := p.tc.TestArchive()
		r.cflags = append(r.cflags, "-isystem", p.tc.TestInclude())
		r.libs = append(r.libs, registry.Library{
			StaticDeps: []string{archive},
			LinkFlags:  []string{archive},
		})
	}
	return r, nil
}
