// Package registry holds the known libraries of a build configuration and
// resolves their compile flags, link flags and static archives by name.
//
// The registry is populated during the single-threaded configuration phase
// and only read afterwards. Entries are immutable once defined.
package registry

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/qiniu/x/log"
)

// Library is the flag bundle registered under a library name.
type Library struct {
	// CompileFlags apply to every source compiled for a dependent artifact.
	CompileFlags []string
	// LinkFlags apply to every link of a dependent artifact. When nil at
	// definition time they default to StaticDeps.
	LinkFlags []string
	// StaticDeps are archive paths used as link prerequisites.
	StaticDeps []string
}

func (l Library) clone() Library {
	return Library{
		CompileFlags: slices.Clone(l.CompileFlags),
		LinkFlags:    slices.Clone(l.LinkFlags),
		StaticDeps:   slices.Clone(l.StaticDeps),
	}
}

// SystemProvider describes installed system packages, pkg-config style.
type SystemProvider interface {
	Exists(ctx context.Context, pkg string) (bool, error)
	CFlags(ctx context.Context, pkg string) ([]string, error)
	Libs(ctx context.Context, pkg string) ([]string, error)
}

// Options configures a Registry.
type Options struct {
	// Provider answers DefineFromSystem queries.
	Provider SystemProvider
	// CleanOnly bypasses all resolution: lookups return empty results and
	// the provider is never queried.
	CleanOnly bool
}

// Registry maps library names to their flag bundles.
type Registry struct {
	provider  SystemProvider
	cleanOnly bool
	libs      map[string]Library
}

// New creates an empty registry.
func New(opts Options) *Registry {
	return &Registry{
		provider:  opts.Provider,
		cleanOnly: opts.CleanOnly,
		libs:      make(map[string]Library),
	}
}

// CleanOnly reports whether resolution is bypassed.
func (r *Registry) CleanOnly() bool {
	return r.cleanOnly
}

// Define registers lib under name.
func (r *Registry) Define(name string, lib Library) error {
	if name == "" {
		return &Error{Op: "define", Name: `""`, Err: fmt.Errorf("empty library name")}
	}
	if _, ok := r.libs[name]; ok {
		return &Error{Op: "define", Name: name, Err: ErrDuplicateLibrary}
	}
	lib = lib.clone()
	if lib.LinkFlags == nil {
		lib.LinkFlags = slices.Clone(lib.StaticDeps)
	}
	if len(lib.LinkFlags) == 0 && len(lib.StaticDeps) == 0 {
		return &Error{Op: "define", Name: name, Err: ErrNoLinkBehavior}
	}
	r.libs[name] = lib
	log.Debugf("registry: defined %s cflags=%v link=%v static=%v", name, lib.CompileFlags, lib.LinkFlags, lib.StaticDeps)
	return nil
}

// DefineFromSystem registers name with the flags the system provider
// reports for pkg. In clean-only mode it does nothing.
func (r *Registry) DefineFromSystem(ctx context.Context, name, pkg string) error {
	if r.cleanOnly {
		return nil
	}
	if r.provider == nil {
		return &Error{Op: "define " + pkg, Name: name, Err: fmt.Errorf("no system package provider configured")}
	}
	ok, err := r.provider.Exists(ctx, pkg)
	if err != nil {
		return &Error{Op: "define " + pkg, Name: name, Err: err}
	}
	if !ok {
		return &Error{Op: "define " + pkg, Name: name, Err: ErrPackageNotFound}
	}
	cflags, err := r.provider.CFlags(ctx, pkg)
	if err != nil {
		return &Error{Op: "define " + pkg, Name: name, Err: err}
	}
	libs, err := r.provider.Libs(ctx, pkg)
	if err != nil {
		return &Error{Op: "define " + pkg, Name: name, Err: err}
	}
	if libs == nil {
		libs = []string{}
	}
	return r.Define(name, Library{CompileFlags: cflags, LinkFlags: libs})
}

// Lookup returns a copy of the entry registered under name.
func (r *Registry) Lookup(name string) (Library, error) {
	if r.cleanOnly {
		return Library{}, nil
	}
	lib, ok := r.libs[name]
	if !ok {
		return Library{}, &Error{Op: "resolve", Name: name, Err: ErrUnknownLibrary}
	}
	return lib.clone(), nil
}

// CompileFlags resolves the compile flags of name.
func (r *Registry) CompileFlags(name string) ([]string, error) {
	lib, err := r.Lookup(name)
	return lib.CompileFlags, err
}

// LinkFlags resolves the link flags of name.
func (r *Registry) LinkFlags(name string) ([]string, error) {
	lib, err := r.Lookup(name)
	return lib.LinkFlags, err
}

// StaticDeps resolves the static archives of name.
func (r *Registry) StaticDeps(name string) ([]string, error) {
	lib, err := r.Lookup(name)
	return lib.StaticDeps, err
}

// Names returns all registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.libs))
	for name := range r.libs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
