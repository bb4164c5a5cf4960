package build

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/dfsbuild/cxxmk/internal/graph"
)

// Names of the generated precompiled-header proxy and its compiled form.
const (
	PCHProxy    = "pch.h"
	PCHCompiled = PCHProxy + ".gch"
)

// pchFragment is the shared precompiled header every compile step depends
// on when PCH is enabled.
type pchFragment struct {
	proxy    string
	compiled string
}

func (f *pchFragment) flags() []string {
	return []string{"-include", f.proxy}
}

func (f *pchFragment) deps() []string {
	return []string{f.proxy, f.compiled}
}

// addPCH registers the proxy header and its precompiled form. The proxy only
// depends on the canonical header path, so regenerating it is deterministic.
func (p *Project) addPCH(g *graph.Graph) (*pchFragment, error) {
	header := p.tc.CommonHeader()
	f := &pchFragment{proxy: PCHProxy, compiled: PCHCompiled}
	depfile := f.compiled + ".d"

	if _, err := g.Add(&graph.Node{
		Kind:        graph.Write,
		Outputs:     []string{f.proxy},
		Content:     fmt.Sprintf("#include \"%s\"\n", header),
		Description: "GEN  " + f.proxy,
	}); err != nil {
		return nil, err
	}

	args := p.tc.Compiler()
	args = append(args, p.tc.CXXFlags()...)
	args = append(args, "-x", "c++-header", "-MMD", "-MF", depfile, "-c", f.proxy, "-o", f.compiled)
	if _, err := g.Add(&graph.Node{
		Kind:        graph.Precompile,
		Outputs:     []string{f.compiled},
		Inputs:      []string{f.proxy},
		Implicits:   []string{header},
		Args:        args,
		Depfile:     depfile,
		Description: "PCH  " + f.compiled,
	}); err != nil {
		return nil, err
	}

	g.CleanFile(f.proxy, f.compiled, depfile)
	return f, nil
}

// compileFlags returns the flags every source of a is compiled with, without
// the per-source output arguments.
func (p *Project) compileFlags(a *Artifact, deps *resolved) []string {
	flags := p.tc.CXXFlags()
	flags = append(flags, deps.cflags...)
	for _, dir := range a.IncludeDirs {
		flags = append(flags, "-I"+dir)
	}
	if a.Kind == SharedLibrary {
		flags = append(flags, "-fPIC")
	}
	return flags
}

// compile adds one compile node per source and returns the object files in
// source order.
func (p *Project) compile(g *graph.Graph, a *Artifact, deps *resolved, pch *pchFragment) ([]string, error) {
	flags := p.compileFlags(a, deps)
	var implicits []string
	if pch != nil {
		flags = append(flags, pch.flags()...)
		implicits = pch.deps()
	}

	objs := make([]string, 0, len(a.Sources))
	for _, src := range a.Sources {
		src = filepath.Clean(src)
		obj := a.Object(src)
		depfile := obj + ".d"

		args := p.tc.Compiler()
		args = append(args, flags...)
		args = append(args, "-MMD", "-MF", depfile, "-c", src, "-o", obj)

		if _, err := g.Add(&graph.Node{
			Kind:        graph.Compile,
			Outputs:     []string{obj},
			Inputs:      []string{src},
			Implicits:   slices.Clone(implicits),
			Args:        args,
			Depfile:     depfile,
			Description: "CXX  " + obj,
		}); err != nil {
			return nil, err
		}
		g.CleanFile(obj, depfile)
		objs = append(objs, obj)
	}
	return objs, nil
}
