package build

import (
	"slices"

	"github.com/dfsbuild/cxxmk/internal/graph"
)

// link adds the archive or link node of a and returns its output.
func (p *Project) link(g *graph.Graph, a *Artifact, objs []string, deps *resolved) (string, error) {
	out := a.Output()
	n := &graph.Node{
		Outputs:   []string{out},
		Inputs:    slices.Clone(objs),
		OrderOnly: a.After(),
	}

	switch a.Kind {
	case StaticLibrary:
		// Dependency archives are never absorbed; dependents link them.
		n.Kind = graph.Archive
		n.Args = append([]string{p.tc.AR, "rcs", out}, objs...)
		n.Description = "AR   " + out
	case SharedLibrary:
		static := staticDeps(deps)
		n.Kind = graph.Link
		n.Implicits = static
		n.Args = append([]string{p.tc.CXX, "-shared", "-o", out}, objs...)
		if len(static) > 0 {
			n.Args = append(n.Args, "-Wl,--whole-archive")
			n.Args = append(n.Args, static...)
			n.Args = append(n.Args, "-Wl,--no-whole-archive")
		}
		n.Args = append(n.Args, linkFlagsExcept(deps, static)...)
		n.Args = append(n.Args, p.tc.LDFlags()...)
		n.Description = "LINK " + out
	default:
		n.Kind = graph.Link
		n.Implicits = staticDeps(deps)
		n.Args = append([]string{p.tc.CXX, "-o", out}, objs...)
		if group := linkGroup(deps); len(group) > 0 {
			n.Args = append(n.Args, "-Wl,--start-group")
			n.Args = append(n.Args, group...)
			n.Args = append(n.Args, "-Wl,--end-group")
		}
		n.Args = append(n.Args, p.tc.LDFlags()...)
		n.Description = "LINK " + out
	}

	if _, err := g.Add(n); err != nil {
		return "", err
	}
	g.CleanFile(out)
	return out, nil
}

// staticDeps returns all static archives of deps in library order, each
// once.
func staticDeps(deps *resolved) []string {
	var archives []string
	for _, lib := range deps.libs {
		for _, a := range lib.StaticDeps {
			if !slices.Contains(archives, a) {
				archives = append(archives, a)
			}
		}
	}
	return archives
}

// linkGroup returns, per library in order, the static archives its link
// flags do not already name, followed by its link flags.
func linkGroup(deps *resolved) []string {
	var group []string
	for _, lib := range deps.libs {
		for _, a := range lib.StaticDeps {
			if !slices.Contains(lib.LinkFlags, a) {
				group = append(group, a)
			}
		}
		group = append(group, lib.LinkFlags...)
	}
	return group
}

// linkFlagsExcept returns the link flags of deps without the tokens in
// skip.
func linkFlagsExcept(deps *resolved, skip []string) []string {
	var flags []string
	for _, lib := range deps.libs {
		for _, f := range lib.LinkFlags {
			if !slices.Contains(skip, f) {
				flags = append(flags, f)
			}
		}
	}
	return flags
}
