package build

import (
	"github.com/dfsbuild/cxxmk/internal/graph"
)

// StripTarget returns the goal that strips debug symbols from artifact.
func StripTarget(artifact string) string {
	return "strip-" + artifact
}

// strip adds the step that removes debug symbols from the linked output of
// a in place. It is never part of the default goal.
func (p *Project) strip(g *graph.Graph, a *Artifact, out string) (string, error) {
	target := StripTarget(a.Name)
	_, err := g.Add(&graph.Node{
		Kind:        graph.Strip,
		Outputs:     []string{target},
		Inputs:      []string{out},
		Args:        []string{p.tc.Strip, "--strip-debug", out},
		Always:      true,
		Description: "STRIP " + out,
	})
	if err != nil {
		return "", err
	}
	return target, nil
}
