package build

import (
	"path/filepath"
	"strings"

	"github.com/dfsbuild/cxxmk/internal/graph"
)

// tidyChecks is the curated clang-tidy rule set.
var tidyChecks = []string{
	"-*",
	"bugprone-*",
	"-bugprone-easily-swappable-parameters",
	"-bugprone-narrowing-conversions",
	"-bugprone-implicit-widening-of-multiplication-result",
	"-bugprone-macro-parentheses",
	"cert-*",
	"-cert-err58-cpp",
	"-cert-dcl16-c",
	"clang-analyzer-*",
	"-clang-analyzer-optin.cplusplus.VirtualCall",
	"-clang-analyzer-security.insecureAPI.*",
	"concurrency-*",
	"misc-*",
	"-misc-non-private-member-variables-in-classes",
	"-misc-no-recursion",
	"-misc-include-cleaner",
	"-misc-use-anonymous-namespace",
	"modernize-*",
	"-modernize-use-trailing-return-type",
	"-modernize-avoid-c-arrays",
	"-modernize-use-nodiscard",
	"-modernize-pass-by-value",
	"-modernize-use-auto",
	"performance-*",
	"-performance-avoid-endl",
	"portability-*",
	"readability-*",
	"-readability-magic-numbers",
	"-readability-identifier-length",
	"-readability-function-cognitive-complexity",
	"-readability-braces-around-statements",
	"-readability-implicit-bool-conversion",
	"-readability-convert-member-functions-to-static",
}

// TidyChecks returns the -checks argument passed to the analysis tool.
func TidyChecks() string {
	return strings.Join(tidyChecks, ",")
}

// TidyFileGoal returns the per-file analysis goal of src in artifact.
func TidyFileGoal(src, artifact string) string {
	return filepath.Clean(src) + ".tidy-" + artifact
}

// TidyUmbrella returns the analysis goal covering every source of artifact.
func TidyUmbrella(artifact string) string {
	return "tidy-" + artifact
}

// tidy adds one analysis node per source of a plus the artifact umbrella
// goal, and returns the umbrella. The analysis uses the compile flags
// without the precompiled header, which the analyzer cannot load.
func (p *Project) tidy(g *graph.Graph, a *Artifact, deps *resolved) (string, error) {
	flags := p.compileFlags(a, deps)

	goals := make([]string, 0, len(a.Sources))
	for _, src := range a.Sources {
		src = filepath.Clean(src)
		goal := TidyFileGoal(src, a.Name)

		args := []string{p.tc.Tidy, "--quiet", "-checks=" + TidyChecks(), src, "--"}
		args = append(args, flags...)
		if _, err := g.Add(&graph.Node{
			Kind:        graph.Analyze,
			Outputs:     []string{goal},
			Inputs:      []string{src},
			Args:        args,
			Always:      true,
			Description: "TIDY " + src,
		}); err != nil {
			return "", err
		}
		goals = append(goals, goal)
	}

	umbrella := TidyUmbrella(a.Name)
	if err := g.Phony(umbrella, goals...); err != nil {
		return "", err
	}
	return umbrella, nil
}
