package internal

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"

	"github.com/dfsbuild/cxxmk/internal/build"
	"github.com/dfsbuild/cxxmk/internal/env"
	"github.com/dfsbuild/cxxmk/internal/graph"
	"github.com/dfsbuild/cxxmk/internal/manifest"
	"github.com/dfsbuild/cxxmk/internal/pkgconfig"
	"github.com/dfsbuild/cxxmk/internal/registry"
	"github.com/dfsbuild/cxxmk/internal/runner"
	"github.com/dfsbuild/cxxmk/internal/toolchain"
	"github.com/qiniu/x/log"
)

// session is one fully configured build: variables, toolchain, registry,
// declared artifacts and the generated graph.
type session struct {
	cfg     *env.Config
	tc      *toolchain.Toolchain
	project *build.Project
	graph   *graph.Graph
}

// manifestPath returns the manifest location relative to the working
// directory.
func manifestPath() string {
	if filepath.IsAbs(manifestFile) {
		return manifestFile
	}
	return filepath.Join(directory, manifestFile)
}

// load configures a session. In clean mode library resolution is bypassed,
// so cleaning never fails on missing system packages or libraries.
func load(ctx context.Context, assignments []string, cleanOnly bool) (*session, error) {
	if cleanOnly {
		// Nothing is compiled, so the version string is not validated.
		assignments = append(slices.Clone(assignments), env.Version+"=")
	}
	cfg, err := env.FromOS(assignments)
	if err != nil {
		return nil, err
	}
	tc, err := toolchain.New(cfg)
	if err != nil {
		return nil, err
	}
	log.Debugf("cxxmk: %s mode, compiler %s", tc.Mode, tc.CXX)

	reg := registry.New(registry.Options{
		Provider:  pkgconfig.New(),
		CleanOnly: cleanOnly,
	})
	if err := build.DefineCommon(reg, tc); err != nil {
		return nil, err
	}
	p := build.NewProject(build.Options{Toolchain: tc, Registry: reg})

	m, err := manifest.Load(manifestPath())
	if err != nil {
		return nil, err
	}
	if err := m.Apply(ctx, p, manifest.Options{Dir: directory}); err != nil {
		return nil, fmt.Errorf("configuring %s: %w", manifestPath(), err)
	}

	g, err := p.Generate()
	if err != nil {
		return nil, fmt.Errorf("configuring %s: %w", manifestPath(), err)
	}
	return &session{cfg: cfg, tc: tc, project: p, graph: g}, nil
}

func (s *session) runner(stdout, stderr io.Writer) *runner.Runner {
	return runner.New(s.graph, runner.Options{
		Jobs:       jobs,
		DryRun:     dryRun,
		Verbose:    s.tc.Verbose,
		AlwaysMake: alwaysMake,
		Explain:    explain,
		Dir:        directory,
		Stdout:     stdout,
		Stderr:     stderr,
	})
}
