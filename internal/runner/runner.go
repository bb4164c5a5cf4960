// Package runner executes a build graph: it brings the requested goals up
// to date, running at most Jobs commands at once, and removes the files
// registered for cleanup.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/alessio/shellescape"
	"github.com/dfsbuild/cxxmk/internal/graph"
	"github.com/dfsbuild/cxxmk/internal/par"
	"github.com/qiniu/x/log"
)

// ErrUnknownGoal is returned when a requested goal is neither produced by
// the graph nor an existing file.
var ErrUnknownGoal = errors.New("no rule to make goal")

// CommandError reports a failed build command.
type CommandError struct {
	Node   *graph.Node
	Output []byte
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Node.Outputs[0], e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Options configures a Runner.
type Options struct {
	// Jobs is the number of commands run in parallel; 0 means one per CPU.
	Jobs int
	// DryRun prints the commands that would run without running them.
	DryRun bool
	// Verbose prints full command lines instead of short descriptions.
	Verbose bool
	// AlwaysMake treats every node as out of date.
	AlwaysMake bool
	// Explain logs why each node is rebuilt.
	Explain bool
	// Dir is the directory commands run in; "" is the current directory.
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// Runner executes one build graph.
type Runner struct {
	g      *graph.Graph
	opts   Options
	status *status
}

// New creates a runner for g.
func New(g *graph.Graph, opts Options) *Runner {
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.NumCPU()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Runner{
		g:      g,
		opts:   opts,
		status: newStatus(opts.Stdout, opts.Verbose || opts.DryRun),
	}
}

// plan is the part of the graph reachable from the requested goals.
type plan struct {
	nodes      []*graph.Node
	pending    map[*graph.Node]int
	dependents map[*graph.Node][]*graph.Node

	mu    sync.Mutex
	dirty map[*graph.Node]bool
}

// Build brings goals up to date. With no goals it builds the graph's
// default goals.
func (r *Runner) Build(ctx context.Context, goals ...string) error {
	if len(goals) == 0 {
		goals = r.g.Defaults()
	}
	p, err := r.plan(goals)
	if err != nil {
		return err
	}

	r.status.total, r.status.ran = 0, 0
	for _, n := range p.nodes {
		if n.Kind != graph.Phony {
			r.status.total++
		}
	}

	var w par.Work[*graph.Node]
	for _, n := range p.nodes {
		if p.pending[n] == 0 {
			w.Add(n)
		}
	}
	err = w.Do(ctx, r.opts.Jobs, func(ctx context.Context, n *graph.Node) error {
		if err := r.run(ctx, p, n); err != nil {
			return err
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, d := range p.dependents[n] {
			p.pending[d]--
			if p.pending[d] == 0 {
				w.Add(d)
			}
		}
		return nil
	})
	r.status.finish()
	if err != nil {
		return err
	}
	if r.status.ran == 0 && !r.opts.DryRun {
		log.Infof("nothing to do for %s", strings.Join(goals, " "))
	}
	return nil
}

// plan collects every node needed for goals in dependency order and
// checks that all leaf inputs exist.
func (r *Runner) plan(goals []string) (*plan, error) {
	p := &plan{
		pending:    make(map[*graph.Node]int),
		dependents: make(map[*graph.Node][]*graph.Node),
		dirty:      make(map[*graph.Node]bool),
	}
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[*graph.Node]int)

	var visit func(path string, stack []string) error
	visit = func(path string, stack []string) error {
		n, ok := r.g.Producer(path)
		if !ok {
			if _, err := os.Stat(r.path(path)); err != nil {
				if len(stack) == 0 {
					return fmt.Errorf("%w %s", ErrUnknownGoal, path)
				}
				return fmt.Errorf("missing %s, needed by %s", path, stack[len(stack)-1])
			}
			return nil
		}
		switch state[n] {
		case visiting:
			return fmt.Errorf("dependency cycle: %s", strings.Join(append(stack, path), " -> "))
		case done:
			return nil
		}
		state[n] = visiting
		stack = append(stack, path)

		var producers []*graph.Node
		for _, dep := range n.Deps() {
			if err := visit(dep, stack); err != nil {
				return err
			}
			if d, ok := r.g.Producer(dep); ok && !slices.Contains(producers, d) {
				producers = append(producers, d)
			}
		}
		for _, d := range producers {
			p.dependents[d] = append(p.dependents[d], n)
		}
		p.pending[n] = len(producers)
		state[n] = done
		p.nodes = append(p.nodes, n)
		return nil
	}

	for _, goal := range goals {
		if err := visit(goal, nil); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (r *Runner) path(name string) string {
	if r.opts.Dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(r.opts.Dir, name)
}

// run brings a single node up to date. All its prerequisites are done.
func (r *Runner) run(ctx context.Context, p *plan, n *graph.Node) error {
	reason, err := r.outdated(p, n)
	if err != nil {
		return err
	}
	if reason == "" {
		return nil
	}
	if r.opts.Explain && n.Kind != graph.Phony {
		log.Infof("%s: %s", n.Outputs[0], reason)
	}

	p.mu.Lock()
	p.dirty[n] = true
	p.mu.Unlock()

	switch n.Kind {
	case graph.Phony:
		return nil
	case graph.Write:
		r.status.start(n, fmt.Sprintf("cat > %s", n.Outputs[0]))
		if r.opts.DryRun {
			return nil
		}
		return r.write(n)
	}

	r.status.start(n, n.Command())
	if r.opts.DryRun {
		return nil
	}
	return r.exec(ctx, n)
}

func (r *Runner) write(n *graph.Node) error {
	out := r.path(n.Outputs[0])
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(out, []byte(n.Content), 0o644); err != nil {
		return &CommandError{Node: n, Err: err}
	}
	return nil
}

func (r *Runner) exec(ctx context.Context, n *graph.Node) error {
	if len(n.Args) == 0 {
		return &CommandError{Node: n, Err: errors.New("empty command")}
	}
	if !n.Always {
		for _, out := range n.Outputs {
			out = r.path(out)
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			// Tools like ar update an existing file in place.
			if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}

	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, n.Args[0], n.Args[1:]...)
	cmd.Dir = r.opts.Dir
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	if buf.Len() > 0 {
		r.status.output(r.opts.Stderr, buf.Bytes())
	}
	if err != nil {
		if !n.Always {
			for _, out := range n.Outputs {
				os.Remove(r.path(out))
			}
		}
		log.Debugf("runner: %s failed: %v", n.Outputs[0], err)
		return &CommandError{Node: n, Output: buf.Bytes(), Err: err}
	}
	return nil
}

// Clean removes every file registered for cleanup. Missing files are not an
// error.
func (r *Runner) Clean(ctx context.Context) error {
	var errs []error
	for _, f := range r.g.CleanFiles() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.opts.DryRun || r.opts.Verbose {
			fmt.Fprintf(r.opts.Stdout, "rm -f %s\n", shellescape.Quote(f))
		}
		if r.opts.DryRun {
			continue
		}
		if err := os.Remove(r.path(f)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
			continue
		}
		log.Debugf("runner: removed %s", f)
	}
	return errors.Join(errs...)
}
