// Package graph is the build DAG produced by artifact declarations: one node
// per compile, archive, link, analysis or generated file, plus named phony
// goals and the list of files removed by "clean".
package graph

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/alessio/shellescape"
)

// Kind classifies a node. Runners and writers use it to pick rules and
// progress labels.
type Kind int

const (
	Phony Kind = iota
	Compile
	Precompile
	Archive
	Link
	Analyze
	Write
	Strip
)

func (k Kind) String() string {
	switch k {
	case Phony:
		return "phony"
	case Compile:
		return "cxx"
	case Precompile:
		return "pch"
	case Archive:
		return "ar"
	case Link:
		return "link"
	case Analyze:
		return "tidy"
	case Write:
		return "write"
	case Strip:
		return "strip"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ErrConflict is returned when two different nodes claim the same output.
var ErrConflict = errors.New("conflicting rules for output")

// Node is a single step of the build.
type Node struct {
	Kind    Kind
	Outputs []string
	// Inputs are explicit prerequisites; a change makes the node stale.
	Inputs []string
	// Implicits are prerequisites not named on the command line.
	Implicits []string
	// OrderOnly prerequisites must exist first but never make the node stale.
	OrderOnly []string
	// Args is the command to run; empty for phony goals and Write nodes.
	Args []string
	// Depfile is a make-style dependency file written by the command.
	Depfile string
	// Content is the file body produced by Write nodes.
	Content string
	// Always marks nodes whose outputs are not files; they run every time.
	Always bool
	// Description is a short progress label.
	Description string
}

// Deps returns every prerequisite of n.
func (n *Node) Deps() []string {
	deps := make([]string, 0, len(n.Inputs)+len(n.Implicits)+len(n.OrderOnly))
	deps = append(deps, n.Inputs...)
	deps = append(deps, n.Implicits...)
	return append(deps, n.OrderOnly...)
}

// Command returns Args as a single shell command line.
func (n *Node) Command() string {
	return shellescape.QuoteCommand(n.Args)
}

func (n *Node) equal(o *Node) bool {
	return n.Kind == o.Kind &&
		slices.Equal(n.Outputs, o.Outputs) &&
		slices.Equal(n.Inputs, o.Inputs) &&
		slices.Equal(n.Implicits, o.Implicits) &&
		slices.Equal(n.OrderOnly, o.OrderOnly) &&
		slices.Equal(n.Args, o.Args) &&
		n.Depfile == o.Depfile &&
		n.Content == o.Content &&
		n.Always == o.Always
}

// Graph is populated during the configuration phase only.
type Graph struct {
	nodes     []*Node
	producers map[string]*Node
	defaults  []string
	clean     []string
	cleanSet  map[string]bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		producers: make(map[string]*Node),
		cleanSet:  make(map[string]bool),
	}
}

// Add registers n. Adding a node identical to an existing one returns the
// existing node; a different node for an existing output is ErrConflict.
func (g *Graph) Add(n *Node) (*Node, error) {
	if len(n.Outputs) == 0 {
		return nil, fmt.Errorf("%s node without outputs", n.Kind)
	}
	var existing *Node
	for _, out := range n.Outputs {
		if p, ok := g.producers[out]; ok {
			if existing != nil && existing != p {
				return nil, fmt.Errorf("%w %s", ErrConflict, out)
			}
			existing = p
		}
	}
	if existing != nil {
		if existing.equal(n) {
			return existing, nil
		}
		return nil, fmt.Errorf("%w %s", ErrConflict, n.Outputs[0])
	}
	for _, out := range n.Outputs {
		g.producers[out] = n
	}
	g.nodes = append(g.nodes, n)
	return n, nil
}

// Phony registers a goal name standing for deps.
func (g *Graph) Phony(name string, deps ...string) error {
	_, err := g.Add(&Node{
		Kind:    Phony,
		Outputs: []string{name},
		Inputs:  slices.Clone(deps),
	})
	return err
}

// SetDefault appends goals built when no goal is requested.
func (g *Graph) SetDefault(goals ...string) {
	g.defaults = append(g.defaults, goals...)
}

// CleanFile registers paths removed by clean. Duplicates are ignored.
func (g *Graph) CleanFile(paths ...string) {
	for _, p := range paths {
		if !g.cleanSet[p] {
			g.cleanSet[p] = true
			g.clean = append(g.clean, p)
		}
	}
}

// Producer returns the node that produces path.
func (g *Graph) Producer(path string) (*Node, bool) {
	n, ok := g.producers[path]
	return n, ok
}

// Nodes returns all nodes in registration order.
func (g *Graph) Nodes() []*Node {
	return slices.Clone(g.nodes)
}

// Defaults returns the default goals.
func (g *Graph) Defaults() []string {
	return slices.Clone(g.defaults)
}

// CleanFiles returns the registered cleanup files in registration order.
func (g *Graph) CleanFiles() []string {
	return slices.Clone(g.clean)
}

// Goals returns the names of all phony goals, sorted.
func (g *Graph) Goals() []string {
	var goals []string
	for _, n := range g.nodes {
		if n.Kind == Phony || n.Always {
			goals = append(goals, n.Outputs...)
		}
	}
	sort.Strings(goals)
	return goals
}
