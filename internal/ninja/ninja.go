// Package ninja writes a build graph as a ninja manifest, so the same
// declarations can be built by ninja instead of the built-in runner.
package ninja

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/dfsbuild/cxxmk/internal/graph"
)

// ruleDef is one generic rule; the command line is carried per build
// statement in $cmd.
type ruleDef struct {
	kind    graph.Kind
	command string
	depfile bool
	restat  bool
}

var rules = []ruleDef{
	{kind: graph.Compile, command: "$cmd", depfile: true},
	{kind: graph.Precompile, command: "$cmd", depfile: true},
	// ar updates existing archives in place.
	{kind: graph.Archive, command: "rm -f $out && $cmd"},
	{kind: graph.Link, command: "$cmd"},
	{kind: graph.Analyze, command: "$cmd"},
	{kind: graph.Write, command: "$cmd", restat: true},
	{kind: graph.Strip, command: "$cmd"},
}

// CleanGoal is the ninja goal that removes registered cleanup files.
const CleanGoal = "clean"

// Write emits g to w. Phony goals map to ninja phony edges and the graph
// defaults become the ninja default statement.
func Write(w io.Writer, g *graph.Graph, header string) error {
	bw := bufio.NewWriter(w)
	n := newWriter(bw)
	if err := write(n, g, header); err != nil {
		return err
	}
	return bw.Flush()
}

func write(n *writer, g *graph.Graph, header string) error {
	if header != "" {
		if err := n.Comment(header); err != nil {
			return err
		}
		if err := n.BlankLine(); err != nil {
			return err
		}
	}
	if err := n.Assign("ninja_required_version", "1.3"); err != nil {
		return err
	}
	if err := n.BlankLine(); err != nil {
		return err
	}

	for _, r := range rules {
		if err := writeRule(n, r); err != nil {
			return err
		}
	}

	for _, node := range g.Nodes() {
		if err := writeNode(n, node); err != nil {
			return err
		}
	}

	if files := g.CleanFiles(); len(files) > 0 {
		if _, ok := g.Producer(CleanGoal); !ok {
			if err := n.Rule("clean_files"); err != nil {
				return err
			}
			if err := n.ScopedAssign("command", escapeValue("rm -f "+shellescape.QuoteCommand(files))); err != nil {
				return err
			}
			if err := n.ScopedAssign("description", "CLEAN"); err != nil {
				return err
			}
			if err := n.Build("clean_files", []string{CleanGoal}, nil, nil, nil); err != nil {
				return err
			}
			if err := n.BlankLine(); err != nil {
				return err
			}
		}
	}

	if defaults := g.Defaults(); len(defaults) > 0 {
		return n.Default(defaults...)
	}
	return nil
}

func writeRule(n *writer, r ruleDef) error {
	if err := n.Rule(r.kind.String()); err != nil {
		return err
	}
	if err := n.ScopedAssign("command", r.command); err != nil {
		return err
	}
	if err := n.ScopedAssign("description", "$desc"); err != nil {
		return err
	}
	if r.depfile {
		if err := n.ScopedAssign("depfile", "$depfile"); err != nil {
			return err
		}
		if err := n.ScopedAssign("deps", "gcc"); err != nil {
			return err
		}
	}
	if r.restat {
		if err := n.ScopedAssign("restat", "1"); err != nil {
			return err
		}
	}
	return n.BlankLine()
}

func writeNode(n *writer, node *graph.Node) error {
	if node.Kind == graph.Phony {
		if err := n.Build("phony", node.Outputs, node.Inputs, node.Implicits, node.OrderOnly); err != nil {
			return err
		}
		return n.BlankLine()
	}

	if err := n.Build(node.Kind.String(), node.Outputs, node.Inputs, node.Implicits, node.OrderOnly); err != nil {
		return err
	}
	cmd := node.Command()
	if node.Kind == graph.Write {
		cmd = writeCommand(node)
	}
	if err := n.ScopedAssign("cmd", escapeValue(cmd)); err != nil {
		return err
	}
	desc := node.Description
	if desc == "" {
		desc = fmt.Sprintf("%s %s", node.Kind, node.Outputs[0])
	}
	if err := n.ScopedAssign("desc", escapeValue(desc)); err != nil {
		return err
	}
	if node.Depfile != "" {
		if err := n.ScopedAssign("depfile", escapeValue(node.Depfile)); err != nil {
			return err
		}
	}
	return n.BlankLine()
}

// writeCommand renders a Write node as a shell command. The content is
// written one line per argument, so it survives ninja's single-line
// variables.
func writeCommand(node *graph.Node) string {
	lines := strings.Split(strings.TrimSuffix(node.Content, "\n"), "\n")
	args := append([]string{"printf", `%s\n`}, lines...)
	return shellescape.QuoteCommand(args) + " > " + shellescape.Quote(node.Outputs[0])
}
