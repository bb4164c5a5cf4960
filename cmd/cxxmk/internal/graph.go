package internal

import (
	"fmt"

	"github.com/dfsbuild/cxxmk/internal/env"
	"github.com/dfsbuild/cxxmk/internal/graph"
	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [goal...] [VAR=value...]",
	Short: "Dump the resolved build graph",
	Long: `Graph prints every node of the resolved build graph, or only the nodes
producing the given goals, for debugging manifests and flag resolution.`,
	Args: cobra.ArbitraryArgs,
	RunE: runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

// nodeView is the dumped form of a graph node.
type nodeView struct {
	Kind      string
	Outputs   []string
	Inputs    []string
	Implicits []string
	OrderOnly []string
	Depfile   string
	Command   string
}

var dumper = litter.Options{
	StripPackageNames: true,
	HidePrivateFields: true,
	HideZeroValues:    true,
}

func runGraph(cmd *cobra.Command, args []string) error {
	goals, assignments := env.SplitArgs(args)
	s, err := load(cmd.Context(), assignments, false)
	if err != nil {
		return err
	}

	var nodes []*graph.Node
	if len(goals) == 0 {
		nodes = s.graph.Nodes()
	}
	for _, goal := range goals {
		n, ok := s.graph.Producer(goal)
		if !ok {
			return fmt.Errorf("no rule produces %s", goal)
		}
		nodes = append(nodes, n)
	}

	views := make([]nodeView, 0, len(nodes))
	for _, n := range nodes {
		v := nodeView{
			Kind:      n.Kind.String(),
			Outputs:   n.Outputs,
			Inputs:    n.Inputs,
			Implicits: n.Implicits,
			OrderOnly: n.OrderOnly,
			Depfile:   n.Depfile,
		}
		switch {
		case n.Kind == graph.Write:
			v.Command = fmt.Sprintf("write %q", n.Content)
		case len(n.Args) > 0:
			v.Command = n.Command()
		}
		views = append(views, v)
	}
	fmt.Fprintln(cmd.OutOrStdout(), dumper.Sdump(views))
	return nil
}
