package internal

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dfsbuild/cxxmk/internal/env"
	"github.com/spf13/cobra"
)

var helpCmd = &cobra.Command{
	Use:   "help [command]",
	Short: "Show configuration variables and goals, or help for a command",
	Long: `Help lists the configuration variables with their current values and
the goals the manifest in the current directory defines. With a command name
it shows the help for that command.`,
	RunE: runHelp,
}

func init() {
	rootCmd.SetHelpCommand(helpCmd)
}

func runHelp(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		target, _, err := rootCmd.Find(args)
		if err != nil || target == rootCmd {
			return fmt.Errorf("unknown help topic %q", strings.Join(args, " "))
		}
		return target.Help()
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, rootCmd.Long)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  %s\n", rootCmd.UseLine())
	fmt.Fprintln(w)

	cfg, err := env.FromOS(nil)
	if err != nil {
		return err
	}
	writeVars(w, cfg)
	fmt.Fprintln(w)

	// The manifest is optional for help; report why goals are missing.
	s, err := load(cmd.Context(), nil, true)
	if err != nil {
		fmt.Fprintf(w, "Goals: unavailable (%v)\n", err)
		return nil
	}
	goals := append(s.graph.Goals(), cleanGoal)
	for _, a := range s.project.Artifacts() {
		if !slices.Contains(goals, a.Name) {
			goals = append(goals, a.Name)
		}
	}
	sort.Strings(goals)
	fmt.Fprintln(w, "Goals:")
	for _, goal := range goals {
		fmt.Fprintf(w, "  %s\n", goal)
	}
	return nil
}

func writeVars(w io.Writer, cfg *env.Config) {
	fmt.Fprintln(w, "Configuration variables:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, v := range env.Vars {
		value := cfg.Get(v.Name)
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", v.Name, value, v.Help)
	}
	tw.Flush()
}
