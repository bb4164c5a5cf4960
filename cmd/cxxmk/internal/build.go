package internal

import (
	"fmt"
	"slices"

	"github.com/dfsbuild/cxxmk/internal/env"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build [goal...] [VAR=value...]",
	Short: "Build goals (default: all artifacts)",
	Long: `Build brings the given goals up to date. A goal is an artifact name, an
output file, or one of the goals listed by "cxxmk help". Without goals all
declared artifacts are built. A "clean" goal removes the build outputs
before the remaining goals are built.`,
	Args: cobra.ArbitraryArgs,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	goals, assignments := env.SplitArgs(args)
	ctx := cmd.Context()

	if slices.Contains(goals, cleanGoal) {
		if err := clean(cmd, assignments); err != nil {
			return err
		}
		goals = slices.DeleteFunc(goals, func(g string) bool { return g == cleanGoal })
		if len(goals) == 0 {
			return nil
		}
	}

	s, err := load(ctx, assignments, false)
	if err != nil {
		return err
	}
	if err := s.runner(cmd.OutOrStdout(), cmd.ErrOrStderr()).Build(ctx, goals...); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	return nil
}
