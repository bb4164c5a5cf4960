package internal

import (
	"fmt"

	"github.com/dfsbuild/cxxmk/internal/build"
	"github.com/dfsbuild/cxxmk/internal/env"
	"github.com/spf13/cobra"
)

var tidyCmd = &cobra.Command{
	Use:   "tidy [tidy-<artifact>|<source>.tidy-<artifact>...] [VAR=value...]",
	Short: "Run clang-tidy over the sources of all or some artifacts",
	Long: `Tidy runs clang-tidy with the curated check list over every source of
every artifact, using the flags the source is compiled with. Analysis goals
always run and never produce files.`,
	Args: cobra.ArbitraryArgs,
	RunE: runTidy,
}

func init() {
	rootCmd.AddCommand(tidyCmd)
}

func runTidy(cmd *cobra.Command, args []string) error {
	goals, assignments := env.SplitArgs(args)
	if len(goals) == 0 {
		goals = []string{build.TidyGoal}
	}
	s, err := load(cmd.Context(), assignments, false)
	if err != nil {
		return err
	}
	if err := s.runner(cmd.OutOrStdout(), cmd.ErrOrStderr()).Build(cmd.Context(), goals...); err != nil {
		return fmt.Errorf("tidy failed: %w", err)
	}
	return nil
}
