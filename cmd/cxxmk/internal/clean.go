package internal

import (
	"fmt"

	"github.com/dfsbuild/cxxmk/internal/build"
	"github.com/dfsbuild/cxxmk/internal/env"
	"github.com/spf13/cobra"
)

const cleanGoal = build.CleanGoal

var cleanCmd = &cobra.Command{
	Use:   "clean [VAR=value...]",
	Short: "Remove all build outputs",
	Long: `Clean removes every object, dependency file, archive, shared object,
executable and precompiled header the manifest's artifacts produce. Library
resolution is skipped, so cleaning works without the system packages the
build needs.`,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	goals, assignments := env.SplitArgs(args)
	if len(goals) > 0 {
		return fmt.Errorf("clean takes no goals, got %v", goals)
	}
	return clean(cmd, assignments)
}

func clean(cmd *cobra.Command, assignments []string) error {
	s, err := load(cmd.Context(), assignments, true)
	if err != nil {
		return err
	}
	return s.runner(cmd.OutOrStdout(), cmd.ErrOrStderr()).Clean(cmd.Context())
}
