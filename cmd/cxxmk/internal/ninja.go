package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dfsbuild/cxxmk/internal/env"
	"github.com/dfsbuild/cxxmk/internal/ninja"
	"github.com/spf13/cobra"
)

var ninjaOutput string

var ninjaCmd = &cobra.Command{
	Use:   "ninja [VAR=value...]",
	Short: "Write the build graph as a ninja file",
	Long: `Ninja resolves the manifest with the current configuration and writes the
resulting build graph for the ninja build tool. Use "-o -" to write to
standard output.`,
	RunE: runNinja,
}

func init() {
	ninjaCmd.Flags().StringVarP(&ninjaOutput, "output", "o", "build.ninja", "Write the ninja file to `path`")
	rootCmd.AddCommand(ninjaCmd)
}

func runNinja(cmd *cobra.Command, args []string) error {
	goals, assignments := env.SplitArgs(args)
	if len(goals) > 0 {
		return fmt.Errorf("ninja takes no goals, got %v", goals)
	}
	s, err := load(cmd.Context(), assignments, false)
	if err != nil {
		return err
	}
	header := fmt.Sprintf("Generated by cxxmk %s from %s (%s mode); do not edit.", version(), manifestFile, s.tc.Mode)

	if ninjaOutput == "-" {
		return ninja.Write(cmd.OutOrStdout(), s.graph, header)
	}
	path := ninjaOutput
	if !filepath.IsAbs(path) {
		path = filepath.Join(directory, path)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ninja.Write(f, s.graph, header); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
