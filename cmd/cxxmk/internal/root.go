package internal

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dfsbuild/cxxmk/internal/manifest"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"
)

var (
	manifestFile string
	directory    string
	jobs         int
	dryRun       bool
	alwaysMake   bool
	explain      bool
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "cxxmk [goal...] [VAR=value...]",
	Short: "cxxmk builds C++ artifacts declared in a project manifest",
	Long: `cxxmk builds the executables, static and shared libraries and test
executables declared in cxxmk.yaml against the common library and the
third-party tree. Without a command it builds the given goals, or all
artifacts.

Configuration variables are read from the environment and may be
overridden with VAR=value arguments; run "cxxmk help" to list them.`,
	Args:              cobra.ArbitraryArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runBuild,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&manifestFile, "file", "f", manifest.DefaultFile, "Read the project manifest from `file`")
	flags.StringVarP(&directory, "directory", "C", "", "Change to `dir` before doing anything")
	flags.IntVarP(&jobs, "jobs", "j", 0, "Run `N` commands in parallel (default: number of CPUs)")
	flags.BoolVarP(&dryRun, "dry-run", "n", false, "Print commands without running them")
	flags.BoolVarP(&alwaysMake, "always-make", "B", false, "Consider every target out of date")
	flags.BoolVarP(&explain, "explain", "e", false, "Explain why each target is rebuilt")
	flags.StringVar(&logLevel, "log-level", "info", "Log `level`: debug, info or warn")
}

var logLevels = map[string]int{
	"debug": log.Ldebug,
	"info":  log.Linfo,
	"warn":  log.Lwarn,
}

func setup(cmd *cobra.Command, args []string) error {
	lvl, ok := logLevels[logLevel]
	if !ok {
		return fmt.Errorf("invalid --log-level %q", logLevel)
	}
	log.SetOutputLevel(lvl)
	if jobs < 0 {
		return fmt.Errorf("invalid --jobs %d", jobs)
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cxxmk:", err)
		os.Exit(1)
	}
}
