package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepipe/internal/build"
	"github.com/conneroisu/sitepipe/internal/services"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Build the production site into dist",
	Long: `Build cleans dist, compiles styles, scripts and pages into temp and
concatenates the build blocks of every page into minified bundles in dist.
Images, fonts and public files are copied alongside.

Examples:
  sitepipe build                  # Full production build
  sitepipe build --no-minify      # Keep bundles and pages readable`,
	RunE: runBuild,
}

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile styles, scripts and pages into temp",
	Long: `Compile runs the style, script and page tasks once and writes their
output to temp without touching dist.`,
	RunE: runCompile,
}

var buildNoMinify bool

func init() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(compileCmd)

	buildCmd.Flags().BoolVar(&buildNoMinify, "no-minify", false, "Write bundles and pages without minification")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "🔨 Building site...")

	svc := services.NewBuildService(cfg, logger)
	result, err := svc.Build(cmd.Context(), services.BuildOptions{NoMinify: buildNoMinify})
	printReport(out, result)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ Build completed in %v\n", result.Duration)
	fmt.Fprintf(out, "   - Output written to: %s\n", cfg.Paths.Dist)
	return nil
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	svc := services.NewBuildService(cfg, logger)
	result, err := svc.Compile(cmd.Context())
	printReport(out, result)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ Compiled into %s in %v\n", cfg.Paths.Temp, result.Duration)
	return nil
}

// printReport lists every task that did not succeed.
func printReport(out io.Writer, result *services.BuildResult) {
	if result == nil || result.Report == nil {
		return
	}
	for _, tr := range result.Report.Tasks {
		switch tr.Status {
		case build.StatusFailed:
			fmt.Fprintf(out, "❌ %s: %v\n", tr.Name, tr.Err)
		case build.StatusSkipped:
			fmt.Fprintf(out, "   - %s skipped\n", tr.Name)
		}
	}
}
