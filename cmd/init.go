package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepipe/internal/services"
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Scaffold a new site",
	Long: `Init lays out src, public, package.json and .sitepipe.yml in the given
directory, or the current one. Existing files are kept unless --force is set.

Examples:
  sitepipe init                   # Scaffold into the current directory
  sitepipe init blog --name blog  # Scaffold into ./blog`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initName  string
	initForce bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initName, "name", "", "Package name (default is the directory name)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing starter files")
}

func runInit(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	svc := services.NewInitService(logger)
	result, err := svc.InitProject(cmd.Context(), services.InitOptions{
		ProjectDir: dir,
		Name:       initName,
		Force:      initForce,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, path := range result.Created {
		fmt.Fprintf(out, "   + %s\n", path)
	}
	for _, path := range result.Skipped {
		fmt.Fprintf(out, "   = %s (exists)\n", path)
	}
	fmt.Fprintf(out, "✅ Project ready in %s. Run 'sitepipe develop' to start.\n", dir)
	return nil
}
