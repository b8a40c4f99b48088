package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepipe/internal/services"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove generated output",
	Long: `Clean removes the dist tree. With --temp the intermediate tree written by
compile and develop is removed as well.`,
	RunE: runClean,
}

var cleanTemp bool

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().BoolVar(&cleanTemp, "temp", false, "Also remove the temp tree")
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	svc := services.NewBuildService(cfg, logger)
	if err := svc.Clean(cmd.Context(), services.CleanOptions{Temp: cleanTemp}); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "🧹 Removed %s\n", cfg.Paths.Dist)
	if cleanTemp {
		fmt.Fprintf(cmd.OutOrStdout(), "🧹 Removed %s\n", cfg.Paths.Temp)
	}
	return nil
}
