package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/services"
)

var developCmd = &cobra.Command{
	Use:     "develop",
	Aliases: []string{"dev", "serve"},
	Short:   "Serve the site and rebuild on change",
	Long: `Develop compiles the site into temp, serves it and watches src and public.
Requests are answered from temp, then src, then public, and /node_modules is
served from the project's node_modules. Changed styles are injected into open
pages; every other change reloads them.

Examples:
  sitepipe develop                    # Serve on localhost:2080
  sitepipe develop --port 3000        # Serve on another port
  sitepipe develop --open             # Open the browser once ready
  sitepipe develop --debounce 250ms   # Wait longer before rebuilding`,
	RunE: runDevelop,
}

func init() {
	rootCmd.AddCommand(developCmd)

	developCmd.Flags().IntP("port", "p", config.DefaultPort, "Port to serve on")
	developCmd.Flags().String("host", "localhost", "Host to bind to")
	developCmd.Flags().Bool("open", false, "Open the browser once the server is listening")
	developCmd.Flags().Duration("debounce", config.DefaultDebounce, "Quiet period before rebuilding after a change")

	_ = viper.BindPFlag("server.port", developCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", developCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.open", developCmd.Flags().Lookup("open"))
	_ = viper.BindPFlag("development.debounce", developCmd.Flags().Lookup("debounce"))
}

func runDevelop(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	svc := services.NewDevelopService(cfg, logger)
	return svc.Develop(cmd.Context(), services.DevelopOptions{
		Ready: func(url string) {
			fmt.Fprintf(out, "🚀 Serving %s at %s\n", cfg.Paths.Temp, url)
			fmt.Fprintln(out, "   Press Ctrl+C to stop")
		},
	})
}
