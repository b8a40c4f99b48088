package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitepipe",
	Short: "Build and serve static sites from SCSS, modern JavaScript and templates",
	Long: `Sitepipe compiles a static site from a src tree into dist.

Styles are compiled with dart-sass, scripts are transpiled with esbuild and
pages are rendered as Django-style templates. Build comments in the rendered
pages concatenate their assets into minified bundles.

Quick Start:
  sitepipe init                   Scaffold a starter site
  sitepipe develop                Compile, serve and reload on change
  sitepipe build                  Produce the production site in dist
  sitepipe clean --temp           Remove generated trees

Command Aliases:
  build (b), develop (dev, serve)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .sitepipe.yml, can also use SITEPIPE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)
}

// normalizeFlagName accepts --no_minify for --no-minify.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func initConfig() {
	if err := configure(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}
}

// configure points v at the configuration file and environment.
//
// Configuration Loading Priority (highest to lowest):
//  1. file: the --config flag
//  2. SITEPIPE_CONFIG_FILE environment variable
//  3. .sitepipe.yml in the working directory, which may be absent
//
// Values can be overridden with SITEPIPE_ variables, with dots in keys
// replaced by underscores (SITEPIPE_SERVER_PORT=8080).
func configure(v *viper.Viper, file string) error {
	explicit := true
	if file != "" {
		v.SetConfigFile(file)
	} else if envConfigFile := os.Getenv("SITEPIPE_CONFIG_FILE"); envConfigFile != "" {
		v.SetConfigFile(envConfigFile)
	} else {
		explicit = false
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".sitepipe")
	}

	v.SetEnvPrefix("SITEPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && errors.As(err, &notFound) {
			return nil
		}
		return errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "failed to read config file")
	}
	return nil
}

// loadConfig reads the configuration and builds the logger for a command.
func loadConfig(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, nil, err
	}

	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug(cmd.Context(), "Using config file", "path", used)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, logger, nil
}

func newLogger(cmd *cobra.Command) (logging.Logger, error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}

	format, _ := cmd.Flags().GetString("log-format")
	switch format {
	case "text", "json":
	default:
		return nil, fmt.Errorf("unknown log format %q (supported: text, json)", format)
	}

	logConfig := logging.DefaultConfig()
	logConfig.Level = level
	logConfig.Format = format
	logConfig.Output = cmd.ErrOrStderr()
	return logging.NewLogger(logConfig), nil
}
