// Package cmd provides the command-line interface for sitepipe.
//
// This package implements the CLI commands using the Cobra framework. Each
// command loads the configuration through Viper and hands off to the
// services package.
//
// # Available Commands
//
//   - build: clean dist, compile into temp and bundle the site into dist
//   - compile: compile styles, scripts and pages into temp only
//   - develop: compile, serve on port 2080 and rebuild on change
//   - clean: remove dist, and temp with --temp
//   - init: scaffold a starter site
//   - version: print build information
//
// # Command Examples
//
//	// Production build without minification
//	sitepipe build --no-minify
//
//	// Development server on another port with a slower debounce
//	sitepipe develop --port 3000 --debounce 250ms
//
//	// Remove every generated tree
//	sitepipe clean --temp
//
// # Configuration
//
// Settings come from .sitepipe.yml in the working directory, a file named by
// --config or SITEPIPE_CONFIG_FILE, and SITEPIPE_ environment variables such
// as SITEPIPE_SERVER_PORT. Flags take precedence over all of them.
package cmd
