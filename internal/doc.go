// Package internal contains the core implementation packages for sitepipe.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the sitepipe CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - build: Tasks, the task graph that runs them and per-task metrics
//   - bundler: Build-comment parsing and bundle assembly for rendered pages
//   - config: Configuration loading and validation with Viper
//   - errors: Typed pipeline errors, tool diagnostics and the error collector
//   - fileset: Root-relative doublestar globs shared by tasks and watchers
//   - livereload: WebSocket hub and the client script injected into pages
//   - logging: Structured logging on slog with a charmbracelet text handler
//   - minify: HTML, CSS, JS and SVG minification
//   - server: Development server with ordered fallback roots
//   - services: Build, compile, develop, clean and init entry points
//   - sitedata: Template data from package.json and the data file
//   - transform: Sass, esbuild, pongo2 and image transformers
//   - watcher: File system monitoring with debouncing
//
// # Data Flow
//
// Sources under src are compiled into temp by the style, script and page
// tasks. The bundler rewrites the pages in temp into dist, while images,
// fonts and public files are copied to dist directly. During development
// the server answers from temp, then src, then public, and the watcher
// reruns the task whose sources changed and notifies the live-reload hub.
package internal
