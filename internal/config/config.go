// Package config provides configuration management for sitepipe using Viper
// for flexible loading from .sitepipe.yml, SITEPIPE_ environment variables
// and command-line flags.
//
// The configuration describes the filesystem layout (src, public, temp, dist
// trees and the source globs below them), the development server, the
// per-tool build options and the template data sources. Every field has a
// default matching the conventional layout, so an empty config file builds a
// standard project.
package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/validation"
)

type Config struct {
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Build       BuildConfig       `yaml:"build" mapstructure:"build"`
	Development DevelopmentConfig `yaml:"development" mapstructure:"development"`
	Data        DataConfig        `yaml:"data" mapstructure:"data"`
}

// PathsConfig holds the four trees and the globs evaluated below them.
type PathsConfig struct {
	Src    string `yaml:"src" mapstructure:"src"`
	Public string `yaml:"public" mapstructure:"public"`
	Temp   string `yaml:"temp" mapstructure:"temp"`
	Dist   string `yaml:"dist" mapstructure:"dist"`

	Styles  string `yaml:"styles" mapstructure:"styles"`
	Scripts string `yaml:"scripts" mapstructure:"scripts"`
	Pages   string `yaml:"pages" mapstructure:"pages"`
	Images  string `yaml:"images" mapstructure:"images"`
	Fonts   string `yaml:"fonts" mapstructure:"fonts"`
	Extra   string `yaml:"extra" mapstructure:"extra"`
	Bundle  string `yaml:"bundle" mapstructure:"bundle"`
}

type ServerConfig struct {
	Host   string            `yaml:"host" mapstructure:"host"`
	Port   int               `yaml:"port" mapstructure:"port"`
	Open   bool              `yaml:"open" mapstructure:"open"`
	Routes map[string]string `yaml:"routes" mapstructure:"routes"`
}

type BuildConfig struct {
	StyleOutput  string       `yaml:"style_output" mapstructure:"style_output"`
	SassBinary   string       `yaml:"sass_binary" mapstructure:"sass_binary"`
	ScriptTarget string       `yaml:"script_target" mapstructure:"script_target"`
	SearchPaths  []string     `yaml:"search_paths" mapstructure:"search_paths"`
	JPEGQuality  int          `yaml:"jpeg_quality" mapstructure:"jpeg_quality"`
	Minify       MinifyConfig `yaml:"minify" mapstructure:"minify"`
}

type MinifyConfig struct {
	JS        bool `yaml:"js" mapstructure:"js"`
	CSS       bool `yaml:"css" mapstructure:"css"`
	HTML      bool `yaml:"html" mapstructure:"html"`
	InlineCSS bool `yaml:"inline_css" mapstructure:"inline_css"`
	InlineJS  bool `yaml:"inline_js" mapstructure:"inline_js"`
}

type DevelopmentConfig struct {
	Debounce     time.Duration `yaml:"debounce" mapstructure:"debounce"`
	HotReload    bool          `yaml:"hot_reload" mapstructure:"hot_reload"`
	CSSInjection bool          `yaml:"css_injection" mapstructure:"css_injection"`
}

// DataConfig names the files template data is read from.
type DataConfig struct {
	File    string `yaml:"file" mapstructure:"file"`
	Package string `yaml:"package" mapstructure:"package"`
}

const (
	DefaultPort     = 2080
	DefaultDebounce = 100 * time.Millisecond
)

var (
	styleOutputs  = []string{"expanded", "compressed"}
	scriptTargets = []string{"es2015", "es2016", "es2017", "es2018", "es2019", "es2020", "es2021", "es2022", "esnext"}
)

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applies defaults and validates it.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}

	applyDefaults(v, &config)

	if err := validateConfig(&config); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "invalid configuration")
	}

	return &config, nil
}

func applyDefaults(v *viper.Viper, config *Config) {
	p := &config.Paths
	setString(&p.Src, "src")
	setString(&p.Public, "public")
	setString(&p.Temp, "temp")
	setString(&p.Dist, "dist")
	setString(&p.Styles, "assets/styles/*.scss")
	setString(&p.Scripts, "assets/scripts/*.js")
	setString(&p.Pages, "**/*.html")
	setString(&p.Images, "assets/images/**")
	setString(&p.Fonts, "assets/fonts/**")
	setString(&p.Extra, "**")
	setString(&p.Bundle, "*.html")

	setString(&config.Server.Host, "localhost")
	if !v.IsSet("server.port") {
		config.Server.Port = DefaultPort
	}
	if config.Server.Routes == nil {
		config.Server.Routes = map[string]string{"/node_modules": "node_modules"}
	}

	b := &config.Build
	setString(&b.StyleOutput, "expanded")
	setString(&b.ScriptTarget, "es2015")
	if len(b.SearchPaths) == 0 {
		// Handle search_paths set via viper (workaround for viper slice handling)
		if v.IsSet("build.search_paths") {
			b.SearchPaths = v.GetStringSlice("build.search_paths")
		}
		if len(b.SearchPaths) == 0 {
			b.SearchPaths = []string{p.Temp, "."}
		}
	}
	if b.JPEGQuality == 0 {
		b.JPEGQuality = 85
	}
	setBool(v, &b.Minify.JS, "build.minify.js", true)
	setBool(v, &b.Minify.CSS, "build.minify.css", true)
	setBool(v, &b.Minify.HTML, "build.minify.html", true)
	setBool(v, &b.Minify.InlineCSS, "build.minify.inline_css", true)
	setBool(v, &b.Minify.InlineJS, "build.minify.inline_js", true)

	d := &config.Development
	if !v.IsSet("development.debounce") {
		d.Debounce = DefaultDebounce
	}
	setBool(v, &d.HotReload, "development.hot_reload", true)
	setBool(v, &d.CSSInjection, "development.css_injection", true)

	setString(&config.Data.Package, "package.json")
}

func setString(field *string, def string) {
	if *field == "" {
		*field = def
	}
}

// setBool applies def unless the key was set explicitly (workaround for viper bool handling)
func setBool(v *viper.Viper, field *bool, key string, def bool) {
	if v.IsSet(key) {
		*field = v.GetBool(key)
		return
	}
	*field = def
}

// Address returns the host:port the development server binds.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validatePathsConfig(&config.Paths); err != nil {
		return fmt.Errorf("paths config: %w", err)
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateBuildConfig(&config.Build); err != nil {
		return fmt.Errorf("build config: %w", err)
	}

	if config.Development.Debounce < 0 {
		return fmt.Errorf("development config: debounce must not be negative, got %s", config.Development.Debounce)
	}

	return nil
}

func validatePathsConfig(config *PathsConfig) error {
	trees := map[string]string{
		"src":    config.Src,
		"public": config.Public,
		"temp":   config.Temp,
		"dist":   config.Dist,
	}
	seen := make(map[string]string, len(trees))
	for name, dir := range trees {
		if err := validatePath(dir); err != nil {
			return fmt.Errorf("invalid %s path '%s': %w", name, dir, err)
		}
		clean := filepath.Clean(dir)
		if clean == "." {
			return fmt.Errorf("%s must not be the project root", name)
		}
		if other, ok := seen[clean]; ok {
			return fmt.Errorf("%s and %s must be different directories, both are '%s'", name, other, dir)
		}
		seen[clean] = name
	}

	patterns := map[string]string{
		"styles":  config.Styles,
		"scripts": config.Scripts,
		"pages":   config.Pages,
		"images":  config.Images,
		"fonts":   config.Fonts,
		"extra":   config.Extra,
		"bundle":  config.Bundle,
	}
	for name, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid %s pattern '%s'", name, pattern)
		}
		if strings.HasPrefix(pattern, "/") || strings.Contains(pattern, "..") {
			return fmt.Errorf("%s pattern '%s' must be relative to its root", name, pattern)
		}
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", "/"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	for prefix, dir := range config.Routes {
		if !strings.HasPrefix(prefix, "/") {
			return fmt.Errorf("route '%s' must start with '/'", prefix)
		}
		if err := validatePath(dir); err != nil {
			return fmt.Errorf("invalid directory for route '%s': %w", prefix, err)
		}
	}

	return nil
}

func validateBuildConfig(config *BuildConfig) error {
	if !contains(styleOutputs, config.StyleOutput) {
		return fmt.Errorf("unknown style_output '%s' (supported: %s)", config.StyleOutput, strings.Join(styleOutputs, ", "))
	}
	if !contains(scriptTargets, strings.ToLower(config.ScriptTarget)) {
		return fmt.Errorf("unknown script_target '%s' (supported: %s)", config.ScriptTarget, strings.Join(scriptTargets, ", "))
	}
	if config.JPEGQuality < 1 || config.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality %d is not in valid range 1-100", config.JPEGQuality)
	}
	if config.SassBinary != "" {
		if err := validation.ValidateExecutable(config.SassBinary); err != nil {
			return fmt.Errorf("invalid sass_binary: %w", err)
		}
	}
	for _, path := range config.SearchPaths {
		if err := validatePath(path); err != nil {
			return fmt.Errorf("invalid search path '%s': %w", path, err)
		}
	}
	return nil
}

// validatePath validates a project-relative directory
func validatePath(path string) error {
	return validation.ValidatePath(path)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
