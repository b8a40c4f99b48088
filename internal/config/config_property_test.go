//go:build property
// +build property

package config

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/viper"
)

// TestConfigurationProperties tests configuration loading and validation properties
func TestConfigurationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2080)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("ports inside 0-65535 load", prop.ForAll(
		func(port int) bool {
			v := viper.New()
			v.Set("server.port", port)
			cfg, err := LoadFrom(v)
			return err == nil && cfg.Server.Port == port
		},
		gen.IntRange(0, 65535),
	))

	properties.Property("ports outside 0-65535 are rejected", prop.ForAll(
		func(port int, negative bool) bool {
			if negative {
				port = -port
			} else {
				port += 65535
			}
			v := viper.New()
			v.Set("server.port", port)
			_, err := LoadFrom(v)
			return err != nil
		},
		gen.IntRange(1, 1000000),
		gen.Bool(),
	))

	properties.Property("a tree shared by two roles is rejected", prop.ForAll(
		func(dir string, roles []int) bool {
			keys := []string{"paths.src", "paths.public", "paths.temp", "paths.dist"}
			a, b := roles[0]%4, roles[1]%4
			if a == b {
				b = (b + 1) % 4
			}
			v := viper.New()
			v.Set(keys[a], dir)
			v.Set(keys[b], dir)
			_, err := LoadFrom(v)
			return err != nil
		},
		gen.RegexMatch(`^[a-z]{1,8}(/[a-z]{1,8})?$`),
		gen.SliceOfN(2, gen.IntRange(0, 3)),
	))

	properties.Property("explicit minify switches survive defaults", prop.ForAll(
		func(js, css, html bool) bool {
			v := viper.New()
			v.Set("build.minify.js", js)
			v.Set("build.minify.css", css)
			v.Set("build.minify.html", html)
			cfg, err := LoadFrom(v)
			if err != nil {
				return false
			}
			m := cfg.Build.Minify
			return m.JS == js && m.CSS == css && m.HTML == html && m.InlineCSS && m.InlineJS
		},
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("loading is deterministic", prop.ForAll(
		func(quality int, target string) bool {
			load := func() *Config {
				v := viper.New()
				v.Set("build.jpeg_quality", quality)
				v.Set("build.script_target", target)
				cfg, err := LoadFrom(v)
				if err != nil {
					return nil
				}
				return cfg
			}
			first, second := load(), load()
			if first == nil || second == nil {
				return first == nil && second == nil
			}
			return first.Build.JPEGQuality == second.Build.JPEGQuality &&
				first.Build.ScriptTarget == second.Build.ScriptTarget &&
				first.Address() == second.Address()
		},
		gen.IntRange(-10, 110),
		gen.OneConstOf("es2015", "es2020", "esnext", "es5", "ES2017"),
	))

	properties.TestingRun(t)
}
