package transform

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/sitepipe/internal/fileset"
	"github.com/conneroisu/sitepipe/internal/minify"
)

var scriptTargets = map[string]api.Target{
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

var scriptLoaders = map[string]api.Loader{
	".js":  api.LoaderJS,
	".mjs": api.LoaderJS,
	".cjs": api.LoaderJS,
	".jsx": api.LoaderJSX,
	".ts":  api.LoaderTS,
	".tsx": api.LoaderTSX,
}

// Script lowers modern ECMAScript to the configured target with esbuild.
type Script struct {
	target api.Target
}

// NewScript returns a Script for target ("es2015" through "es2022" or
// "esnext").
func NewScript(target string) (*Script, error) {
	t, ok := scriptTargets[strings.ToLower(target)]
	if !ok {
		return nil, fmt.Errorf("unknown script target %q", target)
	}
	return &Script{target: t}, nil
}

func (s *Script) Name() string { return "esbuild" }

func (s *Script) Transform(ctx context.Context, f File) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}

	loader, ok := scriptLoaders[strings.ToLower(filepath.Ext(f.Rel))]
	if !ok {
		loader = api.LoaderJS
	}

	result := api.Transform(string(f.Contents), api.TransformOptions{
		Loader:     loader,
		Target:     s.target,
		Sourcefile: filepath.ToSlash(f.Source),
		Charset:    api.CharsetUTF8,
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return File{}, minify.FromESBuild(f.Source, result.Errors)
	}

	return File{
		Source:   f.Source,
		Rel:      fileset.SwapExt(f.Rel, ".js"),
		Contents: result.Code,
	}, nil
}
