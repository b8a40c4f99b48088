// Package bundler rewrites rendered pages by replacing each build/endbuild
// comment block with a single reference to a concatenated bundle, then
// minifies pages and bundles into the output tree.
//
// A block looks like:
//
//	<!-- build:css(vendor,.) assets/styles/vendor.css -->
//	<link rel="stylesheet" href="/node_modules/bootstrap/dist/css/bootstrap.css">
//	<!-- endbuild -->
//
// The parenthesised list is optional and adds search paths for that block.
package bundler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/fileset"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/minify"
)

// Options configures a Bundler.
type Options struct {
	// SearchPaths are tried in order after a block's own alternate paths.
	SearchPaths []string
	// Minifier is applied to every written file. Nil writes files as is.
	Minifier *minify.Minifier
	Logger   logging.Logger
}

// Bundler processes the pages of one source into a destination tree.
type Bundler struct {
	searchPaths []string
	minifier    *minify.Minifier
	logger      logging.Logger
}

// Output is one file produced by a run.
type Output struct {
	Rel      string
	Contents []byte
	// Sources lists the files a bundle was concatenated from. Empty for pages.
	Sources []string
}

func New(opts Options) *Bundler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Bundler{
		searchPaths: opts.SearchPaths,
		minifier:    opts.Minifier,
		logger:      logger.WithComponent("bundler"),
	}
}

// Run bundles every page matched by pages and writes pages and bundles
// below dest. It returns the written outputs in path order.
func (b *Bundler) Run(ctx context.Context, pages fileset.Source, dest string) ([]Output, error) {
	files, err := pages.Glob()
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeGlobFailed, "failed to list pages", pages.String())
	}

	outputs, err := b.Bundle(ctx, files)
	if err != nil {
		return nil, err
	}

	for i := range outputs {
		out := &outputs[i]
		minified, err := b.minify(out.Rel, out.Contents)
		if err != nil {
			return nil, err
		}
		out.Contents = minified

		if err := fileset.WriteFile(dest, out.Rel, out.Contents); err != nil {
			return nil, errors.WrapIO(err, errors.ErrCodeWriteFailed, "failed to write output", filepath.Join(dest, out.Rel))
		}
		b.logger.Debug(ctx, "Wrote output", "path", filepath.ToSlash(out.Rel), "bytes", len(out.Contents))
	}

	return outputs, nil
}

// Bundle rewrites files and builds their bundles in memory. A bundle
// referenced from several pages is produced once; defining it differently
// in two places is an error.
func (b *Bundler) Bundle(ctx context.Context, files []fileset.File) ([]Output, error) {
	bundles := make(map[string]*Output)
	definedIn := make(map[string]string)
	var outputs []Output

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := os.ReadFile(f.Path())
		if err != nil {
			return nil, errors.WrapIO(err, errors.ErrCodeReadFailed, "failed to read page", f.Path())
		}

		blocks, err := Parse(f.Path(), doc)
		if err != nil {
			return nil, err
		}

		pageDir := filepath.Dir(f.Rel)
		for _, block := range blocks {
			rel, ok := outputRel(pageDir, block.Output)
			if !ok {
				return nil, markerError(f.Path(), block.Line, fmt.Sprintf("bundle %s escapes the output directory", block.Output))
			}
			sources, err := b.resolveAll(f, pageDir, block)
			if err != nil {
				return nil, err
			}

			if existing, ok := bundles[rel]; ok {
				if !slices.Equal(existing.Sources, sources) {
					return nil, errors.NewConfigError(errors.ErrCodeBundleConflict,
						fmt.Sprintf("bundle %s is defined differently in %s", filepath.ToSlash(rel), definedIn[rel])).
						WithLocation(f.Path(), block.Line, 0)
				}
				continue
			}

			contents, err := concatFiles(sources)
			if err != nil {
				return nil, err
			}
			bundles[rel] = &Output{Rel: rel, Contents: contents, Sources: sources}
			definedIn[rel] = f.Path()
		}

		outputs = append(outputs, Output{Rel: f.Rel, Contents: Rewrite(doc, blocks)})
	}

	for _, out := range bundles {
		outputs = append(outputs, *out)
	}
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].Rel < outputs[j].Rel })
	return outputs, nil
}

// Rewrite replaces every block in doc with its single reference.
func Rewrite(doc []byte, blocks []Block) []byte {
	if len(blocks) == 0 {
		return doc
	}
	var buf bytes.Buffer
	last := 0
	for _, block := range blocks {
		buf.Write(doc[last:block.Start])
		buf.WriteString(block.Tag())
		last = block.End
	}
	buf.Write(doc[last:])
	return buf.Bytes()
}

// Concat joins parts in order, inserting a newline only after a part that
// does not already end with one.
func Concat(parts [][]byte) []byte {
	var buf bytes.Buffer
	for i, p := range parts {
		buf.Write(p)
		if i < len(parts)-1 && len(p) > 0 && p[len(p)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

func concatFiles(paths []string) ([]byte, error) {
	parts := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.WrapIO(err, errors.ErrCodeReadFailed, "failed to read bundle source", p)
		}
		parts = append(parts, data)
	}
	return Concat(parts), nil
}

func (b *Bundler) resolveAll(f fileset.File, pageDir string, block Block) ([]string, error) {
	search := make([]string, 0, len(block.AltPaths)+len(b.searchPaths))
	search = append(search, block.AltPaths...)
	search = append(search, b.searchPaths...)

	sources := make([]string, 0, len(block.Refs))
	for _, ref := range block.Refs {
		path, err := resolve(ref, pageDir, search)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeUnresolvedRef, "unresolved reference in build block").
				WithLocation(f.Path(), block.Line, 0)
		}
		sources = append(sources, path)
	}
	return sources, nil
}

// resolve locates ref below the first search path that contains it.
// Root-relative refs ignore the page directory.
func resolve(ref, pageDir string, search []string) (string, error) {
	if isRemote(ref) {
		return "", fmt.Errorf("remote reference %q cannot be bundled", ref)
	}

	clean := ref
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	if clean == "" {
		return "", fmt.Errorf("empty reference %q", ref)
	}

	rooted := strings.HasPrefix(clean, "/")
	rel := filepath.FromSlash(strings.TrimPrefix(clean, "/"))

	for _, dir := range search {
		candidate := filepath.Join(dir, rel)
		if !rooted {
			candidate = filepath.Join(dir, pageDir, rel)
		}
		if fileset.Exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%q not found in %s", ref, strings.Join(search, ", "))
}

func isRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http:") ||
		strings.HasPrefix(lower, "https:") ||
		strings.HasPrefix(lower, "//") ||
		strings.HasPrefix(lower, "data:")
}

// outputRel places a bundle path relative to the page that declares it. It
// reports false when the result would land outside the output directory.
func outputRel(pageDir, output string) (string, bool) {
	var rel string
	if strings.HasPrefix(output, "/") {
		rel = filepath.Clean(filepath.FromSlash(strings.TrimPrefix(output, "/")))
	} else {
		rel = filepath.Join(pageDir, filepath.FromSlash(output))
	}
	if rel == "." || rel == ".." || filepath.IsAbs(rel) || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

func (b *Bundler) minify(rel string, data []byte) ([]byte, error) {
	if b.minifier == nil {
		return data, nil
	}
	out, err := b.minifier.File(rel, data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransform, errors.ErrCodeMinifyFailed, "minification failed").
			WithLocation(rel, 0, 0)
	}
	return out, nil
}
