// Package minify shrinks bundled output by file extension. JavaScript and
// CSS go through esbuild, HTML and SVG through tdewolff/minify.
package minify

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	tdminify "github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/tdewolff/parse/v2"

	"github.com/conneroisu/sitepipe/internal/errors"
)

const (
	mimeHTML = "text/html"
	mimeCSS  = "text/css"
	mimeSVG  = "image/svg+xml"
)

var scriptMime = regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$")

// Options switches each minifier on or off.
type Options struct {
	JS        bool
	CSS       bool
	HTML      bool
	InlineCSS bool
	InlineJS  bool
}

// All enables every minifier.
func All() Options {
	return Options{JS: true, CSS: true, HTML: true, InlineCSS: true, InlineJS: true}
}

// Minifier applies the enabled minifiers. It is safe for concurrent use.
type Minifier struct {
	opts Options
	html *tdminify.M
	svg  *tdminify.M
}

// New creates a Minifier for opts.
func New(opts Options) *Minifier {
	h := tdminify.New()
	h.Add(mimeHTML, &html.Minifier{
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
		KeepDefaultAttrVals: true,
	})
	// Unregistered inline types are written through untouched.
	if opts.InlineCSS {
		h.AddFunc(mimeCSS, css.Minify)
	}
	if opts.InlineJS {
		h.AddFuncRegexp(scriptMime, js.Minify)
	}

	s := tdminify.New()
	s.AddFunc(mimeCSS, css.Minify)
	s.AddFunc(mimeSVG, svg.Minify)

	return &Minifier{opts: opts, html: h, svg: s}
}

// File minifies data according to the extension of name. Unknown extensions
// and disabled minifiers return data unchanged.
func (m *Minifier) File(name string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".js", ".mjs":
		if m.opts.JS {
			return m.JS(name, data)
		}
	case ".css":
		if m.opts.CSS {
			return m.CSS(name, data)
		}
	case ".html", ".htm":
		if m.opts.HTML {
			return m.HTML(name, data)
		}
	}
	return data, nil
}

// JS minifies whitespace, identifiers and syntax.
func (m *Minifier) JS(name string, data []byte) ([]byte, error) {
	return esbuildMinify(name, data, api.LoaderJS, true)
}

// CSS minifies whitespace and syntax.
func (m *Minifier) CSS(name string, data []byte) ([]byte, error) {
	return esbuildMinify(name, data, api.LoaderCSS, false)
}

// HTML collapses whitespace, plus inline styles and scripts when enabled.
func (m *Minifier) HTML(name string, data []byte) ([]byte, error) {
	out, err := m.html.Bytes(mimeHTML, data)
	if err != nil {
		return nil, toolError("minify", name, err)
	}
	return out, nil
}

// SVG minifies an SVG document.
func (m *Minifier) SVG(name string, data []byte) ([]byte, error) {
	out, err := m.svg.Bytes(mimeSVG, data)
	if err != nil {
		return nil, toolError("minify", name, err)
	}
	return out, nil
}

func esbuildMinify(name string, data []byte, loader api.Loader, identifiers bool) ([]byte, error) {
	result := api.Transform(string(data), api.TransformOptions{
		Loader:            loader,
		Sourcefile:        filepath.ToSlash(name),
		MinifyWhitespace:  true,
		MinifyIdentifiers: identifiers,
		MinifySyntax:      true,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, FromESBuild(name, result.Errors)
	}
	return result.Code, nil
}

// FromESBuild converts esbuild messages into diagnostics. file is used when
// a message carries no location.
func FromESBuild(file string, msgs []api.Message) errors.Diagnostics {
	diags := make(errors.Diagnostics, 0, len(msgs))
	for _, msg := range msgs {
		d := &errors.Diagnostic{
			Tool:     "esbuild",
			File:     filepath.ToSlash(file),
			Message:  msg.Text,
			Severity: errors.ErrorSeverityError,
		}
		if msg.Location != nil {
			if msg.Location.File != "" {
				d.File = msg.Location.File
			}
			d.Line = msg.Location.Line
			// esbuild columns are zero-based
			d.Column = msg.Location.Column + 1
		}
		diags = append(diags, d)
	}
	return diags
}

func toolError(tool, file string, err error) *errors.Diagnostic {
	d := &errors.Diagnostic{
		Tool:     tool,
		File:     filepath.ToSlash(file),
		Message:  err.Error(),
		Severity: errors.ErrorSeverityError,
	}
	var perr *parse.Error
	if errors.As(err, &perr) {
		d.Message = perr.Message
		d.Line = perr.Line
		d.Column = perr.Column
	}
	return d
}
