package transform

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/sitedata"
)

func createTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readSource(t *testing.T, root, rel string) File {
	t.Helper()
	path := filepath.Join(root, rel)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return File{Source: path, Rel: rel, Contents: data}
}

func requireSass(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sass"); err != nil {
		t.Skip("dart-sass not installed")
	}
}

func TestScriptLowersModernSyntax(t *testing.T) {
	s, err := NewScript("es2015")
	require.NoError(t, err)

	in := File{
		Source:   "src/assets/scripts/main.js",
		Rel:      filepath.Join("assets", "scripts", "main.js"),
		Contents: []byte("const cfg = window.cfg ?? {};\nconst name = cfg?.user?.name;\nconsole.log(name);\n"),
	}
	out, err := s.Transform(context.Background(), in)
	require.NoError(t, err)

	code := string(out.Contents)
	assert.Equal(t, in.Rel, out.Rel)
	assert.NotContains(t, code, "??")
	assert.NotContains(t, code, "?.")
	assert.Contains(t, code, "console.log")
}

func TestScriptTypeScriptChangesExtension(t *testing.T) {
	s, err := NewScript("esnext")
	require.NoError(t, err)

	out, err := s.Transform(context.Background(), File{
		Source:   "src/app.ts",
		Rel:      "app.ts",
		Contents: []byte("const n: number = 1;\nexport default n;\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, "app.js", out.Rel)
	assert.NotContains(t, string(out.Contents), ": number")
}

func TestScriptSyntaxError(t *testing.T) {
	s, err := NewScript("es2015")
	require.NoError(t, err)

	_, err = s.Transform(context.Background(), File{Source: "src/bad.js", Rel: "bad.js", Contents: []byte("let = ;")})
	require.Error(t, err)

	var diag *errors.Diagnostic
	require.True(t, errors.As(err, &diag))
	assert.Equal(t, "esbuild", diag.Tool)
	assert.Equal(t, 1, diag.Line)
}

func TestScriptUnknownTarget(t *testing.T) {
	_, err := NewScript("es5")
	assert.Error(t, err)
}

func TestScriptIdempotent(t *testing.T) {
	s, err := NewScript("es2015")
	require.NoError(t, err)

	in := File{Source: "main.js", Rel: "main.js", Contents: []byte("export const double = (x) => x * 2;\n")}
	first, err := s.Transform(context.Background(), in)
	require.NoError(t, err)
	second, err := s.Transform(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.Contents, second.Contents)
}

type staticData struct{ data *sitedata.Data }

func (s staticData) Load() (*sitedata.Data, error) { return s.data, nil }

func TestPageRendersWithSiteData(t *testing.T) {
	root := t.TempDir()
	createTestFile(t, filepath.Join(root, "layouts", "base.html"),
		`<html><body>{% block content %}{% endblock %}<footer>{{ pkg.name }} {{ year }}</footer></body></html>`)
	createTestFile(t, filepath.Join(root, "partials", "nav.html"),
		`<nav>{% for menu in menus %}<a href="{{ menu.link }}">{{ menu.name }}</a>{% endfor %}</nav>`)
	createTestFile(t, filepath.Join(root, "index.html"),
		`{% extends "layouts/base.html" %}{% block content %}{% include "partials/nav.html" %}<h1>{{ title("hello world") }}</h1>{% endblock %}`)

	data := &sitedata.Data{
		Menus: sitedata.DefaultMenus(),
		Pkg:   map[string]interface{}{"name": "zce-pages"},
		Date:  time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Extra: map[string]interface{}{},
	}
	page, err := NewPage(root, staticData{data})
	require.NoError(t, err)

	out, err := page.Transform(context.Background(), readSource(t, root, "index.html"))
	require.NoError(t, err)

	html := string(out.Contents)
	assert.Equal(t, "index.html", out.Rel)
	assert.Contains(t, html, `<a href="index.html">Home</a>`)
	assert.Contains(t, html, `<a href="#">Contact</a>`)
	assert.Contains(t, html, "<h1>Hello World</h1>")
	assert.Contains(t, html, "<footer>zce-pages 2026</footer>")
}

func TestPageReflectsEdits(t *testing.T) {
	root := t.TempDir()
	createTestFile(t, filepath.Join(root, "index.html"), "<p>one</p>")

	data := &sitedata.Data{Pkg: map[string]interface{}{}, Extra: map[string]interface{}{}}
	page, err := NewPage(root, staticData{data})
	require.NoError(t, err)

	out, err := page.Transform(context.Background(), readSource(t, root, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<p>one</p>", string(out.Contents))

	createTestFile(t, filepath.Join(root, "index.html"), "<p>two</p>")
	out, err = page.Transform(context.Background(), readSource(t, root, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<p>two</p>", string(out.Contents))
}

func TestPageTemplateError(t *testing.T) {
	root := t.TempDir()
	createTestFile(t, filepath.Join(root, "broken.html"), "<p>\n{% if %}\n</p>")

	data := &sitedata.Data{Pkg: map[string]interface{}{}, Extra: map[string]interface{}{}}
	page, err := NewPage(root, staticData{data})
	require.NoError(t, err)

	_, err = page.Transform(context.Background(), readSource(t, root, "broken.html"))
	require.Error(t, err)

	var diag *errors.Diagnostic
	require.True(t, errors.As(err, &diag))
	assert.Equal(t, "pongo2", diag.Tool)
	assert.Positive(t, diag.Line)
}

func TestImageRecompressesPNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, (&png.Encoder{CompressionLevel: png.NoCompression}).Encode(&buf, img))

	in := File{Source: "logo.png", Rel: filepath.Join("assets", "images", "logo.png"), Contents: buf.Bytes()}
	out, err := NewImage(85).Transform(context.Background(), in)
	require.NoError(t, err)

	assert.Less(t, len(out.Contents), len(in.Contents))
	decoded, err := png.Decode(bytes.NewReader(out.Contents))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}

func TestImageKeepsSmallerOriginal(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	require.NoError(t, (&png.Encoder{CompressionLevel: png.BestCompression}).Encode(&buf, img))

	in := File{Source: "dot.png", Rel: "dot.png", Contents: buf.Bytes()}
	out, err := NewImage(85).Transform(context.Background(), in)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out.Contents), len(in.Contents))
}

func TestImageMinifiesSVG(t *testing.T) {
	src := "<svg xmlns=\"http://www.w3.org/2000/svg\">\n  <!-- comment -->\n  <circle cx=\"5\" cy=\"5\" r=\"4\"/>\n</svg>\n"
	out, err := NewImage(85).Transform(context.Background(), File{Source: "i.svg", Rel: "i.svg", Contents: []byte(src)})
	require.NoError(t, err)
	assert.Less(t, len(out.Contents), len(src))
	assert.NotContains(t, string(out.Contents), "comment")
}

func TestImagePassesFontsThrough(t *testing.T) {
	in := File{Source: "f.woff2", Rel: filepath.Join("assets", "fonts", "f.woff2"), Contents: []byte("wOF2 binary")}
	out, err := NewImage(85).Transform(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestImageCorruptPNG(t *testing.T) {
	_, err := NewImage(85).Transform(context.Background(), File{Source: "bad.png", Rel: "bad.png", Contents: []byte("not a png")})
	require.Error(t, err)

	var diag *errors.Diagnostic
	require.True(t, errors.As(err, &diag))
	assert.Equal(t, "bad.png", diag.File)
}

func TestSassCompilesWithImportedVariable(t *testing.T) {
	requireSass(t)

	root := t.TempDir()
	createTestFile(t, filepath.Join(root, "assets", "styles", "_variables.scss"), "$brand: #336699;\n")
	createTestFile(t, filepath.Join(root, "assets", "styles", "main.scss"),
		"@import 'variables';\n.nav {\n  a { color: $brand; }\n}\n")

	s := NewSass(SassOptions{OutputStyle: "expanded"})
	defer s.Close()

	rel := filepath.Join("assets", "styles", "main.scss")
	out, err := s.Transform(context.Background(), readSource(t, root, rel))
	require.NoError(t, err)

	css := string(out.Contents)
	assert.Equal(t, filepath.Join("assets", "styles", "main.css"), out.Rel)
	assert.Contains(t, css, ".nav a {")
	assert.Contains(t, css, "#336699")
	assert.NotContains(t, css, "$brand")
	assert.True(t, strings.HasSuffix(css, "\n"))
}

func TestSassReportsErrors(t *testing.T) {
	requireSass(t)

	root := t.TempDir()
	createTestFile(t, filepath.Join(root, "main.scss"), ".a { color: $missing; }\n")

	s := NewSass(SassOptions{})
	defer s.Close()

	_, err := s.Transform(context.Background(), readSource(t, root, "main.scss"))
	require.Error(t, err)

	var diag *errors.Diagnostic
	require.True(t, errors.As(err, &diag))
	assert.Equal(t, "sass", diag.Tool)
	assert.Contains(t, diag.Message, "Undefined variable")
}

func TestSassCloseWithoutStart(t *testing.T) {
	assert.NoError(t, NewSass(SassOptions{}).Close())
}
