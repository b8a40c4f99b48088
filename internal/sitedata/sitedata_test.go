package sitedata

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepipe/internal/errors"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC) }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDefaultMenus(t *testing.T) {
	menus := DefaultMenus()
	require.Len(t, menus, 4)
	assert.Equal(t, "Home", menus[0].Name)
	assert.Equal(t, "aperture", menus[0].Icon)
	assert.Equal(t, "index.html", menus[0].Link)

	contact := menus[3]
	assert.Equal(t, "Contact", contact.Name)
	require.Len(t, contact.Children, 4)
	assert.Equal(t, "divider", contact.Children[2].Name)
	assert.Empty(t, contact.Children[2].Link)
}

func TestLoadWithPackageJSON(t *testing.T) {
	dir := t.TempDir()
	pkgPath := filepath.Join(dir, "package.json")
	writeFile(t, pkgPath, `{"name":"zce-pages","version":"0.1.0","author":{"name":"zce"}}`)

	loader := &Loader{PackageFile: pkgPath, ProjectDir: dir, Now: fixedNow}
	data, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "zce-pages", data.Pkg["name"])
	assert.Equal(t, "0.1.0", data.Pkg["version"])
	assert.Equal(t, map[string]interface{}{"name": "zce"}, data.Pkg["author"])
	assert.Equal(t, fixedNow(), data.Date)
	assert.Equal(t, DefaultMenus(), data.Menus)
}

func TestLoadFallsBackWithoutPackageJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my-site")
	require.NoError(t, os.MkdirAll(dir, 0755))

	loader := &Loader{PackageFile: filepath.Join(dir, "package.json"), ProjectDir: dir, Now: fixedNow}
	data, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "my-site", data.Pkg["name"])
	assert.NotEmpty(t, data.Pkg["version"])
}

func TestLoadInvalidPackageJSON(t *testing.T) {
	dir := t.TempDir()
	pkgPath := filepath.Join(dir, "package.json")

	writeFile(t, pkgPath, `{"name": `)
	_, err := (&Loader{PackageFile: pkgPath}).Load()
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))

	writeFile(t, pkgPath, `["not", "an", "object"]`)
	_, err = (&Loader{PackageFile: pkgPath}).Load()
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}

func TestLoadDataFileOverridesMenus(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data", "site.yml")
	writeFile(t, dataPath, `
menus:
  - name: Docs
    link: docs.html
    children:
      - name: API
        link: api.html
tagline: Fast pages
`)

	data, err := (&Loader{DataFile: dataPath, Now: fixedNow}).Load()
	require.NoError(t, err)

	require.Len(t, data.Menus, 1)
	assert.Equal(t, "Docs", data.Menus[0].Name)
	assert.Equal(t, "api.html", data.Menus[0].Children[0].Link)
	assert.Equal(t, "Fast pages", data.Extra["tagline"])
	assert.NotContains(t, data.Extra, "menus")
}

func TestLoadDataFileWithoutMenusKeepsDefaults(t *testing.T) {
	dataPath := filepath.Join(t.TempDir(), "site.yml")
	writeFile(t, dataPath, "tagline: hello\n")

	data, err := (&Loader{DataFile: dataPath}).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultMenus(), data.Menus)
}

func TestLoadDataFileErrors(t *testing.T) {
	_, err := (&Loader{DataFile: filepath.Join(t.TempDir(), "missing.yml")}).Load()
	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))

	bad := filepath.Join(t.TempDir(), "bad.yml")
	writeFile(t, bad, "menus: [unclosed\n")
	_, err = (&Loader{DataFile: bad}).Load()
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}

func TestContext(t *testing.T) {
	data := &Data{
		Menus: DefaultMenus(),
		Pkg:   map[string]interface{}{"name": "site"},
		Date:  fixedNow(),
		Extra: map[string]interface{}{"tagline": "hi", "pkg": "shadowed"},
	}

	ctx := data.Context()
	assert.Equal(t, 2026, ctx["year"])
	assert.Equal(t, "hi", ctx["tagline"])
	assert.Equal(t, data.Pkg, ctx["pkg"])

	menus, ok := ctx["menus"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, menus, 4)
	assert.Equal(t, "Home", menus[0]["name"])
	assert.NotContains(t, menus[0], "children")
	children, ok := menus[3]["children"].([]map[string]interface{})
	require.True(t, ok)
	assert.Len(t, children, 4)

	title, ok := ctx["title"].(func(string) string)
	require.True(t, ok)
	assert.Equal(t, "Hello World", title("hello world"))
}

func TestContextTitleConcurrent(t *testing.T) {
	data := &Data{Menus: DefaultMenus(), Date: fixedNow()}
	first := data.Context()["title"].(func(string) string)
	second := data.Context()["title"].(func(string) string)

	inputs := []string{"hello world", "static site pipeline", "ünïcode wörds", "a"}
	want := []string{"Hello World", "Static Site Pipeline", "Ünïcode Wörds", "A"}

	var wg sync.WaitGroup
	results := make([][]string, 8)
	for g := range results {
		title := first
		if g%2 == 1 {
			title = second
		}
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for range 200 {
				for _, in := range inputs {
					results[g] = append(results[g], title(in))
				}
			}
		}(g)
	}
	wg.Wait()

	for g, got := range results {
		require.Len(t, got, 200*len(inputs), "goroutine %d", g)
		for i, out := range got {
			assert.Equal(t, want[i%len(inputs)], out)
		}
	}
}
