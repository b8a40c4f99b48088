package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepipe/internal/bundler"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/fileset"
	"github.com/conneroisu/sitepipe/internal/transform"
)

func createTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// upperTransformer uppercases contents and renames .scss to .css.
type upperTransformer struct{ fail string }

func (upperTransformer) Name() string { return "upper" }

func (u upperTransformer) Transform(_ context.Context, f transform.File) (transform.File, error) {
	if u.fail != "" && strings.Contains(string(f.Contents), u.fail) {
		return transform.File{}, &errors.Diagnostic{Tool: "upper", File: f.Source, Line: 2, Column: 5, Message: "bad input", Severity: errors.ErrorSeverityError}
	}
	return transform.File{
		Source:   f.Source,
		Rel:      fileset.SwapExt(f.Rel, ".css"),
		Contents: bytes.ToUpper(f.Contents),
	}, nil
}

type change struct {
	kind  ChangeKind
	paths []string
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []change
}

func (n *recordingNotifier) Changed(_ context.Context, kind ChangeKind, paths []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change{kind: kind, paths: paths})
}

func TestTransformWritesMirroredOutput(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	temp := filepath.Join(root, "temp")
	createTestFile(t, filepath.Join(src, "assets", "styles", "main.scss"), "body{}")
	createTestFile(t, filepath.Join(src, "assets", "styles", "_vars.scss"), "$a: 1;")
	createTestFile(t, filepath.Join(src, "assets", "styles", "nested", "skip.scss"), "x")

	notifier := &recordingNotifier{}
	task := NewTransform(TransformOptions{
		Name:         "style",
		Source:       fileset.New(src, "assets/styles/*.scss"),
		Dest:         temp,
		Transformer:  upperTransformer{},
		SkipPartials: true,
		Notifier:     notifier,
		Change:       ChangeCSS,
	})
	require.NoError(t, task.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(temp, "assets", "styles", "main.css"))
	require.NoError(t, err)
	assert.Equal(t, "BODY{}", string(data))
	assert.NoFileExists(t, filepath.Join(temp, "assets", "styles", "_vars.css"))
	assert.NoFileExists(t, filepath.Join(temp, "assets", "styles", "nested", "skip.css"))

	require.Len(t, notifier.changes, 1)
	assert.Equal(t, ChangeCSS, notifier.changes[0].kind)
	assert.Equal(t, []string{"/assets/styles/main.css"}, notifier.changes[0].paths)
}

func TestTransformIsIdempotent(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	temp := filepath.Join(root, "temp")
	createTestFile(t, filepath.Join(src, "a.scss"), "a")
	createTestFile(t, filepath.Join(src, "b", "c.scss"), "c")

	task := NewTransform(TransformOptions{Name: "style", Source: fileset.New(src, "**/*.scss"), Dest: temp, Transformer: upperTransformer{}})
	require.NoError(t, task.Run(context.Background()))
	first := snapshotTree(t, temp)
	require.NoError(t, task.Run(context.Background()))
	assert.Equal(t, first, snapshotTree(t, temp))
	assert.Len(t, first, 2)
}

func TestTransformFailureCarriesDiagnostic(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	createTestFile(t, filepath.Join(src, "bad.scss"), "broken")

	notifier := &recordingNotifier{}
	task := NewTransform(TransformOptions{
		Name:        "style",
		Source:      fileset.New(src, "*.scss"),
		Dest:        filepath.Join(root, "temp"),
		Transformer: upperTransformer{fail: "broken"},
		Notifier:    notifier,
		Change:      ChangeCSS,
	})
	err := task.Run(context.Background())
	require.Error(t, err)

	var pe *errors.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, errors.ErrorTypeTransform, pe.Type)
	assert.Equal(t, "style", pe.Task)
	assert.Equal(t, filepath.Join(src, "bad.scss"), pe.FilePath)
	assert.Equal(t, 2, pe.Line)
	assert.Contains(t, err.Error(), "bad input")
	assert.Empty(t, notifier.changes)
}

func TestTransformMissingRootIsEmpty(t *testing.T) {
	root := t.TempDir()
	notifier := &recordingNotifier{}
	task := NewTransform(TransformOptions{
		Name:        "script",
		Source:      fileset.New(filepath.Join(root, "missing"), "*.js"),
		Dest:        filepath.Join(root, "temp"),
		Transformer: upperTransformer{},
		Notifier:    notifier,
		Change:      ChangeReload,
	})
	require.NoError(t, task.Run(context.Background()))
	assert.Empty(t, notifier.changes)
}

func TestCleanRemovesTree(t *testing.T) {
	root := t.TempDir()
	t.Chdir(root)
	createTestFile(t, filepath.Join(root, "dist", "assets", "main.css"), "x")

	require.NoError(t, NewClean("clean", "dist").Run(context.Background()))
	assert.NoDirExists(t, filepath.Join(root, "dist"))

	// Absent directory is a no-op
	require.NoError(t, NewClean("clean", "dist").Run(context.Background()))
}

func TestCleanRefusesUnsafePaths(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "project")
	require.NoError(t, os.MkdirAll(project, 0755))
	createTestFile(t, filepath.Join(root, "outside", "keep.txt"), "keep")
	t.Chdir(project)

	for _, dir := range []string{"", ".", "..", "../outside", string(filepath.Separator)} {
		t.Run(fmt.Sprintf("%q", dir), func(t *testing.T) {
			err := NewClean("clean", dir).Run(context.Background())
			require.Error(t, err)
			assert.True(t, errors.IsConfigError(err))
		})
	}
	assert.FileExists(t, filepath.Join(root, "outside", "keep.txt"))
}

func TestMirrorCopiesMatchingFiles(t *testing.T) {
	root := t.TempDir()
	public := filepath.Join(root, "public")
	dist := filepath.Join(root, "dist")
	createTestFile(t, filepath.Join(public, "favicon.ico"), "ico")
	createTestFile(t, filepath.Join(public, "docs", "readme.txt"), "docs")
	require.NoError(t, os.Chmod(filepath.Join(public, "favicon.ico"), 0600))
	if runtime.GOOS != "windows" {
		require.NoError(t, os.Symlink(filepath.Join(public, "favicon.ico"), filepath.Join(public, "link.ico")))
	}

	require.NoError(t, NewMirror("extra", fileset.New(public, "**"), dist).Run(context.Background()))

	assert.FileExists(t, filepath.Join(dist, "favicon.ico"))
	assert.FileExists(t, filepath.Join(dist, "docs", "readme.txt"))
	assert.NoFileExists(t, filepath.Join(dist, "link.ico"))
	info, err := os.Stat(filepath.Join(dist, "favicon.ico"))
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	// A narrower pattern filters files
	filtered := filepath.Join(root, "filtered")
	require.NoError(t, NewMirror("extra", fileset.New(public, "*.ico"), filtered).Run(context.Background()))
	assert.FileExists(t, filepath.Join(filtered, "favicon.ico"))
	assert.NoFileExists(t, filepath.Join(filtered, "docs", "readme.txt"))
}

func TestMirrorMissingSource(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, NewMirror("extra", fileset.New(filepath.Join(root, "public"), "**"), filepath.Join(root, "dist")).Run(context.Background()))
	assert.NoDirExists(t, filepath.Join(root, "dist"))
}

func TestImageCopyToDist(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dist := filepath.Join(root, "dist")
	createTestFile(t, filepath.Join(src, "assets", "fonts", "icons.woff"), "font-bytes")

	task := NewTransform(TransformOptions{
		Name:        "font",
		Source:      fileset.New(src, "assets/fonts/**"),
		Dest:        dist,
		Transformer: transform.NewImage(85),
	})
	require.NoError(t, task.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(dist, "assets", "fonts", "icons.woff"))
	require.NoError(t, err)
	assert.Equal(t, "font-bytes", string(data))
}

func TestBundleTask(t *testing.T) {
	root := t.TempDir()
	temp := filepath.Join(root, "temp")
	dist := filepath.Join(root, "dist")
	createTestFile(t, filepath.Join(temp, "a.css"), ".a{}\n")
	createTestFile(t, filepath.Join(temp, "index.html"),
		"<!-- build:css all.css -->\n<link rel=\"stylesheet\" href=\"a.css\">\n<!-- endbuild -->\n")

	b := bundler.New(bundler.Options{SearchPaths: []string{temp, root}})
	require.NoError(t, NewBundle("bundle", fileset.New(temp, "*.html"), dist, b, nil).Run(context.Background()))
	assert.FileExists(t, filepath.Join(dist, "all.css"))
	assert.FileExists(t, filepath.Join(dist, "index.html"))

	createTestFile(t, filepath.Join(temp, "index.html"), "<!-- build:css -->\n")
	err := NewBundle("bundle", fileset.New(temp, "*.html"), dist, b, nil).Run(context.Background())
	require.Error(t, err)
	var pe *errors.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "bundle", pe.Task)
	assert.True(t, errors.IsConfigError(err))
}

func snapshotTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		out[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}
