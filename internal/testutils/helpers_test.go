package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepipe/internal/config"
)

func TestCreateTempProject(t *testing.T) {
	root := CreateTempProject(t, StandardProjectFiles)

	wd, err := os.Getwd()
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	wdResolved, err := filepath.EvalSymlinks(wd)
	require.NoError(t, err)
	assert.Equal(t, resolved, wdResolved)

	for name, content := range StandardProjectFiles {
		data, err := os.ReadFile(filepath.FromSlash(name))
		require.NoError(t, err, name)
		assert.Equal(t, content, string(data))
	}
}

func TestCreateTempProjectWithoutFiles(t *testing.T) {
	CreateTempProject(t, nil)
	assert.DirExists(t, "src")
	assert.DirExists(t, "public")
}

func TestCreateTestConfig(t *testing.T) {
	CreateTempProject(t, nil)

	cfg := CreateTestConfig(t, nil)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 0, cfg.Server.Port)
	assert.Equal(t, 20*time.Millisecond, cfg.Development.Debounce)
	assert.Equal(t, "src", cfg.Paths.Src)

	cfg = CreateTestConfig(t, map[string]interface{}{"development.hot_reload": false, "server.port": 9000})
	assert.False(t, cfg.Development.HotReload)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, config.DefaultPort, 2080)
}

func TestWaitForFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "late.txt")

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = os.WriteFile(path, []byte("x"), 0644)
	}()

	WaitForFile(t, path, time.Second)
	assert.FileExists(t, path)
}

func TestWaitForFileChange(t *testing.T) {
	path := CreateTestFile(t, filepath.Join(t.TempDir(), "file.txt"), "one")
	info, err := os.Stat(path)
	require.NoError(t, err)
	original := info.ModTime()

	go func() {
		time.Sleep(20 * time.Millisecond)
		later := original.Add(time.Second)
		_ = os.Chtimes(path, later, later)
	}()

	WaitForFileChange(t, path, original, time.Second)
}
