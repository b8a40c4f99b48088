// Package testutils holds fixtures shared by the package tests: a project
// laid out in a fresh working directory, a configuration loaded the way the
// CLI loads it, and polling helpers for asynchronous output.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepipe/internal/config"
)

// StandardProjectFiles is a small site without stylesheets, so it builds
// without a sass binary. The index page uses template data from
// package.json, a filter and a script build block.
var StandardProjectFiles = map[string]string{
	"package.json": `{"name": "demo-site", "version": "1.2.3"}`,
	"src/index.html": `<!DOCTYPE html>
<html>
<head>
  <title>{{ pkg.name }}</title>
</head>
<body>
  <h1>{{ title("hello world") }}</h1>
  <!-- build:js assets/scripts/bundle.js -->
  <script src="assets/scripts/main.js"></script>
  <!-- endbuild -->
</body>
</html>
`,
	"src/_layout.html":            "<html>{% block body %}{% endblock %}</html>",
	"src/assets/scripts/main.js":  "const name = window.name ?? 'anonymous';\nconsole.log(name);\n",
	"src/assets/images/logo.svg":  `<svg xmlns="http://www.w3.org/2000/svg"><rect width="10" height="10"/></svg>`,
	"src/assets/fonts/icons.woff": "woff",
	"public/robots.txt":           "User-agent: *\n",
}

// CreateTempProject changes into a fresh directory holding files and
// returns its path. The previous working directory is restored when the
// test ends.
func CreateTempProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	t.Chdir(root)

	for _, dir := range []string{"src", "public"} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}
	CreateTestFiles(t, ".", files)
	return root
}

// CreateTestFile writes content to path, creating parent directories.
func CreateTestFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// CreateTestFiles writes every slash-separated path in files below root.
func CreateTestFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		CreateTestFile(t, filepath.Join(root, filepath.FromSlash(name)), content)
	}
}

// CreateTestConfig loads a configuration for the current working directory.
// The server binds an ephemeral loopback port and the watcher debounces
// briefly; overrides are viper keys applied on top.
func CreateTestConfig(t *testing.T, overrides map[string]interface{}) *config.Config {
	t.Helper()
	v := viper.New()
	v.Set("server.host", "127.0.0.1")
	v.Set("server.port", 0)
	v.Set("development.debounce", "20ms")
	for key, value := range overrides {
		v.Set(key, value)
	}

	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)
	return cfg
}

// SecurityTestCases provides common security test vectors
var SecurityTestCases = struct {
	PathTraversal []string
}{
	PathTraversal: []string{
		"../../../etc/passwd",
		"..\\..\\..\\windows\\system32\\config\\sam",
		"....//....//....//etc/passwd",
		"..%2F..%2F..%2Fetc%2Fpasswd",
		"/%2e%2e/%2e%2e/%2e%2e/etc/passwd",
		"/./../../etc/passwd",
		"../../../../../etc/passwd",
	},
}

// WaitForFile waits until path exists.
func WaitForFile(t *testing.T, path string, timeout time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, timeout, 10*time.Millisecond, "file %s did not appear within %v", path, timeout)
}

// WaitForFileChange waits for a file to be modified (useful for testing file watchers)
func WaitForFileChange(
	t *testing.T,
	filePath string,
	originalModTime time.Time,
	timeout time.Duration,
) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		info, err := os.Stat(filePath)
		if err == nil && info.ModTime().After(originalModTime) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("File %s was not modified within %v", filePath, timeout)
}
