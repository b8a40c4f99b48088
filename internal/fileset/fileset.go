// Package fileset enumerates source files by doublestar glob below a root
// directory, keeping each match's path relative to that root so outputs can
// mirror the source structure.
package fileset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Source is a glob pattern evaluated below Root.
type Source struct {
	Root    string
	Pattern string
}

// File is a matched file. Rel is relative to the source root and uses the
// host path separator.
type File struct {
	Root string
	Rel  string
}

// Path returns the file's path joined with its root.
func (f File) Path() string {
	return filepath.Join(f.Root, f.Rel)
}

// New returns a Source for pattern below root.
func New(root, pattern string) Source {
	return Source{Root: root, Pattern: pattern}
}

func (s Source) String() string {
	return filepath.ToSlash(filepath.Join(s.Root, s.Pattern))
}

// Glob returns the regular files matching the pattern, sorted by relative
// path. A missing root yields no files.
func (s Source) Glob() ([]File, error) {
	info, err := os.Stat(s.Root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", s.Root)
	}

	matches, err := doublestar.Glob(os.DirFS(s.Root), s.Pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", s, err)
	}
	sort.Strings(matches)

	files := make([]File, 0, len(matches))
	for _, m := range matches {
		files = append(files, File{Root: s.Root, Rel: filepath.FromSlash(m)})
	}
	return files, nil
}

// Match reports whether path, absolute or relative to the working directory,
// lies below Root and matches the pattern. The file need not exist, so
// deletions can be matched.
func (s Source) Match(path string) bool {
	rel, ok := s.relative(path)
	if !ok {
		return false
	}
	matched, err := doublestar.Match(s.Pattern, filepath.ToSlash(rel))
	return err == nil && matched
}

func (s Source) relative(path string) (string, bool) {
	absRoot, err := filepath.Abs(s.Root)
	if err != nil {
		return "", false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// WriteFile writes data to rel below dir, creating parent directories.
func WriteFile(dir, rel string, data []byte) error {
	dest := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0644)
}

// SwapExt replaces the extension of rel with ext (".css", ".js").
func SwapExt(rel, ext string) string {
	return strings.TrimSuffix(rel, filepath.Ext(rel)) + ext
}

// IsPartial reports whether the file name marks a SCSS partial (_name.scss).
func IsPartial(rel string) bool {
	return strings.HasPrefix(filepath.Base(rel), "_")
}

// Exists reports whether path exists as a regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
