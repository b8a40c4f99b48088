package build

import (
	"context"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	cp "github.com/otiai10/copy"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/fileset"
)

// Mirror copies a tree verbatim, keeping only files that match the source
// pattern. Symlinks are skipped and file modes preserved.
type Mirror struct {
	name   string
	source fileset.Source
	dest   string
}

func NewMirror(name string, source fileset.Source, dest string) *Mirror {
	return &Mirror{name: name, source: source, dest: dest}
}

func (m *Mirror) Name() string { return m.name }

func (m *Mirror) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(m.source.Root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeReadFailed, "failed to stat source", m.source.Root).WithTask(m.name)
	}
	if !info.IsDir() {
		return errors.NewIOError(errors.ErrCodeInvalidPath, "source is not a directory", nil).
			WithLocation(m.source.Root, 0, 0).WithTask(m.name)
	}

	err = cp.Copy(m.source.Root, m.dest, cp.Options{
		OnSymlink: func(string) cp.SymlinkAction { return cp.Skip },
		Skip: func(info os.FileInfo, src, _ string) (bool, error) {
			if info.IsDir() {
				return false, ctx.Err()
			}
			rel, err := filepath.Rel(m.source.Root, src)
			if err != nil {
				return true, err
			}
			ok, err := doublestar.Match(m.source.Pattern, filepath.ToSlash(rel))
			return !ok, err
		},
	})
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeWriteFailed, "failed to copy tree", m.source.Root).WithTask(m.name)
	}
	return nil
}
