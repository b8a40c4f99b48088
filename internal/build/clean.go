package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitepipe/internal/errors"
)

// Clean removes a generated directory tree.
type Clean struct {
	name string
	dir  string
}

// NewClean returns a task named name that removes dir.
func NewClean(name, dir string) *Clean {
	return &Clean{name: name, dir: dir}
}

func (c *Clean) Name() string { return c.name }

// Run removes the directory recursively. An absent directory is not an
// error. Directories that are not strictly below the working directory are
// refused.
func (c *Clean) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := checkRemovable(c.dir); err != nil {
		return err.WithTask(c.name)
	}

	if err := os.RemoveAll(c.dir); err != nil {
		return errors.WrapIO(err, errors.ErrCodeCleanFailed, "failed to remove directory", c.dir).WithTask(c.name)
	}
	return nil
}

func checkRemovable(dir string) *errors.PipelineError {
	if strings.TrimSpace(dir) == "" {
		return errors.NewConfigError(errors.ErrCodeInvalidPath, "refusing to clean an empty path")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return errors.WrapConfig(err, errors.ErrCodeInvalidPath, fmt.Sprintf("cannot resolve %s", dir))
	}
	wd, err := os.Getwd()
	if err != nil {
		return errors.WrapConfig(err, errors.ErrCodeInvalidPath, "cannot resolve working directory")
	}

	if abs == filepath.VolumeName(abs)+string(filepath.Separator) {
		return errors.NewConfigError(errors.ErrCodePathTraversal, "refusing to clean the filesystem root").
			WithLocation(dir, 0, 0)
	}

	rel, err := filepath.Rel(wd, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.NewConfigError(errors.ErrCodePathTraversal, "refusing to clean a directory outside the project").
			WithLocation(dir, 0, 0)
	}
	return nil
}
