package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/fileset"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/transform"
)

// TransformOptions configures a transform task.
type TransformOptions struct {
	Name        string
	Source      fileset.Source
	Dest        string
	Transformer transform.Transformer

	// SkipPartials ignores files whose name starts with an underscore.
	SkipPartials bool

	// Notifier is told about the written files with Change. Nil disables.
	Notifier Notifier
	Change   ChangeKind

	Logger logging.Logger
}

// Transform runs every file of a source through one transformer and
// writes the results below a destination, mirroring the source layout.
// Compile tasks write to temp, image and font copies to dist.
type Transform struct {
	opts   TransformOptions
	logger logging.Logger
}

func NewTransform(opts TransformOptions) *Transform {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	return &Transform{opts: opts, logger: logger.WithComponent(opts.Name)}
}

func (t *Transform) Name() string { return t.opts.Name }

// Run aborts on the first file that fails; files already written stay.
func (t *Transform) Run(ctx context.Context) error {
	files, err := t.opts.Source.Glob()
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeGlobFailed, "failed to list sources", t.opts.Source.String()).WithTask(t.opts.Name)
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if t.opts.SkipPartials && fileset.IsPartial(f.Rel) {
			continue
		}

		rel, err := t.process(ctx, f)
		if err != nil {
			return err
		}
		written = append(written, "/"+filepath.ToSlash(rel))
	}

	t.logger.Debug(ctx, "Transformed files", "count", len(written), "dest", t.opts.Dest)
	if len(written) > 0 && t.opts.Change != "" {
		t.opts.Notifier.Changed(ctx, t.opts.Change, written)
	}
	return nil
}

func (t *Transform) process(ctx context.Context, f fileset.File) (string, error) {
	data, err := os.ReadFile(f.Path())
	if err != nil {
		return "", errors.WrapIO(err, errors.ErrCodeReadFailed, "failed to read source", f.Path()).WithTask(t.opts.Name)
	}

	out, err := t.opts.Transformer.Transform(ctx, transform.File{Source: f.Path(), Rel: f.Rel, Contents: data})
	if err != nil {
		return "", transformError(err, t.opts.Name, t.opts.Transformer.Name(), f.Path())
	}

	if err := fileset.WriteFile(t.opts.Dest, out.Rel, out.Contents); err != nil {
		return "", errors.WrapIO(err, errors.ErrCodeWriteFailed, "failed to write output", filepath.Join(t.opts.Dest, out.Rel)).WithTask(t.opts.Name)
	}
	return out.Rel, nil
}

func transformError(err error, task, tool, path string) error {
	var inner *errors.PipelineError
	if errors.As(err, &inner) {
		if inner.Task == "" {
			inner.Task = task
		}
		return err
	}
	pe := errors.WrapTransform(err, errors.ErrCodeTransformFailed, fmt.Sprintf("%s failed", tool), task)
	pe.FilePath = path

	var diag *errors.Diagnostic
	if errors.As(err, &diag) && diag.Line > 0 {
		pe.Line = diag.Line
		pe.Column = diag.Column
	}
	return pe
}
