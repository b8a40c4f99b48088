package build

import (
	"context"

	"github.com/conneroisu/sitepipe/internal/bundler"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/fileset"
	"github.com/conneroisu/sitepipe/internal/logging"
)

// Bundle runs the bundler over the rendered pages.
type Bundle struct {
	name    string
	pages   fileset.Source
	dest    string
	bundler *bundler.Bundler
	logger  logging.Logger
}

func NewBundle(name string, pages fileset.Source, dest string, b *bundler.Bundler, logger logging.Logger) *Bundle {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Bundle{name: name, pages: pages, dest: dest, bundler: b, logger: logger}
}

func (b *Bundle) Name() string { return b.name }

func (b *Bundle) Run(ctx context.Context) error {
	outputs, err := b.bundler.Run(ctx, b.pages, b.dest)
	if err != nil {
		var pe *errors.PipelineError
		if errors.As(err, &pe) && pe.Task == "" {
			pe.Task = b.name
		}
		return err
	}

	bundles := 0
	for _, o := range outputs {
		if len(o.Sources) > 0 {
			bundles++
		}
	}
	b.logger.Info(ctx, "Bundled pages", "pages", len(outputs)-bundles, "bundles", bundles, "dest", b.dest)
	return nil
}
