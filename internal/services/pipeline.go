package services

import (
	"context"

	"github.com/conneroisu/sitepipe/internal/build"
	"github.com/conneroisu/sitepipe/internal/bundler"
	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/fileset"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/minify"
	"github.com/conneroisu/sitepipe/internal/sitedata"
	"github.com/conneroisu/sitepipe/internal/transform"
)

// Task names as they appear in reports, logs and the status endpoint.
const (
	TaskClean     = "clean"
	TaskCleanTemp = "clean:temp"
	TaskStyle     = "style"
	TaskScript    = "script"
	TaskPage      = "page"
	TaskImage     = "image"
	TaskFont      = "font"
	TaskExtra     = "extra"
	TaskBundle    = "useref"
)

// PipelineOptions configures how tasks are assembled.
type PipelineOptions struct {
	// Notifier hears about compiled output. Nil disables notifications.
	Notifier build.Notifier
	Metrics  *build.Metrics
	// NoMinify writes bundles and pages without minification.
	NoMinify bool
	Logger   logging.Logger
}

// Pipeline holds every task of a project, built once from the
// configuration and shared by the build, compile and develop graphs.
type Pipeline struct {
	cfg     *config.Config
	opts    PipelineOptions
	logger  logging.Logger
	sass    *transform.Sass
	metrics *build.Metrics

	Clean     build.Task
	CleanTemp build.Task
	Style     build.Task
	Script    build.Task
	Page      build.Task
	Image     build.Task
	Font      build.Task
	Extra     build.Task
	Bundle    build.Task

	// Sources are kept so the watcher can match events against them.
	StyleSource  fileset.Source
	ScriptSource fileset.Source
	PageSource   fileset.Source
	ImageSource  fileset.Source
	FontSource   fileset.Source
	ExtraSource  fileset.Source
}

// NewPipeline assembles the tasks described by cfg.
func NewPipeline(cfg *config.Config, opts PipelineOptions) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.Notifier == nil {
		opts.Notifier = build.NopNotifier{}
	}
	if opts.Metrics == nil {
		opts.Metrics = build.NewMetrics()
	}

	paths := cfg.Paths
	p := &Pipeline{
		cfg:     cfg,
		opts:    opts,
		logger:  logger,
		metrics: opts.Metrics,

		StyleSource:  fileset.New(paths.Src, paths.Styles),
		ScriptSource: fileset.New(paths.Src, paths.Scripts),
		PageSource:   fileset.New(paths.Src, paths.Pages),
		ImageSource:  fileset.New(paths.Src, paths.Images),
		FontSource:   fileset.New(paths.Src, paths.Fonts),
		ExtraSource:  fileset.New(paths.Public, paths.Extra),
	}

	p.sass = transform.NewSass(transform.SassOptions{
		Binary:       cfg.Build.SassBinary,
		OutputStyle:  cfg.Build.StyleOutput,
		IncludePaths: []string{paths.Src, "node_modules"},
		Logger:       logger,
	})

	script, err := transform.NewScript(cfg.Build.ScriptTarget)
	if err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "invalid script target")
	}

	loader := &sitedata.Loader{
		DataFile:    cfg.Data.File,
		PackageFile: cfg.Data.Package,
		ProjectDir:  ".",
	}
	page, err := transform.NewPage(paths.Src, loader)
	if err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "invalid page root")
	}

	image := transform.NewImage(cfg.Build.JPEGQuality)

	p.Clean = build.NewClean(TaskClean, paths.Dist)
	p.CleanTemp = build.NewClean(TaskCleanTemp, paths.Temp)

	p.Style = build.NewTransform(build.TransformOptions{
		Name:         TaskStyle,
		Source:       p.StyleSource,
		Dest:         paths.Temp,
		Transformer:  p.sass,
		SkipPartials: true,
		Notifier:     opts.Notifier,
		Change:       build.ChangeCSS,
		Logger:       logger,
	})
	p.Script = build.NewTransform(build.TransformOptions{
		Name:        TaskScript,
		Source:      p.ScriptSource,
		Dest:        paths.Temp,
		Transformer: script,
		Notifier:    opts.Notifier,
		Change:      build.ChangeReload,
		Logger:      logger,
	})
	p.Page = build.NewTransform(build.TransformOptions{
		Name:         TaskPage,
		Source:       p.PageSource,
		Dest:         paths.Temp,
		Transformer:  page,
		SkipPartials: true,
		Notifier:     opts.Notifier,
		Change:       build.ChangeReload,
		Logger:       logger,
	})
	p.Image = build.NewTransform(build.TransformOptions{
		Name:        TaskImage,
		Source:      p.ImageSource,
		Dest:        paths.Dist,
		Transformer: image,
		Logger:      logger,
	})
	p.Font = build.NewTransform(build.TransformOptions{
		Name:        TaskFont,
		Source:      p.FontSource,
		Dest:        paths.Dist,
		Transformer: image,
		Logger:      logger,
	})
	p.Extra = build.NewMirror(TaskExtra, p.ExtraSource, paths.Dist)

	var minifier *minify.Minifier
	if !opts.NoMinify {
		m := cfg.Build.Minify
		minifier = minify.New(minify.Options{
			JS:        m.JS,
			CSS:       m.CSS,
			HTML:      m.HTML,
			InlineCSS: m.InlineCSS,
			InlineJS:  m.InlineJS,
		})
	}
	b := bundler.New(bundler.Options{
		SearchPaths: cfg.Build.SearchPaths,
		Minifier:    minifier,
		Logger:      logger,
	})
	p.Bundle = build.NewBundle(TaskBundle, fileset.New(paths.Temp, paths.Bundle), paths.Dist, b, logger)

	return p, nil
}

// BuildGraph cleans dist, compiles into temp and bundles into dist while
// images, fonts and public files are copied alongside.
func (p *Pipeline) BuildGraph() (*build.Graph, error) {
	return build.NewGraph([]build.Node{
		{Task: p.Clean},
		{Task: p.Style, After: []string{TaskClean}},
		{Task: p.Script, After: []string{TaskClean}},
		{Task: p.Page, After: []string{TaskClean}},
		{Task: p.Bundle, After: []string{TaskStyle, TaskScript, TaskPage}},
		{Task: p.Image, After: []string{TaskClean}},
		{Task: p.Font, After: []string{TaskClean}},
		{Task: p.Extra, After: []string{TaskClean}},
	}, build.WithLogger(p.logger), build.WithMetrics(p.metrics))
}

// CompileGraph runs the three compile tasks in parallel.
func (p *Pipeline) CompileGraph() (*build.Graph, error) {
	return build.NewGraph([]build.Node{
		{Task: p.Style},
		{Task: p.Script},
		{Task: p.Page},
	}, build.WithLogger(p.logger), build.WithMetrics(p.metrics))
}

// RunTask runs a single task outside a graph, recording its metrics.
func (p *Pipeline) RunTask(ctx context.Context, task build.Task) error {
	graph, err := build.NewGraph([]build.Node{{Task: task}}, build.WithLogger(p.logger), build.WithMetrics(p.metrics))
	if err != nil {
		return err
	}
	_, err = graph.Run(ctx)
	return err
}

// Metrics returns the task metrics shared by every graph of the pipeline.
func (p *Pipeline) Metrics() *build.Metrics {
	return p.metrics
}

// Close stops the sass process if one was started.
func (p *Pipeline) Close() error {
	return p.sass.Close()
}
