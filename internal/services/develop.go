package services

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/conneroisu/sitepipe/internal/build"
	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/fileset"
	"github.com/conneroisu/sitepipe/internal/livereload"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/server"
	"github.com/conneroisu/sitepipe/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

// DevelopService runs the compile-serve-watch loop
type DevelopService struct {
	config *config.Config
	logger logging.Logger
}

// NewDevelopService creates a new develop service
func NewDevelopService(cfg *config.Config, logger logging.Logger) *DevelopService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DevelopService{
		config: cfg,
		logger: logger.WithComponent("develop"),
	}
}

// DevelopOptions contains options for the develop loop
type DevelopOptions struct {
	// Ready is called with the server URL once everything is listening.
	Ready func(url string)
}

// session is the state of one develop run, torn down in reverse order.
type session struct {
	cfg      *config.Config
	logger   logging.Logger
	hub      *livereload.Hub
	errors   *errors.ErrorCollector
	pipeline *Pipeline
	server   *server.Server
	watcher  *watcher.FileWatcher
}

// Develop compiles once, then serves and rebuilds on change until ctx is
// done or the process receives SIGINT or SIGTERM.
func (s *DevelopService) Develop(ctx context.Context, opts DevelopOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := &session{
		cfg:    s.config,
		logger: s.logger,
		errors: errors.NewErrorCollector(),
	}
	defer sess.close()

	var notifier build.Notifier = build.NopNotifier{}
	if s.config.Development.HotReload {
		sess.hub = livereload.NewHub(livereload.Options{
			CSSInjection: s.config.Development.CSSInjection,
			Logger:       s.logger,
		})
		notifier = sess.hub
	}

	pipeline, err := NewPipeline(s.config, PipelineOptions{Notifier: notifier, Logger: s.logger})
	if err != nil {
		return err
	}
	sess.pipeline = pipeline

	sess.compile(ctx)

	if sess.hub != nil {
		sess.hub.Start(ctx)
	}

	sess.server = server.New(server.Options{
		Host:    s.config.Server.Host,
		Port:    s.config.Server.Port,
		Open:    s.config.Server.Open,
		Routes:  s.config.Server.Routes,
		Roots:   []string{s.config.Paths.Temp, s.config.Paths.Src, s.config.Paths.Public},
		Hub:     sess.hub,
		Errors:  sess.errors,
		Metrics: pipeline.Metrics(),
		Logger:  s.logger,
	})
	if err := sess.server.Start(ctx); err != nil {
		return err
	}

	if err := sess.watch(ctx); err != nil {
		return err
	}

	if opts.Ready != nil {
		opts.Ready(sess.server.URL())
	}

	<-ctx.Done()
	s.logger.Info(context.Background(), "Stopping development server")
	return nil
}

// compile runs the compile graph once. Failures are recorded, not fatal.
func (sess *session) compile(ctx context.Context) {
	graph, err := sess.pipeline.CompileGraph()
	if err != nil {
		sess.logger.Error(ctx, err, "Invalid compile graph")
		return
	}
	report, err := graph.Run(ctx)
	for _, tr := range report.Tasks {
		switch tr.Status {
		case build.StatusSucceeded:
			sess.errors.Record(tr.Name, nil)
		case build.StatusFailed:
			sess.errors.Record(tr.Name, tr.Err)
		}
	}
	if err != nil {
		sess.logger.Error(ctx, err, "Initial compile failed, serving what exists")
	}
}

func (sess *session) watch(ctx context.Context) error {
	fw, err := watcher.New(watcher.Options{
		Debounce: sess.cfg.Development.Debounce,
		Logger:   sess.logger,
	})
	if err != nil {
		return err
	}
	sess.watcher = fw

	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoEditorFilter)

	p := sess.pipeline
	fw.AddRule(sess.taskRule(p.StyleSource, p.Style))
	fw.AddRule(sess.taskRule(p.ScriptSource, p.Script))
	fw.AddRule(sess.taskRule(p.PageSource, p.Page))
	fw.AddRule(sess.reloadRule("image", p.ImageSource))
	fw.AddRule(sess.reloadRule("font", p.FontSource))
	fw.AddRule(sess.reloadRule("public", p.ExtraSource))

	for _, root := range []string{sess.cfg.Paths.Src, sess.cfg.Paths.Public} {
		if err := fw.AddRecursive(root); err != nil {
			return err
		}
	}
	return fw.Start(ctx)
}

// taskRule reruns task on change. A run that only lost inputs writes
// nothing, so deletions reload the browser explicitly.
func (sess *session) taskRule(source fileset.Source, task build.Task) watcher.Rule {
	return watcher.Rule{
		Name:   task.Name(),
		Filter: source.Match,
		Handler: func(ctx context.Context, events []watcher.ChangeEvent) error {
			err := sess.pipeline.RunTask(ctx, task)
			sess.errors.Record(task.Name(), err)
			if err != nil {
				if sess.hub != nil {
					sess.hub.Error(task.Name(), err)
				}
				return err
			}
			if sess.hub != nil && removed(events) {
				sess.hub.Reload(urlPaths(source.Root, events)...)
			}
			return nil
		},
	}
}

// reloadRule reloads the browser for files served straight from source.
func (sess *session) reloadRule(name string, source fileset.Source) watcher.Rule {
	return watcher.Rule{
		Name:   name,
		Filter: source.Match,
		Handler: func(_ context.Context, events []watcher.ChangeEvent) error {
			if sess.hub != nil {
				sess.hub.Reload(urlPaths(source.Root, events)...)
			}
			return nil
		},
	}
}

func removed(events []watcher.ChangeEvent) bool {
	for _, e := range events {
		if e.Type == watcher.EventTypeDeleted || e.Type == watcher.EventTypeRenamed {
			return true
		}
	}
	return false
}

// urlPaths maps event paths below root to the URL paths they are served at.
func urlPaths(root string, events []watcher.ChangeEvent) []string {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil
	}
	paths := make([]string, 0, len(events))
	for _, e := range events {
		abs, err := filepath.Abs(e.Path)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absRoot, abs)
		if err != nil {
			continue
		}
		paths = append(paths, "/"+filepath.ToSlash(rel))
	}
	return paths
}

func (sess *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sess.watcher != nil {
		if err := sess.watcher.Stop(); err != nil {
			sess.logger.Warn(ctx, err, "Failed to stop watcher")
		}
	}
	if sess.server != nil {
		if err := sess.server.Shutdown(ctx); err != nil {
			sess.logger.Warn(ctx, err, "Failed to stop server")
		}
	}
	if sess.hub != nil {
		_ = sess.hub.Close()
	}
	if sess.pipeline != nil {
		if err := sess.pipeline.Close(); err != nil {
			sess.logger.Warn(ctx, err, "Failed to stop sass")
		}
	}
}
