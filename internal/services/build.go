package services

import (
	"context"
	"time"

	"github.com/conneroisu/sitepipe/internal/build"
	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
)

// BuildService handles the one-shot build, compile and clean commands
type BuildService struct {
	config *config.Config
	logger logging.Logger
}

// NewBuildService creates a new build service
func NewBuildService(cfg *config.Config, logger logging.Logger) *BuildService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &BuildService{
		config: cfg,
		logger: logger.WithComponent("build"),
	}
}

// BuildOptions contains options for the build process
type BuildOptions struct {
	NoMinify bool
}

// BuildResult contains the result of a build operation
type BuildResult struct {
	Duration time.Duration
	Success  bool
	Report   *build.Report
}

// CleanOptions selects what Clean removes
type CleanOptions struct {
	// Temp also removes the intermediate tree
	Temp bool
}

// Build cleans dist, compiles into temp and writes the bundled site to dist.
func (s *BuildService) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	return s.run(ctx, "build", opts, (*Pipeline).BuildGraph)
}

// Compile runs the style, script and page tasks into temp.
func (s *BuildService) Compile(ctx context.Context) (*BuildResult, error) {
	return s.run(ctx, "compile", BuildOptions{}, (*Pipeline).CompileGraph)
}

func (s *BuildService) run(ctx context.Context, name string, opts BuildOptions, graphOf func(*Pipeline) (*build.Graph, error)) (*BuildResult, error) {
	startTime := time.Now()
	result := &BuildResult{}

	pipeline, err := NewPipeline(s.config, PipelineOptions{NoMinify: opts.NoMinify, Logger: s.logger})
	if err != nil {
		return result, err
	}
	defer func() {
		if closeErr := pipeline.Close(); closeErr != nil {
			s.logger.Warn(ctx, closeErr, "Failed to stop sass")
		}
	}()

	graph, err := graphOf(pipeline)
	if err != nil {
		return result, err
	}

	s.logger.Info(ctx, "Starting "+name, "tasks", len(graph.Names()))
	report, err := graph.Run(ctx)
	result.Report = report
	result.Duration = time.Since(startTime)
	result.Success = err == nil

	s.logReport(ctx, report)

	if err != nil {
		s.logger.Error(ctx, err, name+" failed", "duration", result.Duration)
		return result, err
	}
	s.logger.Info(ctx, name+" finished", "duration", result.Duration)
	return result, nil
}

func (s *BuildService) logReport(ctx context.Context, report *build.Report) {
	if report == nil {
		return
	}
	for _, tr := range report.Tasks {
		fields := []interface{}{
			"task", tr.Name,
			"status", string(tr.Status),
			"depth", tr.Depth,
			"duration", tr.Duration,
		}
		switch tr.Status {
		case build.StatusFailed:
			s.logger.Warn(ctx, tr.Err, "Task report", fields...)
		default:
			s.logger.Info(ctx, "Task report", fields...)
		}
	}
}

// Clean removes dist, and temp when asked.
func (s *BuildService) Clean(ctx context.Context, opts CleanOptions) error {
	pipeline, err := NewPipeline(s.config, PipelineOptions{Logger: s.logger})
	if err != nil {
		return err
	}
	defer func() { _ = pipeline.Close() }()

	tasks := []build.Task{pipeline.Clean}
	if opts.Temp {
		tasks = append(tasks, pipeline.CleanTemp)
	}

	var errs []error
	for _, task := range tasks {
		if err := task.Run(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		s.logger.Info(ctx, "Removed directory", "task", task.Name())
	}
	return errors.Join(errs...)
}
