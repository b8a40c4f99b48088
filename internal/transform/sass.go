package transform

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/godartsass/v2"

	"github.com/conneroisu/sitepipe/internal/fileset"
	"github.com/conneroisu/sitepipe/internal/logging"
)

// SassOptions configures the dart-sass transpiler.
type SassOptions struct {
	// Binary is the dart-sass executable. Empty means "sass" on PATH.
	Binary       string
	OutputStyle  string
	IncludePaths []string
	Timeout      time.Duration
	Logger       logging.Logger
}

// Sass compiles SCSS to CSS through an embedded dart-sass process. The
// process is started on first use and shared until Close.
type Sass struct {
	opts SassOptions

	mu         sync.Mutex
	transpiler *godartsass.Transpiler
}

func NewSass(opts SassOptions) *Sass {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	return &Sass{opts: opts}
}

func (s *Sass) Name() string { return "sass" }

func (s *Sass) start() (*godartsass.Transpiler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transpiler != nil {
		return s.transpiler, nil
	}

	logger := s.opts.Logger
	t, err := godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: s.opts.Binary,
		Timeout:                  s.opts.Timeout,
		LogEventHandler: func(e godartsass.LogEvent) {
			logger.Debug(context.Background(), "sass", "message", e.Message)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("start dart-sass: %w", err)
	}
	s.transpiler = t
	return t, nil
}

func (s *Sass) Transform(ctx context.Context, f File) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}

	t, err := s.start()
	if err != nil {
		return File{}, err
	}

	abs, err := filepath.Abs(f.Source)
	if err != nil {
		return File{}, err
	}

	style := godartsass.OutputStyleExpanded
	if s.opts.OutputStyle == "compressed" {
		style = godartsass.OutputStyleCompressed
	}

	includes := make([]string, 0, len(s.opts.IncludePaths)+1)
	includes = append(includes, filepath.Dir(abs))
	includes = append(includes, s.opts.IncludePaths...)

	res, err := t.Execute(godartsass.Args{
		Source:       string(f.Contents),
		URL:          "file://" + filepath.ToSlash(abs),
		OutputStyle:  style,
		SourceSyntax: godartsass.SourceSyntaxSCSS,
		IncludePaths: includes,
	})
	if err != nil {
		return File{}, diagnostic("sass", f, 0, 0, err.Error())
	}

	css := res.CSS
	if css != "" && css[len(css)-1] != '\n' {
		css += "\n"
	}

	return File{
		Source:   f.Source,
		Rel:      fileset.SwapExt(f.Rel, ".css"),
		Contents: []byte(css),
	}, nil
}

// Close stops the dart-sass process if it was started.
func (s *Sass) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transpiler == nil {
		return nil
	}
	err := s.transpiler.Close()
	s.transpiler = nil
	return err
}
