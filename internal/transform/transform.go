// Package transform adapts the external compilers (dart-sass, esbuild,
// pongo2 and the image codecs) to a single one-file-in, one-file-out
// interface that the compile and copy tasks drive.
package transform

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/sitepipe/internal/errors"
)

// File is a source file in flight. Rel is relative to the source root and
// becomes the output path below the destination root. Source is the path the
// contents were read from, used for diagnostics and relative imports.
type File struct {
	Source   string
	Rel      string
	Contents []byte
}

// Transformer turns one source file into one output file.
type Transformer interface {
	Name() string
	Transform(ctx context.Context, f File) (File, error)
}

func diagnostic(tool string, f File, line, column int, msg string) *errors.Diagnostic {
	return &errors.Diagnostic{
		Tool:     tool,
		File:     filepath.ToSlash(f.Source),
		Line:     line,
		Column:   column,
		Message:  msg,
		Severity: errors.ErrorSeverityError,
	}
}
