package errors

import (
	"fmt"
	"io/fs"
	"testing"
)

func BenchmarkErrorCollector_Record(b *testing.B) {
	collector := NewErrorCollector()
	err := NewTransformError(ErrCodeTransformFailed, "sass failed", nil)

	b.ResetTimer()
	for i := range b.N {
		collector.Record(fmt.Sprintf("task%d", i%16), err)
	}
}

func BenchmarkErrorCollector_GetErrors(b *testing.B) {
	collector := NewErrorCollector()

	// Pre-populate with errors
	for i := range 100 {
		collector.Record(fmt.Sprintf("task%03d", i), NewIOError(ErrCodeWriteFailed, "write failed", nil))
	}

	b.ResetTimer()
	for range b.N {
		_ = collector.GetErrors()
	}
}

func BenchmarkErrorCollector_Clear(b *testing.B) {
	b.ResetTimer()
	for range b.N {
		collector := NewErrorCollector()
		for i := range 10 {
			collector.Record(fmt.Sprintf("task%d", i), fs.ErrNotExist)
		}
		collector.Clear()
	}
}

func BenchmarkErrorCollector_Concurrent(b *testing.B) {
	collector := NewErrorCollector()
	err := NewConfigError(ErrCodeMalformedMarker, "unterminated build block")

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%4 == 0 {
				_ = collector.GetErrors()
			} else {
				collector.Record(fmt.Sprintf("task%d", i%8), err)
			}
			i++
		}
	})
}

func BenchmarkPipelineError_Error(b *testing.B) {
	err := WrapTransform(
		NewTransformError(ErrCodeTransformFailed, "undefined variable", nil).WithLocation("src/assets/styles/main.scss", 12, 3),
		ErrCodeTransformFailed, "style failed", "style",
	)

	b.ResetTimer()
	for range b.N {
		_ = err.Error()
	}
}

func BenchmarkDiagnostics_Error(b *testing.B) {
	diags := make(Diagnostics, 0, 10)
	for i := range 10 {
		diags = append(diags, &Diagnostic{
			Tool:     "esbuild",
			File:     "src/assets/scripts/main.js",
			Line:     i + 1,
			Column:   5,
			Message:  "unexpected token",
			Severity: ErrorSeverityError,
		})
	}

	b.ResetTimer()
	for range b.N {
		_ = diags.Error()
	}
}

func BenchmarkErrorSeverity_String(b *testing.B) {
	severities := []ErrorSeverity{
		ErrorSeverityInfo,
		ErrorSeverityWarning,
		ErrorSeverityError,
	}

	b.ResetTimer()
	for i := range b.N {
		_ = severities[i%len(severities)].String()
	}
}
