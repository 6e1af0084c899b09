package batch

import (
	"context"

	"pliego-extract-go/internal/model"
	"pliego-extract-go/pkg/log"
)

// ResultWriter persists finished results.
type ResultWriter interface {
	Append(ctx context.Context, results ...model.ExtractionResult) error
}

// MultiWriter writes to a primary writer, whose errors are returned, and to
// optional secondary writers, whose errors are only logged.
type MultiWriter struct {
	primary   ResultWriter
	secondary []ResultWriter
}

// NewMultiWriter creates a MultiWriter. Nil secondary writers are ignored.
func NewMultiWriter(primary ResultWriter, secondary ...ResultWriter) *MultiWriter {
	w := &MultiWriter{primary: primary}
	for _, s := range secondary {
		if s != nil {
			w.secondary = append(w.secondary, s)
		}
	}
	return w
}

// Append implements ResultWriter.
func (w *MultiWriter) Append(ctx context.Context, results ...model.ExtractionResult) error {
	if err := w.primary.Append(ctx, results...); err != nil {
		return err
	}
	for _, s := range w.secondary {
		if err := s.Append(ctx, results...); err != nil {
			log.Errorf("[Batch] 写入附加结果存储失败: %v", err)
		}
	}
	return nil
}

// ResultWriterFunc adapts a function to ResultWriter.
type ResultWriterFunc func(ctx context.Context, results ...model.ExtractionResult) error

// Append implements ResultWriter.
func (f ResultWriterFunc) Append(ctx context.Context, results ...model.ExtractionResult) error {
	return f(ctx, results...)
}
