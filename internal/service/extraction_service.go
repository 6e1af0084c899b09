// Package service 提供了 HTTP 入口使用的抽取业务逻辑。
package service

import (
	"context"
	"fmt"
	"io"

	"pliego-extract-go/internal/batch"
	"pliego-extract-go/internal/model"
	"pliego-extract-go/internal/pipeline"
	"pliego-extract-go/pkg/log"
	"pliego-extract-go/pkg/metrics"
	"pliego-extract-go/pkg/table"
)

// ExtractionService 接口定义了单文档与表格两种抽取操作。
type ExtractionService interface {
	// ExtractText 抽取一段文本，失败即整体失败。
	ExtractText(ctx context.Context, text string) (*model.Categories, error)
	// ExtractTable 读取 parquet 表格，按文档名过滤后逐个抽取，单个文档失败记录为 error 条目。
	ExtractTable(ctx context.Context, r io.ReaderAt, size int64) ([]model.ExtractionResult, error)
}

type extractionService struct {
	processor *pipeline.Processor
	runner    *batch.Runner
	marker    string
}

// NewExtractionService 创建一个新的 ExtractionService 实例。
func NewExtractionService(processor *pipeline.Processor, docNameMarker string) ExtractionService {
	return &extractionService{
		processor: processor,
		runner:    batch.NewRunner(processor, nil, batch.WithSource("http_table")),
		marker:    docNameMarker,
	}
}

func (s *extractionService) ExtractText(ctx context.Context, text string) (*model.Categories, error) {
	log.Infof("[ExtractionService] 开始抽取文本, 长度: %d", len(text))
	categories, err := s.processor.Process(ctx, model.Document{Content: []byte(text)})
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailed
		if pipeline.IsSkippable(err) {
			outcome = metrics.OutcomeSkipped
		}
	}
	metrics.DocumentsTotal.WithLabelValues("http_text", outcome).Inc()
	return categories, err
}

func (s *extractionService) ExtractTable(ctx context.Context, r io.ReaderAt, size int64) ([]model.ExtractionResult, error) {
	docs, err := table.Read(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrInvalidInput, err)
	}
	selected := table.FilterByDocName(docs, s.marker)
	log.Infof("[ExtractionService] 表格共 %d 行, 匹配 '%s' 的文档 %d 个", len(docs), s.marker, len(selected))
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: %w matching %q", pipeline.ErrInvalidInput, table.ErrNoDocuments, s.marker)
	}
	return s.runner.Collect(ctx, selected), nil
}

// IsClientError reports whether err should be answered with 400.
func IsClientError(err error) bool {
	return err != nil && !pipeline.IsProviderError(err)
}
