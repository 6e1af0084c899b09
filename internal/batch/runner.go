// Package batch 按顺序驱动一组文档通过抽取流程，负责重试、跳过与结果持久化。
package batch

import (
	"context"
	"errors"
	"fmt"

	"pliego-extract-go/internal/model"
	"pliego-extract-go/internal/pipeline"
	"pliego-extract-go/pkg/log"
	"pliego-extract-go/pkg/metrics"
)

// Extractor extracts the categories of one document.
type Extractor interface {
	Process(ctx context.Context, doc model.Document) (*model.Categories, error)
}

// Summary counts the outcomes of a run.
type Summary struct {
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
}

// Runner processes documents one at a time.
type Runner struct {
	extractor Extractor
	writer    ResultWriter
	policy    RetryPolicy
	source    string
}

// Option configures a Runner.
type Option func(*Runner)

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option { return func(r *Runner) { r.policy = p } }

// WithSource labels the run's metrics, e.g. "batch" or "kafka".
func WithSource(source string) Option { return func(r *Runner) { r.source = source } }

// NewRunner creates a Runner. writer may be nil for runs that only collect.
func NewRunner(extractor Extractor, writer ResultWriter, opts ...Option) *Runner {
	r := &Runner{
		extractor: extractor,
		writer:    writer,
		policy:    DefaultRetryPolicy(),
		source:    "batch",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes docs in order. Each success is appended to the writer before
// the next document starts. Skipped and failed documents are logged and
// left out. Run stops early only when ctx is done or the writer fails.
func (r *Runner) Run(ctx context.Context, docs []model.Document) (Summary, error) {
	summary := Summary{Total: len(docs)}
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		log.Infof("[Batch] 处理文档 %d/%d, ProcurementID: %s", i+1, len(docs), doc.ProcurementID)

		result, err := r.ProcessOne(ctx, doc)
		switch {
		case err == nil:
		case pipeline.IsSkippable(err):
			summary.Skipped++
			log.Warnf("[Batch] 跳过文档, ProcurementID: %s, 原因: %v", doc.ProcurementID, err)
			continue
		case ctx.Err() != nil:
			return summary, ctx.Err()
		default:
			summary.Failed++
			log.Errorf("[Batch] 处理文档失败, 已放弃, ProcurementID: %s, Error: %v", doc.ProcurementID, err)
			continue
		}

		if r.writer != nil {
			if err := r.writer.Append(ctx, result); err != nil {
				return summary, fmt.Errorf("append result for %s: %w", doc.ProcurementID, err)
			}
		}
		summary.Succeeded++
	}
	log.Infow("[Batch] 运行结束",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

// ProcessOne extracts one document under the retry policy and records the
// outcome metric.
func (r *Runner) ProcessOne(ctx context.Context, doc model.Document) (model.ExtractionResult, error) {
	var categories *model.Categories
	err := r.policy.Do(ctx, func() error {
		var perr error
		categories, perr = r.extractor.Process(ctx, doc)
		return perr
	})
	r.observe(err)
	if err != nil {
		return model.ExtractionResult{}, err
	}
	return model.NewResult(doc, *categories), nil
}

// Collect processes docs once each, without retry or persistence. Failed
// documents yield an error record; skipped documents are left out.
func (r *Runner) Collect(ctx context.Context, docs []model.Document) []model.ExtractionResult {
	results := make([]model.ExtractionResult, 0, len(docs))
	for _, doc := range docs {
		categories, err := r.extractor.Process(ctx, doc)
		r.observe(err)
		switch {
		case err == nil:
			results = append(results, model.NewResult(doc, *categories))
		case pipeline.IsSkippable(err):
			log.Warnf("[Batch] 跳过文档, ProcurementID: %s, 原因: %v", doc.ProcurementID, err)
		default:
			log.Errorf("[Batch] 处理文档失败, ProcurementID: %s, Error: %v", doc.ProcurementID, err)
			results = append(results, model.NewErrorResult(doc, err))
		}
	}
	return results
}

func (r *Runner) observe(err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case pipeline.IsSkippable(err):
		outcome = metrics.OutcomeSkipped
	case errors.Is(err, context.Canceled):
		return
	default:
		outcome = metrics.OutcomeFailed
	}
	metrics.DocumentsTotal.WithLabelValues(r.source, outcome).Inc()
}
