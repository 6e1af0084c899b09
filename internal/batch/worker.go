package batch

import (
	"context"

	"pliego-extract-go/internal/pipeline"
	"pliego-extract-go/pkg/log"
	"pliego-extract-go/pkg/tasks"
)

// Worker adapts a Runner to queued extraction tasks. A task that has nothing
// to extract counts as done.
type Worker struct {
	runner *Runner
	writer ResultWriter
}

// NewWorker creates a Worker that persists each result through writer.
func NewWorker(runner *Runner, writer ResultWriter) *Worker {
	return &Worker{runner: runner, writer: writer}
}

// ProcessTask extracts the task's document under the runner's retry policy.
func (w *Worker) ProcessTask(ctx context.Context, task tasks.ExtractionTask) error {
	result, err := w.runner.ProcessOne(ctx, task.Document())
	if err != nil {
		if pipeline.IsSkippable(err) {
			log.Warnf("[Worker] 跳过任务, ProcurementID: %s, 原因: %v", task.ProcurementID, err)
			return nil
		}
		return err
	}
	return w.writer.Append(ctx, result)
}
