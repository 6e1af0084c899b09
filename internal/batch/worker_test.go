package batch

import (
	"context"
	"errors"
	"testing"

	"pliego-extract-go/internal/pipeline"
	"pliego-extract-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_ProcessTask(t *testing.T) {
	ext := &scriptedExtractor{
		always: map[string]error{"skip": pipeline.ErrEmptyContent, "bad": errors.New("boom")},
	}
	w := &memoryWriter{}
	worker := NewWorker(NewRunner(ext, nil, WithSource("kafka")), w)

	require.NoError(t, worker.ProcessTask(context.Background(), tasks.NewExtractionTask("run", docs("ok")[0])))
	require.NoError(t, worker.ProcessTask(context.Background(), tasks.NewExtractionTask("run", docs("skip")[0])))
	assert.Error(t, worker.ProcessTask(context.Background(), tasks.NewExtractionTask("run", docs("bad")[0])))

	require.Len(t, w.results, 1)
	assert.Equal(t, "ok", w.results[0].ProcurementID)
	assert.Equal(t, "precio ok", w.results[0].CriteriosAdjudicacion)
}
