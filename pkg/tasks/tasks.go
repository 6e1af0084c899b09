// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import (
	"time"

	"pliego-extract-go/internal/model"
)

// ExtractionTask carries one document to the extraction worker.
type ExtractionTask struct {
	RunID         string    `json:"run_id"`
	ProcurementID string    `json:"procurement_id"`
	DocName       string    `json:"doc_name"`
	Content       []byte    `json:"content"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// NewExtractionTask wraps doc for the given run.
func NewExtractionTask(runID string, doc model.Document) ExtractionTask {
	return ExtractionTask{
		RunID:         runID,
		ProcurementID: doc.ProcurementID,
		DocName:       doc.DocName,
		Content:       doc.Content,
		EnqueuedAt:    time.Now().UTC(),
	}
}

// Document returns the document the task carries.
func (t ExtractionTask) Document() model.Document {
	return model.Document{
		ProcurementID: t.ProcurementID,
		DocName:       t.DocName,
		Content:       t.Content,
	}
}
