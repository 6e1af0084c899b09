package repository

import (
	"context"

	"pliego-extract-go/internal/model"

	"gorm.io/gorm"
)

// ExtractionResultRepository 定义了对 extraction_results 表的数据操作接口。
type ExtractionResultRepository interface {
	BatchCreate(ctx context.Context, records []*model.ExtractionRecord) error
	FindByRunID(ctx context.Context, runID string) ([]*model.ExtractionRecord, error)
}

type extractionResultRepository struct {
	db *gorm.DB
}

// NewExtractionResultRepository 创建一个新的 ExtractionResultRepository 实例。
func NewExtractionResultRepository(db *gorm.DB) ExtractionResultRepository {
	return &extractionResultRepository{db: db}
}

// BatchCreate 批量写入抽取结果记录。
func (r *extractionResultRepository) BatchCreate(ctx context.Context, records []*model.ExtractionRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(records, 100).Error
}

// FindByRunID 查找一次运行写入的所有记录。
func (r *extractionResultRepository) FindByRunID(ctx context.Context, runID string) ([]*model.ExtractionRecord, error) {
	var records []*model.ExtractionRecord
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("id").Find(&records).Error
	return records, err
}

// RunResultWriter stores a run's results in the database, tagged with the run id.
type RunResultWriter struct {
	repo  ExtractionResultRepository
	runID string
}

// NewRunResultWriter 创建一个写入数据库的结果写入器。
func NewRunResultWriter(repo ExtractionResultRepository, runID string) *RunResultWriter {
	return &RunResultWriter{repo: repo, runID: runID}
}

// Append converts results into records and stores them in one batch.
func (w *RunResultWriter) Append(ctx context.Context, results ...model.ExtractionResult) error {
	records := make([]*model.ExtractionRecord, 0, len(results))
	for _, res := range results {
		records = append(records, model.NewExtractionRecord(w.runID, res))
	}
	return w.repo.BatchCreate(ctx, records)
}

// Persisted counts the records stored for this run so far.
func (w *RunResultWriter) Persisted(ctx context.Context) (int, error) {
	records, err := w.repo.FindByRunID(ctx, w.runID)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
