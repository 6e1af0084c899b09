package model

import "time"

// ExtractionRecord 对应于数据库中的 extraction_results 表。
type ExtractionRecord struct {
	ID                    uint      `gorm:"primaryKey;autoIncrement"`
	RunID                 string    `gorm:"type:varchar(64);not null;index;column:run_id"`
	ProcurementID         string    `gorm:"type:varchar(128);not null;index;column:procurement_id"`
	DocName               string    `gorm:"type:varchar(512);column:doc_name"`
	CriteriosAdjudicacion string    `gorm:"type:longtext;column:criterios_adjudicacion"`
	CriteriosSolvencia    string    `gorm:"type:longtext;column:criterios_solvencia"`
	CondicionesEspeciales string    `gorm:"type:longtext;column:condiciones_especiales"`
	Error                 string    `gorm:"type:text;column:error"`
	CreatedAt             time.Time `gorm:"autoCreateTime"`
}

func (ExtractionRecord) TableName() string {
	return "extraction_results"
}

// NewExtractionRecord 将一次运行中的抽取结果转换为数据库记录。
func NewExtractionRecord(runID string, r ExtractionResult) *ExtractionRecord {
	rec := &ExtractionRecord{
		RunID:         runID,
		ProcurementID: r.ProcurementID,
		DocName:       r.DocName,
		Error:         r.Error,
	}
	if r.Categories != nil {
		rec.CriteriosAdjudicacion = r.CriteriosAdjudicacion
		rec.CriteriosSolvencia = r.CriteriosSolvencia
		rec.CondicionesEspeciales = r.CondicionesEspeciales
	}
	return rec
}
