package model

// Category keys used in every JSON response and persisted result.
const (
	KeyCriteriosAdjudicacion = "criterios_adjudicacion"
	KeyCriteriosSolvencia    = "criterios_solvencia"
	KeyCondicionesEspeciales = "condiciones_especiales"
)

// Categories holds the three extracted sections. A section the model did not
// produce stays as an empty string.
type Categories struct {
	CriteriosAdjudicacion string `json:"criterios_adjudicacion"`
	CriteriosSolvencia    string `json:"criterios_solvencia"`
	CondicionesEspeciales string `json:"condiciones_especiales"`
}

// ExtractionResult is one document's outcome. Exactly one of Categories or
// Error is set; the category keys are inlined at the top level when present.
type ExtractionResult struct {
	ProcurementID string `json:"procurement_id"`
	DocName       string `json:"doc_name"`
	*Categories
	Error string `json:"error,omitempty"`
}

// NewResult 构造一个成功的抽取结果。
func NewResult(doc Document, categories Categories) ExtractionResult {
	return ExtractionResult{
		ProcurementID: doc.ProcurementID,
		DocName:       doc.DocName,
		Categories:    &categories,
	}
}

// NewErrorResult 构造一个失败的抽取结果。
func NewErrorResult(doc Document, err error) ExtractionResult {
	return ExtractionResult{
		ProcurementID: doc.ProcurementID,
		DocName:       doc.DocName,
		Error:         err.Error(),
	}
}
