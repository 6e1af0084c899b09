// Package model 定义了抽取流程中流转的数据结构。
package model

import "strings"

// Document is one procurement document as read from a request body or a parquet row.
type Document struct {
	ProcurementID string `json:"procurement_id" parquet:"procurement_id"`
	DocName       string `json:"doc_name" parquet:"doc_name"`
	Content       []byte `json:"content" parquet:"content"`
}

// MatchesDocName reports whether the document name contains marker, ignoring case.
func (d Document) MatchesDocName(marker string) bool {
	return strings.Contains(strings.ToLower(d.DocName), strings.ToLower(marker))
}
