// Package table reads procurement documents from parquet tables.
package table

import (
	"errors"
	"fmt"
	"io"

	"pliego-extract-go/internal/model"

	"github.com/parquet-go/parquet-go"
)

// ErrNoDocuments is returned when a filter or range selects nothing.
var ErrNoDocuments = errors.New("no documents selected")

// Read decodes every row of a parquet table with doc_name, procurement_id
// and content columns.
func Read(r io.ReaderAt, size int64) ([]model.Document, error) {
	docs, err := parquet.Read[model.Document](r, size)
	if err != nil {
		return nil, fmt.Errorf("read parquet table: %w", err)
	}
	return docs, nil
}

// ReadFile is Read for a file on disk.
func ReadFile(path string) ([]model.Document, error) {
	docs, err := parquet.ReadFile[model.Document](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet file %s: %w", path, err)
	}
	return docs, nil
}

// Write encodes docs as a parquet table. It produces the layout Read expects.
func Write(w io.Writer, docs []model.Document) error {
	return parquet.Write(w, docs)
}

// FilterByDocName keeps the documents whose name contains marker, ignoring
// case, in their original order.
func FilterByDocName(docs []model.Document, marker string) []model.Document {
	out := make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.MatchesDocName(marker) {
			out = append(out, doc)
		}
	}
	return out
}

// Slice returns docs[start:end] with out-of-range bounds clamped and negative
// bounds counted from the end. An empty selection is ErrNoDocuments.
func Slice(docs []model.Document, start, end int) ([]model.Document, error) {
	n := len(docs)
	clamp := func(i int) int {
		if i < 0 {
			i += n
		}
		if i < 0 {
			return 0
		}
		if i > n {
			return n
		}
		return i
	}
	s, e := clamp(start), clamp(end)
	if s >= e {
		return nil, fmt.Errorf("%w in range %d to %d", ErrNoDocuments, start, end)
	}
	return docs[s:e], nil
}
