package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pliego-extract-go/internal/model"
	"pliego-extract-go/internal/pipeline"
	"pliego-extract-go/pkg/table"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractionService struct {
	textCalls  int
	tableCalls int
	text       string
	tableData  []byte
	categories *model.Categories
	results    []model.ExtractionResult
	err        error
}

func (f *fakeExtractionService) ExtractText(_ context.Context, text string) (*model.Categories, error) {
	f.textCalls++
	f.text = text
	return f.categories, f.err
}

func (f *fakeExtractionService) ExtractTable(_ context.Context, r io.ReaderAt, size int64) ([]model.ExtractionResult, error) {
	f.tableCalls++
	f.tableData = make([]byte, size)
	_, _ = r.ReadAt(f.tableData, 0)
	return f.results, f.err
}

func init() {
	gin.SetMode(gin.TestMode)
}

func postJSON(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/extract_metadata", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func postFile(t *testing.T, router http.Handler, field string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "file.parq")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/extract_metadata", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestExtractMetadata_Text(t *testing.T) {
	svc := &fakeExtractionService{categories: &model.Categories{
		CriteriosAdjudicacion: "Precio",
		CriteriosSolvencia:    "",
		CondicionesEspeciales: "Social",
	}}
	w := postJSON(NewRouter(svc, 0), `{"text": "<doc>pliego</doc>"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<doc>pliego</doc>", svc.text)
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, map[string]string{
		"criterios_adjudicacion": "Precio",
		"criterios_solvencia":    "",
		"condiciones_especiales": "Social",
	}, got)
}

func TestExtractMetadata_InvalidTextNeverCallsProviders(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`{"text": 12}`,
		`{"text": null}`,
		`{"texto": "hola"}`,
		`not json`,
		`["text"]`,
	} {
		svc := &fakeExtractionService{}
		w := postJSON(NewRouter(svc, 0), body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %s", body)
		assert.Contains(t, w.Body.String(), "error")
		assert.Zero(t, svc.textCalls, "body %s", body)
	}
}

func TestExtractMetadata_TextErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"no chunks", pipeline.ErrEmptyContent, http.StatusBadRequest},
		{"format", fmt.Errorf("%w: bad xml", pipeline.ErrContentFormat), http.StatusBadRequest},
		{"provider", errors.New("embed chunks: embedding api returned non-200 status"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(NewRouter(&fakeExtractionService{err: tt.err}, 0), `{"text": "x"}`)
			assert.Equal(t, tt.code, w.Code)
			var got map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.err.Error(), got["error"])
		})
	}
}

func TestExtractMetadata_Table(t *testing.T) {
	svc := &fakeExtractionService{results: []model.ExtractionResult{
		model.NewResult(model.Document{ProcurementID: "1", DocName: "a"}, model.Categories{CriteriosAdjudicacion: "Precio"}),
		{ProcurementID: "2", DocName: "b", Error: "chat api returned non-200 status"},
	}}
	w := postFile(t, NewRouter(svc, 1), "file", []byte("PAR1 data"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte("PAR1 data"), svc.tableData)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Precio", got[0]["criterios_adjudicacion"])
	assert.NotContains(t, got[0], "error")
	assert.Equal(t, "chat api returned non-200 status", got[1]["error"])
	assert.NotContains(t, got[1], "criterios_adjudicacion")
}

func TestExtractMetadata_TableMissingFile(t *testing.T) {
	svc := &fakeExtractionService{}
	w := postFile(t, NewRouter(svc, 0), "other", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, svc.tableCalls)
}

func TestExtractMetadata_TableWithoutMatchingRows(t *testing.T) {
	svc := &fakeExtractionService{err: fmt.Errorf("%w: %w", pipeline.ErrInvalidInput, table.ErrNoDocuments)}
	w := postFile(t, NewRouter(svc, 0), "file", []byte("PAR1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	router := NewRouter(&fakeExtractionService{}, 0)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pliego_http_requests_total")
}

func TestExtractMetadata_TextBodyTooLarge(t *testing.T) {
	svc := &fakeExtractionService{categories: &model.Categories{}}
	body := `{"text": "` + strings.Repeat("a", 1<<20) + `"}`

	w := postJSON(NewRouter(svc, 1), body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "error")
	assert.Zero(t, svc.textCalls)
}
