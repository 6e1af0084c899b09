package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pliego-extract-go/internal/batch"
	"pliego-extract-go/internal/config"
	"pliego-extract-go/internal/model"
	"pliego-extract-go/pkg/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct{}

func (stubExtractor) Process(_ context.Context, doc model.Document) (*model.Categories, error) {
	return &model.Categories{CriteriosAdjudicacion: "Precio " + doc.ProcurementID}, nil
}

// setup writes a parquet table and a config file into a temp dir and returns
// the config path and output dir.
func setup(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "file.parq")
	f, err := os.Create(input)
	require.NoError(t, err)
	require.NoError(t, table.Write(f, []model.Document{
		{ProcurementID: "1", DocName: "Pliego_clausulas_administrativas_1", Content: []byte("uno")},
		{ProcurementID: "2", DocName: "memoria.pdf", Content: []byte("dos")},
		{ProcurementID: "3", DocName: "pliego_clausulas_administrativas_3", Content: []byte("tres")},
	}))
	require.NoError(t, f.Close())

	output := filepath.Join(dir, "output")
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf("batch:\n  input_path: %q\n  output_dir: %q\nlog:\n  level: \"error\"\n", input, output)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o644))

	t.Setenv("OPENAI_API_KEY", "sk-test")
	origExtractor, origNow := newExtractor, now
	newExtractor = func(config.Config) (batch.Extractor, error) { return stubExtractor{}, nil }
	now = func() time.Time { return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC) }
	t.Cleanup(func() {
		newExtractor, now = origExtractor, origNow
		enqueue = false
	})
	return cfgPath, output
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBatch_ProcessesFilteredRange(t *testing.T) {
	cfgPath, output := setup(t)

	out, err := execute("0", "2", "--config", cfgPath)
	require.NoError(t, err)

	resultPath := filepath.Join(output, "resultados_20240501_103000_0_2.json")
	assert.Contains(t, out, resultPath)
	assert.FileExists(t, filepath.Join(output, "metadata_extraction_0_2.log"))

	data, err := os.ReadFile(resultPath)
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0]["procurement_id"])
	assert.Equal(t, "3", entries[1]["procurement_id"])
	assert.Equal(t, "Precio 3", entries[1]["criterios_adjudicacion"])
}

func TestBatch_EmptyRangeCreatesNoFiles(t *testing.T) {
	cfgPath, output := setup(t)

	out, err := execute("0", "0", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, out, "No hay datos para procesar en el rango 0 a 0.")
	assert.NoDirExists(t, output)
}

func TestBatch_InvalidArguments(t *testing.T) {
	cfgPath, _ := setup(t)

	_, err := execute("cero", "2", "--config", cfgPath)
	assert.Error(t, err)

	_, err = execute("0", "--config", cfgPath)
	assert.Error(t, err)
}

func TestBatch_RequiresAPIKey(t *testing.T) {
	cfgPath, output := setup(t)
	t.Setenv("OPENAI_API_KEY", "")

	_, err := execute("0", "2", "--config", cfgPath)
	assert.Error(t, err)
	assert.NoDirExists(t, output)
}
