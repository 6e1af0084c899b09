// Package repository 提供了抽取结果与缓存的数据访问层实现。
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"pliego-extract-go/internal/model"
	"pliego-extract-go/pkg/log"
)

// ResultFileRepository keeps a run's results in one JSON array file. Every
// Append rewrites the whole file through a temp file and a rename.
type ResultFileRepository struct {
	mu   sync.Mutex
	path string
}

// NewResultFileRepository 创建一个指向 path 的结果文件仓库，文件在首次写入时创建。
func NewResultFileRepository(path string) *ResultFileRepository {
	return &ResultFileRepository{path: path}
}

// Path returns the result file path.
func (r *ResultFileRepository) Path() string {
	return r.path
}

// Append merges results after the entries already in the file. A missing,
// empty or unparsable file counts as an empty prior set.
func (r *ResultFileRepository) Append(_ context.Context, results ...model.ExtractionResult) error {
	if len(results) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.readExisting()
	for _, res := range results {
		raw, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshal result %s: %w", res.ProcurementID, err)
		}
		entries = append(entries, raw)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return r.writeAtomic(buf.Bytes())
}

// Load returns every entry currently stored in the file.
func (r *ResultFileRepository) Load(_ context.Context) ([]model.ExtractionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var results []model.ExtractionResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.path, err)
	}
	return results, nil
}

func (r *ResultFileRepository) readExisting() []json.RawMessage {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warnf("[ResultFile] 读取已有结果失败，按空结果处理: %s, err=%v", r.path, err)
		}
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warnf("[ResultFile] 已有结果文件损坏，按空结果处理: %s, err=%v", r.path, err)
		return nil
	}
	return entries
}

func (r *ResultFileRepository) writeAtomic(data []byte) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", r.path, err)
	}
	return nil
}
