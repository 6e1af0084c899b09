// Package es 提供了基于 Elasticsearch 的临时向量索引。
// 每次抽取创建一个独立的索引，抽取结束后删除。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pliego-extract-go/internal/config"
	"pliego-extract-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
)

// NewClient 根据配置创建一个 Elasticsearch 客户端。
func NewClient(esCfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	var addresses []string
	for _, addr := range strings.Split(esCfg.Addresses, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			addresses = append(addresses, addr)
		}
	}
	cfg := elasticsearch.Config{
		Addresses: addresses,
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	return elasticsearch.NewClient(cfg)
}

// VectorStore 是一个只服务于单次抽取的 dense_vector 索引。
type VectorStore struct {
	client *elasticsearch.Client
	index  string
	dims   int
	count  int
}

// NewVectorStore 创建一个名为 "<prefix>-<uuid>" 的新索引。
func NewVectorStore(ctx context.Context, client *elasticsearch.Client, prefix string, dims int) (*VectorStore, error) {
	if prefix == "" {
		prefix = "extract"
	}
	indexName := fmt.Sprintf("%s-%s", prefix, uuid.NewString())

	mapping := fmt.Sprintf(`{
		"settings": { "number_of_shards": 1, "number_of_replicas": 0 },
		"mappings": {
			"properties": {
				"chunk_id": { "type": "integer" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, dims)

	req := esapi.IndicesCreateRequest{
		Index: indexName,
		Body:  strings.NewReader(mapping),
	}
	res, err := req.Do(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("创建索引 '%s' 失败: %w", indexName, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return nil, errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("临时索引 '%s' 创建成功", indexName)
	return &VectorStore{client: client, index: indexName, dims: dims}, nil
}

// Index returns the name of the backing index.
func (s *VectorStore) Index() string {
	return s.index
}

type chunkDoc struct {
	ChunkID int       `json:"chunk_id"`
	Vector  []float32 `json:"vector"`
}

// Add 通过一次 bulk 请求写入向量，并立即刷新使其可检索。
func (s *VectorStore) Add(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, v := range vectors {
		if len(v) != s.dims {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), s.dims)
		}
		id := s.count + i
		meta := map[string]any{"index": map[string]any{"_index": s.index, "_id": fmt.Sprint(id)}}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		if err := enc.Encode(chunkDoc{ChunkID: id, Vector: v}); err != nil {
			return err
		}
	}

	req := esapi.BulkRequest{
		Body:    &buf,
		Refresh: "true",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("bulk 写入失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk 写入时 Elasticsearch 返回错误: %s", res.String())
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("解析 bulk 响应失败: %w", err)
	}
	if bulkResp.Errors {
		return errors.New("bulk 请求中存在写入失败的文档")
	}
	s.count += len(vectors)
	return nil
}

// Search 执行 kNN 查询，返回按相似度降序排列的 chunk 序号。
func (s *VectorStore) Search(ctx context.Context, query []float32, k int) ([]int, error) {
	if len(query) != s.dims {
		return nil, fmt.Errorf("query has dimension %d, want %d", len(query), s.dims)
	}
	if k > s.count {
		k = s.count
	}
	if k <= 0 {
		return nil, nil
	}
	numCandidates := k * 10
	if numCandidates < 100 {
		numCandidates = 100
	}

	body := map[string]any{
		"knn": map[string]any{
			"field":          "vector",
			"query_vector":   query,
			"k":              k,
			"num_candidates": numCandidates,
		},
		"_source": []string{"chunk_id"},
		"size":    k,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  &buf,
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("kNN 查询失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("kNN 查询时 Elasticsearch 返回错误: %s", res.String())
	}

	var searchResp struct {
		Hits struct {
			Hits []struct {
				Source chunkDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("解析 kNN 响应失败: %w", err)
	}
	ids := make([]int, 0, len(searchResp.Hits.Hits))
	for _, hit := range searchResp.Hits.Hits {
		ids = append(ids, hit.Source.ChunkID)
	}
	return ids, nil
}

// Close 删除临时索引。
func (s *VectorStore) Close(ctx context.Context) error {
	req := esapi.IndicesDeleteRequest{Index: []string{s.index}}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("删除索引 '%s' 失败: %w", s.index, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("删除索引 '%s' 时 Elasticsearch 返回错误: %s", s.index, res.String())
	}
	log.Infof("临时索引 '%s' 已删除", s.index)
	return nil
}
