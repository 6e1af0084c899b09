package service

import (
	"context"
	"fmt"

	"pliego-extract-go/internal/config"
	"pliego-extract-go/internal/pipeline"
	"pliego-extract-go/pkg/embedding"
	"pliego-extract-go/pkg/es"
	"pliego-extract-go/pkg/llm"
	"pliego-extract-go/pkg/log"
	"pliego-extract-go/pkg/tika"

	"github.com/elastic/go-elasticsearch/v8"
)

// NewProcessor 根据配置组装抽取流程：模型客户端、切块参数、分类解析顺序、
// 检索后端以及可选的 Tika 文本提取。extra 追加在配置项之后。
func NewProcessor(cfg config.Config, policy pipeline.NormalizationPolicy, extra ...pipeline.Option) (*pipeline.Processor, error) {
	opts := []pipeline.Option{
		pipeline.WithNormalizer(pipeline.NewNormalizer(policy)),
		pipeline.WithChunker(pipeline.NewChunker(
			pipeline.WithChunkSize(cfg.Extraction.ChunkSize),
			pipeline.WithOverlap(cfg.Extraction.ChunkOverlap),
		)),
		pipeline.WithSplitter(pipeline.NewSplitter(cfg.Extraction.SanitizeBeforeSplit)),
		pipeline.WithTopK(cfg.Retrieval.TopK),
		pipeline.WithMaxQueryChars(cfg.Retrieval.MaxQueryChars),
		pipeline.WithPromptTemplate(cfg.LLM.Prompt.Template),
		pipeline.WithModelName(cfg.LLM.Model),
	}

	switch cfg.Retrieval.Backend {
	case "", "memory":
	case "elasticsearch":
		client, err := es.NewClient(cfg.Elasticsearch)
		if err != nil {
			return nil, fmt.Errorf("elasticsearch client: %w", err)
		}
		opts = append(opts, pipeline.WithVectorStore(ElasticsearchStoreFactory(client, cfg.Elasticsearch.IndexPrefix)))
	default:
		return nil, fmt.Errorf("unknown retrieval backend %q", cfg.Retrieval.Backend)
	}

	if cfg.Tika.ServerURL != "" {
		opts = append(opts, pipeline.WithTextExtractor(tika.NewClient(cfg.Tika)))
	}

	log.Infow("[ProcessorFactory] 抽取流程已组装",
		"policy", string(policy),
		"backend", cfg.Retrieval.Backend,
		"chatModel", cfg.LLM.Model,
		"embeddingModel", cfg.Embedding.Model,
	)
	return pipeline.NewProcessor(
		embedding.NewClient(cfg.Embedding),
		llm.NewClient(cfg.LLM),
		append(opts, extra...)...,
	), nil
}

// ElasticsearchStoreFactory creates one temporary index per extraction.
func ElasticsearchStoreFactory(client *elasticsearch.Client, prefix string) pipeline.VectorStoreFactory {
	return func(ctx context.Context, dims int) (pipeline.VectorStore, error) {
		store, err := es.NewVectorStore(ctx, client, prefix, dims)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}
