// Package pipeline 定义了文档元数据抽取的核心流程：
// 规范化 -> 切块 -> 临时向量索引 -> 检索 + 提示词 + LLM -> 分类切分。
package pipeline

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"pliego-extract-go/internal/model"
	"pliego-extract-go/pkg/log"
	"pliego-extract-go/pkg/metrics"
)

// ChatModel returns the model's answer to a single user prompt.
type ChatModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TextExtractor turns binary document content (PDF, DOCX...) into text.
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error)
}

// AnswerCache stores raw model answers keyed by prompt fingerprint.
type AnswerCache interface {
	GetAnswer(ctx context.Context, key string) (string, bool, error)
	SetAnswer(ctx context.Context, key, answer string) error
}

// Processor 封装了单个文档抽取所需的全部依赖。
type Processor struct {
	normalizer    *Normalizer
	chunker       *Chunker
	splitter      *Splitter
	embedder      Embedder
	chat          ChatModel
	newStore      VectorStoreFactory
	topK          int
	maxQueryChars int
	template      string
	modelName     string
	extractor     TextExtractor
	cache         AnswerCache
}

// Option configures a Processor.
type Option func(*Processor)

// WithNormalizer sets the normalization policy holder.
func WithNormalizer(n *Normalizer) Option { return func(p *Processor) { p.normalizer = n } }

// WithChunker sets the chunker.
func WithChunker(c *Chunker) Option { return func(p *Processor) { p.chunker = c } }

// WithSplitter sets the category splitter.
func WithSplitter(s *Splitter) Option { return func(p *Processor) { p.splitter = s } }

// WithVectorStore selects the ephemeral index backend.
func WithVectorStore(f VectorStoreFactory) Option { return func(p *Processor) { p.newStore = f } }

// WithTopK sets how many chunks fill the prompt context.
func WithTopK(k int) Option {
	return func(p *Processor) {
		if k > 0 {
			p.topK = k
		}
	}
}

// WithMaxQueryChars bounds a single query embedding window.
func WithMaxQueryChars(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxQueryChars = n
		}
	}
}

// WithPromptTemplate overrides DefaultPromptTemplate.
func WithPromptTemplate(t string) Option {
	return func(p *Processor) {
		if t != "" {
			p.template = t
		}
	}
}

// WithModelName namespaces cache keys by chat model.
func WithModelName(name string) Option { return func(p *Processor) { p.modelName = name } }

// WithTextExtractor enables extraction of non-UTF-8 content.
func WithTextExtractor(e TextExtractor) Option { return func(p *Processor) { p.extractor = e } }

// WithAnswerCache enables answer caching.
func WithAnswerCache(c AnswerCache) Option { return func(p *Processor) { p.cache = c } }

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(embedder Embedder, chat ChatModel, opts ...Option) *Processor {
	p := &Processor{
		normalizer:    NewNormalizer(PolicyLenient),
		chunker:       NewChunker(),
		splitter:      NewSplitter(false),
		embedder:      embedder,
		chat:          chat,
		newStore:      NewMemoryStore,
		topK:          DefaultTopK,
		maxQueryChars: DefaultMaxQueryChars,
		template:      DefaultPromptTemplate,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one document through the whole pipeline. Skippable outcomes are
// reported as ErrContentFormat or ErrEmptyContent; provider failures are
// returned wrapped.
func (p *Processor) Process(ctx context.Context, doc model.Document) (*model.Categories, error) {
	start := time.Now()
	log.Infof("[Processor] 开始处理文档, ProcurementID: %s, DocName: %s", doc.ProcurementID, doc.DocName)

	raw, err := p.decode(ctx, doc)
	if err != nil {
		return nil, err
	}

	text, err := p.normalizer.Normalize(raw)
	if err != nil {
		log.Warnf("[Processor] 文档内容规范化失败, DocName: %s, Error: %v", doc.DocName, err)
		return nil, err
	}
	log.Infof("[Processor] 步骤1: 规范化完成, 内容长度: %d 字符", utf8.RuneCountInString(text))

	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		log.Warnf("[Processor] 未生成任何文本分块, DocName: %s", doc.DocName)
		return nil, ErrEmptyContent
	}
	log.Infof("[Processor] 步骤2: 文本分块完成, 共生成 %d 个分块", len(chunks))

	answer, err := p.Answer(ctx, chunks)
	if err != nil {
		return nil, err
	}

	categories := p.splitter.Split(answer)
	metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	log.Infof("[Processor] 文档处理成功完成, ProcurementID: %s, 耗时: %s", doc.ProcurementID, time.Since(start))
	return &categories, nil
}

// Answer builds the ephemeral index over chunks, retrieves the prompt context
// with the full document as query and returns the raw model answer.
func (p *Processor) Answer(ctx context.Context, chunks []string) (answer string, err error) {
	if len(chunks) == 0 {
		return "", ErrEmptyContent
	}
	question := strings.Join(chunks, "\n")

	index, err := BuildIndex(ctx, p.embedder, p.newStore, chunks, p.maxQueryChars)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := index.Close(context.WithoutCancel(ctx)); cerr != nil {
			log.Warnf("[Processor] 关闭临时索引失败: %v", cerr)
		}
	}()

	contextChunks, err := index.Retrieve(ctx, question, p.topK)
	if err != nil {
		return "", err
	}
	log.Infof("[Processor] 步骤3: 检索完成, 返回 %d 个上下文分块", len(contextChunks))

	prompt := RenderPrompt(p.template, contextChunks, question)
	key := p.cacheKey(prompt)
	if p.cache != nil {
		if cached, ok, cerr := p.cache.GetAnswer(ctx, key); cerr != nil {
			log.Warnf("[Processor] 读取回答缓存失败: %v", cerr)
		} else if ok {
			log.Infof("[Processor] 命中回答缓存, key: %s", key)
			return cached, nil
		}
	}

	answer, err = p.chat.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	log.Infof("[Processor] 步骤4: 模型回答完成, 回答长度: %d 字符", utf8.RuneCountInString(answer))

	if p.cache != nil {
		if cerr := p.cache.SetAnswer(ctx, key, answer); cerr != nil {
			log.Warnf("[Processor] 写入回答缓存失败: %v", cerr)
		}
	}
	return answer, nil
}

// decode returns the document content as text. Content that is not valid
// UTF-8 goes through the TextExtractor when one is configured.
func (p *Processor) decode(ctx context.Context, doc model.Document) (string, error) {
	if utf8.Valid(doc.Content) || p.extractor == nil {
		return string(doc.Content), nil
	}
	text, err := p.extractor.ExtractText(ctx, strings.NewReader(string(doc.Content)), doc.DocName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrContentFormat, err)
	}
	return text, nil
}

func (p *Processor) cacheKey(prompt string) string {
	return fmt.Sprintf("answer:%s:%x", p.modelName, md5.Sum([]byte(prompt)))
}

// IsProviderError reports whether err came from the embedding or chat provider
// rather than from the document itself.
func IsProviderError(err error) bool {
	return err != nil && !IsSkippable(err) && !errors.Is(err, ErrInvalidInput)
}
