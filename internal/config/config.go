// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Conf 是全局配置变量，由 Init 填充。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Batch         BatchConfig         `mapstructure:"batch"`
	Log           LogConfig           `mapstructure:"log"`
	Extraction    ExtractionConfig    `mapstructure:"extraction"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port                string `mapstructure:"port"`
	Mode                string `mapstructure:"mode"`
	NormalizationPolicy string `mapstructure:"normalization_policy"`
	MaxUploadMB         int64  `mapstructure:"max_upload_mb"`
}

// BatchConfig configures the standalone batch script and the table endpoint filter.
type BatchConfig struct {
	InputPath           string        `mapstructure:"input_path"`
	OutputDir           string        `mapstructure:"output_dir"`
	DocNameMarker       string        `mapstructure:"doc_name_marker"`
	NormalizationPolicy string        `mapstructure:"normalization_policy"`
	RetryWait           time.Duration `mapstructure:"retry_wait"`
	MaxRetries          uint64        `mapstructure:"max_retries"`
	RateLimitMarker     string        `mapstructure:"rate_limit_marker"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ExtractionConfig controls how chunks are built and how answers are parsed.
type ExtractionConfig struct {
	ChunkSize           int  `mapstructure:"chunk_size"`
	ChunkOverlap        int  `mapstructure:"chunk_overlap"`
	SanitizeBeforeSplit bool `mapstructure:"sanitize_before_split"`
}

// RetrievalConfig selects the ephemeral index backend.
type RetrievalConfig struct {
	Backend       string `mapstructure:"backend"`
	TopK          int    `mapstructure:"top_k"`
	MaxQueryChars int    `mapstructure:"max_query_chars"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	Dimensions        int           `mapstructure:"dimensions"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey            string              `mapstructure:"api_key"`
	BaseURL           string              `mapstructure:"base_url"`
	Model             string              `mapstructure:"model"`
	Timeout           time.Duration       `mapstructure:"timeout"`
	RequestsPerMinute int                 `mapstructure:"requests_per_minute"`
	Generation        LLMGenerationConfig `mapstructure:"generation"`
	Prompt            LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig overrides the built-in extraction template. It must keep
// the {context} and {question} placeholders.
type LLMPromptConfig struct {
	Template string `mapstructure:"template"`
}

// TikaConfig 存储 Tika 服务器相关的配置。空 ServerURL 表示不启用。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses   string `mapstructure:"addresses"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	IndexPrefix string `mapstructure:"index_prefix"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig enables the Redis answer cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Brokers      string `mapstructure:"brokers"`
	TasksTopic   string `mapstructure:"tasks_topic"`
	ResultsTopic string `mapstructure:"results_topic"`
	GroupID      string `mapstructure:"group_id"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EnvPrefix 是覆盖配置项的环境变量前缀，例如 PLIEGO_SERVER_PORT。
const EnvPrefix = "PLIEGO"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5001")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.normalization_policy", "lenient")
	v.SetDefault("server.max_upload_mb", 256)

	v.SetDefault("batch.input_path", "file.parq")
	v.SetDefault("batch.output_dir", "output")
	v.SetDefault("batch.doc_name_marker", "Pliego_clausulas_administrativas")
	v.SetDefault("batch.normalization_policy", "strict")
	v.SetDefault("batch.retry_wait", time.Hour)
	v.SetDefault("batch.max_retries", 0)
	v.SetDefault("batch.rate_limit_marker", "rate_limit_exceeded")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("extraction.chunk_size", 2048)
	v.SetDefault("extraction.chunk_overlap", 256)
	v.SetDefault("extraction.sanitize_before_split", false)

	v.SetDefault("retrieval.backend", "memory")
	v.SetDefault("retrieval.top_k", 4)
	v.SetDefault("retrieval.max_query_chars", 8000)

	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.timeout", 60*time.Second)

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("llm.generation.temperature", 0)

	v.SetDefault("elasticsearch.index_prefix", "extract")
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("kafka.tasks_topic", "pliego-extraction-tasks")
	v.SetDefault("kafka.results_topic", "pliego-extraction-results")
	v.SetDefault("kafka.group_id", "pliego-extract-worker")
}

// Load 读取可选的 YAML 配置文件并叠加默认值与环境变量。
// OPENAI_API_KEY 同时绑定到 llm.api_key 和 embedding.api_key。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("embedding.api_key", EnvPrefix+"_EMBEDDING_API_KEY", "OPENAI_API_KEY")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings every entry point depends on.
func (c Config) Validate() error {
	if c.LLM.APIKey == "" || c.Embedding.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if c.Extraction.ChunkSize <= c.Extraction.ChunkOverlap {
		return fmt.Errorf("extraction.chunk_size (%d) must be greater than chunk_overlap (%d)",
			c.Extraction.ChunkSize, c.Extraction.ChunkOverlap)
	}
	switch c.Retrieval.Backend {
	case "memory", "elasticsearch":
	default:
		return fmt.Errorf("unknown retrieval.backend %q", c.Retrieval.Backend)
	}
	return nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
