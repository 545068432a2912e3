// Package config 负责加载、校验应用程序的配置。
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
// 配置对象在启动时构建一次，随后显式注入到各组件，不使用全局可变状态。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
	Query         QueryConfig         `mapstructure:"query"`
}

// ServerConfig 存储 HTTP 服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ElasticsearchConfig 存储向量索引（Elasticsearch）相关的配置。
// Namespace 是全部文档与全部查询共用的固定逻辑分区。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
	Namespace string `mapstructure:"namespace"`
}

// TikaConfig 存储 Tika 文本提取服务相关的配置。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     PromptConfig        `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数（可选，零值表示不下发）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// PromptConfig 配置提示词规则、上下文包裹符与无结果回复文案（可选）。
type PromptConfig struct {
	Rules        string `mapstructure:"rules"`
	RefStart     string `mapstructure:"ref_start"`
	RefEnd       string `mapstructure:"ref_end"`
	NoResultText string `mapstructure:"no_result_text"`
}

// IngestConfig 存储文档入库流水线的配置。
type IngestConfig struct {
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	TempDir      string `mapstructure:"temp_dir"`
}

// QueryConfig 存储检索相关的配置。
// TopK 是主路径（kNN 检索）的召回数，FallbackTopK 是原始向量查询兜底路径的召回数。
type QueryConfig struct {
	TopK         int `mapstructure:"top_k"`
	FallbackTopK int `mapstructure:"fallback_top_k"`
}

// 密钥类配置允许通过环境变量覆盖（前缀 DOCQA_，层级用下划线分隔）。
var envKeys = []string{
	"elasticsearch.addresses",
	"elasticsearch.username",
	"elasticsearch.password",
	"elasticsearch.index_name",
	"embedding.api_key",
	"embedding.base_url",
	"llm.api_key",
	"llm.base_url",
	"tika.server_url",
}

// Load 从指定路径读取 YAML 配置并解析为 Config。
// 若同目录存在 .env 文件则先行加载；缺失必填项时返回描述性错误，
// 保证配置问题在启动阶段暴露，而不是在首次调用下游服务时才失败。
func Load(configPath string) (*Config, error) {
	// .env 不存在不是错误
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("DOCQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("elasticsearch.namespace", "knowledge")
	v.SetDefault("embedding.dimensions", 1024)
	v.SetDefault("ingest.chunk_size", 1000)
	v.SetDefault("ingest.chunk_overlap", 200)
	v.SetDefault("query.top_k", 3)
	v.SetDefault("query.fallback_top_k", 10)
}

// Validate 校验所有必填配置项，缺失时返回带字段名的错误。
func (c *Config) Validate() error {
	var missing []string
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	require("elasticsearch.addresses", c.Elasticsearch.Addresses)
	require("elasticsearch.index_name", c.Elasticsearch.IndexName)
	require("elasticsearch.namespace", c.Elasticsearch.Namespace)
	require("tika.server_url", c.Tika.ServerURL)
	require("embedding.api_key", c.Embedding.APIKey)
	require("embedding.base_url", c.Embedding.BaseURL)
	require("embedding.model", c.Embedding.Model)
	require("llm.api_key", c.LLM.APIKey)
	require("llm.base_url", c.LLM.BaseURL)
	require("llm.model", c.LLM.Model)

	if len(missing) > 0 {
		return fmt.Errorf("缺失必填配置项: %s", strings.Join(missing, ", "))
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions 必须为正数, 当前值: %d", c.Embedding.Dimensions)
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size 必须为正数, 当前值: %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap 必须满足 0 <= overlap < chunk_size, 当前值: %d", c.Ingest.ChunkOverlap)
	}
	if c.Query.TopK <= 0 || c.Query.FallbackTopK <= 0 {
		return fmt.Errorf("query.top_k 与 query.fallback_top_k 必须为正数")
	}
	return nil
}
