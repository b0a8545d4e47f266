// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Image         ImageConfig         `yaml:"image" mapstructure:"image"`
	Book          BookConfig          `yaml:"book" mapstructure:"book"`
	Pacing        PacingConfig        `yaml:"pacing" mapstructure:"pacing"`
	Output        OutputConfig        `yaml:"output" mapstructure:"output"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	// JobTTL 任务状态在 Redis 中的保留时间
	JobTTL time.Duration `yaml:"job_ttl" mapstructure:"job_ttl"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ImageConfig 图片生成配置
type ImageConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	APIKey          string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL         string        `yaml:"base_url" mapstructure:"base_url"`
	Model           string        `yaml:"model" mapstructure:"model"`
	Size            string        `yaml:"size" mapstructure:"size"`
	Quality         string        `yaml:"quality" mapstructure:"quality"`
	ResponseFormat  string        `yaml:"response_format" mapstructure:"response_format"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
	DownloadTimeout time.Duration `yaml:"download_timeout" mapstructure:"download_timeout"`
}

// BookConfig 整书生成配置
type BookConfig struct {
	Title string `yaml:"title" mapstructure:"title"`
	// StructureSource 章节结构来源：static | tiered | generated
	StructureSource string `yaml:"structure_source" mapstructure:"structure_source"`
	// GenerateFraming 是否由模型生成引言/结语，关闭时使用固定文本
	GenerateFraming bool `yaml:"generate_framing" mapstructure:"generate_framing"`

	WordsPerPage      int `yaml:"words_per_page" mapstructure:"words_per_page"`
	MinSectionWords   int `yaml:"min_section_words" mapstructure:"min_section_words"`
	MinGenerateWords  int `yaml:"min_generate_words" mapstructure:"min_generate_words"`
	SingleShotCeiling int `yaml:"single_shot_ceiling" mapstructure:"single_shot_ceiling"`
	ChunkSize         int `yaml:"chunk_size" mapstructure:"chunk_size"`
	// MaxPages/MaxWords 单本书目标上限，不得超过 MaxBookPages/MaxBookWords
	MaxPages int `yaml:"max_pages" mapstructure:"max_pages"`
	MaxWords int `yaml:"max_words" mapstructure:"max_words"`

	Overhead OverheadConfig `yaml:"overhead" mapstructure:"overhead"`
}

// OverheadConfig 固定版面页数
type OverheadConfig struct {
	FrontMatterPages int `yaml:"front_matter_pages" mapstructure:"front_matter_pages"`
	PerSectionPages  int `yaml:"per_section_pages" mapstructure:"per_section_pages"`
	FramingPages     int `yaml:"framing_pages" mapstructure:"framing_pages"`
	PrefacePages     int `yaml:"preface_pages" mapstructure:"preface_pages"`
	IntroPages       int `yaml:"intro_pages" mapstructure:"intro_pages"`
	OutroPages       int `yaml:"outro_pages" mapstructure:"outro_pages"`
}

// PacingConfig 外部调用节流配置
type PacingConfig struct {
	ChunkDelay        time.Duration `yaml:"chunk_delay" mapstructure:"chunk_delay"`
	SectionDelay      time.Duration `yaml:"section_delay" mapstructure:"section_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	// Distributed 多个 worker 共享 Redis 滑动窗口限流
	Distributed bool `yaml:"distributed" mapstructure:"distributed"`
}

// OutputConfig 输出目录与渲染配置
type OutputConfig struct {
	BooksDir  string `yaml:"books_dir" mapstructure:"books_dir"`
	ImagesDir string `yaml:"images_dir" mapstructure:"images_dir"`
	// Format html | pdf
	Format string `yaml:"format" mapstructure:"format"`
	// PDFCommand 外部转换命令，{input} 与 {output} 会被替换
	PDFCommand []string `yaml:"pdf_command" mapstructure:"pdf_command"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	MaxLen              int           `yaml:"max_len" mapstructure:"max_len"`
	ConsumerGroupPrefix string        `yaml:"consumer_group_prefix" mapstructure:"consumer_group_prefix"`
	BlockTimeout        time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval       time.Duration `yaml:"claim_interval" mapstructure:"claim_interval"`
	RetryLimit          int           `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff        BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
	WorkerConcurrency   int           `yaml:"worker_concurrency" mapstructure:"worker_concurrency"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// RateLimitConfig 接口限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}
