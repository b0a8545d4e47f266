// Package config 提供配置加载功能
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// DefaultDir 默认配置目录
const DefaultDir = "configs"

// 章节结构来源
const (
	StructureStatic    = "static"
	StructureTiered    = "tiered"
	StructureGenerated = "generated"
)

// 单本书目标的硬上限，HTTP 请求校验标签与之一致
const (
	MaxBookPages = 1000
	MaxBookWords = 300000
)

var envPattern = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// Load 加载配置文件
// 按优先级加载：默认配置 -> 环境配置 -> 环境变量
func Load() (*Config, error) {
	return LoadFrom(DefaultDir)
}

// LoadFrom 从指定目录加载配置；config.yaml 缺失时仅使用默认值与环境变量
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 1. 加载默认配置
	if err := loadConfigFile(v, filepath.Join(dir, "config.yaml"), true); err != nil {
		return nil, err
	}

	// 2. 加载环境特定配置
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	envFile := filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env))
	if err := loadConfigFile(v, envFile, true); err != nil {
		return nil, err
	}

	// 3. 绑定环境变量 (直接覆盖)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值 (兜底)
	setDefaults(v)

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadConfigFile 读取文件，执行环境变量替换，并加载到 viper
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := expandEnv(string(content))

	reader := strings.NewReader(expanded)
	if v.ConfigFileUsed() == "" {
		if err := v.ReadConfig(reader); err != nil {
			return fmt.Errorf("failed to read processed config %s: %w", path, err)
		}
		// 手动标记已加载文件，后续文件走合并
		v.SetConfigFile(path)
	} else {
		if err := v.MergeConfig(reader); err != nil {
			return fmt.Errorf("failed to merge processed config %s: %w", path, err)
		}
	}

	return nil
}

// expandEnv 替换字符串中的 ${VAR:default} 占位符
func expandEnv(s string) string {
	// g1: 变量名, g2: 默认值部分（含冒号）, g3: 默认值内容
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envPattern.FindStringSubmatch(match)
		key := submatch[1]
		hasDefault := submatch[2] != ""
		defVal := submatch[3]

		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		if hasDefault {
			return defVal
		}
		// 保留原样以便识别未定义的变量
		return match
	})
}

// MustLoad 加载配置，失败时 panic
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 校验生成相关配置
func (c *Config) Validate() error {
	switch c.Book.StructureSource {
	case StructureStatic, StructureTiered, StructureGenerated:
	default:
		return fmt.Errorf("invalid book.structure_source %q (want static|tiered|generated)", c.Book.StructureSource)
	}
	if c.Book.WordsPerPage <= 0 {
		return fmt.Errorf("book.words_per_page must be positive")
	}
	if c.Book.ChunkSize <= 0 {
		return fmt.Errorf("book.chunk_size must be positive")
	}
	if c.Book.MaxPages <= 0 || c.Book.MaxPages > MaxBookPages {
		return fmt.Errorf("book.max_pages must be in 1..%d", MaxBookPages)
	}
	if c.Book.MaxWords <= 0 || c.Book.MaxWords > MaxBookWords {
		return fmt.Errorf("book.max_words must be in 1..%d", MaxBookWords)
	}
	if c.Book.SingleShotCeiling < c.Book.ChunkSize {
		return fmt.Errorf("book.single_shot_ceiling (%d) must not be below book.chunk_size (%d)",
			c.Book.SingleShotCeiling, c.Book.ChunkSize)
	}
	if c.Pacing.ChunkDelay < 0 || c.Pacing.SectionDelay < 0 {
		return fmt.Errorf("pacing delays must not be negative")
	}
	switch c.Output.Format {
	case "html":
	case "pdf":
		if len(c.Output.PDFCommand) == 0 {
			return fmt.Errorf("output.pdf_command is required when output.format is pdf")
		}
	default:
		return fmt.Errorf("invalid output.format %q (want html|pdf)", c.Output.Format)
	}
	if _, ok := c.LLM.Providers[c.LLM.DefaultProvider]; !ok {
		return fmt.Errorf("llm.default_provider %q is not configured", c.LLM.DefaultProvider)
	}
	return nil
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// 应用默认值
	v.SetDefault("app.name", "natal-book-ai")
	v.SetDefault("app.version", "v0.0.0")
	v.SetDefault("app.env", "development")

	// HTTP 服务器默认值
	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", "30s")
	v.SetDefault("server.http.write_timeout", "60s")
	v.SetDefault("server.http.idle_timeout", "120s")

	// Redis 默认值
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 20)
	v.SetDefault("cache.redis.min_idle_conns", 2)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")
	v.SetDefault("cache.redis.job_ttl", "72h")

	// LLM 默认值
	v.SetDefault("llm.default_provider", "openai")
	v.SetDefault("llm.providers.openai.api_key", os.Getenv("OPENAI_API_KEY"))
	v.SetDefault("llm.providers.openai.model", "gpt-4-1106-preview")
	v.SetDefault("llm.providers.openai.temperature", 0.75)
	v.SetDefault("llm.providers.openai.timeout", "180s")

	// 图片默认值
	v.SetDefault("image.enabled", true)
	v.SetDefault("image.api_key", os.Getenv("OPENAI_API_KEY"))
	v.SetDefault("image.model", "dall-e-3")
	v.SetDefault("image.size", "1024x1792")
	v.SetDefault("image.quality", "standard")
	v.SetDefault("image.response_format", "url")
	v.SetDefault("image.timeout", "120s")
	v.SetDefault("image.download_timeout", "60s")

	// 整书默认值
	v.SetDefault("book.title", "The Architecture of You")
	v.SetDefault("book.structure_source", StructureTiered)
	v.SetDefault("book.generate_framing", false)
	v.SetDefault("book.words_per_page", 300)
	v.SetDefault("book.min_section_words", 500)
	v.SetDefault("book.min_generate_words", 100)
	v.SetDefault("book.single_shot_ceiling", 1500)
	v.SetDefault("book.chunk_size", 750)
	v.SetDefault("book.max_pages", 400)
	v.SetDefault("book.max_words", 120000)
	v.SetDefault("book.overhead.front_matter_pages", 12)
	v.SetDefault("book.overhead.per_section_pages", 3)
	v.SetDefault("book.overhead.framing_pages", 3)
	v.SetDefault("book.overhead.preface_pages", 1)
	v.SetDefault("book.overhead.intro_pages", 1)
	v.SetDefault("book.overhead.outro_pages", 1)

	// 节流默认值
	v.SetDefault("pacing.chunk_delay", "2s")
	v.SetDefault("pacing.section_delay", "5s")
	v.SetDefault("pacing.requests_per_minute", 60)
	v.SetDefault("pacing.burst", 1)
	v.SetDefault("pacing.distributed", false)

	// 输出默认值
	v.SetDefault("output.books_dir", "generated_books")
	v.SetDefault("output.images_dir", "generated_images")
	v.SetDefault("output.format", "html")

	// 消息队列默认值
	v.SetDefault("messaging.redis_stream.max_len", 10000)
	v.SetDefault("messaging.redis_stream.consumer_group_prefix", "natal-book")
	v.SetDefault("messaging.redis_stream.block_timeout", "5s")
	v.SetDefault("messaging.redis_stream.claim_interval", "30s")
	v.SetDefault("messaging.redis_stream.retry_limit", 3)
	v.SetDefault("messaging.redis_stream.retry_backoff.initial", "5s")
	v.SetDefault("messaging.redis_stream.retry_backoff.max", "5m")
	v.SetDefault("messaging.redis_stream.retry_backoff.multiplier", 2.0)
	v.SetDefault("messaging.redis_stream.worker_concurrency", 2)

	// 可观测性默认值
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	// 安全默认值
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests_per_minute", 30)
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("security.cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"})
}
