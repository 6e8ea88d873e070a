// Package config 加载服务配置：内置默认值 → YAML 文件 → SURVKIT_ 环境变量，后者覆盖前者。
//
// 环境变量映射规则：去掉前缀后第一个下划线变为层级分隔符，例如
//
//	SURVKIT_MODEL_SOURCE      -> model.source
//	SURVKIT_SERVER_RATE_LIMIT -> server.rate_limit
//	SURVKIT_LOGGING_LEVEL     -> logging.level
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/survkit/logging"
	"github.com/rushteam/survkit/store"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "SURVKIT_"

// Config 是 survkit 的完整配置
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Model      ModelConfig      `koanf:"model"`
	Category   CategoryConfig   `koanf:"category"`
	Confidence ConfidenceConfig `koanf:"confidence"`
	Features   []FeatureConfig  `koanf:"features" validate:"dive"`
	Batch      BatchConfig      `koanf:"batch"`
	Store      store.Config     `koanf:"store"`
	Feast      FeastConfig      `koanf:"feast"`
	Logging    logging.Config   `koanf:"logging"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	// RateLimit 每个 IP 在 RateWindow 内的最大请求数，0 表示不限流
	RateLimit  int           `koanf:"rate_limit" validate:"gte=0"`
	RateWindow time.Duration `koanf:"rate_window"`
	// TrustProxy 为 true 时客户端 IP 取自 X-Forwarded-For / X-Real-IP，仅在可信反向代理之后开启
	TrustProxy bool `koanf:"trust_proxy"`
}

// ModelConfig 模型制品来源：本地路径、file:// 或 http(s):// URL
type ModelConfig struct {
	Source      string        `koanf:"source" validate:"required"`
	LoadTimeout time.Duration `koanf:"load_timeout"`
}

// CategoryConfig 类别表文件，为空时使用内置 v2 表
type CategoryConfig struct {
	Tables string `koanf:"tables"`
}

// ConfidenceConfig 置信度阈值文件，为空时使用内置 v1 表
type ConfidenceConfig struct {
	Thresholds string `koanf:"thresholds"`
}

// FeatureConfig 描述一个派生特征，Type 对应 Register 注册的构建器
type FeatureConfig struct {
	Name   string   `koanf:"name" validate:"required"`
	Type   string   `koanf:"type" validate:"required"`
	Fields []string `koanf:"fields"`
	Expr   string   `koanf:"expr"`
}

// BatchConfig 批量预测配置
type BatchConfig struct {
	MaxSize     int `koanf:"max_size" validate:"gte=1"`
	Concurrency int `koanf:"concurrency" validate:"gte=0"`
}

// FeastConfig 在线特征补全，Endpoint 为空表示不启用
type FeastConfig struct {
	Endpoint  string            `koanf:"endpoint"`
	Project   string            `koanf:"project" validate:"required_with=Endpoint"`
	EntityKey string            `koanf:"entity_key" validate:"required_with=Endpoint"`
	Fields    map[string]string `koanf:"fields"`
	Timeout   time.Duration     `koanf:"timeout"`
	Token     string            `koanf:"token"`
	// CacheSize 为 0 时不缓存在线特征
	CacheSize int           `koanf:"cache_size" validate:"gte=0"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
}

// Enabled 是否启用在线特征补全
func (c FeastConfig) Enabled() bool { return c.Endpoint != "" }

// Default 返回内置默认配置
func Default() *Config {
	logCfg := logging.DefaultConfig()
	logCfg.Output = nil
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       100,
			RateWindow:      time.Minute,
		},
		Model: ModelConfig{
			Source:      "model.json",
			LoadTimeout: 30 * time.Second,
		},
		Features: []FeatureConfig{
			{Name: "Family_Size", Type: "sum", Fields: []string{"SibSp", "Parch"}},
		},
		Batch: BatchConfig{
			MaxSize:     256,
			Concurrency: 8,
		},
		Store: store.Config{
			Backend: "memory",
			Limit:   1000,
			Prefix:  "survkit:",
		},
		Feast: FeastConfig{
			Timeout:   time.Second,
			CacheSize: 10000,
			CacheTTL:  5 * time.Minute,
		},
		Logging: logCfg,
	}
}

// Load 按 默认值 → path（可为空）→ 环境变量 的顺序加载并校验配置
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验配置，所有字段错误合并返回
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
