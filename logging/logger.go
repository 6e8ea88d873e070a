// Package logging 提供基于 zerolog 的全局结构化日志。
//
// 用法：
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("model", name).Msg("model loaded")
//	logging.Ctx(ctx).Warn().Err(err).Msg("history save failed")
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config 日志配置
type Config struct {
	Level     string    `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error disabled"`
	Format    string    `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller    bool      `koanf:"caller"`
	Timestamp bool      `koanf:"timestamp"`
	Output    io.Writer `koanf:"-"`
}

// DefaultConfig 默认配置：info 级别、JSON 输出、带时间戳
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

func init() {
	initLogger(DefaultConfig())
}

// Init 重新配置全局 logger，可重复调用
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

func initLogger(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}
	l := zerolog.New(output)
	if cfg.Timestamp {
		l = l.With().Timestamp().Logger()
	}
	if cfg.Caller {
		l = l.With().Caller().Logger()
	}
	log = l
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger 返回全局 logger
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger 替换全局 logger（测试中捕获输出用）
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// With 创建带默认字段的子 logger
//
//	l := logging.With().Str("component", "server").Logger()
func With() zerolog.Context {
	mu.RLock()
	defer mu.RUnlock()
	return log.With()
}

func Debug() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Debug()
}

func Info() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Info()
}

func Warn() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Warn()
}

func Error() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Error()
}

// Err 等价于 Error().Err(err)
func Err(err error) *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Err(err)
}

// NewTestLogger 创建写入 w 的 logger
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
