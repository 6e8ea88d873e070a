package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// GenerateRequestID 生成请求 ID
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID 把请求 ID 写入 context
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext 读取请求 ID，不存在返回空串
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx 返回携带请求 ID 的 logger
func Ctx(ctx context.Context) *zerolog.Logger {
	l := Logger()
	if id := RequestIDFromContext(ctx); id != "" {
		l = l.With().Str("request_id", id).Logger()
	}
	return &l
}
